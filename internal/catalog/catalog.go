// Package catalog wires the game rule sets into the actor runtime.
package catalog

import (
	"multiplayer/internal/actor"
	"multiplayer/internal/ai"
	"multiplayer/internal/config"
	"multiplayer/internal/drawing"
	"multiplayer/internal/game"
	"multiplayer/internal/narrative"
)

// Registrar is satisfied by *actor.Runtime.
type Registrar interface {
	Register(gameType string, f actor.Factory)
}

// Register binds every known game type to a machine factory. Each context
// gets its own machine; the rule sets are stateless and shared.
func Register(r Registrar, cfg config.AppConfig, svc ai.TextService) []string {
	rules := []game.Rules{
		drawing.New(cfg.Drawing, svc),
		narrative.New(cfg.Narrative, svc),
	}
	types := make([]string, 0, len(rules))
	for _, rs := range rules {
		r.Register(rs.Type(), factory(rs))
		types = append(types, rs.Type())
	}
	return types
}

func factory(rules game.Rules) actor.Factory {
	return func(c *actor.Context) actor.Handler {
		return game.NewMachine(c, rules, game.WithLogger(c.Logger()))
	}
}
