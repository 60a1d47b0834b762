package main

import (
	"math/rand"

	"multiplayer/internal/config"

	"github.com/rs/zerolog/log"
)

// A tiny blank PNG, enough for spectators to see the canvas update.
const blankCanvas = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mP8/5+hHgAHggJ/PchI7wAAAABJRU5ErkJggg=="

type inbound struct {
	Type     string `json:"type"`
	GameID   string `json:"gameId"`
	Creator  string `json:"creator"`
	PlayerID string `json:"playerId"`
	Error    string `json:"error"`
	Users    []struct {
		ID string `json:"id"`
	} `json:"users"`
	Games []struct {
		ID       string `json:"id"`
		IsLobby  bool   `json:"isLobby"`
		IsActive bool   `json:"isActive"`
	} `json:"games"`
	GameState *struct {
		IsActive      bool   `json:"isActive"`
		IsLobby       bool   `json:"isLobby"`
		CurrentDrawer string `json:"currentDrawer"`
	} `json:"gameState"`
}

// bot plays the drawing game: it joins the first open room (or creates
// one), starts rounds it owns once someone else joins, scribbles when it
// draws and guesses random words otherwise.
type bot struct {
	cfg   config.BotConfig
	rnd   *rand.Rand
	words []string

	gameID  string
	owner   bool
	players int
	active  bool
	drawer  string
}

func newBot(cfg config.BotConfig, rnd *rand.Rand, words []string) *bot {
	return &bot{cfg: cfg, rnd: rnd, words: words}
}

func (b *bot) action(name string, fields map[string]any) map[string]any {
	m := map[string]any{"action": name, "playerId": b.cfg.PlayerID}
	if b.gameID != "" {
		m["gameId"] = b.gameID
	}
	for k, v := range fields {
		m[k] = v
	}
	return m
}

func (b *bot) hello() []map[string]any {
	return []map[string]any{{"action": "getGames"}}
}

func (b *bot) handle(msg inbound) []map[string]any {
	switch msg.Type {
	case "error":
		log.Warn().Str("error", msg.Error).Msg("server error")
		return nil
	case "gamesList":
		if b.gameID != "" {
			return nil
		}
		for _, g := range msg.Games {
			if g.IsLobby && !g.IsActive {
				log.Info().Str("game_id", g.ID).Msg("joining")
				return []map[string]any{b.action("join", map[string]any{"gameId": g.ID, "playerName": b.cfg.PlayerName})}
			}
		}
		return []map[string]any{b.action("createGame", map[string]any{"gameName": b.cfg.GameName, "playerName": b.cfg.PlayerName})}
	case "gameCreated":
		if b.gameID == "" && msg.Creator == b.cfg.PlayerID {
			b.gameID, b.owner = msg.GameID, true
			log.Info().Str("game_id", b.gameID).Msg("created")
		}
	case "playerJoined":
		if b.gameID == "" && msg.PlayerID == b.cfg.PlayerID {
			b.gameID = msg.GameID
		}
	}

	if msg.GameID == "" || msg.GameID != b.gameID {
		return nil
	}
	b.players = len(msg.Users)
	if msg.GameState != nil {
		b.active = msg.GameState.IsActive
		b.drawer = msg.GameState.CurrentDrawer
	}
	if msg.Type == "playerLeft" && msg.PlayerID == b.cfg.PlayerID {
		b.gameID, b.owner, b.active = "", false, false
	}
	return nil
}

func (b *bot) tick() []map[string]any {
	switch {
	case b.gameID == "":
		return b.hello()
	case !b.active:
		if b.owner && b.players >= 2 {
			return []map[string]any{b.action("startGame", nil)}
		}
	case b.drawer == b.cfg.PlayerID:
		return []map[string]any{b.action("updateDrawing", map[string]any{"drawingData": blankCanvas})}
	case len(b.words) > 0:
		return []map[string]any{b.action("submitGuess", map[string]any{"guess": b.words[b.rnd.Intn(len(b.words))]})}
	}
	return nil
}
