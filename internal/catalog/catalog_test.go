package catalog

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"multiplayer/internal/actor"
	"multiplayer/internal/ai"
	"multiplayer/internal/config"
	"multiplayer/internal/drawing"
	"multiplayer/internal/narrative"
	"multiplayer/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanConn struct {
	id  string
	out chan []byte
}

func (c *chanConn) ID() string { return c.id }
func (c *chanConn) Send(b []byte) error {
	c.out <- b
	return nil
}
func (c *chanConn) Close(int, string) {}

func TestRegisterBindsBothGames(t *testing.T) {
	rt := actor.NewRuntime(store.NewMemory())
	t.Cleanup(func() { _ = rt.Shutdown(context.Background()) })

	types := Register(rt, config.AppConfig{}, ai.Disabled{})

	assert.Equal(t, []string{drawing.GameType, narrative.GameType}, types)
	assert.True(t, rt.Knows("anyone-can-draw"))
	assert.True(t, rt.Knows("plot-twist"))
	assert.False(t, rt.Knows("chess"))
}

func TestRegisteredMachineAnswersLobbyQueries(t *testing.T) {
	rt := actor.NewRuntime(store.NewMemory())
	t.Cleanup(func() { _ = rt.Shutdown(context.Background()) })
	Register(rt, config.AppConfig{}, ai.Disabled{})

	conn := &chanConn{id: "c1", out: make(chan []byte, 4)}
	actx, err := rt.Connect(narrative.GameType, "lobby", conn)
	require.NoError(t, err)
	require.NoError(t, actx.Deliver(conn, []byte(`{"action":"getGames"}`)))

	select {
	case b := <-conn.out:
		var msg map[string]any
		require.NoError(t, json.Unmarshal(b, &msg))
		assert.Equal(t, "gamesList", msg["type"])
		assert.Empty(t, msg["games"])
	case <-time.After(2 * time.Second):
		t.Fatal("no reply from machine")
	}
}
