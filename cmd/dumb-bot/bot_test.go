package main

import (
	"encoding/json"
	"math/rand"
	"testing"

	"multiplayer/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBot() *bot {
	cfg := config.BotConfig{PlayerID: "bot", PlayerName: "Bot", GameName: "Bot Room"}
	return newBot(cfg, rand.New(rand.NewSource(1)), []string{"kite"})
}

func decode(t *testing.T, s string) inbound {
	t.Helper()
	var msg inbound
	require.NoError(t, json.Unmarshal([]byte(s), &msg))
	return msg
}

func TestBotJoinsOpenLobby(t *testing.T) {
	b := testBot()
	out := b.handle(decode(t, `{"type":"gamesList","games":[{"id":"busy","isLobby":false,"isActive":true},{"id":"g1","isLobby":true,"isActive":false}]}`))
	require.Len(t, out, 1)
	assert.Equal(t, "join", out[0]["action"])
	assert.Equal(t, "g1", out[0]["gameId"])

	b.handle(decode(t, `{"type":"playerJoined","gameId":"g1","playerId":"bot","users":[{"id":"alice"},{"id":"bot"}]}`))
	assert.Equal(t, "g1", b.gameID)
	assert.False(t, b.owner)
	assert.Empty(t, b.tick(), "only the owner starts rounds")
}

func TestBotCreatesAndStartsRoom(t *testing.T) {
	b := testBot()
	out := b.handle(decode(t, `{"type":"gamesList","games":[]}`))
	require.Len(t, out, 1)
	assert.Equal(t, "createGame", out[0]["action"])

	b.handle(decode(t, `{"type":"gameCreated","gameId":"g2","creator":"bot","users":[{"id":"bot"}],"gameState":{"isActive":false,"isLobby":true}}`))
	assert.Empty(t, b.tick(), "waits for a second player")

	b.handle(decode(t, `{"type":"playerJoined","gameId":"g2","playerId":"alice","users":[{"id":"bot"},{"id":"alice"}]}`))
	out = b.tick()
	require.Len(t, out, 1)
	assert.Equal(t, "startGame", out[0]["action"])
	assert.Equal(t, "g2", out[0]["gameId"])
}

func TestBotDrawsOrGuesses(t *testing.T) {
	b := testBot()
	b.gameID = "g1"

	b.handle(decode(t, `{"type":"gameStarted","gameId":"g1","users":[{"id":"bot"},{"id":"alice"}],"gameState":{"isActive":true,"isLobby":false,"currentDrawer":"bot"}}`))
	out := b.tick()
	require.Len(t, out, 1)
	assert.Equal(t, "updateDrawing", out[0]["action"])

	b.handle(decode(t, `{"type":"gameState","gameId":"g1","users":[{"id":"bot"},{"id":"alice"}],"gameState":{"isActive":true,"isLobby":false,"currentDrawer":"alice"}}`))
	out = b.tick()
	require.Len(t, out, 1)
	assert.Equal(t, "submitGuess", out[0]["action"])
	assert.Equal(t, "kite", out[0]["guess"])
}

func TestBotIgnoresOtherRooms(t *testing.T) {
	b := testBot()
	b.gameID = "g1"
	b.handle(decode(t, `{"type":"gameState","gameId":"g9","users":[{"id":"x"}],"gameState":{"isActive":true,"isLobby":false,"currentDrawer":"x"}}`))
	assert.False(t, b.active)
	assert.Equal(t, 0, b.players)
}
