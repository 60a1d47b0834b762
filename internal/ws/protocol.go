package ws

import (
	"errors"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10

	// Canvas snapshots arrive as data URLs, so frames can be large.
	maxMessageSize = 2 << 20
	sendBuffer     = 64

	// DefaultGameID names the actor context used when a client gives none.
	DefaultGameID = "lobby"
)

var (
	ErrClosed         = errors.New("connection closed")
	ErrSendBufferFull = errors.New("send buffer full")
)

var rateLimitedMessage = []byte(`{"type":"error","error":"Too many messages, slow down"}`)

// closeCode maps a peer status to one that may be sent in a close frame.
func closeCode(code int) int {
	switch code {
	case 0, websocket.CloseNoStatusReceived, websocket.CloseAbnormalClosure, websocket.CloseTLSHandshake:
		return websocket.CloseNormalClosure
	}
	return code
}
