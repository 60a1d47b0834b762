package actor

import (
	"context"
	"errors"
	"strings"
)

// closeGoingAway is the websocket status sent to clients on shutdown.
const closeGoingAway = 1001

var (
	ErrUnknownGameType = errors.New("unknown game type")
	ErrStopped         = errors.New("actor stopped")
)

// Conn is one open client connection registered with a context.
type Conn interface {
	ID() string
	Send(msg []byte) error
	Close(code int, reason string)
}

// Handler receives the events of one context. All calls happen on the
// context goroutine, one at a time.
type Handler interface {
	OnConnect(ctx context.Context, conn Conn)
	OnMessage(ctx context.Context, conn Conn, msg []byte)
	OnClose(ctx context.Context, conn Conn, code int, reason string)
	OnAlarm(ctx context.Context)
}

// Factory builds the handler for a freshly created context.
type Factory func(c *Context) Handler

func Key(gameType, gameID string) string {
	return gameType + ":" + gameID
}

func splitKey(key string) (gameType, gameID string, ok bool) {
	return strings.Cut(key, ":")
}
