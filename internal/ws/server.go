package ws

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"multiplayer/internal/actor"
	"multiplayer/internal/config"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Connector registers connections with actor contexts.
type Connector interface {
	Connect(gameType, gameID string, conn actor.Conn) (*actor.Context, error)
}

type Server struct {
	rt       Connector
	upgrader websocket.Upgrader
	limit    rate.Limit
	burst    int
}

func NewServer(rt Connector, cfg config.ServerConfig) *Server {
	limit := rate.Limit(cfg.WSMessagesPerSecond)
	if cfg.WSMessagesPerSecond <= 0 {
		limit = rate.Inf
	}
	return &Server{
		rt:       rt,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		limit:    limit,
		burst:    max(cfg.WSMessageBurst, 1),
	}
}

// Serve upgrades the request and pumps the connection until either side
// closes it. The caller has already checked the game type.
func (s *Server) Serve(w http.ResponseWriter, r *http.Request, gameType, gameID string) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Str("game_type", gameType).Msg("websocket upgrade failed")
		return
	}
	if gameID == "" {
		gameID = DefaultGameID
	}
	c := newClient(uuid.NewString(), conn, rate.NewLimiter(s.limit, s.burst))
	c.log = log.With().Str("conn_id", c.id).Str("actor_key", actor.Key(gameType, gameID)).Logger()

	actx, err := s.rt.Connect(gameType, gameID, c)
	if err != nil {
		c.log.Warn().Err(err).Msg("connect to actor")
		c.Close(websocket.CloseTryAgainLater, "game unavailable")
		c.writePump()
		return
	}
	connectionsOpened.WithLabelValues(gameType).Inc()
	c.log.Debug().Msg("client connected")

	go c.writePump()
	c.readPump(actx, gameType)
}

// Client is one websocket connection. Sends are queued on a buffered
// channel drained by the write pump; a client that falls behind is closed.
type Client struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter
	log     zerolog.Logger

	mu          sync.Mutex
	closed      bool
	closeCode   int
	closeReason string
}

var _ actor.Conn = (*Client)(nil)

func newClient(id string, conn *websocket.Conn, limiter *rate.Limiter) *Client {
	return &Client{
		id:      id,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		limiter: limiter,
		log:     log.Logger,
	}
}

func (c *Client) ID() string { return c.id }

func (c *Client) Send(msg []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	select {
	case c.send <- msg:
		c.mu.Unlock()
		return nil
	default:
	}
	c.mu.Unlock()
	c.Close(websocket.ClosePolicyViolation, "client too slow")
	return ErrSendBufferFull
}

// Close flushes queued messages, then sends a close frame with code.
func (c *Client) Close(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.closeCode, c.closeReason = code, reason
	close(c.send)
}

func (c *Client) closeStatus() (int, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return closeCode(c.closeCode), c.closeReason
}

func (c *Client) readPump(actx *actor.Context, gameType string) {
	code, reason := websocket.CloseNormalClosure, ""
	defer func() {
		actx.Disconnect(c, code, reason)
		c.Close(code, reason)
		c.log.Debug().Int("code", code).Str("reason", reason).Msg("client disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				code, reason = ce.Code, ce.Text
			} else {
				code = websocket.CloseAbnormalClosure
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug().Err(err).Msg("read failed")
			}
			return
		}
		messagesReceived.WithLabelValues(gameType).Inc()
		if !c.limiter.Allow() {
			messagesRateLimited.WithLabelValues(gameType).Inc()
			_ = c.Send(rateLimitedMessage)
			continue
		}
		if err := actx.Deliver(c, msg); err != nil {
			code, reason = websocket.CloseGoingAway, "server shutting down"
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				code, reason := c.closeStatus()
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.Debug().Err(err).Msg("write failed")
				c.Close(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "")
				return
			}
		}
	}
}
