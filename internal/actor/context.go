package actor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const inboxSize = 256

// Context is a single-threaded execution unit addressed by
// {gameType}:{gameId}. It owns a connection registry, storage scoped to its
// key and at most one durable alarm.
type Context struct {
	key      string
	gameType string
	gameID   string
	rt       *Runtime
	handler  Handler
	log      zerolog.Logger

	inbox    chan func(context.Context)
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	mu         sync.Mutex
	conns      map[string]Conn
	connOrder  []string
	alarmAt    time.Time
	alarmTimer *time.Timer
	alarmGen   uint64
	pending    int
	lastActive time.Time
}

func newContext(rt *Runtime, gameType, gameID string) *Context {
	key := Key(gameType, gameID)
	return &Context{
		key:        key,
		gameType:   gameType,
		gameID:     gameID,
		rt:         rt,
		log:        log.With().Str("actor_key", key).Logger(),
		inbox:      make(chan func(context.Context), inboxSize),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		conns:      map[string]Conn{},
		lastActive: rt.now(),
	}
}

func (c *Context) Key() string      { return c.key }
func (c *Context) GameType() string { return c.gameType }
func (c *Context) GameID() string   { return c.gameID }

func (c *Context) Logger() zerolog.Logger { return c.log }

func (c *Context) run() {
	defer close(c.done)
	for {
		select {
		case fn := <-c.inbox:
			c.exec(fn)
		case <-c.quit:
			for {
				select {
				case fn := <-c.inbox:
					c.exec(fn)
				default:
					return
				}
			}
		}
	}
}

func (c *Context) exec(fn func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Msg("actor handler panic")
		}
	}()
	fn(context.Background())
	c.mu.Lock()
	c.lastActive = c.rt.now()
	c.mu.Unlock()
}

// Post queues fn to run on the context goroutine.
func (c *Context) Post(fn func(context.Context)) error {
	select {
	case <-c.quit:
		return ErrStopped
	default:
	}
	select {
	case c.inbox <- fn:
		return nil
	case <-c.quit:
		return ErrStopped
	}
}

// Deliver queues an inbound message from conn.
func (c *Context) Deliver(conn Conn, msg []byte) error {
	return c.Post(func(ctx context.Context) {
		c.handler.OnMessage(ctx, conn, msg)
	})
}

// Disconnect removes conn from the registry and queues OnClose.
func (c *Context) Disconnect(conn Conn, code int, reason string) {
	c.mu.Lock()
	removed := c.removeConnLocked(conn.ID())
	c.mu.Unlock()
	if removed {
		activeConnections.Dec()
	}
	if err := c.Post(func(ctx context.Context) {
		c.handler.OnClose(ctx, conn, code, reason)
	}); err != nil {
		c.log.Debug().Err(err).Str("conn_id", conn.ID()).Msg("close after stop")
	}
}

func (c *Context) addConnLocked(conn Conn) bool {
	_, exists := c.conns[conn.ID()]
	if !exists {
		c.connOrder = append(c.connOrder, conn.ID())
	}
	c.conns[conn.ID()] = conn
	return !exists
}

func (c *Context) removeConnLocked(id string) bool {
	if _, ok := c.conns[id]; !ok {
		return false
	}
	delete(c.conns, id)
	for i, v := range c.connOrder {
		if v == id {
			c.connOrder = append(c.connOrder[:i], c.connOrder[i+1:]...)
			break
		}
	}
	return true
}

// Connections returns the open connections in registration order.
func (c *Context) Connections() []Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Conn, 0, len(c.connOrder))
	for _, id := range c.connOrder {
		out = append(out, c.conns[id])
	}
	return out
}

func (c *Context) Get(ctx context.Context, key string) ([]byte, error) {
	return c.rt.store.Get(ctx, c.key, key)
}

func (c *Context) Put(ctx context.Context, key string, value []byte) error {
	return c.rt.store.Put(ctx, c.key, key, value)
}

func (c *Context) DeleteAll(ctx context.Context) error {
	return c.rt.store.DeleteAll(ctx, c.key)
}

// SetAlarm persists the wake time and arms it in process, replacing any
// earlier alarm.
func (c *Context) SetAlarm(ctx context.Context, at time.Time) error {
	if err := c.rt.store.SetAlarm(ctx, c.key, at); err != nil {
		return err
	}
	c.armAlarm(at)
	return nil
}

func (c *Context) DeleteAlarm(ctx context.Context) error {
	c.mu.Lock()
	c.alarmGen++
	if c.alarmTimer != nil {
		c.alarmTimer.Stop()
		c.alarmTimer = nil
	}
	c.alarmAt = time.Time{}
	c.mu.Unlock()
	return c.rt.store.DeleteAlarm(ctx, c.key)
}

// Alarm returns the pending wake time, if any.
func (c *Context) Alarm() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alarmAt, !c.alarmAt.IsZero()
}

func (c *Context) armAlarm(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alarmGen++
	gen := c.alarmGen
	if c.alarmTimer != nil {
		c.alarmTimer.Stop()
	}
	c.alarmAt = at
	delay := at.Sub(c.rt.now())
	if delay < 0 {
		delay = 0
	}
	c.alarmTimer = time.AfterFunc(delay, func() {
		_ = c.Post(func(ctx context.Context) { c.fireAlarm(ctx, gen) })
	})
}

func (c *Context) fireAlarm(ctx context.Context, gen uint64) {
	c.mu.Lock()
	if gen != c.alarmGen {
		c.mu.Unlock()
		return
	}
	c.alarmAt = time.Time{}
	c.alarmTimer = nil
	c.mu.Unlock()
	if err := c.rt.store.DeleteAlarm(ctx, c.key); err != nil {
		c.log.Warn().Err(err).Msg("delete fired alarm")
	}
	alarmsFired.Inc()
	c.handler.OnAlarm(ctx)
}

// Schedule runs fn on the context goroutine after d. The returned func
// cancels it; cancelling after it ran is a no-op.
func (c *Context) Schedule(d time.Duration, fn func(context.Context)) (cancel func()) {
	var done atomic.Bool
	c.mu.Lock()
	c.pending++
	c.mu.Unlock()
	release := func() bool {
		if done.Swap(true) {
			return false
		}
		c.mu.Lock()
		c.pending--
		c.mu.Unlock()
		return true
	}
	t := time.AfterFunc(d, func() {
		err := c.Post(func(ctx context.Context) {
			if release() {
				fn(ctx)
			}
		})
		if err != nil {
			release()
		}
	})
	return func() {
		if release() {
			t.Stop()
		}
	}
}

func (c *Context) idle(now time.Time, ttl time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.conns) == 0 && c.alarmAt.IsZero() && c.pending == 0 && now.Sub(c.lastActive) >= ttl
}

func (c *Context) stop() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.alarmGen++
		if c.alarmTimer != nil {
			c.alarmTimer.Stop()
			c.alarmTimer = nil
		}
		c.mu.Unlock()
		close(c.quit)
	})
}
