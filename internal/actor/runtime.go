package actor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"multiplayer/internal/store"

	"github.com/rs/zerolog/log"
)

const defaultIdleTTL = 10 * time.Minute

type Option func(*Runtime)

func WithIdleTTL(ttl time.Duration) Option {
	return func(r *Runtime) {
		if ttl > 0 {
			r.idleTTL = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Runtime) {
		if now != nil {
			r.now = now
		}
	}
}

// Runtime hosts every live actor context of the process.
type Runtime struct {
	store     store.Storage
	idleTTL   time.Duration
	now       func() time.Time
	factories map[string]Factory

	mu       sync.Mutex
	contexts map[string]*Context
	closed   bool
}

func NewRuntime(st store.Storage, opts ...Option) *Runtime {
	r := &Runtime{
		store:     st,
		idleTTL:   defaultIdleTTL,
		now:       time.Now,
		factories: map[string]Factory{},
		contexts:  map[string]*Context{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register binds a game type to the factory building its handlers. It must
// be called before the runtime serves connections.
func (r *Runtime) Register(gameType string, f Factory) {
	r.factories[gameType] = f
}

func (r *Runtime) Knows(gameType string) bool {
	_, ok := r.factories[gameType]
	return ok
}

// Connect registers conn with the context for gameType:gameID, creating the
// context on first use, and queues OnConnect.
func (r *Runtime) Connect(gameType, gameID string, conn Conn) (*Context, error) {
	r.mu.Lock()
	c, err := r.contextLocked(gameType, gameID)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	c.mu.Lock()
	added := c.addConnLocked(conn)
	c.mu.Unlock()
	r.mu.Unlock()
	if added {
		activeConnections.Inc()
	}

	if err := c.Post(func(ctx context.Context) { c.handler.OnConnect(ctx, conn) }); err != nil {
		return nil, err
	}
	return c, nil
}

// Context returns the context for gameType:gameID, creating it if needed.
func (r *Runtime) Context(gameType, gameID string) (*Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.contextLocked(gameType, gameID)
}

func (r *Runtime) contextLocked(gameType, gameID string) (*Context, error) {
	if r.closed {
		return nil, ErrStopped
	}
	key := Key(gameType, gameID)
	if c, ok := r.contexts[key]; ok {
		return c, nil
	}
	factory, ok := r.factories[gameType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGameType, gameType)
	}
	c := newContext(r, gameType, gameID)
	c.handler = factory(c)
	r.contexts[key] = c
	liveContexts.Inc()
	go c.run()
	return c, nil
}

// Len reports the number of live contexts.
func (r *Runtime) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.contexts)
}

// RestoreAlarms wakes every context with a persisted alarm and re-arms it.
// Alarms already due fire immediately.
func (r *Runtime) RestoreAlarms(ctx context.Context) error {
	alarms, err := r.store.ListAlarms(ctx)
	if err != nil {
		return fmt.Errorf("list alarms: %w", err)
	}
	restored := 0
	for _, a := range alarms {
		gameType, gameID, ok := splitKey(a.ActorKey)
		if !ok {
			log.Warn().Str("actor_key", a.ActorKey).Msg("skip malformed alarm key")
			continue
		}
		c, err := r.Context(gameType, gameID)
		if err != nil {
			log.Warn().Err(err).Str("actor_key", a.ActorKey).Msg("skip alarm")
			continue
		}
		c.armAlarm(a.WakeAt)
		restored++
	}
	log.Info().Int("alarms", restored).Msg("alarms restored")
	return nil
}

func (r *Runtime) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.sweepIdle(r.now())
			}
		}
	}()
}

// sweepIdle stops contexts with no connections, no alarm, no scheduled
// callbacks and no recent activity. They rehydrate from storage on next use.
func (r *Runtime) sweepIdle(now time.Time) int {
	r.mu.Lock()
	var evicted []*Context
	for key, c := range r.contexts {
		if c.idle(now, r.idleTTL) {
			delete(r.contexts, key)
			evicted = append(evicted, c)
		}
	}
	r.mu.Unlock()
	for _, c := range evicted {
		c.stop()
		liveContexts.Dec()
		log.Debug().Str("actor_key", c.key).Msg("actor evicted")
	}
	return len(evicted)
}

// Shutdown stops every context and waits for their inboxes to drain.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	all := make([]*Context, 0, len(r.contexts))
	for _, c := range r.contexts {
		all = append(all, c)
	}
	r.contexts = map[string]*Context{}
	r.mu.Unlock()

	for _, c := range all {
		for _, conn := range c.Connections() {
			conn.Close(closeGoingAway, "server shutting down")
		}
		c.stop()
	}
	for _, c := range all {
		select {
		case <-c.done:
			liveContexts.Dec()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
