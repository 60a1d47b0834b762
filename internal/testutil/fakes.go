package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"multiplayer/internal/actor"
	"multiplayer/internal/ai"
	"multiplayer/internal/store"
)

var ErrSendFailed = errors.New("send failed")

type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeTimer struct {
	at        time.Time
	seq       int
	fn        func(context.Context)
	cancelled bool
}

// FakeHost is an in-memory actor host driven by a manual clock. Scheduled
// callbacks run only from Advance.
type FakeHost struct {
	Clock *Clock

	mu      sync.Mutex
	data    map[string][]byte
	conns   []actor.Conn
	alarm   time.Time
	timers  []*fakeTimer
	seq     int
	PutErr  error
	Puts    int
	Deletes int
}

func NewFakeHost(clock *Clock) *FakeHost {
	return &FakeHost{Clock: clock, data: map[string][]byte{}}
}

func (h *FakeHost) Attach(conns ...actor.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns = append(h.conns, conns...)
}

func (h *FakeHost) Detach(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, c := range h.conns {
		if c.ID() == id {
			h.conns = append(h.conns[:i], h.conns[i+1:]...)
			return
		}
	}
}

func (h *FakeHost) Connections() []actor.Conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]actor.Conn(nil), h.conns...)
}

func (h *FakeHost) Get(_ context.Context, key string) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.data[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (h *FakeHost) Put(_ context.Context, key string, value []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.PutErr != nil {
		return h.PutErr
	}
	h.Puts++
	h.data[key] = append([]byte(nil), value...)
	return nil
}

func (h *FakeHost) DeleteAll(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Deletes++
	h.data = map[string][]byte{}
	return nil
}

func (h *FakeHost) SetAlarm(_ context.Context, at time.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.alarm = at
	return nil
}

func (h *FakeHost) DeleteAlarm(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.alarm = time.Time{}
	return nil
}

// Alarm returns the armed alarm, if any.
func (h *FakeHost) Alarm() (time.Time, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.alarm, !h.alarm.IsZero()
}

// Stored returns the raw value under key, nil when absent.
func (h *FakeHost) Stored(key string) []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.data[key]
}

// Seed stores a raw value, e.g. a snapshot written by another host.
func (h *FakeHost) Seed(key string, value []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.data[key] = append([]byte(nil), value...)
}

func (h *FakeHost) Schedule(d time.Duration, fn func(context.Context)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	t := &fakeTimer{at: h.Clock.Now().Add(d), seq: h.seq, fn: fn}
	h.timers = append(h.timers, t)
	return func() {
		h.mu.Lock()
		t.cancelled = true
		h.mu.Unlock()
	}
}

// PendingTimers counts scheduled callbacks that have not run or been
// cancelled.
func (h *FakeHost) PendingTimers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, t := range h.timers {
		if !t.cancelled {
			n++
		}
	}
	return n
}

// Advance moves the clock forward by d, running due callbacks in deadline
// order with the clock set to each deadline.
func (h *FakeHost) Advance(ctx context.Context, d time.Duration) {
	target := h.Clock.Now().Add(d)
	for {
		t := h.nextDue(target)
		if t == nil {
			break
		}
		h.Clock.Set(t.at)
		t.fn(ctx)
	}
	h.Clock.Set(target)
}

func (h *FakeHost) nextDue(target time.Time) *fakeTimer {
	h.mu.Lock()
	defer h.mu.Unlock()
	live := h.timers[:0]
	for _, t := range h.timers {
		if !t.cancelled {
			live = append(live, t)
		}
	}
	h.timers = live
	sort.SliceStable(h.timers, func(i, j int) bool {
		if h.timers[i].at.Equal(h.timers[j].at) {
			return h.timers[i].seq < h.timers[j].seq
		}
		return h.timers[i].at.Before(h.timers[j].at)
	})
	if len(h.timers) == 0 || h.timers[0].at.After(target) {
		return nil
	}
	t := h.timers[0]
	h.timers = h.timers[1:]
	return t
}

// FakeConn records what the server sends to one client.
type FakeConn struct {
	id string

	mu     sync.Mutex
	sent   [][]byte
	fail   bool
	closed bool
}

var _ actor.Conn = (*FakeConn)(nil)

func NewFakeConn(id string) *FakeConn {
	return &FakeConn{id: id}
}

func (c *FakeConn) ID() string { return c.id }

func (c *FakeConn) Send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return ErrSendFailed
	}
	c.sent = append(c.sent, append([]byte(nil), msg...))
	return nil
}

func (c *FakeConn) Close(int, string) {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *FakeConn) FailSends(fail bool) {
	c.mu.Lock()
	c.fail = fail
	c.mu.Unlock()
}

func (c *FakeConn) Reset() {
	c.mu.Lock()
	c.sent = nil
	c.mu.Unlock()
}

func (c *FakeConn) Raw() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.sent...)
}

// Messages decodes every sent message as a JSON object.
func (c *FakeConn) Messages() []map[string]any {
	raw := c.Raw()
	out := make([]map[string]any, 0, len(raw))
	for _, b := range raw {
		var m map[string]any
		if err := json.Unmarshal(b, &m); err == nil {
			out = append(out, m)
		}
	}
	return out
}

func (c *FakeConn) Types() []string {
	msgs := c.Messages()
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		t, _ := m["type"].(string)
		out = append(out, t)
	}
	return out
}

// Last returns the most recent message of the given type, nil if none.
func (c *FakeConn) Last(typ string) map[string]any {
	msgs := c.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i]["type"] == typ {
			return msgs[i]
		}
	}
	return nil
}

// FakeAI answers completions through Respond and records every prompt.
type FakeAI struct {
	Respond func(p ai.Prompt) (string, error)

	mu    sync.Mutex
	calls []ai.Prompt
}

var _ ai.TextService = (*FakeAI)(nil)

func (f *FakeAI) Complete(_ context.Context, p ai.Prompt) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, p)
	respond := f.Respond
	f.mu.Unlock()
	if respond == nil {
		return "", ai.ErrDisabled
	}
	return respond(p)
}

func (f *FakeAI) Calls() []ai.Prompt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ai.Prompt(nil), f.calls...)
}

// ReplyWith returns a FakeAI answering every prompt with text.
func ReplyWith(text string) *FakeAI {
	return &FakeAI{Respond: func(ai.Prompt) (string, error) { return text, nil }}
}

// FailWith returns a FakeAI failing every prompt with err.
func FailWith(err error) *FakeAI {
	return &FakeAI{Respond: func(ai.Prompt) (string, error) { return "", err }}
}
