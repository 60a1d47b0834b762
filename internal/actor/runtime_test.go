package actor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"multiplayer/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConn struct{ id string }

func (c stubConn) ID() string        { return c.id }
func (c stubConn) Send([]byte) error { return nil }
func (c stubConn) Close(int, string) {}

type recorder struct {
	host   *Context
	mu     sync.Mutex
	events []string
	notify chan string
}

func (h *recorder) record(ev string) {
	h.mu.Lock()
	h.events = append(h.events, ev)
	h.mu.Unlock()
	h.notify <- ev
}

func (h *recorder) OnConnect(_ context.Context, c Conn) { h.record("connect:" + c.ID()) }
func (h *recorder) OnMessage(_ context.Context, c Conn, msg []byte) {
	h.record("message:" + c.ID() + ":" + string(msg))
}
func (h *recorder) OnClose(_ context.Context, c Conn, code int, _ string) {
	h.record(fmt.Sprintf("close:%s:%d", c.ID(), code))
}
func (h *recorder) OnAlarm(context.Context) { h.record("alarm") }

func newRecordingRuntime(t *testing.T, st store.Storage, opts ...Option) (*Runtime, func() *recorder) {
	t.Helper()
	var (
		mu   sync.Mutex
		last *recorder
	)
	rt := NewRuntime(st, opts...)
	rt.Register("echo", func(c *Context) Handler {
		h := &recorder{host: c, notify: make(chan string, 64)}
		mu.Lock()
		last = h
		mu.Unlock()
		return h
	})
	t.Cleanup(func() { _ = rt.Shutdown(context.Background()) })
	return rt, func() *recorder {
		mu.Lock()
		defer mu.Unlock()
		return last
	}
}

func waitEvent(t *testing.T, h *recorder) string {
	t.Helper()
	select {
	case ev := <-h.notify:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
		return ""
	}
}

func TestConnectUnknownGameType(t *testing.T) {
	rt, _ := newRecordingRuntime(t, store.NewMemory())
	_, err := rt.Connect("chess", "g1", stubConn{id: "c1"})
	require.True(t, errors.Is(err, ErrUnknownGameType), "got %v", err)
	assert.Equal(t, 0, rt.Len())
}

func TestContextSerializesEventsInOrder(t *testing.T) {
	rt, handler := newRecordingRuntime(t, store.NewMemory())
	conn := stubConn{id: "c1"}
	c, err := rt.Connect("echo", "g1", conn)
	require.NoError(t, err)
	h := handler()
	assert.Equal(t, "connect:c1", waitEvent(t, h))

	for i := 0; i < 5; i++ {
		require.NoError(t, c.Deliver(conn, []byte(fmt.Sprint(i))))
	}
	for i := 0; i < 5; i++ {
		assert.Equal(t, fmt.Sprintf("message:c1:%d", i), waitEvent(t, h))
	}

	same, err := rt.Connect("echo", "g1", stubConn{id: "c2"})
	require.NoError(t, err)
	assert.Same(t, c, same)
	assert.Equal(t, "connect:c2", waitEvent(t, h))
	assert.Len(t, c.Connections(), 2)

	c.Disconnect(conn, 1000, "bye")
	assert.Equal(t, "close:c1:1000", waitEvent(t, h))
	conns := c.Connections()
	require.Len(t, conns, 1)
	assert.Equal(t, "c2", conns[0].ID())
}

func TestContextStorageIsScoped(t *testing.T) {
	st := store.NewMemory()
	rt, _ := newRecordingRuntime(t, st)
	a, err := rt.Context("echo", "a")
	require.NoError(t, err)
	b, err := rt.Context("echo", "b")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, a.Put(ctx, "games", []byte(`[1]`)))
	_, err = b.Get(ctx, "games")
	assert.True(t, errors.Is(err, store.ErrNotFound))

	raw, err := st.Get(ctx, "echo:a", "games")
	require.NoError(t, err)
	assert.Equal(t, `[1]`, string(raw))
}

func TestAlarmFiresAndClearsRecord(t *testing.T) {
	st := store.NewMemory()
	rt, handler := newRecordingRuntime(t, st)
	c, err := rt.Context("echo", "g1")
	require.NoError(t, err)
	h := handler()

	require.NoError(t, c.SetAlarm(context.Background(), time.Now().Add(20*time.Millisecond)))
	_, pending := c.Alarm()
	assert.True(t, pending)

	assert.Equal(t, "alarm", waitEvent(t, h))
	_, pending = c.Alarm()
	assert.False(t, pending)
	alarms, err := st.ListAlarms(context.Background())
	require.NoError(t, err)
	assert.Empty(t, alarms)
}

func TestSetAlarmReplacesEarlierAlarm(t *testing.T) {
	rt, handler := newRecordingRuntime(t, store.NewMemory())
	c, err := rt.Context("echo", "g1")
	require.NoError(t, err)
	h := handler()

	require.NoError(t, c.SetAlarm(context.Background(), time.Now().Add(10*time.Millisecond)))
	require.NoError(t, c.SetAlarm(context.Background(), time.Now().Add(time.Hour)))

	select {
	case ev := <-h.notify:
		t.Fatalf("unexpected event %q", ev)
	case <-time.After(100 * time.Millisecond):
	}
	require.NoError(t, c.DeleteAlarm(context.Background()))
}

func TestRestoreAlarmsWakesContexts(t *testing.T) {
	st := store.NewMemory()
	require.NoError(t, st.SetAlarm(context.Background(), "echo:restored", time.Now().Add(-time.Second)))
	require.NoError(t, st.SetAlarm(context.Background(), "chess:ignored", time.Now().Add(-time.Second)))

	rt, handler := newRecordingRuntime(t, st)
	require.NoError(t, rt.RestoreAlarms(context.Background()))
	require.Equal(t, 1, rt.Len())

	assert.Equal(t, "alarm", waitEvent(t, handler()))
}

func TestScheduleCancel(t *testing.T) {
	rt, _ := newRecordingRuntime(t, store.NewMemory())
	c, err := rt.Context("echo", "g1")
	require.NoError(t, err)

	ran := make(chan string, 2)
	cancel := c.Schedule(10*time.Millisecond, func(context.Context) { ran <- "cancelled" })
	cancel()
	c.Schedule(20*time.Millisecond, func(context.Context) { ran <- "kept" })

	select {
	case v := <-ran:
		assert.Equal(t, "kept", v)
	case <-time.After(2 * time.Second):
		t.Fatalf("scheduled callback did not run")
	}
	select {
	case v := <-ran:
		t.Fatalf("unexpected callback %q", v)
	case <-time.After(50 * time.Millisecond):
	}
	cancel()
}

func TestSweepIdleEvictsOnlyIdleContexts(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	rt, _ := newRecordingRuntime(t, store.NewMemory(), WithClock(clock), WithIdleTTL(time.Minute))

	_, err := rt.Context("echo", "idle")
	require.NoError(t, err)
	busy, err := rt.Connect("echo", "busy", stubConn{id: "c1"})
	require.NoError(t, err)
	waiting, err := rt.Context("echo", "waiting")
	require.NoError(t, err)
	waiting.armAlarm(now.Add(time.Hour))

	assert.Equal(t, 0, rt.sweepIdle(clock()))

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()
	assert.Equal(t, 1, rt.sweepIdle(clock()))
	assert.Equal(t, 2, rt.Len())

	_, err = rt.Context("echo", "idle")
	require.NoError(t, err)
	assert.Equal(t, 3, rt.Len())
	assert.Len(t, busy.Connections(), 1)
}

func TestPostAfterShutdown(t *testing.T) {
	rt, _ := newRecordingRuntime(t, store.NewMemory())
	c, err := rt.Context("echo", "g1")
	require.NoError(t, err)
	require.NoError(t, rt.Shutdown(context.Background()))

	assert.True(t, errors.Is(c.Post(func(context.Context) {}), ErrStopped))
	_, err = rt.Connect("echo", "g2", stubConn{id: "c"})
	assert.True(t, errors.Is(err, ErrStopped))
}
