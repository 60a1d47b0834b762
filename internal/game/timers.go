package game

import (
	"context"
	"math"
	"time"
)

const (
	PurposeCountdown = "countdown"
	PurposeReview    = "review"
)

type timerKey struct {
	room    string
	purpose string
}

// timerArena owns every timer handle of a machine. Setting a handle cancels
// the previous one with the same key.
type timerArena struct {
	cancels map[timerKey]func()
}

func newTimerArena() *timerArena {
	return &timerArena{cancels: map[timerKey]func(){}}
}

func (a *timerArena) set(k timerKey, cancel func()) {
	a.cancel(k)
	a.cancels[k] = cancel
}

func (a *timerArena) cancel(k timerKey) bool {
	cancel, ok := a.cancels[k]
	if !ok {
		return false
	}
	delete(a.cancels, k)
	cancel()
	return true
}

// release forgets a handle whose timer already fired.
func (a *timerArena) release(k timerKey) {
	delete(a.cancels, k)
}

func (a *timerArena) active(k timerKey) bool {
	_, ok := a.cancels[k]
	return ok
}

func (a *timerArena) cancelRoom(room string) {
	for k, cancel := range a.cancels {
		if k.room == room {
			delete(a.cancels, k)
			cancel()
		}
	}
}

func (m *Machine) CancelTimer(roomID, purpose string) bool {
	return m.timers.cancel(timerKey{room: roomID, purpose: purpose})
}

func (m *Machine) TimerActive(roomID, purpose string) bool {
	return m.timers.active(timerKey{room: roomID, purpose: purpose})
}

// StartRoomTimer starts the one second countdown for an active room. Each
// tick recomputes timeRemaining from endTime and broadcasts; the tick that
// reaches zero stops the countdown and runs the timeout hook.
func (m *Machine) StartRoomTimer(room *Room) {
	key := timerKey{room: room.ID, purpose: PurposeCountdown}
	var tick func(ctx context.Context)
	tick = func(ctx context.Context) {
		m.timers.release(key)
		r := m.rooms[key.room]
		if r == nil {
			return
		}
		b := r.State.Base()
		deadline, ok := b.Deadline()
		if !b.IsActive || !ok {
			return
		}
		b.TimeRemaining = RemainingSeconds(deadline, m.now())
		m.BroadcastState(r)
		if b.TimeRemaining <= 0 {
			m.timeout(ctx, r)
			return
		}
		m.timers.set(key, m.host.Schedule(time.Second, tick))
	}
	m.timers.set(key, m.host.Schedule(time.Second, tick))
}

// After runs fn for a room once d has elapsed, replacing any timer with the
// same purpose. The room state is broadcast when fn reports a change.
func (m *Machine) After(roomID, purpose string, d time.Duration, fn func(ctx context.Context, room *Room) (bool, error)) {
	key := timerKey{room: roomID, purpose: purpose}
	m.timers.set(key, m.host.Schedule(d, func(ctx context.Context) {
		m.timers.release(key)
		room := m.rooms[roomID]
		if room == nil {
			return
		}
		changed, err := fn(ctx, room)
		if err != nil {
			m.log.Error().Err(err).Str("game_id", roomID).Str("purpose", purpose).Msg("room timer")
			return
		}
		if changed {
			m.BroadcastState(room)
		}
	}))
}

// RemainingSeconds is ceil((deadline-now)/1s), never negative.
func RemainingSeconds(deadline, now time.Time) int {
	d := deadline.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
