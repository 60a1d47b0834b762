package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"multiplayer/internal/store"
)

// ensureLoaded rehydrates rooms from storage once per machine. Active rooms
// with a future deadline get their countdown restarted.
func (m *Machine) ensureLoaded(ctx context.Context) error {
	if m.loaded {
		return nil
	}
	raw, err := m.host.Get(ctx, storageKey)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("read rooms: %w", err)
	}
	if err == nil {
		rooms, err := decodeRooms(raw, m.rules.DecodeState)
		if err != nil {
			return err
		}
		for _, r := range rooms {
			m.rooms[r.ID] = r
			m.order = append(m.order, r.ID)
		}
	}
	m.loaded = true

	now := m.now()
	for _, r := range m.Rooms() {
		b := r.State.Base()
		if deadline, ok := b.Deadline(); ok && b.IsActive && deadline.After(now) {
			m.StartRoomTimer(r)
		}
	}
	if len(m.rooms) > 0 {
		m.log.Debug().Int("rooms", len(m.rooms)).Msg("rooms loaded")
	}
	return nil
}

// Persist writes every room under one key, then arms the durable alarm at
// the earliest room deadline. With no rooms left it clears the storage of
// the whole context.
func (m *Machine) Persist(ctx context.Context) error {
	if len(m.rooms) == 0 {
		if err := m.host.DeleteAll(ctx); err != nil {
			return &PersistError{Err: err}
		}
		return m.syncAlarm(ctx)
	}
	raw, err := encodeRooms(m.Rooms())
	if err != nil {
		return &PersistError{Err: err}
	}
	if err := m.host.Put(ctx, storageKey, raw); err != nil {
		persistFailures.WithLabelValues(m.rules.Type()).Inc()
		return &PersistError{Err: err}
	}
	return m.syncAlarm(ctx)
}

func (m *Machine) syncAlarm(ctx context.Context) error {
	var earliest time.Time
	for _, r := range m.Rooms() {
		if d, ok := r.State.Base().Deadline(); ok && (earliest.IsZero() || d.Before(earliest)) {
			earliest = d
		}
	}
	switch {
	case earliest.IsZero() && !m.alarmAt.IsZero():
		if err := m.host.DeleteAlarm(ctx); err != nil {
			return &PersistError{Err: fmt.Errorf("delete alarm: %w", err)}
		}
	case !earliest.IsZero() && !earliest.Equal(m.alarmAt):
		if err := m.host.SetAlarm(ctx, earliest); err != nil {
			return &PersistError{Err: fmt.Errorf("set alarm: %w", err)}
		}
	}
	m.alarmAt = earliest
	return nil
}
