package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps actor storage in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	data   map[string]map[string][]byte
	alarms map[string]time.Time
}

var _ Storage = (*MemoryStore)(nil)

func NewMemory() *MemoryStore {
	return &MemoryStore{
		data:   map[string]map[string][]byte{},
		alarms: map[string]time.Time{},
	}
}

func (m *MemoryStore) Get(_ context.Context, actorKey, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[actorKey][key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *MemoryStore) Put(_ context.Context, actorKey, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket := m.data[actorKey]
	if bucket == nil {
		bucket = map[string][]byte{}
		m.data[actorKey] = bucket
	}
	v := make([]byte, len(value))
	copy(v, value)
	bucket[key] = v
	return nil
}

func (m *MemoryStore) DeleteAll(_ context.Context, actorKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, actorKey)
	return nil
}

func (m *MemoryStore) SetAlarm(_ context.Context, actorKey string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alarms[actorKey] = at
	return nil
}

func (m *MemoryStore) DeleteAlarm(_ context.Context, actorKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.alarms, actorKey)
	return nil
}

func (m *MemoryStore) ListAlarms(_ context.Context) ([]Alarm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Alarm, 0, len(m.alarms))
	for key, at := range m.alarms {
		out = append(out, Alarm{ActorKey: key, WakeAt: at})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WakeAt.Before(out[j].WakeAt) })
	return out, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() {}
