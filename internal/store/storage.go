package store

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
)

var ErrNotFound = errors.New("not found")

// Alarm is a persisted wake-up for one actor context.
type Alarm struct {
	ActorKey string
	WakeAt   time.Time
}

// Storage is the durable key-value store backing actor contexts. Every key
// is scoped to an actor key; alarms are one per actor.
type Storage interface {
	Get(ctx context.Context, actorKey, key string) ([]byte, error)
	Put(ctx context.Context, actorKey, key string, value []byte) error
	DeleteAll(ctx context.Context, actorKey string) error

	SetAlarm(ctx context.Context, actorKey string, at time.Time) error
	DeleteAlarm(ctx context.Context, actorKey string) error
	ListAlarms(ctx context.Context) ([]Alarm, error)

	Ping(ctx context.Context) error
	Close()
}

// NewID returns a monotonic ULID string, used for room ids.
func NewID() string {
	return ulid.Make().String()
}
