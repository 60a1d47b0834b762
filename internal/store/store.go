package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the Postgres-backed actor storage.
type Store struct {
	Pool *pgxpool.Pool
}

var _ Storage = (*Store)(nil)

func New(dsn string) (*Store, error) {
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.Pool.Ping(ctx)
}

func (s *Store) Get(ctx context.Context, actorKey, key string) ([]byte, error) {
	var value []byte
	err := s.Pool.QueryRow(ctx,
		`SELECT value FROM actor_storage WHERE actor_key = $1 AND key = $2`,
		actorKey, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *Store) Put(ctx context.Context, actorKey, key string, value []byte) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO actor_storage (actor_key, key, value, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (actor_key, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		actorKey, key, value,
	)
	return err
}

func (s *Store) DeleteAll(ctx context.Context, actorKey string) error {
	_, err := s.Pool.Exec(ctx, `DELETE FROM actor_storage WHERE actor_key = $1`, actorKey)
	return err
}

func (s *Store) SetAlarm(ctx context.Context, actorKey string, at time.Time) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO actor_alarms (actor_key, wake_at)
		VALUES ($1, $2)
		ON CONFLICT (actor_key) DO UPDATE SET wake_at = EXCLUDED.wake_at`,
		actorKey, at.UTC(),
	)
	return err
}

func (s *Store) DeleteAlarm(ctx context.Context, actorKey string) error {
	_, err := s.Pool.Exec(ctx, `DELETE FROM actor_alarms WHERE actor_key = $1`, actorKey)
	return err
}

func (s *Store) ListAlarms(ctx context.Context) ([]Alarm, error) {
	rows, err := s.Pool.Query(ctx, `SELECT actor_key, wake_at FROM actor_alarms ORDER BY wake_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Alarm{}
	for rows.Next() {
		var a Alarm
		if err := rows.Scan(&a.ActorKey, &a.WakeAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
