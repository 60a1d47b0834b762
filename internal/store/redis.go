package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisAlarmsKey = "actor_alarms"

// RedisStore keeps one hash per actor and a sorted set of alarms scored by
// wake time in unix milliseconds.
type RedisStore struct {
	client *redis.Client
}

var _ Storage = (*RedisStore)(nil)

func NewRedis(ctx context.Context, rawURL string) (*RedisStore, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func NewRedisFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func actorHashKey(actorKey string) string {
	return "actor:" + actorKey
}

func (r *RedisStore) Get(ctx context.Context, actorKey, key string) ([]byte, error) {
	v, err := r.client.HGet(ctx, actorHashKey(actorKey), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return v, err
}

func (r *RedisStore) Put(ctx context.Context, actorKey, key string, value []byte) error {
	return r.client.HSet(ctx, actorHashKey(actorKey), key, value).Err()
}

func (r *RedisStore) DeleteAll(ctx context.Context, actorKey string) error {
	return r.client.Del(ctx, actorHashKey(actorKey)).Err()
}

func (r *RedisStore) SetAlarm(ctx context.Context, actorKey string, at time.Time) error {
	return r.client.ZAdd(ctx, redisAlarmsKey, redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: actorKey,
	}).Err()
}

func (r *RedisStore) DeleteAlarm(ctx context.Context, actorKey string) error {
	return r.client.ZRem(ctx, redisAlarmsKey, actorKey).Err()
}

func (r *RedisStore) ListAlarms(ctx context.Context) ([]Alarm, error) {
	members, err := r.client.ZRangeWithScores(ctx, redisAlarmsKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Alarm, 0, len(members))
	for _, m := range members {
		key, ok := m.Member.(string)
		if !ok {
			key = fmt.Sprint(m.Member)
		}
		out = append(out, Alarm{ActorKey: key, WakeAt: time.UnixMilli(int64(m.Score))})
	}
	return out, nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() {
	_ = r.client.Close()
}

