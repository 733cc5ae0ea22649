package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "reelsmith:progress:"
	maxRetries = 5
)

// RedisTracker stores state as JSON values with a key TTL, so several
// service instances can answer progress polls for each other's runs.
type RedisTracker struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisTracker connects using a redis:// URL.
func NewRedisTracker(url string, ttl time.Duration, logger *slog.Logger) (*RedisTracker, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not reachable yet", "addr", opts.Addr, "error", err)
	}
	return &RedisTracker{client: rdb, ttl: ttl, logger: logger}, nil
}

func key(id string) string {
	return keyPrefix + id
}

func (r *RedisTracker) Update(ctx context.Context, id string, p Patch) error {
	k := key(id)
	txf := func(tx *redis.Tx) error {
		prev, err := readState(ctx, tx, k)
		if err != nil {
			return err
		}
		next, err := json.Marshal(prev.Apply(p, time.Now()))
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, next, r.ttl)
			return nil
		})
		return err
	}

	for range maxRetries {
		err := r.client.Watch(ctx, txf, k)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("update progress %s: %w", id, err)
		}
		return nil
	}
	return fmt.Errorf("update progress %s: too much contention", id)
}

func (r *RedisTracker) Get(ctx context.Context, id string) (State, error) {
	return readState(ctx, r.client, key(id))
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readState(ctx context.Context, c getter, k string) (State, error) {
	raw, err := c.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return Pending(), nil
	}
	if err != nil {
		return State{}, fmt.Errorf("read progress: %w", err)
	}
	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		return State{}, fmt.Errorf("decode progress: %w", err)
	}
	return s, nil
}

// Close releases the connection pool.
func (r *RedisTracker) Close() error {
	return r.client.Close()
}
