// Package cache holds the Redis-backed stores.
package cache

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/pilyang/jwp-shopping-order/internal/domain/order"
)

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, opts *redis.Options) (*redis.Client, error) {
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return rdb, nil
}

var _ order.IdempotencyStore = (*IdempotencyStore)(nil)

// IdempotencyStore keeps idempotency claims and results in Redis. Claims
// live for lockTTL so an abandoned claim frees the key quickly; results live
// for resultTTL.
type IdempotencyStore struct {
	rdb       *redis.Client
	resultTTL time.Duration
	lockTTL   time.Duration
}

// NewIdempotencyStore returns a store whose results expire after resultTTL
// and whose claims expire after lockTTL.
func NewIdempotencyStore(rdb *redis.Client, resultTTL, lockTTL time.Duration) *IdempotencyStore {
	return &IdempotencyStore{rdb: rdb, resultTTL: resultTTL, lockTTL: lockTTL}
}

func lockKey(scope, key string) string   { return "idemp:" + scope + ":" + key }
func resultKey(scope, key string) string { return "idemp:map:" + scope + ":" + key }

func (s *IdempotencyStore) TryLock(ctx context.Context, scope, key string) (bool, error) {
	return s.rdb.SetNX(ctx, lockKey(scope, key), "1", s.lockTTL).Result()
}

func (s *IdempotencyStore) Release(ctx context.Context, scope, key string) error {
	return s.rdb.Del(ctx, lockKey(scope, key)).Err()
}

func (s *IdempotencyStore) Remember(ctx context.Context, scope, key, value string) error {
	return s.rdb.Set(ctx, resultKey(scope, key), value, s.resultTTL).Err()
}

func (s *IdempotencyStore) Recall(ctx context.Context, scope, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, resultKey(scope, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}
