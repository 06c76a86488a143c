// Package redis implements the optional checkout idempotency store on
// Redis. When no Redis address is configured the application runs without
// it and checkout behaves exactly as the base system: retries re-use the
// still-present cart lines.
package redis

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
)

// IdempotencyStore remembers the result of a keyed operation for a TTL so
// that replays return the original result instead of repeating the effect.
type IdempotencyStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewIdempotencyStore returns a store using the given client and TTL.
func NewIdempotencyStore(rdb *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{rdb: rdb, ttl: ttl}
}

// TryLock claims scope:key for the first caller. It returns false when
// another request already claimed the key.
func (s *IdempotencyStore) TryLock(ctx context.Context, scope, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, "idemp:lock:"+scope+":"+key, "1", s.ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, "idempotency lock")
	}
	return ok, nil
}

// Release frees the lock for scope:key so the key can be claimed again.
// Called when the locked operation failed and produced no result.
func (s *IdempotencyStore) Release(ctx context.Context, scope, key string) error {
	if err := s.rdb.Del(ctx, "idemp:lock:"+scope+":"+key).Err(); err != nil {
		return errors.Wrap(err, "idempotency release")
	}
	return nil
}

// Remember stores the result value for scope:key.
func (s *IdempotencyStore) Remember(ctx context.Context, scope, key, value string) error {
	if err := s.rdb.Set(ctx, "idemp:result:"+scope+":"+key, value, s.ttl).Err(); err != nil {
		return errors.Wrap(err, "idempotency remember")
	}
	return nil
}

// Recall returns the stored result for scope:key, if any.
func (s *IdempotencyStore) Recall(ctx context.Context, scope, key string) (string, bool, error) {
	val, err := s.rdb.Get(ctx, "idemp:result:"+scope+":"+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "idempotency recall")
	}
	return val, true, nil
}
