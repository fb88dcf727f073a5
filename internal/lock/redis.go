package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	DefaultTTL        = 30 * time.Second
	redisRetryBackoff = 50 * time.Millisecond
	redisRetryLimit   = 100
	redisKeyPrefix    = "panelbot:lock:"
)

// RedisLocker locks keys across processes sharing one Redis instance.
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisLocker pings addr and returns a locker backed by it.
func NewRedisLocker(ctx context.Context, addr string, ttl time.Duration, logger *zap.Logger) (*RedisLocker, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisLocker{client: redislock.New(rdb), ttl: ttl, logger: logger}, nil
}

func (r *RedisLocker) Acquire(ctx context.Context, keys []string) (func(), error) {
	ordered := Sorted(keys)
	held := make([]*redislock.Lock, 0, len(ordered))

	release := func() {
		// Release must not depend on the caller's context being alive.
		relCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for i := len(held) - 1; i >= 0; i-- {
			if err := held[i].Release(relCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				r.logger.Warn("failed to release lock", zap.String("key", held[i].Key()), zap.Error(err))
			}
		}
	}

	opts := &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(redisRetryBackoff), redisRetryLimit),
	}

	for _, key := range ordered {
		lk, err := r.client.Obtain(ctx, redisKeyPrefix+key, r.ttl, opts)
		if errors.Is(err, redislock.ErrNotObtained) {
			release()
			return nil, fmt.Errorf("%w: %s", ErrNotObtained, key)
		}
		if err != nil {
			release()
			return nil, fmt.Errorf("obtaining lock %s: %w", key, err)
		}
		held = append(held, lk)
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		release()
	}, nil
}
