package common

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bsm/redislock"
)

var ErrLockNotObtained = errors.New("lock not obtained")

type RedisLockOptions struct {
	TtlS    int
	Retries int
}

// RedisLock hands out named distributed locks and remembers the ones held
// by this process so they can be released by key.
type RedisLock struct {
	client *redislock.Client
	mu     sync.Mutex
	locks  map[string]*redislock.Lock
}

func NewRedisLock(client *RedisClient) *RedisLock {
	return &RedisLock{
		client: redislock.New(client.UniversalClient),
		locks:  make(map[string]*redislock.Lock),
	}
}

func (l *RedisLock) Acquire(ctx context.Context, key string, opts RedisLockOptions) error {
	ttl := time.Duration(opts.TtlS) * time.Second
	if ttl <= 0 {
		ttl = 10 * time.Second
	}

	var strategy redislock.RetryStrategy = redislock.NoRetry()
	if opts.Retries > 0 {
		strategy = redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), opts.Retries)
	}

	lock, err := l.client.Obtain(ctx, key, ttl, &redislock.Options{RetryStrategy: strategy})
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return ErrLockNotObtained
		}
		return err
	}

	l.mu.Lock()
	l.locks[key] = lock
	l.mu.Unlock()
	return nil
}

func (l *RedisLock) Release(key string) error {
	l.mu.Lock()
	lock, ok := l.locks[key]
	delete(l.locks, key)
	l.mu.Unlock()

	if !ok {
		return nil
	}

	err := lock.Release(context.Background())
	if errors.Is(err, redislock.ErrLockNotHeld) {
		return nil
	}
	return err
}
