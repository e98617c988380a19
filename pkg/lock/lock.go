// Package lock serialises read-modify-write sequences on a single record.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrBusy is returned when a lock could not be obtained within the configured wait.
var ErrBusy = errors.New("lock: record busy")

// Release frees a previously acquired lock. It is safe to call more than once.
type Release func()

// Locker grants exclusive access to a key.
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

// RedisLocker coordinates across processes using redislock.
type RedisLocker struct {
	client *redislock.Client
	prefix string
	ttl    time.Duration
	wait   time.Duration
	logger *zap.Logger
}

// NewRedisLocker builds a locker on top of an existing Redis client.
func NewRedisLocker(rdb *redis.Client, prefix string, ttl, wait time.Duration, logger *zap.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLocker{
		client: redislock.New(rdb),
		prefix: prefix + "lock:",
		ttl:    ttl,
		wait:   wait,
		logger: logger,
	}
}

// Acquire obtains the lock, retrying every 50ms until the wait budget is spent.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (Release, error) {
	opts := &redislock.Options{}
	if l.wait > 0 {
		retries := int(l.wait / (50 * time.Millisecond))
		if retries < 1 {
			retries = 1
		}
		opts.RetryStrategy = redislock.LimitRetry(redislock.LinearBackoff(50*time.Millisecond), retries)
	}

	lk, err := l.client.Obtain(ctx, l.prefix+key, l.ttl, opts)
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, ErrBusy
		}
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// A background context lets the release go through even after the request is cancelled.
			if err := lk.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				l.logger.Warn("release lock", zap.String("key", key), zap.Error(err))
			}
		})
	}, nil
}

// LocalLocker is an in-process keyed mutex used with the memory and Postgres backends.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
	wait  time.Duration
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker builds an in-process locker. A zero wait blocks until ctx is done.
func NewLocalLocker(wait time.Duration) *LocalLocker {
	return &LocalLocker{slots: make(map[string]*slot), wait: wait}
}

// Acquire blocks until key is free, the wait elapses or ctx ends.
func (l *LocalLocker) Acquire(ctx context.Context, key string) (Release, error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	var timeout <-chan time.Time
	if l.wait > 0 {
		timer := time.NewTimer(l.wait)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case s.ch <- struct{}{}:
	case <-timeout:
		l.unref(key, s)
		return nil, ErrBusy
	case <-ctx.Done():
		l.unref(key, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.unref(key, s)
		})
	}, nil
}

func (l *LocalLocker) unref(key string, s *slot) {
	l.mu.Lock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
	l.mu.Unlock()
}
