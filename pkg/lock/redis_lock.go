package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"go.uber.org/zap"
)

// ErrLocked is returned when another worker currently holds the key.
var ErrLocked = errors.New("resource is locked")

// ReleaseFunc frees a previously acquired lock. It is always safe to call.
type ReleaseFunc func()

// Locker hands out short-lived advisory locks backed by Redis.
//
// Locks are best-effort: when Redis cannot be reached the caller proceeds
// without one and relies on the database guard instead.
type Locker struct {
	client *redislock.Client
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

// New constructs a Locker. A nil client yields a Locker that never blocks.
func New(client redislock.RedisClient, ttl time.Duration, logger *zap.Logger) *Locker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	l := &Locker{ttl: ttl, prefix: "lock:", logger: logger}
	if client != nil {
		l.client = redislock.New(client)
	}
	return l
}

// Key renders the lock key for a resource kind and identifier.
func (l *Locker) Key(kind, id string) string {
	prefix := "lock:"
	if l != nil {
		prefix = l.prefix
	}
	return fmt.Sprintf("%s%s:%s", prefix, kind, id)
}

// Acquire obtains the lock for key. ErrLocked means someone else holds it.
func (l *Locker) Acquire(ctx context.Context, key string) (ReleaseFunc, error) {
	noop := func() {}
	if l == nil || l.client == nil {
		return noop, nil
	}

	held, err := l.client.Obtain(ctx, key, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return noop, ErrLocked
	}
	if err != nil {
		l.logger.Warn("redis lock unavailable; proceeding without lock", zap.String("key", key), zap.Error(err))
		return noop, nil
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := held.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.Warn("failed to release redis lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}
