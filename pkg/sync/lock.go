package sync

import (
	"context"
	"errors"
	"time"

	"github.com/oguidomingos/datagem2/pkg/common/logger"
	"github.com/redis/go-redis/v9"
)

var ErrSyncInProgress = errors.New("a sync for this connection is already running")

// Locker serializes sync runs per connection id, so two concurrent
// triggers for the same connection cannot race on its checkpoint and
// catalog files.
type Locker interface {
	Acquire(ctx context.Context, connectionID string) error
	Release(ctx context.Context, connectionID string)
}

// RedisLock implements Locker with SET NX and a TTL, so a crashed run
// cannot hold a connection hostage forever. Lock transport failures are
// tolerated: a sync proceeds unserialized rather than not at all.
type RedisLock struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLock(client *redis.Client, ttl time.Duration) *RedisLock {
	return &RedisLock{client: client, ttl: ttl}
}

func (l *RedisLock) Acquire(ctx context.Context, connectionID string) error {
	ok, err := l.client.SetNX(ctx, lockKey(connectionID), time.Now().UTC().Format(time.RFC3339), l.ttl).Result()
	if err != nil {
		logger.Log.WithError(err).WithField("connection_id", connectionID).
			Warn("Sync lock unavailable, proceeding without serialization")
		return nil
	}
	if !ok {
		return ErrSyncInProgress
	}
	return nil
}

func (l *RedisLock) Release(ctx context.Context, connectionID string) {
	if err := l.client.Del(ctx, lockKey(connectionID)).Err(); err != nil {
		logger.Log.WithError(err).WithField("connection_id", connectionID).
			Warn("Failed to release sync lock")
	}
}

func lockKey(connectionID string) string {
	return "sync:lock:" + connectionID
}
