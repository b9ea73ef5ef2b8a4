package businessflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RunLocker serializes reconciliation runs that write the same ledger.
// Acquire fails with ErrRunInProgress when another run holds the lock.
type RunLocker interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// LocalRunLocker guards runs within one process
type LocalRunLocker struct {
	mu sync.Mutex
}

func NewLocalRunLocker() *LocalRunLocker {
	return &LocalRunLocker{}
}

func (l *LocalRunLocker) Acquire(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !l.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	var once sync.Once
	return func() { once.Do(l.mu.Unlock) }, nil
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisRunLocker guards runs across processes sharing one redis
type RedisRunLocker struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

func NewRedisRunLocker(client redis.UniversalClient, key string, ttl time.Duration) *RedisRunLocker {
	return &RedisRunLocker{client: client, key: key, ttl: ttl}
}

func (l *RedisRunLocker) Acquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !ok {
		return nil, ErrRunInProgress
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// Release on a fresh context so a cancelled request still frees the lock
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = releaseScript.Run(releaseCtx, l.client, []string{l.key}, token).Err()
		})
	}, nil
}
