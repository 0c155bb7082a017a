package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/ayurlekha/processing-engine/internal/domain/providers"
	redisclient "github.com/ayurlekha/processing-engine/internal/infrastructure/clients/redis"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockKeyPrefix = "ayurlekha:lock:patient:"

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock implements PatientLock with SET NX and a token-checked release
type RedisLock struct {
	client *redisclient.Client
}

var _ providers.PatientLock = (*RedisLock)(nil)

// NewRedisLock creates a new Redis patient lock
func NewRedisLock(client *redisclient.Client) *RedisLock {
	return &RedisLock{client: client}
}

// Acquire takes the patient's lock for ttl. ok is false if another run holds it.
func (l *RedisLock) Acquire(ctx context.Context, patientID string, ttl time.Duration) (func(context.Context) error, bool, error) {
	key := LockKey(patientID)
	token := uuid.NewString()

	acquired, err := l.client.Client().SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !acquired {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client.Client(), []string{key}, token).Err(); err != nil && err != redis.Nil {
			return fmt.Errorf("failed to release lock %s: %w", key, err)
		}
		return nil
	}
	return release, true, nil
}

// LockKey returns the Redis key guarding a patient
func LockKey(patientID string) string {
	return lockKeyPrefix + patientID
}
