package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"wifihub/internal/logger"
)

const (
	defaultLockTTL    = 10 * time.Second
	defaultRetries    = 5
	defaultRetryDelay = 100 * time.Millisecond
)

// unlockScript deletes the key only while it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis serializes webhook processing per order with SETNX locks.
type Redis struct {
	Client     *redis.Client
	TTL        time.Duration
	Retries    int
	RetryDelay time.Duration
	Logger     *logger.Logger
}

func NewRedis(client *redis.Client, ttl time.Duration, log *logger.Logger) *Redis {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &Redis{
		Client:     client,
		TTL:        ttl,
		Retries:    defaultRetries,
		RetryDelay: defaultRetryDelay,
		Logger:     log,
	}
}

const lockKeyPrefix = "order_lock:"

func orderLockKey(orderID int64) string {
	return fmt.Sprintf("%s%d", lockKeyPrefix, orderID)
}

// LockOrder tries once to take the lock for orderID on behalf of owner.
func (r *Redis) LockOrder(ctx context.Context, orderID int64, owner string) (bool, error) {
	return r.Client.SetNX(ctx, orderLockKey(orderID), owner, r.TTL).Result()
}

// UnlockOrder releases the lock if owner still holds it.
func (r *Redis) UnlockOrder(ctx context.Context, orderID int64, owner string) error {
	err := unlockScript.Run(ctx, r.Client, []string{orderLockKey(orderID)}, owner).Err()
	if err == redis.Nil {
		return nil
	}
	return err
}

// IsLocked reports whether anybody currently holds the order lock.
func (r *Redis) IsLocked(ctx context.Context, orderID int64) (bool, error) {
	n, err := r.Client.Exists(ctx, orderLockKey(orderID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Acquire retries LockOrder a few times. The returned release func is always
// safe to call; ok is false when the lock could not be taken, in which case
// the caller proceeds unlocked.
func (r *Redis) Acquire(ctx context.Context, orderID int64) (release func(), ok bool) {
	owner := uuid.NewString()
	for attempt := 0; attempt <= r.Retries; attempt++ {
		locked, err := r.LockOrder(ctx, orderID, owner)
		if err != nil {
			r.Logger.Warn("REDIS", fmt.Sprintf("Order lock for %d unavailable: %v", orderID, err))
			return func() {}, false
		}
		if locked {
			return func() {
				if err := r.UnlockOrder(context.Background(), orderID, owner); err != nil {
					r.Logger.Warn("REDIS", fmt.Sprintf("Failed to release order lock %d: %v", orderID, err))
				}
			}, true
		}

		select {
		case <-ctx.Done():
			return func() {}, false
		case <-time.After(r.RetryDelay):
		}
	}
	r.Logger.Warn("REDIS", fmt.Sprintf("Order %d still locked after %d attempts, continuing without lock", orderID, r.Retries+1))
	return func() {}, false
}
