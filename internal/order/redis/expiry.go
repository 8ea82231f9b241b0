package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"

	"wifihub/internal/logger"
)

const expiredChannel = "__keyevent@%d__:expired"

// WatchExpiredLocks reports order locks that ran out their TTL instead of
// being released, which means a webhook worker stalled or died while holding
// one. It returns when ctx is done.
func WatchExpiredLocks(ctx context.Context, client *redis.Client, log *logger.Logger, onExpired func(orderID string)) {
	if err := client.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err(); err != nil {
		log.Warn("REDIS", fmt.Sprintf("Failed to enable keyspace notifications: %v", err))
	}

	pubsub := client.PSubscribe(ctx, fmt.Sprintf(expiredChannel, client.Options().DB))
	defer pubsub.Close()
	log.Info("REDIS", fmt.Sprintf("Watching expired order locks (DB %d)", client.Options().DB))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if !strings.HasPrefix(msg.Payload, lockKeyPrefix) {
				continue
			}
			orderID := strings.TrimPrefix(msg.Payload, lockKeyPrefix)
			log.Warn("REDIS", fmt.Sprintf("Order lock for %s expired before release", orderID))
			if onExpired != nil {
				onExpired(orderID)
			}
		}
	}
}
