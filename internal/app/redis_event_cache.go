package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisEventCache implements EventDeduper with a SET NX + TTL claim per event
// id, shared across replicas. A claim that cannot be made (key exists) means
// the delivery was already processed recently.
type RedisEventCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisEventCache(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisEventCache {
	trimmedPrefix := strings.TrimSpace(prefix)
	if trimmedPrefix == "" {
		trimmedPrefix = "cloudblinker:webhook_events"
	}
	trimmedPrefix = strings.TrimSuffix(trimmedPrefix, ":")

	if ttl <= 0 {
		ttl = time.Hour
	}

	return &RedisEventCache{
		client: client,
		prefix: trimmedPrefix,
		ttl:    ttl,
	}
}

// AlreadySeen claims the event id; false means this delivery holds the claim
// and should be processed.
func (c *RedisEventCache) AlreadySeen(ctx context.Context, eventID string) (bool, error) {
	if c == nil || c.client == nil {
		return false, nil
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return false, nil
	}

	key := fmt.Sprintf("%s:%s", c.prefix, eventID)
	claimed, err := c.client.SetNX(ctx, key, 1, c.ttl).Result()
	if err != nil {
		return false, err
	}
	return !claimed, nil
}

// Forget releases a claim made for a delivery that failed, so the provider's
// redelivery of the same event id is processed instead of suppressed.
func (c *RedisEventCache) Forget(ctx context.Context, eventID string) error {
	if c == nil || c.client == nil {
		return nil
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil
	}
	return c.client.Del(ctx, fmt.Sprintf("%s:%s", c.prefix, eventID)).Err()
}
