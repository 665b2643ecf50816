package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const eventKeyPrefix = "payment:event:"

// RedisEventDeduper is the fast-path webhook deduplication store. SETNX with
// a TTL makes the mark atomic across instances; the payment history table
// remains the authoritative record.
type RedisEventDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisEventDeduper creates a deduper sharing an existing Redis client
func NewRedisEventDeduper(client *redis.Client, ttl time.Duration) *RedisEventDeduper {
	return &RedisEventDeduper{
		client: client,
		ttl:    ttl,
	}
}

// MarkIfFirst returns true the first time eventID is seen within the TTL
func (d *RedisEventDeduper) MarkIfFirst(ctx context.Context, eventID string) (bool, error) {
	first, err := d.client.SetNX(ctx, eventKeyPrefix+eventID, "1", d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark event: %w", err)
	}
	return first, nil
}

// Unmark deletes an event mark, letting a redelivery pass the fast path
func (d *RedisEventDeduper) Unmark(ctx context.Context, eventID string) error {
	if err := d.client.Del(ctx, eventKeyPrefix+eventID).Err(); err != nil {
		return fmt.Errorf("failed to unmark event: %w", err)
	}
	return nil
}

// NewRedisClient builds a Redis client and verifies the connection
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}
