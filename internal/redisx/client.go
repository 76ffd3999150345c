package redisx

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// Ping is used by the health check and at startup.
func Ping(ctx context.Context, rdb *redis.Client) error {
	return rdb.Ping(ctx).Err()
}

// MarkProcessed records eventID for consumer and reports whether this is the
// first time it was seen. A false result means the event is a redelivery.
func MarkProcessed(ctx context.Context, rdb *redis.Client, consumer, eventID string) (bool, error) {
	return rdb.SetNX(ctx, DedupKey(consumer, eventID), 1, TTLDedup).Result()
}

// Forget removes a dedup mark so a failed event can be processed again.
func Forget(ctx context.Context, rdb *redis.Client, consumer, eventID string) error {
	return rdb.Del(ctx, DedupKey(consumer, eventID)).Err()
}
