package redisx

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-order-settlement/internal/orders"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// IdempotencyIndex maps (user, idempotency key) to the order it created.
// Redis failures are logged and read as misses; the orders table keeps the
// unique key and decides.
type IdempotencyIndex struct {
	RDB    *redis.Client
	Logger *zap.Logger
}

var _ orders.IdempotencyIndex = (*IdempotencyIndex)(nil)

func (x *IdempotencyIndex) Lookup(ctx context.Context, userID int64, key string) (string, bool) {
	id, err := x.RDB.Get(ctx, IdemOrderCreateKey(userID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		x.logger().Warn("idempotency lookup failed", zap.Int64("user_id", userID), zap.Error(err))
		return "", false
	}
	return id, id != ""
}

// Remember keeps the first order recorded for the key.
func (x *IdempotencyIndex) Remember(ctx context.Context, userID int64, key, orderID string) {
	if err := x.RDB.SetNX(ctx, IdemOrderCreateKey(userID, key), orderID, TTLIdempotency).Err(); err != nil {
		x.logger().Warn("idempotency write failed",
			zap.Int64("user_id", userID), zap.String("order_id", orderID), zap.Error(err))
	}
}

func (x *IdempotencyIndex) logger() *zap.Logger {
	if x.Logger != nil {
		return x.Logger
	}
	return zap.NewNop()
}
