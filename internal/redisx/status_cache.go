package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ariefcatur/go-order-settlement/internal/orders"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type cachedStatus struct {
	Status    orders.Status `json:"status"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// StatusCache keeps the last known status of each order. Errors are logged
// and treated as misses; the store stays the source of truth.
type StatusCache struct {
	RDB    *redis.Client
	Logger *zap.Logger
}

var _ orders.StatusCache = (*StatusCache)(nil)

func (c *StatusCache) Get(ctx context.Context, orderID string) (orders.Status, bool) {
	raw, err := c.RDB.Get(ctx, OrderStatusKey(orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		c.logger().Warn("status cache read failed", zap.String("order_id", orderID), zap.Error(err))
		return "", false
	}
	var v cachedStatus
	if err := json.Unmarshal(raw, &v); err != nil || v.Status == "" {
		return "", false
	}
	return v.Status, true
}

func (c *StatusCache) Set(ctx context.Context, orderID string, status orders.Status) {
	raw, _ := json.Marshal(cachedStatus{Status: status, UpdatedAt: time.Now().UTC()})
	if err := c.RDB.Set(ctx, OrderStatusKey(orderID), raw, TTLStatusCache).Err(); err != nil {
		c.logger().Warn("status cache write failed", zap.String("order_id", orderID), zap.Error(err))
	}
}

func (c *StatusCache) Invalidate(ctx context.Context, orderID string) {
	if err := c.RDB.Del(ctx, OrderStatusKey(orderID)).Err(); err != nil {
		c.logger().Warn("status cache invalidate failed", zap.String("order_id", orderID), zap.Error(err))
	}
}

func (c *StatusCache) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}
