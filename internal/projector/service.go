// Package projector keeps the redis order status cache in line with the
// lifecycle events published by the API.
package projector

import (
	"context"
	"fmt"

	kafkax "github.com/ariefcatur/go-order-settlement/internal/kafka"
	"github.com/ariefcatur/go-order-settlement/internal/orders"
	"github.com/ariefcatur/go-order-settlement/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type StatusStore interface {
	Get(ctx context.Context, orderID string) (orders.Status, bool)
	Set(ctx context.Context, orderID string, status orders.Status)
}

type Service struct {
	Cache  StatusStore
	Redis  *redis.Client
	Name   string // dedup namespace
	Logger *zap.Logger
}

// HandleLifecycleEvent is installed as the consumer handler. Each event id
// is applied once; a terminal status is never replaced by PENDING.
func (s *Service) HandleLifecycleEvent(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.UnmarshalEnvelope(m.Value)
	if err != nil {
		s.Logger.Warn("skipping undecodable message", zap.String("topic", m.Topic), zap.Error(err))
		return nil
	}
	switch env.EventType {
	case orders.EventOrderCreated, orders.EventOrderPaid, orders.EventOrderCanceled:
	default:
		return nil
	}

	first, err := redisx.MarkProcessed(ctx, s.Redis, s.Name, env.EventID)
	if err != nil {
		return fmt.Errorf("dedup: %w", err)
	}
	if !first {
		return nil
	}

	p, err := kafkax.UnwrapPayload[orders.StatusPayload](env.Payload)
	if err != nil || p.OrderID == "" || p.Status == "" {
		s.Logger.Warn("skipping event without status",
			zap.String("event_id", env.EventID), zap.String("event_type", env.EventType))
		return nil
	}

	if cur, ok := s.Cache.Get(ctx, p.OrderID); ok && cur != orders.StatusPending && p.Status == orders.StatusPending {
		return nil
	}
	s.Cache.Set(ctx, p.OrderID, p.Status)
	s.Logger.Debug("status projected",
		zap.String("order_id", p.OrderID),
		zap.String("status", string(p.Status)),
		zap.String("event_id", env.EventID),
	)
	return nil
}
