package orders

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-order-settlement/internal/metrics"
	"go.uber.org/zap"
)

type Canceller struct {
	Store  Store
	Events EventPublisher
	Cache  StatusCache
	Logger *zap.Logger
}

// Cancel returns every reserved quantity to its stock line and marks the
// order CANCELED, all in one transaction. Only PENDING orders qualify.
// Nothing is sent to the payment service.
func (c *Canceller) Cancel(ctx context.Context, orderID string) (*Order, error) {
	var canceled *Order
	err := c.Store.WithTx(ctx, func(tx Tx) error {
		o, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !CanTransition(o.Status, StatusCanceled) {
			return &TransitionError{From: o.Status, To: StatusCanceled}
		}

		for _, it := range o.Items {
			if it.StockID == nil {
				continue
			}
			if err := tx.IncrementStock(ctx, *it.StockID, it.Quantity); err != nil {
				return fmt.Errorf("restore stock %s: %w", *it.StockID, err)
			}
		}

		ok, err := tx.SetStatus(ctx, o.ID, StatusPending, StatusCanceled)
		if err != nil {
			return fmt.Errorf("set status: %w", err)
		}
		if !ok {
			return &TransitionError{From: o.Status, To: StatusCanceled}
		}
		o.Status = StatusCanceled
		canceled = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.OrdersCanceled.Inc()
	c.cache().Invalidate(ctx, canceled.ID)
	c.events().Publish(ctx, Event{
		Type:    EventOrderCanceled,
		OrderID: canceled.ID,
		Payload: OrderCanceledPayload{
			OrderID:  canceled.ID,
			Status:   StatusCanceled,
			Restored: reservedItems(canceled.Items),
		},
	})
	c.logger().Info("order canceled", zap.String("order_id", canceled.ID))
	return canceled, nil
}

func (c *Canceller) cache() StatusCache {
	if c.Cache != nil {
		return c.Cache
	}
	return noCache{}
}

func (c *Canceller) events() EventPublisher {
	if c.Events != nil {
		return c.Events
	}
	return NopPublisher{}
}

func (c *Canceller) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}
