package orders

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated  = "OrderCreated"
	EventOrderPaid     = "OrderPaid"
	EventOrderCanceled = "OrderCanceled"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type ItemQty struct {
	StockID  string `json:"stock_id"`
	Quantity int    `json:"quantity"`
}

type OrderCreatedPayload struct {
	OrderID       string          `json:"order_id"`
	UserID        int64           `json:"user_id"`
	Status        Status          `json:"status"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Total         decimal.Decimal `json:"total"`
	Items         []ItemQty       `json:"items"`
}

type OrderPaidPayload struct {
	OrderID     string    `json:"order_id"`
	Status      Status    `json:"status"`
	PaymentID   string    `json:"payment_id"`
	PaymentType string    `json:"payment_type"`
	PaidAt      time.Time `json:"paid_at"`
}

type OrderCanceledPayload struct {
	OrderID  string    `json:"order_id"`
	Status   Status    `json:"status"`
	Restored []ItemQty `json:"restored,omitempty"`
}

// StatusPayload is the subset every lifecycle payload shares.
type StatusPayload struct {
	OrderID string `json:"order_id"`
	Status  Status `json:"status"`
}

// Event is a committed lifecycle change, wrapped into an Envelope by the publisher.
type Event struct {
	Type    string
	OrderID string
	TraceID string
	Payload any
}

// EventPublisher must not block the caller on broker availability.
type EventPublisher interface {
	Publish(ctx context.Context, ev Event)
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}

func reservedItems(items []OrderItem) []ItemQty {
	out := make([]ItemQty, 0, len(items))
	for _, it := range items {
		if it.StockID == nil {
			continue
		}
		out = append(out, ItemQty{StockID: *it.StockID, Quantity: it.Quantity})
	}
	return out
}
