package kafka

import (
	"context"
	"strconv"
	"time"

	"github.com/ariefcatur/go-order-settlement/internal/orders"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const eventVersion = 1

type sink interface {
	Publish(topic string, key, value []byte, headers ...kafka.Header) bool
}

// EventPublisher wraps lifecycle events into envelopes keyed by order id.
type EventPublisher struct {
	Producer    sink
	ServiceName string
	Logger      *zap.Logger
	Now         func() time.Time
}

var _ orders.EventPublisher = (*EventPublisher)(nil)

func (p *EventPublisher) Publish(_ context.Context, ev orders.Event) {
	env := p.envelope(ev)
	ok := p.Producer.Publish(orders.TopicFor(ev.Type), orders.PartitionKey(ev.OrderID), MustMarshal(env),
		kafka.Header{Key: "x-event-type", Value: []byte(ev.Type)},
		kafka.Header{Key: "x-event-version", Value: []byte(strconv.Itoa(eventVersion))},
	)
	if !ok && p.Logger != nil {
		p.Logger.Warn("lifecycle event not published",
			zap.String("event_type", ev.Type), zap.String("order_id", ev.OrderID))
	}
}

func (p *EventPublisher) envelope(ev orders.Event) orders.Envelope {
	now := time.Now().UTC()
	if p.Now != nil {
		now = p.Now()
	}
	return orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     ev.Type,
		EventVersion:  eventVersion,
		OccurredAt:    now,
		Producer:      p.ServiceName,
		TraceID:       ev.TraceID,
		CorrelationID: ev.OrderID,
		Payload:       MustMarshal(ev.Payload),
	}
}
