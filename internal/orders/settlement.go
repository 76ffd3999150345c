package orders

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/go-order-settlement/internal/metrics"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const GatewayStatusApproved = "approved"

// GatewayPayment is the payment record as the payment service reports it.
type GatewayPayment struct {
	ID                string
	Status            string
	StatusDetail      string
	PaymentMethodID   string
	PaymentTypeID     string
	ExternalReference string
	Amount            decimal.Decimal
}

func (p *GatewayPayment) Approved() bool { return p.Status == GatewayStatusApproved }

type PaymentFetcher interface {
	GetPayment(ctx context.Context, paymentID string) (*GatewayPayment, error)
}

// Outcome says what a settlement attempt did. Only OutcomeSettled changes state.
type Outcome string

const (
	OutcomeSettled      Outcome = "settled"
	OutcomeAlreadyPaid  Outcome = "already_paid"
	OutcomeNotPending   Outcome = "not_pending"
	OutcomeNotApproved  Outcome = "not_approved"
	OutcomeOrderMissing Outcome = "order_missing"
	OutcomeFetchFailed  Outcome = "fetch_failed"
	OutcomeNoReference  Outcome = "no_reference"
	OutcomeStoreFailed  Outcome = "store_failed"
)

// Settler moves orders to PAID from gateway confirmations. It never returns an
// error: failures are logged and reported as an Outcome, so notification
// endpoints can always acknowledge.
type Settler struct {
	Store    Store
	Payments PaymentFetcher
	Events   EventPublisher
	Cache    StatusCache
	Logger   *zap.Logger
	Now      func() time.Time
}

// Settle fetches the payment by id and settles from the fetched record.
func (s *Settler) Settle(ctx context.Context, paymentID string) Outcome {
	p, err := s.Payments.GetPayment(ctx, paymentID)
	if err != nil {
		s.logger().Warn("settlement: payment fetch failed",
			zap.String("payment_id", paymentID), zap.Error(err))
		return s.done(OutcomeFetchFailed)
	}
	return s.SettlePayment(ctx, p)
}

// SettlePayment settles from a payment record already in hand, as returned by
// a synchronous card approval.
func (s *Settler) SettlePayment(ctx context.Context, p *GatewayPayment) Outcome {
	log := s.logger().With(zap.String("payment_id", p.ID), zap.String("gateway_status", p.Status))

	orderID := p.ExternalReference
	if orderID == "" {
		log.Warn("settlement: payment carries no order reference")
		return s.done(OutcomeNoReference)
	}
	log = log.With(zap.String("order_id", orderID))

	o, err := s.Store.GetOrder(ctx, orderID)
	if errors.Is(err, ErrNotFound) {
		log.Warn("settlement: order not found")
		return s.done(OutcomeOrderMissing)
	}
	if err != nil {
		log.Error("settlement: load order failed", zap.Error(err))
		return s.done(OutcomeStoreFailed)
	}
	if o.Status == StatusPaid {
		log.Debug("settlement: order already paid")
		return s.done(OutcomeAlreadyPaid)
	}
	if o.Status != StatusPending {
		log.Warn("settlement: order is not pending", zap.String("order_status", string(o.Status)))
		return s.done(OutcomeNotPending)
	}
	if !p.Approved() {
		log.Info("settlement: payment not approved, order left as is",
			zap.String("status_detail", p.StatusDetail))
		return s.done(OutcomeNotApproved)
	}

	st := Settlement{
		PaymentID:   p.ID,
		PaymentType: p.PaymentMethodID,
		PaidAt:      s.now(),
	}
	ok, err := s.Store.MarkPaid(ctx, orderID, st)
	if err != nil {
		log.Error("settlement: mark paid failed", zap.Error(err))
		return s.done(OutcomeStoreFailed)
	}
	if !ok {
		// Lost the compare-and-set: another trigger settled first, or the
		// order was canceled in between.
		log.Info("settlement: order no longer pending")
		return s.done(OutcomeNotPending)
	}

	s.cache().Invalidate(ctx, orderID)
	s.events().Publish(ctx, Event{
		Type:    EventOrderPaid,
		OrderID: orderID,
		Payload: OrderPaidPayload{
			OrderID:     orderID,
			Status:      StatusPaid,
			PaymentID:   st.PaymentID,
			PaymentType: st.PaymentType,
			PaidAt:      st.PaidAt,
		},
	})
	log.Info("order paid", zap.String("payment_type", st.PaymentType))
	return s.done(OutcomeSettled)
}

func (s *Settler) done(o Outcome) Outcome {
	metrics.Settlements.WithLabelValues(string(o)).Inc()
	return o
}

func (s *Settler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Settler) cache() StatusCache {
	if s.Cache != nil {
		return s.Cache
	}
	return noCache{}
}

func (s *Settler) events() EventPublisher {
	if s.Events != nil {
		return s.Events
	}
	return NopPublisher{}
}

func (s *Settler) logger() *zap.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return zap.NewNop()
}
