package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ariefcatur/go-order-settlement/internal/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	msgCreatedPix      = "Order created (10% PIX discount applied)"
	msgCreatedCard     = "Order created. Submit the card token to confirm the payment."
	msgPaymentDegraded = "Order created, but the payment could not be initiated"
	msgCardNextStep    = "Tokenize the card on the client and submit it to POST /payments/card"
	msgAlreadyExists   = "Order already exists for this idempotency key"

	maxIdempotencyKeyLen = 255
)

// PixPayment is the QR data returned by the payment service.
type PixPayment struct {
	GatewayPaymentID string
	QRCode           string
	QRCodeBase64     string
}

type PixPaymentCreator interface {
	CreatePixPayment(ctx context.Context, order OrderData) (*PixPayment, error)
}

type CreateRequest struct {
	Items         []ItemInput `json:"items"`
	PaymentMethod string      `json:"paymentMethod,omitempty"`

	// IdempotencyKey comes from the Idempotency-Key header.
	IdempotencyKey string `json:"-"`
}

// PaymentInstructions tells the client how to pay. For pix it carries the
// QR code, for cards the next step to take.
type PaymentInstructions struct {
	PaymentMethod    PaymentMethod   `json:"paymentMethod"`
	OrderID          string          `json:"orderId"`
	Total            decimal.Decimal `json:"total"`
	GatewayPaymentID string          `json:"paymentId,omitempty"`
	QRCode           string          `json:"qrCode,omitempty"`
	QRCodeBase64     string          `json:"qrCodeBase64,omitempty"`
	Message          string          `json:"message,omitempty"`
}

type CreateResult struct {
	Message string               `json:"message"`
	Order   *Order               `json:"order"`
	Payment *PaymentInstructions `json:"payment"`

	// Idempotent is set when the result belongs to an earlier request with
	// the same idempotency key.
	Idempotent bool `json:"idempotent,omitempty"`
}

type Creator struct {
	Store     Store
	Addresses AddressBook
	Buyers    OrderDataProvider
	Payments  PixPaymentCreator
	Freight   FreightCalculator
	TTL       time.Duration
	Events    EventPublisher
	Logger    *zap.Logger
	Now       func() time.Time

	// Idempotency is optional; without it repeats are found through Store.
	Idempotency IdempotencyIndex
}

// ValidateCreate checks a request before any lookup or side effect.
func ValidateCreate(req CreateRequest) (PaymentMethod, error) {
	if len(req.Items) == 0 {
		return "", &ValidationError{Field: "items", Message: "order must have at least one item"}
	}
	for i, it := range req.Items {
		if it.StockID == "" {
			return "", &ValidationError{Field: fmt.Sprintf("items[%d].stockId", i), Message: "is required"}
		}
		if it.Quantity <= 0 {
			return "", &ValidationError{Field: fmt.Sprintf("items[%d].quantity", i), Message: "must be greater than zero"}
		}
	}
	if len(req.IdempotencyKey) > maxIdempotencyKeyLen {
		return "", &ValidationError{Field: "Idempotency-Key", Message: fmt.Sprintf("must be at most %d characters", maxIdempotencyKeyLen)}
	}
	return ParsePaymentMethod(req.PaymentMethod)
}

// Create reserves stock and persists a PENDING order in one transaction, then
// initiates the payment. A payment failure does not undo the order: the
// result carries a nil Payment and a degraded message instead.
//
// With an idempotency key, a repeat from the same user returns the order the
// first request created and reserves nothing.
func (c *Creator) Create(ctx context.Context, userID int64, req CreateRequest) (*CreateResult, error) {
	method, err := ValidateCreate(req)
	if err != nil {
		return nil, err
	}
	key := req.IdempotencyKey
	if key != "" {
		res, err := c.replay(ctx, userID, key)
		if err != nil || res != nil {
			return res, err
		}
	}

	addr, err := c.Addresses.GetDefaultAddress(ctx, userID)
	if err != nil {
		return nil, err
	}

	var order *Order
	err = c.Store.WithTx(ctx, func(tx Tx) error {
		o, err := c.reserve(ctx, tx, userID, addr, method, req.Items)
		if err != nil {
			return err
		}
		if key != "" {
			o.IdempotencyKey = &key
		}
		if err := tx.InsertOrder(ctx, o); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		order = o
		return nil
	})
	if errors.Is(err, ErrDuplicateOrder) {
		// a concurrent request with the same key committed first
		res, rerr := c.replay(ctx, userID, key)
		if rerr != nil {
			return nil, rerr
		}
		if res != nil {
			return res, nil
		}
	}
	if err != nil {
		return nil, err
	}
	if key != "" && c.Idempotency != nil {
		c.Idempotency.Remember(ctx, userID, key, order.ID)
	}

	metrics.OrdersCreated.WithLabelValues(string(method)).Inc()
	c.logger().Info("order created",
		zap.String("order_id", order.ID),
		zap.Int64("user_id", userID),
		zap.String("payment_method", string(method)),
		zap.String("total", order.Total.StringFixed(2)),
	)
	c.events().Publish(ctx, Event{
		Type:    EventOrderCreated,
		OrderID: order.ID,
		Payload: OrderCreatedPayload{
			OrderID:       order.ID,
			UserID:        userID,
			Status:        order.Status,
			PaymentMethod: method,
			Total:         order.Total,
			Items:         reservedItems(order.Items),
		},
	})

	payment, err := c.dispatch(ctx, order)
	if err != nil {
		metrics.PaymentDispatchFailures.WithLabelValues(string(method)).Inc()
		c.logger().Error("payment dispatch failed, order kept",
			zap.String("order_id", order.ID),
			zap.String("payment_method", string(method)),
			zap.Error(err),
		)
		return &CreateResult{Message: msgPaymentDegraded, Order: order}, nil
	}

	msg := msgCreatedCard
	if method == PaymentPix {
		msg = msgCreatedPix
	}
	return &CreateResult{Message: msg, Order: order, Payment: payment}, nil
}

// replay returns the result for an order already created under key, or nil
// when there is none. A PENDING order gets its payment instructions again; for
// pix the payment service deduplicates on the order id, so the same QR code
// comes back.
func (c *Creator) replay(ctx context.Context, userID int64, key string) (*CreateResult, error) {
	order, err := c.findByKey(ctx, userID, key)
	if err != nil || order == nil {
		return nil, err
	}
	c.logger().Info("order create replayed",
		zap.String("order_id", order.ID),
		zap.Int64("user_id", userID),
	)

	res := &CreateResult{Message: msgAlreadyExists, Order: order, Idempotent: true}
	if order.Status != StatusPending {
		return res, nil
	}
	payment, err := c.dispatch(ctx, order)
	if err != nil {
		c.logger().Warn("payment dispatch failed on replay",
			zap.String("order_id", order.ID), zap.Error(err))
		res.Message = msgPaymentDegraded
		return res, nil
	}
	res.Payment = payment
	return res, nil
}

func (c *Creator) findByKey(ctx context.Context, userID int64, key string) (*Order, error) {
	if c.Idempotency != nil {
		if id, ok := c.Idempotency.Lookup(ctx, userID, key); ok {
			o, err := c.Store.GetOrder(ctx, id)
			if err == nil && o.UserID == userID {
				return o, nil
			}
			if err != nil && !errors.Is(err, ErrNotFound) {
				return nil, err
			}
		}
	}

	o, err := c.Store.FindOrderByIdempotencyKey(ctx, userID, key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find order by idempotency key: %w", err)
	}
	if c.Idempotency != nil {
		c.Idempotency.Remember(ctx, userID, key, o.ID)
	}
	return o, nil
}

// reserve runs inside the transaction. Lines are locked in stock id order so
// two orders over the same rows cannot deadlock; items keep request order.
func (c *Creator) reserve(ctx context.Context, tx Tx, userID int64, addr *Address, method PaymentMethod, lines []ItemInput) (*Order, error) {
	idx := make([]int, len(lines))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return lines[idx[a]].StockID < lines[idx[b]].StockID })

	orderID := uuid.NewString()
	items := make([]OrderItem, len(lines))
	subtotal, weight, volume := decimal.Zero, decimal.Zero, decimal.Zero

	for _, i := range idx {
		line := lines[i]
		sp, err := tx.GetStockWithProduct(ctx, line.StockID)
		if errors.Is(err, ErrNotFound) {
			return nil, &InsufficientStockError{StockID: line.StockID, Requested: line.Quantity}
		}
		if err != nil {
			return nil, fmt.Errorf("load stock %s: %w", line.StockID, err)
		}

		shortage := &InsufficientStockError{
			ProductName: sp.Product.Name,
			StockID:     sp.Stock.ID,
			Requested:   line.Quantity,
			Available:   sp.Stock.Quantity,
		}
		if sp.Stock.Quantity < line.Quantity {
			return nil, shortage
		}
		if err := tx.DecrementStock(ctx, sp.Stock.ID, line.Quantity); err != nil {
			if errors.Is(err, ErrInsufficientStock) {
				return nil, shortage
			}
			return nil, fmt.Errorf("decrement stock %s: %w", sp.Stock.ID, err)
		}

		qty := decimal.NewFromInt(int64(line.Quantity))
		subtotal = subtotal.Add(sp.Product.Price.Mul(qty))
		weight = weight.Add(sp.Product.ShippingWeight().Mul(qty))
		volume = volume.Add(sp.Product.ShippingVolume().Mul(qty))

		stockID := sp.Stock.ID
		items[i] = OrderItem{
			ID:           uuid.NewString(),
			OrderID:      orderID,
			ProductID:    sp.Product.ID,
			ProductName:  sp.Product.Name,
			ProductPrice: sp.Product.Price,
			StockID:      &stockID,
			Size:         sp.Stock.Size,
			Color:        sp.Stock.Color,
			Quantity:     line.Quantity,
		}
	}

	freight := c.Freight.Quote(addr.ZipCode, weight, volume)
	p := Price(subtotal, freight, method)

	now := c.now()
	return &Order{
		ID:            orderID,
		UserID:        userID,
		Status:        StatusPending,
		PaymentMethod: method,
		Subtotal:      p.Subtotal,
		Freight:       p.Freight,
		Discount:      p.Discount,
		Total:         p.Total,
		ExpiresAt:     now.Add(c.ttl()),
		CreatedAt:     now,
		Items:         items,
	}, nil
}

func (c *Creator) dispatch(ctx context.Context, order *Order) (*PaymentInstructions, error) {
	if order.PaymentMethod.IsCard() {
		return &PaymentInstructions{
			PaymentMethod: order.PaymentMethod,
			OrderID:       order.ID,
			Total:         order.Total,
			Message:       msgCardNextStep,
		}, nil
	}

	buyer, err := c.Buyers.GetOrderData(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("load buyer data: %w", err)
	}
	pix, err := c.Payments.CreatePixPayment(ctx, *buyer)
	if err != nil {
		return nil, err
	}
	return &PaymentInstructions{
		PaymentMethod:    PaymentPix,
		OrderID:          order.ID,
		Total:            order.Total,
		GatewayPaymentID: pix.GatewayPaymentID,
		QRCode:           pix.QRCode,
		QRCodeBase64:     pix.QRCodeBase64,
	}, nil
}

func (c *Creator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now().UTC()
}

func (c *Creator) ttl() time.Duration {
	if c.TTL > 0 {
		return c.TTL
	}
	return 10 * time.Minute
}

func (c *Creator) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}

func (c *Creator) events() EventPublisher {
	if c.Events != nil {
		return c.Events
	}
	return NopPublisher{}
}
