// Package payment adapts the order domain to the external payment service.
package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-order-settlement/internal/mercadopago"
	"github.com/ariefcatur/go-order-settlement/internal/orders"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultFirstName = "Cliente"
	defaultLastName  = "OnBack"
	taxIDType        = "CPF"
)

// Gateway is the subset of the payment service client this package calls.
type Gateway interface {
	CreatePayment(ctx context.Context, req mercadopago.PaymentRequest, idempotencyKey string) (*mercadopago.Payment, error)
	GetPayment(ctx context.Context, id string) (*mercadopago.Payment, error)
}

type PaymentSettler interface {
	SettlePayment(ctx context.Context, p *orders.GatewayPayment) orders.Outcome
}

type CardRequest struct {
	OrderID         string `json:"orderId"`
	Token           string `json:"token"`
	Installments    int    `json:"installments,omitempty"`
	PaymentMethodID string `json:"paymentMethodId,omitempty"`
}

type CardResult struct {
	GatewayPaymentID string          `json:"paymentId"`
	Status           string          `json:"status"`
	StatusDetail     string          `json:"statusDetail"`
	Amount           decimal.Decimal `json:"amount"`
}

type Service struct {
	Gateway Gateway
	Buyers  orders.OrderDataProvider
	Settler PaymentSettler
	Logger  *zap.Logger
}

// CreatePixPayment charges the order total through pix and returns the QR
// code the buyer scans.
func (s *Service) CreatePixPayment(ctx context.Context, o orders.OrderData) (*orders.PixPayment, error) {
	first, last := splitName(o.Name)
	p, err := s.Gateway.CreatePayment(ctx, mercadopago.PaymentRequest{
		TransactionAmount: mercadopago.Amount(o.Total),
		Description:       "Order " + o.OrderID,
		PaymentMethodID:   "pix",
		Payer: mercadopago.Payer{
			Email:          o.Email,
			FirstName:      first,
			LastName:       last,
			Identification: &mercadopago.Identification{Type: taxIDType, Number: digitsOnly(o.TaxID)},
		},
		ExternalReference: o.OrderID,
	}, "pix-"+o.OrderID)
	if err != nil {
		return nil, fmt.Errorf("create pix payment: %w", err)
	}

	if p.PointOfInteraction == nil || p.PointOfInteraction.TransactionData == nil ||
		p.PointOfInteraction.TransactionData.QRCode == "" {
		return nil, &orders.GatewayResponseError{Reason: "pix transaction data missing from response"}
	}
	td := p.PointOfInteraction.TransactionData
	return &orders.PixPayment{
		GatewayPaymentID: p.ID.String(),
		QRCode:           td.QRCode,
		QRCodeBase64:     td.QRCodeBase64,
	}, nil
}

// CreateCardPayment submits a tokenized card. An approved answer settles the
// order right away instead of waiting for the notification.
func (s *Service) CreateCardPayment(ctx context.Context, o orders.OrderData, req CardRequest) (*CardResult, error) {
	installments, method := req.Installments, req.PaymentMethodID
	if installments == 0 {
		installments = 1
	}
	if method == "" {
		method = string(orders.PaymentCreditCard)
	}

	p, err := s.Gateway.CreatePayment(ctx, mercadopago.PaymentRequest{
		TransactionAmount: mercadopago.Amount(o.Total),
		Description:       "Order " + o.OrderID,
		PaymentMethodID:   method,
		Token:             req.Token,
		Installments:      installments,
		Payer:             mercadopago.Payer{Email: o.Email},
		ExternalReference: o.OrderID,
	}, uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("create card payment: %w", err)
	}
	if p.ID == "" {
		return nil, &orders.GatewayResponseError{Reason: "payment id missing from response"}
	}

	gp := toGatewayPayment(p)
	if gp.ExternalReference == "" {
		gp.ExternalReference = o.OrderID
	}
	if gp.Approved() && s.Settler != nil {
		s.Settler.SettlePayment(ctx, gp)
	}

	s.logger().Info("card payment submitted",
		zap.String("order_id", o.OrderID),
		zap.String("payment_id", gp.ID),
		zap.String("gateway_status", gp.Status),
	)
	return &CardResult{
		GatewayPaymentID: gp.ID,
		Status:           gp.Status,
		StatusDetail:     gp.StatusDetail,
		Amount:           gp.Amount,
	}, nil
}

// ConfirmCard validates a card confirmation, loads the order and forwards it
// to CreateCardPayment. Only PENDING card orders can be paid this way.
func (s *Service) ConfirmCard(ctx context.Context, req CardRequest) (*CardResult, error) {
	if err := ValidateCard(req); err != nil {
		return nil, err
	}
	o, err := s.Buyers.GetOrderData(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if o.Status != orders.StatusPending {
		return nil, &orders.TransitionError{From: o.Status, To: orders.StatusPaid}
	}
	// the pix total carries the pix discount
	if o.PaymentMethod == orders.PaymentPix {
		return nil, &orders.ValidationError{Field: "orderId", Message: "order was placed for pix and cannot be paid by card"}
	}
	return s.CreateCardPayment(ctx, *o, req)
}

// GetPayment implements orders.PaymentFetcher.
func (s *Service) GetPayment(ctx context.Context, id string) (*orders.GatewayPayment, error) {
	p, err := s.Gateway.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	return toGatewayPayment(p), nil
}

func ValidateCard(req CardRequest) error {
	switch {
	case strings.TrimSpace(req.OrderID) == "":
		return &orders.ValidationError{Field: "orderId", Message: "is required"}
	case strings.TrimSpace(req.Token) == "":
		return &orders.ValidationError{Field: "token", Message: "is required"}
	case req.Installments < 0:
		return &orders.ValidationError{Field: "installments", Message: "must be positive"}
	}
	if req.PaymentMethodID != "" {
		m, err := orders.ParsePaymentMethod(req.PaymentMethodID)
		if err != nil || !m.IsCard() {
			return &orders.ValidationError{Field: "paymentMethodId", Message: "must be credit_card or debit_card"}
		}
	}
	return nil
}

func toGatewayPayment(p *mercadopago.Payment) *orders.GatewayPayment {
	return &orders.GatewayPayment{
		ID:                p.ID.String(),
		Status:            p.Status,
		StatusDetail:      p.StatusDetail,
		PaymentMethodID:   p.PaymentMethodID,
		PaymentTypeID:     p.PaymentTypeID,
		ExternalReference: p.ExternalReference,
		Amount:            p.TransactionAmount,
	}
}

// digitsOnly strips the punctuation of a formatted CPF.
func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// splitName takes the first token as first name and the rest as last name.
func splitName(full string) (first, last string) {
	parts := strings.Fields(full)
	first, last = defaultFirstName, defaultLastName
	if len(parts) > 0 {
		first = parts[0]
	}
	if len(parts) > 1 {
		last = strings.Join(parts[1:], " ")
	}
	return first, last
}

func (s *Service) logger() *zap.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return zap.NewNop()
}

var _ orders.PaymentFetcher = (*Service)(nil)
var _ orders.PixPaymentCreator = (*Service)(nil)

