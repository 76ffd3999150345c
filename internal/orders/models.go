package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentPix        PaymentMethod = "pix"
	PaymentCreditCard PaymentMethod = "credit_card"
	PaymentDebitCard  PaymentMethod = "debit_card"
)

// ParsePaymentMethod defaults an empty tag to pix.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch PaymentMethod(s) {
	case "":
		return PaymentPix, nil
	case PaymentPix, PaymentCreditCard, PaymentDebitCard:
		return PaymentMethod(s), nil
	}
	return "", &ValidationError{Field: "paymentMethod", Message: "must be one of pix, credit_card, debit_card"}
}

func (m PaymentMethod) IsCard() bool {
	return m == PaymentCreditCard || m == PaymentDebitCard
}

type Product struct {
	ID     string              `json:"id"`
	Name   string              `json:"name"`
	Price  decimal.Decimal     `json:"price"`
	Weight decimal.NullDecimal `json:"weight"` // grams
	Height decimal.NullDecimal `json:"height"`
	Width  decimal.NullDecimal `json:"width"`
	Length decimal.NullDecimal `json:"length"`
}

// ShippingWeight is the unit weight, zero when unknown.
func (p Product) ShippingWeight() decimal.Decimal {
	if !p.Weight.Valid {
		return decimal.Zero
	}
	return p.Weight.Decimal
}

// ShippingVolume is height x width x length with any missing dimension counted as 1.
func (p Product) ShippingVolume() decimal.Decimal {
	return dimension(p.Height).Mul(dimension(p.Width)).Mul(dimension(p.Length))
}

func dimension(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid || d.Decimal.IsZero() {
		return decimal.NewFromInt(1)
	}
	return d.Decimal
}

type Stock struct {
	ID        string  `json:"id"`
	ProductID string  `json:"productId"`
	Size      *string `json:"size,omitempty"`
	Color     *string `json:"color,omitempty"`
	Quantity  int     `json:"quantity"`
}

type StockWithProduct struct {
	Stock   Stock
	Product Product
}

type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	TaxID string `json:"taxId"` // CPF
}

type Address struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"userId"`
	ZipCode   string `json:"zipCode"`
	IsDefault bool   `json:"isDefault"`
}

type Order struct {
	ID            string          `json:"id"`
	UserID        int64           `json:"userId"`
	Status        Status          `json:"status"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Freight       decimal.Decimal `json:"freight"`
	Discount      decimal.Decimal `json:"discount"`
	Total         decimal.Decimal `json:"total"`
	PaymentID     *string         `json:"paymentId,omitempty"`
	PaymentType   *string         `json:"paymentType,omitempty"`
	PaidAt        *time.Time      `json:"paidAt,omitempty"`
	ExpiresAt     time.Time       `json:"expiresAt"`
	CreatedAt     time.Time       `json:"createdAt"`
	Items         []OrderItem     `json:"items"`

	// IdempotencyKey is unique per user when set.
	IdempotencyKey *string `json:"-"`
}

// OrderItem is a snapshot of the catalog at creation time.
type OrderItem struct {
	ID           string          `json:"id"`
	OrderID      string          `json:"orderId"`
	ProductID    string          `json:"productId"`
	ProductName  string          `json:"productName"`
	ProductPrice decimal.Decimal `json:"productPrice"`
	StockID      *string         `json:"stockId,omitempty"`
	Size         *string         `json:"size,omitempty"`
	Color        *string         `json:"color,omitempty"`
	Quantity     int             `json:"quantity"`
}

// ItemInput is one requested line.
type ItemInput struct {
	StockID  string `json:"stockId"`
	Quantity int    `json:"quantity"`
}

// OrderData is what the payment service needs to know about an order and its buyer.
type OrderData struct {
	OrderID       string          `json:"orderId"`
	Status        Status          `json:"status"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	Total         decimal.Decimal `json:"total"`
	Email         string          `json:"email"`
	Name          string          `json:"name"`
	TaxID         string          `json:"taxId"`
}

// Settlement is recorded on the order when it becomes PAID.
type Settlement struct {
	PaymentID   string
	PaymentType string
	PaidAt      time.Time
}
