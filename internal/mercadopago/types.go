package mercadopago

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

const (
	StatusApproved  = "approved"
	StatusPending   = "pending"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
)

type Identification struct {
	Type   string `json:"type"`
	Number string `json:"number"`
}

type Payer struct {
	Email          string          `json:"email"`
	FirstName      string          `json:"first_name,omitempty"`
	LastName       string          `json:"last_name,omitempty"`
	Identification *Identification `json:"identification,omitempty"`
}

type PaymentRequest struct {
	TransactionAmount json.Number `json:"transaction_amount"`
	Description       string      `json:"description,omitempty"`
	PaymentMethodID   string      `json:"payment_method_id"`
	Token             string      `json:"token,omitempty"`
	Installments      int         `json:"installments,omitempty"`
	Payer             Payer       `json:"payer"`
	ExternalReference string      `json:"external_reference,omitempty"`
}

// Amount renders a money value the way the API expects it: a JSON number
// with two decimals.
func Amount(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

type TransactionData struct {
	QRCode       string `json:"qr_code"`
	QRCodeBase64 string `json:"qr_code_base64"`
	TicketURL    string `json:"ticket_url,omitempty"`
}

type PointOfInteraction struct {
	TransactionData *TransactionData `json:"transaction_data"`
}

type Payment struct {
	ID                 PaymentID           `json:"id"`
	Status             string              `json:"status"`
	StatusDetail       string              `json:"status_detail"`
	TransactionAmount  decimal.Decimal     `json:"transaction_amount"`
	PaymentMethodID    string              `json:"payment_method_id"`
	PaymentTypeID      string              `json:"payment_type_id"`
	ExternalReference  string              `json:"external_reference"`
	PointOfInteraction *PointOfInteraction `json:"point_of_interaction"`
}

// PaymentID accepts both the numeric ids the API returns and quoted ids.
type PaymentID string

func (id *PaymentID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = PaymentID(s)
		return nil
	}
	if string(b) == "null" {
		*id = ""
		return nil
	}
	if _, err := strconv.ParseInt(string(b), 10, 64); err != nil {
		return fmt.Errorf("mercadopago: invalid payment id %s", b)
	}
	*id = PaymentID(b)
	return nil
}

func (id PaymentID) String() string { return string(id) }

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("mercadopago: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("mercadopago: status %d", e.StatusCode)
}
