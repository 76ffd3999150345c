package orders

import (
	"errors"
	"fmt"
)

var (
	ErrValidation             = errors.New("validation failed")
	ErrNoDefaultAddress       = errors.New("user has no default address")
	ErrNotFound               = errors.New("not found")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrInvalidStateTransition = errors.New("invalid order state transition")
	ErrGatewayResponse        = errors.New("unexpected payment gateway response")

	// ErrDuplicateOrder is returned by Tx.InsertOrder when the user already
	// has an order under the same idempotency key.
	ErrDuplicateOrder = errors.New("order already exists for idempotency key")
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// InsufficientStockError names the product whose stock could not cover the line.
type InsufficientStockError struct {
	ProductName string
	StockID     string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	name := e.ProductName
	if name == "" {
		name = "stock " + e.StockID
	}
	return fmt.Sprintf("insufficient stock: %s (requested %d, available %d)", name, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidStateTransition }

type GatewayResponseError struct {
	Reason string
}

func (e *GatewayResponseError) Error() string {
	return "payment gateway: " + e.Reason
}

func (e *GatewayResponseError) Is(target error) bool { return target == ErrGatewayResponse }
