package orders

import "context"

// InventoryCatalog resolves a stock line together with its product.
// Returns ErrNotFound when the stock line does not exist.
type InventoryCatalog interface {
	GetStockWithProduct(ctx context.Context, stockID string) (*StockWithProduct, error)
}

// AddressBook returns ErrNoDefaultAddress when the user has no default address.
type AddressBook interface {
	GetDefaultAddress(ctx context.Context, userID int64) (*Address, error)
}

// OrderDataProvider returns ErrNotFound for unknown orders.
type OrderDataProvider interface {
	GetOrderData(ctx context.Context, orderID string) (*OrderData, error)
}

// Tx is a transaction-scoped handle. It is owned by the WithTx callback that
// received it and must not be used after that callback returns.
type Tx interface {
	// GetStockWithProduct locks the stock row until the transaction ends.
	InventoryCatalog

	// DecrementStock subtracts qty only if at least qty is available and
	// returns ErrInsufficientStock otherwise.
	DecrementStock(ctx context.Context, stockID string, qty int) error
	IncrementStock(ctx context.Context, stockID string, qty int) error

	// InsertOrder returns ErrDuplicateOrder when o.IdempotencyKey is already
	// used by the same user.
	InsertOrder(ctx context.Context, o *Order) error
	// GetOrderForUpdate loads the order with its items and locks it.
	GetOrderForUpdate(ctx context.Context, orderID string) (*Order, error)
	// SetStatus moves the order only if its current status equals from.
	SetStatus(ctx context.Context, orderID string, from, to Status) (bool, error)
}

type Store interface {
	// WithTx commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	GetOrder(ctx context.Context, orderID string) (*Order, error)
	ListOrdersByUser(ctx context.Context, userID int64) ([]*Order, error)
	// FindOrderByIdempotencyKey returns ErrNotFound when the user has no order
	// under key.
	FindOrderByIdempotencyKey(ctx context.Context, userID int64, key string) (*Order, error)

	// MarkPaid is a compare-and-set PENDING -> PAID. It reports false when the
	// order was not PENDING at the time of the update.
	MarkPaid(ctx context.Context, orderID string, s Settlement) (bool, error)
}

// StatusCache is invalidated after every committed transition.
type StatusCache interface {
	Invalidate(ctx context.Context, orderID string)
}

type noCache struct{}

func (noCache) Invalidate(context.Context, string) {}

// IdempotencyIndex remembers which order a (user, idempotency key) pair
// created. It sits in front of Store.FindOrderByIdempotencyKey, which stays
// authoritative.
type IdempotencyIndex interface {
	Lookup(ctx context.Context, userID int64, key string) (orderID string, ok bool)
	Remember(ctx context.Context, userID int64, key, orderID string)
}
