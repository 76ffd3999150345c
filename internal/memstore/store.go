// Package memstore keeps users, catalog and orders in process memory. It backs
// STORE_DRIVER=memory and the tests, with the same transactional behavior as
// the postgres store: a transaction works on a private copy that replaces the
// live state only when the callback succeeds.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/ariefcatur/go-order-settlement/internal/orders"
)

type state struct {
	users     map[int64]orders.User
	addresses map[int64][]orders.Address
	products  map[string]orders.Product
	stocks    map[string]orders.Stock
	orders    map[string]orders.Order
}

func (s *state) clone() *state {
	c := &state{
		users:     make(map[int64]orders.User, len(s.users)),
		addresses: make(map[int64][]orders.Address, len(s.addresses)),
		products:  make(map[string]orders.Product, len(s.products)),
		stocks:    make(map[string]orders.Stock, len(s.stocks)),
		orders:    make(map[string]orders.Order, len(s.orders)),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.addresses {
		c.addresses[k] = append([]orders.Address(nil), v...)
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.stocks {
		c.stocks[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = copyOrder(v)
	}
	return c
}

type Store struct {
	mu sync.Mutex
	st *state
}

func New() *Store {
	return &Store{st: &state{
		users:     map[int64]orders.User{},
		addresses: map[int64][]orders.Address{},
		products:  map[string]orders.Product{},
		stocks:    map[string]orders.Stock{},
		orders:    map[string]orders.Order{},
	}}
}

// Seeding helpers.

func (s *Store) PutUser(u orders.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.users[u.ID] = u
}

func (s *Store) PutAddress(a orders.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.addresses[a.UserID] = append(s.st.addresses[a.UserID], a)
}

func (s *Store) PutProduct(p orders.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.products[p.ID] = p
}

func (s *Store) PutStock(st orders.Stock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.stocks[st.ID] = st
}

// StockQuantity reports the current quantity of a stock line, -1 if unknown.
func (s *Store) StockQuantity(stockID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.st.stocks[stockID]
	if !ok {
		return -1
	}
	return st.Quantity
}

// orders.Store

func (s *Store) WithTx(ctx context.Context, fn func(tx orders.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&tx{st: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) GetOrder(_ context.Context, orderID string) (*orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.st.orders[orderID]
	if !ok {
		return nil, orders.ErrNotFound
	}
	c := copyOrder(o)
	return &c, nil
}

func (s *Store) ListOrdersByUser(_ context.Context, userID int64) ([]*orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*orders.Order{}
	for _, o := range s.st.orders {
		if o.UserID != userID {
			continue
		}
		c := copyOrder(o)
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) FindOrderByIdempotencyKey(_ context.Context, userID int64, key string) (*orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.st.byIdempotencyKey(userID, key)
	if !ok {
		return nil, orders.ErrNotFound
	}
	c := copyOrder(o)
	return &c, nil
}

func (s *Store) MarkPaid(_ context.Context, orderID string, st orders.Settlement) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.st.orders[orderID]
	if !ok || o.Status != orders.StatusPending {
		return false, nil
	}
	paymentID, paymentType, paidAt := st.PaymentID, st.PaymentType, st.PaidAt
	o.Status = orders.StatusPaid
	o.PaymentID = &paymentID
	o.PaymentType = &paymentType
	o.PaidAt = &paidAt
	s.st.orders[orderID] = o
	return true, nil
}

// orders.AddressBook

func (s *Store) GetDefaultAddress(_ context.Context, userID int64) (*orders.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.st.addresses[userID] {
		if a.IsDefault {
			c := a
			return &c, nil
		}
	}
	return nil, orders.ErrNoDefaultAddress
}

// orders.OrderDataProvider

func (s *Store) GetOrderData(_ context.Context, orderID string) (*orders.OrderData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.st.orders[orderID]
	if !ok {
		return nil, orders.ErrNotFound
	}
	u := s.st.users[o.UserID]
	return &orders.OrderData{
		OrderID:       o.ID,
		Status:        o.Status,
		PaymentMethod: o.PaymentMethod,
		Total:         o.Total,
		Email:         u.Email,
		Name:          u.Name,
		TaxID:         u.TaxID,
	}, nil
}

// tx operates on the private copy owned by one WithTx call. The store mutex is
// held for the whole callback.
type tx struct{ st *state }

func (t *tx) GetStockWithProduct(_ context.Context, stockID string) (*orders.StockWithProduct, error) {
	st, ok := t.st.stocks[stockID]
	if !ok {
		return nil, orders.ErrNotFound
	}
	p, ok := t.st.products[st.ProductID]
	if !ok {
		return nil, orders.ErrNotFound
	}
	return &orders.StockWithProduct{Stock: st, Product: p}, nil
}

func (t *tx) DecrementStock(_ context.Context, stockID string, qty int) error {
	st, ok := t.st.stocks[stockID]
	if !ok || st.Quantity < qty {
		return orders.ErrInsufficientStock
	}
	st.Quantity -= qty
	t.st.stocks[stockID] = st
	return nil
}

func (t *tx) IncrementStock(_ context.Context, stockID string, qty int) error {
	st, ok := t.st.stocks[stockID]
	if !ok {
		// The line may have been removed from the catalog since the order was placed.
		return nil
	}
	st.Quantity += qty
	t.st.stocks[stockID] = st
	return nil
}

func (t *tx) InsertOrder(_ context.Context, o *orders.Order) error {
	if o.IdempotencyKey != nil {
		if _, taken := t.st.byIdempotencyKey(o.UserID, *o.IdempotencyKey); taken {
			return orders.ErrDuplicateOrder
		}
	}
	t.st.orders[o.ID] = copyOrder(*o)
	return nil
}

func (t *tx) GetOrderForUpdate(_ context.Context, orderID string) (*orders.Order, error) {
	o, ok := t.st.orders[orderID]
	if !ok {
		return nil, orders.ErrNotFound
	}
	c := copyOrder(o)
	return &c, nil
}

func (t *tx) SetStatus(_ context.Context, orderID string, from, to orders.Status) (bool, error) {
	o, ok := t.st.orders[orderID]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	t.st.orders[orderID] = o
	return true, nil
}

func (s *state) byIdempotencyKey(userID int64, key string) (orders.Order, bool) {
	for _, o := range s.orders {
		if o.UserID == userID && o.IdempotencyKey != nil && *o.IdempotencyKey == key {
			return o, true
		}
	}
	return orders.Order{}, false
}

func copyOrder(o orders.Order) orders.Order {
	o.Items = append([]orders.OrderItem(nil), o.Items...)
	return o
}
