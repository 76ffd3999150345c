package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ariefcatur/go-order-settlement/internal/orders"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded() *Store {
	s := New()
	s.PutProduct(orders.Product{ID: "p1", Name: "Camiseta", Price: decimal.RequireFromString("10.00")})
	s.PutStock(orders.Stock{ID: "s1", ProductID: "p1", Quantity: 3})
	return s
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := seeded()
	boom := errors.New("boom")

	err := s.WithTx(context.Background(), func(tx orders.Tx) error {
		require.NoError(t, tx.DecrementStock(context.Background(), "s1", 2))
		require.NoError(t, tx.InsertOrder(context.Background(), &orders.Order{ID: "o1", Status: orders.StatusPending}))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, s.StockQuantity("s1"))

	_, err = s.GetOrder(context.Background(), "o1")
	assert.ErrorIs(t, err, orders.ErrNotFound)
}

func TestWithTx_CanceledContextDiscardsWork(t *testing.T) {
	s := seeded()
	ctx, cancel := context.WithCancel(context.Background())

	err := s.WithTx(ctx, func(tx orders.Tx) error {
		cancel()
		return tx.DecrementStock(ctx, "s1", 1)
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, s.StockQuantity("s1"))
}

func TestDecrementStock_NeverBelowZero(t *testing.T) {
	s := seeded()
	err := s.WithTx(context.Background(), func(tx orders.Tx) error {
		return tx.DecrementStock(context.Background(), "s1", 4)
	})
	assert.ErrorIs(t, err, orders.ErrInsufficientStock)
	assert.Equal(t, 3, s.StockQuantity("s1"))
	assert.Equal(t, -1, s.StockQuantity("nope"))
}

func TestMarkPaid_CompareAndSet(t *testing.T) {
	s := seeded()
	require.NoError(t, s.WithTx(context.Background(), func(tx orders.Tx) error {
		return tx.InsertOrder(context.Background(), &orders.Order{ID: "o1", Status: orders.StatusPending})
	}))

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ok, err := s.MarkPaid(context.Background(), "o1", orders.Settlement{PaymentID: "9", PaymentType: "pix", PaidAt: at})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.MarkPaid(context.Background(), "o1", orders.Settlement{PaymentID: "10", PaidAt: at.Add(time.Hour)})
	require.NoError(t, err)
	assert.False(t, ok)

	o, err := s.GetOrder(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, "9", *o.PaymentID)
	assert.Equal(t, at, *o.PaidAt)
}

func TestGetOrder_ReturnsCopy(t *testing.T) {
	s := seeded()
	stock := "s1"
	require.NoError(t, s.WithTx(context.Background(), func(tx orders.Tx) error {
		return tx.InsertOrder(context.Background(), &orders.Order{
			ID: "o1", Status: orders.StatusPending,
			Items: []orders.OrderItem{{ID: "i1", StockID: &stock, Quantity: 1}},
		})
	}))

	o, _ := s.GetOrder(context.Background(), "o1")
	o.Items[0].Quantity = 99
	o.Status = orders.StatusCanceled

	again, _ := s.GetOrder(context.Background(), "o1")
	assert.Equal(t, 1, again.Items[0].Quantity)
	assert.Equal(t, orders.StatusPending, again.Status)
}

func TestInsertOrder_IdempotencyKeyUniquePerUser(t *testing.T) {
	s := seeded()
	key := "retry-1"
	insert := func(id string, user int64) error {
		return s.WithTx(context.Background(), func(tx orders.Tx) error {
			return tx.InsertOrder(context.Background(), &orders.Order{ID: id, UserID: user, Status: orders.StatusPending, IdempotencyKey: &key})
		})
	}

	require.NoError(t, insert("o1", 1))
	assert.ErrorIs(t, insert("o2", 1), orders.ErrDuplicateOrder)
	require.NoError(t, insert("o3", 2), "keys are scoped to the user")

	o, err := s.FindOrderByIdempotencyKey(context.Background(), 1, key)
	require.NoError(t, err)
	assert.Equal(t, "o1", o.ID)

	_, err = s.FindOrderByIdempotencyKey(context.Background(), 1, "other")
	assert.ErrorIs(t, err, orders.ErrNotFound)
}
