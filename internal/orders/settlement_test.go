package orders_test

import (
	"context"
	"sync"
	"testing"

	"github.com/ariefcatur/go-order-settlement/internal/orders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func approved(id, orderID string) *orders.GatewayPayment {
	return &orders.GatewayPayment{ID: id, Status: "approved", PaymentMethodID: "pix", PaymentTypeID: "bank_transfer", ExternalReference: orderID}
}

func TestSettle_Idempotent(t *testing.T) {
	h := newHarness(t)
	o := h.place(t, "pix", orders.ItemInput{StockID: "stk-shirt-m", Quantity: 1})
	s, _ := h.settler(t, map[string]*orders.GatewayPayment{"pay-9": approved("pay-9", o.ID)})

	assert.Equal(t, orders.OutcomeSettled, s.Settle(context.Background(), "pay-9"))
	first, err := h.store.GetOrder(context.Background(), o.ID)
	require.NoError(t, err)
	require.Equal(t, orders.StatusPaid, first.Status)
	require.NotNil(t, first.PaidAt)
	assert.Equal(t, "pay-9", *first.PaymentID)
	assert.Equal(t, "pix", *first.PaymentType)

	assert.Equal(t, orders.OutcomeAlreadyPaid, s.Settle(context.Background(), "pay-9"))
	second, err := h.store.GetOrder(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, *first.PaidAt, *second.PaidAt)

	assert.Equal(t, []string{orders.EventOrderCreated, orders.EventOrderPaid}, h.events.types())
	assert.Equal(t, []string{o.ID}, h.cache.invalidated)
}

func TestSettle_ConcurrentTriggersSettleOnce(t *testing.T) {
	h := newHarness(t)
	o := h.place(t, "credit_card", orders.ItemInput{StockID: "stk-cap", Quantity: 1})
	s, _ := h.settler(t, nil)
	p := approved("pay-card", o.ID)

	var wg sync.WaitGroup
	outcomes := make([]orders.Outcome, 8)
	for i := range outcomes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = s.SettlePayment(context.Background(), p)
		}(i)
	}
	wg.Wait()

	settled := 0
	for _, oc := range outcomes {
		if oc == orders.OutcomeSettled {
			settled++
		} else {
			assert.Contains(t, []orders.Outcome{orders.OutcomeAlreadyPaid, orders.OutcomeNotPending}, oc)
		}
	}
	assert.Equal(t, 1, settled)
	assert.Len(t, h.cache.invalidated, 1)
}

func TestSettle_NoStateChange(t *testing.T) {
	h := newHarness(t)
	o := h.place(t, "pix", orders.ItemInput{StockID: "stk-shirt-m", Quantity: 1})

	rejected := approved("pay-rej", o.ID)
	rejected.Status = "rejected"
	pending := approved("pay-pend", o.ID)
	pending.Status = "pending"
	s, _ := h.settler(t, map[string]*orders.GatewayPayment{
		"pay-rej":   rejected,
		"pay-pend":  pending,
		"pay-noref": approved("pay-noref", ""),
		"pay-ghost": approved("pay-ghost", "no-such-order"),
	})

	cases := map[string]orders.Outcome{
		"pay-rej":     orders.OutcomeNotApproved,
		"pay-pend":    orders.OutcomeNotApproved,
		"pay-noref":   orders.OutcomeNoReference,
		"pay-ghost":   orders.OutcomeOrderMissing,
		"pay-missing": orders.OutcomeFetchFailed,
	}
	for id, want := range cases {
		assert.Equal(t, want, s.Settle(context.Background(), id), id)
	}

	stored, err := h.store.GetOrder(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, stored.Status)
	assert.Nil(t, stored.PaidAt)
	assert.Empty(t, h.cache.invalidated)
}

func TestSettle_CanceledOrderStaysCanceled(t *testing.T) {
	h := newHarness(t)
	o := h.place(t, "pix", orders.ItemInput{StockID: "stk-cap", Quantity: 1})
	_, err := h.canceller.Cancel(context.Background(), o.ID)
	require.NoError(t, err)

	s, _ := h.settler(t, map[string]*orders.GatewayPayment{"late": approved("late", o.ID)})
	assert.Equal(t, orders.OutcomeNotPending, s.Settle(context.Background(), "late"))

	stored, err := h.store.GetOrder(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCanceled, stored.Status)
}
