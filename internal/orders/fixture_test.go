package orders_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-order-settlement/internal/memstore"
	"github.com/ariefcatur/go-order-settlement/internal/orders"
	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"
)

const (
	buyerID   int64 = 7
	noAddrID  int64 = 8
	originZip       = "26584-260"
)

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []orders.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev orders.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type recordingCache struct {
	mu          sync.Mutex
	invalidated []string
}

func (c *recordingCache) Invalidate(_ context.Context, orderID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, orderID)
}

type fakePix struct {
	err   error
	calls []orders.OrderData
}

func (f *fakePix) CreatePixPayment(_ context.Context, o orders.OrderData) (*orders.PixPayment, error) {
	f.calls = append(f.calls, o)
	if f.err != nil {
		return nil, f.err
	}
	return &orders.PixPayment{GatewayPaymentID: "pay-1", QRCode: "000201qr", QRCodeBase64: "aW1n"}, nil
}

type fakeFetcher struct {
	payments map[string]*orders.GatewayPayment
	calls    int
}

func (f *fakeFetcher) GetPayment(_ context.Context, id string) (*orders.GatewayPayment, error) {
	f.calls++
	p, ok := f.payments[id]
	if !ok {
		return nil, errors.New("gateway unavailable")
	}
	return p, nil
}

type harness struct {
	store     *memstore.Store
	pix       *fakePix
	events    *recordingPublisher
	cache     *recordingCache
	creator   *orders.Creator
	canceller *orders.Canceller
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st := memstore.New()
	st.PutUser(orders.User{ID: buyerID, Name: "Ana Maria Souza", Email: "ana@example.com", TaxID: "12345678909"})
	st.PutUser(orders.User{ID: noAddrID, Name: "Bruno", Email: "bruno@example.com"})
	st.PutAddress(orders.Address{ID: 1, UserID: buyerID, ZipCode: "01001-000", IsDefault: false})
	st.PutAddress(orders.Address{ID: 2, UserID: buyerID, ZipCode: "26000-000", IsDefault: true})

	st.PutProduct(orders.Product{
		ID:     "prod-shirt",
		Name:   "Camiseta",
		Price:  decimal.RequireFromString("100.00"),
		Weight: decimal.NewNullDecimal(decimal.NewFromInt(500)),
		Height: decimal.NewNullDecimal(decimal.NewFromInt(10)),
		Width:  decimal.NewNullDecimal(decimal.NewFromInt(10)),
		Length: decimal.NewNullDecimal(decimal.NewFromInt(10)),
	})
	st.PutProduct(orders.Product{ID: "prod-cap", Name: "Bone", Price: decimal.RequireFromString("49.90")})
	size, color := "M", "black"
	st.PutStock(orders.Stock{ID: "stk-shirt-m", ProductID: "prod-shirt", Size: &size, Color: &color, Quantity: 5})
	st.PutStock(orders.Stock{ID: "stk-cap", ProductID: "prod-cap", Quantity: 1})

	log := zaptest.NewLogger(t)
	h := &harness{
		store:  st,
		pix:    &fakePix{},
		events: &recordingPublisher{},
		cache:  &recordingCache{},
	}
	h.creator = &orders.Creator{
		Store:     st,
		Addresses: st,
		Buyers:    st,
		Payments:  h.pix,
		Freight:   orders.FreightCalculator{Origin: originZip},
		TTL:       10 * time.Minute,
		Events:    h.events,
		Logger:    log,
		Now:       func() time.Time { return fixedNow },
	}
	h.canceller = &orders.Canceller{Store: st, Events: h.events, Cache: h.cache, Logger: log}
	return h
}

func (h *harness) settler(t *testing.T, payments map[string]*orders.GatewayPayment) (*orders.Settler, *fakeFetcher) {
	f := &fakeFetcher{payments: payments}
	return &orders.Settler{
		Store:    h.store,
		Payments: f,
		Events:   h.events,
		Cache:    h.cache,
		Logger:   zaptest.NewLogger(t),
		Now:      func() time.Time { return fixedNow.Add(time.Minute) },
	}, f
}

func (h *harness) place(t *testing.T, method string, items ...orders.ItemInput) *orders.Order {
	t.Helper()
	res, err := h.creator.Create(context.Background(), buyerID, orders.CreateRequest{Items: items, PaymentMethod: method})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return res.Order
}
