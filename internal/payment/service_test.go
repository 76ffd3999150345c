package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/ariefcatur/go-order-settlement/internal/mercadopago"
	"github.com/ariefcatur/go-order-settlement/internal/memstore"
	"github.com/ariefcatur/go-order-settlement/internal/orders"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeGateway struct {
	reqs     []mercadopago.PaymentRequest
	keys     []string
	resp     *mercadopago.Payment
	err      error
	payments map[string]*mercadopago.Payment
}

func (g *fakeGateway) CreatePayment(_ context.Context, req mercadopago.PaymentRequest, key string) (*mercadopago.Payment, error) {
	g.reqs = append(g.reqs, req)
	g.keys = append(g.keys, key)
	return g.resp, g.err
}

func (g *fakeGateway) GetPayment(_ context.Context, id string) (*mercadopago.Payment, error) {
	p, ok := g.payments[id]
	if !ok {
		return nil, &mercadopago.APIError{StatusCode: 404}
	}
	return p, nil
}

type settleRecorder struct{ got []*orders.GatewayPayment }

func (r *settleRecorder) SettlePayment(_ context.Context, p *orders.GatewayPayment) orders.Outcome {
	r.got = append(r.got, p)
	return orders.OutcomeSettled
}

func pixData() orders.OrderData {
	return orders.OrderData{
		OrderID: "o-1",
		Status:  orders.StatusPending,
		Total:   decimal.RequireFromString("187.67"),
		Email:   "ana@example.com",
		Name:    "Ana Maria Souza",
		TaxID:   "12345678909",
	}
}

func TestSplitName(t *testing.T) {
	cases := map[string][2]string{
		"Ana Maria Souza": {"Ana", "Maria Souza"},
		"  Ana  ":         {"Ana", "OnBack"},
		"":                {"Cliente", "OnBack"},
	}
	for in, want := range cases {
		first, last := splitName(in)
		assert.Equal(t, want[0], first, in)
		assert.Equal(t, want[1], last, in)
	}
}

func TestCreatePixPayment(t *testing.T) {
	gw := &fakeGateway{resp: &mercadopago.Payment{
		ID:     "555",
		Status: mercadopago.StatusPending,
		PointOfInteraction: &mercadopago.PointOfInteraction{
			TransactionData: &mercadopago.TransactionData{QRCode: "000201", QRCodeBase64: "iVBOR"},
		},
	}}
	s := &Service{Gateway: gw, Logger: zaptest.NewLogger(t)}

	pix, err := s.CreatePixPayment(context.Background(), pixData())
	require.NoError(t, err)
	assert.Equal(t, "555", pix.GatewayPaymentID)
	assert.Equal(t, "000201", pix.QRCode)
	assert.Equal(t, "iVBOR", pix.QRCodeBase64)

	require.Len(t, gw.reqs, 1)
	req := gw.reqs[0]
	assert.Equal(t, "pix", req.PaymentMethodID)
	assert.Equal(t, "187.67", req.TransactionAmount.String())
	assert.Equal(t, "o-1", req.ExternalReference)
	assert.Equal(t, "Ana", req.Payer.FirstName)
	assert.Equal(t, "Maria Souza", req.Payer.LastName)
	require.NotNil(t, req.Payer.Identification)
	assert.Equal(t, "CPF", req.Payer.Identification.Type)
	assert.Equal(t, "12345678909", req.Payer.Identification.Number)
	assert.Equal(t, "pix-o-1", gw.keys[0])
}

func TestCreatePixPayment_SendsCPFDigitsOnly(t *testing.T) {
	gw := &fakeGateway{resp: &mercadopago.Payment{
		ID: "556",
		PointOfInteraction: &mercadopago.PointOfInteraction{
			TransactionData: &mercadopago.TransactionData{QRCode: "000201"},
		},
	}}
	s := &Service{Gateway: gw}

	data := pixData()
	data.TaxID = "191.191.191-00"
	_, err := s.CreatePixPayment(context.Background(), data)
	require.NoError(t, err)

	require.Len(t, gw.reqs, 1)
	assert.Equal(t, "19119119100", gw.reqs[0].Payer.Identification.Number)
}

func TestCreatePixPayment_MissingQR(t *testing.T) {
	s := &Service{Gateway: &fakeGateway{resp: &mercadopago.Payment{ID: "1", Status: "pending"}}}
	_, err := s.CreatePixPayment(context.Background(), pixData())
	assert.ErrorIs(t, err, orders.ErrGatewayResponse)
}

func TestCreatePixPayment_GatewayError(t *testing.T) {
	s := &Service{Gateway: &fakeGateway{err: &mercadopago.APIError{StatusCode: 500}}}
	_, err := s.CreatePixPayment(context.Background(), pixData())
	var apiErr *mercadopago.APIError
	assert.True(t, errors.As(err, &apiErr))
}

func TestCreateCardPayment_ApprovedSettlesSynchronously(t *testing.T) {
	gw := &fakeGateway{resp: &mercadopago.Payment{
		ID:                "777",
		Status:            mercadopago.StatusApproved,
		StatusDetail:      "accredited",
		PaymentMethodID:   "visa",
		TransactionAmount: decimal.RequireFromString("187.67"),
		ExternalReference: "o-1",
	}}
	rec := &settleRecorder{}
	s := &Service{Gateway: gw, Settler: rec}

	res, err := s.CreateCardPayment(context.Background(), pixData(), CardRequest{OrderID: "o-1", Token: "tok"})
	require.NoError(t, err)
	assert.Equal(t, "777", res.GatewayPaymentID)
	assert.Equal(t, mercadopago.StatusApproved, res.Status)
	assert.Equal(t, "accredited", res.StatusDetail)

	require.Len(t, gw.reqs, 1)
	assert.Equal(t, 1, gw.reqs[0].Installments)
	assert.Equal(t, "credit_card", gw.reqs[0].PaymentMethodID)
	assert.Equal(t, "tok", gw.reqs[0].Token)

	require.Len(t, rec.got, 1)
	assert.Equal(t, "777", rec.got[0].ID)
	assert.Equal(t, "o-1", rec.got[0].ExternalReference)
}

func TestCreateCardPayment_RejectedDoesNotSettle(t *testing.T) {
	gw := &fakeGateway{resp: &mercadopago.Payment{ID: "778", Status: mercadopago.StatusRejected, StatusDetail: "cc_rejected_insufficient_amount"}}
	rec := &settleRecorder{}
	s := &Service{Gateway: gw, Settler: rec}

	res, err := s.CreateCardPayment(context.Background(), pixData(), CardRequest{OrderID: "o-1", Token: "tok", Installments: 3, PaymentMethodID: "debit_card"})
	require.NoError(t, err)
	assert.Equal(t, mercadopago.StatusRejected, res.Status)
	assert.Empty(t, rec.got)
	assert.Equal(t, 3, gw.reqs[0].Installments)
	assert.Equal(t, "debit_card", gw.reqs[0].PaymentMethodID)
}

func TestValidateCard(t *testing.T) {
	cases := []CardRequest{
		{Token: "t"},
		{OrderID: "o"},
		{OrderID: "o", Token: "t", Installments: -1},
		{OrderID: "o", Token: "t", PaymentMethodID: "pix"},
		{OrderID: "o", Token: "t", PaymentMethodID: "boleto"},
	}
	for _, c := range cases {
		assert.ErrorIs(t, ValidateCard(c), orders.ErrValidation, "%+v", c)
	}
	assert.NoError(t, ValidateCard(CardRequest{OrderID: "o", Token: "t", PaymentMethodID: "debit_card"}))
}

func TestConfirmCard_EndToEndSettlement(t *testing.T) {
	st := memstore.New()
	st.PutUser(orders.User{ID: 1, Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, st.WithTx(context.Background(), func(tx orders.Tx) error {
		return tx.InsertOrder(context.Background(), &orders.Order{
			ID: "o-1", UserID: 1, Status: orders.StatusPending,
			PaymentMethod: orders.PaymentCreditCard, Total: decimal.RequireFromString("50.00"),
		})
	}))

	gw := &fakeGateway{resp: &mercadopago.Payment{ID: "901", Status: mercadopago.StatusApproved, PaymentMethodID: "master", ExternalReference: "o-1"}}
	svc := &Service{Gateway: gw, Buyers: st, Logger: zaptest.NewLogger(t)}
	svc.Settler = &orders.Settler{Store: st, Payments: svc, Logger: zaptest.NewLogger(t)}

	_, err := svc.ConfirmCard(context.Background(), CardRequest{OrderID: "o-1", Token: "tok"})
	require.NoError(t, err)

	o, err := st.GetOrder(context.Background(), "o-1")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPaid, o.Status)
	assert.Equal(t, "901", *o.PaymentID)
	assert.Equal(t, "master", *o.PaymentType)

	_, err = svc.ConfirmCard(context.Background(), CardRequest{OrderID: "o-1", Token: "tok"})
	assert.ErrorIs(t, err, orders.ErrInvalidStateTransition)
	assert.Len(t, gw.reqs, 1, "paid orders never reach the gateway")

	_, err = svc.ConfirmCard(context.Background(), CardRequest{OrderID: "ghost", Token: "tok"})
	assert.ErrorIs(t, err, orders.ErrNotFound)
}

func TestConfirmCard_RejectsPixOrders(t *testing.T) {
	st := memstore.New()
	st.PutUser(orders.User{ID: 1, Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, st.WithTx(context.Background(), func(tx orders.Tx) error {
		return tx.InsertOrder(context.Background(), &orders.Order{
			ID: "o-pix", UserID: 1, Status: orders.StatusPending,
			PaymentMethod: orders.PaymentPix, Total: decimal.RequireFromString("90.00"),
		})
	}))

	gw := &fakeGateway{resp: &mercadopago.Payment{ID: "1", Status: mercadopago.StatusApproved}}
	svc := &Service{Gateway: gw, Buyers: st}

	_, err := svc.ConfirmCard(context.Background(), CardRequest{OrderID: "o-pix", Token: "tok"})
	var ve *orders.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "orderId", ve.Field)
	assert.Empty(t, gw.reqs, "discounted pix totals never reach the card path")
}

func TestGetPayment(t *testing.T) {
	gw := &fakeGateway{payments: map[string]*mercadopago.Payment{
		"9": {ID: "9", Status: "approved", PaymentMethodID: "pix", PaymentTypeID: "bank_transfer", ExternalReference: "o-1"},
	}}
	s := &Service{Gateway: gw}

	p, err := s.GetPayment(context.Background(), "9")
	require.NoError(t, err)
	assert.True(t, p.Approved())
	assert.Equal(t, "pix", p.PaymentMethodID)
	assert.Equal(t, "o-1", p.ExternalReference)

	_, err = s.GetPayment(context.Background(), "10")
	assert.Error(t, err)
}
