package orders

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCalculateFreight(t *testing.T) {
	cases := []struct {
		name         string
		origin, dest string
		weight       string
		volume       string
		want         string
	}{
		{"same region, nothing else", "26584-260", "26000-000", "0", "0", "8.00"},
		{"other region", "26584-260", "01001-000", "0", "0", "20.00"},
		{"weight surcharge", "26584-260", "26000-000", "2000", "0", "9.00"},
		{"volume surcharge", "26584-260", "01001-000", "0", "5000", "20.05"},
		{"rounded to cents", "26584-260", "26111-111", "333", "0", "8.17"},
		{"short destination", "26584-260", "2", "0", "0", "20.00"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CalculateFreight(tc.origin, tc.dest, dec(tc.weight), dec(tc.volume))
			assert.Equal(t, tc.want, got.StringFixed(2))
		})
	}
}

func TestFreightCalculator_UsesConfiguredOrigin(t *testing.T) {
	f := FreightCalculator{Origin: "01001-000"}
	assert.Equal(t, "8.00", f.Quote("01310-100", decimal.Zero, decimal.Zero).StringFixed(2))
	assert.Equal(t, "20.00", f.Quote("26584-260", decimal.Zero, decimal.Zero).StringFixed(2))
}

func TestPrice(t *testing.T) {
	t.Run("pix gets ten percent off subtotal plus freight", func(t *testing.T) {
		p := Price(dec("200.00"), dec("8.52"), PaymentPix)
		assert.Equal(t, "20.85", p.Discount.StringFixed(2))
		assert.Equal(t, "187.67", p.Total.StringFixed(2))
	})

	for _, m := range []PaymentMethod{PaymentCreditCard, PaymentDebitCard} {
		t.Run(string(m)+" pays full price", func(t *testing.T) {
			p := Price(dec("200.00"), dec("8.52"), m)
			assert.True(t, p.Discount.IsZero())
			assert.Equal(t, "208.52", p.Total.StringFixed(2))
		})
	}

	t.Run("total reconciles to the cent", func(t *testing.T) {
		for _, sub := range []string{"0.01", "19.99", "123.45", "999.99"} {
			p := Price(dec(sub), dec("20.07"), PaymentPix)
			sum := p.Subtotal.Add(p.Freight).Sub(p.Discount)
			assert.True(t, sum.Equal(p.Total), "subtotal %s", sub)
		}
	})
}

func TestProductShippingDimensions(t *testing.T) {
	p := Product{
		Height: decimal.NewNullDecimal(dec("10")),
		Width:  decimal.NewNullDecimal(dec("0")),
	}
	assert.True(t, p.ShippingWeight().IsZero())
	assert.Equal(t, "10", p.ShippingVolume().String())
}

func TestParsePaymentMethod(t *testing.T) {
	m, err := ParsePaymentMethod("")
	assert.NoError(t, err)
	assert.Equal(t, PaymentPix, m)

	m, err = ParsePaymentMethod("debit_card")
	assert.NoError(t, err)
	assert.True(t, m.IsCard())

	_, err = ParsePaymentMethod("boleto")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusPending, StatusPaid))
	assert.True(t, CanTransition(StatusPending, StatusCanceled))
	assert.False(t, CanTransition(StatusPaid, StatusCanceled))
	assert.False(t, CanTransition(StatusCanceled, StatusCanceled))
	assert.False(t, CanTransition(StatusCanceled, StatusPaid))
	assert.False(t, CanTransition(Status("UNKNOWN"), StatusPaid))
}
