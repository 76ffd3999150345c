package orders

import "github.com/shopspring/decimal"

var PixDiscountRate = decimal.RequireFromString("0.10")

type Pricing struct {
	Subtotal decimal.Decimal
	Freight  decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// Price applies the PIX discount on subtotal plus freight. Card payments pay
// the full amount. The discount is rounded to cents so the total reconciles
// exactly with its parts.
func Price(subtotal, freight decimal.Decimal, method PaymentMethod) Pricing {
	gross := subtotal.Add(freight)
	discount := decimal.Zero
	if method == PaymentPix {
		discount = gross.Mul(PixDiscountRate).Round(2)
	}
	return Pricing{
		Subtotal: subtotal,
		Freight:  freight,
		Discount: discount,
		Total:    gross.Sub(discount),
	}
}
