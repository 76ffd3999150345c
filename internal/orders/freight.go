package orders

import "github.com/shopspring/decimal"

var (
	sameRegionRate  = decimal.RequireFromString("8.00")
	otherRegionRate = decimal.RequireFromString("20.00")
	weightRate      = decimal.RequireFromString("0.50") // per kg
	volumeRate      = decimal.RequireFromString("0.01") // per 1000 cubic units
	thousand        = decimal.NewFromInt(1000)
)

// FreightCalculator prices shipping from a fixed origin postal code.
type FreightCalculator struct {
	Origin string
}

func (f FreightCalculator) Quote(destination string, weight, volume decimal.Decimal) decimal.Decimal {
	return CalculateFreight(f.Origin, destination, weight, volume)
}

// CalculateFreight compares the two-character region prefix of both postal
// codes, then adds weight and volume surcharges. Result is rounded to cents.
func CalculateFreight(origin, destination string, weight, volume decimal.Decimal) decimal.Decimal {
	base := otherRegionRate
	if regionPrefix(origin) == regionPrefix(destination) {
		base = sameRegionRate
	}
	weightCost := weight.Div(thousand).Mul(weightRate)
	volumeCost := volume.Div(thousand).Mul(volumeRate)
	return base.Add(weightCost).Add(volumeCost).Round(2)
}

func regionPrefix(zip string) string {
	if len(zip) < 2 {
		return zip
	}
	return zip[:2]
}
