package main

import (
	"github.com/ariefcatur/go-order-settlement/internal/memstore"
	"github.com/ariefcatur/go-order-settlement/internal/orders"
	"github.com/shopspring/decimal"
)

// seedDemo loads a small catalog so STORE_DRIVER=memory is usable without a
// database. User 1 has a default address; sign a token for id 1 to try it.
func seedDemo(s *memstore.Store) {
	s.PutUser(orders.User{ID: 1, Name: "Cliente Demo", Email: "demo@example.com", TaxID: "19119119100"})
	s.PutAddress(orders.Address{ID: 1, UserID: 1, ZipCode: "26584-260", IsDefault: true})

	size := func(v string) *string { return &v }
	dec := func(v string) decimal.NullDecimal {
		return decimal.NewNullDecimal(decimal.RequireFromString(v))
	}

	s.PutProduct(orders.Product{
		ID: "prod-shirt", Name: "Camiseta", Price: decimal.RequireFromString("79.90"),
		Weight: dec("300"), Height: dec("3"), Width: dec("25"), Length: dec("30"),
	})
	s.PutProduct(orders.Product{ID: "prod-cap", Name: "Bone", Price: decimal.RequireFromString("49.90")})

	s.PutStock(orders.Stock{ID: "stk-shirt-m", ProductID: "prod-shirt", Size: size("M"), Quantity: 20})
	s.PutStock(orders.Stock{ID: "stk-shirt-g", ProductID: "prod-shirt", Size: size("G"), Quantity: 10})
	s.PutStock(orders.Stock{ID: "stk-cap", ProductID: "prod-cap", Quantity: 5})
}
