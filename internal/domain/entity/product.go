package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product representa un producto del inventario.
// Stock solo lo modifica el inventario (alta/edición) y el checkout (descuento condicional).
type Product struct {
	ID         int64
	Name       string
	SKU        string          // único
	Price      decimal.Decimal // precio de catálogo
	Stock      int64
	ProviderID *int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
