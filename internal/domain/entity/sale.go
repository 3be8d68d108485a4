package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartItem es una línea del carrito. Efímera: solo existe durante la petición de checkout.
type CartItem struct {
	ProductID int64
	Quantity  int64
	UnitPrice decimal.Decimal // precio cotizado al armar el carrito
}

// Sale representa la cabecera de una venta. Inmutable tras el commit.
type Sale struct {
	ID        int64
	Total     decimal.Decimal
	CreatedAt time.Time
	Items     []*SaleItem
}

// SaleItem representa una línea de venta con el precio congelado al momento de la venta.
type SaleItem struct {
	ID          int64
	SaleID      int64
	ProductID   int64
	ProductName string // solo lectura (join con products)
	Quantity    int64
	UnitPrice   decimal.Decimal
}

// Subtotal devuelve Quantity × UnitPrice.
func (i *SaleItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(i.Quantity))
}
