package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartItemRequest línea del carrito en POST /api/sales. unit_price es obligatorio ("0" vale, ausente o null no).
type CartItemRequest struct {
	ProductID int64            `json:"product_id"`
	Quantity  int64            `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
}

// CheckoutRequest body para POST /api/sales.
type CheckoutRequest struct {
	Items []CartItemRequest `json:"items"`
}

// CheckoutResponse salida de un checkout confirmado.
type CheckoutResponse struct {
	SaleID  int64  `json:"sale_id"`
	Message string `json:"message"`
}

// StockShortageDTO detalle de ErrInsufficientStock por producto.
type StockShortageDTO struct {
	ProductID int64 `json:"product_id"`
	Requested int64 `json:"requested"`
	Available int64 `json:"available"`
}

// SaleItemResponse línea de una venta.
type SaleItemResponse struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name,omitempty"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// SaleResponse venta con sus líneas.
type SaleResponse struct {
	ID        int64              `json:"id"`
	Total     decimal.Decimal    `json:"total"`
	CreatedAt time.Time          `json:"created_at"`
	Items     []SaleItemResponse `json:"items"`
}
