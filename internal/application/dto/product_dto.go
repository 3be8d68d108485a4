package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateProductRequest entrada para crear un producto.
type CreateProductRequest struct {
	Name       string          `json:"name"`
	SKU        string          `json:"sku"`
	Price      decimal.Decimal `json:"price"`
	Stock      int64           `json:"stock"`
	ProviderID *int64          `json:"provider_id"`
}

// UpdateProductRequest entrada para actualizar un producto. Campos nil no se modifican.
type UpdateProductRequest struct {
	Name       *string          `json:"name"`
	SKU        *string          `json:"sku"`
	Price      *decimal.Decimal `json:"price"`
	Stock      *int64           `json:"stock"`
	ProviderID *int64           `json:"provider_id"`
}

// ProductResponse salida de un producto.
type ProductResponse struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	SKU        string          `json:"sku"`
	Price      decimal.Decimal `json:"price"`
	Stock      int64           `json:"stock"`
	ProviderID *int64          `json:"provider_id"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
