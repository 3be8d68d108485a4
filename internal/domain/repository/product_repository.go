package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/pos-api/internal/domain/entity"
)

// ProductFilter filtros del listado de productos.
type ProductFilter struct {
	InStockOnly bool // solo productos con stock > 0 (pantalla de ventas)
}

// ProductChanges edición parcial de un producto. Campos nil conservan el valor almacenado;
// en particular Stock nil nunca pisa el stock que haya descontado un checkout.
type ProductChanges struct {
	Name       *string
	SKU        *string
	Price      *decimal.Decimal
	Stock      *int64
	ProviderID *int64
}

// ProductRepository define el puerto de persistencia para Product (DIP).
type ProductRepository interface {
	Create(ctx context.Context, product *entity.Product) error
	GetByID(ctx context.Context, id int64) (*entity.Product, error)
	// Update aplica los cambios en una sola escritura y devuelve el producto resultante.
	Update(ctx context.Context, id int64, changes ProductChanges) (*entity.Product, error)
	List(ctx context.Context, filter ProductFilter) ([]*entity.Product, error)
	Delete(ctx context.Context, id int64) error
}
