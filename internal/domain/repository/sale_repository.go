package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/pos-api/internal/domain/entity"
)

// SaleRepository define el puerto de persistencia para Sale y sus líneas.
type SaleRepository interface {
	// InsertSale crea la cabecera y devuelve la venta con ID y CreatedAt asignados.
	InsertSale(ctx context.Context, total decimal.Decimal) (*entity.Sale, error)
	InsertSaleItems(ctx context.Context, saleID int64, items []*entity.SaleItem) error
	// GetByID devuelve la venta con sus líneas; domain.ErrNotFound si no existe.
	GetByID(ctx context.Context, id int64) (*entity.Sale, error)
	// List devuelve las ventas con sus líneas, más recientes primero.
	List(ctx context.Context) ([]*entity.Sale, error)
}
