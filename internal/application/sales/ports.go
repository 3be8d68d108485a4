package sales

import (
	"context"

	"github.com/jhoicas/pos-api/internal/domain/repository"
)

// TxRunner ejecuta fn dentro de una única transacción ACID con repositorios atados a ella.
// Si fn retorna error se hace Rollback completo; si no, Commit.
// Los errores de infraestructura se devuelven ya clasificados (domain.ErrConflict, domain.ErrStoreUnavailable).
type TxRunner interface {
	RunCheckout(ctx context.Context, fn func(
		stockRepo repository.StockRepository,
		saleRepo repository.SaleRepository,
		outboxRepo repository.OutboxRepository,
	) error) error
}
