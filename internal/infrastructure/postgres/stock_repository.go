package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/pos-api/internal/domain"
	"github.com/jhoicas/pos-api/internal/domain/repository"
)

var _ repository.StockRepository = (*StockRepo)(nil)

// StockRepo implementación de StockRepository sobre PostgreSQL. Solo tiene sentido dentro de una tx.
type StockRepo struct {
	q Querier
}

// NewStockRepository construye el adaptador de stock. Pasar la tx del checkout.
func NewStockRepository(q Querier) *StockRepo {
	return &StockRepo{q: q}
}

// ReadStock obtiene el stock y bloquea la fila hasta el fin de la tx (SELECT FOR UPDATE).
func (r *StockRepo) ReadStock(ctx context.Context, productID int64) (int64, error) {
	var stock int64
	err := r.q.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1 FOR UPDATE`, productID).Scan(&stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, classify("read stock", err)
	}
	return stock, nil
}

// ConditionalDecrement descuenta solo si alcanza; 0 filas afectadas significa que el stock cambió.
func (r *StockRepo) ConditionalDecrement(ctx context.Context, productID, amount int64) error {
	cmd, err := r.q.Exec(ctx,
		`UPDATE products SET stock = stock - $2, updated_at = now() WHERE id = $1 AND stock >= $2`,
		productID, amount,
	)
	if err != nil {
		return classify("decrement stock", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: stock de producto %d cambió durante la transacción", domain.ErrConflict, productID)
	}
	return nil
}
