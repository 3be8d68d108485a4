package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/pos-api/internal/domain"
	"github.com/jhoicas/pos-api/internal/domain/entity"
	"github.com/jhoicas/pos-api/internal/domain/repository"
)

var _ repository.SaleRepository = (*SaleRepo)(nil)

var saleItemColumns = []string{"sale_id", "product_id", "quantity", "unit_price"}

// SaleRepo implementación de SaleRepository sobre PostgreSQL (usable con pool o tx).
type SaleRepo struct {
	q Querier
}

// NewSaleRepository construye el adaptador de ventas.
func NewSaleRepository(q Querier) *SaleRepo {
	return &SaleRepo{q: q}
}

// InsertSale crea la cabecera de la venta.
func (r *SaleRepo) InsertSale(ctx context.Context, total decimal.Decimal) (*entity.Sale, error) {
	sale := &entity.Sale{Total: total}
	err := r.q.QueryRow(ctx,
		`INSERT INTO sales (total) VALUES ($1) RETURNING id, created_at`, total,
	).Scan(&sale.ID, &sale.CreatedAt)
	if err != nil {
		return nil, classify("insert sale", err)
	}
	return sale, nil
}

// InsertSaleItems inserta las líneas con COPY.
func (r *SaleRepo) InsertSaleItems(ctx context.Context, saleID int64, items []*entity.SaleItem) error {
	n, err := r.q.CopyFrom(ctx, pgx.Identifier{"sale_items"}, saleItemColumns,
		pgx.CopyFromSlice(len(items), func(i int) ([]any, error) {
			it := items[i]
			return []any{saleID, it.ProductID, it.Quantity, it.UnitPrice}, nil
		}),
	)
	if err != nil {
		return classify("insert sale items", err)
	}
	if n != int64(len(items)) {
		return fmt.Errorf("insert sale items: se esperaban %d filas, se copiaron %d", len(items), n)
	}
	return nil
}

// GetByID obtiene la venta con sus líneas; domain.ErrNotFound si no existe.
func (r *SaleRepo) GetByID(ctx context.Context, id int64) (*entity.Sale, error) {
	var s entity.Sale
	err := r.q.QueryRow(ctx, `SELECT id, total, created_at FROM sales WHERE id = $1`, id).
		Scan(&s.ID, &s.Total, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, classify("get sale", err)
	}
	byID := map[int64]*entity.Sale{s.ID: &s}
	if err := r.loadItems(ctx, []int64{s.ID}, byID); err != nil {
		return nil, err
	}
	return &s, nil
}

// List lista las ventas con sus líneas, más recientes primero.
func (r *SaleRepo) List(ctx context.Context) ([]*entity.Sale, error) {
	rows, err := r.q.Query(ctx, `SELECT id, total, created_at FROM sales ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, classify("list sales", err)
	}
	var list []*entity.Sale
	for rows.Next() {
		var s entity.Sale
		if err := rows.Scan(&s.ID, &s.Total, &s.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		list = append(list, &s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, classify("list sales", err)
	}
	if len(list) == 0 {
		return list, nil
	}

	ids := make([]int64, 0, len(list))
	byID := make(map[int64]*entity.Sale, len(list))
	for _, s := range list {
		ids = append(ids, s.ID)
		byID[s.ID] = s
	}
	if err := r.loadItems(ctx, ids, byID); err != nil {
		return nil, err
	}
	return list, nil
}

func (r *SaleRepo) loadItems(ctx context.Context, saleIDs []int64, byID map[int64]*entity.Sale) error {
	query := `
		SELECT si.id, si.sale_id, si.product_id, p.name, si.quantity, si.unit_price
		FROM sale_items si
		JOIN products p ON p.id = si.product_id
		WHERE si.sale_id = ANY($1)
		ORDER BY si.sale_id, si.id`
	rows, err := r.q.Query(ctx, query, saleIDs)
	if err != nil {
		return classify("list sale items", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it entity.SaleItem
		if err := rows.Scan(&it.ID, &it.SaleID, &it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice); err != nil {
			return fmt.Errorf("scan sale item: %w", err)
		}
		if s, ok := byID[it.SaleID]; ok {
			s.Items = append(s.Items, &it)
		}
	}
	return classify("list sale items", rows.Err())
}
