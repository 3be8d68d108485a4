package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/pos-api/internal/domain"
	"github.com/jhoicas/pos-api/internal/domain/entity"
	"github.com/jhoicas/pos-api/internal/domain/repository"
)

var _ repository.ProviderRepository = (*ProviderRepo)(nil)

// ProviderRepo implementación de ProviderRepository sobre PostgreSQL.
type ProviderRepo struct {
	q Querier
}

// NewProviderRepository construye el adaptador de proveedores.
func NewProviderRepository(q Querier) *ProviderRepo {
	return &ProviderRepo{q: q}
}

func (r *ProviderRepo) Create(ctx context.Context, p *entity.Provider) error {
	query := `
		INSERT INTO providers (name, contact_name, email, phone)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`
	err := r.q.QueryRow(ctx, query, p.Name, p.ContactName, p.Email, p.Phone).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return classify("insert provider", err)
	}
	return nil
}

func (r *ProviderRepo) GetByID(ctx context.Context, id int64) (*entity.Provider, error) {
	var p entity.Provider
	err := r.q.QueryRow(ctx,
		`SELECT id, name, contact_name, email, phone, created_at FROM providers WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.ContactName, &p.Email, &p.Phone, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, classify("get provider", err)
	}
	return &p, nil
}

// List devuelve los proveedores, más recientes primero.
func (r *ProviderRepo) List(ctx context.Context) ([]*entity.Provider, error) {
	rows, err := r.q.Query(ctx,
		`SELECT id, name, contact_name, email, phone, created_at FROM providers ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, classify("list providers", err)
	}
	defer rows.Close()
	var list []*entity.Provider
	for rows.Next() {
		var p entity.Provider
		if err := rows.Scan(&p.ID, &p.Name, &p.ContactName, &p.Email, &p.Phone, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		list = append(list, &p)
	}
	return list, classify("list providers", rows.Err())
}

// Delete elimina el proveedor; products.provider_id queda NULL por el FK.
func (r *ProviderRepo) Delete(ctx context.Context, id int64) error {
	cmd, err := r.q.Exec(ctx, `DELETE FROM providers WHERE id = $1`, id)
	if err != nil {
		return classify("delete provider", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
