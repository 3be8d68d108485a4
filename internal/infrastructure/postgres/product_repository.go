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

var _ repository.ProductRepository = (*ProductRepo)(nil)

const productColumns = `id, name, sku, price, stock, provider_id, created_at, updated_at`

// ProductRepo implementación del puerto ProductRepository sobre PostgreSQL (usable con pool o tx).
type ProductRepo struct {
	q Querier
}

// NewProductRepository construye el adaptador de persistencia para productos. Pasar pool o tx (Querier).
func NewProductRepository(q Querier) *ProductRepo {
	return &ProductRepo{q: q}
}

// Create persiste un nuevo producto y completa ID y fechas.
func (r *ProductRepo) Create(ctx context.Context, product *entity.Product) error {
	query := `
		INSERT INTO products (name, sku, price, stock, provider_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`
	err := r.q.QueryRow(ctx, query,
		product.Name, product.SKU, product.Price, product.Stock, product.ProviderID,
	).Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return productWriteError("insert product", err)
	}
	return nil
}

// GetByID obtiene un producto por ID; domain.ErrNotFound si no existe.
func (r *ProductRepo) GetByID(ctx context.Context, id int64) (*entity.Product, error) {
	p, err := scanProduct(r.q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, classify("get product", err)
	}
	return p, nil
}

// Update aplica los campos no nulos en un solo UPDATE. Con Stock nil la columna conserva
// el valor actual de la fila, así una edición de catálogo no revierte descuentos de ventas.
func (r *ProductRepo) Update(ctx context.Context, id int64, changes repository.ProductChanges) (*entity.Product, error) {
	query := `
		UPDATE products SET
			name        = COALESCE($2, name),
			sku         = COALESCE($3, sku),
			price       = COALESCE($4, price),
			stock       = COALESCE($5, stock),
			provider_id = COALESCE($6, provider_id),
			updated_at  = now()
		WHERE id = $1
		RETURNING ` + productColumns
	p, err := scanProduct(r.q.QueryRow(ctx, query,
		id, changes.Name, changes.SKU, changes.Price, changes.Stock, changes.ProviderID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, productWriteError("update product", err)
	}
	return p, nil
}

// List lista productos ordenados por nombre. Con InStockOnly solo los que tienen stock > 0.
func (r *ProductRepo) List(ctx context.Context, filter repository.ProductFilter) ([]*entity.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE ($1::boolean = false OR stock > 0) ORDER BY name, id`
	rows, err := r.q.Query(ctx, query, filter.InStockOnly)
	if err != nil {
		return nil, classify("list products", err)
	}
	defer rows.Close()
	var list []*entity.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		list = append(list, p)
	}
	return list, classify("list products", rows.Err())
}

// Delete elimina un producto; domain.ErrInUse si tiene ventas asociadas.
func (r *ProductRepo) Delete(ctx context.Context, id int64) error {
	cmd, err := r.q.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return domain.ErrInUse
		}
		return classify("delete product", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanProduct(row pgx.Row) (*entity.Product, error) {
	var p entity.Product
	if err := row.Scan(&p.ID, &p.Name, &p.SKU, &p.Price, &p.Stock, &p.ProviderID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// productWriteError: en altas y ediciones un FK roto es un proveedor inexistente y un CHECK es entrada inválida.
func productWriteError(op string, err error) error {
	switch pgCode(err) {
	case codeUniqueViolation:
		return domain.ErrDuplicate
	case codeForeignKeyViolation:
		return fmt.Errorf("proveedor: %w", domain.ErrNotFound)
	case codeCheckViolation:
		return fmt.Errorf("%w: precio y stock deben ser >= 0", domain.ErrInvalidInput)
	}
	return classify(op, err)
}
