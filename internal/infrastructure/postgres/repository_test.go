package postgres_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/pos-api/internal/domain"
	"github.com/jhoicas/pos-api/internal/domain/entity"
	"github.com/jhoicas/pos-api/internal/domain/repository"
	"github.com/jhoicas/pos-api/internal/infrastructure/postgres"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestProductRepo_Delete(t *testing.T) {
	mock := newMock(t)
	repo := postgres.NewProductRepository(mock)
	q := regexp.QuoteMeta(`DELETE FROM products WHERE id = $1`)

	mock.ExpectExec(q).WithArgs(int64(1)).WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "sale_items_product_id_fkey"})
	assert.ErrorIs(t, repo.Delete(context.Background(), 1), domain.ErrInUse)

	mock.ExpectExec(q).WithArgs(int64(2)).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), 2), domain.ErrNotFound)

	mock.ExpectExec(q).WithArgs(int64(3)).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	assert.NoError(t, repo.Delete(context.Background(), 3))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepo_CreateErrores(t *testing.T) {
	mock := newMock(t)
	repo := postgres.NewProductRepository(mock)
	q := regexp.QuoteMeta(`INSERT INTO products (name, sku, price, stock, provider_id)`)

	mock.ExpectQuery(q).WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	assert.ErrorIs(t, repo.Create(context.Background(), &entity.Product{Name: "A", SKU: "A"}), domain.ErrDuplicate)

	mock.ExpectQuery(q).WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23503"})
	assert.ErrorIs(t, repo.Create(context.Background(), &entity.Product{Name: "A", SKU: "B"}), domain.ErrNotFound)

	mock.ExpectQuery(q).WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23514"})
	assert.ErrorIs(t, repo.Create(context.Background(), &entity.Product{Name: "A", SKU: "C", Stock: -1}), domain.ErrInvalidInput)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepo_UpdateConservaStockSiNoViene(t *testing.T) {
	mock := newMock(t)
	repo := postgres.NewProductRepository(mock)
	q := `UPDATE products SET[\s\S]*stock\s+= COALESCE\(\$5, stock\)[\s\S]*WHERE id = \$1`
	name := "Café molido"

	mock.ExpectQuery(q).
		WithArgs(int64(3), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "sku", "price", "stock", "provider_id", "created_at", "updated_at"}))
	_, err := repo.Update(context.Background(), 3, repository.ProductChanges{Name: &name})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	sku := "DUP"
	mock.ExpectQuery(q).
		WithArgs(int64(4), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	_, err = repo.Update(context.Background(), 4, repository.ProductChanges{SKU: &sku})
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepo_GetByIDInexistente(t *testing.T) {
	mock := newMock(t)
	repo := postgres.NewProductRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM products WHERE id = $1`)).WithArgs(int64(9)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "sku", "price", "stock", "provider_id", "created_at", "updated_at"}))
	_, err := repo.GetByID(context.Background(), 9)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProviderRepo_CreateYDelete(t *testing.T) {
	mock := newMock(t)
	repo := postgres.NewProviderRepository(mock)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO providers (name, contact_name, email, phone)`)).
		WithArgs("Distribuidora", "Ana", "ana@example.com", "300").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(4), now))
	p := &entity.Provider{Name: "Distribuidora", ContactName: "Ana", Email: "ana@example.com", Phone: "300"}
	require.NoError(t, repo.Create(context.Background(), p))
	assert.Equal(t, int64(4), p.ID)
	assert.Equal(t, now, p.CreatedAt)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM providers WHERE id = $1`)).WithArgs(int64(4)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), 4), domain.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepo_FetchPendingYMarkSent(t *testing.T) {
	mock := newMock(t)
	repo := postgres.NewOutboxRepository(mock)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM outbox WHERE sent_at IS NULL ORDER BY id LIMIT $1`)).WithArgs(10).
		WillReturnRows(pgxmock.NewRows([]string{"id", "event_id", "topic", "key", "payload", "created_at"}).
			AddRow(int64(1), "e-1", entity.TopicSaleCompleted, "7", []byte(`{"sale_id":7}`), now))
	events, err := repo.FetchPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "e-1", events[0].EventID)
	assert.JSONEq(t, `{"sale_id":7}`, string(events[0].Payload))

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE outbox SET sent_at = now() WHERE id = $1`)).WithArgs(int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, repo.MarkSent(context.Background(), 1))

	assert.NoError(t, mock.ExpectationsWereMet())
}
