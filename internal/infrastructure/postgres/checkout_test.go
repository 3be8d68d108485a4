package postgres_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/pos-api/internal/application/sales"
	"github.com/jhoicas/pos-api/internal/domain"
	"github.com/jhoicas/pos-api/internal/domain/entity"
	"github.com/jhoicas/pos-api/internal/infrastructure/postgres"
)

var (
	qReadStock = regexp.QuoteMeta(`SELECT stock FROM products WHERE id = $1 FOR UPDATE`)
	qDecrement = regexp.QuoteMeta(`UPDATE products SET stock = stock - $2, updated_at = now() WHERE id = $1 AND stock >= $2`)
	qSale      = regexp.QuoteMeta(`INSERT INTO sales (total) VALUES ($1) RETURNING id, created_at`)
	qOutbox    = regexp.QuoteMeta(`INSERT INTO outbox (event_id, topic, key, payload)`)
	qLock      = regexp.QuoteMeta(`SET LOCAL lock_timeout = '1500ms'`)
)

func newCheckout(t *testing.T, cfg sales.CheckoutConfig) (*sales.CheckoutUseCase, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	runner := postgres.NewTxRunner(mock, postgres.TxConfig{Isolation: pgx.ReadCommitted, LockTimeout: 1500 * time.Millisecond})
	uc := sales.NewCheckoutUseCase(runner, postgres.NewSaleRepository(mock), cfg, zerolog.Nop(), nil)
	return uc, mock
}

func expectBegin(mock pgxmock.PgxPoolIface) {
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectExec(qLock).WillReturnResult(pgxmock.NewResult("SET", 0))
}

func cart() []entity.CartItem {
	return []entity.CartItem{
		{ProductID: 2, Quantity: 1, UnitPrice: decimal.RequireFromString("5.00")},
		{ProductID: 1, Quantity: 2, UnitPrice: decimal.RequireFromString("9.99")},
	}
}

func TestCheckout_Postgres_CommitEnOrdenDeBloqueo(t *testing.T) {
	uc, mock := newCheckout(t, sales.CheckoutConfig{})

	expectBegin(mock)
	mock.ExpectQuery(qReadStock).WithArgs(int64(1)).WillReturnRows(pgxmock.NewRows([]string{"stock"}).AddRow(int64(5)))
	mock.ExpectQuery(qReadStock).WithArgs(int64(2)).WillReturnRows(pgxmock.NewRows([]string{"stock"}).AddRow(int64(3)))
	mock.ExpectExec(qDecrement).WithArgs(int64(1), int64(2)).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(qDecrement).WithArgs(int64(2), int64(1)).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(qSale).WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(77), time.Now()))
	mock.ExpectCopyFrom(pgx.Identifier{"sale_items"}, []string{"sale_id", "product_id", "quantity", "unit_price"}).
		WillReturnResult(2)
	mock.ExpectQuery(qOutbox).WithArgs(pgxmock.AnyArg(), entity.TopicSaleCompleted, "77", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), time.Now()))
	mock.ExpectCommit()

	saleID, err := uc.Checkout(context.Background(), cart())
	require.NoError(t, err)
	assert.Equal(t, int64(77), saleID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckout_Postgres_StockInsuficienteHaceRollback(t *testing.T) {
	uc, mock := newCheckout(t, sales.CheckoutConfig{MaxRetries: 3})

	expectBegin(mock)
	mock.ExpectQuery(qReadStock).WithArgs(int64(1)).WillReturnRows(pgxmock.NewRows([]string{"stock"}).AddRow(int64(1)))
	mock.ExpectQuery(qReadStock).WithArgs(int64(2)).WillReturnRows(pgxmock.NewRows([]string{"stock"}).AddRow(int64(0)))
	mock.ExpectRollback()

	_, err := uc.Checkout(context.Background(), cart())
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	var shortErr *domain.InsufficientStockError
	require.True(t, errors.As(err, &shortErr))
	assert.Equal(t, []domain.StockShortage{
		{ProductID: 1, Requested: 2, Available: 1},
		{ProductID: 2, Requested: 1, Available: 0},
	}, shortErr.Shortages)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckout_Postgres_ProductoInexistente(t *testing.T) {
	uc, mock := newCheckout(t, sales.CheckoutConfig{})

	expectBegin(mock)
	mock.ExpectQuery(qReadStock).WithArgs(int64(1)).WillReturnRows(pgxmock.NewRows([]string{"stock"}))
	mock.ExpectQuery(qReadStock).WithArgs(int64(2)).WillReturnRows(pgxmock.NewRows([]string{"stock"}).AddRow(int64(9)))
	mock.ExpectRollback()

	_, err := uc.Checkout(context.Background(), cart())
	require.ErrorIs(t, err, domain.ErrUnknownProduct)
	var unkErr *domain.UnknownProductError
	require.True(t, errors.As(err, &unkErr))
	assert.Equal(t, []int64{1}, unkErr.ProductIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckout_Postgres_SerializacionSeReintenta(t *testing.T) {
	uc, mock := newCheckout(t, sales.CheckoutConfig{MaxRetries: 2})
	items := []entity.CartItem{{ProductID: 1, Quantity: 1, UnitPrice: decimal.NewFromInt(4)}}

	expectBegin(mock)
	mock.ExpectQuery(qReadStock).WithArgs(int64(1)).WillReturnError(&pgconn.PgError{Code: "40001", Message: "could not serialize access"})
	mock.ExpectRollback()

	expectBegin(mock)
	mock.ExpectQuery(qReadStock).WithArgs(int64(1)).WillReturnRows(pgxmock.NewRows([]string{"stock"}).AddRow(int64(1)))
	mock.ExpectExec(qDecrement).WithArgs(int64(1), int64(1)).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(qSale).WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(5), time.Now()))
	mock.ExpectCopyFrom(pgx.Identifier{"sale_items"}, []string{"sale_id", "product_id", "quantity", "unit_price"}).
		WillReturnResult(1)
	mock.ExpectQuery(qOutbox).WithArgs(pgxmock.AnyArg(), entity.TopicSaleCompleted, "5", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), time.Now()))
	mock.ExpectCommit()

	saleID, err := uc.Checkout(context.Background(), items)
	require.NoError(t, err)
	assert.Equal(t, int64(5), saleID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckout_Postgres_DescuentoSinFilasEsConflicto(t *testing.T) {
	uc, mock := newCheckout(t, sales.CheckoutConfig{MaxRetries: 0})
	items := []entity.CartItem{{ProductID: 1, Quantity: 1, UnitPrice: decimal.NewFromInt(4)}}

	expectBegin(mock)
	mock.ExpectQuery(qReadStock).WithArgs(int64(1)).WillReturnRows(pgxmock.NewRows([]string{"stock"}).AddRow(int64(1)))
	mock.ExpectExec(qDecrement).WithArgs(int64(1), int64(1)).WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	_, err := uc.Checkout(context.Background(), items)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckout_Postgres_BeginFallaEsNoDisponible(t *testing.T) {
	uc, mock := newCheckout(t, sales.CheckoutConfig{})
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted}).WillReturnError(errors.New("connection refused"))

	_, err := uc.Checkout(context.Background(), cart())
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckout_Postgres_CommitFallaEsNoDisponible(t *testing.T) {
	uc, mock := newCheckout(t, sales.CheckoutConfig{})
	items := []entity.CartItem{{ProductID: 1, Quantity: 1, UnitPrice: decimal.NewFromInt(4)}}

	expectBegin(mock)
	mock.ExpectQuery(qReadStock).WithArgs(int64(1)).WillReturnRows(pgxmock.NewRows([]string{"stock"}).AddRow(int64(1)))
	mock.ExpectExec(qDecrement).WithArgs(int64(1), int64(1)).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(qSale).WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(5), time.Now()))
	mock.ExpectCopyFrom(pgx.Identifier{"sale_items"}, []string{"sale_id", "product_id", "quantity", "unit_price"}).
		WillReturnResult(1)
	mock.ExpectQuery(qOutbox).WithArgs(pgxmock.AnyArg(), entity.TopicSaleCompleted, "5", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), time.Now()))
	mock.ExpectCommit().WillReturnError(errors.New("unexpected EOF"))
	mock.ExpectRollback()

	_, err := uc.Checkout(context.Background(), items)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}
