package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/pos-api/internal/application/sales"
	"github.com/jhoicas/pos-api/internal/domain"
	"github.com/jhoicas/pos-api/internal/domain/repository"
)

var _ sales.TxRunner = (*TxRunner)(nil)

// TxConfig aislamiento y lock_timeout de la transacción de checkout.
type TxConfig struct {
	Isolation   pgx.TxIsoLevel
	LockTimeout time.Duration // 0 = sin lock_timeout
}

// ParseIsolation acepta read_committed, repeatable_read o serializable (vacío = read_committed).
func ParseIsolation(s string) (pgx.TxIsoLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "read_committed", "read committed":
		return pgx.ReadCommitted, nil
	case "repeatable_read", "repeatable read":
		return pgx.RepeatableRead, nil
	case "serializable":
		return pgx.Serializable, nil
	}
	return "", fmt.Errorf("nivel de aislamiento desconocido %q", s)
}

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	db  TxBeginner
	cfg TxConfig
}

// NewTxRunner construye el runner con el pool (o cualquier TxBeginner).
func NewTxRunner(db TxBeginner, cfg TxConfig) *TxRunner {
	if cfg.Isolation == "" {
		cfg.Isolation = pgx.ReadCommitted
	}
	return &TxRunner{db: db, cfg: cfg}
}

// RunCheckout inicia una transacción, ejecuta fn con repos atados a la tx y hace Commit o Rollback.
func (r *TxRunner) RunCheckout(ctx context.Context, fn func(
	stockRepo repository.StockRepository,
	saleRepo repository.SaleRepository,
	outboxRepo repository.OutboxRepository,
) error) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: r.cfg.Isolation})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: begin transaction: %w", domain.ErrStoreUnavailable, err)
	}
	// Rollback tras Commit es no-op; con ctx cancelado igual debe llegar al servidor.
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if r.cfg.LockTimeout > 0 {
		// SET no admite parámetros; el valor es un entero controlado por config.
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.cfg.LockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return classify("set lock_timeout", err)
		}
	}

	if err := fn(NewStockRepository(tx), NewSaleRepository(tx), NewOutboxRepository(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		cerr := classify("commit transaction", err)
		if errors.Is(cerr, domain.ErrConflict) || errors.Is(cerr, domain.ErrStoreUnavailable) || ctx.Err() != nil {
			return cerr
		}
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, cerr)
	}
	return nil
}
