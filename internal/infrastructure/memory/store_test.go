package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/pos-api/internal/domain"
	"github.com/jhoicas/pos-api/internal/domain/entity"
	"github.com/jhoicas/pos-api/internal/domain/repository"
	"github.com/jhoicas/pos-api/internal/infrastructure/memory"
)

func newProduct(t *testing.T, s *memory.Store, sku string, stock int64) *entity.Product {
	t.Helper()
	p := &entity.Product{Name: sku, SKU: sku, Price: decimal.NewFromInt(1), Stock: stock}
	require.NoError(t, s.Create(context.Background(), p))
	return p
}

func TestRunCheckout_ErrorHaceRollback(t *testing.T) {
	s := memory.NewStore()
	p := newProduct(t, s, "A", 5)
	boom := errors.New("boom")

	err := s.RunCheckout(context.Background(), func(stock repository.StockRepository, sales repository.SaleRepository, outbox repository.OutboxRepository) error {
		require.NoError(t, stock.ConditionalDecrement(context.Background(), p.ID, 3))
		sale, err := sales.InsertSale(context.Background(), decimal.NewFromInt(3))
		require.NoError(t, err)
		require.NoError(t, sales.InsertSaleItems(context.Background(), sale.ID, []*entity.SaleItem{{ProductID: p.ID, Quantity: 3, UnitPrice: decimal.NewFromInt(1)}}))
		require.NoError(t, outbox.Insert(context.Background(), &entity.OutboxEvent{Topic: entity.TopicSaleCompleted}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.Stock)
	list, err := s.SaleStore().List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
	pending, err := s.FetchPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRunCheckout_DescuentoCondicionalVeCambiosPendientes(t *testing.T) {
	s := memory.NewStore()
	p := newProduct(t, s, "A", 5)

	err := s.RunCheckout(context.Background(), func(stock repository.StockRepository, _ repository.SaleRepository, _ repository.OutboxRepository) error {
		require.NoError(t, stock.ConditionalDecrement(context.Background(), p.ID, 4))
		left, err := stock.ReadStock(context.Background(), p.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), left)
		return stock.ConditionalDecrement(context.Background(), p.ID, 2)
	})
	assert.ErrorIs(t, err, domain.ErrConflict)

	got, err := s.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.Stock)
}

func TestRunCheckout_ReadStockProductoInexistente(t *testing.T) {
	s := memory.NewStore()
	err := s.RunCheckout(context.Background(), func(stock repository.StockRepository, _ repository.SaleRepository, _ repository.OutboxRepository) error {
		_, err := stock.ReadStock(context.Background(), 999)
		return err
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRunCheckout_LockTimeoutEsConflicto(t *testing.T) {
	s := memory.NewStore(memory.WithLockTimeout(20 * time.Millisecond))
	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- s.RunCheckout(context.Background(), func(repository.StockRepository, repository.SaleRepository, repository.OutboxRepository) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	err := s.RunCheckout(context.Background(), func(repository.StockRepository, repository.SaleRepository, repository.OutboxRepository) error {
		t.Fatal("no debe ejecutarse sin el lock")
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.NotErrorIs(t, err, domain.ErrInsufficientStock)

	close(release)
	require.NoError(t, <-done)
}

func TestRunCheckout_ContextoCanceladoNoConfirma(t *testing.T) {
	s := memory.NewStore()
	p := newProduct(t, s, "A", 5)
	ctx, cancel := context.WithCancel(context.Background())

	err := s.RunCheckout(ctx, func(stock repository.StockRepository, _ repository.SaleRepository, _ repository.OutboxRepository) error {
		require.NoError(t, stock.ConditionalDecrement(ctx, p.ID, 5))
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	got, err := s.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.Stock)
}

func TestProducts_SKUDuplicadoYFiltroStock(t *testing.T) {
	s := memory.NewStore()
	newProduct(t, s, "B", 0)
	newProduct(t, s, "A", 2)

	err := s.Create(context.Background(), &entity.Product{Name: "x", SKU: "a"})
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	all, err := s.List(context.Background(), repository.ProductFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "A", all[0].Name, "ordenados por nombre")

	inStock, err := s.List(context.Background(), repository.ProductFilter{InStockOnly: true})
	require.NoError(t, err)
	require.Len(t, inStock, 1)
	assert.Equal(t, "A", inStock[0].SKU)
}

func TestProducts_NoSeEliminaSiTieneVentas(t *testing.T) {
	s := memory.NewStore()
	p := newProduct(t, s, "A", 5)
	require.NoError(t, s.RunCheckout(context.Background(), func(stock repository.StockRepository, sales repository.SaleRepository, _ repository.OutboxRepository) error {
		sale, err := sales.InsertSale(context.Background(), decimal.NewFromInt(1))
		if err != nil {
			return err
		}
		return sales.InsertSaleItems(context.Background(), sale.ID, []*entity.SaleItem{{ProductID: p.ID, Quantity: 1, UnitPrice: decimal.NewFromInt(1)}})
	}))

	assert.ErrorIs(t, s.Delete(context.Background(), p.ID), domain.ErrInUse)
	assert.ErrorIs(t, s.Delete(context.Background(), 999), domain.ErrNotFound)
}

func TestProviders_EliminarDesvinculaProductos(t *testing.T) {
	s := memory.NewStore()
	providers := s.ProviderStore()
	prov := &entity.Provider{Name: "Distribuidora"}
	require.NoError(t, providers.Create(context.Background(), prov))

	p := &entity.Product{Name: "A", SKU: "A", ProviderID: &prov.ID}
	require.NoError(t, s.Create(context.Background(), p))

	require.NoError(t, providers.Delete(context.Background(), prov.ID))
	got, err := s.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ProviderID)

	missing := int64(42)
	err = s.Create(context.Background(), &entity.Product{Name: "B", SKU: "B", ProviderID: &missing})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOutbox_PendientesYMarcado(t *testing.T) {
	s := memory.NewStore()
	require.NoError(t, s.Insert(context.Background(), &entity.OutboxEvent{EventID: "e1", Topic: "t"}))
	require.NoError(t, s.Insert(context.Background(), &entity.OutboxEvent{EventID: "e2", Topic: "t"}))

	pending, err := s.FetchPending(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "e1", pending[0].EventID)

	require.NoError(t, s.MarkSent(context.Background(), pending[0].ID))
	pending, err = s.FetchPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "e2", pending[0].EventID)
}

func TestRunCheckout_MarkSentSeDeshaceConRollback(t *testing.T) {
	s := memory.NewStore()
	require.NoError(t, s.Insert(context.Background(), &entity.OutboxEvent{EventID: "e1", Topic: "t"}))
	pending, err := s.FetchPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	id := pending[0].ID

	boom := errors.New("boom")
	err = s.RunCheckout(context.Background(), func(_ repository.StockRepository, _ repository.SaleRepository, outbox repository.OutboxRepository) error {
		require.NoError(t, outbox.MarkSent(context.Background(), id))
		inTx, err := outbox.FetchPending(context.Background(), 10)
		require.NoError(t, err)
		assert.Empty(t, inTx)
		return boom
	})
	require.ErrorIs(t, err, boom)

	pending, err = s.FetchPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1, "el rollback conserva el evento pendiente")

	require.NoError(t, s.RunCheckout(context.Background(), func(_ repository.StockRepository, _ repository.SaleRepository, outbox repository.OutboxRepository) error {
		assert.ErrorIs(t, outbox.MarkSent(context.Background(), 999), domain.ErrNotFound)
		return outbox.MarkSent(context.Background(), id)
	}))
	pending, err = s.FetchPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
