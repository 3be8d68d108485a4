package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/pos-api/internal/application/sales"
	"github.com/jhoicas/pos-api/internal/domain"
	"github.com/jhoicas/pos-api/internal/domain/entity"
	"github.com/jhoicas/pos-api/internal/domain/repository"
)

var (
	_ sales.TxRunner                = (*Store)(nil)
	_ repository.ProductRepository  = (*Store)(nil)
	_ repository.OutboxRepository   = (*Store)(nil)
	_ repository.ProviderRepository = providerView{}
	_ repository.SaleRepository     = saleView{}
)

// DefaultLockTimeout espera máxima por el lock del store antes de abortar con domain.ErrConflict.
const DefaultLockTimeout = 2 * time.Second

// Store almacenamiento en memoria con transacciones de un solo escritor:
// cada transacción toma el lock completo, trabaja sobre cambios pendientes y
// los aplica en Commit. Pensado para desarrollo local y tests.
type Store struct {
	sem         chan struct{}
	lockTimeout time.Duration
	now         func() time.Time

	products  map[int64]*entity.Product
	providers map[int64]*entity.Provider
	sales     map[int64]*entity.Sale
	outbox    []*entity.OutboxEvent

	seqProduct  int64
	seqProvider int64
	seqSale     int64
	seqSaleItem int64
	seqEvent    int64
}

// Option configura el Store.
type Option func(*Store)

// WithLockTimeout cambia la espera máxima por el lock.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) { s.lockTimeout = d }
}

// WithClock reemplaza el reloj (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore construye un store vacío.
func NewStore(opts ...Option) *Store {
	s := &Store{
		sem:         make(chan struct{}, 1),
		lockTimeout: DefaultLockTimeout,
		now:         time.Now,
		products:    make(map[int64]*entity.Product),
		providers:   make(map[int64]*entity.Provider),
		sales:       make(map[int64]*entity.Sale),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// lock adquiere el store respetando ctx y el lock timeout.
func (s *Store) lock(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timer := time.NewTimer(s.lockTimeout)
	defer timer.Stop()
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%w: lock timeout tras %s", domain.ErrConflict, s.lockTimeout)
	}
}

func (s *Store) unlock() { <-s.sem }

// RunCheckout ejecuta fn con repos atados a una transacción en memoria.
// Los cambios solo se aplican si fn no falla y ctx sigue vivo al confirmar.
func (s *Store) RunCheckout(ctx context.Context, fn func(
	stockRepo repository.StockRepository,
	saleRepo repository.SaleRepository,
	outboxRepo repository.OutboxRepository,
) error) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()

	tx := &memTx{store: s, decrements: make(map[int64]int64)}
	if err := fn(tx, tx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// ── Products ─────────────────────────────────────────────────────────────────

// Create persiste un producto nuevo asignando ID.
func (s *Store) Create(ctx context.Context, p *entity.Product) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()
	if s.skuTaken(p.SKU, 0) {
		return domain.ErrDuplicate
	}
	if p.ProviderID != nil {
		if _, ok := s.providers[*p.ProviderID]; !ok {
			return domain.ErrNotFound
		}
	}
	s.seqProduct++
	p.ID = s.seqProduct
	now := s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	cp := *p
	s.products[p.ID] = &cp
	return nil
}

// GetByID obtiene un producto; domain.ErrNotFound si no existe.
func (s *Store) GetByID(ctx context.Context, id int64) (*entity.Product, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// Update aplica los campos no nulos bajo el lock del store; Stock nil conserva el stock vigente.
func (s *Store) Update(ctx context.Context, id int64, changes repository.ProductChanges) (*entity.Product, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()
	cur, ok := s.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if changes.SKU != nil && s.skuTaken(*changes.SKU, id) {
		return nil, domain.ErrDuplicate
	}
	if changes.ProviderID != nil {
		if _, ok := s.providers[*changes.ProviderID]; !ok {
			return nil, domain.ErrNotFound
		}
	}

	next := *cur
	if changes.Name != nil {
		next.Name = *changes.Name
	}
	if changes.SKU != nil {
		next.SKU = *changes.SKU
	}
	if changes.Price != nil {
		next.Price = *changes.Price
	}
	if changes.Stock != nil {
		next.Stock = *changes.Stock
	}
	if changes.ProviderID != nil {
		pid := *changes.ProviderID
		next.ProviderID = &pid
	}
	next.UpdatedAt = s.now()
	s.products[id] = &next

	out := next
	return &out, nil
}

// List lista productos ordenados por nombre.
func (s *Store) List(ctx context.Context, filter repository.ProductFilter) ([]*entity.Product, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()
	list := make([]*entity.Product, 0, len(s.products))
	for _, p := range s.products {
		if filter.InStockOnly && p.Stock <= 0 {
			continue
		}
		cp := *p
		list = append(list, &cp)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Name == list[j].Name {
			return list[i].ID < list[j].ID
		}
		return list[i].Name < list[j].Name
	})
	return list, nil
}

// Delete elimina un producto; domain.ErrInUse si alguna venta lo referencia.
func (s *Store) Delete(ctx context.Context, id int64) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()
	if _, ok := s.products[id]; !ok {
		return domain.ErrNotFound
	}
	for _, sale := range s.sales {
		for _, it := range sale.Items {
			if it.ProductID == id {
				return domain.ErrInUse
			}
		}
	}
	delete(s.products, id)
	return nil
}

func (s *Store) skuTaken(sku string, exceptID int64) bool {
	for _, p := range s.products {
		if p.ID != exceptID && strings.EqualFold(p.SKU, sku) {
			return true
		}
	}
	return false
}

// ── Providers ────────────────────────────────────────────────────────────────

// ProviderStore expone los proveedores del store como repository.ProviderRepository.
func (s *Store) ProviderStore() repository.ProviderRepository { return providerView{s} }

type providerView struct{ s *Store }

func (v providerView) Create(ctx context.Context, p *entity.Provider) error {
	s := v.s
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()
	s.seqProvider++
	p.ID = s.seqProvider
	p.CreatedAt = s.now()
	cp := *p
	s.providers[p.ID] = &cp
	return nil
}

func (v providerView) GetByID(ctx context.Context, id int64) (*entity.Provider, error) {
	s := v.s
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()
	p, ok := s.providers[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (v providerView) List(ctx context.Context) ([]*entity.Provider, error) {
	s := v.s
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()
	list := make([]*entity.Provider, 0, len(s.providers))
	for _, p := range s.providers {
		cp := *p
		list = append(list, &cp)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID > list[j].ID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}

// Delete elimina el proveedor y deja sin proveedor a sus productos (ON DELETE SET NULL).
func (v providerView) Delete(ctx context.Context, id int64) error {
	s := v.s
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()
	if _, ok := s.providers[id]; !ok {
		return domain.ErrNotFound
	}
	for _, p := range s.products {
		if p.ProviderID != nil && *p.ProviderID == id {
			p.ProviderID = nil
		}
	}
	delete(s.providers, id)
	return nil
}

// ── Sales (lectura fuera de transacción) ─────────────────────────────────────

// SaleStore expone las ventas del store como repository.SaleRepository.
func (s *Store) SaleStore() repository.SaleRepository { return saleView{s} }

type saleView struct{ s *Store }

// InsertSale fuera de RunCheckout no está soportado: las ventas solo nacen en el checkout.
func (v saleView) InsertSale(context.Context, decimal.Decimal) (*entity.Sale, error) {
	return nil, fmt.Errorf("memory: InsertSale requiere RunCheckout")
}

func (v saleView) InsertSaleItems(context.Context, int64, []*entity.SaleItem) error {
	return fmt.Errorf("memory: InsertSaleItems requiere RunCheckout")
}

func (v saleView) GetByID(ctx context.Context, id int64) (*entity.Sale, error) {
	if err := v.s.lock(ctx); err != nil {
		return nil, err
	}
	defer v.s.unlock()
	return v.s.saleLocked(id)
}

func (v saleView) List(ctx context.Context) ([]*entity.Sale, error) {
	if err := v.s.lock(ctx); err != nil {
		return nil, err
	}
	defer v.s.unlock()
	return v.s.listSalesLocked(), nil
}

func (s *Store) saleLocked(id int64) (*entity.Sale, error) {
	sale, ok := s.sales[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s.copySale(sale), nil
}

func (s *Store) listSalesLocked() []*entity.Sale {
	list := make([]*entity.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		list = append(list, s.copySale(sale))
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return list
}

func (s *Store) copySale(sale *entity.Sale) *entity.Sale {
	cp := *sale
	cp.Items = make([]*entity.SaleItem, 0, len(sale.Items))
	for _, it := range sale.Items {
		item := *it
		if p, ok := s.products[it.ProductID]; ok {
			item.ProductName = p.Name
		}
		cp.Items = append(cp.Items, &item)
	}
	return &cp
}

// ── Outbox ───────────────────────────────────────────────────────────────────

// Insert fuera de transacción agrega el evento directamente.
func (s *Store) Insert(ctx context.Context, ev *entity.OutboxEvent) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()
	s.appendEventLocked(ev)
	return nil
}

// FetchPending devuelve hasta limit eventos no enviados en orden de inserción.
func (s *Store) FetchPending(ctx context.Context, limit int) ([]*entity.OutboxEvent, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()
	var out []*entity.OutboxEvent
	for _, ev := range s.outbox {
		if len(out) >= limit {
			break
		}
		if ev.SentAt == nil {
			cp := *ev
			out = append(out, &cp)
		}
	}
	return out, nil
}

// MarkSent marca un evento como enviado.
func (s *Store) MarkSent(ctx context.Context, id int64) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()
	for _, ev := range s.outbox {
		if ev.ID == id {
			now := s.now()
			ev.SentAt = &now
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *Store) appendEventLocked(ev *entity.OutboxEvent) {
	s.seqEvent++
	ev.ID = s.seqEvent
	ev.CreatedAt = s.now()
	cp := *ev
	s.outbox = append(s.outbox, &cp)
}
