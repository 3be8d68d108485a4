package memory

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/pos-api/internal/domain"
	"github.com/jhoicas/pos-api/internal/domain/entity"
)

// memTx cambios pendientes de una transacción. El Store ya está bloqueado mientras vive.
type memTx struct {
	store      *Store
	decrements map[int64]int64
	sales      []*entity.Sale
	events     []*entity.OutboxEvent
	sent       map[int64]bool
}

func (tx *memTx) ReadStock(ctx context.Context, productID int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p, ok := tx.store.products[productID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return p.Stock - tx.decrements[productID], nil
}

func (tx *memTx) ConditionalDecrement(ctx context.Context, productID, amount int64) error {
	stock, err := tx.ReadStock(ctx, productID)
	if err != nil {
		return err
	}
	if stock < amount {
		return fmt.Errorf("%w: stock de producto %d cambió durante la transacción", domain.ErrConflict, productID)
	}
	tx.decrements[productID] += amount
	return nil
}

// InsertSale reserva el ID como una secuencia: un rollback deja huecos.
func (tx *memTx) InsertSale(ctx context.Context, total decimal.Decimal) (*entity.Sale, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tx.store.seqSale++
	sale := &entity.Sale{ID: tx.store.seqSale, Total: total, CreatedAt: tx.store.now()}
	tx.sales = append(tx.sales, sale)
	cp := *sale
	return &cp, nil
}

func (tx *memTx) InsertSaleItems(ctx context.Context, saleID int64, items []*entity.SaleItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var sale *entity.Sale
	for _, s := range tx.sales {
		if s.ID == saleID {
			sale = s
		}
	}
	if sale == nil {
		return fmt.Errorf("insert sale items: %w", domain.ErrNotFound)
	}
	for _, it := range items {
		if _, ok := tx.store.products[it.ProductID]; !ok {
			return fmt.Errorf("insert sale items: producto %d: %w", it.ProductID, domain.ErrNotFound)
		}
		tx.store.seqSaleItem++
		cp := *it
		cp.ID = tx.store.seqSaleItem
		cp.SaleID = saleID
		sale.Items = append(sale.Items, &cp)
	}
	return nil
}

func (tx *memTx) GetByID(ctx context.Context, id int64) (*entity.Sale, error) {
	return tx.store.saleLocked(id)
}

func (tx *memTx) List(ctx context.Context) ([]*entity.Sale, error) {
	return tx.store.listSalesLocked(), nil
}

func (tx *memTx) Insert(ctx context.Context, ev *entity.OutboxEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cp := *ev
	tx.events = append(tx.events, &cp)
	return nil
}

func (tx *memTx) FetchPending(ctx context.Context, limit int) ([]*entity.OutboxEvent, error) {
	var out []*entity.OutboxEvent
	for _, ev := range tx.store.outbox {
		if len(out) >= limit {
			break
		}
		if ev.SentAt == nil && !tx.sent[ev.ID] {
			cp := *ev
			out = append(out, &cp)
		}
	}
	return out, nil
}

// MarkSent queda pendiente hasta el commit, igual que el resto de escrituras.
func (tx *memTx) MarkSent(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, ev := range tx.store.outbox {
		if ev.ID == id {
			if tx.sent == nil {
				tx.sent = make(map[int64]bool)
			}
			tx.sent[id] = true
			return nil
		}
	}
	return domain.ErrNotFound
}

// commit aplica todos los cambios pendientes de una vez.
func (tx *memTx) commit() {
	now := tx.store.now()
	for id, qty := range tx.decrements {
		p := tx.store.products[id]
		p.Stock -= qty
		p.UpdatedAt = now
	}
	for _, sale := range tx.sales {
		tx.store.sales[sale.ID] = sale
	}
	for _, ev := range tx.events {
		tx.store.appendEventLocked(ev)
	}
	for _, ev := range tx.store.outbox {
		if tx.sent[ev.ID] && ev.SentAt == nil {
			sentAt := now
			ev.SentAt = &sentAt
		}
	}
}
