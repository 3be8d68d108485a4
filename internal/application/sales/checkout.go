package sales

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/pos-api/internal/application/dto"
	"github.com/jhoicas/pos-api/internal/domain"
	"github.com/jhoicas/pos-api/internal/domain/entity"
	"github.com/jhoicas/pos-api/internal/domain/repository"
	"github.com/jhoicas/pos-api/pkg/metrics"
)

const maxRetryDelay = 2 * time.Second

// CheckoutConfig parámetros de reintento y timeout del checkout.
type CheckoutConfig struct {
	MaxRetries     int           // reintentos ante domain.ErrConflict (0 = sin reintentos)
	RetryBaseDelay time.Duration // backoff exponencial desde este valor
	Timeout        time.Duration // tope por checkout incluyendo reintentos (0 = sin tope)
}

// CheckoutUseCase convierte un carrito en una venta descontando stock en una sola transacción.
// No guarda estado entre peticiones: la concurrencia se coordina con el aislamiento del almacenamiento.
type CheckoutUseCase struct {
	txRunner TxRunner
	saleRepo repository.SaleRepository
	cfg      CheckoutConfig
	log      zerolog.Logger
	metrics  *metrics.CheckoutMetrics
}

// NewCheckoutUseCase construye el caso de uso. m puede ser nil.
func NewCheckoutUseCase(
	txRunner TxRunner,
	saleRepo repository.SaleRepository,
	cfg CheckoutConfig,
	log zerolog.Logger,
	m *metrics.CheckoutMetrics,
) *CheckoutUseCase {
	return &CheckoutUseCase{
		txRunner: txRunner,
		saleRepo: saleRepo,
		cfg:      cfg,
		log:      log,
		metrics:  m,
	}
}

// Checkout valida el carrito, descuenta stock y registra la venta. Devuelve el ID de la venta.
// No es idempotente: cada llamada confirmada crea una venta nueva.
func (uc *CheckoutUseCase) Checkout(ctx context.Context, items []entity.CartItem) (int64, error) {
	start := time.Now()
	saleID, err := uc.checkout(ctx, items)
	uc.metrics.ObserveCheckout(Outcome(err), time.Since(start))
	return saleID, err
}

// CheckoutFromRequest adapta el request HTTP a Checkout.
func (uc *CheckoutUseCase) CheckoutFromRequest(ctx context.Context, in dto.CheckoutRequest) (*dto.CheckoutResponse, error) {
	items := make([]entity.CartItem, 0, len(in.Items))
	for i, it := range in.Items {
		if it.UnitPrice == nil {
			err := fmt.Errorf("%w: línea %d sin unit_price", domain.ErrInvalidCart, i)
			uc.metrics.ObserveCheckout(Outcome(err), 0)
			return nil, err
		}
		items = append(items, entity.CartItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: *it.UnitPrice,
		})
	}
	saleID, err := uc.Checkout(ctx, items)
	if err != nil {
		return nil, err
	}
	return &dto.CheckoutResponse{SaleID: saleID, Message: "venta registrada"}, nil
}

func (uc *CheckoutUseCase) checkout(parent context.Context, items []entity.CartItem) (int64, error) {
	lines, err := coalesceCart(items)
	if err != nil {
		return 0, err
	}

	ctx := parent
	if uc.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, uc.cfg.Timeout)
		defer cancel()
	}

	for attempt := 0; ; attempt++ {
		saleID, err := uc.attempt(ctx, lines)
		if err == nil {
			uc.log.Info().Int64("sale_id", saleID).Int("lines", len(lines)).Int("attempt", attempt+1).Msg("venta registrada")
			return saleID, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, timeoutError(parent, ctxErr)
		}
		if !errors.Is(err, domain.ErrConflict) || attempt >= uc.cfg.MaxRetries {
			return 0, err
		}

		delay := retryDelay(uc.cfg.RetryBaseDelay, attempt)
		uc.log.Warn().Err(err).Int("attempt", attempt+1).Dur("backoff", delay).Msg("checkout en conflicto, reintentando")
		uc.metrics.IncRetry()

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return 0, timeoutError(parent, ctx.Err())
		case <-timer.C:
		}
	}
}

// attempt ejecuta un intento completo dentro de una transacción: relee stock con bloqueo,
// valida todas las líneas, descuenta, inserta venta, líneas y evento de outbox.
func (uc *CheckoutUseCase) attempt(ctx context.Context, lines []cartLine) (int64, error) {
	var saleID int64
	err := uc.txRunner.RunCheckout(ctx, func(
		stockRepo repository.StockRepository,
		saleRepo repository.SaleRepository,
		outboxRepo repository.OutboxRepository,
	) error {
		ordered := lockOrder(lines)

		available := make(map[int64]int64, len(ordered))
		var unknown []int64
		for _, l := range ordered {
			stock, err := stockRepo.ReadStock(ctx, l.productID)
			if errors.Is(err, domain.ErrNotFound) {
				unknown = append(unknown, l.productID)
				continue
			}
			if err != nil {
				return err
			}
			available[l.productID] = stock
		}
		if len(unknown) > 0 {
			return &domain.UnknownProductError{ProductIDs: unknown}
		}

		var shortages []domain.StockShortage
		for _, l := range ordered {
			if l.quantity > available[l.productID] {
				shortages = append(shortages, domain.StockShortage{
					ProductID: l.productID,
					Requested: l.quantity,
					Available: available[l.productID],
				})
			}
		}
		if len(shortages) > 0 {
			return &domain.InsufficientStockError{Shortages: shortages}
		}

		for _, l := range ordered {
			if err := stockRepo.ConditionalDecrement(ctx, l.productID, l.quantity); err != nil {
				return err
			}
		}

		// El total usa el precio cotizado en el carrito, nunca el de catálogo.
		sale, err := saleRepo.InsertSale(ctx, cartTotal(lines))
		if err != nil {
			return err
		}
		items := make([]*entity.SaleItem, 0, len(lines))
		for _, l := range lines {
			items = append(items, &entity.SaleItem{
				SaleID:    sale.ID,
				ProductID: l.productID,
				Quantity:  l.quantity,
				UnitPrice: l.unitPrice,
			})
		}
		if err := saleRepo.InsertSaleItems(ctx, sale.ID, items); err != nil {
			return err
		}
		sale.Items = items

		event, err := newSaleCompletedEvent(sale)
		if err != nil {
			return err
		}
		if err := outboxRepo.Insert(ctx, event); err != nil {
			return err
		}
		saleID = sale.ID
		return nil
	})
	if err != nil {
		return 0, err
	}
	return saleID, nil
}

// GetSale obtiene una venta por ID con sus líneas.
func (uc *CheckoutUseCase) GetSale(ctx context.Context, id int64) (*dto.SaleResponse, error) {
	sale, err := uc.saleRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toSaleResponse(sale), nil
}

// ListSales lista las ventas, más recientes primero.
func (uc *CheckoutUseCase) ListSales(ctx context.Context) ([]dto.SaleResponse, error) {
	list, err := uc.saleRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.SaleResponse, 0, len(list))
	for _, s := range list {
		out = append(out, *toSaleResponse(s))
	}
	return out, nil
}

// Outcome etiqueta el resultado de un checkout para métricas.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrInvalidCart):
		return "invalid_cart"
	case errors.Is(err, domain.ErrUnknownProduct):
		return "unknown_product"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}

// timeoutError distingue la cancelación del caller del timeout propio del checkout.
func timeoutError(parent context.Context, ctxErr error) error {
	if parent.Err() == nil && errors.Is(ctxErr, context.DeadlineExceeded) {
		return fmt.Errorf("%w: timeout del checkout: %w", domain.ErrStoreUnavailable, ctxErr)
	}
	return ctxErr
}

func retryDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	d := maxRetryDelay
	if attempt < 16 {
		if exp := base << attempt; exp > 0 && exp < maxRetryDelay {
			d = exp
		}
	}
	return d + time.Duration(rand.Int63n(int64(d/2+1)))
}

type saleCompletedItem struct {
	ProductID int64           `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type saleCompletedPayload struct {
	SaleID    int64               `json:"sale_id"`
	Total     decimal.Decimal     `json:"total"`
	CreatedAt time.Time           `json:"created_at"`
	Items     []saleCompletedItem `json:"items"`
}

func newSaleCompletedEvent(sale *entity.Sale) (*entity.OutboxEvent, error) {
	payload := saleCompletedPayload{
		SaleID:    sale.ID,
		Total:     sale.Total,
		CreatedAt: sale.CreatedAt,
		Items:     make([]saleCompletedItem, 0, len(sale.Items)),
	}
	for _, it := range sale.Items {
		payload.Items = append(payload.Items, saleCompletedItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("serializar evento de venta: %w", err)
	}
	return &entity.OutboxEvent{
		EventID: uuid.New().String(),
		Topic:   entity.TopicSaleCompleted,
		Key:     fmt.Sprintf("%d", sale.ID),
		Payload: data,
	}, nil
}

func toSaleResponse(s *entity.Sale) *dto.SaleResponse {
	resp := &dto.SaleResponse{
		ID:        s.ID,
		Total:     s.Total,
		CreatedAt: s.CreatedAt,
		Items:     make([]dto.SaleItemResponse, 0, len(s.Items)),
	}
	for _, it := range s.Items {
		resp.Items = append(resp.Items, dto.SaleItemResponse{
			ID:          it.ID,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Subtotal:    it.Subtotal(),
		})
	}
	return resp
}
