package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrDuplicate    = errors.New("recurso duplicado")
	ErrInUse        = errors.New("recurso referenciado por otros registros")

	// Errores del checkout.
	ErrInvalidCart       = errors.New("carrito inválido")
	ErrUnknownProduct    = errors.New("producto inexistente")
	ErrInsufficientStock = errors.New("stock insuficiente")
	// ErrConflict: la transacción no pudo serializarse por contención concurrente. Reintentable.
	ErrConflict = errors.New("conflicto de concurrencia")
	// ErrStoreUnavailable: fallo de la infraestructura transaccional (conexión, timeout). Reintentable con backoff.
	ErrStoreUnavailable = errors.New("almacenamiento no disponible")
)

// StockShortage describe una línea del carrito que excede el stock disponible.
type StockShortage struct {
	ProductID int64
	Requested int64
	Available int64
}

// InsufficientStockError lista todos los productos sin stock suficiente (no solo el primero).
type InsufficientStockError struct {
	Shortages []StockShortage
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		parts = append(parts, fmt.Sprintf("producto %d: solicitado %d, disponible %d", s.ProductID, s.Requested, s.Available))
	}
	return ErrInsufficientStock.Error() + ": " + strings.Join(parts, "; ")
}

// Is permite errors.Is(err, ErrInsufficientStock).
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// UnknownProductError lista los IDs del carrito que no existen en el catálogo.
type UnknownProductError struct {
	ProductIDs []int64
}

func (e *UnknownProductError) Error() string {
	ids := make([]string, 0, len(e.ProductIDs))
	for _, id := range e.ProductIDs {
		ids = append(ids, fmt.Sprintf("%d", id))
	}
	return ErrUnknownProduct.Error() + ": " + strings.Join(ids, ", ")
}

// Is permite errors.Is(err, ErrUnknownProduct).
func (e *UnknownProductError) Is(target error) bool {
	return target == ErrUnknownProduct
}

// IsRetryable indica si el error es transitorio (conflicto o almacenamiento caído).
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrStoreUnavailable)
}
