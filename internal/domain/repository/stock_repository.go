package repository

import "context"

// StockRepository define el puerto para leer y descontar stock dentro de una transacción.
type StockRepository interface {
	// ReadStock lee el stock actual bloqueando la fila hasta el fin de la transacción.
	// Retorna domain.ErrNotFound si el producto no existe.
	ReadStock(ctx context.Context, productID int64) (int64, error)
	// ConditionalDecrement descuenta amount solo si stock >= amount.
	// Retorna domain.ErrConflict si la condición no se cumple al momento del update.
	ConditionalDecrement(ctx context.Context, productID, amount int64) error
}
