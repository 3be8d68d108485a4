package sales

import (
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/pos-api/internal/domain"
	"github.com/jhoicas/pos-api/internal/domain/entity"
)

// cartLine par (producto, cantidad total) tras agrupar el carrito.
type cartLine struct {
	productID int64
	quantity  int64
	unitPrice decimal.Decimal
}

// coalesceCart valida la forma del carrito y agrupa las líneas por producto
// sumando cantidades. Conserva el orden de primera aparición.
func coalesceCart(items []entity.CartItem) ([]cartLine, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: carrito vacío", domain.ErrInvalidCart)
	}
	index := make(map[int64]int, len(items))
	lines := make([]cartLine, 0, len(items))
	for i, it := range items {
		switch {
		case it.ProductID <= 0:
			return nil, fmt.Errorf("%w: línea %d sin product_id", domain.ErrInvalidCart, i)
		case it.Quantity <= 0:
			return nil, fmt.Errorf("%w: línea %d con cantidad no positiva", domain.ErrInvalidCart, i)
		case it.UnitPrice.IsNegative():
			return nil, fmt.Errorf("%w: línea %d con precio negativo", domain.ErrInvalidCart, i)
		}
		j, seen := index[it.ProductID]
		if !seen {
			index[it.ProductID] = len(lines)
			lines = append(lines, cartLine{productID: it.ProductID, quantity: it.Quantity, unitPrice: it.UnitPrice})
			continue
		}
		// Una venta guarda un solo precio por producto.
		if !lines[j].unitPrice.Equal(it.UnitPrice) {
			return nil, fmt.Errorf("%w: producto %d con precios distintos en el carrito", domain.ErrInvalidCart, it.ProductID)
		}
		if lines[j].quantity > math.MaxInt64-it.Quantity {
			return nil, fmt.Errorf("%w: cantidad fuera de rango para producto %d", domain.ErrInvalidCart, it.ProductID)
		}
		lines[j].quantity += it.Quantity
	}
	return lines, nil
}

// lockOrder devuelve una copia ordenada por producto: todas las transacciones
// bloquean filas en el mismo orden.
func lockOrder(lines []cartLine) []cartLine {
	sorted := make([]cartLine, len(lines))
	copy(sorted, lines)
	sort.Slice(sorted, func(a, b int) bool { return sorted[a].productID < sorted[b].productID })
	return sorted
}

// cartTotal suma cantidad × precio cotizado.
func cartTotal(lines []cartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.unitPrice.Mul(decimal.NewFromInt(l.quantity)))
	}
	return total
}
