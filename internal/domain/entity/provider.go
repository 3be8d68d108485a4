package entity

import "time"

// Provider representa un proveedor de productos.
type Provider struct {
	ID          int64
	Name        string
	ContactName string
	Email       string
	Phone       string
	CreatedAt   time.Time
}
