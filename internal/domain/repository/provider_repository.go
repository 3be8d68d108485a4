package repository

import (
	"context"

	"github.com/jhoicas/pos-api/internal/domain/entity"
)

// ProviderRepository define el puerto de persistencia para Provider.
type ProviderRepository interface {
	Create(ctx context.Context, provider *entity.Provider) error
	GetByID(ctx context.Context, id int64) (*entity.Provider, error)
	List(ctx context.Context) ([]*entity.Provider, error)
	Delete(ctx context.Context, id int64) error
}
