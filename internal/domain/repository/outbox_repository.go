package repository

import (
	"context"

	"github.com/jhoicas/pos-api/internal/domain/entity"
)

// OutboxRepository define el puerto del outbox transaccional.
type OutboxRepository interface {
	Insert(ctx context.Context, event *entity.OutboxEvent) error
	FetchPending(ctx context.Context, limit int) ([]*entity.OutboxEvent, error)
	MarkSent(ctx context.Context, id int64) error
}
