package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/pos-api/internal/domain"
	"github.com/jhoicas/pos-api/internal/domain/entity"
	"github.com/jhoicas/pos-api/internal/domain/repository"
)

var _ repository.OutboxRepository = (*OutboxRepo)(nil)

// OutboxRepo tabla outbox. Insert se usa dentro de la tx del checkout; FetchPending y MarkSent desde el relay.
type OutboxRepo struct {
	q Querier
}

func NewOutboxRepository(q Querier) *OutboxRepo {
	return &OutboxRepo{q: q}
}

func (r *OutboxRepo) Insert(ctx context.Context, ev *entity.OutboxEvent) error {
	err := r.q.QueryRow(ctx,
		`INSERT INTO outbox (event_id, topic, key, payload) VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		ev.EventID, ev.Topic, ev.Key, []byte(ev.Payload),
	).Scan(&ev.ID, &ev.CreatedAt)
	if err != nil {
		return classify("insert outbox", err)
	}
	return nil
}

func (r *OutboxRepo) FetchPending(ctx context.Context, limit int) ([]*entity.OutboxEvent, error) {
	rows, err := r.q.Query(ctx,
		`SELECT id, event_id, topic, key, payload, created_at FROM outbox WHERE sent_at IS NULL ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, classify("fetch outbox", err)
	}
	defer rows.Close()
	var out []*entity.OutboxEvent
	for rows.Next() {
		var ev entity.OutboxEvent
		var payload []byte
		if err := rows.Scan(&ev.ID, &ev.EventID, &ev.Topic, &ev.Key, &payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox: %w", err)
		}
		ev.Payload = payload
		out = append(out, &ev)
	}
	return out, classify("fetch outbox", rows.Err())
}

func (r *OutboxRepo) MarkSent(ctx context.Context, id int64) error {
	cmd, err := r.q.Exec(ctx, `UPDATE outbox SET sent_at = now() WHERE id = $1`, id)
	if err != nil {
		return classify("mark outbox sent", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
