package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/pos-api/internal/domain/entity"
	"github.com/jhoicas/pos-api/internal/domain/repository"
	"github.com/jhoicas/pos-api/pkg/metrics"
)

// Publisher destino de los eventos (Kafka en producción).
type Publisher interface {
	Publish(ctx context.Context, topic, key string, value []byte, headers map[string]string) error
}

// Config parámetros del relay.
type Config struct {
	PollInterval time.Duration
	BatchSize    int
	// Topics traduce el topic del evento al topic del broker; sin entrada se usa el mismo nombre.
	Topics map[string]string
}

// Relay publica los eventos pendientes del outbox y los marca como enviados.
// Entrega al menos una vez: si MarkSent falla tras publicar, el evento se reenvía en la siguiente vuelta.
type Relay struct {
	repo    repository.OutboxRepository
	pub     Publisher
	cfg     Config
	log     zerolog.Logger
	metrics *metrics.OutboxMetrics
}

// NewRelay construye el relay. m puede ser nil.
func NewRelay(repo repository.OutboxRepository, pub Publisher, cfg Config, log zerolog.Logger, m *metrics.OutboxMetrics) *Relay {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Relay{repo: repo, pub: pub, cfg: cfg, log: log, metrics: m}
}

// Run hace polling hasta que ctx se cancele.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()
	for {
		n, err := r.RelayOnce(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			r.log.Error().Err(err).Int("published", n).Msg("relay del outbox")
		} else if n > 0 {
			r.log.Debug().Int("published", n).Msg("eventos publicados")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RelayOnce publica un lote en orden de inserción. Se detiene en el primer fallo para no desordenar eventos.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	events, err := r.repo.FetchPending(ctx, r.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch pending: %w", err)
	}
	published := 0
	for _, ev := range events {
		if err := r.publish(ctx, ev); err != nil {
			r.metrics.IncFailure()
			return published, fmt.Errorf("publicar evento %s: %w", ev.EventID, err)
		}
		r.metrics.IncPublished(ev.Topic)
		if err := r.repo.MarkSent(ctx, ev.ID); err != nil {
			return published, fmt.Errorf("marcar evento %d: %w", ev.ID, err)
		}
		published++
	}
	return published, nil
}

func (r *Relay) publish(ctx context.Context, ev *entity.OutboxEvent) error {
	topic := ev.Topic
	if mapped, ok := r.cfg.Topics[ev.Topic]; ok && mapped != "" {
		topic = mapped
	}
	return r.pub.Publish(ctx, topic, ev.Key, ev.Payload, map[string]string{
		"event_id": ev.EventID,
		"type":     ev.Topic,
	})
}
