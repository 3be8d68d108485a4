package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pos"

// CheckoutMetrics métricas del checkout. Los métodos aceptan receptor nil (métricas desactivadas).
type CheckoutMetrics struct {
	Outcomes *prometheus.CounterVec
	Retries  prometheus.Counter
	Duration prometheus.Histogram
}

// NewCheckoutMetrics crea y registra las métricas del checkout en reg.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "total",
		Help:      "Checkouts procesados por resultado.",
	}, []string{"result"})
	retries := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "retries_total",
		Help:      "Reintentos por conflicto de concurrencia.",
	})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "duration_ms",
		Help:      "Duración del checkout en milisegundos (incluye reintentos).",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	})
	reg.MustRegister(outcomes, retries, duration)
	return &CheckoutMetrics{Outcomes: outcomes, Retries: retries, Duration: duration}
}

// ObserveCheckout registra el resultado y la duración de un checkout.
func (m *CheckoutMetrics) ObserveCheckout(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(result).Inc()
	m.Duration.Observe(float64(d.Milliseconds()))
}

// IncRetry cuenta un reintento.
func (m *CheckoutMetrics) IncRetry() {
	if m == nil {
		return
	}
	m.Retries.Inc()
}

// ServerMetrics métricas HTTP por ruta.
type ServerMetrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
}

// NewServerMetrics crea y registra las métricas HTTP en reg.
func NewServerMetrics(reg prometheus.Registerer) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total de peticiones HTTP.",
	}, []string{"route", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_ms",
		Help:      "Latencia HTTP en milisegundos.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"route"})
	reg.MustRegister(requests, latency)
	return &ServerMetrics{Requests: requests, LatencyMS: latency}
}

// Handler expone las métricas de g en formato Prometheus.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// OutboxMetrics métricas del relay del outbox. Receptor nil = desactivadas.
type OutboxMetrics struct {
	Published *prometheus.CounterVec
	Failures  prometheus.Counter
}

// NewOutboxMetrics crea y registra las métricas del relay en reg.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "outbox",
		Name:      "published_total",
		Help:      "Eventos del outbox publicados por topic.",
	}, []string{"topic"})
	failures := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "outbox",
		Name:      "publish_failures_total",
		Help:      "Fallos al publicar eventos del outbox.",
	})
	reg.MustRegister(published, failures)
	return &OutboxMetrics{Published: published, Failures: failures}
}

func (m *OutboxMetrics) IncPublished(topic string) {
	if m == nil {
		return
	}
	m.Published.WithLabelValues(topic).Inc()
}

func (m *OutboxMetrics) IncFailure() {
	if m == nil {
		return
	}
	m.Failures.Inc()
}
