package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты доставки события из outbox.
const (
	OutboxResultSent         = "sent"
	OutboxResultRetry        = "retry"
	OutboxResultDeadLettered = "dead_lettered"
	OutboxResultRejected     = "rejected"
	OutboxResultDLQFailed    = "dlq_failed"
)

// OutboxMetrics: метрики доставки событий заказа из transactional outbox.
type OutboxMetrics struct {
	deliveries     *prometheus.CounterVec
	publishLatency *prometheus.HistogramVec
	pending        prometheus.Gauge
	oldestAge      prometheus.Gauge
}

// NewOutboxMetrics регистрирует метрики outbox в указанном реестре.
func NewOutboxMetrics(registerer prometheus.Registerer) *OutboxMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OutboxMetrics{
		deliveries: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oms_outbox_deliveries_total",
			Help: "Outbox delivery outcomes grouped by event type and result",
		}, []string{"event_type", "result"})),
		publishLatency: register(registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "oms_outbox_publish_duration_seconds",
			Help:    "Duration of a single broker publish call grouped by event type",
			Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5},
		}, []string{"event_type"})),
		pending: register(registerer, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "oms_outbox_pending_records",
			Help: "Current number of pending records in transactional outbox",
		})),
		oldestAge: register(registerer, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "oms_outbox_oldest_pending_age_seconds",
			Help: "Age in seconds of the oldest pending outbox record",
		})),
	}
}

// RecordDelivery учитывает исход доставки события.
func (m *OutboxMetrics) RecordDelivery(eventType, result string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(eventType, result).Inc()
}

// ObservePublish записывает длительность одного вызова брокера.
func (m *OutboxMetrics) ObservePublish(eventType string, duration time.Duration) {
	if m == nil {
		return
	}
	m.publishLatency.WithLabelValues(eventType).Observe(duration.Seconds())
}

// SetBacklog выставляет размер backlog и возраст самой старой записи.
// Нулевой oldestAt означает пустой backlog.
func (m *OutboxMetrics) SetBacklog(pending int, oldestAt time.Time, now time.Time) {
	if m == nil {
		return
	}
	m.pending.Set(float64(pending))
	if pending == 0 || oldestAt.IsZero() {
		m.oldestAge.Set(0)
		return
	}
	age := now.Sub(oldestAt).Seconds()
	if age < 0 {
		age = 0
	}
	m.oldestAge.Set(age)
}
