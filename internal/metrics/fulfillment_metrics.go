package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// FulfillmentMetrics содержит метрики оформления заказов и смены статусов.
type FulfillmentMetrics struct {
	// Счётчики оформления
	checkoutStarted   prometheus.Counter
	checkoutCompleted prometheus.Counter
	checkoutFailed    *prometheus.CounterVec
	retries           *prometheus.CounterVec
	reservedUnits     prometheus.Counter

	// Гистограммы времени выполнения
	operationDuration *prometheus.HistogramVec

	transitions    *prometheus.CounterVec
	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter

	inFlight prometheus.Gauge
}

// NewFulfillmentMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewFulfillmentMetrics() *FulfillmentMetrics {
	return NewFulfillmentMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewFulfillmentMetricsWithRegisterer регистрирует метрики в указанном реестре.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewFulfillmentMetricsWithRegisterer(registerer prometheus.Registerer) *FulfillmentMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &FulfillmentMetrics{
		checkoutStarted: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oms_checkout_started_total",
			Help: "Total number of checkout operations started",
		})),
		checkoutCompleted: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oms_checkout_completed_total",
			Help: "Total number of checkouts committed",
		})),
		checkoutFailed: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oms_checkout_failed_total",
			Help: "Total number of failed checkouts grouped by error code",
		}, []string{"code"})),
		retries: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oms_fulfillment_retries_total",
			Help: "Total number of retried fulfillment transactions grouped by operation",
		}, []string{"operation"})),
		reservedUnits: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oms_reserved_units_total",
			Help: "Total number of stock units reserved by committed checkouts",
		})),
		operationDuration: register(registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "oms_fulfillment_operation_duration_seconds",
			Help:    "Duration of fulfillment operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"operation"})),
		transitions: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oms_order_transitions_total",
			Help: "Total number of committed order status transitions",
		}, []string{"from", "to"})),
		timelineEvents: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oms_timeline_events_total",
			Help: "Total number of timeline events recorded",
		})),
		outboxEvents: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oms_outbox_events_total",
			Help: "Total number of outbox events enqueued",
		})),
		inFlight: register(registerer, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "oms_checkouts_in_flight",
			Help: "Number of checkouts currently being processed",
		})),
	}
}

func register[T prometheus.Collector](registerer prometheus.Registerer, collector T) T {
	if err := registerer.Register(collector); err != nil {
		alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			panic(fmt.Sprintf("register collector: %v", err))
		}
		existing, ok := alreadyRegistered.ExistingCollector.(T)
		if !ok {
			panic(fmt.Sprintf("collector %T already registered with unexpected type", collector))
		}
		return existing
	}
	return collector
}

// RecordCheckoutStarted увеличивает счётчик оформлений и число активных.
func (m *FulfillmentMetrics) RecordCheckoutStarted() {
	m.checkoutStarted.Inc()
	m.inFlight.Inc()
}

// RecordCheckoutFinished уменьшает число активных оформлений.
func (m *FulfillmentMetrics) RecordCheckoutFinished() {
	m.inFlight.Dec()
}

// RecordCheckoutCompleted учитывает успешное оформление и зарезервированные единицы.
func (m *FulfillmentMetrics) RecordCheckoutCompleted(units int) {
	m.checkoutCompleted.Inc()
	if units > 0 {
		m.reservedUnits.Add(float64(units))
	}
}

// RecordCheckoutFailed учитывает неудачное оформление с кодом ошибки.
func (m *FulfillmentMetrics) RecordCheckoutFailed(code string) {
	m.checkoutFailed.WithLabelValues(code).Inc()
}

// RecordRetry учитывает повтор транзакции операции.
func (m *FulfillmentMetrics) RecordRetry(operation string) {
	m.retries.WithLabelValues(operation).Inc()
}

// RecordDuration записывает время выполнения операции.
func (m *FulfillmentMetrics) RecordDuration(operation string, duration time.Duration) {
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordTransition учитывает смену статуса заказа.
func (m *FulfillmentMetrics) RecordTransition(from, to string) {
	m.transitions.WithLabelValues(from, to).Inc()
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *FulfillmentMetrics) RecordTimelineEvent() {
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *FulfillmentMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}
