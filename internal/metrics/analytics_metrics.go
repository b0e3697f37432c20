package metrics

import "github.com/prometheus/client_golang/prometheus"

// AnalyticsMetrics: gauges read-side проекции заказов.
type AnalyticsMetrics struct {
	ordersByStatus *prometheus.GaugeVec
	revenue        prometheus.Gauge
	lowStock       *prometheus.GaugeVec
	eventsApplied  *prometheus.CounterVec
}

// NewAnalyticsMetrics регистрирует метрики проекции в указанном реестре.
func NewAnalyticsMetrics(registerer prometheus.Registerer) *AnalyticsMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &AnalyticsMetrics{
		ordersByStatus: register(registerer, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "oms_analytics_orders",
			Help: "Number of orders grouped by current status",
		}, []string{"status"})),
		revenue: register(registerer, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "oms_analytics_revenue",
			Help: "Sum of committed order totals",
		})),
		lowStock: register(registerer, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "oms_analytics_low_stock",
			Help: "Remaining stock of products below the low-stock threshold",
		}, []string{"product_id"})),
		eventsApplied: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oms_analytics_events_total",
			Help: "Order events seen by the projection grouped by result",
		}, []string{"event_type", "result"})),
	}
}

// SetOrders выставляет число заказов в статусе.
func (m *AnalyticsMetrics) SetOrders(status string, count int) {
	m.ordersByStatus.WithLabelValues(status).Set(float64(count))
}

// SetRevenue выставляет выручку.
func (m *AnalyticsMetrics) SetRevenue(value float64) {
	m.revenue.Set(value)
}

// SetLowStock выставляет остаток товара ниже порога.
func (m *AnalyticsMetrics) SetLowStock(productID string, stock int) {
	m.lowStock.WithLabelValues(productID).Set(float64(stock))
}

// ClearLowStock убирает товар из списка заканчивающихся.
func (m *AnalyticsMetrics) ClearLowStock(productID string) {
	m.lowStock.DeleteLabelValues(productID)
}

// RecordEvent учитывает обработанное событие: applied, duplicate или ignored.
func (m *AnalyticsMetrics) RecordEvent(eventType, result string) {
	m.eventsApplied.WithLabelValues(eventType, result).Inc()
}

// Revenue возвращает gauge выручки.
func (m *AnalyticsMetrics) Revenue() prometheus.Gauge {
	return m.revenue
}
