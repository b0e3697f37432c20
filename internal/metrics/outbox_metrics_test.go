package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestOutboxMetrics_DeliveriesByEventType(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)

	m.RecordDelivery("OrderCreated", OutboxResultSent)
	m.RecordDelivery("OrderCreated", OutboxResultSent)
	m.RecordDelivery("OrderStatusChanged", OutboxResultDeadLettered)
	m.ObservePublish("OrderCreated", 5*time.Millisecond)

	deliveries := gatherFamily(t, reg, "oms_outbox_deliveries_total")
	if len(deliveries.GetMetric()) != 2 {
		t.Fatalf("expected two series, got %v", deliveries.GetMetric())
	}
	for _, metric := range deliveries.GetMetric() {
		switch labelValue(metric, "event_type") {
		case "OrderCreated":
			if labelValue(metric, "result") != OutboxResultSent || metric.GetCounter().GetValue() != 2 {
				t.Fatalf("unexpected OrderCreated series: %v", metric)
			}
		case "OrderStatusChanged":
			if labelValue(metric, "result") != OutboxResultDeadLettered || metric.GetCounter().GetValue() != 1 {
				t.Fatalf("unexpected OrderStatusChanged series: %v", metric)
			}
		default:
			t.Fatalf("unexpected series: %v", metric)
		}
	}

	latency := gatherFamily(t, reg, "oms_outbox_publish_duration_seconds")
	if got := latency.GetMetric()[0].GetHistogram().GetSampleCount(); got != 1 {
		t.Fatalf("expected one publish sample, got %d", got)
	}
}

func TestOutboxMetrics_Backlog(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	m.SetBacklog(4, now.Add(-30*time.Second), now)
	if got := gatherFamily(t, reg, "oms_outbox_pending_records").GetMetric()[0].GetGauge().GetValue(); got != 4 {
		t.Fatalf("expected 4 pending, got %v", got)
	}
	if got := gatherFamily(t, reg, "oms_outbox_oldest_pending_age_seconds").GetMetric()[0].GetGauge().GetValue(); got != 30 {
		t.Fatalf("expected age 30s, got %v", got)
	}

	m.SetBacklog(0, time.Time{}, now)
	if got := gatherFamily(t, reg, "oms_outbox_oldest_pending_age_seconds").GetMetric()[0].GetGauge().GetValue(); got != 0 {
		t.Fatalf("empty backlog must reset age, got %v", got)
	}
}

func TestOutboxMetrics_NilIsNoop(t *testing.T) {
	var m *OutboxMetrics
	m.RecordDelivery("OrderCreated", OutboxResultSent)
	m.ObservePublish("OrderCreated", time.Millisecond)
	m.SetBacklog(1, time.Now(), time.Now())
}
