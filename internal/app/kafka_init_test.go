package app

import (
	"context"
	"testing"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/service/analytics"
)

func TestInitKafkaProducer_EmptyBrokers(t *testing.T) {
	logger := log.WithField("test", "kafka")

	producer, err := initKafkaProducer(nil, logger)
	if err != nil {
		t.Errorf("expected no error for empty brokers, got %v", err)
	}
	if producer != nil {
		t.Error("expected nil producer for empty brokers")
	}
}

func TestInitKafkaProducer_InvalidBrokers(t *testing.T) {
	logger := log.WithField("test", "kafka")

	producer, err := initKafkaProducer([]string{"broker1:9999", "broker2:9999"}, logger)
	if err == nil {
		t.Error("expected error for invalid brokers")
	}
	if producer != nil {
		t.Error("expected nil producer on error")
	}
}

func TestCloseKafka_NilProducer(_ *testing.T) {
	closeKafka(nil, log.WithField("test", "kafka"))
}

func TestStopConsumer_NilConsumer(_ *testing.T) {
	stopConsumer(nil, log.WithField("test", "kafka"))
}

func TestStartAnalyticsConsumer_DisabledWithoutGroup(t *testing.T) {
	cfg := DefaultConfig()
	cfg.KafkaBrokers = []string{"localhost:9092"}

	consumer, err := startAnalyticsConsumer(context.Background(), cfg, analytics.NewProjection(), nil, log.WithField("test", "kafka"))
	if err != nil {
		t.Fatalf("expected no error without group, got %v", err)
	}
	if consumer != nil {
		t.Fatal("expected nil consumer without group")
	}
}
