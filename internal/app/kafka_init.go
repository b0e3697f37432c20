package app

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/analytics"
)

// initKafkaProducer инициализирует Kafka producer если brokers не пустой.
// Без brokers возвращает nil, nil: сервис работает, outbox копится до появления Kafka.
func initKafkaProducer(brokers []string, logger *log.Entry) (*kafka.Producer, error) {
	if len(brokers) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokers)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil, err
	}

	logger.WithField("brokers", brokers).Info("kafka producer initialized")
	return producer, nil
}

// startAnalyticsConsumer подписывает проекцию на события заказов.
func startAnalyticsConsumer(
	ctx context.Context,
	cfg Config,
	projection *analytics.Projection,
	dlqProducer *kafka.Producer,
	logger *log.Entry,
) (*kafka.Consumer, error) {
	if cfg.AnalyticsGroupID == "" || len(cfg.KafkaBrokers) == 0 {
		return nil, nil
	}

	consumer, err := kafka.NewConsumerWithDLQ(
		cfg.KafkaBrokers,
		cfg.AnalyticsGroupID,
		[]string{cfg.KafkaEventsTopic},
		projection.Handle,
		dlqProducer,
		cfg.OutboxMaxAttempts,
	)
	if err != nil {
		return nil, err
	}
	if err := consumer.Start(ctx); err != nil {
		_ = consumer.Stop()
		return nil, err
	}

	logger.WithFields(log.Fields{
		"group": cfg.AnalyticsGroupID,
		"topic": cfg.KafkaEventsTopic,
	}).Info("analytics consumer started")
	return consumer, nil
}

// closeKafka закрывает Kafka producer если он не nil.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}

// stopConsumer останавливает consumer если он не nil.
func stopConsumer(consumer *kafka.Consumer, logger *log.Entry) {
	if consumer == nil {
		return
	}
	if err := consumer.Stop(); err != nil {
		logger.WithError(err).Warn("failed to stop kafka consumer")
	}
}
