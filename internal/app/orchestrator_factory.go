package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/metrics"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/fulfillment"
)

// createOrchestrator собирает движок оформления заказов по конфигурации.
func createOrchestrator(deps *Dependencies, cfg Config, m *metrics.FulfillmentMetrics, logger *log.Entry) *fulfillment.Orchestrator {
	retry := fulfillment.DefaultRetryConfig()
	if cfg.CheckoutMaxAttempts > 0 {
		retry.MaxAttempts = cfg.CheckoutMaxAttempts
	}

	options := []fulfillment.Option{
		fulfillment.WithLogger(logger.WithField("component", "fulfillment")),
		fulfillment.WithRetryConfig(retry),
		fulfillment.WithTransitionPolicy(domain.NewTransitionPolicy(cfg.StatusPolicy)),
	}
	if cfg.TxTimeout > 0 {
		options = append(options, fulfillment.WithTxTimeout(cfg.TxTimeout))
	}
	if m != nil {
		options = append(options, fulfillment.WithMetrics(m))
	}

	return fulfillment.NewOrchestrator(deps.Tx, deps.Orders, deps.Timeline, options...)
}
