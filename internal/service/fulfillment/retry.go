package fulfillment

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// RetryConfig конфигурация повторов транзакции.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig возвращает конфигурацию по умолчанию.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  25 * time.Millisecond,
		MaxDelay:      500 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

func (c RetryConfig) normalized() RetryConfig {
	def := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.InitialDelay < 0 {
		c.InitialDelay = 0
	}
	if c.MaxDelay < c.InitialDelay {
		c.MaxDelay = c.InitialDelay
	}
	if c.BackoffFactor < 1 {
		c.BackoffFactor = def.BackoffFactor
	}
	return c
}

// nextDelay даёт экспоненциальную задержку с ограничением MaxDelay.
func (c RetryConfig) nextDelay(delay time.Duration) time.Duration {
	next := time.Duration(float64(delay) * c.BackoffFactor)
	if next > c.MaxDelay {
		return c.MaxDelay
	}
	return next
}

// executeWithRetry повторяет fn, пока ошибка повторяемая и вызывающий ещё ждёт ответа.
// Исход неизвестного COMMIT не повторяется.
func (o *Orchestrator) executeWithRetry(ctx context.Context, operation string, fields log.Fields, fn func() error) error {
	cfg := o.retry
	delay := cfg.InitialDelay

	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				o.logger.WithFields(fields).WithFields(log.Fields{
					"operation": operation,
					"attempt":   attempt,
				}).Info("operation succeeded after retry")
			}
			return nil
		}

		if !domain.IsRetryable(err) {
			return err
		}
		if attempt >= cfg.MaxAttempts {
			o.logger.WithFields(fields).WithFields(log.Fields{
				"operation":    operation,
				"max_attempts": cfg.MaxAttempts,
				"error_code":   domain.CodeOf(err),
			}).WithError(err).Error("operation failed after all retry attempts")
			return err
		}
		if ctx.Err() != nil {
			return err
		}

		o.logger.WithFields(fields).WithFields(log.Fields{
			"operation":  operation,
			"attempt":    attempt,
			"delay":      delay,
			"error_code": domain.CodeOf(err),
		}).WithError(err).Warn("operation failed, retrying")
		if o.metrics != nil {
			o.metrics.RecordRetry(operation)
		}

		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return err
			case <-timer.C:
			}
		}
		delay = cfg.nextDelay(delay)
	}
}
