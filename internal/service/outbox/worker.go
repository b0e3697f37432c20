package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/metrics"
)

const (
	defaultPollInterval   = time.Second
	defaultBatchSize      = 100
	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 50 * time.Millisecond
	defaultMaxRetryDelay  = 2 * time.Second
)

// BatchReport: итог одного прохода по outbox.
type BatchReport struct {
	Pulled       int
	Sent         int
	DeadLettered int
	// Failed: событие снято с публикации, но в DLQ не попало.
	Failed int
}

// Worker доставляет события заказов из transactional outbox в брокер.
// Повреждённые и неизвестные события уходят в DLQ без повторов,
// остальные публикуются с экспоненциальным backoff.
type Worker struct {
	repo      domain.OutboxRepository
	publisher domain.OutboxPublisher
	dlq       domain.OutboxPublisher
	logger    *log.Entry
	metrics   *metrics.OutboxMetrics
	now       func() time.Time

	pollInterval   time.Duration
	batchSize      int
	maxAttempts    int
	retryBaseDelay time.Duration
	maxRetryDelay  time.Duration
}

// Option настраивает Worker.
type Option func(*Worker)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

// WithDLQPublisher задаёт publisher для недоставляемых событий.
func WithDLQPublisher(publisher domain.OutboxPublisher) Option {
	return func(w *Worker) {
		w.dlq = publisher
	}
}

// WithMetrics включает метрики доставки.
func WithMetrics(m *metrics.OutboxMetrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

// WithPollInterval задаёт частоту опроса outbox.
func WithPollInterval(interval time.Duration) Option {
	return func(w *Worker) {
		w.pollInterval = interval
	}
}

// WithBatchSize задаёт размер батча.
func WithBatchSize(batchSize int) Option {
	return func(w *Worker) {
		w.batchSize = batchSize
	}
}

// WithMaxAttempts задаёт число попыток публикации перед DLQ.
func WithMaxAttempts(maxAttempts int) Option {
	return func(w *Worker) {
		w.maxAttempts = maxAttempts
	}
}

// WithRetryBaseDelay задаёт задержку перед второй попыткой.
func WithRetryBaseDelay(delay time.Duration) Option {
	return func(w *Worker) {
		w.retryBaseDelay = delay
	}
}

// WithMaxRetryDelay ограничивает рост задержки между попытками.
func WithMaxRetryDelay(delay time.Duration) Option {
	return func(w *Worker) {
		w.maxRetryDelay = delay
	}
}

// NewWorker создаёт воркер; publisher == nil выключает доставку.
func NewWorker(repo domain.OutboxRepository, publisher domain.OutboxPublisher, options ...Option) *Worker {
	w := &Worker{
		repo:           repo,
		publisher:      publisher,
		now:            time.Now,
		pollInterval:   defaultPollInterval,
		batchSize:      defaultBatchSize,
		maxAttempts:    defaultMaxAttempts,
		retryBaseDelay: defaultRetryBaseDelay,
		maxRetryDelay:  defaultMaxRetryDelay,
	}
	for _, option := range options {
		option(w)
	}

	if w.logger == nil {
		w.logger = log.WithField("component", "outbox-worker")
	}
	if w.pollInterval <= 0 {
		w.pollInterval = defaultPollInterval
	}
	if w.batchSize <= 0 {
		w.batchSize = defaultBatchSize
	}
	if w.maxAttempts <= 0 {
		w.maxAttempts = defaultMaxAttempts
	}
	if w.retryBaseDelay < 0 {
		w.retryBaseDelay = 0
	}
	if w.maxRetryDelay <= 0 {
		w.maxRetryDelay = defaultMaxRetryDelay
	}
	if w.maxRetryDelay < w.retryBaseDelay {
		w.maxRetryDelay = w.retryBaseDelay
	}
	return w
}

// Run опрашивает outbox до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if w.repo == nil || w.publisher == nil {
		w.logger.Warn("outbox worker is disabled: repo or publisher is nil")
		return
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		report := w.ProcessOnce(ctx)
		if report.Pulled > 0 {
			w.logger.WithFields(log.Fields{
				"pulled":        report.Pulled,
				"sent":          report.Sent,
				"dead_lettered": report.DeadLettered,
				"failed":        report.Failed,
			}).Debug("outbox batch processed")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ProcessOnce забирает один батч и доставляет его по порядку.
// При отмене ctx недоставленные события остаются pending.
func (w *Worker) ProcessOnce(ctx context.Context) BatchReport {
	var report BatchReport
	if ctx.Err() != nil {
		return report
	}

	events, err := w.repo.PullPending(ctx, w.batchSize)
	if err != nil {
		w.logger.WithError(err).Warn("failed to pull pending outbox messages")
		return report
	}
	report.Pulled = len(events)

	for _, event := range events {
		if ctx.Err() != nil {
			break
		}
		switch w.deliver(ctx, event) {
		case outcomeSent:
			report.Sent++
		case outcomeDeadLettered:
			report.DeadLettered++
		case outcomeFailed:
			report.Failed++
		}
	}

	w.refreshBacklog(ctx)
	return report
}

type outcome int

const (
	outcomeInterrupted outcome = iota
	outcomeSent
	outcomeDeadLettered
	outcomeFailed
)

func (w *Worker) deliver(ctx context.Context, event domain.OutboxMessage) outcome {
	logger := w.logger.WithFields(log.Fields{
		"outbox_id":  event.ID,
		"event_type": event.EventType,
		"order_id":   event.AggregateID,
	})

	if err := Validate(event); err != nil {
		logger.WithError(err).Error("outbox event rejected")
		w.metrics.RecordDelivery(event.EventType, metrics.OutboxResultRejected)
		return w.deadLetter(ctx, logger, event, ReasonRejected, 0, err)
	}

	attempts, err := w.publishWithRetry(ctx, event)
	if err == nil {
		w.metrics.RecordDelivery(event.EventType, metrics.OutboxResultSent)
		if markErr := w.repo.MarkSent(ctx, event.ID); markErr != nil {
			logger.WithError(markErr).Warn("failed to mark outbox as sent")
		}
		return outcomeSent
	}
	if ctx.Err() != nil {
		return outcomeInterrupted
	}

	logger.WithError(err).WithField("attempts", attempts).Error("outbox publish failed after retries")
	return w.deadLetter(ctx, logger, event, ReasonExhausted, attempts, err)
}

func (w *Worker) publishWithRetry(ctx context.Context, event domain.OutboxMessage) (int, error) {
	for attempt := 1; ; attempt++ {
		started := time.Now()
		err := w.publisher.Publish(ctx, event)
		w.metrics.ObservePublish(event.EventType, time.Since(started))
		if err == nil {
			return attempt, nil
		}
		if attempt >= w.maxAttempts {
			return attempt, fmt.Errorf("publish failed after %d attempts: %w", attempt, err)
		}
		w.metrics.RecordDelivery(event.EventType, metrics.OutboxResultRetry)

		delay := w.retryBackoff(attempt)
		if delay <= 0 {
			if ctx.Err() != nil {
				return attempt, ctx.Err()
			}
			continue
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, ctx.Err()
		case <-timer.C:
		}
	}
}

// retryBackoff: задержка после неудачной попытки attempt, удваивается до maxRetryDelay.
func (w *Worker) retryBackoff(attempt int) time.Duration {
	if w.retryBaseDelay <= 0 || attempt < 1 {
		return 0
	}
	delay := w.retryBaseDelay
	for i := 1; i < attempt; i++ {
		if delay > w.maxRetryDelay/2 {
			return w.maxRetryDelay
		}
		delay *= 2
	}
	if delay > w.maxRetryDelay {
		return w.maxRetryDelay
	}
	return delay
}

// deadLetter снимает событие с публикации; без DLQ publisher оно только помечается failed.
func (w *Worker) deadLetter(ctx context.Context, logger *log.Entry, event domain.OutboxMessage, reason string, attempts int, cause error) outcome {
	result := outcomeFailed
	if w.dlq != nil {
		if err := w.publishDeadLetter(ctx, event, reason, attempts, cause); err != nil {
			logger.WithError(err).Warn("failed to publish to DLQ")
			w.metrics.RecordDelivery(event.EventType, metrics.OutboxResultDLQFailed)
		} else {
			w.metrics.RecordDelivery(event.EventType, metrics.OutboxResultDeadLettered)
			result = outcomeDeadLettered
		}
	}

	if err := w.repo.MarkFailed(ctx, event.ID); err != nil {
		logger.WithError(err).Warn("failed to mark outbox as failed")
	}
	return result
}

func (w *Worker) publishDeadLetter(ctx context.Context, event domain.OutboxMessage, reason string, attempts int, cause error) error {
	payload, err := json.Marshal(DeadLetter{
		OutboxID:       event.ID,
		AggregateType:  event.AggregateType,
		AggregateID:    event.AggregateID,
		EventType:      event.EventType,
		Payload:        rawPayload(event.Payload),
		Reason:         reason,
		Attempts:       attempts,
		PublishError:   cause.Error(),
		DLQPublishedAt: w.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}

	if err := w.dlq.Publish(ctx, domain.OutboxMessage{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       payload,
	}); err != nil {
		return fmt.Errorf("publish to dlq: %w", err)
	}
	return nil
}

// rawPayload: битый JSON кладётся в DLQ строкой, иначе запись не сериализуется.
func rawPayload(payload []byte) json.RawMessage {
	if json.Valid(payload) {
		return payload
	}
	quoted, _ := json.Marshal(string(payload))
	return quoted
}

func (w *Worker) refreshBacklog(ctx context.Context) {
	if w.metrics == nil {
		return
	}
	stats, err := w.repo.Stats(ctx)
	if err != nil {
		w.logger.WithError(err).Warn("failed to collect outbox backlog stats")
		return
	}
	w.metrics.SetBacklog(stats.PendingCount, stats.OldestPendingAt, w.now())
}
