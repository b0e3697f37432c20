package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// DefaultTTL: время жизни ключа идемпотентности.
const DefaultTTL = 24 * time.Hour

// ErrInProgress возвращается, пока запрос с тем же ключом ещё обрабатывается.
var ErrInProgress = errors.New("request with the same idempotency key is in progress")

// Response: сохраняемый ответ мутирующего запроса.
// Status хранит код транспорта: HTTP-статус для REST, код gRPC для gRPC.
type Response struct {
	Body   []byte
	Status int
}

// Outcome: результат Execute.
type Outcome struct {
	Response
	// Failed означает, что ответ описывает окончательную ошибку.
	Failed bool
	// Replayed означает, что ответ взят из хранилища, а обработчик не вызывался.
	Replayed bool
}

// Handler выполняет запрос. failed=true сохраняет ответ как закэшированную ошибку.
// Ненулевой err ничего не кэширует и освобождает ключ.
type Handler func(ctx context.Context) (resp Response, failed bool, err error)

// ExecutorOption настраивает Executor.
type ExecutorOption func(*Executor)

// WithExecutorLogger задаёт logger.
func WithExecutorLogger(logger *log.Entry) ExecutorOption {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTTL задаёт время жизни ключей.
func WithTTL(ttl time.Duration) ExecutorOption {
	return func(e *Executor) {
		if ttl > 0 {
			e.ttl = ttl
		}
	}
}

// WithExecutorClock подменяет источник времени.
func WithExecutorClock(clock func() time.Time) ExecutorOption {
	return func(e *Executor) {
		if clock != nil {
			e.now = clock
		}
	}
}

// Executor выполняет запросы не больше одного раза на ключ и воспроизводит сохранённые ответы.
type Executor struct {
	repo   domain.IdempotencyRepository
	logger *log.Entry
	ttl    time.Duration
	now    func() time.Time
}

// NewExecutor создаёт Executor поверх репозитория ключей.
func NewExecutor(repo domain.IdempotencyRepository, options ...ExecutorOption) *Executor {
	e := &Executor{
		repo:   repo,
		logger: log.WithField("component", "idempotency"),
		ttl:    DefaultTTL,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, option := range options {
		option(e)
	}
	return e
}

// Execute занимает ключ и вызывает handler. Повтор с тем же ключом и телом
// возвращает сохранённый ответ, с другим телом: ErrIdempotencyHashMismatch.
func (e *Executor) Execute(ctx context.Context, key, requestHash string, handler Handler) (Outcome, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Outcome{}, domain.ErrIdempotencyKeyRequired
	}

	record, err := e.repo.CreateProcessing(ctx, key, requestHash, e.now().Add(e.ttl))
	if err != nil {
		return e.replay(record, err)
	}

	resp, failed, err := e.run(ctx, key, handler)
	if err != nil {
		e.release(ctx, key)
		return Outcome{}, err
	}

	mark := e.repo.MarkDone
	if failed {
		mark = e.repo.MarkFailed
	}
	if markErr := mark(context.WithoutCancel(ctx), key, resp.Body, resp.Status); markErr != nil {
		e.logger.WithError(markErr).WithField("idempotency_key", key).Warn("failed to store idempotent response")
	}

	return Outcome{Response: resp, Failed: failed}, nil
}

// run вызывает handler. При панике ключ освобождается, а паника пробрасывается дальше,
// иначе ключ оставался бы в processing до истечения TTL.
func (e *Executor) run(ctx context.Context, key string, handler Handler) (resp Response, failed bool, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			e.logger.WithField("idempotency_key", key).WithField("panic", recovered).Error("idempotent handler panicked")
			e.release(ctx, key)
			panic(recovered)
		}
	}()
	return handler(ctx)
}

func (e *Executor) release(ctx context.Context, key string) {
	if err := e.repo.Release(context.WithoutCancel(ctx), key); err != nil {
		e.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to release idempotency key")
	}
}

func (e *Executor) replay(record domain.IdempotencyRecord, err error) (Outcome, error) {
	switch {
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return Outcome{}, err
	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
	default:
		return Outcome{}, fmt.Errorf("create idempotency record: %w", err)
	}

	switch record.Status {
	case domain.IdempotencyStatusDone, domain.IdempotencyStatusFailed:
		return Outcome{
			Response: Response{Body: append([]byte(nil), record.ResponseBody...), Status: record.HTTPStatus},
			Failed:   record.Status == domain.IdempotencyStatusFailed,
			Replayed: true,
		}, nil
	default:
		return Outcome{}, ErrInProgress
	}
}

// HashRequest считает sha256 от имени операции и детерминированного JSON запроса.
func HashRequest(operation string, request any) (string, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("marshal request for idempotency hash: %w", err)
	}

	sum := sha256.New()
	sum.Write([]byte(operation))
	sum.Write([]byte(":"))
	sum.Write(payload)
	return hex.EncodeToString(sum.Sum(nil)), nil
}
