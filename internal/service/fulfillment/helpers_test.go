package fulfillment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/storage/memory"
)

func testProduct(id, name, price string, stock int) domain.Product {
	return domain.Product{ID: id, Name: name, UnitPrice: decimal.RequireFromString(price), Stock: stock}
}

func newTestStore(t *testing.T, products ...domain.Product) *memory.Store {
	t.Helper()

	store := memory.NewStore(memory.WithLockTimeout(time.Second))
	for _, p := range products {
		if _, err := store.UpsertProduct(context.Background(), p); err != nil {
			t.Fatalf("seed product %s: %v", p.ID, err)
		}
	}
	return store
}

func addToCart(t *testing.T, store *memory.Store, userID, productID string, quantity int) {
	t.Helper()
	if err := store.AddLine(context.Background(), userID, domain.CartLine{ProductID: productID, Quantity: quantity}); err != nil {
		t.Fatalf("add cart line %s x%d for %s: %v", productID, quantity, userID, err)
	}
}

func stockOf(t *testing.T, store *memory.Store, productID string) int {
	t.Helper()
	product, err := store.GetProduct(context.Background(), productID)
	if err != nil {
		t.Fatalf("get product %s: %v", productID, err)
	}
	return product.Stock
}

func quietLogger() *log.Entry {
	logger, _ := test.NewNullLogger()
	return logger.WithField("component", "fulfillment-test")
}

func fastRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, BackoffFactor: 2}
}

func newTestOrchestrator(store *memory.Store, options ...Option) *Orchestrator {
	base := []Option{WithLogger(quietLogger()), WithRetryConfig(fastRetry())}
	return NewOrchestrator(store, store, store.Timeline(), append(base, options...)...)
}

// scriptedRunner возвращает заранее заданные ошибки, а затем делегирует хранилищу.
type scriptedRunner struct {
	inner domain.TxRunner

	mu       sync.Mutex
	failures []error
	calls    int
	onCall   func(call int)
}

func (r *scriptedRunner) RunInTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	r.mu.Lock()
	r.calls++
	call := r.calls
	var err error
	if len(r.failures) > 0 {
		err = r.failures[0]
		r.failures = r.failures[1:]
	}
	r.mu.Unlock()

	if r.onCall != nil {
		r.onCall(call)
	}
	if err != nil {
		return err
	}
	return r.inner.RunInTx(ctx, fn)
}

func (r *scriptedRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}
