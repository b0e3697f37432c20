package idempotency

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/storage/memory"
)

func okHandler(calls *atomic.Int32, body string) Handler {
	return func(context.Context) (Response, bool, error) {
		calls.Add(1)
		return Response{Body: []byte(body), Status: 201}, false, nil
	}
}

func TestExecutor_ReplaysStoredResponse(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	executor := NewExecutor(memory.NewIdempotencyRepository())
	var calls atomic.Int32

	first, err := executor.Execute(ctx, "key-1", "hash-1", okHandler(&calls, `{"id":"o-1"}`))
	if err != nil {
		t.Fatalf("first Execute failed: %v", err)
	}
	if first.Replayed || first.Failed {
		t.Fatalf("unexpected first outcome: %+v", first)
	}

	second, err := executor.Execute(ctx, "key-1", "hash-1", okHandler(&calls, `{"id":"o-2"}`))
	if err != nil {
		t.Fatalf("second Execute failed: %v", err)
	}
	if !second.Replayed {
		t.Fatal("expected replayed outcome")
	}
	if string(second.Body) != `{"id":"o-1"}` || second.Status != 201 {
		t.Fatalf("unexpected replayed response: %s %d", second.Body, second.Status)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected handler to run once, got %d", got)
	}
}

func TestExecutor_HashMismatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	executor := NewExecutor(memory.NewIdempotencyRepository())
	var calls atomic.Int32

	if _, err := executor.Execute(ctx, "key-2", "hash-a", okHandler(&calls, `{}`)); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	_, err := executor.Execute(ctx, "key-2", "hash-b", okHandler(&calls, `{}`))
	if !errors.Is(err, domain.ErrIdempotencyHashMismatch) {
		t.Fatalf("expected hash mismatch, got %v", err)
	}
}

func TestExecutor_CachesFinalFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	executor := NewExecutor(memory.NewIdempotencyRepository())
	var calls atomic.Int32
	failing := func(context.Context) (Response, bool, error) {
		calls.Add(1)
		return Response{Body: []byte(`{"code":"EMPTY_CART"}`), Status: 422}, true, nil
	}

	if _, err := executor.Execute(ctx, "key-3", "hash", failing); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	replayed, err := executor.Execute(ctx, "key-3", "hash", failing)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if !replayed.Failed || !replayed.Replayed || replayed.Status != 422 {
		t.Fatalf("unexpected replayed failure: %+v", replayed)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected handler to run once, got %d", got)
	}
}

func TestExecutor_ReleasesKeyOnRetryableError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := memory.NewIdempotencyRepository()
	executor := NewExecutor(repo)

	_, err := executor.Execute(ctx, "key-4", "hash", func(context.Context) (Response, bool, error) {
		return Response{}, false, domain.ErrStockConflict
	})
	if !errors.Is(err, domain.ErrStockConflict) {
		t.Fatalf("expected stock conflict, got %v", err)
	}
	if _, err := repo.Get(ctx, "key-4"); !errors.Is(err, domain.ErrIdempotencyKeyNotFound) {
		t.Fatalf("expected key to be released, got %v", err)
	}

	var calls atomic.Int32
	outcome, err := executor.Execute(ctx, "key-4", "hash", okHandler(&calls, `{}`))
	if err != nil || outcome.Replayed {
		t.Fatalf("expected fresh execution after release, got %+v, %v", outcome, err)
	}
}

func TestExecutor_ReleasesKeyWhenHandlerPanics(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := memory.NewIdempotencyRepository()
	executor := NewExecutor(repo)

	func() {
		defer func() {
			if recovered := recover(); recovered != "boom" {
				t.Fatalf("expected panic to propagate, got %v", recovered)
			}
		}()
		_, _ = executor.Execute(ctx, "key-panic", "hash", func(context.Context) (Response, bool, error) {
			panic("boom")
		})
	}()

	if _, err := repo.Get(ctx, "key-panic"); !errors.Is(err, domain.ErrIdempotencyKeyNotFound) {
		t.Fatalf("expected key to be released after panic, got %v", err)
	}

	var calls atomic.Int32
	outcome, err := executor.Execute(ctx, "key-panic", "hash", okHandler(&calls, `{"ok":true}`))
	if err != nil {
		t.Fatalf("retry after panic must not see ErrInProgress: %v", err)
	}
	if outcome.Replayed || calls.Load() != 1 {
		t.Fatalf("expected fresh execution, got %+v (calls=%d)", outcome, calls.Load())
	}
}

func TestExecutor_InProgress(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := memory.NewIdempotencyRepository()
	if _, err := repo.CreateProcessing(ctx, "key-5", "hash", time.Now().UTC().Add(time.Hour)); err != nil {
		t.Fatalf("CreateProcessing failed: %v", err)
	}

	var calls atomic.Int32
	_, err := NewExecutor(repo).Execute(ctx, "key-5", "hash", okHandler(&calls, `{}`))
	if !errors.Is(err, ErrInProgress) {
		t.Fatalf("expected ErrInProgress, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatal("handler must not run while the key is processing")
	}
}

func TestExecutor_KeyRequired(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	_, err := NewExecutor(memory.NewIdempotencyRepository()).Execute(context.Background(), "  ", "hash", okHandler(&calls, `{}`))
	if !errors.Is(err, domain.ErrIdempotencyKeyRequired) {
		t.Fatalf("expected ErrIdempotencyKeyRequired, got %v", err)
	}
}

func TestHashRequest(t *testing.T) {
	t.Parallel()

	type request struct {
		UserID string `json:"user_id"`
		Method string `json:"method"`
	}

	a, err := HashRequest("checkout", request{UserID: "u-1", Method: "CARD"})
	if err != nil {
		t.Fatalf("HashRequest failed: %v", err)
	}
	b, _ := HashRequest("checkout", request{UserID: "u-1", Method: "CARD"})
	c, _ := HashRequest("checkout", request{UserID: "u-1", Method: "CASH"})
	d, _ := HashRequest("status", request{UserID: "u-1", Method: "CARD"})

	if a != b {
		t.Fatal("expected equal hashes for equal requests")
	}
	if a == c || a == d {
		t.Fatal("expected different hashes for different requests or operations")
	}
	if len(a) != 64 {
		t.Fatalf("expected hex sha256, got %q", a)
	}
}
