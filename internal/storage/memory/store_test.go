package memory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/storage/memory"
)

func seedStore(t *testing.T, products ...domain.Product) *memory.Store {
	t.Helper()
	store := memory.NewStore(memory.WithLockTimeout(50 * time.Millisecond))
	for _, p := range products {
		if _, err := store.UpsertProduct(context.Background(), p); err != nil {
			t.Fatalf("seed product %s: %v", p.ID, err)
		}
	}
	return store
}

func product(id string, price string, stock int) domain.Product {
	return domain.Product{ID: id, Name: "Product " + id, UnitPrice: decimal.RequireFromString(price), Stock: stock}
}

func TestStore_RollbackOnError(t *testing.T) {
	store := seedStore(t, product("A", "10.00", 5))
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		if _, err := tx.Catalog().DecrementStock(ctx, domain.ReserveStock{ProductID: "A", Amount: 3}); err != nil {
			return err
		}
		if err := tx.Outbox().Enqueue(ctx, domain.OutboxMessage{AggregateID: "x"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	got, _ := store.GetProduct(ctx, "A")
	if got.Stock != 5 {
		t.Fatalf("stock must be unchanged after rollback, got %d", got.Stock)
	}
	if pending := store.Outbox().AllPending(); len(pending) != 0 {
		t.Fatalf("outbox must be empty after rollback, got %d", len(pending))
	}
}

func TestStore_RollbackOnPanicReleasesLocks(t *testing.T) {
	store := seedStore(t, product("A", "1.00", 1))
	ctx := context.Background()

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_ = store.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			if _, err := tx.Catalog().LockProducts(ctx, []string{"A"}); err != nil {
				return err
			}
			panic("unexpected")
		})
	}()

	err := store.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		_, err := tx.Catalog().DecrementStock(ctx, domain.ReserveStock{ProductID: "A", Amount: 1})
		return err
	})
	if err != nil {
		t.Fatalf("lock must be released after panic, got %v", err)
	}
}

func TestStore_DecrementStockFloor(t *testing.T) {
	store := seedStore(t, product("A", "1.00", 2))
	ctx := context.Background()

	err := store.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		_, err := tx.Catalog().DecrementStock(ctx, domain.ReserveStock{ProductID: "A", Amount: 3})
		return err
	})
	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if stockErr.Available != 2 || stockErr.Requested != 3 {
		t.Fatalf("unexpected error details %+v", stockErr)
	}
}

func TestStore_LockTimeoutIsStockConflict(t *testing.T) {
	store := seedStore(t, product("A", "1.00", 2))
	ctx := context.Background()

	holding := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = store.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			if _, err := tx.Catalog().LockProducts(ctx, []string{"A"}); err != nil {
				return err
			}
			close(holding)
			time.Sleep(200 * time.Millisecond)
			return nil
		})
	}()
	<-holding

	err := store.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		_, err := tx.Catalog().LockProducts(ctx, []string{"A"})
		return err
	})
	if !errors.Is(err, domain.ErrStockConflict) {
		t.Fatalf("expected ErrStockConflict, got %v", err)
	}
	<-done
}

func TestStore_CartClearIsIdempotent(t *testing.T) {
	store := seedStore(t, product("A", "1.00", 2))
	ctx := context.Background()
	if err := store.AddLine(ctx, "u1", domain.CartLine{ProductID: "A", Quantity: 1}); err != nil {
		t.Fatalf("add line: %v", err)
	}
	if err := store.AddLine(ctx, "u1", domain.CartLine{ProductID: "A", Quantity: 2}); err != nil {
		t.Fatalf("add line: %v", err)
	}
	lines, _ := store.CartLines(ctx, "u1")
	if len(lines) != 1 || lines[0].Quantity != 3 {
		t.Fatalf("expected merged cart line, got %+v", lines)
	}

	for i := 0; i < 2; i++ {
		err := store.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			return tx.Cart().Clear(ctx, "u1")
		})
		if err != nil {
			t.Fatalf("clear #%d failed: %v", i, err)
		}
	}
	if lines, _ := store.CartLines(ctx, "u1"); len(lines) != 0 {
		t.Fatalf("expected empty cart, got %+v", lines)
	}
}

func TestStore_AddLineUnknownProduct(t *testing.T) {
	store := seedStore(t)
	err := store.AddLine(context.Background(), "u1", domain.CartLine{ProductID: "ghost", Quantity: 1})
	if !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestStore_OrdersAndPayment(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	insert := func(id, user string, at time.Time) {
		t.Helper()
		err := store.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			order := domain.Order{ID: id, UserID: user, Status: domain.OrderStatusPending, Total: decimal.NewFromInt(1), CreatedAt: at, UpdatedAt: at}
			if err := tx.Orders().InsertOrder(ctx, order); err != nil {
				return err
			}
			return tx.Orders().InsertLine(ctx, id, domain.OrderLine{ID: id + "-l", ProductID: "A", Quantity: 1, UnitPrice: decimal.NewFromInt(1)})
		})
		if err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}
	insert("o1", "u1", base)
	insert("o2", "u2", base.Add(time.Minute))
	insert("o3", "u1", base.Add(2*time.Minute))

	mine, _ := store.ListByUser(ctx, "u1", 0)
	if len(mine) != 2 || mine[0].ID != "o3" || mine[1].ID != "o1" {
		t.Fatalf("expected [o3 o1], got %+v", mine)
	}
	all, _ := store.ListAll(ctx, 2)
	if len(all) != 2 || all[0].ID != "o3" {
		t.Fatalf("expected limited list starting at o3, got %+v", all)
	}

	for i, wantRecorded := range []bool{true, false} {
		var recorded bool
		err := store.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			if err := tx.Orders().UpdateStatus(ctx, "o1", domain.OrderStatusPaid, base.Add(time.Hour)); err != nil {
				return err
			}
			var err error
			recorded, err = tx.Orders().RecordPayment(ctx, domain.Payment{OrderID: "o1", Amount: decimal.NewFromInt(1), Status: domain.PaymentStatusConfirmed})
			return err
		})
		if err != nil {
			t.Fatalf("payment #%d: %v", i, err)
		}
		if recorded != wantRecorded {
			t.Fatalf("payment #%d recorded=%v, want %v", i, recorded, wantRecorded)
		}
	}

	paid, _ := store.ListByStatus(ctx, domain.OrderStatusPaid, 0)
	if len(paid) != 1 || paid[0].Payment == nil || paid[0].Payment.ID == "" {
		t.Fatalf("expected one paid order with payment, got %+v", paid)
	}
	if _, err := store.Get(ctx, "missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestStore_DifferentProductsDoNotBlock(t *testing.T) {
	store := seedStore(t, product("A", "1.00", 100), product("B", "1.00", 100))
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, id := range []string{"A", "B"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			errs <- store.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
				if _, err := tx.Catalog().LockProducts(ctx, []string{id}); err != nil {
					return err
				}
				time.Sleep(30 * time.Millisecond)
				_, err := tx.Catalog().DecrementStock(ctx, domain.ReserveStock{ProductID: id, Amount: 1})
				return err
			})
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}
