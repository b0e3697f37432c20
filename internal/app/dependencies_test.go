package app

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/storage/memory"
)

func TestNewDependencies_Memory(t *testing.T) {
	t.Parallel()

	deps, err := NewDependencies(context.Background(), DefaultConfig(), log.WithField("test", "memory-storage"))
	if err != nil {
		t.Fatalf("NewDependencies(memory) failed: %v", err)
	}
	defer deps.Close(log.WithField("test", "memory-storage"))

	if deps.Tx == nil || deps.Orders == nil || deps.Timeline == nil || deps.Outbox == nil {
		t.Fatalf("order storage must be initialized: %+v", deps)
	}
	if deps.Catalog == nil || deps.Cart == nil || deps.Idempotency == nil {
		t.Fatalf("catalog, cart and idempotency must be initialized: %+v", deps)
	}
	if deps.StoragePing == nil {
		t.Fatal("expected storage ping for memory storage")
	}
	if err := deps.StoragePing(context.Background()); err != nil {
		t.Fatalf("memory storage ping failed: %v", err)
	}
	if _, ok := deps.Idempotency.(*memory.IdempotencyRepository); !ok {
		t.Fatalf("expected memory idempotency repository, got %T", deps.Idempotency)
	}
}

func TestNewDependencies_MemorySharesOneStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	deps := NewMemoryDependencies(DefaultConfig())

	if _, err := deps.Catalog.UpsertProduct(ctx, domain.Product{
		ID:        "p-1",
		Name:      "Pen",
		UnitPrice: decimal.RequireFromString("2.50"),
		Stock:     4,
	}); err != nil {
		t.Fatalf("UpsertProduct failed: %v", err)
	}
	if err := deps.Cart.AddLine(ctx, "u-1", domain.CartLine{ProductID: "p-1", Quantity: 2}); err != nil {
		t.Fatalf("AddLine failed: %v", err)
	}

	engine := createOrchestrator(deps, DefaultConfig(), nil, log.WithField("test", "shared-store"))
	order, err := engine.CreateOrderFromCart(ctx, "u-1", nil)
	if err != nil {
		t.Fatalf("CreateOrderFromCart failed: %v", err)
	}
	if got := order.Total.StringFixed(2); got != "5.00" {
		t.Fatalf("expected total 5.00, got %s", got)
	}

	product, err := deps.Catalog.GetProduct(ctx, "p-1")
	if err != nil {
		t.Fatalf("GetProduct failed: %v", err)
	}
	if product.Stock != 2 {
		t.Fatalf("expected stock 2 after checkout, got %d", product.Stock)
	}
}

func TestNewDependencies_IndependentInstances(t *testing.T) {
	t.Parallel()

	first := NewMemoryDependencies(DefaultConfig())
	second := NewMemoryDependencies(DefaultConfig())

	if first.Outbox == second.Outbox {
		t.Fatal("outbox repositories must be independent")
	}
}

func TestNewDependencies_PostgresRequiresDSN(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.StorageDriver = StorageDriverPostgres

	_, err := NewDependencies(context.Background(), cfg, log.WithField("test", "postgres-missing-dsn"))
	if err == nil {
		t.Fatal("expected error when postgres driver is selected without DSN")
	}
}

func TestNewDependencies_UnsupportedDriver(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.StorageDriver = "sqlite"

	_, err := NewDependencies(context.Background(), cfg, log.WithField("test", "unsupported-driver"))
	if err == nil || !strings.Contains(err.Error(), "unsupported storage driver") {
		t.Fatalf("expected unsupported storage driver error, got %v", err)
	}
}

func TestNewDependencies_PostgresIdempotencyNeedsPostgresStorage(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.IdempotencyDriver = StorageDriverPostgres

	deps, err := NewDependencies(context.Background(), cfg, nil)
	if err == nil {
		t.Fatal("expected error for postgres idempotency over memory storage")
	}
	if deps != nil {
		t.Fatal("dependencies must be released on error")
	}
}

func TestNewDependencies_RedisIdempotencyUnreachable(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.IdempotencyDriver = StorageDriverRedis
	cfg.RedisURL = "redis://127.0.0.1:1/0"

	if _, err := NewDependencies(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected error for unreachable redis")
	}
}

func TestDependencies_CloseRunsClosersInReverseOrder(t *testing.T) {
	t.Parallel()

	var order []string
	deps := &Dependencies{closers: []func() error{
		func() error { order = append(order, "first"); return nil },
		func() error { order = append(order, "second"); return nil },
	}}

	deps.Close(log.WithField("test", "close"))
	deps.Close(log.WithField("test", "close"))

	if strings.Join(order, ",") != "second,first" {
		t.Fatalf("unexpected close order: %v", order)
	}
}
