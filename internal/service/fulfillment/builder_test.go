package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func TestOrderBuilder_Build(t *testing.T) {
	store := newTestStore(t)
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("MSK", 3*3600))
	builder := NewOrderBuilder(sequentialIDs("id"), func() time.Time { return fixed })
	card := domain.PaymentMethodCard

	var order domain.Order
	err := store.RunInTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		var err error
		order, err = builder.Build(ctx, tx.Orders(), "user-1", &card, []PriceSnapshot{
			{ProductID: "A", ProductName: "Alpha", Quantity: 2, UnitPrice: decimal.RequireFromString("10.00")},
			{ProductID: "B", ProductName: "Beta", Quantity: 1, UnitPrice: decimal.RequireFromString("5.00")},
		})
		return err
	})
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	if order.ID != "id-1" || order.Lines[0].ID != "id-2" || order.Lines[1].ID != "id-3" {
		t.Fatalf("unexpected ids: order %s lines %s %s", order.ID, order.Lines[0].ID, order.Lines[1].ID)
	}
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("expected PENDING, got %s", order.Status)
	}
	if !order.Total.Equal(decimal.RequireFromString("25.00")) {
		t.Fatalf("expected total 25.00, got %s", order.Total)
	}
	if !order.CreatedAt.Equal(fixed) || order.CreatedAt.Location() != time.UTC {
		t.Fatalf("expected UTC creation time %v, got %v", fixed.UTC(), order.CreatedAt)
	}

	stored, err := store.Get(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("order was not persisted: %v", err)
	}
	if len(stored.Lines) != 2 || stored.Lines[0].ProductID != "A" {
		t.Fatalf("unexpected persisted lines: %+v", stored.Lines)
	}
	if stored.PaymentMethod == nil || *stored.PaymentMethod != domain.PaymentMethodCard {
		t.Fatalf("payment method not persisted: %+v", stored.PaymentMethod)
	}
}

func TestOrderBuilder_RejectsInvariantViolation(t *testing.T) {
	store := newTestStore(t)
	builder := NewOrderBuilder(nil, nil)

	err := store.RunInTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		_, err := builder.Build(ctx, tx.Orders(), "user-1", nil, []PriceSnapshot{
			{ProductID: "A", ProductName: "Alpha", Quantity: 1, UnitPrice: decimal.NewFromInt(-1)},
		})
		return err
	})
	if !errors.Is(err, errOrderInvariant) {
		t.Fatalf("expected invariant error, got %v", err)
	}
	if code := domain.CodeOf(err); code != domain.CodeInternal {
		t.Fatalf("invariant violation must be internal, got %s", code)
	}

	orders, _ := store.ListAll(context.Background(), 0)
	if len(orders) != 0 {
		t.Fatalf("no order must be written, got %d", len(orders))
	}
}
