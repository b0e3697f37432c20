package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

var errOrderInvariant = errors.New("order invariant violated")

// OrderBuilder собирает заказ из зафиксированных цен и пишет его в транзакцию.
type OrderBuilder struct {
	newID func() string
	now   func() time.Time
}

// NewOrderBuilder создаёт builder. nil-аргументы заменяются на uuid и time.Now.
func NewOrderBuilder(newID func() string, now func() time.Time) *OrderBuilder {
	if newID == nil {
		newID = uuid.NewString
	}
	if now == nil {
		now = time.Now
	}
	return &OrderBuilder{newID: newID, now: now}
}

// Build создаёт заказ в статусе PENDING: сначала строку заказа, затем позиции.
func (b *OrderBuilder) Build(ctx context.Context, orders domain.OrderTx, userID string, method *domain.PaymentMethod, snapshots []PriceSnapshot) (domain.Order, error) {
	now := b.now().UTC()
	order := domain.Order{
		ID:            b.newID(),
		UserID:        userID,
		Status:        domain.OrderStatusPending,
		PaymentMethod: method,
		Lines:         make([]domain.OrderLine, 0, len(snapshots)),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, snapshot := range snapshots {
		order.Lines = append(order.Lines, domain.OrderLine{
			ID:          b.newID(),
			ProductID:   snapshot.ProductID,
			ProductName: snapshot.ProductName,
			Quantity:    snapshot.Quantity,
			UnitPrice:   snapshot.UnitPrice,
		})
	}
	order.Total = domain.LinesTotal(order.Lines)

	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, fmt.Errorf("%w: %v", errOrderInvariant, errors.Join(errs...))
	}

	if err := orders.InsertOrder(ctx, order); err != nil {
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}
	for _, line := range order.Lines {
		if err := orders.InsertLine(ctx, order.ID, line); err != nil {
			return domain.Order{}, fmt.Errorf("insert order line: %w", err)
		}
	}
	return order, nil
}
