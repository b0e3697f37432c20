package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AggregateTypeOrder: тип агрегата в outbox для событий заказа.
const AggregateTypeOrder = "order"

// Типы событий, которые движок пишет в outbox.
const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
)

// OrderCreatedLine: позиция заказа в событии OrderCreated.
type OrderCreatedLine struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	StockAfter  int             `json:"stock_after"`
}

// OrderCreatedEvent публикуется после фиксации оформления заказа.
type OrderCreatedEvent struct {
	OrderID       string             `json:"order_id"`
	UserID        string             `json:"user_id"`
	Status        OrderStatus        `json:"status"`
	PaymentMethod *PaymentMethod     `json:"payment_method,omitempty"`
	Total         decimal.Decimal    `json:"total"`
	Lines         []OrderCreatedLine `json:"lines"`
	CreatedAt     time.Time          `json:"created_at"`
}

// OrderStatusChangedEvent публикуется после смены статуса.
type OrderStatusChangedEvent struct {
	OrderID   string          `json:"order_id"`
	UserID    string          `json:"user_id"`
	From      OrderStatus     `json:"from"`
	To        OrderStatus     `json:"to"`
	Total     decimal.Decimal `json:"total"`
	ChangedAt time.Time       `json:"changed_at"`
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
