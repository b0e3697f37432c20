package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// ErrUndeliverable: событие повреждено или неизвестно, повторная публикация не поможет.
var ErrUndeliverable = errors.New("undeliverable outbox event")

// Причины попадания события в DLQ.
const (
	ReasonRejected  = "rejected"
	ReasonExhausted = "retries_exhausted"
)

// DeadLetter: запись, которую воркер кладёт в DLQ вместо события заказа.
type DeadLetter struct {
	OutboxID       string          `json:"outbox_id"`
	AggregateType  string          `json:"aggregate_type"`
	AggregateID    string          `json:"aggregate_id"`
	EventType      string          `json:"event_type"`
	Payload        json.RawMessage `json:"payload"`
	Reason         string          `json:"reason"`
	Attempts       int             `json:"attempts"`
	PublishError   string          `json:"publish_error"`
	DLQPublishedAt time.Time       `json:"dlq_published_at"`
}

// Message восстанавливает исходное outbox-сообщение.
func (d DeadLetter) Message() domain.OutboxMessage {
	return domain.OutboxMessage{
		ID:            d.OutboxID,
		AggregateType: d.AggregateType,
		AggregateID:   d.AggregateID,
		EventType:     d.EventType,
		Payload:       d.Payload,
	}
}

type payloadCheck func(aggregateID string, payload []byte) error

var payloadChecks = map[string]payloadCheck{
	domain.EventOrderCreated:       checkOrderCreated,
	domain.EventOrderStatusChanged: checkOrderStatusChanged,
}

// Validate проверяет, что сообщение несёт событие заказа с корректным payload.
// Ошибка оборачивает ErrUndeliverable.
func Validate(msg domain.OutboxMessage) error {
	if msg.AggregateType != domain.AggregateTypeOrder {
		return fmt.Errorf("%w: aggregate type %q", ErrUndeliverable, msg.AggregateType)
	}
	check, ok := payloadChecks[msg.EventType]
	if !ok {
		return fmt.Errorf("%w: unknown event type %q", ErrUndeliverable, msg.EventType)
	}
	if err := check(msg.AggregateID, msg.Payload); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUndeliverable, msg.EventType, err)
	}
	return nil
}

func checkOrderCreated(aggregateID string, payload []byte) error {
	var event domain.OrderCreatedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if err := checkOrderID(aggregateID, event.OrderID); err != nil {
		return err
	}
	if !event.Status.Valid() {
		return fmt.Errorf("invalid status %q", event.Status)
	}
	if len(event.Lines) == 0 {
		return errors.New("order has no lines")
	}
	for _, line := range event.Lines {
		if line.ProductID == "" || line.Quantity <= 0 {
			return fmt.Errorf("invalid line %+v", line)
		}
	}
	return nil
}

func checkOrderStatusChanged(aggregateID string, payload []byte) error {
	var event domain.OrderStatusChangedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if err := checkOrderID(aggregateID, event.OrderID); err != nil {
		return err
	}
	if !event.From.Valid() || !event.To.Valid() {
		return fmt.Errorf("invalid transition %q -> %q", event.From, event.To)
	}
	return nil
}

// checkOrderID: ключ партиционирования обязан совпадать с заказом из payload.
func checkOrderID(aggregateID, orderID string) error {
	if orderID == "" {
		return errors.New("order_id is empty")
	}
	if aggregateID != orderID {
		return fmt.Errorf("order_id %q does not match aggregate %q", orderID, aggregateID)
	}
	return nil
}
