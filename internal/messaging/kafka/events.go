package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// Topics для Kafka
const (
	TopicFulfillmentEvents = "oms.fulfillment.events"
	TopicDeadLetterQueue   = "oms.fulfillment.dlq" // Dead Letter Queue для failed messages
)

// Kafka headers
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
	HeaderEventType     = "x-event-type"
	HeaderOutboxID      = "x-outbox-id"
)

// Envelope: сообщение transactional outbox в Kafka.
// ID совпадает с идентификатором записи outbox и служит ключом дедупликации у потребителей.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// NewEnvelope заворачивает outbox-сообщение в конверт.
func NewEnvelope(event domain.OutboxMessage, publishedAt time.Time) Envelope {
	return Envelope{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       json.RawMessage(event.Payload),
		PublishedAt:   publishedAt.UTC(),
	}
}

// Message восстанавливает outbox-сообщение из конверта.
func (e Envelope) Message() domain.OutboxMessage {
	return domain.OutboxMessage{
		ID:            e.ID,
		AggregateType: e.AggregateType,
		AggregateID:   e.AggregateID,
		EventType:     e.EventType,
		Payload:       e.Payload,
	}
}

// Key возвращает ключ партиционирования: события одного заказа попадают в одну партицию.
func (e Envelope) Key() string {
	if e.AggregateID != "" {
		return e.AggregateID
	}
	return e.ID
}

// OrderCreated декодирует payload события OrderCreated.
func (e Envelope) OrderCreated() (domain.OrderCreatedEvent, error) {
	var event domain.OrderCreatedEvent
	if e.EventType != domain.EventOrderCreated {
		return event, fmt.Errorf("unexpected event type %q, want %q", e.EventType, domain.EventOrderCreated)
	}
	if err := json.Unmarshal(e.Payload, &event); err != nil {
		return event, fmt.Errorf("failed to unmarshal order created event: %w", err)
	}
	return event, nil
}

// OrderStatusChanged декодирует payload события OrderStatusChanged.
func (e Envelope) OrderStatusChanged() (domain.OrderStatusChangedEvent, error) {
	var event domain.OrderStatusChangedEvent
	if e.EventType != domain.EventOrderStatusChanged {
		return event, fmt.Errorf("unexpected event type %q, want %q", e.EventType, domain.EventOrderStatusChanged)
	}
	if err := json.Unmarshal(e.Payload, &event); err != nil {
		return event, fmt.Errorf("failed to unmarshal order status changed event: %w", err)
	}
	return event, nil
}

// ParseEnvelope парсит конверт outbox из сообщения Kafka.
func ParseEnvelope(message *sarama.ConsumerMessage) (Envelope, error) {
	var envelope Envelope
	if message == nil {
		return envelope, fmt.Errorf("message is nil")
	}
	if err := json.Unmarshal(message.Value, &envelope); err != nil {
		return envelope, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	if envelope.ID == "" || envelope.EventType == "" {
		return envelope, fmt.Errorf("envelope must have id and event_type")
	}
	return envelope, nil
}

// DeadLetter: сообщение, которое consumer отправил в DLQ после исчерпания попыток.
type DeadLetter struct {
	OriginalTopic     string `json:"original_topic"`
	OriginalPartition int32  `json:"original_partition"`
	OriginalOffset    int64  `json:"original_offset"`
	OriginalKey       string `json:"original_key"`
	OriginalValue     string `json:"original_value"`
	ErrorMessage      string `json:"error_message"`
	FailedAt          string `json:"failed_at"`
	RetryCount        int    `json:"retry_count"`
}
