package kafka

import (
	"encoding/json"
	"time"
)

// Topics по умолчанию.
const (
	TopicOrderEvents     = "bookstore.order.events"
	TopicDeadLetterQueue = "bookstore.order.dlq"
)

// Заголовки сообщений Kafka.
const (
	HeaderEventType     = "x-event-type"
	HeaderOutboxID      = "x-outbox-id"
	HeaderAggregateType = "x-aggregate-type"
)

// Envelope — формат сообщения в topic событий заказа.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}
