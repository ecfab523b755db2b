package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// AggregateTypeOrder — тип агрегата для событий заказа в outbox.
	AggregateTypeOrder = "order"
	// EventTypeOrderCreated — заказ записан в хранилище.
	EventTypeOrderCreated = "order.created"
)

// OrderCreatedItem — позиция в payload события order.created.
type OrderCreatedItem struct {
	BookID   int64           `json:"book_id"`
	Quantity int32           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// OrderCreatedPayload — тело события order.created.
type OrderCreatedPayload struct {
	OrderID     int64              `json:"order_id"`
	UserID      int64              `json:"user_id"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	Status      OrderStatus        `json:"status"`
	Items       []OrderCreatedItem `json:"items"`
	CreatedAt   time.Time          `json:"created_at"`
}

// NewOrderCreatedMessage собирает outbox-сообщение для только что записанного заказа.
func NewOrderCreatedMessage(order Order) (OutboxMessage, error) {
	items := make([]OrderCreatedItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderCreatedItem{
			BookID:   item.BookID,
			Quantity: item.Quantity,
			Price:    item.Price,
		})
	}

	payload, err := json.Marshal(OrderCreatedPayload{
		OrderID:     order.ID,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount,
		Status:      order.Status,
		Items:       items,
		CreatedAt:   order.CreatedAt.UTC(),
	})
	if err != nil {
		return OutboxMessage{}, fmt.Errorf("marshal order.created payload: %w", err)
	}

	return OutboxMessage{
		ID:            uuid.NewString(),
		AggregateType: AggregateTypeOrder,
		AggregateID:   strconv.FormatInt(order.ID, 10),
		EventType:     EventTypeOrderCreated,
		Payload:       payload,
	}, nil
}
