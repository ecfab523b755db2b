package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNewOrderCreatedMessage(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	order := Order{
		ID:          42,
		UserID:      7,
		TotalAmount: decimal.RequireFromString("19.98"),
		Status:      OrderStatusPending,
		CreatedAt:   created,
		Items: []OrderItem{
			{ID: 1, OrderID: 42, BookID: 3, Quantity: 2, Price: decimal.RequireFromString("9.99")},
		},
	}

	msg, err := NewOrderCreatedMessage(order)
	if err != nil {
		t.Fatalf("build message: %v", err)
	}
	if msg.ID == "" {
		t.Fatal("message id must be generated")
	}
	if msg.AggregateType != AggregateTypeOrder || msg.AggregateID != "42" || msg.EventType != EventTypeOrderCreated {
		t.Fatalf("unexpected envelope: %+v", msg)
	}

	var payload OrderCreatedPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.OrderID != 42 || payload.UserID != 7 || len(payload.Items) != 1 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if !payload.TotalAmount.Equal(order.TotalAmount) {
		t.Fatalf("total = %s, want %s", payload.TotalAmount, order.TotalAmount)
	}
	if !payload.CreatedAt.Equal(created) {
		t.Fatalf("created_at = %s, want %s", payload.CreatedAt, created)
	}
}
