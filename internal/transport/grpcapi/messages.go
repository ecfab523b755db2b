package grpcapi

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

type CartItem struct {
	BookID   int64           `json:"bookId"`
	Quantity int32           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

type CreateOrderRequest struct {
	Items       []CartItem      `json:"items"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

// CreateOrderResponse возвращает идентификатор созданного заказа.
type CreateOrderResponse struct {
	OrderID int64 `json:"orderId"`
}

// ListMyOrdersRequest пуст: владелец берётся из токена.
type ListMyOrdersRequest struct{}

type ListMyOrdersResponse struct {
	Orders []Order `json:"orders"`
}

type GetOrderRequest struct {
	OrderID int64 `json:"orderId"`
}

// GetOrderResponse содержит найденный заказ.
type GetOrderResponse struct {
	Order Order `json:"order"`
}

type OrderItem struct {
	BookID   int64           `json:"bookId"`
	Quantity int32           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// Order — заказ с позициями.
type Order struct {
	ID          int64              `json:"id"`
	UserID      int64              `json:"userId"`
	TotalAmount decimal.Decimal    `json:"totalAmount"`
	Status      domain.OrderStatus `json:"status"`
	CreatedAt   time.Time          `json:"createdAt"`
	Items       []OrderItem        `json:"items"`
}

func toOrder(o domain.Order) Order {
	items := make([]OrderItem, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItem{BookID: item.BookID, Quantity: item.Quantity, Price: item.Price})
	}
	return Order{
		ID:          o.ID,
		UserID:      o.UserID,
		TotalAmount: o.TotalAmount,
		Status:      o.Status,
		CreatedAt:   o.CreatedAt.UTC(),
		Items:       items,
	}
}

func (r *CreateOrderRequest) toDomain(userID int64) domain.NewOrder {
	in := domain.NewOrder{
		UserID:      userID,
		TotalAmount: r.TotalAmount,
		Items:       make([]domain.CartItem, 0, len(r.Items)),
	}
	for _, item := range r.Items {
		in.Items = append(in.Items, domain.CartItem{BookID: item.BookID, Quantity: item.Quantity, Price: item.Price})
	}
	return in
}
