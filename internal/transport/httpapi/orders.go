package httpapi

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/bookstore/internal/auth"
	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

type cartItemRequest struct {
	ID       int64           `json:"id"`
	Quantity int32           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

type createOrderRequest struct {
	Items       []cartItemRequest `json:"items"`
	TotalAmount decimal.Decimal   `json:"totalAmount"`
}

type createOrderResponse struct {
	OrderID int64 `json:"orderId"`
}

type orderItemResponse struct {
	BookID   int64           `json:"bookId"`
	Quantity int32           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

type orderResponse struct {
	ID          int64               `json:"id"`
	UserID      int64               `json:"userId"`
	TotalAmount decimal.Decimal     `json:"totalAmount"`
	Status      domain.OrderStatus  `json:"status"`
	CreatedAt   time.Time           `json:"createdAt"`
	Items       []orderItemResponse `json:"items"`
}

func toOrderResponse(o domain.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemResponse{BookID: item.BookID, Quantity: item.Quantity, Price: item.Price})
	}
	return orderResponse{
		ID:          o.ID,
		UserID:      o.UserID,
		TotalAmount: o.TotalAmount,
		Status:      o.Status,
		CreatedAt:   o.CreatedAt.UTC(),
		Items:       items,
	}
}

func (s *server) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	id, _ := auth.IdentityFrom(r.Context())
	in := domain.NewOrder{
		UserID:      id.UserID,
		TotalAmount: req.TotalAmount,
		Items:       make([]domain.CartItem, 0, len(req.Items)),
	}
	for _, item := range req.Items {
		in.Items = append(in.Items, domain.CartItem{BookID: item.ID, Quantity: item.Quantity, Price: item.Price})
	}

	order, err := s.Writer.CreateOrder(r.Context(), in)
	if err != nil {
		s.fail(w, r, err, "Order not found", "Error creating order")
		return
	}
	writeJSON(w, http.StatusCreated, createOrderResponse{OrderID: order.ID})
}

func (s *server) listMyOrders(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFrom(r.Context())
	orders, err := s.Reader.ListOrdersForUser(r.Context(), id.UserID)
	if err != nil {
		s.fail(w, r, err, "Order not found", "Error fetching orders")
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "Order not found")
	if !ok {
		return
	}

	id, _ := auth.IdentityFrom(r.Context())
	order, err := s.Reader.GetOrder(r.Context(), orderID, id.UserID)
	if err != nil {
		s.fail(w, r, err, "Order not found", "Error fetching order")
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}
