package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

// orderRepositoryInMemory — простая in-memory реализация OrderRepository.
type orderRepositoryInMemory struct {
	mu         sync.RWMutex
	nextID     int64
	nextItemID int64
	items      map[int64]domain.Order
	outbox     domain.OutboxRepository
	now        func() time.Time
}

// OrderOption настраивает in-memory репозиторий заказов.
type OrderOption func(*orderRepositoryInMemory)

// WithOrderEvents включает запись события order.created в outbox вместе с заказом.
func WithOrderEvents(outbox domain.OutboxRepository) OrderOption {
	return func(r *orderRepositoryInMemory) {
		r.outbox = outbox
	}
}

// WithClock подменяет источник времени (используется в тестах).
func WithClock(now func() time.Time) OrderOption {
	return func(r *orderRepositoryInMemory) {
		if now != nil {
			r.now = now
		}
	}
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository(opts ...OrderOption) domain.OrderRepository {
	r := &orderRepositoryInMemory{
		items: make(map[int64]domain.Order),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create сохраняет заказ и позиции под одной блокировкой: частичной записи не бывает.
func (r *orderRepositoryInMemory) Create(ctx context.Context, in domain.NewOrder) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	orderID := r.nextID + 1
	order := domain.Order{
		ID:          orderID,
		UserID:      in.UserID,
		TotalAmount: in.TotalAmount,
		Status:      domain.OrderStatusPending,
		CreatedAt:   r.now(),
		Items:       make([]domain.OrderItem, 0, len(in.Items)),
	}
	itemID := r.nextItemID
	for _, item := range in.Items {
		itemID++
		order.Items = append(order.Items, domain.OrderItem{
			ID:       itemID,
			OrderID:  orderID,
			BookID:   item.BookID,
			Quantity: item.Quantity,
			Price:    item.Price,
		})
	}

	if r.outbox != nil {
		msg, err := domain.NewOrderCreatedMessage(order)
		if err != nil {
			return domain.Order{}, err
		}
		if _, err := r.outbox.Enqueue(ctx, msg); err != nil {
			return domain.Order{}, fmt.Errorf("enqueue order event: %w", err)
		}
	}

	r.nextID = orderID
	r.nextItemID = itemID
	r.items[orderID] = order
	return cloneOrder(order), nil
}

// GetForUser возвращает заказ владельца или ErrOrderNotFound.
func (r *orderRepositoryInMemory) GetForUser(_ context.Context, orderID, userID int64) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.items[orderID]
	if !ok || order.UserID != userID {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// ListByUser возвращает заказы пользователя, ограничивая выборку limit (если >0).
func (r *orderRepositoryInMemory) ListByUser(_ context.Context, userID int64, limit int) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Order, 0)
	for _, order := range r.items {
		if order.UserID != userID {
			continue
		}
		result = append(result, cloneOrder(order))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

func cloneOrder(src domain.Order) domain.Order {
	dst := src
	dst.Items = append([]domain.OrderItem{}, src.Items...)
	return dst
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
