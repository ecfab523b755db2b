package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

func sampleNewOrder(userID int64, bookIDs ...int64) domain.NewOrder {
	order := domain.NewOrder{UserID: userID}
	total := decimal.Zero
	for i, id := range bookIDs {
		price := decimal.NewFromInt(int64(i + 1)).Add(decimal.RequireFromString("0.99"))
		order.Items = append(order.Items, domain.CartItem{BookID: id, Quantity: 1, Price: price})
		total = total.Add(price)
	}
	order.TotalAmount = total
	return order
}

func TestOrderRepository_PostgresCreateGetAndList(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	books := seedBooks(t, store, 3)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	first, err := repo.Create(ctx, sampleNewOrder(1, books[0], books[1]))
	if err != nil {
		t.Fatalf("create first order: %v", err)
	}
	second, err := repo.Create(ctx, sampleNewOrder(1, books[2]))
	if err != nil {
		t.Fatalf("create second order: %v", err)
	}
	if first.ID <= 0 || first.Status != domain.OrderStatusPending || first.CreatedAt.IsZero() {
		t.Fatalf("unexpected created order: %+v", first)
	}

	got, err := repo.GetForUser(ctx, first.ID, 1)
	if err != nil {
		t.Fatalf("get first order: %v", err)
	}
	if len(got.Items) != 2 || got.Items[0].BookID != books[0] || got.Items[1].BookID != books[1] {
		t.Fatalf("unexpected items: %+v", got.Items)
	}
	if !got.TotalAmount.Equal(first.TotalAmount) {
		t.Fatalf("total mismatch: got %s want %s", got.TotalAmount, first.TotalAmount)
	}

	listed, err := repo.ListByUser(ctx, 1, 0)
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(listed) != 2 || listed[0].ID != second.ID || listed[1].ID != first.ID {
		t.Fatalf("unexpected list order: %+v", listed)
	}

	limited, err := repo.ListByUser(ctx, 1, 1)
	if err != nil {
		t.Fatalf("list orders with limit: %v", err)
	}
	if len(limited) != 1 || len(limited[0].Items) != 1 {
		t.Fatalf("unexpected limited list: %+v", limited)
	}
}

func TestOrderRepository_PostgresOwnership(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	books := seedBooks(t, store, 1)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	created, err := repo.Create(ctx, sampleNewOrder(1, books[0]))
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if _, err := repo.GetForUser(ctx, created.ID, 2); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound for foreign order, got %v", err)
	}
	if _, err := repo.GetForUser(ctx, created.ID+1000, 1); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound for missing order, got %v", err)
	}

	empty, err := repo.ListByUser(ctx, 2, 0)
	if err != nil {
		t.Fatalf("list foreign orders: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", empty)
	}
}

func TestOrderRepository_PostgresCreateIsAtomic(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	books := seedBooks(t, store, 1)
	repo := NewOrderRepository(store, WithOrderEvents())
	ctx := context.Background()

	// Последняя позиция ссылается на несуществующую книгу: FK ломает вставку.
	if _, err := repo.Create(ctx, sampleNewOrder(9, books[0], books[0]+1000)); err == nil {
		t.Fatal("expected create to fail on missing book")
	}

	var orders, items, events int
	if err := store.DB().QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM orders),
		       (SELECT COUNT(*) FROM order_items),
		       (SELECT COUNT(*) FROM outbox_messages)
	`).Scan(&orders, &items, &events); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if orders != 0 || items != 0 || events != 0 {
		t.Fatalf("expected no partial writes, got orders=%d items=%d events=%d", orders, items, events)
	}
}

func TestOrderRepository_PostgresWritesOrderEvent(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	books := seedBooks(t, store, 1)
	repo := NewOrderRepository(store, WithOrderEvents())
	outbox := NewOutboxRepository(store)
	ctx := context.Background()

	created, err := repo.Create(ctx, sampleNewOrder(3, books[0]))
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	pending, err := outbox.PullPending(ctx, 10)
	if err != nil {
		t.Fatalf("pull pending: %v", err)
	}
	if len(pending) != 1 || pending[0].EventType != domain.EventTypeOrderCreated {
		t.Fatalf("unexpected outbox content: %+v", pending)
	}
	if pending[0].AggregateID == "" || created.ID <= 0 {
		t.Fatalf("unexpected aggregate id %q", pending[0].AggregateID)
	}
}
