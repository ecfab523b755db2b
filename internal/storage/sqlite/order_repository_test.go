package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

var decimalComparer = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func cart(userID int64, items ...domain.CartItem) domain.NewOrder {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt32(item.Quantity)))
	}
	return domain.NewOrder{UserID: userID, Items: items, TotalAmount: total}
}

func TestOrderRepository_CreateThenGetRoundTrip(t *testing.T) {
	store := openTestStore(t)
	books := seedBooks(t, store, 2)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	in := cart(7,
		domain.CartItem{BookID: books[0], Quantity: 2, Price: decimal.RequireFromString("9.99")},
		domain.CartItem{BookID: books[1], Quantity: 1, Price: decimal.RequireFromString("0")},
	)

	created, err := repo.Create(ctx, in)
	require.NoError(t, err)
	require.Positive(t, created.ID)

	got, err := repo.GetForUser(ctx, created.ID, 7)
	require.NoError(t, err)

	if diff := cmp.Diff(created, got, decimalComparer); diff != "" {
		t.Fatalf("round trip mismatch (-created +got):\n%s", diff)
	}
	require.Equal(t, domain.OrderStatusPending, got.Status)
	require.Equal(t, books[0], got.Items[0].BookID)
	require.Equal(t, books[1], got.Items[1].BookID)
}

func TestOrderRepository_CreateIsAtomic(t *testing.T) {
	store := openTestStore(t)
	books := seedBooks(t, store, 2)
	repo := NewOrderRepository(store, WithOrderEvents())
	ctx := context.Background()

	// Последняя позиция ссылается на несуществующую книгу.
	in := cart(1,
		domain.CartItem{BookID: books[0], Quantity: 1, Price: decimal.RequireFromString("1.00")},
		domain.CartItem{BookID: books[1], Quantity: 1, Price: decimal.RequireFromString("1.00")},
		domain.CartItem{BookID: books[1] + 100, Quantity: 1, Price: decimal.RequireFromString("1.00")},
	)
	_, err := repo.Create(ctx, in)
	require.Error(t, err)

	var orders, items, events int
	require.NoError(t, store.DB().QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM orders), (SELECT COUNT(*) FROM order_items), (SELECT COUNT(*) FROM outbox_messages)
	`).Scan(&orders, &items, &events))
	require.Zero(t, orders)
	require.Zero(t, items)
	require.Zero(t, events)

	listed, err := repo.ListByUser(ctx, 1, 0)
	require.NoError(t, err)
	require.Empty(t, listed)
}

func TestOrderRepository_CreateSurvivesCallerCancel(t *testing.T) {
	store := openTestStore(t)
	books := seedBooks(t, store, 1)
	repo := NewOrderRepository(store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	created, err := repo.Create(ctx, cart(2, domain.CartItem{BookID: books[0], Quantity: 1, Price: decimal.RequireFromString("3.00")}))
	require.NoError(t, err)

	got, err := repo.GetForUser(context.Background(), created.ID, 2)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
}

func TestOrderRepository_ListByUserOrderingAndIsolation(t *testing.T) {
	store := openTestStore(t)
	books := seedBooks(t, store, 2)
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := base
	repo := NewOrderRepository(store, WithClock(func() time.Time { return clock }))
	ctx := context.Background()

	item := domain.CartItem{BookID: books[0], Quantity: 1, Price: decimal.RequireFromString("2.50")}

	older, err := repo.Create(ctx, cart(1, item))
	require.NoError(t, err)
	clock = base.Add(time.Hour)
	newer, err := repo.Create(ctx, cart(1, item, domain.CartItem{BookID: books[1], Quantity: 3, Price: decimal.RequireFromString("1.00")}))
	require.NoError(t, err)
	// Тот же момент времени: порядок определяется ID.
	sameTime, err := repo.Create(ctx, cart(1, item))
	require.NoError(t, err)
	_, err = repo.Create(ctx, cart(2, item))
	require.NoError(t, err)

	orders, err := repo.ListByUser(ctx, 1, 0)
	require.NoError(t, err)

	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		require.Equal(t, int64(1), o.UserID)
		ids = append(ids, o.ID)
	}
	require.Equal(t, []int64{sameTime.ID, newer.ID, older.ID}, ids)
	require.Len(t, orders[1].Items, 2)
	require.True(t, orders[1].CreatedAt.Equal(base.Add(time.Hour)))

	limited, err := repo.ListByUser(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	require.Equal(t, sameTime.ID, limited[0].ID)

	none, err := repo.ListByUser(ctx, 99, 0)
	require.NoError(t, err)
	require.NotNil(t, none)
	require.Empty(t, none)
}

func TestOrderRepository_GetForUserOwnership(t *testing.T) {
	store := openTestStore(t)
	books := seedBooks(t, store, 1)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	created, err := repo.Create(ctx, cart(1, domain.CartItem{BookID: books[0], Quantity: 1, Price: decimal.RequireFromString("5")}))
	require.NoError(t, err)

	_, err = repo.GetForUser(ctx, created.ID, 2)
	require.ErrorIs(t, err, domain.ErrOrderNotFound)

	_, err = repo.GetForUser(ctx, created.ID+1, 1)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOrderRepository_OrderWithoutItemsHasEmptyList(t *testing.T) {
	store := openTestStore(t)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	// Заголовок без позиций может появиться только в обход Create.
	_, err := store.DB().ExecContext(ctx, `
		INSERT INTO orders (user_id, total_amount, status, created_at) VALUES (5, '0', 'pending', ?)
	`, formatTime(time.Now()))
	require.NoError(t, err)

	orders, err := repo.ListByUser(ctx, 5, 0)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	if diff := cmp.Diff([]domain.OrderItem{}, orders[0].Items, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("unexpected items (-want +got):\n%s", diff)
	}
	require.NotNil(t, orders[0].Items)
}

func TestOrderRepository_WritesOrderEvent(t *testing.T) {
	store := openTestStore(t)
	books := seedBooks(t, store, 1)
	repo := NewOrderRepository(store, WithOrderEvents())
	outbox := NewOutboxRepository(store)
	ctx := context.Background()

	_, err := repo.Create(ctx, cart(3, domain.CartItem{BookID: books[0], Quantity: 1, Price: decimal.RequireFromString("4.20")}))
	require.NoError(t, err)

	stats, err := outbox.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.PendingCount)

	pending, err := outbox.PullPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, domain.EventTypeOrderCreated, pending[0].EventType)

	require.NoError(t, outbox.MarkSent(ctx, pending[0].ID))
	require.ErrorIs(t, outbox.MarkFailed(ctx, "missing"), domain.ErrOutboxPublish)
}
