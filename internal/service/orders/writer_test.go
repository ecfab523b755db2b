package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
	"github.com/vladislavdragonenkov/bookstore/internal/metrics"
	"github.com/vladislavdragonenkov/bookstore/internal/storage/memory"
)

var errBrokenStore = errors.New("connection reset by peer")

// failingOrderRepo имитирует хранилище, у которого откатилась транзакция.
type failingOrderRepo struct {
	createErr error
	readErr   error
	creates   int
}

func (r *failingOrderRepo) Create(context.Context, domain.NewOrder) (domain.Order, error) {
	r.creates++
	return domain.Order{}, r.createErr
}

func (r *failingOrderRepo) GetForUser(context.Context, int64, int64) (domain.Order, error) {
	return domain.Order{}, r.readErr
}

func (r *failingOrderRepo) ListByUser(context.Context, int64, int) ([]domain.Order, error) {
	return nil, r.readErr
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func cart(t *testing.T) domain.NewOrder {
	t.Helper()
	return domain.NewOrder{
		UserID: 7,
		Items: []domain.CartItem{
			{BookID: 1, Quantity: 2, Price: dec(t, "12.99")},
			{BookID: 3, Quantity: 1, Price: dec(t, "8.50")},
		},
		TotalAmount: dec(t, "34.48"),
	}
}

func TestWriter_CreateOrder_PersistsHeaderAndItems(t *testing.T) {
	t.Parallel()

	repo := memory.NewOrderRepository()
	writer := NewWriter(repo)

	order, err := writer.CreateOrder(context.Background(), cart(t))
	require.NoError(t, err)
	require.Positive(t, order.ID)
	require.Equal(t, domain.OrderStatusPending, order.Status)
	require.True(t, order.TotalAmount.Equal(dec(t, "34.48")))
	require.Len(t, order.Items, 2)
	for _, item := range order.Items {
		require.Equal(t, order.ID, item.OrderID)
	}

	stored, err := NewReader(repo).GetOrder(context.Background(), order.ID, 7)
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)
	require.Equal(t, int64(1), stored.Items[0].BookID)
	require.Equal(t, int64(3), stored.Items[1].BookID)
}

func TestWriter_CreateOrder_RejectsInvalidInputWithoutWriting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*domain.NewOrder)
		want   error
	}{
		{name: "empty cart", mutate: func(o *domain.NewOrder) { o.Items = nil }, want: domain.ErrItemsRequired},
		{name: "no user", mutate: func(o *domain.NewOrder) { o.UserID = 0 }, want: domain.ErrUserRequired},
		{name: "zero quantity", mutate: func(o *domain.NewOrder) { o.Items[0].Quantity = 0 }, want: domain.ErrItemQtyInvalid},
		{name: "negative price", mutate: func(o *domain.NewOrder) { o.Items[1].Price = decimal.NewFromInt(-1) }, want: domain.ErrItemPriceInvalid},
		{name: "negative total", mutate: func(o *domain.NewOrder) { o.TotalAmount = decimal.NewFromInt(-5) }, want: domain.ErrAmountNegative},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := &failingOrderRepo{}
			in := cart(t)
			tt.mutate(&in)

			_, err := NewWriter(repo).CreateOrder(context.Background(), in)
			require.ErrorIs(t, err, domain.ErrInvalidInput)
			require.ErrorIs(t, err, tt.want)
			require.Zero(t, repo.creates)
		})
	}
}

func TestWriter_CreateOrder_StoreFailureIsCategorised(t *testing.T) {
	t.Parallel()

	repo := &failingOrderRepo{createErr: errBrokenStore}
	_, err := NewWriter(repo).CreateOrder(context.Background(), cart(t))

	require.ErrorIs(t, err, domain.ErrOrderCreationFailed)
	require.ErrorIs(t, err, domain.ErrStoreFailure)
	require.ErrorIs(t, err, errBrokenStore)
	require.NotErrorIs(t, err, domain.ErrInvalidInput)
}

func TestWriter_CreateOrder_TrustPolicyKeepsClientTotal(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m := metrics.NewOrderMetricsWithRegisterer(registry)
	writer := NewWriter(memory.NewOrderRepository(), WithMetrics(m))

	in := cart(t)
	in.TotalAmount = dec(t, "1.00")

	order, err := writer.CreateOrder(context.Background(), in)
	require.NoError(t, err)
	require.True(t, order.TotalAmount.Equal(dec(t, "1.00")))

	count, err := testutil.GatherAndCount(registry, "bookstore_order_total_mismatch_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestWriter_CreateOrder_VerifyPolicyRejectsMismatch(t *testing.T) {
	t.Parallel()

	repo := &failingOrderRepo{}
	writer := NewWriter(repo, WithTotalPolicy(TotalPolicyVerify))

	in := cart(t)
	in.TotalAmount = dec(t, "34.47")

	_, err := writer.CreateOrder(context.Background(), in)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	require.ErrorIs(t, err, domain.ErrTotalMismatch)
	require.Zero(t, repo.creates)
}

func TestWriter_CreateOrder_VerifyPolicyAcceptsExactTotal(t *testing.T) {
	t.Parallel()

	writer := NewWriter(memory.NewOrderRepository(), WithTotalPolicy(TotalPolicyVerify))
	_, err := writer.CreateOrder(context.Background(), cart(t))
	require.NoError(t, err)
}

func TestWriter_CreateOrder_RecordsOperationMetrics(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m := metrics.NewOrderMetricsWithRegisterer(registry)

	_, err := NewWriter(memory.NewOrderRepository(), WithMetrics(m)).CreateOrder(context.Background(), cart(t))
	require.NoError(t, err)
	_, err = NewWriter(&failingOrderRepo{createErr: errBrokenStore}, WithMetrics(m)).CreateOrder(context.Background(), cart(t))
	require.Error(t, err)

	count, err := testutil.GatherAndCount(registry, "bookstore_order_operations_total")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestWriter_CreateOrder_EmitsOrderCreatedEvent(t *testing.T) {
	t.Parallel()

	outbox := memory.NewOutboxRepository()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	repo := memory.NewOrderRepository(
		memory.WithOrderEvents(outbox),
		memory.WithClock(func() time.Time { return now }),
	)

	order, err := NewWriter(repo).CreateOrder(context.Background(), cart(t))
	require.NoError(t, err)
	require.Equal(t, now, order.CreatedAt)

	pending, err := outbox.PullPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, domain.EventTypeOrderCreated, pending[0].EventType)
}

func TestParseTotalPolicy(t *testing.T) {
	t.Parallel()

	for raw, want := range map[string]TotalPolicy{
		"":         TotalPolicyTrust,
		"trust":    TotalPolicyTrust,
		" Verify ": TotalPolicyVerify,
	} {
		got, err := ParseTotalPolicy(raw)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err := ParseTotalPolicy("recompute")
	require.Error(t, err)
}

// brokenBookRepo отвечает ошибкой хранилища на любой запрос книги.
type brokenBookRepo struct {
	domain.BookRepository
}

func (brokenBookRepo) Get(context.Context, int64) (domain.Book, error) {
	return domain.Book{}, errBrokenStore
}

func TestWriter_CreateOrder_UnknownBookRejected(t *testing.T) {
	t.Parallel()

	books := memory.NewBookRepository(
		domain.Book{Title: "Dune", Author: "Frank Herbert", Price: dec(t, "12.99")},
		domain.Book{Title: "Solaris", Author: "Stanislaw Lem", Price: dec(t, "9.00")},
		domain.Book{Title: "Hyperion", Author: "Dan Simmons", Price: dec(t, "8.50")},
	)
	repo := &failingOrderRepo{}
	writer := NewWriter(repo, WithBookCatalog(books))

	in := cart(t)
	in.Items[1].BookID = 99

	_, err := writer.CreateOrder(context.Background(), in)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	require.ErrorIs(t, err, domain.ErrItemBookUnknown)
	require.Equal(t, []string{"item book not found in catalog: 99"}, domain.Reasons(err))
	require.Zero(t, repo.creates)

	_, err = NewWriter(memory.NewOrderRepository(), WithBookCatalog(books)).CreateOrder(context.Background(), cart(t))
	require.NoError(t, err)
}

func TestWriter_CreateOrder_BookLookupFailure(t *testing.T) {
	t.Parallel()

	repo := &failingOrderRepo{}
	_, err := NewWriter(repo, WithBookCatalog(brokenBookRepo{})).CreateOrder(context.Background(), cart(t))
	require.ErrorIs(t, err, domain.ErrOrderCreationFailed)
	require.NotErrorIs(t, err, domain.ErrInvalidInput)
	require.Zero(t, repo.creates)
}
