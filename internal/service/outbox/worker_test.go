package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
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

func orderCreated(t *testing.T, orderID int64) domain.OutboxMessage {
	t.Helper()
	msg, err := domain.NewOrderCreatedMessage(domain.Order{
		ID:          orderID,
		UserID:      7,
		TotalAmount: decimal.RequireFromString("9.99"),
		Status:      domain.OrderStatusPending,
		Items:       []domain.OrderItem{{ID: 1, OrderID: orderID, BookID: 3, Quantity: 1, Price: decimal.RequireFromString("9.99")}},
		CreatedAt:   time.Now().UTC(),
	})
	require.NoError(t, err)
	return msg
}

func TestWorker_ProcessOnce_MarkSent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := memory.NewOutboxRepository()
	_, err := repo.Enqueue(ctx, orderCreated(t, 1))
	require.NoError(t, err)
	publisher := &stubPublisher{}

	worker := NewWorker(repo, publisher, WithRetryBaseDelay(0), WithMaxAttempts(3))

	require.Equal(t, 1, worker.ProcessOnce(ctx))
	require.Equal(t, 1, publisher.calls())
	require.Empty(t, repo.AllPending())

	// Отправленное событие повторно не публикуется.
	require.Zero(t, worker.ProcessOnce(ctx))
	require.Equal(t, 1, publisher.calls())
}

func TestWorker_ProcessOnce_MarkFailedAndDLQAfterRetries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := &stubOutboxRepo{pending: []domain.OutboxMessage{orderCreated(t, 2)}}
	publisher := &stubPublisher{err: errors.New("broker unavailable")}
	dlqPublisher := &stubPublisher{}

	worker := NewWorker(repo, publisher,
		WithDLQPublisher(dlqPublisher),
		WithRetryBaseDelay(0),
		WithMaxAttempts(3),
	)

	require.Zero(t, worker.ProcessOnce(ctx))
	require.Equal(t, 3, publisher.calls())
	require.Empty(t, repo.sentIDs)
	require.Equal(t, []string{repo.pending[0].ID}, repo.failedIDs)
	require.Equal(t, 1, dlqPublisher.calls())

	var letter DeadLetter
	require.NoError(t, json.Unmarshal(dlqPublisher.last().Payload, &letter))
	require.Equal(t, repo.pending[0].ID, letter.OutboxID)
	require.Equal(t, domain.EventTypeOrderCreated, letter.EventType)
	require.Equal(t, "broker unavailable", letter.PublishError)
	require.JSONEq(t, string(repo.pending[0].Payload), string(letter.Payload))
}

func TestWorker_ProcessOnce_SuccessAfterRetry(t *testing.T) {
	t.Parallel()

	repo := &stubOutboxRepo{pending: []domain.OutboxMessage{orderCreated(t, 3)}}
	publisher := &stubPublisher{
		sequenceErrors: []error{errors.New("attempt 1"), errors.New("attempt 2"), nil},
	}

	worker := NewWorker(repo, publisher, WithRetryBaseDelay(0), WithMaxAttempts(3))

	require.Equal(t, 1, worker.ProcessOnce(context.Background()))
	require.Equal(t, 3, publisher.calls())
	require.Len(t, repo.sentIDs, 1)
	require.Empty(t, repo.failedIDs)
}

func TestWorker_ProcessOnce_UpdatesBacklogMetrics(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m := metrics.NewOutboxMetrics(registry)
	repo := &stubOutboxRepo{pending: []domain.OutboxMessage{orderCreated(t, 4)}}

	worker := NewWorker(repo, &stubPublisher{}, WithMetrics(m), WithRetryBaseDelay(0))
	worker.ProcessOnce(context.Background())

	count, err := testutil.GatherAndCount(registry, "bookstore_outbox_publish_attempts_total", "bookstore_outbox_pending_records")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestWorker_RetryBackoff(t *testing.T) {
	t.Parallel()

	w := NewWorker(nil, nil, WithRetryBaseDelay(10*time.Millisecond))
	require.Equal(t, 10*time.Millisecond, w.retryBackoff(1))
	require.Equal(t, 20*time.Millisecond, w.retryBackoff(2))
	require.Equal(t, 40*time.Millisecond, w.retryBackoff(3))

	w = NewWorker(nil, nil, WithRetryBaseDelay(time.Duration(1<<62)))
	require.Equal(t, time.Duration(1<<63-1), w.retryBackoff(5))
}

func TestWorker_Run_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	worker := NewWorker(&stubOutboxRepo{}, &stubPublisher{},
		WithPollInterval(5*time.Millisecond),
		WithRetryBaseDelay(0),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	time.Sleep(15 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancel")
	}
}

type stubOutboxRepo struct {
	pending   []domain.OutboxMessage
	sentIDs   []string
	failedIDs []string
}

func (s *stubOutboxRepo) Enqueue(_ context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	s.pending = append(s.pending, msg)
	return msg, nil
}

func (s *stubOutboxRepo) PullPending(_ context.Context, limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 || limit >= len(s.pending) {
		return append([]domain.OutboxMessage(nil), s.pending...), nil
	}
	return append([]domain.OutboxMessage(nil), s.pending[:limit]...), nil
}

func (s *stubOutboxRepo) Stats(context.Context) (domain.OutboxStats, error) {
	stats := domain.OutboxStats{PendingCount: len(s.pending)}
	if len(s.pending) > 0 {
		stats.OldestPendingAt = time.Now().UTC().Add(-time.Second)
	}
	return stats, nil
}

func (s *stubOutboxRepo) MarkSent(_ context.Context, id string) error {
	s.sentIDs = append(s.sentIDs, id)
	return nil
}

func (s *stubOutboxRepo) MarkFailed(_ context.Context, id string) error {
	s.failedIDs = append(s.failedIDs, id)
	return nil
}

type stubPublisher struct {
	mu             sync.Mutex
	err            error
	sequenceErrors []error
	published      []domain.OutboxMessage
}

func (s *stubPublisher) Publish(_ context.Context, event domain.OutboxMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.published = append(s.published, event)
	if len(s.sequenceErrors) > 0 {
		err := s.sequenceErrors[0]
		s.sequenceErrors = s.sequenceErrors[1:]
		return err
	}
	return s.err
}

func (s *stubPublisher) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.published)
}

func (s *stubPublisher) last() domain.OutboxMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.published[len(s.published)-1]
}

var (
	_ domain.OutboxRepository = (*stubOutboxRepo)(nil)
	_ domain.OutboxPublisher  = (*stubPublisher)(nil)
)
