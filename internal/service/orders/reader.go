package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
	"github.com/vladislavdragonenkov/bookstore/internal/metrics"
)

// Reader отдаёт заказы только их владельцу.
type Reader struct {
	repo    domain.OrderRepository
	logger  *log.Entry
	metrics *metrics.OrderMetrics
}

// NewReader создаёт Reader поверх репозитория заказов.
func NewReader(repo domain.OrderRepository, options ...Option) *Reader {
	opts := buildOptions("order-reader", options)
	return &Reader{
		repo:    repo,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}
}

// ListOrdersForUser возвращает заказы пользователя от новых к старым. Нет заказов: пустой срез.
func (r *Reader) ListOrdersForUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	started := time.Now()

	if userID <= 0 {
		r.metrics.RecordOperation("list", metrics.ResultInvalidInput, time.Since(started))
		return nil, domain.InvalidInput(domain.ErrUserRequired)
	}

	orders, err := r.repo.ListByUser(ctx, userID, 0)
	if err != nil {
		r.logger.WithError(err).WithField("user_id", userID).Error("list orders failed")
		r.metrics.RecordOperation("list", metrics.ResultStoreFailure, time.Since(started))
		return nil, fmt.Errorf("%w: list orders: %w", domain.ErrStoreFailure, err)
	}
	if orders == nil {
		orders = []domain.Order{}
	}

	r.metrics.RecordOperation("list", metrics.ResultOK, time.Since(started))
	return orders, nil
}

// GetOrder возвращает заказ владельца. Чужой и несуществующий заказ неразличимы: ErrOrderNotFound.
func (r *Reader) GetOrder(ctx context.Context, orderID, userID int64) (domain.Order, error) {
	started := time.Now()

	if orderID <= 0 || userID <= 0 {
		r.metrics.RecordOperation("get", metrics.ResultNotFound, time.Since(started))
		return domain.Order{}, domain.ErrOrderNotFound
	}

	order, err := r.repo.GetForUser(ctx, orderID, userID)
	switch {
	case err == nil:
		r.metrics.RecordOperation("get", metrics.ResultOK, time.Since(started))
		return order, nil
	case errors.Is(err, domain.ErrNotFound):
		r.metrics.RecordOperation("get", metrics.ResultNotFound, time.Since(started))
		return domain.Order{}, domain.ErrOrderNotFound
	default:
		r.logger.WithError(err).WithFields(log.Fields{
			"order_id": orderID,
			"user_id":  userID,
		}).Error("get order failed")
		r.metrics.RecordOperation("get", metrics.ResultStoreFailure, time.Since(started))
		return domain.Order{}, fmt.Errorf("%w: get order: %w", domain.ErrStoreFailure, err)
	}
}
