// Package orders содержит создание заказов и чтение истории заказов пользователя.
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

// Writer создаёт заказ вместе со всеми позициями одной атомарной операцией.
type Writer struct {
	repo    domain.OrderRepository
	logger  *log.Entry
	metrics *metrics.OrderMetrics
	policy  TotalPolicy
	books   domain.BookRepository
}

// NewWriter создаёт Writer поверх репозитория заказов.
func NewWriter(repo domain.OrderRepository, options ...Option) *Writer {
	opts := buildOptions("order-writer", options)
	return &Writer{
		repo:    repo,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		policy:  opts.TotalPolicy,
		books:   opts.Books,
	}
}

// CreateOrder валидирует корзину и сохраняет заказ.
// Ошибки: ErrInvalidInput (ничего не записано) или ErrOrderCreationFailed (транзакция откатена).
func (w *Writer) CreateOrder(ctx context.Context, in domain.NewOrder) (domain.Order, error) {
	started := time.Now()

	if errs := in.ValidateInvariants(); len(errs) > 0 {
		w.metrics.RecordOperation("create", metrics.ResultInvalidInput, time.Since(started))
		return domain.Order{}, domain.InvalidInput(errs...)
	}

	if !in.TotalMatchesItems() {
		w.metrics.RecordTotalMismatch()
		logger := w.logger.WithFields(log.Fields{
			"user_id":     in.UserID,
			"total":       in.TotalAmount.String(),
			"items_total": in.ItemsTotal().String(),
		})
		if w.policy == TotalPolicyVerify {
			logger.Info("order rejected: total does not match items")
			w.metrics.RecordOperation("create", metrics.ResultInvalidInput, time.Since(started))
			return domain.Order{}, domain.InvalidInput(domain.ErrTotalMismatch)
		}
		logger.Warn("order total does not match items, persisting client total as-is")
	}

	if err := w.checkBooks(ctx, in.Items); err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			w.metrics.RecordOperation("create", metrics.ResultInvalidInput, time.Since(started))
			return domain.Order{}, err
		}
		w.logger.WithError(err).WithField("user_id", in.UserID).Error("book lookup failed")
		w.metrics.RecordOperation("create", metrics.ResultStoreFailure, time.Since(started))
		return domain.Order{}, fmt.Errorf("%w: %w", domain.ErrOrderCreationFailed, err)
	}

	order, err := w.repo.Create(ctx, in)
	if err != nil {
		w.logger.WithError(err).WithField("user_id", in.UserID).Error("order creation failed")
		w.metrics.RecordOperation("create", metrics.ResultStoreFailure, time.Since(started))
		if errors.Is(err, domain.ErrStoreFailure) {
			return domain.Order{}, err
		}
		return domain.Order{}, fmt.Errorf("%w: %w", domain.ErrOrderCreationFailed, err)
	}

	w.metrics.RecordOperation("create", metrics.ResultOK, time.Since(started))
	w.metrics.RecordItems(len(order.Items))
	w.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"user_id":  order.UserID,
		"items":    len(order.Items),
	}).Info("order created")

	return order, nil
}

// checkBooks отклоняет корзину со ссылкой на отсутствующую книгу.
func (w *Writer) checkBooks(ctx context.Context, items []domain.CartItem) error {
	if w.books == nil {
		return nil
	}
	seen := make(map[int64]struct{}, len(items))
	for _, item := range items {
		if _, ok := seen[item.BookID]; ok {
			continue
		}
		seen[item.BookID] = struct{}{}

		_, err := w.books.Get(ctx, item.BookID)
		switch {
		case errors.Is(err, domain.ErrBookNotFound):
			return domain.InvalidInput(fmt.Errorf("%w: %d", domain.ErrItemBookUnknown, item.BookID))
		case err != nil:
			return err
		}
	}
	return nil
}
