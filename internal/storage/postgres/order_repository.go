package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
	"github.com/vladislavdragonenkov/bookstore/internal/storage/orderrows"
)

const (
	opTimeout = 5 * time.Second
)

const selectOrderRows = `
		SELECT o.id, o.user_id, o.total_amount, o.status, o.created_at,
		       oi.id, oi.book_id, oi.quantity, oi.price
		FROM %s o
		LEFT JOIN order_items oi ON oi.order_id = o.id
		ORDER BY o.created_at DESC, o.id DESC, oi.id ASC
`

type orderRepository struct {
	db         *sql.DB
	withEvents bool
}

// OrderOption настраивает PostgreSQL-репозиторий заказов.
type OrderOption func(*orderRepository)

// WithOrderEvents включает запись order.created в outbox_messages в той же транзакции.
func WithOrderEvents() OrderOption {
	return func(r *orderRepository) {
		r.withEvents = true
	}
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store, opts ...OrderOption) domain.OrderRepository {
	r := &orderRepository{db: store.DB()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create пишет заголовок и позиции в одной транзакции.
// Отмена ctx вызывающим не прерывает начатую запись: действует только opTimeout.
func (r *orderRepository) Create(ctx context.Context, in domain.NewOrder) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	order := domain.Order{
		UserID:      in.UserID,
		TotalAmount: in.TotalAmount,
		Status:      domain.OrderStatusPending,
		Items:       make([]domain.OrderItem, 0, len(in.Items)),
	}

	if err := tx.QueryRowContext(ctx, `
		INSERT INTO orders (user_id, total_amount, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, in.UserID, in.TotalAmount, string(domain.OrderStatusPending)).Scan(&order.ID, &order.CreatedAt); err != nil {
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO order_items (order_id, book_id, quantity, price)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`)
	if err != nil {
		return domain.Order{}, fmt.Errorf("prepare order item insert: %w", err)
	}
	defer stmt.Close()

	for _, item := range in.Items {
		stored := domain.OrderItem{
			OrderID:  order.ID,
			BookID:   item.BookID,
			Quantity: item.Quantity,
			Price:    item.Price,
		}
		if err := stmt.QueryRowContext(ctx, order.ID, item.BookID, item.Quantity, item.Price).Scan(&stored.ID); err != nil {
			return domain.Order{}, fmt.Errorf("insert order item (book %d): %w", item.BookID, err)
		}
		order.Items = append(order.Items, stored)
	}

	if r.withEvents {
		msg, err := domain.NewOrderCreatedMessage(order)
		if err != nil {
			return domain.Order{}, err
		}
		if err := insertOutboxMessage(ctx, tx, msg, time.Now().UTC()); err != nil {
			return domain.Order{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.Order{}, fmt.Errorf("commit create order: %w", err)
	}

	order.CreatedAt = order.CreatedAt.UTC()
	return order, nil
}

func (r *orderRepository) GetForUser(ctx context.Context, orderID, userID int64) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	source := `(SELECT * FROM orders WHERE id = $1 AND user_id = $2)`
	orders, err := r.queryOrders(ctx, fmt.Sprintf(selectOrderRows, source), orderID, userID)
	if err != nil {
		return domain.Order{}, err
	}
	if len(orders) == 0 {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return orders[0], nil
}

func (r *orderRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	source := `(SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC)`
	args := []any{userID}
	if limit > 0 {
		source = `(SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2)`
		args = append(args, limit)
	}

	return r.queryOrders(ctx, fmt.Sprintf(selectOrderRows, source), args...)
}

func (r *orderRepository) queryOrders(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	folder := orderrows.NewFolder()
	for rows.Next() {
		var row orderrows.Row
		if err := rows.Scan(
			&row.OrderID, &row.UserID, &row.TotalAmount, &row.Status, &row.CreatedAt,
			&row.ItemID, &row.BookID, &row.Quantity, &row.Price,
		); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		row.CreatedAt = row.CreatedAt.UTC()
		folder.Add(row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	return folder.Orders(), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.OrderRepository = (*orderRepository)(nil)
