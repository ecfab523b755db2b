package domain

import (
	"context"
	"time"
)

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create атомарно сохраняет заголовок заказа и все его позиции.
	// Возвращает заказ с присвоенными хранилищем ID, статусом и временем создания.
	// При любой ошибке в хранилище не остаётся ни одной строки этого заказа.
	Create(ctx context.Context, order NewOrder) (Order, error)
	// GetForUser возвращает заказ с позициями, если он принадлежит userID,
	// иначе ErrOrderNotFound.
	GetForUser(ctx context.Context, orderID, userID int64) (Order, error)
	// ListByUser возвращает заказы пользователя от новых к старым; limit <= 0: без ограничения.
	ListByUser(ctx context.Context, userID int64, limit int) ([]Order, error)
}

// BookRepository описывает хранилище каталога.
type BookRepository interface {
	List(ctx context.Context, filter BookFilter) ([]Book, error)
	// Get возвращает книгу или ErrBookNotFound.
	Get(ctx context.Context, id int64) (Book, error)
	Create(ctx context.Context, book Book) (Book, error)
	// Update перезаписывает книгу; ErrBookNotFound, если её нет.
	Update(ctx context.Context, book Book) error
	// Delete удаляет книгу; ErrBookNotFound, если её нет.
	Delete(ctx context.Context, id int64) error
}

// UserRepository описывает хранилище пользователей.
type UserRepository interface {
	// Create сохраняет пользователя; ErrUserExists при конфликте username/email.
	Create(ctx context.Context, user User) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByID(ctx context.Context, id int64) (User, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(ctx context.Context, event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(ctx context.Context, key string) (IdempotencyRecord, error)
	MarkDone(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	MarkFailed(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
