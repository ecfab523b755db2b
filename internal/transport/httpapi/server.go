// Package httpapi — JSON HTTP API магазина: аккаунты, каталог и заказы под /api.
package httpapi

import (
	"context"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bookstore/internal/auth"
	"github.com/vladislavdragonenkov/bookstore/internal/domain"
	"github.com/vladislavdragonenkov/bookstore/internal/metrics"
	"github.com/vladislavdragonenkov/bookstore/internal/service/accounts"
	"github.com/vladislavdragonenkov/bookstore/internal/service/idempotency"
)

// IdempotencyKeyHeader — заголовок с клиентским ключом идемпотентности.
const IdempotencyKeyHeader = "Idempotency-Key"

// Authenticator проверяет токен доступа.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (auth.Identity, error)
}

// OrderWriter создаёт заказы.
type OrderWriter interface {
	CreateOrder(ctx context.Context, in domain.NewOrder) (domain.Order, error)
}

// OrderReader читает заказы владельца.
type OrderReader interface {
	ListOrdersForUser(ctx context.Context, userID int64) ([]domain.Order, error)
	GetOrder(ctx context.Context, orderID, userID int64) (domain.Order, error)
}

// Accounts регистрирует и аутентифицирует пользователей.
type Accounts interface {
	Register(ctx context.Context, username, email, password string) (string, error)
	Login(ctx context.Context, email, password string) (accounts.Session, error)
}

// Catalog — операции над каталогом книг.
type Catalog interface {
	List(ctx context.Context, filter domain.BookFilter) ([]domain.Book, error)
	Get(ctx context.Context, id int64) (domain.Book, error)
	Create(ctx context.Context, book domain.Book) (domain.Book, error)
	Update(ctx context.Context, book domain.Book) error
	Delete(ctx context.Context, id int64) error
}

// Dependencies — всё, что нужно обработчикам. Idempotency и Metrics опциональны.
type Dependencies struct {
	Auth        Authenticator
	Users       domain.UserRepository
	Accounts    Accounts
	Catalog     Catalog
	Writer      OrderWriter
	Reader      OrderReader
	Idempotency *idempotency.Guard
	Metrics     *metrics.OrderMetrics
	Logger      *log.Entry
}

type server struct {
	Dependencies
}

// NewHandler собирает маршруты API и общие middleware.
func NewHandler(deps Dependencies) http.Handler {
	if deps.Logger == nil {
		deps.Logger = log.WithField("component", "http")
	}
	s := &server{Dependencies: deps}

	mux := http.NewServeMux()

	s.route(mux, "POST /api/auth/register", s.register)
	s.route(mux, "POST /api/auth/login", s.login)

	s.route(mux, "GET /api/books", s.listBooks)
	s.route(mux, "GET /api/books/{id}", s.getBook)
	s.route(mux, "POST /api/books", s.requireAdmin(s.createBook))
	s.route(mux, "PUT /api/books/{id}", s.requireAdmin(s.updateBook))
	s.route(mux, "DELETE /api/books/{id}", s.requireAdmin(s.deleteBook))

	s.route(mux, "POST /api/orders", s.requireUser(s.idempotent(s.createOrder)))
	s.route(mux, "GET /api/orders/my-orders", s.requireUser(s.listMyOrders))
	s.route(mux, "GET /api/orders/{id}", s.requireUser(s.getOrder))

	return chain(mux, s.recoverPanics, s.accessLog, withRequestID, cors)
}

// route регистрирует обработчик с метриками, помеченными шаблоном маршрута.
func (s *server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.Handle(pattern, s.instrument(pattern, h))
}
