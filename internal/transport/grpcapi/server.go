// Package grpcapi — gRPC-транспорт заказов: bookstore.v1.OrderService поверх JSON-кодека.
package grpcapi

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/bookstore/internal/auth"
	"github.com/vladislavdragonenkov/bookstore/internal/domain"
	"github.com/vladislavdragonenkov/bookstore/internal/metrics"
	"github.com/vladislavdragonenkov/bookstore/internal/service/idempotency"
)

// Ключи metadata.
const (
	AuthorizationMetadata  = "authorization"
	IdempotencyKeyMetadata = "idempotency-key"
)

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

// Dependencies — зависимости OrderService. Idempotency и Metrics опциональны.
type Dependencies struct {
	Auth        Authenticator
	Writer      OrderWriter
	Reader      OrderReader
	Idempotency *idempotency.Guard
	Metrics     *metrics.OrderMetrics
	Logger      *log.Entry
}

// OrderService реализует OrderServiceServer поверх сервисов заказов.
type OrderService struct {
	deps   Dependencies
	logger *log.Entry
}

// NewOrderService конструирует сервис с зависимостями.
func NewOrderService(deps Dependencies) *OrderService {
	logger := deps.Logger
	if logger == nil {
		logger = log.WithField("component", "grpc")
	}
	return &OrderService{deps: deps, logger: logger}
}

// CreateOrder оформляет заказ; повтор с тем же idempotency-key возвращает сохранённый результат.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	id, ok := auth.IdentityFrom(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "Access denied")
	}
	return withIdempotency(ctx, s, id.UserID, MethodCreateOrder, req, func(ctx context.Context) (*CreateOrderResponse, error) {
		order, err := s.deps.Writer.CreateOrder(ctx, req.toDomain(id.UserID))
		if err != nil {
			return nil, s.toStatus(err, "Order not found", "Error creating order")
		}
		return &CreateOrderResponse{OrderID: order.ID}, nil
	})
}

// ListMyOrders возвращает заказы владельца токена.
func (s *OrderService) ListMyOrders(ctx context.Context, _ *ListMyOrdersRequest) (*ListMyOrdersResponse, error) {
	id, ok := auth.IdentityFrom(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "Access denied")
	}

	orders, err := s.deps.Reader.ListOrdersForUser(ctx, id.UserID)
	if err != nil {
		return nil, s.toStatus(err, "Order not found", "Error fetching orders")
	}

	resp := &ListMyOrdersResponse{Orders: make([]Order, 0, len(orders))}
	for _, o := range orders {
		resp.Orders = append(resp.Orders, toOrder(o))
	}
	return resp, nil
}

// GetOrder возвращает заказ; чужой и несуществующий заказ неразличимы.
func (s *OrderService) GetOrder(ctx context.Context, req *GetOrderRequest) (*GetOrderResponse, error) {
	id, ok := auth.IdentityFrom(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "Access denied")
	}

	order, err := s.deps.Reader.GetOrder(ctx, req.OrderID, id.UserID)
	if err != nil {
		return nil, s.toStatus(err, "Order not found", "Error fetching order")
	}
	return &GetOrderResponse{Order: toOrder(order)}, nil
}

// toStatus переводит ошибку сервиса в gRPC-статус. Текст ошибок хранилища наружу не уходит.
func (s *OrderService) toStatus(err error, notFound, fallback string) error {
	switch {
	case errors.Is(err, auth.ErrMissingCredentials):
		return status.Error(codes.Unauthenticated, "Access denied")
	case errors.Is(err, domain.ErrUnauthenticated):
		return status.Error(codes.Unauthenticated, "Invalid token")
	case errors.Is(err, domain.ErrForbidden):
		return status.Error(codes.PermissionDenied, "Access denied")
	case errors.Is(err, domain.ErrInvalidInput):
		return invalidArgument(domain.Reasons(err))
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, notFound)
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return status.Error(codes.AlreadyExists, "idempotency key is already used with different request payload")
	case errors.Is(err, idempotency.ErrRequestInProgress):
		return status.Error(codes.Aborted, "request with the same idempotency key is already processing")
	case errors.Is(err, idempotency.ErrKeyTooLong):
		return status.Error(codes.InvalidArgument, "idempotency key is too long")
	default:
		s.logger.WithError(err).Error(fallback)
		return status.Error(codes.Internal, fallback)
	}
}

// invalidArgument возвращает InvalidArgument с замечаниями в деталях errdetails.BadRequest.
func invalidArgument(reasons []string) error {
	if len(reasons) == 0 {
		return status.Error(codes.InvalidArgument, "Invalid request")
	}
	st := status.New(codes.InvalidArgument, strings.Join(reasons, "; "))
	violations := make([]*errdetails.BadRequest_FieldViolation, 0, len(reasons))
	for _, reason := range reasons {
		violations = append(violations, &errdetails.BadRequest_FieldViolation{Field: "items", Description: reason})
	}
	detailed, err := st.WithDetails(&errdetails.BadRequest{FieldViolations: violations})
	if err != nil {
		return st.Err()
	}
	return detailed.Err()
}

type failurePayload struct {
	Code    uint32 `json:"code"`
	Message string `json:"message"`
}

// withIdempotency выполняет handler не более одного раза на ключ из metadata.
// Без ключа или без Guard вызов проходит как есть.
func withIdempotency[T any](
	ctx context.Context,
	s *OrderService,
	userID int64,
	method string,
	req any,
	handler func(context.Context) (*T, error),
) (*T, error) {
	rawKey := metadataValue(ctx, IdempotencyKeyMetadata)
	if s.deps.Idempotency == nil || rawKey == "" {
		return handler(ctx)
	}

	// Ключи gRPC и HTTP живут в разных пространствах: форматы сохранённых ответов различаются.
	key, err := idempotency.ScopedKey(userID, "grpc:"+rawKey)
	if err != nil {
		return nil, s.toStatus(err, "", "Invalid idempotency key")
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to initialize idempotency request")
	}
	hash := idempotency.RequestHash([]byte(strconv.FormatInt(userID, 10)), []byte(method), body)

	outcome, err := s.deps.Idempotency.Begin(ctx, key, hash)
	if err != nil {
		return nil, s.toStatus(err, "", "failed to initialize idempotency request")
	}
	if outcome.Replay {
		s.deps.Metrics.RecordIdempotentReplay()
		return replay[T](outcome)
	}

	defer func() {
		if p := recover(); p != nil {
			payload, _ := json.Marshal(failurePayload{Code: uint32(codes.Internal), Message: panicMessage})
			s.deps.Idempotency.Fail(ctx, key, int(codes.Internal), payload)
			panic(p)
		}
	}()

	resp, runErr := handler(ctx)
	if runErr != nil {
		st := status.Convert(runErr)
		payload, _ := json.Marshal(failurePayload{Code: uint32(st.Code()), Message: st.Message()})
		s.deps.Idempotency.Fail(ctx, key, int(st.Code()), payload)
		return nil, runErr
	}

	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to encode idempotent response")
	}
	s.deps.Idempotency.Done(ctx, key, int(codes.OK), data)
	return resp, nil
}

func replay[T any](outcome idempotency.Outcome) (*T, error) {
	if outcome.Failed {
		var payload failurePayload
		if err := json.Unmarshal(outcome.Body, &payload); err != nil || payload.Code == uint32(codes.OK) || payload.Code > uint32(codes.Unauthenticated) {
			return nil, status.Error(codes.Internal, "previous request with the same idempotency key failed")
		}
		return nil, status.Error(codes.Code(payload.Code), payload.Message)
	}

	resp := new(T)
	if err := json.Unmarshal(outcome.Body, resp); err != nil {
		return nil, status.Error(codes.Internal, "failed to decode cached idempotency response")
	}
	return resp, nil
}

func metadataValue(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(key)
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}
