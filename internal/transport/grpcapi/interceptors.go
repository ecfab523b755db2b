package grpcapi

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/bookstore/internal/auth"
	"github.com/vladislavdragonenkov/bookstore/internal/metrics"
)

const panicMessage = "Something went wrong!"

// NewServer собирает grpc.Server с OrderService и стандартным health-сервисом.
// Метрики grpc_server_* регистрируются в registerer (nil: DefaultRegisterer).
func NewServer(deps Dependencies, registerer prometheus.Registerer, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	service := NewOrderService(deps)
	grpcMetrics := metrics.NewGRPCServerMetrics(registerer)

	opts = append(opts, grpc.ChainUnaryInterceptor(
		grpcMetrics.UnaryServerInterceptor(),
		recoverUnary(service.logger),
		logUnary(service.logger),
		authUnary(deps.Auth),
	))
	server := grpc.NewServer(opts...)

	RegisterOrderServiceServer(server, service)
	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)

	grpcMetrics.InitializeMetrics(server)
	return server, healthServer
}

// authUnary проверяет Bearer-токен из metadata для методов OrderService.
func authUnary(authenticator Authenticator) grpc.UnaryServerInterceptor {
	prefix := "/" + ServiceName + "/"
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !strings.HasPrefix(info.FullMethod, prefix) {
			return handler(ctx, req)
		}
		id, err := authenticator.Authenticate(ctx, auth.BearerToken(metadataValue(ctx, AuthorizationMetadata)))
		if errors.Is(err, auth.ErrMissingCredentials) {
			return nil, status.Error(codes.Unauthenticated, "Access denied")
		}
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "Invalid token")
		}
		return handler(auth.WithIdentity(ctx, id), req)
	}
}

func logUnary(logger *log.Entry) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		started := time.Now()
		resp, err := handler(ctx, req)

		entry := logger.WithFields(log.Fields{
			"method":      info.FullMethod,
			"code":        status.Code(err).String(),
			"duration_ms": time.Since(started).Milliseconds(),
		})
		if status.Code(err) == codes.Internal {
			entry.Warn("grpc request failed")
		} else {
			entry.Info("grpc request")
		}
		return resp, err
	}
}

func recoverUnary(logger *log.Entry) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.WithFields(log.Fields{"method": info.FullMethod, "panic": rec}).Error("grpc handler panicked")
				resp, err = nil, status.Error(codes.Internal, panicMessage)
			}
		}()
		return handler(ctx, req)
	}
}
