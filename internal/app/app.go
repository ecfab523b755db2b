package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/vladislavdragonenkov/bookstore/internal/auth"
	"github.com/vladislavdragonenkov/bookstore/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/bookstore/internal/health"
	"github.com/vladislavdragonenkov/bookstore/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/bookstore/internal/metrics"
	"github.com/vladislavdragonenkov/bookstore/internal/service/accounts"
	"github.com/vladislavdragonenkov/bookstore/internal/service/catalog"
	"github.com/vladislavdragonenkov/bookstore/internal/service/idempotency"
	"github.com/vladislavdragonenkov/bookstore/internal/service/orders"
	"github.com/vladislavdragonenkov/bookstore/internal/service/outbox"
	"github.com/vladislavdragonenkov/bookstore/internal/transport/grpcapi"
	"github.com/vladislavdragonenkov/bookstore/internal/transport/httpapi"
	"github.com/vladislavdragonenkov/bookstore/internal/version"
)

const shutdownTimeout = 5 * time.Second

// Run поднимает HTTP API, gRPC, метрики и фоновые воркеры и блокируется до отмены ctx
// или падения одного из серверов.
func Run(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger := log.WithField("component", "app")

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.close(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	producer, err := initKafkaProducer(cfg.KafkaBrokers, cfg.KafkaClientID, logger)
	if err != nil {
		return fmt.Errorf("init kafka producer: %w", err)
	}
	defer closeKafka(producer, logger)

	provider, err := auth.NewProvider(cfg.JWTSecret, auth.WithTokenTTL(cfg.TokenTTL))
	if err != nil {
		return err
	}
	policy, err := orders.ParseTotalPolicy(cfg.OrderTotalPolicy)
	if err != nil {
		return err
	}

	orderMetrics := metrics.NewOrderMetrics()
	writer := orders.NewWriter(deps.orders,
		orders.WithMetrics(orderMetrics),
		orders.WithTotalPolicy(policy),
		orders.WithBookCatalog(deps.books),
	)
	reader := orders.NewReader(deps.orders, orders.WithMetrics(orderMetrics))
	guard := idempotency.NewGuard(deps.idempotencyRepo, idempotency.WithTTL(cfg.IdempotencyTTL))

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	for name, checker := range deps.checkers {
		healthHandler.RegisterChecker(name, checker)
	}
	if producer != nil && cfg.OutboxMaxPending > 0 {
		healthHandler.RegisterChecker("outbox", outboxBacklogChecker(deps.outboxRepo, cfg.OutboxMaxPending))
	}

	httpLis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen http: %w", err)
	}
	var grpcLis net.Listener
	if cfg.GRPCAddr != "" {
		if grpcLis, err = net.Listen("tcp", cfg.GRPCAddr); err != nil {
			_ = httpLis.Close()
			return fmt.Errorf("listen grpc: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	httpSrv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewHandler(httpapi.Dependencies{
			Auth:        provider,
			Users:       deps.users,
			Accounts:    accounts.NewService(deps.users, provider, nil),
			Catalog:     catalog.NewService(deps.books, nil),
			Writer:      writer,
			Reader:      reader,
			Idempotency: guard,
			Metrics:     orderMetrics,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		logger.Infof("HTTP API слушает %s", httpLis.Addr())
		if err := httpSrv.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownHTTP(httpSrv, logger)
		return nil
	})

	if grpcLis != nil {
		grpcServer, healthServer := grpcapi.NewServer(grpcapi.Dependencies{
			Auth:        provider,
			Writer:      writer,
			Reader:      reader,
			Idempotency: guard,
			Metrics:     orderMetrics,
			Logger:      logger.WithField("layer", "grpc"),
		}, nil)
		g.Go(func() error {
			logger.Infof("gRPC сервер слушает %s", grpcLis.Addr())
			if err := grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("grpc server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
			stopGRPC(grpcServer, logger)
			return nil
		})
	}

	if cfg.MetricsAddr != "" {
		startMetricsServer(gctx, cfg.MetricsAddr, logger, healthHandler)
	}

	if producer != nil {
		worker := newOutboxWorker(cfg, deps.outboxRepo, producer, logger)
		g.Go(func() error {
			worker.Run(gctx)
			return nil
		})
	}

	if deps.sweepIdempotency {
		cleaner := idempotency.NewCleanupWorker(deps.idempotencyRepo,
			idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
			idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
			idempotency.WithMetrics(metrics.NewIdempotencyMetrics(nil)),
		)
		g.Go(func() error {
			cleaner.Run(gctx)
			return nil
		})
	}

	err = g.Wait()
	if ctx.Err() != nil {
		logger.Info("получен сигнал остановки, сервисы остановлены")
		return ctx.Err()
	}
	return err
}

func newOutboxWorker(cfg Config, repo domain.OutboxRepository, producer *kafka.Producer, logger *log.Entry) *outbox.Worker {
	opts := []outbox.Option{
		outbox.WithLogger(logger.WithField("layer", "outbox")),
		outbox.WithMetrics(metrics.NewOutboxMetrics(nil)),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	}
	if cfg.KafkaDLQTopic != "" {
		opts = append(opts, outbox.WithDLQPublisher(kafka.NewOutboxPublisher(producer, cfg.KafkaDLQTopic)))
	}
	return outbox.NewWorker(repo, kafka.NewOutboxPublisher(producer, cfg.KafkaTopic), opts...)
}

// outboxBacklogChecker переводит сервис в degraded, когда очередь неотправленных событий слишком длинная.
func outboxBacklogChecker(repo domain.OutboxRepository, maxPending int) healthcheck.Checker {
	return healthcheck.NewOptionalChecker("outbox", func(ctx context.Context) error {
		stats, err := repo.Stats(ctx)
		if err != nil {
			return err
		}
		if stats.PendingCount > maxPending {
			return fmt.Errorf("outbox backlog %d exceeds %d", stats.PendingCount, maxPending)
		}
		return nil
	})
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus и health-эндпоинты.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/readyz, %s/livez", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// stopGRPC ждёт завершения активных вызовов не дольше shutdownTimeout.
func stopGRPC(server *grpc.Server, logger *log.Entry) {
	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownTimeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		server.Stop()
	}
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
