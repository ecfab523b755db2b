package app

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/bookstore/internal/health"
	"github.com/vladislavdragonenkov/bookstore/internal/storage/memory"
	"github.com/vladislavdragonenkov/bookstore/internal/storage/postgres"
	redisstore "github.com/vladislavdragonenkov/bookstore/internal/storage/redis"
	"github.com/vladislavdragonenkov/bookstore/internal/storage/sqlite"
)

// runtimeDependencies — репозитории выбранного хранилища и их проверки.
type runtimeDependencies struct {
	orders          domain.OrderRepository
	books           domain.BookRepository
	users           domain.UserRepository
	outboxRepo      domain.OutboxRepository
	idempotencyRepo domain.IdempotencyRepository
	// sweepIdempotency — хранилище ключей требует периодической очистки (Redis истекает сам).
	sweepIdempotency bool

	checkers map[string]healthcheck.Checker
	closers  []func() error
}

func (d *runtimeDependencies) close() error {
	if d == nil {
		return nil
	}
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		errs = append(errs, d.closers[i]())
	}
	d.closers = nil
	return errors.Join(errs...)
}

// initRuntimeDependencies открывает хранилище по cfg.StorageDriver.
// События order.created пишутся в outbox только при настроенной Kafka.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	events := cfg.KafkaBrokers != ""
	deps := &runtimeDependencies{
		checkers:         make(map[string]healthcheck.Checker),
		sweepIdempotency: true,
	}

	switch cfg.StorageDriver {
	case StorageDriverMemory:
		outbox := memory.NewOutboxRepository()
		var opts []memory.OrderOption
		if events {
			opts = append(opts, memory.WithOrderEvents(outbox))
		}
		deps.orders = memory.NewOrderRepository(opts...)
		deps.books = memory.NewBookRepository()
		deps.users = memory.NewUserRepository()
		deps.outboxRepo = outbox
		deps.idempotencyRepo = memory.NewIdempotencyRepository()

	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, errors.New("postgres_dsn is required for postgres storage")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		deps.closers = append(deps.closers, store.Close)
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = deps.close()
				return nil, fmt.Errorf("apply postgres migrations: %w", err)
			}
		}
		var opts []postgres.OrderOption
		if events {
			opts = append(opts, postgres.WithOrderEvents())
		}
		deps.orders = postgres.NewOrderRepository(store, opts...)
		deps.books = postgres.NewBookRepository(store)
		deps.users = postgres.NewUserRepository(store)
		deps.outboxRepo = postgres.NewOutboxRepository(store)
		deps.idempotencyRepo = postgres.NewIdempotencyRepository(store)
		deps.checkers["storage"] = healthcheck.NewPingChecker("storage", store.Ping)
		logger.Info("postgres storage initialized")

	case StorageDriverSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		deps.closers = append(deps.closers, store.Close)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = deps.close()
			return nil, fmt.Errorf("apply sqlite schema: %w", err)
		}
		var opts []sqlite.OrderOption
		if events {
			opts = append(opts, sqlite.WithOrderEvents())
		}
		deps.orders = sqlite.NewOrderRepository(store, opts...)
		deps.books = sqlite.NewBookRepository(store)
		deps.users = sqlite.NewUserRepository(store)
		deps.outboxRepo = sqlite.NewOutboxRepository(store)
		deps.idempotencyRepo = memory.NewIdempotencyRepository()
		deps.checkers["storage"] = healthcheck.NewPingChecker("storage", store.Ping)
		logger.WithField("path", cfg.SQLitePath).Info("sqlite storage initialized")

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	if cfg.RedisAddr != "" {
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			_ = deps.close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		deps.closers = append(deps.closers, client.Close)
		deps.idempotencyRepo = redisstore.NewIdempotencyRepository(client)
		deps.sweepIdempotency = false
		deps.checkers["redis"] = healthcheck.NewOptionalChecker("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		logger.WithField("addr", cfg.RedisAddr).Info("redis idempotency store initialized")
	}

	return deps, nil
}
