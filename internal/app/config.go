package app

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bookstore/internal/service/orders"
)

// Поддерживаемые хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
	StorageDriverSQLite   = "sqlite"
)

// EnvPrefix — префикс переменных окружения, переопределяющих ключи конфигурации.
const EnvPrefix = "BOOKSTORE_"

// Config описывает настройки запуска приложения.
type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool
	SQLitePath          string
	RedisAddr           string

	JWTSecret string
	TokenTTL  time.Duration

	KafkaBrokers  string
	KafkaClientID string
	KafkaTopic    string
	KafkaDLQTopic string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration
	OutboxMaxPending   int

	IdempotencyTTL              time.Duration
	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int

	OrderTotalPolicy string

	LogLevel  string
	LogFormat string
}

// DefaultConfig возвращает конфигурацию для локального запуска на in-memory хранилище.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:    ":5000",
		GRPCAddr:    ":50051",
		MetricsAddr: ":9090",

		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		SQLitePath:          "bookstore.db",

		TokenTTL: 24 * time.Hour,

		KafkaClientID: "bookstore",
		KafkaTopic:    "bookstore.order.events",
		KafkaDLQTopic: "bookstore.order.dlq",

		OutboxPollInterval: time.Second,
		OutboxBatchSize:    100,
		OutboxMaxAttempts:  3,
		OutboxRetryDelay:   50 * time.Millisecond,
		OutboxMaxPending:   1000,

		IdempotencyTTL:              24 * time.Hour,
		IdempotencyCleanupInterval:  time.Hour,
		IdempotencyCleanupBatchSize: 500,

		OrderTotalPolicy: string(orders.TotalPolicyTrust),

		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Validate проверяет согласованность настроек перед запуском.
func (c Config) Validate() error {
	var errs []error

	switch c.StorageDriver {
	case StorageDriverMemory, StorageDriverSQLite:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("postgres_dsn is required for postgres storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.StorageDriver))
	}
	if c.StorageDriver == StorageDriverSQLite && strings.TrimSpace(c.SQLitePath) == "" {
		errs = append(errs, errors.New("sqlite_path is required for sqlite storage"))
	}
	if strings.TrimSpace(c.HTTPAddr) == "" {
		errs = append(errs, errors.New("http_addr is required"))
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		errs = append(errs, errors.New("jwt_secret is required"))
	}
	if _, err := orders.ParseTotalPolicy(c.OrderTotalPolicy); err != nil {
		errs = append(errs, err)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("unsupported log_format %q", c.LogFormat))
	}

	return errors.Join(errs...)
}

// LookupFunc ищет переменную окружения; сигнатура совпадает с os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// LoadConfig собирает конфигурацию: значения по умолчанию, затем TOML-файл (если path не пуст),
// затем переменные BOOKSTORE_*. Некорректная переменная окружения не прерывает загрузку:
// значение остаётся прежним, а в warnings попадает описание.
func LoadConfig(path string, lookup LookupFunc) (Config, []string, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, nil, fmt.Errorf("read config file: %w", err)
		}
		if err := applyTOML(&cfg, data); err != nil {
			return Config{}, nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	warnings := applyEnv(&cfg, lookup)
	if err := cfg.Validate(); err != nil {
		return Config{}, warnings, err
	}
	return cfg, warnings, nil
}

func applyTOML(cfg *Config, data []byte) error {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse toml: %w", err)
	}

	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		field, ok := findConfigField(key)
		if !ok {
			return fmt.Errorf("unknown key %q", key)
		}
		value, err := tomlString(raw[key])
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if err := field.apply(cfg, value); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

func tomlString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case bool:
		return strconv.FormatBool(v), nil
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return "", fmt.Errorf("unsupported list item %T", item)
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ","), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", value)
	}
}

func applyEnv(cfg *Config, lookup LookupFunc) []string {
	if lookup == nil {
		return nil
	}

	var warnings []string
	for _, field := range configFields {
		name := EnvPrefix + strings.ToUpper(field.key)
		value, ok := lookup(name)
		if !ok {
			continue
		}
		if err := field.apply(cfg, value); err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v; keeping previous value", name, err))
		}
	}
	return warnings
}

type configField struct {
	key   string
	apply func(cfg *Config, raw string) error
}

func findConfigField(key string) (configField, bool) {
	for _, field := range configFields {
		if field.key == key {
			return field, true
		}
	}
	return configField{}, false
}

var configFields = []configField{
	{"http_addr", stringField(func(c *Config) *string { return &c.HTTPAddr })},
	{"grpc_addr", stringField(func(c *Config) *string { return &c.GRPCAddr })},
	{"metrics_addr", stringField(func(c *Config) *string { return &c.MetricsAddr })},
	{"storage_driver", lowerField(func(c *Config) *string { return &c.StorageDriver })},
	{"postgres_dsn", stringField(func(c *Config) *string { return &c.PostgresDSN })},
	{"postgres_auto_migrate", boolField(func(c *Config) *bool { return &c.PostgresAutoMigrate })},
	{"sqlite_path", stringField(func(c *Config) *string { return &c.SQLitePath })},
	{"redis_addr", stringField(func(c *Config) *string { return &c.RedisAddr })},
	{"jwt_secret", stringField(func(c *Config) *string { return &c.JWTSecret })},
	{"token_ttl", durationField(func(c *Config) *time.Duration { return &c.TokenTTL }, false)},
	{"kafka_brokers", stringField(func(c *Config) *string { return &c.KafkaBrokers })},
	{"kafka_client_id", stringField(func(c *Config) *string { return &c.KafkaClientID })},
	{"kafka_topic", stringField(func(c *Config) *string { return &c.KafkaTopic })},
	{"kafka_dlq_topic", stringField(func(c *Config) *string { return &c.KafkaDLQTopic })},
	{"outbox_poll_interval", durationField(func(c *Config) *time.Duration { return &c.OutboxPollInterval }, false)},
	{"outbox_batch_size", intField(func(c *Config) *int { return &c.OutboxBatchSize }, false)},
	{"outbox_max_attempts", intField(func(c *Config) *int { return &c.OutboxMaxAttempts }, false)},
	{"outbox_retry_delay", durationField(func(c *Config) *time.Duration { return &c.OutboxRetryDelay }, true)},
	{"outbox_max_pending", intField(func(c *Config) *int { return &c.OutboxMaxPending }, true)},
	{"idempotency_ttl", durationField(func(c *Config) *time.Duration { return &c.IdempotencyTTL }, false)},
	{"idempotency_cleanup_interval", durationField(func(c *Config) *time.Duration { return &c.IdempotencyCleanupInterval }, false)},
	{"idempotency_cleanup_batch_size", intField(func(c *Config) *int { return &c.IdempotencyCleanupBatchSize }, false)},
	{"order_total_policy", lowerField(func(c *Config) *string { return &c.OrderTotalPolicy })},
	{"log_level", lowerField(func(c *Config) *string { return &c.LogLevel })},
	{"log_format", lowerField(func(c *Config) *string { return &c.LogFormat })},
}

func stringField(ptr func(*Config) *string) func(*Config, string) error {
	return func(c *Config, raw string) error {
		*ptr(c) = strings.TrimSpace(raw)
		return nil
	}
}

func lowerField(ptr func(*Config) *string) func(*Config, string) error {
	return func(c *Config, raw string) error {
		*ptr(c) = strings.ToLower(strings.TrimSpace(raw))
		return nil
	}
}

func boolField(ptr func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, raw string) error {
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "1", "true", "yes", "on":
			*ptr(c) = true
		case "0", "false", "no", "off":
			*ptr(c) = false
		default:
			return fmt.Errorf("invalid boolean %q", raw)
		}
		return nil
	}
}

func intField(ptr func(*Config) *int, allowZero bool) func(*Config, string) error {
	return func(c *Config, raw string) error {
		v, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("invalid integer %q", raw)
		}
		if v < 0 || (v == 0 && !allowZero) {
			return fmt.Errorf("value %d is out of range", v)
		}
		*ptr(c) = v
		return nil
	}
}

func durationField(ptr func(*Config) *time.Duration, allowZero bool) func(*Config, string) error {
	return func(c *Config, raw string) error {
		v, err := time.ParseDuration(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("invalid duration %q", raw)
		}
		if v < 0 || (v == 0 && !allowZero) {
			return fmt.Errorf("duration %s is out of range", v)
		}
		*ptr(c) = v
		return nil
	}
}
