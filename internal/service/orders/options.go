package orders

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
	"github.com/vladislavdragonenkov/bookstore/internal/metrics"
)

// TotalPolicy определяет, как Writer обращается с суммой заказа от клиента.
type TotalPolicy string

const (
	// TotalPolicyTrust сохраняет сумму как есть; расхождение только логируется и считается.
	TotalPolicyTrust TotalPolicy = "trust"
	// TotalPolicyVerify отклоняет заказ, если сумма не равна Σ price×quantity.
	TotalPolicyVerify TotalPolicy = "verify"
)

// ParseTotalPolicy разбирает значение из конфигурации; пустая строка: trust.
func ParseTotalPolicy(raw string) (TotalPolicy, error) {
	switch TotalPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", TotalPolicyTrust:
		return TotalPolicyTrust, nil
	case TotalPolicyVerify:
		return TotalPolicyVerify, nil
	default:
		return "", fmt.Errorf("unknown order total policy %q", raw)
	}
}

// Options задаёт зависимости сервисов заказов.
type Options struct {
	Logger      *log.Entry
	Metrics     *metrics.OrderMetrics
	TotalPolicy TotalPolicy
	Books       domain.BookRepository
}

// Option настраивает Writer и Reader.
type Option func(*Options)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithMetrics задаёт метрики; nil отключает их.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

// WithTotalPolicy задаёт политику проверки суммы заказа.
func WithTotalPolicy(policy TotalPolicy) Option {
	return func(opts *Options) {
		opts.TotalPolicy = policy
	}
}

// WithBookCatalog включает проверку, что каждая книга из корзины есть в каталоге.
// Без неё неизвестная книга отсекается только внешним ключом хранилища.
func WithBookCatalog(books domain.BookRepository) Option {
	return func(opts *Options) {
		opts.Books = books
	}
}

func buildOptions(component string, options []Option) Options {
	opts := Options{TotalPolicy: TotalPolicyTrust}
	for _, option := range options {
		option(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = log.WithField("component", component)
	}
	if opts.TotalPolicy == "" {
		opts.TotalPolicy = TotalPolicyTrust
	}
	return opts
}
