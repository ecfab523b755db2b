package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Значения метки result для операций с заказами.
const (
	ResultOK           = "ok"
	ResultInvalidInput = "invalid_input"
	ResultNotFound     = "not_found"
	ResultStoreFailure = "store_failure"
)

// OrderMetrics содержит метрики подсистемы заказов и её транспорта.
// Все методы безопасны для nil-получателя.
type OrderMetrics struct {
	// Операции с заказами
	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	itemsPerOrder     prometheus.Histogram
	totalMismatch     prometheus.Counter

	// HTTP-транспорт
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	idempotentReplays prometheus.Counter
}

// NewOrderMetrics создаёт метрики в DefaultRegisterer.
func NewOrderMetrics() *OrderMetrics {
	return NewOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOrderMetricsWithRegisterer создаёт метрики в указанном реестре (используется в тестах).
func NewOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	return &OrderMetrics{
		operations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "bookstore_order_operations_total",
			Help: "Total number of order operations by operation and result",
		}, []string{"operation", "result"}),
		operationDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "bookstore_order_operation_duration_seconds",
			Help:    "Duration of order operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"operation"}),
		itemsPerOrder: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "bookstore_order_items_per_order",
			Help:    "Number of line items in created orders",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 50},
		}),
		totalMismatch: registerCounter(registerer, prometheus.CounterOpts{
			Name: "bookstore_order_total_mismatch_total",
			Help: "Orders whose client-supplied total differs from the sum of their items",
		}),
		httpRequests: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "bookstore_http_requests_total",
			Help: "Total number of HTTP requests by method, route and status code",
		}, []string{"method", "route", "code"}),
		httpDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "bookstore_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		idempotentReplays: registerCounter(registerer, prometheus.CounterOpts{
			Name: "bookstore_http_idempotent_replays_total",
			Help: "Responses replayed from the idempotency store",
		}),
	}
}

// RecordOperation фиксирует результат и длительность операции (create, list, get).
func (m *OrderMetrics) RecordOperation(operation, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, result).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordItems записывает число позиций созданного заказа.
func (m *OrderMetrics) RecordItems(count int) {
	if m == nil {
		return
	}
	m.itemsPerOrder.Observe(float64(count))
}

// RecordTotalMismatch увеличивает счётчик расхождений суммы заказа.
func (m *OrderMetrics) RecordTotalMismatch() {
	if m == nil {
		return
	}
	m.totalMismatch.Inc()
}

// RecordHTTPRequest фиксирует обработанный HTTP-запрос.
func (m *OrderMetrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordIdempotentReplay увеличивает счётчик ответов, отданных из хранилища идемпотентности.
func (m *OrderMetrics) RecordIdempotentReplay() {
	if m == nil {
		return
	}
	m.idempotentReplays.Inc()
}
