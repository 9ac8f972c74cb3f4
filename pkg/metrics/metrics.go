package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// HTTP Метрики
// =============================================================================

// HttpRequestsTotal - счётчик всех HTTP запросов
// Labels: service, method, path, status
// Пример запроса PromQL: rate(http_requests_total{service="feedback"}[5m])
var HttpRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	},
	[]string{"service", "method", "path", "status"},
)

// HttpRequestDuration - гистограмма времени ответа
// Пример: histogram_quantile(0.95, rate(http_request_duration_seconds_bucket[5m]))
var HttpRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name: "http_request_duration_seconds",
		Help: "Duration of HTTP requests in seconds",
		// Бакеты от 1ms до 10s
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	},
	[]string{"service", "method", "path"},
)

// HttpRequestsInFlight - текущее количество обрабатываемых запросов
var HttpRequestsInFlight = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "http_requests_in_flight",
		Help: "Current number of HTTP requests being processed",
	},
	[]string{"service"},
)

// =============================================================================
// Database Метрики
// =============================================================================

// DbQueryDuration - время выполнения SQL запросов
var DbQueryDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	},
	[]string{"service", "operation", "table"},
)

// DbErrors - счётчик ошибок базы данных
var DbErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "db_errors_total",
		Help: "Total number of database errors",
	},
	[]string{"service", "operation"},
)

// =============================================================================
// Redis Метрики
// =============================================================================

// RedisCacheHits - попадания в кеш
var RedisCacheHits = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "redis_cache_hits_total",
		Help: "Total number of Redis cache hits",
	},
	[]string{"service", "key_prefix"},
)

// RedisCacheMisses - промахи кеша
var RedisCacheMisses = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "redis_cache_misses_total",
		Help: "Total number of Redis cache misses",
	},
	[]string{"service", "key_prefix"},
)

// RedisOperationDuration - время операций Redis
var RedisOperationDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "redis_operation_duration_seconds",
		Help:    "Duration of Redis operations in seconds",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	},
	[]string{"service", "operation"},
)

// RedisErrors - ошибки Redis
var RedisErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "redis_errors_total",
		Help: "Total number of Redis errors",
	},
	[]string{"service", "operation"},
)

// =============================================================================
// Kafka Метрики
// =============================================================================

// KafkaMessagesProduced - отправленные сообщения
var KafkaMessagesProduced = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kafka_messages_produced_total",
		Help: "Total number of Kafka messages produced",
	},
	[]string{"service", "topic"},
)

// KafkaProduceDuration - время отправки сообщения
var KafkaProduceDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "kafka_produce_duration_seconds",
		Help:    "Duration of Kafka produce operations",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	},
	[]string{"service", "topic"},
)

// KafkaErrors - ошибки Kafka
var KafkaErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kafka_errors_total",
		Help: "Total number of Kafka errors",
	},
	[]string{"service", "topic", "operation"},
)

// =============================================================================
// Business Метрики (специфичные для Safescore)
// =============================================================================

// FeedbackSubmitted - принятые отправки фидбека по итоговому статусу
var FeedbackSubmitted = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "feedback_submitted_total",
		Help: "Total number of feedback submissions by approval status",
	},
	[]string{"status"}, // auto_approved, pending, rejected
)

// FeedbackRating - распределение оценок (1..10)
var FeedbackRating = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "feedback_rating",
		Help:    "Distribution of submitted feedback ratings",
		Buckets: []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
	},
)

// FeedbackRateLimited - сработавшие rate-лимиты
var FeedbackRateLimited = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "feedback_rate_limited_total",
		Help: "Total number of submissions rejected by rate limits",
	},
	[]string{"limit"}, // user_daily, location_hourly
)

// AdminDecisions - ручные решения модераторов
var AdminDecisions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "feedback_admin_decisions_total",
		Help: "Total number of manual approve/reject decisions",
	},
	[]string{"action"}, // approve, reject
)

// ScoreRequests - запросы итогового скора по методу расчёта
var ScoreRequests = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "score_requests_total",
		Help: "Total number of safety score requests by scoring method",
	},
	[]string{"method"}, // blended_ai_user_feedback, ai_only_insufficient_feedback
)

// WeightAdaptations - прогоны адаптации весов
var WeightAdaptations = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "score_weight_adaptations_total",
		Help: "Total number of weight adaptation runs",
	},
	[]string{"status"}, // adjusted, unchanged, failed
)
