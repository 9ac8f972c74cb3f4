package service

import (
	"context"
	"time"

	"safescore/feedback-service/internal/app/feedback/entity"
)

// RateLimiter - атомарные счётчики окон rate-лимитов.
// Increment-and-return закрывает гонку read-then-write при параллельных
// отправках; реализация - Redis INCR (util.RedisClient)
type RateLimiter interface {
	IncrUserDaily(ctx context.Context, userID string, now time.Time) (int64, error)
	IncrLocationHourly(ctx context.Context, lat, lon float64, now time.Time) (int64, error)
}

// SummaryCache - кеш агрегированных сводок по локации
type SummaryCache interface {
	GetSummary(ctx context.Context, lat, lon, radius float64) (*entity.FeedbackSummary, error)
	SetSummary(ctx context.Context, lat, lon, radius float64, summary *entity.FeedbackSummary, ttl time.Duration) error
	InvalidateSummaries(ctx context.Context, lat, lon float64) error
}

// AggregatorInterface используется скоринговым движком для блендинга
type AggregatorInterface interface {
	LocationSummary(ctx context.Context, lat, lon, radiusMeters float64) (*entity.FeedbackSummary, error)
}

// WeightAdapter запускает адаптацию весов скоринга после одобренного фидбека
type WeightAdapter interface {
	AdaptWeights(ctx context.Context) error
}
