package util

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"safescore/feedback-service/internal/app/feedback/entity"
	"safescore/pkg/metrics"

	"github.com/redis/go-redis/v9"
)

const serviceName = "feedback-service"

const (
	userCounterPrefix     = "ratelimit:user"
	locationCounterPrefix = "ratelimit:loc"
	summaryCachePrefix    = "summary"

	// TTL с запасом больше окна лимита: счётчик нужен только внутри окна
	userCounterTTL     = 48 * time.Hour
	locationCounterTTL = 2 * time.Hour
)

type RedisClient struct {
	client *redis.Client
}

func NewRedisClient(addr, password string, db int) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisClient{client: client}, nil
}

// IncrUserDaily атомарно увеличивает дневной счётчик пользователя и возвращает
// новое значение. INCR закрывает гонку read-then-write при параллельных отправках
func (r *RedisClient) IncrUserDaily(ctx context.Context, userID string, now time.Time) (int64, error) {
	key := fmt.Sprintf("%s:%s:%s", userCounterPrefix, userID, now.Format("2006-01-02"))
	return r.incrWithTTL(ctx, key, userCounterTTL)
}

// IncrLocationHourly атомарно увеличивает часовой счётчик координатного бакета
// (~0.001° точности) и возвращает новое значение
func (r *RedisClient) IncrLocationHourly(ctx context.Context, lat, lon float64, now time.Time) (int64, error) {
	key := fmt.Sprintf("%s:%.3f:%.3f:%s", locationCounterPrefix, lat, lon, now.Format("2006-01-02-15"))
	return r.incrWithTTL(ctx, key, locationCounterTTL)
}

func (r *RedisClient) incrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	timer := metrics.NewRedisTimer(serviceName, metrics.RedisOpIncr)
	defer timer.ObserveDuration()

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		metrics.RecordRedisError(serviceName, metrics.RedisOpIncr)
		return 0, fmt.Errorf("failed to increment counter %s: %w", key, err)
	}

	if count == 1 {
		if err := r.client.Expire(ctx, key, ttl).Err(); err != nil {
			metrics.RecordRedisError(serviceName, metrics.RedisOpIncr)
		}
	}

	return count, nil
}

// GetSummary читает кешированную сводку по локации. Возвращает (nil, nil) при промахе
func (r *RedisClient) GetSummary(ctx context.Context, lat, lon, radius float64) (*entity.FeedbackSummary, error) {
	timer := metrics.NewRedisTimer(serviceName, metrics.RedisOpGet)
	defer timer.ObserveDuration()

	data, err := r.client.Get(ctx, summaryKey(lat, lon, radius)).Bytes()
	if err != nil {
		if err == redis.Nil {
			metrics.RecordCacheMiss(serviceName, summaryCachePrefix)
			return nil, nil
		}
		metrics.RecordRedisError(serviceName, metrics.RedisOpGet)
		return nil, fmt.Errorf("failed to get summary from cache: %w", err)
	}

	var summary entity.FeedbackSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached summary: %w", err)
	}

	metrics.RecordCacheHit(serviceName, summaryCachePrefix)
	return &summary, nil
}

// SetSummary кеширует сводку по локации на ttl
func (r *RedisClient) SetSummary(ctx context.Context, lat, lon, radius float64, summary *entity.FeedbackSummary, ttl time.Duration) error {
	timer := metrics.NewRedisTimer(serviceName, metrics.RedisOpSet)
	defer timer.ObserveDuration()

	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	if err := r.client.Set(ctx, summaryKey(lat, lon, radius), data, ttl).Err(); err != nil {
		metrics.RecordRedisError(serviceName, metrics.RedisOpSet)
		return fmt.Errorf("failed to set summary in cache: %w", err)
	}

	return nil
}

// InvalidateSummaries удаляет все кешированные сводки бакета локации.
// Вызывается после записи одобренного фидбека рядом с точкой
func (r *RedisClient) InvalidateSummaries(ctx context.Context, lat, lon float64) error {
	timer := metrics.NewRedisTimer(serviceName, metrics.RedisOpDel)
	defer timer.ObserveDuration()

	pattern := fmt.Sprintf("%s:%.3f:%.3f:*", summaryCachePrefix, lat, lon)

	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		metrics.RecordRedisError(serviceName, metrics.RedisOpDel)
		return fmt.Errorf("failed to scan summary keys: %w", err)
	}

	if len(keys) == 0 {
		return nil
	}

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		metrics.RecordRedisError(serviceName, metrics.RedisOpDel)
		return fmt.Errorf("failed to delete summary keys: %w", err)
	}

	return nil
}

func summaryKey(lat, lon, radius float64) string {
	return fmt.Sprintf("%s:%.3f:%.3f:%.0f", summaryCachePrefix, lat, lon, radius)
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}
