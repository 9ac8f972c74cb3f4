package util

import (
	"context"
	"testing"
	"time"

	"safescore/feedback-service/internal/app/feedback/entity"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// RedisClientTestSuite тестовый suite для Redis счётчиков и кеша сводок
type RedisClientTestSuite struct {
	suite.Suite
	miniRedis *miniredis.Miniredis
	client    *RedisClient
}

func TestRedisClientSuite(t *testing.T) {
	suite.Run(t, new(RedisClientTestSuite))
}

func (s *RedisClientTestSuite) SetupSuite() {
	var err error
	s.miniRedis, err = miniredis.Run()
	require.NoError(s.T(), err)

	s.client, err = NewRedisClient(s.miniRedis.Addr(), "", 0)
	require.NoError(s.T(), err)
}

func (s *RedisClientTestSuite) SetupTest() {
	s.miniRedis.FlushAll()
}

func (s *RedisClientTestSuite) TearDownSuite() {
	s.client.Close()
	s.miniRedis.Close()
}

// ===================== Rate Limit Counter Tests =====================

func (s *RedisClientTestSuite) TestIncrUserDaily_Increments() {
	ctx := context.Background()
	now := time.Now()

	for want := int64(1); want <= 3; want++ {
		count, err := s.client.IncrUserDaily(ctx, "user-1", now)
		s.NoError(err)
		s.Equal(want, count)
	}
}

func (s *RedisClientTestSuite) TestIncrUserDaily_SeparateUsersAndDays() {
	ctx := context.Background()
	now := time.Now()

	count, err := s.client.IncrUserDaily(ctx, "user-1", now)
	s.NoError(err)
	s.Equal(int64(1), count)

	// Другой пользователь считается отдельно
	count, err = s.client.IncrUserDaily(ctx, "user-2", now)
	s.NoError(err)
	s.Equal(int64(1), count)

	// Следующий календарный день открывает новое окно
	count, err = s.client.IncrUserDaily(ctx, "user-1", now.AddDate(0, 0, 1))
	s.NoError(err)
	s.Equal(int64(1), count)
}

func (s *RedisClientTestSuite) TestIncrUserDaily_SetsTTL() {
	ctx := context.Background()
	now := time.Now()

	_, err := s.client.IncrUserDaily(ctx, "user-1", now)
	s.NoError(err)

	key := "ratelimit:user:user-1:" + now.Format("2006-01-02")
	s.True(s.miniRedis.Exists(key))
	s.Equal(48*time.Hour, s.miniRedis.TTL(key))
}

func (s *RedisClientTestSuite) TestIncrLocationHourly_BucketsByCoordinate() {
	ctx := context.Background()
	now := time.Now()

	// Координаты внутри одного бакета 0.001° делят счётчик
	count, err := s.client.IncrLocationHourly(ctx, 13.0827, 80.2707, now)
	s.NoError(err)
	s.Equal(int64(1), count)

	count, err = s.client.IncrLocationHourly(ctx, 13.0827, 80.2707, now)
	s.NoError(err)
	s.Equal(int64(2), count)

	// Другой бакет - отдельный счётчик
	count, err = s.client.IncrLocationHourly(ctx, 13.0927, 80.2707, now)
	s.NoError(err)
	s.Equal(int64(1), count)
}

func (s *RedisClientTestSuite) TestIncrLocationHourly_SeparateHours() {
	ctx := context.Background()
	now := time.Now()

	count, err := s.client.IncrLocationHourly(ctx, 13.0827, 80.2707, now)
	s.NoError(err)
	s.Equal(int64(1), count)

	count, err = s.client.IncrLocationHourly(ctx, 13.0827, 80.2707, now.Add(time.Hour))
	s.NoError(err)
	s.Equal(int64(1), count)
}

// ===================== Summary Cache Tests =====================

func (s *RedisClientTestSuite) TestSummaryCache_RoundTrip() {
	ctx := context.Background()

	summary := &entity.FeedbackSummary{
		FeedbackCount:  12,
		UniqueUsers:    10,
		SafetyScore:    0.74,
		MeetsThreshold: false,
	}

	err := s.client.SetSummary(ctx, 13.0827, 80.2707, 100, summary, 5*time.Minute)
	s.NoError(err)

	cached, err := s.client.GetSummary(ctx, 13.0827, 80.2707, 100)
	s.NoError(err)
	s.NotNil(cached)
	s.Equal(12, cached.FeedbackCount)
	s.Equal(0.74, cached.SafetyScore)
}

func (s *RedisClientTestSuite) TestGetSummary_Miss() {
	cached, err := s.client.GetSummary(context.Background(), 13.0827, 80.2707, 100)

	s.NoError(err)
	s.Nil(cached)
}

func (s *RedisClientTestSuite) TestGetSummary_Expired() {
	ctx := context.Background()

	err := s.client.SetSummary(ctx, 13.0827, 80.2707, 100, &entity.FeedbackSummary{}, time.Minute)
	s.NoError(err)

	s.miniRedis.FastForward(2 * time.Minute)

	cached, err := s.client.GetSummary(ctx, 13.0827, 80.2707, 100)
	s.NoError(err)
	s.Nil(cached)
}

func (s *RedisClientTestSuite) TestInvalidateSummaries_RemovesAllRadii() {
	ctx := context.Background()

	// Сводки одной точки с разными радиусами
	s.NoError(s.client.SetSummary(ctx, 13.0827, 80.2707, 100, &entity.FeedbackSummary{}, time.Minute))
	s.NoError(s.client.SetSummary(ctx, 13.0827, 80.2707, 500, &entity.FeedbackSummary{}, time.Minute))
	// Сводка другой точки остаётся
	s.NoError(s.client.SetSummary(ctx, 12.9716, 77.5946, 100, &entity.FeedbackSummary{}, time.Minute))

	err := s.client.InvalidateSummaries(ctx, 13.0827, 80.2707)
	s.NoError(err)

	cached, err := s.client.GetSummary(ctx, 13.0827, 80.2707, 100)
	s.NoError(err)
	s.Nil(cached)

	cached, err = s.client.GetSummary(ctx, 13.0827, 80.2707, 500)
	s.NoError(err)
	s.Nil(cached)

	cached, err = s.client.GetSummary(ctx, 12.9716, 77.5946, 100)
	s.NoError(err)
	s.NotNil(cached)
}

func (s *RedisClientTestSuite) TestInvalidateSummaries_NoKeys() {
	err := s.client.InvalidateSummaries(context.Background(), 13.0827, 80.2707)
	s.NoError(err)
}
