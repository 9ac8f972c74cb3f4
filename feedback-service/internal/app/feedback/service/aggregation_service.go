package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"safescore/feedback-service/internal/app/feedback/config"
	"safescore/feedback-service/internal/app/feedback/entity"
	"safescore/feedback-service/internal/app/feedback/repository"
	"safescore/pkg/logger"
)

// AggregationService строит агрегированные сводки фидбека по локации:
// описательную статистику, метрики качества и взвешенный фидбек-скор.
// Чтения не обязаны быть линеаризуемыми с записями - сводка не является
// сигналом реального времени, допустима eventual consistency
type AggregationService struct {
	feedbackRepo repository.FeedbackRepository
	cache        SummaryCache // Опционален, nil отключает кеширование
	cfg          config.AggregationConfig
}

func NewAggregationService(
	feedbackRepo repository.FeedbackRepository,
	cache SummaryCache,
	cfg config.AggregationConfig,
) *AggregationService {
	return &AggregationService{
		feedbackRepo: feedbackRepo,
		cache:        cache,
		cfg:          cfg,
	}
}

// LocationSummary возвращает сводку фидбека вокруг точки в радиусе radiusMeters.
// Ошибка чтения хранилища деградирует до нейтральной сводки: устаревший или
// отсутствующий скор лучше отказа всего ответа
func (s *AggregationService) LocationSummary(ctx context.Context, lat, lon, radiusMeters float64) (*entity.FeedbackSummary, error) {
	if radiusMeters <= 0 {
		radiusMeters = s.cfg.DefaultRadiusMeters
	}

	if s.cache != nil {
		cached, err := s.cache.GetSummary(ctx, lat, lon, radiusMeters)
		if err != nil {
			logger.Warn().Err(err).Msg("Summary cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	box := entity.BoundingBoxAround(lat, lon, radiusMeters)
	since := time.Now().AddDate(0, 0, -s.cfg.MaxFeedbackAgeDays)

	feedbacks, err := s.feedbackRepo.GetApprovedNear(ctx, box, since)
	if err != nil {
		logger.Error().Err(err).
			Float64("latitude", lat).
			Float64("longitude", lon).
			Msg("Failed to load feedback for aggregation, returning neutral summary")
		return s.emptySummary(lat, lon, radiusMeters), nil
	}

	if len(feedbacks) == 0 {
		return s.emptySummary(lat, lon, radiusMeters), nil
	}

	ratings := make([]int, len(feedbacks))
	for i, fb := range feedbacks {
		ratings[i] = fb.Rating
	}

	now := time.Now()
	mean := meanRating(ratings)
	stdev := populationStdDev(ratings, mean)
	uniqueUsers := countUniqueUsers(feedbacks)

	summary := &entity.FeedbackSummary{
		Location: entity.LocationInfo{
			Latitude:     lat,
			Longitude:    lon,
			RadiusMeters: radiusMeters,
		},
		FeedbackCount:  len(feedbacks),
		UniqueUsers:    uniqueUsers,
		MeetsThreshold: uniqueUsers >= s.cfg.MinUniqueUsers,
		Statistics: entity.RatingStatistics{
			AverageRating: round2(mean),
			MedianRating:  medianRating(ratings),
			RatingStdDev:  round2(stdev),
			MinRating:     minRating(ratings),
			MaxRating:     maxRating(ratings),
			Distribution:  ratingDistribution(ratings),
		},
		QualityMetrics: entity.QualityMetrics{
			OutlierCount:     s.countOutliers(ratings, mean, stdev),
			RecentFeedbacks:  countSince(feedbacks, now.AddDate(0, 0, -30)),
			TrustedUserRatio: trustedUserRatio(feedbacks),
			DataFreshness:    dataFreshness(feedbacks, now),
		},
		SafetyScore:     weightedSafetyScore(feedbacks, now),
		Recommendations: s.recommendations(feedbacks, mean, now),
		LastUpdated:     now,
	}

	if s.cache != nil {
		ttl := time.Duration(s.cfg.CacheTTLSeconds) * time.Second
		if err := s.cache.SetSummary(ctx, lat, lon, radiusMeters, summary, ttl); err != nil {
			logger.Warn().Err(err).Msg("Summary cache write failed")
		}
	}

	return summary, nil
}

// CollectionProgress возвращает прогресс сбора фидбека до порога уникальных
// пользователей для локации
func (s *AggregationService) CollectionProgress(ctx context.Context, lat, lon, radiusMeters float64) (*entity.CollectionProgress, error) {
	if radiusMeters <= 0 {
		radiusMeters = s.cfg.DefaultRadiusMeters
	}

	box := entity.BoundingBoxAround(lat, lon, radiusMeters)
	since := time.Now().AddDate(0, 0, -s.cfg.MaxFeedbackAgeDays)

	feedbacks, err := s.feedbackRepo.GetApprovedNear(ctx, box, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load feedback for progress: %w", err)
	}

	now := time.Now()
	uniqueUsers := countUniqueUsers(feedbacks)
	target := s.cfg.MinUniqueUsers

	progress := float64(uniqueUsers) / float64(target) * 100
	if progress > 100 {
		progress = 100
	}

	remaining := target - uniqueUsers
	if remaining < 0 {
		remaining = 0
	}

	return &entity.CollectionProgress{
		Location: entity.LocationInfo{
			Latitude:     lat,
			Longitude:    lon,
			RadiusMeters: radiusMeters,
		},
		CurrentFeedbacks:   len(feedbacks),
		UniqueUsers:        uniqueUsers,
		TargetUsers:        target,
		ProgressPercentage: round2(progress),
		RemainingNeeded:    remaining,
		Status:             collectionStatus(uniqueUsers, target),
		RecentActivity: entity.RecentActivity{
			Last24Hours: countSince(feedbacks, now.Add(-24*time.Hour)),
			Last7Days:   countSince(feedbacks, now.AddDate(0, 0, -7)),
			Last30Days:  countSince(feedbacks, now.AddDate(0, 0, -30)),
		},
		LastUpdated: now,
	}, nil
}

func (s *AggregationService) emptySummary(lat, lon, radiusMeters float64) *entity.FeedbackSummary {
	return &entity.FeedbackSummary{
		Location: entity.LocationInfo{
			Latitude:     lat,
			Longitude:    lon,
			RadiusMeters: radiusMeters,
		},
		Statistics: entity.RatingStatistics{
			Distribution: ratingDistribution(nil),
		},
		SafetyScore:     0.5, // Нейтральный скор при отсутствии данных
		Recommendations: []string{},
		LastUpdated:     time.Now(),
	}
}

// countOutliers считает оценки, отклоняющиеся от среднего больше чем на
// threshold стандартных отклонений. Меньше трёх оценок - выбросов нет
func (s *AggregationService) countOutliers(ratings []int, mean, stdev float64) int {
	if len(ratings) < 3 || stdev == 0 {
		return 0
	}

	outliers := 0
	for _, r := range ratings {
		if math.Abs(float64(r)-mean) > s.cfg.OutlierThreshold*stdev {
			outliers++
		}
	}
	return outliers
}

func (s *AggregationService) recommendations(feedbacks []entity.Feedback, mean float64, now time.Time) []string {
	recommendations := []string{}

	switch {
	case mean < 4:
		recommendations = append(recommendations, "Low safety rating - consider avoiding this area")
	case mean < 6:
		recommendations = append(recommendations, "Moderate safety rating - exercise caution")
	case mean >= 8:
		recommendations = append(recommendations, "High safety rating - generally safe area")
	}

	recentNegative := 0
	monthAgo := now.AddDate(0, 0, -30)
	for _, fb := range feedbacks {
		if fb.Rating <= 3 && fb.CreatedAt.After(monthAgo) {
			recentNegative++
		}
	}
	if recentNegative > 0 {
		recommendations = append(recommendations,
			fmt.Sprintf("Recent negative feedback (%d reports in last 30 days)", recentNegative))
	}

	if len(feedbacks) < 10 {
		recommendations = append(recommendations, "Limited feedback data - more user input needed")
	}

	return recommendations
}

// weightedSafetyScore - взвешенное среднее оценок, нормированное в 0..1.
// Вес записи = recencyWeight * trustWeight: свежие записи и записи доверенных
// пользователей влияют сильнее
func weightedSafetyScore(feedbacks []entity.Feedback, now time.Time) float64 {
	if len(feedbacks) == 0 {
		return 0.5
	}

	var weightedSum, totalWeight float64
	for _, fb := range feedbacks {
		ageDays := now.Sub(fb.CreatedAt).Hours() / 24

		recencyWeight := math.Max(0.1, 1-ageDays/365)

		trustWeight := 1.0
		if fb.IsTrustedUser {
			trustWeight = 1.5
		}

		weight := recencyWeight * trustWeight
		weightedSum += float64(fb.Rating) * weight
		totalWeight += weight
	}

	if totalWeight == 0 {
		return 0.5
	}

	score := weightedSum / totalWeight / 10.0
	return round3(math.Max(0, math.Min(1, score)))
}

func meanRating(ratings []int) float64 {
	if len(ratings) == 0 {
		return 0
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	return float64(sum) / float64(len(ratings))
}

func medianRating(ratings []int) float64 {
	if len(ratings) == 0 {
		return 0
	}

	sorted := make([]int, len(ratings))
	copy(sorted, ratings)
	sort.Ints(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return float64(sorted[mid-1]+sorted[mid]) / 2
	}
	return float64(sorted[mid])
}

// populationStdDev - стандартное отклонение генеральной совокупности (N в знаменателе)
func populationStdDev(ratings []int, mean float64) float64 {
	if len(ratings) < 2 {
		return 0
	}

	var sumSquares float64
	for _, r := range ratings {
		diff := float64(r) - mean
		sumSquares += diff * diff
	}
	return math.Sqrt(sumSquares / float64(len(ratings)))
}

func minRating(ratings []int) int {
	min := ratings[0]
	for _, r := range ratings[1:] {
		if r < min {
			min = r
		}
	}
	return min
}

func maxRating(ratings []int) int {
	max := ratings[0]
	for _, r := range ratings[1:] {
		if r > max {
			max = r
		}
	}
	return max
}

// ratingDistribution - гистограмма с корзиной на каждую целую оценку 1..10
func ratingDistribution(ratings []int) map[string]int {
	distribution := make(map[string]int, 10)
	for rating := 1; rating <= 10; rating++ {
		distribution[fmt.Sprintf("%d", rating)] = 0
	}
	for _, r := range ratings {
		if r >= 1 && r <= 10 {
			distribution[fmt.Sprintf("%d", r)]++
		}
	}
	return distribution
}

// countUniqueUsers считает различных неанонимных пользователей
func countUniqueUsers(feedbacks []entity.Feedback) int {
	users := make(map[string]struct{})
	for _, fb := range feedbacks {
		if fb.UserID != "" {
			users[fb.UserID] = struct{}{}
		}
	}
	return len(users)
}

func countSince(feedbacks []entity.Feedback, since time.Time) int {
	count := 0
	for _, fb := range feedbacks {
		if fb.CreatedAt.After(since) {
			count++
		}
	}
	return count
}

func trustedUserRatio(feedbacks []entity.Feedback) float64 {
	if len(feedbacks) == 0 {
		return 0
	}
	trusted := 0
	for _, fb := range feedbacks {
		if fb.IsTrustedUser {
			trusted++
		}
	}
	return round2(float64(trusted) / float64(len(feedbacks)))
}

// dataFreshness - скор свежести данных 0..1 по среднему возрасту записей
func dataFreshness(feedbacks []entity.Feedback, now time.Time) float64 {
	if len(feedbacks) == 0 {
		return 0
	}

	var totalAgeDays float64
	for _, fb := range feedbacks {
		totalAgeDays += now.Sub(fb.CreatedAt).Hours() / 24
	}
	avgAgeDays := totalAgeDays / float64(len(feedbacks))

	return round2(math.Max(0, 1-avgAgeDays/365))
}

func collectionStatus(uniqueUsers, target int) string {
	switch {
	case uniqueUsers >= target:
		return "complete"
	case float64(uniqueUsers) >= float64(target)*0.8:
		return "nearly_complete"
	case float64(uniqueUsers) >= float64(target)*0.5:
		return "in_progress"
	case uniqueUsers > 0:
		return "started"
	default:
		return "not_started"
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
