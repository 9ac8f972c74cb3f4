package service

import (
	"context"
	"fmt"
	"math"
	"sync"

	"safescore/feedback-service/internal/app/feedback/config"
	"safescore/feedback-service/internal/app/feedback/entity"
	"safescore/feedback-service/internal/app/feedback/repository"
	"safescore/pkg/logger"
	"safescore/pkg/metrics"
)

// weightAdjustment - правило адаптации одного веса: прибавка и потолок
type weightAdjustment struct {
	delta float64
	cap   float64
}

// ScoringEngine вычисляет AI-скор безопасности как взвешенную сумму факторов
// и смешивает его с агрегированным фидбек-скором. Таблица весов разделяется
// между HTTP-запросами и фоновой адаптацией, поэтому защищена мьютексом
type ScoringEngine struct {
	feedbackRepo repository.FeedbackRepository
	aggregator   AggregatorInterface
	cfg          config.ScoringConfig

	mu      sync.RWMutex
	weights map[string]float64
}

func NewScoringEngine(
	feedbackRepo repository.FeedbackRepository,
	aggregator AggregatorInterface,
	cfg config.ScoringConfig,
) *ScoringEngine {
	return &ScoringEngine{
		feedbackRepo: feedbackRepo,
		aggregator:   aggregator,
		cfg:          cfg,
		weights:      defaultWeights(),
	}
}

func defaultWeights() map[string]float64 {
	return map[string]float64{
		"transport":            0.10,
		"transport_density":    0.05,
		"lighting":             0.15,
		"visibility":           0.10,
		"natural_surveillance": 0.10,
		"sidewalks":            0.05,
		"businesses":           0.05,
		"police_stations":      0.15,
		"hospitals":            0.10,
		"crime_rate":           0.15,
		"user_feedback":        0.20,
	}
}

// Score вычисляет базовый скор 1..10 по значениям факторов 0..1.
// Неизвестные факторы игнорируются, значения клампятся в 0..1, при
// отсутствии известных факторов возвращается нейтральные 5.0.
// Погодный множитель ослабляет только lighting/visibility, инцидентный -
// только crime_rate; к остальным факторам множители не применяются
func (e *ScoringEngine) Score(features map[string]float64, weatherMultiplier, incidentMultiplier float64) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var weightedSum, totalWeight float64
	for name, value := range features {
		weight, ok := e.weights[name]
		if !ok {
			continue
		}

		value = math.Max(0, math.Min(1, value))

		if weatherMultiplier > 0 && (name == "lighting" || name == "visibility") {
			value *= weatherMultiplier
		}
		if incidentMultiplier > 0 && name == "crime_rate" {
			value *= incidentMultiplier
		}

		weightedSum += value * weight
		totalWeight += weight
	}

	if totalWeight == 0 {
		return 5.0
	}

	score := weightedSum / totalWeight * 10

	return round2(math.Max(1, math.Min(10, score)))
}

// ScoreWithFeedback смешивает AI-скор с фидбек-скором локации.
// При достаточном объёме фидбека итог = aiWeight*AI + feedbackWeight*feedback,
// иначе возвращается чистый AI-скор. Отказ агрегатора деградирует до
// AI-only ответа: устаревший скор лучше отказа всего запроса
func (e *ScoringEngine) ScoreWithFeedback(ctx context.Context, req *entity.ScoreRequest) (*entity.ScoreResponse, error) {
	aiScore := e.Score(req.Features, req.WeatherMultiplier, req.IncidentMultiplier)

	response := &entity.ScoreResponse{
		Score:           aiScore,
		AdjustmentIndex: 1.0,
		Weights:         e.Weights(),
		BlendInfo: entity.BlendInfo{
			Method:        "ai_only_insufficient_feedback",
			AIScore:       aiScore,
			AIScoreWeight: 1.0,
		},
	}

	summary, err := e.aggregator.LocationSummary(ctx, *req.Latitude, *req.Longitude, req.RadiusMeters)
	if err != nil {
		logger.Warn().Err(err).Msg("Location summary unavailable, falling back to AI-only score")
		metrics.ScoreRequests.WithLabelValues("ai_only").Inc()
		return response, nil
	}

	response.BlendInfo.FeedbackCount = summary.FeedbackCount
	response.BlendInfo.UniqueUsers = summary.UniqueUsers
	response.BlendInfo.SufficientFeedback = summary.MeetsThreshold

	if !summary.MeetsThreshold {
		metrics.ScoreRequests.WithLabelValues("ai_only").Inc()
		return response, nil
	}

	// Фидбек-скор хранится в 0..1, переводим в шкалу 1..10 перед смешиванием
	blended := e.cfg.AIScoreWeight*aiScore + e.cfg.FeedbackWeight*summary.SafetyScore*10

	response.Score = round2(math.Max(1, math.Min(10, blended)))
	response.BlendInfo.Method = "blended_ai_user_feedback"
	response.BlendInfo.AIScoreWeight = e.cfg.AIScoreWeight
	response.BlendInfo.FeedbackScore = round3(summary.SafetyScore)
	response.BlendInfo.FeedbackWeight = e.cfg.FeedbackWeight

	metrics.ScoreRequests.WithLabelValues("blended").Inc()
	return response, nil
}

// AdaptWeights подстраивает таблицу весов под средний одобренный рейтинг
// по настроенному региону и типу места. Низкий средний усиливает факторы
// безопасности, высокий - факторы удобства. После сдвигов таблица
// нормализуется к сумме 1.0
func (e *ScoringEngine) AdaptWeights(ctx context.Context) error {
	avg, count, err := e.feedbackRepo.AverageApprovedRating(ctx, e.cfg.AdaptRegion, e.cfg.AdaptPlaceType)
	if err != nil {
		metrics.WeightAdaptations.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to compute average rating: %w", err)
	}

	if count == 0 {
		metrics.WeightAdaptations.WithLabelValues("unchanged").Inc()
		return nil
	}

	var adjustments map[string]weightAdjustment
	switch {
	case avg < 5:
		adjustments = map[string]weightAdjustment{
			"police_stations": {delta: 0.03, cap: 0.25},
			"lighting":        {delta: 0.02, cap: 0.25},
			"visibility":      {delta: 0.02, cap: 0.20},
		}
	case avg > 8:
		adjustments = map[string]weightAdjustment{
			"businesses": {delta: 0.02, cap: 0.15},
			"transport":  {delta: 0.02, cap: 0.20},
		}
	default:
		metrics.WeightAdaptations.WithLabelValues("unchanged").Inc()
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	changed := false
	for name, adj := range adjustments {
		current := e.weights[name]
		adjusted := math.Min(current+adj.delta, adj.cap)
		if adjusted != current {
			e.weights[name] = adjusted
			changed = true
		}
	}

	if !changed {
		metrics.WeightAdaptations.WithLabelValues("unchanged").Inc()
		return nil
	}

	e.normalizeLocked()

	metrics.WeightAdaptations.WithLabelValues("adjusted").Inc()
	logger.Info().
		Float64("average_rating", avg).
		Int64("feedback_count", count).
		Str("region", e.cfg.AdaptRegion).
		Str("place_type", e.cfg.AdaptPlaceType).
		Msg("Scoring weights adapted")

	return nil
}

// Weights возвращает копию текущей таблицы весов
func (e *ScoringEngine) Weights() map[string]float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	weights := make(map[string]float64, len(e.weights))
	for name, weight := range e.weights {
		weights[name] = weight
	}
	return weights
}

// normalizeLocked приводит сумму весов к 1.0. Вызывается под mu
func (e *ScoringEngine) normalizeLocked() {
	var total float64
	for _, weight := range e.weights {
		total += weight
	}
	if total == 0 {
		return
	}
	for name, weight := range e.weights {
		e.weights[name] = weight / total
	}
}
