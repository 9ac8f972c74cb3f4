package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"safescore/feedback-service/internal/app/feedback/config"
	"safescore/feedback-service/internal/app/feedback/entity"
	"safescore/feedback-service/internal/app/feedback/repository"
	"safescore/pkg/logger"
	"safescore/pkg/metrics"
)

// FailureStage указывает этап пайплайна, на котором отправка была отклонена
type FailureStage string

const (
	FailureNone FailureStage = ""
	// Структурные ошибки: запись невозможно сохранить, не нарушив инварианты модели
	FailureStructural FailureStage = "structural"
	FailureContent    FailureStage = "content"
	FailureRateLimit  FailureStage = "rate_limit"
)

// ValidationResult - итог валидации одной отправки
type ValidationResult struct {
	Valid       bool
	Errors      []string
	Status      entity.ApprovalStatus
	TrustedUser bool // Снимок доверия на момент отправки
	Stage       FailureStage
}

// Шаблоны подозрительного контента: повторы слов, серии знаков препинания,
// известные спам-фразы
var suspiciousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(this\s+is\s+spam|fake\s+review|dummy\s+data)\b`),
	regexp.MustCompile(`(?i)\b(very\s+){4,}`),
	regexp.MustCompile(`[!]{8,}`),
	regexp.MustCompile(`[?]{8,}`),
	regexp.MustCompile(`(?i)\b(click\s+here|buy\s+now|free\s+money)\b`),
}

// FeedbackValidator проверяет отправку по структурным, контентным и
// rate-limit правилам, затем решает статус одобрения
type FeedbackValidator struct {
	feedbackRepo repository.FeedbackRepository
	limiter      RateLimiter
	trust        *TrustTracker
	cfg          config.ValidationConfig
}

func NewFeedbackValidator(
	feedbackRepo repository.FeedbackRepository,
	limiter RateLimiter,
	trust *TrustTracker,
	cfg config.ValidationConfig,
) *FeedbackValidator {
	return &FeedbackValidator{
		feedbackRepo: feedbackRepo,
		limiter:      limiter,
		trust:        trust,
		cfg:          cfg,
	}
}

// Validate прогоняет отправку через пайплайн проверок.
// Структурные проверки прерывают пайплайн с немедленным rejected;
// при успехе всех проверок статус решает отдельный набор правил одобрения
func (v *FeedbackValidator) Validate(ctx context.Context, req *entity.SubmitFeedbackRequest) (*ValidationResult, error) {
	if errs := v.validateRequired(req); len(errs) > 0 {
		return &ValidationResult{Errors: errs, Status: entity.ApprovalStatusRejected, Stage: FailureStructural}, nil
	}

	if errs := v.validateCoordinates(*req.Latitude, *req.Longitude); len(errs) > 0 {
		return &ValidationResult{Errors: errs, Status: entity.ApprovalStatusRejected, Stage: FailureStructural}, nil
	}

	if errs := v.validateRating(*req.Rating); len(errs) > 0 {
		return &ValidationResult{Errors: errs, Status: entity.ApprovalStatusRejected, Stage: FailureStructural}, nil
	}

	if errs := v.validateContent(req.Comment); len(errs) > 0 {
		return &ValidationResult{Errors: errs, Status: entity.ApprovalStatusRejected, Stage: FailureContent}, nil
	}

	errs, err := v.validateRateLimits(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		return &ValidationResult{Errors: errs, Status: entity.ApprovalStatusRejected, Stage: FailureRateLimit}, nil
	}

	trusted, err := v.trust.IsTrusted(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to check user trust: %w", err)
	}

	status, err := v.determineApprovalStatus(ctx, *req.Rating, req.UserID, trusted)
	if err != nil {
		return nil, err
	}

	return &ValidationResult{
		Valid:       true,
		Status:      status,
		TrustedUser: trusted,
	}, nil
}

func (v *FeedbackValidator) validateRequired(req *entity.SubmitFeedbackRequest) []string {
	var missing []string
	if req.Latitude == nil {
		missing = append(missing, "latitude")
	}
	if req.Longitude == nil {
		missing = append(missing, "longitude")
	}
	if req.Rating == nil {
		missing = append(missing, "rating")
	}

	if len(missing) > 0 {
		return []string{"Missing required fields: " + strings.Join(missing, ", ")}
	}
	return nil
}

func (v *FeedbackValidator) validateCoordinates(lat, lon float64) []string {
	if lat < -90.0 || lat > 90.0 {
		return []string{"Latitude must be between -90 and 90 degrees"}
	}
	if lon < -180.0 || lon > 180.0 {
		return []string{"Longitude must be between -180 and 180 degrees"}
	}
	return nil
}

func (v *FeedbackValidator) validateRating(rating int) []string {
	if rating < v.cfg.MinRating || rating > v.cfg.MaxRating {
		return []string{fmt.Sprintf("Rating must be between %d and %d", v.cfg.MinRating, v.cfg.MaxRating)}
	}
	return nil
}

func (v *FeedbackValidator) validateContent(comment string) []string {
	if comment == "" {
		return nil
	}

	if utf8.RuneCountInString(comment) > v.cfg.MaxCommentLength {
		return []string{fmt.Sprintf("Comment is too long (max %d characters)", v.cfg.MaxCommentLength)}
	}

	for _, pattern := range suspiciousPatterns {
		if pattern.MatchString(comment) {
			return []string{"Comment contains suspicious content"}
		}
	}

	return nil
}

// validateRateLimits проверяет оба окна лимитов. Первичный путь - атомарный
// счётчик в Redis; при его недоступности - чтение счётчиков из БД.
// Если недоступны оба источника, отправка отклоняется с ошибкой: лимит -
// жёсткий потолок, и пропуск без проверки его нарушает
func (v *FeedbackValidator) validateRateLimits(ctx context.Context, req *entity.SubmitFeedbackRequest) ([]string, error) {
	now := time.Now()
	lat, lon := *req.Latitude, *req.Longitude

	// Анонимные отправки не ограничиваются дневным лимитом пользователя
	if req.UserID != "" {
		exceeded, err := v.userLimitExceeded(ctx, req.UserID, now)
		if err != nil {
			return nil, fmt.Errorf("user rate limit check failed: %w", err)
		}
		if exceeded {
			metrics.FeedbackRateLimited.WithLabelValues("user_daily").Inc()
			return []string{fmt.Sprintf("Daily feedback limit exceeded (%d)", v.cfg.MaxPerUserPerDay)}, nil
		}
	}

	exceeded, err := v.locationLimitExceeded(ctx, lat, lon, now)
	if err != nil {
		return nil, fmt.Errorf("location rate limit check failed: %w", err)
	}
	if exceeded {
		metrics.FeedbackRateLimited.WithLabelValues("location_hourly").Inc()
		return []string{fmt.Sprintf("Location feedback limit exceeded (%d per hour)", v.cfg.MaxPerLocationPerHour)}, nil
	}

	return nil, nil
}

func (v *FeedbackValidator) userLimitExceeded(ctx context.Context, userID string, now time.Time) (bool, error) {
	count, err := v.limiter.IncrUserDaily(ctx, userID, now)
	if err == nil {
		return count > int64(v.cfg.MaxPerUserPerDay), nil
	}

	logger.Warn().Err(err).Msg("Rate limit counter unavailable, falling back to store counts")

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	stored, dbErr := v.feedbackRepo.CountByUserSince(ctx, userID, midnight)
	if dbErr != nil {
		return false, fmt.Errorf("rate limit fallback failed: %w", dbErr)
	}

	return stored >= int64(v.cfg.MaxPerUserPerDay), nil
}

func (v *FeedbackValidator) locationLimitExceeded(ctx context.Context, lat, lon float64, now time.Time) (bool, error) {
	count, err := v.limiter.IncrLocationHourly(ctx, lat, lon, now)
	if err == nil {
		return count > int64(v.cfg.MaxPerLocationPerHour), nil
	}

	logger.Warn().Err(err).Msg("Rate limit counter unavailable, falling back to store counts")

	// Окно лимита - бокс ±0.001° вокруг точки за последний час
	box := entity.BoundingBox{
		MinLat: lat - 0.001,
		MaxLat: lat + 0.001,
		MinLon: lon - 0.001,
		MaxLon: lon + 0.001,
	}
	stored, dbErr := v.feedbackRepo.CountNearSince(ctx, box, now.Add(-time.Hour))
	if dbErr != nil {
		return false, fmt.Errorf("rate limit fallback failed: %w", dbErr)
	}

	return stored >= int64(v.cfg.MaxPerLocationPerHour), nil
}

// determineApprovalStatus решает статус одобрения структурно валидной отправки.
// Порядок правил: доверенный пользователь, средний диапазон оценок, экстремальные
// оценки, суженный диапазон для новых пользователей, по умолчанию авто-одобрение
func (v *FeedbackValidator) determineApprovalStatus(ctx context.Context, rating int, userID string, trusted bool) (entity.ApprovalStatus, error) {
	if trusted {
		return entity.ApprovalStatusAutoApproved, nil
	}

	if rating >= v.cfg.AutoApproveMinRating && rating <= v.cfg.AutoApproveMaxRating {
		return entity.ApprovalStatusAutoApproved, nil
	}

	// Экстремальные оценки - самый вероятный вектор манипуляции
	if rating == v.cfg.MinRating || rating == v.cfg.MaxRating {
		return entity.ApprovalStatusPending, nil
	}

	isNew, err := v.trust.IsNew(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to check if user is new: %w", err)
	}

	if isNew {
		if rating >= v.cfg.NewUserMinRating && rating <= v.cfg.NewUserMaxRating {
			return entity.ApprovalStatusAutoApproved, nil
		}
		return entity.ApprovalStatusPending, nil
	}

	return entity.ApprovalStatusAutoApproved, nil
}
