package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"safescore/feedback-service/internal/app/feedback/config"
	"safescore/feedback-service/internal/app/feedback/entity"
	"safescore/feedback-service/internal/app/feedback/infrastructure"
	"safescore/feedback-service/internal/app/feedback/repository"
	"safescore/pkg/logger"
	"safescore/pkg/metrics"
)

const (
	defaultPendingLimit = 50
	maxPendingLimit     = 200
)

// FeedbackService оркестрирует жизненный цикл фидбека: валидацию,
// сохранение, Kafka-события, инвалидацию кеша и адаптацию весов
type FeedbackService struct {
	feedbackRepo repository.FeedbackRepository
	validator    *FeedbackValidator
	publisher    infrastructure.MessagePublisher // Может быть nil, публикация best-effort
	cache        SummaryCache                    // Может быть nil
	adapter      WeightAdapter                   // Может быть nil
	cfg          config.ValidationConfig
}

func NewFeedbackService(
	feedbackRepo repository.FeedbackRepository,
	validator *FeedbackValidator,
	publisher infrastructure.MessagePublisher,
	cache SummaryCache,
	adapter WeightAdapter,
	cfg config.ValidationConfig,
) *FeedbackService {
	return &FeedbackService{
		feedbackRepo: feedbackRepo,
		validator:    validator,
		publisher:    publisher,
		cache:        cache,
		adapter:      adapter,
		cfg:          cfg,
	}
}

// Submit валидирует и сохраняет отправку фидбека.
// Структурно некорректные отправки не сохраняются вовсе; отправки,
// провалившие контентные или rate-limit проверки, сохраняются со статусом
// rejected для аудита. В обоих случаях клиенту возвращается ValidationError
func (s *FeedbackService) Submit(ctx context.Context, req *entity.SubmitFeedbackRequest) (*entity.SubmitFeedbackResponse, error) {
	result, err := s.validator.Validate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if !result.Valid {
		metrics.FeedbackSubmitted.WithLabelValues(string(entity.ApprovalStatusRejected)).Inc()

		if result.Stage != FailureStructural {
			s.persistRejected(ctx, req, result)
		}

		return nil, &ValidationError{Reasons: result.Errors}
	}

	feedback := s.buildFeedback(req, result)

	if err := s.feedbackRepo.Create(ctx, feedback); err != nil {
		return nil, fmt.Errorf("failed to save feedback: %w", err)
	}

	metrics.FeedbackSubmitted.WithLabelValues(string(feedback.ApprovalStatus)).Inc()
	metrics.FeedbackRating.Observe(float64(feedback.Rating))

	s.publishEvent(ctx, entity.EventFeedbackCreated, feedback, "")

	if feedback.ApprovalStatus.IsApproved() {
		s.afterApproval(ctx, feedback)
	}

	message := "Feedback submitted and approved"
	if feedback.ApprovalStatus == entity.ApprovalStatusPending {
		message = "Feedback submitted and pending moderation"
	}

	logger.Info().
		Uint("feedback_id", feedback.ID).
		Str("location_id", feedback.LocationID).
		Str("status", string(feedback.ApprovalStatus)).
		Int("rating", feedback.Rating).
		Msg("Feedback submitted")

	return &entity.SubmitFeedbackResponse{
		ID:             feedback.ID,
		CreatedAt:      feedback.CreatedAt,
		ApprovalStatus: feedback.ApprovalStatus,
		Message:        message,
	}, nil
}

// Approve переводит pending-запись в approved.
// Повторное одобрение уже одобренной записи - идемпотентный no-op,
// одобрение отклонённой записи - конфликт
func (s *FeedbackService) Approve(ctx context.Context, id uint, adminID string) (*entity.Feedback, error) {
	return s.decide(ctx, id, entity.ApprovalStatusApproved, adminID, "")
}

// Reject переводит pending-запись в rejected с указанием причины
func (s *FeedbackService) Reject(ctx context.Context, id uint, adminID, reason string) (*entity.Feedback, error) {
	return s.decide(ctx, id, entity.ApprovalStatusRejected, adminID, reason)
}

func (s *FeedbackService) decide(ctx context.Context, id uint, target entity.ApprovalStatus, adminID, reason string) (*entity.Feedback, error) {
	feedback, err := s.getByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if feedback.ApprovalStatus != entity.ApprovalStatusPending {
		if decisionMatches(feedback.ApprovalStatus, target) {
			return feedback, nil // Идемпотентный повтор того же решения
		}
		return nil, fmt.Errorf("feedback %d is %s: %w", id, feedback.ApprovalStatus, ErrConflictingDecision)
	}

	updated, err := s.feedbackRepo.UpdateApprovalStatus(ctx, id, target, adminID, reason)
	if err != nil {
		return nil, fmt.Errorf("failed to update approval status: %w", err)
	}

	if !updated {
		// Параллельное решение успело раньше, перечитываем итог
		feedback, err = s.getByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if decisionMatches(feedback.ApprovalStatus, target) {
			return feedback, nil
		}
		return nil, fmt.Errorf("feedback %d is %s: %w", id, feedback.ApprovalStatus, ErrConflictingDecision)
	}

	feedback, err = s.getByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if target == entity.ApprovalStatusApproved {
		metrics.AdminDecisions.WithLabelValues("approve").Inc()
		s.publishEvent(ctx, entity.EventFeedbackApproved, feedback, adminID)
		s.afterApproval(ctx, feedback)
	} else {
		metrics.AdminDecisions.WithLabelValues("reject").Inc()
		s.publishEvent(ctx, entity.EventFeedbackRejected, feedback, adminID)
	}

	logger.Info().
		Uint("feedback_id", id).
		Str("admin_id", adminID).
		Str("status", string(feedback.ApprovalStatus)).
		Msg("Feedback moderated")

	return feedback, nil
}

// PendingFeedback возвращает записи, ожидающие ручной модерации
func (s *FeedbackService) PendingFeedback(ctx context.Context, limit int) ([]entity.Feedback, error) {
	if limit <= 0 {
		limit = defaultPendingLimit
	}
	if limit > maxPendingLimit {
		limit = maxPendingLimit
	}

	feedbacks, err := s.feedbackRepo.GetPending(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending feedback: %w", err)
	}
	return feedbacks, nil
}

// Statistics возвращает сводку по статусам и активные правила валидации
func (s *FeedbackService) Statistics(ctx context.Context) (*entity.FeedbackStatistics, error) {
	total, err := s.feedbackRepo.CountAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count feedback: %w", err)
	}

	approved, err := s.feedbackRepo.CountByStatus(ctx, entity.ApprovalStatusApproved, entity.ApprovalStatusAutoApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to count approved feedback: %w", err)
	}

	pending, err := s.feedbackRepo.CountByStatus(ctx, entity.ApprovalStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending feedback: %w", err)
	}

	rejected, err := s.feedbackRepo.CountByStatus(ctx, entity.ApprovalStatusRejected)
	if err != nil {
		return nil, fmt.Errorf("failed to count rejected feedback: %w", err)
	}

	return &entity.FeedbackStatistics{
		TotalFeedback:    total,
		ApprovedFeedback: approved,
		PendingFeedback:  pending,
		RejectedFeedback: rejected,
		ValidationRules: entity.ValidationRules{
			MaxPerUserPerDay:      s.cfg.MaxPerUserPerDay,
			MaxPerLocationPerHour: s.cfg.MaxPerLocationPerHour,
			AutoApproveMinRating:  s.cfg.AutoApproveMinRating,
			AutoApproveMaxRating:  s.cfg.AutoApproveMaxRating,
			TrustedUserThreshold:  s.cfg.TrustedUserThreshold,
		},
	}, nil
}

func (s *FeedbackService) getByID(ctx context.Context, id uint) (*entity.Feedback, error) {
	feedback, err := s.feedbackRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrFeedbackNotFound) {
			return nil, ErrFeedbackNotFound
		}
		return nil, fmt.Errorf("failed to get feedback: %w", err)
	}
	return feedback, nil
}

func (s *FeedbackService) buildFeedback(req *entity.SubmitFeedbackRequest, result *ValidationResult) *entity.Feedback {
	lat, lon := *req.Latitude, *req.Longitude

	placeType := req.PlaceType
	if placeType == "" {
		placeType = "general"
	}
	region := req.Region
	if region == "" {
		region = "Unknown"
	}
	locationName := req.LocationName
	if locationName == "" {
		locationName = fmt.Sprintf("Location at %.4f, %.4f", lat, lon)
	}

	return &entity.Feedback{
		UserID:         req.UserID,
		LocationID:     entity.MakeLocationID(lat, lon),
		LocationName:   locationName,
		Latitude:       lat,
		Longitude:      lon,
		PlaceType:      placeType,
		Region:         region,
		Rating:         *req.Rating,
		Comment:        req.Comment,
		ApprovalStatus: result.Status,
		IsTrustedUser:  result.TrustedUser,
	}
}

// persistRejected сохраняет отклонённую отправку для аудита и трекинга
// злоупотреблений. Ошибка сохранения не меняет ответ клиенту
func (s *FeedbackService) persistRejected(ctx context.Context, req *entity.SubmitFeedbackRequest, result *ValidationResult) {
	feedback := s.buildFeedback(req, result)
	feedback.ValidationErrors = entity.StringList(result.Errors)

	if err := s.feedbackRepo.Create(ctx, feedback); err != nil {
		logger.Warn().Err(err).Msg("Failed to persist rejected feedback")
	}
}

// afterApproval инвалидирует кешированные сводки локации и запускает
// адаптацию весов. Обе операции best-effort
func (s *FeedbackService) afterApproval(ctx context.Context, feedback *entity.Feedback) {
	if s.cache != nil {
		if err := s.cache.InvalidateSummaries(ctx, feedback.Latitude, feedback.Longitude); err != nil {
			logger.Warn().Err(err).
				Str("location_id", feedback.LocationID).
				Msg("Failed to invalidate location summaries")
		}
	}

	if s.adapter != nil {
		if err := s.adapter.AdaptWeights(ctx); err != nil {
			logger.Warn().Err(err).Msg("Failed to adapt scoring weights")
		}
	}
}

func (s *FeedbackService) publishEvent(ctx context.Context, eventType string, feedback *entity.Feedback, actor string) {
	if s.publisher == nil {
		return
	}

	event := entity.FeedbackEvent{
		EventType:  eventType,
		FeedbackID: feedback.ID,
		UserID:     feedback.UserID,
		LocationID: feedback.LocationID,
		Latitude:   feedback.Latitude,
		Longitude:  feedback.Longitude,
		Rating:     feedback.Rating,
		Status:     feedback.ApprovalStatus,
		Actor:      actor,
		Timestamp:  time.Now(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to marshal feedback event")
		return
	}

	// Публикация не должна ломать основную операцию
	if err := s.publisher.PublishMessage(ctx, feedback.LocationID, payload); err != nil {
		logger.Error().Err(err).
			Str("event_type", eventType).
			Uint("feedback_id", feedback.ID).
			Msg("Failed to publish feedback event")
	}
}

// decisionMatches сообщает, соответствует ли текущий статус цели решения.
// auto_approved считается совпадением для approve
func decisionMatches(current, target entity.ApprovalStatus) bool {
	if target == entity.ApprovalStatusApproved {
		return current.IsApproved()
	}
	return current == target
}
