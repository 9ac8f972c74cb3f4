package repository

import (
	"context"
	"time"

	"safescore/feedback-service/internal/app/feedback/entity"
)

// FeedbackRepository определяет методы для работы с записями фидбека в PostgreSQL
type FeedbackRepository interface {
	Create(ctx context.Context, feedback *entity.Feedback) error
	GetByID(ctx context.Context, id uint) (*entity.Feedback, error)

	// Счётчики для rate-лимитов и трекинга доверия
	CountByUserSince(ctx context.Context, userID string, since time.Time) (int64, error)
	CountNearSince(ctx context.Context, box entity.BoundingBox, since time.Time) (int64, error)
	CountApprovedByUser(ctx context.Context, userID string) (int64, error)
	CountAllByUser(ctx context.Context, userID string) (int64, error)

	// Выборка для агрегации: только approved/auto_approved не старше since
	GetApprovedNear(ctx context.Context, box entity.BoundingBox, since time.Time) ([]entity.Feedback, error)

	// UpdateApprovalStatus переводит запись из pending в status.
	// Возвращает false без ошибки, если pending-записи с таким id нет
	UpdateApprovalStatus(ctx context.Context, id uint, status entity.ApprovalStatus, actor, reason string) (bool, error)

	GetPending(ctx context.Context, limit int) ([]entity.Feedback, error)

	// AverageApprovedRating возвращает среднюю одобренную оценку по фильтру
	// регион/тип места вместе с количеством записей
	AverageApprovedRating(ctx context.Context, region, placeType string) (float64, int64, error)

	CountByStatus(ctx context.Context, statuses ...entity.ApprovalStatus) (int64, error)
	CountAll(ctx context.Context) (int64, error)
}
