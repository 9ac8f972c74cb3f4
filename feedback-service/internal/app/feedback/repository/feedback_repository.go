package repository

import (
	"context"
	"errors"
	"time"

	"safescore/feedback-service/internal/app/feedback/entity"
	"safescore/pkg/metrics"

	"gorm.io/gorm"
)

const serviceName = "feedback-service"

var (
	// Стандартные ошибки репозитория для обработки в service layer
	ErrFeedbackNotFound = errors.New("feedback not found")
)

type feedbackRepository struct {
	db *gorm.DB // GORM DB для работы с PostgreSQL
}

// NewFeedbackRepository создает новый репозиторий фидбека
func NewFeedbackRepository(db *gorm.DB) FeedbackRepository {
	return &feedbackRepository{db: db}
}

// Create создает новую запись фидбека в PostgreSQL
func (r *feedbackRepository) Create(ctx context.Context, feedback *entity.Feedback) error {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpInsert, feedback.TableName())
	defer timer.ObserveDuration()

	result := r.db.WithContext(ctx).Create(feedback)
	if result.Error != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpInsert)
		return result.Error
	}

	return nil
}

// GetByID получает запись фидбека по ID
func (r *feedbackRepository) GetByID(ctx context.Context, id uint) (*entity.Feedback, error) {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpSelect, entity.Feedback{}.TableName())
	defer timer.ObserveDuration()

	var feedback entity.Feedback
	result := r.db.WithContext(ctx).First(&feedback, "id = ?", id)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrFeedbackNotFound
		}
		metrics.RecordDbError(serviceName, metrics.DbOpSelect)
		return nil, result.Error
	}

	return &feedback, nil
}

// CountByUserSince считает записи пользователя начиная с since (любой статус).
// Используется дневным rate-лимитом при недоступности Redis
func (r *feedbackRepository) CountByUserSince(ctx context.Context, userID string, since time.Time) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).
		Model(&entity.Feedback{}).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Count(&count)

	if result.Error != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpSelect)
		return 0, result.Error
	}

	return count, nil
}

// CountNearSince считает записи внутри bounding box начиная с since (любой статус)
func (r *feedbackRepository) CountNearSince(ctx context.Context, box entity.BoundingBox, since time.Time) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).
		Model(&entity.Feedback{}).
		Where("latitude BETWEEN ? AND ?", box.MinLat, box.MaxLat).
		Where("longitude BETWEEN ? AND ?", box.MinLon, box.MaxLon).
		Where("created_at >= ?", since).
		Count(&count)

	if result.Error != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpSelect)
		return 0, result.Error
	}

	return count, nil
}

// CountApprovedByUser считает одобренные записи пользователя (статус доверия)
func (r *feedbackRepository) CountApprovedByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).
		Model(&entity.Feedback{}).
		Where("user_id = ?", userID).
		Where("approval_status IN ?", []entity.ApprovalStatus{entity.ApprovalStatusApproved, entity.ApprovalStatusAutoApproved}).
		Count(&count)

	if result.Error != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpSelect)
		return 0, result.Error
	}

	return count, nil
}

// CountAllByUser считает все записи пользователя независимо от статуса
func (r *feedbackRepository) CountAllByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).
		Model(&entity.Feedback{}).
		Where("user_id = ?", userID).
		Count(&count)

	if result.Error != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpSelect)
		return 0, result.Error
	}

	return count, nil
}

// GetApprovedNear получает одобренные записи внутри bounding box не старше since.
// Использует составной индекс idx_feedback_coords
func (r *feedbackRepository) GetApprovedNear(ctx context.Context, box entity.BoundingBox, since time.Time) ([]entity.Feedback, error) {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpSelect, entity.Feedback{}.TableName())
	defer timer.ObserveDuration()

	var feedbacks []entity.Feedback
	result := r.db.WithContext(ctx).
		Where("approval_status IN ?", []entity.ApprovalStatus{entity.ApprovalStatusApproved, entity.ApprovalStatusAutoApproved}).
		Where("latitude BETWEEN ? AND ?", box.MinLat, box.MaxLat).
		Where("longitude BETWEEN ? AND ?", box.MinLon, box.MaxLon).
		Where("created_at >= ?", since).
		Order("created_at DESC").
		Find(&feedbacks)

	if result.Error != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpSelect)
		return nil, result.Error
	}

	return feedbacks, nil
}

// UpdateApprovalStatus переводит pending-запись в status с заполнением аудит-полей.
// Условие approval_status='pending' в WHERE закрывает гонку двух одновременных
// решений по одной записи на уровне БД
func (r *feedbackRepository) UpdateApprovalStatus(ctx context.Context, id uint, status entity.ApprovalStatus, actor, reason string) (bool, error) {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpUpdate, entity.Feedback{}.TableName())
	defer timer.ObserveDuration()

	now := time.Now()
	updates := map[string]interface{}{
		"approval_status": status,
		"updated_at":      now,
	}

	switch status {
	case entity.ApprovalStatusApproved:
		updates["approved_by"] = actor
		updates["approved_at"] = now
	case entity.ApprovalStatusRejected:
		updates["rejected_by"] = actor
		updates["rejected_at"] = now
		updates["rejection_reason"] = reason
	}

	result := r.db.WithContext(ctx).
		Model(&entity.Feedback{}).
		Where("id = ? AND approval_status = ?", id, entity.ApprovalStatusPending).
		Updates(updates)

	if result.Error != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpUpdate)
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

// GetPending получает записи, ожидающие ручной модерации
func (r *feedbackRepository) GetPending(ctx context.Context, limit int) ([]entity.Feedback, error) {
	var feedbacks []entity.Feedback
	result := r.db.WithContext(ctx).
		Where("approval_status = ?", entity.ApprovalStatusPending).
		Order("created_at DESC").
		Limit(limit).
		Find(&feedbacks)

	if result.Error != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpSelect)
		return nil, result.Error
	}

	return feedbacks, nil
}

// AverageApprovedRating возвращает среднюю одобренную оценку по региону и типу места
func (r *feedbackRepository) AverageApprovedRating(ctx context.Context, region, placeType string) (float64, int64, error) {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpSelect, entity.Feedback{}.TableName())
	defer timer.ObserveDuration()

	var row struct {
		Avg   *float64
		Count int64
	}

	result := r.db.WithContext(ctx).
		Model(&entity.Feedback{}).
		Select("AVG(rating) as avg, COUNT(*) as count").
		Where("approval_status IN ?", []entity.ApprovalStatus{entity.ApprovalStatusApproved, entity.ApprovalStatusAutoApproved}).
		Where("LOWER(region) = LOWER(?)", region).
		Where("place_type ILIKE ?", "%"+placeType+"%").
		Scan(&row)

	if result.Error != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpSelect)
		return 0, 0, result.Error
	}

	if row.Avg == nil {
		return 0, 0, nil
	}

	return *row.Avg, row.Count, nil
}

// CountByStatus считает записи с одним из перечисленных статусов
func (r *feedbackRepository) CountByStatus(ctx context.Context, statuses ...entity.ApprovalStatus) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).
		Model(&entity.Feedback{}).
		Where("approval_status IN ?", statuses).
		Count(&count)

	if result.Error != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpSelect)
		return 0, result.Error
	}

	return count, nil
}

// CountAll считает все записи фидбека
func (r *feedbackRepository) CountAll(ctx context.Context) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&entity.Feedback{}).Count(&count)

	if result.Error != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpSelect)
		return 0, result.Error
	}

	return count, nil
}
