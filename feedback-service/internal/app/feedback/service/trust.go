package service

import (
	"context"
	"fmt"

	"safescore/feedback-service/internal/app/feedback/repository"
)

// TrustTracker определяет доверие к пользователю по истории его записей.
// Оба метода - прямые чтения из хранилища без кеширования: снимок доверия
// фиксируется на записи в момент отправки и дальше не пересчитывается
type TrustTracker struct {
	feedbackRepo repository.FeedbackRepository
	threshold    int // Одобренных записей для статуса доверенного
}

func NewTrustTracker(feedbackRepo repository.FeedbackRepository, threshold int) *TrustTracker {
	return &TrustTracker{
		feedbackRepo: feedbackRepo,
		threshold:    threshold,
	}
}

// IsTrusted возвращает true, если у пользователя не меньше threshold записей
// со статусом approved/auto_approved. Анонимные отправки не бывают доверенными
func (t *TrustTracker) IsTrusted(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}

	count, err := t.feedbackRepo.CountApprovedByUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to count approved feedback: %w", err)
	}

	return count >= int64(t.threshold), nil
}

// IsNew возвращает true, если у пользователя меньше threshold записей любого
// статуса. Пустой userID считается новым пользователем
func (t *TrustTracker) IsNew(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return true, nil
	}

	count, err := t.feedbackRepo.CountAllByUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to count feedback: %w", err)
	}

	return count < int64(t.threshold), nil
}
