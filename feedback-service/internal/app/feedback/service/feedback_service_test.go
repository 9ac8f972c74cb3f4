package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"safescore/feedback-service/internal/app/feedback/entity"
	"safescore/feedback-service/internal/app/feedback/repository"
	"safescore/feedback-service/internal/app/feedback/repository/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// mockWeightAdapter - управляемый WeightAdapter для тестов
type mockWeightAdapter struct {
	mock.Mock
}

func (m *mockWeightAdapter) AdaptWeights(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type feedbackServiceFixture struct {
	repo      *mocks.MockFeedbackRepository
	publisher *mocks.MockMessagePublisher
	cache     *mockSummaryCache
	adapter   *mockWeightAdapter
	service   *FeedbackService
}

func newFeedbackServiceFixture(limiter RateLimiter) *feedbackServiceFixture {
	repo := new(mocks.MockFeedbackRepository)
	publisher := &mocks.MockMessagePublisher{Messages: make([][]byte, 0)}
	cache := new(mockSummaryCache)
	adapter := new(mockWeightAdapter)

	cfg := testValidationConfig()
	trust := NewTrustTracker(repo, cfg.TrustedUserThreshold)
	validator := NewFeedbackValidator(repo, limiter, trust, cfg)

	return &feedbackServiceFixture{
		repo:      repo,
		publisher: publisher,
		cache:     cache,
		adapter:   adapter,
		service:   NewFeedbackService(repo, validator, publisher, cache, adapter, cfg),
	}
}

// ===================== Submit Tests =====================

func TestSubmit_AutoApproved(t *testing.T) {
	// Arrange
	f := newFeedbackServiceFixture(&stubLimiter{userCount: 1, locCount: 1})
	ctx := context.Background()

	f.repo.On("CountApprovedByUser", mock.Anything, "user-1").Return(int64(0), nil)
	f.repo.On("Create", mock.Anything, mock.AnythingOfType("*entity.Feedback")).
		Run(func(args mock.Arguments) {
			fb := args.Get(1).(*entity.Feedback)
			fb.ID = 42
			fb.CreatedAt = time.Now()
		}).Return(nil)
	f.publisher.On("PublishMessage", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(nil)
	f.cache.On("InvalidateSummaries", mock.Anything, 13.0827, 80.2707).Return(nil)
	f.adapter.On("AdaptWeights", mock.Anything).Return(nil)

	// Act
	response, err := f.service.Submit(ctx, validSubmitRequest())

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, uint(42), response.ID)
	assert.Equal(t, entity.ApprovalStatusAutoApproved, response.ApprovalStatus)
	assert.Equal(t, "Feedback submitted and approved", response.Message)

	// Событие FEEDBACK_CREATED опубликовано
	assert.Len(t, f.publisher.Messages, 1)
	var event entity.FeedbackEvent
	assert.NoError(t, json.Unmarshal(f.publisher.Messages[0], &event))
	assert.Equal(t, entity.EventFeedbackCreated, event.EventType)
	assert.Equal(t, uint(42), event.FeedbackID)

	f.repo.AssertExpectations(t)
	f.cache.AssertExpectations(t)
	f.adapter.AssertExpectations(t)
}

func TestSubmit_DefaultsApplied(t *testing.T) {
	f := newFeedbackServiceFixture(&stubLimiter{userCount: 1, locCount: 1})

	var created *entity.Feedback
	f.repo.On("CountApprovedByUser", mock.Anything, "user-1").Return(int64(0), nil)
	f.repo.On("Create", mock.Anything, mock.AnythingOfType("*entity.Feedback")).
		Run(func(args mock.Arguments) {
			created = args.Get(1).(*entity.Feedback)
		}).Return(nil)
	f.publisher.On("PublishMessage", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(nil)
	f.cache.On("InvalidateSummaries", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.adapter.On("AdaptWeights", mock.Anything).Return(nil)

	_, err := f.service.Submit(context.Background(), validSubmitRequest())

	assert.NoError(t, err)
	assert.Equal(t, "general", created.PlaceType)
	assert.Equal(t, "Unknown", created.Region)
	assert.Equal(t, "Location at 13.0827, 80.2707", created.LocationName)
	assert.Equal(t, "LOC_13082_80270", created.LocationID)
}

func TestSubmit_Pending_NoCacheInvalidation(t *testing.T) {
	// Экстремальная оценка уходит на модерацию: кеш не трогаем, веса не адаптируем
	f := newFeedbackServiceFixture(&stubLimiter{userCount: 1, locCount: 1})

	f.repo.On("CountApprovedByUser", mock.Anything, "user-1").Return(int64(0), nil)
	f.repo.On("Create", mock.Anything, mock.AnythingOfType("*entity.Feedback")).Return(nil)
	f.publisher.On("PublishMessage", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(nil)

	req := validSubmitRequest()
	req.Rating = ptrInt(10)

	response, err := f.service.Submit(context.Background(), req)

	assert.NoError(t, err)
	assert.Equal(t, entity.ApprovalStatusPending, response.ApprovalStatus)
	assert.Equal(t, "Feedback submitted and pending moderation", response.Message)
	f.cache.AssertNotCalled(t, "InvalidateSummaries")
	f.adapter.AssertNotCalled(t, "AdaptWeights")
}

func TestSubmit_StructuralFailure_NotPersisted(t *testing.T) {
	f := newFeedbackServiceFixture(&stubLimiter{})

	req := validSubmitRequest()
	req.Rating = ptrInt(11)

	response, err := f.service.Submit(context.Background(), req)

	assert.Nil(t, response)
	ve, ok := IsValidationError(err)
	assert.True(t, ok)
	assert.Contains(t, ve.Reasons, "Rating must be between 1 and 10")
	f.repo.AssertNotCalled(t, "Create")
	f.publisher.AssertNotCalled(t, "PublishMessage")
}

func TestSubmit_ContentFailure_PersistedAsRejected(t *testing.T) {
	// Спам-комментарий сохраняется со статусом rejected для аудита
	f := newFeedbackServiceFixture(&stubLimiter{userCount: 1, locCount: 1})

	var created *entity.Feedback
	f.repo.On("Create", mock.Anything, mock.AnythingOfType("*entity.Feedback")).
		Run(func(args mock.Arguments) {
			created = args.Get(1).(*entity.Feedback)
		}).Return(nil)

	req := validSubmitRequest()
	req.Comment = "this is spam"

	response, err := f.service.Submit(context.Background(), req)

	assert.Nil(t, response)
	_, ok := IsValidationError(err)
	assert.True(t, ok)

	assert.Equal(t, entity.ApprovalStatusRejected, created.ApprovalStatus)
	assert.Contains(t, []string(created.ValidationErrors), "Comment contains suspicious content")
}

func TestSubmit_RateLimitFailure_PersistedAsRejected(t *testing.T) {
	f := newFeedbackServiceFixture(&stubLimiter{userCount: 11, locCount: 1})

	var created *entity.Feedback
	f.repo.On("Create", mock.Anything, mock.AnythingOfType("*entity.Feedback")).
		Run(func(args mock.Arguments) {
			created = args.Get(1).(*entity.Feedback)
		}).Return(nil)

	response, err := f.service.Submit(context.Background(), validSubmitRequest())

	assert.Nil(t, response)
	ve, ok := IsValidationError(err)
	assert.True(t, ok)
	assert.Contains(t, ve.Reasons, "Daily feedback limit exceeded (10)")
	assert.Equal(t, entity.ApprovalStatusRejected, created.ApprovalStatus)
}

func TestSubmit_KafkaError_NotFatal(t *testing.T) {
	f := newFeedbackServiceFixture(&stubLimiter{userCount: 1, locCount: 1})

	f.repo.On("CountApprovedByUser", mock.Anything, "user-1").Return(int64(0), nil)
	f.repo.On("Create", mock.Anything, mock.AnythingOfType("*entity.Feedback")).Return(nil)
	f.publisher.On("PublishMessage", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(errors.New("kafka unavailable"))
	f.cache.On("InvalidateSummaries", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.adapter.On("AdaptWeights", mock.Anything).Return(nil)

	response, err := f.service.Submit(context.Background(), validSubmitRequest())

	assert.NoError(t, err)
	assert.NotNil(t, response)
}

func TestSubmit_AdaptWeightsError_NotFatal(t *testing.T) {
	f := newFeedbackServiceFixture(&stubLimiter{userCount: 1, locCount: 1})

	f.repo.On("CountApprovedByUser", mock.Anything, "user-1").Return(int64(0), nil)
	f.repo.On("Create", mock.Anything, mock.AnythingOfType("*entity.Feedback")).Return(nil)
	f.publisher.On("PublishMessage", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(nil)
	f.cache.On("InvalidateSummaries", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.adapter.On("AdaptWeights", mock.Anything).Return(errors.New("db down"))

	response, err := f.service.Submit(context.Background(), validSubmitRequest())

	assert.NoError(t, err)
	assert.NotNil(t, response)
}

func TestSubmit_CreateError(t *testing.T) {
	f := newFeedbackServiceFixture(&stubLimiter{userCount: 1, locCount: 1})

	f.repo.On("CountApprovedByUser", mock.Anything, "user-1").Return(int64(0), nil)
	f.repo.On("Create", mock.Anything, mock.AnythingOfType("*entity.Feedback")).Return(errors.New("db down"))

	response, err := f.service.Submit(context.Background(), validSubmitRequest())

	assert.Error(t, err)
	assert.Nil(t, response)
	_, ok := IsValidationError(err)
	assert.False(t, ok)
}

// ===================== Approve / Reject Tests =====================

func pendingFeedback(id uint) *entity.Feedback {
	return &entity.Feedback{
		ID:             id,
		UserID:         "user-1",
		LocationID:     "LOC_13082_80270",
		Latitude:       13.0827,
		Longitude:      80.2707,
		Rating:         10,
		ApprovalStatus: entity.ApprovalStatusPending,
	}
}

func TestApprove_Success(t *testing.T) {
	// Arrange
	f := newFeedbackServiceFixture(&stubLimiter{})
	ctx := context.Background()

	approved := pendingFeedback(7)
	approved.ApprovalStatus = entity.ApprovalStatusApproved
	approved.ApprovedBy = "admin-1"

	f.repo.On("GetByID", mock.Anything, uint(7)).Return(pendingFeedback(7), nil).Once()
	f.repo.On("UpdateApprovalStatus", mock.Anything, uint(7), entity.ApprovalStatusApproved, "admin-1", "").Return(true, nil)
	f.repo.On("GetByID", mock.Anything, uint(7)).Return(approved, nil).Once()
	f.publisher.On("PublishMessage", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(nil)
	f.cache.On("InvalidateSummaries", mock.Anything, 13.0827, 80.2707).Return(nil)
	f.adapter.On("AdaptWeights", mock.Anything).Return(nil)

	// Act
	result, err := f.service.Approve(ctx, 7, "admin-1")

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, entity.ApprovalStatusApproved, result.ApprovalStatus)

	var event entity.FeedbackEvent
	assert.NoError(t, json.Unmarshal(f.publisher.Messages[0], &event))
	assert.Equal(t, entity.EventFeedbackApproved, event.EventType)
	assert.Equal(t, "admin-1", event.Actor)

	f.repo.AssertExpectations(t)
	f.cache.AssertExpectations(t)
}

func TestApprove_AlreadyApproved_Idempotent(t *testing.T) {
	f := newFeedbackServiceFixture(&stubLimiter{})

	approved := pendingFeedback(7)
	approved.ApprovalStatus = entity.ApprovalStatusApproved

	f.repo.On("GetByID", mock.Anything, uint(7)).Return(approved, nil)

	result, err := f.service.Approve(context.Background(), 7, "admin-2")

	assert.NoError(t, err)
	assert.Equal(t, entity.ApprovalStatusApproved, result.ApprovalStatus)
	f.repo.AssertNotCalled(t, "UpdateApprovalStatus")
	f.publisher.AssertNotCalled(t, "PublishMessage")
}

func TestApprove_AutoApproved_Idempotent(t *testing.T) {
	f := newFeedbackServiceFixture(&stubLimiter{})

	autoApproved := pendingFeedback(7)
	autoApproved.ApprovalStatus = entity.ApprovalStatusAutoApproved

	f.repo.On("GetByID", mock.Anything, uint(7)).Return(autoApproved, nil)

	result, err := f.service.Approve(context.Background(), 7, "admin-1")

	assert.NoError(t, err)
	assert.Equal(t, entity.ApprovalStatusAutoApproved, result.ApprovalStatus)
	f.repo.AssertNotCalled(t, "UpdateApprovalStatus")
}

func TestApprove_AlreadyRejected_Conflict(t *testing.T) {
	f := newFeedbackServiceFixture(&stubLimiter{})

	rejected := pendingFeedback(7)
	rejected.ApprovalStatus = entity.ApprovalStatusRejected

	f.repo.On("GetByID", mock.Anything, uint(7)).Return(rejected, nil)

	result, err := f.service.Approve(context.Background(), 7, "admin-1")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrConflictingDecision)
}

func TestApprove_NotFound(t *testing.T) {
	f := newFeedbackServiceFixture(&stubLimiter{})

	f.repo.On("GetByID", mock.Anything, uint(99)).Return(nil, repository.ErrFeedbackNotFound)

	result, err := f.service.Approve(context.Background(), 99, "admin-1")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrFeedbackNotFound)
}

func TestApprove_ConcurrentDecision_SameTarget(t *testing.T) {
	// Параллельный админ успел одобрить первым: UpdateApprovalStatus вернул false,
	// но итоговый статус совпадает с целевым - идемпотентный успех
	f := newFeedbackServiceFixture(&stubLimiter{})

	approved := pendingFeedback(7)
	approved.ApprovalStatus = entity.ApprovalStatusApproved

	f.repo.On("GetByID", mock.Anything, uint(7)).Return(pendingFeedback(7), nil).Once()
	f.repo.On("UpdateApprovalStatus", mock.Anything, uint(7), entity.ApprovalStatusApproved, "admin-1", "").Return(false, nil)
	f.repo.On("GetByID", mock.Anything, uint(7)).Return(approved, nil).Once()

	result, err := f.service.Approve(context.Background(), 7, "admin-1")

	assert.NoError(t, err)
	assert.Equal(t, entity.ApprovalStatusApproved, result.ApprovalStatus)
	f.publisher.AssertNotCalled(t, "PublishMessage")
}

func TestApprove_ConcurrentDecision_Conflict(t *testing.T) {
	// Параллельный админ отклонил запись, пока мы одобряли
	f := newFeedbackServiceFixture(&stubLimiter{})

	rejected := pendingFeedback(7)
	rejected.ApprovalStatus = entity.ApprovalStatusRejected

	f.repo.On("GetByID", mock.Anything, uint(7)).Return(pendingFeedback(7), nil).Once()
	f.repo.On("UpdateApprovalStatus", mock.Anything, uint(7), entity.ApprovalStatusApproved, "admin-1", "").Return(false, nil)
	f.repo.On("GetByID", mock.Anything, uint(7)).Return(rejected, nil).Once()

	result, err := f.service.Approve(context.Background(), 7, "admin-1")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrConflictingDecision)
}

func TestReject_Success(t *testing.T) {
	f := newFeedbackServiceFixture(&stubLimiter{})

	rejected := pendingFeedback(8)
	rejected.ApprovalStatus = entity.ApprovalStatusRejected
	rejected.RejectionReason = "looks fabricated"

	f.repo.On("GetByID", mock.Anything, uint(8)).Return(pendingFeedback(8), nil).Once()
	f.repo.On("UpdateApprovalStatus", mock.Anything, uint(8), entity.ApprovalStatusRejected, "admin-1", "looks fabricated").Return(true, nil)
	f.repo.On("GetByID", mock.Anything, uint(8)).Return(rejected, nil).Once()
	f.publisher.On("PublishMessage", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(nil)

	result, err := f.service.Reject(context.Background(), 8, "admin-1", "looks fabricated")

	assert.NoError(t, err)
	assert.Equal(t, entity.ApprovalStatusRejected, result.ApprovalStatus)
	// Отклонение не одобряет запись: кеш и веса не трогаем
	f.cache.AssertNotCalled(t, "InvalidateSummaries")
	f.adapter.AssertNotCalled(t, "AdaptWeights")

	var event entity.FeedbackEvent
	assert.NoError(t, json.Unmarshal(f.publisher.Messages[0], &event))
	assert.Equal(t, entity.EventFeedbackRejected, event.EventType)
}

// ===================== PendingFeedback / Statistics Tests =====================

func TestPendingFeedback_DefaultLimit(t *testing.T) {
	f := newFeedbackServiceFixture(&stubLimiter{})

	f.repo.On("GetPending", mock.Anything, 50).Return([]entity.Feedback{*pendingFeedback(1)}, nil)

	feedbacks, err := f.service.PendingFeedback(context.Background(), 0)

	assert.NoError(t, err)
	assert.Len(t, feedbacks, 1)
	f.repo.AssertExpectations(t)
}

func TestPendingFeedback_LimitCapped(t *testing.T) {
	f := newFeedbackServiceFixture(&stubLimiter{})

	f.repo.On("GetPending", mock.Anything, 200).Return([]entity.Feedback{}, nil)

	_, err := f.service.PendingFeedback(context.Background(), 5000)

	assert.NoError(t, err)
	f.repo.AssertExpectations(t)
}

func TestStatistics(t *testing.T) {
	f := newFeedbackServiceFixture(&stubLimiter{})

	f.repo.On("CountAll", mock.Anything).Return(int64(100), nil)
	f.repo.On("CountByStatus", mock.Anything, entity.ApprovalStatusApproved, entity.ApprovalStatusAutoApproved).Return(int64(80), nil)
	f.repo.On("CountByStatus", mock.Anything, entity.ApprovalStatusPending).Return(int64(12), nil)
	f.repo.On("CountByStatus", mock.Anything, entity.ApprovalStatusRejected).Return(int64(8), nil)

	stats, err := f.service.Statistics(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, int64(100), stats.TotalFeedback)
	assert.Equal(t, int64(80), stats.ApprovedFeedback)
	assert.Equal(t, int64(12), stats.PendingFeedback)
	assert.Equal(t, int64(8), stats.RejectedFeedback)
	assert.Equal(t, 10, stats.ValidationRules.MaxPerUserPerDay)
	assert.Equal(t, 3, stats.ValidationRules.TrustedUserThreshold)
}
