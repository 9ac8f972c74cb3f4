package mocks

import (
	"context"
	"time"

	"safescore/feedback-service/internal/app/feedback/entity"

	"github.com/stretchr/testify/mock"
)

// MockFeedbackRepository мок для FeedbackRepository
type MockFeedbackRepository struct {
	mock.Mock
}

func (m *MockFeedbackRepository) Create(ctx context.Context, feedback *entity.Feedback) error {
	args := m.Called(ctx, feedback)
	return args.Error(0)
}

func (m *MockFeedbackRepository) GetByID(ctx context.Context, id uint) (*entity.Feedback, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Feedback), args.Error(1)
}

func (m *MockFeedbackRepository) CountByUserSince(ctx context.Context, userID string, since time.Time) (int64, error) {
	args := m.Called(ctx, userID, since)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockFeedbackRepository) CountNearSince(ctx context.Context, box entity.BoundingBox, since time.Time) (int64, error) {
	args := m.Called(ctx, box, since)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockFeedbackRepository) CountApprovedByUser(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockFeedbackRepository) CountAllByUser(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockFeedbackRepository) GetApprovedNear(ctx context.Context, box entity.BoundingBox, since time.Time) ([]entity.Feedback, error) {
	args := m.Called(ctx, box, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Feedback), args.Error(1)
}

func (m *MockFeedbackRepository) UpdateApprovalStatus(ctx context.Context, id uint, status entity.ApprovalStatus, actor, reason string) (bool, error) {
	args := m.Called(ctx, id, status, actor, reason)
	return args.Bool(0), args.Error(1)
}

func (m *MockFeedbackRepository) GetPending(ctx context.Context, limit int) ([]entity.Feedback, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Feedback), args.Error(1)
}

func (m *MockFeedbackRepository) AverageApprovedRating(ctx context.Context, region, placeType string) (float64, int64, error) {
	args := m.Called(ctx, region, placeType)
	return args.Get(0).(float64), args.Get(1).(int64), args.Error(2)
}

func (m *MockFeedbackRepository) CountByStatus(ctx context.Context, statuses ...entity.ApprovalStatus) (int64, error) {
	callArgs := make([]interface{}, 0, len(statuses)+1)
	callArgs = append(callArgs, ctx)
	for _, s := range statuses {
		callArgs = append(callArgs, s)
	}
	args := m.Called(callArgs...)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockFeedbackRepository) CountAll(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockMessagePublisher мок для Kafka MessagePublisher
type MockMessagePublisher struct {
	mock.Mock
	Messages [][]byte
}

func (m *MockMessagePublisher) PublishMessage(ctx context.Context, key string, value []byte) error {
	m.Messages = append(m.Messages, value)
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockMessagePublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}
