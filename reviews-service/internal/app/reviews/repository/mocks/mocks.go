package mocks

import (
	"context"
	"time"

	"reviewhub/reviews-service/internal/app/reviews/entity"

	"github.com/stretchr/testify/mock"
)

// MockReviewStore мок для ReviewStore
type MockReviewStore struct {
	mock.Mock
}

func (m *MockReviewStore) Snapshot(ctx context.Context) ([]entity.Review, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Review), args.Error(1)
}

func (m *MockReviewStore) Create(ctx context.Context, review *entity.Review) error {
	args := m.Called(ctx, review)
	return args.Error(0)
}

func (m *MockReviewStore) DeleteByUser(ctx context.Context, userID int64) (*entity.Review, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Review), args.Error(1)
}

func (m *MockReviewStore) Like(ctx context.Context, reviewID, userID int64) (entity.LikeResult, error) {
	args := m.Called(ctx, reviewID, userID)
	return args.Get(0).(entity.LikeResult), args.Error(1)
}

func (m *MockReviewStore) Unlike(ctx context.Context, reviewID, userID int64) (entity.LikeResult, error) {
	args := m.Called(ctx, reviewID, userID)
	return args.Get(0).(entity.LikeResult), args.Error(1)
}

// MockUserDirectory мок для UserDirectory
type MockUserDirectory struct {
	mock.Mock
}

func (m *MockUserDirectory) Usernames(ctx context.Context, ids []int64) (map[int64]string, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64]string), args.Error(1)
}

// MockSessionStore мок для SessionStore
type MockSessionStore struct {
	mock.Mock
}

func (m *MockSessionStore) Bind(ctx context.Context, userID int64, ip string, ttl time.Duration) error {
	args := m.Called(ctx, userID, ip, ttl)
	return args.Error(0)
}

func (m *MockSessionStore) Verify(ctx context.Context, userID int64, ip string) (bool, error) {
	args := m.Called(ctx, userID, ip)
	return args.Bool(0), args.Error(1)
}

func (m *MockSessionStore) Close() error {
	args := m.Called()
	return args.Error(0)
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
