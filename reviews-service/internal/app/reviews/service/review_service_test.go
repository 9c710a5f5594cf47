package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"reviewhub/reviews-service/internal/app/reviews/entity"
	"reviewhub/reviews-service/internal/app/reviews/repository"
	"reviewhub/reviews-service/internal/app/reviews/repository/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)

func newMemoryService(t *testing.T) *ReviewService {
	t.Helper()
	users := repository.NewStaticUserDirectory(map[int64]string{1: "alice", 2: "bob", 3: "carol"})
	svc := NewReviewService(repository.NewMemoryReviewStore(), users, nil)
	svc.now = func() time.Time { return testNow }
	return svc
}

func newMockService() (*ReviewService, *mocks.MockReviewStore, *mocks.MockUserDirectory, *mocks.MockMessagePublisher) {
	store := new(mocks.MockReviewStore)
	users := new(mocks.MockUserDirectory)
	publisher := &mocks.MockMessagePublisher{Messages: make([][]byte, 0)}
	svc := NewReviewService(store, users, publisher)
	svc.now = func() time.Time { return testNow }
	return svc, store, users, publisher
}

// ===================== SubmitReview =====================

func TestSubmitReview_RoundTripEveryRating(t *testing.T) {
	for rating := 1; rating <= 5; rating++ {
		svc := newMemoryService(t)
		ctx := context.Background()

		review, err := svc.SubmitReview(ctx, 1, rating, "комментарий")
		require.NoError(t, err)

		list, err := svc.ListReviews(ctx, "newest", 1)
		require.NoError(t, err)

		require.Len(t, list.Reviews, 1)
		assert.Equal(t, review.ID, list.Reviews[0].ID)
		assert.Equal(t, rating, list.Reviews[0].Rating)
		assert.Equal(t, "комментарий", list.Reviews[0].Comment)
		require.NotNil(t, list.MyReview)
		assert.Equal(t, review.ID, list.MyReview.ID)
		assert.Equal(t, float64(rating), list.Stats.AverageRating)
	}
}

func TestSubmitReview_InvalidRating(t *testing.T) {
	svc := newMemoryService(t)

	for _, rating := range []int{0, 6, -1} {
		_, err := svc.SubmitReview(context.Background(), 1, rating, "")

		assert.ErrorIs(t, err, ErrInvalidArgument)
		assert.Equal(t, MsgInvalidRating, MessageOf(err))
	}
}

func TestSubmitReview_CommentTooLong(t *testing.T) {
	svc := newMemoryService(t)

	comment := make([]rune, entity.MaxCommentLength+1)
	for i := range comment {
		comment[i] = 'ж'
	}

	_, err := svc.SubmitReview(context.Background(), 1, 5, string(comment))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	// Ровно на границе - допустимо, считаются символы, а не байты
	_, err = svc.SubmitReview(context.Background(), 1, 5, string(comment[:entity.MaxCommentLength]))
	assert.NoError(t, err)
}

func TestSubmitReview_Duplicate(t *testing.T) {
	svc := newMemoryService(t)
	ctx := context.Background()

	_, err := svc.SubmitReview(ctx, 1, 4, "первый")
	require.NoError(t, err)

	_, err = svc.SubmitReview(ctx, 1, 2, "второй")
	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.Equal(t, KindAlreadyExists, KindOf(err))
	assert.Equal(t, MsgReviewExists, MessageOf(err))

	list, err := svc.ListReviews(ctx, "", 1)
	require.NoError(t, err)
	require.Len(t, list.Reviews, 1)
	assert.Equal(t, 4, list.Reviews[0].Rating)
}

func TestSubmitReview_PublishesEvent(t *testing.T) {
	svc, store, _, publisher := newMockService()
	ctx := context.Background()

	store.On("Create", ctx, mock.AnythingOfType("*entity.Review")).Return(nil).Run(func(args mock.Arguments) {
		review := args.Get(1).(*entity.Review)
		review.ID = 17
		review.CreatedAt = testNow
	})
	publisher.On("PublishMessage", ctx, "17", mock.Anything).Return(nil)

	review, err := svc.SubmitReview(ctx, 3, 5, "Отлично")

	require.NoError(t, err)
	assert.Equal(t, int64(17), review.ID)
	require.Len(t, publisher.Messages, 1)

	var event entity.ReviewEvent
	require.NoError(t, json.Unmarshal(publisher.Messages[0], &event))
	assert.Equal(t, entity.EventReviewCreated, event.EventType)
	assert.Equal(t, int64(17), event.ReviewID)
	assert.Equal(t, int64(3), event.UserID)
	assert.Equal(t, 5, event.Rating)
	assert.NotEmpty(t, event.EventID)
	publisher.AssertExpectations(t)
}

func TestSubmitReview_KafkaErrorIgnored(t *testing.T) {
	svc, store, _, publisher := newMockService()
	ctx := context.Background()

	store.On("Create", ctx, mock.Anything).Return(nil)
	publisher.On("PublishMessage", ctx, mock.Anything, mock.Anything).Return(errors.New("kafka error"))

	review, err := svc.SubmitReview(ctx, 3, 4, "")

	assert.NoError(t, err)
	assert.NotNil(t, review)
}

func TestSubmitReview_StoreError(t *testing.T) {
	svc, store, _, publisher := newMockService()
	ctx := context.Background()

	store.On("Create", ctx, mock.Anything).Return(errors.New("db error"))

	review, err := svc.SubmitReview(ctx, 3, 4, "")

	assert.Nil(t, review)
	assert.ErrorIs(t, err, ErrUnavailable)
	publisher.AssertNotCalled(t, "PublishMessage", mock.Anything, mock.Anything, mock.Anything)
}

// ===================== DeleteReview =====================

func TestDeleteReview_ThenResubmit(t *testing.T) {
	svc := newMemoryService(t)
	ctx := context.Background()

	_, err := svc.SubmitReview(ctx, 1, 2, "плохо")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteReview(ctx, 1))

	list, err := svc.ListReviews(ctx, "newest", 1)
	require.NoError(t, err)
	assert.Empty(t, list.Reviews)
	assert.Nil(t, list.MyReview)

	_, err = svc.SubmitReview(ctx, 1, 5, "передумал")
	require.NoError(t, err)

	list, err = svc.ListReviews(ctx, "newest", 1)
	require.NoError(t, err)
	require.Len(t, list.Reviews, 1)
	assert.Equal(t, 5, list.Reviews[0].Rating)
}

func TestDeleteReview_NotFound(t *testing.T) {
	svc := newMemoryService(t)

	err := svc.DeleteReview(context.Background(), 1)

	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, MsgReviewNotFound, MessageOf(err))
}

func TestDeleteReview_KeepsAuthorLikesElsewhere(t *testing.T) {
	svc := newMemoryService(t)
	ctx := context.Background()

	first, err := svc.SubmitReview(ctx, 1, 5, "")
	require.NoError(t, err)
	second, err := svc.SubmitReview(ctx, 2, 4, "")
	require.NoError(t, err)

	// 1 лайкает отзыв 2, 2 лайкает отзыв 1
	_, err = svc.ToggleLike(ctx, second.ID, 1, entity.LikeDirectionLike)
	require.NoError(t, err)
	_, err = svc.ToggleLike(ctx, first.ID, 2, entity.LikeDirectionLike)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteReview(ctx, 1))

	list, err := svc.ListReviews(ctx, "newest", 2)
	require.NoError(t, err)
	require.Len(t, list.Reviews, 1)
	assert.Equal(t, second.ID, list.Reviews[0].ID)
	assert.Equal(t, 1, list.Reviews[0].Likes)

	_, err = svc.ToggleLike(ctx, first.ID, 2, entity.LikeDirectionUnlike)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteReview_PublishesEvent(t *testing.T) {
	svc, store, _, publisher := newMockService()
	ctx := context.Background()

	store.On("DeleteByUser", ctx, int64(3)).Return(&entity.Review{ID: 9, UserID: 3, Rating: 2, LikedBy: []int64{1, 2}}, nil)
	publisher.On("PublishMessage", ctx, "9", mock.Anything).Return(nil)

	require.NoError(t, svc.DeleteReview(ctx, 3))

	var event entity.ReviewEvent
	require.Len(t, publisher.Messages, 1)
	require.NoError(t, json.Unmarshal(publisher.Messages[0], &event))
	assert.Equal(t, entity.EventReviewDeleted, event.EventType)
	assert.Equal(t, 2, event.Likes)
}

// ===================== ToggleLike =====================

func TestToggleLike_Idempotent(t *testing.T) {
	svc := newMemoryService(t)
	ctx := context.Background()

	review, err := svc.SubmitReview(ctx, 1, 5, "")
	require.NoError(t, err)

	likes, err := svc.ToggleLike(ctx, review.ID, 2, entity.LikeDirectionLike)
	require.NoError(t, err)
	assert.Equal(t, 1, likes)

	likes, err = svc.ToggleLike(ctx, review.ID, 2, entity.LikeDirectionLike)
	require.NoError(t, err)
	assert.Equal(t, 1, likes)

	list, err := svc.ListReviews(ctx, "newest", 2)
	require.NoError(t, err)
	assert.True(t, list.Reviews[0].UserHasLiked)

	list, err = svc.ListReviews(ctx, "newest", 3)
	require.NoError(t, err)
	assert.False(t, list.Reviews[0].UserHasLiked)
}

func TestToggleLike_LikeUnlikeRoundTrip(t *testing.T) {
	svc := newMemoryService(t)
	ctx := context.Background()

	review, err := svc.SubmitReview(ctx, 1, 5, "")
	require.NoError(t, err)
	_, err = svc.ToggleLike(ctx, review.ID, 3, entity.LikeDirectionLike)
	require.NoError(t, err)

	before, err := svc.ListReviews(ctx, "newest", 2)
	require.NoError(t, err)

	_, err = svc.ToggleLike(ctx, review.ID, 2, entity.LikeDirectionLike)
	require.NoError(t, err)
	likes, err := svc.ToggleLike(ctx, review.ID, 2, entity.LikeDirectionUnlike)
	require.NoError(t, err)
	assert.Equal(t, 1, likes)

	after, err := svc.ListReviews(ctx, "newest", 2)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	// Снятие лайка, которого не было, ничего не меняет
	likes, err = svc.ToggleLike(ctx, review.ID, 2, entity.LikeDirectionUnlike)
	require.NoError(t, err)
	assert.Equal(t, 1, likes)
}

func TestToggleLike_SelfLike(t *testing.T) {
	svc := newMemoryService(t)
	ctx := context.Background()

	review, err := svc.SubmitReview(ctx, 1, 5, "")
	require.NoError(t, err)

	_, err = svc.ToggleLike(ctx, review.ID, 1, entity.LikeDirectionLike)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, MsgSelfLike, MessageOf(err))
}

func TestToggleLike_UnknownReview(t *testing.T) {
	svc := newMemoryService(t)

	_, err := svc.ToggleLike(context.Background(), 404, 1, entity.LikeDirectionLike)

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestToggleLike_NoEventOnNoop(t *testing.T) {
	svc, store, _, publisher := newMockService()
	ctx := context.Background()

	store.On("Like", ctx, int64(5), int64(2)).Return(entity.LikeResult{AuthorID: 1, Likes: 3, Changed: false}, nil)

	likes, err := svc.ToggleLike(ctx, 5, 2, entity.LikeDirectionLike)

	require.NoError(t, err)
	assert.Equal(t, 3, likes)
	assert.Empty(t, publisher.Messages)
}

func TestToggleLike_PublishesUnlikeEvent(t *testing.T) {
	svc, store, _, publisher := newMockService()
	ctx := context.Background()

	store.On("Unlike", ctx, int64(5), int64(2)).Return(entity.LikeResult{AuthorID: 1, Likes: 0, Changed: true}, nil)
	publisher.On("PublishMessage", ctx, "5", mock.Anything).Return(nil)

	_, err := svc.ToggleLike(ctx, 5, 2, entity.LikeDirectionUnlike)
	require.NoError(t, err)

	var event entity.ReviewEvent
	require.Len(t, publisher.Messages, 1)
	require.NoError(t, json.Unmarshal(publisher.Messages[0], &event))
	assert.Equal(t, entity.EventReviewUnliked, event.EventType)
	assert.Equal(t, int64(1), event.UserID)
	assert.Equal(t, int64(2), event.ActorID)
}

func TestToggleLike_UnknownDirection(t *testing.T) {
	svc, _, _, _ := newMockService()

	_, err := svc.ToggleLike(context.Background(), 5, 2, entity.LikeDirection("dislike"))

	assert.ErrorIs(t, err, ErrInvalidArgument)
}

// ===================== ListReviews =====================

func TestListReviews_EmptyStore(t *testing.T) {
	svc := newMemoryService(t)

	list, err := svc.ListReviews(context.Background(), "newest", 1)

	require.NoError(t, err)
	assert.Empty(t, list.Reviews)
	assert.Nil(t, list.MyReview)
	assert.Equal(t, 0.0, list.Stats.AverageRating)
	assert.Equal(t, 0, list.Stats.ReviewsCount)
}

func TestListReviews_AverageRating(t *testing.T) {
	svc := newMemoryService(t)
	ctx := context.Background()

	for i, rating := range []int{5, 3, 4} {
		_, err := svc.SubmitReview(ctx, int64(i+1), rating, "")
		require.NoError(t, err)
	}

	list, err := svc.ListReviews(ctx, "newest", 1)

	require.NoError(t, err)
	assert.Equal(t, 4.0, list.Stats.AverageRating)
	assert.Equal(t, 3, list.Stats.ReviewsCount)
}

func TestListReviews_UnknownSort(t *testing.T) {
	svc := newMemoryService(t)

	_, err := svc.ListReviews(context.Background(), "random", 1)

	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, MsgUnknownSort, MessageOf(err))
}

func TestListReviews_MostLikedTieBreak(t *testing.T) {
	svc := newMemoryService(t)
	ctx := context.Background()

	a, err := svc.SubmitReview(ctx, 1, 3, "A")
	require.NoError(t, err)
	b, err := svc.SubmitReview(ctx, 2, 3, "B")
	require.NoError(t, err)
	c, err := svc.SubmitReview(ctx, 3, 3, "C")
	require.NoError(t, err)

	// A: 2 лайка, B: 0, C: 2
	for _, liker := range []int64{10, 11} {
		_, err = svc.ToggleLike(ctx, a.ID, liker, entity.LikeDirectionLike)
		require.NoError(t, err)
		_, err = svc.ToggleLike(ctx, c.ID, liker, entity.LikeDirectionLike)
		require.NoError(t, err)
	}

	for _, key := range []string{"most-liked", "popular"} {
		list, err := svc.ListReviews(ctx, key, 1)
		require.NoError(t, err)

		ids := make([]int64, 0, len(list.Reviews))
		for _, r := range list.Reviews {
			ids = append(ids, r.ID)
		}
		assert.Equal(t, []int64{a.ID, c.ID, b.ID}, ids)
	}
}

func TestListReviews_SortOrders(t *testing.T) {
	svc, store, users, _ := newMockService()
	ctx := context.Background()

	snapshot := []entity.Review{
		{ID: 1, UserID: 11, Rating: 2, CreatedAt: testNow.Add(-3 * time.Hour)},
		{ID: 2, UserID: 12, Rating: 5, CreatedAt: testNow.Add(-1 * time.Hour)},
		{ID: 3, UserID: 13, Rating: 5, CreatedAt: testNow.Add(-2 * time.Hour)},
		{ID: 4, UserID: 14, Rating: 1, CreatedAt: testNow.Add(-1 * time.Hour)},
	}

	tests := []struct {
		sort     string
		expected []int64
	}{
		{"newest", []int64{2, 4, 3, 1}},
		{"", []int64{2, 4, 3, 1}},
		{"oldest", []int64{1, 3, 2, 4}},
		{"highest", []int64{2, 3, 1, 4}},
		{"lowest", []int64{4, 1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run("sort_"+tt.sort, func(t *testing.T) {
			copied := append([]entity.Review(nil), snapshot...)
			store.On("Snapshot", ctx).Return(copied, nil).Once()
			users.On("Usernames", ctx, mock.Anything).Return(map[int64]string{}, nil).Once()

			list, err := svc.ListReviews(ctx, tt.sort, 0)
			require.NoError(t, err)

			ids := make([]int64, 0, len(list.Reviews))
			for _, r := range list.Reviews {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.expected, ids)
			assert.Nil(t, list.MyReview)
		})
	}
}

func TestListReviews_ViewFields(t *testing.T) {
	svc, store, users, _ := newMockService()
	ctx := context.Background()

	store.On("Snapshot", ctx).Return([]entity.Review{
		{ID: 1, UserID: 11, Rating: 4, Comment: "ok", LikedBy: []int64{12}, CreatedAt: testNow.Add(-5 * time.Minute)},
		{ID: 2, UserID: 12, Rating: 3, LikedBy: []int64{}, CreatedAt: testNow.Add(-2 * time.Hour)},
	}, nil)
	users.On("Usernames", ctx, mock.Anything).Return(map[int64]string{11: "alice"}, nil)

	list, err := svc.ListReviews(ctx, "newest", 12)
	require.NoError(t, err)
	require.Len(t, list.Reviews, 2)

	first := list.Reviews[0]
	assert.Equal(t, "alice", first.Username)
	assert.Equal(t, 1, first.Likes)
	assert.True(t, first.UserHasLiked)
	assert.Equal(t, "5 минут назад", first.TimeAgo)

	second := list.Reviews[1]
	assert.Equal(t, "Пользователь #12", second.Username)
	assert.Equal(t, "2 часа назад", second.TimeAgo)

	require.NotNil(t, list.MyReview)
	assert.Equal(t, int64(2), list.MyReview.ID)
	assert.Equal(t, 3.5, list.Stats.AverageRating)
}

func TestListReviews_StoreError(t *testing.T) {
	svc, store, _, _ := newMockService()
	ctx := context.Background()

	store.On("Snapshot", ctx).Return(nil, errors.New("connection refused"))

	list, err := svc.ListReviews(ctx, "newest", 1)

	assert.Nil(t, list)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestListReviews_DirectoryError(t *testing.T) {
	svc, store, users, _ := newMockService()
	ctx := context.Background()

	store.On("Snapshot", ctx).Return([]entity.Review{{ID: 1, UserID: 11, Rating: 4}}, nil)
	users.On("Usernames", ctx, []int64{11}).Return(nil, errors.New("pg down"))

	list, err := svc.ListReviews(ctx, "newest", 1)

	assert.Nil(t, list)
	assert.ErrorIs(t, err, ErrUnavailable)
}

// ===================== Concurrency =====================

func TestSubmitReview_ConcurrentSameUser(t *testing.T) {
	svc := newMemoryService(t)
	ctx := context.Background()

	const attempts = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.SubmitReview(ctx, 1, 5, "")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if errors.Is(err, ErrAlreadyExists) {
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, conflicts)
}

func TestStats(t *testing.T) {
	svc := newMemoryService(t)
	ctx := context.Background()

	_, err := svc.SubmitReview(ctx, 1, 5, "")
	require.NoError(t, err)
	_, err = svc.SubmitReview(ctx, 2, 4, "")
	require.NoError(t, err)

	stats, err := svc.Stats(ctx)

	require.NoError(t, err)
	assert.Equal(t, entity.AggregateStats{AverageRating: 4.5, ReviewsCount: 2}, stats)
}
