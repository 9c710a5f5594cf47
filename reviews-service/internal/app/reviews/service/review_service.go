package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"reviewhub/pkg/logger"
	"reviewhub/pkg/metrics"
	"reviewhub/reviews-service/internal/app/reviews/entity"
	"reviewhub/reviews-service/internal/app/reviews/infrastructure"
	"reviewhub/reviews-service/internal/app/reviews/repository"

	"github.com/google/uuid"
)

// ReviewService обрабатывает бизнес-логику отзывов
// Координирует хранилище, справочник пользователей и Kafka
type ReviewService struct {
	store     repository.ReviewStore
	users     repository.UserDirectory
	publisher infrastructure.MessagePublisher // nil, если Kafka выключена
	now       func() time.Time
}

// NewReviewService создает новый сервис отзывов с внедрением зависимостей
func NewReviewService(
	store repository.ReviewStore,
	users repository.UserDirectory,
	publisher infrastructure.MessagePublisher,
) *ReviewService {
	return &ReviewService{
		store:     store,
		users:     users,
		publisher: publisher,
		now:       time.Now,
	}
}

// ListReviews возвращает отсортированный список, статистику и отзыв самого пользователя
// Все три части строятся из одного снимка хранилища
func (s *ReviewService) ListReviews(ctx context.Context, sortKey string, userID int64) (*entity.ReviewList, error) {
	key, err := ParseSortKey(sortKey)
	if err != nil {
		return nil, err
	}

	reviews, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, s.storeError(err)
	}

	stats := computeStats(reviews)
	sortReviews(reviews, key)

	names, err := s.usernames(ctx, reviews)
	if err != nil {
		return nil, err
	}

	now := s.now()
	list := &entity.ReviewList{
		Reviews: make([]entity.ReviewView, 0, len(reviews)),
		Stats:   stats,
	}

	for i := range reviews {
		view := buildView(&reviews[i], userID, names, now)
		list.Reviews = append(list.Reviews, view)
		if userID > 0 && reviews[i].UserID == userID {
			mine := view
			list.MyReview = &mine
		}
	}

	return list, nil
}

// SubmitReview создает отзыв пользователя
// 1. Проверяет рейтинг и длину комментария
// 2. Сохраняет отзыв, второй отзыв того же пользователя отклоняется
// 3. Отправляет событие REVIEW_CREATED в Kafka
func (s *ReviewService) SubmitReview(ctx context.Context, userID int64, rating int, comment string) (*entity.Review, error) {
	if userID <= 0 {
		return nil, newError(KindInvalidArgument, MsgInvalidUserID, nil)
	}
	if rating < 1 || rating > 5 {
		return nil, newError(KindInvalidArgument, MsgInvalidRating, nil)
	}
	if utf8.RuneCountInString(comment) > entity.MaxCommentLength {
		return nil, newError(KindInvalidArgument, MsgCommentTooLong, nil)
	}

	review := &entity.Review{
		UserID:  userID,
		Rating:  rating,
		Comment: comment,
	}

	if err := s.store.Create(ctx, review); err != nil {
		if errors.Is(err, repository.ErrReviewExists) {
			return nil, newError(KindAlreadyExists, MsgReviewExists, err)
		}
		return nil, s.storeError(err)
	}

	metrics.ReviewsCreated.Inc()
	metrics.ReviewsRating.Observe(float64(rating))

	logger.Info().
		Int64("review_id", review.ID).
		Int64("user_id", userID).
		Int("rating", rating).
		Msg("Review created")

	s.publishEvent(ctx, entity.ReviewEvent{
		EventType: entity.EventReviewCreated,
		ReviewID:  review.ID,
		UserID:    userID,
		ActorID:   userID,
		Rating:    rating,
	})

	return review, nil
}

// DeleteReview удаляет отзыв пользователя вместе со всеми лайками на нем
// Лайки самого пользователя на чужих отзывах остаются
func (s *ReviewService) DeleteReview(ctx context.Context, userID int64) error {
	deleted, err := s.store.DeleteByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrReviewNotFound) {
			return newError(KindNotFound, MsgReviewNotFound, err)
		}
		return s.storeError(err)
	}

	metrics.ReviewsDeleted.Inc()

	logger.Info().
		Int64("review_id", deleted.ID).
		Int64("user_id", userID).
		Msg("Review deleted")

	s.publishEvent(ctx, entity.ReviewEvent{
		EventType: entity.EventReviewDeleted,
		ReviewID:  deleted.ID,
		UserID:    userID,
		ActorID:   userID,
		Rating:    deleted.Rating,
		Likes:     deleted.Likes(),
	})

	return nil
}

// ToggleLike ставит или снимает лайк и возвращает актуальное число лайков
// Повторный like/unlike ничего не меняет и не считается ошибкой
func (s *ReviewService) ToggleLike(ctx context.Context, reviewID, userID int64, dir entity.LikeDirection) (int, error) {
	var (
		result entity.LikeResult
		err    error
	)

	switch dir {
	case entity.LikeDirectionLike:
		result, err = s.store.Like(ctx, reviewID, userID)
	case entity.LikeDirectionUnlike:
		result, err = s.store.Unlike(ctx, reviewID, userID)
	default:
		return 0, newError(KindInvalidArgument, fmt.Sprintf("Неизвестное действие: %s", dir), nil)
	}

	if err != nil {
		switch {
		case errors.Is(err, repository.ErrReviewNotFound):
			return 0, newError(KindNotFound, MsgReviewNotFound, err)
		case errors.Is(err, repository.ErrSelfLike):
			return 0, newError(KindInvalidArgument, MsgSelfLike, err)
		default:
			return 0, s.storeError(err)
		}
	}

	if !result.Changed {
		return result.Likes, nil
	}

	metrics.ReviewsLikes.WithLabelValues(string(dir)).Inc()

	eventType := entity.EventReviewLiked
	if dir == entity.LikeDirectionUnlike {
		eventType = entity.EventReviewUnliked
	}

	s.publishEvent(ctx, entity.ReviewEvent{
		EventType: eventType,
		ReviewID:  reviewID,
		UserID:    result.AuthorID,
		ActorID:   userID,
		Likes:     result.Likes,
	})

	return result.Likes, nil
}

// Stats считает агрегаты по текущему набору отзывов
func (s *ReviewService) Stats(ctx context.Context) (entity.AggregateStats, error) {
	reviews, err := s.store.Snapshot(ctx)
	if err != nil {
		return entity.AggregateStats{}, s.storeError(err)
	}
	return computeStats(reviews), nil
}

func (s *ReviewService) usernames(ctx context.Context, reviews []entity.Review) (map[int64]string, error) {
	ids := make([]int64, 0, len(reviews))
	for _, r := range reviews {
		ids = append(ids, r.UserID)
	}

	names, err := s.users.Usernames(ctx, ids)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to resolve usernames")
		return nil, newError(KindUnavailable, MsgStoreUnavailable, err)
	}
	return names, nil
}

func buildView(r *entity.Review, userID int64, names map[int64]string, now time.Time) entity.ReviewView {
	username, ok := names[r.UserID]
	if !ok || username == "" {
		username = "Пользователь #" + strconv.FormatInt(r.UserID, 10)
	}

	return entity.ReviewView{
		ID:           r.ID,
		UserID:       r.UserID,
		Username:     username,
		Rating:       r.Rating,
		Comment:      r.Comment,
		Likes:        r.Likes(),
		UserHasLiked: userID > 0 && r.IsLikedBy(userID),
		TimeAgo:      FormatTimeAgo(r.CreatedAt, now),
		CreatedAt:    r.CreatedAt,
	}
}

func (s *ReviewService) storeError(err error) error {
	// Отмену запроса клиентом не логируем как сбой хранилища
	if !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("Review store failure")
	}
	return newError(KindUnavailable, MsgStoreUnavailable, err)
}

// publishEvent отправляет событие после коммита
// Ошибка Kafka логируется, но не прерывает выполнение: изменение уже сохранено
func (s *ReviewService) publishEvent(ctx context.Context, event entity.ReviewEvent) {
	if s.publisher == nil {
		return
	}

	event.EventID = uuid.NewString()
	event.Timestamp = s.now().UTC()

	payload, err := json.Marshal(event)
	if err != nil {
		logger.Error().Err(err).Str("event_type", event.EventType).Msg("Failed to marshal review event")
		return
	}

	key := strconv.FormatInt(event.ReviewID, 10)
	if err := s.publisher.PublishMessage(ctx, key, payload); err != nil {
		logger.Warn().
			Err(err).
			Str("event_type", event.EventType).
			Int64("review_id", event.ReviewID).
			Msg("Failed to publish review event")
	}
}
