package entity

import (
	"time"
)

// Review - отзыв пользователя. На одного пользователя не больше одного отзыва,
// после создания меняется только множество лайкнувших (LikedBy)
type Review struct {
	ID        int64     `json:"id" bson:"_id"`
	UserID    int64     `json:"user_id" bson:"user_id"`
	Rating    int       `json:"rating" bson:"rating"` // Оценка от 1 до 5
	Comment   string    `json:"comment" bson:"comment"`
	LikedBy   []int64   `json:"-" bson:"liked_by"` // Не содержит UserID автора
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// Likes возвращает количество лайков отзыва
func (r *Review) Likes() int {
	return len(r.LikedBy)
}

// IsLikedBy проверяет, лайкнул ли пользователь отзыв
func (r *Review) IsLikedBy(userID int64) bool {
	for _, id := range r.LikedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// ReviewView - отзыв в том виде, в котором его видит конкретный пользователь
type ReviewView struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	Username     string    `json:"username"`
	Rating       int       `json:"rating"`
	Comment      string    `json:"comment"`
	Likes        int       `json:"likes"`
	UserHasLiked bool      `json:"user_has_liked"`
	TimeAgo      string    `json:"time_ago"`
	CreatedAt    time.Time `json:"created_at"`
}

// AggregateStats вычисляется при каждом чтении и нигде не хранится
type AggregateStats struct {
	AverageRating float64 `json:"average_rating"`
	ReviewsCount  int     `json:"reviews_count"`
}

// ReviewList - результат listReviews, все части получены из одного снимка
type ReviewList struct {
	Reviews  []ReviewView
	Stats    AggregateStats
	MyReview *ReviewView
}

// LikeResult - результат операции like/unlike в хранилище
type LikeResult struct {
	AuthorID int64
	Likes    int
	Changed  bool // false для идемпотентного повтора
}

type SortKey string

const (
	SortNewest    SortKey = "newest"
	SortOldest    SortKey = "oldest"
	SortHighest   SortKey = "highest"
	SortLowest    SortKey = "lowest"
	SortMostLiked SortKey = "most-liked"
)

type LikeDirection string

const (
	LikeDirectionLike   LikeDirection = "like"
	LikeDirectionUnlike LikeDirection = "unlike"
)

// Типы событий в топике review_events
const (
	EventReviewCreated = "REVIEW_CREATED"
	EventReviewDeleted = "REVIEW_DELETED"
	EventReviewLiked   = "REVIEW_LIKED"
	EventReviewUnliked = "REVIEW_UNLIKED"
)

type ReviewEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	ReviewID  int64     `json:"review_id"`
	UserID    int64     `json:"user_id"`  // Автор отзыва
	ActorID   int64     `json:"actor_id"` // Кто выполнил действие
	Rating    int       `json:"rating,omitempty"`
	Likes     int       `json:"likes"`
	Timestamp time.Time `json:"timestamp"`
}
