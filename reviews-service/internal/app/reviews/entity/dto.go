package entity

// MaxCommentLength - ограничение длины комментария в символах
const MaxCommentLength = 1000

// CreateReviewRequest - запрос на создание отзыва
// user_id из тела разбирается identity middleware
type CreateReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=1000"`
}

// ErrorResponse - ответ об ошибке, detail показывается клиенту как есть
type ErrorResponse struct {
	Success bool   `json:"success"`
	Detail  string `json:"detail"`
	Kind    string `json:"kind,omitempty"`
}

// SuccessResponse - стандартный ответ об успехе
type SuccessResponse struct {
	Success bool `json:"success"`
}

// LikeResponse - ответ на like/unlike с актуальным числом лайков
type LikeResponse struct {
	Success bool `json:"success"`
	Likes   int  `json:"likes"`
}

// ReviewListResponse - ответ GET /api/reviews
type ReviewListResponse struct {
	Success       bool         `json:"success"`
	AverageRating float64      `json:"average_rating"`
	ReviewsCount  int          `json:"reviews_count"`
	UserReview    *ReviewView  `json:"user_review"`
	Reviews       []ReviewView `json:"reviews"`
}
