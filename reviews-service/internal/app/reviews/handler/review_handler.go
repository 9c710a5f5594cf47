package handler

import (
	"context"
	"net/http"
	"strconv"

	"reviewhub/reviews-service/internal/app/reviews/entity"
	"reviewhub/reviews-service/internal/app/reviews/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type ReviewServiceInterface interface {
	ListReviews(ctx context.Context, sortKey string, userID int64) (*entity.ReviewList, error)
	SubmitReview(ctx context.Context, userID int64, rating int, comment string) (*entity.Review, error)
	DeleteReview(ctx context.Context, userID int64) error
	ToggleLike(ctx context.Context, reviewID, userID int64, dir entity.LikeDirection) (int, error)
}

type ReviewHandler struct {
	reviewService ReviewServiceInterface
	validator     *validator.Validate
}

func NewReviewHandler(reviewService ReviewServiceInterface) *ReviewHandler {
	return &ReviewHandler{
		reviewService: reviewService,
		validator:     validator.New(),
	}
}

// ListReviews GET /api/reviews?sort=newest
func (h *ReviewHandler) ListReviews(c *gin.Context) {
	userID := c.GetInt64(contextUserID)

	list, err := h.reviewService.ListReviews(c.Request.Context(), c.Query("sort"), userID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, entity.ReviewListResponse{
		Success:       true,
		AverageRating: list.Stats.AverageRating,
		ReviewsCount:  list.Stats.ReviewsCount,
		UserReview:    list.MyReview,
		Reviews:       list.Reviews,
	})
}

// CreateReview POST /api/reviews
func (h *ReviewHandler) CreateReview(c *gin.Context) {
	userID := c.GetInt64(contextUserID)

	var req entity.CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithDetail(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{
			Success: false,
			Detail:  formatValidationError(err),
			Kind:    string(service.KindInvalidArgument),
		})
		return
	}

	if _, err := h.reviewService.SubmitReview(c.Request.Context(), userID, req.Rating, req.Comment); err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, entity.SuccessResponse{Success: true})
}

// DeleteReview DELETE /api/reviews/user - удаляет отзыв текущего пользователя
func (h *ReviewHandler) DeleteReview(c *gin.Context) {
	userID := c.GetInt64(contextUserID)

	if err := h.reviewService.DeleteReview(c.Request.Context(), userID); err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, entity.SuccessResponse{Success: true})
}

// LikeReview POST /api/reviews/:review_id/like
func (h *ReviewHandler) LikeReview(c *gin.Context) {
	h.toggleLike(c, entity.LikeDirectionLike)
}

// UnlikeReview POST /api/reviews/:review_id/unlike
func (h *ReviewHandler) UnlikeReview(c *gin.Context) {
	h.toggleLike(c, entity.LikeDirectionUnlike)
}

func (h *ReviewHandler) toggleLike(c *gin.Context, dir entity.LikeDirection) {
	userID := c.GetInt64(contextUserID)

	reviewID, err := strconv.ParseInt(c.Param("review_id"), 10, 64)
	if err != nil || reviewID <= 0 {
		abortWithDetail(c, http.StatusBadRequest, "Invalid review ID")
		return
	}

	likes, err := h.reviewService.ToggleLike(c.Request.Context(), reviewID, userID, dir)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, entity.LikeResponse{Success: true, Likes: likes})
}

// writeServiceError переводит класс ошибки сервиса в HTTP статус
func writeServiceError(c *gin.Context, err error) {
	kind := service.KindOf(err)

	status := http.StatusInternalServerError
	switch kind {
	case service.KindInvalidArgument:
		status = http.StatusBadRequest
	case service.KindAlreadyExists:
		status = http.StatusConflict
	case service.KindNotFound:
		status = http.StatusNotFound
	}

	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}

	c.JSON(status, entity.ErrorResponse{
		Success: false,
		Detail:  service.MessageOf(err),
		Kind:    string(kind),
	})
}

func formatValidationError(err error) string {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, fieldError := range validationErrors {
			switch fieldError.Field() {
			case "Rating":
				return service.MsgInvalidRating
			case "Comment":
				return service.MsgCommentTooLong
			}
			return fieldError.Field() + " is " + fieldError.Tag()
		}
	}
	return "Validation failed"
}
