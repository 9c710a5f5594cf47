package handler

import (
	"net/http"
	"time"

	"reviewhub/pkg/logger"
	"reviewhub/reviews-service/internal/app/reviews/entity"
	"reviewhub/reviews-service/internal/app/reviews/repository"

	"github.com/gin-gonic/gin"
)

// SessionHandler привязывает пользователя к IP клиента после входа на основном сайте
type SessionHandler struct {
	sessions repository.SessionStore
	ttl      time.Duration
}

func NewSessionHandler(sessions repository.SessionStore, ttl time.Duration) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		ttl:      ttl,
	}
}

// BindSession POST /api/sessions, пользователь берётся из Bearer токена
func (h *SessionHandler) BindSession(c *gin.Context) {
	userID := c.GetInt64(contextUserID)
	ip := c.ClientIP()

	if err := h.sessions.Bind(c.Request.Context(), userID, ip, h.ttl); err != nil {
		logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to bind session")
		abortWithDetail(c, http.StatusInternalServerError, "Failed to bind session")
		return
	}

	logger.Info().Int64("user_id", userID).Str("ip", ip).Msg("Session bound")
	c.JSON(http.StatusOK, entity.SuccessResponse{Success: true})
}
