package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"reviewhub/pkg/logger"
	"reviewhub/pkg/metrics"
	"reviewhub/reviews-service/internal/app/reviews/entity"
	"reviewhub/reviews-service/internal/app/reviews/repository"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	contextUserID = "user_id"

	// Тело больше этого размера user_id не ищем, handler вернёт ошибку сам
	maxIdentityBodySize = 64 << 10
)

var (
	errNoUserID      = errors.New("user id not provided")
	errInvalidUserID = errors.New("invalid user id")
)

// JWTClaims - claims токена основного сайта
type JWTClaims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// IdentityMiddleware определяет пользователя запроса
// Порядок: Bearer токен, затем user_id из query, затем user_id из JSON тела
type IdentityMiddleware struct {
	jwtSecret string
	sessions  repository.SessionStore // nil, если проверка сессий выключена
}

func NewIdentityMiddleware(jwtSecret string, sessions repository.SessionStore) *IdentityMiddleware {
	return &IdentityMiddleware{
		jwtSecret: jwtSecret,
		sessions:  sessions,
	}
}

// Identify кладет user_id в контекст Gin или прерывает запрос с 401/403
func (m *IdentityMiddleware) Identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenUserID, hasToken, err := m.tokenUserID(c)
		if err != nil {
			abortWithDetail(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		claimedUserID, err := explicitUserID(c)
		hasExplicit := err == nil
		if err != nil && !errors.Is(err, errNoUserID) {
			abortWithDetail(c, http.StatusForbidden, "Invalid user ID")
			return
		}

		switch {
		case hasToken && hasExplicit && tokenUserID != claimedUserID:
			abortWithDetail(c, http.StatusForbidden, "Access denied")
			return
		case hasToken:
			c.Set(contextUserID, tokenUserID)
		case hasExplicit:
			if !m.verifySession(c, claimedUserID) {
				return
			}
			c.Set(contextUserID, claimedUserID)
		default:
			abortWithDetail(c, http.StatusForbidden, "User ID required")
			return
		}

		c.Next()
	}
}

// RequireToken пропускает только запросы с валидным Bearer токеном
func (m *IdentityMiddleware) RequireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, hasToken, err := m.tokenUserID(c)
		if err != nil || !hasToken {
			abortWithDetail(c, http.StatusUnauthorized, "Authorization required")
			return
		}

		c.Set(contextUserID, userID)
		c.Next()
	}
}

func (m *IdentityMiddleware) tokenUserID(c *gin.Context) (int64, bool, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return 0, false, nil
	}

	// Проверяем формат "Bearer <token>"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return 0, false, fmt.Errorf("invalid authorization header format")
	}

	token, err := jwt.ParseWithClaims(parts[1], &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return 0, false, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || claims.UserID <= 0 {
		return 0, false, fmt.Errorf("invalid token claims")
	}

	return claims.UserID, true, nil
}

// verifySession проверяет, что user_id привязан к IP клиента
func (m *IdentityMiddleware) verifySession(c *gin.Context, userID int64) bool {
	if m.sessions == nil {
		return true
	}

	ok, err := m.sessions.Verify(c.Request.Context(), userID, c.ClientIP())
	if err != nil {
		metrics.SessionChecks.WithLabelValues("error").Inc()
		logger.Error().Err(err).Int64("user_id", userID).Msg("Session check failed")
		abortWithDetail(c, http.StatusInternalServerError, "Session check failed")
		return false
	}
	if !ok {
		metrics.SessionChecks.WithLabelValues("denied").Inc()
		abortWithDetail(c, http.StatusForbidden, "Access denied")
		return false
	}

	metrics.SessionChecks.WithLabelValues("allowed").Inc()
	return true
}

// explicitUserID читает user_id из query, а если его нет - из JSON тела
// Тело восстанавливается, чтобы handler мог прочитать его повторно
func explicitUserID(c *gin.Context) (int64, error) {
	if raw, ok := c.GetQuery("user_id"); ok {
		return parseUserID(raw)
	}

	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return 0, errNoUserID
	}

	original := c.Request.Body
	body, err := io.ReadAll(io.LimitReader(original, maxIdentityBodySize))
	c.Request.Body = readCloser{Reader: io.MultiReader(bytes.NewReader(body), original), Closer: original}
	if err != nil {
		return 0, errNoUserID
	}

	var payload struct {
		UserID json.RawMessage `json:"user_id"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.UserID) == 0 || string(payload.UserID) == "null" {
		return 0, errNoUserID
	}

	// Клиент присылает число, но строку "42" тоже принимаем
	return parseUserID(strings.Trim(string(payload.UserID), `"`))
}

type readCloser struct {
	io.Reader
	io.Closer
}

func parseUserID(raw string) (int64, error) {
	if raw == "" {
		return 0, errNoUserID
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidUserID
	}
	return id, nil
}

func abortWithDetail(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, entity.ErrorResponse{Success: false, Detail: detail})
}
