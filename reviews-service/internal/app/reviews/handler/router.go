package handler

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"reviewhub/pkg/logger"
	"reviewhub/pkg/metrics"
)

// SetupRoutes настраивает все маршруты приложения с использованием Gin
// sessionHandler может быть nil, тогда /api/sessions не регистрируется
func SetupRoutes(reviewHandler *ReviewHandler, sessionHandler *SessionHandler, identity *IdentityMiddleware) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())

	router.Use(logger.GinLoggerMiddleware())

	router.Use(metrics.GinPrometheusMiddleware("reviews-service"))

	// Страница отзывов открывается с основного сайта
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"https://*", "http://*"},
		AllowWildcard:    true,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", logger.RequestIDHeader},
		ExposeHeaders:    []string{logger.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "reviews-service",
		})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")

	reviews := api.Group("/reviews")
	reviews.Use(identity.Identify())
	{
		reviews.GET("", reviewHandler.ListReviews)
		reviews.POST("", reviewHandler.CreateReview)
		reviews.DELETE("/user", reviewHandler.DeleteReview)
		reviews.POST("/:review_id/like", reviewHandler.LikeReview)
		reviews.POST("/:review_id/unlike", reviewHandler.UnlikeReview)
	}

	if sessionHandler != nil {
		api.POST("/sessions", identity.RequireToken(), sessionHandler.BindSession)
	}

	return router
}
