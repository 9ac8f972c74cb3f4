package handler

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"safescore/pkg/logger"
	"safescore/pkg/metrics"
)

// SetupRoutes настраивает все маршруты Feedback Service с использованием Gin.
// Публичная часть: отправка фидбека, сводки и скоринг.
// Админская часть защищена JWT и ролью admin
func SetupRoutes(
	feedbackHandler *FeedbackHandler,
	scoreHandler *ScoreHandler,
	adminHandler *AdminHandler,
	authMiddleware *AuthMiddleware,
) *gin.Engine {
	router := gin.New()

	// Recovery middleware для обработки panic
	router.Use(gin.Recovery())

	// JSON logging middleware для HTTP-запросов (ELK Stack)
	router.Use(logger.GinLoggerMiddleware())

	// Prometheus metrics middleware
	router.Use(metrics.GinPrometheusMiddleware("feedback-service"))

	// CORS настройки
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"https://*", "http://*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposeHeaders:    []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "feedback-service",
		})
	})

	// Prometheus metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	feedback := router.Group("/feedback")
	{
		feedback.POST("/", feedbackHandler.SubmitFeedback)
		feedback.GET("/location-summary", feedbackHandler.GetLocationSummary)
		feedback.GET("/collection-progress", feedbackHandler.GetCollectionProgress)
	}

	score := router.Group("/score")
	{
		score.POST("/", scoreHandler.ComputeScore)
		score.GET("/weights", scoreHandler.GetWeights)
	}

	// Админские эндпоинты требуют JWT с ролью admin
	admin := router.Group("/admin/feedback")
	admin.Use(authMiddleware.Authenticate(), authMiddleware.RequireRole("admin"))
	{
		admin.GET("/pending", adminHandler.GetPendingFeedback)
		admin.POST("/:id/approve", adminHandler.ApproveFeedback)
		admin.POST("/:id/reject", adminHandler.RejectFeedback)
		admin.GET("/statistics", adminHandler.GetStatistics)
	}

	return router
}
