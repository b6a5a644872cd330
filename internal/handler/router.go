package handler

import (
	"github.com/SergeiKhy/url-analytics/internal/middleware"
	"github.com/SergeiKhy/url-analytics/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func NewRouter(
	urlService service.URLService,
	analyticsService service.AnalyticsService,
	store Pinger,
	rateLimiter *middleware.RateLimiter,
	apiKey *middleware.APIKey,
	baseURL string,
	logger *zap.Logger,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))

	urlHandler := NewURLHandler(urlService, baseURL, logger)
	analyticsHandler := NewAnalyticsHandler(analyticsService, logger)

	// API v.1
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", HealthCheck(store, logger))

		// Владелец определяется по API ключу; без ключа запрос анонимный
		if apiKey != nil {
			v1.Use(apiKey.Middleware())
		}
		// Лимит на владельца, для анонимных запросов по IP
		if rateLimiter != nil {
			v1.Use(rateLimiter.MiddlewareWithKey(middleware.OwnerKey))
		}

		v1.POST("/urls", urlHandler.CreateURL)
		v1.GET("/urls/:id", urlHandler.GetURL)

		owned := v1.Group("", middleware.RequireOwner())
		{
			owned.GET("/urls/my", urlHandler.ListMyURLs)
			owned.PATCH("/urls/:id", urlHandler.UpdateURL)
			owned.DELETE("/urls/:id", urlHandler.DeleteURL)
			owned.GET("/urls/:id/analytics", analyticsHandler.GetURLAnalytics)
			owned.GET("/analytics/dashboard", analyticsHandler.GetDashboard)
		}
	}

	// Редирект (корневой путь) - без API key проверки
	redirect := router.Group("")
	if rateLimiter != nil {
		redirect.Use(rateLimiter.Middleware())
	}
	redirect.GET("/:code", urlHandler.Redirect)

	return router
}
