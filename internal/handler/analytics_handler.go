package handler

import (
	"net/http"

	"github.com/SergeiKhy/url-analytics/internal/middleware"
	"github.com/SergeiKhy/url-analytics/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AnalyticsHandler struct {
	service service.AnalyticsService
	logger  *zap.Logger
}

func NewAnalyticsHandler(service service.AnalyticsService, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		service: service,
		logger:  logger,
	}
}

// GetURLAnalytics godoc
// @Summary Daily visits and lifetime clicks of one URL
// @Tags analytics
// @Produce json
// @Param id path string true "URL id"
// @Success 200 {object} models.URLAnalytics
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/urls/{id}/analytics [get]
func (h *AnalyticsHandler) GetURLAnalytics(c *gin.Context) {
	owner, _ := middleware.OwnerFromContext(c)

	analytics, err := h.service.GetURLAnalytics(c.Request.Context(), c.Param("id"), owner)
	if err != nil {
		respondError(c, h.logger, "get url analytics", err)
		return
	}

	c.JSON(http.StatusOK, analytics)
}

// GetDashboard godoc
// @Summary Dashboard of the calling owner
// @Tags analytics
// @Produce json
// @Success 200 {object} models.Dashboard
// @Failure 401 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/analytics/dashboard [get]
func (h *AnalyticsHandler) GetDashboard(c *gin.Context) {
	owner, _ := middleware.OwnerFromContext(c)

	dashboard, err := h.service.GetUserDashboard(c.Request.Context(), owner)
	if err != nil {
		respondError(c, h.logger, "build dashboard", err)
		return
	}

	c.JSON(http.StatusOK, dashboard)
}
