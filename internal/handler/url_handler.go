package handler

import (
	"net/http"
	"strconv"

	"github.com/SergeiKhy/url-analytics/internal/middleware"
	"github.com/SergeiKhy/url-analytics/internal/models"
	"github.com/SergeiKhy/url-analytics/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type URLHandler struct {
	service service.URLService
	baseURL string
	logger  *zap.Logger
}

func NewURLHandler(service service.URLService, baseURL string, logger *zap.Logger) *URLHandler {
	return &URLHandler{
		service: service,
		baseURL: baseURL,
		logger:  logger,
	}
}

type CreateURLRequest struct {
	URL         string  `json:"url" binding:"required"`
	CustomCode  *string `json:"custom_code,omitempty"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	ExpiresIn   *int    `json:"expires_in,omitempty"`
}

type UpdateURLRequest struct {
	CustomCode  *string `json:"custom_code,omitempty"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

// URLResponse запись ссылки с полным коротким адресом
type URLResponse struct {
	*models.URL
	ShortURL string `json:"short_url"`
}

type ListURLsResponse struct {
	URLs   []URLResponse `json:"urls"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

func (h *URLHandler) toResponse(link *models.URL) URLResponse {
	return URLResponse{
		URL:      link,
		ShortURL: h.baseURL + "/" + link.ShortCode,
	}
}

// CreateURL godoc
// @Summary Create a short URL
// @Tags urls
// @Accept json
// @Produce json
// @Param request body CreateURLRequest true "URL creation request"
// @Success 201 {object} URLResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/urls [post]
func (h *URLHandler) CreateURL(c *gin.Context) {
	var req CreateURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("Invalid request body", zap.Error(err))
		badRequest(c, err.Error())
		return
	}

	owner, _ := middleware.OwnerFromContext(c)

	input := &models.CreateURLInput{
		OriginalURL: req.URL,
		CustomCode:  req.CustomCode,
		Title:       req.Title,
		Description: req.Description,
		OwnerID:     owner,
		ExpiresIn:   req.ExpiresIn,
	}

	link, err := h.service.CreateURL(c.Request.Context(), input)
	if err != nil {
		respondError(c, h.logger, "create url", err)
		return
	}

	c.JSON(http.StatusCreated, h.toResponse(link))
}

// ListMyURLs godoc
// @Summary List URLs of the calling owner, newest first
// @Tags urls
// @Produce json
// @Param limit query int false "Page size" default(50)
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} ListURLsResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/urls/my [get]
func (h *URLHandler) ListMyURLs(c *gin.Context) {
	owner, _ := middleware.OwnerFromContext(c)

	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		badRequest(c, "limit must be an integer")
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		badRequest(c, "offset must be a non-negative integer")
		return
	}

	limit, offset = service.PageBounds(limit, offset)
	links, err := h.service.ListByOwner(c.Request.Context(), owner, limit, offset)
	if err != nil {
		respondError(c, h.logger, "list urls", err)
		return
	}

	resp := ListURLsResponse{
		URLs:   make([]URLResponse, 0, len(links)),
		Limit:  limit,
		Offset: offset,
	}
	for _, link := range links {
		resp.URLs = append(resp.URLs, h.toResponse(link))
	}

	c.JSON(http.StatusOK, resp)
}

// GetURL godoc
// @Summary Get a URL record by id
// @Tags urls
// @Produce json
// @Param id path string true "URL id"
// @Success 200 {object} URLResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/urls/{id} [get]
func (h *URLHandler) GetURL(c *gin.Context) {
	link, err := h.service.GetURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "get url", err)
		return
	}

	c.JSON(http.StatusOK, h.toResponse(link))
}

// UpdateURL godoc
// @Summary Change the short code, title or description
// @Tags urls
// @Accept json
// @Produce json
// @Param id path string true "URL id"
// @Param request body UpdateURLRequest true "Fields to change"
// @Success 200 {object} URLResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/urls/{id} [patch]
func (h *URLHandler) UpdateURL(c *gin.Context) {
	var req UpdateURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	owner, _ := middleware.OwnerFromContext(c)

	link, err := h.service.UpdateURL(c.Request.Context(), c.Param("id"), owner, &models.UpdateURLInput{
		CustomCode:  req.CustomCode,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		respondError(c, h.logger, "update url", err)
		return
	}

	c.JSON(http.StatusOK, h.toResponse(link))
}

// DeleteURL godoc
// @Summary Delete a URL with its short code
// @Tags urls
// @Produce json
// @Param id path string true "URL id"
// @Success 200 {object} map[string]string
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/urls/{id} [delete]
func (h *URLHandler) DeleteURL(c *gin.Context) {
	owner, _ := middleware.OwnerFromContext(c)

	if err := h.service.DeleteURL(c.Request.Context(), c.Param("id"), owner); err != nil {
		respondError(c, h.logger, "delete url", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "URL deleted successfully"})
}

// Redirect godoc
// @Summary Redirect to original URL
// @Description Redirect to the original URL by short code and count the click
// @Tags urls
// @Param code path string true "Short code"
// @Success 302
// @Failure 404 {object} ErrorResponse
// @Router /{code} [get]
func (h *URLHandler) Redirect(c *gin.Context) {
	code := c.Param("code")

	target, err := h.service.Resolve(c.Request.Context(), code)
	if err != nil {
		respondError(c, h.logger, "resolve short code", err)
		return
	}

	c.Redirect(http.StatusFound, target)
}

func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
