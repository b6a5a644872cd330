package handler

import (
	"errors"
	"net/http"

	"github.com/SergeiKhy/url-analytics/internal/repository"
	"github.com/SergeiKhy/url-analytics/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// errorMapping соответствие ошибок ядра HTTP ответам
var errorMapping = []struct {
	err     error
	status  int
	code    string
	message string
}{
	{repository.ErrNotFound, http.StatusNotFound, "not_found", "URL not found"},
	{repository.ErrCodeConflict, http.StatusConflict, "code_conflict", "Short code is already taken"},
	{service.ErrForbidden, http.StatusForbidden, "forbidden", "URL belongs to another owner"},
	{service.ErrInvalidURL, http.StatusBadRequest, "invalid_url", "Invalid URL format"},
	{service.ErrInvalidCode, http.StatusBadRequest, "invalid_code", "Custom code must be 3-50 characters: letters, digits, _ or -"},
	{service.ErrSpamDomain, http.StatusBadRequest, "spam_domain", "Domain is blacklisted"},
	{service.ErrInvalidInput, http.StatusBadRequest, "invalid_request", ""},
	{repository.ErrStoreFailure, http.StatusServiceUnavailable, "store_unavailable", "Storage is temporarily unavailable"},
}

// respondError пишет ответ для ошибки сервиса. Отказы хранилища и
// неизвестные ошибки логируются как ошибки, бизнес-исходы только на debug.
func respondError(c *gin.Context, logger *zap.Logger, action string, err error) {
	for _, m := range errorMapping {
		if !errors.Is(err, m.err) {
			continue
		}

		message := m.message
		if message == "" {
			message = err.Error()
		}

		if m.status >= http.StatusInternalServerError {
			logger.Error("Failed to "+action, zap.Error(err))
		} else {
			logger.Debug("Request rejected", zap.String("action", action), zap.Error(err))
		}

		_ = c.Error(err)
		c.JSON(m.status, ErrorResponse{Error: m.code, Message: message})
		return
	}

	logger.Error("Failed to "+action, zap.Error(err))
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "Failed to " + action,
	})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid_request",
		Message: message,
	})
}
