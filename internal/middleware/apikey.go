package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Ключи контекста gin
const (
	ownerIDKey = "owner_id"
	apiKeyKey  = "api_key"
)

// APIKeyConfig конфигурация для API key аутентификации
type APIKeyConfig struct {
	// ValidKeys карта валидных API ключей к идентификаторам владельцев
	ValidKeys map[string]string
	// HeaderName имя заголовка для API ключа (по умолчанию: X-API-Key)
	HeaderName string
	// Optional если true, запросы без API ключа обрабатываются анонимно
	Optional bool
}

// DefaultAPIKeyConfig конфигурация по умолчанию
var DefaultAPIKeyConfig = APIKeyConfig{
	HeaderName: "X-API-Key",
	Optional:   true,
}

// APIKey middleware, определяющий владельца запроса по API ключу
type APIKey struct {
	config APIKeyConfig
}

// NewAPIKey создаёт новый API key middleware
func NewAPIKey(config APIKeyConfig) *APIKey {
	if config.HeaderName == "" {
		config.HeaderName = DefaultAPIKeyConfig.HeaderName
	}
	return &APIKey{config: config}
}

// extractKey ищет ключ в заголовке, query параметре api_key и Authorization: Bearer
func (ak *APIKey) extractKey(c *gin.Context) string {
	if key := c.GetHeader(ak.config.HeaderName); key != "" {
		return key
	}
	if key := c.Query("api_key"); key != "" {
		return key
	}
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// lookup сравнивает ключ за постоянное время и возвращает владельца
func (ak *APIKey) lookup(apiKey string) (string, bool) {
	var (
		owner string
		found bool
	)
	for validKey, ownerID := range ak.config.ValidKeys {
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(validKey)) == 1 {
			owner = ownerID
			found = true
		}
	}
	return owner, found
}

// Middleware возвращает Gin middleware handler для API key аутентификации.
// Переданный, но неизвестный ключ отклоняется даже в опциональном режиме.
func (ak *APIKey) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := ak.extractKey(c)

		if apiKey == "" {
			if ak.config.Optional {
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "missing_api_key",
				"message": "Требуется API ключ. Передайте его через заголовок X-API-Key, query параметр api_key или Authorization: Bearer",
			})
			return
		}

		ownerID, ok := ak.lookup(apiKey)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_api_key",
				"message": "Невалидный API ключ",
			})
			return
		}

		c.Set(apiKeyKey, apiKey)
		c.Set(ownerIDKey, ownerID)

		c.Next()
	}
}

// RequireAPIKey хелпер для создания middleware, требующего API ключ
func RequireAPIKey(validKeys map[string]string) gin.HandlerFunc {
	return NewAPIKey(APIKeyConfig{ValidKeys: validKeys}).Middleware()
}

// OptionalAPIKey хелпер для создания middleware, который опционально принимает API ключ
func OptionalAPIKey(validKeys map[string]string) gin.HandlerFunc {
	return NewAPIKey(APIKeyConfig{ValidKeys: validKeys, Optional: true}).Middleware()
}

// RequireOwner отклоняет анонимные запросы к эндпоинтам, работающим от имени владельца
func RequireOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := OwnerFromContext(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "owner_required",
				"message": "Эндпоинт доступен только с API ключом",
			})
			return
		}
		c.Next()
	}
}

// OwnerFromContext возвращает идентификатор владельца, определённый по API ключу
func OwnerFromContext(c *gin.Context) (string, bool) {
	owner := c.GetString(ownerIDKey)
	return owner, owner != ""
}

// OwnerKey ключ для MiddlewareWithKey: лимит считается на владельца
func OwnerKey(c *gin.Context) string {
	owner, _ := OwnerFromContext(c)
	return owner
}
