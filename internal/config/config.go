package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

type Config struct {
	App       AppConfig
	Store     StoreConfig
	DB        DBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Shortener ShortenerConfig
}

type AppConfig struct {
	Port    string
	BaseURL string
}

// StoreConfig выбирает движок key-value хранилища
type StoreConfig struct {
	Driver  string
	Timeout time.Duration
}

type DBConfig struct {
	Host          string
	Port          string
	User          string
	Password      string
	Name          string
	PurgeInterval time.Duration
}

// DSN возвращает строку подключения к PostgreSQL
func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Name,
	)
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type AuthConfig struct {
	APIKeys map[string]string // API key -> owner id
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// ShortenerConfig параметры генерации кодов и аналитики
type ShortenerConfig struct {
	CodeLength           int
	VisitRetentionDays   int
	DashboardTopN        int
	DashboardMaxURLs     int
	AnalyticsConcurrency int
}

func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile читает конфиг из файла (если он есть) и переменных окружения
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("env")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// .env не обязателен, окружение имеет приоритет
		var pathErr *fs.PathError
		if !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	cfg.App.Port = v.GetString("APP_PORT")
	cfg.App.BaseURL = strings.TrimRight(v.GetString("APP_BASE_URL"), "/")

	cfg.Store.Driver = strings.ToLower(v.GetString("STORE_DRIVER"))
	cfg.Store.Timeout = v.GetDuration("STORE_TIMEOUT")

	cfg.DB.Host = v.GetString("DB_HOST")
	cfg.DB.Port = v.GetString("DB_PORT")
	cfg.DB.User = v.GetString("DB_USER")
	cfg.DB.Password = v.GetString("DB_PASSWORD")
	cfg.DB.Name = v.GetString("DB_NAME")
	cfg.DB.PurgeInterval = v.GetDuration("DB_PURGE_INTERVAL")

	cfg.Redis.Host = v.GetString("REDIS_HOST")
	cfg.Redis.Port = v.GetString("REDIS_PORT")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")

	// Format: key1:owner1,key2:owner2
	cfg.Auth.APIKeys = parseAPIKeys(v.GetString("API_KEYS"))

	cfg.RateLimit.RequestsPerSecond = v.GetFloat64("RATE_LIMIT_RPS")
	cfg.RateLimit.BurstSize = v.GetInt("RATE_LIMIT_BURST")

	cfg.Shortener.CodeLength = v.GetInt("CODE_LENGTH")
	cfg.Shortener.VisitRetentionDays = v.GetInt("VISIT_RETENTION_DAYS")
	cfg.Shortener.DashboardTopN = v.GetInt("DASHBOARD_TOP_N")
	cfg.Shortener.DashboardMaxURLs = v.GetInt("DASHBOARD_MAX_URLS")
	cfg.Shortener.AnalyticsConcurrency = v.GetInt("ANALYTICS_CONCURRENCY")

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("APP_BASE_URL", "http://localhost:8080")
	v.SetDefault("STORE_DRIVER", DriverRedis)
	v.SetDefault("STORE_TIMEOUT", 2*time.Second)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_PURGE_INTERVAL", 10*time.Minute)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("RATE_LIMIT_RPS", 10)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("CODE_LENGTH", 7)
	v.SetDefault("VISIT_RETENTION_DAYS", 30)
	v.SetDefault("DASHBOARD_TOP_N", 10)
	v.SetDefault("DASHBOARD_MAX_URLS", 1000)
	v.SetDefault("ANALYTICS_CONCURRENCY", 8)
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case DriverRedis, DriverPostgres:
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.Store.Driver)
	}
	if c.Store.Timeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive")
	}
	if c.Shortener.CodeLength < 3 || c.Shortener.CodeLength > 50 {
		return fmt.Errorf("CODE_LENGTH must be between 3 and 50, got %d", c.Shortener.CodeLength)
	}
	if c.Shortener.VisitRetentionDays < 1 {
		return fmt.Errorf("VISIT_RETENTION_DAYS must be positive")
	}
	if c.Shortener.AnalyticsConcurrency < 1 {
		c.Shortener.AnalyticsConcurrency = 1
	}
	return nil
}

// parseAPIKeys parses comma-separated API keys in format "key1:owner1,key2:owner2"
func parseAPIKeys(raw string) map[string]string {
	keys := make(map[string]string)
	if raw == "" {
		return keys
	}

	pairs := strings.Split(raw, ",")
	for _, pair := range pairs {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
			keys[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}

	return keys
}
