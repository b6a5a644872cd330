package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SergeiKhy/url-analytics/internal/config"
	"github.com/SergeiKhy/url-analytics/internal/handler"
	"github.com/SergeiKhy/url-analytics/internal/middleware"
	"github.com/SergeiKhy/url-analytics/internal/repository"
	"github.com/SergeiKhy/url-analytics/internal/service"
	"go.uber.org/zap"
)

func main() {
	// Загрузка конфига
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Подключение к хранилищу
	store, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer store.Close()

	// Инициализация репозиториев
	registry := repository.NewCodeRegistry(store, cfg.Shortener.CodeLength)
	urlRepo := repository.NewURLRepository(store)
	clickRepo := repository.NewClickRepository(store)

	// Инициализация сервисов
	retention := time.Duration(cfg.Shortener.VisitRetentionDays) * 24 * time.Hour
	tracker := service.NewClickTracker(clickRepo, retention)
	urlService := service.NewURLService(registry, urlRepo, tracker, logger)
	analyticsService := service.NewAnalyticsService(urlService, tracker, service.AnalyticsConfig{
		Days:        service.DefaultAnalyticsConfig.Days,
		TopN:        cfg.Shortener.DashboardTopN,
		MaxURLs:     cfg.Shortener.DashboardMaxURLs,
		Concurrency: cfg.Shortener.AnalyticsConcurrency,
	}, logger)

	// Инициализация middleware
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		BurstSize:         cfg.RateLimit.BurstSize,
		CleanupInterval:   time.Minute,
	})
	defer rateLimiter.Stop()

	var apiKey *middleware.APIKey
	if len(cfg.Auth.APIKeys) > 0 {
		apiKey = middleware.NewAPIKey(middleware.APIKeyConfig{
			ValidKeys: cfg.Auth.APIKeys,
			Optional:  true,
		})
		logger.Info("API key authentication enabled", zap.Int("keys_count", len(cfg.Auth.APIKeys)))
	} else {
		logger.Warn("API_KEYS is empty, owner endpoints are unavailable")
	}

	// Настройка роутера
	router := handler.NewRouter(urlService, analyticsService, store, rateLimiter, apiKey, cfg.App.BaseURL, logger)

	// Запуск сервера
	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Запуск в горутине
	go func() {
		logger.Info("Server starting", zap.String("port", cfg.App.Port), zap.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// openStore подключает выбранный движок key-value хранилища
func openStore(cfg *config.Config, logger *zap.Logger) (repository.KeyValueStore, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		if err := repository.Migrate(cfg.DB.DSN()); err != nil {
			return nil, err
		}
		db, err := repository.NewPostgresDB(cfg.DB, cfg.Store.Timeout)
		if err != nil {
			return nil, err
		}
		db.StartJanitor(cfg.DB.PurgeInterval, logger)
		logger.Info("Connected to PostgreSQL")
		return db, nil
	default:
		redis, err := repository.NewRedisClient(cfg.Redis, cfg.Store.Timeout)
		if err != nil {
			return nil, err
		}
		logger.Info("Connected to Redis")
		return redis, nil
	}
}
