package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/SergeiKhy/url-analytics/internal/models"
	"github.com/SergeiKhy/url-analytics/internal/repository"
	"github.com/SergeiKhy/url-analytics/internal/service"
	"github.com/SergeiKhy/url-analytics/internal/service/mocks"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const retention = 30 * 24 * time.Hour

// fakeClock потокобезопасные управляемые часы
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// testEnv тестовое окружение поверх in-memory хранилища
type testEnv struct {
	store     *mocks.MockStore
	clock     *fakeClock
	registry  repository.CodeRegistry
	urlRepo   repository.URLRepository
	tracker   service.ClickTracker
	urls      service.URLService
	analytics service.AnalyticsService
}

func setupTestService(t *testing.T) *testEnv {
	t.Helper()

	clock := newFakeClock()
	store := mocks.NewMockStore()
	store.SetClock(clock.Now)

	logger := zap.NewNop()
	registry := repository.NewCodeRegistry(store, 7)
	urlRepo := repository.NewURLRepository(store)
	tracker := service.NewClickTracker(repository.NewClickRepository(store), retention, service.WithClock(clock.Now))
	urls := service.NewURLService(registry, urlRepo, tracker, logger, service.WithClock(clock.Now))
	analytics := service.NewAnalyticsService(urls, tracker, service.DefaultAnalyticsConfig, logger)

	return &testEnv{
		store:     store,
		clock:     clock,
		registry:  registry,
		urlRepo:   urlRepo,
		tracker:   tracker,
		urls:      urls,
		analytics: analytics,
	}
}

// create создаёт ссылку и падает при ошибке
func (env *testEnv) create(t *testing.T, input *models.CreateURLInput) *models.URL {
	t.Helper()
	link, err := env.urls.CreateURL(context.Background(), input)
	require.NoError(t, err)
	return link
}

// visit выполняет n редиректов по коду
func (env *testEnv) visit(t *testing.T, code string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := env.urls.Resolve(context.Background(), code)
		require.NoError(t, err)
	}
}

func strPtr(s string) *string {
	return &s
}
