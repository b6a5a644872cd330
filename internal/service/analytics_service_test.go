package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/SergeiKhy/url-analytics/internal/models"
	"github.com/SergeiKhy/url-analytics/internal/repository"
	"github.com/SergeiKhy/url-analytics/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// TestAnalyticsService_Dashboard сводка по трём ссылкам с кликами 5, 20 и 1
func TestAnalyticsService_Dashboard(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	clicks := []int{5, 20, 1}
	codes := []string{"five", "twenty", "one"}
	for i, code := range codes {
		env.create(t, &models.CreateURLInput{
			OriginalURL: fmt.Sprintf("https://example.com/%s", code),
			CustomCode:  strPtr(code),
			OwnerID:     "alice",
		})
		env.visit(t, code, clicks[i])
		env.clock.Advance(time.Minute)
	}

	dashboard, err := env.analytics.GetUserDashboard(ctx, "alice")
	require.NoError(t, err)

	assert.Equal(t, 3, dashboard.Summary.TotalURLs)
	assert.Equal(t, int64(26), dashboard.Summary.TotalClicks)
	assert.Equal(t, int64(9), dashboard.Summary.AverageClicksPerURL)

	require.Len(t, dashboard.TopURLs, 3)
	assert.Equal(t, int64(20), dashboard.TopURLs[0].Clicks)
	assert.Equal(t, int64(5), dashboard.TopURLs[1].Clicks)
	assert.Equal(t, int64(1), dashboard.TopURLs[2].Clicks)
	assert.Equal(t, "twenty", dashboard.TopURLs[0].ShortCode)

	require.Len(t, dashboard.RecentURLs, 3)
	assert.Equal(t, "one", dashboard.RecentURLs[0].ShortCode)
	assert.Equal(t, "five", dashboard.RecentURLs[2].ShortCode)

	require.Len(t, dashboard.ClicksOverTime, 30)
	last := dashboard.ClicksOverTime[29]
	assert.Equal(t, "2026-10-19", last.Date)
	assert.Equal(t, int64(26), last.Clicks)
}

// TestAnalyticsService_Dashboard_Empty пользователь без ссылок
func TestAnalyticsService_Dashboard_Empty(t *testing.T) {
	env := setupTestService(t)

	dashboard, err := env.analytics.GetUserDashboard(context.Background(), "nobody")
	require.NoError(t, err)

	assert.Zero(t, dashboard.Summary.TotalURLs)
	assert.Zero(t, dashboard.Summary.TotalClicks)
	assert.Zero(t, dashboard.Summary.AverageClicksPerURL)
	assert.Empty(t, dashboard.TopURLs)
	assert.Empty(t, dashboard.RecentURLs)

	require.Len(t, dashboard.ClicksOverTime, 30)
	for _, c := range dashboard.ClicksOverTime {
		assert.Zero(t, c.Clicks)
	}
}

// TestAnalyticsService_Dashboard_SeriesAcrossDays ряд суммируется по всем ссылкам и дням
func TestAnalyticsService_Dashboard_SeriesAcrossDays(t *testing.T) {
	env := setupTestService(t)

	env.create(t, &models.CreateURLInput{OriginalURL: "https://example.com/a", CustomCode: strPtr("aaa"), OwnerID: "alice"})
	env.create(t, &models.CreateURLInput{OriginalURL: "https://example.com/b", CustomCode: strPtr("bbb"), OwnerID: "alice"})

	env.visit(t, "aaa", 2)
	env.visit(t, "bbb", 1)
	env.clock.Advance(24 * time.Hour)
	env.visit(t, "aaa", 1)
	env.visit(t, "bbb", 4)

	dashboard, err := env.analytics.GetUserDashboard(context.Background(), "alice")
	require.NoError(t, err)

	series := dashboard.ClicksOverTime
	require.Len(t, series, 30)
	assert.Equal(t, models.DailyCount{Date: "2026-10-19", Clicks: 3}, series[28])
	assert.Equal(t, models.DailyCount{Date: "2026-10-20", Clicks: 5}, series[29])
	assert.Equal(t, int64(8), dashboard.Summary.TotalClicks)
}

// TestAnalyticsService_Dashboard_TopN списки обрезаются до TopN
func TestAnalyticsService_Dashboard_TopN(t *testing.T) {
	env := setupTestService(t)
	logger := zap.NewNop()
	analytics := service.NewAnalyticsService(env.urls, env.tracker, service.AnalyticsConfig{Days: 7, TopN: 2}, logger)

	for i := 0; i < 4; i++ {
		code := fmt.Sprintf("code%d", i)
		env.create(t, &models.CreateURLInput{OriginalURL: "https://example.com", CustomCode: strPtr(code), OwnerID: "alice"})
		env.visit(t, code, i)
		env.clock.Advance(time.Minute)
	}

	dashboard, err := analytics.GetUserDashboard(context.Background(), "alice")
	require.NoError(t, err)

	assert.Equal(t, 4, dashboard.Summary.TotalURLs)
	assert.Equal(t, int64(6), dashboard.Summary.TotalClicks)
	assert.Equal(t, int64(2), dashboard.Summary.AverageClicksPerURL)

	require.Len(t, dashboard.TopURLs, 2)
	assert.Equal(t, "code3", dashboard.TopURLs[0].ShortCode)
	assert.Equal(t, "code2", dashboard.TopURLs[1].ShortCode)

	require.Len(t, dashboard.RecentURLs, 2)
	assert.Equal(t, "code3", dashboard.RecentURLs[0].ShortCode)

	assert.Len(t, dashboard.ClicksOverTime, 7)
}

// TestAnalyticsService_Dashboard_MaxURLs итоги считаются по всем ссылкам, ряд только по последним
func TestAnalyticsService_Dashboard_MaxURLs(t *testing.T) {
	env := setupTestService(t)
	analytics := service.NewAnalyticsService(env.urls, env.tracker, service.AnalyticsConfig{MaxURLs: 2}, zap.NewNop())

	for i, code := range []string{"first", "second", "third"} {
		env.create(t, &models.CreateURLInput{OriginalURL: "https://example.com", CustomCode: strPtr(code), OwnerID: "alice"})
		env.visit(t, code, i+1)
		env.clock.Advance(time.Minute)
	}

	dashboard, err := analytics.GetUserDashboard(context.Background(), "alice")
	require.NoError(t, err)

	assert.Equal(t, 3, dashboard.Summary.TotalURLs)
	assert.Equal(t, int64(6), dashboard.Summary.TotalClicks)
	require.Len(t, dashboard.TopURLs, 3)
	assert.Equal(t, "first", dashboard.TopURLs[2].ShortCode)

	// "first" создана раньше всех и в ряд не попадает
	last := dashboard.ClicksOverTime[len(dashboard.ClicksOverTime)-1]
	assert.Equal(t, int64(5), last.Clicks)
}

// TestAnalyticsService_Dashboard_StoreFailure сбой чтения счётчиков не маскируется нулями
func TestAnalyticsService_Dashboard_StoreFailure(t *testing.T) {
	env := setupTestService(t)
	env.create(t, &models.CreateURLInput{OriginalURL: "https://example.com", OwnerID: "alice"})

	env.store.FailOn("MGet", "visits:")

	_, err := env.analytics.GetUserDashboard(context.Background(), "alice")
	assert.ErrorIs(t, err, repository.ErrStoreFailure)
}

// TestAnalyticsService_GetURLAnalytics ряд по одной ссылке и общий счётчик
func TestAnalyticsService_GetURLAnalytics(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	link := env.create(t, &models.CreateURLInput{OriginalURL: "https://example.com", CustomCode: strPtr("stats"), OwnerID: "alice"})
	env.visit(t, "stats", 3)

	first, err := env.analytics.GetURLAnalytics(ctx, link.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, link.ID, first.URL.ID)
	assert.Equal(t, int64(3), first.TotalClicks)
	require.Len(t, first.Visits, 30)
	assert.Equal(t, int64(3), first.Visits[29].Clicks)

	// Чтение аналитики не меняет счётчики
	second, err := env.analytics.GetURLAnalytics(ctx, link.ID, "")
	require.NoError(t, err)
	assert.Equal(t, first.Visits, second.Visits)
	assert.Equal(t, first.TotalClicks, second.TotalClicks)
}

// TestAnalyticsService_GetURLAnalytics_TotalExceedsSeries после истечения корзин общий счётчик больше суммы ряда
func TestAnalyticsService_GetURLAnalytics_TotalExceedsSeries(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	link := env.create(t, &models.CreateURLInput{OriginalURL: "https://example.com", CustomCode: strPtr("aged")})
	env.visit(t, "aged", 5)
	env.clock.Advance(40 * 24 * time.Hour)
	env.visit(t, "aged", 2)

	result, err := env.analytics.GetURLAnalytics(ctx, link.ID, "")
	require.NoError(t, err)

	var sum int64
	for _, v := range result.Visits {
		sum += v.Clicks
	}
	assert.Equal(t, int64(2), sum)
	assert.Equal(t, int64(7), result.TotalClicks)
}

func TestAnalyticsService_GetURLAnalytics_Errors(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	link := env.create(t, &models.CreateURLInput{OriginalURL: "https://example.com", OwnerID: "alice"})

	_, err := env.analytics.GetURLAnalytics(ctx, "missing", "alice")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = env.analytics.GetURLAnalytics(ctx, link.ID, "bob")
	assert.ErrorIs(t, err, service.ErrForbidden)
}
