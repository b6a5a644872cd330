package service

import (
	"context"
	"math"
	"sort"

	"github.com/SergeiKhy/url-analytics/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// AnalyticsConfig параметры агрегации
type AnalyticsConfig struct {
	Days        int // длина временного ряда
	TopN        int // размер списков top/recent
	MaxURLs     int // сколько последних ссылок попадает в дневной ряд
	Concurrency int // параллельных чтений рядов
}

var DefaultAnalyticsConfig = AnalyticsConfig{
	Days:        30,
	TopN:        10,
	MaxURLs:     1000,
	Concurrency: 8,
}

// AnalyticsService строит сводки по ссылкам и владельцам
type AnalyticsService interface {
	GetUserDashboard(ctx context.Context, ownerID string) (*models.Dashboard, error)
	GetURLAnalytics(ctx context.Context, urlID, requesterID string) (*models.URLAnalytics, error)
}

type analyticsService struct {
	urls    URLService
	tracker ClickTracker
	cfg     AnalyticsConfig
	logger  *zap.Logger
}

func NewAnalyticsService(urls URLService, tracker ClickTracker, cfg AnalyticsConfig, logger *zap.Logger) AnalyticsService {
	if cfg.Days <= 0 {
		cfg.Days = DefaultAnalyticsConfig.Days
	}
	if cfg.TopN <= 0 {
		cfg.TopN = DefaultAnalyticsConfig.TopN
	}
	if cfg.MaxURLs <= 0 {
		cfg.MaxURLs = DefaultAnalyticsConfig.MaxURLs
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &analyticsService{
		urls:    urls,
		tracker: tracker,
		cfg:     cfg,
		logger:  logger,
	}
}

// GetUserDashboard собирает сводку владельца.
// Итоги и списки считаются по всем ссылкам, дневной ряд по MaxURLs последним.
// Стоимость O(ссылок × дней) чтений счётчиков.
func (s *analyticsService) GetUserDashboard(ctx context.Context, ownerID string) (*models.Dashboard, error) {
	links, err := s.urls.ListAllByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	var totalClicks int64
	for _, link := range links {
		totalClicks += link.Clicks
	}

	summary := models.DashboardSummary{
		TotalURLs:   len(links),
		TotalClicks: totalClicks,
	}
	if len(links) > 0 {
		summary.AverageClicksPerURL = int64(math.Round(float64(totalClicks) / float64(len(links))))
	}

	// ListAllByOwner уже отсортирован по дате создания
	recent := summarize(links, s.cfg.TopN)

	byClicks := make([]*models.URL, len(links))
	copy(byClicks, links)
	sort.SliceStable(byClicks, func(i, j int) bool {
		return byClicks[i].Clicks > byClicks[j].Clicks
	})
	top := summarize(byClicks, s.cfg.TopN)

	recentLinks := links
	if len(recentLinks) > s.cfg.MaxURLs {
		recentLinks = recentLinks[:s.cfg.MaxURLs]
	}
	series, err := s.clicksOverTime(ctx, recentLinks)
	if err != nil {
		return nil, err
	}

	return &models.Dashboard{
		Summary:        summary,
		TopURLs:        top,
		RecentURLs:     recent,
		ClicksOverTime: series,
	}, nil
}

// clicksOverTime суммирует дневные ряды всех ссылок по датам
func (s *analyticsService) clicksOverTime(ctx context.Context, links []*models.URL) ([]models.DailyCount, error) {
	dates := s.tracker.DateRange(s.cfg.Days)
	index := make(map[string]int, len(dates))
	result := make([]models.DailyCount, len(dates))
	for i, date := range dates {
		index[date] = i
		result[i] = models.DailyCount{Date: date}
	}

	perURL := make([][]models.DailyCount, len(links))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, link := range links {
		g.Go(func() error {
			counts, err := s.tracker.GetDailyCounts(gctx, link.ID, s.cfg.Days)
			if err != nil {
				return err
			}
			perURL[i] = counts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Warn("Не удалось прочитать дневные счётчики", zap.Error(err))
		return nil, err
	}

	for _, counts := range perURL {
		for _, c := range counts {
			// Даты за пределами окна (смена суток во время подсчёта) пропускаются
			if i, ok := index[c.Date]; ok {
				result[i].Clicks += c.Clicks
			}
		}
	}

	return result, nil
}

func (s *analyticsService) GetURLAnalytics(ctx context.Context, urlID, requesterID string) (*models.URLAnalytics, error) {
	link, err := s.urls.GetURL(ctx, urlID)
	if err != nil {
		return nil, err
	}
	if !link.OwnedBy(requesterID) {
		return nil, ErrForbidden
	}

	visits, err := s.tracker.GetDailyCounts(ctx, urlID, s.cfg.Days)
	if err != nil {
		return nil, err
	}

	return &models.URLAnalytics{
		URL:         link,
		Visits:      visits,
		TotalClicks: link.Clicks,
	}, nil
}

func summarize(links []*models.URL, n int) []models.URLSummary {
	if len(links) < n {
		n = len(links)
	}
	result := make([]models.URLSummary, n)
	for i := 0; i < n; i++ {
		result[i] = models.NewURLSummary(links[i])
	}
	return result
}
