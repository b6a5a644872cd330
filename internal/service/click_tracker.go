package service

import (
	"context"
	"time"

	"github.com/SergeiKhy/url-analytics/internal/models"
	"github.com/SergeiKhy/url-analytics/internal/repository"
	"go.uber.org/multierr"
)

const dateLayout = "2006-01-02"

// ClickTracker учитывает переходы по ссылкам
type ClickTracker interface {
	// RecordVisit увеличивает общий счётчик и дневную корзину.
	// Ошибка предназначена только для логирования.
	RecordVisit(ctx context.Context, urlID string) error
	// GetDailyCounts возвращает days дней по сегодняшний включительно, старые первыми
	GetDailyCounts(ctx context.Context, urlID string, days int) ([]models.DailyCount, error)
	// DateRange возвращает даты (UTC) последних days дней, старые первыми
	DateRange(days int) []string
}

type clickTracker struct {
	clicks    repository.ClickRepository
	retention time.Duration
	now       Clock
}

// NewClickTracker создаёт трекер кликов; retention задаёт скользящий TTL дневных корзин
func NewClickTracker(
	clicks repository.ClickRepository,
	retention time.Duration,
	opts ...Option,
) ClickTracker {
	o := applyOptions(opts)
	return &clickTracker{
		clicks:    clicks,
		retention: retention,
		now:       o.now,
	}
}

func (t *clickTracker) RecordVisit(ctx context.Context, urlID string) error {
	now := t.now().UTC()

	// Оба шага выполняются независимо друг от друга
	_, totalErr := t.clicks.IncrementClicks(ctx, urlID, now)
	_, dailyErr := t.clicks.IncrementDaily(ctx, urlID, now.Format(dateLayout), t.retention)

	return multierr.Combine(totalErr, dailyErr)
}

func (t *clickTracker) GetDailyCounts(ctx context.Context, urlID string, days int) ([]models.DailyCount, error) {
	dates := t.DateRange(days)

	counts, err := t.clicks.DailyCounts(ctx, urlID, dates)
	if err != nil {
		return nil, err
	}

	result := make([]models.DailyCount, len(dates))
	for i, date := range dates {
		result[i] = models.DailyCount{Date: date, Clicks: counts[i]}
	}
	return result, nil
}

func (t *clickTracker) DateRange(days int) []string {
	if days <= 0 {
		return []string{}
	}

	today := t.now().UTC()
	dates := make([]string, days)
	for i := 0; i < days; i++ {
		dates[i] = today.AddDate(0, 0, i-(days-1)).Format(dateLayout)
	}
	return dates
}
