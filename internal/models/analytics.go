package models

import "time"

type DailyCount struct {
	Date   string `json:"date"`
	Clicks int64  `json:"clicks"`
}

type DashboardSummary struct {
	TotalURLs           int   `json:"total_urls"`
	TotalClicks         int64 `json:"total_clicks"`
	AverageClicksPerURL int64 `json:"average_clicks_per_url"`
}

// URLSummary сокращённое представление ссылки для дашборда
type URLSummary struct {
	ID          string    `json:"id"`
	ShortCode   string    `json:"short_code"`
	OriginalURL string    `json:"original_url"`
	Title       string    `json:"title,omitempty"`
	Clicks      int64     `json:"clicks"`
	CreatedAt   time.Time `json:"created_at"`
}

func NewURLSummary(u *URL) URLSummary {
	return URLSummary{
		ID:          u.ID,
		ShortCode:   u.ShortCode,
		OriginalURL: u.OriginalURL,
		Title:       u.Title,
		Clicks:      u.Clicks,
		CreatedAt:   u.CreatedAt,
	}
}

type Dashboard struct {
	Summary        DashboardSummary `json:"summary"`
	TopURLs        []URLSummary     `json:"top_urls"`
	RecentURLs     []URLSummary     `json:"recent_urls"`
	ClicksOverTime []DailyCount     `json:"clicks_over_time"`
}

type URLAnalytics struct {
	URL         *URL         `json:"url"`
	Visits      []DailyCount `json:"visits"`
	TotalClicks int64        `json:"total_clicks"`
}
