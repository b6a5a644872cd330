package models

import (
	"time"
)

// URL короткая ссылка. Clicks и LastClickAt не хранятся в теле записи,
// а подмешиваются из отдельных счётчиков при чтении.
type URL struct {
	ID          string     `json:"id"`
	OriginalURL string     `json:"original_url"`
	ShortCode   string     `json:"short_code"`
	OwnerID     string     `json:"owner_id,omitempty"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Clicks      int64      `json:"clicks"`
	LastClickAt *time.Time `json:"last_click_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// IsExpired сообщает, истёк ли срок жизни ссылки к моменту now
func (u *URL) IsExpired(now time.Time) bool {
	return u.ExpiresAt != nil && !now.Before(*u.ExpiresAt)
}

// OwnedBy проверяет право requesterID на запись. Пустой requesterID
// означает, что запрашивающий неизвестен и проверка не выполняется.
func (u *URL) OwnedBy(requesterID string) bool {
	return requesterID == "" || u.OwnerID == requesterID
}

type CreateURLInput struct {
	OriginalURL string  `json:"original_url" validate:"required,max=2048"`
	CustomCode  *string `json:"custom_code,omitempty"`
	Title       *string `json:"title,omitempty" validate:"omitempty,max=200"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=500"`
	OwnerID     string  `json:"-"`
	ExpiresIn   *int    `json:"expires_in,omitempty"`
}

// UpdateURLInput частичное обновление; nil означает "не менять"
type UpdateURLInput struct {
	CustomCode  *string `json:"custom_code,omitempty"`
	Title       *string `json:"title,omitempty" validate:"omitempty,max=200"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=500"`
}
