package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/SergeiKhy/url-analytics/internal/models"
	"github.com/SergeiKhy/url-analytics/internal/repository"
	"github.com/go-playground/validator/v10"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Ошибки сервиса
var (
	ErrInvalidURL   = errors.New("невалидный URL")
	ErrInvalidCode  = errors.New("невалидный кастомный код")
	ErrInvalidInput = errors.New("невалидные входные данные")
	ErrSpamDomain   = errors.New("домен в чёрном списке")
	ErrForbidden    = errors.New("нет доступа к ссылке")
)

// Константы сервиса
const (
	maxTTL          = 30 * 24 * time.Hour
	minCustomCode   = 3
	maxCustomCode   = 50
	defaultPageSize = 50
	maxPageSize     = 1000
)

var (
	urlPattern  = regexp.MustCompile(`^https?://[^\s]+$`)
	codePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// Чёрный список доменов (можно вынести в конфиг)
var blacklistedDomains = []string{
	"malware.com",
	"phishing.com",
	"spam.com",
}

// URLService интерфейс сервиса коротких ссылок
type URLService interface {
	CreateURL(ctx context.Context, input *models.CreateURLInput) (*models.URL, error)
	GetURL(ctx context.Context, id string) (*models.URL, error)
	GetURLByCode(ctx context.Context, code string) (*models.URL, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*models.URL, error)
	// ListAllByOwner возвращает все ссылки владельца без пагинации
	ListAllByOwner(ctx context.Context, ownerID string) ([]*models.URL, error)
	UpdateURL(ctx context.Context, id, requesterID string, input *models.UpdateURLInput) (*models.URL, error)
	DeleteURL(ctx context.Context, id, requesterID string) error
	// Resolve возвращает оригинальный URL для редиректа и учитывает клик
	Resolve(ctx context.Context, code string) (string, error)
}

// urlService реализация сервиса ссылок
type urlService struct {
	registry repository.CodeRegistry
	urls     repository.URLRepository
	tracker  ClickTracker
	validate *validator.Validate
	logger   *zap.Logger
	now      Clock
}

// NewURLService создаёт новый экземпляр сервиса
func NewURLService(
	registry repository.CodeRegistry,
	urls repository.URLRepository,
	tracker ClickTracker,
	logger *zap.Logger,
	opts ...Option,
) URLService {
	o := applyOptions(opts)
	return &urlService{
		registry: registry,
		urls:     urls,
		tracker:  tracker,
		validate: validator.New(),
		logger:   logger,
		now:      o.now,
	}
}

// CreateURL создаёт новую короткую ссылку.
// Порядок записи: код -> запись -> индекс владельца; при сбое уже
// сделанные шаги откатываются.
func (s *urlService) CreateURL(ctx context.Context, input *models.CreateURLInput) (*models.URL, error) {
	if err := s.validateCreate(input); err != nil {
		return nil, err
	}

	requested := ""
	if input.CustomCode != nil {
		requested = *input.CustomCode
	}

	now := s.now().UTC()

	var expiresAt *time.Time
	if input.ExpiresIn != nil && *input.ExpiresIn > 0 {
		ttl := time.Duration(*input.ExpiresIn) * time.Minute
		if ttl > maxTTL {
			ttl = maxTTL
		}
		t := now.Add(ttl)
		expiresAt = &t
	}

	id, err := s.urls.NewID()
	if err != nil {
		return nil, err
	}

	code, err := s.bindCode(ctx, requested, id)
	if err != nil {
		return nil, err
	}

	link := &models.URL{
		ID:          id,
		OriginalURL: input.OriginalURL,
		ShortCode:   code,
		OwnerID:     input.OwnerID,
		Title:       deref(input.Title),
		Description: deref(input.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   expiresAt,
	}

	if err := s.urls.Save(ctx, link); err != nil {
		s.compensate(ctx, "unbind code after failed save", id, func() error {
			return s.registry.Unbind(ctx, code, id)
		})
		return nil, fmt.Errorf("failed to save url: %w", err)
	}

	if link.OwnerID != "" {
		if err := s.urls.SetOwnerEntry(ctx, link.OwnerID, id, code); err != nil {
			s.compensate(ctx, "remove record after failed owner index", id, func() error {
				return multierr.Combine(
					s.urls.Delete(ctx, id),
					s.registry.Unbind(ctx, code, id),
				)
			})
			return nil, fmt.Errorf("failed to index url for owner: %w", err)
		}
	}

	return link, nil
}

// bindCode выделяет и атомарно регистрирует код. Сгенерированный код,
// который успели занять между проверкой и регистрацией, перевыделяется.
func (s *urlService) bindCode(ctx context.Context, requested, id string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < maxBindAttempts; attempt++ {
		code, err := s.registry.Allocate(ctx, requested)
		if err != nil {
			return "", err
		}

		err = s.registry.Register(ctx, code, id)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, repository.ErrCodeConflict) || requested != "" {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("%w: %w", repository.ErrCodeSpaceExhausted, lastErr)
}

const maxBindAttempts = 3

// GetURL получает ссылку по идентификатору
func (s *urlService) GetURL(ctx context.Context, id string) (*models.URL, error) {
	return s.urls.GetByID(ctx, id)
}

// GetURLByCode получает ссылку по короткому коду
func (s *urlService) GetURLByCode(ctx context.Context, code string) (*models.URL, error) {
	id, err := s.registry.Resolve(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.urls.GetByID(ctx, id)
}

// PageBounds приводит limit и offset к допустимым значениям
func PageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ListByOwner возвращает ссылки владельца, новые первыми
func (s *urlService) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*models.URL, error) {
	limit, offset = PageBounds(limit, offset)

	links, err := s.ListAllByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	if offset >= len(links) {
		return []*models.URL{}, nil
	}
	end := offset + limit
	if end > len(links) {
		end = len(links)
	}
	return links[offset:end], nil
}

func (s *urlService) ListAllByOwner(ctx context.Context, ownerID string) ([]*models.URL, error) {
	entries, err := s.urls.OwnerEntries(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	links := make([]*models.URL, 0, len(entries))
	for id := range entries {
		link, err := s.urls.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				// Запись удалена, а индекс ещё нет
				continue
			}
			return nil, err
		}
		links = append(links, link)
	}

	sort.Slice(links, func(i, j int) bool {
		if links[i].CreatedAt.Equal(links[j].CreatedAt) {
			return links[i].ID < links[j].ID
		}
		return links[i].CreatedAt.After(links[j].CreatedAt)
	})
	return links, nil
}

// UpdateURL обновляет код, заголовок или описание ссылки
func (s *urlService) UpdateURL(ctx context.Context, id, requesterID string, input *models.UpdateURLInput) (*models.URL, error) {
	link, err := s.urls.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !link.OwnedBy(requesterID) {
		return nil, ErrForbidden
	}

	if err := s.validateUpdate(input); err != nil {
		return nil, err
	}

	oldCode := link.ShortCode
	newCode := deref(input.CustomCode)
	codeChanged := newCode != "" && newCode != oldCode

	if codeChanged {
		if err := s.registry.Rebind(ctx, oldCode, newCode, id); err != nil {
			return nil, err
		}
		link.ShortCode = newCode

		if link.OwnerID != "" {
			if err := s.urls.SetOwnerEntry(ctx, link.OwnerID, id, newCode); err != nil {
				s.rollbackRebind(ctx, link, oldCode, newCode, false)
				return nil, fmt.Errorf("failed to update owner index: %w", err)
			}
		}
	}

	if input.Title != nil {
		link.Title = *input.Title
	}
	if input.Description != nil {
		link.Description = *input.Description
	}

	now := s.now().UTC()
	if now.Before(link.CreatedAt) {
		now = link.CreatedAt
	}
	link.UpdatedAt = now

	if err := s.urls.Update(ctx, link); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Запись удалили параллельно, новый код и индекс ей больше не нужны
			if codeChanged {
				s.releaseDeleted(ctx, link, newCode)
			}
			return nil, err
		}
		if codeChanged {
			s.rollbackRebind(ctx, link, oldCode, newCode, link.OwnerID != "")
		}
		return nil, fmt.Errorf("failed to save url: %w", err)
	}

	return link, nil
}

func (s *urlService) releaseDeleted(ctx context.Context, link *models.URL, newCode string) {
	s.compensate(ctx, "release short code of deleted url", link.ID, func() error {
		err := s.registry.Unbind(ctx, newCode, link.ID)
		if link.OwnerID != "" {
			err = multierr.Append(err, s.urls.RemoveOwnerEntry(ctx, link.OwnerID, link.ID))
		}
		return err
	})
}

func (s *urlService) rollbackRebind(ctx context.Context, link *models.URL, oldCode, newCode string, ownerIndexed bool) {
	s.compensate(ctx, "restore previous short code", link.ID, func() error {
		err := s.registry.Rebind(ctx, newCode, oldCode, link.ID)
		if ownerIndexed {
			err = multierr.Append(err, s.urls.SetOwnerEntry(ctx, link.OwnerID, link.ID, oldCode))
		}
		return err
	})
	link.ShortCode = oldCode
}

// DeleteURL удаляет запись, её код и запись в индексе владельца.
// Все шаги выполняются независимо; сбои логируются, но не возвращаются.
func (s *urlService) DeleteURL(ctx context.Context, id, requesterID string) error {
	link, err := s.urls.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !link.OwnedBy(requesterID) {
		return ErrForbidden
	}

	var errs error
	errs = multierr.Append(errs, s.urls.Delete(ctx, id))
	errs = multierr.Append(errs, s.registry.Unbind(ctx, link.ShortCode, id))
	if link.OwnerID != "" {
		errs = multierr.Append(errs, s.urls.RemoveOwnerEntry(ctx, link.OwnerID, id))
	}
	errs = multierr.Append(errs, s.urls.DeleteCounters(ctx, id))

	if errs != nil {
		s.logger.Error("Удаление ссылки выполнено не полностью",
			zap.String("url_id", id),
			zap.String("short_code", link.ShortCode),
			zap.Errors("errors", multierr.Errors(errs)),
		)
	}

	return nil
}

// Resolve находит ссылку по коду и синхронно учитывает клик.
// Сбой учёта клика не мешает редиректу.
func (s *urlService) Resolve(ctx context.Context, code string) (string, error) {
	link, err := s.GetURLByCode(ctx, code)
	if err != nil {
		return "", err
	}

	if link.IsExpired(s.now()) {
		return "", repository.ErrNotFound
	}

	if err := s.tracker.RecordVisit(ctx, link.ID); err != nil {
		s.logger.Warn("Не удалось учесть клик",
			zap.String("url_id", link.ID),
			zap.String("short_code", code),
			zap.Error(err),
		)
	}

	return link.OriginalURL, nil
}

func (s *urlService) compensate(ctx context.Context, action, id string, fn func() error) {
	if err := fn(); err != nil {
		s.logger.Error("Компенсирующее действие не выполнено",
			zap.String("action", action),
			zap.String("url_id", id),
			zap.Error(err),
		)
	}
}

func (s *urlService) validateCreate(input *models.CreateURLInput) error {
	if input == nil {
		return ErrInvalidInput
	}
	if err := validateURL(input.OriginalURL); err != nil {
		return err
	}
	if err := checkSpamDomain(input.OriginalURL); err != nil {
		return err
	}
	if input.CustomCode != nil && *input.CustomCode != "" {
		if err := validateCustomCode(*input.CustomCode); err != nil {
			return err
		}
	}
	if err := s.validate.Struct(input); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

func (s *urlService) validateUpdate(input *models.UpdateURLInput) error {
	if input == nil {
		return ErrInvalidInput
	}
	if input.CustomCode != nil && *input.CustomCode != "" {
		if err := validateCustomCode(*input.CustomCode); err != nil {
			return err
		}
	}
	if err := s.validate.Struct(input); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

// validateURL проверяет, что URL абсолютный и использует http(s)
func validateURL(raw string) error {
	if !urlPattern.MatchString(raw) {
		return ErrInvalidURL
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return ErrInvalidURL
	}
	return nil
}

// validateCustomCode проверяет формат кастомного кода (3-50 символов, буквы, цифры, _ и -)
func validateCustomCode(code string) error {
	if len(code) < minCustomCode || len(code) > maxCustomCode {
		return ErrInvalidCode
	}
	if !codePattern.MatchString(code) {
		return ErrInvalidCode
	}
	return nil
}

// checkSpamDomain проверяет хост URL по чёрному списку доменов
func checkSpamDomain(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidURL
	}
	host := strings.ToLower(parsed.Hostname())
	for _, domain := range blacklistedDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return ErrSpamDomain
		}
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
