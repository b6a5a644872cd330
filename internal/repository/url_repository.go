package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/SergeiKhy/url-analytics/internal/models"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// URLRepository persists URL records and the per-owner index.
type URLRepository interface {
	NewID() (string, error)
	Save(ctx context.Context, url *models.URL) error
	// Update overwrites an existing record and returns ErrNotFound when it is gone.
	Update(ctx context.Context, url *models.URL) error
	GetByID(ctx context.Context, id string) (*models.URL, error)
	Delete(ctx context.Context, id string) error
	DeleteCounters(ctx context.Context, id string) error

	SetOwnerEntry(ctx context.Context, ownerID, id, code string) error
	RemoveOwnerEntry(ctx context.Context, ownerID, id string) error
	// OwnerEntries returns the owner's index: record id -> current short code.
	OwnerEntries(ctx context.Context, ownerID string) (map[string]string, error)
}

type urlRepository struct {
	store KeyValueStore
}

func NewURLRepository(store KeyValueStore) URLRepository {
	return &urlRepository{store: store}
}

func (r *urlRepository) NewID() (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("failed to generate record id: %w", err)
	}
	return id, nil
}

// Save writes the record body. Click counters live under their own keys
// and are never part of the stored blob.
func (r *urlRepository) Save(ctx context.Context, url *models.URL) error {
	data, err := encodeRecord(url)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, recordKey(url.ID), data, 0)
}

func (r *urlRepository) Update(ctx context.Context, url *models.URL) error {
	data, err := encodeRecord(url)
	if err != nil {
		return err
	}

	ok, err := r.store.SetXX(ctx, recordKey(url.ID), data, 0)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func encodeRecord(url *models.URL) (string, error) {
	body := *url
	body.Clicks = 0
	body.LastClickAt = nil

	data, err := json.Marshal(&body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal url: %w", err)
	}
	return string(data), nil
}

func (r *urlRepository) GetByID(ctx context.Context, id string) (*models.URL, error) {
	data, err := r.store.Get(ctx, recordKey(id))
	if err != nil {
		if errors.Is(err, ErrKeyMissing) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var url models.URL
	if err := json.Unmarshal([]byte(data), &url); err != nil {
		return nil, fmt.Errorf("failed to unmarshal url %s: %w", id, err)
	}

	counters, err := r.store.MGet(ctx, clicksKey(id), clickedKey(id))
	if err != nil {
		return nil, err
	}

	if counters[0] != nil {
		clicks, err := strconv.ParseInt(*counters[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupted click counter for %s: %w", id, err)
		}
		url.Clicks = clicks
	}
	if counters[1] != nil {
		at, err := time.Parse(time.RFC3339Nano, *counters[1])
		if err != nil {
			return nil, fmt.Errorf("corrupted last click time for %s: %w", id, err)
		}
		url.LastClickAt = &at
		if at.After(url.UpdatedAt) {
			url.UpdatedAt = at
		}
	}

	return &url, nil
}

func (r *urlRepository) Delete(ctx context.Context, id string) error {
	return r.store.Del(ctx, recordKey(id))
}

func (r *urlRepository) DeleteCounters(ctx context.Context, id string) error {
	return r.store.Del(ctx, clicksKey(id), clickedKey(id))
}

func (r *urlRepository) SetOwnerEntry(ctx context.Context, ownerID, id, code string) error {
	return r.store.HSet(ctx, ownerKey(ownerID), id, code)
}

func (r *urlRepository) RemoveOwnerEntry(ctx context.Context, ownerID, id string) error {
	return r.store.HDel(ctx, ownerKey(ownerID), id)
}

func (r *urlRepository) OwnerEntries(ctx context.Context, ownerID string) (map[string]string, error) {
	return r.store.HGetAll(ctx, ownerKey(ownerID))
}
