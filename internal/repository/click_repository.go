package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/multierr"
)

// ClickRepository stores the lifetime click counter and per-day visit buckets.
type ClickRepository interface {
	// IncrementClicks bumps the lifetime counter and stamps the click time.
	IncrementClicks(ctx context.Context, id string, at time.Time) (int64, error)
	// IncrementDaily bumps the bucket for date and resets its TTL to retention.
	IncrementDaily(ctx context.Context, id, date string, retention time.Duration) (int64, error)
	// DailyCounts returns one count per date, 0 for missing buckets.
	DailyCounts(ctx context.Context, id string, dates []string) ([]int64, error)
}

type clickRepository struct {
	store KeyValueStore
}

func NewClickRepository(store KeyValueStore) ClickRepository {
	return &clickRepository{store: store}
}

func (r *clickRepository) IncrementClicks(ctx context.Context, id string, at time.Time) (int64, error) {
	n, incrErr := r.store.Incr(ctx, clicksKey(id))
	stampErr := r.store.Set(ctx, clickedKey(id), at.UTC().Format(time.RFC3339Nano), 0)
	return n, multierr.Combine(incrErr, stampErr)
}

func (r *clickRepository) IncrementDaily(ctx context.Context, id, date string, retention time.Duration) (int64, error) {
	key := visitsKey(id, date)

	n, err := r.store.Incr(ctx, key)
	if err != nil {
		return 0, err
	}

	// Скользящий TTL: каждый клик продлевает жизнь корзины
	if _, err := r.store.Expire(ctx, key, retention); err != nil {
		return n, err
	}
	return n, nil
}

func (r *clickRepository) DailyCounts(ctx context.Context, id string, dates []string) ([]int64, error) {
	if len(dates) == 0 {
		return []int64{}, nil
	}

	keys := make([]string, len(dates))
	for i, date := range dates {
		keys[i] = visitsKey(id, date)
	}

	vals, err := r.store.MGet(ctx, keys...)
	if err != nil {
		return nil, err
	}

	counts := make([]int64, len(dates))
	for i, v := range vals {
		if v == nil {
			continue
		}
		n, err := strconv.ParseInt(*v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupted visit bucket %s: %w", keys[i], err)
		}
		counts[i] = n
	}
	return counts, nil
}
