package repository

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrCodeConflict = errors.New("short code already exists")
	// ErrStoreFailure оборачивает любую ошибку движка хранилища, включая таймауты
	ErrStoreFailure = errors.New("key-value store failure")
	// ErrKeyMissing возвращается Get/HGet для отсутствующего ключа или поля
	ErrKeyMissing = errors.New("key does not exist")
)

// KeyValueStore is the primitive operation set the shortener core relies on.
// Implementations must make Incr, SetNX and DelIfEquals atomic per key.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX sets key only if it does not exist and reports whether it did.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// SetXX overwrites key only if it already exists and reports whether it did.
	SetXX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// MGet returns one entry per key, nil for missing keys.
	MGet(ctx context.Context, keys ...string) ([]*string, error)
	// DelIfEquals removes key only while it still holds value.
	DelIfEquals(ctx context.Context, key, value string) (bool, error)

	HGet(ctx context.Context, key, field string) (string, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSet(ctx context.Context, key, field, value string) error
	HDel(ctx context.Context, key string, fields ...string) error

	Incr(ctx context.Context, key string) (int64, error)
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	// Expire resets the key TTL and reports whether the key existed.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	Ping(ctx context.Context) error
	Close() error
}

func storeError(op, key string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrStoreFailure, op, key, err)
}

func recordKey(id string) string {
	return "record:" + id
}

func codeKey(code string) string {
	return "code:" + code
}

func ownerKey(ownerID string) string {
	return "owner:" + ownerID
}

func clicksKey(id string) string {
	return "clicks:" + id
}

func clickedKey(id string) string {
	return "clicked:" + id
}

func visitsKey(id, date string) string {
	return "visits:" + id + ":" + date
}
