package mocks

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/SergeiKhy/url-analytics/internal/repository"
)

var _ repository.KeyValueStore = (*MockStore)(nil)

type entry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

type failure struct {
	op        string
	keyPrefix string
}

// MockStore implements repository.KeyValueStore in memory for testing.
// Failures can be injected per operation and key prefix.
type MockStore struct {
	mu       sync.RWMutex
	strings  map[string]entry
	hashes   map[string]map[string]string
	failures []failure
	now      func() time.Time
}

func NewMockStore() *MockStore {
	return &MockStore{
		strings: make(map[string]entry),
		hashes:  make(map[string]map[string]string),
		now:     time.Now,
	}
}

// SetClock makes TTL checks use now instead of the wall clock.
func (m *MockStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// FailOn makes op (e.g. "Incr", "HSet") fail for keys starting with keyPrefix.
// An empty prefix matches every key.
func (m *MockStore) FailOn(op, keyPrefix string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, failure{op: op, keyPrefix: keyPrefix})
}

func (m *MockStore) ClearFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = nil
}

// TTL returns the remaining lifetime of a string key, 0 when it has none.
func (m *MockStore) TTL(key string) time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.strings[key]
	if !ok || e.expiresAt.IsZero() {
		return 0
	}
	return e.expiresAt.Sub(m.now())
}

// Keys returns all live string and hash keys.
func (m *MockStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for k, e := range m.strings {
		if m.alive(e) {
			keys = append(keys, k)
		}
	}
	for k := range m.hashes {
		keys = append(keys, k)
	}
	return keys
}

func (m *MockStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strings = make(map[string]entry)
	m.hashes = make(map[string]map[string]string)
	m.failures = nil
}

func (m *MockStore) fail(op string, keys ...string) error {
	for _, f := range m.failures {
		if f.op != op {
			continue
		}
		for _, k := range keys {
			if strings.HasPrefix(k, f.keyPrefix) {
				return fmt.Errorf("%w: %s %s: injected failure", repository.ErrStoreFailure, op, k)
			}
		}
	}
	return nil
}

func (m *MockStore) alive(e entry) bool {
	return e.expiresAt.IsZero() || m.now().Before(e.expiresAt)
}

func (m *MockStore) lookup(key string) (entry, bool) {
	e, ok := m.strings[key]
	if !ok || !m.alive(e) {
		return entry{}, false
	}
	return e, true
}

func (m *MockStore) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(ttl)
}

func (m *MockStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.fail("Get", key); err != nil {
		return "", err
	}
	e, ok := m.lookup(key)
	if !ok {
		return "", repository.ErrKeyMissing
	}
	return e.value, nil
}

func (m *MockStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("Set", key); err != nil {
		return err
	}
	m.strings[key] = entry{value: value, expiresAt: m.expiry(ttl)}
	return nil
}

func (m *MockStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("SetNX", key); err != nil {
		return false, err
	}
	if _, ok := m.lookup(key); ok {
		return false, nil
	}
	m.strings[key] = entry{value: value, expiresAt: m.expiry(ttl)}
	return true, nil
}

func (m *MockStore) SetXX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("SetXX", key); err != nil {
		return false, err
	}
	if _, ok := m.lookup(key); !ok {
		return false, nil
	}
	m.strings[key] = entry{value: value, expiresAt: m.expiry(ttl)}
	return true, nil
}

func (m *MockStore) MGet(ctx context.Context, keys ...string) ([]*string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.fail("MGet", keys...); err != nil {
		return nil, err
	}
	result := make([]*string, len(keys))
	for i, k := range keys {
		if e, ok := m.lookup(k); ok {
			v := e.value
			result[i] = &v
		}
	}
	return result, nil
}

func (m *MockStore) DelIfEquals(ctx context.Context, key, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("DelIfEquals", key); err != nil {
		return false, err
	}
	e, ok := m.lookup(key)
	if !ok || e.value != value {
		return false, nil
	}
	delete(m.strings, key)
	return true, nil
}

func (m *MockStore) HGet(ctx context.Context, key, field string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.fail("HGet", key); err != nil {
		return "", err
	}
	v, ok := m.hashes[key][field]
	if !ok {
		return "", repository.ErrKeyMissing
	}
	return v, nil
}

func (m *MockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.fail("HGetAll", key); err != nil {
		return nil, err
	}
	result := make(map[string]string, len(m.hashes[key]))
	for f, v := range m.hashes[key] {
		result[f] = v
	}
	return result, nil
}

func (m *MockStore) HSet(ctx context.Context, key, field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("HSet", key); err != nil {
		return err
	}
	if m.hashes[key] == nil {
		m.hashes[key] = make(map[string]string)
	}
	m.hashes[key][field] = value
	return nil
}

func (m *MockStore) HDel(ctx context.Context, key string, fields ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("HDel", key); err != nil {
		return err
	}
	for _, f := range fields {
		delete(m.hashes[key], f)
	}
	if len(m.hashes[key]) == 0 {
		delete(m.hashes, key)
	}
	return nil
}

func (m *MockStore) Incr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("Incr", key); err != nil {
		return 0, err
	}
	e, ok := m.lookup(key)
	var n int64
	if ok {
		parsed, err := strconv.ParseInt(e.value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: incr %s: value is not an integer", repository.ErrStoreFailure, key)
		}
		n = parsed
	}
	n++
	e.value = strconv.FormatInt(n, 10)
	m.strings[key] = e
	return n, nil
}

func (m *MockStore) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("Del", keys...); err != nil {
		return err
	}
	for _, k := range keys {
		delete(m.strings, k)
		delete(m.hashes, k)
	}
	return nil
}

func (m *MockStore) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.fail("Exists", key); err != nil {
		return false, err
	}
	if _, ok := m.lookup(key); ok {
		return true, nil
	}
	_, ok := m.hashes[key]
	return ok, nil
}

func (m *MockStore) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("Expire", key); err != nil {
		return false, err
	}
	e, ok := m.lookup(key)
	if !ok {
		return false, nil
	}
	e.expiresAt = m.expiry(ttl)
	m.strings[key] = e
	return true, nil
}

func (m *MockStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fail("Ping", "")
}

func (m *MockStore) Close() error {
	return nil
}
