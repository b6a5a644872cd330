package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SergeiKhy/url-analytics/internal/config"
	"github.com/redis/go-redis/v9"
)

// delIfEquals удаляет ключ, только если он всё ещё хранит ожидаемое значение
var delIfEquals = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var _ KeyValueStore = (*RedisStore)(nil)

// RedisStore implements KeyValueStore on top of a single Redis instance.
type RedisStore struct {
	Client  *redis.Client
	timeout time.Duration
}

func NewRedisClient(cfg config.RedisConfig, timeout time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     100,
		MinIdleConns: 10,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisStore(client, timeout), nil
}

// NewRedisStore wraps an already connected client.
func NewRedisStore(client *redis.Client, timeout time.Duration) *RedisStore {
	return &RedisStore{Client: client, timeout: timeout}
}

func (s *RedisStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	val, err := s.Client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrKeyMissing
		}
		return "", storeError("get", key, err)
	}
	return val, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.Client.Set(ctx, key, value, ttl).Err(); err != nil {
		return storeError("set", key, err)
	}
	return nil
}

func (s *RedisStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	ok, err := s.Client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, storeError("setnx", key, err)
	}
	return ok, nil
}

func (s *RedisStore) SetXX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	ok, err := s.Client.SetXX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, storeError("setxx", key, err)
	}
	return ok, nil
}

func (s *RedisStore) MGet(ctx context.Context, keys ...string) ([]*string, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	vals, err := s.Client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, storeError("mget", keys[0], err)
	}

	result := make([]*string, len(vals))
	for i, v := range vals {
		if str, ok := v.(string); ok {
			result[i] = &str
		}
	}
	return result, nil
}

func (s *RedisStore) DelIfEquals(ctx context.Context, key, value string) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	n, err := delIfEquals.Run(ctx, s.Client, []string{key}, value).Int64()
	if err != nil {
		return false, storeError("delifequals", key, err)
	}
	return n > 0, nil
}

func (s *RedisStore) HGet(ctx context.Context, key, field string) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	val, err := s.Client.HGet(ctx, key, field).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrKeyMissing
		}
		return "", storeError("hget", key, err)
	}
	return val, nil
}

func (s *RedisStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	vals, err := s.Client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, storeError("hgetall", key, err)
	}
	return vals, nil
}

func (s *RedisStore) HSet(ctx context.Context, key, field, value string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.Client.HSet(ctx, key, field, value).Err(); err != nil {
		return storeError("hset", key, err)
	}
	return nil
}

func (s *RedisStore) HDel(ctx context.Context, key string, fields ...string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.Client.HDel(ctx, key, fields...).Err(); err != nil {
		return storeError("hdel", key, err)
	}
	return nil
}

func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	n, err := s.Client.Incr(ctx, key).Result()
	if err != nil {
		return 0, storeError("incr", key, err)
	}
	return n, nil
}

func (s *RedisStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.Client.Del(ctx, keys...).Err(); err != nil {
		return storeError("del", keys[0], err)
	}
	return nil
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	n, err := s.Client.Exists(ctx, key).Result()
	if err != nil {
		return false, storeError("exists", key, err)
	}
	return n > 0, nil
}

func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	ok, err := s.Client.Expire(ctx, key, ttl).Result()
	if err != nil {
		return false, storeError("expire", key, err)
	}
	return ok, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.Client.Ping(ctx).Err(); err != nil {
		return storeError("ping", "", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.Client.Close()
}
