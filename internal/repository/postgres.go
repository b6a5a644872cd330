package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/SergeiKhy/url-analytics/internal/config"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	alive   = `(expires_at IS NULL OR expires_at > NOW())`
	expired = `(kv_strings.expires_at IS NOT NULL AND kv_strings.expires_at <= NOW())`
	// ttlExpr превращает TTL в миллисекундах в момент истечения (NULL при ttl <= 0)
	ttlExpr = `CASE WHEN $3::bigint > 0 THEN NOW() + $3::bigint * INTERVAL '1 millisecond' END`
)

var _ KeyValueStore = (*PostgresStore)(nil)

// PostgresStore implements KeyValueStore on two tables: kv_strings for string
// and counter keys (with optional expiry) and kv_hashes for hash fields.
// Expire only applies to string keys.
type PostgresStore struct {
	Pool    *pgxpool.Pool
	timeout time.Duration

	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func NewPostgresDB(cfg config.DBConfig, timeout time.Duration) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse DB config: %w", err)
	}

	// Настройка пула соединений
	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewPostgresStore(pool, timeout), nil
}

// NewPostgresStore wraps an existing pool. The schema must already be migrated.
func NewPostgresStore(pool *pgxpool.Pool, timeout time.Duration) *PostgresStore {
	return &PostgresStore{
		Pool:    pool,
		timeout: timeout,
		stop:    make(chan struct{}),
	}
}

func (s *PostgresStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *PostgresStore) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var value string
	err := s.Pool.QueryRow(ctx,
		`SELECT value FROM kv_strings WHERE key = $1 AND `+alive, key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrKeyMissing
		}
		return "", storeError("get", key, err)
	}
	return value, nil
}

func (s *PostgresStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO kv_strings (key, value, expires_at)
		VALUES ($1, $2, ` + ttlExpr + `)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at
	`
	if _, err := s.Pool.Exec(ctx, query, key, value, ttl.Milliseconds()); err != nil {
		return storeError("set", key, err)
	}
	return nil
}

func (s *PostgresStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	// Просроченная строка считается отсутствующей и может быть перезаписана
	query := `
		INSERT INTO kv_strings (key, value, expires_at)
		VALUES ($1, $2, ` + ttlExpr + `)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at
		WHERE ` + expired + `
		RETURNING key
	`
	var inserted string
	err := s.Pool.QueryRow(ctx, query, key, value, ttl.Milliseconds()).Scan(&inserted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, storeError("setnx", key, err)
	}
	return true, nil
}

func (s *PostgresStore) SetXX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE kv_strings
		SET value = $2, expires_at = ` + ttlExpr + `
		WHERE key = $1 AND ` + alive
	tag, err := s.Pool.Exec(ctx, query, key, value, ttl.Milliseconds())
	if err != nil {
		return false, storeError("setxx", key, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) MGet(ctx context.Context, keys ...string) ([]*string, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.Pool.Query(ctx,
		`SELECT key, value FROM kv_strings WHERE key = ANY($1) AND `+alive, keys,
	)
	if err != nil {
		return nil, storeError("mget", keys[0], err)
	}
	defer rows.Close()

	found := make(map[string]string, len(keys))
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, storeError("mget", key, err)
		}
		found[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("mget", keys[0], err)
	}

	result := make([]*string, len(keys))
	for i, key := range keys {
		if value, ok := found[key]; ok {
			result[i] = &value
		}
	}
	return result, nil
}

func (s *PostgresStore) DelIfEquals(ctx context.Context, key, value string) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tag, err := s.Pool.Exec(ctx,
		`DELETE FROM kv_strings WHERE key = $1 AND value = $2 AND `+alive, key, value,
	)
	if err != nil {
		return false, storeError("delifequals", key, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) HGet(ctx context.Context, key, field string) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var value string
	err := s.Pool.QueryRow(ctx,
		`SELECT value FROM kv_hashes WHERE key = $1 AND field = $2`, key, field,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrKeyMissing
		}
		return "", storeError("hget", key, err)
	}
	return value, nil
}

func (s *PostgresStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.Pool.Query(ctx, `SELECT field, value FROM kv_hashes WHERE key = $1`, key)
	if err != nil {
		return nil, storeError("hgetall", key, err)
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var field, value string
		if err := rows.Scan(&field, &value); err != nil {
			return nil, storeError("hgetall", key, err)
		}
		result[field] = value
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("hgetall", key, err)
	}
	return result, nil
}

func (s *PostgresStore) HSet(ctx context.Context, key, field, value string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO kv_hashes (key, field, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (key, field) DO UPDATE SET value = EXCLUDED.value
	`
	if _, err := s.Pool.Exec(ctx, query, key, field, value); err != nil {
		return storeError("hset", key, err)
	}
	return nil
}

func (s *PostgresStore) HDel(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.Pool.Exec(ctx,
		`DELETE FROM kv_hashes WHERE key = $1 AND field = ANY($2)`, key, fields,
	); err != nil {
		return storeError("hdel", key, err)
	}
	return nil
}

func (s *PostgresStore) Incr(ctx context.Context, key string) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	// Один оператор: инкремент атомарен без блокировок на уровне приложения
	query := `
		INSERT INTO kv_strings (key, value)
		VALUES ($1, '1')
		ON CONFLICT (key) DO UPDATE
		SET value = CASE WHEN ` + expired + ` THEN '1'
		                 ELSE (kv_strings.value::bigint + 1)::text END,
		    expires_at = CASE WHEN ` + expired + ` THEN NULL
		                      ELSE kv_strings.expires_at END
		RETURNING value::bigint
	`
	var n int64
	if err := s.Pool.QueryRow(ctx, query, key).Scan(&n); err != nil {
		return 0, storeError("incr", key, err)
	}
	return n, nil
}

func (s *PostgresStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := pgx.BeginFunc(ctx, s.Pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM kv_strings WHERE key = ANY($1)`, keys); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM kv_hashes WHERE key = ANY($1)`, keys)
		return err
	})
	if err != nil {
		return storeError("del", keys[0], err)
	}
	return nil
}

func (s *PostgresStore) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT EXISTS (SELECT 1 FROM kv_strings WHERE key = $1 AND ` + alive + `)
		    OR EXISTS (SELECT 1 FROM kv_hashes WHERE key = $1)
	`
	var exists bool
	if err := s.Pool.QueryRow(ctx, query, key).Scan(&exists); err != nil {
		return false, storeError("exists", key, err)
	}
	return exists, nil
}

func (s *PostgresStore) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tag, err := s.Pool.Exec(ctx,
		`UPDATE kv_strings SET expires_at = NOW() + $2::bigint * INTERVAL '1 millisecond'
		 WHERE key = $1 AND `+alive,
		key, ttl.Milliseconds(),
	)
	if err != nil {
		return false, storeError("expire", key, err)
	}
	return tag.RowsAffected() > 0, nil
}

// PurgeExpired physically removes expired string keys.
func (s *PostgresStore) PurgeExpired(ctx context.Context) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tag, err := s.Pool.Exec(ctx, `DELETE FROM kv_strings WHERE expires_at IS NOT NULL AND expires_at <= NOW()`)
	if err != nil {
		return 0, storeError("purge", "", err)
	}
	return tag.RowsAffected(), nil
}

// StartJanitor периодически удаляет просроченные ключи до вызова Close
func (s *PostgresStore) StartJanitor(interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				n, err := s.PurgeExpired(context.Background())
				if err != nil {
					logger.Warn("Failed to purge expired keys", zap.Error(err))
					continue
				}
				if n > 0 {
					logger.Debug("Purged expired keys", zap.Int64("count", n))
				}
			}
		}
	}()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.Pool.Ping(ctx); err != nil {
		return storeError("ping", "", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.once.Do(func() { close(s.stop) })
	s.wg.Wait()
	s.Pool.Close()
	return nil
}
