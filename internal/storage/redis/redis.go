// Package redis implements the cache store on a Redis server, for setups
// that keep screen time from several machines in one place. Values are
// written with a single SET per day, so readers observe whole entries.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/goodtune/timebuddy/internal/config"
	"github.com/goodtune/timebuddy/internal/storage"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "timebuddy:day:"

// Store implements the storage.Store interface using Redis.
type Store struct {
	client *redis.Client
	prefix string
}

// Open creates a new Redis-backed storage instance.
func Open(cfg config.RedisConfig) (*Store, error) {
	dialTimeout, err := time.ParseDuration(cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid dial_timeout: %w", err)
	}

	addr := cfg.Host
	if cfg.Port > 0 {
		addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	}

	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: dialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}

	return &Store{client: client, prefix: prefix}, nil
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// GetDay returns the cached aggregate for a date key. Entries that no
// longer unmarshal are deleted and reported as ErrNotFound.
func (s *Store) GetDay(ctx context.Context, date string) (*storage.CachedDay, error) {
	data, err := s.client.Get(ctx, s.prefix+date).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cached day: %w", err)
	}

	var day storage.CachedDay
	if err := json.Unmarshal(data, &day); err != nil {
		_ = s.client.Del(ctx, s.prefix+date).Err()
		return nil, storage.ErrNotFound
	}
	return &day, nil
}

// PutDay upserts one day's aggregate.
func (s *Store) PutDay(ctx context.Context, day storage.CachedDay) error {
	data, err := json.Marshal(day)
	if err != nil {
		return fmt.Errorf("marshal cached day: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+day.Date, data, 0).Err(); err != nil {
		return fmt.Errorf("set cached day: %w", err)
	}
	return nil
}

// DeleteDay removes one day's aggregate.
func (s *Store) DeleteDay(ctx context.Context, date string) error {
	if err := s.client.Del(ctx, s.prefix+date).Err(); err != nil {
		return fmt.Errorf("delete cached day: %w", err)
	}
	return nil
}

// Clear drops all cached days under the store's key prefix.
func (s *Store) Clear(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("delete key %s: %w", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan cached days: %w", err)
	}
	return nil
}
