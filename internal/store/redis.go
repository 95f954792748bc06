package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisKeyPrefix = "spotyfusion:"

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// RedisTokenStore keeps tokens as plain redis strings under a fixed prefix.
type RedisTokenStore struct {
	client *redislib.Client
}

// NewRedisTokenStore connects and pings with exponential backoff before giving up.
func NewRedisTokenStore(ctx context.Context, opts RedisOptions, logger *zap.Logger) (*RedisTokenStore, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("redis token store needs an address")
	}

	client := redislib.NewClient(&redislib.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	attempts := 5
	backoff := 200 * time.Millisecond

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err = client.Ping(pingCtx).Err()
		cancel()

		if err == nil {
			return &RedisTokenStore{client: client}, nil
		}

		logger.Debug("Redis ping failed",
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt < attempts {
			select {
			case <-ctx.Done():
				_ = client.Close()
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}

	_ = client.Close()
	return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
}

// NewRedisTokenStoreFromClient wraps an existing client.
func NewRedisTokenStoreFromClient(client *redislib.Client) *RedisTokenStore {
	return &RedisTokenStore{client: client}
}

func (r *RedisTokenStore) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, redisKeyPrefix+key).Result()
	if errors.Is(err, redislib.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load token: %w", err)
	}
	if v == "" {
		return "", ErrNotFound
	}
	return v, nil
}

func (r *RedisTokenStore) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, redisKeyPrefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

func (r *RedisTokenStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

func (r *RedisTokenStore) Close() error {
	return r.client.Close()
}
