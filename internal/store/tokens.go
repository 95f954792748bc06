package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"spotyfusion/internal/core"
)

const (
	// KeyAccessToken holds the current bearer credential
	KeyAccessToken = "access_token"
	// KeyRefreshToken holds the long-lived refresh credential
	KeyRefreshToken = "refresh_token"

	// FilePermission is the permission for token files
	FilePermission = 0600
)

// ErrNotFound is returned when a key has no value.
var ErrNotFound = errors.New("store: key not found")

// TokenStore is a tiny string key-value store for credentials.
type TokenStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Open builds the token store selected by cfg.Backend.
func Open(ctx context.Context, cfg *core.StoreConfig, logger *zap.Logger) (TokenStore, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	logger.Info("Opening token store", zap.String("backend", backend))

	switch backend {
	case "", "memory":
		return NewMemoryTokenStore(), nil
	case "file":
		return NewFileTokenStore(cfg.Path), nil
	case "sqlite", "sqlite3":
		path := cfg.Path
		if cfg.DSN != "" {
			path = cfg.DSN
		}
		s, err := NewSQLTokenStore(ctx, DriverSQLite, path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres", "postgresql":
		s, err := NewSQLTokenStore(ctx, DriverPostgres, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "redis":
		s, err := NewRedisTokenStore(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown token store backend %q", cfg.Backend)
	}
}
