package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
)

const (
	// DriverSQLite is the database/sql name of the sqlite3 driver
	DriverSQLite = "sqlite3"
	// DriverPostgres is the database/sql name of the lib/pq driver
	DriverPostgres = "postgres"

	pingTimeout = 5 * time.Second
)

// SQLTokenStore keeps tokens in a single two-column table.
type SQLTokenStore struct {
	db     *sql.DB
	driver string
}

// NewSQLTokenStore opens the database, verifies the connection and creates the
// tokens table when missing.
func NewSQLTokenStore(ctx context.Context, driver, dsn string) (*SQLTokenStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%s token store needs a DSN", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s db: %w", driver, err)
	}

	if driver == DriverSQLite {
		// every pooled connection to ":memory:" would see its own database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s db: %w", driver, err)
	}

	s := &SQLTokenStore{db: db, driver: driver}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return s, nil
}

func (s *SQLTokenStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tokens (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`)
	return err
}

// bind rewrites ? placeholders to $n for postgres.
func (s *SQLTokenStore) bind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	out := make([]byte, 0, len(query)+8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			out = append(out, fmt.Sprintf("$%d", n)...)
			continue
		}
		out = append(out, query[i])
	}
	return string(out)
}

func (s *SQLTokenStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	row := s.db.QueryRowContext(ctx, s.bind("SELECT value FROM tokens WHERE key = ?"), key)
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to load token: %w", err)
	}
	if value == "" {
		return "", ErrNotFound
	}
	return value, nil
}

func (s *SQLTokenStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, s.bind(`
		INSERT INTO tokens (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`),
		key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

func (s *SQLTokenStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.bind("DELETE FROM tokens WHERE key = ?"), key); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

// Close ensures the DB connection is closed gracefully
func (s *SQLTokenStore) Close() error {
	return s.db.Close()
}
