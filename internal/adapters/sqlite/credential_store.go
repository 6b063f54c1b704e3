// Package sqlite provides a single-file credential store that survives process restarts.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	// dirPermissions is the permission mode for the store directory.
	dirPermissions = 0700

	// filePermissions is the permission mode for the store file; it holds bearer tokens.
	filePermissions = 0600

	// connectionTimeout bounds the initial ping and schema setup.
	connectionTimeout = 5 * time.Second

	schema = `CREATE TABLE IF NOT EXISTS credentials (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`
)

// Config contains store configuration options.
type Config struct {
	// Path is the filesystem path to the SQLite file. The directory is created if missing.
	Path string

	// BusyTimeout is how long to wait for a lock held by another process.
	BusyTimeout time.Duration
}

// CredentialStore keeps credentials in a SQLite key/value table.
type CredentialStore struct {
	db   *sql.DB
	path string
}

// Open creates the store file if needed and verifies the connection.
func Open(cfg Config) (*CredentialStore, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite store path is required")
	}

	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	connStr := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_synchronous=NORMAL",
		path, busy.Milliseconds())

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("verifying store connection: %w", err), db.Close())
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, errors.Join(fmt.Errorf("creating credentials table: %w", err), db.Close())
	}

	_ = os.Chmod(path, filePermissions) //nolint:errcheck // best effort; the file may live on a filesystem without modes

	return &CredentialStore{db: db, path: path}, nil
}

// Path returns the filesystem path to the store file.
func (s *CredentialStore) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *CredentialStore) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing store: %w", err)
	}
	return nil
}

func (s *CredentialStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM credentials WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading credential %q: %w", key, err)
	}
	return value, true, nil
}

func (s *CredentialStore) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credentials (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("writing credential %q: %w", key, err)
	}
	return nil
}

func (s *CredentialStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	//nolint:gosec // placeholders are generated, values are bound
	if _, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE key IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("deleting credentials: %w", err)
	}
	return nil
}
