package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure Go SQLite driver

	"github.com/Adda-Baaj/notice-watch/internal/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS seen_keys (
	position INTEGER PRIMARY KEY,
	key      TEXT NOT NULL UNIQUE
)`

// sqliteStore keeps one row per key, ordered by position.
type sqliteStore struct {
	db *sqlx.DB
}

func openSQLite(ctx context.Context, dsn string) (Store, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Load(ctx context.Context) (domain.SeenState, error) {
	var keys []string
	if err := s.db.SelectContext(ctx, &keys, `SELECT key FROM seen_keys ORDER BY position`); err != nil {
		return domain.SeenState{}, fmt.Errorf("select seen keys: %w", err)
	}
	return domain.NewSeenState(keys...), nil
}

// Save replaces every row inside one transaction, retrying while the
// database is locked by an overlapping run.
func (s *sqliteStore) Save(ctx context.Context, state domain.SeenState) error {
	keys := domain.NewSeenState(state.Keys...).Keys
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	var critical error
	err := retrier.Do(ctx, func() error {
		err := s.replace(ctx, keys)
		if err != nil && !isLockError(err) {
			critical = err
			return nil
		}
		return err
	})
	if critical != nil {
		return critical
	}
	return err
}

func (s *sqliteStore) replace(ctx context.Context, keys []string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM seen_keys`); err != nil {
		return fmt.Errorf("clear seen keys: %w", err)
	}
	for i, k := range keys {
		if _, err := tx.ExecContext(ctx, `INSERT INTO seen_keys (position, key) VALUES (?, ?)`, i, k); err != nil {
			return fmt.Errorf("insert seen key: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seen keys: %w", err)
	}
	return nil
}

// isLockError checks if an error is a SQLite lock/busy error.
func isLockError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "SQLITE_BUSY") ||
		strings.Contains(errStr, "database is locked") ||
		strings.Contains(errStr, "database table is locked")
}
