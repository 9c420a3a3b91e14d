// Package ledger persists download history and resolved backend locators in
// a local SQLite database. The locator table gives the transfer layer an
// identity-keyed cache that survives process restarts.
package ledger

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".

	"github.com/tonimelisma/cdse-get/internal/transfer"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const dirPerms = 0o700

// Entry is one recorded outcome.
type Entry struct {
	ID          int64
	RunID       string
	AssetID     string
	Name        string
	Status      transfer.Status
	Path        string
	Bytes       int64
	FailureKind transfer.FailureKind
	Error       string
	Duration    time.Duration
	RecordedAt  time.Time
}

// Store is the ledger database. Safe for concurrent use.
type Store struct {
	db      *sql.DB
	logger  *slog.Logger
	nowFunc func() time.Time
}

// Open opens (creating if needed) the ledger at path and applies pending
// migrations.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(path), dirPerms); err != nil {
		return nil, fmt.Errorf("ledger: creating directory for %s: %w", path, err)
	}

	// DSN parameters ensure pragmas apply to every connection from the pool.
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
		path,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: opening database %s: %w", path, err)
	}

	// Sole-writer pattern: concurrent workers serialize on one connection.
	db.SetMaxOpenConns(1)

	if err := migrate(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("ledger opened", slog.String("path", path))

	return &Store{db: db, logger: logger, nowFunc: time.Now}, nil
}

func migrate(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("ledger: creating migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("ledger: creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("ledger: running migrations: %w", err)
	}

	for _, r := range results {
		logger.Info("applied migration",
			slog.String("source", r.Source.Path),
			slog.Int64("duration_ms", r.Duration.Milliseconds()),
		)
	}

	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordOutcome appends one outcome. Implements transfer.OutcomeSink.
func (s *Store) RecordOutcome(ctx context.Context, runID string, o transfer.Outcome) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO downloads
			(run_id, asset_id, name, status, path, bytes, failure_kind, error, duration_ms, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, o.AssetID, o.Name, string(o.Status), o.Path, o.BytesWritten,
		string(o.Kind), o.Reason(), o.Duration.Milliseconds(), s.nowFunc().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("ledger: recording outcome for %s: %w", o.AssetID, err)
	}

	return nil
}

// History returns the most recent entries, newest first. limit <= 0 means
// no limit.
func (s *Store) History(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, asset_id, name, status, path, bytes, failure_kind, error, duration_ms, recorded_at
		 FROM downloads ORDER BY recorded_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: querying history: %w", err)
	}
	defer rows.Close()

	var entries []Entry

	for rows.Next() {
		var (
			e                      Entry
			status, kind           string
			durationMS, recordedMS int64
		)

		if err := rows.Scan(&e.ID, &e.RunID, &e.AssetID, &e.Name, &status, &e.Path, &e.Bytes,
			&kind, &e.Error, &durationMS, &recordedMS); err != nil {
			return nil, fmt.Errorf("ledger: scanning history row: %w", err)
		}

		e.Status = transfer.Status(status)
		e.FailureKind = transfer.FailureKind(kind)
		e.Duration = time.Duration(durationMS) * time.Millisecond
		e.RecordedAt = time.UnixMilli(recordedMS)

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: iterating history: %w", err)
	}

	return entries, nil
}

// Locator returns the persisted locator for an asset. Implements
// dataspace.LocatorStore.
func (s *Store) Locator(ctx context.Context, assetID string) (string, bool, error) {
	var loc string

	err := s.db.QueryRowContext(ctx, `SELECT locator FROM locators WHERE asset_id = ?`, assetID).Scan(&loc)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}

	if err != nil {
		return "", false, fmt.Errorf("ledger: looking up locator for %s: %w", assetID, err)
	}

	return loc, true, nil
}

// SaveLocator persists a resolved locator, replacing any previous one.
func (s *Store) SaveLocator(ctx context.Context, assetID, locator string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO locators (asset_id, locator, resolved_at) VALUES (?, ?, ?)
		 ON CONFLICT (asset_id) DO UPDATE SET locator = excluded.locator, resolved_at = excluded.resolved_at`,
		assetID, locator, s.nowFunc().UnixMilli())
	if err != nil {
		return fmt.Errorf("ledger: saving locator for %s: %w", assetID, err)
	}

	return nil
}
