// Package history bookkeeps build runs in a small SQLite database under the
// data root, grounded on the teacher's SQLiteBM25Index: same pure-Go
// modernc.org/sqlite driver (no CGO), same WAL-mode pragma set. Open runs
// no integrity check on the database. It never sits on the query path; it
// exists so `dictv stats --history` can show past rebuilds.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Build is one recorded index build. RunID correlates a build's history row
// with the log lines a single `dictv rebuild` invocation emits, independent
// of the row's auto-incrementing ID (which a caller can't know in advance).
type Build struct {
	ID             int64
	RunID          string
	StartedAt      time.Time
	DurationMs     int64
	SourceFeeds    string // comma-joined feed names
	EntriesIndexed int
	Success        bool
	ErrorMessage   string
}

// NewRunID generates a fresh build run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Store wraps the build-history database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the history database at path.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create history dir %s: %w", dir, err)
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	// Single writer; modernc.org/sqlite DSN pragma params are unreliable, so
	// pragmas are also applied via explicit statements below.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS builds (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id          TEXT NOT NULL DEFAULT '',
		started_at      INTEGER NOT NULL,
		duration_ms     INTEGER NOT NULL,
		source_feeds    TEXT NOT NULL,
		entries_indexed INTEGER NOT NULL,
		success         INTEGER NOT NULL,
		error_message    TEXT NOT NULL DEFAULT ''
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record inserts a completed build entry. If b.RunID is empty, a fresh one
// is generated so every row is addressable even when the caller didn't mint
// one up front.
func (s *Store) Record(ctx context.Context, b Build) error {
	runID := b.RunID
	if runID == "" {
		runID = NewRunID()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO builds (run_id, started_at, duration_ms, source_feeds, entries_indexed, success, error_message)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, b.StartedAt.Unix(), b.DurationMs, b.SourceFeeds, b.EntriesIndexed, boolToInt(b.Success), b.ErrorMessage)
	if err != nil {
		return fmt.Errorf("record build: %w", err)
	}
	return nil
}

// Recent returns the most recent n builds, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Build, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, started_at, duration_ms, source_feeds, entries_indexed, success, error_message
		 FROM builds ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query build history: %w", err)
	}
	defer rows.Close()

	var builds []Build
	for rows.Next() {
		var b Build
		var startedAtUnix int64
		var success int
		if err := rows.Scan(&b.ID, &b.RunID, &startedAtUnix, &b.DurationMs, &b.SourceFeeds, &b.EntriesIndexed, &success, &b.ErrorMessage); err != nil {
			return nil, fmt.Errorf("scan build row: %w", err)
		}
		b.StartedAt = time.Unix(startedAtUnix, 0).UTC()
		b.Success = success != 0
		builds = append(builds, b)
	}
	return builds, rows.Err()
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
