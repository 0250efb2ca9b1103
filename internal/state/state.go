// Package state persists run history and the accumulated ID map in a
// local SQLite database, so interrupted migrations can resume with the
// translations they already earned.
package state

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/recmig/recmig/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	kind          TEXT NOT NULL CHECK (kind IN ('load', 'dump')),
	started_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	finished_at   DATETIME,
	total_count   INTEGER NOT NULL DEFAULT 0,
	success_count INTEGER NOT NULL DEFAULT 0,
	failure_count INTEGER NOT NULL DEFAULT 0,
	blocked_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS id_map (
	source_id TEXT PRIMARY KEY,
	target_id TEXT NOT NULL,
	run_id    TEXT REFERENCES runs(id)
);
`

// Store is a SQLite-backed state database
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the state database at path. WAL mode keeps a
// concurrent reader from blocking a running migration.
func Open(path string) (*Store, error) {
	dbPath := path
	if path == ":memory:" {
		dbPath = "file::memory:?cache=shared"
	}

	if !strings.Contains(dbPath, ":memory:") {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating state directory: %w", err)
		}
	}

	connStr := dbPath
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	connStr += sep + "_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(30000)&_time_format=sqlite"

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening state database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging state database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing state schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// Run is one recorded load or dump
type Run struct {
	ID           string
	Kind         string
	StartedAt    time.Time
	FinishedAt   *time.Time
	TotalCount   int
	SuccessCount int
	FailureCount int
	BlockedCount int
}

// BeginRun records the start of a run
func (s *Store) BeginRun(ctx context.Context, id, kind string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO runs (id, kind) VALUES (?, ?)`, id, kind)
	if err != nil {
		return fmt.Errorf("recording run %s: %w", id, err)
	}
	return nil
}

// FinishRun stamps a run finished and stores its outcome counts
func (s *Store) FinishRun(ctx context.Context, id string, status *types.UploadStatus) error {
	total, success, failure, blocked := 0, 0, 0, 0
	if status != nil {
		total = status.TotalCount
		success = len(status.Successes)
		failure = len(status.Failures)
		blocked = len(status.Blocked)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET finished_at = CURRENT_TIMESTAMP,
		    total_count = ?, success_count = ?, failure_count = ?, blocked_count = ?
		WHERE id = ?`,
		total, success, failure, blocked, id)
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finishing run %s: unknown run", id)
	}
	return nil
}

// SaveIDMap persists every entry of m, tagged with the run that earned
// it. Existing source ids keep their stored target, matching the map's
// first-write-wins rule.
func (s *Store) SaveIDMap(ctx context.Context, runID string, m *types.IDMap) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("saving id map: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO id_map (source_id, target_id, run_id) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("saving id map: %w", err)
	}
	defer stmt.Close()

	for _, src := range m.SourceIDs() {
		tgt, _ := m.Get(src)
		if _, err := stmt.ExecContext(ctx, src, tgt, runID); err != nil {
			return fmt.Errorf("saving id map entry %s: %w", src, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("saving id map: %w", err)
	}
	return nil
}

// IDMap loads the persisted map in insertion order
func (s *Store) IDMap(ctx context.Context) (*types.IDMap, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT source_id, target_id FROM id_map ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("loading id map: %w", err)
	}
	defer rows.Close()

	m := types.NewIDMap()
	for rows.Next() {
		var src, tgt string
		if err := rows.Scan(&src, &tgt); err != nil {
			return nil, fmt.Errorf("loading id map: %w", err)
		}
		m.Set(src, tgt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading id map: %w", err)
	}
	return m, nil
}

// Runs returns the most recent runs, newest first. A non-positive
// limit returns everything.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	q := `SELECT id, kind, started_at, finished_at,
	             total_count, success_count, failure_count, blocked_count
	      FROM runs ORDER BY started_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Kind, &r.StartedAt, &finished,
			&r.TotalCount, &r.SuccessCount, &r.FailureCount, &r.BlockedCount); err != nil {
			return nil, fmt.Errorf("listing runs: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return out, nil
}
