// Package report persists run history and per-checkpoint failure counts in
// SQLite, so recurring checkpoint failures (flaky screens, drifting
// layouts) can be separated from one-off regressions across runs.
package report

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite"
)

// Store manages run history state in SQLite.
type Store struct {
	DBPath string
	db     *sql.DB
}

// Run is one recorded playback run.
type Run struct {
	ID          string
	Script      string
	StartedAt   time.Time
	FinishedAt  *time.Time
	Status      string
	SummaryJSON string
}

// FailureCount aggregates how often a checkpoint has failed for a script.
type FailureCount struct {
	Script     string
	Checkpoint string
	Count      int
}

// Open opens or creates the run history database.
func Open(path string) (*Store, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve history db path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure history db dir: %w", err)
	}

	db, err := sql.Open("sqlite", absPath)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	store := &Store{DBPath: absPath, db: db}
	if err := store.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) ensureSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			script TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			finished_at DATETIME,
			status TEXT NOT NULL,
			summary_json TEXT NOT NULL DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS checkpoint_failures (
			script TEXT NOT NULL,
			checkpoint TEXT NOT NULL,
			count INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (script, checkpoint)
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create history schema: %w", err)
	}
	return nil
}

// RecordRun inserts or updates a run record.
func (s *Store) RecordRun(run Run) error {
	_, err := s.db.Exec(`
		INSERT INTO runs (id, script, started_at, finished_at, status, summary_json)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			finished_at = excluded.finished_at,
			status = excluded.status,
			summary_json = excluded.summary_json
	`, run.ID, run.Script, run.StartedAt, run.FinishedAt, run.Status, run.SummaryJSON)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// RecordFailure bumps the failure counter for one checkpoint of a script.
func (s *Store) RecordFailure(scriptName, checkpoint string) error {
	_, err := s.db.Exec(`
		INSERT INTO checkpoint_failures (script, checkpoint, count)
		VALUES (?, ?, 1)
		ON CONFLICT(script, checkpoint) DO UPDATE SET count = count + 1
	`, scriptName, checkpoint)
	if err != nil {
		return fmt.Errorf("record checkpoint failure: %w", err)
	}
	return nil
}

// FailureCounts returns the failure counters for a script, most frequent
// first, ties broken by checkpoint name.
func (s *Store) FailureCounts(scriptName string) ([]FailureCount, error) {
	rows, err := s.db.Query(
		"SELECT script, checkpoint, count FROM checkpoint_failures WHERE script = ?",
		scriptName,
	)
	if err != nil {
		return nil, fmt.Errorf("query checkpoint failures: %w", err)
	}
	defer rows.Close()

	var counts []FailureCount
	for rows.Next() {
		var fc FailureCount
		if err := rows.Scan(&fc.Script, &fc.Checkpoint, &fc.Count); err != nil {
			return nil, fmt.Errorf("scan checkpoint failure: %w", err)
		}
		counts = append(counts, fc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoint failures: %w", err)
	}

	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Checkpoint < counts[j].Checkpoint
	})
	return counts, nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(limit int) ([]Run, error) {
	rows, err := s.db.Query(`
		SELECT id, script, started_at, finished_at, status, summary_json
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Script, &r.StartedAt, &r.FinishedAt, &r.Status, &r.SummaryJSON); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}
