// Package history keeps a SQLite record of scan runs and their findings so
// repeat scans can be compared.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/lisaapatel/partnerscan/internal/report"
)

// ErrRunNotFound is returned when a run id is not in the store.
var ErrRunNotFound = errors.New("run not found")

// Store is a SQLite-backed run history.
type Store struct {
	db        *sql.DB
	closeOnce sync.Once
}

// RunSummary is one row of the runs table.
type RunSummary struct {
	ID          string
	ScannedAt   time.Time
	PolicyPath  string
	Pages       int
	Findings    int
	Suppressed  int
	FetchErrors int
}

// FindingRow is a stored finding.
type FindingRow struct {
	URL        string
	FinalURL   string
	HTTPStatus int
	RuleID     string
	Taxonomy   string
	Severity   string
	MatchText  string
	Snippet    string
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("history db path cannot be empty")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history db: %w", err)
	}
	// SQLite only supports a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	PRAGMA busy_timeout = 5000;
	PRAGMA foreign_keys = ON;

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		scanned_at INTEGER NOT NULL,
		policy_path TEXT NOT NULL DEFAULT '',
		pages INTEGER NOT NULL,
		findings INTEGER NOT NULL,
		suppressed INTEGER NOT NULL,
		fetch_errors INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS findings (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		final_url TEXT NOT NULL,
		http_status INTEGER NOT NULL,
		rule_id TEXT NOT NULL,
		taxonomy TEXT NOT NULL,
		severity TEXT NOT NULL,
		match_text TEXT NOT NULL,
		snippet TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_scanned_at ON runs(scanned_at);
	CREATE INDEX IF NOT EXISTS idx_findings_run ON findings(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordRun stores a run and every reported finding in one transaction.
// Recording the same run id twice replaces the earlier record.
func (s *Store) RecordRun(ctx context.Context, run *report.Run, policyPath string) error {
	var suppressed, fetchErrors int
	for _, p := range run.Pages {
		suppressed += len(p.Suppressed)
		if p.Error != "" {
			fetchErrors++
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, run.ID); err != nil {
		return fmt.Errorf("failed to replace run: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, scanned_at, policy_path, pages, findings, suppressed, fetch_errors)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ScannedAt.UTC().UnixNano(), policyPath,
		len(run.Pages), run.TotalFindings(), suppressed, fetchErrors,
	); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO findings (run_id, url, final_url, http_status, rule_id, taxonomy, severity, match_text, snippet)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare finding insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range run.Pages {
		for _, f := range p.Findings {
			if _, err := stmt.ExecContext(ctx,
				run.ID, p.URL, p.FinalURL, p.HTTPStatus,
				f.RuleID, f.Taxonomy, string(f.Severity), f.MatchText, f.Snippet,
			); err != nil {
				return fmt.Errorf("failed to insert finding: %w", err)
			}
		}
	}

	return tx.Commit()
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scanned_at, policy_path, pages, findings, suppressed, fetch_errors
		FROM runs
		ORDER BY scanned_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		var scannedAt int64
		if err := rows.Scan(&r.ID, &scannedAt, &r.PolicyPath, &r.Pages, &r.Findings, &r.Suppressed, &r.FetchErrors); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.ScannedAt = time.Unix(0, scannedAt).UTC()
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunFindings returns the stored findings of one run in insertion order.
func (s *Store) RunFindings(ctx context.Context, runID string) ([]FindingRow, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, runID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to look up run: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT url, final_url, http_status, rule_id, taxonomy, severity, match_text, snippet
		FROM findings
		WHERE run_id = ?
		ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query findings: %w", err)
	}
	defer rows.Close()

	var out []FindingRow
	for rows.Next() {
		var f FindingRow
		if err := rows.Scan(&f.URL, &f.FinalURL, &f.HTTPStatus, &f.RuleID, &f.Taxonomy, &f.Severity, &f.MatchText, &f.Snippet); err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.db.Close()
	})
	return err
}
