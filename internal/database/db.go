package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB represents the run history database connection
type DB struct {
	conn *sql.DB
}

// New creates a new database connection
func New(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// results arrive from every worker; sqlite takes one writer at a time
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.InitSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// InitSchema creates the database tables if they don't exist
func (db *DB) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		mode TEXT NOT NULL,
		root_url TEXT,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP,
		total INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'running'
	);

	CREATE TABLE IF NOT EXISTS results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		suite_path TEXT NOT NULL,
		state TEXT NOT NULL,
		browser TEXT NOT NULL,
		outcome TEXT NOT NULL,
		comment TEXT,
		error TEXT,
		tolerance REAL,
		diff_pixels INTEGER DEFAULT 0,
		image_path TEXT,
		diff_path TEXT,
		duration_ms INTEGER,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_results_run_id ON results(run_id);
	CREATE INDEX IF NOT EXISTS idx_results_key ON results(suite_path, state, browser);
	CREATE INDEX IF NOT EXISTS idx_results_outcome ON results(outcome);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// StartRun records a run as running
func (db *DB) StartRun(run *Run) error {
	query := `
		INSERT INTO runs (id, mode, root_url, started_at, status)
		VALUES (?, ?, ?, ?, 'running')
	`
	if _, err := db.conn.Exec(query, run.ID, run.Mode, run.RootURL, run.StartedAt); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	run.Status = "running"
	return nil
}

// FinishRun stores the totals of a finished run
func (db *DB) FinishRun(id string, total, failed int, status string, finishedAt time.Time) error {
	query := `
		UPDATE runs SET total = ?, failed = ?, status = ?, finished_at = ?
		WHERE id = ?
	`
	res, err := db.conn.Exec(query, total, failed, status, finishedAt, id)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

// SaveResult saves one result of a run
func (db *DB) SaveResult(r *ResultRecord) (int64, error) {
	query := `
		INSERT INTO results (run_id, suite_path, state, browser, outcome, comment, error,
			tolerance, diff_pixels, image_path, diff_path, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := db.conn.Exec(query,
		r.RunID,
		joinPath(r.SuitePath),
		r.State,
		r.Browser,
		r.Outcome,
		r.Comment,
		r.Error,
		r.Tolerance,
		r.DiffPixels,
		r.ImagePath,
		r.DiffPath,
		r.Duration.Milliseconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save result: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}
	r.ID = id
	return id, nil
}

// GetRun returns a run by id
func (db *DB) GetRun(id string) (*Run, error) {
	query := `
		SELECT id, mode, root_url, started_at, finished_at, total, failed, status
		FROM runs WHERE id = ?
	`
	run, err := scanRun(db.conn.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// GetRecentRuns returns the latest runs, newest first
func (db *DB) GetRecentRuns(limit int) ([]Run, error) {
	query := `
		SELECT id, mode, root_url, started_at, finished_at, total, failed, status
		FROM runs ORDER BY started_at DESC, id DESC LIMIT ?
	`
	rows, err := db.conn.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetResults returns every result of a run in the order they were saved
func (db *DB) GetResults(runID string) ([]ResultRecord, error) {
	return db.queryResults(`WHERE run_id = ? ORDER BY id`, runID)
}

// GetStateHistory returns the latest results for one state in one
// browser across runs, newest first
func (db *DB) GetStateHistory(suitePath []string, state, browser string, limit int) ([]ResultRecord, error) {
	return db.queryResults(`WHERE suite_path = ? AND state = ? AND browser = ? ORDER BY id DESC LIMIT ?`,
		joinPath(suitePath), state, browser, limit)
}

func (db *DB) queryResults(where string, args ...any) ([]ResultRecord, error) {
	query := `
		SELECT id, run_id, suite_path, state, browser, outcome, comment, error,
			tolerance, diff_pixels, image_path, diff_path, duration_ms, created_at
		FROM results ` + where

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var results []ResultRecord
	for rows.Next() {
		var r ResultRecord
		var path string
		var comment, errText, imagePath, diffPath sql.NullString
		var durationMS int64
		err := rows.Scan(
			&r.ID,
			&r.RunID,
			&path,
			&r.State,
			&r.Browser,
			&r.Outcome,
			&comment,
			&errText,
			&r.Tolerance,
			&r.DiffPixels,
			&imagePath,
			&diffPath,
			&durationMS,
			&r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		r.SuitePath = splitPath(path)
		r.Comment = comment.String
		r.Error = errText.String
		r.ImagePath = imagePath.String
		r.DiffPath = diffPath.String
		r.Duration = time.Duration(durationMS) * time.Millisecond
		results = append(results, r)
	}
	return results, rows.Err()
}

// GetStatistics returns totals over the whole history
func (db *DB) GetStatistics() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var totalRuns, totalResults, failedRuns int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM runs").Scan(&totalRuns); err != nil {
		return nil, err
	}
	stats["total_runs"] = totalRuns

	if err := db.conn.QueryRow("SELECT COUNT(*) FROM runs WHERE status = 'failed'").Scan(&failedRuns); err != nil {
		return nil, err
	}
	stats["failed_runs"] = failedRuns

	if err := db.conn.QueryRow("SELECT COUNT(*) FROM results").Scan(&totalResults); err != nil {
		return nil, err
	}
	stats["total_results"] = totalResults

	// MAX() loses the column type, so sqlite3 would hand back a string
	var lastRun time.Time
	err := db.conn.QueryRow("SELECT started_at FROM runs ORDER BY started_at DESC LIMIT 1").Scan(&lastRun)
	switch {
	case err == nil:
		stats["last_run"] = lastRun
	case err != sql.ErrNoRows:
		return nil, err
	}

	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var rootURL sql.NullString
	var finished sql.NullTime
	err := row.Scan(
		&run.ID,
		&run.Mode,
		&rootURL,
		&run.StartedAt,
		&finished,
		&run.Total,
		&run.Failed,
		&run.Status,
	)
	if err != nil {
		return nil, err
	}
	run.RootURL = rootURL.String
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return &run, nil
}
