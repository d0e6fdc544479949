package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Run summarizes one pipeline invocation.
type Run struct {
	RunID         int64
	StartedAt     time.Time
	FinishedAt    time.Time
	TotalRecords  int
	InsertedCount int
	UpdatedCount  int
	DriverErrors  int
}

// InsertRun records a completed pipeline invocation and returns its id.
func (db *DB) InsertRun(run Run) (int64, error) {
	result, err := db.Exec(`
		INSERT INTO runs (started_at, finished_at, total_records, inserted_count, updated_count, driver_errors)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.TotalRecords,
		run.InsertedCount, run.UpdatedCount, run.DriverErrors)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}

	runID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run ID: %w", err)
	}
	return runID, nil
}

// LastRun returns the most recent run, or nil when none exist.
func (db *DB) LastRun() (*Run, error) {
	row := db.QueryRow(`
		SELECT run_id, started_at, finished_at, total_records, inserted_count, updated_count, driver_errors
		FROM runs
		ORDER BY started_at DESC
		LIMIT 1
	`)

	var run Run
	err := row.Scan(&run.RunID, &run.StartedAt, &run.FinishedAt,
		&run.TotalRecords, &run.InsertedCount, &run.UpdatedCount, &run.DriverErrors)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query last run: %w", err)
	}
	return &run, nil
}
