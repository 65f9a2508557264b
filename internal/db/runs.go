package db

import (
	"database/sql"
	"fmt"
	"time"
)

// Run is one execution of the mission plan, from the first goal publish to
// a terminal plan result. FinishedAt and Result stay nil while the plan is
// still executing or if the process died mid-run.
type Run struct {
	ID           int64      `json:"id"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	Result       *string    `json:"result,omitempty"`
	PlanMissions int        `json:"plan_missions"`
}

// StartRun records the beginning of a plan execution and returns its id.
func (db *DB) StartRun(startedAt time.Time, planMissions int) (int64, error) {
	result, err := db.Exec(
		`INSERT INTO runs (started_unix, plan_missions) VALUES (?, ?)`,
		unixSeconds(startedAt), planMissions,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to start run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run id: %w", err)
	}
	return id, nil
}

// FinishRun stamps a run with its terminal result.
func (db *DB) FinishRun(runID int64, finishedAt time.Time, result string) error {
	res, err := db.Exec(
		`UPDATE runs SET finished_unix = ?, result = ? WHERE run_id = ?`,
		unixSeconds(finishedAt), result, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check finished run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %d not found", runID)
	}
	return nil
}

// GetRun retrieves a run by id.
func (db *DB) GetRun(runID int64) (*Run, error) {
	var (
		run          Run
		startedUnix  float64
		finishedUnix sql.NullFloat64
		result       sql.NullString
	)

	err := db.QueryRow(
		`SELECT run_id, started_unix, finished_unix, result, plan_missions FROM runs WHERE run_id = ?`,
		runID,
	).Scan(&run.ID, &startedUnix, &finishedUnix, &result, &run.PlanMissions)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	run.StartedAt = timeFromUnixSeconds(startedUnix)
	if finishedUnix.Valid {
		t := timeFromUnixSeconds(finishedUnix.Float64)
		run.FinishedAt = &t
	}
	if result.Valid {
		run.Result = &result.String
	}
	return &run, nil
}

// RecentRuns returns the latest runs, newest first.
func (db *DB) RecentRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.Query(
		`SELECT run_id, started_unix, finished_unix, result, plan_missions FROM runs ORDER BY run_id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run          Run
			startedUnix  float64
			finishedUnix sql.NullFloat64
			result       sql.NullString
		)
		if err := rows.Scan(&run.ID, &startedUnix, &finishedUnix, &result, &run.PlanMissions); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.StartedAt = timeFromUnixSeconds(startedUnix)
		if finishedUnix.Valid {
			t := timeFromUnixSeconds(finishedUnix.Float64)
			run.FinishedAt = &t
		}
		if result.Valid {
			run.Result = &result.String
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return runs, nil
}
