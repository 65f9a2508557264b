package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ferrule-robotics/missiond/internal/mission"
)

// GoalEventRow is one stored goal lifecycle event. DistanceM and
// HeadingRad are nil for events that carried no fresh measurement.
type GoalEventRow struct {
	ID         int64     `json:"id"`
	RunID      *int64    `json:"run_id,omitempty"`
	Mission    string    `json:"mission"`
	Goal       string    `json:"goal"`
	GoalIndex  int       `json:"goal_index"`
	Event      string    `json:"event"`
	DistanceM  *float64  `json:"distance_m,omitempty"`
	HeadingRad *float64  `json:"heading_rad,omitempty"`
	At         time.Time `json:"at"`
}

// InsertGoalEvent stores one sequencer event. A runID of zero leaves the
// run reference NULL; measurements are NULL unless the event was measured
// against a fresh pose.
func (db *DB) InsertGoalEvent(runID int64, ev mission.GoalEvent) error {
	var run interface{}
	if runID > 0 {
		run = runID
	}
	var distance, heading interface{}
	if ev.Measured {
		distance, heading = ev.Distance, ev.Heading
	}

	_, err := db.Exec(`
		INSERT INTO goal_events (run_id, mission, goal, goal_index, event, distance_m, heading_rad, at_unix)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run, ev.Mission, ev.Goal, ev.GoalIndex, ev.Event, distance, heading, unixSeconds(ev.At),
	)
	if err != nil {
		return fmt.Errorf("failed to insert goal event: %w", err)
	}
	return nil
}

// GoalEventsForRun returns a run's events in the order they happened.
func (db *DB) GoalEventsForRun(runID int64) ([]GoalEventRow, error) {
	rows, err := db.Query(`
		SELECT event_id, run_id, mission, goal, goal_index, event, distance_m, heading_rad, at_unix
		FROM goal_events
		WHERE run_id = ?
		ORDER BY event_id ASC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query goal events: %w", err)
	}
	defer rows.Close()
	return scanGoalEvents(rows)
}

// RecentGoalEvents returns the latest events across all runs, newest first.
func (db *DB) RecentGoalEvents(limit int) ([]GoalEventRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`
		SELECT event_id, run_id, mission, goal, goal_index, event, distance_m, heading_rad, at_unix
		FROM goal_events
		ORDER BY event_id DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query goal events: %w", err)
	}
	defer rows.Close()
	return scanGoalEvents(rows)
}

func scanGoalEvents(rows *sql.Rows) ([]GoalEventRow, error) {
	var events []GoalEventRow
	for rows.Next() {
		var (
			ev     GoalEventRow
			atUnix float64
		)
		if err := rows.Scan(&ev.ID, &ev.RunID, &ev.Mission, &ev.Goal, &ev.GoalIndex, &ev.Event, &ev.DistanceM, &ev.HeadingRad, &atUnix); err != nil {
			return nil, fmt.Errorf("failed to scan goal event: %w", err)
		}
		ev.At = timeFromUnixSeconds(atUnix)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return events, nil
}

// GoalStat summarizes goal outcomes for one mission across all runs.
// AvgDistanceM averages the arrival distance over measured reached events
// and is nil when a mission has never reached a goal.
type GoalStat struct {
	Mission      string   `json:"mission"`
	Published    int64    `json:"published"`
	Reached      int64    `json:"reached"`
	Skipped      int64    `json:"skipped"`
	Aborted      int64    `json:"aborted"`
	AvgDistanceM *float64 `json:"avg_distance_m,omitempty"`
}

// GoalStats rolls up goal outcomes per mission.
func (db *DB) GoalStats() ([]GoalStat, error) {
	query := `
		SELECT
			mission,
			SUM(CASE WHEN event = 'published' THEN 1 ELSE 0 END) AS published,
			SUM(CASE WHEN event = 'reached' THEN 1 ELSE 0 END) AS reached,
			SUM(CASE WHEN event = 'skipped' THEN 1 ELSE 0 END) AS skipped,
			SUM(CASE WHEN event = 'aborted' THEN 1 ELSE 0 END) AS aborted,
			AVG(CASE WHEN event = 'reached' THEN distance_m END) AS avg_distance_m
		FROM goal_events
		GROUP BY mission
		ORDER BY mission
	`

	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query goal stats: %w", err)
	}
	defer rows.Close()

	var stats []GoalStat
	for rows.Next() {
		var s GoalStat
		if err := rows.Scan(&s.Mission, &s.Published, &s.Reached, &s.Skipped, &s.Aborted, &s.AvgDistanceM); err != nil {
			return nil, fmt.Errorf("failed to scan goal stat: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return stats, nil
}
