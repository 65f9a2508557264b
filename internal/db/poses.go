package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ferrule-robotics/missiond/internal/geom"
)

// Pose feed sources.
const (
	PoseSourceLink = "link"
	PoseSourceUDP  = "udp"
)

// PoseRow is one stored pose estimate.
type PoseRow struct {
	ID     int64     `json:"id"`
	RunID  *int64    `json:"run_id,omitempty"`
	X      float64   `json:"x"`
	Y      float64   `json:"y"`
	Yaw    float64   `json:"yaw"`
	Source string    `json:"source"`
	At     time.Time `json:"at"`
}

// InsertPose stores one pose estimate. A runID of zero leaves the run
// reference NULL.
func (db *DB) InsertPose(runID int64, source string, p geom.Pose, at time.Time) error {
	var run interface{}
	if runID > 0 {
		run = runID
	}

	_, err := db.Exec(
		`INSERT INTO poses (run_id, x_m, y_m, yaw_rad, source, at_unix) VALUES (?, ?, ?, ?, ?, ?)`,
		run, p.X, p.Y, p.Yaw, source, unixSeconds(at),
	)
	if err != nil {
		return fmt.Errorf("failed to insert pose: %w", err)
	}
	return nil
}

// RecentPoses returns the newest poses, most recent first.
func (db *DB) RecentPoses(limit int) ([]PoseRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`
		SELECT pose_id, run_id, x_m, y_m, yaw_rad, source, at_unix
		FROM poses
		ORDER BY pose_id DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query poses: %w", err)
	}
	defer rows.Close()
	return scanPoses(rows)
}

// PosesBetween returns poses in [start, end], oldest first, for trajectory
// rendering.
func (db *DB) PosesBetween(start, end time.Time) ([]PoseRow, error) {
	rows, err := db.Query(`
		SELECT pose_id, run_id, x_m, y_m, yaw_rad, source, at_unix
		FROM poses
		WHERE at_unix BETWEEN ? AND ?
		ORDER BY at_unix ASC`,
		unixSeconds(start), unixSeconds(end),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query poses: %w", err)
	}
	defer rows.Close()
	return scanPoses(rows)
}

// PosesForRun returns a run's poses, oldest first.
func (db *DB) PosesForRun(runID int64) ([]PoseRow, error) {
	rows, err := db.Query(`
		SELECT pose_id, run_id, x_m, y_m, yaw_rad, source, at_unix
		FROM poses
		WHERE run_id = ?
		ORDER BY pose_id ASC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query poses: %w", err)
	}
	defer rows.Close()
	return scanPoses(rows)
}

func scanPoses(rows *sql.Rows) ([]PoseRow, error) {
	var poses []PoseRow
	for rows.Next() {
		var (
			p      PoseRow
			atUnix float64
		)
		if err := rows.Scan(&p.ID, &p.RunID, &p.X, &p.Y, &p.Yaw, &p.Source, &atUnix); err != nil {
			return nil, fmt.Errorf("failed to scan pose: %w", err)
		}
		p.At = timeFromUnixSeconds(atUnix)
		poses = append(poses, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return poses, nil
}

// PrunePosesBefore deletes poses older than cutoff and reports how many
// rows went away.
func (db *DB) PrunePosesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := db.ExecContext(ctx,
		`DELETE FROM poses WHERE at_unix < ?`,
		unixSeconds(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune poses: %w", err)
	}
	return result.RowsAffected()
}

// CountPoses returns the total number of stored poses.
func (db *DB) CountPoses() (int64, error) {
	var count int64
	if err := db.QueryRow(`SELECT COUNT(*) FROM poses`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count poses: %w", err)
	}
	return count, nil
}
