package db

import (
	"context"
	"time"

	"github.com/ferrule-robotics/missiond/internal/monitoring"
)

// PruneWorker periodically deletes pose rows older than the retention
// window. The pose feed arrives several times a second and is the only
// table that grows without bound; runs and goal events are kept forever.
type PruneWorker struct {
	DB        *DB
	Retention time.Duration // how long poses are kept
	Interval  time.Duration // how often to prune
	StopChan  chan struct{}
}

func NewPruneWorker(db *DB, retention time.Duration) *PruneWorker {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &PruneWorker{
		DB:        db,
		Retention: retention,
		Interval:  15 * time.Minute,
		StopChan:  make(chan struct{}),
	}
}

// Start runs the periodic prune loop in a goroutine.
func (w *PruneWorker) Start() {
	go func() {
		ticker := time.NewTicker(w.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := w.RunOnce(context.Background()); err != nil {
					monitoring.Warnf("pose pruner run error: %v", err)
				}
			case <-w.StopChan:
				return
			}
		}
	}()
}

// Stop requests the worker to stop.
func (w *PruneWorker) Stop() {
	close(w.StopChan)
}

// RunOnce prunes poses older than the retention window.
func (w *PruneWorker) RunOnce(ctx context.Context) error {
	cutoff := time.Now().Add(-w.Retention)
	deleted, err := w.DB.PrunePosesBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 {
		monitoring.Logf("pose pruner: deleted %d poses older than %v", deleted, w.Retention)
	}
	return nil
}
