package mission

import (
	"sync"

	"github.com/ferrule-robotics/missiond/internal/geom"
)

// PoseTracker holds the most recent pose estimate from the motion
// controller. Update arrives on the feed goroutine; Estimate is read from
// the sequencer's activation loop. The freshness flag distinguishes "never
// received a pose" from "received at least once" and, once set, never
// reverts. No age is tracked beyond the flag: an estimate received once
// stays valid until overwritten.
type PoseTracker struct {
	mu    sync.RWMutex
	pose  geom.Pose
	fresh bool
}

func NewPoseTracker() *PoseTracker {
	return &PoseTracker{}
}

// Update overwrites the stored estimate and marks it fresh.
func (t *PoseTracker) Update(p geom.Pose) {
	t.mu.Lock()
	t.pose = p
	t.fresh = true
	t.mu.Unlock()
}

// Estimate returns the latest pose and whether any pose has ever been
// received. When fresh is false the returned pose is meaningless and must
// not be used. The pose triple is returned as a single snapshot; a
// concurrent Update never produces a torn position/heading pair.
func (t *PoseTracker) Estimate() (pose geom.Pose, fresh bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pose, t.fresh
}
