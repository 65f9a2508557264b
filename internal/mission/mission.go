// Package mission implements the goal-sequencing controller. A plan is an
// ordered list of missions, each an ordered list of navigation goals. One
// sequencer per mission publishes goals to the motion controller, watches
// the pose feedback against tolerances, and decides whether to advance,
// complete the mission, or abort.
package mission

import "github.com/ferrule-robotics/missiond/internal/geom"

// Goal is one navigation target. Name is unique within its mission.
// Immutable once loaded.
type Goal struct {
	Name string    `json:"name"`
	Pose geom.Pose `json:"pose"`
}

// Mission is an ordered sequence of goals. The order is the traversal
// order. A mission is owned by exactly one sequencer and never mutated
// after plan build; only the sequencer's index into it moves.
type Mission struct {
	Name  string `json:"name"`
	Goals []Goal `json:"goals"`
}
