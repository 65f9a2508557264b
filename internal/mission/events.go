package mission

import "time"

// Goal lifecycle events emitted by the sequencer. They feed the mission
// log; recording is optional and never influences sequencing decisions.
const (
	EventPublished = "published"
	EventReached   = "reached"
	EventSkipped   = "skipped"
	EventAborted   = "aborted"
	EventCompleted = "completed"
)

// GoalEvent describes one lifecycle step of one goal attempt. Distance and
// Heading are the errors measured at the time of the event; Measured is
// false when no fresh pose was available to measure against (and for
// publish events, which precede any measurement).
type GoalEvent struct {
	Mission   string
	Goal      string
	GoalIndex int
	Event     string
	Distance  float64
	Heading   float64
	Measured  bool
	At        time.Time
}

// EventRecorder receives goal events as the sequencer judges them.
// Implementations must not block; the sequencer calls this inline.
type EventRecorder interface {
	RecordGoalEvent(ev GoalEvent)
}
