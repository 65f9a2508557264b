package mission

// Outcome is the result of one sequencer activation. It selects the edge
// the surrounding plan follows next.
type Outcome string

const (
	// OutcomeCompleted means the mission's goal list is exhausted; the
	// plan moves to the next mission.
	OutcomeCompleted Outcome = "Completed"
	// OutcomeAborted means the first goal of the mission was never
	// reached; the plan fails unless retries are configured.
	OutcomeAborted Outcome = "Aborted"
	// OutcomeNextGoal means the sequencer advanced its index (goal
	// reached or skipped) and wants to be activated again.
	OutcomeNextGoal Outcome = "Next Goal"
)

// Terminal plan results.
const (
	PlanSuccess = "Success"
	PlanFailure = "Failure"
)
