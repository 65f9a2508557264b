package mission

import (
	"context"
	"sync"
	"time"

	"github.com/ferrule-robotics/missiond/internal/geom"
	"github.com/ferrule-robotics/missiond/internal/monitoring"
	"github.com/ferrule-robotics/missiond/internal/timeutil"
)

// GoalPublisher sends a goal command to the motion controller. Delivery is
// fire-and-forget from the sequencer's point of view: a publish error is
// logged and the countdown proceeds regardless, since only feedback decides
// arrival.
type GoalPublisher interface {
	Publish(mission string, g Goal) error
}

// SequencerConfig carries the dependencies and tuning for one sequencer.
type SequencerConfig struct {
	Mission   Mission
	Tracker   *PoseTracker
	Publisher GoalPublisher
	// Events is optional; if nil, goal events are not recorded.
	Events EventRecorder
	// Clock is optional; if nil, the real clock is used.
	Clock timeutil.Clock

	// DistanceTolerance is the maximum position error in meters to declare
	// arrival. Zero means the 0.3 m default.
	DistanceTolerance float64
	// AngleTolerance is the maximum heading error in radians. Zero means
	// the 0.7 rad default.
	AngleTolerance float64
	// CountdownTicks is how many tick checks a goal gets before it is
	// skipped or the mission aborts. Zero means the default of 4.
	CountdownTicks int
	// TickInterval is the wait between checks. Zero means one second.
	TickInterval time.Duration
}

// Sequencer owns one mission's goal list and current index. Each Execute
// call processes exactly one goal attempt and returns an outcome; the plan
// re-activates it (or not) based on that outcome. A sequencer is driven
// from a single goroutine; the mutex only guards against concurrent Status
// readers.
type Sequencer struct {
	mission Mission
	tracker *PoseTracker
	pub     GoalPublisher
	events  EventRecorder
	clock   timeutil.Clock

	distanceTolerance float64
	angleTolerance    float64
	countdownTicks    int
	tickInterval      time.Duration

	mu          sync.Mutex
	goalIdx     int
	active      Goal
	hasActive   bool
	activations int
	lastOutcome Outcome
}

// SequencerStatus is a point-in-time snapshot for introspection.
type SequencerStatus struct {
	Mission     string  `json:"mission"`
	Goals       []Goal  `json:"goals"`
	GoalIndex   int     `json:"goal_index"`
	ActiveGoal  string  `json:"active_goal,omitempty"`
	Activations int     `json:"activations"`
	LastOutcome Outcome `json:"last_outcome,omitempty"`
}

func NewSequencer(cfg SequencerConfig) *Sequencer {
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	dist := cfg.DistanceTolerance
	if dist == 0 {
		dist = 0.3
	}
	angle := cfg.AngleTolerance
	if angle == 0 {
		angle = 0.7
	}
	ticks := cfg.CountdownTicks
	if ticks == 0 {
		ticks = 4
	}
	interval := cfg.TickInterval
	if interval == 0 {
		interval = time.Second
	}
	return &Sequencer{
		mission:           cfg.Mission,
		tracker:           cfg.Tracker,
		pub:               cfg.Publisher,
		events:            cfg.Events,
		clock:             clock,
		distanceTolerance: dist,
		angleTolerance:    angle,
		countdownTicks:    ticks,
		tickInterval:      interval,
	}
}

// Execute runs one activation: publish the current goal, poll the tracker
// against the countdown, and return the outcome.
//
// The index stays in [0, goal count]; reaching the count means the mission
// is complete and resets the index to 0 so the sequencer can be reused.
// Only the first goal of a mission may abort it; an unreachable later goal
// is skipped with a warning.
//
// Each tick's sleep runs to completion; ctx is only observed between
// ticks, and a cancelled ctx returns an empty outcome with the index
// unchanged.
func (s *Sequencer) Execute(ctx context.Context) (Outcome, error) {
	s.mu.Lock()
	s.activations++
	if s.goalIdx >= len(s.mission.Goals) {
		s.goalIdx = 0
		s.hasActive = false
		s.lastOutcome = OutcomeCompleted
		s.mu.Unlock()
		monitoring.Logf("mission %q: no goals left, mission complete", s.mission.Name)
		s.record(GoalEvent{Event: EventCompleted, GoalIndex: len(s.mission.Goals)})
		return OutcomeCompleted, nil
	}
	// Snapshot the active goal: arrival is always judged against the goal
	// that was actually published, never re-read from the list by index.
	goal := s.mission.Goals[s.goalIdx]
	idx := s.goalIdx
	s.active = goal
	s.hasActive = true
	s.mu.Unlock()

	if err := s.pub.Publish(s.mission.Name, goal); err != nil {
		monitoring.Warnf("mission %q: publish goal %q: %v", s.mission.Name, goal.Name, err)
	}
	monitoring.Logf("mission %q: goal %q set", s.mission.Name, goal.Name)
	s.record(GoalEvent{Event: EventPublished, Goal: goal.Name, GoalIndex: idx})

	var (
		lastDistance float64
		lastHeading  float64
		lastMeasured bool
	)
	for remaining := s.countdownTicks; remaining > 0; remaining-- {
		reached, distance, heading, measured := s.measure(goal)
		lastDistance, lastHeading, lastMeasured = distance, heading, measured
		if reached {
			monitoring.Logf("mission %q: goal %q reached before countdown ended, loading next goal",
				s.mission.Name, goal.Name)
			s.advance(OutcomeNextGoal)
			s.record(GoalEvent{
				Event: EventReached, Goal: goal.Name, GoalIndex: idx,
				Distance: distance, Heading: heading, Measured: true,
			})
			return OutcomeNextGoal, nil
		}
		monitoring.Logf("mission %q: %v left until skipping goal %q",
			s.mission.Name, time.Duration(remaining)*s.tickInterval, goal.Name)
		s.clock.Sleep(s.tickInterval)
		if remaining > 1 {
			if err := ctx.Err(); err != nil {
				return "", err
			}
		}
	}

	monitoring.Warnf("mission %q: countdown ended without reaching goal %q", s.mission.Name, goal.Name)
	if idx == 0 {
		monitoring.Warnf("mission %q: starting goal unreachable, aborting mission", s.mission.Name)
		s.setOutcome(OutcomeAborted)
		s.record(GoalEvent{
			Event: EventAborted, Goal: goal.Name, GoalIndex: idx,
			Distance: lastDistance, Heading: lastHeading, Measured: lastMeasured,
		})
		return OutcomeAborted, nil
	}
	monitoring.Warnf("mission %q: skipping goal %q", s.mission.Name, goal.Name)
	s.advance(OutcomeNextGoal)
	s.record(GoalEvent{
		Event: EventSkipped, Goal: goal.Name, GoalIndex: idx,
		Distance: lastDistance, Heading: lastHeading, Measured: lastMeasured,
	})
	return OutcomeNextGoal, nil
}

// measure compares the tracker's estimate against the active goal. A
// missing estimate is not an error, only "arrival not yet confirmed".
func (s *Sequencer) measure(g Goal) (reached bool, distance, heading float64, measured bool) {
	est, fresh := s.tracker.Estimate()
	if !fresh {
		monitoring.Warnf("mission %q: no pose estimate received yet", s.mission.Name)
		return false, 0, 0, false
	}
	distance = geom.Distance(g.Pose, est)
	heading = geom.HeadingDiff(g.Pose.Yaw, est.Yaw)
	reached = distance <= s.distanceTolerance && heading <= s.angleTolerance
	return reached, distance, heading, true
}

func (s *Sequencer) advance(o Outcome) {
	s.mu.Lock()
	s.goalIdx++
	s.lastOutcome = o
	s.mu.Unlock()
}

func (s *Sequencer) setOutcome(o Outcome) {
	s.mu.Lock()
	s.lastOutcome = o
	s.mu.Unlock()
}

func (s *Sequencer) record(ev GoalEvent) {
	if s.events == nil {
		return
	}
	ev.Mission = s.mission.Name
	ev.At = s.clock.Now()
	s.events.RecordGoalEvent(ev)
}

// Mission returns the mission this sequencer owns.
func (s *Sequencer) Mission() Mission { return s.mission }

// GoalIndex returns the current goal index.
func (s *Sequencer) GoalIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.goalIdx
}

// Status returns a snapshot for the introspection API.
func (s *Sequencer) Status() SequencerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := SequencerStatus{
		Mission:     s.mission.Name,
		Goals:       s.mission.Goals,
		GoalIndex:   s.goalIdx,
		Activations: s.activations,
		LastOutcome: s.lastOutcome,
	}
	if s.hasActive {
		st.ActiveGoal = s.active.Name
	}
	return st
}
