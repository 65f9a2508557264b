package main

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/ferrule-robotics/missiond/internal/geom"
)

// Simulator integrates a simple kinematic model toward the most recently
// accepted goal. Translation and rotation run concurrently: position moves
// along the straight line to the target while heading turns the short way
// round to the target yaw.
type Simulator struct {
	Speed    float64 // metres per second
	TurnRate float64 // radians per second
	Noise    float64 // metres, stddev of reported position noise

	mu     sync.Mutex
	pose   geom.Pose
	goal   geom.Pose
	active bool
	rng    *rand.Rand
}

// NewSimulator creates a simulator parked at start with no active goal.
func NewSimulator(start geom.Pose) *Simulator {
	return &Simulator{
		Speed:    0.5,
		TurnRate: 1.0,
		pose:     start,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetGoal replaces the active target. The robot starts converging on the
// next Step call.
func (s *Simulator) SetGoal(goal geom.Pose) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goal = goal
	s.active = true
}

// Pose returns the current true pose, without measurement noise.
func (s *Simulator) Pose() geom.Pose {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pose
}

// Step advances the model by dt and returns the pose the controller would
// report. Position and heading both clamp at the target rather than
// overshooting, so the robot settles exactly on the goal.
func (s *Simulator) Step(dt time.Duration) geom.Pose {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		secs := dt.Seconds()

		dx := s.goal.X - s.pose.X
		dy := s.goal.Y - s.pose.Y
		dist := math.Hypot(dx, dy)
		step := s.Speed * secs
		if step >= dist {
			s.pose.X = s.goal.X
			s.pose.Y = s.goal.Y
		} else if dist > 0 {
			s.pose.X += dx / dist * step
			s.pose.Y += dy / dist * step
		}

		yawErr := geom.NormalizeAngle(s.goal.Yaw - s.pose.Yaw)
		turn := s.TurnRate * secs
		if turn >= math.Abs(yawErr) {
			s.pose.Yaw = geom.NormalizeAngle(s.goal.Yaw)
		} else if yawErr > 0 {
			s.pose.Yaw = geom.NormalizeAngle(s.pose.Yaw + turn)
		} else {
			s.pose.Yaw = geom.NormalizeAngle(s.pose.Yaw - turn)
		}
	}

	reported := s.pose
	if s.Noise > 0 {
		reported.X += s.rng.NormFloat64() * s.Noise
		reported.Y += s.rng.NormFloat64() * s.Noise
	}
	return reported
}
