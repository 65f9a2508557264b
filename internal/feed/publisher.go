package feed

import (
	"fmt"

	"github.com/ferrule-robotics/missiond/internal/mission"
	"github.com/ferrule-robotics/missiond/internal/timeutil"
	"github.com/ferrule-robotics/missiond/internal/wire"
)

// LineSender is the outbound half of the link mux.
type LineSender interface {
	SendLine(string) error
}

// LinkPublisher turns goal activations into goal command lines on the base
// link.
type LinkPublisher struct {
	sender LineSender
	frame  string
	clock  timeutil.Clock
}

var _ mission.GoalPublisher = (*LinkPublisher)(nil)

// NewLinkPublisher builds a publisher stamping goals in the given frame.
func NewLinkPublisher(sender LineSender, frame string) *LinkPublisher {
	return &LinkPublisher{sender: sender, frame: frame, clock: timeutil.RealClock{}}
}

// Publish encodes the goal as one wire line and writes it to the link.
func (p *LinkPublisher) Publish(missionName string, g mission.Goal) error {
	msg := wire.NewGoalMessage(p.clock.Now(), p.frame, missionName, g.Name, g.Pose)
	line, err := wire.EncodeGoal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode goal %q: %w", g.Name, err)
	}
	if err := p.sender.SendLine(string(line)); err != nil {
		return fmt.Errorf("failed to send goal %q: %w", g.Name, err)
	}
	return nil
}
