package mission

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ferrule-robotics/missiond/internal/monitoring"
	"github.com/ferrule-robotics/missiond/internal/timeutil"
)

// PlanConfig carries the missions, shared dependencies and policy for one
// executable plan. The tolerance and countdown fields apply to every
// mission; zero values take the sequencer defaults.
type PlanConfig struct {
	Missions  []Mission
	Tracker   *PoseTracker
	Publisher GoalPublisher
	Events    EventRecorder
	Clock     timeutil.Clock

	DistanceTolerance float64
	AngleTolerance    float64
	CountdownTicks    int
	TickInterval      time.Duration

	// RetryAborted restarts an aborted mission from its first goal instead
	// of failing the plan, at most MissionRetries times per mission. With
	// RetryAborted false (the default) any abort fails the plan.
	RetryAborted   bool
	MissionRetries int
}

// Plan is the executable mission state machine: one sequencer per mission,
// keyed by mission name, with each outcome wired to the next state or to a
// terminal result. Next Goal loops a mission back into itself, Completed
// chains to the following mission (or Success after the last one), and
// Aborted fails the plan subject to the retry policy.
type Plan struct {
	order          []string
	states         map[string]*Sequencer
	edges          map[string]map[Outcome]string
	retryAborted   bool
	missionRetries int

	mu         sync.Mutex
	running    bool
	current    string
	lastResult string
	aborts     map[string]int
}

// PlanStatus is a point-in-time snapshot for introspection.
type PlanStatus struct {
	Running        bool              `json:"running"`
	Current        string            `json:"current_mission,omitempty"`
	LastResult     string            `json:"last_result,omitempty"`
	RetryAborted   bool              `json:"retry_aborted"`
	MissionRetries int               `json:"mission_retries"`
	Missions       []SequencerStatus `json:"missions"`
}

// BuildPlan wires one sequencer per mission into a plan. It fails fast on
// configuration the state machine cannot represent: no missions, a mission
// with no goals, or duplicate mission/goal names.
func BuildPlan(cfg PlanConfig) (*Plan, error) {
	if len(cfg.Missions) == 0 {
		return nil, errors.New("mission plan has no missions")
	}
	p := &Plan{
		states:         make(map[string]*Sequencer, len(cfg.Missions)),
		edges:          make(map[string]map[Outcome]string, len(cfg.Missions)),
		retryAborted:   cfg.RetryAborted,
		missionRetries: cfg.MissionRetries,
	}
	for i, m := range cfg.Missions {
		if m.Name == "" {
			return nil, fmt.Errorf("mission %d has no name", i)
		}
		if _, ok := p.states[m.Name]; ok {
			return nil, fmt.Errorf("duplicate mission %q", m.Name)
		}
		if len(m.Goals) == 0 {
			return nil, fmt.Errorf("mission %q has no goals", m.Name)
		}
		seen := make(map[string]bool, len(m.Goals))
		for _, g := range m.Goals {
			if g.Name == "" {
				return nil, fmt.Errorf("mission %q has an unnamed goal", m.Name)
			}
			if seen[g.Name] {
				return nil, fmt.Errorf("mission %q: duplicate goal %q", m.Name, g.Name)
			}
			seen[g.Name] = true
		}

		next := PlanSuccess
		if i < len(cfg.Missions)-1 {
			next = cfg.Missions[i+1].Name
		}
		p.order = append(p.order, m.Name)
		p.states[m.Name] = NewSequencer(SequencerConfig{
			Mission:           m,
			Tracker:           cfg.Tracker,
			Publisher:         cfg.Publisher,
			Events:            cfg.Events,
			Clock:             cfg.Clock,
			DistanceTolerance: cfg.DistanceTolerance,
			AngleTolerance:    cfg.AngleTolerance,
			CountdownTicks:    cfg.CountdownTicks,
			TickInterval:      cfg.TickInterval,
		})
		p.edges[m.Name] = map[Outcome]string{
			OutcomeNextGoal:  m.Name,
			OutcomeCompleted: next,
			OutcomeAborted:   PlanFailure,
		}
	}
	return p, nil
}

// Execute drives the state machine to a terminal result, activating one
// sequencer at a time. Context is observed between activations; a cancelled
// context stops before the next activation and returns the context error.
// Only one Execute may run at a time.
func (p *Plan) Execute(ctx context.Context) (string, error) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return "", errors.New("mission plan already executing")
	}
	p.running = true
	p.aborts = make(map[string]int)
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.running = false
		p.current = ""
		p.mu.Unlock()
	}()

	current := p.order[0]
	prev := ""
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if current != prev {
			monitoring.Logf("mission plan: executing mission %q", current)
			prev = current
		}
		p.mu.Lock()
		p.current = current
		p.mu.Unlock()

		outcome, err := p.states[current].Execute(ctx)
		if err != nil {
			return "", err
		}
		switch next := p.edges[current][outcome]; next {
		case PlanSuccess:
			p.setResult(PlanSuccess)
			return PlanSuccess, nil
		case PlanFailure:
			if p.retryAborted {
				p.mu.Lock()
				p.aborts[current]++
				n := p.aborts[current]
				p.mu.Unlock()
				if n <= p.missionRetries {
					monitoring.Warnf("mission %q aborted, retrying (%d of %d)", current, n, p.missionRetries)
					continue
				}
			}
			p.setResult(PlanFailure)
			return PlanFailure, nil
		default:
			current = next
		}
	}
}

func (p *Plan) setResult(result string) {
	p.mu.Lock()
	p.lastResult = result
	p.mu.Unlock()
}

// Missions returns the plan's missions in execution order.
func (p *Plan) Missions() []Mission {
	out := make([]Mission, 0, len(p.order))
	for _, name := range p.order {
		out = append(out, p.states[name].Mission())
	}
	return out
}

// Status returns a snapshot for the introspection API.
func (p *Plan) Status() PlanStatus {
	p.mu.Lock()
	st := PlanStatus{
		Running:        p.running,
		Current:        p.current,
		LastResult:     p.lastResult,
		RetryAborted:   p.retryAborted,
		MissionRetries: p.missionRetries,
	}
	p.mu.Unlock()
	for _, name := range p.order {
		st.Missions = append(st.Missions, p.states[name].Status())
	}
	return st
}
