// Package feed moves pose feedback from the base link into the planner and
// publishes goal commands back out. A feed owns no policy: it keeps the
// pose tracker current, samples estimates into the mission log, and leaves
// every sequencing decision to the mission package.
package feed

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ferrule-robotics/missiond/internal/db"
	"github.com/ferrule-robotics/missiond/internal/mission"
	"github.com/ferrule-robotics/missiond/internal/monitoring"
	"github.com/ferrule-robotics/missiond/internal/timeutil"
	"github.com/ferrule-robotics/missiond/internal/wire"
)

// Config wires a feed to its consumers. Tracker is required; everything
// else is optional.
type Config struct {
	Tracker *mission.PoseTracker

	// Store receives sampled pose estimates when set.
	Store *db.DB
	// Source labels stored samples. Empty means db.PoseSourceLink.
	Source string
	// StoreInterval caps the sample rate into the store. Zero means one
	// second; a negative value stores every pose.
	StoreInterval time.Duration

	// Clock is optional; if nil, the real clock is used.
	Clock timeutil.Clock
}

// sink is the shared inbound path for all feeds: tracker update, first-pose
// log, store sampling, counters.
type sink struct {
	tracker       *mission.PoseTracker
	store         *db.DB
	source        string
	storeInterval time.Duration
	clock         timeutil.Clock

	runID atomic.Int64
	once  sync.Once
	stats *Stats

	mu         sync.Mutex
	lastStored time.Time
}

func newSink(cfg Config) *sink {
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	source := cfg.Source
	if source == "" {
		source = db.PoseSourceLink
	}
	interval := cfg.StoreInterval
	if interval == 0 {
		interval = time.Second
	}
	return &sink{
		tracker:       cfg.Tracker,
		store:         cfg.Store,
		source:        source,
		storeInterval: interval,
		clock:         clock,
		stats:         NewStats(),
	}
}

// SetRun scopes stored samples to a run. Zero clears the reference.
func (s *sink) SetRun(runID int64) { s.runID.Store(runID) }

// Stats exposes the feed's traffic counters.
func (s *sink) Stats() *Stats { return s.stats }

// handleLine classifies one raw line and feeds pose updates through. Goal
// echoes and unparseable noise are counted and skipped; neither is an
// error.
func (s *sink) handleLine(line string) {
	s.stats.AddBytes(len(line))
	switch wire.Classify(line) {
	case wire.TypePose:
		msg, err := wire.ParsePose(line)
		if err != nil {
			s.stats.AddParseError()
			monitoring.Warnf("pose feed (%s): %v", s.source, err)
			return
		}
		s.accept(msg)
	default:
		s.stats.AddSkipped()
	}
}

func (s *sink) accept(msg wire.PoseMessage) {
	p := msg.Pose()
	s.tracker.Update(p)
	s.once.Do(func() {
		monitoring.Logf("pose feed (%s): estimated base pose received", s.source)
	})
	s.stats.AddPose()

	if s.store == nil {
		return
	}
	at := msg.Time()
	if msg.Stamp == 0 {
		at = s.clock.Now()
	}
	now := s.clock.Now()
	s.mu.Lock()
	due := now.Sub(s.lastStored) >= s.storeInterval
	if due {
		s.lastStored = now
	}
	s.mu.Unlock()
	if !due {
		return
	}
	if err := s.store.InsertPose(s.runID.Load(), s.source, p, at); err != nil {
		monitoring.Warnf("pose feed (%s): %v", s.source, err)
	}
}

// LineSource is the subscription half of the link mux.
type LineSource interface {
	Subscribe() (string, chan string)
	Unsubscribe(string)
}

// LinkFeed consumes the base link's inbound lines. It is the primary pose
// input.
type LinkFeed struct {
	src LineSource
	*sink
}

func NewLinkFeed(src LineSource, cfg Config) *LinkFeed {
	return &LinkFeed{src: src, sink: newSink(cfg)}
}

// Run consumes lines until the context ends or the subscription closes.
func (f *LinkFeed) Run(ctx context.Context) error {
	id, ch := f.src.Subscribe()
	defer f.src.Unsubscribe(id)
	for {
		select {
		case line, ok := <-ch:
			if !ok {
				return nil
			}
			f.handleLine(line)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
