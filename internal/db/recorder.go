package db

import (
	"sync/atomic"

	"github.com/ferrule-robotics/missiond/internal/mission"
	"github.com/ferrule-robotics/missiond/internal/monitoring"
)

// recorderQueueSize bounds how many goal events can wait for the writer
// goroutine. The sequencer emits a handful of events per goal, so the
// queue only fills if the disk has stopped keeping up.
const recorderQueueSize = 256

// Recorder forwards sequencer goal events into the mission log. Events are
// queued on a buffered channel and written by a background goroutine, so
// the sequencer's countdown loop never waits on SQLite; when the queue is
// full the event is dropped with a warning.
type Recorder struct {
	db    *DB
	runID atomic.Int64
	queue chan mission.GoalEvent
	stop  chan struct{}
	done  chan struct{}
}

var _ mission.EventRecorder = (*Recorder)(nil)

// NewRecorder starts the writer goroutine. Call Close to drain and stop it.
func NewRecorder(db *DB) *Recorder {
	r := &Recorder{
		db:    db,
		queue: make(chan mission.GoalEvent, recorderQueueSize),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go r.loop()
	return r
}

// SetRun scopes subsequent events to the given run id. Zero clears the
// association.
func (r *Recorder) SetRun(runID int64) {
	r.runID.Store(runID)
}

// RecordGoalEvent queues one event without blocking.
func (r *Recorder) RecordGoalEvent(ev mission.GoalEvent) {
	select {
	case r.queue <- ev:
	default:
		monitoring.Warnf("mission log: dropped goal event %s/%s (%s), queue full", ev.Mission, ev.Goal, ev.Event)
	}
}

// Close drains queued events and stops the writer.
func (r *Recorder) Close() {
	close(r.stop)
	<-r.done
}

func (r *Recorder) loop() {
	defer close(r.done)
	for {
		select {
		case ev := <-r.queue:
			r.write(ev)
		case <-r.stop:
			for {
				select {
				case ev := <-r.queue:
					r.write(ev)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(ev mission.GoalEvent) {
	if err := r.db.InsertGoalEvent(r.runID.Load(), ev); err != nil {
		monitoring.Warnf("mission log: failed to record goal event: %v", err)
	}
}
