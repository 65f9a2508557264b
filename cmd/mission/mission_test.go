package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferrule-robotics/missiond/internal/config"
	"github.com/ferrule-robotics/missiond/internal/db"
	"github.com/ferrule-robotics/missiond/internal/feed"
	"github.com/ferrule-robotics/missiond/internal/geom"
	"github.com/ferrule-robotics/missiond/internal/linkmux"
	"github.com/ferrule-robotics/missiond/internal/mission"
	"github.com/ferrule-robotics/missiond/internal/wire"
)

const fixtureConfig = `
planner:
  distance_tolerance_m: 0.5
  angle_tolerance_rad: 0.7
  goal_countdown_ticks: 3
  tick_interval: 5ms
  frame_id: test
missions:
  delivery:
    drop: {x_m: 1.0, y_m: 2.0, yaw_rad: 0.0}
`

// TestMissionEndToEnd wires the daemon's components together the way main
// does, against an in-memory link: the base reports a pose at the goal, the
// plan runs to Success, and the goal command, goal events and pose samples
// all land where they should.
func TestMissionEndToEnd(t *testing.T) {
	cfg, err := config.Parse([]byte(fixtureConfig))
	require.NoError(t, err)

	store, err := db.NewDB(filepath.Join(t.TempDir(), "mission.db"))
	require.NoError(t, err)
	defer store.Close()

	port := linkmux.NewTestableLinkPort()
	port.BlockReads = true
	link := linkmux.NewLinkMux(port)
	defer link.Close()

	recorder := db.NewRecorder(store)
	tracker := mission.NewPoseTracker()
	publisher := feed.NewLinkPublisher(link, cfg.Planner.GetFrameID())

	plan, err := mission.BuildPlan(mission.PlanConfig{
		Missions:          cfg.Missions,
		Tracker:           tracker,
		Publisher:         publisher,
		Events:            recorder,
		DistanceTolerance: cfg.Planner.GetDistanceTolerance(),
		AngleTolerance:    cfg.Planner.GetAngleTolerance(),
		CountdownTicks:    cfg.Planner.GetCountdownTicks(),
		TickInterval:      cfg.Planner.GetTickInterval(),
	})
	require.NoError(t, err)

	linkFeed := feed.NewLinkFeed(link, feed.Config{Tracker: tracker, Store: store, StoreInterval: -1})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go link.Monitor(ctx)
	go linkFeed.Run(ctx)

	runID, err := store.StartRun(time.Now(), len(cfg.Missions))
	require.NoError(t, err)
	recorder.SetRun(runID)
	linkFeed.SetRun(runID)

	// The base reports sitting at the goal already.
	poseLine, err := wire.EncodePose(wire.NewPoseMessage(time.Now(), "test", geom.Pose{X: 1, Y: 2}))
	require.NoError(t, err)
	port.AddReadData(poseLine)

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, fresh := tracker.Estimate(); fresh {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("tracker never received the pose line")
		}
		time.Sleep(time.Millisecond)
	}

	outcome, err := plan.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, mission.PlanSuccess, outcome)

	require.NoError(t, store.FinishRun(runID, time.Now(), outcome))
	recorder.Close()

	// The goal command went out the link.
	written := strings.TrimSpace(string(port.Written()))
	goalMsg, err := wire.ParseGoal(written)
	require.NoError(t, err)
	assert.Equal(t, "delivery", goalMsg.Mission)
	assert.Equal(t, "drop", goalMsg.Goal)
	assert.Equal(t, "test", goalMsg.Frame)
	assert.InDelta(t, 1.0, goalMsg.Position.X, 1e-9)
	assert.InDelta(t, 2.0, goalMsg.Position.Y, 1e-9)

	// The run's goal events tell the whole story in order.
	events, err := store.GoalEventsForRun(runID)
	require.NoError(t, err)
	var names []string
	for _, ev := range events {
		names = append(names, ev.Event)
	}
	assert.Equal(t, []string{mission.EventPublished, mission.EventReached, mission.EventCompleted}, names)
	require.NotEmpty(t, events)
	assert.Equal(t, "delivery", events[0].Mission)
	assert.Equal(t, "drop", events[0].Goal)

	// The pose sample was recorded against the run.
	poses, err := store.PosesForRun(runID)
	require.NoError(t, err)
	require.NotEmpty(t, poses)
	assert.InDelta(t, 1.0, poses[0].X, 1e-9)

	run, err := store.GetRun(runID)
	require.NoError(t, err)
	require.NotNil(t, run.Result)
	assert.Equal(t, mission.PlanSuccess, *run.Result)
}

// TestMissionAbortRecordsFailure drives a plan whose base never moves: the
// first goal times out, the mission aborts and the plan fails.
func TestMissionAbortRecordsFailure(t *testing.T) {
	cfg, err := config.Parse([]byte(fixtureConfig))
	require.NoError(t, err)

	store, err := db.NewDB(filepath.Join(t.TempDir(), "mission.db"))
	require.NoError(t, err)
	defer store.Close()

	port := linkmux.NewTestableLinkPort()
	port.BlockReads = true
	link := linkmux.NewLinkMux(port)
	defer link.Close()

	recorder := db.NewRecorder(store)
	tracker := mission.NewPoseTracker()
	// Far from the goal and never updated again.
	tracker.Update(geom.Pose{X: -50, Y: -50})

	plan, err := mission.BuildPlan(mission.PlanConfig{
		Missions:          cfg.Missions,
		Tracker:           tracker,
		Publisher:         feed.NewLinkPublisher(link, cfg.Planner.GetFrameID()),
		Events:            recorder,
		DistanceTolerance: cfg.Planner.GetDistanceTolerance(),
		AngleTolerance:    cfg.Planner.GetAngleTolerance(),
		CountdownTicks:    cfg.Planner.GetCountdownTicks(),
		TickInterval:      cfg.Planner.GetTickInterval(),
	})
	require.NoError(t, err)

	runID, err := store.StartRun(time.Now(), len(cfg.Missions))
	require.NoError(t, err)
	recorder.SetRun(runID)

	outcome, err := plan.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, mission.PlanFailure, outcome)

	require.NoError(t, store.FinishRun(runID, time.Now(), outcome))
	recorder.Close()

	events, err := store.GoalEventsForRun(runID)
	require.NoError(t, err)
	var names []string
	for _, ev := range events {
		names = append(names, ev.Event)
	}
	assert.Equal(t, []string{mission.EventPublished, mission.EventAborted}, names)
}
