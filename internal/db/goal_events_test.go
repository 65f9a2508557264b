package db

import (
	"testing"
	"time"

	"github.com/ferrule-robotics/missiond/internal/mission"
)

func testEvent(m, g, event string, idx int, measured bool, distance float64) mission.GoalEvent {
	return mission.GoalEvent{
		Mission:   m,
		Goal:      g,
		GoalIndex: idx,
		Event:     event,
		Distance:  distance,
		Heading:   0.1,
		Measured:  measured,
		At:        time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}
}

func TestInsertGoalEventMeasurementNulls(t *testing.T) {
	db := newTestDB(t)

	// Publish events carry no measurement; the stored columns must be NULL,
	// not zero, so stats never average in phantom measurements.
	if err := db.InsertGoalEvent(0, testEvent("loop", "g0", mission.EventPublished, 0, false, 0)); err != nil {
		t.Fatalf("InsertGoalEvent failed: %v", err)
	}
	if err := db.InsertGoalEvent(0, testEvent("loop", "g0", mission.EventReached, 0, true, 0.25)); err != nil {
		t.Fatalf("InsertGoalEvent failed: %v", err)
	}

	var nullDistances, measuredDistances int
	if err := db.QueryRow(`SELECT COUNT(*) FROM goal_events WHERE distance_m IS NULL`).Scan(&nullDistances); err != nil {
		t.Fatalf("Failed to count NULL distances: %v", err)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM goal_events WHERE distance_m IS NOT NULL`).Scan(&measuredDistances); err != nil {
		t.Fatalf("Failed to count measured distances: %v", err)
	}
	if nullDistances != 1 || measuredDistances != 1 {
		t.Errorf("Expected 1 NULL and 1 measured distance, got %d and %d", nullDistances, measuredDistances)
	}
}

func TestGoalEventsForRun(t *testing.T) {
	db := newTestDB(t)

	runID, err := db.StartRun(time.Now(), 1)
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}

	if err := db.InsertGoalEvent(runID, testEvent("loop", "g0", mission.EventPublished, 0, false, 0)); err != nil {
		t.Fatalf("InsertGoalEvent failed: %v", err)
	}
	if err := db.InsertGoalEvent(runID, testEvent("loop", "g0", mission.EventReached, 0, true, 0.2)); err != nil {
		t.Fatalf("InsertGoalEvent failed: %v", err)
	}
	// An event from another run must not leak in.
	if err := db.InsertGoalEvent(runID+1, testEvent("other", "g0", mission.EventPublished, 0, false, 0)); err != nil {
		t.Fatalf("InsertGoalEvent failed: %v", err)
	}

	events, err := db.GoalEventsForRun(runID)
	if err != nil {
		t.Fatalf("GoalEventsForRun failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}
	if events[0].Event != mission.EventPublished || events[1].Event != mission.EventReached {
		t.Errorf("Events out of order: %s, %s", events[0].Event, events[1].Event)
	}
	if events[0].RunID == nil || *events[0].RunID != runID {
		t.Errorf("RunID = %v, want %d", events[0].RunID, runID)
	}
	if events[0].DistanceM != nil {
		t.Errorf("Publish event DistanceM should be nil, got %v", *events[0].DistanceM)
	}
	if events[1].DistanceM == nil || *events[1].DistanceM != 0.2 {
		t.Errorf("Reached event DistanceM = %v, want 0.2", events[1].DistanceM)
	}
}

func TestRecentGoalEventsNewestFirst(t *testing.T) {
	db := newTestDB(t)

	for i, event := range []string{mission.EventPublished, mission.EventReached, mission.EventCompleted} {
		if err := db.InsertGoalEvent(0, testEvent("loop", "g0", event, i, false, 0)); err != nil {
			t.Fatalf("InsertGoalEvent failed: %v", err)
		}
	}

	events, err := db.RecentGoalEvents(2)
	if err != nil {
		t.Fatalf("RecentGoalEvents failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}
	if events[0].Event != mission.EventCompleted || events[1].Event != mission.EventReached {
		t.Errorf("Events out of order: %s, %s", events[0].Event, events[1].Event)
	}
}

func TestGoalStatsRollup(t *testing.T) {
	db := newTestDB(t)

	inserts := []mission.GoalEvent{
		testEvent("survey", "g0", mission.EventPublished, 0, false, 0),
		testEvent("survey", "g0", mission.EventReached, 0, true, 0.1),
		testEvent("survey", "g1", mission.EventPublished, 1, false, 0),
		testEvent("survey", "g1", mission.EventReached, 1, true, 0.3),
		testEvent("survey", "g2", mission.EventPublished, 2, false, 0),
		testEvent("survey", "g2", mission.EventSkipped, 2, false, 0),
		testEvent("homing", "dock", mission.EventPublished, 0, false, 0),
		testEvent("homing", "dock", mission.EventAborted, 0, true, 4.2),
	}
	for _, ev := range inserts {
		if err := db.InsertGoalEvent(0, ev); err != nil {
			t.Fatalf("InsertGoalEvent failed: %v", err)
		}
	}

	stats, err := db.GoalStats()
	if err != nil {
		t.Fatalf("GoalStats failed: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("Expected stats for 2 missions, got %d", len(stats))
	}

	// Ordered by mission name: homing, survey.
	homing, survey := stats[0], stats[1]
	if homing.Mission != "homing" || survey.Mission != "survey" {
		t.Fatalf("Unexpected mission order: %s, %s", homing.Mission, survey.Mission)
	}

	if survey.Published != 3 || survey.Reached != 2 || survey.Skipped != 1 || survey.Aborted != 0 {
		t.Errorf("survey stats = published %d, reached %d, skipped %d, aborted %d",
			survey.Published, survey.Reached, survey.Skipped, survey.Aborted)
	}
	if survey.AvgDistanceM == nil {
		t.Fatal("survey AvgDistanceM should not be nil")
	}
	if avg := *survey.AvgDistanceM; avg < 0.199 || avg > 0.201 {
		t.Errorf("survey AvgDistanceM = %f, want 0.2", avg)
	}

	if homing.Published != 1 || homing.Aborted != 1 || homing.Reached != 0 {
		t.Errorf("homing stats = published %d, reached %d, aborted %d",
			homing.Published, homing.Reached, homing.Aborted)
	}
	if homing.AvgDistanceM != nil {
		t.Errorf("homing AvgDistanceM should be nil with no reached events, got %v", *homing.AvgDistanceM)
	}
}

func TestGoalStatsEmpty(t *testing.T) {
	db := newTestDB(t)

	stats, err := db.GoalStats()
	if err != nil {
		t.Fatalf("GoalStats failed: %v", err)
	}
	if len(stats) != 0 {
		t.Errorf("Expected no stats on an empty log, got %d", len(stats))
	}
}

func TestGoalEventConstantsMatchSchema(t *testing.T) {
	// The rollup query matches event tokens literally; if the sequencer's
	// constants drift the stats silently go to zero, so pin them here.
	want := map[string]string{
		"published": mission.EventPublished,
		"reached":   mission.EventReached,
		"skipped":   mission.EventSkipped,
		"aborted":   mission.EventAborted,
		"completed": mission.EventCompleted,
	}
	for token, constant := range want {
		if token != constant {
			t.Errorf("Event constant %q does not match rollup token %q", constant, token)
		}
	}
}
