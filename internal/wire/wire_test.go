package wire

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/ferrule-robotics/missiond/internal/geom"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`{"type":"goal","id":"x"}`, TypeGoal},
		{`{"type":"pose","stamp":1}`, TypePose},
		{`  {"type":"pose"}` + "\n", TypePose},
		{`{"type":"telemetry"}`, TypeUnknown},
		{`{"stamp":12}`, TypeUnknown},
		{`OK`, TypeUnknown},
		{``, TypeUnknown},
		{`{not json`, TypeUnknown},
	}
	for _, c := range cases {
		got := Classify(c.in)
		if got != c.want {
			t.Errorf("Classify(%q) = %q; want %q", c.in, got, c.want)
		}
	}
}

func TestGoalMessageRoundTrip(t *testing.T) {
	stamp := time.Unix(1700000000, 42)
	target := geom.Pose{X: 1.5, Y: -2.25, Yaw: 0.9}
	m := NewGoalMessage(stamp, "world", "survey", "waypoint_2", target)

	if m.ID == "" {
		t.Fatal("NewGoalMessage minted empty id")
	}
	if m.Position.Z != 0 {
		t.Errorf("goal Z = %v, want 0", m.Position.Z)
	}

	line, err := EncodeGoal(m)
	if err != nil {
		t.Fatalf("EncodeGoal: %v", err)
	}
	if !strings.HasSuffix(string(line), "\n") {
		t.Error("encoded goal line missing trailing newline")
	}

	got, err := ParseGoal(string(line))
	if err != nil {
		t.Fatalf("ParseGoal: %v", err)
	}
	if got.ID != m.ID || got.Mission != "survey" || got.Goal != "waypoint_2" || got.Frame != "world" {
		t.Errorf("round-trip goal = %+v", got)
	}
	if got.Time() != stamp {
		t.Errorf("goal stamp = %v, want %v", got.Time(), stamp)
	}
	p := got.Pose()
	if math.Abs(p.X-target.X) > 1e-9 || math.Abs(p.Y-target.Y) > 1e-9 || math.Abs(p.Yaw-target.Yaw) > 1e-9 {
		t.Errorf("goal pose = %+v, want %+v", p, target)
	}
}

func TestPoseMessageYawExtraction(t *testing.T) {
	m := NewPoseMessage(time.Unix(10, 0), "world", geom.Pose{X: 3, Y: 4, Yaw: -1.2})
	line, err := EncodePose(m)
	if err != nil {
		t.Fatalf("EncodePose: %v", err)
	}
	got, err := ParsePose(string(line))
	if err != nil {
		t.Fatalf("ParsePose: %v", err)
	}
	p := got.Pose()
	if math.Abs(p.Yaw+1.2) > 1e-9 {
		t.Errorf("extracted yaw = %v, want -1.2", p.Yaw)
	}
}

func TestParseRejectsWrongType(t *testing.T) {
	if _, err := ParsePose(`{"type":"goal","id":"a"}`); err == nil {
		t.Error("ParsePose accepted a goal line")
	}
	if _, err := ParseGoal(`{"type":"pose"}`); err == nil {
		t.Error("ParseGoal accepted a pose line")
	}
	if _, err := ParsePose("garbage"); err == nil {
		t.Error("ParsePose accepted garbage")
	}
}

func TestParsePoseMissingOrientation(t *testing.T) {
	// A pose line with no orientation decodes to a zero quaternion, which
	// collapses to heading 0 rather than failing.
	got, err := ParsePose(`{"type":"pose","stamp":5,"position":{"x":1,"y":2,"z":0}}`)
	if err != nil {
		t.Fatalf("ParsePose: %v", err)
	}
	p := got.Pose()
	if p.X != 1 || p.Y != 2 || p.Yaw != 0 {
		t.Errorf("pose = %+v, want {1 2 0}", p)
	}
}
