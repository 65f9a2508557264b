// Package wire defines the line-delimited JSON messages exchanged with the
// motion controller over the base link. Outbound traffic is goal commands;
// inbound traffic is pose updates. Each message is a single JSON object
// terminated by a newline.
package wire

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/num/quat"

	"github.com/ferrule-robotics/missiond/internal/geom"
)

const (
	TypeGoal    = "goal"
	TypePose    = "pose"
	TypeUnknown = "unknown"
)

// Vector3 is a position in meters. Mission goals are planar so Z stays 0
// on outbound messages, but inbound poses may carry one.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quaternion is an orientation in message field order x, y, z, w.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// GoalMessage commands the motion controller to drive to a pose.
type GoalMessage struct {
	Type        string     `json:"type"`
	ID          string     `json:"id"`
	Stamp       int64      `json:"stamp"` // unix nanos
	Frame       string     `json:"frame"`
	Mission     string     `json:"mission,omitempty"`
	Goal        string     `json:"goal,omitempty"`
	Position    Vector3    `json:"position"`
	Orientation Quaternion `json:"orientation"`
}

// PoseMessage reports the controller's current pose estimate.
type PoseMessage struct {
	Type        string     `json:"type"`
	ID          string     `json:"id,omitempty"`
	Stamp       int64      `json:"stamp"` // unix nanos
	Frame       string     `json:"frame,omitempty"`
	Position    Vector3    `json:"position"`
	Orientation Quaternion `json:"orientation"`
}

// NewGoalMessage builds a goal command for a planar target pose. Each call
// mints a fresh message id.
func NewGoalMessage(stamp time.Time, frame, mission, goal string, target geom.Pose) GoalMessage {
	q := geom.FromYaw(target.Yaw)
	return GoalMessage{
		Type:        TypeGoal,
		ID:          uuid.NewString(),
		Stamp:       stamp.UnixNano(),
		Frame:       frame,
		Mission:     mission,
		Goal:        goal,
		Position:    Vector3{X: target.X, Y: target.Y},
		Orientation: Quaternion{X: q.Imag, Y: q.Jmag, Z: q.Kmag, W: q.Real},
	}
}

// NewPoseMessage builds a pose update. Used by simulators and replay tools;
// the daemon itself only parses poses.
func NewPoseMessage(stamp time.Time, frame string, p geom.Pose) PoseMessage {
	q := geom.FromYaw(p.Yaw)
	return PoseMessage{
		Type:        TypePose,
		ID:          uuid.NewString(),
		Stamp:       stamp.UnixNano(),
		Frame:       frame,
		Position:    Vector3{X: p.X, Y: p.Y},
		Orientation: Quaternion{X: q.Imag, Y: q.Jmag, Z: q.Kmag, W: q.Real},
	}
}

// Pose collapses the message into the planar pose the planner tracks.
func (m PoseMessage) Pose() geom.Pose {
	yaw := geom.Yaw(quatNumber(m.Orientation))
	return geom.Pose{X: m.Position.X, Y: m.Position.Y, Yaw: yaw}
}

// Pose returns the commanded target as a planar pose.
func (m GoalMessage) Pose() geom.Pose {
	yaw := geom.Yaw(quatNumber(m.Orientation))
	return geom.Pose{X: m.Position.X, Y: m.Position.Y, Yaw: yaw}
}

// Time converts the unix-nanos stamp back to a time.Time.
func (m PoseMessage) Time() time.Time { return time.Unix(0, m.Stamp) }

func (m GoalMessage) Time() time.Time { return time.Unix(0, m.Stamp) }

// EncodeGoal marshals a goal command as one newline-terminated line.
func EncodeGoal(m GoalMessage) ([]byte, error) {
	m.Type = TypeGoal
	return encodeLine(m)
}

// EncodePose marshals a pose update as one newline-terminated line.
func EncodePose(m PoseMessage) ([]byte, error) {
	m.Type = TypePose
	return encodeLine(m)
}

func encodeLine(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// Classify inspects a raw line and returns its message type token without
// fully decoding it. Lines that are not JSON objects, or whose type field
// is missing or unrecognised, classify as unknown and are skipped by
// callers.
func Classify(line string) string {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "{") {
		return TypeUnknown
	}
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(line), &env); err != nil {
		return TypeUnknown
	}
	switch env.Type {
	case TypeGoal, TypePose:
		return env.Type
	}
	return TypeUnknown
}

// ParsePose decodes a pose update line. A line whose type field is not
// "pose" is an error.
func ParsePose(line string) (PoseMessage, error) {
	var m PoseMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(line)), &m); err != nil {
		return PoseMessage{}, fmt.Errorf("failed to unmarshal pose line: %v", err)
	}
	if m.Type != TypePose {
		return PoseMessage{}, fmt.Errorf("not a pose line: type %q", m.Type)
	}
	return m, nil
}

// ParseGoal decodes a goal command line. A line whose type field is not
// "goal" is an error.
func ParseGoal(line string) (GoalMessage, error) {
	var m GoalMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(line)), &m); err != nil {
		return GoalMessage{}, fmt.Errorf("failed to unmarshal goal line: %v", err)
	}
	if m.Type != TypeGoal {
		return GoalMessage{}, fmt.Errorf("not a goal line: type %q", m.Type)
	}
	return m, nil
}

func quatNumber(q Quaternion) quat.Number {
	return quat.Number{Real: q.W, Imag: q.X, Jmag: q.Y, Kmag: q.Z}
}
