// Package geom provides planar pose math for the mission planner. The
// navigation stack works in a fixed world frame where a robot pose is a 2D
// position plus a heading; full 3D orientation only appears at the wire
// boundary, as quaternions.
package geom

import "math"

// Pose is a planar robot pose in the world frame: position in meters,
// heading in radians.
type Pose struct {
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	Yaw float64 `json:"yaw"`
}

// Distance returns the planar Euclidean distance between the positions of
// a and b. Heading is ignored.
func Distance(a, b Pose) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// HeadingDiff returns the absolute difference between two headings in
// radians. The difference is NOT wrapped into [0, pi]: a robot sitting at
// -3.1 rad is considered far from a goal at +3.1 rad even though the
// physical headings nearly coincide. Angle tolerances are applied to this
// raw difference.
func HeadingDiff(a, b float64) float64 {
	return math.Abs(a - b)
}

// NormalizeAngle wraps an angle into (-pi, pi]. Used by simulators and
// charts that want a canonical heading, not by the arrival check.
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a > math.Pi {
		a -= 2 * math.Pi
	} else if a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}
