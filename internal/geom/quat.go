package geom

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// Quaternion conventions: quat.Number maps to the usual (x, y, z, w)
// message fields as Imag=x, Jmag=y, Kmag=z, Real=w. Euler angles are
// extrinsic x-y-z (roll about fixed X first, yaw about fixed Z last), the
// convention used by common robot middleware.

// FromYaw builds the unit quaternion for a pure heading rotation. Goals in
// a mission plan carry only a heading, so this is the conversion used when
// publishing them.
func FromYaw(yaw float64) quat.Number {
	return quat.Number{Real: math.Cos(yaw / 2), Kmag: math.Sin(yaw / 2)}
}

// FromEuler composes roll, pitch and yaw rotations into one quaternion.
func FromEuler(roll, pitch, yaw float64) quat.Number {
	qx := quat.Number{Real: math.Cos(roll / 2), Imag: math.Sin(roll / 2)}
	qy := quat.Number{Real: math.Cos(pitch / 2), Jmag: math.Sin(pitch / 2)}
	qz := quat.Number{Real: math.Cos(yaw / 2), Kmag: math.Sin(yaw / 2)}
	return quat.Mul(qz, quat.Mul(qy, qx))
}

// Euler decomposes q into extrinsic x-y-z Euler angles. q need not be
// normalized; a zero quaternion decomposes to all-zero angles.
func Euler(q quat.Number) (roll, pitch, yaw float64) {
	n := quat.Abs(q)
	if n == 0 {
		return 0, 0, 0
	}
	q = quat.Scale(1/n, q)

	x, y, z, w := q.Imag, q.Jmag, q.Kmag, q.Real
	roll = math.Atan2(2*(w*x+y*z), 1-2*(x*x+y*y))

	sinp := 2 * (w*y - z*x)
	if sinp > 1 {
		sinp = 1
	} else if sinp < -1 {
		sinp = -1
	}
	pitch = math.Asin(sinp)

	yaw = math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z))
	return roll, pitch, yaw
}

// Yaw extracts the heading component of q. Pose estimates from the motion
// controller arrive as full quaternions; the planner only tracks heading.
func Yaw(q quat.Number) float64 {
	_, _, yaw := Euler(q)
	return yaw
}
