package geom

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/num/quat"
)

func TestFromYawRoundTrip(t *testing.T) {
	for _, yaw := range []float64{0, 0.3, -0.7, 1.57, 3.0, -3.0} {
		q := FromYaw(yaw)
		if n := quat.Abs(q); math.Abs(n-1) > eps {
			t.Errorf("FromYaw(%v) norm = %v, want 1", yaw, n)
		}
		if got := Yaw(q); math.Abs(got-yaw) > 1e-9 {
			t.Errorf("Yaw(FromYaw(%v)) = %v", yaw, got)
		}
	}
}

func TestFromYawMatchesFromEuler(t *testing.T) {
	for _, yaw := range []float64{0, 0.5, -2.2} {
		a := FromYaw(yaw)
		b := FromEuler(0, 0, yaw)
		if math.Abs(a.Real-b.Real) > eps || math.Abs(a.Imag-b.Imag) > eps ||
			math.Abs(a.Jmag-b.Jmag) > eps || math.Abs(a.Kmag-b.Kmag) > eps {
			t.Errorf("FromYaw(%v) = %+v, FromEuler = %+v", yaw, a, b)
		}
	}
}

func TestEulerRoundTrip(t *testing.T) {
	tests := []struct {
		roll, pitch, yaw float64
	}{
		{0, 0, 0},
		{0.1, 0, 0},
		{0, 0.2, 0},
		{0, 0, -1.3},
		{0.1, -0.2, 0.9},
		{-0.4, 0.3, 2.5},
	}
	for _, tt := range tests {
		q := FromEuler(tt.roll, tt.pitch, tt.yaw)
		r, p, y := Euler(q)
		if math.Abs(r-tt.roll) > 1e-9 || math.Abs(p-tt.pitch) > 1e-9 || math.Abs(y-tt.yaw) > 1e-9 {
			t.Errorf("Euler(FromEuler(%v, %v, %v)) = %v, %v, %v", tt.roll, tt.pitch, tt.yaw, r, p, y)
		}
	}
}

func TestEulerNormalizesInput(t *testing.T) {
	// Scaled quaternions decompose to the same angles as unit ones.
	q := quat.Scale(4, FromEuler(0.2, -0.1, 1.1))
	r, p, y := Euler(q)
	if math.Abs(r-0.2) > 1e-9 || math.Abs(p+0.1) > 1e-9 || math.Abs(y-1.1) > 1e-9 {
		t.Errorf("Euler(scaled) = %v, %v, %v, want 0.2, -0.1, 1.1", r, p, y)
	}
}

func TestEulerZeroQuaternion(t *testing.T) {
	r, p, y := Euler(quat.Number{})
	if r != 0 || p != 0 || y != 0 {
		t.Errorf("Euler(zero) = %v, %v, %v, want zeros", r, p, y)
	}
}
