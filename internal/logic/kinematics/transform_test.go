package kinematics

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

const vecEps = 1e-12

func vecClose(a, b r3.Vec, eps float64) bool {
	return math.Abs(a.X-b.X) <= eps && math.Abs(a.Y-b.Y) <= eps && math.Abs(a.Z-b.Z) <= eps
}

func TestRotations_QuarterTurns(t *testing.T) {
	cases := []struct {
		name string
		o    Orientation
		in   r3.Vec
		want r3.Vec
	}{
		{"E_north_to_up", Orientation{m: RotateE(math.Pi / 2)}, r3.Vec{Y: 1}, r3.Vec{Z: 1}},
		{"E_up_to_south", Orientation{m: RotateE(math.Pi / 2)}, r3.Vec{Z: 1}, r3.Vec{Y: -1}},
		{"N_up_to_east", Orientation{m: RotateN(math.Pi / 2)}, r3.Vec{Z: 1}, r3.Vec{X: 1}},
		{"U_east_to_north", Orientation{m: RotateU(math.Pi / 2)}, r3.Vec{X: 1}, r3.Vec{Y: 1}},
		{"E_axis_fixed", Orientation{m: RotateE(1.234)}, r3.Vec{X: 1}, r3.Vec{X: 1}},
		{"N_axis_fixed", Orientation{m: RotateN(1.234)}, r3.Vec{Y: 1}, r3.Vec{Y: 1}},
		{"U_axis_fixed", Orientation{m: RotateU(1.234)}, r3.Vec{Z: 1}, r3.Vec{Z: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.o.ApplyDirection(tc.in)
			if !vecClose(got, tc.want, vecEps) {
				t.Errorf("ApplyDirection(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestRotations_ZeroAngleIsIdentity(t *testing.T) {
	for _, tc := range []struct {
		name string
		o    Orientation
	}{
		{"E", Orientation{m: RotateE(0)}},
		{"N", Orientation{m: RotateN(0)}},
		{"U", Orientation{m: RotateU(0)}},
	} {
		v := r3.Vec{X: 0.3, Y: -1.2, Z: 2.5}
		if got := tc.o.ApplyDirection(v); got != v {
			t.Errorf("Rotate%s(0) changed %v to %v", tc.name, v, got)
		}
	}
}

func TestTranslate_PointsVsDirections(t *testing.T) {
	o := Orientation{m: TranslateENU(1, -2, 3)}

	p := o.ApplyPoint(r3.Vec{X: 10, Y: 10, Z: 10})
	if !vecClose(p, r3.Vec{X: 11, Y: 8, Z: 13}, vecEps) {
		t.Errorf("ApplyPoint = %v, want (11, 8, 13)", p)
	}

	// Directions (w=0) must ignore the translation
	d := o.ApplyDirection(r3.Vec{X: 10, Y: 10, Z: 10})
	if !vecClose(d, r3.Vec{X: 10, Y: 10, Z: 10}, vecEps) {
		t.Errorf("ApplyDirection = %v, want (10, 10, 10)", d)
	}
}

func TestCompose_OrderMatters(t *testing.T) {
	// Translate then rotate vs rotate then translate give different origins.
	tr := Orientation{m: compose(TranslateENU(1, 0, 0), RotateU(math.Pi/2))}
	rt := Orientation{m: compose(RotateU(math.Pi/2), TranslateENU(1, 0, 0))}

	if got := tr.Origin(); !vecClose(got, r3.Vec{X: 1}, vecEps) {
		t.Errorf("translate-then-rotate origin = %v, want (1, 0, 0)", got)
	}
	if got := rt.Origin(); !vecClose(got, r3.Vec{Y: 1}, vecEps) {
		t.Errorf("rotate-then-translate origin = %v, want (0, 1, 0)", got)
	}
}

func TestOrientation_NormalAndOrigin(t *testing.T) {
	// Identity chain: back direction is -N, origin at the translation.
	o := Orientation{m: TranslateENU(5, 6, 7)}
	if got := o.Normal(); !vecClose(got, r3.Vec{Y: -1}, vecEps) {
		t.Errorf("Normal = %v, want (0, -1, 0)", got)
	}
	if got := o.Origin(); !vecClose(got, r3.Vec{X: 5, Y: 6, Z: 7}, vecEps) {
		t.Errorf("Origin = %v, want (5, 6, 7)", got)
	}

	// Rotating the mount about E by -pi flips the back direction to +N.
	flipped := Orientation{m: compose(TranslateENU(5, 6, 7), RotateE(-math.Pi))}
	if got := flipped.Normal(); !vecClose(got, r3.Vec{Y: 1}, vecEps) {
		t.Errorf("flipped Normal = %v, want (0, 1, 0)", got)
	}
}
