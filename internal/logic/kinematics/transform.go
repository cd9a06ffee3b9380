package kinematics

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// All geometry lives in the local East/North/Up frame:
// r3.Vec.X = east, Y = north, Z = up.

// TranslateENU returns the 4x4 homogeneous transform translating by (e, n, u).
func TranslateENU(e, n, u float64) *mat.Dense {
	return mat.NewDense(4, 4, []float64{
		1, 0, 0, e,
		0, 1, 0, n,
		0, 0, 1, u,
		0, 0, 0, 1,
	})
}

// RotateE returns the homogeneous rotation by angle (radians) about the east axis.
func RotateE(angle float64) *mat.Dense {
	c, s := math.Cos(angle), math.Sin(angle)
	return mat.NewDense(4, 4, []float64{
		1, 0, 0, 0,
		0, c, -s, 0,
		0, s, c, 0,
		0, 0, 0, 1,
	})
}

// RotateN returns the homogeneous rotation by angle (radians) about the north axis.
func RotateN(angle float64) *mat.Dense {
	c, s := math.Cos(angle), math.Sin(angle)
	return mat.NewDense(4, 4, []float64{
		c, 0, s, 0,
		0, 1, 0, 0,
		-s, 0, c, 0,
		0, 0, 0, 1,
	})
}

// RotateU returns the homogeneous rotation by angle (radians) about the up axis.
func RotateU(angle float64) *mat.Dense {
	c, s := math.Cos(angle), math.Sin(angle)
	return mat.NewDense(4, 4, []float64{
		c, -s, 0, 0,
		s, c, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
}

// compose multiplies the given transforms left to right: compose(A, B, C) = A*B*C.
func compose(ms ...*mat.Dense) *mat.Dense {
	out := ms[0]
	for _, m := range ms[1:] {
		next := mat.NewDense(4, 4, nil)
		next.Mul(out, m)
		out = next
	}
	return out
}

// Orientation is a 4x4 homogeneous rigid transform (rotation + translation)
// mapping the mirror frame into the world ENU frame.
type Orientation struct {
	m *mat.Dense
}

// Matrix returns the underlying 4x4 matrix.
func (o Orientation) Matrix() *mat.Dense {
	return o.m
}

// apply multiplies the transform with (v, w). Points use w=1, directions w=0;
// both share this single code path.
func (o Orientation) apply(v r3.Vec, w float64) r3.Vec {
	m := o.m
	return r3.Vec{
		X: m.At(0, 0)*v.X + m.At(0, 1)*v.Y + m.At(0, 2)*v.Z + m.At(0, 3)*w,
		Y: m.At(1, 0)*v.X + m.At(1, 1)*v.Y + m.At(1, 2)*v.Z + m.At(1, 3)*w,
		Z: m.At(2, 0)*v.X + m.At(2, 1)*v.Y + m.At(2, 2)*v.Z + m.At(2, 3)*w,
	}
}

// ApplyPoint transforms a point (homogeneous w=1).
func (o Orientation) ApplyPoint(v r3.Vec) r3.Vec {
	return o.apply(v, 1)
}

// ApplyDirection transforms a direction (homogeneous w=0, rotation only).
func (o Orientation) ApplyDirection(v r3.Vec) r3.Vec {
	return o.apply(v, 0)
}

// Normal returns the world-frame reflective normal: the mirror's nominal
// back direction (0, -1, 0) carried through the transform.
func (o Orientation) Normal() r3.Vec {
	return o.ApplyDirection(r3.Vec{Y: -1})
}

// Origin returns the world-frame position of the mirror mount point.
func (o Orientation) Origin() r3.Vec {
	return o.ApplyPoint(r3.Vec{})
}
