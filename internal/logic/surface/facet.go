// Package surface discretizes the reflective mirror facet into the point and
// normal grids consumed by the kinematic alignment.
package surface

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Facet is a planar rectangular mirror in the mirror's local frame. At rest
// the facet spans the E/U plane and its reflective normal points along -N,
// matching the kinematic chain's nominal back direction.
type Facet struct {
	WidthM  float64 // extent along the local east axis
	HeightM float64 // extent along the local up axis
	Cols    int     // sample columns across the width
	Rows    int     // sample rows across the height
}

// Grid returns the sample points and their normals in the local mirror
// frame, centered on the mount point. Points are laid out row-major, top row
// first, so Grid()[0] is the top-left corner sample.
func (f Facet) Grid() ([]r3.Vec, []r3.Vec, error) {
	if f.WidthM <= 0 || f.HeightM <= 0 {
		return nil, nil, fmt.Errorf("facet dimensions must be > 0, got %g x %g", f.WidthM, f.HeightM)
	}
	if f.Cols < 1 || f.Rows < 1 {
		return nil, nil, fmt.Errorf("facet needs at least a 1x1 grid, got %dx%d", f.Cols, f.Rows)
	}

	points := make([]r3.Vec, 0, f.Cols*f.Rows)
	normals := make([]r3.Vec, 0, f.Cols*f.Rows)
	for row := 0; row < f.Rows; row++ {
		u := f.HeightM/2 - cellCenter(row, f.Rows, f.HeightM)
		for col := 0; col < f.Cols; col++ {
			e := -f.WidthM/2 + cellCenter(col, f.Cols, f.WidthM)
			points = append(points, r3.Vec{X: e, Z: u})
			normals = append(normals, r3.Vec{Y: -1})
		}
	}
	return points, normals, nil
}

// cellCenter returns the offset of cell i's midpoint along an axis of the
// given total extent divided into n cells.
func cellCenter(i, n int, extent float64) float64 {
	cell := extent / float64(n)
	return cell*float64(i) + cell/2
}
