// Package render extracts triangulated isosurfaces from sampled scalar
// fields and reads and writes them as binary STL.
package render

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Renderer streams triangles. ReadTriangles returns io.EOF once the
// surface has been fully read.
type Renderer interface {
	ReadTriangles(t []Triangle3) (int, error)
}

// Field is a scalar function sampled on a regular grid.
type Field interface {
	// Dims returns the number of grid points along each axis.
	Dims() (nx, ny, nz int)
	// At returns the value at grid point (i,j,k), which is always in range.
	At(i, j, k int) float64
	// Position returns the world position of grid point (i,j,k). It must
	// accept indices one step outside the grid.
	Position(i, j, k int) r3.Vec
}

// Triangle3 is a 3D triangle. Vertices are counter clockwise when seen
// from the side the normal points to.
type Triangle3 [3]r3.Vec

// Normal returns the unit normal of the triangle.
func (t Triangle3) Normal() r3.Vec {
	e1 := r3.Sub(t[1], t[0])
	e2 := r3.Sub(t[2], t[0])
	return r3.Unit(r3.Cross(e1, e2))
}

// Degenerate returns true if two vertices are within tol of each other.
func (t Triangle3) Degenerate(tol float64) bool {
	return r3.Norm(r3.Sub(t[0], t[1])) <= tol ||
		r3.Norm(r3.Sub(t[1], t[2])) <= tol ||
		r3.Norm(r3.Sub(t[2], t[0])) <= tol
}
