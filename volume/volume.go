// Package volume holds scalar 3D images on a regular grid and loaders for
// the file formats segmentations and overlays usually come in.
package volume

import (
	"errors"
	"fmt"
	"math"

	"github.com/soypat/surfplot/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrFormat is wrapped by loaders when file contents cannot be decoded.
	ErrFormat = errors.New("volume: bad format")
	// ErrReference is returned by Resolve for unsupported reference types.
	ErrReference = errors.New("volume: unsupported volume reference")
)

// Volume is a scalar field sampled on a regular grid. Voxel (i,j,k) sits at
// world position Origin + Spacing*(i,j,k). Data is stored with i varying
// fastest, then j, then k.
type Volume struct {
	Dims    [3]int
	Spacing r3.Vec
	Origin  r3.Vec
	Data    []float64
}

// New allocates a zeroed volume with unit spacing at the origin.
func New(nx, ny, nz int) *Volume {
	if nx <= 0 || ny <= 0 || nz <= 0 {
		panic("volume dimensions must be positive")
	}
	return &Volume{
		Dims:    [3]int{nx, ny, nz},
		Spacing: d3.Elem(1),
		Data:    make([]float64, nx*ny*nz),
	}
}

// Index returns the offset of voxel (i,j,k) in Data.
func (v *Volume) Index(i, j, k int) int {
	return i + v.Dims[0]*(j+v.Dims[1]*k)
}

// InBounds reports whether (i,j,k) addresses a voxel.
func (v *Volume) InBounds(i, j, k int) bool {
	return i >= 0 && j >= 0 && k >= 0 && i < v.Dims[0] && j < v.Dims[1] && k < v.Dims[2]
}

// At returns the value of voxel (i,j,k). It panics if out of bounds.
func (v *Volume) At(i, j, k int) float64 {
	return v.Data[v.Index(i, j, k)]
}

// Set sets the value of voxel (i,j,k).
func (v *Volume) Set(i, j, k int, val float64) {
	v.Data[v.Index(i, j, k)] = val
}

// Position returns the world position of grid point (i,j,k). Indices
// outside the grid are extrapolated along the same lattice.
func (v *Volume) Position(i, j, k int) r3.Vec {
	idx := r3.Vec{X: float64(i), Y: float64(j), Z: float64(k)}
	return r3.Add(v.Origin, d3.MulElem(v.Spacing, idx))
}

// Bounds returns the box spanned by the voxel centers.
func (v *Volume) Bounds() r3.Box {
	return r3.Box{
		Min: v.Position(0, 0, 0),
		Max: v.Position(v.Dims[0]-1, v.Dims[1]-1, v.Dims[2]-1),
	}
}

// Range returns the minimum and maximum voxel values.
func (v *Volume) Range() (min, max float64) {
	min, max = math.Inf(1), math.Inf(-1)
	for _, d := range v.Data {
		min = math.Min(min, d)
		max = math.Max(max, d)
	}
	return min, max
}

// IsBinary reports whether every voxel is either 0 or 1.
func (v *Volume) IsBinary() bool {
	for _, d := range v.Data {
		if d != 0 && d != 1 {
			return false
		}
	}
	return true
}

// SameGeometry reports whether v and other share dimensions, spacing and origin.
func (v *Volume) SameGeometry(other *Volume) bool {
	const tol = 1e-6
	return v.Dims == other.Dims &&
		d3.EqualWithin(v.Spacing, other.Spacing, tol) &&
		d3.EqualWithin(v.Origin, other.Origin, tol)
}

// Sample returns the trilinear interpolation of the volume at world point p.
// Points outside the grid sample as 0.
func (v *Volume) Sample(p r3.Vec) float64 {
	g := d3.DivElem(r3.Sub(p, v.Origin), v.Spacing)
	fi, fj, fk := math.Floor(g.X), math.Floor(g.Y), math.Floor(g.Z)
	i, j, k := int(fi), int(fj), int(fk)
	tx, ty, tz := g.X-fi, g.Y-fj, g.Z-fk
	var acc float64
	for c := 0; c < 8; c++ {
		di, dj, dk := c&1, (c>>1)&1, (c>>2)&1
		w := weight(tx, di) * weight(ty, dj) * weight(tz, dk)
		if w == 0 || !v.InBounds(i+di, j+dj, k+dk) {
			continue
		}
		acc += w * v.At(i+di, j+dj, k+dk)
	}
	return acc
}

func weight(t float64, upper int) float64 {
	if upper == 1 {
		return t
	}
	return 1 - t
}

// Validate checks the volume is internally consistent.
func (v *Volume) Validate() error {
	n := v.Dims[0] * v.Dims[1] * v.Dims[2]
	if v.Dims[0] <= 0 || v.Dims[1] <= 0 || v.Dims[2] <= 0 {
		return fmt.Errorf("%w: non-positive dimensions %v", ErrFormat, v.Dims)
	}
	if len(v.Data) != n {
		return fmt.Errorf("%w: %d voxels for dimensions %v", ErrFormat, len(v.Data), v.Dims)
	}
	if d3.LTEZero(v.Spacing) {
		return fmt.Errorf("%w: non-positive spacing %v", ErrFormat, v.Spacing)
	}
	return nil
}

// Resolve turns a volume reference into a volume. A reference is a *Volume,
// a Volume or a path accepted by Load.
func Resolve(ref any) (*Volume, error) {
	switch r := ref.(type) {
	case *Volume:
		if r == nil {
			return nil, fmt.Errorf("%w: nil *Volume", ErrReference)
		}
		return r, nil
	case Volume:
		return &r, nil
	case string:
		return Load(r)
	default:
		return nil, fmt.Errorf("%w: %T", ErrReference, ref)
	}
}
