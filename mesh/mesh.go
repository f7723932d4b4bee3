// Package mesh provides an indexed triangle mesh with per-vertex annotations
// and a builder that extracts surfaces from volumetric segmentations.
package mesh

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"

	"github.com/soypat/surfplot/internal/d3"
	"github.com/soypat/surfplot/render"
	"gonum.org/v1/gonum/spatial/r3"
)

// Mesh is a triangulated surface. Faces index into Vertices and are wound
// counter clockwise seen from outside.
type Mesh struct {
	Vertices []r3.Vec
	Faces    [][3]int
	// Scalars holds one overlay sample per vertex when an overlay was given.
	Scalars []float64
	// Colors holds one color per vertex. When nil the surface is drawn
	// with a flat color.
	Colors []color.NRGBA
}

// Mesh returns m itself so *Mesh satisfies the mesh capability check done
// by the plotting routines.
func (m *Mesh) Mesh() *Mesh { return m }

// NumTriangles returns the number of faces.
func (m *Mesh) NumTriangles() int { return len(m.Faces) }

// Triangles returns the face list as vertex coordinates.
func (m *Mesh) Triangles() []render.Triangle3 {
	tris := make([]render.Triangle3, len(m.Faces))
	for i, f := range m.Faces {
		tris[i] = render.Triangle3{m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]}
	}
	return tris
}

// Bounds returns the bounding box of the vertices.
func (m *Mesh) Bounds() r3.Box {
	bb := d3.EmptyBox()
	for _, v := range m.Vertices {
		bb = bb.Include(v)
	}
	return r3.Box(bb)
}

// VertexNormals returns unit normals at each vertex, the area weighted mean
// of the normals of the faces sharing it. Unreferenced vertices get a zero
// normal.
func (m *Mesh) VertexNormals() []r3.Vec {
	normals := make([]r3.Vec, len(m.Vertices))
	for _, f := range m.Faces {
		a, b, c := m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]
		// Cross product magnitude is twice the face area.
		n := r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
		for _, vi := range f {
			normals[vi] = r3.Add(normals[vi], n)
		}
	}
	for i, n := range normals {
		if norm := r3.Norm(n); norm > 0 {
			normals[i] = r3.Scale(1/norm, n)
		}
	}
	return normals
}

// Validate checks face indices and annotation lengths.
func (m *Mesh) Validate() error {
	for i, f := range m.Faces {
		for _, vi := range f {
			if vi < 0 || vi >= len(m.Vertices) {
				return fmt.Errorf("mesh: face %d references vertex %d of %d", i, vi, len(m.Vertices))
			}
		}
	}
	if m.Scalars != nil && len(m.Scalars) != len(m.Vertices) {
		return fmt.Errorf("mesh: %d scalars for %d vertices", len(m.Scalars), len(m.Vertices))
	}
	if m.Colors != nil && len(m.Colors) != len(m.Vertices) {
		return fmt.Errorf("mesh: %d colors for %d vertices", len(m.Colors), len(m.Vertices))
	}
	return nil
}

// FromTriangles builds an indexed mesh from a triangle soup. Vertices closer
// than tol are merged and faces that collapse after merging are dropped.
// If tol is 0 it is inferred from the shortest triangle side.
func FromTriangles(triangles []render.Triangle3, tol float64) (*Mesh, error) {
	if len(triangles) == 0 {
		return nil, errors.New("mesh: no triangles")
	}
	bb := d3.EmptyBox()
	minDist2 := math.MaxFloat64
	maxDist2 := 0.0
	for i := range triangles {
		for j, vert := range triangles[i] {
			bb = bb.Include(vert)
			side2 := r3.Norm2(r3.Sub(triangles[i][(j+1)%3], vert))
			if side2 > 0 {
				minDist2 = math.Min(minDist2, side2)
			}
			maxDist2 = math.Max(maxDist2, side2)
		}
	}
	if maxDist2 == 0 {
		return nil, errors.New("mesh: all triangles are degenerate")
	}
	suggested := math.Sqrt(minDist2) / 256
	if tol > math.Sqrt(maxDist2)/2 {
		return nil, fmt.Errorf("mesh: vertex tolerance is too large to generate appropiate mesh, suggested tolerance: %g", suggested)
	}
	if tol == 0 {
		tol = suggested
	}
	maxDim := math.Max(d3.Max(d3.AbsElem(bb.Min)), d3.Max(d3.AbsElem(bb.Max)))
	if maxDim/tol > math.MaxInt64/2 {
		return nil, errors.New("mesh: tolerance too small. overflowed int64")
	}
	// vertex index cache keyed by position in tolerance units.
	cache := make(map[[3]int64]int)
	ri := 1 / tol
	m := &Mesh{Faces: make([][3]int, 0, len(triangles))}
	for _, tri := range triangles {
		var face [3]int
		for j, vert := range tri {
			v := r3.Scale(ri, vert)
			key := [3]int64{int64(math.Round(v.X)), int64(math.Round(v.Y)), int64(math.Round(v.Z))}
			idx, ok := cache[key]
			if !ok {
				idx = len(m.Vertices)
				cache[key] = idx
				m.Vertices = append(m.Vertices, vert)
			}
			face[j] = idx
		}
		if face[0] == face[1] || face[1] == face[2] || face[2] == face[0] {
			continue
		}
		m.Faces = append(m.Faces, face)
	}
	if len(m.Faces) == 0 {
		return nil, errors.New("mesh: all faces collapsed while merging vertices")
	}
	return m, nil
}

// WriteSTL writes the faces of m as binary STL.
func (m *Mesh) WriteSTL(w io.Writer) error {
	return render.WriteSTL(w, m.Triangles())
}

// SaveSTL writes the faces of m to a binary STL file.
func (m *Mesh) SaveSTL(path string) error {
	return render.CreateSTL(path, render.SliceRenderer(m.Triangles()))
}

// ReadSTL reads a binary STL stream into an indexed mesh.
func ReadSTL(r io.Reader) (*Mesh, error) {
	tris, err := render.ReadSTL(r)
	if err != nil && !errors.Is(err, render.ErrNormalMismatch) {
		return nil, err
	}
	return FromTriangles(tris, 0)
}

// LoadSTL reads a binary STL file into an indexed mesh.
func LoadSTL(path string) (*Mesh, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	return ReadSTL(fp)
}
