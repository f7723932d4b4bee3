package mesh

import (
	"bytes"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/soypat/surfplot/render"
	"github.com/soypat/surfplot/volume"
	"gonum.org/v1/gonum/spatial/r3"
)

// cubeVolume returns an n^3 binary volume with an inner block of ones.
func cubeVolume(n, lo, hi int) *volume.Volume {
	v := volume.New(n, n, n)
	for k := lo; k < hi; k++ {
		for j := lo; j < hi; j++ {
			for i := lo; i < hi; i++ {
				v.Set(i, j, k, 1)
			}
		}
	}
	return v
}

// checkManifold verifies every edge is shared by exactly two faces with
// opposite orientation.
func checkManifold(t *testing.T, m *Mesh) {
	t.Helper()
	count := make(map[[2]int]int)
	for _, f := range m.Faces {
		for i := 0; i < 3; i++ {
			count[[2]int{f[i], f[(i+1)%3]}]++
		}
	}
	for e, n := range count {
		if n != 1 || count[[2]int{e[1], e[0]}] != 1 {
			t.Fatalf("edge %v used %d times, reverse %d times", e, n, count[[2]int{e[1], e[0]}])
		}
	}
	// Euler characteristic of a sphere.
	if chi := len(m.Vertices) - len(count)/2 + len(m.Faces); chi != 2 {
		t.Errorf("euler characteristic %d, want 2", chi)
	}
}

func TestFromTrianglesWeld(t *testing.T) {
	square := []render.Triangle3{
		{{}, {X: 1}, {X: 1, Y: 1}},
		{{}, {X: 1, Y: 1}, {Y: 1 + 1e-9}},
		{{X: 1}, {X: 1 + 1e-9}, {X: 1, Y: 1}}, // collapses after welding.
	}
	m, err := FromTriangles(square, 1e-6)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Vertices) != 4 || len(m.Faces) != 2 {
		t.Fatalf("got %d vertices and %d faces, want 4 and 2", len(m.Vertices), len(m.Faces))
	}
	if err := m.Validate(); err != nil {
		t.Fatal(err)
	}
	for _, n := range m.VertexNormals() {
		if math.Abs(n.Z-1) > 1e-12 {
			t.Errorf("normal %v, want +Z", n)
		}
	}
}

func TestFromTrianglesErrors(t *testing.T) {
	if _, err := FromTriangles(nil, 0); err == nil {
		t.Error("expected error for empty soup")
	}
	if _, err := FromTriangles([]render.Triangle3{{}}, 0); err == nil {
		t.Error("expected error for degenerate soup")
	}
	if _, err := FromTriangles([]render.Triangle3{{{}, {X: 1}, {Y: 1}}}, 10); err == nil {
		t.Error("expected error for large tolerance")
	}
}

func TestValidate(t *testing.T) {
	m := &Mesh{
		Vertices: []r3.Vec{{}, {X: 1}, {Y: 1}},
		Faces:    [][3]int{{0, 1, 3}},
	}
	if m.Validate() == nil {
		t.Error("expected out of range face error")
	}
	m.Faces[0][2] = 2
	m.Scalars = []float64{1}
	if m.Validate() == nil {
		t.Error("expected scalar length error")
	}
}

func TestBuildBinary(t *testing.T) {
	vol := cubeVolume(6, 2, 4)
	m, err := Builder{}.Build(vol, BuildConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Validate(); err != nil {
		t.Fatal(err)
	}
	checkManifold(t, m)
	if m.Scalars != nil || m.Colors != nil {
		t.Error("mesh without overlay must not carry annotations")
	}
	center := r3.Vec{X: 2.5, Y: 2.5, Z: 2.5}
	normals := m.VertexNormals()
	for i, v := range m.Vertices {
		if r3.Dot(normals[i], r3.Sub(v, center)) <= 0 {
			t.Fatalf("vertex %v normal %v points inward", v, normals[i])
		}
	}
	bb := m.Bounds()
	if bb.Min.X < 1 || bb.Max.X > 4 {
		t.Errorf("surface bounds %v outside of the voxel neighbourhood", bb)
	}
}

func TestBuildBorder(t *testing.T) {
	// Segmentations touching the volume border still give closed surfaces.
	m, err := Builder{}.Build(cubeVolume(3, 0, 3), BuildConfig{})
	if err != nil {
		t.Fatal(err)
	}
	checkManifold(t, m)
}

func TestBuildThresholds(t *testing.T) {
	vol := volume.New(7, 7, 7)
	for k := 0; k < 7; k++ {
		for j := 0; j < 7; j++ {
			for i := 0; i < 7; i++ {
				vol.Set(i, j, k, float64(i))
			}
		}
	}
	for _, test := range []struct {
		name   string
		thresh []float64
		err    error
		minX   float64
		maxX   float64
	}{
		{name: "binary required", err: ErrNotBinary},
		{name: "too many", thresh: []float64{1, 2, 3}, err: ErrThresh},
		// Past the border samples are level-1, which moves the crossing outward.
		{name: "level", thresh: []float64{2.5}, minX: 2.5, maxX: 6 + 3.5/4.5},
		{name: "range", thresh: []float64{2, 4}, minX: 1.5, maxX: 4.5},
		{name: "empty", thresh: []float64{10}, err: ErrEmptySurface},
	} {
		t.Run(test.name, func(t *testing.T) {
			m, err := Builder{}.Build(vol, BuildConfig{Thresh: test.thresh})
			if test.err != nil {
				if !errors.Is(err, test.err) {
					t.Fatalf("expected %v, got %v", test.err, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			checkManifold(t, m)
			bb := m.Bounds()
			if math.Abs(bb.Min.X-test.minX) > 1e-9 || math.Abs(bb.Max.X-test.maxX) > 1e-9 {
				t.Errorf("x extent [%g,%g], want [%g,%g]", bb.Min.X, bb.Max.X, test.minX, test.maxX)
			}
		})
	}
}

func TestBuildOverlay(t *testing.T) {
	vol := cubeVolume(6, 1, 5)
	overlay := volume.New(6, 6, 6)
	for k := 0; k < 6; k++ {
		for j := 0; j < 6; j++ {
			for i := 0; i < 6; i++ {
				overlay.Set(i, j, k, float64(k))
			}
		}
	}
	m, err := Builder{}.Build(vol, BuildConfig{Overlay: overlay, CRange: []float64{0, 5}, CMap: "heat"})
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Scalars) != len(m.Vertices) || len(m.Colors) != len(m.Vertices) {
		t.Fatalf("got %d scalars and %d colors for %d vertices", len(m.Scalars), len(m.Colors), len(m.Vertices))
	}
	for i, v := range m.Vertices {
		want := math.Max(0, math.Min(5, v.Z))
		if math.Abs(m.Scalars[i]-want) > 1e-9 {
			t.Fatalf("vertex %v sampled %g, want %g", v, m.Scalars[i], want)
		}
	}

	_, err = Builder{}.Build(vol, BuildConfig{Overlay: volume.New(5, 6, 6)})
	if !errors.Is(err, ErrGeometry) {
		t.Errorf("expected ErrGeometry, got %v", err)
	}
	_, err = Builder{}.Build(vol, BuildConfig{Overlay: overlay, CMap: "nope"})
	if err == nil {
		t.Error("expected unknown color map error")
	}
}

func TestBuildLoader(t *testing.T) {
	errLoad := errors.New("not found")
	var refs []any
	b := Builder{Load: func(ref any) (*volume.Volume, error) {
		refs = append(refs, ref)
		if ref == "brain.nii" {
			return cubeVolume(4, 1, 3), nil
		}
		return nil, errLoad
	}}
	if _, err := b.Build("brain.nii", BuildConfig{}); err != nil {
		t.Fatal(err)
	}
	_, err := b.Build("missing.nii", BuildConfig{})
	if !errors.Is(err, errLoad) {
		t.Errorf("loader error not propagated: %v", err)
	}
	if len(refs) != 2 {
		t.Errorf("loader called %d times, want 2", len(refs))
	}
}

func TestSTLRoundTrip(t *testing.T) {
	m, err := Builder{}.Build(cubeVolume(5, 1, 4), BuildConfig{})
	if err != nil {
		t.Fatal(err)
	}
	var b bytes.Buffer
	if err := m.WriteSTL(&b); err != nil {
		t.Fatal(err)
	}
	got, err := ReadSTL(&b)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Faces) != len(m.Faces) || len(got.Vertices) != len(m.Vertices) {
		t.Errorf("read back %d faces %d vertices, want %d and %d", len(got.Faces), len(got.Vertices), len(m.Faces), len(m.Vertices))
	}

	path := filepath.Join(t.TempDir(), "cube.stl")
	if err := m.SaveSTL(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadSTL(path)
	if err != nil {
		t.Fatal(err)
	}
	checkManifold(t, loaded)
}
