package mesh

import (
	"errors"
	"fmt"
	"math"

	"github.com/soypat/surfplot/colormap"
	"github.com/soypat/surfplot/internal/d3"
	"github.com/soypat/surfplot/render"
	"github.com/soypat/surfplot/volume"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	ErrNotBinary    = errors.New("mesh: segmentation is not binary, set a threshold")
	ErrThresh       = errors.New("mesh: threshold must have one or two values")
	ErrEmptySurface = errors.New("mesh: threshold selects no surface")
	ErrGeometry     = errors.New("mesh: overlay geometry does not match segmentation")
)

// BuildConfig controls how a surface is extracted from a volume.
type BuildConfig struct {
	// Thresh is empty for binary segmentations, a single iso level or
	// an inclusive [min, max] value range.
	Thresh []float64
	// Overlay is an optional volume reference sampled at every vertex.
	Overlay any
	// CRange is the overlay value range mapped onto the color map.
	// Empty selects the range of the sampled values.
	CRange []float64
	// CMap names the color map, see colormap.Names.
	CMap string
}

// Loader resolves a volume reference.
type Loader func(ref any) (*volume.Volume, error)

// Builder extracts triangulated surfaces from volumes.
type Builder struct {
	// Load resolves the segmentation and overlay references.
	// volume.Resolve is used when nil.
	Load Loader
	// Tol is the vertex welding tolerance. When zero it is set from
	// the voxel spacing.
	Tol float64
}

// Build extracts the surface of the segmentation referenced by src.
func (b Builder) Build(src any, cfg BuildConfig) (*Mesh, error) {
	load := b.Load
	if load == nil {
		load = volume.Resolve
	}
	vol, err := load(src)
	if err != nil {
		return nil, err
	}
	if err := vol.Validate(); err != nil {
		return nil, err
	}
	field, level, err := segmentation(vol, cfg.Thresh)
	if err != nil {
		return nil, err
	}
	tris, err := render.RenderAll(render.NewIsoRenderer(field, level))
	if err != nil {
		return nil, err
	}
	if len(tris) == 0 {
		return nil, ErrEmptySurface
	}
	tol := b.Tol
	if tol == 0 {
		tol = 1e-6 * math.Min(vol.Spacing.X, math.Min(vol.Spacing.Y, vol.Spacing.Z))
	}
	m, err := FromTriangles(tris, tol)
	if err != nil {
		return nil, err
	}
	if cfg.Overlay == nil {
		return m, nil
	}
	overlay, err := load(cfg.Overlay)
	if err != nil {
		return nil, fmt.Errorf("mesh: overlay: %w", err)
	}
	if !overlay.SameGeometry(vol) {
		return nil, fmt.Errorf("%w: overlay %v, segmentation %v", ErrGeometry, overlay.Dims, vol.Dims)
	}
	m.Scalars = SampleVertices(m.Vertices, overlay)
	m.Colors, err = colormap.Apply(m.Scalars, cfg.CRange, cfg.CMap)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// SampleVertices samples v at each vertex. Vertices past the outermost voxel
// centers are clamped onto the grid.
func SampleVertices(vertices []r3.Vec, v *volume.Volume) []float64 {
	bb := d3.Box(v.Bounds())
	scalars := make([]float64, len(vertices))
	for i, p := range vertices {
		if !bb.Contains(p) {
			p = d3.MaxElem(bb.Min, d3.MinElem(bb.Max, p))
		}
		scalars[i] = v.Sample(p)
	}
	return scalars
}

// segmentation returns the field and iso level selected by thresh.
func segmentation(vol *volume.Volume, thresh []float64) (render.Field, float64, error) {
	switch len(thresh) {
	case 0:
		if !vol.IsBinary() {
			return nil, 0, ErrNotBinary
		}
		return volumeField{vol}, 0.5, nil
	case 1:
		return volumeField{vol}, thresh[0], nil
	case 2:
		return maskField{volumeField{vol}, thresh[0], thresh[1]}, 0.5, nil
	default:
		return nil, 0, fmt.Errorf("%w, got %d", ErrThresh, len(thresh))
	}
}

type volumeField struct {
	v *volume.Volume
}

func (f volumeField) Dims() (int, int, int) {
	return f.v.Dims[0], f.v.Dims[1], f.v.Dims[2]
}

func (f volumeField) At(i, j, k int) float64 { return f.v.At(i, j, k) }

func (f volumeField) Position(i, j, k int) r3.Vec { return f.v.Position(i, j, k) }

// maskField is 1 where the volume value lies in [lo, hi] and 0 elsewhere.
type maskField struct {
	volumeField
	lo, hi float64
}

func (f maskField) At(i, j, k int) float64 {
	val := f.v.At(i, j, k)
	if val >= f.lo && val <= f.hi {
		return 1
	}
	return 0
}
