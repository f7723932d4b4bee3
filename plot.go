// Package surfplot draws triangulated surfaces built from meshes or from
// binary volumetric segmentations, optionally colored by an overlay volume.
//
// A mesh value is drawn as given. Anything else is handed to a MeshBuilder,
// by default one that loads NIfTI volumes or image slice stacks, extracts
// the segmentation surface and samples the overlay at its vertices.
package surfplot

import (
	"errors"
	"fmt"
	"image/color"
	"math"

	"github.com/rs/zerolog"
	"github.com/soypat/surfplot/figure"
	"github.com/soypat/surfplot/mesh"
)

// Reflectance of plotted surfaces.
const (
	Specular = 0.5
	Diffuse  = 0.75
)

// Mesher is implemented by values that already are a triangulated surface.
type Mesher interface {
	Mesh() *mesh.Mesh
}

// MeshBuilder builds a surface from a volume reference.
type MeshBuilder interface {
	Build(src any, cfg mesh.BuildConfig) (*mesh.Mesh, error)
}

var defaultDisplay = figure.NewDisplay()

// DefaultDisplay returns the display used by Plot and by Plotters with no
// Display set.
func DefaultDisplay() *figure.Display { return defaultDisplay }

// Plotter draws surfaces into a display. The zero value draws into
// DefaultDisplay with a mesh.Builder and does not log.
type Plotter struct {
	Display *figure.Display
	Builder MeshBuilder
	Log     *zerolog.Logger
}

// Plot draws cortex into the default display. See Plotter.Plot.
func Plot(cortex any, opts ...Option) (*figure.Patch, *mesh.Mesh, error) {
	var p Plotter
	return p.Plot(cortex, opts...)
}

// Plot draws cortex, which is either a Mesher or a volume reference passed
// to the builder. It returns the drawn patch and the mesh it was drawn
// from. Builder errors are returned unchanged.
func (p *Plotter) Plot(cortex any, opts ...Option) (*figure.Patch, *mesh.Mesh, error) {
	return p.PlotOptions(cortex, NewOptions(opts...))
}

// PlotOptions is Plot with normalized options.
func (p *Plotter) PlotOptions(cortex any, o Options) (*figure.Patch, *mesh.Mesh, error) {
	log := p.logger()
	m, err := p.acquire(cortex, o, log)
	if err != nil {
		return nil, nil, err
	}
	display := p.Display
	if display == nil {
		display = defaultDisplay
	}
	var fig *figure.Figure
	if o.NewFig {
		fig = display.NewFigure()
	} else {
		fig = display.Current()
	}
	patch := fig.AddPatch(m)
	patch.FaceColor = rgb(o.Color)
	patch.Shading = figure.ShadingInterp
	patch.Lighting = figure.LightingGouraud
	patch.SetFaceAlpha(o.Alpha)
	patch.Specular = Specular
	patch.Diffuse = Diffuse
	if o.NewFig {
		fig.CamLight()
	}
	log.Debug().Int("figure", fig.Number).Int("triangles", patch.NumTriangles()).
		Float64("alpha", o.Alpha).Bool("newfig", o.NewFig).Msg("plotted surface")
	return patch, m, nil
}

func (p *Plotter) acquire(cortex any, o Options, log zerolog.Logger) (*mesh.Mesh, error) {
	if mesher, ok := cortex.(Mesher); ok {
		return checkMesh(mesher.Mesh())
	}
	builder := p.Builder
	if builder == nil {
		builder = mesh.Builder{}
	}
	log.Debug().Str("source", describe(cortex)).Floats64("thresh", o.Thresh).
		Bool("overlay", o.Overlay != nil).Msg("building mesh")
	m, err := builder.Build(cortex, mesh.BuildConfig{
		Thresh:  o.Thresh,
		Overlay: o.Overlay,
		CRange:  o.CRange,
		CMap:    o.CMap,
	})
	if err != nil {
		return nil, err
	}
	return checkMesh(m)
}

// ErrNilMesh is returned when a Mesher or MeshBuilder yields no mesh.
var ErrNilMesh = errors.New("surfplot: nil mesh")

func checkMesh(m *mesh.Mesh) (*mesh.Mesh, error) {
	if m == nil {
		return nil, ErrNilMesh
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (p *Plotter) logger() zerolog.Logger {
	if p.Log == nil {
		return zerolog.Nop()
	}
	return *p.Log
}

func rgb(c [3]float64) color.NRGBA {
	u8 := func(v float64) uint8 {
		if !(v > 0) {
			return 0
		}
		return uint8(math.Round(255 * math.Min(1, v)))
	}
	return color.NRGBA{R: u8(c[0]), G: u8(c[1]), B: u8(c[2]), A: 255}
}

func describe(src any) string {
	if s, ok := src.(string); ok {
		return s
	}
	return fmt.Sprintf("%T", src)
}
