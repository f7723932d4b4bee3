package surfplot

import (
	"errors"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/soypat/surfplot/figure"
	"github.com/soypat/surfplot/mesh"
	"github.com/soypat/surfplot/volume"
)

// countingBuilder records Build calls and returns a fixed mesh or error.
type countingBuilder struct {
	calls int
	srcs  []any
	cfgs  []mesh.BuildConfig
	m     *mesh.Mesh
	err   error
}

func (b *countingBuilder) Build(src any, cfg mesh.BuildConfig) (*mesh.Mesh, error) {
	b.calls++
	b.srcs = append(b.srcs, src)
	b.cfgs = append(b.cfgs, cfg)
	if b.err != nil {
		return nil, b.err
	}
	return b.m, nil
}

// wrapped satisfies Mesher without being a *mesh.Mesh.
type wrapped struct{ m *mesh.Mesh }

func (w wrapped) Mesh() *mesh.Mesh { return w.m }

func twoTriangles() *mesh.Mesh {
	return &mesh.Mesh{
		Vertices: []r3.Vec{{}, {X: 1}, {X: 1, Y: 1}, {Y: 1}},
		Faces:    [][3]int{{0, 1, 2}, {0, 2, 3}},
	}
}

func testPlotter(b MeshBuilder) *Plotter {
	return &Plotter{
		Display: figure.NewDisplay(figure.WithSize(32, 24), figure.WithSupersample(1)),
		Builder: b,
	}
}

func TestDefaultOptions(t *testing.T) {
	o := NewOptions()
	require.Equal(t, 1.0, o.Alpha)
	require.True(t, o.NewFig)
	require.Empty(t, o.Thresh)
	require.Nil(t, o.Overlay)

	o = NewOptions(WithAlpha(0.3), WithNewFig(false), WithThresh(1, 2), WithCRange(-1, 1), WithCMap("heat"), WithColor(1, 0, 0))
	require.Equal(t, 0.3, o.Alpha)
	require.False(t, o.NewFig)
	require.Equal(t, []float64{1, 2}, o.Thresh)
	require.Equal(t, []float64{-1, 1}, o.CRange)
	require.Equal(t, "heat", o.CMap)
	require.Equal(t, [3]float64{1, 0, 0}, o.Color)
}

func TestPlotMeshDefaults(t *testing.T) {
	b := &countingBuilder{}
	p := testPlotter(b)
	in := twoTriangles()

	patch, out, err := p.Plot(in)
	require.NoError(t, err)
	require.Zero(t, b.calls, "mesh input must not be rebuilt")
	require.Same(t, in, out)
	require.Len(t, p.Display.Figures(), 1)
	require.Same(t, p.Display.Current(), patch.Figure())
	require.Equal(t, 1.0, patch.FaceAlpha())
	require.Equal(t, 2, patch.NumTriangles())
	require.Equal(t, in.Faces, patch.Faces)
	require.Equal(t, in.Vertices, patch.Vertices)
	require.Equal(t, figure.ShadingInterp, patch.Shading)
	require.Equal(t, figure.LightingGouraud, patch.Lighting)
	require.Equal(t, 0.5, patch.Specular)
	require.Equal(t, 0.75, patch.Diffuse)
	require.Len(t, patch.Figure().Lights(), 1, "new figure gets a light")
}

func TestPlotMesher(t *testing.T) {
	b := &countingBuilder{}
	in := twoTriangles()
	_, out, err := testPlotter(b).Plot(wrapped{in})
	require.NoError(t, err)
	require.Zero(t, b.calls)
	require.Same(t, in, out)

	_, _, err = testPlotter(b).Plot(wrapped{&mesh.Mesh{Vertices: in.Vertices, Faces: [][3]int{{0, 1, 9}}}})
	require.Error(t, err)
}

func TestPlotBuildsOnce(t *testing.T) {
	built := twoTriangles()
	b := &countingBuilder{m: built}
	p := testPlotter(b)
	overlay := volume.New(2, 2, 2)

	patch, out, err := p.Plot("seg.nii", WithOverlay(overlay), WithThresh(0.5), WithCRange(0, 3), WithCMap("rainbow"))
	require.NoError(t, err)
	require.Equal(t, 1, b.calls)
	require.Equal(t, "seg.nii", b.srcs[0])
	require.Same(t, built, out)
	require.Equal(t, built.Faces, patch.Faces)
	require.Equal(t, mesh.BuildConfig{
		Thresh:  []float64{0.5},
		Overlay: overlay,
		CRange:  []float64{0, 3},
		CMap:    "rainbow",
	}, b.cfgs[0])
}

func TestPlotBuilderError(t *testing.T) {
	errMissing := errors.New("no such segmentation")
	p := testPlotter(&countingBuilder{err: errMissing})
	patch, m, err := p.Plot("missing.nii")
	require.ErrorIs(t, err, errMissing)
	require.Nil(t, patch)
	require.Nil(t, m)
	require.Empty(t, p.Display.Figures())
}

func TestPlotBuilderBadMesh(t *testing.T) {
	bad := &mesh.Mesh{
		Vertices: []r3.Vec{{}, {X: 1}, {Y: 1}},
		Faces:    [][3]int{{0, 1, 7}},
	}
	for name, b := range map[string]*countingBuilder{
		"nil":      {},
		"bad face": {m: bad},
	} {
		p := testPlotter(b)
		patch, m, err := p.Plot("seg.nii")
		require.Error(t, err, name)
		require.Nil(t, patch, name)
		require.Nil(t, m, name)
		require.Empty(t, p.Display.Figures(), "%s: display changed", name)
	}
	_, _, err := testPlotter(&countingBuilder{}).Plot("seg.nii")
	require.ErrorIs(t, err, ErrNilMesh)
}

func TestPlotAlpha(t *testing.T) {
	p := testPlotter(nil)
	clear, _, err := p.Plot(twoTriangles(), WithAlpha(0))
	require.NoError(t, err)
	require.Equal(t, 0.0, clear.FaceAlpha())

	opaque, _, err := p.Plot(twoTriangles(), WithAlpha(1))
	require.NoError(t, err)
	require.Equal(t, 1.0, opaque.FaceAlpha())

	empty := p.Display.NewFigure().Render()
	require.Equal(t, empty.Pix, clear.Figure().Render().Pix, "alpha 0 patch must not be visible")
	require.NotEqual(t, empty.Pix, opaque.Figure().Render().Pix)
}

func TestPlotReuseFigure(t *testing.T) {
	p := testPlotter(nil)
	first, _, err := p.Plot(twoTriangles())
	require.NoError(t, err)
	second, _, err := p.Plot(twoTriangles(), WithNewFig(false), WithColor(1, 0, 0))
	require.NoError(t, err)
	require.Same(t, first.Figure(), second.Figure())
	require.Len(t, p.Display.Figures(), 1)
	require.Len(t, second.Figure().Patches(), 2)
	require.Len(t, second.Figure().Lights(), 1, "no light added to an existing figure")
	require.Equal(t, color.NRGBA{R: 255, A: 255}, second.FaceColor)

	first.Delete()
	require.Len(t, second.Figure().Patches(), 1)
}

func TestPlotVolume(t *testing.T) {
	seg := volume.New(5, 5, 5)
	overlay := volume.New(5, 5, 5)
	for k := 1; k < 4; k++ {
		for j := 1; j < 4; j++ {
			for i := 1; i < 4; i++ {
				seg.Set(i, j, k, 1)
			}
		}
	}
	for i := range overlay.Data {
		overlay.Data[i] = float64(i % 5)
	}
	p := testPlotter(nil)
	patch, m, err := p.Plot(seg, WithOverlay(overlay))
	require.NoError(t, err)
	require.NotEmpty(t, m.Faces)
	require.Len(t, m.Colors, len(m.Vertices))
	require.Len(t, m.Scalars, len(m.Vertices))
	require.Equal(t, m.Colors, patch.VertexColors)

	_, _, err = p.Plot(volume.New(3, 3, 3))
	require.ErrorIs(t, err, mesh.ErrEmptySurface)
}

func TestParsePairs(t *testing.T) {
	o, err := ParsePairs("Alpha", "0.25", "newfig", false, "thresh", 0.3, "color", []float64{0, 0.5, 1}, "CMAP", "heat")
	require.NoError(t, err)
	require.Equal(t, 0.25, o.Alpha)
	require.False(t, o.NewFig)
	require.Equal(t, []float64{0.3}, o.Thresh)
	require.Equal(t, [3]float64{0, 0.5, 1}, o.Color)
	require.Equal(t, "heat", o.CMap)

	o, err = ParsePairs()
	require.NoError(t, err)
	require.Equal(t, DefaultOptions(), o)

	// Out of range values pass through unchecked.
	o, err = ParsePairs("alpha", 7)
	require.NoError(t, err)
	require.Equal(t, 7.0, o.Alpha)

	for _, args := range [][]any{
		{"alpha"},
		{1, 0.5},
		{"opacity", 0.5},
		{"color", []float64{1, 0}},
		{"alpha", "transparent"},
	} {
		_, err := ParsePairs(args...)
		require.ErrorIs(t, err, ErrOption, "args %v", args)
	}
}

func TestLegacy(t *testing.T) {
	overlay := volume.New(1, 1, 1)
	o, err := Legacy(nil, 0.5, overlay, []float64{1, 2}, []float64{0, 10}, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 0.5, o.Alpha)
	require.Same(t, overlay, o.Overlay)
	require.Equal(t, []float64{1, 2}, o.Thresh)
	require.Equal(t, []float64{0, 10}, o.CRange)
	require.True(t, o.NewFig)
	require.Equal(t, DefaultOptions().Color, o.Color)
}
