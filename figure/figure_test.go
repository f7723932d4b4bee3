package figure

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/soypat/surfplot/mesh"
	"gonum.org/v1/gonum/spatial/r3"
	"github.com/fogleman/fauxgl"
	"gonum.org/v1/plot/cmpimg"
)

const (
	testWidth  = 64
	testHeight = 48
)

func testDisplay() *Display {
	return NewDisplay(WithSize(testWidth, testHeight), WithSupersample(2))
}

// square is a 2 triangle mesh spanning [-1,1]x[-1,1] in the z=0 plane.
func square() *mesh.Mesh {
	return &mesh.Mesh{
		Vertices: []r3.Vec{{X: -1, Y: -1}, {X: 1, Y: -1}, {X: 1, Y: 1}, {X: -1, Y: 1}},
		Faces:    [][3]int{{0, 1, 2}, {0, 2, 3}},
	}
}

func equalPixels(a, b *image.NRGBA) bool {
	return a.Rect == b.Rect && bytes.Equal(a.Pix, b.Pix)
}

func TestDisplayCurrent(t *testing.T) {
	d := testDisplay()
	if len(d.Figures()) != 0 {
		t.Fatal("new display has figures")
	}
	f1 := d.Current()
	if f1 == nil || len(d.Figures()) != 1 {
		t.Fatal("Current did not open a figure")
	}
	if d.Current() != f1 {
		t.Fatal("Current opened a second figure")
	}
	f2 := d.NewFigure()
	if d.Current() != f2 || f2.Number != f1.Number+1 {
		t.Fatalf("NewFigure not current or misnumbered: %d after %d", f2.Number, f1.Number)
	}
	d.Close(f2)
	if d.Current() != f1 {
		t.Error("closing the current figure should restore the previous one")
	}
	d.Close(f1)
	if len(d.Figures()) != 0 {
		t.Error("figures left after closing all")
	}
	if az, el := d.Current().View(); az != DefaultAzimuth || el != DefaultElevation {
		t.Errorf("default view (%g,%g)", az, el)
	}
}

func TestPatchDefaults(t *testing.T) {
	f := testDisplay().NewFigure()
	p := f.AddPatch(square())
	if p.FaceAlpha() != 1 {
		t.Errorf("default alpha %g", p.FaceAlpha())
	}
	if p.NumTriangles() != 2 || p.Figure() != f {
		t.Error("patch not attached to figure with its triangles")
	}
	if len(p.Normals) != 4 || math.Abs(p.Normals[0].Z-1) > 1e-12 {
		t.Errorf("bad vertex normals %v", p.Normals)
	}
	p.Delete()
	p.Delete()
	if !p.Deleted() || len(f.Patches()) != 0 {
		t.Error("Delete did not remove patch")
	}
}

func TestRenderAlpha(t *testing.T) {
	d := testDisplay()
	empty := d.NewFigure().Render()

	f := d.NewFigure()
	f.CamLight()
	p := f.AddPatch(square())
	p.Shading = ShadingInterp
	p.Lighting = LightingGouraud

	p.SetFaceAlpha(0)
	if !equalPixels(f.Render(), empty) {
		t.Error("fully transparent patch changed the figure")
	}

	p.SetFaceAlpha(1)
	img := f.Render()
	center := img.NRGBAAt(testWidth/2, testHeight/2)
	if center == (color.NRGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Error("opaque patch not drawn at figure center")
	}
	corner := img.NRGBAAt(0, 0)
	if corner != empty.NRGBAAt(0, 0) {
		t.Errorf("corner pixel %v should be background", corner)
	}

	p.SetFaceAlpha(0.5)
	half := f.Render().NRGBAAt(testWidth/2, testHeight/2)
	if half.R <= center.R {
		t.Errorf("half transparent patch %v not lighter than opaque %v over white", half, center)
	}

	p.Delete()
	if !equalPixels(f.Render(), empty) {
		t.Error("deleted patch still drawn")
	}
}

func TestRenderDeterministic(t *testing.T) {
	f := testDisplay().NewFigure()
	f.CamLight()
	m := square()
	m.Colors = []color.NRGBA{
		{R: 255, A: 255}, {G: 255, A: 255}, {B: 255, A: 255}, {R: 255, G: 255, A: 255},
	}
	p := f.AddPatch(m)
	p.Shading = ShadingInterp
	p.Lighting = LightingGouraud
	var b1, b2 bytes.Buffer
	if err := f.WritePNG(&b1); err != nil {
		t.Fatal(err)
	}
	if err := f.WritePNG(&b2); err != nil {
		t.Fatal(err)
	}
	equal, err := cmpimg.EqualApprox("png", b1.Bytes(), b2.Bytes(), 0.01)
	if err != nil {
		t.Fatal(err)
	}
	if !equal {
		t.Error("rendering the same figure twice gave different images")
	}
	img, err := png.Decode(&b1)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != testWidth || img.Bounds().Dy() != testHeight {
		t.Errorf("image size %v", img.Bounds())
	}
}

func TestWriteWebP(t *testing.T) {
	f := testDisplay().NewFigure()
	f.AddPatch(square())
	var b bytes.Buffer
	if err := f.WriteWebP(&b); err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(b.Bytes(), []byte("RIFF")) {
		t.Error("output is not a RIFF container")
	}
}

func TestCamLight(t *testing.T) {
	f := testDisplay().NewFigure()
	l := f.CamLight()
	toEye, right, up := viewBasis(DefaultAzimuth, DefaultElevation)
	if math.Abs(r3.Norm(l.Direction)-1) > 1e-12 {
		t.Errorf("light direction %v not unit", l.Direction)
	}
	if r3.Dot(l.Direction, toEye) <= 0 || r3.Dot(l.Direction, right) <= 0 || r3.Dot(l.Direction, up) <= 0 {
		t.Errorf("light %v not in front, right and above the camera", l.Direction)
	}
	if len(f.Lights()) != 1 {
		t.Errorf("got %d lights", len(f.Lights()))
	}
}

func TestEmptyFigureCamera(t *testing.T) {
	f := testDisplay().NewFigure()
	f.AddPatch(&mesh.Mesh{})
	cam := f.camera(float64(testWidth) / testHeight)
	out := cam.matrix.MulPositionW(fauxgl.V(0, 0, 0))
	for _, c := range []float64{out.X, out.Y, out.Z, out.W} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			t.Fatalf("camera of empty figure not finite: %v", out)
		}
	}
}
