package figure

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"os"
	"sync"
	"time"

	"github.com/HugoSmits86/nativewebp"
	"github.com/fogleman/fauxgl"
	"github.com/nfnt/resize"
	"github.com/rs/zerolog"
	"github.com/soypat/surfplot/internal/d3"
	"github.com/soypat/surfplot/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

// Default view angles in degrees.
const (
	DefaultAzimuth   = -37.5
	DefaultElevation = 30
)

// Light is a directional light infinitely far away.
type Light struct {
	// Direction points from the scene towards the light.
	Direction r3.Vec
	Color     color.NRGBA
}

// Figure is a drawing surface holding patches and lights.
type Figure struct {
	Number      int
	Width       int
	Height      int
	Supersample int
	Background  color.NRGBA

	mu      sync.Mutex
	az, el  float64
	patches []*Patch
	lights  []Light
	log     zerolog.Logger
}

func newFigure(number, width, height, supersample int) *Figure {
	return &Figure{
		Number:      number,
		Width:       width,
		Height:      height,
		Supersample: supersample,
		Background:  color.NRGBA{R: 255, G: 255, B: 255, A: 255},
		az:          DefaultAzimuth,
		el:          DefaultElevation,
		log:         zerolog.Nop(),
	}
}

// AddPatch adds the surface m to the figure. The patch shares the mesh
// vertex, face and color slices.
func (f *Figure) AddPatch(m *mesh.Mesh) *Patch {
	p := newPatch(m)
	p.fig = f
	f.mu.Lock()
	f.patches = append(f.patches, p)
	n := len(f.patches)
	f.mu.Unlock()
	f.log.Debug().Int("triangles", p.NumTriangles()).Int("patches", n).Msg("added patch")
	return p
}

// Patches returns the patches currently in the figure.
func (f *Figure) Patches() []*Patch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Patch(nil), f.patches...)
}

func (f *Figure) removePatch(p *Patch) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, q := range f.patches {
		if q == p {
			f.patches = append(f.patches[:i], f.patches[i+1:]...)
			return
		}
	}
}

// AddLight adds l to the figure. Direction need not be normalized.
func (f *Figure) AddLight(l Light) {
	if r3.Norm(l.Direction) == 0 {
		panic("light direction must be non-zero")
	}
	l.Direction = r3.Unit(l.Direction)
	f.mu.Lock()
	f.lights = append(f.lights, l)
	f.mu.Unlock()
}

// CamLight adds a white light placed up and to the right of the current
// camera position and returns it.
func (f *Figure) CamLight() Light {
	f.mu.Lock()
	toEye, right, up := viewBasis(f.az, f.el)
	f.mu.Unlock()
	offset := math.Tan(30 * math.Pi / 180)
	dir := r3.Add(toEye, r3.Scale(offset, r3.Add(right, up)))
	l := Light{Direction: r3.Unit(dir), Color: color.NRGBA{R: 255, G: 255, B: 255, A: 255}}
	f.AddLight(l)
	return l
}

// Lights returns the lights of the figure.
func (f *Figure) Lights() []Light {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Light(nil), f.lights...)
}

// SetView sets the camera azimuth and elevation in degrees.
func (f *Figure) SetView(az, el float64) {
	f.mu.Lock()
	f.az, f.el = az, el
	f.mu.Unlock()
}

// View returns the camera azimuth and elevation in degrees.
func (f *Figure) View() (az, el float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.az, f.el
}

// Render rasterizes the figure. Axes are scaled equally so the surfaces
// keep their proportions and the view is fitted to all patches.
func (f *Figure) Render() *image.NRGBA {
	f.mu.Lock()
	defer f.mu.Unlock()
	start := time.Now()
	ss := f.Supersample
	if ss < 1 {
		ss = 1
	}
	w, h := f.Width*ss, f.Height*ss
	ctx := fauxgl.NewContext(w, h)
	ctx.ClearColorBufferWith(fauxColor(f.Background, 1))
	ctx.ClearDepthBuffer()
	ctx.Cull = fauxgl.CullNone
	ctx.AlphaBlend = true

	var opaque, transparent []*Patch
	for _, p := range f.patches {
		switch a := p.opacity(); {
		case a == 0 || len(p.Faces) == 0:
			// Nothing to draw.
		case a < 1:
			transparent = append(transparent, p)
		default:
			opaque = append(opaque, p)
		}
	}
	triangles := 0
	if len(opaque)+len(transparent) > 0 {
		cam := f.camera(float64(w) / float64(h))
		ctx.WriteDepth = true
		for _, p := range opaque {
			ctx.Shader = newShader(cam, f.lights, p)
			ctx.DrawMesh(fauxgl.NewTriangleMesh(p.triangles()))
			triangles += len(p.Faces)
		}
		// Transparent surfaces are depth tested against opaque ones but do
		// not occlude each other.
		ctx.WriteDepth = false
		for _, p := range transparent {
			ctx.Shader = newShader(cam, f.lights, p)
			ctx.DrawMesh(fauxgl.NewTriangleMesh(p.triangles()))
			triangles += len(p.Faces)
		}
	}
	var img image.Image = ctx.Image()
	if ss > 1 {
		img = resize.Resize(uint(f.Width), uint(f.Height), img, resize.Bilinear)
	}
	out := image.NewNRGBA(image.Rect(0, 0, f.Width, f.Height))
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
	f.log.Debug().Int("triangles", triangles).Dur("elapsed", time.Since(start)).Msg("rendered figure")
	return out
}

// WritePNG renders the figure and encodes it as PNG.
func (f *Figure) WritePNG(w io.Writer) error {
	return png.Encode(w, f.Render())
}

// SavePNG renders the figure to a PNG file.
func (f *Figure) SavePNG(path string) error {
	return fauxgl.SavePNG(path, f.Render())
}

// WriteWebP renders the figure and encodes it as lossless WebP.
func (f *Figure) WriteWebP(w io.Writer) error {
	return nativewebp.Encode(w, f.Render(), nil)
}

// SaveWebP renders the figure to a WebP file.
func (f *Figure) SaveWebP(path string) error {
	fp, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := f.WriteWebP(fp); err != nil {
		fp.Close()
		return err
	}
	return fp.Close()
}

type camera struct {
	matrix fauxgl.Matrix
	// toEye is the unit direction from the scene to the viewer.
	toEye r3.Vec
}

// camera fits an orthographic camera around all patches. Must be called
// with f.mu held.
func (f *Figure) camera(aspect float64) camera {
	bb := d3.EmptyBox()
	for _, p := range f.patches {
		if len(p.Faces) > 0 {
			bb = bb.Extend(p.Bounds())
		}
	}
	if bb.Empty() {
		bb = d3.NewBox(r3.Vec{}, d3.Elem(2))
	}
	center := bb.Center()
	radius := r3.Norm(bb.Size()) / 2
	if radius == 0 {
		radius = 1
	}
	toEye, right, up := viewBasis(f.az, f.el)
	var ex, ey float64
	for c := 0; c < 8; c++ {
		corner := bb.Min
		if c&1 != 0 {
			corner.X = bb.Max.X
		}
		if c&2 != 0 {
			corner.Y = bb.Max.Y
		}
		if c&4 != 0 {
			corner.Z = bb.Max.Z
		}
		rel := r3.Sub(corner, center)
		ex = math.Max(ex, math.Abs(r3.Dot(rel, right)))
		ey = math.Max(ey, math.Abs(r3.Dot(rel, up)))
	}
	const pad = 1.05
	minExtent := radius * 1e-3
	ex = math.Max(ex*pad, minExtent)
	ey = math.Max(ey*pad, minExtent)
	if ex/ey > aspect {
		ey = ex / aspect
	} else {
		ex = ey * aspect
	}
	eye := r3.Add(center, r3.Scale(2*radius, toEye))
	m := fauxgl.LookAt(fauxVec(eye), fauxVec(center), fauxVec(up)).
		Orthographic(-ex, ex, -ey, ey, radius/2, 3.5*radius)
	return camera{matrix: m, toEye: toEye}
}

// viewBasis returns the unit vector towards the viewer and the screen right
// and up directions for a view from azimuth az and elevation el in degrees.
// Z is up.
func viewBasis(az, el float64) (toEye, right, up r3.Vec) {
	a, e := az*math.Pi/180, el*math.Pi/180
	toEye = r3.Vec{X: math.Cos(e) * math.Sin(a), Y: -math.Cos(e) * math.Cos(a), Z: math.Sin(e)}
	worldUp := r3.Vec{Z: 1}
	right = r3.Cross(worldUp, toEye)
	if r3.Norm(right) < 1e-9 {
		// Looking straight down or up.
		right = r3.Cross(r3.Vec{Y: 1}, toEye)
	}
	right = r3.Unit(right)
	up = r3.Cross(toEye, right)
	return toEye, right, up
}

func fauxVec(v r3.Vec) fauxgl.Vector {
	return fauxgl.V(v.X, v.Y, v.Z)
}

func fauxColor(c color.NRGBA, alpha float64) fauxgl.Color {
	return fauxgl.Color{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
		A: alpha,
	}
}
