package figure

import (
	"image/color"
	"math"

	"github.com/fogleman/fauxgl"
	"github.com/soypat/surfplot/internal/d3"
	"github.com/soypat/surfplot/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

// Shading selects how color varies across a face.
type Shading int

const (
	// ShadingInterp interpolates vertex colors across each face.
	ShadingInterp Shading = iota
	// ShadingFlat gives each face the color of its first vertex.
	ShadingFlat
)

// Lighting selects where lighting is evaluated.
type Lighting int

const (
	// LightingGouraud lights each vertex and interpolates the result.
	LightingGouraud Lighting = iota
	// LightingFlat lights each face once using its face normal.
	LightingFlat
	// LightingNone draws colors unlit.
	LightingNone
)

// Default reflectance of new patches.
const (
	DefaultAmbient          = 0.3
	DefaultDiffuse          = 0.75
	DefaultSpecular         = 0.5
	DefaultSpecularExponent = 10
)

// Patch is a triangle surface drawn in a figure. It is the handle returned
// to callers, who may Delete it to remove it from its figure.
type Patch struct {
	Vertices []r3.Vec
	Faces    [][3]int
	Normals  []r3.Vec
	// VertexColors holds one color per vertex. When nil FaceColor is used.
	VertexColors []color.NRGBA
	FaceColor    color.NRGBA

	Shading          Shading
	Lighting         Lighting
	Ambient          float64
	Diffuse          float64
	Specular         float64
	SpecularExponent float64

	alpha   float64
	fig     *Figure
	deleted bool
}

func newPatch(m *mesh.Mesh) *Patch {
	return &Patch{
		Vertices:         m.Vertices,
		Faces:            m.Faces,
		Normals:          m.VertexNormals(),
		VertexColors:     m.Colors,
		FaceColor:        color.NRGBA{R: 204, G: 204, B: 204, A: 255},
		Shading:          ShadingFlat,
		Lighting:         LightingFlat,
		Ambient:          DefaultAmbient,
		Diffuse:          DefaultDiffuse,
		Specular:         DefaultSpecular,
		SpecularExponent: DefaultSpecularExponent,
		alpha:            1,
	}
}

// FaceAlpha returns the opacity the patch is drawn with.
func (p *Patch) FaceAlpha() float64 { return p.alpha }

// SetFaceAlpha sets the opacity. 0 is invisible and 1 is fully opaque.
// Values outside [0,1] are stored as given and clamped when drawing.
func (p *Patch) SetFaceAlpha(alpha float64) { p.alpha = alpha }

// NumTriangles returns the number of faces of the patch.
func (p *Patch) NumTriangles() int { return len(p.Faces) }

// Figure returns the figure p was added to.
func (p *Patch) Figure() *Figure { return p.fig }

// Delete removes p from its figure. Deleting twice is a no-op.
func (p *Patch) Delete() {
	if p.deleted {
		return
	}
	p.deleted = true
	if p.fig != nil {
		p.fig.removePatch(p)
	}
}

// Deleted reports whether Delete was called.
func (p *Patch) Deleted() bool { return p.deleted }

// Bounds returns the bounding box of the patch vertices.
func (p *Patch) Bounds() d3.Box {
	bb := d3.EmptyBox()
	for _, v := range p.Vertices {
		bb = bb.Include(v)
	}
	return bb
}

func (p *Patch) vertexColor(i int) color.NRGBA {
	if p.VertexColors != nil {
		return p.VertexColors[i]
	}
	return p.FaceColor
}

func (p *Patch) opacity() float64 {
	if !(p.alpha > 0) {
		return 0
	}
	return math.Min(p.alpha, 1)
}

func clamp(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}

// triangles returns the faces as fauxgl triangles carrying the normals and
// colors selected by the shading and lighting modes.
func (p *Patch) triangles() []*fauxgl.Triangle {
	tris := make([]*fauxgl.Triangle, len(p.Faces))
	haveNormals := len(p.Normals) == len(p.Vertices)
	for i, face := range p.Faces {
		a, b, c := p.Vertices[face[0]], p.Vertices[face[1]], p.Vertices[face[2]]
		faceNormal := r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
		t := &fauxgl.Triangle{}
		for j, v := range [3]*fauxgl.Vertex{&t.V1, &t.V2, &t.V3} {
			vi := face[j]
			n := faceNormal
			if haveNormals && p.Lighting == LightingGouraud {
				n = p.Normals[vi]
			}
			ci := vi
			if p.Shading == ShadingFlat {
				ci = face[0]
			}
			v.Position = fauxVec(p.Vertices[vi])
			v.Normal = fauxVec(n)
			v.Color = fauxColor(p.vertexColor(ci), 1)
		}
		tris[i] = t
	}
	return tris
}
