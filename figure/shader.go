package figure

import (
	"math"

	"github.com/fogleman/fauxgl"
	"gonum.org/v1/gonum/spatial/r3"
)

// shader lights vertices with the patch reflectance and interpolates the
// lit color across faces. Lighting is two sided. With no lights or
// LightingNone colors are drawn as given.
type shader struct {
	matrix   fauxgl.Matrix
	toEye    r3.Vec
	lights   []Light
	lit      bool
	ambient  float64
	diffuse  float64
	specular float64
	exponent float64
	alpha    float64
}

func newShader(cam camera, lights []Light, p *Patch) *shader {
	return &shader{
		matrix:   cam.matrix,
		toEye:    cam.toEye,
		lights:   lights,
		lit:      len(lights) > 0 && p.Lighting != LightingNone,
		ambient:  p.Ambient,
		diffuse:  p.Diffuse,
		specular: p.Specular,
		exponent: p.SpecularExponent,
		alpha:    p.opacity(),
	}
}

func (s *shader) Vertex(v fauxgl.Vertex) fauxgl.Vertex {
	v.Output = s.matrix.MulPositionW(v.Position)
	if s.lit {
		v.Color = s.shade(r3.Vec{X: v.Normal.X, Y: v.Normal.Y, Z: v.Normal.Z}, v.Color)
	}
	return v
}

func (s *shader) Fragment(v fauxgl.Vertex) fauxgl.Color {
	c := v.Color
	c.R = clamp(c.R, 0, 1)
	c.G = clamp(c.G, 0, 1)
	c.B = clamp(c.B, 0, 1)
	c.A = s.alpha
	return c
}

// shade evaluates ambient, diffuse and specular reflection of base at a
// point with normal n.
func (s *shader) shade(n r3.Vec, base fauxgl.Color) fauxgl.Color {
	if norm := r3.Norm(n); norm > 0 {
		n = r3.Scale(1/norm, n)
	}
	if r3.Dot(n, s.toEye) < 0 {
		n = r3.Scale(-1, n)
	}
	r := s.ambient * base.R
	g := s.ambient * base.G
	b := s.ambient * base.B
	for _, l := range s.lights {
		lr, lg, lb := float64(l.Color.R)/255, float64(l.Color.G)/255, float64(l.Color.B)/255
		nl := r3.Dot(n, l.Direction)
		if nl <= 0 {
			continue
		}
		d := s.diffuse * nl
		r += d * base.R * lr
		g += d * base.G * lg
		b += d * base.B * lb
		reflect := r3.Sub(r3.Scale(2*nl, n), l.Direction)
		if rv := r3.Dot(reflect, s.toEye); rv > 0 {
			sp := s.specular * math.Pow(rv, s.exponent)
			r += sp * lr
			g += sp * lg
			b += sp * lb
		}
	}
	return fauxgl.Color{R: r, G: g, B: b, A: base.A}
}
