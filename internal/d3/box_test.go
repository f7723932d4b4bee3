package d3

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestEmptyBoxInclude(t *testing.T) {
	bb := EmptyBox()
	if !bb.Empty() {
		t.Fatal("EmptyBox not empty")
	}
	for _, v := range []r3.Vec{{X: 1, Y: -2, Z: 3}, {X: -1, Y: 2, Z: 0}} {
		bb = bb.Include(v)
	}
	want := Box{Min: r3.Vec{X: -1, Y: -2, Z: 0}, Max: r3.Vec{X: 1, Y: 2, Z: 3}}
	if bb != want {
		t.Errorf("got %v, want %v", bb, want)
	}
	if c := bb.Center(); !EqualWithin(c, r3.Vec{Z: 1.5}, 1e-12) {
		t.Errorf("bad center %v", c)
	}
	if !bb.Contains(r3.Vec{}) {
		t.Error("box should contain origin")
	}
	if bb.Contains(r3.Vec{X: 1.5}) {
		t.Error("box should not contain point past Max.X")
	}
	nb := NewBox(r3.Vec{X: 1}, Elem(2))
	if nb.Min != (r3.Vec{X: 0, Y: -1, Z: -1}) || nb.Max != (r3.Vec{X: 2, Y: 1, Z: 1}) {
		t.Errorf("NewBox got %v", nb)
	}
}
