package render

import (
	"io"

	"github.com/soypat/surfplot/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// isoMaxTriangles is the most triangles a single grid cell can produce:
// 6 tetrahedra with up to 2 triangles each.
const isoMaxTriangles = 12

// cell corner offsets, same ordering as the classic marching cubes cube.
var cubeCorners = [8][3]int{
	{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
	{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
}

// cubeTetrahedra splits a cell into 6 tetrahedra sharing the 0-6 diagonal.
// Neighbouring cells split shared faces along the same diagonal so the
// resulting surface has no cracks.
var cubeTetrahedra = [6][4]int{
	{0, 6, 1, 2}, {0, 6, 2, 3}, {0, 6, 3, 7},
	{0, 6, 7, 4}, {0, 6, 4, 5}, {0, 6, 5, 1},
}

// isoRenderer triangulates the level set of a Field with marching tetrahedra.
type isoRenderer struct {
	f          Field
	level      float64
	outside    float64 // value assumed for samples off the grid
	nx, ny, nz int
	// cursor is the origin of the next cell to process. Cells start one
	// step before the grid so surfaces touching the border are closed.
	cursor    [3]int
	done      bool
	unwritten triangle3Buffer
}

// NewIsoRenderer returns a Renderer that streams the surface where f crosses
// level. Points with value greater than level are inside the surface and
// triangles are wound so their normals point outside.
func NewIsoRenderer(f Field, level float64) *isoRenderer {
	nx, ny, nz := f.Dims()
	if nx < 1 || ny < 1 || nz < 1 {
		panic("field must have at least one point along each axis")
	}
	return &isoRenderer{
		f:         f,
		level:     level,
		outside:   level - 1,
		nx:        nx,
		ny:        ny,
		nz:        nz,
		cursor:    [3]int{-1, -1, -1},
		unwritten: triangle3Buffer{buf: make([]Triangle3, 0, isoMaxTriangles)},
	}
}

// ReadTriangles writes triangles of the surface into the argument buffer.
// returns number of triangles written and io.EOF after the last cell.
func (r *isoRenderer) ReadTriangles(dst []Triangle3) (n int, err error) {
	if len(dst) == 0 {
		panic("cannot write to empty triangle slice")
	}
	if r.unwritten.Len() > 0 {
		n += r.unwritten.Read(dst)
		if n == len(dst) {
			return n, nil
		}
	}
	for n < len(dst) && !r.done {
		if n+isoMaxTriangles > len(dst) {
			// Not enough room in buffer for a worst case cell.
			var tmp [isoMaxTriangles]Triangle3
			nt := r.processCell(tmp[:], r.cursor)
			r.advance()
			written := copy(dst[n:], tmp[:nt])
			n += written
			r.unwritten.Write(tmp[written:nt])
			break
		}
		n += r.processCell(dst[n:], r.cursor)
		r.advance()
	}
	if r.done && r.unwritten.Len() == 0 {
		return n, io.EOF
	}
	return n, nil
}

func (r *isoRenderer) advance() {
	r.cursor[0]++
	if r.cursor[0] < r.nx {
		return
	}
	r.cursor[0] = -1
	r.cursor[1]++
	if r.cursor[1] < r.ny {
		return
	}
	r.cursor[1] = -1
	r.cursor[2]++
	if r.cursor[2] >= r.nz {
		r.done = true
	}
}

func (r *isoRenderer) sample(i, j, k int) float64 {
	if i < 0 || j < 0 || k < 0 || i >= r.nx || j >= r.ny || k >= r.nz {
		return r.outside
	}
	return r.f.At(i, j, k)
}

// isoCell holds the sampled corners of a grid cell.
type isoCell struct {
	idx [8][3]int
	pos [8]r3.Vec
	val [8]float64
}

// processCell writes the triangles of the cell with origin c to dst.
func (r *isoRenderer) processCell(dst []Triangle3, c [3]int) int {
	var cell isoCell
	inside := 0
	for v, o := range cubeCorners {
		i, j, k := c[0]+o[0], c[1]+o[1], c[2]+o[2]
		cell.idx[v] = [3]int{i, j, k}
		cell.val[v] = r.sample(i, j, k)
		if cell.val[v] > r.level {
			inside++
		}
	}
	if inside == 0 || inside == 8 {
		return 0
	}
	for v := range cell.pos {
		p := cell.idx[v]
		cell.pos[v] = r.f.Position(p[0], p[1], p[2])
	}
	n := 0
	for _, tet := range cubeTetrahedra {
		n += r.tetrahedron(dst[n:], &cell, tet)
	}
	return n
}

func (r *isoRenderer) tetrahedron(dst []Triangle3, cell *isoCell, tet [4]int) int {
	var in, out []int
	var inBuf, outBuf [4]int
	in, out = inBuf[:0], outBuf[:0]
	for _, v := range tet {
		if cell.val[v] > r.level {
			in = append(in, v)
		} else {
			out = append(out, v)
		}
	}
	var tris [2]Triangle3
	nt := 0
	switch {
	case len(in) == 0 || len(out) == 0:
		return 0
	case len(in) == 1:
		tris[0] = Triangle3{r.edge(cell, in[0], out[0]), r.edge(cell, in[0], out[1]), r.edge(cell, in[0], out[2])}
		nt = 1
	case len(out) == 1:
		tris[0] = Triangle3{r.edge(cell, out[0], in[0]), r.edge(cell, out[0], in[1]), r.edge(cell, out[0], in[2])}
		nt = 1
	default:
		p00 := r.edge(cell, in[0], out[0])
		p01 := r.edge(cell, in[0], out[1])
		p11 := r.edge(cell, in[1], out[1])
		p10 := r.edge(cell, in[1], out[0])
		tris[0] = Triangle3{p00, p01, p11}
		tris[1] = Triangle3{p00, p11, p10}
		nt = 2
	}
	// Orient triangles from the inside corners towards the outside corners.
	// Both halves of a quad flip together to keep the shared diagonal consistent.
	outward := r3.Sub(centroid(cell, out), centroid(cell, in))
	var area r3.Vec
	for _, t := range tris[:nt] {
		area = r3.Add(area, r3.Cross(r3.Sub(t[1], t[0]), r3.Sub(t[2], t[0])))
	}
	flip := r3.Dot(area, outward) < 0
	for i, t := range tris[:nt] {
		if flip {
			t[1], t[2] = t[2], t[1]
		}
		dst[i] = t
	}
	return nt
}

// edge returns the point where the level set crosses the edge between corners
// a and b. Corners are ordered by grid index so cells sharing the edge
// compute bit-identical points.
func (r *isoRenderer) edge(cell *isoCell, a, b int) r3.Vec {
	if gridLess(cell.idx[b], cell.idx[a]) {
		a, b = b, a
	}
	va, vb := cell.val[a], cell.val[b]
	t := (r.level - va) / (vb - va)
	return d3.Lerp(cell.pos[a], cell.pos[b], t)
}

func gridLess(a, b [3]int) bool {
	if a[2] != b[2] {
		return a[2] < b[2]
	}
	if a[1] != b[1] {
		return a[1] < b[1]
	}
	return a[0] < b[0]
}

func centroid(cell *isoCell, corners []int) r3.Vec {
	var sum r3.Vec
	for _, c := range corners {
		sum = r3.Add(sum, cell.pos[c])
	}
	return r3.Scale(1/float64(len(corners)), sum)
}
