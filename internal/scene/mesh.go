package scene

import (
	gomath "math"

	"github.com/Faultbox/autolow/pkg/math"
)

// Mesh is polygon geometry in object space. UVs, when present, hold one
// coordinate per polygon corner (UVs[p][c] belongs to Polygons[p][c]).
type Mesh struct {
	Vertices []math.Vec3
	Polygons [][]int
	UVs      [][]math.Vec2
	Smooth   bool

	edges [][2]int
}

// NewMesh creates a mesh from vertex positions and polygon index lists.
func NewMesh(vertices []math.Vec3, polygons [][]int) *Mesh {
	return &Mesh{Vertices: vertices, Polygons: polygons}
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int { return len(m.Vertices) }

// PolygonCount returns the number of polygons.
func (m *Mesh) PolygonCount() int { return len(m.Polygons) }

// EdgeCount returns the number of unique edges.
func (m *Mesh) EdgeCount() int { return len(m.Edges()) }

// EdgeEndpoints returns the positions of the vertices of edge i.
func (m *Mesh) EdgeEndpoints(i int) (math.Vec3, math.Vec3) {
	e := m.Edges()[i]
	return m.Vertices[e[0]], m.Vertices[e[1]]
}

// HasUVs reports whether every polygon corner has a UV.
func (m *Mesh) HasUVs() bool {
	return m.UVs != nil && len(m.UVs) == len(m.Polygons)
}

// Edges returns the unique edges in first-seen polygon order. The order is
// stable for a given mesh, which keeps edge sampling deterministic.
func (m *Mesh) Edges() [][2]int {
	if m.edges != nil {
		return m.edges
	}
	seen := make(map[[2]int]struct{})
	edges := make([][2]int, 0, len(m.Polygons)*2)
	for _, poly := range m.Polygons {
		for c := range poly {
			key := edgeKey(poly[c], poly[(c+1)%len(poly)])
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			edges = append(edges, key)
		}
	}
	m.edges = edges
	return edges
}

// invalidate drops cached topology after an edit.
func (m *Mesh) invalidate() {
	m.edges = nil
}

// Clone returns a deep copy.
func (m *Mesh) Clone() *Mesh {
	out := &Mesh{
		Vertices: append([]math.Vec3(nil), m.Vertices...),
		Polygons: make([][]int, len(m.Polygons)),
		Smooth:   m.Smooth,
	}
	for i, p := range m.Polygons {
		out.Polygons[i] = append([]int(nil), p...)
	}
	if m.UVs != nil {
		out.UVs = make([][]math.Vec2, len(m.UVs))
		for i, uv := range m.UVs {
			out.UVs[i] = append([]math.Vec2(nil), uv...)
		}
	}
	return out
}

// IsManifold reports whether no edge is shared by more than two polygons.
func (m *Mesh) IsManifold() bool {
	use := make(map[[2]int]int)
	for _, poly := range m.Polygons {
		for c := range poly {
			key := edgeKey(poly[c], poly[(c+1)%len(poly)])
			use[key]++
			if use[key] > 2 {
				return false
			}
		}
	}
	return true
}

// PolygonNormal returns the unnormalized Newell normal of polygon p. Its
// length is twice the polygon area.
func (m *Mesh) PolygonNormal(p int) math.Vec3 {
	poly := m.Polygons[p]
	var n math.Vec3
	for c := range poly {
		a := m.Vertices[poly[c]]
		b := m.Vertices[poly[(c+1)%len(poly)]]
		n.X += (a.Y - b.Y) * (a.Z + b.Z)
		n.Y += (a.Z - b.Z) * (a.X + b.X)
		n.Z += (a.X - b.X) * (a.Y + b.Y)
	}
	return n
}

// VertexNormals returns area-weighted vertex normals.
func (m *Mesh) VertexNormals() []math.Vec3 {
	normals := make([]math.Vec3, len(m.Vertices))
	for p, poly := range m.Polygons {
		n := m.PolygonNormal(p)
		for _, v := range poly {
			normals[v] = normals[v].Add(n)
		}
	}
	for i := range normals {
		normals[i] = normals[i].Normalize()
	}
	return normals
}

// Bounds returns the axis-aligned bounding box.
func (m *Mesh) Bounds() (lo, hi math.Vec3) {
	if len(m.Vertices) == 0 {
		return
	}
	lo, hi = m.Vertices[0], m.Vertices[0]
	for _, v := range m.Vertices[1:] {
		lo = lo.Min(v)
		hi = hi.Max(v)
	}
	return lo, hi
}

func edgeKey(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

// UVSphere builds a closed sphere with the given number of segments around
// and rings from pole to pole. It has segments*rings polygons: quads in
// between and triangle fans at the poles.
func UVSphere(segments, rings int, radius float32) *Mesh {
	verts := []math.Vec3{{Z: radius}}
	for r := 1; r < rings; r++ {
		theta := gomath.Pi * float64(r) / float64(rings)
		for s := 0; s < segments; s++ {
			phi := 2 * gomath.Pi * float64(s) / float64(segments)
			verts = append(verts, math.Vec3{
				X: radius * float32(gomath.Sin(theta)*gomath.Cos(phi)),
				Y: radius * float32(gomath.Sin(theta)*gomath.Sin(phi)),
				Z: radius * float32(gomath.Cos(theta)),
			})
		}
	}
	south := len(verts)
	verts = append(verts, math.Vec3{Z: -radius})

	ring := func(r, s int) int { return 1 + (r-1)*segments + (s % segments) }
	var polys [][]int
	for s := 0; s < segments; s++ {
		polys = append(polys, []int{0, ring(1, s), ring(1, s+1)})
	}
	for r := 1; r < rings-1; r++ {
		for s := 0; s < segments; s++ {
			polys = append(polys, []int{ring(r, s), ring(r+1, s), ring(r+1, s+1), ring(r, s+1)})
		}
	}
	for s := 0; s < segments; s++ {
		polys = append(polys, []int{ring(rings-1, s), south, ring(rings-1, s+1)})
	}
	return NewMesh(verts, polys)
}

// Plane builds a flat n x n grid of quads spanning [-size/2, size/2] in XY.
func Plane(n int, size float32) *Mesh {
	var verts []math.Vec3
	step := size / float32(n)
	for y := 0; y <= n; y++ {
		for x := 0; x <= n; x++ {
			verts = append(verts, math.Vec3{X: -size/2 + float32(x)*step, Y: -size/2 + float32(y)*step})
		}
	}
	var polys [][]int
	row := n + 1
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			i := y*row + x
			polys = append(polys, []int{i, i + 1, i + row + 1, i + row})
		}
	}
	return NewMesh(verts, polys)
}
