package scene

import (
	"fmt"
	gomath "math"

	"github.com/Faultbox/autolow/internal/host"
	"github.com/Faultbox/autolow/pkg/math"
)

// SmartProject gives every polygon its own island: the polygon is projected
// onto the plane facing its dominant normal axis and packed into one cell of
// a square grid atlas, inset by islandMargin of the cell size.
func (s *Scene) SmartProject(h host.Object, islandMargin float64) error {
	obj, err := s.resolveMesh(h)
	if err != nil {
		return err
	}
	if islandMargin < 0 || islandMargin >= 0.5 {
		return fmt.Errorf("island margin %g not in [0,0.5)", islandMargin)
	}
	m := obj.mesh
	n := len(m.Polygons)
	if n == 0 {
		return host.ErrNoPolygons
	}

	cols := int(gomath.Ceil(gomath.Sqrt(float64(n))))
	cell := 1 / float32(cols)
	pad := cell * float32(islandMargin)
	inner := cell - 2*pad

	m.UVs = make([][]math.Vec2, n)
	for p, poly := range m.Polygons {
		u, v := projectionAxes(m.PolygonNormal(p))
		flat := make([]math.Vec2, len(poly))
		lo := math.Vec2{X: gomath.MaxFloat32, Y: gomath.MaxFloat32}
		hi := math.Vec2{X: -gomath.MaxFloat32, Y: -gomath.MaxFloat32}
		for c, vi := range poly {
			pos := m.Vertices[vi]
			flat[c] = math.Vec2{X: pos.Axis(u), Y: pos.Axis(v)}
			lo.X, lo.Y = min(lo.X, flat[c].X), min(lo.Y, flat[c].Y)
			hi.X, hi.Y = max(hi.X, flat[c].X), max(hi.Y, flat[c].Y)
		}

		// Uniform scale keeps the island's aspect ratio.
		extent := max(hi.X-lo.X, hi.Y-lo.Y)
		scale := float32(0)
		if extent > 0 {
			scale = inner / extent
		}
		origin := math.Vec2{
			X: float32(p%cols)*cell + pad,
			Y: float32(p/cols)*cell + pad,
		}
		uvs := make([]math.Vec2, len(poly))
		for c := range flat {
			uvs[c] = origin.Add(flat[c].Sub(lo).Scale(scale))
		}
		m.UVs[p] = uvs
	}
	return nil
}

// projectionAxes returns the two coordinate axes spanning the plane most
// perpendicular to n.
func projectionAxes(n math.Vec3) (int, int) {
	ax, ay, az := gomath.Abs(float64(n.X)), gomath.Abs(float64(n.Y)), gomath.Abs(float64(n.Z))
	switch {
	case ax >= ay && ax >= az:
		return 1, 2
	case ay >= az:
		return 0, 2
	default:
		return 0, 1
	}
}

// Inflate pushes every vertex along its area-weighted normal.
func (s *Scene) Inflate(h host.Object, distance float64) error {
	obj, err := s.resolveMesh(h)
	if err != nil {
		return err
	}
	m := obj.mesh
	normals := m.VertexNormals()
	for i := range m.Vertices {
		m.Vertices[i] = m.Vertices[i].Add(normals[i].Scale(float32(distance)))
	}
	m.invalidate()
	return nil
}
