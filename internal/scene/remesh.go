package scene

import (
	"fmt"
	gomath "math"

	"go.uber.org/zap"

	"github.com/Faultbox/autolow/internal/host"
	"github.com/Faultbox/autolow/pkg/math"
)

// cluster snaps vertices to a grid of the given cell size, merges vertices
// that share a cell, and drops polygons that collapse below three corners.
// UVs do not survive.
func cluster(m *Mesh, cell float64) *Mesh {
	lo, _ := m.Bounds()
	index := make(map[[3]int64]int)
	var sums []math.Vec3
	var counts []float32
	remap := make([]int, len(m.Vertices))

	for i, v := range m.Vertices {
		key := [3]int64{
			int64(gomath.Floor(float64(v.X-lo.X) / cell)),
			int64(gomath.Floor(float64(v.Y-lo.Y) / cell)),
			int64(gomath.Floor(float64(v.Z-lo.Z) / cell)),
		}
		idx, ok := index[key]
		if !ok {
			idx = len(sums)
			index[key] = idx
			sums = append(sums, math.Vec3{})
			counts = append(counts, 0)
		}
		sums[idx] = sums[idx].Add(v)
		counts[idx]++
		remap[i] = idx
	}

	verts := make([]math.Vec3, len(sums))
	for i := range sums {
		verts[i] = sums[i].Scale(1 / counts[i])
	}

	var polys [][]int
	seen := make(map[string]struct{})
	for _, poly := range m.Polygons {
		var out []int
		for _, v := range poly {
			nv := remap[v]
			if len(out) > 0 && out[len(out)-1] == nv {
				continue
			}
			out = append(out, nv)
		}
		if len(out) > 1 && out[0] == out[len(out)-1] {
			out = out[:len(out)-1]
		}
		if len(out) < 3 || hasRepeat(out) {
			continue
		}
		key := polygonKey(out)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		polys = append(polys, out)
	}

	return &Mesh{Vertices: compact(verts, polys), Polygons: polys, Smooth: m.Smooth}
}

// compact drops vertices no polygon references and rewrites polys in place.
func compact(verts []math.Vec3, polys [][]int) []math.Vec3 {
	used := make([]int, len(verts))
	for i := range used {
		used[i] = -1
	}
	var out []math.Vec3
	for _, poly := range polys {
		for c, v := range poly {
			if used[v] < 0 {
				used[v] = len(out)
				out = append(out, verts[v])
			}
			poly[c] = used[v]
		}
	}
	return out
}

func hasRepeat(poly []int) bool {
	for i := range poly {
		for j := i + 1; j < len(poly); j++ {
			if poly[i] == poly[j] {
				return true
			}
		}
	}
	return false
}

// polygonKey identifies a polygon regardless of winding start.
func polygonKey(poly []int) string {
	start := 0
	for i, v := range poly {
		if v < poly[start] {
			start = i
		}
	}
	b := make([]byte, 0, len(poly)*4)
	for i := range poly {
		b = fmt.Appendf(b, "%d,", poly[(start+i)%len(poly)])
	}
	return string(b)
}

func averageEdgeLength(m *Mesh) float64 {
	edges := m.Edges()
	if len(edges) == 0 {
		return 0
	}
	var sum float64
	for _, e := range edges {
		sum += m.Vertices[e[0]].Distance(m.Vertices[e[1]])
	}
	return sum / float64(len(edges))
}

// clusterToTarget searches for a cell size whose clustering lands near the
// target polygon count and returns the closest result.
func clusterToTarget(m *Mesh, target int) *Mesh {
	if target < 1 {
		target = 1
	}
	avg := averageEdgeLength(m)
	if avg == 0 || len(m.Polygons) == 0 {
		return m.Clone()
	}
	// Polygon count scales roughly with the inverse square of the cell size.
	cell := avg * gomath.Sqrt(float64(len(m.Polygons))/float64(target))

	var best *Mesh
	bestDiff := gomath.MaxInt
	for i := 0; i < 12; i++ {
		out := cluster(m, cell)
		n := len(out.Polygons)
		diff := n - target
		if diff < 0 {
			diff = -diff
		}
		if diff < bestDiff {
			best, bestDiff = out, diff
		}
		switch {
		case float64(n) > float64(target)*1.1:
			cell *= 1.2
		case float64(n) < float64(target)*0.9:
			cell /= 1.2
		default:
			return best
		}
	}
	return best
}

// VoxelRemesh rebuilds the mesh on a grid with the given cell size.
func (s *Scene) VoxelRemesh(h host.Object, voxelSize float64) error {
	obj, err := s.resolveMesh(h)
	if err != nil {
		return err
	}
	if voxelSize <= 0 || gomath.IsNaN(voxelSize) || gomath.IsInf(voxelSize, 0) {
		return fmt.Errorf("invalid voxel size %g", voxelSize)
	}
	before := obj.mesh.PolygonCount()
	obj.mesh = cluster(obj.mesh, voxelSize)
	s.log.Debug("voxel remesh",
		zap.String("object", obj.name),
		zap.Float64("voxel_size", voxelSize),
		zap.Int("polygons_before", before),
		zap.Int("polygons_after", obj.mesh.PolygonCount()))
	return nil
}

// QuadRemesh rebuilds the mesh toward targetFaces polygons. Like real quad
// remeshers it gives up on non-manifold input and leaves the mesh as is.
func (s *Scene) QuadRemesh(h host.Object, targetFaces int) error {
	obj, err := s.resolveMesh(h)
	if err != nil {
		return err
	}
	if !obj.mesh.IsManifold() {
		s.log.Warn("quad remesh skipped on non-manifold mesh", zap.String("object", obj.name))
		return nil
	}
	obj.mesh = clusterToTarget(obj.mesh, targetFaces)
	s.log.Debug("quad remesh",
		zap.String("object", obj.name),
		zap.Int("target_faces", targetFaces),
		zap.Int("polygons", obj.mesh.PolygonCount()))
	return nil
}
