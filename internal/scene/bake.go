package scene

import (
	"context"
	"errors"
	"fmt"
	"image"
	gomath "math"

	"go.uber.org/zap"
	xdraw "golang.org/x/image/draw"

	"github.com/Faultbox/autolow/internal/host"
	"github.com/Faultbox/autolow/pkg/math"
)

var flatNormal = rgba{0.5, 0.5, 1, 1}

// Bake renders the requested map into the active image node of the target's
// material. Colors are resolved per target vertex and interpolated across
// each UV triangle.
func (s *Scene) Bake(ctx context.Context, req host.BakeRequest) error {
	if req.PassDirect || req.PassIndirect {
		return host.ErrLightingPass
	}
	target, err := s.resolveMesh(req.Target)
	if err != nil {
		return err
	}
	if target.mesh.PolygonCount() == 0 {
		return fmt.Errorf("%w: %s", host.ErrNoPolygons, target.name)
	}
	if !target.mesh.HasUVs() {
		return fmt.Errorf("%w: %s", host.ErrNoUVs, target.name)
	}
	img, err := s.bakeImage(target, req.Image)
	if err != nil {
		return err
	}

	var sources []*Object
	if !req.Multires {
		for _, h := range req.Sources {
			src, err := s.resolveMesh(h)
			if err != nil {
				return fmt.Errorf("bake source: %w", err)
			}
			if src == target {
				return errors.New("bake source must differ from the target")
			}
			sources = append(sources, src)
		}
		if req.Cage != nil {
			cage, err := s.resolveMesh(req.Cage)
			if err != nil {
				return fmt.Errorf("bake cage: %w", err)
			}
			if cage == target {
				return errors.New("bake cage must differ from the target")
			}
		}
	} else if !hasMultiresData(target) {
		return fmt.Errorf("%s has no multires displacement to bake", target.name)
	}

	var colors []rgba
	switch req.Type {
	case host.BakeNormal:
		colors = normalColors(target, sources, req.MaxRayDistance+req.Extrusion)
	case host.BakeDiffuse:
		colors = diffuseColors(target, sources, req.MaxRayDistance+req.Extrusion)
	default:
		return fmt.Errorf("unsupported bake type %d", int(req.Type))
	}

	spec := img.Spec()
	set := writerFor(img.pix)
	m := target.mesh
	for p, poly := range m.Polygons {
		if p%256 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		uvs := m.UVs[p]
		for c := 1; c+1 < len(poly); c++ {
			fillTriangle(spec.Width, spec.Height,
				[3]math.Vec2{uvs[0], uvs[c], uvs[c+1]},
				[3]rgba{colors[poly[0]], colors[poly[c]], colors[poly[c+1]]},
				set)
		}
	}

	s.log.Debug("baked",
		zap.String("object", target.name),
		zap.Stringer("type", req.Type),
		zap.String("image", spec.Name),
		zap.Int("sources", len(sources)),
		zap.Bool("multires", req.Multires))
	return nil
}

func (s *Scene) bakeImage(target *Object, h host.Node) (*Image, error) {
	mat := target.material
	if mat == nil || mat.active == nil {
		return nil, fmt.Errorf("%w: %s", host.ErrNoActiveImage, target.name)
	}
	node, err := mat.own(h)
	if err != nil {
		return nil, err
	}
	if node != mat.active || node.image == nil {
		return nil, fmt.Errorf("%w: requested node is not the active image node", host.ErrNoActiveImage)
	}
	return node.image, nil
}

func hasMultiresData(obj *Object) bool {
	for _, mod := range obj.modifiers {
		if mod.kind == host.ModifierMultires && mod.totalLevels > 0 {
			return true
		}
	}
	return false
}

// hit is the source vertex found for a target vertex; idx is -1 on a miss.
type hit struct {
	src *Object
	idx int
}

// castVertices finds, for every target vertex, the nearest source vertex in
// world space. Candidates farther than a positive maxDist are misses.
func castVertices(target *Object, sources []*Object, maxDist float64) []hit {
	verts := target.worldVertices()
	hits := make([]hit, len(verts))
	for i := range hits {
		hits[i].idx = -1
	}
	for _, src := range sources {
		points := src.worldVertices()
		if len(points) == 0 {
			continue
		}
		for i, v := range verts {
			j := nearest(points, v)
			d := points[j].Distance(v)
			if maxDist > 0 && d > maxDist {
				continue
			}
			if hits[i].idx < 0 || d < hits[i].src.worldVertex(hits[i].idx).Distance(v) {
				hits[i] = hit{src: src, idx: j}
			}
		}
	}
	return hits
}

func (o *Object) worldVertex(i int) math.Vec3 {
	return o.transform.TransformVec3(o.mesh.Vertices[i])
}

// normalColors encodes the source normal in each target vertex's tangent
// frame. Without sources the surface is its own detail: a flat normal.
func normalColors(target *Object, sources []*Object, maxDist float64) []rgba {
	colors := make([]rgba, target.mesh.VertexCount())
	for i := range colors {
		colors[i] = flatNormal
	}
	if len(sources) == 0 {
		return colors
	}

	targetNormals := worldNormals(target)
	srcNormals := make(map[*Object][]math.Vec3, len(sources))
	for _, src := range sources {
		srcNormals[src] = worldNormals(src)
	}
	for i, h := range castVertices(target, sources, maxDist) {
		if h.idx < 0 {
			continue
		}
		n := targetNormals[i]
		t, b := tangentFrame(n)
		d := srcNormals[h.src][h.idx]
		colors[i] = rgba{
			0.5 + 0.5*float64(d.Dot(t)),
			0.5 + 0.5*float64(d.Dot(b)),
			0.5 + 0.5*float64(d.Dot(n)),
			1,
		}
	}
	return colors
}

func worldNormals(obj *Object) []math.Vec3 {
	normals := obj.mesh.VertexNormals()
	for i, n := range normals {
		normals[i] = obj.transform.TransformDirection(n).Normalize()
	}
	return normals
}

// tangentFrame builds an orthonormal tangent and bitangent around n.
func tangentFrame(n math.Vec3) (math.Vec3, math.Vec3) {
	up := math.Vec3{Z: 1}
	if gomath.Abs(float64(n.Z)) > 0.999 {
		up = math.Vec3{Y: 1}
	}
	t := up.Cross(n).Normalize()
	return t, n.Cross(t)
}

// diffuseColors samples the source surface color under each target vertex,
// or the target's own surface when baking without sources. Misses stay
// black.
func diffuseColors(target *Object, sources []*Object, maxDist float64) []rgba {
	colors := make([]rgba, target.mesh.VertexCount())
	if len(sources) == 0 {
		tint := surfaceTint(target)
		for i := range colors {
			colors[i] = tint
		}
		return colors
	}

	for i := range colors {
		colors[i] = rgba{0, 0, 0, 1}
	}
	vertexUVs := make(map[*Object][]math.Vec2, len(sources))
	for _, src := range sources {
		vertexUVs[src] = firstCornerUVs(src.mesh)
	}
	for i, h := range castVertices(target, sources, maxDist) {
		if h.idx < 0 {
			continue
		}
		uvs := vertexUVs[h.src]
		if h.src.texture != nil && uvs != nil {
			colors[i] = sampleTexture(h.src.texture, uvs[h.idx])
			continue
		}
		colors[i] = surfaceTint(h.src)
	}
	return colors
}

// surfaceTint is the object's base color, or its texture reduced to a
// single averaged pixel.
func surfaceTint(obj *Object) rgba {
	if obj.texture == nil {
		return rgba{float64(obj.color[0]), float64(obj.color[1]), float64(obj.color[2]), 1}
	}
	dst := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), obj.texture, obj.texture.Bounds(), xdraw.Src, nil)
	c := dst.NRGBAAt(0, 0)
	return rgba{float64(c.R) / 255, float64(c.G) / 255, float64(c.B) / 255, 1}
}

// firstCornerUVs picks one UV per vertex from the first polygon corner that
// uses it. Returns nil when the mesh has no UVs.
func firstCornerUVs(m *Mesh) []math.Vec2 {
	if !m.HasUVs() {
		return nil
	}
	out := make([]math.Vec2, len(m.Vertices))
	set := make([]bool, len(m.Vertices))
	for p, poly := range m.Polygons {
		for c, v := range poly {
			if !set[v] {
				out[v] = m.UVs[p][c]
				set[v] = true
			}
		}
	}
	return out
}

// sampleTexture reads the nearest texel, wrapping UVs into [0,1).
func sampleTexture(img image.Image, uv math.Vec2) rgba {
	b := img.Bounds()
	u := float64(uv.X) - gomath.Floor(float64(uv.X))
	v := float64(uv.Y) - gomath.Floor(float64(uv.Y))
	x := b.Min.X + min(int(u*float64(b.Dx())), b.Dx()-1)
	y := b.Min.Y + min(int((1-v)*float64(b.Dy())), b.Dy()-1)
	r, g, bl, _ := img.At(x, y).RGBA()
	return rgba{float64(r) / 0xffff, float64(g) / 0xffff, float64(bl) / 0xffff, 1}
}
