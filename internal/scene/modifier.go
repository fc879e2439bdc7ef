package scene

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/autolow/internal/host"
	"github.com/Faultbox/autolow/pkg/math"
)

// Modifier is an entry of an object's modifier stack.
type Modifier struct {
	name string
	kind host.ModifierKind

	ratio       float64 // decimate
	levels      int     // multires display level
	totalLevels int     // multires subdivisions stored
	shrinkwrap  host.ShrinkwrapSettings

	owner *Object
}

// Name returns the modifier name.
func (m *Modifier) Name() string { return m.name }

// Kind returns the modifier type.
func (m *Modifier) Kind() host.ModifierKind { return m.kind }

// Levels returns the multires display and total levels.
func (m *Modifier) Levels() (display, total int) { return m.levels, m.totalLevels }

func (s *Scene) addModifier(h host.Object, mod *Modifier) (host.Modifier, error) {
	obj, err := s.resolveMesh(h)
	if err != nil {
		return nil, err
	}
	mod.owner = obj
	obj.modifiers = append(obj.modifiers, mod)
	return mod, nil
}

// resolveModifier checks that mod sits on obj's stack.
func (s *Scene) resolveModifier(h host.Object, m host.Modifier) (*Object, *Modifier, error) {
	obj, err := s.resolveMesh(h)
	if err != nil {
		return nil, nil, err
	}
	mod, ok := m.(*Modifier)
	if !ok || mod == nil {
		return nil, nil, host.ErrForeignHandle
	}
	for _, on := range obj.modifiers {
		if on == mod {
			return obj, mod, nil
		}
	}
	return nil, nil, fmt.Errorf("modifier %s is not on %s", mod.name, obj.name)
}

// AddDecimate appends a decimate modifier keeping ratio of the polygons.
func (s *Scene) AddDecimate(h host.Object, name string, ratio float64) (host.Modifier, error) {
	if ratio <= 0 || ratio > 1 {
		return nil, fmt.Errorf("decimate ratio %g not in (0,1]", ratio)
	}
	return s.addModifier(h, &Modifier{name: name, kind: host.ModifierDecimate, ratio: ratio})
}

// AddMultires appends a multires modifier with no subdivisions.
func (s *Scene) AddMultires(h host.Object, name string) (host.Modifier, error) {
	return s.addModifier(h, &Modifier{name: name, kind: host.ModifierMultires})
}

// AddShrinkwrap appends a shrinkwrap modifier.
func (s *Scene) AddShrinkwrap(h host.Object, name string, settings host.ShrinkwrapSettings) (host.Modifier, error) {
	target, err := s.resolveMesh(settings.Target)
	if err != nil {
		return nil, fmt.Errorf("shrinkwrap target: %w", err)
	}
	if target == h {
		return nil, fmt.Errorf("shrinkwrap target must differ from the object")
	}
	return s.addModifier(h, &Modifier{name: name, kind: host.ModifierShrinkwrap, shrinkwrap: settings})
}

// SubdivideMultires adds one subdivision level and displays it.
func (s *Scene) SubdivideMultires(h host.Object, m host.Modifier, mode host.SubdivisionMode) error {
	_, mod, err := s.resolveModifier(h, m)
	if err != nil {
		return err
	}
	if mod.kind != host.ModifierMultires {
		return fmt.Errorf("%s is not a multires modifier", mod.name)
	}
	mod.totalLevels++
	mod.levels = mod.totalLevels
	return nil
}

// SetMultiresLevels sets the displayed level, keeping stored levels.
func (s *Scene) SetMultiresLevels(h host.Object, m host.Modifier, levels int) error {
	_, mod, err := s.resolveModifier(h, m)
	if err != nil {
		return err
	}
	if mod.kind != host.ModifierMultires {
		return fmt.Errorf("%s is not a multires modifier", mod.name)
	}
	if levels < 0 || levels > mod.totalLevels {
		return fmt.Errorf("multires level %d not in [0,%d]", levels, mod.totalLevels)
	}
	mod.levels = levels
	return nil
}

// ApplyModifier bakes the modifier into the mesh and removes it.
func (s *Scene) ApplyModifier(h host.Object, m host.Modifier) error {
	obj, mod, err := s.resolveModifier(h, m)
	if err != nil {
		return err
	}
	switch mod.kind {
	case host.ModifierDecimate:
		target := int(float64(obj.mesh.PolygonCount()) * mod.ratio)
		obj.mesh = clusterToTarget(obj.mesh, target)
	case host.ModifierShrinkwrap:
		target, err := s.resolveMesh(mod.shrinkwrap.Target)
		if err != nil {
			return fmt.Errorf("shrinkwrap target: %w", err)
		}
		shrinkwrap(obj, target)
	case host.ModifierMultires:
		// Stored levels become real geometry in a full host; here the base
		// mesh stands in for the subdivided one.
	}
	s.log.Debug("applied modifier",
		zap.String("object", obj.name),
		zap.String("modifier", mod.name),
		zap.Stringer("kind", mod.kind))
	return s.RemoveModifier(h, m)
}

// RemoveModifier drops the modifier without applying it.
func (s *Scene) RemoveModifier(h host.Object, m host.Modifier) error {
	obj, mod, err := s.resolveModifier(h, m)
	if err != nil {
		return err
	}
	for i, on := range obj.modifiers {
		if on == mod {
			obj.modifiers = append(obj.modifiers[:i], obj.modifiers[i+1:]...)
			break
		}
	}
	mod.owner = nil
	return nil
}

// ClearModifiers empties the stack without applying anything.
func (s *Scene) ClearModifiers(h host.Object) error {
	obj, err := s.resolve(h)
	if err != nil {
		return err
	}
	for _, mod := range obj.modifiers {
		mod.owner = nil
	}
	obj.modifiers = nil
	return nil
}

// ModifierStack returns the modifiers in evaluation order.
func (s *Scene) ModifierStack(h host.Object) ([]host.Modifier, error) {
	obj, err := s.resolve(h)
	if err != nil {
		return nil, err
	}
	out := make([]host.Modifier, len(obj.modifiers))
	for i, mod := range obj.modifiers {
		out[i] = mod
	}
	return out, nil
}

// shrinkwrap moves every vertex of obj onto the nearest vertex of target,
// in world space.
func shrinkwrap(obj, target *Object) {
	targetVerts := target.worldVertices()
	if len(targetVerts) == 0 {
		return
	}
	inverse, ok := invertAffine(obj.transform)
	if !ok {
		return
	}
	for i, v := range obj.mesh.Vertices {
		world := obj.transform.TransformVec3(v)
		obj.mesh.Vertices[i] = inverse.TransformVec3(targetVerts[nearest(targetVerts, world)])
	}
	obj.mesh.invalidate()
}

func nearest(points []math.Vec3, p math.Vec3) int {
	best, bestDist := 0, points[0].DistanceSq(p)
	for i := 1; i < len(points); i++ {
		if d := points[i].DistanceSq(p); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// invertAffine inverts a matrix whose last row is (0, 0, 0, 1).
func invertAffine(m math.Mat4) (math.Mat4, bool) {
	a, b, c := m[0], m[4], m[8]
	d, e, f := m[1], m[5], m[9]
	g, h, i := m[2], m[6], m[10]
	det := a*(e*i-f*h) - b*(d*i-f*g) + c*(d*h-e*g)
	if det == 0 {
		return math.Mat4{}, false
	}
	inv := 1 / det
	var out math.Mat4
	out[0] = (e*i - f*h) * inv
	out[4] = (c*h - b*i) * inv
	out[8] = (b*f - c*e) * inv
	out[1] = (f*g - d*i) * inv
	out[5] = (a*i - c*g) * inv
	out[9] = (c*d - a*f) * inv
	out[2] = (d*h - e*g) * inv
	out[6] = (b*g - a*h) * inv
	out[10] = (a*e - b*d) * inv
	out[15] = 1
	t := math.Vec3{X: m[12], Y: m[13], Z: m[14]}
	r := out.TransformDirection(t)
	out[12], out[13], out[14] = -r.X, -r.Y, -r.Z
	return out, true
}
