package pipeline

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/autolow/internal/config"
	"github.com/Faultbox/autolow/internal/host"
)

// Modifier names used on the low-poly duplicate.
const (
	DecimateModifierName   = "Autolow_Decimate"
	MultiresModifierName   = "Autolow_Multires"
	ShrinkwrapModifierName = "Autolow_Shrinkwrap"
)

// conformLevels is the number of Catmull-Clark multires subdivisions used to
// capture the source surface as displacement.
const conformLevels = 3

// RemeshResult describes what Remesh did to the low-poly object.
type RemeshResult struct {
	// Remeshed is true when topology was replaced; the normal bake then uses
	// the multires displacement instead of ray projection.
	Remeshed bool
	// Retried is true when a quad remesh fell back to a voxel pre-pass.
	Retried  bool
	Multires host.Modifier
	Warnings []string
}

// Remesh simplifies low according to settings and, for any remesher but
// None, conforms it back to high with a multires + shrinkwrap pass.
func Remesh(h host.Host, settings config.Pipeline, high, low host.Object, log *zap.Logger) (RemeshResult, error) {
	var res RemeshResult
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("object", low.Name()), zap.Stringer("remesher", settings.Remesher))

	if !settings.Remeshes() {
		return res, nil
	}
	switch settings.Remesher {
	case config.RemesherVoxel:
		if err := voxelRemesh(h, low, settings.Samples, settings.RemeshPercent); err != nil {
			return res, err
		}
	case config.RemesherQuad:
		retried, warnings, err := quadRemesh(h, low, settings, log)
		if err != nil {
			return res, err
		}
		res.Retried = retried
		res.Warnings = append(res.Warnings, warnings...)
	case config.RemesherDecimate:
		if err := decimate(h, low, settings.RemeshPercent); err != nil {
			return res, err
		}
	default:
		return res, fmt.Errorf("%w: remesher %d", config.ErrInvalidValue, int(settings.Remesher))
	}
	res.Remeshed = true

	mesh, err := h.Mesh(low)
	if err != nil {
		return res, err
	}
	log.Debug("remeshed",
		zap.Int("vertices", mesh.VertexCount()),
		zap.Int("polygons", mesh.PolygonCount()))
	if mesh.PolygonCount() == 0 {
		// Nothing to conform; the controller decides whether that is fatal.
		return res, nil
	}

	multires, err := conform(h, high, low)
	if err != nil {
		return res, fmt.Errorf("conforming to %s: %w", high.Name(), err)
	}
	res.Multires = multires
	return res, nil
}

func voxelRemesh(h host.Host, low host.Object, samples, percent int) error {
	mesh, err := h.Mesh(low)
	if err != nil {
		return err
	}
	avg, err := EstimateEdgeLength(mesh, samples)
	if err != nil {
		return err
	}
	return h.VoxelRemesh(low, VoxelSize(avg, percent))
}

// quadRemesh targets floor(faces*percent/100) faces. Quad remeshing silently
// fails on non-manifold meshes, which shows as an unchanged vertex count; in
// that case the mesh is voxel remeshed at the unscaled average edge length
// and quad remeshed exactly once more.
func quadRemesh(h host.Host, low host.Object, settings config.Pipeline, log *zap.Logger) (bool, []string, error) {
	mesh, err := h.Mesh(low)
	if err != nil {
		return false, nil, err
	}
	target := mesh.PolygonCount() * settings.RemeshPercent / 100

	changed, err := quadAttempt(h, low, target)
	if err != nil || changed {
		return false, nil, err
	}

	log.Warn("quad remesh left the mesh unchanged, retrying after a voxel remesh",
		zap.Int("target_faces", target))
	if err := voxelRemesh(h, low, settings.Samples, 100); err != nil {
		return true, nil, fmt.Errorf("voxel recovery: %w", err)
	}
	changed, err = quadAttempt(h, low, target)
	if err != nil {
		return true, nil, err
	}
	if !changed {
		msg := fmt.Sprintf("quad remesh failed on %s even after voxel recovery; keeping the voxel result", low.Name())
		log.Warn(msg)
		return true, []string{msg}, nil
	}
	return true, nil, nil
}

func quadAttempt(h host.Host, low host.Object, target int) (bool, error) {
	before, err := h.Mesh(low)
	if err != nil {
		return false, err
	}
	count := before.VertexCount()
	if err := h.QuadRemesh(low, target); err != nil {
		return false, err
	}
	after, err := h.Mesh(low)
	if err != nil {
		return false, err
	}
	return after.VertexCount() != count, nil
}

func decimate(h host.Host, low host.Object, percent int) (err error) {
	s := newScratch(h, low)
	defer func() { err = multierr.Append(err, s.release()) }()

	mod, err := h.AddDecimate(low, DecimateModifierName, float64(percent)/100)
	if err != nil {
		return err
	}
	s.track(mod)
	if err := h.ApplyModifier(low, mod); err != nil {
		return err
	}
	s.keep(mod)
	return nil
}

// conform captures high's surface on low: three multires levels, a projecting
// shrinkwrap toward high applied on top, then the display level reset to the
// base so the displacement stays available for a multires bake.
func conform(h host.Host, high, low host.Object) (_ host.Modifier, err error) {
	s := newScratch(h, low)
	defer func() { err = multierr.Append(err, s.release()) }()

	multires, err := h.AddMultires(low, MultiresModifierName)
	if err != nil {
		return nil, err
	}
	s.track(multires)

	shrink, err := h.AddShrinkwrap(low, ShrinkwrapModifierName, host.ShrinkwrapSettings{
		Target:            high,
		Method:            host.WrapProject,
		NegativeDirection: true,
	})
	if err != nil {
		return nil, err
	}
	s.track(shrink)

	for i := 0; i < conformLevels; i++ {
		if err := h.SubdivideMultires(low, multires, host.SubdivideCatmullClark); err != nil {
			return nil, err
		}
	}
	if err := h.ApplyModifier(low, shrink); err != nil {
		return nil, err
	}
	s.keep(shrink)

	if err := h.SetMultiresLevels(low, multires, 0); err != nil {
		return nil, err
	}
	s.keep(multires)
	return multires, nil
}
