package pipeline

import (
	"github.com/Faultbox/autolow/internal/config"
	"github.com/Faultbox/autolow/internal/host"
)

// CageName is the name of the temporary cage object.
const CageName = "cage"

// CageInflation is how far the auto cage is pushed out along vertex normals.
const CageInflation = 2.0

// BuildCage makes the automatic bake cage: a deselected copy of low inflated
// along its normals. A cage only exists for Transfer bakes in Auto mode;
// otherwise the returned object is nil. The release func is never nil and
// must be called once baking is over.
func BuildCage(h host.Host, settings config.Pipeline, low host.Object) (host.Object, func() error, error) {
	noop := func() error { return nil }
	if settings.CageSettings != config.CageAuto || settings.BakeMethod != config.BakeTransfer {
		return nil, noop, nil
	}

	cage, err := h.Duplicate(low, CageName)
	if err != nil {
		return nil, noop, err
	}
	release := func() error { return h.Remove(cage) }

	if err := h.Inflate(cage, CageInflation); err != nil {
		release()
		return nil, noop, err
	}
	if err := h.SetSelected(cage, false); err != nil {
		release()
		return nil, noop, err
	}
	return cage, release, nil
}
