package pipeline

import (
	"go.uber.org/multierr"

	"github.com/Faultbox/autolow/internal/host"
)

// scratch tracks temporary modifiers on one object. Whatever is still
// attached when release runs is removed, so a failed step never leaves its
// modifiers behind.
type scratch struct {
	h    host.Modifiers
	obj  host.Object
	mods []host.Modifier
}

func newScratch(h host.Modifiers, obj host.Object) *scratch {
	return &scratch{h: h, obj: obj}
}

func (s *scratch) track(mod host.Modifier) host.Modifier {
	s.mods = append(s.mods, mod)
	return mod
}

// keep stops tracking mod, because it was applied or must outlive the step.
func (s *scratch) keep(mod host.Modifier) {
	for i, m := range s.mods {
		if m == mod {
			s.mods = append(s.mods[:i], s.mods[i+1:]...)
			return
		}
	}
}

func (s *scratch) release() error {
	var err error
	for i := len(s.mods) - 1; i >= 0; i-- {
		err = multierr.Append(err, s.h.RemoveModifier(s.obj, s.mods[i]))
	}
	s.mods = nil
	return err
}
