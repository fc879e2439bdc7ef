package pipeline

import (
	"fmt"

	"github.com/Faultbox/autolow/internal/config"
	"github.com/Faultbox/autolow/internal/host"
)

// IslandMargin is the UV island spacing used for smart projection.
const IslandMargin = 0.05

// Unwrap generates UVs on low when the settings ask for it.
func Unwrap(h host.Geometry, method config.UnwrapMethod, low host.Object) error {
	switch method {
	case config.UnwrapSmartProject:
		return h.SmartProject(low, IslandMargin)
	case config.UnwrapNone:
		return nil
	default:
		return fmt.Errorf("%w: unwrap method %d", config.ErrInvalidValue, int(method))
	}
}
