package config

import (
	"fmt"
	"strings"
)

// Remesher selects the topology simplification strategy.
type Remesher int

// Remesher constants.
const (
	RemesherVoxel    Remesher = iota // Voxel remesh sized from sampled edge lengths
	RemesherQuad                     // Quad remesh to a target face count
	RemesherDecimate                 // Ratio decimation, collapsed immediately
	RemesherNone                     // Keep the source topology
)

var remesherNames = map[Remesher]string{
	RemesherVoxel:    "voxel",
	RemesherQuad:     "quad",
	RemesherDecimate: "decimate",
	RemesherNone:     "none",
}

func (r Remesher) String() string {
	if s, ok := remesherNames[r]; ok {
		return s
	}
	return fmt.Sprintf("Remesher(%d)", int(r))
}

// MarshalText implements encoding.TextMarshaler.
func (r Remesher) MarshalText() ([]byte, error) {
	if _, ok := remesherNames[r]; !ok {
		return nil, fmt.Errorf("%w: remesher %d", ErrInvalidValue, int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Remesher) UnmarshalText(b []byte) error {
	v, err := ParseRemesher(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// ParseRemesher parses a remesher name (case-insensitive).
func ParseRemesher(s string) (Remesher, error) {
	return parseEnum(remesherNames, "remesher", s)
}

// UnwrapMethod selects the UV unwrap strategy.
type UnwrapMethod int

// UnwrapMethod constants.
const (
	UnwrapSmartProject UnwrapMethod = iota
	UnwrapNone
)

var unwrapNames = map[UnwrapMethod]string{
	UnwrapSmartProject: "smart_project",
	UnwrapNone:         "none",
}

func (u UnwrapMethod) String() string {
	if s, ok := unwrapNames[u]; ok {
		return s
	}
	return fmt.Sprintf("UnwrapMethod(%d)", int(u))
}

// MarshalText implements encoding.TextMarshaler.
func (u UnwrapMethod) MarshalText() ([]byte, error) {
	if _, ok := unwrapNames[u]; !ok {
		return nil, fmt.Errorf("%w: unwrap method %d", ErrInvalidValue, int(u))
	}
	return []byte(u.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *UnwrapMethod) UnmarshalText(b []byte) error {
	v, err := parseEnum(unwrapNames, "unwrap method", string(b))
	if err != nil {
		return err
	}
	*u = v
	return nil
}

// BakeMethod selects how texture maps are baked onto the low-poly object.
type BakeMethod int

// BakeMethod constants.
const (
	BakeTransfer BakeMethod = iota // Selected-to-active from the high-poly source
	BakeActive                     // Bake the low-poly object's own surface
	BakeNone
)

var bakeNames = map[BakeMethod]string{
	BakeTransfer: "transfer",
	BakeActive:   "active",
	BakeNone:     "none",
}

func (b BakeMethod) String() string {
	if s, ok := bakeNames[b]; ok {
		return s
	}
	return fmt.Sprintf("BakeMethod(%d)", int(b))
}

// MarshalText implements encoding.TextMarshaler.
func (b BakeMethod) MarshalText() ([]byte, error) {
	if _, ok := bakeNames[b]; !ok {
		return nil, fmt.Errorf("%w: bake method %d", ErrInvalidValue, int(b))
	}
	return []byte(b.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *BakeMethod) UnmarshalText(text []byte) error {
	v, err := parseEnum(bakeNames, "bake method", string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// CageMode selects between a generated cage and manual ray settings.
type CageMode int

// CageMode constants.
const (
	CageAuto CageMode = iota
	CageManual
)

var cageNames = map[CageMode]string{
	CageAuto:   "auto",
	CageManual: "manual",
}

func (c CageMode) String() string {
	if s, ok := cageNames[c]; ok {
		return s
	}
	return fmt.Sprintf("CageMode(%d)", int(c))
}

// MarshalText implements encoding.TextMarshaler.
func (c CageMode) MarshalText() ([]byte, error) {
	if _, ok := cageNames[c]; !ok {
		return nil, fmt.Errorf("%w: cage mode %d", ErrInvalidValue, int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *CageMode) UnmarshalText(b []byte) error {
	v, err := parseEnum(cageNames, "cage mode", string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Workflow is a preset that bulk-sets the remesh, unwrap and bake fields.
type Workflow int

// Workflow constants.
const (
	WorkflowFull Workflow = iota
	WorkflowTransferBake
	WorkflowActiveBake
	WorkflowNone
)

var workflowNames = map[Workflow]string{
	WorkflowFull:         "full",
	WorkflowTransferBake: "transfer",
	WorkflowActiveBake:   "active",
	WorkflowNone:         "none",
}

func (w Workflow) String() string {
	if s, ok := workflowNames[w]; ok {
		return s
	}
	return fmt.Sprintf("Workflow(%d)", int(w))
}

// ParseWorkflow parses a workflow preset name (case-insensitive).
func ParseWorkflow(s string) (Workflow, error) {
	return parseEnum(workflowNames, "workflow", s)
}

// ImageFormat selects the file format of persisted bake images.
type ImageFormat int

// ImageFormat constants.
const (
	FormatPNG ImageFormat = iota
	FormatWebP
	FormatTGA
	FormatBMP
	FormatTIFF
)

var formatNames = map[ImageFormat]string{
	FormatPNG:  "png",
	FormatWebP: "webp",
	FormatTGA:  "tga",
	FormatBMP:  "bmp",
	FormatTIFF: "tiff",
}

func (f ImageFormat) String() string {
	if s, ok := formatNames[f]; ok {
		return s
	}
	return fmt.Sprintf("ImageFormat(%d)", int(f))
}

// Ext returns the file extension including the leading dot.
func (f ImageFormat) Ext() string {
	return "." + f.String()
}

// MarshalText implements encoding.TextMarshaler.
func (f ImageFormat) MarshalText() ([]byte, error) {
	if _, ok := formatNames[f]; !ok {
		return nil, fmt.Errorf("%w: image format %d", ErrInvalidValue, int(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *ImageFormat) UnmarshalText(b []byte) error {
	v, err := ParseImageFormat(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// ParseImageFormat parses an image format name (case-insensitive).
func ParseImageFormat(s string) (ImageFormat, error) {
	return parseEnum(formatNames, "image format", s)
}

func parseEnum[T comparable](names map[T]string, what, s string) (T, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for v, name := range names {
		if name == s {
			return v, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("%w: unknown %s %q", ErrInvalidValue, what, s)
}
