// Package pipeline sequences the high-poly to low-poly workflow: duplicate,
// remesh and conform, unwrap, build the bake graph, bake, clean up.
package pipeline

import (
	"errors"
	"fmt"
)

// Precondition errors abort a run before anything is mutated.
var (
	ErrNoObject         = errors.New("no object selected")
	ErrNotMesh          = errors.New("object must be a mesh")
	ErrNoPolygons       = errors.New("the mesh must have more than 0 polygons")
	ErrImagePathMissing = errors.New("the set path doesn't exist, path has been reset to the default")
	ErrImagePathUnknown = errors.New("image path unknown, either save the working file or set the path in settings")
	ErrUnsavedWorkspace = errors.New("save the working file before activating autosave")
	ErrNotDirectory     = errors.New("the path must end with a folder")
	ErrNothingSelected  = errors.New("nothing selected in the viewport")
)

// Per-object errors stop the remaining steps for that object only.
var (
	ErrEmptyMesh      = errors.New("mesh has no edges")
	ErrDegenerateMesh = errors.New("the mesh has 0 polygons after remeshing")
)

// Step names a stage of per-object processing.
type Step string

// Steps.
const (
	StepLookup    Step = "lookup"
	StepDuplicate Step = "duplicate"
	StepRemesh    Step = "remesh"
	StepUnwrap    Step = "unwrap"
	StepBake      Step = "bake"
	StepCleanup   Step = "cleanup"
)

// ObjectError is a failure while processing one queued object.
type ObjectError struct {
	Object string
	Step   Step
	Err    error
}

func (e *ObjectError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Object, e.Step, e.Err)
}

func (e *ObjectError) Unwrap() error {
	return e.Err
}
