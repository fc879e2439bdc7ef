// Package host declares the 3D host the pipeline drives: its object model,
// geometry kernel, modifier stack, shading graph, bake engine and working file.
//
// Every call names the objects it acts on. Nothing in this package relies on a
// host-side notion of "selected" or "active" objects to pick its target.
package host

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/Faultbox/autolow/pkg/math"
)

// Host errors.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrNotMesh        = errors.New("object is not a mesh")
	ErrNoUVs          = errors.New("mesh has no UV map")
	ErrNoPolygons     = errors.New("mesh has no polygons")
	ErrNoActiveImage  = errors.New("no active image node")
	ErrForeignHandle  = errors.New("handle does not belong to this host")
	ErrLightingPass   = errors.New("direct and indirect lighting passes are not baked")
)

// Host is the full set of collaborators the pipeline needs.
type Host interface {
	Scene
	Geometry
	Modifiers
	Shading
	Baker
	Workspace
}

// ObjectKind distinguishes mesh objects from everything else in a scene.
type ObjectKind int

// Object kinds.
const (
	KindMesh ObjectKind = iota
	KindOther
)

func (k ObjectKind) String() string {
	switch k {
	case KindMesh:
		return "mesh"
	case KindOther:
		return "other"
	default:
		return fmt.Sprintf("ObjectKind(%d)", int(k))
	}
}

// Object is a handle to a scene object.
type Object interface {
	ID() string
	Name() string
	Kind() ObjectKind
}

// MeshData is a read-only view of an object's geometry.
type MeshData interface {
	VertexCount() int
	EdgeCount() int
	PolygonCount() int
	// EdgeEndpoints returns the positions of the two vertices of edge i.
	EdgeEndpoints(i int) (math.Vec3, math.Vec3)
}

// Scene is the host's object model.
type Scene interface {
	// Lookup resolves a stable object identifier.
	Lookup(id string) (Object, error)
	// ActiveObject returns the object the user last picked, if any.
	ActiveObject() (Object, bool)
	Mesh(obj Object) (MeshData, error)
	// Duplicate copies obj and its mesh data so edits to the copy never touch
	// the original. The copy is linked into the scene and not selected.
	Duplicate(obj Object, name string) (Object, error)
	Remove(obj Object) error
	SetHidden(obj Object, hidden bool) error
	SetSelected(obj Object, selected bool) error
	// ShadeSmooth marks every polygon smooth and sets the auto-smooth flag.
	ShadeSmooth(obj Object, autoSmooth bool) error
}

// Geometry covers the destructive mesh operations.
type Geometry interface {
	VoxelRemesh(obj Object, voxelSize float64) error
	// QuadRemesh leaves the mesh untouched when it cannot remesh (typically
	// on non-manifold input); callers detect that from the vertex count.
	QuadRemesh(obj Object, targetFaces int) error
	// SmartProject selects the whole mesh and unwraps it automatically.
	SmartProject(obj Object, islandMargin float64) error
	// Inflate moves every vertex outward along its normal.
	Inflate(obj Object, distance float64) error
}

// ModifierKind identifies a modifier type.
type ModifierKind int

// Modifier kinds.
const (
	ModifierDecimate ModifierKind = iota
	ModifierMultires
	ModifierShrinkwrap
)

func (k ModifierKind) String() string {
	switch k {
	case ModifierDecimate:
		return "decimate"
	case ModifierMultires:
		return "multires"
	case ModifierShrinkwrap:
		return "shrinkwrap"
	default:
		return fmt.Sprintf("ModifierKind(%d)", int(k))
	}
}

// Modifier is a handle to one entry of an object's modifier stack.
type Modifier interface {
	Name() string
	Kind() ModifierKind
}

// WrapMethod selects how a shrinkwrap projects vertices.
type WrapMethod int

// Wrap methods.
const (
	WrapNearestVertex WrapMethod = iota
	WrapProject
)

// ShrinkwrapSettings configures a shrinkwrap modifier.
type ShrinkwrapSettings struct {
	Target            Object
	Method            WrapMethod
	NegativeDirection bool
}

// SubdivisionMode selects the multires subdivision scheme.
type SubdivisionMode int

// Subdivision modes.
const (
	SubdivideCatmullClark SubdivisionMode = iota
	SubdivideSimple
)

// Modifiers manages modifier stacks.
type Modifiers interface {
	AddDecimate(obj Object, name string, ratio float64) (Modifier, error)
	AddMultires(obj Object, name string) (Modifier, error)
	AddShrinkwrap(obj Object, name string, s ShrinkwrapSettings) (Modifier, error)
	SubdivideMultires(obj Object, mod Modifier, mode SubdivisionMode) error
	// SetMultiresLevels sets the display level; displacement data is kept.
	SetMultiresLevels(obj Object, mod Modifier, levels int) error
	// ApplyModifier collapses mod into the mesh and removes it from the stack.
	ApplyModifier(obj Object, mod Modifier) error
	RemoveModifier(obj Object, mod Modifier) error
	ClearModifiers(obj Object) error
	ModifierStack(obj Object) ([]Modifier, error)
}

// ColorSpace is the color management of an image.
type ColorSpace int

// Color spaces.
const (
	ColorSRGB     ColorSpace = iota // display-referred, for color maps
	ColorNonColor                   // raw data, for normal maps
)

func (c ColorSpace) String() string {
	switch c {
	case ColorSRGB:
		return "sRGB"
	case ColorNonColor:
		return "Non-Color"
	default:
		return fmt.Sprintf("ColorSpace(%d)", int(c))
	}
}

// ImageSpec describes an image to create.
type ImageSpec struct {
	Name       string
	Width      int
	Height     int
	ColorSpace ColorSpace
	Float      bool // high dynamic range storage
}

// Image is a host image buffer.
type Image interface {
	Name() string
	Spec() ImageSpec
	// Pixels returns the current contents. Float images come back with at
	// least 16 bits per channel.
	Pixels() image.Image
}

// Node is a shader graph node.
type Node interface {
	Name() string
}

// Socket names the inputs the pipeline links into.
type Socket int

// Sockets.
const (
	SocketBaseColor Socket = iota // principled shader base color
	SocketNormal                  // principled shader normal
	SocketColor                   // normal map node color input
)

// Material is a node-based material.
type Material interface {
	Name() string
	// Shader returns the principled shader node created with the material.
	Shader() Node
	AddImageNode(img Image) (Node, error)
	AddNormalMapNode() (Node, error)
	// Link connects the first output of from into the given input of to.
	Link(from Node, to Node, input Socket) error
	// SetActiveNode marks the image node the next bake writes into.
	SetActiveNode(n Node) error
}

// Shading creates materials and images.
type Shading interface {
	// NewMaterial creates a node material and makes it obj's active material.
	NewMaterial(obj Object, name string) (Material, error)
	NewImage(spec ImageSpec) (Image, error)
}

// BakeType is the map a bake pass produces.
type BakeType int

// Bake types.
const (
	BakeNormal BakeType = iota
	BakeDiffuse
)

func (b BakeType) String() string {
	switch b {
	case BakeNormal:
		return "normal"
	case BakeDiffuse:
		return "diffuse"
	default:
		return fmt.Sprintf("BakeType(%d)", int(b))
	}
}

// BakeRequest is one bake invocation. Every participant is named explicitly.
type BakeRequest struct {
	Type   BakeType
	Target Object
	// Image is the image node of Target's material the bake writes into.
	Image Node
	// Sources are baked onto Target by ray projection (selected-to-active).
	// Empty means Target bakes its own surface.
	Sources []Object
	// Multires bakes the displacement stored in Target's multires modifier.
	// Sources and cage settings are ignored.
	Multires bool
	// Cage, when set, is the ray origin surface; Extrusion and MaxRayDistance
	// are then zero.
	Cage           Object
	Extrusion      float64
	MaxRayDistance float64
	// Lighting contributions. Hosts reject requests that enable either, so
	// baked maps carry surface color only.
	PassDirect   bool
	PassIndirect bool
}

// SelectedToActive reports whether the request projects from other objects.
func (r BakeRequest) SelectedToActive() bool {
	return !r.Multires && len(r.Sources) > 0
}

// Baker runs bake passes. Bake blocks until the pass finishes.
type Baker interface {
	Bake(ctx context.Context, req BakeRequest) error
}

// Workspace is the host's working file.
type Workspace interface {
	// FilePath is the saved location of the working file, empty if never saved.
	FilePath() string
	Save() error
	// PromptSave asks the user for a save location. It does not block for
	// the answer; the caller aborts and the user re-runs after saving.
	PromptSave() error
}
