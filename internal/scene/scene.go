// Package scene is an in-memory 3D host. It holds mesh objects with their
// modifier stacks, materials and images, and implements every host operation
// the pipeline needs with simple, deterministic geometry.
package scene

import (
	"fmt"
	"image"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/autolow/internal/host"
	"github.com/Faultbox/autolow/pkg/math"
)

// Object is a scene object. Only the scene mutates it.
type Object struct {
	id        string
	name      string
	kind      host.ObjectKind
	mesh      *Mesh
	transform math.Mat4

	modifiers  []*Modifier
	material   *Material
	hidden     bool
	selected   bool
	autoSmooth bool

	// Surface appearance imported with the mesh, used by diffuse bakes.
	color       [3]float32
	texture     image.Image
	texturePath string

	removed bool
}

// ID returns the stable identifier.
func (o *Object) ID() string { return o.id }

// Name returns the display name.
func (o *Object) Name() string { return o.name }

// Kind returns the object kind.
func (o *Object) Kind() host.ObjectKind { return o.kind }

// MeshData returns the object's mesh, or nil for non-mesh objects.
func (o *Object) MeshData() *Mesh { return o.mesh }

// Hidden reports whether the object is hidden in the viewport.
func (o *Object) Hidden() bool { return o.hidden }

// Material returns the active material, if any.
func (o *Object) Material() *Material { return o.material }

// AutoSmooth reports the auto-smooth flag.
func (o *Object) AutoSmooth() bool { return o.autoSmooth }

// Transform returns the object-to-world matrix.
func (o *Object) Transform() math.Mat4 { return o.transform }

// SetColor sets the surface base color used when no texture is present.
func (o *Object) SetColor(r, g, b float32) { o.color = [3]float32{r, g, b} }

// SetTexture sets the surface texture sampled by diffuse bakes.
func (o *Object) SetTexture(img image.Image) { o.texture = img }

func (o *Object) worldVertices() []math.Vec3 {
	out := make([]math.Vec3, len(o.mesh.Vertices))
	for i, v := range o.mesh.Vertices {
		out[i] = o.transform.TransformVec3(v)
	}
	return out
}

// Scene is the in-memory host. Not safe for concurrent use.
type Scene struct {
	objects []*Object
	byID    map[string]*Object
	active  *Object
	images  []*Image

	path    string
	session *Session
	// OnPromptSave is called by PromptSave. Nil means the request is only
	// logged.
	OnPromptSave func() error

	log *zap.Logger
}

// New creates an empty scene. A nil logger disables logging.
func New(log *zap.Logger) *Scene {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scene{
		byID: make(map[string]*Object),
		log:  log,
	}
}

var _ host.Host = (*Scene)(nil)

// AddMesh links a new mesh object and makes it active.
func (s *Scene) AddMesh(name string, mesh *Mesh) *Object {
	obj := s.link(&Object{
		name:      name,
		kind:      host.KindMesh,
		mesh:      mesh,
		transform: math.Identity(),
		color:     [3]float32{0.8, 0.8, 0.8},
	})
	s.active = obj
	return obj
}

// AddEmpty links a new object without geometry and makes it active.
func (s *Scene) AddEmpty(name string) *Object {
	obj := s.link(&Object{name: name, kind: host.KindOther, transform: math.Identity()})
	s.active = obj
	return obj
}

func (s *Scene) link(obj *Object) *Object {
	if obj.id == "" {
		obj.id = uuid.NewString()
	}
	s.objects = append(s.objects, obj)
	s.byID[obj.id] = obj
	return obj
}

// Objects returns every object in creation order.
func (s *Scene) Objects() []*Object {
	return append([]*Object(nil), s.objects...)
}

// Find returns the first object with the given name.
func (s *Scene) Find(name string) (*Object, bool) {
	for _, obj := range s.objects {
		if obj.name == name {
			return obj, true
		}
	}
	return nil, false
}

// Images returns every image created in the scene.
func (s *Scene) Images() []*Image {
	return append([]*Image(nil), s.images...)
}

// SetActive makes obj the active object; nil clears it.
func (s *Scene) SetActive(obj *Object) {
	s.active = obj
}

// resolve maps a handle back to a live object of this scene.
func (s *Scene) resolve(h host.Object) (*Object, error) {
	obj, ok := h.(*Object)
	if !ok || obj == nil {
		return nil, host.ErrForeignHandle
	}
	if obj.removed || s.byID[obj.id] != obj {
		return nil, fmt.Errorf("%w: %s", host.ErrObjectNotFound, obj.name)
	}
	return obj, nil
}

func (s *Scene) resolveMesh(h host.Object) (*Object, error) {
	obj, err := s.resolve(h)
	if err != nil {
		return nil, err
	}
	if obj.kind != host.KindMesh {
		return nil, fmt.Errorf("%w: %s", host.ErrNotMesh, obj.name)
	}
	return obj, nil
}

// Lookup resolves an object identifier.
func (s *Scene) Lookup(id string) (host.Object, error) {
	obj, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", host.ErrObjectNotFound, id)
	}
	return obj, nil
}

// ActiveObject returns the active object.
func (s *Scene) ActiveObject() (host.Object, bool) {
	if s.active == nil || s.active.removed {
		return nil, false
	}
	return s.active, true
}

// Mesh returns the geometry of a mesh object.
func (s *Scene) Mesh(h host.Object) (host.MeshData, error) {
	obj, err := s.resolveMesh(h)
	if err != nil {
		return nil, err
	}
	return obj.mesh, nil
}

// Duplicate copies the object with its own mesh data. Modifiers and the
// material are not copied; the duplicate starts without a material so node
// edits never reach the source. Surface color and texture are copied.
func (s *Scene) Duplicate(h host.Object, name string) (host.Object, error) {
	src, err := s.resolve(h)
	if err != nil {
		return nil, err
	}
	dup := &Object{
		name:       name,
		kind:       src.kind,
		transform:  src.transform,
		autoSmooth: src.autoSmooth,
		color:      src.color,
		texture:    src.texture,
	}
	if src.mesh != nil {
		dup.mesh = src.mesh.Clone()
	}
	s.link(dup)
	s.log.Debug("duplicated", zap.String("source", src.name), zap.String("name", name))
	return dup, nil
}

// Remove unlinks the object. Its handle becomes invalid.
func (s *Scene) Remove(h host.Object) error {
	obj, err := s.resolve(h)
	if err != nil {
		return err
	}
	for i, o := range s.objects {
		if o == obj {
			s.objects = append(s.objects[:i], s.objects[i+1:]...)
			break
		}
	}
	delete(s.byID, obj.id)
	obj.removed = true
	if s.active == obj {
		s.active = nil
	}
	return nil
}

// SetHidden sets viewport visibility.
func (s *Scene) SetHidden(h host.Object, hidden bool) error {
	obj, err := s.resolve(h)
	if err != nil {
		return err
	}
	obj.hidden = hidden
	return nil
}

// SetSelected sets the selection flag.
func (s *Scene) SetSelected(h host.Object, selected bool) error {
	obj, err := s.resolve(h)
	if err != nil {
		return err
	}
	obj.selected = selected
	return nil
}

// ShadeSmooth marks the mesh smooth and sets auto-smooth.
func (s *Scene) ShadeSmooth(h host.Object, autoSmooth bool) error {
	obj, err := s.resolveMesh(h)
	if err != nil {
		return err
	}
	obj.mesh.Smooth = true
	obj.autoSmooth = autoSmooth
	return nil
}
