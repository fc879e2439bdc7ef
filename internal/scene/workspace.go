package scene

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ftrvxmtrx/tga"
	"go.uber.org/zap"
	"golang.org/x/image/bmp"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/autolow/internal/config"
	"github.com/Faultbox/autolow/internal/host"
	"github.com/Faultbox/autolow/internal/queue"
	"github.com/Faultbox/autolow/pkg/formats"
	"github.com/Faultbox/autolow/pkg/math"
)

// ErrNeverSaved is returned by Save before the scene has a file path.
var ErrNeverSaved = errors.New("working file has never been saved")

const sessionVersion = 1

// Session bundles a scene with the settings and queue saved alongside it.
type Session struct {
	Scene    *Scene
	Settings *config.Pipeline
	Queue    *queue.Queue
}

// NewSession creates an unsaved session with default settings.
func NewSession(log *zap.Logger) *Session {
	settings := config.DefaultPipeline()
	sess := &Session{Scene: New(log), Settings: &settings, Queue: queue.New()}
	sess.Scene.session = sess
	return sess
}

// SaveAs sets the working file path and saves.
func (sess *Session) SaveAs(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	sess.Scene.path = abs
	return sess.Scene.Save()
}

type sessionFile struct {
	Version  int             `yaml:"version"`
	Active   string          `yaml:"active,omitempty"`
	Pipeline config.Pipeline `yaml:"pipeline"`
	Queue    queue.State     `yaml:"queue"`
	Objects  []sessionObject `yaml:"objects"`
}

type sessionObject struct {
	ID      string     `yaml:"id"`
	Name    string     `yaml:"name"`
	Mesh    bool       `yaml:"mesh"`
	Hidden  bool       `yaml:"hidden,omitempty"`
	Color   [3]float32 `yaml:"color,flow"`
	Texture string     `yaml:"texture,omitempty"`
}

// FilePath returns the session file path, empty if never saved.
func (s *Scene) FilePath() string {
	return s.path
}

// PromptSave asks the user to pick a save location.
func (s *Scene) PromptSave() error {
	if s.OnPromptSave != nil {
		return s.OnPromptSave()
	}
	s.log.Warn("working file has never been saved; save it before enabling autosave")
	return nil
}

// Save writes the session yaml and an OBJ/MTL pair with every mesh.
func (s *Scene) Save() error {
	if s.path == "" {
		return ErrNeverSaved
	}
	base := strings.TrimSuffix(s.path, filepath.Ext(s.path))
	objPath, mtlPath := base+".obj", base+".mtl"

	file := sessionFile{Version: sessionVersion}
	if s.session != nil {
		file.Pipeline = *s.session.Settings
		file.Queue = s.session.Queue.State()
	} else {
		file.Pipeline = config.DefaultPipeline()
		file.Queue = queue.New().State()
	}
	if s.active != nil {
		file.Active = s.active.id
	}

	var objects []formats.OBJObject
	var materials []formats.MTLMaterial
	for _, obj := range s.objects {
		file.Objects = append(file.Objects, sessionObject{
			ID:      obj.id,
			Name:    obj.name,
			Mesh:    obj.kind == host.KindMesh,
			Hidden:  obj.hidden,
			Color:   obj.color,
			Texture: obj.texturePath,
		})
		if obj.kind != host.KindMesh {
			continue
		}
		objects = append(objects, toOBJObject(obj))
		materials = append(materials, formats.MTLMaterial{
			Name:    obj.name,
			Diffuse: obj.color,
			MapKd:   obj.texturePath,
		})
	}

	if err := writeFile(objPath, func(f *os.File) error {
		return formats.WriteOBJ(f, filepath.Base(mtlPath), objects)
	}); err != nil {
		return err
	}
	if err := writeFile(mtlPath, func(f *os.File) error {
		return formats.WriteMTL(f, materials)
	}); err != nil {
		return err
	}

	data, err := yaml.Marshal(&file)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("writing session: %w", err)
	}
	s.log.Debug("session saved", zap.String("path", s.path), zap.Int("objects", len(file.Objects)))
	return nil
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

// toOBJObject exports obj in world space under its ID, so names need not be
// unique.
func toOBJObject(obj *Object) formats.OBJObject {
	m := obj.mesh
	out := formats.OBJObject{Name: obj.id, Material: obj.name}
	for _, v := range m.Vertices {
		out.Positions = append(out.Positions, obj.transform.TransformVec3(v))
	}
	for p, poly := range m.Polygons {
		face := formats.OBJFace{V: append([]int(nil), poly...)}
		if m.HasUVs() {
			for _, uv := range m.UVs[p] {
				face.UV = append(face.UV, len(out.UVs))
				out.UVs = append(out.UVs, uv)
			}
		}
		out.Faces = append(out.Faces, face)
	}
	return out
}

// OpenSession loads a session saved by Save. A missing file gives a fresh
// session that will be written to path.
func OpenSession(path string, log *zap.Logger) (*Session, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	sess := NewSession(log)
	sess.Scene.path = abs

	data, err := os.ReadFile(abs)
	if errors.Is(err, os.ErrNotExist) {
		return sess, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}

	var file sessionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing session: %w", err)
	}
	if file.Version != sessionVersion {
		return nil, fmt.Errorf("unsupported session version %d", file.Version)
	}
	*sess.Settings = file.Pipeline
	sess.Queue = queue.FromState(file.Queue)

	meshes := make(map[string]formats.OBJObject)
	if hasMeshes(file.Objects) {
		parsed, err := formats.LoadOBJ(strings.TrimSuffix(abs, filepath.Ext(abs)) + ".obj")
		if err != nil {
			return nil, err
		}
		for _, o := range parsed.Objects {
			meshes[o.Name] = o
		}
	}

	s := sess.Scene
	for _, so := range file.Objects {
		obj := &Object{
			id:          so.ID,
			name:        so.Name,
			kind:        host.KindOther,
			transform:   math.Identity(),
			hidden:      so.Hidden,
			color:       so.Color,
			texturePath: so.Texture,
		}
		if so.Mesh {
			obj.kind = host.KindMesh
			// Meshes without polygons are not written to the OBJ.
			obj.mesh = fromOBJObject(meshes[so.ID])
		}
		if so.Texture != "" {
			tex, err := loadTexture(resolveRelative(abs, so.Texture))
			if err != nil {
				s.log.Warn("texture not loaded", zap.String("object", so.Name), zap.Error(err))
			} else {
				obj.texture = tex
			}
		}
		s.link(obj)
		if so.ID == file.Active {
			s.active = obj
		}
	}
	return sess, nil
}

func hasMeshes(objects []sessionObject) bool {
	for _, o := range objects {
		if o.Mesh {
			return true
		}
	}
	return false
}

func fromOBJObject(o formats.OBJObject) *Mesh {
	m := &Mesh{Vertices: append([]math.Vec3(nil), o.Positions...)}
	withUVs := len(o.Faces) > 0
	for _, f := range o.Faces {
		m.Polygons = append(m.Polygons, append([]int(nil), f.V...))
		if len(f.UV) != len(f.V) {
			withUVs = false
			continue
		}
		for _, uv := range f.UV {
			if uv < 0 {
				withUVs = false
			}
		}
	}
	if withUVs {
		m.UVs = make([][]math.Vec2, len(o.Faces))
		for p, f := range o.Faces {
			for _, uv := range f.UV {
				m.UVs[p] = append(m.UVs[p], o.UVs[uv])
			}
		}
	}
	return m
}

// ImportOBJ adds every object of an OBJ file as a mesh object. Material
// colors and diffuse textures come from the referenced MTL libraries. The
// last imported object becomes active.
func (s *Scene) ImportOBJ(path string) ([]*Object, error) {
	parsed, err := formats.LoadOBJ(path)
	if err != nil {
		return nil, err
	}

	materials := make(map[string]*formats.MTLMaterial)
	for _, lib := range parsed.MaterialLibs {
		mtls, err := formats.LoadMTL(resolveRelative(path, lib))
		if err != nil {
			s.log.Warn("material library not loaded", zap.String("mtllib", lib), zap.Error(err))
			continue
		}
		for name, m := range mtls {
			materials[name] = m
		}
	}

	var added []*Object
	for _, o := range parsed.Objects {
		if len(o.Faces) == 0 {
			continue
		}
		obj := s.AddMesh(o.Name, fromOBJObject(o))
		if mtl, ok := materials[o.Material]; ok {
			obj.color = mtl.Diffuse
			if mtl.MapKd != "" {
				texPath := resolveRelative(path, mtl.MapKd)
				tex, err := loadTexture(texPath)
				if err != nil {
					s.log.Warn("texture not loaded", zap.String("object", o.Name), zap.Error(err))
				} else {
					obj.texture = tex
					obj.texturePath = texPath
				}
			}
		}
		added = append(added, obj)
	}
	if len(added) == 0 {
		return nil, fmt.Errorf("%s contains no polygon objects", filepath.Base(path))
	}
	s.log.Info("imported", zap.String("path", path), zap.Int("objects", len(added)))
	return added, nil
}

func resolveRelative(from, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(filepath.Dir(from), path)
}

// textureDecoders picks a decoder by extension. TGA has no magic number, so
// sniffing with image.Decode is not reliable.
var textureDecoders = map[string]func(io.Reader) (image.Image, error){
	".png":  png.Decode,
	".jpg":  jpeg.Decode,
	".jpeg": jpeg.Decode,
	".tga":  tga.Decode,
	".bmp":  bmp.Decode,
}

// loadTexture decodes a PNG, JPEG, TGA or BMP file.
func loadTexture(path string) (image.Image, error) {
	decode, ok := textureDecoders[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, fmt.Errorf("unsupported texture format %s", filepath.Ext(path))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	return img, nil
}
