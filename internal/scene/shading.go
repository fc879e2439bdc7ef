package scene

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/Faultbox/autolow/internal/host"
)

// NodeKind identifies a shader node type.
type NodeKind int

// Node kinds.
const (
	NodePrincipled NodeKind = iota
	NodeImage
	NodeNormalMap
)

// Node is a shader graph node.
type Node struct {
	name  string
	kind  NodeKind
	image *Image
	mat   *Material
}

// Name returns the node name.
func (n *Node) Name() string { return n.name }

// Kind returns the node type.
func (n *Node) Kind() NodeKind { return n.kind }

// Image returns the image of an image node.
func (n *Node) Image() *Image { return n.image }

// Link is a connection between two nodes.
type Link struct {
	From  *Node
	To    *Node
	Input host.Socket
}

// Material is a node material.
type Material struct {
	name   string
	shader *Node
	nodes  []*Node
	links  []Link
	active *Node
}

// Name returns the material name.
func (m *Material) Name() string { return m.name }

// Shader returns the principled shader node.
func (m *Material) Shader() host.Node { return m.shader }

// Nodes returns every node of the graph.
func (m *Material) Nodes() []*Node { return append([]*Node(nil), m.nodes...) }

// Links returns every connection of the graph.
func (m *Material) Links() []Link { return append([]Link(nil), m.links...) }

// ActiveNode returns the image node bakes write into.
func (m *Material) ActiveNode() *Node { return m.active }

func (m *Material) addNode(n *Node) *Node {
	n.mat = m
	m.nodes = append(m.nodes, n)
	return n
}

func (m *Material) own(h host.Node) (*Node, error) {
	n, ok := h.(*Node)
	if !ok || n == nil {
		return nil, host.ErrForeignHandle
	}
	if n.mat != m {
		return nil, fmt.Errorf("node %s belongs to another material", n.name)
	}
	return n, nil
}

// AddImageNode adds an image texture node.
func (m *Material) AddImageNode(img host.Image) (host.Node, error) {
	im, ok := img.(*Image)
	if !ok || im == nil {
		return nil, host.ErrForeignHandle
	}
	return m.addNode(&Node{name: "Image Texture", kind: NodeImage, image: im}), nil
}

// AddNormalMapNode adds a tangent-space normal map node.
func (m *Material) AddNormalMapNode() (host.Node, error) {
	return m.addNode(&Node{name: "Normal Map", kind: NodeNormalMap}), nil
}

// Link connects from into the given input of to.
func (m *Material) Link(from, to host.Node, input host.Socket) error {
	f, err := m.own(from)
	if err != nil {
		return err
	}
	t, err := m.own(to)
	if err != nil {
		return err
	}
	switch {
	case input == host.SocketColor && t.kind != NodeNormalMap:
		return errors.New("color input only exists on normal map nodes")
	case input != host.SocketColor && t.kind != NodePrincipled:
		return fmt.Errorf("input %d only exists on the shader", int(input))
	}
	m.links = append(m.links, Link{From: f, To: t, Input: input})
	return nil
}

// SetActiveNode marks an image node as the bake target.
func (m *Material) SetActiveNode(h host.Node) error {
	n, err := m.own(h)
	if err != nil {
		return err
	}
	if n.kind != NodeImage {
		return fmt.Errorf("%w: %s is not an image node", host.ErrNoActiveImage, n.name)
	}
	m.active = n
	return nil
}

// Image is an RGBA image buffer. Float images use 16 bits per channel.
type Image struct {
	spec host.ImageSpec
	pix  draw.Image
}

// Name returns the image name.
func (i *Image) Name() string { return i.spec.Name }

// Spec returns the creation parameters.
func (i *Image) Spec() host.ImageSpec { return i.spec }

// Pixels returns the image contents.
func (i *Image) Pixels() image.Image { return i.pix }

// NewMaterial creates a material with a principled shader and assigns it.
func (s *Scene) NewMaterial(h host.Object, name string) (host.Material, error) {
	obj, err := s.resolveMesh(h)
	if err != nil {
		return nil, err
	}
	m := &Material{name: name}
	m.shader = m.addNode(&Node{name: "Principled BSDF", kind: NodePrincipled})
	obj.material = m
	return m, nil
}

// NewImage allocates an opaque black image.
func (s *Scene) NewImage(spec host.ImageSpec) (host.Image, error) {
	if spec.Width <= 0 || spec.Height <= 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", spec.Width, spec.Height)
	}
	rect := image.Rect(0, 0, spec.Width, spec.Height)
	var pix draw.Image
	if spec.Float {
		pix = image.NewNRGBA64(rect)
	} else {
		pix = image.NewNRGBA(rect)
	}
	draw.Draw(pix, rect, image.NewUniform(color.Black), image.Point{}, draw.Src)

	img := &Image{spec: spec, pix: pix}
	s.images = append(s.images, img)
	return img, nil
}
