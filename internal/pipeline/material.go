package pipeline

import (
	"github.com/Faultbox/autolow/internal/host"
)

// MaterialName is the name of the material created on each low-poly object.
const MaterialName = "Autolow_Material"

// Image names; they double as the base of the saved file names.
const (
	NormalImageName  = "normal"
	DiffuseImageName = "diffuse"
)

// TextureSlot pairs a bake target image with the node that holds it.
type TextureSlot struct {
	Image host.Image
	Node  host.Node
}

// BakeGraph is the shader graph built on the low-poly object.
type BakeGraph struct {
	Material host.Material
	Diffuse  TextureSlot
	Normal   *TextureSlot // nil when normal baking is off
}

// Slot returns the slot a bake of type t writes into.
func (g *BakeGraph) Slot(t host.BakeType) (TextureSlot, bool) {
	switch t {
	case host.BakeNormal:
		if g.Normal == nil {
			return TextureSlot{}, false
		}
		return *g.Normal, true
	case host.BakeDiffuse:
		return g.Diffuse, true
	}
	return TextureSlot{}, false
}

// BuildBakeGraph creates the low-poly material: a diffuse image into the
// shader's base color and, when withNormal is set, a non-color float image
// routed through a normal-map node into the shader's normal input. Both
// images are resolution x resolution.
func BuildBakeGraph(h host.Shading, low host.Object, resolution int, withNormal bool) (*BakeGraph, error) {
	mat, err := h.NewMaterial(low, MaterialName)
	if err != nil {
		return nil, err
	}
	g := &BakeGraph{Material: mat}

	if withNormal {
		img, err := h.NewImage(host.ImageSpec{
			Name:       NormalImageName,
			Width:      resolution,
			Height:     resolution,
			ColorSpace: host.ColorNonColor,
			Float:      true,
		})
		if err != nil {
			return nil, err
		}
		tex, err := mat.AddImageNode(img)
		if err != nil {
			return nil, err
		}
		normalMap, err := mat.AddNormalMapNode()
		if err != nil {
			return nil, err
		}
		if err := mat.Link(tex, normalMap, host.SocketColor); err != nil {
			return nil, err
		}
		if err := mat.Link(normalMap, mat.Shader(), host.SocketNormal); err != nil {
			return nil, err
		}
		g.Normal = &TextureSlot{Image: img, Node: tex}
	}

	img, err := h.NewImage(host.ImageSpec{
		Name:       DiffuseImageName,
		Width:      resolution,
		Height:     resolution,
		ColorSpace: host.ColorSRGB,
	})
	if err != nil {
		return nil, err
	}
	tex, err := mat.AddImageNode(img)
	if err != nil {
		return nil, err
	}
	if err := mat.Link(tex, mat.Shader(), host.SocketBaseColor); err != nil {
		return nil, err
	}
	g.Diffuse = TextureSlot{Image: img, Node: tex}
	return g, nil
}
