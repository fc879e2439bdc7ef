// OBJ (Wavefront) geometry reader and writer.

package formats

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Faultbox/autolow/pkg/math"
)

// OBJ format errors.
var (
	ErrInvalidOBJIndex = errors.New("OBJ index out of range")
	ErrShortOBJFace    = errors.New("OBJ face needs at least 3 vertices")
	ErrMalformedOBJ    = errors.New("malformed OBJ statement")
)

// OBJFace is one polygon. Indices are zero-based into the owning object's
// arrays; UV holds -1 for corners without texture coordinates.
type OBJFace struct {
	V  []int
	UV []int
}

// OBJObject is one named object ("o" statement) with object-local arrays.
type OBJObject struct {
	Name      string
	Material  string
	Positions []math.Vec3
	UVs       []math.Vec2
	Faces     []OBJFace
}

// OBJ is a parsed Wavefront OBJ file.
type OBJ struct {
	MaterialLibs []string
	Objects      []OBJObject
}

// objBuilder remaps global OBJ indices into per-object arrays.
type objBuilder struct {
	positions []math.Vec3
	uvs       []math.Vec2
	objects   []OBJObject
	vRemap    map[int]int
	uvRemap   map[int]int
	material  string
}

func (b *objBuilder) current() *OBJObject {
	if len(b.objects) == 0 {
		b.start("default")
	}
	return &b.objects[len(b.objects)-1]
}

func (b *objBuilder) start(name string) {
	b.objects = append(b.objects, OBJObject{Name: name, Material: b.material})
	b.vRemap = make(map[int]int)
	b.uvRemap = make(map[int]int)
}

// resolve converts a 1-based (or negative relative) OBJ index to zero-based.
func resolve(raw string, count int) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: index %q", ErrMalformedOBJ, raw)
	}
	if n < 0 {
		n = count + n
	} else {
		n--
	}
	if n < 0 || n >= count {
		return 0, fmt.Errorf("%w: %s of %d", ErrInvalidOBJIndex, raw, count)
	}
	return n, nil
}

func (b *objBuilder) addFace(fields []string) error {
	if len(fields) < 3 {
		return ErrShortOBJFace
	}
	obj := b.current()
	face := OBJFace{V: make([]int, len(fields)), UV: make([]int, len(fields))}

	for i, corner := range fields {
		parts := strings.Split(corner, "/")

		gv, err := resolve(parts[0], len(b.positions))
		if err != nil {
			return err
		}
		local, ok := b.vRemap[gv]
		if !ok {
			local = len(obj.Positions)
			obj.Positions = append(obj.Positions, b.positions[gv])
			b.vRemap[gv] = local
		}
		face.V[i] = local
		face.UV[i] = -1

		if len(parts) > 1 && parts[1] != "" {
			gt, err := resolve(parts[1], len(b.uvs))
			if err != nil {
				return err
			}
			lt, ok := b.uvRemap[gt]
			if !ok {
				lt = len(obj.UVs)
				obj.UVs = append(obj.UVs, b.uvs[gt])
				b.uvRemap[gt] = lt
			}
			face.UV[i] = lt
		}
	}

	obj.Faces = append(obj.Faces, face)
	return nil
}

func parseFloats(fields []string, n int) ([]float32, error) {
	if len(fields) < n {
		return nil, fmt.Errorf("%w: expected %d numbers, got %d", ErrMalformedOBJ, n, len(fields))
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		f, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedOBJ, err)
		}
		out[i] = float32(f)
	}
	return out, nil
}

// ParseOBJ parses OBJ data. Normals, groups and smoothing statements are
// ignored; the pipeline recomputes normals itself.
func ParseOBJ(r io.Reader) (*OBJ, error) {
	b := &objBuilder{}
	out := &OBJ{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		fields := strings.Fields(line)
		args := fields[1:]

		var err error
		switch fields[0] {
		case "v":
			var p []float32
			if p, err = parseFloats(args, 3); err == nil {
				b.positions = append(b.positions, math.Vec3{X: p[0], Y: p[1], Z: p[2]})
			}
		case "vt":
			var p []float32
			if p, err = parseFloats(args, 2); err == nil {
				b.uvs = append(b.uvs, math.Vec2{X: p[0], Y: p[1]})
			}
		case "f":
			err = b.addFace(args)
		case "o":
			b.start(strings.Join(args, " "))
		case "usemtl":
			b.material = strings.Join(args, " ")
			if len(b.objects) > 0 {
				b.current().Material = b.material
			}
		case "mtllib":
			out.MaterialLibs = append(out.MaterialLibs, args...)
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	// Objects declared without faces (e.g. a trailing "o") carry nothing.
	for _, obj := range b.objects {
		if len(obj.Faces) > 0 {
			out.Objects = append(out.Objects, obj)
		}
	}
	return out, nil
}

// LoadOBJ reads and parses an OBJ file from disk.
func LoadOBJ(path string) (*OBJ, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading OBJ: %w", err)
	}
	return ParseOBJ(bytes.NewReader(data))
}

// WriteOBJ writes objects with global indices in file order.
func WriteOBJ(w io.Writer, mtllib string, objects []OBJObject) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "# autolow")
	if mtllib != "" {
		fmt.Fprintf(bw, "mtllib %s\n", mtllib)
	}

	vBase, uvBase := 1, 1
	for _, obj := range objects {
		fmt.Fprintf(bw, "o %s\n", obj.Name)
		for _, p := range obj.Positions {
			fmt.Fprintf(bw, "v %s %s %s\n", ftoa(p.X), ftoa(p.Y), ftoa(p.Z))
		}
		for _, uv := range obj.UVs {
			fmt.Fprintf(bw, "vt %s %s\n", ftoa(uv.X), ftoa(uv.Y))
		}
		if obj.Material != "" {
			fmt.Fprintf(bw, "usemtl %s\n", obj.Material)
		}
		for _, f := range obj.Faces {
			bw.WriteString("f")
			for i, v := range f.V {
				if i < len(f.UV) && f.UV[i] >= 0 {
					fmt.Fprintf(bw, " %d/%d", v+vBase, f.UV[i]+uvBase)
				} else {
					fmt.Fprintf(bw, " %d", v+vBase)
				}
			}
			bw.WriteByte('\n')
		}
		vBase += len(obj.Positions)
		uvBase += len(obj.UVs)
	}
	return bw.Flush()
}

func ftoa(f float32) string {
	return strconv.FormatFloat(float64(f), 'g', -1, 32)
}
