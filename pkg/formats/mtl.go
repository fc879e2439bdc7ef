// MTL (Wavefront material library) reader and writer.

package formats

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// MTLMaterial holds the subset of MTL the pipeline uses.
type MTLMaterial struct {
	Name    string
	Diffuse [3]float32 // Kd
	MapKd   string     // diffuse texture path, relative to the MTL file
	MapBump string     // normal map path (map_Bump / norm)
}

// ParseMTL parses a material library.
func ParseMTL(r io.Reader) (map[string]*MTLMaterial, error) {
	materials := make(map[string]*MTLMaterial)
	var cur *MTLMaterial

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		fields := strings.Fields(line)
		args := fields[1:]

		switch strings.ToLower(fields[0]) {
		case "newmtl":
			cur = &MTLMaterial{Name: strings.Join(args, " "), Diffuse: [3]float32{0.8, 0.8, 0.8}}
			materials[cur.Name] = cur
		case "kd":
			if cur == nil {
				return nil, fmt.Errorf("line %d: %w: Kd before newmtl", lineNo, ErrMalformedOBJ)
			}
			kd, err := parseFloats(args, 3)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			cur.Diffuse = [3]float32{kd[0], kd[1], kd[2]}
		case "map_kd":
			if cur != nil && len(args) > 0 {
				cur.MapKd = args[len(args)-1]
			}
		case "map_bump", "bump", "norm":
			if cur != nil && len(args) > 0 {
				cur.MapBump = args[len(args)-1]
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return materials, nil
}

// LoadMTL reads and parses a material library from disk.
func LoadMTL(path string) (map[string]*MTLMaterial, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading MTL: %w", err)
	}
	defer f.Close()
	return ParseMTL(f)
}

// WriteMTL writes materials sorted by name.
func WriteMTL(w io.Writer, materials []MTLMaterial) error {
	sorted := append([]MTLMaterial(nil), materials...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	bw := bufio.NewWriter(w)
	for _, m := range sorted {
		fmt.Fprintf(bw, "newmtl %s\n", m.Name)
		fmt.Fprintf(bw, "Kd %s %s %s\n", ftoa(m.Diffuse[0]), ftoa(m.Diffuse[1]), ftoa(m.Diffuse[2]))
		if m.MapKd != "" {
			fmt.Fprintf(bw, "map_Kd %s\n", m.MapKd)
		}
		if m.MapBump != "" {
			fmt.Fprintf(bw, "map_Bump %s\n", m.MapBump)
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}
