package pipeline

import (
	"context"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/Faultbox/autolow/internal/config"
	"github.com/Faultbox/autolow/internal/host"
	"github.com/Faultbox/autolow/internal/scene"
)

func TestBuildBakeGraph(t *testing.T) {
	tests := []struct {
		name       string
		withNormal bool
		wantLinks  int
	}{
		{"diffuse only", false, 1},
		{"diffuse and normal", true, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newRecordingHost()
			_, low := highAndLow(t, h, 8, 4)

			g, err := BuildBakeGraph(h, low, 512, tt.withNormal)
			if err != nil {
				t.Fatalf("BuildBakeGraph failed: %v", err)
			}
			if g.Material.Name() != MaterialName {
				t.Errorf("material = %q", g.Material.Name())
			}

			diffuse := g.Diffuse.Image.Spec()
			if diffuse.Width != 512 || diffuse.Height != 512 || diffuse.ColorSpace != host.ColorSRGB || diffuse.Float {
				t.Errorf("diffuse spec = %+v", diffuse)
			}
			if tt.withNormal {
				if g.Normal == nil {
					t.Fatal("normal slot missing")
				}
				normal := g.Normal.Image.Spec()
				if normal.Width != 512 || normal.Height != 512 || normal.ColorSpace != host.ColorNonColor || !normal.Float {
					t.Errorf("normal spec = %+v", normal)
				}
			} else if g.Normal != nil {
				t.Error("normal slot built while normal baking is off")
			}

			mat := low.(*scene.Object).Material()
			if mat == nil || len(mat.Links()) != tt.wantLinks {
				t.Errorf("links = %d, want %d", len(mat.Links()), tt.wantLinks)
			}
		})
	}
}

func TestBuildCage(t *testing.T) {
	tests := []struct {
		name     string
		cage     config.CageMode
		bake     config.BakeMethod
		wantCage bool
	}{
		{"auto transfer", config.CageAuto, config.BakeTransfer, true},
		{"manual transfer", config.CageManual, config.BakeTransfer, false},
		{"auto active", config.CageAuto, config.BakeActive, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newRecordingHost()
			_, low := highAndLow(t, h, 8, 4)
			s := config.DefaultPipeline()
			s.CageSettings = tt.cage
			s.BakeMethod = tt.bake

			cage, release, err := BuildCage(h, s, low)
			if err != nil {
				t.Fatal(err)
			}
			if (cage != nil) != tt.wantCage {
				t.Fatalf("cage = %v, want present=%v", cage, tt.wantCage)
			}
			if cage != nil && cage.Name() != CageName {
				t.Errorf("cage name = %q", cage.Name())
			}
			if err := release(); err != nil {
				t.Fatal(err)
			}
			if _, ok := h.Find(CageName); ok {
				t.Error("cage survived release")
			}
		})
	}
}

func TestBaseRequest(t *testing.T) {
	h := newRecordingHost()
	high, low := highAndLow(t, h, 8, 4)
	cage := h.AddMesh("cage", scene.Plane(1, 1))

	s := config.DefaultPipeline()
	req := baseRequest(s, high, low, cage)
	if len(req.Sources) != 1 || req.Sources[0] != high || req.Cage != cage || req.Extrusion != 0 || req.MaxRayDistance != 0 {
		t.Errorf("auto transfer request = %+v", req)
	}
	if req.PassDirect || req.PassIndirect {
		t.Error("lighting passes must be off")
	}

	s.CageSettings = config.CageManual
	s.Extrusion, s.RayDistance = 0.2, 0.4
	req = baseRequest(s, high, low, nil)
	if req.Cage != nil || req.Extrusion != 0.2 || req.MaxRayDistance != 0.4 {
		t.Errorf("manual request = %+v", req)
	}

	s.BakeMethod = config.BakeActive
	if req = baseRequest(s, high, low, nil); req.SelectedToActive() {
		t.Errorf("active bake should not project from sources: %+v", req)
	}
}

func bakeReady(t *testing.T, h *recordingHost, remesher config.Remesher) (host.Object, host.Object, bool) {
	t.Helper()
	high, low := highAndLow(t, h, 32, 16)
	res, err := Remesh(h, remeshSettings(remesher, 50), high, low, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := Unwrap(h, config.UnwrapSmartProject, low); err != nil {
		t.Fatal(err)
	}
	h.calls, h.bakes = nil, nil
	return high, low, res.Remeshed
}

func TestBakeUsesMultiresWhenRemeshed(t *testing.T) {
	h := newRecordingHost()
	high, low, remeshed := bakeReady(t, h, config.RemesherVoxel)
	s := config.DefaultPipeline()
	s.Resolution = 256

	res, err := Bake(context.Background(), h, BakeJob{Settings: s, High: high, Low: low, Remeshed: remeshed})
	if err != nil {
		t.Fatalf("Bake failed: %v", err)
	}
	if len(h.bakes) != 2 || len(res.Baked) != 2 {
		t.Fatalf("bakes = %d, want normal and diffuse", len(h.bakes))
	}

	normal, diffuse := h.bakes[0], h.bakes[1]
	if normal.Type != host.BakeNormal || !normal.Multires || normal.SelectedToActive() || normal.Cage != nil {
		t.Errorf("normal request = %+v, want a multires bake", normal)
	}
	if diffuse.Type != host.BakeDiffuse || !diffuse.SelectedToActive() || diffuse.Cage == nil {
		t.Errorf("diffuse request = %+v, want selected-to-active with cage", diffuse)
	}
	if diffuse.Image != res.Graph.Diffuse.Node || normal.Image != res.Graph.Normal.Node {
		t.Error("bakes did not target the graph's image nodes")
	}
	if _, ok := h.Find(CageName); ok {
		t.Error("cage survived the bake")
	}
	if len(res.Images) != 0 {
		t.Errorf("images saved without an output: %v", res.Images)
	}
}

func TestBakeWithoutRemeshProjectsNormals(t *testing.T) {
	h := newRecordingHost()
	high, low, remeshed := bakeReady(t, h, config.RemesherNone)
	s := config.DefaultPipeline()
	s.Resolution = 256
	s.DiffuseBake = false

	if _, err := Bake(context.Background(), h, BakeJob{Settings: s, High: high, Low: low, Remeshed: remeshed}); err != nil {
		t.Fatal(err)
	}
	if len(h.bakes) != 1 {
		t.Fatalf("bakes = %d, want 1", len(h.bakes))
	}
	if req := h.bakes[0]; req.Multires || !req.SelectedToActive() || req.Cage == nil {
		t.Errorf("normal request = %+v, want ray projection through the cage", req)
	}
}

func TestBakeFailureReleasesCage(t *testing.T) {
	h := newRecordingHost()
	high, low, remeshed := bakeReady(t, h, config.RemesherNone)
	h.bakeErr = errScripted
	s := config.DefaultPipeline()
	s.Resolution = 256

	_, err := Bake(context.Background(), h, BakeJob{Settings: s, High: high, Low: low, Remeshed: remeshed})
	if !errors.Is(err, errScripted) {
		t.Fatalf("error = %v, want the scripted failure", err)
	}
	if _, ok := h.Find(CageName); ok {
		t.Error("cage survived a failed bake")
	}
}

func TestBakeNothingEnabled(t *testing.T) {
	h := newRecordingHost()
	high, low := highAndLow(t, h, 8, 4)
	s := config.DefaultPipeline()
	s.BakeMethod = config.BakeNone

	res, err := Bake(context.Background(), h, BakeJob{Settings: s, High: high, Low: low})
	if err != nil || res.Graph != nil || len(h.bakes) != 0 {
		t.Errorf("None bake did work: res=%+v err=%v", res, err)
	}
}

func TestBakeSavesImages(t *testing.T) {
	h := newRecordingHost()
	high, low, remeshed := bakeReady(t, h, config.RemesherNone)
	dir := t.TempDir()
	s := config.DefaultPipeline()
	s.Resolution = 256

	out := &ImageOutput{Dir: filepath.Join(dir, "maps"), Format: config.FormatPNG, Qualify: true}
	res, err := Bake(context.Background(), h, BakeJob{Settings: s, High: high, Low: low, Remeshed: remeshed, Output: out})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		filepath.Join(dir, "maps", "Sphere_LP_normal.png"),
		filepath.Join(dir, "maps", "Sphere_LP_diffuse.png"),
	}
	if len(res.Images) != len(want) {
		t.Fatalf("images = %v, want %v", res.Images, want)
	}
	for i, path := range want {
		if res.Images[i] != path {
			t.Errorf("image %d = %q, want %q", i, res.Images[i], path)
		}
		f, err := os.Open(path)
		if err != nil {
			t.Fatal(err)
		}
		cfg, err := png.DecodeConfig(f)
		f.Close()
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Width != 256 || cfg.Height != 256 {
			t.Errorf("%s is %dx%d", path, cfg.Width, cfg.Height)
		}
	}
}

func TestImageDir(t *testing.T) {
	tests := []struct {
		name, imagePath, working, want string
		wantErr                        error
	}{
		{"explicit path", "/out", "", "/out", nil},
		{"next to working file", "", "/proj/scene.yaml", filepath.Join("/proj", config.DefaultImageDir), nil},
		{"unsaved", "", "", "", ErrImagePathUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ImageDir(tt.imagePath, tt.working)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
