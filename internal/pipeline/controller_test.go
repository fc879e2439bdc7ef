package pipeline

import (
	"context"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/Faultbox/autolow/internal/config"
	"github.com/Faultbox/autolow/internal/host"
	"github.com/Faultbox/autolow/internal/queue"
	"github.com/Faultbox/autolow/internal/scene"
)

func newController(h host.Host, settings config.Pipeline) *Controller {
	return NewController(h, queue.New(), &settings, nil)
}

func settingsFor(w config.Workflow) config.Pipeline {
	s := config.DefaultPipeline()
	s.ApplyWorkflow(w)
	s.Resolution = 256
	return s
}

func lowPoly(t *testing.T, h *recordingHost, name string) *scene.Object {
	t.Helper()
	obj, ok := h.Find(name)
	if !ok {
		t.Fatalf("%s not in the scene", name)
	}
	return obj
}

func decodePNGSize(t *testing.T, path string) (int, int) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening %s: %v", path, err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decoding %s: %v", path, err)
	}
	return cfg.Width, cfg.Height
}

func TestStartEndToEnd(t *testing.T) {
	h, sess, dir := newSavedHost(t)
	src := h.AddMesh("Rock", scene.UVSphere(100, 100, 1))
	if src.MeshData().PolygonCount() != 10000 {
		t.Fatalf("fixture has %d polygons", src.MeshData().PolygonCount())
	}

	s := sess.Settings
	s.Remesher = config.RemesherVoxel
	s.RemeshPercent = 15
	s.Samples = 10
	s.UnwrapMethod = config.UnwrapSmartProject
	s.BakeMethod = config.BakeActive
	s.CageSettings = config.CageAuto
	s.Resolution = 1024
	s.NormalBake, s.DiffuseBake = true, true
	s.SaveImages = true

	c := NewController(h, sess.Queue, s, nil)
	report := c.Start(context.Background())
	if !report.OK() {
		t.Fatalf("run failed: %s (%v)", report.Summary(), report.Err)
	}
	if c.State() != StateDone {
		t.Errorf("state = %s, want done", c.State())
	}

	low := lowPoly(t, h, "Rock_LP")
	if mods := stack(t, h, low); len(mods) != 0 {
		t.Errorf("modifiers left on the low-poly: %v", mods)
	}
	if low.MeshData().PolygonCount() == 0 || low.MeshData().PolygonCount() >= 10000 {
		t.Errorf("low-poly has %d polygons", low.MeshData().PolygonCount())
	}
	if low.Material() == nil || low.Material().Name() != MaterialName {
		t.Error("low-poly has no bake material")
	}
	if !src.Hidden() {
		t.Error("source should be hidden after the run")
	}
	if sess.Queue.Len() != 0 {
		t.Errorf("queue len = %d, want 0", sess.Queue.Len())
	}

	for _, name := range []string{"normal.png", "diffuse.png"} {
		path := filepath.Join(dir, config.DefaultImageDir, name)
		if w, h := decodePNGSize(t, path); w != 1024 || h != 1024 {
			t.Errorf("%s is %dx%d, want 1024x1024", name, w, h)
		}
	}
}

func TestStartTransferAutoCage(t *testing.T) {
	h, sess, _ := newSavedHost(t)
	h.AddMesh("Rock", scene.UVSphere(16, 8, 1))
	s := settingsFor(config.WorkflowTransferBake)
	s.CageSettings = config.CageAuto

	c := NewController(h, sess.Queue, &s, nil)
	if report := c.Start(context.Background()); !report.OK() {
		t.Fatalf("run failed: %v", report.Err)
	}
	if len(h.bakes) != 2 {
		t.Fatalf("bakes = %d, want 2", len(h.bakes))
	}
	for _, req := range h.bakes {
		if req.Cage == nil || req.Extrusion != 0 || req.MaxRayDistance != 0 {
			t.Errorf("%s request = %+v, want cage with zero extrusion and ray distance", req.Type, req)
		}
	}
	if _, ok := h.Find(CageName); ok {
		t.Error("cage survived the run")
	}
}

func TestStartDrainsQueue(t *testing.T) {
	h := newRecordingHost()
	s := settingsFor(config.WorkflowNone)
	c := newController(h, s)

	var names []string
	for _, name := range []string{"A", "B", "C"} {
		h.AddMesh(name, scene.UVSphere(8, 4, 1))
		if err := c.QueueAction(queue.ActionAdd); err != nil {
			t.Fatal(err)
		}
		names = append(names, name)
	}

	report := c.Start(context.Background())
	if !report.OK() {
		t.Fatalf("run failed: %v", report.Err)
	}
	if c.Queue.Len() != 0 || c.Queue.Index() != -1 {
		t.Errorf("queue len=%d index=%d after run", c.Queue.Len(), c.Queue.Index())
	}
	for i, name := range names {
		lowPoly(t, h, name+LowPolySuffix)
		if report.Objects[i].Source != name || report.Objects[i].LowPoly != name+LowPolySuffix {
			t.Errorf("result %d = %+v", i, report.Objects[i])
		}
	}
}

func TestStartContinuesAfterObjectFailure(t *testing.T) {
	h := newRecordingHost()
	c := newController(h, settingsFor(config.WorkflowNone))

	gone := h.AddMesh("Gone", scene.UVSphere(8, 4, 1))
	c.QueueAction(queue.ActionAdd)
	h.AddMesh("Kept", scene.UVSphere(8, 4, 1))
	c.QueueAction(queue.ActionAdd)
	h.Remove(gone)

	report := c.Start(context.Background())
	if report.State != StateDone || report.OK() {
		t.Fatalf("state=%s err=%v, want done with an error", report.State, report.Err)
	}
	var objErr *ObjectError
	if !errors.As(report.Err, &objErr) || objErr.Step != StepLookup || !errors.Is(objErr, host.ErrObjectNotFound) {
		t.Errorf("error = %v, want a lookup ObjectError", report.Err)
	}
	lowPoly(t, h, "Kept_LP")
	if c.Queue.Len() != 0 {
		t.Errorf("queue len = %d, want 0", c.Queue.Len())
	}
}

func TestStartWithoutRemeshKeepsGeometry(t *testing.T) {
	h := newRecordingHost()
	src := h.AddMesh("Rock", scene.UVSphere(16, 8, 1))
	c := newController(h, settingsFor(config.WorkflowNone))

	if report := c.Start(context.Background()); !report.OK() {
		t.Fatalf("run failed: %v", report.Err)
	}
	low := lowPoly(t, h, "Rock_LP")
	if !slices.Equal(low.MeshData().Vertices, src.MeshData().Vertices) {
		t.Error("vertices differ from the source")
	}
	if !slices.EqualFunc(low.MeshData().Polygons, src.MeshData().Polygons, slices.Equal[[]int]) {
		t.Error("polygons differ from the source")
	}
	if !low.MeshData().Smooth || low.AutoSmooth() {
		t.Error("low-poly should be smooth shaded without auto-smooth")
	}
}

func TestStartDegenerateMesh(t *testing.T) {
	h := newRecordingHost()
	h.AddMesh("Rock", scene.UVSphere(16, 8, 1))
	s := settingsFor(config.WorkflowFull)
	s.RemeshPercent = 1
	s.SaveImages = false
	c := newController(h, s)

	report := c.Start(context.Background())
	var objErr *ObjectError
	if !errors.As(report.Err, &objErr) || !errors.Is(report.Err, ErrDegenerateMesh) || objErr.Step != StepRemesh {
		t.Fatalf("error = %v, want a degenerate mesh error", report.Err)
	}
	if h.called("unwrap") || len(h.bakes) != 0 {
		t.Errorf("unwrap or bake ran on a degenerate mesh: %v", h.calls)
	}
	if _, ok := h.Find("Rock_LP"); ok {
		t.Error("failed duplicate was kept")
	}
}

func TestStartResolutionRoundTrip(t *testing.T) {
	// Larger sizes allocate hundreds of megabytes of float pixels.
	for _, res := range []int{256, 512, 1024} {
		h, sess, dir := newSavedHost(t)
		h.AddMesh("Rock", scene.UVSphere(8, 4, 1))
		s := settingsFor(config.WorkflowActiveBake)
		s.Resolution = res

		c := NewController(h, sess.Queue, &s, nil)
		if report := c.Start(context.Background()); !report.OK() {
			t.Fatalf("%d: run failed: %v", res, report.Err)
		}
		for _, name := range []string{"normal.png", "diffuse.png"} {
			w, hh := decodePNGSize(t, filepath.Join(dir, config.DefaultImageDir, name))
			if w != res || hh != res {
				t.Errorf("%d: %s is %dx%d", res, name, w, hh)
			}
		}
	}
}

func TestStartValidation(t *testing.T) {
	rock := func(h *recordingHost) { h.AddMesh("Rock", scene.UVSphere(8, 4, 1)) }
	tests := []struct {
		name    string
		setup   func(h *recordingHost, s *config.Pipeline)
		queued  bool
		wantErr error
	}{
		{"no active object", func(h *recordingHost, s *config.Pipeline) {}, false, ErrNoObject},
		{"active is not a mesh", func(h *recordingHost, s *config.Pipeline) {
			h.AddEmpty("Light")
		}, false, ErrNotMesh},
		{"active has no polygons", func(h *recordingHost, s *config.Pipeline) {
			h.AddMesh("Empty", scene.NewMesh(nil, nil))
		}, false, ErrNoPolygons},
		{"autosave on unsaved file", func(h *recordingHost, s *config.Pipeline) {
			rock(h)
			s.Autosave = true
		}, true, ErrUnsavedWorkspace},
		{"image path unknown", func(h *recordingHost, s *config.Pipeline) {
			rock(h)
			s.ImagePath = ""
		}, true, ErrImagePathUnknown},
		{"out of range setting", func(h *recordingHost, s *config.Pipeline) {
			rock(h)
			s.Samples = 1
		}, true, config.ErrOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newRecordingHost()
			s := config.DefaultPipeline()
			s.ImagePath = t.TempDir()
			tt.setup(h, &s)
			c := newController(h, s)
			if tt.queued {
				c.QueueAction(queue.ActionAdd)
			}

			report := c.Start(context.Background())
			if report.State != StateFailed || !errors.Is(report.Err, tt.wantErr) {
				t.Fatalf("state=%s err=%v, want failed with %v", report.State, report.Err, tt.wantErr)
			}
			if len(h.calls) != 0 || len(h.Objects()) > 1 {
				t.Errorf("validation failure touched the scene: %v", h.calls)
			}
			if tt.queued && c.Queue.Len() != 1 {
				t.Error("validation failure cleared the queue")
			}
		})
	}
}

func TestStartAutosavePrompts(t *testing.T) {
	h := newRecordingHost()
	prompted := false
	h.OnPromptSave = func() error { prompted = true; return nil }
	h.AddMesh("Rock", scene.UVSphere(8, 4, 1))
	s := settingsFor(config.WorkflowNone)
	s.Autosave = true

	report := newController(h, s).Start(context.Background())
	if !errors.Is(report.Err, ErrUnsavedWorkspace) || !prompted {
		t.Errorf("err=%v prompted=%v", report.Err, prompted)
	}
}

func TestStartResetsMissingImagePath(t *testing.T) {
	h := newRecordingHost()
	h.AddMesh("Rock", scene.UVSphere(8, 4, 1))
	s := config.DefaultPipeline()
	s.ImagePath = filepath.Join(t.TempDir(), "missing")
	c := newController(h, s)

	report := c.Start(context.Background())
	if !errors.Is(report.Err, ErrImagePathMissing) {
		t.Fatalf("error = %v, want ErrImagePathMissing", report.Err)
	}
	if c.Settings.ImagePath != "" {
		t.Errorf("image path = %q, want reset to default", c.Settings.ImagePath)
	}
}

func TestStartCancelledKeepsQueue(t *testing.T) {
	h := newRecordingHost()
	c := newController(h, settingsFor(config.WorkflowNone))
	for _, name := range []string{"A", "B"} {
		h.AddMesh(name, scene.UVSphere(8, 4, 1))
		c.QueueAction(queue.ActionAdd)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report := c.Start(ctx)
	if !errors.Is(report.Err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", report.Err)
	}
	if c.Queue.Len() != 2 {
		t.Errorf("queue len = %d, want the 2 unprocessed items", c.Queue.Len())
	}
}

func TestStartCancelledActiveObjectLeavesQueueEmpty(t *testing.T) {
	h := newRecordingHost()
	h.AddMesh("Rock", scene.UVSphere(8, 4, 1))
	c := newController(h, settingsFor(config.WorkflowNone))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report := c.Start(ctx)
	if !errors.Is(report.Err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", report.Err)
	}
	if c.Queue.Len() != 0 {
		t.Errorf("queue = %v, want empty", c.Queue.Items())
	}
	if _, ok := h.Find("Rock_LP"); ok {
		t.Error("cancelled run produced a low-poly object")
	}
}

func TestStartAutosaveAfterPreconditions(t *testing.T) {
	h, sess, dir := newSavedHost(t)
	h.AddEmpty("Camera")
	s := settingsFor(config.WorkflowNone)
	s.Autosave = true

	c := NewController(h, sess.Queue, &s, nil)
	report := c.Start(context.Background())
	if !errors.Is(report.Err, ErrNotMesh) {
		t.Fatalf("error = %v, want ErrNotMesh", report.Err)
	}
	reopened, err := scene.OpenSession(filepath.Join(dir, "work.yaml"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := reopened.Scene.Find("Camera"); ok {
		t.Error("working file was saved by a rejected run")
	}

	h.AddMesh("Rock", scene.UVSphere(8, 4, 1))
	if report := c.Start(context.Background()); !report.OK() {
		t.Fatal(report.Err)
	}
	reopened, err = scene.OpenSession(filepath.Join(dir, "work.yaml"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := reopened.Scene.Find("Camera"); !ok {
		t.Error("accepted run did not autosave")
	}
}

func TestStartAutosaveAfter(t *testing.T) {
	h, sess, dir := newSavedHost(t)
	h.AddMesh("Rock", scene.UVSphere(8, 4, 1))
	s := settingsFor(config.WorkflowNone)
	s.AutosaveAfter = true

	c := NewController(h, sess.Queue, &s, nil)
	if report := c.Start(context.Background()); !report.OK() {
		t.Fatal(report.Err)
	}
	reopened, err := scene.OpenSession(filepath.Join(dir, "work.yaml"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := reopened.Scene.Find("Rock_LP"); !ok {
		t.Error("low-poly was not saved after processing")
	}
}

func TestQueueAction(t *testing.T) {
	h := newRecordingHost()
	c := newController(h, config.DefaultPipeline())

	if err := c.QueueAction(queue.ActionAdd); !errors.Is(err, ErrNothingSelected) {
		t.Errorf("add with nothing active: %v", err)
	}
	h.AddEmpty("Light")
	if err := c.QueueAction(queue.ActionAdd); !errors.Is(err, ErrNotMesh) {
		t.Errorf("add non-mesh: %v", err)
	}

	a := h.AddMesh("A", scene.Plane(1, 1))
	c.QueueAction(queue.ActionAdd)
	b := h.AddMesh("B", scene.Plane(1, 1))
	c.QueueAction(queue.ActionAdd)
	if c.Queue.Len() != 2 || c.Queue.Index() != 1 {
		t.Fatalf("len=%d index=%d", c.Queue.Len(), c.Queue.Index())
	}

	c.QueueAction(queue.ActionUp)
	items := c.Queue.Items()
	if items[0].ID != b.ID() || items[1].ID != a.ID() || c.Queue.Index() != 0 {
		t.Errorf("after up: %v index=%d", items, c.Queue.Index())
	}
	c.QueueAction(queue.ActionUp) // no-op at the top
	c.QueueAction(queue.ActionDown)
	if c.Queue.Index() != 1 {
		t.Errorf("after down: index=%d", c.Queue.Index())
	}

	c.QueueAction(queue.ActionRemove)
	if c.Queue.Len() != 1 || c.Queue.Index() != 0 {
		t.Errorf("after remove: len=%d index=%d", c.Queue.Len(), c.Queue.Index())
	}
	c.QueueAction(queue.ActionRemove)
	c.QueueAction(queue.ActionRemove)
	if c.Queue.Len() != 0 || c.Queue.Index() != -1 {
		t.Errorf("after draining: len=%d index=%d", c.Queue.Len(), c.Queue.Index())
	}
}

func TestSetImagePath(t *testing.T) {
	c := newController(newRecordingHost(), config.DefaultPipeline())
	dir := t.TempDir()
	if err := c.SetImagePath(dir); err != nil || c.Settings.ImagePath != dir {
		t.Fatalf("err=%v path=%q", err, c.Settings.ImagePath)
	}

	file := filepath.Join(dir, "file.txt")
	os.WriteFile(file, []byte("x"), 0644)
	if err := c.SetImagePath(file); !errors.Is(err, ErrNotDirectory) {
		t.Errorf("error = %v, want ErrNotDirectory", err)
	}
	if c.Settings.ImagePath != dir {
		t.Errorf("path changed to %q", c.Settings.ImagePath)
	}
}

func TestSetWorkflowPreset(t *testing.T) {
	s := config.DefaultPipeline()
	s.Remesher = config.RemesherQuad
	c := newController(newRecordingHost(), s)

	if err := c.SetWorkflowPreset(config.WorkflowFull); err != nil {
		t.Fatal(err)
	}
	if c.Settings.Remesher != config.RemesherQuad || c.Settings.BakeMethod != config.BakeTransfer {
		t.Errorf("full preset = %+v", c.Settings)
	}
	if err := c.SetWorkflowPreset(config.WorkflowNone); err != nil {
		t.Fatal(err)
	}
	if c.Settings.Remesher != config.RemesherNone || c.Settings.UnwrapMethod != config.UnwrapNone || c.Settings.BakeMethod != config.BakeNone {
		t.Errorf("none preset = %+v", c.Settings)
	}
	if err := c.SetWorkflowPreset(config.Workflow(42)); err == nil {
		t.Error("unknown workflow accepted")
	}
}

func TestReportSummary(t *testing.T) {
	r := &Report{State: StateDone, Objects: []ObjectResult{{Source: "A"}, {Source: "B", Err: errScripted}}, Warnings: []string{"w"}}
	if got := r.Summary(); got != "Autolow finished with 1 of 2 objects failed (1 warnings)" {
		t.Errorf("summary = %q", got)
	}
	r = &Report{State: StateFailed, Err: ErrNoObject}
	if got := r.Summary(); got != "Autolow failed: no object selected" {
		t.Errorf("summary = %q", got)
	}
}
