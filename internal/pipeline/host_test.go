package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/Faultbox/autolow/internal/host"
	"github.com/Faultbox/autolow/internal/scene"
)

// recordingHost wraps the in-memory scene, records geometry and bake calls,
// and can script failures.
type recordingHost struct {
	*scene.Scene

	calls []string
	bakes []host.BakeRequest

	// quadNoops is the number of leading QuadRemesh calls that leave the
	// mesh untouched, as a real quad remesher does on non-manifold input.
	quadNoops  int
	quadCalls  int
	voxelCalls int

	failApply host.ModifierKind
	applyErr  error
	bakeErr   error
}

func newRecordingHost() *recordingHost {
	return &recordingHost{Scene: scene.New(nil), failApply: -1}
}

func (r *recordingHost) VoxelRemesh(obj host.Object, size float64) error {
	r.voxelCalls++
	r.calls = append(r.calls, "voxel")
	return r.Scene.VoxelRemesh(obj, size)
}

func (r *recordingHost) QuadRemesh(obj host.Object, target int) error {
	r.quadCalls++
	r.calls = append(r.calls, "quad")
	if r.quadCalls <= r.quadNoops {
		return nil
	}
	return r.Scene.QuadRemesh(obj, target)
}

func (r *recordingHost) SmartProject(obj host.Object, margin float64) error {
	r.calls = append(r.calls, "unwrap")
	return r.Scene.SmartProject(obj, margin)
}

func (r *recordingHost) ApplyModifier(obj host.Object, mod host.Modifier) error {
	if mod.Kind() == r.failApply {
		return r.applyErr
	}
	return r.Scene.ApplyModifier(obj, mod)
}

func (r *recordingHost) Bake(ctx context.Context, req host.BakeRequest) error {
	r.calls = append(r.calls, "bake:"+req.Type.String())
	r.bakes = append(r.bakes, req)
	if r.bakeErr != nil {
		return r.bakeErr
	}
	return r.Scene.Bake(ctx, req)
}

func (r *recordingHost) called(name string) bool {
	for _, c := range r.calls {
		if c == name {
			return true
		}
	}
	return false
}

var errScripted = errors.New("scripted failure")

// newSavedHost returns a host whose working file lives in a temp dir, so the
// default image directory resolves.
func newSavedHost(t *testing.T) (*recordingHost, *scene.Session, string) {
	t.Helper()
	dir := t.TempDir()
	sess := scene.NewSession(nil)
	if err := sess.SaveAs(filepath.Join(dir, "work.yaml")); err != nil {
		t.Fatalf("SaveAs failed: %v", err)
	}
	return &recordingHost{Scene: sess.Scene, failApply: -1}, sess, dir
}
