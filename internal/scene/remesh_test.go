package scene

import (
	"testing"

	"github.com/Faultbox/autolow/internal/host"
	"github.com/Faultbox/autolow/pkg/math"
)

func TestVoxelRemeshReducesPolygons(t *testing.T) {
	s := New(nil)
	obj := s.AddMesh("sphere", UVSphere(32, 16, 1))

	if err := s.VoxelRemesh(obj, 0.3); err != nil {
		t.Fatalf("VoxelRemesh failed: %v", err)
	}
	n := obj.mesh.PolygonCount()
	if n == 0 || n >= 512 {
		t.Errorf("polygons after remesh = %d, want between 0 and 512", n)
	}
	for p, poly := range obj.mesh.Polygons {
		for _, v := range poly {
			if v < 0 || v >= obj.mesh.VertexCount() {
				t.Fatalf("polygon %d references vertex %d of %d", p, v, obj.mesh.VertexCount())
			}
		}
	}
}

func TestVoxelRemeshHugeCellCollapses(t *testing.T) {
	s := New(nil)
	obj := s.AddMesh("sphere", UVSphere(16, 8, 1))
	if err := s.VoxelRemesh(obj, 100); err != nil {
		t.Fatal(err)
	}
	if obj.mesh.PolygonCount() != 0 {
		t.Errorf("polygons = %d, want 0", obj.mesh.PolygonCount())
	}
}

func TestVoxelRemeshRejectsBadSize(t *testing.T) {
	s := New(nil)
	obj := s.AddMesh("cube", cube())
	for _, size := range []float64{0, -1} {
		if err := s.VoxelRemesh(obj, size); err == nil {
			t.Errorf("size %g: expected error", size)
		}
	}
}

func TestQuadRemesh(t *testing.T) {
	s := New(nil)

	t.Run("non-manifold is left alone", func(t *testing.T) {
		obj := s.AddMesh("fan", fan())
		if err := s.QuadRemesh(obj, 1); err != nil {
			t.Fatal(err)
		}
		if obj.mesh.VertexCount() != 5 || obj.mesh.PolygonCount() != 3 {
			t.Errorf("mesh changed: v=%d p=%d", obj.mesh.VertexCount(), obj.mesh.PolygonCount())
		}
	})

	t.Run("manifold moves toward target", func(t *testing.T) {
		obj := s.AddMesh("sphere", UVSphere(32, 16, 1))
		before := obj.mesh.VertexCount()
		if err := s.QuadRemesh(obj, 128); err != nil {
			t.Fatal(err)
		}
		if obj.mesh.VertexCount() == before {
			t.Error("vertex count unchanged")
		}
		if n := obj.mesh.PolygonCount(); n == 0 || n >= 512 {
			t.Errorf("polygons = %d", n)
		}
	})
}

func TestDecimateModifier(t *testing.T) {
	s := New(nil)
	obj := s.AddMesh("sphere", UVSphere(32, 16, 1))

	if _, err := s.AddDecimate(obj, "d", 0); err == nil {
		t.Error("ratio 0 should be rejected")
	}
	mod, err := s.AddDecimate(obj, "d", 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.ApplyModifier(obj, mod); err != nil {
		t.Fatal(err)
	}
	if n := obj.mesh.PolygonCount(); n == 0 || n >= 512 {
		t.Errorf("polygons after decimate = %d", n)
	}
	if stack, _ := s.ModifierStack(obj); len(stack) != 0 {
		t.Errorf("applied modifier still on the stack: %d", len(stack))
	}
}

func TestMultiresLevels(t *testing.T) {
	s := New(nil)
	obj := s.AddMesh("cube", cube())
	mod, err := s.AddMultires(obj, "m")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := s.SubdivideMultires(obj, mod, host.SubdivideCatmullClark); err != nil {
			t.Fatal(err)
		}
	}
	if d, total := mod.(*Modifier).Levels(); d != 3 || total != 3 {
		t.Errorf("levels = %d/%d, want 3/3", d, total)
	}
	if err := s.SetMultiresLevels(obj, mod, 0); err != nil {
		t.Fatal(err)
	}
	if d, total := mod.(*Modifier).Levels(); d != 0 || total != 3 {
		t.Errorf("levels = %d/%d, want 0/3", d, total)
	}
	if err := s.SetMultiresLevels(obj, mod, 4); err == nil {
		t.Error("level above total should be rejected")
	}
}

func TestShrinkwrapApply(t *testing.T) {
	s := New(nil)
	target := s.AddMesh("target", NewMesh([]math.Vec3{
		{Z: 5}, {X: 10, Z: 5}, {Y: 10, Z: 5},
	}, [][]int{{0, 1, 2}}))
	low := s.AddMesh("low", Plane(2, 2))

	multires, err := s.AddMultires(low, "m")
	if err != nil {
		t.Fatal(err)
	}
	wrap, err := s.AddShrinkwrap(low, "w", host.ShrinkwrapSettings{Target: target, Method: host.WrapProject})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.ApplyModifier(low, wrap); err != nil {
		t.Fatal(err)
	}
	for i, v := range low.mesh.Vertices {
		if v.Z != 5 {
			t.Errorf("vertex %d not on target: %+v", i, v)
		}
	}

	stack, err := s.ModifierStack(low)
	if err != nil {
		t.Fatal(err)
	}
	if len(stack) != 1 || stack[0] != multires {
		t.Errorf("stack = %v, want only the multires", stack)
	}

	if _, err := s.AddShrinkwrap(low, "self", host.ShrinkwrapSettings{Target: low}); err == nil {
		t.Error("shrinkwrap onto itself should be rejected")
	}
	if err := s.ClearModifiers(low); err != nil {
		t.Fatal(err)
	}
	if err := s.RemoveModifier(low, multires); err == nil {
		t.Error("removing a cleared modifier should fail")
	}
}
