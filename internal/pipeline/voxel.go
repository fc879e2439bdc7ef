package pipeline

import (
	"fmt"

	"github.com/Faultbox/autolow/internal/host"
)

// EstimateEdgeLength averages the length of n edges picked at evenly spaced
// indices (floor(edgeCount*i/n) for i in [0,n)). The same n always samples
// the same relative positions, so the result is deterministic.
func EstimateEdgeLength(mesh host.MeshData, n int) (float64, error) {
	edgeCount := mesh.EdgeCount()
	if edgeCount == 0 {
		return 0, ErrEmptyMesh
	}
	if n < 1 {
		return 0, fmt.Errorf("sample count must be positive, got %d", n)
	}

	var sum float64
	for i := 0; i < n; i++ {
		a, b := mesh.EdgeEndpoints(edgeCount * i / n)
		sum += a.Distance(b)
	}
	return sum / float64(n), nil
}

// VoxelSize scales an average edge length by the simplification percent.
// Lower percent means larger voxels and fewer polygons.
func VoxelSize(avgEdgeLength float64, percent int) float64 {
	return avgEdgeLength * (100 / float64(percent))
}
