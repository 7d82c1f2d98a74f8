package submap

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/openslam/submap/pointcloud"
	"github.com/openslam/submap/spatialmath"
)

func TestVoxelMapInsertAndQuery(t *testing.T) {
	m := NewVoxelMap(1)
	test.That(t, m.Empty(), test.ShouldBeTrue)

	pc := pointcloud.New()
	pc.Add(r3.Vector{X: 0.2})
	pc.Add(r3.Vector{X: 0.7})
	pc.Add(r3.Vector{X: 5.5})
	m.InsertCloud(VoxelMapLayerSparse, pc)

	test.That(t, m.Empty(), test.ShouldBeFalse)
	test.That(t, m.Layers(), test.ShouldResemble, []string{VoxelMapLayerSparse})
	test.That(t, m.LayerSize(VoxelMapLayerSparse), test.ShouldEqual, 3)

	inVoxel := m.PointsInVoxel(VoxelMapLayerSparse, r3.Vector{X: 0.5})
	test.That(t, inVoxel, test.ShouldHaveLength, 2)

	test.That(t, m.PointsInVoxel("no_such_layer", r3.Vector{}), test.ShouldHaveLength, 0)
}

func TestVoxelMapNeighborhood(t *testing.T) {
	m := NewVoxelMap(1)
	pc := pointcloud.New()
	pc.Add(r3.Vector{X: 0.5})
	pc.Add(r3.Vector{X: 1.5})
	pc.Add(r3.Vector{X: 2.5})
	pc.Add(r3.Vector{X: 9.5})
	m.InsertCloud(VoxelMapLayerSparse, pc)

	// ring 0 is the single containing voxel
	test.That(t, m.PointsInNeighborhood(VoxelMapLayerSparse, r3.Vector{X: 1.5}, 0), test.ShouldHaveLength, 1)
	// one ring covers the two adjacent voxels
	test.That(t, m.PointsInNeighborhood(VoxelMapLayerSparse, r3.Vector{X: 1.5}, 1), test.ShouldHaveLength, 3)
	test.That(t, m.PointsInNeighborhood(VoxelMapLayerSparse, r3.Vector{X: 9.5}, 1), test.ShouldHaveLength, 1)
}

func TestVoxelMapClear(t *testing.T) {
	m := NewVoxelMap(1)
	pc := pointcloud.New()
	pc.Add(r3.Vector{})
	m.InsertCloud(VoxelMapLayerSparse, pc)
	m.InsertCloud("dense", pc)
	test.That(t, len(m.Layers()), test.ShouldEqual, 2)

	m.Clear()
	test.That(t, m.Empty(), test.ShouldBeTrue)
	test.That(t, m.Layers(), test.ShouldHaveLength, 0)
}

func TestVoxelMapTransform(t *testing.T) {
	m := NewVoxelMap(1)
	pc := pointcloud.New()
	pc.Add(r3.Vector{X: 0.5})
	m.InsertCloud(VoxelMapLayerSparse, pc)

	m.Transform(spatialmath.NewPoseFromPoint(r3.Vector{X: 3}))
	test.That(t, m.PointsInVoxel(VoxelMapLayerSparse, r3.Vector{X: 3.5}), test.ShouldHaveLength, 1)
	test.That(t, m.PointsInVoxel(VoxelMapLayerSparse, r3.Vector{X: 0.5}), test.ShouldHaveLength, 0)
}

func TestVoxelMapCloneIsIndependent(t *testing.T) {
	m := NewVoxelMap(1)
	pc := pointcloud.New()
	pc.Add(r3.Vector{X: 0.5})
	m.InsertCloud(VoxelMapLayerSparse, pc)

	cp := m.Clone()
	m.Clear()
	test.That(t, cp.LayerSize(VoxelMapLayerSparse), test.ShouldEqual, 1)
}
