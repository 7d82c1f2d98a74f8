package submap

import (
	"image/color"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/openslam/submap/pointcloud"
	"github.com/openslam/submap/spatialmath"
)

func TestVoxelizedPointCloudInsert(t *testing.T) {
	v := NewVoxelizedPointCloud(0.5)
	test.That(t, v.Empty(), test.ShouldBeTrue)

	pc := pointcloud.New()
	pc.Add(r3.Vector{X: 0.125})
	pc.Add(r3.Vector{X: 0.375}) // same voxel
	pc.Add(r3.Vector{X: 1.25})  // different voxel
	v.Insert(pc)

	test.That(t, v.Size(), test.ShouldEqual, 2)
	out := v.PointCloud()
	test.That(t, out.Size(), test.ShouldEqual, 2)

	var xs []float64
	for i := 0; i < out.Size(); i++ {
		xs = append(xs, out.At(i).X)
	}
	test.That(t, xs, test.ShouldContain, 0.25)
	test.That(t, xs, test.ShouldContain, 1.25)
}

func TestVoxelizedPointCloudRemoveKey(t *testing.T) {
	v := NewVoxelizedPointCloud(1)
	pc := pointcloud.New()
	pc.Add(r3.Vector{X: 0.5})
	pc.Add(r3.Vector{X: 2.5})
	v.Insert(pc)

	key := pointcloud.GetVoxelCoordinates(r3.Vector{X: 0.5}, r3.Vector{}, 1)
	test.That(t, v.ContainsKey(key), test.ShouldBeTrue)
	v.RemoveKey(key)
	test.That(t, v.ContainsKey(key), test.ShouldBeFalse)
	test.That(t, v.Size(), test.ShouldEqual, 1)

	// removing an absent key is a no-op
	v.RemoveKey(key)
	test.That(t, v.Size(), test.ShouldEqual, 1)
}

func TestVoxelizedPointCloudTransformRekeys(t *testing.T) {
	v := NewVoxelizedPointCloud(0.5)
	pc := pointcloud.New()
	pc.Add(r3.Vector{X: 0.25})
	pc.Add(r3.Vector{X: 3.25})
	v.Insert(pc)

	shift := spatialmath.NewPoseFromPoint(r3.Vector{X: 1})
	v.Transform(shift)
	test.That(t, v.Size(), test.ShouldEqual, 2)
	test.That(t, v.ContainsKey(pointcloud.GetVoxelCoordinates(r3.Vector{X: 1.25}, r3.Vector{}, 0.5)), test.ShouldBeTrue)
	test.That(t, v.ContainsKey(pointcloud.GetVoxelCoordinates(r3.Vector{X: 4.25}, r3.Vector{}, 0.5)), test.ShouldBeTrue)

	v.Transform(spatialmath.Invert(shift))
	out := v.PointCloud()
	var xs []float64
	for i := 0; i < out.Size(); i++ {
		xs = append(xs, out.At(i).X)
	}
	test.That(t, xs, test.ShouldContain, 0.25)
	test.That(t, xs, test.ShouldContain, 3.25)
}

func TestVoxelizedPointCloudColorMeans(t *testing.T) {
	v := NewVoxelizedPointCloud(1)
	pc := pointcloud.New()
	pc.AddColored(r3.Vector{X: 0.25}, color.NRGBA{R: 100, A: 255})
	pc.AddColored(r3.Vector{X: 0.75}, color.NRGBA{R: 200, A: 255})
	v.Insert(pc)

	out := v.PointCloud()
	test.That(t, out.Size(), test.ShouldEqual, 1)
	c, valid := out.Color(0)
	test.That(t, valid, test.ShouldBeTrue)
	test.That(t, c.R, test.ShouldEqual, uint8(150))
}

func TestVoxelizedPointCloudSetVoxelSizeKeepsGeometry(t *testing.T) {
	v := NewVoxelizedPointCloud(0.1)
	pc := pointcloud.New()
	pc.Add(r3.Vector{X: 0.05})
	pc.Add(r3.Vector{X: 0.15})
	v.Insert(pc)
	test.That(t, v.Size(), test.ShouldEqual, 2)

	// coarser grid merges the two buckets instead of clearing them
	v.SetVoxelSize(1)
	test.That(t, v.Size(), test.ShouldEqual, 1)
	out := v.PointCloud()
	test.That(t, out.At(0).X, test.ShouldAlmostEqual, 0.1, 1e-12)
}

func TestVoxelizedPointCloudCloneIsIndependent(t *testing.T) {
	v := NewVoxelizedPointCloud(1)
	pc := pointcloud.New()
	pc.Add(r3.Vector{X: 0.5})
	v.Insert(pc)

	cp := v.Clone()
	v.RemoveKey(pointcloud.GetVoxelCoordinates(r3.Vector{X: 0.5}, r3.Vector{}, 1))
	test.That(t, v.Empty(), test.ShouldBeTrue)
	test.That(t, cp.Size(), test.ShouldEqual, 1)
}
