package submap

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/openslam/submap/pointcloud"
	"github.com/openslam/submap/spatialmath"
)

func TestCroppingVolumeFactory(t *testing.T) {
	for _, kind := range []string{CropperKindBall, CropperKindCylinder, CropperKindNone} {
		c, err := NewCroppingVolume(kind, 1, -1, 1)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, c, test.ShouldNotBeNil)
	}

	_, err := NewCroppingVolume("Cone", 1, -1, 1)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestBallCropper(t *testing.T) {
	c, err := NewCroppingVolume(CropperKindBall, 2, 0, 0)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, c.IsWithin(r3.Vector{X: 1.9}), test.ShouldBeTrue)
	test.That(t, c.IsWithin(r3.Vector{X: 2.1}), test.ShouldBeFalse)
	test.That(t, c.IsWithin(r3.Vector{Z: 1.9}), test.ShouldBeTrue)

	c.SetPose(spatialmath.NewPoseFromPoint(r3.Vector{X: 10}))
	test.That(t, c.IsWithin(r3.Vector{X: 1.9}), test.ShouldBeFalse)
	test.That(t, c.IsWithin(r3.Vector{X: 10.5}), test.ShouldBeTrue)
}

func TestCylinderCropper(t *testing.T) {
	c, err := NewCroppingVolume(CropperKindCylinder, 2, -1, 1)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, c.IsWithin(r3.Vector{X: 1.5, Z: 0.5}), test.ShouldBeTrue)
	test.That(t, c.IsWithin(r3.Vector{X: 1.5, Z: 1.5}), test.ShouldBeFalse)
	test.That(t, c.IsWithin(r3.Vector{X: 2.5}), test.ShouldBeFalse)
	// height bound is relative to the reference point
	c.SetPose(spatialmath.NewPoseFromPoint(r3.Vector{Z: 5}))
	test.That(t, c.IsWithin(r3.Vector{Z: 5.5}), test.ShouldBeTrue)
	test.That(t, c.IsWithin(r3.Vector{Z: 0.5}), test.ShouldBeFalse)
}

func TestCropperIndicesAndCrop(t *testing.T) {
	pc := pointcloud.New()
	pc.Add(r3.Vector{X: 0.5})
	pc.Add(r3.Vector{X: 5})
	pc.Add(r3.Vector{Y: 1})

	c, err := NewCroppingVolume(CropperKindBall, 2, 0, 0)
	test.That(t, err, test.ShouldBeNil)

	idxs := c.IndicesWithinVolume(pc)
	test.That(t, idxs, test.ShouldResemble, []int{0, 2})

	cropped := c.Crop(pc)
	test.That(t, cropped.Size(), test.ShouldEqual, 2)
	test.That(t, cropped.At(1), test.ShouldResemble, r3.Vector{Y: 1})
}

func TestNoneCropperKeepsEverything(t *testing.T) {
	pc := pointcloud.New()
	pc.Add(r3.Vector{X: 1e6})
	pc.Add(r3.Vector{})

	c, err := NewCroppingVolume(CropperKindNone, 0, 0, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c.IndicesWithinVolume(pc), test.ShouldHaveLength, 2)
	test.That(t, c.Crop(pc).Size(), test.ShouldEqual, 2)
}
