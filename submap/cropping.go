package submap

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/openslam/submap/pointcloud"
	"github.com/openslam/submap/spatialmath"
)

// Supported cropping volume kinds.
const (
	CropperKindBall     = "Ball"
	CropperKindCylinder = "Cylinder"
	CropperKindNone     = "None"
)

// CroppingVolume selects which points of a cloud lie inside a region of
// interest relative to a reference pose. Implementations are not safe for
// concurrent use; each layer owns its own.
type CroppingVolume interface {
	// SetPose re-centers the region on the given reference pose.
	SetPose(pose *spatialmath.Pose)
	// IsWithin reports whether a single point lies inside the region.
	IsWithin(p r3.Vector) bool
	// IndicesWithinVolume returns the indices of all cloud points inside
	// the region.
	IndicesWithinVolume(pc *pointcloud.PointCloud) []int
	// Crop returns a new cloud holding only the points inside the region.
	Crop(pc *pointcloud.PointCloud) *pointcloud.PointCloud
}

// NewCroppingVolume builds a cropping volume by kind name.
func NewCroppingVolume(kind string, radius, minZ, maxZ float64) (CroppingVolume, error) {
	switch kind {
	case CropperKindBall:
		return &ballCropper{radius: radius}, nil
	case CropperKindCylinder:
		return &cylinderCropper{radius: radius, minZ: minZ, maxZ: maxZ}, nil
	case CropperKindNone:
		return noneCropper{}, nil
	default:
		return nil, errors.Errorf("unknown cropping volume kind %q", kind)
	}
}

type ballCropper struct {
	radius float64
	center r3.Vector
}

func (b *ballCropper) SetPose(pose *spatialmath.Pose) {
	b.center = pose.Translation()
}

func (b *ballCropper) IsWithin(p r3.Vector) bool {
	return p.Sub(b.center).Norm() <= b.radius
}

func (b *ballCropper) IndicesWithinVolume(pc *pointcloud.PointCloud) []int {
	return indicesWithin(b, pc)
}

func (b *ballCropper) Crop(pc *pointcloud.PointCloud) *pointcloud.PointCloud {
	return pc.SelectByIndices(b.IndicesWithinVolume(pc))
}

type cylinderCropper struct {
	radius     float64
	minZ, maxZ float64
	center     r3.Vector
}

func (c *cylinderCropper) SetPose(pose *spatialmath.Pose) {
	c.center = pose.Translation()
}

func (c *cylinderCropper) IsWithin(p r3.Vector) bool {
	d := p.Sub(c.center)
	if d.Z < c.minZ || d.Z > c.maxZ {
		return false
	}
	return d.X*d.X+d.Y*d.Y <= c.radius*c.radius
}

func (c *cylinderCropper) IndicesWithinVolume(pc *pointcloud.PointCloud) []int {
	return indicesWithin(c, pc)
}

func (c *cylinderCropper) Crop(pc *pointcloud.PointCloud) *pointcloud.PointCloud {
	return pc.SelectByIndices(c.IndicesWithinVolume(pc))
}

// noneCropper accepts everything; used to disable cropping on a layer.
type noneCropper struct{}

func (noneCropper) SetPose(*spatialmath.Pose) {}

func (noneCropper) IsWithin(r3.Vector) bool { return true }

func (noneCropper) IndicesWithinVolume(pc *pointcloud.PointCloud) []int {
	idxs := make([]int, pc.Size())
	for i := range idxs {
		idxs[i] = i
	}
	return idxs
}

func (noneCropper) Crop(pc *pointcloud.PointCloud) *pointcloud.PointCloud {
	return pc.Clone()
}

func indicesWithin(c CroppingVolume, pc *pointcloud.PointCloud) []int {
	var idxs []int
	for i := 0; i < pc.Size(); i++ {
		if c.IsWithin(pc.At(i)) {
			idxs = append(idxs, i)
		}
	}
	return idxs
}
