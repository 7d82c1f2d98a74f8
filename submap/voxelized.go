package submap

import (
	"image/color"

	"github.com/golang/geo/r3"

	"github.com/openslam/submap/pointcloud"
	"github.com/openslam/submap/spatialmath"
)

// voxelAggregate holds running sums for one voxel so the mean position and
// color can be produced without storing members.
type voxelAggregate struct {
	count    int
	posSum   r3.Vector
	colorSum [3]float64
	colored  int
}

func (a *voxelAggregate) mean() r3.Vector {
	return a.posSum.Mul(1 / float64(a.count))
}

func (a *voxelAggregate) meanColor() (color.NRGBA, bool) {
	if a.colored == 0 {
		return color.NRGBA{}, false
	}
	n := float64(a.colored)
	return color.NRGBA{
		R: uint8(a.colorSum[0] / n),
		G: uint8(a.colorSum[1] / n),
		B: uint8(a.colorSum[2] / n),
		A: 255,
	}, true
}

// VoxelizedPointCloud accumulates points into a uniform grid keyed by voxel
// coordinates, keeping per-voxel running statistics instead of the points
// themselves. Keys are derived from geometry, so a rigid transform re-keys
// the whole grid. Not safe for concurrent use; the owning Submap guards it.
type VoxelizedPointCloud struct {
	voxelSize float64
	voxels    map[pointcloud.VoxelCoords]*voxelAggregate
}

// NewVoxelizedPointCloud returns an empty accumulator with the given voxel
// size.
func NewVoxelizedPointCloud(voxelSize float64) *VoxelizedPointCloud {
	return &VoxelizedPointCloud{
		voxelSize: voxelSize,
		voxels:    make(map[pointcloud.VoxelCoords]*voxelAggregate),
	}
}

// Empty reports whether the grid has no voxels.
func (v *VoxelizedPointCloud) Empty() bool {
	return len(v.voxels) == 0
}

// Size returns the number of occupied voxels.
func (v *VoxelizedPointCloud) Size() int {
	return len(v.voxels)
}

// VoxelSize returns the grid resolution.
func (v *VoxelizedPointCloud) VoxelSize() float64 {
	return v.voxelSize
}

// Insert accumulates every point of the cloud into its voxel's statistics.
func (v *VoxelizedPointCloud) Insert(pc *pointcloud.PointCloud) {
	for i := 0; i < pc.Size(); i++ {
		p := pc.At(i)
		key := pointcloud.GetVoxelCoordinates(p, r3.Vector{}, v.voxelSize)
		agg, ok := v.voxels[key]
		if !ok {
			agg = &voxelAggregate{}
			v.voxels[key] = agg
		}
		agg.count++
		agg.posSum = agg.posSum.Add(p)
		if c, valid := pc.Color(i); valid {
			agg.colorSum[0] += float64(c.R)
			agg.colorSum[1] += float64(c.G)
			agg.colorSum[2] += float64(c.B)
			agg.colored++
		}
	}
}

// RemoveKey erases one voxel bucket. Removing an absent key is a no-op.
func (v *VoxelizedPointCloud) RemoveKey(key pointcloud.VoxelCoords) {
	delete(v.voxels, key)
}

// ContainsKey reports whether a voxel bucket exists for the key.
func (v *VoxelizedPointCloud) ContainsKey(key pointcloud.VoxelCoords) bool {
	_, ok := v.voxels[key]
	return ok
}

// ForEach calls fn for every voxel with its key and mean position until fn
// returns false. Iteration order is not meaningful.
func (v *VoxelizedPointCloud) ForEach(fn func(key pointcloud.VoxelCoords, mean r3.Vector) bool) {
	for key, agg := range v.voxels {
		if !fn(key, agg.mean()) {
			return
		}
	}
}

// Transform applies a rigid transform to the accumulated geometry. Voxel
// keys are position derived, so every aggregate is re-keyed under the new
// coordinates; aggregates landing in the same voxel merge.
func (v *VoxelizedPointCloud) Transform(pose *spatialmath.Pose) {
	rekeyed := make(map[pointcloud.VoxelCoords]*voxelAggregate, len(v.voxels))
	for _, agg := range v.voxels {
		mean := pose.TransformPoint(agg.mean())
		key := pointcloud.GetVoxelCoordinates(mean, r3.Vector{}, v.voxelSize)
		moved := &voxelAggregate{
			count:    agg.count,
			posSum:   mean.Mul(float64(agg.count)),
			colorSum: agg.colorSum,
			colored:  agg.colored,
		}
		if existing, ok := rekeyed[key]; ok {
			existing.count += moved.count
			existing.posSum = existing.posSum.Add(moved.posSum)
			for i := range existing.colorSum {
				existing.colorSum[i] += moved.colorSum[i]
			}
			existing.colored += moved.colored
		} else {
			rekeyed[key] = moved
		}
	}
	v.voxels = rekeyed
}

// SetVoxelSize changes the grid resolution, re-bucketing the accumulated
// geometry rather than clearing it.
func (v *VoxelizedPointCloud) SetVoxelSize(voxelSize float64) {
	if voxelSize == v.voxelSize {
		return
	}
	old := v.voxels
	v.voxelSize = voxelSize
	v.voxels = make(map[pointcloud.VoxelCoords]*voxelAggregate, len(old))
	for _, agg := range old {
		key := pointcloud.GetVoxelCoordinates(agg.mean(), r3.Vector{}, voxelSize)
		if existing, ok := v.voxels[key]; ok {
			existing.count += agg.count
			existing.posSum = existing.posSum.Add(agg.posSum)
			for i := range existing.colorSum {
				existing.colorSum[i] += agg.colorSum[i]
			}
			existing.colored += agg.colored
		} else {
			v.voxels[key] = agg
		}
	}
}

// PointCloud exports one point per voxel: the running mean position and,
// where present, the mean color.
func (v *VoxelizedPointCloud) PointCloud() *pointcloud.PointCloud {
	out := pointcloud.NewWithCapacity(len(v.voxels))
	for _, agg := range v.voxels {
		if c, ok := agg.meanColor(); ok {
			out.AddColored(agg.mean(), c)
		} else {
			out.Add(agg.mean())
		}
	}
	return out
}

// Clone returns a deep copy of the grid.
func (v *VoxelizedPointCloud) Clone() *VoxelizedPointCloud {
	out := NewVoxelizedPointCloud(v.voxelSize)
	for key, agg := range v.voxels {
		cp := *agg
		out.voxels[key] = &cp
	}
	return out
}
