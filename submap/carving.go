package submap

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/openslam/submap/pointcloud"
)

// Space carving removes map geometry that later sensor evidence
// contradicts: if the current scan measures a surface at some range, any
// map point lying well inside that range along the same bearing sits in
// space the scan proves unoccupied and is stale (e.g. an object that moved
// away).
//
// The collinearity test indexes the unit ray directions of the scan in a
// KD-tree; a map point's direction matches a scan direction when their dot
// product is at least MinRayDot, i.e. when the chord between the two unit
// vectors is at most sqrt(2*(1-MinRayDot)).

// rayIndex is a KD-tree over the unit directions from the sensor to each
// scan point, with the range of each scan point alongside.
type rayIndex struct {
	tree        *pointcloud.KDTree
	ranges      []float64
	chordRadius float64
}

func newRayIndex(scan *pointcloud.PointCloud, sensorPos r3.Vector, params SpaceCarvingParameters) *rayIndex {
	dirs := make([]r3.Vector, 0, scan.Size())
	ranges := make([]float64, 0, scan.Size())
	for i := 0; i < scan.Size(); i++ {
		d := scan.At(i).Sub(sensorPos)
		dist := d.Norm()
		if dist == 0 {
			continue
		}
		dirs = append(dirs, d.Mul(1/dist))
		ranges = append(ranges, dist)
	}
	minDot := math.Min(params.MinRayDot, 1)
	return &rayIndex{
		tree:        pointcloud.NewKDTree(dirs),
		ranges:      ranges,
		chordRadius: math.Sqrt(math.Max(2*(1-minDot), 0)),
	}
}

// isCarved reports whether a point at the given position is contradicted by
// some scan point: sufficiently collinear bearing and farther from the
// sensor by more than the truncation distance.
func (ri *rayIndex) isCarved(p, sensorPos r3.Vector, truncation float64) bool {
	d := p.Sub(sensorPos)
	dist := d.Norm()
	if dist == 0 {
		return false
	}
	dir := d.Mul(1 / dist)
	for _, i := range ri.tree.RadiusSearch(dir, ri.chordRadius) {
		if ri.ranges[i]-dist > truncation {
			return true
		}
	}
	return false
}

// CarvedIndices returns the indices of mapCloud points, drawn from the
// candidate set, that the scan proves stale. The scan and the map cloud
// must be expressed in the same frame as sensorPos. Removal is left to the
// caller.
func CarvedIndices(
	scan, mapCloud *pointcloud.PointCloud,
	sensorPos r3.Vector,
	candidates []int,
	params SpaceCarvingParameters,
) []int {
	if scan.Empty() || len(candidates) == 0 {
		return nil
	}
	rays := newRayIndex(scan, sensorPos, params)
	var carved []int
	for _, idx := range candidates {
		if rays.isCarved(mapCloud.At(idx), sensorPos, params.TruncationDistance) {
			carved = append(carved, idx)
		}
	}
	return carved
}

// CarvedVoxelKeys applies the same occlusion test per voxel of a voxelized
// layer, using each voxel's mean position, and returns the keys to drop.
func CarvedVoxelKeys(
	scan *pointcloud.PointCloud,
	voxels *VoxelizedPointCloud,
	sensorPos r3.Vector,
	params SpaceCarvingParameters,
) []pointcloud.VoxelCoords {
	if scan.Empty() || voxels.Empty() {
		return nil
	}
	rays := newRayIndex(scan, sensorPos, params)
	var carved []pointcloud.VoxelCoords
	voxels.ForEach(func(key pointcloud.VoxelCoords, mean r3.Vector) bool {
		if rays.isCarved(mean, sensorPos, params.TruncationDistance) {
			carved = append(carved, key)
		}
		return true
	})
	return carved
}
