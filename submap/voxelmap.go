package submap

import (
	"github.com/golang/geo/r3"

	"github.com/openslam/submap/pointcloud"
	"github.com/openslam/submap/spatialmath"
)

// VoxelMapLayerSparse is the layer name the Submap uses for the index built
// over its sparse accumulator.
const VoxelMapLayerSparse = "sparse_map"

// VoxelMap is a named-layer spatial index over full point clouds, built for
// neighbor queries by downstream matching. It is a disposable derived
// structure: always rebuilt wholesale from a cloud, never incrementally
// updated. Not safe for concurrent use; the owning Submap guards it.
type VoxelMap struct {
	voxelSize float64
	layers    map[string]map[pointcloud.VoxelCoords][]r3.Vector
}

// NewVoxelMap returns an empty index with the given voxel size.
func NewVoxelMap(voxelSize float64) *VoxelMap {
	return &VoxelMap{
		voxelSize: voxelSize,
		layers:    make(map[string]map[pointcloud.VoxelCoords][]r3.Vector),
	}
}

// InsertCloud buckets every point of the cloud into the named layer,
// creating the layer if needed.
func (m *VoxelMap) InsertCloud(layer string, pc *pointcloud.PointCloud) {
	buckets, ok := m.layers[layer]
	if !ok {
		buckets = make(map[pointcloud.VoxelCoords][]r3.Vector)
		m.layers[layer] = buckets
	}
	for i := 0; i < pc.Size(); i++ {
		p := pc.At(i)
		key := pointcloud.GetVoxelCoordinates(p, r3.Vector{}, m.voxelSize)
		buckets[key] = append(buckets[key], p)
	}
}

// Clear drops every layer.
func (m *VoxelMap) Clear() {
	m.layers = make(map[string]map[pointcloud.VoxelCoords][]r3.Vector)
}

// Empty reports whether no layer holds any points.
func (m *VoxelMap) Empty() bool {
	for _, buckets := range m.layers {
		if len(buckets) > 0 {
			return false
		}
	}
	return true
}

// Layers returns the names of the populated layers.
func (m *VoxelMap) Layers() []string {
	names := make([]string, 0, len(m.layers))
	for name := range m.layers {
		names = append(names, name)
	}
	return names
}

// LayerSize returns the number of points stored in a layer.
func (m *VoxelMap) LayerSize(layer string) int {
	var n int
	for _, pts := range m.layers[layer] {
		n += len(pts)
	}
	return n
}

// PointsInVoxel returns the points bucketed in the voxel containing p.
func (m *VoxelMap) PointsInVoxel(layer string, p r3.Vector) []r3.Vector {
	buckets, ok := m.layers[layer]
	if !ok {
		return nil
	}
	key := pointcloud.GetVoxelCoordinates(p, r3.Vector{}, m.voxelSize)
	return append([]r3.Vector(nil), buckets[key]...)
}

// PointsInNeighborhood returns the points within rings voxels of the voxel
// containing p, in 26-connectivity per ring. rings of 0 is the single voxel.
func (m *VoxelMap) PointsInNeighborhood(layer string, p r3.Vector, rings int) []r3.Vector {
	buckets, ok := m.layers[layer]
	if !ok {
		return nil
	}
	center := pointcloud.GetVoxelCoordinates(p, r3.Vector{}, m.voxelSize)
	var out []r3.Vector
	for di := -int64(rings); di <= int64(rings); di++ {
		for dj := -int64(rings); dj <= int64(rings); dj++ {
			for dk := -int64(rings); dk <= int64(rings); dk++ {
				key := pointcloud.VoxelCoords{I: center.I + di, J: center.J + dj, K: center.K + dk}
				out = append(out, buckets[key]...)
			}
		}
	}
	return out
}

// Transform re-keys every layer under a rigid transform so the index stays
// expressed in the same frame as the geometry it was built from.
func (m *VoxelMap) Transform(pose *spatialmath.Pose) {
	for name, buckets := range m.layers {
		moved := make(map[pointcloud.VoxelCoords][]r3.Vector, len(buckets))
		for _, pts := range buckets {
			for _, p := range pts {
				tp := pose.TransformPoint(p)
				key := pointcloud.GetVoxelCoordinates(tp, r3.Vector{}, m.voxelSize)
				moved[key] = append(moved[key], tp)
			}
		}
		m.layers[name] = moved
	}
}

// Clone returns a deep copy of the index.
func (m *VoxelMap) Clone() *VoxelMap {
	out := NewVoxelMap(m.voxelSize)
	for name, buckets := range m.layers {
		cp := make(map[pointcloud.VoxelCoords][]r3.Vector, len(buckets))
		for key, pts := range buckets {
			cp[key] = append([]r3.Vector(nil), pts...)
		}
		out.layers[name] = cp
	}
	return out
}
