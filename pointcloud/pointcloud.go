// Package pointcloud defines point containers and the geometry primitives
// the mapping core delegates to: KD-tree neighbor queries, voxel-grid
// downsampling, normal estimation and FPFH descriptors.
//
// Storage is dense slice based rather than position keyed: the carving and
// selection operations work on stable integer indices, which a map keyed by
// position cannot provide.
package pointcloud

import (
	"image/color"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/openslam/submap/spatialmath"
)

// PointCloud holds point positions plus optional per-point normals and
// colors. Normals and colors are either absent or present for every point.
type PointCloud struct {
	positions []r3.Vector
	normals   []r3.Vector
	colors    []color.NRGBA
}

// New returns an empty PointCloud.
func New() *PointCloud {
	return &PointCloud{}
}

// NewWithCapacity returns an empty PointCloud preallocated for size points.
func NewWithCapacity(size int) *PointCloud {
	return &PointCloud{positions: make([]r3.Vector, 0, size)}
}

// Size returns the number of points in the cloud.
func (pc *PointCloud) Size() int {
	return len(pc.positions)
}

// Empty reports whether the cloud has no points.
func (pc *PointCloud) Empty() bool {
	return len(pc.positions) == 0
}

// HasNormals reports whether every point carries a normal.
func (pc *PointCloud) HasNormals() bool {
	return len(pc.normals) > 0 && len(pc.normals) == len(pc.positions)
}

// HasColors reports whether every point carries a color.
func (pc *PointCloud) HasColors() bool {
	return len(pc.colors) > 0 && len(pc.colors) == len(pc.positions)
}

// Add appends a point with no attributes. Attribute slices, if present, are
// padded so the per-point invariant holds.
func (pc *PointCloud) Add(p r3.Vector) {
	pc.positions = append(pc.positions, p)
	if pc.normals != nil {
		pc.normals = append(pc.normals, r3.Vector{})
	}
	if pc.colors != nil {
		pc.colors = append(pc.colors, color.NRGBA{})
	}
}

// AddColored appends a point with a color. A zero-alpha color marks the
// color as invalid for consumers that filter on color validity.
func (pc *PointCloud) AddColored(p r3.Vector, c color.NRGBA) {
	if pc.colors == nil {
		pc.colors = make([]color.NRGBA, len(pc.positions))
	}
	pc.positions = append(pc.positions, p)
	pc.colors = append(pc.colors, c)
	if pc.normals != nil {
		pc.normals = append(pc.normals, r3.Vector{})
	}
}

// At returns the position of point i.
func (pc *PointCloud) At(i int) r3.Vector {
	return pc.positions[i]
}

// Normal returns the normal of point i; the zero vector if the cloud has no
// normals.
func (pc *PointCloud) Normal(i int) r3.Vector {
	if !pc.HasNormals() {
		return r3.Vector{}
	}
	return pc.normals[i]
}

// Color returns the color of point i and whether it is valid. A color is
// valid when the cloud carries colors and the alpha channel is nonzero.
func (pc *PointCloud) Color(i int) (color.NRGBA, bool) {
	if !pc.HasColors() {
		return color.NRGBA{}, false
	}
	c := pc.colors[i]
	return c, c.A != 0
}

// Positions exposes the backing position slice for read-only bulk
// consumers such as KD-tree construction. Callers must not mutate it.
func (pc *PointCloud) Positions() []r3.Vector {
	return pc.positions
}

// SetNormals replaces the per-point normals. The slice length must match
// the point count.
func (pc *PointCloud) SetNormals(normals []r3.Vector) error {
	if len(normals) != len(pc.positions) {
		return errors.Errorf("normal count %d does not match point count %d", len(normals), len(pc.positions))
	}
	pc.normals = normals
	return nil
}

// Clone returns a deep copy of the cloud.
func (pc *PointCloud) Clone() *PointCloud {
	out := &PointCloud{positions: append([]r3.Vector(nil), pc.positions...)}
	if pc.normals != nil {
		out.normals = append([]r3.Vector(nil), pc.normals...)
	}
	if pc.colors != nil {
		out.colors = append([]color.NRGBA(nil), pc.colors...)
	}
	return out
}

// Merge appends every point of other into pc. If only one side carries an
// attribute, the other side is padded with zero values for it.
func (pc *PointCloud) Merge(other *PointCloud) {
	if other.Empty() {
		return
	}
	if pc.normals != nil || other.normals != nil {
		pc.ensureNormals()
		if other.HasNormals() {
			pc.normals = append(pc.normals, other.normals...)
		} else {
			pc.normals = append(pc.normals, make([]r3.Vector, other.Size())...)
		}
	}
	if pc.colors != nil || other.colors != nil {
		pc.ensureColors()
		if other.HasColors() {
			pc.colors = append(pc.colors, other.colors...)
		} else {
			pc.colors = append(pc.colors, make([]color.NRGBA, other.Size())...)
		}
	}
	pc.positions = append(pc.positions, other.positions...)
}

// Transform applies a rigid transform to every point in place. Normals are
// rotated only.
func (pc *PointCloud) Transform(pose *spatialmath.Pose) {
	for i, p := range pc.positions {
		pc.positions[i] = pose.TransformPoint(p)
	}
	if pc.HasNormals() {
		for i, n := range pc.normals {
			pc.normals[i] = pose.RotateVector(n)
		}
	}
}

// SelectByIndices returns a new cloud holding the points at the given
// indices, attributes included.
func (pc *PointCloud) SelectByIndices(idxs []int) *PointCloud {
	out := NewWithCapacity(len(idxs))
	if pc.normals != nil {
		out.normals = make([]r3.Vector, 0, len(idxs))
	}
	if pc.colors != nil {
		out.colors = make([]color.NRGBA, 0, len(idxs))
	}
	for _, i := range idxs {
		out.positions = append(out.positions, pc.positions[i])
		if pc.normals != nil {
			out.normals = append(out.normals, pc.normals[i])
		}
		if pc.colors != nil {
			out.colors = append(out.colors, pc.colors[i])
		}
	}
	return out
}

// RemoveByIndices removes the points at the given indices in one batch,
// preserving the relative order of the survivors.
func (pc *PointCloud) RemoveByIndices(idxs []int) {
	if len(idxs) == 0 {
		return
	}
	drop := make(map[int]struct{}, len(idxs))
	for _, i := range idxs {
		drop[i] = struct{}{}
	}
	keep := 0
	for i := range pc.positions {
		if _, gone := drop[i]; gone {
			continue
		}
		pc.positions[keep] = pc.positions[i]
		if pc.normals != nil {
			pc.normals[keep] = pc.normals[i]
		}
		if pc.colors != nil {
			pc.colors[keep] = pc.colors[i]
		}
		keep++
	}
	pc.positions = pc.positions[:keep]
	if pc.normals != nil {
		pc.normals = pc.normals[:keep]
	}
	if pc.colors != nil {
		pc.colors = pc.colors[:keep]
	}
}

// Centroid returns the mean position, or the zero vector for an empty cloud.
func (pc *PointCloud) Centroid() r3.Vector {
	if pc.Empty() {
		return r3.Vector{}
	}
	var sum r3.Vector
	for _, p := range pc.positions {
		sum = sum.Add(p)
	}
	return sum.Mul(1 / float64(len(pc.positions)))
}

func (pc *PointCloud) ensureNormals() {
	if pc.normals == nil {
		pc.normals = make([]r3.Vector, len(pc.positions))
	}
}

func (pc *PointCloud) ensureColors() {
	if pc.colors == nil {
		pc.colors = make([]color.NRGBA, len(pc.positions))
	}
}
