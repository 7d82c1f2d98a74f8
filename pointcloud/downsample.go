package pointcloud

import (
	"image/color"
	"math"

	"github.com/golang/geo/r3"
)

// VoxelCoords stores voxel coordinates on a uniform grid.
type VoxelCoords struct {
	I, J, K int64
}

// IsEqual tests if two VoxelCoords are the same.
func (c VoxelCoords) IsEqual(c2 VoxelCoords) bool {
	return c.I == c2.I && c.J == c2.J && c.K == c2.K
}

// GetVoxelCoordinates returns the voxel coordinates of a point on a grid of
// the given voxel size anchored at ptMin.
func GetVoxelCoordinates(pt, ptMin r3.Vector, voxelSize float64) VoxelCoords {
	d := pt.Sub(ptMin)
	return VoxelCoords{
		I: int64(math.Floor(d.X / voxelSize)),
		J: int64(math.Floor(d.Y / voxelSize)),
		K: int64(math.Floor(d.Z / voxelSize)),
	}
}

// VoxelCenter returns the center point of a voxel on a grid anchored at the
// frame origin.
func (c VoxelCoords) VoxelCenter(voxelSize float64) r3.Vector {
	return r3.Vector{
		X: (float64(c.I) + 0.5) * voxelSize,
		Y: (float64(c.J) + 0.5) * voxelSize,
		Z: (float64(c.K) + 0.5) * voxelSize,
	}
}

type downsampleBucket struct {
	count     int
	posSum    r3.Vector
	normalSum r3.Vector
	colorSum  [4]float64
}

// VoxelDownSample reduces the cloud to one point per occupied voxel, each
// point being the running mean of the voxel's members (position, normal and
// color alike). The grid is anchored at the frame origin so that repeating
// the call with the same voxel size is idempotent.
func VoxelDownSample(pc *PointCloud, voxelSize float64) *PointCloud {
	if voxelSize <= 0 || pc.Empty() {
		return pc.Clone()
	}
	buckets := make(map[VoxelCoords]*downsampleBucket)
	order := make([]VoxelCoords, 0)
	for i := 0; i < pc.Size(); i++ {
		key := GetVoxelCoordinates(pc.At(i), r3.Vector{}, voxelSize)
		b, ok := buckets[key]
		if !ok {
			b = &downsampleBucket{}
			buckets[key] = b
			order = append(order, key)
		}
		b.count++
		b.posSum = b.posSum.Add(pc.At(i))
		if pc.HasNormals() {
			b.normalSum = b.normalSum.Add(pc.Normal(i))
		}
		if c, valid := pc.Color(i); valid {
			b.colorSum[0] += float64(c.R)
			b.colorSum[1] += float64(c.G)
			b.colorSum[2] += float64(c.B)
			b.colorSum[3]++
		}
	}

	out := NewWithCapacity(len(buckets))
	if pc.HasNormals() {
		out.normals = make([]r3.Vector, 0, len(buckets))
	}
	if pc.HasColors() {
		out.colors = make([]color.NRGBA, 0, len(buckets))
	}
	for _, key := range order {
		b := buckets[key]
		out.positions = append(out.positions, b.posSum.Mul(1/float64(b.count)))
		if pc.HasNormals() {
			n := b.normalSum
			if norm := n.Norm(); norm > 0 {
				n = n.Mul(1 / norm)
			}
			out.normals = append(out.normals, n)
		}
		if pc.HasColors() {
			c := color.NRGBA{}
			if b.colorSum[3] > 0 {
				c = color.NRGBA{
					R: uint8(b.colorSum[0] / b.colorSum[3]),
					G: uint8(b.colorSum[1] / b.colorSum[3]),
					B: uint8(b.colorSum[2] / b.colorSum[3]),
					A: 255,
				}
			}
			out.colors = append(out.colors, c)
		}
	}
	return out
}
