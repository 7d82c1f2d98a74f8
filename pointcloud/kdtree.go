package pointcloud

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// KDTree wraps a gonum KD-tree over a fixed set of positions and answers
// radius and k-nearest queries with indices into the original slice.
type KDTree struct {
	tree *kdtree.Tree
	size int
}

// NewKDTree builds a KD-tree from the given positions. The positions slice
// is not retained; indices returned by queries refer to it.
func NewKDTree(positions []r3.Vector) *KDTree {
	if len(positions) == 0 {
		return &KDTree{}
	}
	pts := make(kdPoints, len(positions))
	for i, p := range positions {
		pts[i] = kdPoint{vec: p, idx: i}
	}
	return &KDTree{tree: kdtree.New(pts, false), size: len(positions)}
}

// Size returns the number of indexed points.
func (t *KDTree) Size() int {
	return t.size
}

// RadiusSearch returns the indices of all points within radius of q.
func (t *KDTree) RadiusSearch(q r3.Vector, radius float64) []int {
	if t.size == 0 {
		return nil
	}
	keeper := kdtree.NewDistKeeper(radius * radius)
	t.tree.NearestSet(keeper, kdPoint{vec: q})
	out := make([]int, 0, keeper.Len())
	for _, cd := range keeper.Heap {
		if cd.Comparable == nil {
			continue
		}
		out = append(out, cd.Comparable.(kdPoint).idx)
	}
	return out
}

// KNN returns the indices of up to k nearest points to q.
func (t *KDTree) KNN(q r3.Vector, k int) []int {
	if t.size == 0 || k <= 0 {
		return nil
	}
	keeper := kdtree.NewNKeeper(k)
	t.tree.NearestSet(keeper, kdPoint{vec: q})
	out := make([]int, 0, keeper.Len())
	for _, cd := range keeper.Heap {
		if cd.Comparable == nil {
			continue
		}
		out = append(out, cd.Comparable.(kdPoint).idx)
	}
	return out
}

// HybridSearch returns the indices of at most maxNeighbors points within
// radius of q, nearest first not guaranteed. A non-positive maxNeighbors
// means unbounded.
func (t *KDTree) HybridSearch(q r3.Vector, radius float64, maxNeighbors int) []int {
	idxs := t.RadiusSearch(q, radius)
	if maxNeighbors > 0 && len(idxs) > maxNeighbors {
		idxs = idxs[:maxNeighbors]
	}
	return idxs
}

// kdPoint adapts an r3.Vector plus its slice index to gonum's kdtree
// Comparable interface. Distance is squared Euclidean.
type kdPoint struct {
	vec r3.Vector
	idx int
}

func (p kdPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(kdPoint)
	switch d {
	case 0:
		return p.vec.X - q.vec.X
	case 1:
		return p.vec.Y - q.vec.Y
	default:
		return p.vec.Z - q.vec.Z
	}
}

func (p kdPoint) Dims() int { return 3 }

func (p kdPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(kdPoint)
	d := p.vec.Sub(q.vec)
	return d.Dot(d)
}

type kdPoints []kdPoint

func (p kdPoints) Index(i int) kdtree.Comparable { return p[i] }
func (p kdPoints) Len() int                      { return len(p) }
func (p kdPoints) Slice(start, end int) kdtree.Interface {
	return p[start:end]
}

func (p kdPoints) Pivot(d kdtree.Dim) int {
	return kdPlane{kdPoints: p, Dim: d}.Pivot()
}

type kdPlane struct {
	kdPoints
	kdtree.Dim
}

func (p kdPlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.kdPoints[i].vec.X < p.kdPoints[j].vec.X
	case 1:
		return p.kdPoints[i].vec.Y < p.kdPoints[j].vec.Y
	default:
		return p.kdPoints[i].vec.Z < p.kdPoints[j].vec.Z
	}
}

func (p kdPlane) Pivot() int {
	return kdtree.Partition(p, kdtree.MedianOfMedians(p))
}

func (p kdPlane) Slice(start, end int) kdtree.SortSlicer {
	p.kdPoints = p.kdPoints[start:end]
	return p
}

func (p kdPlane) Swap(i, j int) {
	p.kdPoints[i], p.kdPoints[j] = p.kdPoints[j], p.kdPoints[i]
}
