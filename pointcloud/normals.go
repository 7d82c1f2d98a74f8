package pointcloud

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// EstimateNormals computes a surface normal for every point from the PCA of
// its local neighborhood: the eigenvector of the neighborhood covariance
// with the smallest eigenvalue. Neighborhoods are the up-to-knn points
// within radius; a non-positive radius falls back to pure k-nearest.
// Orientation is arbitrary until OrientNormalsTowards is called.
func EstimateNormals(pc *PointCloud, knn int, radius float64) error {
	if pc.Empty() {
		return nil
	}
	if knn < 3 {
		return errors.Errorf("normal estimation needs at least 3 neighbors, got knn=%d", knn)
	}
	tree := NewKDTree(pc.Positions())
	normals := make([]r3.Vector, pc.Size())
	for i := 0; i < pc.Size(); i++ {
		var neighbors []int
		if radius > 0 {
			neighbors = tree.HybridSearch(pc.At(i), radius, knn)
		} else {
			neighbors = tree.KNN(pc.At(i), knn)
		}
		if len(neighbors) < 3 {
			continue
		}
		normals[i] = neighborhoodNormal(pc, neighbors)
	}
	return pc.SetNormals(normals)
}

// NormalizeNormals scales every normal to unit length, leaving zero normals
// untouched.
func NormalizeNormals(pc *PointCloud) {
	if !pc.HasNormals() {
		return
	}
	for i, n := range pc.normals {
		if norm := n.Norm(); norm > 0 {
			pc.normals[i] = n.Mul(1 / norm)
		}
	}
}

// OrientNormalsTowards flips normals so that each one points toward the
// given viewpoint, making orientation consistent across the cloud.
func OrientNormalsTowards(pc *PointCloud, viewpoint r3.Vector) {
	if !pc.HasNormals() {
		return
	}
	for i, n := range pc.normals {
		toView := viewpoint.Sub(pc.positions[i])
		if n.Dot(toView) < 0 {
			pc.normals[i] = n.Mul(-1)
		}
	}
}

func neighborhoodNormal(pc *PointCloud, idxs []int) r3.Vector {
	var mean r3.Vector
	for _, j := range idxs {
		mean = mean.Add(pc.positions[j])
	}
	mean = mean.Mul(1 / float64(len(idxs)))

	var xx, xy, xz, yy, yz, zz float64
	for _, j := range idxs {
		d := pc.positions[j].Sub(mean)
		xx += d.X * d.X
		xy += d.X * d.Y
		xz += d.X * d.Z
		yy += d.Y * d.Y
		yz += d.Y * d.Z
		zz += d.Z * d.Z
	}
	cov := mat.NewSymDense(3, []float64{
		xx, xy, xz,
		xy, yy, yz,
		xz, yz, zz,
	})
	var eig mat.EigenSym
	if !eig.Factorize(cov, true) {
		return r3.Vector{}
	}
	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	// eigenvalues come back ascending; the first eigenvector spans the
	// direction of least variance.
	return r3.Vector{X: vecs.At(0, 0), Y: vecs.At(1, 0), Z: vecs.At(2, 0)}
}
