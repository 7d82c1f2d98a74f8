package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

const (
	fpfhBinsPerFeature = 11
	// FPFHSize is the length of one FPFH descriptor: three angular features
	// with 11 bins each.
	FPFHSize = 3 * fpfhBinsPerFeature
)

// ComputeFPFHFeatures computes a Fast Point Feature Histogram descriptor for
// every point, using the up-to-maxNeighbors points within radius. The cloud
// must carry unit normals. The result is a Size x 33 matrix with one
// descriptor per row, each 11-bin block normalized to sum to 100.
func ComputeFPFHFeatures(pc *PointCloud, radius float64, maxNeighbors int) (*mat.Dense, error) {
	if pc.Empty() {
		return nil, errors.New("cannot compute FPFH features of an empty cloud")
	}
	if !pc.HasNormals() {
		return nil, errors.New("FPFH features require per-point normals")
	}
	if radius <= 0 {
		return nil, errors.Errorf("FPFH radius must be positive, got %v", radius)
	}

	tree := NewKDTree(pc.Positions())
	neighborhoods := make([][]int, pc.Size())
	for i := 0; i < pc.Size(); i++ {
		neighborhoods[i] = tree.HybridSearch(pc.At(i), radius, maxNeighbors)
	}

	// First pass: simplified point feature histograms.
	spfh := mat.NewDense(pc.Size(), FPFHSize, nil)
	for i := 0; i < pc.Size(); i++ {
		var contributors int
		for _, j := range neighborhoods[i] {
			if j == i {
				continue
			}
			a, p, t, ok := pairFeatures(pc.At(i), pc.Normal(i), pc.At(j), pc.Normal(j))
			if !ok {
				continue
			}
			row := spfh.RawRowView(i)
			row[featureBin(a, -1, 1, 0)]++
			row[featureBin(p, -1, 1, 1)]++
			row[featureBin(t, -math.Pi, math.Pi, 2)]++
			contributors++
		}
		if contributors > 0 {
			row := spfh.RawRowView(i)
			for k := range row {
				row[k] *= 100 / float64(contributors)
			}
		}
	}

	// Second pass: each descriptor is its own SPFH plus the distance
	// weighted mean of its neighbors' SPFHs.
	fpfh := mat.NewDense(pc.Size(), FPFHSize, nil)
	for i := 0; i < pc.Size(); i++ {
		row := fpfh.RawRowView(i)
		copy(row, spfh.RawRowView(i))
		var weighted [FPFHSize]float64
		var neighbors int
		for _, j := range neighborhoods[i] {
			if j == i {
				continue
			}
			d := pc.At(i).Sub(pc.At(j)).Norm()
			if d == 0 {
				continue
			}
			src := spfh.RawRowView(j)
			for k := range weighted {
				weighted[k] += src[k] / d
			}
			neighbors++
		}
		if neighbors > 0 {
			for k := range row {
				row[k] += weighted[k] / float64(neighbors)
			}
		}
		normalizeHistogramBlocks(row)
	}
	return fpfh, nil
}

// pairFeatures computes the Darboux-frame angular features between a source
// point/normal and a target point/normal.
func pairFeatures(ps, ns, pt, nt r3.Vector) (alpha, phi, theta float64, ok bool) {
	dp := pt.Sub(ps)
	dist := dp.Norm()
	if dist == 0 {
		return 0, 0, 0, false
	}
	dir := dp.Mul(1 / dist)
	u := ns
	v := u.Cross(dir)
	if v.Norm() == 0 {
		// normal parallel to the connecting line; the frame is degenerate
		return 0, 0, 0, false
	}
	v = v.Normalize()
	w := u.Cross(v)
	alpha = v.Dot(nt)
	phi = u.Dot(dir)
	theta = math.Atan2(w.Dot(nt), u.Dot(nt))
	return alpha, phi, theta, true
}

func featureBin(value, min, max float64, feature int) int {
	bin := int(math.Floor(fpfhBinsPerFeature * (value - min) / (max - min)))
	if bin < 0 {
		bin = 0
	}
	if bin >= fpfhBinsPerFeature {
		bin = fpfhBinsPerFeature - 1
	}
	return feature*fpfhBinsPerFeature + bin
}

func normalizeHistogramBlocks(row []float64) {
	for f := 0; f < 3; f++ {
		block := row[f*fpfhBinsPerFeature : (f+1)*fpfhBinsPerFeature]
		var sum float64
		for _, v := range block {
			sum += v
		}
		if sum == 0 {
			continue
		}
		for k := range block {
			block[k] *= 100 / sum
		}
	}
}
