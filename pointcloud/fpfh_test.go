package pointcloud

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func fpfhTestCloud() *PointCloud {
	pc := New()
	// an L-shaped sheet: half plane at z=0, half wall at x=0
	for i := 0; i <= 5; i++ {
		for j := 0; j <= 5; j++ {
			pc.Add(r3.Vector{X: float64(i) * 0.1, Y: float64(j) * 0.1})
			pc.Add(r3.Vector{Y: float64(j) * 0.1, Z: float64(i) * 0.1})
		}
	}
	return pc
}

func TestComputeFPFHFeaturesShape(t *testing.T) {
	pc := fpfhTestCloud()
	test.That(t, EstimateNormals(pc, 8, 0), test.ShouldBeNil)
	NormalizeNormals(pc)
	OrientNormalsTowards(pc, r3.Vector{X: 5, Y: 5, Z: 5})

	desc, err := ComputeFPFHFeatures(pc, 0.3, 20)
	test.That(t, err, test.ShouldBeNil)
	rows, cols := desc.Dims()
	test.That(t, rows, test.ShouldEqual, pc.Size())
	test.That(t, cols, test.ShouldEqual, FPFHSize)

	// every populated histogram block sums to 100
	for f := 0; f < 3; f++ {
		var sum float64
		for b := 0; b < fpfhBinsPerFeature; b++ {
			sum += desc.At(0, f*fpfhBinsPerFeature+b)
		}
		if sum != 0 {
			test.That(t, sum, test.ShouldAlmostEqual, 100, 1e-6)
		}
	}
}

func TestComputeFPFHFeaturesRequiresNormals(t *testing.T) {
	pc := New()
	pc.Add(r3.Vector{X: 1})
	_, err := ComputeFPFHFeatures(pc, 0.3, 10)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestComputeFPFHFeaturesEmptyCloud(t *testing.T) {
	_, err := ComputeFPFHFeatures(New(), 0.3, 10)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestComputeFPFHFeaturesBadRadius(t *testing.T) {
	pc := fpfhTestCloud()
	test.That(t, EstimateNormals(pc, 8, 0), test.ShouldBeNil)
	_, err := ComputeFPFHFeatures(pc, 0, 10)
	test.That(t, err, test.ShouldNotBeNil)
}
