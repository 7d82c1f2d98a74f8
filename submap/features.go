package submap

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrFeaturesNotComputed is returned when the feature summary is requested
// before ComputeFeatures has ever succeeded. That ordering is a caller bug,
// not a data condition; the error is not produced by any other path.
var ErrFeaturesNotComputed = errors.New("feature summary has not been computed")

// FeatureSummary is the compact place-recognition summary of a submap: one
// FPFH descriptor per point of the sparse feature cloud it was computed
// alongside. The two are only guaranteed consistent with each other, not
// with the latest state of the live accumulator.
type FeatureSummary struct {
	// Descriptors holds one pointcloud.FPFHSize-wide row per feature point.
	Descriptors *mat.Dense
	// Radius is the descriptor support radius the summary was computed with.
	Radius float64
}
