package submap

import "time"

// MatchingObjective selects the scan-matching cost the surrounding pipeline
// runs against this submap. Point-to-plane requires surface normals on the
// accumulated cloud.
type MatchingObjective int

// Supported matching objectives.
const (
	MatchingObjectivePointToPoint = MatchingObjective(iota)
	MatchingObjectivePointToPlane
)

// CroppingVolumeParameters describe a region-of-interest predicate relative
// to a reference pose.
type CroppingVolumeParameters struct {
	// Kind is one of CropperKindBall, CropperKindCylinder, CropperKindNone.
	Kind string
	// Radius bounds the horizontal (cylinder) or full (ball) distance from
	// the reference point.
	Radius float64
	// MinZ and MaxZ bound the height relative to the reference point.
	MinZ, MaxZ float64
}

// SpaceCarvingParameters tune the occlusion-based removal of stale map
// geometry.
type SpaceCarvingParameters struct {
	// TruncationDistance is how much farther from the sensor a scan point
	// must be than a map point, along a shared ray, before the map point is
	// declared stale.
	TruncationDistance float64
	// MinRayDot is the minimum dot product between the unit rays from the
	// sensor to a scan point and to a map point for the two to count as the
	// same bearing.
	MinRayDot float64
	// CarveInterval is the minimum time between carving runs on one layer.
	CarveInterval time.Duration
}

// MapBuilderParameters tune the sparse accumulation layer.
type MapBuilderParameters struct {
	Cropper CroppingVolumeParameters
	// MapVoxelSize is the re-voxelization resolution for the cropped region
	// of the accumulator. Non-positive disables re-voxelization.
	MapVoxelSize float64
	Carving      SpaceCarvingParameters
	// WideCropFactor scales the insertion crop radius for the carving
	// candidate region, so points just outside the tight insertion region
	// still get carved.
	WideCropFactor float64
}

// DenseMapBuilderParameters tune the independent dense (voxelized) layer.
type DenseMapBuilderParameters struct {
	Cropper CroppingVolumeParameters
	// MapVoxelSize is the dense accumulator's voxel resolution.
	MapVoxelSize float64
	Carving      SpaceCarvingParameters
	// CropRadiusMultiplier widens the dense crop region relative to the
	// configured radius.
	CropRadiusMultiplier float64
}

// PlaceRecognitionParameters tune the feature summary used for submap
// matching.
type PlaceRecognitionParameters struct {
	// FeatureVoxelSize is the downsampling resolution of the feature cloud.
	FeatureVoxelSize float64
	// NormalEstimationRadius and NormalKNN bound the normal estimation
	// neighborhoods.
	NormalEstimationRadius float64
	NormalKNN              int
	// FeatureRadius and FeatureKNN bound the descriptor neighborhoods.
	FeatureRadius float64
	FeatureKNN    int
	// MinTimeBetweenComputations rate limits feature recomputation.
	MinTimeBetweenComputations time.Duration
}

// Parameters is the full submap configuration, replaceable wholesale via
// Submap.SetParameters.
type Parameters struct {
	MatchingObjective MatchingObjective
	// ScanMatcherNormalKNN is the neighborhood size for the normals
	// estimated on ingestion when the objective is point-to-plane.
	ScanMatcherNormalKNN int

	MapBuilder       MapBuilderParameters
	DenseMapBuilder  DenseMapBuilderParameters
	PlaceRecognition PlaceRecognitionParameters

	// SpatialIndexVoxelSize is the resolution of the rebuilt-on-demand
	// neighbor-query index.
	SpatialIndexVoxelSize float64
}

// DefaultParameters returns a configuration suitable for indoor-scale lidar
// mapping, distances in meters.
func DefaultParameters() Parameters {
	return Parameters{
		MatchingObjective:    MatchingObjectivePointToPoint,
		ScanMatcherNormalKNN: 10,
		MapBuilder: MapBuilderParameters{
			Cropper:      CroppingVolumeParameters{Kind: CropperKindCylinder, Radius: 30, MinZ: -10, MaxZ: 10},
			MapVoxelSize: 0.1,
			Carving: SpaceCarvingParameters{
				TruncationDistance: 0.1,
				MinRayDot:          0.99,
				CarveInterval:      5 * time.Second,
			},
			WideCropFactor: 1.5,
		},
		DenseMapBuilder: DenseMapBuilderParameters{
			Cropper:      CroppingVolumeParameters{Kind: CropperKindCylinder, Radius: 15, MinZ: -5, MaxZ: 5},
			MapVoxelSize: 0.05,
			Carving: SpaceCarvingParameters{
				TruncationDistance: 0.1,
				MinRayDot:          0.99,
				CarveInterval:      10 * time.Second,
			},
			CropRadiusMultiplier: 1.2,
		},
		PlaceRecognition: PlaceRecognitionParameters{
			FeatureVoxelSize:           0.5,
			NormalEstimationRadius:     2,
			NormalKNN:                  10,
			FeatureRadius:              2.5,
			FeatureKNN:                 100,
			MinTimeBetweenComputations: 10 * time.Second,
		},
		SpatialIndexVoxelSize: 0.5,
	}
}
