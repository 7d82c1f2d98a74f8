// Package submap manages the lifecycle of a local submap inside an
// incremental 3D mapping pipeline: it accumulates scans into a sparse and a
// dense layer, prunes stale geometry by space carving, and produces a
// compact feature summary for place recognition.
package submap

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/openslam/submap/pointcloud"
	"github.com/openslam/submap/spatialmath"
)

// carveStatsPeriod is how often accumulated carving timings are reported.
const carveStatsPeriod = 20 * time.Second

// Submap is a locally consistent map fragment accumulated over a bounded
// span of scans. All stored geometry is expressed in the submap-local frame.
//
// The sparse layer (accumulator, sensor pose, carve limiter) and the dense
// layer (voxelized cloud, its carve limiter) are guarded by independent
// mutexes and never locked together, so the two ingestion paths can run
// concurrently without blocking each other. The feature products share a
// third region. Readers needing a consistent snapshot use the copy-out
// getters.
type Submap struct {
	id       int64
	parentID int64

	logger golog.Logger
	clk    clock.Clock

	paramsMu sync.RWMutex
	params   Parameters

	mapMu             sync.Mutex
	mapCloud          *pointcloud.PointCloud
	mapCropper        CroppingVolume
	wideCropper       CroppingVolume
	carveLimiter      *RateLimiter
	mapToRangeSensor  *spatialmath.Pose
	mapToSubmapOrigin *spatialmath.Pose
	creationTime      time.Time
	created           bool
	submapCenter      r3.Vector
	centerComputed    bool
	carveStats        carveStatistics

	denseMu           sync.Mutex
	denseMap          *VoxelizedPointCloud
	denseCropper      CroppingVolume
	denseCarveLimiter *RateLimiter
	firstDenseScan    bool

	featureMu          sync.Mutex
	sparseFeatureCloud *pointcloud.PointCloud
	features           *FeatureSummary
	voxelMap           *VoxelMap
	featureLimiter     *RateLimiter
}

type carveStatistics struct {
	runs       int
	removed    int
	total      time.Duration
	lastReport time.Time
}

// NewSubmap constructs a submap with the given identifiers and
// configuration, reading time from the wall clock.
func NewSubmap(id, parentID int64, params Parameters, logger golog.Logger) (*Submap, error) {
	return NewSubmapWithClock(id, parentID, params, logger, clock.New())
}

// NewSubmapWithClock is NewSubmap with an injected clock, for tests that
// drive the rate limiters deterministically.
func NewSubmapWithClock(
	id, parentID int64,
	params Parameters,
	logger golog.Logger,
	clk clock.Clock,
) (*Submap, error) {
	s := &Submap{
		id:                id,
		parentID:          parentID,
		logger:            logger,
		clk:               clk,
		params:            params,
		mapCloud:          pointcloud.New(),
		mapToRangeSensor:  spatialmath.NewZeroPose(),
		mapToSubmapOrigin: spatialmath.NewZeroPose(),
		denseMap:          NewVoxelizedPointCloud(params.DenseMapBuilder.MapVoxelSize),
		firstDenseScan:    true,
		voxelMap:          NewVoxelMap(params.SpatialIndexVoxelSize),
		carveLimiter:      NewRateLimiter(clk, params.MapBuilder.Carving.CarveInterval),
		denseCarveLimiter: NewRateLimiter(clk, params.DenseMapBuilder.Carving.CarveInterval),
		featureLimiter:    NewRateLimiter(clk, params.PlaceRecognition.MinTimeBetweenComputations),
	}
	s.carveStats.lastReport = clk.Now()
	if err := s.rebuildCroppers(params); err != nil {
		return nil, err
	}
	return s, nil
}

// ID returns the submap's immutable identifier.
func (s *Submap) ID() int64 {
	return s.id
}

// ParentID returns the identifier of the submap this one was spawned from.
func (s *Submap) ParentID() int64 {
	return s.parentID
}

// CreationTime returns the timestamp of the first merged scan and whether
// any scan has been merged yet.
func (s *Submap) CreationTime() (time.Time, bool) {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()
	return s.creationTime, s.created
}

// InsertScan merges a preprocessed scan into the sparse accumulator. The
// preprocessed scan is transformed into the submap-local frame using the
// given sensor pose; normals are estimated when the matching objective
// needs them and the scan has none; when carve is set and the carve
// interval has elapsed, stale accumulator points are removed first. A
// positive map voxel size re-voxelizes the region inside the crop volume
// after the merge, bounding accumulator growth to a moving full-resolution
// window plus a voxelized far field. An empty preprocessed scan is a no-op.
func (s *Submap) InsertScan(
	raw, preprocessed *pointcloud.PointCloud,
	mapToRangeSensor *spatialmath.Pose,
	t time.Time,
	carve bool,
) error {
	if preprocessed.Empty() {
		return nil
	}
	p := s.parameters()

	transformed := preprocessed.Clone()
	transformed.Transform(mapToRangeSensor)
	if p.MatchingObjective == MatchingObjectivePointToPlane && !transformed.HasNormals() {
		if err := pointcloud.EstimateNormals(transformed, p.ScanMatcherNormalKNN, 0); err != nil {
			return errors.Wrap(err, "estimating scan normals")
		}
		pointcloud.NormalizeNormals(transformed)
	}

	s.mapMu.Lock()
	defer s.mapMu.Unlock()
	if !s.created {
		s.creationTime = t
		s.created = true
	}
	s.mapToRangeSensor = mapToRangeSensor
	if carve {
		s.carveSparseLocked(raw, mapToRangeSensor, p.MapBuilder.Carving)
	}
	s.mapCloud.Merge(transformed)
	s.mapCropper.SetPose(mapToRangeSensor)
	s.voxelizeInsideCroppingVolumeLocked(p.MapBuilder.MapVoxelSize)
	return nil
}

// InsertScanDenseMap feeds the independent dense layer: the raw scan is
// cropped around the sensor, points without a valid color are dropped, the
// survivors are transformed into the submap-local frame and accumulated
// into the voxel grid. When carve is set and the dense carve interval has
// elapsed, contradicted voxels are dropped. The very first dense scan is
// discarded (sensor warm-up).
func (s *Submap) InsertScanDenseMap(
	raw *pointcloud.PointCloud,
	mapToRangeSensor *spatialmath.Pose,
	t time.Time,
	carve bool,
) error {
	p := s.parameters()

	s.denseMu.Lock()
	defer s.denseMu.Unlock()
	if s.firstDenseScan {
		s.firstDenseScan = false
		return nil
	}

	s.denseCropper.SetPose(spatialmath.NewZeroPose())
	colored := raw.SelectByIndices(validColorIndices(raw))
	cropped := s.denseCropper.Crop(colored)
	cropped.Transform(mapToRangeSensor)
	s.denseMap.Insert(cropped)

	if carve && !s.denseMap.Empty() && s.denseCarveLimiter.DueNow() {
		scan := raw.Clone()
		scan.Transform(mapToRangeSensor)
		keys := CarvedVoxelKeys(scan, s.denseMap, mapToRangeSensor.Translation(), p.DenseMapBuilder.Carving)
		for _, key := range keys {
			s.denseMap.RemoveKey(key)
		}
		s.denseCarveLimiter.Reset()
	}
	return nil
}

// Transform atomically (per layer) moves every owned representation by the
// same rigid transform, keeping them all expressed in a common frame. The
// layer regions are taken strictly one at a time.
func (s *Submap) Transform(pose *spatialmath.Pose) {
	s.mapMu.Lock()
	s.mapCloud.Transform(pose)
	s.mapToRangeSensor = spatialmath.Compose(pose, s.mapToRangeSensor)
	s.submapCenter = pose.TransformPoint(s.submapCenter)
	s.mapMu.Unlock()

	s.denseMu.Lock()
	s.denseMap.Transform(pose)
	s.denseMu.Unlock()

	s.featureMu.Lock()
	if s.sparseFeatureCloud != nil {
		s.sparseFeatureCloud.Transform(pose)
	}
	s.voxelMap.Transform(pose)
	s.featureMu.Unlock()
}

// SetParameters replaces the configuration wholesale, rebuilding the
// cropping volumes, the dense voxel resolution and the index resolution.
// Accumulated geometry is kept; the dense grid is re-bucketed when its
// resolution changes.
func (s *Submap) SetParameters(params Parameters) error {
	s.paramsMu.Lock()
	s.params = params
	s.paramsMu.Unlock()

	if err := s.rebuildCroppers(params); err != nil {
		return err
	}

	s.denseMu.Lock()
	s.denseMap.SetVoxelSize(params.DenseMapBuilder.MapVoxelSize)
	s.denseCarveLimiter.SetInterval(params.DenseMapBuilder.Carving.CarveInterval)
	s.denseMu.Unlock()

	s.mapMu.Lock()
	s.carveLimiter.SetInterval(params.MapBuilder.Carving.CarveInterval)
	s.mapMu.Unlock()

	s.featureMu.Lock()
	s.featureLimiter.SetInterval(params.PlaceRecognition.MinTimeBetweenComputations)
	s.featureMu.Unlock()
	return nil
}

// ComputeFeatures refreshes the sparse feature cloud, its descriptors and
// the spatial index. It is rate limited: once a summary exists, calls
// within the configured minimum interval are no-ops. The index rebuild runs
// on a spawned worker while the descriptor pipeline runs on the calling
// goroutine; both read one guarded snapshot of the accumulator, and the
// worker is always joined before returning, error paths included.
func (s *Submap) ComputeFeatures() error {
	p := s.parameters()

	s.featureMu.Lock()
	fresh := s.features != nil && !s.featureLimiter.DueNow()
	s.featureMu.Unlock()
	if fresh {
		return nil
	}

	s.mapMu.Lock()
	snapshot := s.mapCloud.Clone()
	s.mapMu.Unlock()
	if snapshot.Empty() {
		return errors.New("cannot compute features of an empty submap")
	}

	index := NewVoxelMap(p.SpatialIndexVoxelSize)
	var wg sync.WaitGroup
	wg.Add(1)
	goutils.PanicCapturingGo(func() {
		defer wg.Done()
		index.InsertCloud(VoxelMapLayerSparse, snapshot)
	})
	defer wg.Wait()

	pr := p.PlaceRecognition
	sparse := pointcloud.VoxelDownSample(snapshot, pr.FeatureVoxelSize)
	if err := pointcloud.EstimateNormals(sparse, pr.NormalKNN, pr.NormalEstimationRadius); err != nil {
		return errors.Wrap(err, "estimating feature cloud normals")
	}
	pointcloud.NormalizeNormals(sparse)
	pointcloud.OrientNormalsTowards(sparse, r3.Vector{})
	descriptors, err := pointcloud.ComputeFPFHFeatures(sparse, pr.FeatureRadius, pr.FeatureKNN)
	if err != nil {
		return errors.Wrap(err, "computing feature descriptors")
	}

	wg.Wait()
	s.featureMu.Lock()
	s.sparseFeatureCloud = sparse
	s.features = &FeatureSummary{Descriptors: descriptors, Radius: pr.FeatureRadius}
	s.voxelMap = index
	s.featureLimiter.Reset()
	s.featureMu.Unlock()
	return nil
}

// ComputeSubmapCenter recomputes the centroid of the sparse accumulator and
// marks it valid. Until the first call, SubmapCenter falls back to the
// submap origin.
func (s *Submap) ComputeSubmapCenter() {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()
	s.submapCenter = s.mapCloud.Centroid()
	s.centerComputed = true
}

// SubmapCenter returns the recomputed accumulator centroid, or the origin
// translation while no centroid has been computed.
func (s *Submap) SubmapCenter() r3.Vector {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()
	if s.centerComputed {
		return s.submapCenter
	}
	return s.mapToSubmapOrigin.Translation()
}

// IsEmpty reports whether the sparse accumulator holds no points.
func (s *Submap) IsEmpty() bool {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()
	return s.mapCloud.Empty()
}

// MapToSubmapOrigin returns the transform from the global map frame to this
// submap's local frame.
func (s *Submap) MapToSubmapOrigin() *spatialmath.Pose {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()
	return s.mapToSubmapOrigin
}

// SetMapToSubmapOrigin is called by the owning collection when it places
// the submap in the global frame.
func (s *Submap) SetMapToSubmapOrigin(pose *spatialmath.Pose) {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()
	s.mapToSubmapOrigin = pose
}

// MapToRangeSensor returns the most recent sensor pose used for ingestion.
func (s *Submap) MapToRangeSensor() *spatialmath.Pose {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()
	return s.mapToRangeSensor
}

// MapPointCloud returns a guarded copy of the sparse accumulator.
func (s *Submap) MapPointCloud() *pointcloud.PointCloud {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()
	return s.mapCloud.Clone()
}

// DenseMap returns a guarded copy of the dense voxelized layer.
func (s *Submap) DenseMap() *VoxelizedPointCloud {
	s.denseMu.Lock()
	defer s.denseMu.Unlock()
	return s.denseMap.Clone()
}

// DenseMapPointCloud exports the dense layer's per-voxel means as a cloud.
func (s *Submap) DenseMapPointCloud() *pointcloud.PointCloud {
	s.denseMu.Lock()
	defer s.denseMu.Unlock()
	return s.denseMap.PointCloud()
}

// SparseFeatureCloud returns a guarded copy of the downsampled feature
// cloud, or ErrFeaturesNotComputed before the first successful
// ComputeFeatures.
func (s *Submap) SparseFeatureCloud() (*pointcloud.PointCloud, error) {
	s.featureMu.Lock()
	defer s.featureMu.Unlock()
	if s.sparseFeatureCloud == nil {
		return nil, ErrFeaturesNotComputed
	}
	return s.sparseFeatureCloud.Clone(), nil
}

// Features returns the feature summary, or ErrFeaturesNotComputed before
// the first successful ComputeFeatures. Calling it earlier is a caller
// ordering bug.
func (s *Submap) Features() (*FeatureSummary, error) {
	s.featureMu.Lock()
	defer s.featureMu.Unlock()
	if s.features == nil {
		return nil, ErrFeaturesNotComputed
	}
	return s.features, nil
}

// VoxelMapSnapshot returns a guarded copy of the spatial index.
func (s *Submap) VoxelMapSnapshot() *VoxelMap {
	s.featureMu.Lock()
	defer s.featureMu.Unlock()
	return s.voxelMap.Clone()
}

// carveSparseLocked runs the rate-limited sparse carve. mapMu must be held.
func (s *Submap) carveSparseLocked(raw *pointcloud.PointCloud, pose *spatialmath.Pose, params SpaceCarvingParameters) {
	if s.mapCloud.Empty() || !s.carveLimiter.DueNow() {
		return
	}
	start := s.clk.Now()
	scan := raw.Clone()
	scan.Transform(pose)
	s.wideCropper.SetPose(pose)
	candidates := s.wideCropper.IndicesWithinVolume(s.mapCloud)
	carved := CarvedIndices(scan, s.mapCloud, pose.Translation(), candidates, params)
	s.mapCloud.RemoveByIndices(carved)
	s.carveLimiter.Reset()

	s.carveStats.runs++
	s.carveStats.removed += len(carved)
	s.carveStats.total += s.clk.Now().Sub(start)
	if since := s.clk.Now().Sub(s.carveStats.lastReport); since > carveStatsPeriod && s.carveStats.runs > 0 {
		s.logger.Debugw("space carving stats",
			"submap", s.id,
			"runs", s.carveStats.runs,
			"removed", s.carveStats.removed,
			"avg", s.carveStats.total/time.Duration(s.carveStats.runs),
		)
		s.carveStats = carveStatistics{lastReport: s.clk.Now()}
	}
}

// voxelizeInsideCroppingVolumeLocked re-voxelizes the portion of the
// accumulator inside the crop volume, replacing it in place. mapMu must be
// held.
func (s *Submap) voxelizeInsideCroppingVolumeLocked(voxelSize float64) {
	if voxelSize <= 0 {
		return
	}
	inside := s.mapCropper.IndicesWithinVolume(s.mapCloud)
	if len(inside) == 0 {
		return
	}
	voxelized := pointcloud.VoxelDownSample(s.mapCloud.SelectByIndices(inside), voxelSize)
	s.mapCloud.RemoveByIndices(inside)
	s.mapCloud.Merge(voxelized)
}

func (s *Submap) rebuildCroppers(params Parameters) error {
	mb := params.MapBuilder.Cropper
	mapCropper, err := NewCroppingVolume(mb.Kind, mb.Radius, mb.MinZ, mb.MaxZ)
	if err != nil {
		return errors.Wrap(err, "building map cropper")
	}
	wideFactor := params.MapBuilder.WideCropFactor
	if wideFactor <= 0 {
		wideFactor = 1
	}
	wideCropper, err := NewCroppingVolume(mb.Kind, wideFactor*mb.Radius, wideFactor*mb.MinZ, wideFactor*mb.MaxZ)
	if err != nil {
		return errors.Wrap(err, "building wide carve cropper")
	}
	db := params.DenseMapBuilder.Cropper
	denseFactor := params.DenseMapBuilder.CropRadiusMultiplier
	if denseFactor <= 0 {
		denseFactor = 1
	}
	denseCropper, err := NewCroppingVolume(db.Kind, denseFactor*db.Radius, db.MinZ, db.MaxZ)
	if err != nil {
		return errors.Wrap(err, "building dense map cropper")
	}

	s.mapMu.Lock()
	s.mapCropper = mapCropper
	s.wideCropper = wideCropper
	s.mapMu.Unlock()

	s.denseMu.Lock()
	s.denseCropper = denseCropper
	s.denseMu.Unlock()
	return nil
}

func (s *Submap) parameters() Parameters {
	s.paramsMu.RLock()
	defer s.paramsMu.RUnlock()
	return s.params
}

func validColorIndices(pc *pointcloud.PointCloud) []int {
	var idxs []int
	for i := 0; i < pc.Size(); i++ {
		if _, valid := pc.Color(i); valid {
			idxs = append(idxs, i)
		}
	}
	return idxs
}
