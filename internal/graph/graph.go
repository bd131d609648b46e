// Package graph builds and owns the tag-mapping optimization problem: it
// maps observed cameras, bodies, and tags onto optimization variables,
// appends measurement factors, orchestrates solves, and serves pose queries
// against the latest solution.
//
// A TagGraph is exclusively owned by one caller and is not safe for
// concurrent use; the surrounding application sequences one mutation/query
// cycle per processing frame. All additions for a frame must complete
// before Optimize runs, since soft factors silently skip anchors that do
// not exist yet.
package graph

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/fiducial-data/tagmapper/internal/entity"
	"github.com/fiducial-data/tagmapper/internal/keyspace"
	"github.com/fiducial-data/tagmapper/internal/monitoring"
	"github.com/fiducial-data/tagmapper/internal/solver"
)

// cornerRef remembers how a world-corner diagnostics entry is derived so it
// can be refreshed from solved poses after a commit.
type cornerRef struct {
	bodyKey keyspace.Key
	tagKey  keyspace.Key
	corner  r3.Vec
}

// TagGraph is the incremental pose-graph engine. Zero value is not usable;
// construct with New.
type TagGraph struct {
	values *solver.Values
	graph  *solver.Graph

	pixelNoise    solver.NoiseModel
	maxIterations int

	numProjectionFactors int
	optimizerError       float64
	optimizerIterations  int

	worldCorners map[keyspace.Key]cornerRef
	marginals    *solver.Marginals
}

// New returns an empty graph with 1-pixel isotropic reprojection noise.
func New() *TagGraph {
	return &TagGraph{
		values:        solver.NewValues(),
		graph:         solver.NewGraph(),
		pixelNoise:    solver.Isotropic(2, 1.0),
		maxIterations: 100,
		worldCorners:  make(map[keyspace.Key]cornerRef),
	}
}

// SetPixelNoise sets the isotropic pixel sigma applied to reprojection
// factors added from now on; existing factors keep the noise they were
// built with.
func (tg *TagGraph) SetPixelNoise(numPix float64) {
	tg.pixelNoise = solver.Isotropic(2, numPix)
}

// MaxBodyCount returns the largest number of rigid bodies the key encoding
// supports, for validation by callers.
func (tg *TagGraph) MaxBodyCount() int {
	return keyspace.MaxBodyCount
}

// NumProjectionFactors returns the number of reprojection factors added so
// far; the normalized optimizer error divides by it.
func (tg *TagGraph) NumProjectionFactors() int {
	return tg.numProjectionFactors
}

// AddTagAnchors registers new tags on a body: each tag's tag-to-body
// transform is inserted with its supplied estimate as the initial guess,
// and pinned with a prior when the pose is known a priori. A tag id that is
// already registered is rejected without mutating anything.
func (tg *TagGraph) AddTagAnchors(rb *entity.RigidBody, tags []*entity.Tag) error {
	for _, tag := range tags {
		key, err := keyspace.TagTransformKey(tag.ID)
		if err != nil {
			return err
		}
		if tg.values.Has(key) {
			monitoring.Logf("graph: duplicate tag id inserted: %d", tag.ID)
			return fmt.Errorf("tag %d: %w", tag.ID, solver.ErrDuplicateVariable)
		}
		if err := tg.values.InsertPose(key, tag.PoseEstimate.Pose); err != nil {
			return err
		}
		if tag.HasKnownPose {
			tg.graph.AddPrior(key, tag.PoseEstimate.Pose, solver.Diagonal(tag.Noise.Sigmas()))
		}
	}
	return nil
}

// AddObservation appends reprojection factors for the tags a camera saw on
// a body at the given frame. Camera and body pose variables are created
// lazily (per frame when dynamic, at frame 0 when static; a static body
// with a known pose gets a prior on first insertion). Tags without a valid
// pose estimate, or not yet anchored via AddTagAnchors, are skipped with a
// warning. Requires valid camera and body
// pose estimates; otherwise the observation is dropped with a warning.
func (tg *TagGraph) AddObservation(cam *entity.Camera, rb *entity.RigidBody, tags []*entity.Tag, frame uint64) error {
	if len(tags) == 0 {
		monitoring.Logf("graph: no tags for camera %s in frame %d", cam.Name, frame)
		return nil
	}
	if !cam.PoseEstimate.Valid {
		monitoring.Logf("graph: no pose estimate for camera %s in frame %d", cam.Name, frame)
		return nil
	}
	if !rb.PoseEstimate.Valid {
		return nil
	}
	model := cam.Model()
	if model == nil {
		monitoring.Logf("graph: camera %s has no distortion model", cam.Name)
		return nil
	}

	camFrame := frame
	if cam.Static {
		camFrame = 0
	}
	camKey, err := keyspace.CameraPoseKey(cam.Index, camFrame)
	if err != nil {
		return err
	}
	if !tg.values.Has(camKey) {
		if err := tg.values.InsertPose(camKey, cam.PoseEstimate.Pose); err != nil {
			return err
		}
	}

	bodyFrame := frame
	if rb.Static {
		bodyFrame = 0
	}
	bodyKey, err := keyspace.BodyPoseKey(rb.Index, bodyFrame)
	if err != nil {
		return err
	}
	if !tg.values.Has(bodyKey) {
		if err := tg.values.InsertPose(bodyKey, rb.PoseEstimate.Pose); err != nil {
			return err
		}
		if rb.Static && rb.HasPosePrior {
			monitoring.Logf("graph: adding prior for body: %s", rb.Name)
			tg.graph.AddPrior(bodyKey, rb.PoseEstimate.Pose, solver.Diagonal(rb.Noise.Sigmas()))
		}
	}

	for _, tag := range tags {
		if !tag.PoseEstimate.Valid {
			monitoring.Logf("graph: tag %d has invalid pose", tag.ID)
			continue
		}
		tagKey, err := keyspace.TagTransformKey(tag.ID)
		if err != nil {
			return err
		}
		if !tg.values.Has(tagKey) {
			// Soft factors only reference anchored variables; an unanchored
			// tag is skipped, not queued.
			monitoring.Logf("graph: tag %d observed before being anchored, skipping", tag.ID)
			continue
		}
		for i := 0; i < 4; i++ {
			corner := tag.ObjectCorner(i)
			tg.graph.Add(&reprojectionFactor{
				camKey:  camKey,
				bodyKey: bodyKey,
				tagKey:  tagKey,
				corner:  corner,
				measure: tag.ImageCorners[i],
				model:   model,
				noise:   tg.pixelNoise,
			})
			tg.numProjectionFactors++

			wk, err := keyspace.WorldCornerKey(tag.ID, i, bodyFrame)
			if err != nil {
				return err
			}
			tg.worldCorners[wk] = cornerRef{bodyKey: bodyKey, tagKey: tagKey, corner: corner}
			tg.refreshWorldCorner(wk)
		}
	}
	return nil
}

// refreshWorldCorner recomputes one derived world-corner entry from the
// current pose values.
func (tg *TagGraph) refreshWorldCorner(wk keyspace.Key) {
	ref, ok := tg.worldCorners[wk]
	if !ok {
		return
	}
	bodyPose, ok1 := tg.values.Pose(ref.bodyKey)
	tagPose, ok2 := tg.values.Pose(ref.tagKey)
	if !ok1 || !ok2 {
		return
	}
	tg.values.UpsertPoint(wk, worldPoint(bodyPose, tagPose, ref.corner))
}

// Optimize runs the solver over the current factor graph, starting from the
// store's values, and commits the solution by atomically replacing the
// store. The normalized error (final cost divided by the reprojection
// factor count) and iteration count are retained for inspection;
// non-convergence is not an error.
func (tg *TagGraph) Optimize() error {
	res, err := solver.Solve(tg.graph, tg.values, solver.Params{
		MaxIterations: tg.maxIterations,
		AbsTol:        1e-10,
		RelTol:        0,
	})
	if err != nil {
		return fmt.Errorf("optimize: %w", err)
	}
	ni := 1.0
	if tg.numProjectionFactors > 0 {
		ni = 1.0 / float64(tg.numProjectionFactors)
	}
	tg.optimizerError = res.FinalCost * ni
	tg.optimizerIterations = res.Iterations

	tg.values.ReplaceAll(res.Values)
	for wk := range tg.worldCorners {
		tg.refreshWorldCorner(wk)
	}
	return nil
}

// NormalizedError returns the last solve's final cost divided by the number
// of reprojection factors, comparable across problems of different size.
func (tg *TagGraph) NormalizedError() float64 {
	return tg.optimizerError
}

// Iterations returns the iteration count of the last solve.
func (tg *TagGraph) Iterations() int {
	return tg.optimizerIterations
}

// ComputeMarginals linearizes the graph at the current (solved) values and
// prepares covariance queries. Valid only after a successful Optimize;
// marginals go stale on any later graph mutation and callers are
// responsible for recomputing.
func (tg *TagGraph) ComputeMarginals() error {
	m, err := solver.ComputeMarginals(tg.graph, tg.values)
	if err != nil {
		return fmt.Errorf("compute marginals: %w", err)
	}
	tg.marginals = m
	return nil
}
