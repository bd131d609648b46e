package graph

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/fiducial-data/tagmapper/internal/entity"
	"github.com/fiducial-data/tagmapper/internal/keyspace"
	"github.com/fiducial-data/tagmapper/internal/monitoring"
	"github.com/fiducial-data/tagmapper/internal/solver"
)

// ErrNonStaticConstraint reports a distance or position measurement against
// a dynamic body; those constraints only make sense for bodies whose pose
// is frame-independent.
var ErrNonStaticConstraint = errors.New("measurement requires static bodies")

// ErrMissingAnchor reports a measurement referencing a variable that does
// not exist yet. This is a recoverable condition of incremental
// construction; the caller may retry once the state is anchored.
var ErrMissingAnchor = errors.New("anchor variable not yet in store")

// ErrInvalidMeasurement reports a non-finite measured value.
var ErrInvalidMeasurement = errors.New("invalid measurement value")

// AddDistanceMeasurement appends a corner-to-corner distance constraint
// between two tags on static bodies. Returns without adding a factor if
// either body is dynamic or any referenced body or tag variable is missing.
func (tg *TagGraph) AddDistanceMeasurement(rb1, rb2 *entity.RigidBody, tag1 *entity.Tag, corner1 int, tag2 *entity.Tag, corner2 int, distance, noise float64) error {
	if !rb1.Static || !rb2.Static {
		monitoring.Logf("graph: distance measurement against non-static body (%s, %s)", rb1.Name, rb2.Name)
		return fmt.Errorf("distance tag %d to %d: %w", tag1.ID, tag2.ID, ErrNonStaticConstraint)
	}
	if !isFinite(distance) || !isFinite(noise) || noise <= 0 {
		return fmt.Errorf("distance tag %d to %d: %w", tag1.ID, tag2.ID, ErrInvalidMeasurement)
	}
	b1Key, err := keyspace.BodyPoseKey(rb1.Index, 0)
	if err != nil {
		return err
	}
	b2Key, err := keyspace.BodyPoseKey(rb2.Index, 0)
	if err != nil {
		return err
	}
	t1Key, err := keyspace.TagTransformKey(tag1.ID)
	if err != nil {
		return err
	}
	t2Key, err := keyspace.TagTransformKey(tag2.ID)
	if err != nil {
		return err
	}
	for _, k := range []keyspace.Key{b1Key, b2Key, t1Key, t2Key} {
		if !tg.values.Has(k) {
			return fmt.Errorf("distance tag %d to %d, key %v: %w", tag1.ID, tag2.ID, k, ErrMissingAnchor)
		}
	}
	monitoring.Logf("graph: adding distance measurement: tag %d to %d", tag1.ID, tag2.ID)
	tg.graph.Add(&distanceFactor{
		body1Key: b1Key, body2Key: b2Key,
		tag1Key: t1Key, tag2Key: t2Key,
		corner1:  tag1.ObjectCorner(corner1),
		corner2:  tag2.ObjectCorner(corner2),
		measured: distance,
		noise:    solver.Isotropic(1, noise),
	})
	return nil
}

// AddPositionMeasurement appends a constraint on the projection of a tag
// corner onto a fixed unit direction. Static-body-only, same fail-fast
// rules as AddDistanceMeasurement.
func (tg *TagGraph) AddPositionMeasurement(rb *entity.RigidBody, tag *entity.Tag, corner int, dir r3.Vec, length, noise float64) error {
	if !rb.Static {
		monitoring.Logf("graph: position measurement against non-static body %s", rb.Name)
		return fmt.Errorf("position tag %d: %w", tag.ID, ErrNonStaticConstraint)
	}
	if !isFinite(length) || !isFinite(noise) || noise <= 0 {
		return fmt.Errorf("position tag %d: %w", tag.ID, ErrInvalidMeasurement)
	}
	bodyKey, err := keyspace.BodyPoseKey(rb.Index, 0)
	if err != nil {
		return err
	}
	tagKey, err := keyspace.TagTransformKey(tag.ID)
	if err != nil {
		return err
	}
	if !tg.values.Has(bodyKey) || !tg.values.Has(tagKey) {
		return fmt.Errorf("position tag %d: %w", tag.ID, ErrMissingAnchor)
	}
	monitoring.Logf("graph: adding position measurement: tag %d", tag.ID)
	tg.graph.Add(&positionFactor{
		bodyKey: bodyKey,
		tagKey:  tagKey,
		corner:  tag.ObjectCorner(corner),
		dir:     dir,
		length:  length,
		noise:   solver.Isotropic(1, noise),
	})
	return nil
}
