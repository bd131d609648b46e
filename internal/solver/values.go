// Package solver is the nonlinear least-squares backend: a variable store,
// a factor graph of differentiable residuals, a Levenberg-Marquardt solve
// loop, and marginal covariance extraction at the optimum.
//
// The package is deliberately problem-agnostic: factors reference variables
// through keyspace keys and supply residuals (and optionally analytic
// Jacobians); everything problem-specific lives with the caller.
package solver

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/fiducial-data/tagmapper/internal/geom"
	"github.com/fiducial-data/tagmapper/internal/keyspace"
)

// ErrDuplicateVariable reports an insert for a key that already exists.
// The store is left unchanged.
var ErrDuplicateVariable = errors.New("duplicate variable")

// ErrUnknownVariable reports a lookup for a key that was never inserted.
var ErrUnknownVariable = errors.New("unknown variable")

// Values maps variable keys to their current estimates. Pose-valued and
// point-valued variables live side by side; a key holds exactly one kind.
// Inserts never overwrite.
type Values struct {
	poses  map[keyspace.Key]geom.Pose
	points map[keyspace.Key]r3.Vec
}

// NewValues returns an empty store.
func NewValues() *Values {
	return &Values{
		poses:  make(map[keyspace.Key]geom.Pose),
		points: make(map[keyspace.Key]r3.Vec),
	}
}

// Has reports whether the key exists in the store.
func (v *Values) Has(k keyspace.Key) bool {
	if _, ok := v.poses[k]; ok {
		return true
	}
	_, ok := v.points[k]
	return ok
}

// Len returns the number of variables in the store.
func (v *Values) Len() int {
	return len(v.poses) + len(v.points)
}

// InsertPose adds a pose variable. It fails with ErrDuplicateVariable if
// the key already exists, leaving the store unchanged.
func (v *Values) InsertPose(k keyspace.Key, p geom.Pose) error {
	if v.Has(k) {
		return fmt.Errorf("insert %v: %w", k, ErrDuplicateVariable)
	}
	v.poses[k] = p
	return nil
}

// InsertPoint adds a point variable. It fails with ErrDuplicateVariable if
// the key already exists, leaving the store unchanged.
func (v *Values) InsertPoint(k keyspace.Key, p r3.Vec) error {
	if v.Has(k) {
		return fmt.Errorf("insert %v: %w", k, ErrDuplicateVariable)
	}
	v.points[k] = p
	return nil
}

// UpsertPoint sets a point variable, overwriting any previous value. Used
// for derived diagnostics entries (world corners) refreshed after a solve.
func (v *Values) UpsertPoint(k keyspace.Key, p r3.Vec) {
	delete(v.poses, k)
	v.points[k] = p
}

// Pose returns the pose stored under k.
func (v *Values) Pose(k keyspace.Key) (geom.Pose, bool) {
	p, ok := v.poses[k]
	return p, ok
}

// Point returns the point stored under k.
func (v *Values) Point(k keyspace.Key) (r3.Vec, bool) {
	p, ok := v.points[k]
	return p, ok
}

// Clone returns a deep copy of the store.
func (v *Values) Clone() *Values {
	out := NewValues()
	for k, p := range v.poses {
		out.poses[k] = p
	}
	for k, p := range v.points {
		out.points[k] = p
	}
	return out
}

// ReplaceAll atomically swaps the store's contents for those of o. This is
// the post-solve commit: earlier values are discarded, not retained.
func (v *Values) ReplaceAll(o *Values) {
	c := o.Clone()
	v.poses = c.poses
	v.points = c.points
}

// Keys returns all keys in ascending packed order.
func (v *Values) Keys() []keyspace.Key {
	keys := make([]keyspace.Key, 0, v.Len())
	for k := range v.poses {
		keys = append(keys, k)
	}
	for k := range v.points {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// CategoryKeys returns the keys of one category in ascending packed order;
// for world corners this is frame order, then tag, then corner.
func (v *Values) CategoryKeys(cat keyspace.Category) []keyspace.Key {
	var keys []keyspace.Key
	for _, k := range v.Keys() {
		if k.Category() == cat {
			keys = append(keys, k)
		}
	}
	return keys
}

// tangentDim returns the dimension of a variable's tangent space.
func tangentDim(k keyspace.Key) int {
	if k.Category() == keyspace.WorldCorner {
		return 3
	}
	return 6
}

// retract applies a tangent-space update to the variable under k in place.
func (v *Values) retract(k keyspace.Key, delta []float64) error {
	if p, ok := v.poses[k]; ok {
		var d [6]float64
		copy(d[:], delta)
		v.poses[k] = p.Retract(d)
		return nil
	}
	if p, ok := v.points[k]; ok {
		v.points[k] = r3.Add(p, r3.Vec{X: delta[0], Y: delta[1], Z: delta[2]})
		return nil
	}
	return fmt.Errorf("retract %v: %w", k, ErrUnknownVariable)
}
