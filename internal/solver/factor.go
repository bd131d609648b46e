package solver

import (
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"

	"github.com/fiducial-data/tagmapper/internal/geom"
	"github.com/fiducial-data/tagmapper/internal/keyspace"
)

// Factor is one residual term of the least-squares cost. Residual is
// evaluated at the current store values; the solver whitens it by the
// factor's noise model.
type Factor interface {
	Keys() []keyspace.Key
	Dim() int
	Residual(vals *Values) []float64
	Noise() NoiseModel
}

// AnalyticFactor is implemented by factors that carry closed-form partial
// derivatives. Jacobian returns dResidual/dTangent for argument arg of
// Keys(); the solver falls back to finite differences otherwise.
type AnalyticFactor interface {
	Factor
	Jacobian(vals *Values, arg int) *mat.Dense
}

// PriorFactor anchors a pose variable to a known absolute value.
type PriorFactor struct {
	Key   keyspace.Key
	Prior geom.Pose
	noise NoiseModel
}

// NewPriorFactor builds a prior on key with tangent-ordered sigmas.
func NewPriorFactor(key keyspace.Key, prior geom.Pose, noise NoiseModel) *PriorFactor {
	return &PriorFactor{Key: key, Prior: prior, noise: noise}
}

func (f *PriorFactor) Keys() []keyspace.Key { return []keyspace.Key{f.Key} }
func (f *PriorFactor) Dim() int             { return 6 }
func (f *PriorFactor) Noise() NoiseModel    { return f.noise }

// Residual is the tangent-space discrepancy Log(prior⁻¹ ∘ current); zero
// when the variable sits exactly on the prior.
func (f *PriorFactor) Residual(vals *Values) []float64 {
	cur, ok := vals.Pose(f.Key)
	if !ok {
		return make([]float64, 6)
	}
	d := geom.Local(f.Prior, cur)
	return d[:]
}

// numericJacobian linearizes factor f around vals with central differences
// on the variable's tangent space. vals is restored before returning.
func numericJacobian(f Factor, vals *Values, arg int) *mat.Dense {
	key := f.Keys()[arg]
	n := tangentDim(key)
	jac := mat.NewDense(f.Dim(), n, nil)

	origPose, isPose := vals.Pose(key)
	origPoint, _ := vals.Point(key)

	eval := func(y, x []float64) {
		if isPose {
			vals.poses[key] = origPose
		} else {
			vals.points[key] = origPoint
		}
		if err := vals.retract(key, x); err != nil {
			for i := range y {
				y[i] = 0
			}
			return
		}
		copy(y, f.Residual(vals))
	}
	fd.Jacobian(jac, eval, make([]float64, n), &fd.JacobianSettings{Formula: fd.Central})

	if isPose {
		vals.poses[key] = origPose
	} else {
		vals.points[key] = origPoint
	}
	return jac
}
