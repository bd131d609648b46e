package geom

import "gonum.org/v1/gonum/mat"

// PoseNoise holds per-axis standard deviations for a pose, rotation axes
// first (radians) then translation axes (meters).
type PoseNoise [6]float64

// NewPoseNoise builds an isotropic-per-block noise model from a single
// rotation sigma and a single translation sigma.
func NewPoseNoise(rotSigma, transSigma float64) PoseNoise {
	return PoseNoise{rotSigma, rotSigma, rotSigma, transSigma, transSigma, transSigma}
}

// Sigmas returns the standard deviations as a slice, tangent-ordered.
func (n PoseNoise) Sigmas() []float64 {
	return []float64{n[0], n[1], n[2], n[3], n[4], n[5]}
}

// PoseEstimate is a pose with a validity flag and an optional 6x6 marginal
// covariance (tangent-ordered, rotation block first). The zero value is
// invalid.
type PoseEstimate struct {
	Pose  Pose
	Valid bool
	Cov   *mat.SymDense
}

// NewPoseEstimate returns a valid estimate without covariance.
func NewPoseEstimate(p Pose) PoseEstimate {
	return PoseEstimate{Pose: p, Valid: true}
}

// WithCovariance returns a copy of the estimate carrying cov.
func (pe PoseEstimate) WithCovariance(cov *mat.SymDense) PoseEstimate {
	pe.Cov = cov
	return pe
}

// RotateCovariance conjugates a 6x6 tangent covariance by the rotation of
// frame: blockdiag(R,R) · cov · blockdiag(R,R)ᵀ. Used to express a child
// frame's uncertainty in a parent frame while ignoring the parent's own
// uncertainty.
func RotateCovariance(frame Pose, cov *mat.SymDense) *mat.SymDense {
	if cov == nil {
		return nil
	}
	r := frame.RotationMatrix()
	rr := mat.NewDense(6, 6, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			rr.Set(i, j, r[3*i+j])
			rr.Set(i+3, j+3, r[3*i+j])
		}
	}
	var tmp, full mat.Dense
	tmp.Mul(rr, cov)
	full.Mul(&tmp, rr.T())
	out := mat.NewSymDense(6, nil)
	for i := 0; i < 6; i++ {
		for j := i; j < 6; j++ {
			out.SetSym(i, j, 0.5*(full.At(i, j)+full.At(j, i)))
		}
	}
	return out
}
