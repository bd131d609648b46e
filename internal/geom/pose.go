package geom

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Pose is a 6-DOF rigid transform: a unit-quaternion rotation followed by a
// translation. Applying a pose maps points from the child frame into the
// parent frame: X_parent = R*X_child + T.
type Pose struct {
	Q quat.Number // unit rotation quaternion
	T r3.Vec
}

// Identity returns the identity transform.
func Identity() Pose {
	return Pose{Q: quat.Number{Real: 1}}
}

// NewPose builds a pose from an axis-angle rotation (axis need not be
// normalized) and a translation.
func NewPose(angle float64, axis, translation r3.Vec) Pose {
	return Pose{Q: quat.Number(r3.NewRotation(angle, axis)), T: translation}
}

// Transform applies the pose to a point: R*p + T.
func (a Pose) Transform(p r3.Vec) r3.Vec {
	return r3.Add(r3.Rotation(a.Q).Rotate(p), a.T)
}

// Compose chains two transforms: (a∘b).Transform(p) == a.Transform(b.Transform(p)).
func (a Pose) Compose(b Pose) Pose {
	return Pose{
		Q: quat.Mul(a.Q, b.Q),
		T: r3.Add(r3.Rotation(a.Q).Rotate(b.T), a.T),
	}
}

// Inverse returns the transform mapping parent-frame points back into the
// child frame.
func (a Pose) Inverse() Pose {
	qi := quat.Conj(a.Q)
	return Pose{
		Q: qi,
		T: r3.Rotation(qi).Rotate(r3.Scale(-1, a.T)),
	}
}

// RotationMatrix returns the 3x3 rotation matrix in row-major order.
func (a Pose) RotationMatrix() [9]float64 {
	w, x, y, z := a.Q.Real, a.Q.Imag, a.Q.Jmag, a.Q.Kmag
	return [9]float64{
		1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y),
		2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x),
		2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y),
	}
}

// normalize rescales Q to unit length. Composition chains drift slowly away
// from the unit sphere; retraction renormalizes after every update.
func (a Pose) normalize() Pose {
	n := math.Sqrt(a.Q.Real*a.Q.Real + a.Q.Imag*a.Q.Imag + a.Q.Jmag*a.Q.Jmag + a.Q.Kmag*a.Q.Kmag)
	if n == 0 {
		return Identity()
	}
	a.Q = quat.Scale(1/n, a.Q)
	return a
}

// Exp maps a 6-vector tangent (rotation vector first, then translation) onto
// a pose. The translation part is taken verbatim, which together with Log
// forms a valid local chart around the identity.
func Exp(xi [6]float64) Pose {
	omega := r3.Vec{X: xi[0], Y: xi[1], Z: xi[2]}
	angle := r3.Norm(omega)
	q := quat.Number{Real: 1}
	if angle > 0 {
		q = quat.Number(r3.NewRotation(angle, omega))
	}
	return Pose{Q: q, T: r3.Vec{X: xi[3], Y: xi[4], Z: xi[5]}}
}

// Log is the inverse of Exp: rotation vector followed by the translation.
func Log(p Pose) [6]float64 {
	q := p.Q
	if q.Real < 0 { // keep the short way around
		q = quat.Scale(-1, q)
	}
	vn := math.Sqrt(q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
	var omega r3.Vec
	if vn > 1e-15 {
		angle := 2 * math.Atan2(vn, q.Real)
		omega = r3.Scale(angle/vn, r3.Vec{X: q.Imag, Y: q.Jmag, Z: q.Kmag})
	}
	return [6]float64{omega.X, omega.Y, omega.Z, p.T.X, p.T.Y, p.T.Z}
}

// Retract perturbs the pose by a tangent update: p ∘ Exp(delta).
func (a Pose) Retract(delta [6]float64) Pose {
	return a.Compose(Exp(delta)).normalize()
}

// Local computes the tangent coordinates of b in the chart centered at a,
// i.e. Log(a⁻¹ ∘ b). Local(a, a.Retract(d)) ≈ d for small d.
func Local(a, b Pose) [6]float64 {
	return Log(a.Inverse().Compose(b))
}

// ApproxEqual reports whether two poses agree to within tol, measured in the
// tangent space.
func (a Pose) ApproxEqual(b Pose, tol float64) bool {
	d := Local(a, b)
	for _, v := range d {
		if math.Abs(v) > tol {
			return false
		}
	}
	return true
}

func (a Pose) String() string {
	return fmt.Sprintf("Pose{q=(%.4f %.4f %.4f %.4f) t=(%.4f %.4f %.4f)}",
		a.Q.Real, a.Q.Imag, a.Q.Jmag, a.Q.Kmag, a.T.X, a.T.Y, a.T.Z)
}
