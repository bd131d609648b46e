package graph

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/fiducial-data/tagmapper/internal/entity"
	"github.com/fiducial-data/tagmapper/internal/geom"
	"github.com/fiducial-data/tagmapper/internal/keyspace"
	"github.com/fiducial-data/tagmapper/internal/solver"
)

// distanceBetween returns the Euclidean distance between p1 and p2. When h1
// or h2 is non-nil it receives the 1x3 gradient with respect to that point:
// the unit vector along p1-p2, sign flipped for p2.
func distanceBetween(p1, p2 r3.Vec, h1, h2 []float64) float64 {
	d := r3.Sub(p1, p2)
	r := r3.Norm(d)
	if r > 0 {
		if h1 != nil {
			h1[0], h1[1], h1[2] = d.X/r, d.Y/r, d.Z/r
		}
		if h2 != nil {
			h2[0], h2[1], h2[2] = -d.X/r, -d.Y/r, -d.Z/r
		}
	}
	return r
}

// projectAlong returns the dot product of p with direction n. The gradient
// with respect to p is n, and with respect to n is p: the standard
// bilinear-form differential.
func projectAlong(p, n r3.Vec, hp, hn []float64) float64 {
	if hp != nil {
		hp[0], hp[1], hp[2] = n.X, n.Y, n.Z
	}
	if hn != nil {
		hn[0], hn[1], hn[2] = p.X, p.Y, p.Z
	}
	return r3.Dot(p, n)
}

// worldPoint composes X_w = T_w_b ∘ T_b_o ∘ corner.
func worldPoint(bodyPose, tagPose geom.Pose, corner r3.Vec) r3.Vec {
	return bodyPose.Transform(tagPose.Transform(corner))
}

// pointPoseJacobian fills dst (3x6) with d(T∘Exp(δ)·local)/dδ evaluated at
// δ=0, pre-multiplied by preRot (a row-major rotation of the enclosing
// frames). Columns are rotation tangent then translation tangent:
// [-R·[local]×  |  R] with R = preRot·rot(T).
func pointPoseJacobian(dst *mat.Dense, preRot [9]float64, pose geom.Pose, local r3.Vec) {
	p := pose.RotationMatrix()
	var r [9]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[3*i+j] = preRot[3*i+0]*p[0+j] + preRot[3*i+1]*p[3+j] + preRot[3*i+2]*p[6+j]
		}
	}
	// [local]× columns
	lx := [9]float64{
		0, -local.Z, local.Y,
		local.Z, 0, -local.X,
		-local.Y, local.X, 0,
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var rot float64
			for k := 0; k < 3; k++ {
				rot += r[3*i+k] * lx[3*k+j]
			}
			dst.Set(i, j, -rot)
			dst.Set(i, j+3, r[3*i+j])
		}
	}
}

var identityRot = [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}

// reprojectionFactor compares the predicted pixel of one tag corner against
// its measured image location. Variables: camera pose, body pose, tag
// transform. Derivatives come from the solver's finite-difference
// linearization of the full projection chain.
type reprojectionFactor struct {
	camKey  keyspace.Key
	bodyKey keyspace.Key
	tagKey  keyspace.Key
	corner  r3.Vec
	measure r2.Vec
	model   entity.DistortionModel
	noise   solver.NoiseModel
}

func (f *reprojectionFactor) Keys() []keyspace.Key {
	return []keyspace.Key{f.camKey, f.bodyKey, f.tagKey}
}
func (f *reprojectionFactor) Dim() int                 { return 2 }
func (f *reprojectionFactor) Noise() solver.NoiseModel { return f.noise }

func (f *reprojectionFactor) Residual(vals *solver.Values) []float64 {
	camPose, ok1 := vals.Pose(f.camKey)
	bodyPose, ok2 := vals.Pose(f.bodyKey)
	tagPose, ok3 := vals.Pose(f.tagKey)
	if !ok1 || !ok2 || !ok3 {
		return []float64{0, 0}
	}
	xw := worldPoint(bodyPose, tagPose, f.corner)
	xc := camPose.Inverse().Transform(xw)
	if xc.Z < 1e-9 {
		// Point at or behind the image plane; push the optimizer away with a
		// large constant residual instead of dividing by zero.
		return []float64{1e6, 1e6}
	}
	px := f.model.Uncalibrate(r2.Vec{X: xc.X / xc.Z, Y: xc.Y / xc.Z})
	return []float64{px.X - f.measure.X, px.Y - f.measure.Y}
}

// distanceFactor constrains the distance between two composed world corners.
// Carries analytic Jacobians: the point-level gradient (unit difference
// vector) chained with the rigid-transform point Jacobians.
type distanceFactor struct {
	body1Key, body2Key keyspace.Key
	tag1Key, tag2Key   keyspace.Key
	corner1, corner2   r3.Vec
	measured           float64
	noise              solver.NoiseModel
}

func (f *distanceFactor) Keys() []keyspace.Key {
	return []keyspace.Key{f.body1Key, f.body2Key, f.tag1Key, f.tag2Key}
}
func (f *distanceFactor) Dim() int                 { return 1 }
func (f *distanceFactor) Noise() solver.NoiseModel { return f.noise }

func (f *distanceFactor) points(vals *solver.Values) (x1, x2 r3.Vec, b1, b2, t1, t2 geom.Pose, ok bool) {
	b1, ok1 := vals.Pose(f.body1Key)
	b2, ok2 := vals.Pose(f.body2Key)
	t1, ok3 := vals.Pose(f.tag1Key)
	t2, ok4 := vals.Pose(f.tag2Key)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return x1, x2, b1, b2, t1, t2, false
	}
	return worldPoint(b1, t1, f.corner1), worldPoint(b2, t2, f.corner2), b1, b2, t1, t2, true
}

func (f *distanceFactor) Residual(vals *solver.Values) []float64 {
	x1, x2, _, _, _, _, ok := f.points(vals)
	if !ok {
		return []float64{0}
	}
	return []float64{distanceBetween(x1, x2, nil, nil) - f.measured}
}

func (f *distanceFactor) Jacobian(vals *solver.Values, arg int) *mat.Dense {
	x1, x2, b1, b2, t1, t2, ok := f.points(vals)
	if !ok {
		return mat.NewDense(1, 6, nil)
	}
	h1 := make([]float64, 3)
	h2 := make([]float64, 3)
	distanceBetween(x1, x2, h1, h2)

	pt := mat.NewDense(3, 6, nil)
	var u []float64
	switch arg {
	case 0:
		pointPoseJacobian(pt, identityRot, b1, t1.Transform(f.corner1))
		u = h1
	case 1:
		pointPoseJacobian(pt, identityRot, b2, t2.Transform(f.corner2))
		u = h2
	case 2:
		pointPoseJacobian(pt, b1.RotationMatrix(), t1, f.corner1)
		u = h1
	default:
		pointPoseJacobian(pt, b2.RotationMatrix(), t2, f.corner2)
		u = h2
	}
	out := mat.NewDense(1, 6, nil)
	for j := 0; j < 6; j++ {
		out.Set(0, j, u[0]*pt.At(0, j)+u[1]*pt.At(1, j)+u[2]*pt.At(2, j))
	}
	return out
}

// positionFactor constrains the projection of a composed world corner onto
// a fixed direction. Analytic Jacobians via the bilinear-form differential.
type positionFactor struct {
	bodyKey keyspace.Key
	tagKey  keyspace.Key
	corner  r3.Vec
	dir     r3.Vec
	length  float64
	noise   solver.NoiseModel
}

func (f *positionFactor) Keys() []keyspace.Key {
	return []keyspace.Key{f.bodyKey, f.tagKey}
}
func (f *positionFactor) Dim() int                 { return 1 }
func (f *positionFactor) Noise() solver.NoiseModel { return f.noise }

func (f *positionFactor) Residual(vals *solver.Values) []float64 {
	b, ok1 := vals.Pose(f.bodyKey)
	t, ok2 := vals.Pose(f.tagKey)
	if !ok1 || !ok2 {
		return []float64{0}
	}
	xw := worldPoint(b, t, f.corner)
	return []float64{projectAlong(xw, f.dir, nil, nil) - f.length}
}

func (f *positionFactor) Jacobian(vals *solver.Values, arg int) *mat.Dense {
	b, ok1 := vals.Pose(f.bodyKey)
	t, ok2 := vals.Pose(f.tagKey)
	out := mat.NewDense(1, 6, nil)
	if !ok1 || !ok2 {
		return out
	}
	hp := make([]float64, 3)
	projectAlong(worldPoint(b, t, f.corner), f.dir, hp, nil)

	pt := mat.NewDense(3, 6, nil)
	if arg == 0 {
		pointPoseJacobian(pt, identityRot, b, t.Transform(f.corner))
	} else {
		pointPoseJacobian(pt, b.RotationMatrix(), t, f.corner)
	}
	for j := 0; j < 6; j++ {
		out.Set(0, j, hp[0]*pt.At(0, j)+hp[1]*pt.At(1, j)+hp[2]*pt.At(2, j))
	}
	return out
}

// isFinite guards measurement inputs coming from config files.
func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
