package geom

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

func vecsClose(t *testing.T, got, want r3.Vec, tol float64) {
	t.Helper()
	if math.Abs(got.X-want.X) > tol || math.Abs(got.Y-want.Y) > tol || math.Abs(got.Z-want.Z) > tol {
		t.Fatalf("vec mismatch: got %+v want %+v", got, want)
	}
}

func TestTransform_Identity(t *testing.T) {
	p := r3.Vec{X: 1, Y: 2, Z: 3}
	vecsClose(t, Identity().Transform(p), p, 1e-12)
}

func TestTransform_RotateAndTranslate(t *testing.T) {
	// 90 degrees about Z maps X onto Y.
	pose := NewPose(math.Pi/2, r3.Vec{Z: 1}, r3.Vec{X: 10})
	got := pose.Transform(r3.Vec{X: 1})
	vecsClose(t, got, r3.Vec{X: 10, Y: 1}, 1e-12)
}

func TestComposeMatchesSequentialTransform(t *testing.T) {
	a := NewPose(0.3, r3.Vec{X: 1, Y: 2, Z: -1}, r3.Vec{X: 0.5, Y: -1, Z: 2})
	b := NewPose(-0.7, r3.Vec{Y: 1, Z: 3}, r3.Vec{X: -2, Y: 0.25, Z: 1})
	p := r3.Vec{X: 1.5, Y: -0.5, Z: 3}

	vecsClose(t, a.Compose(b).Transform(p), a.Transform(b.Transform(p)), 1e-12)
}

func TestInverseRoundTrip(t *testing.T) {
	pose := NewPose(1.1, r3.Vec{X: 0.2, Y: -1, Z: 0.5}, r3.Vec{X: 3, Y: -4, Z: 5})
	p := r3.Vec{X: -1, Y: 2, Z: 0.5}
	vecsClose(t, pose.Inverse().Transform(pose.Transform(p)), p, 1e-12)

	if !pose.Compose(pose.Inverse()).ApproxEqual(Identity(), 1e-12) {
		t.Fatal("pose composed with its inverse is not identity")
	}
}

func TestExpLogRoundTrip(t *testing.T) {
	cases := [][6]float64{
		{0, 0, 0, 0, 0, 0},
		{0.1, -0.2, 0.3, 1, 2, 3},
		{1.5, 0, 0, 0, 0, -1},
		{0, 0, 3.0, 0.5, 0.5, 0.5},
	}
	for _, xi := range cases {
		back := Log(Exp(xi))
		for i := range xi {
			if math.Abs(back[i]-xi[i]) > 1e-10 {
				t.Errorf("Log(Exp(%v)) = %v, component %d off", xi, back, i)
				break
			}
		}
	}
}

func TestRetractLocalConsistency(t *testing.T) {
	base := NewPose(0.8, r3.Vec{X: 1, Z: 1}, r3.Vec{X: 1, Y: 1})
	delta := [6]float64{0.01, -0.02, 0.005, 0.1, -0.1, 0.2}
	got := Local(base, base.Retract(delta))
	for i := range delta {
		if math.Abs(got[i]-delta[i]) > 1e-9 {
			t.Fatalf("Local(base, base.Retract(d)) = %v, want %v", got, delta)
		}
	}
}

func TestRotationMatrixAgreesWithQuaternion(t *testing.T) {
	pose := NewPose(0.6, r3.Vec{X: 1, Y: 1, Z: 1}, r3.Vec{})
	r := pose.RotationMatrix()
	p := r3.Vec{X: 0.3, Y: -1.2, Z: 0.7}
	want := pose.Transform(p)
	got := r3.Vec{
		X: r[0]*p.X + r[1]*p.Y + r[2]*p.Z,
		Y: r[3]*p.X + r[4]*p.Y + r[5]*p.Z,
		Z: r[6]*p.X + r[7]*p.Y + r[8]*p.Z,
	}
	vecsClose(t, got, want, 1e-12)
}

func TestRotateCovariance_IdentityFrame(t *testing.T) {
	cov := mat.NewSymDense(6, nil)
	for i := 0; i < 6; i++ {
		cov.SetSym(i, i, float64(i+1))
	}
	got := RotateCovariance(Identity(), cov)
	for i := 0; i < 6; i++ {
		if math.Abs(got.At(i, i)-float64(i+1)) > 1e-12 {
			t.Fatalf("identity rotation changed covariance: %v", mat.Formatted(got))
		}
	}
}

func TestRotateCovariance_PreservesTrace(t *testing.T) {
	cov := mat.NewSymDense(6, nil)
	for i := 0; i < 6; i++ {
		cov.SetSym(i, i, float64(i)+0.5)
	}
	frame := NewPose(1.2, r3.Vec{X: 0.1, Y: 1, Z: -0.4}, r3.Vec{X: 7})
	got := RotateCovariance(frame, cov)
	var trIn, trOut float64
	for i := 0; i < 6; i++ {
		trIn += cov.At(i, i)
		trOut += got.At(i, i)
	}
	if math.Abs(trIn-trOut) > 1e-9 {
		t.Fatalf("rotation should preserve covariance trace: in=%v out=%v", trIn, trOut)
	}
}
