package entity

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// DistortionModel maps a normalized image-plane point (x/z, y/z in the
// camera frame) to a distorted pixel coordinate.
type DistortionModel interface {
	// Uncalibrate applies distortion and the projection intrinsics to a
	// normalized point, returning pixels.
	Uncalibrate(p r2.Vec) r2.Vec
}

// RadTanModel is the radial-tangential (Brown-Conrady) distortion model
// with pinhole intrinsics.
type RadTanModel struct {
	Fx, Fy float64 // focal lengths, pixels
	Cx, Cy float64 // principal point, pixels
	K1, K2 float64 // radial coefficients
	P1, P2 float64 // tangential coefficients
}

// CheckValid reports whether the model's intrinsics are usable.
func (m *RadTanModel) CheckValid() error {
	if m == nil {
		return fmt.Errorf("radtan model is nil")
	}
	if m.Fx <= 0 || m.Fy <= 0 {
		return fmt.Errorf("radtan model has non-positive focal length (%v, %v)", m.Fx, m.Fy)
	}
	return nil
}

// Uncalibrate applies radial and tangential distortion, then the pinhole
// intrinsics.
func (m *RadTanModel) Uncalibrate(p r2.Vec) r2.Vec {
	x, y := p.X, p.Y
	r2v := x*x + y*y
	radial := 1 + m.K1*r2v + m.K2*r2v*r2v
	xd := x*radial + 2*m.P1*x*y + m.P2*(r2v+2*x*x)
	yd := y*radial + m.P1*(r2v+2*y*y) + 2*m.P2*x*y
	return r2.Vec{X: m.Fx*xd + m.Cx, Y: m.Fy*yd + m.Cy}
}

// EquidistantModel is the fisheye equidistant distortion model with pinhole
// intrinsics.
type EquidistantModel struct {
	Fx, Fy         float64
	Cx, Cy         float64
	K1, K2, K3, K4 float64
}

// CheckValid reports whether the model's intrinsics are usable.
func (m *EquidistantModel) CheckValid() error {
	if m == nil {
		return fmt.Errorf("equidistant model is nil")
	}
	if m.Fx <= 0 || m.Fy <= 0 {
		return fmt.Errorf("equidistant model has non-positive focal length (%v, %v)", m.Fx, m.Fy)
	}
	return nil
}

// Uncalibrate applies the equidistant angular distortion, then the pinhole
// intrinsics.
func (m *EquidistantModel) Uncalibrate(p r2.Vec) r2.Vec {
	x, y := p.X, p.Y
	r := math.Hypot(x, y)
	scale := 1.0
	if r > 1e-12 {
		theta := math.Atan(r)
		t2 := theta * theta
		thetaD := theta * (1 + m.K1*t2 + m.K2*t2*t2 + m.K3*t2*t2*t2 + m.K4*t2*t2*t2*t2)
		scale = thetaD / r
	}
	return r2.Vec{X: m.Fx*x*scale + m.Cx, Y: m.Fy*y*scale + m.Cy}
}
