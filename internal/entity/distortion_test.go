package entity

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestRadTan_NoDistortionIsPinhole(t *testing.T) {
	m := &RadTanModel{Fx: 500, Fy: 500, Cx: 320, Cy: 240}
	px := m.Uncalibrate(r2.Vec{X: 0.1, Y: -0.2})
	if math.Abs(px.X-370) > 1e-9 || math.Abs(px.Y-140) > 1e-9 {
		t.Fatalf("pinhole projection wrong: %+v", px)
	}
}

func TestRadTan_PrincipalPointAtCenter(t *testing.T) {
	m := &RadTanModel{Fx: 450, Fy: 460, Cx: 315, Cy: 242, K1: -0.28, K2: 0.07, P1: 1e-4, P2: -2e-4}
	px := m.Uncalibrate(r2.Vec{})
	if px.X != m.Cx || px.Y != m.Cy {
		t.Fatalf("center ray must land on the principal point, got %+v", px)
	}
}

func TestRadTan_RadialDistortionPullsInward(t *testing.T) {
	// Negative k1 (typical barrel distortion) maps off-center points closer
	// to the principal point than the pinhole would.
	pin := &RadTanModel{Fx: 500, Fy: 500, Cx: 320, Cy: 240}
	barrel := &RadTanModel{Fx: 500, Fy: 500, Cx: 320, Cy: 240, K1: -0.3}
	p := r2.Vec{X: 0.4, Y: 0.3}
	dPin := math.Hypot(pin.Uncalibrate(p).X-320, pin.Uncalibrate(p).Y-240)
	dBarrel := math.Hypot(barrel.Uncalibrate(p).X-320, barrel.Uncalibrate(p).Y-240)
	if dBarrel >= dPin {
		t.Fatalf("barrel distortion should pull inward: pinhole %v, distorted %v", dPin, dBarrel)
	}
}

func TestEquidistant_CenterAndSymmetry(t *testing.T) {
	m := &EquidistantModel{Fx: 400, Fy: 400, Cx: 300, Cy: 200, K1: 0.01, K2: -0.002}
	c := m.Uncalibrate(r2.Vec{})
	if c.X != 300 || c.Y != 200 {
		t.Fatalf("center ray must land on the principal point, got %+v", c)
	}
	a := m.Uncalibrate(r2.Vec{X: 0.25, Y: 0.1})
	b := m.Uncalibrate(r2.Vec{X: -0.25, Y: -0.1})
	if math.Abs((a.X-300)+(b.X-300)) > 1e-9 || math.Abs((a.Y-200)+(b.Y-200)) > 1e-9 {
		t.Fatalf("equidistant model must be point-symmetric about the center: %+v vs %+v", a, b)
	}
}

func TestCameraModelSelection(t *testing.T) {
	rt := &RadTanModel{Fx: 1, Fy: 1}
	eq := &EquidistantModel{Fx: 1, Fy: 1}
	cases := []struct {
		name string
		cam  Camera
		want DistortionModel
	}{
		{"radtan", Camera{RadTan: rt}, rt},
		{"equidistant", Camera{Equidistant: eq}, eq},
		{"none", Camera{}, nil},
	}
	for _, tc := range cases {
		if got := tc.cam.Model(); got != tc.want {
			t.Errorf("%s: Model() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestTagObjectCorners(t *testing.T) {
	tag := &Tag{ID: 0, Size: 2}
	want := [4]r3.Vec{
		{X: -1, Y: -1}, {X: 1, Y: -1}, {X: 1, Y: 1}, {X: -1, Y: 1},
	}
	for i := 0; i < 4; i++ {
		if tag.ObjectCorner(i) != want[i] {
			t.Fatalf("corner %d = %+v, want %+v", i, tag.ObjectCorner(i), want[i])
		}
	}
}

func TestModelCheckValid(t *testing.T) {
	if err := (&RadTanModel{Fx: 0, Fy: 500}).CheckValid(); err == nil {
		t.Fatal("zero focal length must be invalid")
	}
	if err := (&RadTanModel{Fx: 500, Fy: 500}).CheckValid(); err != nil {
		t.Fatalf("valid model rejected: %v", err)
	}
	if err := (&EquidistantModel{Fx: 400, Fy: -1}).CheckValid(); err == nil {
		t.Fatal("negative focal length must be invalid")
	}
}
