// Package entity holds the physical-world objects the estimator reasons
// about: fiducial tags, rigid bodies, and cameras with their distortion
// models.
package entity

import (
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/fiducial-data/tagmapper/internal/geom"
)

// Tag is a square fiducial marker attached to a rigid body. PoseEstimate is
// the tag-to-body transform T_b_o; ImageCorners carries the pixel
// observations for the frame currently being processed.
type Tag struct {
	ID   int
	Size float64 // edge length in meters

	PoseEstimate geom.PoseEstimate
	Noise        geom.PoseNoise
	// HasKnownPose marks the tag-to-body transform as ground truth; it gets
	// anchored with a prior instead of floating freely.
	HasKnownPose bool

	ImageCorners [4]r2.Vec
}

// NewTag builds a tag of the given size with an initial tag-to-body pose
// estimate.
func NewTag(id int, size float64, pose geom.PoseEstimate, noise geom.PoseNoise) *Tag {
	return &Tag{ID: id, Size: size, PoseEstimate: pose, Noise: noise}
}

// ObjectCorner returns corner i (0..3) in the tag's own frame: a square of
// edge Size centered on the origin in the z=0 plane, counterclockwise from
// the lower left.
func (t *Tag) ObjectCorner(i int) r3.Vec {
	s := t.Size / 2
	switch i & 3 {
	case 0:
		return r3.Vec{X: -s, Y: -s}
	case 1:
		return r3.Vec{X: s, Y: -s}
	case 2:
		return r3.Vec{X: s, Y: s}
	default:
		return r3.Vec{X: -s, Y: s}
	}
}

// RigidBody is an object carrying one or more tags. Static bodies keep a
// single world pose for all frames; dynamic bodies are re-estimated per
// frame.
type RigidBody struct {
	Index  int
	Name   string
	Static bool

	PoseEstimate geom.PoseEstimate
	Noise        geom.PoseNoise
	// HasPosePrior anchors a static body's pose with a prior factor the
	// first time it is observed.
	HasPosePrior bool
}

// Camera is an observer with exactly one active distortion model. Static
// cameras keep a single world pose for all frames.
type Camera struct {
	Index  int
	Name   string
	Static bool

	PoseEstimate geom.PoseEstimate

	// Exactly one of the two models is non-nil.
	RadTan      *RadTanModel
	Equidistant *EquidistantModel
}

// Model returns the camera's active distortion model, or nil if the camera
// was built without one.
func (c *Camera) Model() DistortionModel {
	if c.RadTan != nil {
		return c.RadTan
	}
	if c.Equidistant != nil {
		return c.Equidistant
	}
	return nil
}
