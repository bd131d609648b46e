package graph

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/fiducial-data/tagmapper/internal/entity"
	"github.com/fiducial-data/tagmapper/internal/geom"
	"github.com/fiducial-data/tagmapper/internal/keyspace"
)

// GetBodyPose returns the body's world pose at the given frame (frame 0
// when static). The estimate is invalid if the body was never observed.
// Carries covariance when marginals are available.
func (tg *TagGraph) GetBodyPose(rb *entity.RigidBody, frame uint64) geom.PoseEstimate {
	bodyFrame := frame
	if rb.Static {
		bodyFrame = 0
	}
	key, err := keyspace.BodyPoseKey(rb.Index, bodyFrame)
	if err != nil {
		return geom.PoseEstimate{}
	}
	pose, ok := tg.values.Pose(key)
	if !ok {
		return geom.PoseEstimate{}
	}
	pe := geom.NewPoseEstimate(pose)
	if tg.marginals != nil {
		if cov, err := tg.marginals.MarginalCovariance(key); err == nil {
			pe = pe.WithCovariance(cov)
		}
	}
	return pe
}

// GetCameraPose returns the camera's world pose at the given frame (frame 0
// when static), invalid if never observed.
func (tg *TagGraph) GetCameraPose(cam *entity.Camera, frame uint64) geom.PoseEstimate {
	camFrame := frame
	if cam.Static {
		camFrame = 0
	}
	key, err := keyspace.CameraPoseKey(cam.Index, camFrame)
	if err != nil {
		return geom.PoseEstimate{}
	}
	pose, ok := tg.values.Pose(key)
	if !ok {
		return geom.PoseEstimate{}
	}
	pe := geom.NewPoseEstimate(pose)
	if tg.marginals != nil {
		if cov, err := tg.marginals.MarginalCovariance(key); err == nil {
			pe = pe.WithCovariance(cov)
		}
	}
	return pe
}

// GetTagWorldPose composes the tag's world pose T_w_o = T_w_b ∘ T_b_o at
// the given frame. When marginals are available the covariance is the
// tag-to-body transform's covariance rotated into the world frame; the
// body pose's own uncertainty is deliberately ignored, a documented
// approximation rather than a full covariance composition.
func (tg *TagGraph) GetTagWorldPose(rb *entity.RigidBody, tagID int, frame uint64) geom.PoseEstimate {
	tagKey, err := keyspace.TagTransformKey(tagID)
	if err != nil {
		return geom.PoseEstimate{}
	}
	tagPose, ok := tg.values.Pose(tagKey)
	if !ok {
		return geom.PoseEstimate{}
	}
	bodyFrame := frame
	if rb.Static {
		bodyFrame = 0
	}
	bodyKey, err := keyspace.BodyPoseKey(rb.Index, bodyFrame)
	if err != nil {
		return geom.PoseEstimate{}
	}
	bodyPose, ok := tg.values.Pose(bodyKey)
	if !ok {
		return geom.PoseEstimate{}
	}
	pe := geom.NewPoseEstimate(bodyPose.Compose(tagPose))
	if tg.marginals != nil {
		if cov, err := tg.marginals.MarginalCovariance(tagKey); err == nil {
			pe = pe.WithCovariance(geom.RotateCovariance(bodyPose, cov))
		}
	}
	return pe
}

// GetTagRelPose returns the tag-to-body transform, invalid if the tag was
// never anchored.
func (tg *TagGraph) GetTagRelPose(tagID int) geom.PoseEstimate {
	key, err := keyspace.TagTransformKey(tagID)
	if err != nil {
		return geom.PoseEstimate{}
	}
	pose, ok := tg.values.Pose(key)
	if !ok {
		return geom.PoseEstimate{}
	}
	pe := geom.NewPoseEstimate(pose)
	if tg.marginals != nil {
		if cov, err := tg.marginals.MarginalCovariance(key); err == nil {
			pe = pe.WithCovariance(cov)
		}
	}
	return pe
}

// GetPosition returns the world position of one tag corner on a static
// body, composed from the current values. ok is false when any required
// variable is missing.
func (tg *TagGraph) GetPosition(rb *entity.RigidBody, tag *entity.Tag, corner int) (r3.Vec, bool) {
	bodyKey, err := keyspace.BodyPoseKey(rb.Index, 0)
	if err != nil {
		return r3.Vec{}, false
	}
	tagKey, err := keyspace.TagTransformKey(tag.ID)
	if err != nil {
		return r3.Vec{}, false
	}
	bodyPose, ok1 := tg.values.Pose(bodyKey)
	tagPose, ok2 := tg.values.Pose(tagKey)
	if !ok1 || !ok2 {
		return r3.Vec{}, false
	}
	return worldPoint(bodyPose, tagPose, tag.ObjectCorner(corner)), true
}

// GetDifference returns the world-frame vector from tag2's corner2 to
// tag1's corner1 across two static bodies. ok is false when any required
// variable is missing.
func (tg *TagGraph) GetDifference(rb1, rb2 *entity.RigidBody, tag1 *entity.Tag, corner1 int, tag2 *entity.Tag, corner2 int) (r3.Vec, bool) {
	x1, ok1 := tg.GetPosition(rb1, tag1, corner1)
	x2, ok2 := tg.GetPosition(rb2, tag2, corner2)
	if !ok1 || !ok2 {
		return r3.Vec{}, false
	}
	return r3.Sub(x1, x2), true
}
