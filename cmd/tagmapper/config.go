package main

import (
	"encoding/json"
	"fmt"
	"os"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/fiducial-data/tagmapper/internal/entity"
	"github.com/fiducial-data/tagmapper/internal/geom"
)

// poseJSON is an axis-angle pose: rotation is [angle, ax, ay, az].
type poseJSON struct {
	Rotation    [4]float64 `json:"rotation"`
	Translation [3]float64 `json:"translation"`
}

func (p poseJSON) pose() geom.Pose {
	return geom.NewPose(p.Rotation[0],
		r3.Vec{X: p.Rotation[1], Y: p.Rotation[2], Z: p.Rotation[3]},
		r3.Vec{X: p.Translation[0], Y: p.Translation[1], Z: p.Translation[2]})
}

type cameraJSON struct {
	Index  int       `json:"index"`
	Name   string    `json:"name"`
	Static bool      `json:"static"`
	Pose   *poseJSON `json:"pose"`

	RadTan      *entity.RadTanModel      `json:"radtan,omitempty"`
	Equidistant *entity.EquidistantModel `json:"equidistant,omitempty"`
}

type bodyJSON struct {
	Index        int       `json:"index"`
	Name         string    `json:"name"`
	Static       bool      `json:"static"`
	Pose         *poseJSON `json:"pose"`
	NoiseRot     float64   `json:"noise_rot"`
	NoiseTrans   float64   `json:"noise_trans"`
	HasPosePrior bool      `json:"has_pose_prior"`
}

type tagJSON struct {
	ID         int       `json:"id"`
	Size       float64   `json:"size"`
	Body       string    `json:"body"`
	Pose       *poseJSON `json:"pose"`
	KnownPose  bool      `json:"known_pose"`
	NoiseRot   float64   `json:"noise_rot"`
	NoiseTrans float64   `json:"noise_trans"`
}

type tagObsJSON struct {
	ID      int           `json:"id"`
	Corners [4][2]float64 `json:"corners"`
}

type observationJSON struct {
	Camera string       `json:"camera"`
	Body   string       `json:"body"`
	Tags   []tagObsJSON `json:"tags"`
}

type frameJSON struct {
	Frame        uint64            `json:"frame"`
	Observations []observationJSON `json:"observations"`
}

type distanceJSON struct {
	BodyA    string  `json:"body_a,omitempty"`
	BodyB    string  `json:"body_b,omitempty"`
	TagA     int     `json:"tag_a"`
	TagB     int     `json:"tag_b"`
	CornerA  int     `json:"corner_a"`
	CornerB  int     `json:"corner_b"`
	Distance float64 `json:"distance"`
	Noise    float64 `json:"noise"`
}

type positionJSON struct {
	Body      string     `json:"body"`
	Tag       int        `json:"tag"`
	Corner    int        `json:"corner"`
	Direction [3]float64 `json:"direction"`
	Length    float64    `json:"length"`
	Noise     float64    `json:"noise"`
}

// rigJSON is the observation-log file format: the rig description followed
// by per-frame tag detections.
type rigJSON struct {
	Cameras   []cameraJSON   `json:"cameras"`
	Bodies    []bodyJSON     `json:"bodies"`
	Tags      []tagJSON      `json:"tags"`
	Frames    []frameJSON    `json:"frames"`
	Distances []distanceJSON `json:"distance_measurements,omitempty"`
	Positions []positionJSON `json:"position_measurements,omitempty"`
}

// rig is the loaded, resolved form of the observation log.
type rig struct {
	cameras map[string]*entity.Camera
	bodies  map[string]*entity.RigidBody
	tags    map[int]*entity.Tag
	tagBody map[int]*entity.RigidBody

	spec rigJSON
}

func loadRig(path string) (*rig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var spec rigJSON
	if err := json.Unmarshal(raw, &spec); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	r := &rig{
		cameras: make(map[string]*entity.Camera),
		bodies:  make(map[string]*entity.RigidBody),
		tags:    make(map[int]*entity.Tag),
		tagBody: make(map[int]*entity.RigidBody),
		spec:    spec,
	}
	for _, c := range spec.Cameras {
		cam := &entity.Camera{
			Index:       c.Index,
			Name:        c.Name,
			Static:      c.Static,
			RadTan:      c.RadTan,
			Equidistant: c.Equidistant,
		}
		if cam.RadTan != nil && cam.Equidistant != nil {
			return nil, fmt.Errorf("camera %s: exactly one distortion model allowed", c.Name)
		}
		if cam.RadTan != nil {
			if err := cam.RadTan.CheckValid(); err != nil {
				return nil, fmt.Errorf("camera %s: %w", c.Name, err)
			}
		}
		if cam.Equidistant != nil {
			if err := cam.Equidistant.CheckValid(); err != nil {
				return nil, fmt.Errorf("camera %s: %w", c.Name, err)
			}
		}
		if c.Pose != nil {
			cam.PoseEstimate = geom.NewPoseEstimate(c.Pose.pose())
		}
		r.cameras[c.Name] = cam
	}
	for _, b := range spec.Bodies {
		body := &entity.RigidBody{
			Index:        b.Index,
			Name:         b.Name,
			Static:       b.Static,
			Noise:        geom.NewPoseNoise(b.NoiseRot, b.NoiseTrans),
			HasPosePrior: b.HasPosePrior,
		}
		if b.Pose != nil {
			body.PoseEstimate = geom.NewPoseEstimate(b.Pose.pose())
		}
		r.bodies[b.Name] = body
	}
	for _, tj := range spec.Tags {
		body, ok := r.bodies[tj.Body]
		if !ok {
			return nil, fmt.Errorf("tag %d references unknown body %q", tj.ID, tj.Body)
		}
		var pe geom.PoseEstimate
		if tj.Pose != nil {
			pe = geom.NewPoseEstimate(tj.Pose.pose())
		}
		tag := entity.NewTag(tj.ID, tj.Size, pe, geom.NewPoseNoise(tj.NoiseRot, tj.NoiseTrans))
		tag.HasKnownPose = tj.KnownPose
		r.tags[tj.ID] = tag
		r.tagBody[tj.ID] = body
	}
	return r, nil
}

// tagList resolves tag ids to their configured entities, preserving order.
func (r *rig) tagList(ids []int) []*entity.Tag {
	tags := make([]*entity.Tag, 0, len(ids))
	for _, id := range ids {
		tags = append(tags, r.tags[id])
	}
	return tags
}

// observedTags resolves one frame observation into tag entities carrying
// their measured image corners.
func (r *rig) observedTags(obs observationJSON) []*entity.Tag {
	var tags []*entity.Tag
	for _, to := range obs.Tags {
		tag, ok := r.tags[to.ID]
		if !ok {
			continue
		}
		for i := 0; i < 4; i++ {
			tag.ImageCorners[i] = r2.Vec{X: to.Corners[i][0], Y: to.Corners[i][1]}
		}
		tags = append(tags, tag)
	}
	return tags
}
