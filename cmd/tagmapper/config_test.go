package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestDistanceJSONDecodesAllFields(t *testing.T) {
	in := `{"body_a":"rig1","body_b":"rig2","tag_a":4,"tag_b":7,
		"corner_a":1,"corner_b":3,"distance":0.6,"noise":0.01}`
	var d distanceJSON
	if err := json.Unmarshal([]byte(in), &d); err != nil {
		t.Fatal(err)
	}
	want := distanceJSON{
		BodyA: "rig1", BodyB: "rig2",
		TagA: 4, TagB: 7,
		CornerA: 1, CornerB: 3,
		Distance: 0.6, Noise: 0.01,
	}
	if d != want {
		t.Fatalf("fields lost in decode:\ngot  %+v\nwant %+v", d, want)
	}
}

func TestLoadRigResolvesEntities(t *testing.T) {
	doc := `{
		"cameras": [{"index":0,"name":"cam0","static":true,
			"pose":{"rotation":[0,0,0,1],"translation":[0,0,2]},
			"radtan":{"fx":500,"fy":500,"cx":320,"cy":240}}],
		"bodies": [{"index":0,"name":"rig","static":true,
			"pose":{"rotation":[0,0,0,1],"translation":[0,0,0]},
			"noise_rot":0.001,"noise_trans":0.001,"has_pose_prior":true}],
		"tags": [{"id":3,"size":0.2,"body":"rig",
			"pose":{"rotation":[0,0,0,1],"translation":[0.5,0,0]},
			"known_pose":true,"noise_rot":0.001,"noise_trans":0.001}],
		"frames": [{"frame":0,"observations":[
			{"camera":"cam0","body":"rig","tags":[
				{"id":3,"corners":[[100,100],[150,100],[150,150],[100,150]]}]}]}],
		"distance_measurements": [
			{"tag_a":3,"tag_b":3,"corner_a":0,"corner_b":1,"distance":0.2,"noise":0.01}]
	}`
	path := filepath.Join(t.TempDir(), "obs.json")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := loadRig(path)
	if err != nil {
		t.Fatal(err)
	}
	cam, ok := r.cameras["cam0"]
	if !ok || cam.RadTan == nil || cam.RadTan.Fx != 500 {
		t.Fatalf("camera not resolved: %+v", cam)
	}
	body, ok := r.bodies["rig"]
	if !ok || !body.Static || !body.HasPosePrior {
		t.Fatalf("body not resolved: %+v", body)
	}
	if r.tagBody[3] != body {
		t.Fatal("tag 3 must anchor to body rig")
	}

	tags := r.observedTags(r.spec.Frames[0].Observations[0])
	if len(tags) != 1 || tags[0].ID != 3 {
		t.Fatalf("observation resolution failed: %+v", tags)
	}
	if tags[0].ImageCorners[2].X != 150 || tags[0].ImageCorners[2].Y != 150 {
		t.Fatalf("image corners not carried: %+v", tags[0].ImageCorners)
	}

	if len(r.spec.Distances) != 1 || r.spec.Distances[0].CornerB != 1 || r.spec.Distances[0].Distance != 0.2 {
		t.Fatalf("distance measurement lost: %+v", r.spec.Distances)
	}
}
