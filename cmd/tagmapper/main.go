// Package main provides the tagmapper replay tool. It reads an observation
// log (rig description plus per-frame tag detections, JSON), feeds each frame
// into the tag graph, optimizes, and records solve diagnostics and solved
// poses to a runlog database.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/fiducial-data/tagmapper/internal/graph"
	"github.com/fiducial-data/tagmapper/internal/runlog"
)

// Config holds configuration for the replay run.
type Config struct {
	ObsFile       string
	DBPath        string
	PixelNoise    float64
	DumpDistances bool
	Marginals     bool
	Verbose       bool
}

func parseFlags() Config {
	var cfg Config
	flag.StringVar(&cfg.ObsFile, "obs", "", "observation log to replay (JSON, required)")
	flag.StringVar(&cfg.DBPath, "db", "runlog.db", "runlog database path")
	flag.Float64Var(&cfg.PixelNoise, "pixel-noise", 1.0, "pixel measurement noise sigma")
	flag.BoolVar(&cfg.DumpDistances, "dump-distances", false, "print world corner distance table after the final solve")
	flag.BoolVar(&cfg.Marginals, "marginals", false, "compute marginal covariances after each solve")
	flag.BoolVar(&cfg.Verbose, "v", false, "verbose per-frame output")
	flag.Parse()
	return cfg
}

func main() {
	cfg := parseFlags()
	if cfg.ObsFile == "" {
		flag.Usage()
		log.Fatal("missing required -obs flag")
	}

	r, err := loadRig(cfg.ObsFile)
	if err != nil {
		log.Fatalf("load observation log: %v", err)
	}

	db, err := runlog.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("open runlog: %v", err)
	}
	defer db.Close()

	tg := graph.New()
	tg.SetPixelNoise(cfg.PixelNoise)

	if err := anchorTags(tg, r); err != nil {
		log.Fatalf("anchor tags: %v", err)
	}
	addMeasurements(tg, r)

	for _, fr := range r.spec.Frames {
		if err := replayFrame(tg, r, fr, db, cfg); err != nil {
			log.Fatalf("frame %d: %v", fr.Frame, err)
		}
	}

	if cfg.DumpDistances {
		if err := tg.DumpDistances(os.Stdout); err != nil {
			log.Fatalf("dump distances: %v", err)
		}
	}
	log.Printf("replayed %d frames, final normalized error %.6g",
		len(r.spec.Frames), tg.NormalizedError())
}

// anchorTags registers every configured tag with its body, grouped so each
// body's tags go in together.
func anchorTags(tg *graph.TagGraph, r *rig) error {
	byBody := make(map[string][]int)
	for id, body := range r.tagBody {
		byBody[body.Name] = append(byBody[body.Name], id)
	}
	names := make([]string, 0, len(byBody))
	for name := range byBody {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ids := byBody[name]
		sort.Ints(ids)
		if err := tg.AddTagAnchors(r.bodies[name], r.tagList(ids)); err != nil {
			return fmt.Errorf("body %s: %w", name, err)
		}
	}
	return nil
}

func addMeasurements(tg *graph.TagGraph, r *rig) {
	for _, d := range r.spec.Distances {
		rb1, rb2 := r.bodies[d.BodyA], r.bodies[d.BodyB]
		if rb1 == nil {
			rb1 = r.tagBody[d.TagA]
		}
		if rb2 == nil {
			rb2 = r.tagBody[d.TagB]
		}
		tag1, tag2 := r.tags[d.TagA], r.tags[d.TagB]
		if rb1 == nil || rb2 == nil || tag1 == nil || tag2 == nil {
			log.Printf("distance measurement tag %d/%d skipped: references unconfigured entities", d.TagA, d.TagB)
			continue
		}
		err := tg.AddDistanceMeasurement(rb1, rb2, tag1, d.CornerA, tag2, d.CornerB, d.Distance, d.Noise)
		if err != nil {
			log.Printf("distance measurement tag %d/%d skipped: %v", d.TagA, d.TagB, err)
		}
	}
	for _, p := range r.spec.Positions {
		body, tag := r.bodies[p.Body], r.tags[p.Tag]
		if body == nil || tag == nil {
			log.Printf("position measurement tag %d skipped: references unconfigured entities", p.Tag)
			continue
		}
		dir := r3.Vec{X: p.Direction[0], Y: p.Direction[1], Z: p.Direction[2]}
		err := tg.AddPositionMeasurement(body, tag, p.Corner, dir, p.Length, p.Noise)
		if err != nil {
			log.Printf("position measurement tag %d skipped: %v", p.Tag, err)
		}
	}
}

func replayFrame(tg *graph.TagGraph, r *rig, fr frameJSON, db *runlog.DB, cfg Config) error {
	for _, obs := range fr.Observations {
		cam, ok := r.cameras[obs.Camera]
		if !ok {
			return fmt.Errorf("unknown camera %q", obs.Camera)
		}
		body, ok := r.bodies[obs.Body]
		if !ok {
			return fmt.Errorf("unknown body %q", obs.Body)
		}
		tags := r.observedTags(obs)
		if err := tg.AddObservation(cam, body, tags, fr.Frame); err != nil {
			return fmt.Errorf("add observation: %w", err)
		}
	}

	if err := tg.Optimize(); err != nil {
		return fmt.Errorf("optimize: %w", err)
	}
	if cfg.Marginals {
		if err := tg.ComputeMarginals(); err != nil {
			log.Printf("frame %d: marginals unavailable: %v", fr.Frame, err)
		}
	}
	if cfg.Verbose {
		log.Printf("frame %d: error %.6g after %d iterations (%d projection factors)",
			fr.Frame, tg.NormalizedError(), tg.Iterations(), tg.NumProjectionFactors())
	}

	runID, err := db.RecordRun(fr.Frame, tg.NormalizedError(), tg.Iterations(), tg.NumProjectionFactors())
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return recordPoses(tg, r, fr.Frame, db, runID)
}

func recordPoses(tg *graph.TagGraph, r *rig, frame uint64, db *runlog.DB, runID string) error {
	for name, body := range r.bodies {
		if pe := tg.GetBodyPose(body, frame); pe.Valid {
			if err := db.RecordPose(runID, "body", name, pe.Pose); err != nil {
				return err
			}
		}
	}
	for name, cam := range r.cameras {
		if pe := tg.GetCameraPose(cam, frame); pe.Valid {
			if err := db.RecordPose(runID, "camera", name, pe.Pose); err != nil {
				return err
			}
		}
	}
	for id, body := range r.tagBody {
		if pe := tg.GetTagWorldPose(body, id, frame); pe.Valid {
			if err := db.RecordPose(runID, "tag", fmt.Sprintf("%d", id), pe.Pose); err != nil {
				return err
			}
		}
	}
	return nil
}
