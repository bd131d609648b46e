// Package runlog persists solve diagnostics: one row per optimizer run with
// its normalized error and iteration count, plus the solved poses committed
// by that run. Backed by sqlite so replay tools and reports can inspect
// solution quality over time.
package runlog

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/fiducial-data/tagmapper/internal/geom"
)

type DB struct {
	*sql.DB
}

// Open opens (creating if needed) a runlog database at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS solve_runs (
			run_id            TEXT PRIMARY KEY,
			frame             BIGINT,
			normalized_error  DOUBLE,
			iterations        BIGINT,
			num_factors       BIGINT,
			timestamp         TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS solved_poses (
			run_id            TEXT,
			entity_kind       TEXT,
			entity_name       TEXT,
			tx                DOUBLE,
			ty                DOUBLE,
			tz                DOUBLE,
			qw                DOUBLE,
			qx                DOUBLE,
			qy                DOUBLE,
			qz                DOUBLE,
			FOREIGN KEY(run_id) REFERENCES solve_runs(run_id)
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create runlog schema: %w", err)
	}

	return &DB{db}, nil
}

// Run summarizes one optimizer invocation.
type Run struct {
	ID              string
	Frame           uint64
	NormalizedError float64
	Iterations      int
	NumFactors      int
	Timestamp       time.Time
}

// RecordRun inserts a run summary and returns its generated id.
func (db *DB) RecordRun(frame uint64, normalizedError float64, iterations, numFactors int) (string, error) {
	id := uuid.NewString()
	_, err := db.Exec(
		`INSERT INTO solve_runs (run_id, frame, normalized_error, iterations, num_factors)
		 VALUES (?, ?, ?, ?, ?)`,
		id, int64(frame), normalizedError, iterations, numFactors,
	)
	if err != nil {
		return "", fmt.Errorf("insert solve run: %w", err)
	}
	return id, nil
}

// RecordPose attaches a solved pose to a run. Kind distinguishes body,
// camera, and tag entries.
func (db *DB) RecordPose(runID, kind, name string, pose geom.Pose) error {
	_, err := db.Exec(
		`INSERT INTO solved_poses (run_id, entity_kind, entity_name, tx, ty, tz, qw, qx, qy, qz)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, kind, name,
		pose.T.X, pose.T.Y, pose.T.Z,
		pose.Q.Real, pose.Q.Imag, pose.Q.Jmag, pose.Q.Kmag,
	)
	if err != nil {
		return fmt.Errorf("insert solved pose: %w", err)
	}
	return nil
}

// Runs returns all recorded runs in frame order.
func (db *DB) Runs() ([]Run, error) {
	rows, err := db.Query(
		`SELECT run_id, frame, normalized_error, iterations, num_factors, timestamp
		 FROM solve_runs ORDER BY frame, timestamp`)
	if err != nil {
		return nil, fmt.Errorf("query solve runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var frame int64
		if err := rows.Scan(&r.ID, &frame, &r.NormalizedError, &r.Iterations, &r.NumFactors, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan solve run: %w", err)
		}
		r.Frame = uint64(frame)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Poses returns the solved poses recorded under a run, keyed "kind/name".
func (db *DB) Poses(runID string) (map[string]geom.Pose, error) {
	rows, err := db.Query(
		`SELECT entity_kind, entity_name, tx, ty, tz, qw, qx, qy, qz
		 FROM solved_poses WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("query solved poses: %w", err)
	}
	defer rows.Close()

	poses := make(map[string]geom.Pose)
	for rows.Next() {
		var kind, name string
		var p geom.Pose
		if err := rows.Scan(&kind, &name, &p.T.X, &p.T.Y, &p.T.Z,
			&p.Q.Real, &p.Q.Imag, &p.Q.Jmag, &p.Q.Kmag); err != nil {
			return nil, fmt.Errorf("scan solved pose: %w", err)
		}
		poses[kind+"/"+name] = p
	}
	return poses, rows.Err()
}
