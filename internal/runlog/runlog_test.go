package runlog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/fiducial-data/tagmapper/internal/geom"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "runlog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordAndListRuns(t *testing.T) {
	db := openTestDB(t)

	id1, err := db.RecordRun(0, 0.25, 4, 16)
	require.NoError(t, err)
	id2, err := db.RecordRun(1, 0.12, 3, 24)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2, "run ids must be unique")

	runs, err := db.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, uint64(0), runs[0].Frame, "runs must come back in frame order")
	assert.Equal(t, uint64(1), runs[1].Frame)
	assert.Equal(t, 0.12, runs[1].NormalizedError)
	assert.Equal(t, 3, runs[1].Iterations)
	assert.Equal(t, 24, runs[1].NumFactors)
}

func TestRecordPoseRoundTrip(t *testing.T) {
	db := openTestDB(t)
	id, err := db.RecordRun(7, 0.01, 5, 8)
	require.NoError(t, err)

	want := geom.NewPose(0.4, r3.Vec{X: 1, Y: -2}, r3.Vec{X: 1.5, Y: 2.5, Z: -0.5})
	require.NoError(t, db.RecordPose(id, "body", "rig", want))

	poses, err := db.Poses(id)
	require.NoError(t, err)
	got, ok := poses["body/rig"]
	require.True(t, ok, "pose missing, have %v", poses)
	assert.True(t, got.ApproxEqual(want, 1e-12), "pose round trip drifted: got %v want %v", got, want)
}

func TestPoses_UnknownRunEmpty(t *testing.T) {
	db := openTestDB(t)
	poses, err := db.Poses("no-such-run")
	require.NoError(t, err)
	assert.Empty(t, poses)
}
