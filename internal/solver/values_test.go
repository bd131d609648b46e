package solver

import (
	"errors"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/fiducial-data/tagmapper/internal/geom"
	"github.com/fiducial-data/tagmapper/internal/keyspace"
)

func mustTagKey(t *testing.T, id int) keyspace.Key {
	t.Helper()
	k, err := keyspace.TagTransformKey(id)
	if err != nil {
		t.Fatal(err)
	}
	return k
}

func TestInsertPose_DuplicateRejectedWithoutMutation(t *testing.T) {
	v := NewValues()
	k := mustTagKey(t, 7)
	first := geom.NewPose(0.5, r3.Vec{Z: 1}, r3.Vec{X: 1})
	if err := v.InsertPose(k, first); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	err := v.InsertPose(k, geom.NewPose(1.5, r3.Vec{X: 1}, r3.Vec{Y: 9}))
	if !errors.Is(err, ErrDuplicateVariable) {
		t.Fatalf("second insert: want ErrDuplicateVariable, got %v", err)
	}
	got, ok := v.Pose(k)
	if !ok || !got.ApproxEqual(first, 1e-12) {
		t.Fatal("store mutated by rejected insert")
	}
	if v.Len() != 1 {
		t.Fatalf("store should hold exactly 1 variable, got %d", v.Len())
	}
}

func TestInsertPoint_DuplicateAcrossKinds(t *testing.T) {
	v := NewValues()
	k, err := keyspace.WorldCornerKey(3, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := v.InsertPoint(k, r3.Vec{X: 1}); err != nil {
		t.Fatal(err)
	}
	// A pose insert under a point's key is still a duplicate.
	if err := v.InsertPose(k, geom.Identity()); !errors.Is(err, ErrDuplicateVariable) {
		t.Fatalf("want ErrDuplicateVariable, got %v", err)
	}
}

func TestReplaceAll_SwapsContentsAtomically(t *testing.T) {
	v := NewValues()
	if err := v.InsertPose(mustTagKey(t, 1), geom.Identity()); err != nil {
		t.Fatal(err)
	}
	solved := NewValues()
	want := geom.NewPose(0.2, r3.Vec{Y: 1}, r3.Vec{Z: 3})
	if err := solved.InsertPose(mustTagKey(t, 2), want); err != nil {
		t.Fatal(err)
	}
	v.ReplaceAll(solved)
	if v.Has(mustTagKey(t, 1)) {
		t.Fatal("pre-solve value survived ReplaceAll")
	}
	got, ok := v.Pose(mustTagKey(t, 2))
	if !ok || !got.ApproxEqual(want, 1e-12) {
		t.Fatal("solved value missing after ReplaceAll")
	}
	// Later edits to the source must not leak into the store.
	if err := solved.InsertPose(mustTagKey(t, 3), geom.Identity()); err != nil {
		t.Fatal(err)
	}
	if v.Has(mustTagKey(t, 3)) {
		t.Fatal("ReplaceAll aliased the source store")
	}
}

func TestCategoryKeys_OrderedWorldCornerRange(t *testing.T) {
	v := NewValues()
	insert := func(tag, corner int, frame uint64) {
		k, err := keyspace.WorldCornerKey(tag, corner, frame)
		if err != nil {
			t.Fatal(err)
		}
		if err := v.InsertPoint(k, r3.Vec{}); err != nil {
			t.Fatal(err)
		}
	}
	insert(200, 3, 1)
	insert(0, 0, 0)
	insert(17, 2, 0)
	if err := v.InsertPose(mustTagKey(t, 5), geom.Identity()); err != nil {
		t.Fatal(err)
	}

	keys := v.CategoryKeys(keyspace.WorldCorner)
	if len(keys) != 3 {
		t.Fatalf("want 3 world-corner keys, got %d", len(keys))
	}
	for i := 1; i < len(keys); i++ {
		if keys[i] <= keys[i-1] {
			t.Fatal("world-corner keys not in ascending order")
		}
	}
	frame0, tag0, _, _ := keyspace.DecodeWorldCorner(keys[0])
	if frame0 != 0 || tag0 != 0 {
		t.Fatalf("first key should be tag 0 frame 0, got tag %d frame %d", tag0, frame0)
	}
}
