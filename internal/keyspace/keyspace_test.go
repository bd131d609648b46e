package keyspace

import (
	"errors"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTagTransformKey_Bounds(t *testing.T) {
	if _, err := TagTransformKey(0); err != nil {
		t.Fatalf("tag 0 should encode: %v", err)
	}
	if _, err := TagTransformKey(MaxTagID); err != nil {
		t.Fatalf("tag %d should encode: %v", MaxTagID, err)
	}
	_, err := TagTransformKey(300)
	if !errors.Is(err, ErrKeyRange) {
		t.Fatalf("tag 300 should fail with ErrKeyRange, got %v", err)
	}
	if _, err := TagTransformKey(-1); !errors.Is(err, ErrKeyRange) {
		t.Fatal("negative tag id should fail with ErrKeyRange")
	}
}

func TestCameraAndBodyKey_Bounds(t *testing.T) {
	if _, err := CameraPoseKey(MaxCameraCount-1, 12); err != nil {
		t.Fatalf("camera %d should encode: %v", MaxCameraCount-1, err)
	}
	if _, err := CameraPoseKey(MaxCameraCount, 0); !errors.Is(err, ErrKeyRange) {
		t.Fatal("camera index at limit should fail")
	}
	if _, err := BodyPoseKey(MaxBodyCount-1, 3); err != nil {
		t.Fatalf("body %d should encode: %v", MaxBodyCount-1, err)
	}
	if _, err := BodyPoseKey(MaxBodyCount, 0); !errors.Is(err, ErrKeyRange) {
		t.Fatal("body index at limit should fail")
	}
}

func TestWorldCornerRoundTrip(t *testing.T) {
	cases := []struct {
		tagID, corner int
		frame         uint64
	}{
		{0, 0, 0},
		{255, 3, 0},
		{17, 2, 981},
		{255, 3, maxWorldFrame},
	}
	for _, tc := range cases {
		k, err := WorldCornerKey(tc.tagID, tc.corner, tc.frame)
		if err != nil {
			t.Fatalf("encode (%d,%d,%d): %v", tc.tagID, tc.corner, tc.frame, err)
		}
		frame, tagID, corner, err := DecodeWorldCorner(k)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if frame != tc.frame || tagID != tc.tagID || corner != tc.corner {
			t.Fatalf("round trip (%d,%d,%d) -> (%d,%d,%d)",
				tc.tagID, tc.corner, tc.frame, tagID, corner, frame)
		}
	}
}

func TestWorldCornerFrameOverflowIsHardError(t *testing.T) {
	if _, err := WorldCornerKey(0, 0, maxWorldFrame+1); !errors.Is(err, ErrKeyRange) {
		t.Fatal("frame past capacity must fail with ErrKeyRange, not wrap")
	}
}

func TestNoAliasingAcrossDenseRange(t *testing.T) {
	// Adjacent (frame, tag, corner) triples must produce distinct keys even
	// at the edges of the per-frame stride.
	seen := map[Key]struct{}{}
	for frame := uint64(0); frame < 3; frame++ {
		for tag := 0; tag <= MaxTagID; tag += 51 {
			for corner := 0; corner < 4; corner++ {
				k, err := WorldCornerKey(tag, corner, frame)
				if err != nil {
					t.Fatal(err)
				}
				if _, dup := seen[k]; dup {
					t.Fatalf("key collision at tag=%d corner=%d frame=%d", tag, corner, frame)
				}
				seen[k] = struct{}{}
			}
		}
	}
}

func TestCategoriesAreDisjoint(t *testing.T) {
	kt, _ := TagTransformKey(5)
	kw, _ := WorldCornerKey(5, 0, 0)
	kc, _ := CameraPoseKey(5, 0)
	kb, _ := BodyPoseKey(5, 0)
	keys := []Key{kt, kw, kc, kb}
	for i := range keys {
		for j := i + 1; j < len(keys); j++ {
			if keys[i] == keys[j] {
				t.Fatalf("categories %v and %v collide", keys[i].Category(), keys[j].Category())
			}
		}
	}
}

func TestWorldCornerKeysSortByFrameThenTag(t *testing.T) {
	type triple struct {
		Frame       uint64
		Tag, Corner int
	}
	var keys []Key
	for _, in := range []triple{{0, 200, 3}, {1, 1, 0}, {0, 0, 1}, {1, 50, 2}} {
		k, err := WorldCornerKey(in.Tag, in.Corner, in.Frame)
		if err != nil {
			t.Fatal(err)
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	var got []triple
	for _, k := range keys {
		frame, tag, corner, err := DecodeWorldCorner(k)
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, triple{frame, tag, corner})
	}
	want := []triple{{0, 0, 1}, {0, 200, 3}, {1, 1, 0}, {1, 50, 2}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("sorted key order mismatch (-want +got):\n%s", diff)
	}
}
