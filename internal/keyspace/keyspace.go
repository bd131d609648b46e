// Package keyspace maps physical entities and time frames onto a flat,
// collision-free space of optimization-variable identifiers.
//
// Every variable key carries a category (what kind of entity it names), an
// entity index, and a frame number, packed into a single uint64 so keys can
// be used directly as map keys and sorted into a stable order. Each category
// owns a disjoint namespace; bounds are validated at encode time so two
// distinct (category, index, frame) triples can never alias.
package keyspace

import (
	"errors"
	"fmt"
)

// Category discriminates the kinds of optimization variables.
type Category uint8

const (
	// TagTransform is the tag-to-body transform T_b_o, one per tag id,
	// frame-independent.
	TagTransform Category = iota + 1
	// WorldCorner is a tag corner point in world coordinates.
	WorldCorner
	// CameraPose is the camera-to-world transform T_w_c.
	CameraPose
	// BodyPose is the body-to-world transform T_w_b.
	BodyPose
)

func (c Category) String() string {
	switch c {
	case TagTransform:
		return "tag-transform"
	case WorldCorner:
		return "world-corner"
	case CameraPose:
		return "camera-pose"
	case BodyPose:
		return "body-pose"
	}
	return fmt.Sprintf("category(%d)", uint8(c))
}

// Encoding bounds. Raising MaxTagID widens the world-corner stride and
// tightens maxWorldFrame accordingly; the encoder checks both.
const (
	// MaxTagID is the largest encodable tag id.
	MaxTagID = 255
	// MaxCameraCount bounds camera indices: valid indices are [0, MaxCameraCount).
	MaxCameraCount = 8
	// MaxBodyCount bounds body indices: valid indices are [0, MaxBodyCount).
	// Derived from a 26-symbol alphabet minus one reserved symbol.
	MaxBodyCount = 25

	indexBits   = 56 // low bits of a key hold the per-category index
	indexMask   = (uint64(1) << indexBits) - 1
	cornerCount = 4
	tagStride   = cornerCount * (MaxTagID + 1)
	// maxWorldFrame is the largest frame for which a world-corner key still
	// fits in the index field without aliasing a later frame.
	maxWorldFrame = (indexMask - (tagStride - 1)) / tagStride
	// entityFrameBits splits camera/body indices from their frame number.
	entityFrameBits = 48
	maxEntityFrame  = (uint64(1) << entityFrameBits) - 1
)

// ErrKeyRange reports an entity index or frame that exceeds the reserved
// encoding width. It is a programmer-facing defect, not a recoverable
// runtime condition.
var ErrKeyRange = errors.New("key encoding out of range")

// Key is a packed optimization-variable identifier: category in the top
// byte, category-specific index in the low 56 bits. The numeric order of
// keys groups variables by category and, within a category, by frame then
// entity (world corners) or entity then frame (cameras, bodies).
type Key uint64

func pack(c Category, index uint64) Key {
	return Key(uint64(c)<<indexBits | index)
}

// Category returns the key's variable category.
func (k Key) Category() Category {
	return Category(uint64(k) >> indexBits)
}

// Index returns the raw category-specific index.
func (k Key) Index() uint64 {
	return uint64(k) & indexMask
}

func (k Key) String() string {
	if k.Category() == WorldCorner {
		frame, tagID, corner, err := DecodeWorldCorner(k)
		if err == nil {
			return fmt.Sprintf("%v(tag=%d,corner=%d,frame=%d)", k.Category(), tagID, corner, frame)
		}
	}
	return fmt.Sprintf("%v(%d)", k.Category(), k.Index())
}

// TagTransformKey returns the key of the tag-to-body transform for tagID.
func TagTransformKey(tagID int) (Key, error) {
	if tagID < 0 || tagID > MaxTagID {
		return 0, fmt.Errorf("tag id %d exceeds maximum %d: %w", tagID, MaxTagID, ErrKeyRange)
	}
	return pack(TagTransform, uint64(tagID)), nil
}

// WorldCornerKey returns the key of tag tagID's corner (0..3) in world
// coordinates at the given frame. Frames are bounded so the packed index
// cannot overflow into a neighbouring frame's range.
func WorldCornerKey(tagID, corner int, frame uint64) (Key, error) {
	if tagID < 0 || tagID > MaxTagID {
		return 0, fmt.Errorf("tag id %d exceeds maximum %d: %w", tagID, MaxTagID, ErrKeyRange)
	}
	if corner < 0 || corner >= cornerCount {
		return 0, fmt.Errorf("corner %d outside [0,%d): %w", corner, cornerCount, ErrKeyRange)
	}
	if frame > maxWorldFrame {
		return 0, fmt.Errorf("frame %d exceeds world-corner capacity %d: %w", frame, uint64(maxWorldFrame), ErrKeyRange)
	}
	return pack(WorldCorner, frame*tagStride+uint64(tagID)*cornerCount+uint64(corner)), nil
}

// DecodeWorldCorner is the inverse of WorldCornerKey.
func DecodeWorldCorner(k Key) (frame uint64, tagID, corner int, err error) {
	if k.Category() != WorldCorner {
		return 0, 0, 0, fmt.Errorf("key %v is not a world corner", k.Category())
	}
	idx := k.Index()
	frame = idx / tagStride
	rem := idx % tagStride
	return frame, int(rem / cornerCount), int(rem % cornerCount), nil
}

// CameraPoseKey returns the key of camera camID's pose at the given frame.
// Static cameras use frame 0 for all observations.
func CameraPoseKey(camID int, frame uint64) (Key, error) {
	if camID < 0 || camID >= MaxCameraCount {
		return 0, fmt.Errorf("camera index %d exceeds maximum %d: %w", camID, MaxCameraCount-1, ErrKeyRange)
	}
	if frame > maxEntityFrame {
		return 0, fmt.Errorf("frame %d exceeds camera frame capacity: %w", frame, ErrKeyRange)
	}
	return pack(CameraPose, uint64(camID)<<entityFrameBits|frame), nil
}

// BodyPoseKey returns the key of body bodyID's pose at the given frame.
// Static bodies use frame 0 for all observations.
func BodyPoseKey(bodyID int, frame uint64) (Key, error) {
	if bodyID < 0 || bodyID >= MaxBodyCount {
		return 0, fmt.Errorf("body index %d exceeds maximum %d: %w", bodyID, MaxBodyCount-1, ErrKeyRange)
	}
	if frame > maxEntityFrame {
		return 0, fmt.Errorf("frame %d exceeds body frame capacity: %w", frame, ErrKeyRange)
	}
	return pack(BodyPose, uint64(bodyID)<<entityFrameBits|frame), nil
}
