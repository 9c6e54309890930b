package motion

import (
	"github.com/itohio/gomotion/spatial"
)

// Mode selects whether the queue is currently producing joint vectors or
// Cartesian poses (spec.md §3, "Motion segment").
type Mode int

const (
	ModeJoint Mode = iota
	ModeWorld
)

// SegmentType tags the four motion primitives spec.md §3 names.
type SegmentType int

const (
	SegmentUjoint SegmentType = iota
	SegmentJoint
	SegmentWorldLinear
	SegmentWorldCircular
)

// Limits is a (velocity, acceleration, jerk) triple, used both for
// translational/rotational world limits and for per-joint limits.
type Limits struct {
	Vel, Accel, Jerk float32
}

// Segment is one queued motion primitive. Only the fields relevant to Type
// are populated by the producer; the generator reads the rest as zero.
type Segment struct {
	ID   uint64
	Type SegmentType

	// Joint / Ujoint
	JointEnd   spatial.JointVector
	JointLimit []Limits // one per joint

	// World_Linear / World_Circular
	PoseEnd   spatial.Pose
	TranLimit Limits
	RotLimit  Limits

	// World_Circular only
	Center spatial.Vec3
	Normal spatial.Vec3
	Turns  int

	// Time, if non-zero, overrides the limit-derived duration and scales
	// the profile uniformly (spec.md §3, "Motion segment").
	Time float32
}
