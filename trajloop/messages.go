// Package trajloop implements the trajectory loop (spec.md §4.4): the
// single mid-tier loop that turns task-level motion commands into per-joint
// servo setpoints via the motion queue and a kinematics plug-in, clocked by
// Servo 0's semaphore.
package trajloop

import (
	"github.com/itohio/gomotion/kinematics"
	"github.com/itohio/gomotion/motion"
	"github.com/itohio/gomotion/spatial"
)

// Command selects which per-cycle state table Tick runs (spec.md §4.4
// step 5).
type Command int

const (
	CmdNop Command = iota
	CmdInit
	CmdAbort
	CmdHalt
	CmdShutdown
	CmdStop
	CmdMoveUjoint
	CmdMoveJoint
	CmdMoveWorld
	CmdMoveTool
	CmdTrackWorld
	CmdTrackJoint
	CmdTeleopJoint
	CmdTeleopWorld
	CmdTeleopTool
	CmdHere
)

// CmdPayload is the per-cycle command published to the trajectory loop.
// Only the fields relevant to Command are read.
type CmdPayload struct {
	Command Command
	ID      uint64

	JointEnd       spatial.JointVector
	PoseEnd        spatial.Pose
	Center         spatial.Vec3
	Normal         spatial.Vec3
	Turns          int
	Time           float32
	TrackJoints    spatial.JointVector
	TrackPose      spatial.Pose
	TeleopVel      spatial.VelocityPose
	TeleopJointVel spatial.JointVector
}

// RefPayload is the externally-supplied compensation frame (spec.md §4.4
// step 6, "walk-in" filter).
type RefPayload struct {
	Xinv spatial.Pose
}

// CfgPayload bundles the parallel configuration tables (spec.md §4.4,
// "Configuration state tables").
type CfgPayload struct {
	CycleTime float32
	CycleMult int
	Debug     bool

	JointLimitMin, JointLimitMax spatial.JointVector
	TranLimit, RotLimit          motion.Limits
	JointLimits                  []motion.Limits

	// WorldPosMin/WorldPosMax bound the ECP translation in world mode
	// (spec.md §8 invariant 5, "Limits box"). A world move whose target
	// would exceed them is clamped rather than rejected.
	WorldPosMin, WorldPosMax spatial.Vec3

	MaxTVel, MaxRVel, MaxTAccel, MaxRAccel, MaxTJerk, MaxRJerk float32

	KinematicsName  string
	KinematicsLinks []kinematics.Link

	// Scale is the requested feedrate override; MaxScale/ScaleV/ScaleA bound
	// it and its ramp rate (spec.md §8 invariant 9, "Timescale bounds":
	// 0 <= scale <= max_scale, 0 < scale_v <= max_scale_v, 0 < scale_a <=
	// max_scale_a — ScaleV/ScaleA double as both the requested and ceiling
	// ramp rate since this repo exposes one configured value per axis).
	Scale, MaxScale, ScaleV, ScaleA float32

	ToolTransform spatial.Pose

	// Home is the world-frame pose of the "home" position, carried as a
	// full pose (not just JointLimitMin/Max) so a live ToolTransform change
	// can re-express it the same way it re-expresses WorldPosMin/Max.
	Home spatial.Pose

	LogEnabled bool
}

// StatPayload is the per-cycle status the trajectory loop publishes.
type StatPayload struct {
	JointsActive int
	JointsHomed  int
	Homed        bool
	Command      Command
	KCP          spatial.Pose
	ECP          spatial.Pose
	Joints       spatial.JointVector
	QueueLen     int
	ClampWarning bool
	Scale        float32
}

// SetPayload echoes the effective cfg back.
type SetPayload struct {
	CfgPayload
}
