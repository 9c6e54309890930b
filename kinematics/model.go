// Package kinematics is the Go mirror of the consumed kinematics plug-in
// interface (spec.md §6, "Kinematics plug-in interface"): a named,
// pluggable table of forward/inverse/Jacobian functions, selected by string
// match on the `KINEMATICS` config key (Design Notes §9, "tagged variants").
package kinematics

import (
	"errors"

	"github.com/itohio/gomotion/spatial"
)

// Type classifies which directions of mapping a Model supports (spec.md §6).
type Type int

const (
	TypeBoth Type = iota
	TypeForward
	TypeInverse
)

// LinkKind selects which of the five link-parameter encodings (spec.md §3,
// "Link parameters") a given joint uses.
type LinkKind int

const (
	LinkDH LinkKind = iota
	LinkParallelPoint
	LinkPoseAndPoint
	LinkURDF
	LinkBodyInertia
)

// DHParams is (a, alpha, d, theta) — the classic Denavit-Hartenberg link
// parameters. theta is the variable joint angle for a revolute joint.
type DHParams struct {
	A, Alpha, D, Theta float32
}

// ParallelPointParams is a base-point/platform-point pair used by
// parallel-kinematics (Stewart-platform-style) legs.
type ParallelPointParams struct {
	Base, Platform spatial.Vec3
}

// PoseAndPointParams combines a fixed pose and a point, used by some
// hybrid serial/parallel joints.
type PoseAndPointParams struct {
	Pose  spatial.Pose
	Point spatial.Vec3
}

// URDFParams is a pose plus a rotation/translation axis, mirroring ROS
// URDF joint definitions.
type URDFParams struct {
	Origin spatial.Pose
	Axis   spatial.Vec3
}

// BodyInertiaParams is a rigid-body mass/inertia block, carried for dynamics
// consumers even though this core only performs kinematics.
type BodyInertiaParams struct {
	Mass    float32
	Inertia [9]float32 // row-major 3x3
}

// Link is one joint's link-parameter record, tagged by LinkKind.
type Link struct {
	Kind LinkKind
	Type spatial.JointType

	DH       DHParams
	PP       ParallelPointParams
	PoseAndPoint PoseAndPointParams
	URDF     URDFParams
	Inertia  BodyInertiaParams

	MinLimit, MaxLimit float32
}

var (
	// ErrUnsupportedOperation is returned when a model cannot perform the
	// requested mapping at all (e.g. spherist joints 4-6 inverse, spec.md
	// §9 open question 3).
	ErrUnsupportedOperation = errors.New("kinematics: unsupported operation")
	// ErrNoConvergence is returned by iterative solvers that exhaust their
	// iteration budget without reaching the configured tolerance.
	ErrNoConvergence = errors.New("kinematics: inverse kinematics did not converge")
	// ErrSingular indicates a Jacobian (or its pseudo-inverse) is singular
	// at the current configuration.
	ErrSingular = errors.New("kinematics: singular Jacobian")
	// ErrInvalidParameters indicates SetParameters was called with a
	// parameter count that does not match the model.
	ErrInvalidParameters = errors.New("kinematics: invalid parameter count")
	// ErrNotFound is returned by Select when no plug-in matches the name.
	ErrNotFound = errors.New("kinematics: no plug-in registered under that name")
)

// Model is the common operations interface every kinematics variant
// implements (spec.md §6, Design Notes §9).
type Model interface {
	// Name returns the plug-in's registered name.
	Name() string
	// NumJoints returns the number of joints (degrees of freedom) exposed.
	NumJoints() int
	// JointTypes returns the semantic type of each joint, used for the
	// nearest-revolution rule (spec.md §3).
	JointTypes() []spatial.JointType
	// SetParameters replaces the link-parameter table.
	SetParameters(links []Link) error
	// GetParameters returns the current link-parameter table.
	GetParameters() []Link
	// Forward maps a joint vector to the end-effector (KCP) pose.
	Forward(joints spatial.JointVector) (spatial.Pose, error)
	// Inverse maps a target pose to a joint vector, seeded from seed to
	// avoid branch jumps across redundant solutions.
	Inverse(target spatial.Pose, seed spatial.JointVector) (spatial.JointVector, error)
	// JacobianForward maps a joint-velocity vector to a Cartesian velocity
	// at the given joint configuration.
	JacobianForward(joints spatial.JointVector, jointVel spatial.JointVector) (spatial.VelocityPose, error)
	// JacobianInverse maps a Cartesian velocity to a joint-velocity vector
	// at the given joint configuration.
	JacobianInverse(joints spatial.JointVector, vel spatial.VelocityPose) (spatial.JointVector, error)
	// Type reports which mapping directions are supported.
	Type() Type
}
