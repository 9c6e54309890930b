package kinematics

import (
	"fmt"

	"github.com/itohio/gomotion/spatial"
)

// Trivial is the identity/"trivkins" plug-in: a direct 6-DoF mapping of
// joints (x, y, z, roll, pitch, yaw) straight onto the ECP, with no
// coupling. Used for bring-up and the boot/init scenario in spec.md §8.
type Trivial struct {
	links []Link
}

var _ Model = (*Trivial)(nil)

// NewTrivial creates the 6-axis identity kinematics plug-in.
func NewTrivial() *Trivial {
	types := []spatial.JointType{spatial.Linear, spatial.Linear, spatial.Linear, spatial.Angular, spatial.Angular, spatial.Angular}
	links := make([]Link, 6)
	for i, t := range types {
		links[i] = Link{Kind: LinkPoseAndPoint, Type: t, MinLimit: -1e6, MaxLimit: 1e6}
	}
	return &Trivial{links: links}
}

func (t *Trivial) Name() string   { return "trivial" }
func (t *Trivial) NumJoints() int { return 6 }
func (t *Trivial) Type() Type     { return TypeBoth }

func (t *Trivial) JointTypes() []spatial.JointType {
	out := make([]spatial.JointType, len(t.links))
	for i, l := range t.links {
		out[i] = l.Type
	}
	return out
}

func (t *Trivial) SetParameters(links []Link) error {
	if len(links) != 6 {
		return fmt.Errorf("%w: trivial kinematics is fixed at 6 joints", ErrInvalidParameters)
	}
	t.links = append([]Link(nil), links...)
	return nil
}

func (t *Trivial) GetParameters() []Link { return append([]Link(nil), t.links...) }

func (t *Trivial) Forward(joints spatial.JointVector) (spatial.Pose, error) {
	if len(joints) != 6 {
		return spatial.Pose{}, fmt.Errorf("%w: forward expects 6 joints, got %d", ErrInvalidParameters, len(joints))
	}
	roll := spatial.FromAxisAngle(spatial.Vec3{X: 1}, joints[3])
	pitch := spatial.FromAxisAngle(spatial.Vec3{Y: 1}, joints[4])
	yaw := spatial.FromAxisAngle(spatial.Vec3{Z: 1}, joints[5])
	rot := yaw.Product(pitch).Product(roll)
	return spatial.Pose{Tran: spatial.Vec3{X: joints[0], Y: joints[1], Z: joints[2]}, Rot: rot}, nil
}

func (t *Trivial) Inverse(target spatial.Pose, seed spatial.JointVector) (spatial.JointVector, error) {
	joints := spatial.JointVector{
		target.Tran.X, target.Tran.Y, target.Tran.Z,
		target.Rot.Roll(), target.Rot.Pitch(), target.Rot.Yaw(),
	}
	if len(seed) == 6 {
		return spatial.ShiftToNearestRevolution(joints, seed, t.JointTypes()), nil
	}
	return joints, nil
}

func (t *Trivial) JacobianForward(joints, jointVel spatial.JointVector) (spatial.VelocityPose, error) {
	if len(joints) != 6 || len(jointVel) != 6 {
		return spatial.VelocityPose{}, ErrInvalidParameters
	}
	return spatial.VelocityPose{
		Tran: spatial.Vec3{X: jointVel[0], Y: jointVel[1], Z: jointVel[2]},
		Rot:  spatial.Vec3{X: jointVel[3], Y: jointVel[4], Z: jointVel[5]},
	}, nil
}

func (t *Trivial) JacobianInverse(joints spatial.JointVector, vel spatial.VelocityPose) (spatial.JointVector, error) {
	if len(joints) != 6 {
		return nil, ErrInvalidParameters
	}
	return spatial.JointVector{vel.Tran.X, vel.Tran.Y, vel.Tran.Z, vel.Rot.X, vel.Rot.Y, vel.Rot.Z}, nil
}
