package kinematics

import (
	"fmt"

	"github.com/itohio/gomotion/spatial"
)

// Hexapod is a 6-leg parallel-kinematics (Stewart-platform) plug-in, the
// parallel-kinematics counterpart to Serial's serial chains. Each joint is
// an actuator leg whose length is the distance between a fixed base point
// and a platform point (spec.md §3, "parallel-kinematics point pair").
//
// Parallel mechanisms invert the usual serial-arm difficulty: inverse
// kinematics (pose -> leg lengths) is closed form, forward kinematics (leg
// lengths -> pose) needs Newton iteration — ported in spirit from the
// teacher's DH Jacobian-iteration loop, applied here to a 6-parameter pose
// perturbation instead of joint angles.
type Hexapod struct {
	links         []Link
	eps           float32
	maxIterations int
	damping       float32
}

var _ Model = (*Hexapod)(nil)

// NewHexapod creates a 6-leg Stewart-platform model from base/platform point
// pairs (one per leg).
func NewHexapod(legs []ParallelPointParams) *Hexapod {
	links := make([]Link, len(legs))
	for i, leg := range legs {
		links[i] = Link{Kind: LinkParallelPoint, Type: spatial.Linear, PP: leg, MinLimit: -1e6, MaxLimit: 1e6}
	}
	return &Hexapod{links: links, eps: 1e-5, maxIterations: 50, damping: 0.05}
}

func (h *Hexapod) Name() string   { return "hexapod" }
func (h *Hexapod) NumJoints() int { return len(h.links) }
func (h *Hexapod) Type() Type     { return TypeBoth }

func (h *Hexapod) JointTypes() []spatial.JointType {
	out := make([]spatial.JointType, len(h.links))
	for i := range out {
		out[i] = spatial.Linear
	}
	return out
}

func (h *Hexapod) SetParameters(links []Link) error {
	if len(links) != len(h.links) {
		return fmt.Errorf("%w: want %d legs, got %d", ErrInvalidParameters, len(h.links), len(links))
	}
	h.links = append([]Link(nil), links...)
	return nil
}

func (h *Hexapod) GetParameters() []Link { return append([]Link(nil), h.links...) }

// legLengths returns each leg's length at the given platform pose.
func (h *Hexapod) legLengths(pose spatial.Pose) spatial.JointVector {
	out := make(spatial.JointVector, len(h.links))
	for i, l := range h.links {
		platformWorld := pose.TransformVec3(l.PP.Platform)
		out[i] = platformWorld.Sub(l.PP.Base).Norm()
	}
	return out
}

// Inverse is the closed-form direction for a parallel mechanism: platform
// pose -> leg lengths.
func (h *Hexapod) Inverse(target spatial.Pose, _ spatial.JointVector) (spatial.JointVector, error) {
	return h.legLengths(target), nil
}

// Forward is the iterative direction: leg lengths -> platform pose.
func (h *Hexapod) Forward(joints spatial.JointVector) (spatial.Pose, error) {
	if len(joints) != len(h.links) {
		return spatial.Pose{}, fmt.Errorf("%w: forward expects %d legs, got %d", ErrInvalidParameters, len(h.links), len(joints))
	}
	pose := spatial.Identity
	for iter := 0; iter < h.maxIterations; iter++ {
		cur := h.legLengths(pose)
		errVec := make([]float32, len(joints))
		var normSq float32
		for i := range joints {
			errVec[i] = joints[i] - cur[i]
			normSq += errVec[i] * errVec[i]
		}
		if normSq < h.eps*h.eps {
			return pose, nil
		}

		j := h.poseJacobian(pose)
		delta, err := dampedLeastSquaresSolve(j, errVec, h.damping)
		if err != nil {
			return spatial.Pose{}, err
		}
		pose = perturbPose(pose, delta)
	}
	return spatial.Pose{}, ErrNoConvergence
}

// poseJacobian computes the 6-leg x 6-pose-parameter Jacobian of
// legLengths around pose, by central differences on a local pose
// perturbation (dx, dy, dz, rx, ry, rz).
func (h *Hexapod) poseJacobian(pose spatial.Pose) *matrix {
	const step = 1e-4
	n := len(h.links)
	j := newMatrix(n, 6)
	base := h.legLengths(pose)
	for p := 0; p < 6; p++ {
		delta := make([]float32, 6)
		delta[p] = step
		perturbed := h.legLengths(perturbPose(pose, delta))
		for r := 0; r < n; r++ {
			j.set(r, p, (perturbed[r]-base[r])/step)
		}
	}
	return j
}

// perturbPose applies a local 6-vector perturbation (translation, then a
// small-angle rotation expressed in the world frame) to pose.
func perturbPose(pose spatial.Pose, delta []float32) spatial.Pose {
	dt := spatial.Vec3{X: delta[0], Y: delta[1], Z: delta[2]}
	axis := spatial.Vec3{X: delta[3], Y: delta[4], Z: delta[5]}
	angle := axis.Norm()
	dq := spatial.IdentityQuaternion
	if angle > 1e-9 {
		dq = spatial.FromAxisAngle(axis, angle)
	}
	return spatial.Pose{Tran: pose.Tran.Add(dt), Rot: dq.Product(pose.Rot).Normalized()}
}

func (h *Hexapod) JacobianInverse(joints spatial.JointVector, vel spatial.VelocityPose) (spatial.JointVector, error) {
	pose, err := h.Forward(joints)
	if err != nil {
		return nil, err
	}
	j := h.poseJacobian(pose)
	velVec := []float32{vel.Tran.X, vel.Tran.Y, vel.Tran.Z, vel.Rot.X, vel.Rot.Y, vel.Rot.Z}
	return spatial.JointVector(j.mulVec(velVec)), nil
}

func (h *Hexapod) JacobianForward(joints, jointVel spatial.JointVector) (spatial.VelocityPose, error) {
	pose, err := h.Forward(joints)
	if err != nil {
		return spatial.VelocityPose{}, err
	}
	j := h.poseJacobian(pose)
	delta, err := dampedLeastSquaresSolve(j, []float32(jointVel), h.damping)
	if err != nil {
		return spatial.VelocityPose{}, err
	}
	return spatial.VelocityPose{
		Tran: spatial.Vec3{X: delta[0], Y: delta[1], Z: delta[2]},
		Rot:  spatial.Vec3{X: delta[3], Y: delta[4], Z: delta[5]},
	}, nil
}
