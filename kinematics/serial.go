package kinematics

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/itohio/gomotion/spatial"
)

// Serial is a generic N-joint Denavit-Hartenberg serial-chain kinematics
// model. It backs the "generic serial" plug-in and every named preset that
// is itself just a particular DH table (PUMA, SCARA, Fanuc, Fanuc
// LRMate200iD, Three21, Roboch) — exactly as spec.md §3 describes
// link parameters being consumed uniformly through
// set_parameters/get_parameters regardless of arm family.
//
// Built around a Jacobian-iteration pattern (forwardInternal/inverseInternal), generalized
// from position-only to full 6-DoF pose error and damped least squares so it
// degrades near singularities instead of failing to converge.
type Serial struct {
	name          string
	links         []Link
	eps           float32
	maxIterations int
	damping       float32
}

var _ Model = (*Serial)(nil)

// NewSerial creates a generic serial-chain model named name, seeded with an
// initial link table (its length fixes NumJoints for the model's lifetime).
func NewSerial(name string, links []Link) *Serial {
	return &Serial{
		name:          name,
		links:         append([]Link(nil), links...),
		eps:           1e-5,
		maxIterations: 50,
		damping:       0.05,
	}
}

func (s *Serial) Name() string   { return s.name }
func (s *Serial) NumJoints() int { return len(s.links) }
func (s *Serial) Type() Type     { return TypeBoth }

func (s *Serial) JointTypes() []spatial.JointType {
	out := make([]spatial.JointType, len(s.links))
	for i, l := range s.links {
		out[i] = l.Type
	}
	return out
}

func (s *Serial) SetParameters(links []Link) error {
	if len(links) != len(s.links) {
		return fmt.Errorf("%w: want %d links, got %d", ErrInvalidParameters, len(s.links), len(links))
	}
	s.links = append([]Link(nil), links...)
	return nil
}

func (s *Serial) GetParameters() []Link {
	return append([]Link(nil), s.links...)
}

// linkTransform returns link i's local transform given the active joint
// value (added to theta for a revolute joint, to d for a prismatic one).
func linkTransform(l Link, value float32) spatial.Pose {
	theta, d := l.DH.Theta, l.DH.D
	if l.Type == spatial.Angular {
		theta += value
	} else {
		d += value
	}
	rz := spatial.Pose{Rot: spatial.FromAxisAngle(spatial.Vec3{Z: 1}, theta)}
	tz := spatial.Pose{Tran: spatial.Vec3{Z: d}}
	tx := spatial.Pose{Tran: spatial.Vec3{X: l.DH.A}}
	rx := spatial.Pose{Rot: spatial.FromAxisAngle(spatial.Vec3{X: 1}, l.DH.Alpha)}
	return rz.Mul(tz).Mul(tx).Mul(rx)
}

func (s *Serial) Forward(joints spatial.JointVector) (spatial.Pose, error) {
	if len(joints) != len(s.links) {
		return spatial.Pose{}, fmt.Errorf("%w: forward expects %d joints, got %d", ErrInvalidParameters, len(s.links), len(joints))
	}
	pose := spatial.Identity
	for i, l := range s.links {
		pose = pose.Mul(linkTransform(l, joints[i]))
	}
	return pose, nil
}

func (s *Serial) Inverse(target spatial.Pose, seed spatial.JointVector) (spatial.JointVector, error) {
	n := len(s.links)
	joints := make(spatial.JointVector, n)
	if len(seed) == n {
		copy(joints, seed)
	}

	for iter := 0; iter < s.maxIterations; iter++ {
		cur, err := s.Forward(joints)
		if err != nil {
			return nil, err
		}

		errVec := poseError(target, cur)
		if vecNorm(errVec) < s.eps {
			return spatial.ShiftToNearestRevolution(joints, seed, s.JointTypes()), nil
		}

		j := s.numericJacobian(joints)
		delta, solveErr := dampedLeastSquaresSolve(j, errVec, s.damping)
		if solveErr != nil {
			return nil, fmt.Errorf("%s: %w", s.name, solveErr)
		}
		for i := range joints {
			joints[i] += delta[i]
		}
	}
	return nil, fmt.Errorf("%s: %w", s.name, ErrNoConvergence)
}

// numericJacobian computes a 6xN Jacobian (3 position rows, 3 small-angle
// orientation rows) by central finite differences around joints.
func (s *Serial) numericJacobian(joints spatial.JointVector) *matrix {
	const h = 1e-4
	n := len(joints)
	j := newMatrix(6, n)
	base, _ := s.Forward(joints)
	for i := 0; i < n; i++ {
		perturbed := joints.Clone()
		perturbed[i] += h
		fwd, _ := s.Forward(perturbed)
		d := poseError(fwd, base)
		for r := 0; r < 6; r++ {
			j.set(r, i, d[r]/h)
		}
	}
	return j
}

func (s *Serial) JacobianForward(joints, jointVel spatial.JointVector) (spatial.VelocityPose, error) {
	if len(joints) != len(s.links) || len(jointVel) != len(s.links) {
		return spatial.VelocityPose{}, ErrInvalidParameters
	}
	j := s.numericJacobian(joints)
	v := j.mulVec(jointVel)
	return spatial.VelocityPose{
		Tran: spatial.Vec3{X: v[0], Y: v[1], Z: v[2]},
		Rot:  spatial.Vec3{X: v[3], Y: v[4], Z: v[5]},
	}, nil
}

func (s *Serial) JacobianInverse(joints spatial.JointVector, vel spatial.VelocityPose) (spatial.JointVector, error) {
	if len(joints) != len(s.links) {
		return nil, ErrInvalidParameters
	}
	j := s.numericJacobian(joints)
	errVec := [6]float32{vel.Tran.X, vel.Tran.Y, vel.Tran.Z, vel.Rot.X, vel.Rot.Y, vel.Rot.Z}
	out, err := dampedLeastSquaresSolve(j, errVec[:], s.damping)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.name, err)
	}
	return spatial.JointVector(out), nil
}

// poseError returns a 6-vector (translation error, small-angle rotation
// error) of target relative to actual, suitable as a Newton/Jacobian
// residual.
func poseError(target, actual spatial.Pose) []float32 {
	dt := target.Tran.Sub(actual.Tran)
	dq := actual.Rot.Conjugate().Product(target.Rot)
	// Small-angle vector part of dq, scaled by 2 (standard quaternion
	// error-to-angular-velocity linearization).
	sign := float32(1)
	if dq.W < 0 {
		sign = -1
	}
	rotErrLocal := spatial.Vec3{X: 2 * sign * dq.X, Y: 2 * sign * dq.Y, Z: 2 * sign * dq.Z}
	rotErr := actual.Rot.RotateVec3(rotErrLocal)
	return []float32{dt.X, dt.Y, dt.Z, rotErr.X, rotErr.Y, rotErr.Z}
}

func vecNorm(v []float32) float32 {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	return math32.Sqrt(sum)
}
