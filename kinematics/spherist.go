package kinematics

import (
	"fmt"

	"github.com/itohio/gomotion/spatial"
)

// Spherist is a 6-DoF serial arm with a spherical wrist (joints 4-6 share a
// common intersection point), modeled as a DH chain. Its forward kinematics
// is complete; its inverse kinematics only solves the position-coupled
// joints 1-3 (a standard decoupled-wrist position solve) and deliberately
// leaves the wrist orientation joints 4-6 unimplemented, exactly mirroring
// the original `spherist_kin_inv`'s GO_RESULT_IMPL_ERROR for those joints
// (spec.md §9, open question: "treat it as forward-only for now").
type Spherist struct {
	*Serial
}

var _ Model = (*Spherist)(nil)

// NewSpherist creates a spherical-wrist 6-DoF arm from its 6 DH links.
func NewSpherist(links []Link) *Spherist {
	return &Spherist{Serial: NewSerial("spherist", links)}
}

func (s *Spherist) Name() string { return "spherist" }
func (s *Spherist) Type() Type   { return TypeForward }

// Inverse solves joints 1-3 (shoulder position) from the target's
// translation only, holding joints 4-6 at their seed value, then always
// reports ErrUnsupportedOperation — matching the original's partial-output,
// impl-error contract rather than silently pretending the wrist solve
// succeeded.
func (s *Spherist) Inverse(target spatial.Pose, seed spatial.JointVector) (spatial.JointVector, error) {
	n := s.NumJoints()
	if n < 6 {
		return nil, fmt.Errorf("%w: spherist requires 6 links, got %d", ErrInvalidParameters, n)
	}

	joints := make(spatial.JointVector, n)
	if len(seed) == n {
		copy(joints, seed)
	}

	for iter := 0; iter < 50; iter++ {
		cur, err := s.Forward(joints)
		if err != nil {
			return joints, ErrUnsupportedOperation
		}
		dt := target.Tran.Sub(cur.Tran)
		if dt.Norm() < 1e-5 {
			break
		}

		j := newMatrix(3, 3)
		const h = 1e-4
		for i := 0; i < 3; i++ {
			perturbed := joints.Clone()
			perturbed[i] += h
			fwd, _ := s.Forward(perturbed)
			d := fwd.Tran.Sub(cur.Tran)
			j.set(0, i, d.X/h)
			j.set(1, i, d.Y/h)
			j.set(2, i, d.Z/h)
		}
		delta, solveErr := dampedLeastSquaresSolve(j, []float32{dt.X, dt.Y, dt.Z}, 0.05)
		if solveErr != nil {
			return joints, ErrUnsupportedOperation
		}
		for i := 0; i < 3; i++ {
			joints[i] += delta[i]
		}
	}

	return joints, ErrUnsupportedOperation
}
