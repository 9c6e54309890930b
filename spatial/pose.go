package spatial

// Pose is a rigid-body transform: translation plus unit rotation.
// Composition, inverse and the pose/vector multiplications below follow
// standard rigid-body algebra (spec.md §3, "Pose" paragraph).
type Pose struct {
	Tran Vec3
	Rot  Quaternion
}

// Identity is the no-op pose.
var Identity = Pose{Rot: IdentityQuaternion}

// Mul composes poses: p.Mul(o) applies o first, then p (matrix-style,
// left-to-right application order of p*o acting on a point is o then p).
func (p Pose) Mul(o Pose) Pose {
	return Pose{
		Tran: p.Tran.Add(p.Rot.RotateVec3(o.Tran)),
		Rot:  p.Rot.Product(o.Rot).Normalized(),
	}
}

// Inv returns the inverse transform such that p.Mul(p.Inv()) == Identity.
func (p Pose) Inv() Pose {
	ri := p.Rot.Conjugate()
	return Pose{
		Tran: ri.RotateVec3(p.Tran.Neg()),
		Rot:  ri,
	}
}

// TransformVec3 maps a point from the frame p is expressed in into p's own
// frame's parent (i.e. applies the pose as a transform to a point).
func (p Pose) TransformVec3(v Vec3) Vec3 {
	return p.Tran.Add(p.Rot.RotateVec3(v))
}

// ApproxEqual reports whether p and o are equal within eps on translation
// and within eps radians of rotation.
func (p Pose) ApproxEqual(o Pose, eps float32) bool {
	d := p.Tran.Sub(o.Tran)
	if d.Norm() > eps {
		return false
	}
	return p.Rot.AngleTo(o.Rot) <= eps
}

// Slerp interpolates translation linearly and rotation via SLERP, the
// standard world-linear-segment blend (spec.md §4.3).
func (p Pose) Slerp(o Pose, t float32) Pose {
	return Pose{
		Tran: p.Tran.Lerp(o.Tran, t),
		Rot:  p.Rot.Slerp(o.Rot, t),
	}
}

// VelocityPose is a Cartesian velocity: linear and angular 3-vectors.
type VelocityPose struct {
	Tran Vec3
	Rot  Vec3
}

func (v VelocityPose) Scale(s float32) VelocityPose {
	return VelocityPose{v.Tran.Scale(s), v.Rot.Scale(s)}
}

func (v VelocityPose) Add(o VelocityPose) VelocityPose {
	return VelocityPose{v.Tran.Add(o.Tran), v.Rot.Add(o.Rot)}
}
