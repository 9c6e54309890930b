package spatial

import "github.com/chewxy/math32"

// Quaternion is a unit rotation quaternion, stored (x, y, z, w) as in the
// teacher's vec.Quaternion layout.
type Quaternion struct {
	X, Y, Z, W float32
}

// IdentityQuaternion is the no-rotation quaternion.
var IdentityQuaternion = Quaternion{0, 0, 0, 1}

func (q Quaternion) SumSqr() float32 {
	return q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W
}

func (q Quaternion) Magnitude() float32 { return math32.Sqrt(q.SumSqr()) }

// Normalized returns q scaled to unit magnitude, or the identity quaternion
// if q has zero magnitude.
func (q Quaternion) Normalized() Quaternion {
	m := q.Magnitude()
	if m == 0 {
		return IdentityQuaternion
	}
	inv := 1 / m
	return Quaternion{q.X * inv, q.Y * inv, q.Z * inv, q.W * inv}
}

// Conjugate is the inverse rotation of a unit quaternion.
func (q Quaternion) Conjugate() Quaternion {
	return Quaternion{-q.X, -q.Y, -q.Z, q.W}
}

// Dot is the 4-vector dot product, used to pick the short path for SLERP.
func (q Quaternion) Dot(o Quaternion) float32 {
	return q.X*o.X + q.Y*o.Y + q.Z*o.Z + q.W*o.W
}

// Product composes rotations: (q.Product(o)) applies o first, then q.
func (q Quaternion) Product(o Quaternion) Quaternion {
	return Quaternion{
		X: q.W*o.X + q.X*o.W + q.Y*o.Z - q.Z*o.Y,
		Y: q.W*o.Y - q.X*o.Z + q.Y*o.W + q.Z*o.X,
		Z: q.W*o.Z + q.X*o.Y - q.Y*o.X + q.Z*o.W,
		W: q.W*o.W - q.X*o.X - q.Y*o.Y - q.Z*o.Z,
	}
}

// RotateVec3 rotates v by the unit quaternion q.
func (q Quaternion) RotateVec3(v Vec3) Vec3 {
	p := Quaternion{v.X, v.Y, v.Z, 0}
	r := q.Product(p).Product(q.Conjugate())
	return Vec3{r.X, r.Y, r.Z}
}

const slerpEpsilon = 1.0e-10

// Slerp spherically interpolates from q to o at time in [0,1], always
// taking the short way round (flipping o's sign if the dot product is
// negative).
func (q Quaternion) Slerp(o Quaternion, t float32) Quaternion {
	cosA := q.Dot(o)
	flip := float32(1)
	if cosA < 0 {
		cosA = -cosA
		flip = -1
	}

	var k1, k2 float32
	if (1 - cosA) < slerpEpsilon {
		k1 = 1 - t
		k2 = t
	} else {
		angle := math32.Acos(cosA)
		sinA := math32.Sin(angle)
		k1 = math32.Sin(angle-t*angle) / sinA
		k2 = math32.Sin(t*angle) / sinA
	}
	k2 *= flip

	return Quaternion{
		k1*q.X + k2*o.X,
		k1*q.Y + k2*o.Y,
		k1*q.Z + k2*o.Z,
		k1*q.W + k2*o.W,
	}
}

// SlerpLong is Slerp without short-path flipping — it follows whichever
// direction (q, o) literally encode. Nothing in this module calls it;
// world-circular segments blend orientation with Slerp.
func (q Quaternion) SlerpLong(o Quaternion, t float32) Quaternion {
	cosA := q.Dot(o)
	var k1, k2 float32
	if 1-math32.Abs(cosA) < slerpEpsilon {
		k1 = 1 - t
		k2 = t
	} else {
		angle := math32.Acos(cosA)
		sinA := math32.Sin(angle)
		k1 = math32.Sin(angle-t*angle) / sinA
		k2 = math32.Sin(t*angle) / sinA
	}
	return Quaternion{
		k1*q.X + k2*o.X,
		k1*q.Y + k2*o.Y,
		k1*q.Z + k2*o.Z,
		k1*q.W + k2*o.W,
	}
}

// AngleTo returns the rotation angle (radians, in [0,pi]) between q and o.
func (q Quaternion) AngleTo(o Quaternion) float32 {
	d := q.Dot(o)
	if d < 0 {
		d = -d
	}
	if d > 1 {
		d = 1
	}
	return 2 * math32.Acos(d)
}

// FromAxisAngle builds a unit quaternion rotating by angle radians about axis.
func FromAxisAngle(axis Vec3, angle float32) Quaternion {
	axis = axis.Normalized()
	half := angle * 0.5
	s := math32.Sin(half)
	return Quaternion{axis.X * s, axis.Y * s, axis.Z * s, math32.Cos(half)}
}

// Roll, Pitch, Yaw extract Euler angles (ZYX / RPY convention). Ambiguous in
// gimbal-lock zones by construction, as for any Euler decomposition of a
// quaternion.
func (q Quaternion) Roll() float32 {
	return math32.Atan2(q.W*q.X+q.Y*q.Z, 0.5-q.X*q.X-q.Y*q.Y)
}

func (q Quaternion) Pitch() float32 {
	return math32.Asin(ClampF(-2.0*(q.X*q.Z-q.W*q.Y), -1, 1))
}

func (q Quaternion) Yaw() float32 {
	return math32.Atan2(q.X*q.Y+q.W*q.Z, 0.5-q.Y*q.Y-q.Z*q.Z)
}
