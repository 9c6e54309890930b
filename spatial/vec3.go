// Package spatial provides the pose/quaternion/joint-vector data model
// shared by the kinematics, motion, servoloop and trajloop packages.
//
// All arithmetic is float32, matching the hot-path convention of the
// control loops that consume it.
package spatial

import "github.com/chewxy/math32"

// Vec3 is a translation or a linear/angular velocity 3-vector.
type Vec3 struct {
	X, Y, Z float32
}

func (a Vec3) Add(b Vec3) Vec3 { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func (a Vec3) Sub(b Vec3) Vec3 { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }
func (a Vec3) Scale(s float32) Vec3 { return Vec3{a.X * s, a.Y * s, a.Z * s} }
func (a Vec3) Neg() Vec3            { return Vec3{-a.X, -a.Y, -a.Z} }

func (a Vec3) Dot(b Vec3) float32 { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }

func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		a.Y*b.Z - a.Z*b.Y,
		a.Z*b.X - a.X*b.Z,
		a.X*b.Y - a.Y*b.X,
	}
}

func (a Vec3) Norm() float32 { return math32.Sqrt(a.Dot(a)) }

// Normalized returns a unit vector along a, or the zero vector if a is zero.
func (a Vec3) Normalized() Vec3 {
	n := a.Norm()
	if n == 0 {
		return Vec3{}
	}
	return a.Scale(1 / n)
}

// Clamp returns a elementwise clamped into [min, max].
func (a Vec3) Clamp(min, max Vec3) Vec3 {
	return Vec3{
		ClampF(a.X, min.X, max.X),
		ClampF(a.Y, min.Y, max.Y),
		ClampF(a.Z, min.Z, max.Z),
	}
}

// Within reports whether a lies within [min, max] elementwise.
func (a Vec3) Within(min, max Vec3) bool {
	return a.X >= min.X && a.X <= max.X &&
		a.Y >= min.Y && a.Y <= max.Y &&
		a.Z >= min.Z && a.Z <= max.Z
}

// ClampF clamps a scalar into [min, max].
func ClampF(v, min, max float32) float32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Lerp linearly interpolates between a and b at t in [0,1].
func (a Vec3) Lerp(b Vec3, t float32) Vec3 {
	return Vec3{
		a.X + (b.X-a.X)*t,
		a.Y + (b.Y-a.Y)*t,
		a.Z + (b.Z-a.Z)*t,
	}
}
