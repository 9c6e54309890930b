package spatial

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/require"
)

func TestPoseInverseIsIdentity(t *testing.T) {
	p := Pose{
		Tran: Vec3{1, 2, 3},
		Rot:  FromAxisAngle(Vec3{0, 0, 1}, math32.Pi/4),
	}
	got := p.Mul(p.Inv())
	require.True(t, got.ApproxEqual(Identity, 1e-5))
}

func TestPoseComposeThenUncompose(t *testing.T) {
	a := Pose{Tran: Vec3{1, 0, 0}, Rot: FromAxisAngle(Vec3{0, 1, 0}, 0.3)}
	b := Pose{Tran: Vec3{0, 1, 0}, Rot: FromAxisAngle(Vec3{1, 0, 0}, 0.2)}
	composed := a.Mul(b)
	back := a.Inv().Mul(composed)
	require.True(t, back.ApproxEqual(b, 1e-4))
}

func TestQuaternionSlerpEndpoints(t *testing.T) {
	q0 := IdentityQuaternion
	q1 := FromAxisAngle(Vec3{0, 0, 1}, math32.Pi/2)

	got0 := q0.Slerp(q1, 0)
	got1 := q0.Slerp(q1, 1)

	require.InDelta(t, float64(q0.AngleTo(got0)), 0, 1e-4)
	require.InDelta(t, float64(q1.AngleTo(got1)), 0, 1e-4)
}

func TestQuaternionSlerpTakesShortPath(t *testing.T) {
	q0 := IdentityQuaternion
	q1Far := FromAxisAngle(Vec3{0, 0, 1}, math32.Pi/2)
	q1Flipped := Quaternion{-q1Far.X, -q1Far.Y, -q1Far.Z, -q1Far.W}

	a := q0.Slerp(q1Far, 0.5)
	b := q0.Slerp(q1Flipped, 0.5)
	require.InDelta(t, float64(a.X), float64(b.X), 1e-4)
	require.InDelta(t, float64(a.W), float64(b.W), 1e-4)
}

func TestShiftToNearestRevolution(t *testing.T) {
	types := []JointType{Angular, Linear}
	prev := JointVector{3.0, 5.0}
	next := JointVector{3.0 + math32.Pi + 0.5, 5.0 + 10} // linear joint unaffected

	out := ShiftToNearestRevolution(next, prev, types)
	require.LessOrEqual(t, math32.Abs(out[0]-prev[0]), math32.Pi+1e-4)
	require.Equal(t, next[1], out[1])
}

func TestJointVectorClampAndWithin(t *testing.T) {
	v := JointVector{-1, 5, 2}
	min := JointVector{0, 0, 0}
	max := JointVector{1, 1, 1}

	require.False(t, v.Within(min, max))
	clamped := v.Clamp(min, max)
	require.True(t, clamped.Within(min, max))
	require.Equal(t, JointVector{0, 1, 1}, clamped)
}
