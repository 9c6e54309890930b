package kinematics

import (
	"errors"
	"testing"

	"github.com/itohio/gomotion/spatial"
	"github.com/stretchr/testify/require"
)

func TestTrivialForwardInverseRoundTrip(t *testing.T) {
	m := NewTrivial()
	joints := spatial.JointVector{0.1, 0.2, 0.3, 0.1, -0.2, 0.05}

	pose, err := m.Forward(joints)
	require.NoError(t, err)

	back, err := m.Inverse(pose, joints)
	require.NoError(t, err)

	for i := range joints {
		require.InDelta(t, float64(joints[i]), float64(back[i]), 1e-4)
	}
}

func TestSerialForwardInverseRoundTrip(t *testing.T) {
	m, err := Select("puma")
	require.NoError(t, err)

	seed := make(spatial.JointVector, m.NumJoints())
	target := spatial.JointVector{0.2, -0.3, 0.4, 0.1, 0.15, -0.1}

	pose, err := m.Forward(target)
	require.NoError(t, err)

	got, err := m.Inverse(pose, seed)
	require.NoError(t, err)

	reachedPose, err := m.Forward(got)
	require.NoError(t, err)
	require.True(t, pose.ApproxEqual(reachedPose, 1e-3))
}

func TestHexapodInverseForwardRoundTrip(t *testing.T) {
	m, err := Select("hexapod")
	require.NoError(t, err)

	target := spatial.Pose{
		Tran: spatial.Vec3{X: 0.02, Y: -0.01, Z: 0.38},
		Rot:  spatial.FromAxisAngle(spatial.Vec3{X: 0, Y: 0, Z: 1}, 0.05),
	}

	legs, err := m.Inverse(target, nil)
	require.NoError(t, err)
	require.Len(t, legs, m.NumJoints())

	reached, err := m.Forward(legs)
	require.NoError(t, err)
	require.True(t, target.ApproxEqual(reached, 1e-3))
}

func TestSpheristInverseReportsUnsupportedOperation(t *testing.T) {
	m, err := Select("spherist")
	require.NoError(t, err)

	target := spatial.Pose{Tran: spatial.Vec3{X: 0.1, Y: 0, Z: 0.3}, Rot: spatial.IdentityQuaternion}
	seed := make(spatial.JointVector, m.NumJoints())

	joints, err := m.Inverse(target, seed)
	require.ErrorIs(t, err, ErrUnsupportedOperation)
	require.Len(t, joints, m.NumJoints())

	pose, fwdErr := m.Forward(joints)
	require.NoError(t, fwdErr)
	require.InDelta(t, float64(target.Tran.X), float64(pose.Tran.X), 1e-2)
}

func TestSelectUnknownNameReturnsErrNotFound(t *testing.T) {
	_, err := Select("does-not-exist")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFanucPresetRejectsShortParameterTable(t *testing.T) {
	m, err := Select("fanuc")
	require.NoError(t, err)

	err = m.SetParameters(make([]Link, fanucKinNumJoints-1))
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidParameters))

	err = m.SetParameters(m.GetParameters())
	require.NoError(t, err)
}

func TestRegistryNamesAreSorted(t *testing.T) {
	names := Names()
	require.NotEmpty(t, names)
	for i := 1; i < len(names); i++ {
		require.LessOrEqual(t, names[i-1], names[i])
	}
}

func TestRegisterAddsPlugin(t *testing.T) {
	Register("test-only-identity", func() Model { return NewTrivial() })
	m, err := Select("test-only-identity")
	require.NoError(t, err)
	require.Equal(t, "trivial", m.Name())
}
