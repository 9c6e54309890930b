package motion

import (
	"testing"

	"github.com/itohio/gomotion/spatial"
	"github.com/stretchr/testify/require"
)

func runUntilIdle(t *testing.T, q *Queue, cycleTime float32, maxTicks int) {
	t.Helper()
	for i := 0; i < maxTicks; i++ {
		_, _, moving := q.Interp(cycleTime)
		if !moving && q.Len() == 0 {
			return
		}
	}
	t.Fatalf("queue did not settle within %d ticks", maxTicks)
}

func TestVAJ1DReachesTargetAndStops(t *testing.T) {
	p := NewVAJ1D(1.0, 2.0, 10.0)
	p.Reset(0)
	p.Target = 1.0

	for i := 0; i < 2000 && !p.Done(); i++ {
		p.Update(0.001)
	}
	require.True(t, p.Done())
	require.InDelta(t, 1.0, float64(p.Output), 1e-2)
}

func TestQueueAppendIdempotentResend(t *testing.T) {
	q := NewQueue(ModeJoint, 2, 10)
	seg := Segment{
		ID:         1,
		Type:       SegmentJoint,
		JointEnd:   spatial.JointVector{1, 1},
		JointLimit: []Limits{{Vel: 1, Accel: 1, Jerk: 5}, {Vel: 1, Accel: 1, Jerk: 5}},
	}
	homed := []bool{false, false}

	_, err := q.Append(seg, homed, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 1, q.Len())

	_, err = q.Append(seg, homed, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 1, q.Len(), "re-appending the same id must be a no-op")
}

func TestQueueModeSwitchRequiresEmpty(t *testing.T) {
	q := NewQueue(ModeJoint, 2, 10)
	seg := Segment{ID: 1, Type: SegmentJoint, JointEnd: spatial.JointVector{1, 1}, JointLimit: []Limits{{Vel: 1, Accel: 1, Jerk: 5}, {Vel: 1, Accel: 1, Jerk: 5}}}
	_, err := q.Append(seg, []bool{false, false}, nil, nil)
	require.NoError(t, err)

	err = q.SetType(ModeWorld)
	require.ErrorIs(t, err, ErrModeSwitch)

	q.Reset()
	require.NoError(t, q.SetType(ModeWorld))
}

func TestQueueHomedJointClampedOnAppend(t *testing.T) {
	q := NewQueue(ModeJoint, 1, 10)
	seg := Segment{
		ID:         1,
		Type:       SegmentJoint,
		JointEnd:   spatial.JointVector{5},
		JointLimit: []Limits{{Vel: 1, Accel: 1, Jerk: 5}},
	}
	clamped, err := q.Append(seg, []bool{true}, spatial.JointVector{-1}, spatial.JointVector{1})
	require.NoError(t, err)
	require.True(t, clamped)
}

func TestQueueJointMoveReachesTarget(t *testing.T) {
	q := NewQueue(ModeJoint, 2, 10)
	q.SetHere(spatial.JointVector{0, 0}, spatial.Identity)
	seg := Segment{
		ID:         1,
		Type:       SegmentJoint,
		JointEnd:   spatial.JointVector{1, 0.5},
		JointLimit: []Limits{{Vel: 0.5, Accel: 1, Jerk: 5}, {Vel: 0.2, Accel: 1, Jerk: 5}},
	}
	_, err := q.Append(seg, []bool{false, false}, nil, nil)
	require.NoError(t, err)

	var last spatial.JointVector
	for i := 0; i < 5000; i++ {
		joints, _, moving := q.Interp(0.001)
		last = joints
		if !moving && q.Len() == 0 {
			break
		}
	}
	require.InDelta(t, 1.0, float64(last[0]), 1e-2)
	require.InDelta(t, 0.5, float64(last[1]), 1e-2)
}

func TestQueueWorldLinearMoveReachesTarget(t *testing.T) {
	q := NewQueue(ModeWorld, 0, 10)
	q.SetHere(nil, spatial.Identity)
	target := spatial.Pose{Tran: spatial.Vec3{X: 0.1, Y: 0, Z: 0}, Rot: spatial.IdentityQuaternion}
	seg := Segment{
		ID:        1,
		Type:      SegmentWorldLinear,
		PoseEnd:   target,
		TranLimit: Limits{Vel: 0.2, Accel: 1, Jerk: 5},
		RotLimit:  Limits{Vel: 1, Accel: 2, Jerk: 10},
	}
	_, err := q.Append(seg, nil, nil, nil)
	require.NoError(t, err)

	var last spatial.Pose
	for i := 0; i < 5000; i++ {
		_, pose, moving := q.Interp(0.001)
		last = pose
		if !moving && q.Len() == 0 {
			break
		}
	}
	require.True(t, last.ApproxEqual(target, 1e-2))
}

func TestQueueStopDeceleratesWithoutCompletingSegment(t *testing.T) {
	q := NewQueue(ModeJoint, 1, 10)
	q.SetHere(spatial.JointVector{0}, spatial.Identity)
	seg := Segment{
		ID:         1,
		Type:       SegmentJoint,
		JointEnd:   spatial.JointVector{10},
		JointLimit: []Limits{{Vel: 1, Accel: 1, Jerk: 5}},
	}
	_, err := q.Append(seg, []bool{false}, nil, nil)
	require.NoError(t, err)

	for i := 0; i < 500; i++ {
		q.Interp(0.001)
	}
	q.Stop()
	runUntilIdle(t, q, 0.001, 5000)
	require.Equal(t, 0, q.Len())
}
