package taskloop

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/itohio/gomotion/extio"
	"github.com/itohio/gomotion/kinematics"
	"github.com/itohio/gomotion/motion"
	"github.com/itohio/gomotion/servoloop"
	"github.com/itohio/gomotion/shm"
	"github.com/itohio/gomotion/spatial"
	"github.com/itohio/gomotion/toolloop"
	"github.com/itohio/gomotion/trajloop"
)

func newRig(t *testing.T, numJoints int) (*Loop, *Endpoint, *extio.Simulator, []*servoloop.Loop, *trajloop.Loop, *toolloop.Loop) {
	t.Helper()
	sim := extio.NewSimulator(numJoints, 0, 0, 0, 0, 0.01)
	servoEPs := make([]*servoloop.Endpoint, numJoints)
	servoLoops := make([]*servoloop.Loop, numJoints)
	for i := 0; i < numJoints; i++ {
		sim.JointEnable(i)
		ep := servoloop.NewEndpoint()
		servoEPs[i] = ep
		servoLoops[i] = servoloop.NewLoop(i, ep, sim, 0)
		ep.WriteCfg(servoloop.CfgPayload{CycleTime: 0.01, CycleMult: 1, InputScale: 1, P: 40, I: 10, OutputMin: -20, OutputMax: 20})
	}

	kin, err := kinematics.Select("trivial")
	require.NoError(t, err)

	jointLimits := make([]motion.Limits, numJoints)
	for i := range jointLimits {
		jointLimits[i] = motion.Limits{Vel: 1, Accel: 10, Jerk: 100}
	}

	trajEp := trajloop.NewEndpoint()
	tl := trajloop.NewLoop(trajEp, shm.NewChannel[trajloop.RefPayload](), servoEPs, kin, 8)
	trajEp.WriteCfg(trajloop.CfgPayload{
		CycleTime:     0.01,
		CycleMult:     1,
		JointLimits:   jointLimits,
		JointLimitMin: make(spatial.JointVector, numJoints),
		JointLimitMax: fillJoints(numJoints, 10),
		MaxTVel:       1,
		MaxRVel:       1,
		MaxTAccel:     10,
		MaxRAccel:     10,
	})

	toolEp := toolloop.NewEndpoint()
	tool := toolloop.NewLoop(toolEp)
	toolEp.WriteCfg(toolloop.CfgPayload{NumOutputs: 2})

	taskEp := NewEndpoint()
	task := NewLoop(taskEp, tl, tool, 8)
	taskEp.WriteCfg(CfgPayload{CycleTime: 0.1, Strict: true, InterpListCapacity: 8})

	return task, taskEp, sim, servoLoops, tl, tool
}

func fillJoints(n int, v float32) spatial.JointVector {
	out := make(spatial.JointVector, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func step(task *Loop, tl *trajloop.Loop, tool *toolloop.Loop, sim *extio.Simulator, servoLoops []*servoloop.Loop, n int) {
	for i := 0; i < n; i++ {
		for _, sl := range servoLoops {
			sl.Tick()
		}
		sim.Step()
		tl.Tick()
		tool.Tick()
		task.Tick()
	}
}

func TestTaskLoopStartTransitionsIdleToExecute(t *testing.T) {
	task, ep, sim, servoLoops, tl, tool := newRig(t, 6)
	dir := t.TempDir()
	path := filepath.Join(dir, "prog.ngc")
	require.NoError(t, os.WriteFile(path, []byte("DELAY 100\n"), 0o644))

	ep.WriteCmd(CmdPayload{Command: CmdStart, ProgramPath: path})
	step(task, tl, tool, sim, servoLoops, 1)
	require.Equal(t, StateStarting, task.State())

	step(task, tl, tool, sim, servoLoops, 20)
	require.Equal(t, StateExecute, task.State())
}

func TestTaskLoopStrictModeRejectsOutOfStateCommand(t *testing.T) {
	task, ep, sim, servoLoops, tl, tool := newRig(t, 6)

	ep.WriteCmd(CmdPayload{Command: CmdUnhold})
	step(task, tl, tool, sim, servoLoops, 2)

	require.Equal(t, StateIdle, task.State())
	errs := task.Errors()
	require.NotEmpty(t, errs)
	require.Equal(t, ErrImproperCommand, errs[len(errs)-1].Code)
}

func TestTaskLoopProgramDrivesToolAndCompletes(t *testing.T) {
	task, ep, sim, servoLoops, tl, tool := newRig(t, 6)
	dir := t.TempDir()
	path := filepath.Join(dir, "prog.ngc")
	require.NoError(t, os.WriteFile(path, []byte("TOOL 0 on\nTOOL 0 off\n"), 0o644))

	ep.WriteCmd(CmdPayload{Command: CmdStart, ProgramPath: path})
	step(task, tl, tool, sim, servoLoops, 50)

	require.Equal(t, StateComplete, task.State())
}

func TestTaskLoopUnknownProgramIsAbortedWithError(t *testing.T) {
	task, ep, sim, servoLoops, tl, tool := newRig(t, 6)
	path := filepath.Join(t.TempDir(), "missing.ngc")

	ep.WriteCmd(CmdPayload{Command: CmdStart, ProgramPath: path})
	step(task, tl, tool, sim, servoLoops, 30)

	require.Equal(t, StateAborted, task.State())
	errs := task.Errors()
	require.NotEmpty(t, errs)
	require.Equal(t, ErrProgramNotFound, errs[len(errs)-1].Code)
}

func TestTaskLoopHoldPausesTrajAndUnholdResumes(t *testing.T) {
	task, ep, sim, servoLoops, tl, tool := newRig(t, 6)
	trajEp := tl.Endpoint
	trajEp.WriteCmd(trajloop.CmdPayload{Command: trajloop.CmdInit})
	step(task, tl, tool, sim, servoLoops, 5)
	trajEp.WriteCmd(trajloop.CmdPayload{Command: trajloop.CmdMoveJoint, ID: 1, JointEnd: fillJoints(6, 5)})
	step(task, tl, tool, sim, servoLoops, 5)

	dir := t.TempDir()
	path := filepath.Join(dir, "hold.ngc")
	require.NoError(t, os.WriteFile(path, []byte("DELAY 100\n"), 0o644))
	ep.WriteCmd(CmdPayload{Command: CmdStart, ProgramPath: path})
	step(task, tl, tool, sim, servoLoops, 20)
	require.Equal(t, StateExecute, task.State())

	ep.WriteCmd(CmdPayload{Command: CmdHold})
	step(task, tl, tool, sim, servoLoops, 20)
	require.Equal(t, StateHeld, task.State())

	ep.WriteCmd(CmdPayload{Command: CmdUnhold})
	step(task, tl, tool, sim, servoLoops, 20)
	require.Equal(t, StateExecute, task.State())
}

func TestTaskLoopHoldFreezesJointsActAndUnholdResumesMotion(t *testing.T) {
	task, ep, sim, servoLoops, tl, tool := newRig(t, 6)
	trajEp := tl.Endpoint
	trajEp.WriteCmd(trajloop.CmdPayload{Command: trajloop.CmdInit})
	step(task, tl, tool, sim, servoLoops, 5)
	trajEp.WriteCmd(trajloop.CmdPayload{Command: trajloop.CmdMoveJoint, ID: 1, JointEnd: fillJoints(6, 5)})
	step(task, tl, tool, sim, servoLoops, 5)

	dir := t.TempDir()
	path := filepath.Join(dir, "hold.ngc")
	require.NoError(t, os.WriteFile(path, []byte("DELAY 100\n"), 0o644))
	ep.WriteCmd(CmdPayload{Command: CmdStart, ProgramPath: path})
	step(task, tl, tool, sim, servoLoops, 20)
	require.Equal(t, StateExecute, task.State())

	ep.WriteCmd(CmdPayload{Command: CmdHold})
	step(task, tl, tool, sim, servoLoops, 20)
	require.Equal(t, StateHeld, task.State())

	st, ok := trajEp.ReadStat()
	require.True(t, ok)
	require.InDelta(t, 0, st.Payload.Scale, 0.05)

	frozen := st.Payload.Joints.Clone()
	step(task, tl, tool, sim, servoLoops, 30)
	st, ok = trajEp.ReadStat()
	require.True(t, ok)
	for i, v := range st.Payload.Joints {
		require.InDelta(t, frozen[i], v, 1e-4)
	}

	ep.WriteCmd(CmdPayload{Command: CmdUnhold})
	step(task, tl, tool, sim, servoLoops, 20)
	require.Equal(t, StateExecute, task.State())

	st, ok = trajEp.ReadStat()
	require.True(t, ok)
	require.InDelta(t, 1, st.Payload.Scale, 0.05)

	step(task, tl, tool, sim, servoLoops, 200)
	st, ok = trajEp.ReadStat()
	require.True(t, ok)
	moved := false
	for i, v := range st.Payload.Joints {
		if v-frozen[i] > 1e-3 {
			moved = true
		}
	}
	require.True(t, moved)
}

func TestInterpRingBackPressure(t *testing.T) {
	r := newInterpRing(2)
	require.True(t, r.Push(InterpRecord{Kind: RecordDelay}))
	require.True(t, r.Push(InterpRecord{Kind: RecordDelay}))
	require.False(t, r.Push(InterpRecord{Kind: RecordDelay}))

	_, ok := r.Pop()
	require.True(t, ok)
	require.True(t, r.Push(InterpRecord{Kind: RecordDelay}))
}
