package extio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSimulatorJointMustBeEnabledToMove(t *testing.T) {
	sim := NewSimulator(2, 0, 0, 0, 0, 0.01)
	require.Equal(t, ResultError, sim.WriteVel(0, 1))

	require.Equal(t, ResultOK, sim.JointEnable(0))
	require.Equal(t, ResultOK, sim.WriteVel(0, 1))
	for i := 0; i < 100; i++ {
		sim.Step()
	}
	pos, res := sim.ReadPos(0)
	require.Equal(t, ResultOK, res)
	require.InDelta(t, 1.0, pos, 1e-3)
}

func TestSimulatorDisableStopsMotion(t *testing.T) {
	sim := NewSimulator(1, 0, 0, 0, 0, 0.01)
	sim.JointEnable(0)
	sim.WriteVel(0, 1)
	sim.Step()
	require.Equal(t, ResultOK, sim.JointDisable(0))
	before, _ := sim.ReadPos(0)
	for i := 0; i < 10; i++ {
		sim.Step()
	}
	after, _ := sim.ReadPos(0)
	require.Equal(t, before, after)
}

func TestSimulatorHomingLatchesCurrentPosition(t *testing.T) {
	sim := NewSimulator(1, 0, 0, 0, 0, 0.01)
	sim.JointEnable(0)
	sim.WriteVel(0, 2)
	for i := 0; i < 50; i++ {
		sim.Step()
	}
	_, res := sim.HomeLatch(0)
	require.Equal(t, ResultError, res)

	require.Equal(t, ResultOK, sim.JointHome(0))
	home, ok := sim.IsHome(0)
	require.Equal(t, ResultOK, ok)
	require.True(t, home)

	pos, _ := sim.ReadPos(0)
	latch, res := sim.HomeLatch(0)
	require.Equal(t, ResultOK, res)
	require.Equal(t, pos, latch)
}

func TestSimulatorOutOfRangeJointErrors(t *testing.T) {
	sim := NewSimulator(1, 0, 0, 0, 0, 0.01)
	require.Equal(t, ResultError, sim.JointEnable(5))
	_, res := sim.ReadPos(-1)
	require.Equal(t, ResultError, res)
}

func TestSimulatorAggregateIO(t *testing.T) {
	sim := NewSimulator(1, 2, 2, 2, 2, 0.01)
	require.Equal(t, 2, sim.NumAnalogIn())
	require.Equal(t, 2, sim.NumDigitalOut())

	sim.SetDigitalIn(0, true)
	in, res := sim.ReadDigitalIn(0)
	require.Equal(t, ResultOK, res)
	require.True(t, in)

	require.Equal(t, ResultOK, sim.WriteDigitalOut(1, true))
	require.Equal(t, ResultError, sim.WriteDigitalOut(9, true))

	sim.SetAnalogIn(0, 3.5)
	v, res := sim.ReadAnalogIn(0)
	require.Equal(t, ResultOK, res)
	require.Equal(t, float32(3.5), v)
}

func TestSimulatorSetParameters(t *testing.T) {
	sim := NewSimulator(1, 0, 0, 0, 0, 0.01)
	require.Equal(t, ResultOK, sim.SetParameters(0, []float32{1, 2, 3}))
	require.Equal(t, ResultError, sim.SetParameters(7, []float32{1}))
}
