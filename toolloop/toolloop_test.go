package toolloop

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/itohio/gomotion/shm"
)

func TestToolLoopOnOffSetsAndClearsOutput(t *testing.T) {
	ep := NewEndpoint()
	l := NewLoop(ep)
	ep.WriteCfg(CfgPayload{NumOutputs: 3})
	l.Tick()

	ep.WriteCmd(CmdPayload{Command: CmdOn, ID: 1, Value: 5})
	l.Tick()
	require.Equal(t, float32(5), l.Outputs()[1])

	ep.WriteCmd(CmdPayload{Command: CmdOff, ID: 1})
	l.Tick()
	require.Equal(t, float32(0), l.Outputs()[1])
}

func TestToolLoopOutOfRangeIDErrors(t *testing.T) {
	ep := NewEndpoint()
	l := NewLoop(ep)
	ep.WriteCfg(CfgPayload{NumOutputs: 2})
	l.Tick()

	ep.WriteCmd(CmdPayload{Command: CmdOn, ID: 9, Value: 1})
	l.Tick()

	st, ok := ep.ReadStat()
	require.True(t, ok)
	require.Equal(t, shm.StatusError, st.Status)
}

func TestToolLoopInitZeroesAllOutputs(t *testing.T) {
	ep := NewEndpoint()
	l := NewLoop(ep)
	ep.WriteCfg(CfgPayload{NumOutputs: 2})
	l.Tick()
	ep.WriteCmd(CmdPayload{Command: CmdOn, ID: 0, Value: 3})
	l.Tick()

	ep.WriteCmd(CmdPayload{Command: CmdInit})
	l.Tick()
	require.Equal(t, []float32{0, 0}, l.Outputs())
}

func TestToolLoopIndexOfResolvesConfiguredNames(t *testing.T) {
	ep := NewEndpoint()
	l := NewLoop(ep)
	ep.WriteCfg(CfgPayload{NumOutputs: 3, Names: []string{"spindle", "coolant", "gripper"}})
	l.Tick()

	idx, ok := l.IndexOf("coolant")
	require.True(t, ok)
	require.Equal(t, 1, idx)

	_, ok = l.IndexOf("missing")
	require.False(t, ok)
}
