package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/itohio/gomotion/shm"
	"github.com/itohio/gomotion/taskloop"
)

func TestDispatchStatusReportsEchoAndStatus(t *testing.T) {
	ep := taskloop.NewEndpoint()
	ep.WriteStat(7, shm.StatusDone, shm.AdminInitialized, 0, taskloop.StatPayload{})

	reply, ok := dispatch("?", ep)
	require.True(t, ok)
	require.Equal(t, "7 done\n", reply)
}

func TestDispatchCommandProducesNoReply(t *testing.T) {
	ep := taskloop.NewEndpoint()
	reply, ok := dispatch("! 1 run prog.ngc", ep)
	require.False(t, ok)
	require.Empty(t, reply)

	cmd, has := ep.ReadCmd()
	require.True(t, has)
	require.Equal(t, taskloop.CmdStart, cmd.Payload.Command)
	require.Equal(t, "prog.ngc", cmd.Payload.ProgramPath)
}

func TestHandleCommandRejectsNonNumericSerial(t *testing.T) {
	ep := taskloop.NewEndpoint()
	handleCommand("! abc stop", ep)
	_, has := ep.ReadCmd()
	require.False(t, has)
}

func TestHandleCommandStop(t *testing.T) {
	ep := taskloop.NewEndpoint()
	handleCommand("! 2 stop", ep)
	cmd, has := ep.ReadCmd()
	require.True(t, has)
	require.Equal(t, taskloop.CmdStop, cmd.Payload.Command)
}
