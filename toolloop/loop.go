// Package toolloop implements the tool loop (spec.md §4.5): a small
// soft-real-time loop holding an array of named output values, driven by
// On/Off/Init/Abort/Shutdown/Nop commands.
package toolloop

import "github.com/itohio/gomotion/shm"

// Command selects the tool loop's action this cycle.
type Command int

const (
	CmdNop Command = iota
	CmdInit
	CmdAbort
	CmdShutdown
	CmdOn
	CmdOff
)

// CmdPayload is the per-cycle tool command. ID/Value are only meaningful
// for CmdOn; ID alone for CmdOff.
type CmdPayload struct {
	Command Command
	ID      int
	Value   float32
}

// CfgPayload configures the number of addressable tool outputs. Names is
// optional (spec.md §6, TOOL_FILE_NAME's named-output table) and, when
// present, lets callers address an output by name via Loop.IndexOf instead
// of a bare index.
type CfgPayload struct {
	NumOutputs int
	Names      []string
}

// StatPayload publishes the current output vector.
type StatPayload struct {
	Outputs []float32
}

// SetPayload echoes the effective cfg back.
type SetPayload struct {
	CfgPayload
}

// Endpoint is the shm region a tool loop reads cmd/cfg from and writes
// stat/set to.
type Endpoint = shm.Endpoint[CmdPayload, StatPayload, CfgPayload, SetPayload]

// NewEndpoint creates an empty tool endpoint.
func NewEndpoint() *Endpoint {
	return shm.NewEndpoint[CmdPayload, StatPayload, CfgPayload, SetPayload]()
}

// Loop is the tool loop (spec.md §4.5).
type Loop struct {
	Endpoint *Endpoint

	outputs []float32
	names   []string
	admin   shm.AdminState

	lastCmdSerial uint64
	lastCfgSerial uint64
}

// NewLoop creates a tool loop with no outputs configured; a cfg write with
// NumOutputs sizes the output vector.
func NewLoop(endpoint *Endpoint) *Loop {
	return &Loop{Endpoint: endpoint}
}

// Outputs returns the current output vector.
func (l *Loop) Outputs() []float32 { return l.outputs }

// IndexOf looks up a named output's index, configured via CfgPayload.Names.
func (l *Loop) IndexOf(name string) (int, bool) {
	for i, n := range l.names {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

// Tick runs one tool cycle (spec.md §4.5).
func (l *Loop) Tick() {
	if cfgMsg, ok := l.Endpoint.ReadCfg(); ok && cfgMsg.SerialNumber != l.lastCfgSerial {
		l.lastCfgSerial = cfgMsg.SerialNumber
		if n := cfgMsg.Payload.NumOutputs; n >= 0 && n != len(l.outputs) {
			out := make([]float32, n)
			copy(out, l.outputs)
			l.outputs = out
		}
		l.names = cfgMsg.Payload.Names
	}

	cmdMsg, haveCmd := l.Endpoint.ReadCmd()
	status := shm.StatusDone
	if haveCmd {
		l.lastCmdSerial = cmdMsg.SerialNumber
		status = l.apply(cmdMsg.Payload)
	}

	l.Endpoint.WriteStat(l.lastCmdSerial, status, l.admin, 0, StatPayload{Outputs: append([]float32(nil), l.outputs...)})
	l.Endpoint.WriteSet(l.lastCfgSerial, shm.StatusDone, l.admin, 0, SetPayload{CfgPayload: CfgPayload{NumOutputs: len(l.outputs), Names: l.names}})
}

func (l *Loop) apply(cmd CmdPayload) shm.Status {
	switch cmd.Command {
	case CmdNop:
		return shm.StatusDone
	case CmdInit:
		for i := range l.outputs {
			l.outputs[i] = 0
		}
		l.admin = shm.AdminInitialized
		return shm.StatusDone
	case CmdAbort, CmdShutdown:
		l.admin = shm.AdminUninitialized
		return shm.StatusDone
	case CmdOn:
		if cmd.ID < 0 || cmd.ID >= len(l.outputs) {
			return shm.StatusError
		}
		l.outputs[cmd.ID] = cmd.Value
		return shm.StatusDone
	case CmdOff:
		if cmd.ID < 0 || cmd.ID >= len(l.outputs) {
			return shm.StatusError
		}
		l.outputs[cmd.ID] = 0
		return shm.StatusDone
	default:
		return shm.StatusError
	}
}
