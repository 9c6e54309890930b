// Package taskloop implements the task loop (spec.md §4.6): the PackML-style
// state machine that runs NC programs or external processes, staging their
// canonical motion/tool calls onto an interp list consumed by trajloop and
// toolloop, and coordinating hold/suspend/abort and MTTF/MTTR fault
// injection across the pipeline.
package taskloop

import "github.com/itohio/gomotion/shm"

// Command is an externally issued task command (spec.md §4.6, §6 wire
// protocol).
type Command int

const (
	CmdNop Command = iota
	CmdReset
	CmdStart
	CmdHold
	CmdUnhold
	CmdSuspend
	CmdUnsuspend
	CmdStop
	CmdAbort
	CmdClear
)

// CmdPayload is the per-cycle command published to the task loop.
// ProgramPath is only meaningful for CmdStart.
type CmdPayload struct {
	Command     Command
	ProgramPath string
}

// CfgPayload configures the task loop (spec.md §6, `[TASK]`).
type CfgPayload struct {
	CycleTime float32
	Strict    bool
	ProgDir   string

	// MTTF/MTTR are mean-time-to-failure/repair in seconds; either being
	// non-positive disables fault injection (spec.md §4.6, "Failure
	// injection").
	MTTF, MTTR float32

	// TrajQueueCapacity mirrors trajloop's own configured queue capacity,
	// used only to evaluate the interp-list back-pressure rule (spec.md
	// §4.6, "Interp-list drain logic").
	TrajQueueCapacity int

	InterpListCapacity int
}

// ErrorCode classifies an entry in the task error ring (spec.md §4.6,
// "Task errors").
type ErrorCode int

const (
	ErrNone ErrorCode = iota
	ErrUnknownCommand
	ErrImproperCommand
	ErrInvalidCommand
	ErrMotion
	ErrProgramNotFound
	ErrOutOfMemory
	ErrProgramError
	ErrControl
	ErrTool
)

func (c ErrorCode) String() string {
	switch c {
	case ErrNone:
		return "none"
	case ErrUnknownCommand:
		return "unknown-command"
	case ErrImproperCommand:
		return "improper-command"
	case ErrInvalidCommand:
		return "invalid-command"
	case ErrMotion:
		return "motion"
	case ErrProgramNotFound:
		return "program-not-found"
	case ErrOutOfMemory:
		return "out-of-memory"
	case ErrProgramError:
		return "program-error"
	case ErrControl:
		return "control"
	case ErrTool:
		return "tool"
	default:
		return "unknown"
	}
}

// StatPayload is the per-cycle status the task loop publishes.
type StatPayload struct {
	State       State
	ProgramPath string
	QueueLen    int
	FaultActive bool
	Errors      []ErrorEntry
}

// SetPayload echoes the effective cfg back.
type SetPayload struct {
	CfgPayload
}

// Endpoint is the shm region a task loop reads cmd/cfg from and writes
// stat/set to.
type Endpoint = shm.Endpoint[CmdPayload, StatPayload, CfgPayload, SetPayload]

// NewEndpoint creates an empty task endpoint.
func NewEndpoint() *Endpoint {
	return shm.NewEndpoint[CmdPayload, StatPayload, CfgPayload, SetPayload]()
}
