// Package shm is the in-process mirror of the shared-memory message
// channels spec.md §4.1 describes between the servo/traj/tool/task tiers.
// Real SysV/POSIX shared memory and its raw head/tail torn-read dance are
// the external OS-abstraction-layer collaborator (spec.md §1, out of
// scope); here the same head/tail/serial-number contract is reproduced over
// an atomic-pointer-guarded ping-pong pair so the rest of the core cannot
// tell the difference (spec.md §4.1).
package shm

// Status is a consumer's report on the command it is currently processing.
type Status int32

const (
	StatusUninitialized Status = iota
	StatusDone
	StatusExec
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusDone:
		return "done"
	case StatusExec:
		return "exec"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// AdminState is the coarse admin half of a loop's (admin, micro) state pair
// (spec.md §3, "State-machine state per loop").
type AdminState int32

const (
	AdminUninitialized AdminState = iota
	AdminInitialized
	AdminShutdown
)

func (a AdminState) String() string {
	switch a {
	case AdminUninitialized:
		return "uninitialized"
	case AdminInitialized:
		return "initialized"
	case AdminShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Message is one cmd/cfg record: a payload plus the head/tail consistency
// markers and serial number spec.md §4.1 requires. Head and Tail are always
// equal by construction here — each Message is an immutable snapshot
// published by a single atomic pointer swap (shm.Channel) — they are
// carried anyway so the record shape matches the real wire format.
type Message[T any] struct {
	Head, Tail   uint64
	Type         uint32
	SerialNumber uint64
	Payload      T
}

// StatusMessage is one stat/set record: a Message plus the echo/status/
// admin/debug fields a consumer reports back (spec.md §4.1).
type StatusMessage[T any] struct {
	Message[T]
	EchoSerialNumber uint64
	Status           Status
	AdminState       AdminState
	State            int32
	SourceLine       int
	SourceFile       string
}
