// Package extio is the Go mirror of the `ext_*` hardware driver contract
// (spec.md §4.7, §1 "out of scope (external collaborators)"). The real
// driver layer — serial Smart Motor, socket Galil emulation, PCI DAQ — is
// an external collaborator; this package only specifies (and, for testing
// and the boot scenarios in spec.md §8, implements) the interface the core
// consumes from it.
package extio

import "errors"

// Result mirrors the adapter's non-blocking result code; every call
// returns one instead of blocking or panicking (spec.md §4.7, "All calls
// are non-blocking and return a result code").
type Result int

const (
	ResultOK Result = iota
	ResultBusy
	ResultError
	ResultUnsupported
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultBusy:
		return "busy"
	case ResultError:
		return "error"
	case ResultUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// ErrTransport is wrapped by adapter implementations that talk over a real
// transport (serial, socket) when that transport itself errors; the core
// never sees this directly, only the Result it maps to.
var ErrTransport = errors.New("extio: transport error")

// Adapter is the fixed interface the core consumes from the hardware
// driver layer (spec.md §4.7). Joint indices are 0-based; aggregate I/O is
// addressed by a flat index into the adapter's configured analog/digital
// channel counts.
type Adapter interface {
	Init() Result
	Quit() Result

	JointInit(joint int) Result
	JointEnable(joint int) Result
	JointDisable(joint int) Result
	JointQuit(joint int) Result

	ReadPos(joint int) (float32, Result)
	WritePos(joint int, pos float32) Result
	WriteVel(joint int, vel float32) Result

	JointHome(joint int) Result
	IsHome(joint int) (bool, Result)
	HomeLatch(joint int) (float32, Result)

	NumAnalogIn() int
	NumAnalogOut() int
	NumDigitalIn() int
	NumDigitalOut() int
	ReadAnalogIn(ch int) (float32, Result)
	WriteAnalogOut(ch int, value float32) Result
	ReadDigitalIn(ch int) (bool, Result)
	WriteDigitalOut(ch int, value bool) Result

	SetParameters(joint int, values []float32) Result

	TriggerIn(ch int) (bool, Result)
}
