package taskloop

import (
	"math/rand"
	"path/filepath"
	"time"

	"github.com/itohio/gomotion/shm"
	"github.com/itohio/gomotion/toolloop"
	"github.com/itohio/gomotion/trajloop"
)

// transitionTimeSeconds is TRANSITION_TIME (spec.md §4.6, "≈1s"), converted
// to whole cycles at Tick time per the Open Question decision that all
// waits in this design are cycle-counted, never wall-clock.
const transitionTimeSeconds = 1.0

// errorRingCapacity is the task error ring's minimum size (spec.md §7,
// "User-visible failure", "≥10 entries").
const errorRingCapacity = 16

// ErrorEntry is one entry of the task error ring (spec.md §4.6, "Task
// errors").
type ErrorEntry struct {
	Time time.Time
	Code ErrorCode
}

type pendingKind int

const (
	pendingDelay pendingKind = iota
	pendingWaitMotion
	pendingWaitTool
)

type pendingOp struct {
	kind      pendingKind
	remaining int
}

// Loop is the task loop (spec.md §4.6): a PackML state machine staging
// canonical motion/tool calls from a program onto an interp list consumed
// by Traj and Tool.
type Loop struct {
	Endpoint *Endpoint
	Traj     *trajloop.Loop
	Tool     *toolloop.Loop

	cfg           CfgPayload
	haveCfg       bool
	lastCmdSerial uint64
	lastCfgSerial uint64
	admin         shm.AdminState

	state                 State
	midTransition         bool
	transitionTarget      State
	transitionRemaining   int
	pendingProgramPath    string
	programPath           string
	program               ProgramSource
	programDone           bool
	ring                  *interpRing
	pending               *pendingOp
	motionSerial          uint64
	errors                []ErrorEntry
	faultActive           bool
	faultCyclesRemaining  int
	repairCyclesRemaining int
}

// NewLoop creates a task loop driving traj and tool, with the given
// interp-list ring capacity.
func NewLoop(endpoint *Endpoint, traj *trajloop.Loop, tool *toolloop.Loop, interpCapacity int) *Loop {
	return &Loop{
		Endpoint: endpoint,
		Traj:     traj,
		Tool:     tool,
		ring:     newInterpRing(interpCapacity),
		state:    StateIdle,
	}
}

// State reports the current PackML state.
func (l *Loop) State() State { return l.state }

// Errors returns a copy of the task error ring, oldest first.
func (l *Loop) Errors() []ErrorEntry { return append([]ErrorEntry(nil), l.errors...) }

// Tick runs one task cycle (spec.md §4.6).
func (l *Loop) Tick() {
	if cfgMsg, ok := l.Endpoint.ReadCfg(); ok && cfgMsg.SerialNumber != l.lastCfgSerial {
		l.lastCfgSerial = cfgMsg.SerialNumber
		l.cfg = cfgMsg.Payload
		l.haveCfg = true
		if l.ring.Cap() != l.cfg.InterpListCapacity && l.cfg.InterpListCapacity > 0 {
			l.ring = newInterpRing(l.cfg.InterpListCapacity)
		}
		l.admin = shm.AdminInitialized
	}

	if cmdMsg, ok := l.Endpoint.ReadCmd(); ok && cmdMsg.SerialNumber != l.lastCmdSerial {
		l.lastCmdSerial = cmdMsg.SerialNumber
		l.handleCommand(cmdMsg.Payload)
	}

	if l.haveCfg && l.cfg.CycleTime > 0 {
		l.runFailureInjection()
		l.advanceTransition()
		if l.state == StateExecute {
			l.driveProgram()
			l.drainInterpList()
		}
	}

	l.publishStat()
}

func (l *Loop) handleCommand(cmd CmdPayload) {
	switch cmd.Command {
	case CmdNop:
		return
	case CmdAbort:
		l.enterTransition(StateAborting, StateAborted)
		return
	case CmdStop:
		l.enterTransition(StateStopping, StateStopped)
		return
	}

	if cmd.Command == CmdStart && cmd.ProgramPath == "" {
		l.recordError(ErrInvalidCommand)
		return
	}
	if l.faultActive && cmd.Command == CmdStart {
		l.recordError(ErrControl)
		return
	}

	for _, tr := range transitions {
		if tr.Cmd != cmd.Command {
			continue
		}
		if l.cfg.Strict && l.state != tr.From {
			l.recordError(ErrImproperCommand)
			return
		}
		if cmd.Command == CmdStart {
			l.pendingProgramPath = cmd.ProgramPath
		}
		l.enterTransition(tr.Via, tr.To)
		return
	}
	l.recordError(ErrUnknownCommand)
}

func (l *Loop) enterTransition(via, to State) {
	l.state = via
	l.transitionTarget = to
	l.transitionRemaining = l.transitionCycles()
	l.midTransition = true
	l.onEnterVia(via)
}

func (l *Loop) onEnterVia(via State) {
	switch via {
	case StateHolding, StateSuspending:
		if l.Traj != nil {
			l.Traj.Hold()
		}
	case StateUnholding, StateUnsuspending:
		if l.Traj != nil {
			l.Traj.Unhold()
		}
	case StateAborting:
		l.forceStop()
	case StateStopping:
		l.forceStop()
	case StateStarting:
		l.startProgram()
	case StateResetting:
		l.closeProgram()
	}
}

func (l *Loop) forceStop() {
	if l.Traj != nil {
		l.Traj.Endpoint.WriteCmd(trajloop.CmdPayload{Command: trajloop.CmdStop})
	}
	if l.Tool != nil {
		l.Tool.Endpoint.WriteCmd(toolloop.CmdPayload{Command: toolloop.CmdOff})
	}
}

func (l *Loop) advanceTransition() {
	if !l.midTransition {
		return
	}
	if l.transitionRemaining > 0 {
		l.transitionRemaining--
		return
	}
	l.state = l.transitionTarget
	l.midTransition = false
}

func (l *Loop) transitionCycles() int {
	return l.cyclesFromSeconds(transitionTimeSeconds)
}

func (l *Loop) cyclesFromSeconds(s float32) int {
	if l.cfg.CycleTime <= 0 {
		return 1
	}
	n := int(s / l.cfg.CycleTime)
	if n < 1 {
		n = 1
	}
	return n
}

func (l *Loop) startProgram() {
	path := l.pendingProgramPath
	if l.cfg.ProgDir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(l.cfg.ProgDir, path)
	}
	program, err := OpenProgram(path)
	if err != nil {
		l.recordError(ErrProgramNotFound)
		l.enterTransition(StateAborting, StateAborted)
		return
	}
	l.program = program
	l.programPath = l.pendingProgramPath
	l.programDone = false
	l.ring.Reset()
	l.pending = nil
}

func (l *Loop) closeProgram() {
	if l.program != nil {
		_ = l.program.Close()
		l.program = nil
	}
	l.programDone = false
	l.pending = nil
	l.ring.Reset()
}

func (l *Loop) driveProgram() {
	if l.program == nil {
		return
	}
	for l.ring.Len() < l.ring.Cap() {
		rec, haveRec, done, err := l.program.Poll()
		if err != nil {
			l.recordError(ErrProgramError)
			l.closeProgram()
			l.enterTransition(StateAborting, StateAborted)
			return
		}
		if haveRec {
			l.ring.Push(rec)
			continue
		}
		if done {
			_ = l.program.Close()
			l.program = nil
			l.programDone = true
		}
		break
	}
}

func (l *Loop) drainInterpList() {
	if l.pending != nil {
		l.advancePending()
		return
	}

	rec, ok := l.ring.Front()
	if !ok {
		if l.programDone {
			l.programDone = false
			l.enterTransition(StateCompleting, StateComplete)
		}
		return
	}

	if (rec.Kind == RecordMoveWorld || rec.Kind == RecordMoveJoint) &&
		l.cfg.TrajQueueCapacity > 0 && l.Traj != nil &&
		l.Traj.QueueLen()*2 >= l.cfg.TrajQueueCapacity {
		return // back-pressure: traj queue at least half full, wait
	}

	rec, _ = l.ring.Pop()
	switch rec.Kind {
	case RecordDelay:
		l.pending = &pendingOp{kind: pendingDelay, remaining: l.cyclesFromSeconds(rec.DelaySeconds)}
	case RecordWaitMotion:
		l.pending = &pendingOp{kind: pendingWaitMotion}
	case RecordWaitTool:
		l.pending = &pendingOp{kind: pendingWaitTool}
	case RecordMoveJoint:
		if l.Traj != nil {
			l.motionSerial++
			l.Traj.Endpoint.WriteCmd(trajloop.CmdPayload{
				Command: trajloop.CmdMoveJoint, ID: l.motionSerial, JointEnd: rec.JointEnd,
			})
		}
	case RecordMoveWorld:
		if l.Traj != nil {
			l.motionSerial++
			l.Traj.Endpoint.WriteCmd(trajloop.CmdPayload{
				Command: trajloop.CmdMoveWorld, ID: l.motionSerial, PoseEnd: rec.PoseEnd,
				Center: rec.Center, Normal: rec.Normal, Turns: rec.Turns,
			})
		}
	case RecordToolOn:
		if l.Tool != nil {
			l.Tool.Endpoint.WriteCmd(toolloop.CmdPayload{Command: toolloop.CmdOn, ID: rec.ToolID, Value: rec.ToolValue})
		}
	case RecordToolOff:
		if l.Tool != nil {
			l.Tool.Endpoint.WriteCmd(toolloop.CmdPayload{Command: toolloop.CmdOff, ID: rec.ToolID})
		}
	}
}

func (l *Loop) advancePending() {
	switch l.pending.kind {
	case pendingDelay:
		l.pending.remaining--
		if l.pending.remaining <= 0 {
			l.pending = nil
		}
	case pendingWaitMotion:
		if l.Traj == nil || l.Traj.Done() {
			l.pending = nil
		}
	case pendingWaitTool:
		if l.Tool == nil {
			l.pending = nil
			return
		}
		if st, ok := l.Tool.Endpoint.ReadStat(); ok && st.Status != shm.StatusExec {
			l.pending = nil
		}
	}
}

// runFailureInjection alternates uptime/repair phases via two exponential
// variates (spec.md §4.6, "Failure injection"), forcing the same Abort-style
// path a real motion/tool error would take (Open Question decision #4).
func (l *Loop) runFailureInjection() {
	if l.cfg.MTTF <= 0 || l.cfg.MTTR <= 0 {
		return
	}
	if !l.faultActive {
		if l.faultCyclesRemaining == 0 {
			l.faultCyclesRemaining = l.cyclesFromSeconds(float32(rand.ExpFloat64()) * l.cfg.MTTF)
		}
		l.faultCyclesRemaining--
		if l.faultCyclesRemaining <= 0 {
			l.faultActive = true
			l.forceStop()
			l.recordError(ErrControl)
			l.repairCyclesRemaining = l.cyclesFromSeconds(float32(rand.ExpFloat64()) * l.cfg.MTTR)
		}
		return
	}
	l.repairCyclesRemaining--
	if l.repairCyclesRemaining <= 0 {
		l.faultActive = false
		l.faultCyclesRemaining = 0
	}
}

func (l *Loop) recordError(code ErrorCode) {
	entry := ErrorEntry{Time: time.Now(), Code: code}
	if len(l.errors) < errorRingCapacity {
		l.errors = append(l.errors, entry)
		return
	}
	copy(l.errors, l.errors[1:])
	l.errors[len(l.errors)-1] = entry
}

func (l *Loop) publishStat() {
	status := shm.StatusExec
	switch {
	case l.midTransition:
		status = shm.StatusExec
	case l.state == StateIdle, l.state == StateComplete, l.state == StateStopped,
		l.state == StateHeld, l.state == StateSuspended:
		status = shm.StatusDone
	case l.state == StateAborted:
		status = shm.StatusError
	}

	l.Endpoint.WriteStat(l.lastCmdSerial, status, l.admin, int32(l.state), StatPayload{
		State:       l.state,
		ProgramPath: l.programPath,
		QueueLen:    l.ring.Len(),
		FaultActive: l.faultActive,
		Errors:      l.Errors(),
	})
	l.Endpoint.WriteSet(l.lastCfgSerial, shm.StatusDone, l.admin, 0, SetPayload{CfgPayload: l.cfg})
}
