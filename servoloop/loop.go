package servoloop

import (
	"github.com/itohio/gomotion/extio"
	"github.com/itohio/gomotion/shm"
)

// Endpoint is the shm region a servo loop reads cmd/cfg from and writes
// stat/set to.
type Endpoint = shm.Endpoint[CmdPayload, StatPayload, CfgPayload, SetPayload]

// NewEndpoint creates an empty servo endpoint.
func NewEndpoint() *Endpoint {
	return shm.NewEndpoint[CmdPayload, StatPayload, CfgPayload, SetPayload]()
}

// Loop is one instance of the per-joint servo control loop (spec.md §4.2).
// Joint is this servo's index, used when addressing the extio.Adapter.
type Loop struct {
	Joint    int
	Endpoint *Endpoint
	Adapter  extio.Adapter

	cfg           CfgPayload
	haveCfg       bool
	lastCfgSerial uint64
	lastCmdSerial uint64

	pid    PID
	interp Interpolator

	lastScaled float32
	homeWanted bool
	homed      bool
	inputLatch float32

	cycleCount int
	log        []LogEntry
	logCap     int
}

// NewLoop creates a servo loop for the given joint, publishing through
// endpoint and driving adapter. logCapacity bounds the optional trace ring
// (0 disables logging).
func NewLoop(joint int, endpoint *Endpoint, adapter extio.Adapter, logCapacity int) *Loop {
	l := &Loop{Joint: joint, Endpoint: endpoint, Adapter: adapter, logCap: logCapacity}
	l.interp = NewInterpolator(InterpLinear, 1)
	return l
}

// Log returns the current trace ring, oldest first.
func (l *Loop) Log() []LogEntry { return l.log }

// CycleMult reports the configured servo-to-traj clock divider, used by
// Servo 0 to know how often to release the trajectory semaphore.
func (l *Loop) CycleMult() int {
	if !l.haveCfg || l.cfg.CycleMult < 1 {
		return 1
	}
	return l.cfg.CycleMult
}

// DueForTrajRelease reports whether the cycle just completed by Tick is one
// on which Servo 0 should release the trajectory semaphore, per the
// configured cycle_mult divider.
func (l *Loop) DueForTrajRelease() bool {
	return l.cycleCount%l.CycleMult() == 0
}

// Tick runs one full servo cycle (spec.md §4.2, steps 1-8).
func (l *Loop) Tick() {
	l.cycleCount++

	// 1. ping-pong read cmd and cfg, detect new arrivals via serial number.
	cfgMsg, haveCfgMsg := l.Endpoint.ReadCfg()
	newCfg := haveCfgMsg && cfgMsg.SerialNumber != l.lastCfgSerial
	if newCfg {
		l.lastCfgSerial = cfgMsg.SerialNumber
		l.applyCfg(cfgMsg.Payload)
	}

	cmdMsg, haveCmd := l.Endpoint.ReadCmd()
	newCmd := haveCmd && cmdMsg.SerialNumber != l.lastCmdSerial
	if newCmd {
		l.lastCmdSerial = cmdMsg.SerialNumber
	}

	if !l.haveCfg || l.cfg.CycleTime <= 0 {
		l.Endpoint.WriteStat(l.lastCmdSerial, shm.StatusError, shm.AdminUninitialized, int32(CmdNop), StatPayload{})
		return
	}
	cycleTime := l.cfg.CycleTime

	// 2. read raw input, scale it, derive velocity.
	raw, res := l.Adapter.ReadPos(l.Joint)
	if res != extio.ResultOK {
		l.Endpoint.WriteStat(l.lastCmdSerial, shm.StatusError, shm.AdminInitialized, int32(CmdNop), StatPayload{})
		return
	}
	scaled := raw * l.cfg.InputScale
	velocity := (scaled - l.lastScaled) / cycleTime
	l.lastScaled = scaled

	var cmd CmdPayload
	if haveCmd {
		cmd = cmdMsg.Payload
	}

	status := shm.StatusExec
	admin := shm.AdminInitialized

	// 3 & 4. command state machine + interpolator entry.
	switch cmd.Command {
	case CmdNop:
		status = shm.StatusDone
	case CmdInit:
		l.Adapter.JointInit(l.Joint)
		l.homed = false
		l.homeWanted = false
		l.pid.Reset(scaled)
		status = shm.StatusDone
		admin = shm.AdminInitialized
	case CmdAbort:
		l.Adapter.JointDisable(l.Joint)
		admin = shm.AdminUninitialized
		status = shm.StatusDone
	case CmdHalt:
		l.Adapter.JointDisable(l.Joint)
		admin = shm.AdminUninitialized
		status = shm.StatusDone
	case CmdShutdown:
		l.Adapter.JointQuit(l.Joint)
		admin = shm.AdminUninitialized
		status = shm.StatusDone
	case CmdServo:
		if newCmd {
			l.interp.SetTarget(l.interp.Value(), cmd.Setpoint)
			l.homeWanted = cmd.Home
		}
		status = shm.StatusExec
	case CmdStub:
		status = shm.StatusDone
	default:
		status = shm.StatusError
	}

	setpoint := l.interp.Value()
	if cmd.Command != CmdServo {
		setpoint = scaled
	}

	// 5. apply control.
	var output float32
	if l.cfg.PassThrough {
		l.Adapter.WritePos(l.Joint, setpoint)
		output = setpoint
	} else {
		l.pid.Target = setpoint
		l.pid.Update(scaled, cycleTime)
		output = l.pid.Output
		l.Adapter.WriteVel(l.Joint, output)
	}

	// 6. homing.
	if l.homeWanted && !l.homed {
		if res := l.Adapter.JointHome(l.Joint); res == extio.ResultOK {
			if home, res := l.Adapter.IsHome(l.Joint); res == extio.ResultOK && home {
				l.inputLatch = scaled - l.cfg.Home
				l.homed = true
			}
		}
	}

	// 7. optional log entry.
	if l.logCap > 0 {
		entry := LogEntry{FollowErr: setpoint - scaled, Input: scaled, Setpoint: setpoint, Speed: velocity}
		l.log = append(l.log, entry)
		if len(l.log) > l.logCap {
			l.log = l.log[len(l.log)-l.logCap:]
		}
	}

	// 8. write stat and set.
	stat := StatPayload{
		Input:      scaled,
		Velocity:   velocity,
		Setpoint:   setpoint,
		FollowErr:  setpoint - scaled,
		Output:     output,
		Homed:      l.homed,
		InputLatch: l.inputLatch,
	}
	l.Endpoint.WriteStat(l.lastCmdSerial, status, admin, int32(cmd.Command), stat)
	l.Endpoint.WriteSet(l.lastCfgSerial, shm.StatusDone, admin, int32(cmd.Command), SetPayload{CfgPayload: l.cfg})
}

func (l *Loop) applyCfg(cfg CfgPayload) {
	if cfg.CycleTime <= 0 {
		return
	}
	l.cfg = cfg
	l.haveCfg = true
	l.interp = NewInterpolator(cfg.Interp, cfg.CycleMult)
	l.pid = PID{
		P: cfg.P, I: cfg.I, D: cfg.D,
		Pff: cfg.Pff, Vff: cfg.Vff, Aff: cfg.Aff,
		PosBias: cfg.PosBias, NegBias: cfg.NegBias,
		Deadband: cfg.Deadband,
		Min:      cfg.OutputMin, Max: cfg.OutputMax,
	}
}
