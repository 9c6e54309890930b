package trajloop

import (
	"github.com/rs/zerolog"

	"github.com/itohio/gomotion/kinematics"
	"github.com/itohio/gomotion/motion"
	"github.com/itohio/gomotion/servoloop"
	"github.com/itohio/gomotion/shm"
	"github.com/itohio/gomotion/spatial"
)

// Endpoint is the shm region a traj loop reads cmd/cfg from and writes
// stat/set to.
type Endpoint = shm.Endpoint[CmdPayload, StatPayload, CfgPayload, SetPayload]

// NewEndpoint creates an empty trajectory endpoint.
func NewEndpoint() *Endpoint {
	return shm.NewEndpoint[CmdPayload, StatPayload, CfgPayload, SetPayload]()
}

// walkInFraction is the per-cycle fraction of max_tvel/max_rvel the "walk-in"
// filter applies when ref.Xinv changes (spec.md §4.4 step 6, "e.g. 10%").
const walkInFraction = 0.1

// Loop is the trajectory loop (spec.md §4.4): one instance serving all
// joints of a single kinematic chain.
type Loop struct {
	Endpoint *Endpoint
	Ref      *shm.Channel[RefPayload]
	Servos   []*servoloop.Endpoint
	Kin      kinematics.Model
	Log      zerolog.Logger

	queue *motion.Queue

	cfg           CfgPayload
	haveCfg       bool
	lastCmdSerial uint64
	lastCfgSerial uint64

	admin shm.AdminState

	jointsHomed    []bool
	jointOffset    spatial.JointVector
	measuredJoints spatial.JointVector
	homed          bool

	commandedKCP spatial.Pose
	commandedECP spatial.Pose

	// pendingToolTransform holds a live ToolTransform change that arrived
	// while the motion queue was non-empty; it is applied, re-expressing
	// limits/home into the new tool frame, once the queue drains
	// (spec.md:130).
	pendingToolTransform *spatial.Pose

	appliedXinv spatial.Pose

	savedScale float32
	holdActive bool

	clampWarning bool
}

// NewLoop creates a trajectory loop for a kinematic chain with numJoints
// joints, driving the given per-joint servo endpoints and kinematics
// plug-in.
func NewLoop(endpoint *Endpoint, ref *shm.Channel[RefPayload], servos []*servoloop.Endpoint, kin kinematics.Model, queueCapacity int) *Loop {
	n := len(servos)
	l := &Loop{
		Endpoint:       endpoint,
		Ref:            ref,
		Servos:         servos,
		Kin:            kin,
		queue:          motion.NewQueue(motion.ModeJoint, n, queueCapacity),
		jointsHomed:    make([]bool, n),
		jointOffset:    make(spatial.JointVector, n),
		measuredJoints: make(spatial.JointVector, n),
		commandedECP:   spatial.Identity,
		commandedKCP:   spatial.Identity,
		appliedXinv:    spatial.Identity,
		savedScale:     1,
	}
	return l
}

// Tick runs one trajectory cycle (spec.md §4.4, steps 1-6).
func (l *Loop) Tick() {
	l.clampWarning = false

	// 1. ping-pong read cmd/cfg/ref, and every servo's stat/set.
	cfgMsg, haveCfgMsg := l.Endpoint.ReadCfg()
	if haveCfgMsg && cfgMsg.SerialNumber != l.lastCfgSerial {
		l.lastCfgSerial = cfgMsg.SerialNumber
		l.applyCfg(cfgMsg.Payload)
	}

	cmdMsg, haveCmd := l.Endpoint.ReadCmd()
	newCmd := haveCmd && cmdMsg.SerialNumber != l.lastCmdSerial
	if newCmd {
		l.lastCmdSerial = cmdMsg.SerialNumber
	}
	var cmd CmdPayload
	if haveCmd {
		cmd = cmdMsg.Payload
	}

	ref, haveRef := RefPayload{}, false
	if l.Ref != nil {
		ref, haveRef = l.Ref.Read()
	}

	if !l.haveCfg || l.cfg.CycleTime <= 0 {
		l.publishStat(Command(-1))
		return
	}

	// 2. count joints_active / joints_homed, latch offsets. measuredJoints
	// is stored per-joint-offset-corrected (spec.md:50, "measurements coming
	// up are raw_input - offset") so every downstream consumer below sees
	// the same homed-relative value invariant 4 requires of stat.joints_act.
	active, homedCount := 0, 0
	wasHomed := l.homed
	for i, ep := range l.Servos {
		st, ok := ep.ReadStat()
		if !ok {
			continue
		}
		active++
		if st.Payload.Homed {
			if !l.jointsHomed[i] {
				l.jointOffset[i] = st.Payload.InputLatch
			}
			l.jointsHomed[i] = true
			homedCount++
		}
		l.measuredJoints[i] = st.Payload.Input - l.jointOffset[i]
	}
	if active > 0 && homedCount == active && !wasHomed {
		l.homed = true
	}

	// 3. forward kinematics on measured joints → KCP → ECP; snap commanded
	// on the homed transition to avoid a jump.
	if l.homed && l.Kin != nil {
		if kcp, err := l.Kin.Forward(l.measuredJoints); err == nil {
			actualECP := kcp.Mul(l.cfg.ToolTransform)
			if !wasHomed {
				l.commandedKCP = kcp
				l.commandedECP = actualECP
				l.queue.SetHere(l.measuredJoints.Clone(), actualECP)
			}
		}
	}

	// a ToolTransform change deferred because the queue was non-empty may
	// be able to commit now that motion has drained.
	l.applyPendingToolTransform()

	// 6. walk-in filter on ref.Xinv: appliedXinv moves toward the requested
	// frame by a bounded step each cycle. dispatch does not read
	// appliedXinv, so commanded poses are not offset by it.
	if haveRef {
		l.walkIn(ref.Xinv)
	}

	// 4 & 5. dispatch.
	l.dispatch(cmd, newCmd)

	l.publishStat(cmd.Command)
}

func (l *Loop) applyCfg(cfg CfgPayload) {
	if cfg.CycleTime <= 0 {
		return
	}
	// A live ToolTransform change only takes effect once the motion queue is
	// empty (spec.md:130): hold the old tool/limits/home and stash the new
	// tool transform until applyPendingToolTransform sees an empty queue.
	if l.haveCfg && cfg.ToolTransform != l.cfg.ToolTransform {
		next := cfg.ToolTransform
		l.pendingToolTransform = &next
		cfg.ToolTransform = l.cfg.ToolTransform
		cfg.WorldPosMin = l.cfg.WorldPosMin
		cfg.WorldPosMax = l.cfg.WorldPosMax
		cfg.Home = l.cfg.Home
	}
	l.cfg = cfg
	l.haveCfg = true
	if cfg.KinematicsName != "" && (l.Kin == nil || l.Kin.Name() != cfg.KinematicsName) {
		if kin, err := kinematics.Select(cfg.KinematicsName); err == nil {
			l.Kin = kin
		}
	}
	if l.Kin != nil && cfg.KinematicsLinks != nil {
		l.Kin.SetParameters(cfg.KinematicsLinks)
	}
	if !l.holdActive {
		l.queue.SetScale(effectiveScale(cfg.Scale, cfg.MaxScale), rampRate(cfg.ScaleV), rampRate(cfg.ScaleA))
	}
	l.applyPendingToolTransform()
}

// applyPendingToolTransform commits a deferred ToolTransform change once the
// motion queue is empty. Stored limits and home are re-expressed from the
// old ECP frame into the new one via Q = new_tool_transform.Inv().Mul(
// old_tool_transform), matching the relation
//
//	new_tool_transform * Q * old_lim = old_tool_transform * old_lim
//
// i.e. new_lim = Q * old_lim, so that world-frame limits and home keep
// describing the same physical pose under the new tool (spec.md:130).
// Invariant 10 (spec.md:228) then holds by construction: KCP is untouched
// and ECP is reset to KCP under the new tool transform.
func (l *Loop) applyPendingToolTransform() {
	if l.pendingToolTransform == nil || l.queue.Len() != 0 {
		return
	}
	newTool := *l.pendingToolTransform
	l.pendingToolTransform = nil
	q := newTool.Inv().Mul(l.cfg.ToolTransform)

	minPose := q.Mul(spatial.Pose{Tran: l.cfg.WorldPosMin, Rot: spatial.IdentityQuaternion})
	maxPose := q.Mul(spatial.Pose{Tran: l.cfg.WorldPosMax, Rot: spatial.IdentityQuaternion})
	l.cfg.WorldPosMin = minPose.Tran
	l.cfg.WorldPosMax = maxPose.Tran
	l.cfg.Home = q.Mul(l.cfg.Home)
	l.cfg.ToolTransform = newTool

	if l.queue.Mode() == motion.ModeWorld {
		l.commandedECP = l.commandedKCP.Mul(newTool)
		l.queue.SetHere(l.measuredJoints.Clone(), l.commandedECP)
	}
}

// effectiveScale enforces invariant 9's "0 <= scale <= max_scale". An unset
// (zero) Scale defaults to full speed rather than a standstill — a caller
// wanting a genuine standstill uses Hold, which bypasses this path entirely.
func effectiveScale(scale, maxScale float32) float32 {
	if scale <= 0 {
		scale = 1
	}
	if maxScale > 0 && scale > maxScale {
		scale = maxScale
	}
	return scale
}

// rampRate enforces invariant 9's "0 < scale_v/scale_a": an unconfigured
// (zero) ramp rate would stall SetScale's ramp entirely, so it falls back
// to an effectively instantaneous rate instead.
func rampRate(v float32) float32 {
	if v <= 0 {
		return 1e6
	}
	return v
}

func (l *Loop) walkIn(requested spatial.Pose) {
	step := walkInFraction * l.cfg.MaxTVel * l.cfg.CycleTime
	d := requested.Tran.Sub(l.appliedXinv.Tran)
	if n := d.Norm(); n > step && n > 0 {
		l.appliedXinv.Tran = l.appliedXinv.Tran.Add(d.Scale(step / n))
	} else {
		l.appliedXinv.Tran = requested.Tran
	}
	angStep := walkInFraction * l.cfg.MaxRVel * l.cfg.CycleTime
	if ang := l.appliedXinv.Rot.AngleTo(requested.Rot); ang > angStep && ang > 0 {
		l.appliedXinv.Rot = l.appliedXinv.Rot.Slerp(requested.Rot, angStep/ang)
	} else {
		l.appliedXinv.Rot = requested.Rot
	}
}

func (l *Loop) dispatch(cmd CmdPayload, newCmd bool) {
	switch cmd.Command {
	case CmdInit:
		l.broadcastServoCmd(servoloop.CmdInit)
		if l.allServosDone() {
			l.queue.SetType(motion.ModeJoint)
			l.queue.Reset()
			l.queue.SetHere(l.measuredJoints.Clone(), l.commandedECP)
			l.admin = shm.AdminInitialized
		}
	case CmdAbort:
		l.broadcastServoCmd(servoloop.CmdAbort)
		l.admin = shm.AdminUninitialized
	case CmdHalt:
		l.broadcastServoCmd(servoloop.CmdHalt)
		l.admin = shm.AdminUninitialized
	case CmdShutdown:
		l.broadcastServoCmd(servoloop.CmdShutdown)
		l.admin = shm.AdminUninitialized
	case CmdStop:
		l.queue.Stop()
		l.advanceQueue()
	case CmdMoveUjoint:
		if newCmd {
			l.queue.SetType(motion.ModeJoint)
			l.appendJoint(cmd, true)
		}
		l.advanceQueue()
	case CmdMoveJoint:
		if newCmd {
			l.queue.SetType(motion.ModeJoint)
			l.appendJoint(cmd, false)
		}
		l.advanceQueue()
	case CmdMoveWorld:
		if newCmd && l.homed {
			l.queue.SetType(motion.ModeWorld)
			l.appendWorld(cmd, cmd.PoseEnd)
		}
		l.advanceQueue()
	case CmdMoveTool:
		if newCmd && l.homed {
			l.queue.SetType(motion.ModeWorld)
			l.appendWorld(cmd, l.commandedECP.Mul(cmd.PoseEnd))
		}
		l.advanceQueue()
	case CmdTrackWorld:
		if l.homed {
			clamped := cmd.TrackPose
			clamped.Tran = clamped.Tran.Clamp(
				spatial.Vec3{X: -l.cfg.TranLimit.Vel, Y: -l.cfg.TranLimit.Vel, Z: -l.cfg.TranLimit.Vel},
				spatial.Vec3{X: l.cfg.TranLimit.Vel, Y: l.cfg.TranLimit.Vel, Z: l.cfg.TranLimit.Vel},
			)
			l.queue.SetType(motion.ModeWorld)
			l.queue.SetHere(l.measuredJoints, clamped)
			l.solveAndPublishWorld(clamped)
		}
	case CmdTrackJoint:
		clamped := cmd.TrackJoints.Clamp(l.cfg.JointLimitMin, l.cfg.JointLimitMax)
		l.queue.SetType(motion.ModeJoint)
		l.queue.SetHere(clamped, l.commandedECP)
		l.publishJointSetpoints(clamped)
	case CmdTeleopJoint:
		l.queue.SetType(motion.ModeJoint)
		next := l.measuredJoints.Clone()
		for i := range next {
			if i < len(cmd.TeleopJointVel) {
				next[i] = l.measuredJoints[i] + cmd.TeleopJointVel[i]*l.cfg.CycleTime
			}
		}
		next = next.Clamp(l.cfg.JointLimitMin, l.cfg.JointLimitMax)
		l.queue.SetHere(next, l.commandedECP)
		l.publishJointSetpoints(next)
	case CmdTeleopWorld, CmdTeleopTool:
		if l.homed {
			vel := cmd.TeleopVel
			if cmd.Command == CmdTeleopTool {
				vel.Tran = l.commandedECP.Rot.RotateVec3(vel.Tran)
				vel.Rot = l.commandedECP.Rot.RotateVec3(vel.Rot)
			}
			next := l.commandedECP
			next.Tran = next.Tran.Add(vel.Tran.Scale(l.cfg.CycleTime))
			l.queue.SetType(motion.ModeWorld)
			l.queue.SetHere(l.measuredJoints, next)
			l.solveAndPublishWorld(next)
		}
	case CmdHere:
		if l.Kin != nil {
			if joints, err := l.Kin.Inverse(cmd.PoseEnd, l.measuredJoints); err == nil {
				for i, ep := range l.Servos {
					if i >= len(joints) {
						break
					}
					ep.WriteCmd(servoloop.CmdPayload{Command: servoloop.CmdServo, Setpoint: joints[i], Home: true})
					l.jointsHomed[i] = false
				}
				l.homed = false
				l.commandedECP = cmd.PoseEnd
			}
		}
	default:
		l.advanceQueue()
	}
}

func (l *Loop) appendJoint(cmd CmdPayload, uj bool) {
	segType := motion.SegmentJoint
	if uj {
		segType = motion.SegmentUjoint
	}
	seg := motion.Segment{ID: cmd.ID, Type: segType, JointEnd: cmd.JointEnd, JointLimit: l.cfg.JointLimits, Time: cmd.Time}
	l.queue.Append(seg, l.jointsHomed, l.cfg.JointLimitMin, l.cfg.JointLimitMax)
}

func (l *Loop) appendWorld(cmd CmdPayload, end spatial.Pose) {
	segType := motion.SegmentWorldLinear
	if cmd.Command == CmdMoveWorld && cmd.Turns != 0 {
		segType = motion.SegmentWorldCircular
	}
	seg := motion.Segment{
		ID: cmd.ID, Type: segType, PoseEnd: end,
		TranLimit: l.cfg.TranLimit, RotLimit: l.cfg.RotLimit,
		Center: cmd.Center, Normal: cmd.Normal, Turns: cmd.Turns, Time: cmd.Time,
	}
	l.queue.Append(seg, nil, nil, nil)
}

func (l *Loop) advanceQueue() {
	joints, pose, _ := l.queue.Interp(l.cfg.CycleTime)
	if l.queue.Mode() == motion.ModeWorld {
		l.solveAndPublishWorld(pose)
		return
	}
	l.publishJointSetpoints(joints)
}

// clampWorldPos enforces the cfg's world position box (spec.md §8 invariant
// 5), recording whether the position needed clamping and warning once per
// occurrence in debug mode.
func (l *Loop) clampWorldPos(tran spatial.Vec3) spatial.Vec3 {
	clamped := tran.Clamp(l.cfg.WorldPosMin, l.cfg.WorldPosMax)
	if clamped != tran {
		l.clampWarning = true
		if l.cfg.Debug {
			l.Log.Warn().
				Interface("requested", tran).
				Interface("clamped", clamped).
				Msg("world move clamped to configured position limits")
		}
	}
	return clamped
}

func (l *Loop) solveAndPublishWorld(ecp spatial.Pose) {
	ecp.Tran = l.clampWorldPos(ecp.Tran)
	l.commandedECP = ecp
	if l.Kin == nil {
		return
	}
	kcp := ecp.Mul(l.cfg.ToolTransform.Inv())
	joints, err := l.Kin.Inverse(kcp, l.measuredJoints)
	if err != nil {
		return
	}
	l.commandedKCP = kcp
	l.publishJointSetpoints(joints)
}

func (l *Loop) publishJointSetpoints(joints spatial.JointVector) {
	for i, ep := range l.Servos {
		setpoint := float32(0)
		if i < len(joints) {
			setpoint = joints[i] + l.jointOffset[i]
		}
		ep.WriteCmd(servoloop.CmdPayload{Command: servoloop.CmdServo, Setpoint: setpoint})
	}
}

func (l *Loop) broadcastServo(setpoint float32, home bool) {
	for _, ep := range l.Servos {
		ep.WriteCmd(servoloop.CmdPayload{Command: servoloop.CmdServo, Setpoint: setpoint, Home: home})
	}
}

func (l *Loop) broadcastServoCmd(c servoloop.Command) {
	for _, ep := range l.Servos {
		ep.WriteCmd(servoloop.CmdPayload{Command: c})
	}
}

func (l *Loop) allServosDone() bool {
	for _, ep := range l.Servos {
		st, ok := ep.ReadStat()
		if !ok || st.Status != shm.StatusDone {
			return false
		}
	}
	return true
}

// Hold writes a zero timescale to the queue, preserving the prior scale so
// Unhold can restore it (spec.md §4.6, "Hold / Unhold").
func (l *Loop) Hold() {
	if l.holdActive {
		return
	}
	l.savedScale = l.cfg.Scale
	l.queue.SetScale(0, rampRate(l.cfg.ScaleV), rampRate(l.cfg.ScaleA))
	l.holdActive = true
}

// Unhold restores the scale saved by Hold.
func (l *Loop) Unhold() {
	if !l.holdActive {
		return
	}
	l.holdActive = false
	l.queue.SetScale(effectiveScale(l.savedScale, l.cfg.MaxScale), rampRate(l.cfg.ScaleV), rampRate(l.cfg.ScaleA))
}

// Done reports whether the queue has drained, used by the task loop's
// wait-for-motion interp-list record.
func (l *Loop) Done() bool { return l.queue.Len() == 0 }

// QueueLen exposes the queue depth for the task loop's back-pressure check
// (spec.md §4.6, "Interp-list drain logic").
func (l *Loop) QueueLen() int { return l.queue.Len() }

func (l *Loop) publishStat(cmd Command) {
	stat := StatPayload{
		JointsActive: len(l.Servos),
		Homed:        l.homed,
		Command:      cmd,
		KCP:          l.commandedKCP,
		ECP:          l.commandedECP,
		Joints:       l.measuredJoints.Clone(),
		QueueLen:     l.queue.Len(),
		ClampWarning: l.clampWarning,
		Scale:        l.queue.Scale(),
	}
	for _, h := range l.jointsHomed {
		if h {
			stat.JointsHomed++
		}
	}
	status := shm.StatusExec
	if l.queue.Len() == 0 {
		status = shm.StatusDone
	}
	l.Endpoint.WriteStat(l.lastCmdSerial, status, l.admin, int32(cmd), stat)
	l.Endpoint.WriteSet(l.lastCfgSerial, shm.StatusDone, l.admin, int32(cmd), SetPayload{CfgPayload: l.cfg})
}
