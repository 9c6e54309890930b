package motion

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/itohio/gomotion/spatial"
)

var (
	// ErrModeSwitch is returned by Append when a segment's mode does not
	// match the queue's current mode and the queue is not empty (spec.md
	// §4.3, "mode-switch invariant").
	ErrModeSwitch = errors.New("motion: mode switch requires an empty queue")
	// ErrQueueFull is returned by Append when the ring is at capacity.
	ErrQueueFull = errors.New("motion: queue at capacity")
	// ErrLimitExceeded names a segment end outside the configured limits.
	// Nothing in this package returns it: Append clamps homed joint ends
	// and does not check world segment ends against Cartesian limits.
	ErrLimitExceeded = errors.New("motion: segment end exceeds configured limits")
)

// Queue is the bounded motion-segment ring plus the running interpolator
// (spec.md §4.3). One Queue instance backs Traj's joint-mode output and
// another (or the same, mode-switched) backs its world-mode output.
type Queue struct {
	mode     Mode
	capacity int
	segs     []Segment
	lastID   uint64
	hasLast  bool

	numJoints int
	jointHere spatial.JointVector
	poseHere  spatial.Pose

	jointProfiles []VAJ1D
	tranProfile   VAJ1D
	rotProfile    VAJ1D
	sweepProfile  VAJ1D // World_Circular position sweep angle

	active    bool
	curSeg    Segment
	startPose spatial.Pose

	circleU      spatial.Vec3
	circleV      spatial.Vec3
	circleRadius float32

	stopping bool

	scale       float32
	scaleTarget float32
	scaleRamp   VAJ1D
}

// NewQueue creates an empty queue for numJoints joints with the given ring
// capacity (spec.md §3, "Motion queue", "capacity ~10 for traj").
func NewQueue(mode Mode, numJoints, capacity int) *Queue {
	q := &Queue{
		mode:      mode,
		capacity:  capacity,
		numJoints: numJoints,
		jointHere: make(spatial.JointVector, numJoints),
		poseHere:  spatial.Identity,
		scale:     1,
		scaleTarget: 1,
	}
	q.scaleRamp = NewVAJ1D(1, 1, 1e6)
	q.scaleRamp.Reset(1)
	q.scaleRamp.Target = 1
	return q
}

// Mode reports the queue's current world/joint mode.
func (q *Queue) Mode() Mode { return q.mode }

// Scale reports the effective timescale last applied by Interp, ramped
// toward whatever SetScale most recently requested (spec.md §8 scenario 6,
// "Hold/Unhold").
func (q *Queue) Scale() float32 { return q.scale }

// Len reports how many segments are queued (including the in-flight one).
func (q *Queue) Len() int {
	n := len(q.segs)
	if q.active {
		n++
	}
	return n
}

// Reset clears the queue and drops the in-flight segment, leaving the
// interpolator parked at its last "here" position.
func (q *Queue) Reset() {
	q.segs = q.segs[:0]
	q.active = false
	q.stopping = false
	q.hasLast = false
}

// SetType switches world/joint mode; rejected unless the queue is empty
// (spec.md §4.3, "mode-switch invariant").
func (q *Queue) SetType(mode Mode) error {
	if q.Len() != 0 {
		return ErrModeSwitch
	}
	q.mode = mode
	return nil
}

// SetHere forces the interpolator's current position, used after a
// kinematic mode switch or a `Here` re-identification (spec.md §4.3).
func (q *Queue) SetHere(joints spatial.JointVector, pose spatial.Pose) {
	if len(joints) == q.numJoints {
		q.jointHere = joints.Clone()
	}
	q.poseHere = pose
	q.active = false
	q.stopping = false
}

// Append validates and enqueues seg. Re-sending the same id is a no-op
// (idempotent re-send). jointMin/jointMax/homed are only consulted for
// Joint/Ujoint segments and are per-joint; a homed joint whose end exceeds
// its limit is clamped (with ErrLimitExceeded-free success, warn is the
// caller's responsibility via the returned bool). World segment end poses
// are not checked against any Cartesian limits here.
func (q *Queue) Append(seg Segment, homed []bool, jointMin, jointMax spatial.JointVector) (clamped bool, err error) {
	if q.hasLast && seg.ID == q.lastID {
		return false, nil
	}
	if (seg.Type == SegmentWorldLinear || seg.Type == SegmentWorldCircular) && q.mode != ModeWorld {
		return false, ErrModeSwitch
	}
	if (seg.Type == SegmentJoint || seg.Type == SegmentUjoint) && q.mode != ModeJoint {
		return false, ErrModeSwitch
	}
	if q.Len() >= q.capacity {
		return false, ErrQueueFull
	}

	if seg.Type == SegmentJoint || seg.Type == SegmentUjoint {
		for i := 0; i < len(seg.JointEnd) && i < len(homed); i++ {
			if !homed[i] {
				continue
			}
			if i < len(jointMin) && i < len(jointMax) {
				clampedVal := spatial.ClampF(seg.JointEnd[i], jointMin[i], jointMax[i])
				if clampedVal != seg.JointEnd[i] {
					seg.JointEnd[i] = clampedVal
					clamped = true
				}
			}
		}
	}

	q.segs = append(q.segs, seg)
	q.lastID = seg.ID
	q.hasLast = true
	return clamped, nil
}

// Stop replaces the remainder of the in-flight segment (and drops the rest
// of the queue) with a jerk-limited deceleration to rest at the current
// point.
func (q *Queue) Stop() {
	q.segs = q.segs[:0]
	q.stopping = true
	if q.active {
		switch q.curSeg.Type {
		case SegmentJoint, SegmentUjoint:
			for i := range q.jointProfiles {
				q.jointProfiles[i].Target = q.jointProfiles[i].Output
			}
		case SegmentWorldLinear:
			q.tranProfile.Target = q.tranProfile.Output
			q.rotProfile.Target = q.rotProfile.Output
		case SegmentWorldCircular:
			q.sweepProfile.Target = q.sweepProfile.Output
			q.rotProfile.Target = q.rotProfile.Output
		}
	}
}

// SetScale requests a new feedrate override; the effective scale ramps
// toward s at rates bounded by sv/sa (spec.md §3, "Timescale").
func (q *Queue) SetScale(s, sv, sa float32) {
	q.scaleTarget = s
	q.scaleRamp.maxV = sv
	q.scaleRamp.maxA = sa
	q.scaleRamp.Target = s
}

// Interp advances the queue by one cycleTime (scaled by the ramped
// timescale) and returns the next position. moving reports whether the
// queue produced any actual motion this tick.
func (q *Queue) Interp(cycleTime float32) (joints spatial.JointVector, pose spatial.Pose, moving bool) {
	q.scaleRamp.Update(cycleTime)
	q.scale = q.scaleRamp.Output
	dt := cycleTime * q.scale

	if !q.active {
		if len(q.segs) == 0 {
			return q.jointHere, q.poseHere, false
		}
		q.startSegment(q.segs[0])
		q.segs = q.segs[1:]
	}

	switch q.curSeg.Type {
	case SegmentJoint, SegmentUjoint:
		joints, moving = q.interpJoint(dt)
		q.jointHere = joints
		return joints, q.poseHere, moving
	case SegmentWorldLinear:
		pose, moving = q.interpLinear(dt)
		q.poseHere = pose
		return q.jointHere, pose, moving
	case SegmentWorldCircular:
		pose, moving = q.interpCircular(dt)
		q.poseHere = pose
		return q.jointHere, pose, moving
	}
	return q.jointHere, q.poseHere, false
}

func (q *Queue) startSegment(seg Segment) {
	q.curSeg = seg
	q.active = true
	q.stopping = false

	switch seg.Type {
	case SegmentJoint, SegmentUjoint:
		n := len(seg.JointEnd)
		dists := make([]float32, n)
		lims := make([]Limits, n)
		for i := 0; i < n; i++ {
			dists[i] = math32.Abs(seg.JointEnd[i] - q.jointHere[i])
			if i < len(seg.JointLimit) {
				lims[i] = seg.JointLimit[i]
			}
		}
		synced := syncAxes(dists, lims, seg.Time)
		q.jointProfiles = make([]VAJ1D, n)
		for i := 0; i < n; i++ {
			p := NewVAJ1D(synced[i].Vel, synced[i].Accel, synced[i].Jerk)
			p.Reset(q.jointHere[i])
			p.Target = seg.JointEnd[i]
			q.jointProfiles[i] = p
		}
	case SegmentWorldLinear:
		q.startPose = q.poseHere
		dist := seg.PoseEnd.Tran.Sub(q.startPose.Tran).Norm()
		angle := q.startPose.Rot.AngleTo(seg.PoseEnd.Rot)
		synced := syncAxes([]float32{dist, angle}, []Limits{seg.TranLimit, seg.RotLimit}, seg.Time)
		q.tranProfile = NewVAJ1D(synced[0].Vel, synced[0].Accel, synced[0].Jerk)
		q.tranProfile.Reset(0)
		q.tranProfile.Target = dist
		q.rotProfile = NewVAJ1D(synced[1].Vel, synced[1].Accel, synced[1].Jerk)
		q.rotProfile.Reset(0)
		q.rotProfile.Target = angle
	case SegmentWorldCircular:
		q.startPose = q.poseHere
		radius, sweep, u, v := circlePlane(q.startPose.Tran, seg.PoseEnd.Tran, seg.Center, seg.Normal, seg.Turns)
		q.circleU, q.circleV, q.circleRadius = u, v, radius
		angle := q.startPose.Rot.AngleTo(seg.PoseEnd.Rot)
		arcExtent := radius * math32.Abs(sweep)
		dominant := arcExtent
		if radius < 1e-6 {
			dominant = math32.Abs(sweep)
		}
		synced := syncAxes([]float32{dominant, angle}, []Limits{seg.TranLimit, seg.RotLimit}, seg.Time)
		q.sweepProfile = NewVAJ1D(synced[0].Vel, synced[0].Accel, synced[0].Jerk)
		q.sweepProfile.Reset(0)
		q.sweepProfile.Target = sweep
		q.rotProfile = NewVAJ1D(synced[1].Vel, synced[1].Accel, synced[1].Jerk)
		q.rotProfile.Reset(0)
		q.rotProfile.Target = angle
	}
}

func (q *Queue) interpJoint(dt float32) (spatial.JointVector, bool) {
	out := make(spatial.JointVector, len(q.jointProfiles))
	done := true
	for i := range q.jointProfiles {
		q.jointProfiles[i].Update(dt)
		out[i] = q.jointProfiles[i].Output
		if !q.jointProfiles[i].Done() {
			done = false
		}
	}
	if done {
		q.active = false
	}
	return out, !done
}

func (q *Queue) interpLinear(dt float32) (spatial.Pose, bool) {
	q.tranProfile.Update(dt)
	q.rotProfile.Update(dt)
	var ut, ur float32
	if q.tranProfile.Target != 0 {
		ut = clampF(q.tranProfile.Output/q.tranProfile.Target, 0, 1)
	} else {
		ut = 1
	}
	if q.rotProfile.Target != 0 {
		ur = clampF(q.rotProfile.Output/q.rotProfile.Target, 0, 1)
	} else {
		ur = 1
	}
	pose := spatial.Pose{
		Tran: q.startPose.Tran.Lerp(q.curSeg.PoseEnd.Tran, ut),
		Rot:  q.startPose.Rot.Slerp(q.curSeg.PoseEnd.Rot, ur),
	}
	done := q.tranProfile.Done() && q.rotProfile.Done()
	if done {
		q.active = false
	}
	return pose, !done
}

func (q *Queue) interpCircular(dt float32) (spatial.Pose, bool) {
	q.sweepProfile.Update(dt)
	q.rotProfile.Update(dt)
	theta := q.sweepProfile.Output
	pos := q.curSeg.Center.Add(q.circleU.Scale(q.circleRadius * math32.Cos(theta))).Add(q.circleV.Scale(q.circleRadius * math32.Sin(theta)))

	var ur float32
	if q.rotProfile.Target != 0 {
		ur = clampF(q.rotProfile.Output/q.rotProfile.Target, 0, 1)
	} else {
		ur = 1
	}
	pose := spatial.Pose{Tran: pos, Rot: q.startPose.Rot.Slerp(q.curSeg.PoseEnd.Rot, ur)}
	done := q.sweepProfile.Done() && q.rotProfile.Done()
	if done {
		q.active = false
	}
	return pose, !done
}

// syncAxes derives per-axis limits that make every axis in dists/lims
// finish at the same time as the slowest one (spec.md §4.3, "whichever
// duration is longer dictates, the other is stretched"), by scaling each
// axis's jerk-limited S-curve self-similarly: v by 1/alpha, a by 1/alpha^2,
// j by 1/alpha^3 for a time dilation of alpha. If explicitTime is non-zero
// it is used as Tmax directly, uniformly overriding the profile.
func syncAxes(dists []float32, lims []Limits, explicitTime float32) []Limits {
	durations := make([]float32, len(dists))
	var tmax float32
	for i, d := range dists {
		durations[i] = estimateDuration(d, lims[i])
		if durations[i] > tmax {
			tmax = durations[i]
		}
	}
	if explicitTime > 0 {
		tmax = explicitTime
	}
	out := make([]Limits, len(dists))
	for i := range dists {
		if tmax <= 0 || durations[i] <= 0 {
			out[i] = lims[i]
			continue
		}
		alpha := tmax / durations[i]
		if alpha < 1 {
			alpha = 1
		}
		out[i] = Limits{
			Vel:   lims[i].Vel / alpha,
			Accel: lims[i].Accel / (alpha * alpha),
			Jerk:  lims[i].Jerk / (alpha * alpha * alpha),
		}
	}
	return out
}

// estimateDuration approximates the time a jerk-limited S-curve needs to
// cover dist under lim, using the trapezoidal (triangular when dist is
// short) velocity-profile closed form as a first-order estimate.
func estimateDuration(dist float32, lim Limits) float32 {
	dist = math32.Abs(dist)
	if dist < 1e-9 || lim.Vel <= 0 || lim.Accel <= 0 {
		return 0
	}
	accelDist := lim.Vel * lim.Vel / (2 * lim.Accel)
	if 2*accelDist >= dist {
		return 2 * math32.Sqrt(dist/lim.Accel)
	}
	cruiseDist := dist - 2*accelDist
	return 2*(lim.Vel/lim.Accel) + cruiseDist/lim.Vel
}

// circlePlane computes the in-plane basis (u, v) around center, the start
// radius, and the total signed sweep angle (including full turns) from
// start to end, for a World_Circular segment (spec.md §4.3).
func circlePlane(start, end, center, normal spatial.Vec3, turns int) (radius, sweep float32, u, v spatial.Vec3) {
	n := normal.Normalized()
	su := start.Sub(center)
	su = su.Sub(n.Scale(su.Dot(n)))
	radius = su.Norm()
	if radius < 1e-9 {
		return 0, 0, spatial.Vec3{}, spatial.Vec3{}
	}
	u = su.Normalized()
	v = n.Cross(u).Normalized()

	eu := end.Sub(center)
	eu = eu.Sub(n.Scale(eu.Dot(n)))
	endAngle := math32.Atan2(eu.Dot(v), eu.Dot(u))
	if endAngle < 0 {
		endAngle += 2 * math32.Pi
	}
	sweep = endAngle + float32(turns)*2*math32.Pi
	return radius, sweep, u, v
}

func (q *Queue) String() string {
	return fmt.Sprintf("Queue{mode=%v len=%d active=%v}", q.mode, q.Len(), q.active)
}
