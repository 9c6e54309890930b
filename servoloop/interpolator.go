package servoloop

// InterpKind selects the curve the Interpolator uses to subdivide a
// traj-rate setpoint into servo-rate steps (spec.md §4.2 step 4).
type InterpKind int

const (
	InterpLinear InterpKind = iota
	InterpCubic
	InterpQuintic
)

// Interpolator walks its internal parameter s from 0 to 1 over CycleMult
// servo ticks, producing a smooth subdivision of a single traj-rate
// setpoint update. Linear is the canonical build's default; cubic/quintic
// are smootherstep-style eased variants for when acceleration/jerk
// continuity at the endpoints matters more than simplicity.
type Interpolator struct {
	Kind      InterpKind
	CycleMult int

	start, end float32
	s          float32
	step       float32
}

// NewInterpolator creates an interpolator that subdivides each setpoint
// update into cycleMult servo steps.
func NewInterpolator(kind InterpKind, cycleMult int) Interpolator {
	if cycleMult < 1 {
		cycleMult = 1
	}
	return Interpolator{Kind: kind, CycleMult: cycleMult, step: 1 / float32(cycleMult)}
}

// SetTarget is called on entry of each new command (spec.md §4.2 step 4):
// the endpoint is updated and s resets to 0, starting a fresh subdivision
// from the interpolator's current value.
func (in *Interpolator) SetTarget(current, target float32) {
	in.start = current
	in.end = target
	in.s = 0
}

// Value advances s by 1/CycleMult and returns the eased setpoint for this
// tick. Calling Value past completion keeps returning end.
func (in *Interpolator) Value() float32 {
	if in.s < 1 {
		in.s += in.step
		if in.s > 1 {
			in.s = 1
		}
	}
	return in.start + (in.end-in.start)*ease(in.Kind, in.s)
}

// Done reports whether s has reached its endpoint.
func (in *Interpolator) Done() bool { return in.s >= 1 }

func ease(kind InterpKind, s float32) float32 {
	switch kind {
	case InterpCubic:
		return s * s * (3 - 2*s)
	case InterpQuintic:
		return s * s * s * (s*(s*6-15)+10)
	default:
		return s
	}
}

// accelFilter is a simple acceleration-limited velocity ramp: each call
// moves cur toward target by at most accel*dt. Nothing calls it; the
// TeleopJoint/TeleopWorld commands in trajloop apply their velocities
// without an acceleration filter.
func accelFilter(cur, target, accel, dt float32) float32 {
	delta := target - cur
	maxStep := accel * dt
	if delta > maxStep {
		delta = maxStep
	} else if delta < -maxStep {
		delta = -maxStep
	}
	return cur + delta
}
