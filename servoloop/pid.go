// Package servoloop implements the per-joint servo control loop (spec.md
// §4.2): command state machine, setpoint interpolation and PID/pass-through
// control against an extio.Adapter, clocked by the shared cmd/cfg/stat/set
// shm.Endpoint.
package servoloop

func clampF(a, min, max float32) float32 {
	if a < min {
		return min
	}
	if a > max {
		return max
	}
	return a
}

// PID is a scalar incremental PID controller extended with feed-forward and
// output shaping for the servo velocity loop (spec.md §4.2 step 5), adding
// feed-forward gains (Pff/Vff/Aff, applied
// to the setpoint's own finite-differenced value/velocity/acceleration,
// not the error), asymmetric output biases, a symmetric dead-band and
// anti-windup by inhibition instead of plain clamping.
type PID struct {
	P, I, D          float32
	Pff, Vff, Aff    float32
	PosBias, NegBias float32
	Deadband         float32
	Min, Max         float32

	input, lastInput   float32
	target, lastTarget float32
	lastTargetVel      float32
	iTerm              float32
	Output             float32
	Target             float32
}

// Reset primes the filter state from the current input and target so the
// first Update after a command change does not see a spurious derivative
// spike.
func (p *PID) Reset(input float32) *PID {
	p.input = input
	p.lastInput = input
	p.target = p.Target
	p.lastTarget = p.Target
	p.lastTargetVel = 0
	p.iTerm = 0
	return p
}

// Update advances the controller by one cycle given a fresh measured input
// and the controller's own Target (set by the caller before calling
// Update). Positive/negative output biases are added after clamping to the
// raw PID range, and the dead-band is applied to the error before any
// other term is computed.
func (p *PID) Update(input, samplePeriod float32) *PID {
	p.lastInput, p.input = p.input, input
	p.lastTarget, p.target = p.target, p.Target

	e := p.target - p.input
	if e > -p.Deadband && e < p.Deadband {
		e = 0
	}

	targetVel := (p.target - p.lastTarget) / samplePeriod
	targetAccel := (targetVel - p.lastTargetVel) / samplePeriod
	p.lastTargetVel = targetVel

	d := (p.input - p.lastInput) / samplePeriod
	raw := p.P*e - p.D*d + p.Pff*p.target + p.Vff*targetVel + p.Aff*targetAccel

	candidateI := p.iTerm + p.I*e*samplePeriod
	saturated := raw+candidateI > p.Max || raw+candidateI < p.Min
	if !saturated {
		p.iTerm = candidateI
	}

	out := clampF(raw+p.iTerm, p.Min, p.Max)
	if out > 0 {
		out += p.PosBias
	} else if out < 0 {
		out -= p.NegBias
	}
	p.Output = out
	return p
}
