package motion

import (
	"github.com/chewxy/math32"
)

// VAJ1D is a single-axis jerk-limited S-curve profile generator: given a
// target and per-axis (v, a, j) limits it produces a smooth Output each
// Update(dt), accelerating, cruising and decelerating so the axis arrives at
// Target with zero velocity and acceleration. A bang-bang-jerk profile,
// generalized so Target can be re-set mid-flight (spec.md §4.3, "an explicit
// time override scales the underlying profile uniformly" and per-axis
// stretching both reuse this as the base single-axis primitive).
type VAJ1D struct {
	maxV, maxA, maxJ    float32
	v1max, v2max, vamax float32

	Velocity, Acceleration float32
	j0                     float32
	Input, Output, Target  float32
}

// NewVAJ1D creates a profile limited to maxVelocity, maxAcceleration and
// jerk (all non-negative magnitudes).
func NewVAJ1D(maxVelocity, maxAcceleration, jerk float32) VAJ1D {
	var vamax float32
	if jerk > 0 {
		vamax = (maxAcceleration * maxAcceleration) / (jerk * 2)
	}
	v1max := maxVelocity / 2
	v2max := maxVelocity / 2
	if v1max > vamax {
		v1max = vamax
	}
	if v2max < maxVelocity-vamax {
		v2max = maxVelocity - vamax
	}
	return VAJ1D{
		maxV:  maxVelocity,
		maxA:  maxAcceleration,
		maxJ:  jerk,
		v1max: v1max,
		v2max: v2max,
		vamax: vamax,
	}
}

// Reset zeroes velocity/acceleration/jerk state and makes Output track Input
// immediately (used on a fresh segment or after `set_here`).
func (l *VAJ1D) Reset(at float32) *VAJ1D {
	l.Input = at
	l.Output = at
	l.Target = at
	l.Velocity = 0
	l.Acceleration = 0
	l.j0 = 0
	return l
}

// Done reports whether the profile has settled at Target.
func (l *VAJ1D) Done() bool {
	return math32.Abs(l.Target-l.Output) < 1e-4 && math32.Abs(l.Velocity) < 1e-4
}

// Update advances the profile by samplePeriod, moving Output toward Target.
func (l *VAJ1D) Update(samplePeriod float32) *VAJ1D {
	defer func() {
		l.Input = l.Output
	}()

	x1 := l.Target - l.Input
	var c float32 = 1
	if x1 < 0 {
		x1 = -x1
		c = -1
	}

	if x1 < .001 && math32.Abs(l.Velocity) < 1e-4 {
		l.Output = l.Input
		l.j0 = 0
		l.Velocity = 0
		l.Acceleration = 0
		return l
	}

	x0 := l.calculateKinematics(samplePeriod, x1)
	l.Output = l.Input + x0*c

	return l
}

func (l *VAJ1D) calculateKinematics(samplePeriod, x1 float32) float32 {
	dt := samplePeriod
	v0 := l.Velocity
	a0 := l.Acceleration

	x0, v0, a0, jC := l.calculateJerk(dt, x1, v0, a0, l.j0)

	stopAt := l.calculateStoppingDistance(v0, a0)

	if stopAt <= x1 {
		if math32.Abs(v0) >= l.maxV-l.maxA*dt-0.5*l.maxJ*dt*dt-0.001 {
			a0 = 0
			jC = 0
			v0 = l.maxV
		}
	} else if jC == 0 || (a0 < l.maxA && a0 >= 0) {
		jC = -1
	}

	x0 += (v0 + (0.5*a0*dt+(1.0/6.0)*l.j0*dt)*dt) * dt
	l.Velocity += (a0 + .5*l.j0*dt) * dt
	a0 += l.j0 * dt
	l.Acceleration = clampF(a0, -l.maxA, l.maxA)
	l.j0 = jC * l.maxJ

	return x0
}

func (l *VAJ1D) calculateJerk(dt, x1, v0, a0, j0 float32) (float32, float32, float32, float32) {
	var x0, jC float32
	v0x := v0 + a0*dt + .5*j0*dt*dt
	switch {
	case v0x >= 0 && v0x <= l.v1max:
		if j0 == -l.maxJ {
			_, t := quad(.5*j0, a0, v0-l.v1max, 1e-6)
			if t <= 2*dt {
				x0 = (v0 + (0.5*a0+(1.0/6.0)*j0*t)*t) * t
				v0 += (a0 + .5*j0*t) * t
				a0 += j0 * t
			}
		}
		jC = 1
	case v0x < l.maxV && v0x > l.v2max:
		if j0 == l.maxJ {
			t, _ := quad(.5*j0, a0, v0-l.v2max, 1e-6)
			x0 = (v0 + (0.5*a0+(1.0/6.0)*j0*t)*t) * t
			v0 += (a0 + .5*j0*t) * t
			a0 += j0 * t
		}
		jC = -1
	default:
		jC = 0
	}
	return x0, v0, a0, jC
}

func (l *VAJ1D) calculateStoppingDistance(v0, a0 float32) float32 {
	var (
		s, s1, s2, s3 float32
		v1m, v2m      float32
		v1, v2, a1    float32
	)

	if a0 > 0 {
		t := a0 / l.maxJ
		jt := .5 * l.maxJ * t
		s = (v0 + (.5*a0-(1.0/3.0)*jt)*t) * t
		v0 += (a0 - jt) * t
		a0 = 0
	}

	if a0 == 0 {
		v1m = math32.Min(v0/2, l.vamax)
		v2m = math32.Max(v0/2, v0-l.vamax)
	} else {
		v1m = l.v1max
		v2m = l.v2max
	}

	if v0 > v2m {
		_, t := quad(-.5*l.maxJ, a0, v0-v2m, 1e-6)
		v2 = v2m
		v1 = v2m
		s1 = (v0 + (0.5*a0-(1.0/6.0)*l.maxJ*t)*t) * t
		a1 = a0 - l.maxJ*t
	} else {
		v1 = v0
		v2 = v0
		a1 = a0
	}

	if v1 <= v2m && v1 > v1m && a1 != 0 {
		t := (v1 - v1m) / (-a1)
		v2 = v1m
		s2 = (v1 + .5*a1*t) * t
	}

	if v2 > 0 {
		t, _ := quad(.5*l.maxJ, a1, v2, 1e-6)
		s3 = (v2 + (.5*a1+(1.0/6.0)*l.maxJ*t)*t) * t
	}

	return s + s1 + s2 + s3
}

// clampF clamps a to [min, max].
func clampF(a, min, max float32) float32 {
	switch {
	case a > max:
		return max
	case a < min:
		return min
	default:
		return a
	}
}

// quad solves a*x^2 + b*x + c == 0 for its two roots, ported from the
// teacher's `pkg/core/math.Quad`.
func quad(a, b, c, eps float32) (float32, float32) {
	if a == 0 {
		if b == 0 {
			return 0, 0
		}
		return -c / b, -c / b
	}
	if b == 0 {
		t := -c / a
		if t <= 0 {
			return 0, 0
		}
		t = math32.Sqrt(t)
		return t, t
	}
	r := -b
	z := b*b - 4*a*c
	if z < eps {
		z = 0
	} else if z < 0 {
		return 0, 0
	}
	z = math32.Sqrt(z)
	return (r + z) / (2 * a), (r - z) / (2 * a)
}
