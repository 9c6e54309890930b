package spatial

import "github.com/chewxy/math32"

// JointType is the semantic type of a joint, supplied per-link by the active
// kinematics model (spec.md §3, "Joint vector").
type JointType int

const (
	Linear JointType = iota
	Angular
)

// JointVector is an ordered sequence of up to N real-valued joints.
type JointVector []float32

// Clone returns a copy of v.
func (v JointVector) Clone() JointVector {
	out := make(JointVector, len(v))
	copy(out, v)
	return out
}

// Sub returns v - o elementwise; panics if o is shorter than v.
func (v JointVector) Sub(o JointVector) JointVector {
	out := make(JointVector, len(v))
	for i := range v {
		out[i] = v[i] - o[i]
	}
	return out
}

// Within reports whether v lies within [min, max] elementwise, considering
// only the first len(v) entries of min/max.
func (v JointVector) Within(min, max JointVector) bool {
	for i := range v {
		if v[i] < min[i] || v[i] > max[i] {
			return false
		}
	}
	return true
}

// Clamp returns v clamped elementwise into [min, max].
func (v JointVector) Clamp(min, max JointVector) JointVector {
	out := make(JointVector, len(v))
	for i := range v {
		out[i] = ClampF(v[i], min[i], max[i])
	}
	return out
}

// ShiftToNearestRevolution applies the nearest-revolution rule (spec.md §3,
// §8 invariant 8): for each angular joint whose new setpoint differs from
// the previous command by more than pi, shift it by a multiple of 2*pi
// toward prev so that |new - prev| <= pi.
func ShiftToNearestRevolution(next, prev JointVector, types []JointType) JointVector {
	out := next.Clone()
	for i := range out {
		if i >= len(types) || types[i] != Angular {
			continue
		}
		for out[i]-prev[i] > math32.Pi {
			out[i] -= 2 * math32.Pi
		}
		for out[i]-prev[i] < -math32.Pi {
			out[i] += 2 * math32.Pi
		}
	}
	return out
}
