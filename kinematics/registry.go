package kinematics

import (
	"fmt"
	"sort"
	"sync"

	"github.com/chewxy/math32"
	"github.com/itohio/gomotion/spatial"
)

type dhRow struct{ a, alpha, d float32 }

// fanucKinNumJoints is the Fanuc family's joint count. The original
// `fanuc_kin_get_parameters` wrote into params[6] before checking its `num`
// argument against a hard-coded 6 (spec.md §9 open question 2, a
// gantry-joint off-by-one risk); fanucPreset.SetParameters below validates against this
// named constant instead of a literal.
const fanucKinNumJoints = 6

// Factory builds a fresh Model instance for a registered plug-in name.
type Factory func() Model

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{
		"trivial":           func() Model { return NewTrivial() },
		"serial":            func() Model { return NewSerial("serial", defaultSerialLinks(6)) },
		"hexapod":           func() Model { return NewHexapod(defaultHexapodLegs()) },
		"puma":              func() Model { return NewSerial("puma", pumaLinks()) },
		"scara":             func() Model { return NewSerial("scara", scaraLinks()) },
		"fanuc":             func() Model { return newFanucPreset("fanuc", fanucLinks()) },
		"fanuc_lrmate200id": func() Model { return newFanucPreset("fanuc_lrmate200id", fanucLRMate200idLinks()) },
		"three21":           func() Model { return NewSerial("three21", three21Links()) },
		"tripoint":          func() Model { return NewHexapod(defaultTripointLegs()) },
		"roboch":            func() Model { return NewSerial("roboch", robochLinks()) },
		"spherist":          func() Model { return NewSpherist(spheristLinks()) },
	}
)

// Register adds or replaces a named plug-in factory. Exported so a caller
// (e.g. a test, or a site-specific build) can register additional
// kinematics variants beyond the built-in catalog without modifying this
// package, matching the "named plug-in" openness of spec.md §6.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// Select instantiates the plug-in registered under name (an exact string
// match on the `KINEMATICS` config key, spec.md §6).
func Select(name string) (Model, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", ErrNotFound, name, Names())
	}
	return f(), nil
}

// Names lists every registered plug-in name, sorted for deterministic
// error messages and CLI help text.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// fanucPreset wraps Serial to additionally guard SetParameters against the
// original off-by-one (spec.md §9 open question 2); GetParameters is
// Serial's unchanged.
type fanucPreset struct {
	*Serial
}

func newFanucPreset(name string, links []Link) Model {
	return &fanucPreset{Serial: NewSerial(name, links)}
}

func (f *fanucPreset) SetParameters(links []Link) error {
	if len(links) < fanucKinNumJoints {
		return fmt.Errorf("%w: fanuc family requires at least %d links, got %d", ErrInvalidParameters, fanucKinNumJoints, len(links))
	}
	return f.Serial.SetParameters(links)
}

func defaultSerialLinks(n int) []Link {
	links := make([]Link, n)
	for i := range links {
		links[i] = Link{Kind: LinkDH, Type: spatial.Angular, DH: DHParams{A: 0.1, Alpha: 0, D: 0}, MinLimit: -3.1416, MaxLimit: 3.1416}
	}
	return links
}

// pumaLinks gives the canonical 6-revolute-joint PUMA-560-family DH table
// (link lengths in meters, a placeholder geometry consistent with the
// classic PUMA parameterization: alternating alpha of +-pi/2).
func pumaLinks() []Link {
	table := []dhRow{
		{0, -1.5708, 0},
		{0.4318, 0, 0},
		{0.0203, -1.5708, 0.15},
		{0, 1.5708, 0.4318},
		{0, -1.5708, 0},
		{0, 0, 0},
	}
	return dhTable(table, 3.1416)
}

// scaraLinks gives a 4-joint SCARA table: two revolute shoulder/elbow
// joints, a prismatic vertical joint, and a revolute wrist-twist joint.
func scaraLinks() []Link {
	return []Link{
		{Kind: LinkDH, Type: spatial.Angular, DH: DHParams{A: 0.3, Alpha: 0}, MinLimit: -2.8, MaxLimit: 2.8},
		{Kind: LinkDH, Type: spatial.Angular, DH: DHParams{A: 0.25, Alpha: 3.1416}, MinLimit: -2.8, MaxLimit: 2.8},
		{Kind: LinkDH, Type: spatial.Linear, DH: DHParams{A: 0}, MinLimit: -0.2, MaxLimit: 0},
		{Kind: LinkDH, Type: spatial.Angular, DH: DHParams{A: 0}, MinLimit: -6.28, MaxLimit: 6.28},
	}
}

func fanucLinks() []Link {
	table := []dhRow{
		{0.15, -1.5708, 0.45},
		{0.6, 0, 0},
		{0.2, -1.5708, 0},
		{0, 1.5708, 0.64},
		{0, -1.5708, 0},
		{0, 0, 0.1},
	}
	return dhTable(table, 3.0)
}

func fanucLRMate200idLinks() []Link {
	// Scaled-down geometry matching the LR Mate 200iD's smaller reach.
	table := []dhRow{
		{0.05, -1.5708, 0.33},
		{0.33, 0, 0},
		{0.035, -1.5708, 0},
		{0, 1.5708, 0.335},
		{0, -1.5708, 0},
		{0, 0, 0.08},
	}
	return dhTable(table, 3.0)
}

func three21Links() []Link {
	table := []dhRow{
		{0, -1.5708, 0.3},
		{0.25, 0, 0},
		{0, -1.5708, 0},
	}
	return dhTable(table, 2.5)
}

func robochLinks() []Link {
	table := []dhRow{
		{0, -1.5708, 0.2},
		{0.22, 0, 0},
		{0.02, -1.5708, 0},
		{0, 1.5708, 0.22},
		{0, -1.5708, 0},
		{0, 0, 0.05},
	}
	return dhTable(table, 3.1)
}

func spheristLinks() []Link {
	table := []dhRow{
		{0, -1.5708, 0.4},
		{0.3, 0, 0},
		{0, -1.5708, 0},
		{0, 1.5708, 0.3},
		{0, -1.5708, 0},
		{0, 0, 0.1},
	}
	return dhTable(table, 3.1416)
}

func dhTable(table []dhRow, limit float32) []Link {
	links := make([]Link, len(table))
	for i, e := range table {
		links[i] = Link{Kind: LinkDH, Type: spatial.Angular, DH: DHParams{A: e.a, Alpha: e.alpha, D: e.d}, MinLimit: -limit, MaxLimit: limit}
	}
	return links
}

func defaultHexapodLegs() []ParallelPointParams {
	return regularHexapodLegs(0.5, 0.3, 0.4)
}

func defaultTripointLegs() []ParallelPointParams {
	// Tripoint is a 3-leg parallel mechanism; represented here as the
	// first 3 legs of a hexapod base/platform pair so it shares Hexapod's
	// closed-form-inverse/iterative-forward machinery (spec.md §3,
	// "parallel-kinematics point pair" covers any leg count uniformly).
	return regularHexapodLegs(0.5, 0.3, 0.4)[:3]
}

// regularHexapodLegs lays out baseRadius/platformRadius circles of leg
// attachment points at height, a standard symmetric Stewart-platform
// starting geometry.
func regularHexapodLegs(baseRadius, platformRadius, height float32) []ParallelPointParams {
	const n = 6
	legs := make([]ParallelPointParams, n)
	for i := 0; i < n; i++ {
		angle := float32(i) * (2 * 3.14159265 / n)
		base := spatial.Vec3{X: baseRadius * math32.Cos(angle), Y: baseRadius * math32.Sin(angle), Z: 0}
		platform := spatial.Vec3{X: platformRadius * math32.Cos(angle), Y: platformRadius * math32.Sin(angle), Z: height}
		legs[i] = ParallelPointParams{Base: base, Platform: platform}
	}
	return legs
}
