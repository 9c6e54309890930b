// Package config loads the INI configuration file (spec.md §6,
// "Configuration (INI file)") into typed structs, grounded on
// nasa-jpl-golaborate's koanf-based service config loading convention.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/ini"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"

	"github.com/itohio/gomotion/kinematics"
	"github.com/itohio/gomotion/spatial"
)

// Gomotion is the [GOMOTION] section.
type Gomotion struct {
	LengthUnitsPerM  float64
	AngleUnitsPerRad float64
	ExtInitString    string
}

// Task is the [TASK] section.
type Task struct {
	ShmKey            int
	CycleTime         float32
	Debug             bool
	Strict            bool
	ProgDir           string
	ParameterFileName string
	ToolFileName      string
	MTTF              float32
	MTTR              float32
	TCPPort           int
}

// Traj is the [TRAJ] section.
type Traj struct {
	ShmKey     int
	CycleTime  float32
	Debug      bool
	Kinematics string

	Home          spatial.Pose
	MinLimit      spatial.Pose
	MaxLimit      spatial.Pose
	ToolTransform spatial.Pose

	MaxTVel, MaxTAcc, MaxTJerk float32
	MaxRVel, MaxRAcc, MaxRJerk float32
	MaxScale, ScaleV, ScaleA   float32
}

// ServoQuantity is the physical unit a servo's axis carries.
type ServoQuantity int

const (
	QuantityLength ServoQuantity = iota
	QuantityAngle
)

// ServoControlType selects between the PID and pass-through control modes
// (spec.md §4.2 step 5).
type ServoControlType int

const (
	ControlPID ServoControlType = iota
	ControlPass
)

// Servo is one [SERVO_n] section.
type Servo struct {
	Quantity ServoQuantity
	Control  ServoControlType

	Link kinematics.Link

	CycleTime   float32
	Home        float32
	InputScale  float32
	OutputScale float32

	P, I, D          float32
	Pff, Vff, Aff    float32
	MinOutput        float32
	MaxOutput        float32
	NegBias, PosBias float32
	Deadband         float32

	MinLimit, MaxLimit      float32
	MaxVel, MaxAcc, MaxJerk float32
	HomeVel                 float32
}

// ServoGroup is the [SERVO] section plus its HOWMANY [SERVO_n] children.
type ServoGroup struct {
	ShmKey  int
	SemKey  int
	HowMany int
	Servos  []Servo
}

// Tool is the [TOOL] section.
type Tool struct {
	ShmKey int
}

// GoLog is the [GO_LOG] section.
type GoLog struct {
	ShmKey int
}

// GoIO is the [GO_IO] section.
type GoIO struct {
	ShmKey int
}

// Config is the fully parsed INI file (spec.md §6).
type Config struct {
	Gomotion Gomotion
	Task     Task
	Traj     Traj
	Servo    ServoGroup
	Tool     Tool
	GoLog    GoLog
	GoIO     GoIO
}

// Load reads and parses the INI file at path.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), ini.Parser()); err != nil {
		return nil, fmt.Errorf("config: load %s: %w", path, err)
	}
	return fromKoanf(k)
}

func fromKoanf(k *koanf.Koanf) (*Config, error) {
	c := &Config{
		Gomotion: Gomotion{
			LengthUnitsPerM:  k.Float64("GOMOTION.LENGTH_UNITS_PER_M"),
			AngleUnitsPerRad: k.Float64("GOMOTION.ANGLE_UNITS_PER_RAD"),
			ExtInitString:    k.String("GOMOTION.EXT_INIT_STRING"),
		},
		Task: Task{
			ShmKey:            k.Int("TASK.SHM_KEY"),
			CycleTime:         float32(k.Float64("TASK.CYCLE_TIME")),
			Debug:             k.Bool("TASK.DEBUG"),
			Strict:            k.Int("TASK.STRICT") != 0,
			ProgDir:           k.String("TASK.PROG_DIR"),
			ParameterFileName: k.String("TASK.PARAMETER_FILE_NAME"),
			ToolFileName:      k.String("TASK.TOOL_FILE_NAME"),
			MTTF:              float32(k.Float64("TASK.MTTF")),
			MTTR:              float32(k.Float64("TASK.MTTR")),
			TCPPort:           k.Int("TASK.TCP_PORT"),
		},
		Tool:  Tool{ShmKey: k.Int("TOOL.SHM_KEY")},
		GoLog: GoLog{ShmKey: k.Int("GO_LOG.SHM_KEY")},
		GoIO:  GoIO{ShmKey: k.Int("GO_IO.SHM_KEY")},
	}

	home, err := pose6(k, "TRAJ.HOME")
	if err != nil {
		return nil, err
	}
	minl, err := pose6(k, "TRAJ.MIN_LIMIT")
	if err != nil {
		return nil, err
	}
	maxl, err := pose6(k, "TRAJ.MAX_LIMIT")
	if err != nil {
		return nil, err
	}
	tool, err := pose6(k, "TRAJ.TOOL_TRANSFORM")
	if err != nil {
		return nil, err
	}

	c.Traj = Traj{
		ShmKey:        k.Int("TRAJ.SHM_KEY"),
		CycleTime:     float32(k.Float64("TRAJ.CYCLE_TIME")),
		Debug:         k.Bool("TRAJ.DEBUG"),
		Kinematics:    k.String("TRAJ.KINEMATICS"),
		Home:          home,
		MinLimit:      minl,
		MaxLimit:      maxl,
		ToolTransform: tool,
		MaxTVel:       float32(k.Float64("TRAJ.MAX_TVEL")),
		MaxTAcc:       float32(k.Float64("TRAJ.MAX_TACC")),
		MaxTJerk:      float32(k.Float64("TRAJ.MAX_TJERK")),
		MaxRVel:       float32(k.Float64("TRAJ.MAX_RVEL")),
		MaxRAcc:       float32(k.Float64("TRAJ.MAX_RACC")),
		MaxRJerk:      float32(k.Float64("TRAJ.MAX_RJERK")),
		MaxScale:      float32(k.Float64("TRAJ.MAX_SCALE")),
		ScaleV:        float32(k.Float64("TRAJ.SCALE_V")),
		ScaleA:        float32(k.Float64("TRAJ.SCALE_A")),
	}

	howMany := k.Int("SERVO.HOWMANY")
	if howMany == 0 {
		howMany = countServoSections(k)
	}
	c.Servo = ServoGroup{
		ShmKey:  k.Int("SERVO.SHM_KEY"),
		SemKey:  k.Int("SERVO.SEM_KEY"),
		HowMany: howMany,
	}
	for i := 0; i < howMany; i++ {
		s, err := servoFromKoanf(k, fmt.Sprintf("SERVO_%d", i))
		if err != nil {
			return nil, err
		}
		c.Servo.Servos = append(c.Servo.Servos, s)
	}

	return c, nil
}

func servoFromKoanf(k *koanf.Koanf, section string) (Servo, error) {
	s := Servo{
		CycleTime:   float32(k.Float64(section + ".CYCLE_TIME")),
		Home:        float32(k.Float64(section + ".HOME")),
		InputScale:  float32(k.Float64(section + ".INPUT_SCALE")),
		OutputScale: float32(k.Float64(section + ".OUTPUT_SCALE")),
		P:           float32(k.Float64(section + ".P")),
		I:           float32(k.Float64(section + ".I")),
		D:           float32(k.Float64(section + ".D")),
		Pff:         float32(k.Float64(section + ".PFF")),
		Vff:         float32(k.Float64(section + ".VFF")),
		Aff:         float32(k.Float64(section + ".AFF")),
		MinOutput:   float32(k.Float64(section + ".MIN_OUTPUT")),
		MaxOutput:   float32(k.Float64(section + ".MAX_OUTPUT")),
		NegBias:     float32(k.Float64(section + ".NEG_BIAS")),
		PosBias:     float32(k.Float64(section + ".POS_BIAS")),
		Deadband:    float32(k.Float64(section + ".DEADBAND")),
		MinLimit:    float32(k.Float64(section + ".MIN_LIMIT")),
		MaxLimit:    float32(k.Float64(section + ".MAX_LIMIT")),
		MaxVel:      float32(k.Float64(section + ".MAX_VEL")),
		MaxAcc:      float32(k.Float64(section + ".MAX_ACC")),
		MaxJerk:     float32(k.Float64(section + ".MAX_JERK")),
		HomeVel:     float32(k.Float64(section + ".HOME_VEL")),
	}

	switch strings.ToUpper(k.String(section + ".QUANTITY")) {
	case "ANGLE":
		s.Quantity = QuantityAngle
	default:
		s.Quantity = QuantityLength
	}
	switch strings.ToUpper(k.String(section + ".TYPE")) {
	case "PASS":
		s.Control = ControlPass
	default:
		s.Control = ControlPID
	}

	if dh := k.String(section + ".DH_PARAMETERS"); dh != "" {
		vals, err := floats(dh, 4)
		if err != nil {
			return Servo{}, fmt.Errorf("config: %s.DH_PARAMETERS: %w", section, err)
		}
		s.Link.Kind = kinematics.LinkDH
		s.Link.DH = kinematics.DHParams{A: vals[0], Alpha: vals[1], D: vals[2], Theta: vals[3]}
	}
	s.Link.MinLimit = s.MinLimit
	s.Link.MaxLimit = s.MaxLimit
	if s.Quantity == QuantityAngle {
		s.Link.Type = spatial.Angular
	} else {
		s.Link.Type = spatial.Linear
	}

	return s, nil
}

func pose6(k *koanf.Koanf, key string) (spatial.Pose, error) {
	raw := k.String(key)
	if raw == "" {
		return spatial.Identity, nil
	}
	vals, err := floats(raw, 6)
	if err != nil {
		return spatial.Pose{}, fmt.Errorf("config: %s: %w", key, err)
	}
	roll := spatial.FromAxisAngle(spatial.Vec3{X: 1}, vals[3])
	pitch := spatial.FromAxisAngle(spatial.Vec3{Y: 1}, vals[4])
	yaw := spatial.FromAxisAngle(spatial.Vec3{Z: 1}, vals[5])
	return spatial.Pose{
		Tran: spatial.Vec3{X: vals[0], Y: vals[1], Z: vals[2]},
		Rot:  yaw.Product(pitch).Product(roll),
	}, nil
}

func floats(raw string, n int) ([]float32, error) {
	fields := strings.Fields(raw)
	if len(fields) != n {
		return nil, fmt.Errorf("expected %d values, got %d", n, len(fields))
	}
	out := make([]float32, n)
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return nil, err
		}
		out[i] = float32(v)
	}
	return out, nil
}

func countServoSections(k *koanf.Koanf) int {
	seen := map[int]bool{}
	for key := range k.All() {
		if !strings.HasPrefix(key, "SERVO_") {
			continue
		}
		rest := strings.TrimPrefix(key, "SERVO_")
		idx := strings.IndexByte(rest, '.')
		if idx < 0 {
			continue
		}
		if n, err := strconv.Atoi(rest[:idx]); err == nil {
			seen[n] = true
		}
	}
	highest := -1
	for n := range seen {
		if n > highest {
			highest = n
		}
	}
	return highest + 1
}
