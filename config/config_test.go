package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleIni = `
[GOMOTION]
LENGTH_UNITS_PER_M = 1.0
ANGLE_UNITS_PER_RAD = 1.0
EXT_INIT_STRING = sim

[TASK]
SHM_KEY = 101
CYCLE_TIME = 0.1
STRICT = 1
PROG_DIR = /tmp/progs

[TRAJ]
SHM_KEY = 102
CYCLE_TIME = 0.01
KINEMATICS = trivial
MAX_TVEL = 1.0
MAX_TACC = 10.0
MAX_TJERK = 100.0

[SERVO]
SHM_KEY = 103
SEM_KEY = 104
HOWMANY = 2

[SERVO_0]
QUANTITY = LENGTH
TYPE = PID
CYCLE_TIME = 0.001
P = 20
I = 5
D = 0
MIN_OUTPUT = -10
MAX_OUTPUT = 10

[SERVO_1]
QUANTITY = ANGLE
TYPE = PASS
CYCLE_TIME = 0.001
`

func writeSample(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "gomotion.ini")
	require.NoError(t, os.WriteFile(path, []byte(sampleIni), 0o644))
	return path
}

func TestLoadParsesTopLevelSections(t *testing.T) {
	path := writeSample(t)
	c, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "sim", c.Gomotion.ExtInitString)
	require.Equal(t, 101, c.Task.ShmKey)
	require.True(t, c.Task.Strict)
	require.Equal(t, "trivial", c.Traj.Kinematics)
	require.Equal(t, float32(1.0), c.Traj.MaxTVel)
}

func TestLoadCountsAndParsesServoSections(t *testing.T) {
	path := writeSample(t)
	c, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 2, c.Servo.HowMany)
	require.Len(t, c.Servo.Servos, 2)
	require.Equal(t, QuantityLength, c.Servo.Servos[0].Quantity)
	require.Equal(t, ControlPID, c.Servo.Servos[0].Control)
	require.Equal(t, float32(20), c.Servo.Servos[0].P)
	require.Equal(t, QuantityAngle, c.Servo.Servos[1].Quantity)
	require.Equal(t, ControlPass, c.Servo.Servos[1].Control)
}

func TestLoadDefaultsHowManyToSectionCount(t *testing.T) {
	ini := sampleIni[:len(sampleIni)]
	path := filepath.Join(t.TempDir(), "no-howmany.ini")
	noHowMany := ""
	for _, line := range splitLines(ini) {
		if line == "HOWMANY = 2" {
			continue
		}
		noHowMany += line + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(noHowMany), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 2, c.Servo.HowMany)
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i, r := range s {
		if r == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}
