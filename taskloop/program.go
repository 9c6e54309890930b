package taskloop

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/itohio/gomotion/spatial"
)

// ProgramSource drains one program into interp-list records (spec.md §4.6,
// "Start command dispatch"). Poll is called repeatedly within one task cycle
// until the interp list is full or a call yields no record, and it must
// never block: an `.ngc`/`.nc` program yields records directly; an
// external process yields none and is polled for completion only.
type ProgramSource interface {
	// Poll advances the program by one step. haveRec reports whether rec is
	// valid; done reports the program has finished (rec is never valid when
	// done). A non-nil err always implies done.
	Poll() (rec InterpRecord, haveRec bool, done bool, err error)
	Close() error
}

// OpenProgram selects the NC line interpreter for `.ngc`/`.nc` paths and an
// external-process runner otherwise (spec.md §4.6, "Start command
// dispatch").
func OpenProgram(path string) (ProgramSource, error) {
	if strings.HasSuffix(path, ".ngc") || strings.HasSuffix(path, ".nc") {
		return newNCProgram(path)
	}
	return newExternalProgram(path)
}

// ncProgram is a trivial line-oriented NC-ish interpreter: one canonical
// call per line, commented lines start with ';' or '('.
type ncProgram struct {
	f       *os.File
	scanner *bufio.Scanner
}

func newNCProgram(path string) (*ncProgram, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &ncProgram{f: f, scanner: bufio.NewScanner(f)}, nil
}

func (p *ncProgram) Poll() (InterpRecord, bool, bool, error) {
	for p.scanner.Scan() {
		line := strings.TrimSpace(p.scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "(") {
			continue
		}
		rec, err := interpretLine(line)
		if err != nil {
			return InterpRecord{}, false, true, err
		}
		return rec, true, false, nil
	}
	if err := p.scanner.Err(); err != nil {
		return InterpRecord{}, false, true, err
	}
	return InterpRecord{}, false, true, nil
}

func (p *ncProgram) Close() error { return p.f.Close() }

func interpretLine(line string) (InterpRecord, error) {
	fields := strings.Fields(line)
	switch strings.ToUpper(fields[0]) {
	case "MOVE":
		vals, err := parseFloats(fields[1:])
		if err != nil {
			return InterpRecord{}, fmt.Errorf("taskloop: MOVE: %w", err)
		}
		if len(vals) != 3 && len(vals) != 6 {
			return InterpRecord{}, fmt.Errorf("taskloop: MOVE needs 3 or 6 values, got %d", len(vals))
		}
		pose := spatial.Pose{Tran: spatial.Vec3{X: vals[0], Y: vals[1], Z: vals[2]}, Rot: spatial.IdentityQuaternion}
		if len(vals) == 6 {
			pose.Rot = spatial.FromAxisAngle(spatial.Vec3{Z: 1}, vals[5]).
				Product(spatial.FromAxisAngle(spatial.Vec3{Y: 1}, vals[4])).
				Product(spatial.FromAxisAngle(spatial.Vec3{X: 1}, vals[3]))
		}
		return InterpRecord{Kind: RecordMoveWorld, PoseEnd: pose}, nil
	case "JOINT":
		vals, err := parseFloats(fields[1:])
		if err != nil {
			return InterpRecord{}, fmt.Errorf("taskloop: JOINT: %w", err)
		}
		return InterpRecord{Kind: RecordMoveJoint, JointEnd: spatial.JointVector(vals)}, nil
	case "TOOL":
		if len(fields) != 3 {
			return InterpRecord{}, fmt.Errorf("taskloop: TOOL needs an id and on|off")
		}
		id, err := strconv.Atoi(fields[1])
		if err != nil {
			return InterpRecord{}, fmt.Errorf("taskloop: TOOL id: %w", err)
		}
		switch strings.ToLower(fields[2]) {
		case "on":
			return InterpRecord{Kind: RecordToolOn, ToolID: id, ToolValue: 1}, nil
		case "off":
			return InterpRecord{Kind: RecordToolOff, ToolID: id}, nil
		default:
			return InterpRecord{}, fmt.Errorf("taskloop: TOOL state must be on|off, got %q", fields[2])
		}
	case "DELAY":
		if len(fields) != 2 {
			return InterpRecord{}, fmt.Errorf("taskloop: DELAY needs one argument")
		}
		v, err := strconv.ParseFloat(fields[1], 32)
		if err != nil {
			return InterpRecord{}, fmt.Errorf("taskloop: DELAY: %w", err)
		}
		return InterpRecord{Kind: RecordDelay, DelaySeconds: float32(v)}, nil
	case "WAIT":
		if len(fields) != 2 {
			return InterpRecord{}, fmt.Errorf("taskloop: WAIT needs motion|tool")
		}
		switch strings.ToLower(fields[1]) {
		case "motion":
			return InterpRecord{Kind: RecordWaitMotion}, nil
		case "tool":
			return InterpRecord{Kind: RecordWaitTool}, nil
		default:
			return InterpRecord{}, fmt.Errorf("taskloop: unknown WAIT target %q", fields[1])
		}
	default:
		return InterpRecord{}, fmt.Errorf("taskloop: unknown program command %q", fields[0])
	}
}

func parseFloats(fields []string) ([]float32, error) {
	out := make([]float32, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return nil, err
		}
		out[i] = float32(v)
	}
	return out, nil
}

// externalProgram spawns a non-`.ngc` program as a child process and polls
// its completion without blocking the task cycle (spec.md §4.6, "Otherwise
// the program is spawned as an external process").
type externalProgram struct {
	cmd  *exec.Cmd
	done chan error
}

func newExternalProgram(path string) (*externalProgram, error) {
	cmd := exec.Command(path)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	p := &externalProgram{cmd: cmd, done: make(chan error, 1)}
	go func() { p.done <- p.cmd.Wait() }()
	return p, nil
}

func (p *externalProgram) Poll() (InterpRecord, bool, bool, error) {
	select {
	case err := <-p.done:
		return InterpRecord{}, false, true, err
	default:
		return InterpRecord{}, false, false, nil
	}
}

func (p *externalProgram) Close() error {
	if p.cmd.ProcessState == nil && p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	return nil
}
