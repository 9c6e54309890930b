package extio

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tarm/serial"
)

// SerialSmartMotor talks to a line-oriented "Smart Motor" style joint
// controller over an RS-232/RS-485 link (spec.md §4.7, "a serial Smart
// Motor" backend). Every public method is a single request/response
// exchange guarded by a mutex, the same pattern nasa-jpl-golaborate's
// RemoteDevice uses for its instrument drivers, simplified to the one
// transport this adapter needs and mapped onto Result instead of a raw
// error so a stalled or disconnected link degrades the control loop
// instead of blocking it.
type SerialSmartMotor struct {
	mu      sync.Mutex
	port    *serial.Port
	reader  *bufio.Reader
	timeout time.Duration
}

// NewSerialSmartMotor opens the named serial port at the given baud rate.
// The port is not probed further; Init performs the controller handshake.
func NewSerialSmartMotor(name string, baud int, timeout time.Duration) (*SerialSmartMotor, error) {
	cfg := &serial.Config{Name: name, Baud: baud, ReadTimeout: timeout}
	port, err := serial.OpenPort(cfg)
	if err != nil {
		return nil, fmt.Errorf("extio: open %s: %w", name, err)
	}
	return &SerialSmartMotor{port: port, reader: bufio.NewReader(port), timeout: timeout}, nil
}

func (s *SerialSmartMotor) sendRecv(line string) (string, Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return "", ResultError
	}
	if _, err := s.port.Write([]byte(line + "\r")); err != nil {
		return "", ResultError
	}
	reply, err := s.reader.ReadString('\r')
	if err != nil {
		return "", ResultError
	}
	return strings.TrimSpace(reply), ResultOK
}

func (s *SerialSmartMotor) Init() Result {
	_, res := s.sendRecv("INIT")
	return res
}

func (s *SerialSmartMotor) Quit() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return ResultOK
	}
	err := s.port.Close()
	s.port = nil
	if err != nil {
		return ResultError
	}
	return ResultOK
}

func (s *SerialSmartMotor) JointInit(joint int) Result {
	_, res := s.sendRecv(fmt.Sprintf("J%d INIT", joint))
	return res
}

func (s *SerialSmartMotor) JointEnable(joint int) Result {
	_, res := s.sendRecv(fmt.Sprintf("J%d ON", joint))
	return res
}

func (s *SerialSmartMotor) JointDisable(joint int) Result {
	_, res := s.sendRecv(fmt.Sprintf("J%d OFF", joint))
	return res
}

func (s *SerialSmartMotor) JointQuit(joint int) Result {
	_, res := s.sendRecv(fmt.Sprintf("J%d QUIT", joint))
	return res
}

func (s *SerialSmartMotor) ReadPos(joint int) (float32, Result) {
	reply, res := s.sendRecv(fmt.Sprintf("J%d POS?", joint))
	if res != ResultOK {
		return 0, res
	}
	v, err := strconv.ParseFloat(reply, 32)
	if err != nil {
		return 0, ResultError
	}
	return float32(v), ResultOK
}

func (s *SerialSmartMotor) WritePos(joint int, pos float32) Result {
	_, res := s.sendRecv(fmt.Sprintf("J%d POS %g", joint, pos))
	return res
}

func (s *SerialSmartMotor) WriteVel(joint int, vel float32) Result {
	_, res := s.sendRecv(fmt.Sprintf("J%d VEL %g", joint, vel))
	return res
}

func (s *SerialSmartMotor) JointHome(joint int) Result {
	_, res := s.sendRecv(fmt.Sprintf("J%d HOME", joint))
	return res
}

func (s *SerialSmartMotor) IsHome(joint int) (bool, Result) {
	reply, res := s.sendRecv(fmt.Sprintf("J%d HOME?", joint))
	if res != ResultOK {
		return false, res
	}
	return reply == "1", ResultOK
}

func (s *SerialSmartMotor) HomeLatch(joint int) (float32, Result) {
	reply, res := s.sendRecv(fmt.Sprintf("J%d LATCH?", joint))
	if res != ResultOK {
		return 0, res
	}
	v, err := strconv.ParseFloat(reply, 32)
	if err != nil {
		return 0, ResultError
	}
	return float32(v), ResultOK
}

// NumAnalogIn, NumAnalogOut, NumDigitalIn, NumDigitalOut report zero: this
// controller family exposes no aggregate analog/digital banks of its own,
// only per-joint motion commands.
func (s *SerialSmartMotor) NumAnalogIn() int   { return 0 }
func (s *SerialSmartMotor) NumAnalogOut() int  { return 0 }
func (s *SerialSmartMotor) NumDigitalIn() int  { return 0 }
func (s *SerialSmartMotor) NumDigitalOut() int { return 0 }

func (s *SerialSmartMotor) ReadAnalogIn(ch int) (float32, Result)   { return 0, ResultUnsupported }
func (s *SerialSmartMotor) WriteAnalogOut(ch int, v float32) Result { return ResultUnsupported }
func (s *SerialSmartMotor) ReadDigitalIn(ch int) (bool, Result)     { return false, ResultUnsupported }
func (s *SerialSmartMotor) WriteDigitalOut(ch int, v bool) Result   { return ResultUnsupported }

func (s *SerialSmartMotor) SetParameters(joint int, values []float32) Result {
	fields := make([]string, len(values))
	for i, v := range values {
		fields[i] = strconv.FormatFloat(float64(v), 'g', -1, 32)
	}
	_, res := s.sendRecv(fmt.Sprintf("J%d PARAM %s", joint, strings.Join(fields, " ")))
	return res
}

func (s *SerialSmartMotor) TriggerIn(ch int) (bool, Result) {
	return false, ResultUnsupported
}
