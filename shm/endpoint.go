package shm

import "sync/atomic"

// Endpoint is the four-region shared-memory channel set spec.md §4.1
// describes between two tiers: cmd (consumer reads, producer writes), stat
// (inverse), cfg (same shape as cmd, for configuration) and set (same shape
// as stat, for settings). Cmd/Cfg is written with an auto-incrementing
// serial number on every call — even for nominally idempotent commands, so
// the consumer can tell a re-send apart from a new arrival — and the
// consumer mirrors it into the stat/set echo once accepted.
type Endpoint[Cmd, Stat, Cfg, Set any] struct {
	cmd  *Channel[Message[Cmd]]
	stat *Channel[StatusMessage[Stat]]
	cfg  *Channel[Message[Cfg]]
	set  *Channel[StatusMessage[Set]]

	cmdSerial atomic.Uint64
	cfgSerial atomic.Uint64
}

// NewEndpoint creates an empty four-region endpoint.
func NewEndpoint[Cmd, Stat, Cfg, Set any]() *Endpoint[Cmd, Stat, Cfg, Set] {
	return &Endpoint[Cmd, Stat, Cfg, Set]{
		cmd:  NewChannel[Message[Cmd]](),
		stat: NewChannel[StatusMessage[Stat]](),
		cfg:  NewChannel[Message[Cfg]](),
		set:  NewChannel[StatusMessage[Set]](),
	}
}

// WriteCmd publishes a new command, returning its freshly assigned serial
// number.
func (e *Endpoint[Cmd, Stat, Cfg, Set]) WriteCmd(payload Cmd) uint64 {
	serial := e.cmdSerial.Add(1)
	e.cmd.Write(Message[Cmd]{Head: serial, Tail: serial, SerialNumber: serial, Payload: payload})
	return serial
}

// ReadCmd reads the most recently published command.
func (e *Endpoint[Cmd, Stat, Cfg, Set]) ReadCmd() (Message[Cmd], bool) {
	return e.cmd.Read()
}

// WriteCfg publishes a new configuration record, returning its serial
// number.
func (e *Endpoint[Cmd, Stat, Cfg, Set]) WriteCfg(payload Cfg) uint64 {
	serial := e.cfgSerial.Add(1)
	e.cfg.Write(Message[Cfg]{Head: serial, Tail: serial, SerialNumber: serial, Payload: payload})
	return serial
}

// ReadCfg reads the most recently published configuration record.
func (e *Endpoint[Cmd, Stat, Cfg, Set]) ReadCfg() (Message[Cfg], bool) {
	return e.cfg.Read()
}

// WriteStat publishes a status record echoing echoSerial, the consumer side
// of the cmd serial-number protocol.
func (e *Endpoint[Cmd, Stat, Cfg, Set]) WriteStat(echoSerial uint64, status Status, admin AdminState, state int32, payload Stat) {
	m := StatusMessage[Stat]{
		Message:          Message[Stat]{Payload: payload},
		EchoSerialNumber: echoSerial,
		Status:           status,
		AdminState:       admin,
		State:            state,
	}
	e.stat.Write(m)
}

// ReadStat reads the most recently published status record.
func (e *Endpoint[Cmd, Stat, Cfg, Set]) ReadStat() (StatusMessage[Stat], bool) {
	return e.stat.Read()
}

// WriteSet publishes a settings-echo record, the consumer side of the cfg
// serial-number protocol.
func (e *Endpoint[Cmd, Stat, Cfg, Set]) WriteSet(echoSerial uint64, status Status, admin AdminState, state int32, payload Set) {
	m := StatusMessage[Set]{
		Message:          Message[Set]{Payload: payload},
		EchoSerialNumber: echoSerial,
		Status:           status,
		AdminState:       admin,
		State:            state,
	}
	e.set.Write(m)
}

// ReadSet reads the most recently published settings-echo record.
func (e *Endpoint[Cmd, Stat, Cfg, Set]) ReadSet() (StatusMessage[Set], bool) {
	return e.set.Read()
}
