package shm

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Resender implements a bounded-patience "resend until echoed" loop for a
// command producer. Patience is cycle-counted, never a wall-clock race
// against the polled consumer loop: `github.com/cenkalti/backoff/v4` only
// supplies the backoff curve, its durations are converted to whole-cycle
// wait counts and the caller drives every step from its own periodic Tick,
// never from a timer goroutine.
type Resender struct {
	cycleTime  time.Duration
	maxRetries int
	curve      backoff.BackOff

	pending   bool
	serial    uint64
	retries   int
	waitTicks int
}

// NewResender creates a resender whose caller ticks every cycleTime and
// gives up after maxRetries resends without an echo.
func NewResender(cycleTime time.Duration, maxRetries int) *Resender {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cycleTime
	b.MaxInterval = cycleTime * 32
	b.MaxElapsedTime = 0
	return &Resender{cycleTime: cycleTime, maxRetries: maxRetries, curve: b}
}

// Begin arms the resender for a freshly sent serial number.
func (r *Resender) Begin(serial uint64) {
	r.pending = true
	r.serial = serial
	r.retries = 0
	r.waitTicks = 0
	r.curve.Reset()
}

// Pending reports whether Begin was called and the echo has not yet
// arrived.
func (r *Resender) Pending() bool { return r.pending }

// Tick advances the resender by one cycle given the consumer's most recent
// echoed serial number and status. resend reports that the caller should
// re-publish the same command this cycle; exhausted reports that
// maxRetries resends elapsed with no echo and the caller should treat this
// as a fault.
func (r *Resender) Tick(echoSerial uint64, status Status) (resend, exhausted bool) {
	if !r.pending {
		return false, false
	}
	if echoSerial == r.serial && status != StatusExec {
		r.pending = false
		return false, false
	}
	if r.waitTicks > 0 {
		r.waitTicks--
		return false, false
	}
	if r.retries >= r.maxRetries {
		r.pending = false
		return false, true
	}
	r.retries++
	if d := r.curve.NextBackOff(); d > 0 && r.cycleTime > 0 {
		r.waitTicks = int(d / r.cycleTime)
	}
	return true, false
}
