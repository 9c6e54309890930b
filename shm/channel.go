package shm

import "sync/atomic"

// Channel is a single-producer, multi-consumer ping-pong double buffer for
// one message type. A writer publishes a new immutable snapshot with a
// single atomic pointer swap; readers always see either the previous
// complete snapshot or the new one, never a torn mix of the two (spec.md
// §4.1, "torn-read protection" and "each reader keeps two alternating
// buffers").
type Channel[T any] struct {
	current atomic.Pointer[T]
}

// NewChannel creates an empty channel; Read returns ok=false until the
// first Write.
func NewChannel[T any]() *Channel[T] {
	return &Channel[T]{}
}

// Write publishes v as the channel's new current value.
func (c *Channel[T]) Write(v T) {
	c.current.Store(&v)
}

// Read returns the most recently published value. ok is false if Write has
// never been called.
func (c *Channel[T]) Read() (T, bool) {
	p := c.current.Load()
	if p == nil {
		var zero T
		return zero, false
	}
	return *p, true
}
