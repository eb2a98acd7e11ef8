package txn

import (
	"context"
	"sync"
)

// Countdown is released once it has been signalled n times.
type Countdown struct {
	mu        sync.Mutex
	remaining int
	done      chan struct{}
}

// NewCountdown creates a countdown expecting n signals. n <= 0 is already released.
func NewCountdown(n int) *Countdown {
	c := &Countdown{remaining: n, done: make(chan struct{})}
	if n <= 0 {
		c.remaining = 0
		close(c.done)
	}
	return c
}

// Signal decrements the countdown. Extra signals are ignored.
func (c *Countdown) Signal() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.remaining == 0 {
		return
	}
	c.remaining--
	if c.remaining == 0 {
		close(c.done)
	}
}

// Remaining returns how many signals are still outstanding.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Done returns a channel closed when the countdown reaches zero.
func (c *Countdown) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the countdown reaches zero or ctx is done.
func (c *Countdown) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
