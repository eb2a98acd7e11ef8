package bench

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Barrier holds workers after setup until the runner releases them all at
// once. It is single-use.
type Barrier struct {
	parties int

	mu      sync.Mutex
	arrived int
	ready   chan struct{}

	release     chan struct{}
	releaseOnce sync.Once
	err         error
}

// NewBarrier creates a barrier expecting parties arrivals.
func NewBarrier(parties int) *Barrier {
	b := &Barrier{
		parties: parties,
		ready:   make(chan struct{}),
		release: make(chan struct{}),
	}
	if parties <= 0 {
		close(b.ready)
	}
	return b
}

// Wait registers an arrival and blocks until Release or Abort. It returns
// the abort error, or ctx's error if ctx ends first.
func (b *Barrier) Wait(ctx context.Context) error {
	b.arrive()

	select {
	case <-b.release:
		return b.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Barrier) arrive() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.arrived++
	if b.arrived == b.parties {
		close(b.ready)
	}
}

// Arrived returns how many parties have reached the barrier.
func (b *Barrier) Arrived() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.arrived
}

// AwaitReady blocks until every party has arrived. A timeout <= 0 waits
// forever.
func (b *Barrier) AwaitReady(ctx context.Context, timeout time.Duration) error {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-b.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-expired:
		return fmt.Errorf("%w: %d of %d workers ready after %s", ErrBarrierTimeout, b.Arrived(), b.parties, timeout)
	}
}

// Release lets every current and future waiter through.
func (b *Barrier) Release() {
	b.releaseOnce.Do(func() { close(b.release) })
}

// Abort releases every waiter with err. It has no effect after Release.
func (b *Barrier) Abort(err error) {
	b.releaseOnce.Do(func() {
		b.err = err
		close(b.release)
	})
}
