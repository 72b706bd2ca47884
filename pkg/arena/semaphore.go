package arena

import "context"

// Semaphore is the counting semaphore a queue consumer blocks on: one
// Release corresponds to one enqueued record, one Wait consumes one
// release. Unlike a resource-pool semaphore (see pkg/pool, which wires
// golang.org/x/sync/semaphore for bounded acquire/release pairs) a
// queue-wakeup semaphore is posted long before anyone waits on it and
// Release must never block the producer — so it is backed by a buffered
// channel of capacity 1<<20 rather than x/sync/semaphore.Weighted, whose
// internal bookkeeping panics if Release is called without a matching
// prior Acquire. Releases beyond that backlog are dropped. The name is a
// label only: the count lives in this process's memory, so a Release in
// one process does not wake a Wait in another. See DESIGN.md for the full
// justification.
type Semaphore struct {
	name string
	ch   chan struct{}
}

// NewSemaphore creates a named counting semaphore starting at zero.
func NewSemaphore(name string) *Semaphore {
	return &Semaphore{name: name, ch: make(chan struct{}, 1<<20)}
}

// Release increments the semaphore's count by one, waking at most one
// blocked Wait.
func (s *Semaphore) Release() {
	select {
	case s.ch <- struct{}{}:
	default:
		// Backlog beyond 1<<20 outstanding releases indicates a consumer
		// that has stopped draining; drop rather than block the producer.
	}
}

// Wait blocks until the semaphore has a pending release, or ctx is done.
func (s *Semaphore) Wait(ctx context.Context) error {
	select {
	case <-s.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryWait consumes a pending release without blocking.
func (s *Semaphore) TryWait() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}
