// Package pool implements the Object Pool Manager: a generic bounded
// resource pool with reservation/release semantics. No package in this
// repository uses it; the mailbox drain paths allocate a new message for
// each one they receive.
package pool

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Config tunes a Pool's sizing behaviour.
type Config struct {
	// InitialSize is how many elements New() pre-populates via factory.
	InitialSize int
	// HighWater is the maximum number of elements the pool will ever hold
	// reserved at once; Reserve blocks (or returns the context's error)
	// while that many are reserved, whatever MayGrow says.
	HighWater int
	// MayGrow allows Reserve to call factory for a brand-new element when
	// the free list is empty but fewer than HighWater are outstanding.
	MayGrow bool
}

// Pool is a bounded pool of T, reservation-counted via
// golang.org/x/sync/semaphore.Weighted: every successful Reserve has
// exactly one matching Release, the acquire/release pairing
// semaphore.Weighted actually requires (unlike pkg/arena's producer-posts-
// before-anyone-waits log/fault queue semaphores, which use a buffered
// channel instead; see pkg/arena/semaphore.go).
type Pool[T any] struct {
	factory func() T
	reset   func(T) T
	sem     *semaphore.Weighted

	mu        sync.Mutex
	free      []T
	reserved  int
	highWater int
	mayGrow   bool
}

// New creates a pool, pre-populating it with cfg.InitialSize elements from
// factory. reset is applied to an element when it's returned to the free
// list via Release, so callers get a clean value back out of Reserve;
// pass nil to skip resetting.
func New[T any](cfg Config, factory func() T, reset func(T) T) *Pool[T] {
	if reset == nil {
		reset = func(v T) T { return v }
	}
	p := &Pool[T]{
		factory:   factory,
		reset:     reset,
		sem:       semaphore.NewWeighted(int64(cfg.HighWater)),
		highWater: cfg.HighWater,
		mayGrow:   cfg.MayGrow,
	}
	for i := 0; i < cfg.InitialSize; i++ {
		p.free = append(p.free, factory())
	}
	return p
}

// Reserve blocks until an element is available or ctx is cancelled.
func (p *Pool[T]) Reserve(ctx context.Context) (T, error) {
	var zero T
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return zero, fmt.Errorf("pool: reserve: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) > 0 {
		v := p.free[len(p.free)-1]
		p.free = p.free[:len(p.free)-1]
		p.reserved++
		return v, nil
	}
	if p.mayGrow {
		p.reserved++
		return p.factory(), nil
	}
	// HighWater permitted the acquire but the free list and growth are
	// both exhausted: release the slot back and report the same
	// condition a caller would see on an unbounded retry loop.
	p.sem.Release(1)
	return zero, fmt.Errorf("pool: no element available and growth disabled")
}

// Release returns v to the pool's free list after resetting it.
func (p *Pool[T]) Release(v T) {
	p.mu.Lock()
	p.free = append(p.free, p.reset(v))
	p.reserved--
	p.mu.Unlock()
	p.sem.Release(1)
}

// Outstanding reports how many elements are currently reserved.
func (p *Pool[T]) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reserved
}
