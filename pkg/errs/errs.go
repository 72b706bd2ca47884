// Package errs defines the result kinds shared by every platform services
// component. Producers and consumers communicate failure through these
// sentinel errors rather than ad-hoc strings so callers can use errors.Is.
package errs

import "errors"

var (
	// ErrNotActive is returned when a post targets a mailbox that has not
	// been activated yet.
	ErrNotActive = errors.New("mailbox not active")

	// ErrTimeout is returned when a post or get_message timeout elapses
	// before the operation could complete.
	ErrTimeout = errors.New("operation timed out")

	// ErrOutOfMemory is returned when the shared-memory arena cannot
	// satisfy an allocation.
	ErrOutOfMemory = errors.New("arena out of memory")

	// ErrQueueEmpty is returned by a non-blocking dequeue against an
	// empty queue.
	ErrQueueEmpty = errors.New("queue empty")

	// ErrNotFound is returned when a lookup by name or address misses.
	ErrNotFound = errors.New("not found")

	// ErrIO is returned when a sink write (file, syslog) fails.
	ErrIO = errors.New("io error")

	// ErrFormat marks a field truncation; it is logged, never propagated
	// to a caller as a hard failure.
	ErrFormat = errors.New("format error")

	// ErrDuplicateRaise marks a raise coalesced by the Fault Manager; it
	// is resolved to success and never surfaced to the producer.
	ErrDuplicateRaise = errors.New("duplicate raise coalesced")
)
