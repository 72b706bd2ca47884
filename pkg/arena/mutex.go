package arena

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
)

// ProcessMutex is a named mutex visible across every process that opened
// the same arena. Every Queue enqueue/dequeue holds one of these for its
// full body; the Arena's own Allocate/Bind/Find/Rebind/Remove use the
// arena's in-process sync.Mutex instead. No user code ever runs while it
// is held.
//
// The in-process component (local) rules out goroutine races within one
// process; the optional file component (flock) rules out races between
// processes sharing an mmap-backed arena. A purely in-memory arena (empty
// path) has no file component, matching its single-process-only contract.
type ProcessMutex struct {
	name  string
	local sync.Mutex
	file  *os.File
}

// NewProcessMutex returns a mutex named after the arena object it guards.
// When the arena is file-backed, lockDir should be a writable directory
// (typically alongside the backing store) used to hold one lock file per
// named mutex.
func NewProcessMutex(name, lockDir string) (*ProcessMutex, error) {
	m := &ProcessMutex{name: name}
	if lockDir == "" {
		return m, nil
	}
	path := filepath.Join(lockDir, "."+name+".lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("arena: open lock file for %q: %w", name, err)
	}
	m.file = f
	return m, nil
}

// Lock acquires the mutex, blocking other goroutines in this process and,
// if file-backed, other processes as well.
func (m *ProcessMutex) Lock() {
	m.local.Lock()
	if m.file != nil {
		if err := unix.Flock(int(m.file.Fd()), unix.LOCK_EX); err != nil {
			// The only realistic failure here is the fd being closed out
			// from under us; there is nothing a caller could usefully do
			// with this error mid-critical-section, so fall back to the
			// in-process guarantee only.
			_ = err
		}
	}
}

// Unlock releases the mutex.
func (m *ProcessMutex) Unlock() {
	if m.file != nil {
		_ = unix.Flock(int(m.file.Fd()), unix.LOCK_UN)
	}
	m.local.Unlock()
}

// Close releases the mutex's lock file, if any.
func (m *ProcessMutex) Close() error {
	if m.file == nil {
		return nil
	}
	return m.file.Close()
}
