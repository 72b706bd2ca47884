// Package arena implements the shared-memory arena and position-independent
// allocator that backs the Logger, Fault, and same-node mailbox queues.
//
// A real ACE_MMAP_Memory_Pool maps its backing file at a fixed virtual
// address so a raw pointer is valid in every attached process. Go cannot
// request a fixed mapping address portably, so this package uses offsets
// from the arena's own base (a Ref) as the position-independent currency
// instead — any process with the arena open can turn a Ref back into a byte
// slice. See DESIGN.md for the full rationale.
package arena

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/cuemby/platsvc/pkg/errs"
)

const (
	magic             = 0x504c4154 // "PLAT"
	headerSize        = 32
	directoryEntries  = 64
	directoryNameLen  = 56
	directoryEntrySz  = directoryNameLen + 8
	directorySize     = directoryEntries * directoryEntrySz
	defaultInitialCap = 1 << 20 // 1 MiB
	maxCap            = 1 << 30 // 1 GiB hard ceiling; beyond this, allocation fails loudly
)

// Ref is an offset from the arena's base — the position-independent
// pointer. A zero Ref never points at live data (offset 0 is the header).
type Ref uint64

// Arena is one process-wide allocator and named-object directory, mapped
// either in-memory (single process, used by tests and local-only mode) or
// backed by a file suitable for mmap across processes.
type Arena struct {
	mu     sync.Mutex // protects growth of buf/mmap remap; the O(1) critical
	               // sections inside Queue/ProcessMutex have their own locks
	path   string
	file   *os.File
	data   []byte // the mapped or in-memory backing store
	mapped bool    // true when data is an mmap'd region
	bump   uint64  // next free offset, relative to end of header+directory
}

// Open creates or attaches to an arena. An empty path selects the in-memory
// mode used by tests and embedded single-process deployments; a non-empty
// path mmaps a file at that location (e.g. /tmp/platsvc.backingstore) so
// every process that opens the same path shares the same bytes.
func Open(path string) (*Arena, error) {
	a := &Arena{path: path}
	if path == "" {
		a.data = make([]byte, defaultInitialCap)
		a.initHeader()
		return a, nil
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("arena: open backing store: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("arena: stat backing store: %w", err)
	}
	if info.Size() < defaultInitialCap {
		if err := f.Truncate(defaultInitialCap); err != nil {
			f.Close()
			return nil, fmt.Errorf("arena: truncate backing store: %w", err)
		}
	}
	size := defaultInitialCap
	if info.Size() > defaultInitialCap {
		size = int(info.Size())
	}
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("arena: mmap backing store: %w", err)
	}
	a.file = f
	a.data = data
	a.mapped = true

	if binary.LittleEndian.Uint32(a.data[0:4]) != magic {
		a.initHeader()
	} else {
		a.bump = binary.LittleEndian.Uint64(a.data[8:16])
	}
	return a, nil
}

// Close unmaps (or drops) the arena's backing store.
func (a *Arena) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mapped {
		if err := unix.Munmap(a.data); err != nil {
			return err
		}
		return a.file.Close()
	}
	return nil
}

func (a *Arena) initHeader() {
	binary.LittleEndian.PutUint32(a.data[0:4], magic)
	binary.LittleEndian.PutUint64(a.data[8:16], 0)
	for i := headerSize; i < headerSize+directorySize; i++ {
		a.data[i] = 0
	}
	a.bump = 0
}

func (a *Arena) persistBump() {
	if len(a.data) >= 16 {
		binary.LittleEndian.PutUint64(a.data[8:16], a.bump)
	}
}

func (a *Arena) dataRegionBase() uint64 {
	return headerSize + directorySize
}

// Allocate reserves size bytes in the arena and returns their offset. It
// fails with errs.ErrOutOfMemory once the arena has grown to maxCap and
// still cannot satisfy the request.
func (a *Arena) Allocate(size int) (Ref, error) {
	if size <= 0 {
		return 0, fmt.Errorf("arena: invalid allocation size %d", size)
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	need := a.dataRegionBase() + a.bump + uint64(size)
	for need > uint64(len(a.data)) {
		if len(a.data) >= maxCap {
			return 0, errs.ErrOutOfMemory
		}
		if err := a.grow(); err != nil {
			return 0, err
		}
	}
	offset := a.bump
	a.bump += uint64(size)
	a.persistBump()
	return Ref(a.dataRegionBase() + offset), nil
}

// grow doubles the backing store. Callers must hold a.mu. This is the
// implementation of the "reserve a large range, commit on demand" design
// note: no SIGSEGV trap is installed anywhere.
func (a *Arena) grow() error {
	newSize := len(a.data) * 2
	if newSize > maxCap {
		newSize = maxCap
	}
	if !a.mapped {
		grown := make([]byte, newSize)
		copy(grown, a.data)
		a.data = grown
		return nil
	}

	if err := unix.Munmap(a.data); err != nil {
		return fmt.Errorf("arena: munmap during growth: %w", err)
	}
	if err := a.file.Truncate(int64(newSize)); err != nil {
		return fmt.Errorf("arena: truncate during growth: %w", err)
	}
	data, err := unix.Mmap(int(a.file.Fd()), 0, newSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("arena: remap during growth: %w", err)
	}
	a.data = data
	return nil
}

// Deref resolves a Ref back into a byte slice of the requested length.
func (a *Arena) Deref(ref Ref, length int) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.data[uint64(ref) : uint64(ref)+uint64(length)]
}

// Bind installs a name -> Ref mapping in the arena's directory. Binding is
// one-shot per name: binding an already-bound name fails.
func (a *Arena) Bind(name string, ref Ref) error {
	if len(name) > directoryNameLen {
		return fmt.Errorf("arena: name %q exceeds %d bytes", name, directoryNameLen)
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	firstFree := -1
	for i := 0; i < directoryEntries; i++ {
		entry := a.directoryEntry(i)
		existingName := readCString(entry[:directoryNameLen])
		if existingName == name {
			return fmt.Errorf("arena: name %q already bound", name)
		}
		if existingName == "" && firstFree == -1 {
			firstFree = i
		}
	}
	if firstFree == -1 {
		return fmt.Errorf("arena: named-object directory full")
	}
	entry := a.directoryEntry(firstFree)
	writeCString(entry[:directoryNameLen], name)
	binary.LittleEndian.PutUint64(entry[directoryNameLen:], uint64(ref))
	return nil
}

// Find looks up a previously bound name.
func (a *Arena) Find(name string) (Ref, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := 0; i < directoryEntries; i++ {
		entry := a.directoryEntry(i)
		if readCString(entry[:directoryNameLen]) == name {
			return Ref(binary.LittleEndian.Uint64(entry[directoryNameLen:])), true
		}
	}
	return 0, false
}

// Rebind installs or overwrites a name -> Ref mapping. Unlike Bind (which
// is one-shot, for the well-known named objects like LogSMQueue and
// FaultSMQueue) Rebind is used internally by Queue for its mutable
// head/tail pointers, which by nature change on every enqueue and
// dequeue.
func (a *Arena) Rebind(name string, ref Ref) error {
	if len(name) > directoryNameLen {
		return fmt.Errorf("arena: name %q exceeds %d bytes", name, directoryNameLen)
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	firstFree := -1
	for i := 0; i < directoryEntries; i++ {
		entry := a.directoryEntry(i)
		existingName := readCString(entry[:directoryNameLen])
		if existingName == name {
			binary.LittleEndian.PutUint64(entry[directoryNameLen:], uint64(ref))
			return nil
		}
		if existingName == "" && firstFree == -1 {
			firstFree = i
		}
	}
	if firstFree == -1 {
		return fmt.Errorf("arena: named-object directory full")
	}
	entry := a.directoryEntry(firstFree)
	writeCString(entry[:directoryNameLen], name)
	binary.LittleEndian.PutUint64(entry[directoryNameLen:], uint64(ref))
	return nil
}

// Remove deletes a name from the directory. It does not free the
// underlying allocation: the bump allocator never reclaims single
// allocations, since the backing store is volatile and whole-arena
// removal is the only teardown path.
func (a *Arena) Remove(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := 0; i < directoryEntries; i++ {
		entry := a.directoryEntry(i)
		if readCString(entry[:directoryNameLen]) == name {
			for j := range entry {
				entry[j] = 0
			}
			return
		}
	}
}

func (a *Arena) directoryEntry(i int) []byte {
	start := headerSize + i*directoryEntrySz
	return a.data[start : start+directoryEntrySz]
}

func readCString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

func writeCString(dst []byte, s string) {
	for i := range dst {
		dst[i] = 0
	}
	copy(dst, s)
}
