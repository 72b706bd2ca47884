package arena

import (
	"encoding/binary"
	"fmt"

	"github.com/cuemby/platsvc/pkg/errs"
)

const nodeHeaderSize = 8 + 4 // next Ref + payload length

// Codec marshals and unmarshals the element type T carried by a Queue.
type Codec[T any] struct {
	Marshal   func(T) ([]byte, error)
	Unmarshal func([]byte) (T, error)
}

// Queue is an unbounded, position-independent FIFO backed by arena
// storage, parameterized over element type T via Go generics. Every
// enqueue/dequeue holds the queue's named ProcessMutex for its full
// body, and every successful enqueue releases the queue's named
// Semaphore exactly once so a consumer blocked on it wakes.
type Queue[T any] struct {
	arena *Arena
	mutex *ProcessMutex
	sem   *Semaphore
	codec Codec[T]

	headName, tailName string
}

// NewQueue creates (or attaches to, if already bound) a named queue. name
// is used to derive the head/tail directory entries
// (<name>.head / <name>.tail).
func NewQueue[T any](a *Arena, name string, mutex *ProcessMutex, sem *Semaphore, codec Codec[T]) *Queue[T] {
	return &Queue[T]{
		arena:    a,
		mutex:    mutex,
		sem:      sem,
		codec:    codec,
		headName: name + ".head",
		tailName: name + ".tail",
	}
}

// EnqueueTail copies elem into a node allocated in the arena and links it
// to the tail. It releases the queue's semaphore exactly once on success.
func (q *Queue[T]) EnqueueTail(elem T) error {
	payload, err := q.codec.Marshal(elem)
	if err != nil {
		return fmt.Errorf("arena: marshal element: %w", err)
	}

	q.mutex.Lock()
	defer q.mutex.Unlock()

	ref, err := q.arena.Allocate(nodeHeaderSize + len(payload))
	if err != nil {
		return err // errs.ErrOutOfMemory, unwrapped so errors.Is works
	}
	node := q.arena.Deref(ref, nodeHeaderSize+len(payload))
	binary.LittleEndian.PutUint64(node[0:8], 0)
	binary.LittleEndian.PutUint32(node[8:12], uint32(len(payload)))
	copy(node[12:], payload)

	if tailRef, ok := q.arena.Find(q.tailName); ok {
		tailNode := q.arena.Deref(tailRef, nodeHeaderSize)
		binary.LittleEndian.PutUint64(tailNode[0:8], uint64(ref))
	} else {
		_ = q.arena.Rebind(q.headName, ref)
	}
	if err := q.arena.Rebind(q.tailName, ref); err != nil {
		return err
	}

	q.sem.Release()
	return nil
}

// DequeueHead copies the head element out and frees its node. It returns
// errs.ErrQueueEmpty when the queue has nothing to dequeue.
func (q *Queue[T]) DequeueHead() (T, error) {
	var zero T

	q.mutex.Lock()
	defer q.mutex.Unlock()

	headRef, ok := q.arena.Find(q.headName)
	if !ok {
		return zero, errs.ErrQueueEmpty
	}
	header := q.arena.Deref(headRef, nodeHeaderSize)
	next := binary.LittleEndian.Uint64(header[0:8])
	length := binary.LittleEndian.Uint32(header[8:12])

	full := q.arena.Deref(headRef, nodeHeaderSize+int(length))
	payload := make([]byte, length)
	copy(payload, full[nodeHeaderSize:])

	elem, err := q.codec.Unmarshal(payload)
	if err != nil {
		return zero, fmt.Errorf("arena: unmarshal element: %w", err)
	}

	if next == 0 {
		q.arena.Remove(q.headName)
		q.arena.Remove(q.tailName)
	} else {
		_ = q.arena.Rebind(q.headName, Ref(next))
	}
	return elem, nil
}

// Semaphore returns the queue's named counting semaphore so a consumer can
// block until a record arrives.
func (q *Queue[T]) Semaphore() *Semaphore {
	return q.sem
}

// IsEmpty reports whether the queue currently has no elements.
func (q *Queue[T]) IsEmpty() bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	_, ok := q.arena.Find(q.headName)
	return !ok
}

// Len walks the chain and counts its nodes. O(n) in queue depth; intended
// for periodic metrics sampling, not the hot enqueue/dequeue path.
func (q *Queue[T]) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	n := 0
	ref, ok := q.arena.Find(q.headName)
	for ok {
		n++
		header := q.arena.Deref(ref, nodeHeaderSize)
		next := binary.LittleEndian.Uint64(header[0:8])
		if next == 0 {
			break
		}
		ref = Ref(next)
		ok = true
	}
	return n
}

// Clear deletes every node currently on the queue.
func (q *Queue[T]) Clear() {
	for {
		if _, err := q.DequeueHead(); err != nil {
			return
		}
	}
}
