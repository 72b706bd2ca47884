package mailbox

import (
	"container/heap"
	"sync"
	"time"

	"github.com/cuemby/platsvc/pkg/errs"
	"github.com/cuemby/platsvc/pkg/metrics"
	"github.com/cuemby/platsvc/pkg/slog"
)

// softDepthWarning is the queue-depth threshold past which Post logs a
// warning instead of refusing the post.
const softDepthWarning = 100

// Mailbox is the common posting/receiving contract every transport variant
// (local, same-node shared-memory, distributed) satisfies.
type Mailbox interface {
	Activate(handle OwnerHandle) error
	Deactivate(handle OwnerHandle)
	Post(msg Message, timeout time.Duration) error
	GetMessage(timeout time.Duration) (Message, error)
	GetMessageNonBlocking() (Message, error)
	Address() Address
	SetDebug(bool)
}

// OwnerHandle is the capability token minted on mailbox creation; only the
// holder may Activate/Deactivate. LookupService.Find returns a mailbox
// reference without a handle, so a non-owning caller can Post but never
// activate or deactivate.
type OwnerHandle struct {
	mailbox Mailbox
}

func (h OwnerHandle) Mailbox() Mailbox { return h.mailbox }

type item struct {
	msg      Message
	priority int
	seq      uint64
	index    int
}

type priorityQueue []*item

func (pq priorityQueue) Len() int { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].priority != pq[j].priority {
		return pq[i].priority > pq[j].priority // higher priority first
	}
	return pq[i].seq < pq[j].seq // ties are FIFO
}
func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index, pq[j].index = i, j
}
func (pq *priorityQueue) Push(x interface{}) {
	it := x.(*item)
	it.index = len(*pq)
	*pq = append(*pq, it)
}
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*pq = old[:n-1]
	return it
}

// localMailbox is an in-process priority queue mailbox: Post computes a
// priority slot of basePriority + msg.Priority(), ties within a class are
// FIFO, and GetMessage blocks on a condition variable until woken by a
// post or until its timeout elapses.
type localMailbox struct {
	addr          Address
	basePriority  int
	mu            sync.Mutex
	cond          *sync.Cond
	pq            priorityQueue
	nextSeq       uint64
	active        bool
	debug         bool
}

// newLocalMailbox constructs an inactive local mailbox; Activate must be
// called (with the OwnerHandle minted alongside it) before Post succeeds.
func newLocalMailbox(addr Address, basePriority int) *localMailbox {
	m := &localMailbox{addr: addr, basePriority: basePriority}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// NewLocalMailbox creates an inactive local mailbox and its owner handle.
func NewLocalMailbox(name string, basePriority int) (Mailbox, OwnerHandle) {
	m := newLocalMailbox(NewLocalAddress(name), basePriority)
	return m, OwnerHandle{mailbox: m}
}

func (m *localMailbox) Activate(handle OwnerHandle) error {
	if handle.mailbox != Mailbox(m) {
		return errs.ErrNotActive
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = true
	return nil
}

func (m *localMailbox) Deactivate(handle OwnerHandle) {
	if handle.mailbox != Mailbox(m) {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = false
	m.cond.Broadcast()
}

func (m *localMailbox) Address() Address { return m.addr }

func (m *localMailbox) SetDebug(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debug = v
}

// Post inserts msg into the priority queue computed as
// basePriority+msg.Priority(). The queue itself is unbounded in memory and
// localMailbox never blocks here, so timeout is ignored: posting to an
// inactive mailbox fails immediately with errs.ErrNotActive whatever the
// timeout, leaving producers free to retry.
func (m *localMailbox) Post(msg Message, timeout time.Duration) error {
	_ = timeout

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		return errs.ErrNotActive
	}

	it := &item{msg: msg, priority: m.basePriority + msg.Priority(), seq: m.nextSeq}
	m.nextSeq++
	heap.Push(&m.pq, it)

	metrics.MailboxPostsTotal.WithLabelValues(m.addr.Name).Inc()
	metrics.MailboxDepth.WithLabelValues(m.addr.Name).Set(float64(m.pq.Len()))

	if m.debug {
		slog.Logger.Debug().Str("mailbox", m.addr.Name).Uint16("msg_id", msg.ID()).Msg("mailbox: posted")
	}
	if m.pq.Len() > softDepthWarning {
		slog.Logger.Warn().Str("mailbox", m.addr.Name).Int("depth", m.pq.Len()).Msg("mailbox: queue depth exceeds soft threshold")
	}

	m.cond.Signal()
	return nil
}

// GetMessage blocks until a message is available, the mailbox deactivates,
// or timeout elapses (0 means block forever).
func (m *localMailbox) GetMessage(timeout time.Duration) (Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if timeout <= 0 {
		for m.pq.Len() == 0 && m.active {
			m.cond.Wait()
		}
		return m.popLocked()
	}

	done := make(chan struct{})
	timer := time.AfterFunc(timeout, func() {
		m.mu.Lock()
		close(done)
		m.cond.Broadcast()
		m.mu.Unlock()
	})
	defer timer.Stop()

	for m.pq.Len() == 0 && m.active {
		select {
		case <-done:
			return nil, errs.ErrTimeout
		default:
		}
		m.cond.Wait()
	}
	return m.popLocked()
}

func (m *localMailbox) popLocked() (Message, error) {
	if m.pq.Len() == 0 {
		return nil, errs.ErrNotActive
	}
	it := heap.Pop(&m.pq).(*item)
	metrics.MailboxDepth.WithLabelValues(m.addr.Name).Set(float64(m.pq.Len()))
	if m.debug {
		slog.Logger.Debug().Str("mailbox", m.addr.Name).Uint16("msg_id", it.msg.ID()).Msg("mailbox: received")
	}
	return it.msg, nil
}

// GetMessageNonBlocking returns immediately with errs.ErrQueueEmpty if
// nothing is queued.
func (m *localMailbox) GetMessageNonBlocking() (Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pq.Len() == 0 {
		return nil, errs.ErrQueueEmpty
	}
	it := heap.Pop(&m.pq).(*item)
	return it.msg, nil
}

// Depth reports the current number of queued messages.
func (m *localMailbox) Depth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pq.Len()
}
