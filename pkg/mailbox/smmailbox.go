package mailbox

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/platsvc/pkg/arena"
	"github.com/cuemby/platsvc/pkg/errs"
	"github.com/cuemby/platsvc/pkg/slog"
)

// envelope is the wire record carried on a same-node SM mailbox queue:
// the message's own serialized payload plus the out-of-band priority,
// version and id fields the payload's own serializer doesn't encode.
type envelope struct {
	ID       uint16
	Priority int
	Version  uint8
	Payload  []byte
}

func envelopeCodec() arena.Codec[envelope] {
	return arena.Codec[envelope]{
		Marshal:   func(e envelope) ([]byte, error) { return json.Marshal(e) },
		Unmarshal: func(b []byte) (envelope, error) { var e envelope; err := json.Unmarshal(b, &e); return e, err },
	}
}

// smMailbox wraps localMailbox so its owner drains both the in-process
// queue (timers, in-process posts) and a shared-memory queue (cross-
// process posts), merging both streams under one priority order.
type smMailbox struct {
	*localMailbox

	a        *Arena
	queue    *arena.Queue[envelope]
	registry *Registry

	drainOnce sync.Once
	cancel    context.CancelFunc
}

// Arena is the minimal surface smMailbox needs from pkg/arena.Arena,
// narrowed so callers can supply an already-open arena without this
// package importing arena's full surface into its exported API.
type Arena = arena.Arena

// NewSMMailbox creates a same-node shared-memory mailbox named name,
// backed by a, using registry to reconstruct messages posted from other
// processes. The per-mailbox SM queue, coordination mutex and semaphore
// are named LocalSMMailboxQueue_<name>, LocalSMCoordMutex_<name> and
// LocalSMMailboxQueue_<name>.sem respectively.
func NewSMMailbox(a *Arena, name string, basePriority int, registry *Registry) (Mailbox, OwnerHandle, error) {
	queueName := "LocalSMMailboxQueue_" + name
	mu, err := arena.NewProcessMutex("LocalSMCoordMutex_"+name, "")
	if err != nil {
		return nil, OwnerHandle{}, err
	}
	sem := arena.NewSemaphore(queueName + ".sem")
	queue := arena.NewQueue(a, queueName, mu, sem, envelopeCodec())

	local := newLocalMailbox(NewLocalSMAddress(name), basePriority)
	sm := &smMailbox{localMailbox: local, a: a, queue: queue, registry: registry}
	return sm, OwnerHandle{mailbox: sm}, nil
}

func (m *smMailbox) Activate(handle OwnerHandle) error {
	if handle.mailbox != Mailbox(m) {
		return errs.ErrNotActive
	}
	if err := m.localMailbox.Activate(OwnerHandle{mailbox: m.localMailbox}); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.drainOnce.Do(func() {
		go m.drainLoop(ctx)
	})
	return nil
}

func (m *smMailbox) Deactivate(handle OwnerHandle) {
	if handle.mailbox != Mailbox(m) {
		return
	}
	if m.cancel != nil {
		m.cancel()
	}
	m.localMailbox.Deactivate(OwnerHandle{mailbox: m.localMailbox})
}

// drainLoop blocks on the SM queue's semaphore, dequeues one envelope,
// asks the Message Factory to reconstruct the concrete message, and posts
// it into the local in-process queue so it merges under one priority order
// with in-process traffic. The envelope's Priority and Version are not
// re-applied: the message is queued with the priority and version that the
// Registry's decoder gives it.
func (m *smMailbox) drainLoop(ctx context.Context) {
	for {
		waitCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		err := m.queue.Semaphore().Wait(waitCtx)
		cancel()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				continue
			}
		}

		env, err := m.queue.DequeueHead()
		if err != nil {
			continue
		}
		msg, err := m.registry.Decode(env.ID, env.Payload)
		if err != nil {
			slog.Logger.Warn().Err(err).Uint16("msg_id", env.ID).Msg("mailbox: dropping undecodable SM message")
			continue
		}
		if err := m.localMailbox.Post(msg, 0); err != nil {
			slog.Logger.Warn().Err(err).Msg("mailbox: failed to post decoded SM message into local queue")
		}
	}
}

// PostToSMMailbox serializes msg and enqueues it on the named mailbox's SM
// queue, for a caller in another process holding only the arena and the
// mailbox's name (not its OwnerHandle or in-process object). It bounds the
// serialized payload to wireMaxBytes.
func PostToSMMailbox(a *Arena, name string, msg Message) error {
	queueName := "LocalSMMailboxQueue_" + name
	mu, err := arena.NewProcessMutex("LocalSMCoordMutex_"+name, "")
	if err != nil {
		return err
	}
	sem := arena.NewSemaphore(queueName + ".sem")
	queue := arena.NewQueue(a, queueName, mu, sem, envelopeCodec())

	payload, err := msg.Serialize()
	if err != nil {
		return fmt.Errorf("mailbox: serialize for SM post: %w", err)
	}
	if len(payload) > wireMaxBytes {
		return errs.ErrOutOfMemory
	}
	return queue.EnqueueTail(envelope{ID: msg.ID(), Priority: msg.Priority(), Version: msg.Version(), Payload: payload})
}
