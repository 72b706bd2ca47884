package mailbox

import (
	"sync"
	"time"
)

// TimerID identifies a scheduled timer for later cancellation.
type TimerID uint64

// TimerMessage is the message a fired timer posts back to its own
// mailbox, so timers are processed through the same dispatch path as
// every other message. A non-zero RestartInterval re-arms the timer after
// it fires.
type TimerMessage struct {
	MsgID           uint16
	MsgPriority     int
	MsgVersion      uint8
	Delay           time.Duration
	RestartInterval time.Duration
	Payload         []byte
}

func (t TimerMessage) ID() uint16         { return t.MsgID }
func (t TimerMessage) Priority() int      { return t.MsgPriority }
func (t TimerMessage) Version() uint8     { return t.MsgVersion }
func (t TimerMessage) Serialize() ([]byte, error) {
	return t.Payload, nil
}

// Reactor is the per-mailbox timer reactor: Schedule arms a timer that, on
// fire, posts msg to mb and re-arms itself if msg.RestartInterval is
// non-zero. The portable implementation here is backed by time.AfterFunc;
// a Linux build can swap this for an epoll/timerfd-backed wait loop
// without changing this package's exported surface.
type Reactor struct {
	mu      sync.Mutex
	timers  map[TimerID]*time.Timer
	nextID  TimerID
}

func NewReactor() *Reactor {
	return &Reactor{timers: make(map[TimerID]*time.Timer)}
}

// Schedule arms msg.Delay against mb, returning an id usable with Cancel.
func (r *Reactor) Schedule(mb Mailbox, msg TimerMessage) TimerID {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.mu.Unlock()

	var arm func()
	arm = func() {
		timer := time.AfterFunc(msg.Delay, func() {
			_ = mb.Post(msg, 0)
			if msg.RestartInterval > 0 {
				msg.Delay = msg.RestartInterval
				arm()
			} else {
				r.mu.Lock()
				delete(r.timers, id)
				r.mu.Unlock()
			}
		})
		r.mu.Lock()
		r.timers[id] = timer
		r.mu.Unlock()
	}
	arm()
	return id
}

// Cancel stops the timer named by id, if still pending.
func (r *Reactor) Cancel(id TimerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.timers[id]; ok {
		t.Stop()
		delete(r.timers, id)
	}
}

// CancelAll stops every timer the reactor currently holds, used on
// mailbox deactivation.
func (r *Reactor) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, t := range r.timers {
		t.Stop()
		delete(r.timers, id)
	}
}
