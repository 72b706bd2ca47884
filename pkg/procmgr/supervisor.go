package procmgr

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/platsvc/pkg/mailbox"
	"github.com/cuemby/platsvc/pkg/metrics"
	"github.com/cuemby/platsvc/pkg/slog"
)

var directiveBucket = []byte("directives")

// status is one child's last-known supervision state, persisted to bbolt
// so Status can inspect it from a second process. This
// is supervisor bookkeeping, not a durability guarantee: Non-goals still
// exclude durable message persistence.
type status struct {
	Name    string
	Kind    Kind
	Running bool
	Pid     int
	Restarts int
}

// child tracks one running dynamic directive.
type child struct {
	directive Directive
	cmd       *exec.Cmd
	suspended bool
}

// Supervisor spawns dynamic entries via os/exec, monitors each one via
// cmd.Wait() in its own goroutine, reaps it on exit, and restarts it per
// a bounded-retry policy.
type Supervisor struct {
	db *bolt.DB

	mu       sync.Mutex
	children map[string]*child

	mb    mailbox.Mailbox
	owner mailbox.OwnerHandle

	// MaxRestarts bounds how many times a dynamic child is respawned
	// after it exits non-zero before the supervisor gives up on it.
	MaxRestarts int
}

// NewSupervisor opens (creating if necessary) the bbolt state file at
// dbPath and wires mb as the supervisor's signal-triggered-event mailbox.
func NewSupervisor(dbPath string, mb mailbox.Mailbox, owner mailbox.OwnerHandle) (*Supervisor, error) {
	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("procmgr: open state db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(directiveBucket)
		return err
	}); err != nil {
		return nil, fmt.Errorf("procmgr: init state bucket: %w", err)
	}
	return &Supervisor{
		db:          db,
		children:    make(map[string]*child),
		mb:          mb,
		owner:       owner,
		MaxRestarts: 3,
	}, nil
}

// Apply runs a parsed directive list: dynamic entries are spawned,
// remove/suspend/resume act on already-known children.
func (s *Supervisor) Apply(directives []Directive) {
	for _, d := range directives {
		switch d.Action {
		case ActionDynamic:
			s.spawn(d)
		case ActionRemove:
			s.remove(d.Name)
		case ActionSuspend:
			s.suspend(d.Name)
		case ActionResume:
			s.resume(d.Name)
		case ActionStatic:
			// static entries run in-process and are the caller's own
			// responsibility to start; the supervisor only tracks the
			// directive for status reporting.
			s.persist(status{Name: d.Name, Kind: "static"})
		}
	}
}

func (s *Supervisor) spawn(d Directive) {
	cmd := exec.Command(d.Library, d.Argv)
	if err := cmd.Start(); err != nil {
		slog.Logger.Error().Err(err).Str("name", d.Name).Msg("procmgr: failed to spawn dynamic entry")
		return
	}

	c := &child{directive: d, cmd: cmd}
	s.mu.Lock()
	s.children[d.Name] = c
	s.mu.Unlock()

	s.persist(status{Name: d.Name, Kind: d.Kind, Running: true, Pid: cmd.Process.Pid})
	s.reportCounts()
	go s.monitor(d.Name, c, 0)
}

// monitor waits for a child to exit and restarts it up to MaxRestarts
// times.
func (s *Supervisor) monitor(name string, c *child, attempt int) {
	err := c.cmd.Wait()

	s.mu.Lock()
	stillTracked := s.children[name] == c
	s.mu.Unlock()
	if !stillTracked {
		return // removed out from under us
	}

	s.persist(status{Name: name, Kind: c.directive.Kind, Running: false, Restarts: attempt})
	s.reportCounts()

	if err == nil || attempt >= s.MaxRestarts {
		return
	}
	slog.Logger.Warn().Str("name", name).Int("attempt", attempt+1).Err(err).Msg("procmgr: restarting dynamic entry")
	metrics.EntryRestartsTotal.WithLabelValues(name).Inc()

	cmd := exec.Command(c.directive.Library, c.directive.Argv)
	if err := cmd.Start(); err != nil {
		slog.Logger.Error().Err(err).Str("name", name).Msg("procmgr: restart spawn failed")
		return
	}
	next := &child{directive: c.directive, cmd: cmd}
	s.mu.Lock()
	s.children[name] = next
	s.mu.Unlock()
	s.persist(status{Name: name, Kind: c.directive.Kind, Running: true, Pid: cmd.Process.Pid, Restarts: attempt + 1})
	s.reportCounts()
	go s.monitor(name, next, attempt+1)
}

// reportCounts updates the running/suspended gauge from the current
// children map.
func (s *Supervisor) reportCounts() {
	s.mu.Lock()
	defer s.mu.Unlock()
	running, suspended := 0, 0
	for _, c := range s.children {
		if c.suspended {
			suspended++
		} else {
			running++
		}
	}
	metrics.ManagedEntriesTotal.WithLabelValues("running").Set(float64(running))
	metrics.ManagedEntriesTotal.WithLabelValues("suspended").Set(float64(suspended))
}

func (s *Supervisor) remove(name string) {
	s.mu.Lock()
	c, ok := s.children[name]
	delete(s.children, name)
	s.mu.Unlock()
	if !ok {
		return
	}
	_ = c.cmd.Process.Kill()
	s.persist(status{Name: name, Kind: c.directive.Kind, Running: false})
	s.reportCounts()
}

func (s *Supervisor) suspend(name string) {
	s.mu.Lock()
	c, ok := s.children[name]
	if ok {
		c.suspended = true
		_ = c.cmd.Process.Signal(stopSignal)
	}
	s.mu.Unlock()
	if ok {
		s.reportCounts()
	}
}

func (s *Supervisor) resume(name string) {
	s.mu.Lock()
	c, ok := s.children[name]
	if ok && c.suspended {
		c.suspended = false
		_ = c.cmd.Process.Signal(contSignal)
	}
	s.mu.Unlock()
	if ok {
		s.reportCounts()
	}
}

func (s *Supervisor) persist(st status) {
	_ = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(directiveBucket)
		data, err := json.Marshal(st)
		if err != nil {
			return err
		}
		return b.Put([]byte(st.Name), data)
	})
}

// Status returns the last-persisted status for every known directive,
// usable from a second process holding only the db path.
func Status(dbPath string) (map[string]status, error) {
	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: 2 * time.Second, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("procmgr: open state db read-only: %w", err)
	}
	defer db.Close()

	result := make(map[string]status)
	err = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(directiveBucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var st status
			if err := json.Unmarshal(v, &st); err != nil {
				return err
			}
			result[string(k)] = st
			return nil
		})
	})
	return result, err
}

// Shutdown closes the service configurator: it kills every tracked child,
// waits for them to exit, then closes the state db. The caller is
// responsible for deactivating the supervisor's mailbox first (on the
// first shutdown signal) before calling Shutdown, so no new directive
// arrives mid-teardown.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	children := make([]*child, 0, len(s.children))
	for name, c := range s.children {
		children = append(children, c)
		delete(s.children, name)
	}
	s.mu.Unlock()

	for _, c := range children {
		_ = c.cmd.Process.Kill()
	}

	done := make(chan struct{})
	go func() {
		for _, c := range children {
			_ = c.cmd.Wait()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}
	return s.db.Close()
}
