package faults

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cuemby/platsvc/pkg/arena"
	"github.com/cuemby/platsvc/pkg/errs"
	"github.com/cuemby/platsvc/pkg/metrics"
	"github.com/cuemby/platsvc/pkg/slog"
)

// Dequeuer is the minimal surface Manager needs from the shared fault
// queue; arena.Queue[Record] satisfies it.
type Dequeuer interface {
	DequeueHead() (Record, error)
	Semaphore() *arena.Semaphore
}

// Manager is the Fault Manager / EMS Client Agent: it drains the shared
// fault queue and, per record, either appends to the rolling event-report
// file (informational) or applies at-most-once alarm semantics via the
// outstanding-alarms table before forwarding to sink.
type Manager struct {
	queue      Dequeuer
	sink       NotificationSink
	inventory  *AlarmInventory
	outstanding *OutstandingAlarms
	events     *EventFile

	shutdownGrace time.Duration
}

// NewManager returns a manager draining queue into sink. events may be nil
// to discard informational reports instead of rolling them to a file
// (e.g. in tests).
func NewManager(queue Dequeuer, sink NotificationSink, inventory *AlarmInventory, events *EventFile) *Manager {
	return &Manager{
		queue:         queue,
		sink:          sink,
		inventory:     inventory,
		outstanding:   NewOutstandingAlarms(),
		events:        events,
		shutdownGrace: 200 * time.Millisecond,
	}
}

// NewEventReportFile opens the Fault Manager's rolling event-report file,
// identical in rotation contract to the Log Processor's FileSink.
func NewEventReportFile(path string, maxFiles int, maxBytes int64) (*EventFile, error) {
	return NewEventFile(path, maxFiles, maxBytes)
}

// Outstanding exposes the outstanding-alarms table for inspection (tests,
// metrics, a future `platsvc faultmgr status`).
func (m *Manager) Outstanding() *OutstandingAlarms {
	return m.outstanding
}

// Run drives the dispatch loop until ctx is cancelled, draining whatever
// remains (non-blocking) before closing the event file and returning, with
// the same grace-period shutdown shape as the Log Processor.
func (m *Manager) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			time.Sleep(m.shutdownGrace)
			m.drainNonBlocking()
			if m.events != nil {
				return m.events.Close()
			}
			return nil
		default:
		}

		waitCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		err := m.queue.Semaphore().Wait(waitCtx)
		cancel()
		if err != nil {
			continue
		}

		if err := m.drainOne(); err != nil && !errors.Is(err, errs.ErrQueueEmpty) {
			slog.Logger.Warn().Err(err).Msg("fault manager: failed to process record")
		}
	}
}

func (m *Manager) drainOne() error {
	rec, err := m.queue.DequeueHead()
	if err != nil {
		return err
	}
	return m.process(rec)
}

func (m *Manager) drainNonBlocking() {
	for {
		rec, err := m.queue.DequeueHead()
		if err != nil {
			return
		}
		if err := m.process(rec); err != nil {
			slog.Logger.Warn().Err(err).Msg("fault manager: failed to flush record during shutdown")
		}
	}
}

// process applies the per-record dispatch rules by kind.
func (m *Manager) process(rec Record) error {
	switch rec.Kind {
	case KindEvent:
		return m.appendEvent(rec)
	case KindClear:
		return m.forwardClear(rec)
	default:
		return m.forwardRaise(rec)
	}
}

func (m *Manager) appendEvent(rec Record) error {
	if m.events != nil {
		line := fmt.Sprintf("%d %s mo=%s instance=%d pid=%d\n", rec.Timestamp, rec.EventCode, rec.ManagedObject, rec.Instance, rec.PID)
		if err := m.events.writeLine(line); err != nil {
			return err
		}
	}
	metrics.EventsReportedTotal.Inc()
	return m.sink.Event(rec)
}

func (m *Manager) forwardClear(rec Record) error {
	// Forwarded unconditionally, whether or not it was outstanding, so
	// producers can issue idempotent clears.
	m.outstanding.Clear(rec.key())
	metrics.AlarmsClearedTotal.WithLabelValues(rec.AlarmCode).Inc()
	metrics.AlarmsOutstanding.Set(float64(m.outstanding.Len()))
	return m.sink.Clear(rec)
}

func (m *Manager) forwardRaise(rec Record) error {
	rec.Severity = m.inventory.Severity(rec.AlarmCode)
	if m.outstanding.Upsert(rec) {
		// Already outstanding: coalesce. Only the first raise for a given
		// key transitions the alarm to raised.
		metrics.AlarmsCoalescedTotal.WithLabelValues(rec.AlarmCode).Inc()
		return nil
	}
	metrics.AlarmsRaisedTotal.WithLabelValues(rec.AlarmCode).Inc()
	metrics.AlarmsOutstanding.Set(float64(m.outstanding.Len()))
	return m.sink.Raise(rec)
}
