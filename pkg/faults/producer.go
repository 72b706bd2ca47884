package faults

import (
	"fmt"
	"os"

	"github.com/cuemby/platsvc/pkg/arena"
	"github.com/cuemby/platsvc/pkg/log"
)

// Queue is the minimal surface Producer needs from an arena.Queue[Record].
type Queue interface {
	EnqueueTail(Record) error
}

// Producer implements the three macro-fronted calls: raise_alarm,
// clear_alarm, report_event. Each also emits a local-only trace log for
// developer visibility.
type Producer struct {
	pid   int
	queue Queue
	sem   *arena.Semaphore
	local *log.Producer
}

// NewProducer returns a producer posting onto queue and waking consumers
// via sem. local is used for the macro's developer-visible trace log; nil
// selects a local-only producer (log.NewLocalProducer) that writes those
// lines to stdout.
func NewProducer(pid int, queue Queue, sem *arena.Semaphore, local *log.Producer) *Producer {
	if local == nil {
		local = log.NewLocalProducer(pid)
	}
	return &Producer{pid: pid, queue: queue, sem: sem, local: local}
}

// RaiseAlarm enqueues an indeterminate-severity fault record. The Fault
// Manager re-assigns the real severity from its alarm inventory before
// forwarding.
func (p *Producer) RaiseAlarm(neid, alarmCode, managedObject string, instance int) error {
	return p.emit(Record{
		Kind:          KindRaise,
		NEID:          neid,
		AlarmCode:     alarmCode,
		ManagedObject: managedObject,
		Instance:      instance,
		Severity:      SeverityIndeterminate,
	})
}

// ClearAlarm enqueues a clear-severity fault record for the same key a
// matching RaiseAlarm would use.
func (p *Producer) ClearAlarm(neid, alarmCode, managedObject string, instance int) error {
	return p.emit(Record{
		Kind:          KindClear,
		NEID:          neid,
		AlarmCode:     alarmCode,
		ManagedObject: managedObject,
		Instance:      instance,
		Severity:      SeverityClear,
	})
}

// ReportEvent enqueues an informational fault record, which the Fault
// Manager appends to its rolling event-report file rather than forwarding
// to the alarm path.
func (p *Producer) ReportEvent(eventCode, managedObject string, instance int) error {
	return p.emit(Record{
		Kind:          KindEvent,
		EventCode:     eventCode,
		ManagedObject: managedObject,
		Instance:      instance,
		Severity:      SeverityInformational,
	})
}

func (p *Producer) emit(rec Record) error {
	rec.PID = p.pid
	rec.Timestamp = now()

	if p.local != nil {
		_ = p.local.StringTraceLog("FAULT", log.SeverityInfo, "faults.go", 0, p.describe(rec))
	}

	if err := p.queue.EnqueueTail(rec); err != nil {
		fmt.Fprintf(os.Stderr, "faults: dropping record, enqueue failed: %v\n", err)
		return err
	}
	p.sem.Release()
	return nil
}

func (p *Producer) describe(rec Record) string {
	switch rec.Kind {
	case KindClear:
		return fmt.Sprintf("clear_alarm neid=%s code=%s mo=%s instance=%d", rec.NEID, rec.AlarmCode, rec.ManagedObject, rec.Instance)
	case KindEvent:
		return fmt.Sprintf("report_event code=%s mo=%s instance=%d", rec.EventCode, rec.ManagedObject, rec.Instance)
	default:
		return fmt.Sprintf("raise_alarm neid=%s code=%s mo=%s instance=%d", rec.NEID, rec.AlarmCode, rec.ManagedObject, rec.Instance)
	}
}
