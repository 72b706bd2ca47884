package log

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cuemby/platsvc/pkg/arena"
)

// Mode selects between the normal shared-memory path and the local-only
// path used by daemons started with -l.
type Mode int

const (
	// Shared is the normal path: filtered records are copied onto the SM
	// log queue for the Log Processor daemon to drain.
	Shared Mode = iota
	// LocalOnly skips the shared queue entirely and formats+writes the
	// record to stdout in the producer's own goroutine. It also forces
	// the severity map to its most verbose setting so nothing is
	// filtered.
	LocalOnly
)

// Queue is the minimal surface Producer needs from an arena.Queue[Record];
// it lets tests substitute an in-memory fake without pulling in the full
// arena machinery.
type Queue interface {
	EnqueueTail(Record) error
}

// Producer implements trace_log/string_trace_log for one process.
type Producer struct {
	mode       Mode
	pid        int
	severities *SeverityMap
	queue      Queue
	sem        *arena.Semaphore

	mu  sync.Mutex
	seq uint8
}

// NewSharedProducer returns a producer that filters through severities and
// posts accepted records to queue, releasing sem on every successful post.
func NewSharedProducer(pid int, severities *SeverityMap, queue Queue, sem *arena.Semaphore) *Producer {
	return &Producer{mode: Shared, pid: pid, severities: severities, queue: queue, sem: sem}
}

// NewLocalProducer returns a producer in local-only mode: every call is
// accepted (severities is seeded to most-verbose) and formatted straight
// to stdout.
func NewLocalProducer(pid int) *Producer {
	severities := NewSeverityMap()
	severities.SetAllMostVerbose()
	return &Producer{mode: LocalOnly, pid: pid, severities: severities}
}

// TraceLog is the printf-style call: trace_log(subsystem, severity, pid,
// source_file, source_line, fmt, a1..a6).
func (p *Producer) TraceLog(subsystem string, severity Severity, sourceFile string, sourceLine int, format string, args [6]int64) error {
	return p.emit(subsystem, severity, sourceFile, sourceLine, Record{
		IsString: false,
		Format:   format,
		Args:     args,
	})
}

// StringTraceLog is the pre-formatted-string call.
func (p *Producer) StringTraceLog(subsystem string, severity Severity, sourceFile string, sourceLine int, message string) error {
	return p.emit(subsystem, severity, sourceFile, sourceLine, Record{
		IsString: true,
		Message:  message,
	})
}

func (p *Producer) emit(subsystem string, severity Severity, sourceFile string, sourceLine int, partial Record) error {
	configured := p.severities.Get(subsystem)
	if severity > configured {
		// severity is less verbose-permitting than configured: drop.
		return nil
	}

	p.mu.Lock()
	seq := p.seq
	p.seq++
	p.mu.Unlock()

	rec := partial
	rec.Sequence = seq
	rec.Subsystem = subsystem
	rec.Severity = severity
	rec.PID = p.pid
	rec.SourceFile = truncateSourceFile(sourceFile)
	rec.SourceLine = sourceLine
	rec.Timestamp = time.Now().Unix()

	if p.mode == LocalOnly {
		line, err := FormatLine(rec, false)
		if err != nil {
			return err
		}
		fmt.Fprint(os.Stdout, line)
		return nil
	}

	if err := p.queue.EnqueueTail(rec); err != nil {
		// Out-of-memory on the log queue is dropped with a local-only
		// warning, never recursively enqueued (that would just loop).
		fmt.Fprintf(os.Stderr, "log: dropping record, enqueue failed: %v\n", err)
		return err
	}
	p.sem.Release()
	return nil
}
