// Package log implements the Logger pipeline: the producer-side trace_log
// API, the shared subsystem severity map, and the Log Processor daemon
// logic that drains the shared-memory log queue and formats records to a
// sink.
//
// This is deliberately distinct from pkg/slog, which is the ambient
// zerolog-based operational logger every daemon's own main() uses for its
// own startup/shutdown messages. pkg/log is the domain-facing pipeline:
// it has its own severity filtering, its own wire format, and its own
// consumer daemon (cmd/logprocessor).
package log

import "fmt"

// Severity mirrors the project's convention that a *larger* number means
// *more verbose*: ERROR=1 ... DEVELOPER=5. A producer's call is dropped
// when its severity is numerically greater (less verbose-permitting) than
// the subsystem's configured threshold — i.e. the call is more verbose
// than the operator wants to see.
type Severity uint8

const (
	SeverityError     Severity = 1
	SeverityWarn      Severity = 2
	SeverityInfo      Severity = 3
	SeverityDebug     Severity = 4
	SeverityDeveloper Severity = 5
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "ERROR"
	case SeverityWarn:
		return "WARN"
	case SeverityInfo:
		return "INFO"
	case SeverityDebug:
		return "DEBUG"
	case SeverityDeveloper:
		return "DEVELOPER"
	default:
		return fmt.Sprintf("SEVERITY(%d)", uint8(s))
	}
}

// maxSourceFileLen bounds the truncated, path-stripped source file name
// copied into a Record.
const maxSourceFileLen = 100

// Record is the fixed-shape log record copied onto the shared-memory log
// queue. Every field participates in both Clone and Equal: IsString is a
// real discriminator between a literal string payload and a format
// string needing printf-style expansion, so it must affect equality too.
type Record struct {
	Sequence   uint8 // deliberately wraps at 256
	Subsystem  string
	Severity   Severity
	PID        int
	SourceFile string
	SourceLine int
	Timestamp  int64 // seconds since epoch

	IsString bool
	Format   string
	Args     [6]int64
	Message  string
}

// Clone returns a deep copy of r (strings are immutable in Go, so this is
// a plain value copy, but it is named and kept separate from Go's default
// assignment to make the "every field, including IsString" invariant an
// explicit, auditable operation rather than an accident of struct
// semantics).
func (r Record) Clone() Record {
	clone := r
	clone.Args = r.Args
	return clone
}

// Equal reports whether r and other carry identical field values,
// including IsString.
func (r Record) Equal(other Record) bool {
	if r.Sequence != other.Sequence ||
		r.Subsystem != other.Subsystem ||
		r.Severity != other.Severity ||
		r.PID != other.PID ||
		r.SourceFile != other.SourceFile ||
		r.SourceLine != other.SourceLine ||
		r.Timestamp != other.Timestamp ||
		r.IsString != other.IsString ||
		r.Format != other.Format ||
		r.Message != other.Message {
		return false
	}
	return r.Args == other.Args
}

func truncateSourceFile(path string) string {
	// Strip any directory component, then bound to maxSourceFileLen runes.
	base := path
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			base = path[i+1:]
			break
		}
	}
	runes := []rune(base)
	if len(runes) > maxSourceFileLen {
		return string(runes[:maxSourceFileLen])
	}
	return base
}
