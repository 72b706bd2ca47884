package log

import (
	"fmt"
	"log/syslog"
	"os"

	"github.com/cuemby/platsvc/pkg/errs"
)

// Sink is where the Log Processor writes a formatted record.
type Sink interface {
	// Write receives the already-formatted, already-wrapped line (or the
	// unwrapped line, for syslog) and the record it came from (so a
	// rollover-aware sink can decide when to check file size).
	Write(line string, rec Record) error
	// Wrap reports whether lines written to this sink should be
	// column-wrapped (true for stdout/file, false for syslog).
	Wrap() bool
	Close() error
}

// StdoutSink is the default sink (-s, or no flag).
type StdoutSink struct{}

func (StdoutSink) Write(line string, _ Record) error {
	_, err := fmt.Fprint(os.Stdout, line)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrIO, err)
	}
	return nil
}
func (StdoutSink) Wrap() bool  { return true }
func (StdoutSink) Close() error { return nil }

// FileSink writes to a rotating file, per -f/-n/-z: keep N files in all
// (the active file plus .1 .. .N-1), rolling over when the active file
// reaches Z bytes. The active file is
// stat'd every tenth write rather than on every write, to keep the syscall
// overhead off the hot path.
type FileSink struct {
	path        string
	maxFiles    int
	maxBytes    int64
	file        *os.File
	writesSince int
}

// NewFileSink opens (creating if necessary) the active log file.
func NewFileSink(path string, maxFiles int, maxBytes int64) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open log file: %v", errs.ErrIO, err)
	}
	return &FileSink{path: path, maxFiles: maxFiles, maxBytes: maxBytes, file: f}, nil
}

func (s *FileSink) Write(line string, _ Record) error {
	if _, err := s.file.WriteString(line); err != nil {
		return fmt.Errorf("%w: write log file: %v", errs.ErrIO, err)
	}
	s.writesSince++
	if s.writesSince >= 10 {
		s.writesSince = 0
		if err := s.checkRollover(); err != nil {
			return err
		}
	}
	return nil
}

func (s *FileSink) checkRollover() error {
	info, err := s.file.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat log file: %v", errs.ErrIO, err)
	}
	if info.Size() < s.maxBytes {
		return nil
	}
	return s.rollover()
}

// rollover shifts active -> .1, .1 -> .2, ... up to maxFiles-1, deleting
// the oldest, then reopens the active file.
func (s *FileSink) rollover() error {
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("%w: close for rollover: %v", errs.ErrIO, err)
	}

	for i := s.maxFiles - 1; i >= 1; i-- {
		src := s.rotatedName(i)
		if i == s.maxFiles-1 {
			_ = os.Remove(src) // drop the oldest
			continue
		}
		if _, err := os.Stat(src); err == nil {
			_ = os.Rename(src, s.rotatedName(i+1))
		}
	}
	if err := os.Rename(s.path, s.rotatedName(1)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: rename active log: %v", errs.ErrIO, err)
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("%w: reopen active log: %v", errs.ErrIO, err)
	}
	s.file = f
	return nil
}

func (s *FileSink) rotatedName(i int) string {
	return fmt.Sprintf("%s.%d", s.path, i)
}

func (FileSink) Wrap() bool { return true }

func (s *FileSink) Close() error {
	return s.file.Close()
}

// SyslogSink forwards to the local syslog daemon. Syslog lines are never
// column-wrapped.
type SyslogSink struct {
	writer *syslog.Writer
}

func NewSyslogSink() (*SyslogSink, error) {
	w, err := syslog.New(syslog.LOG_INFO, "platsvc")
	if err != nil {
		return nil, fmt.Errorf("%w: open syslog: %v", errs.ErrIO, err)
	}
	return &SyslogSink{writer: w}, nil
}

func (s *SyslogSink) Write(line string, rec Record) error {
	var err error
	switch {
	case rec.Severity == SeverityError:
		err = s.writer.Err(line)
	case rec.Severity == SeverityWarn:
		err = s.writer.Warning(line)
	default:
		err = s.writer.Info(line)
	}
	if err != nil {
		return fmt.Errorf("%w: write syslog: %v", errs.ErrIO, err)
	}
	return nil
}

func (SyslogSink) Wrap() bool { return false }

func (s *SyslogSink) Close() error {
	return s.writer.Close()
}
