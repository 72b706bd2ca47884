package faults

import (
	"fmt"
	"os"

	"github.com/cuemby/platsvc/pkg/errs"
)

// EventFile is the Fault Manager's rolling event-report file, following
// the identical rotation contract as the Log Processor's FileSink
// (pkg/log.FileSink): rotate every tenth write if size has crossed the
// threshold, deleting .maxFiles-1 and shifting .i -> .i+1 below it, so
// maxFiles files are kept in all, the active one included.
type EventFile struct {
	path        string
	maxFiles    int
	maxBytes    int64
	file        *os.File
	writesSince int
}

func NewEventFile(path string, maxFiles int, maxBytes int64) (*EventFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open event report file: %v", errs.ErrIO, err)
	}
	return &EventFile{path: path, maxFiles: maxFiles, maxBytes: maxBytes, file: f}, nil
}

func (e *EventFile) writeLine(line string) error {
	if _, err := e.file.WriteString(line); err != nil {
		return fmt.Errorf("%w: write event report: %v", errs.ErrIO, err)
	}
	e.writesSince++
	if e.writesSince >= 10 {
		e.writesSince = 0
		return e.checkRollover()
	}
	return nil
}

func (e *EventFile) checkRollover() error {
	info, err := e.file.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat event report: %v", errs.ErrIO, err)
	}
	if info.Size() < e.maxBytes {
		return nil
	}
	return e.rollover()
}

func (e *EventFile) rollover() error {
	if err := e.file.Close(); err != nil {
		return fmt.Errorf("%w: close event report for rollover: %v", errs.ErrIO, err)
	}
	for i := e.maxFiles - 1; i >= 1; i-- {
		src := e.rotatedName(i)
		if i == e.maxFiles-1 {
			_ = os.Remove(src)
			continue
		}
		if _, err := os.Stat(src); err == nil {
			_ = os.Rename(src, e.rotatedName(i+1))
		}
	}
	if err := os.Rename(e.path, e.rotatedName(1)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: rename active event report: %v", errs.ErrIO, err)
	}
	f, err := os.OpenFile(e.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("%w: reopen active event report: %v", errs.ErrIO, err)
	}
	e.file = f
	return nil
}

func (e *EventFile) rotatedName(i int) string {
	return fmt.Sprintf("%s.%d", e.path, i)
}

func (e *EventFile) Close() error {
	return e.file.Close()
}
