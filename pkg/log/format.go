package log

import (
	"fmt"
	"strings"
	"time"
)

const maxFormattedLineBytes = 1024

// FormatLine renders rec into the Log Processor's wire format:
//
//	<seq> <HHMMSS> <subsystem>[<severity>] (<pid>) <file> <line> <payload>\n
//
// When wrap is true (every sink except syslog) the line is wrapped: the
// first line breaks at column 80, continuation lines are indented five
// spaces and wrap at column 75.
func FormatLine(rec Record, wrap bool) (string, error) {
	payload, err := renderPayload(rec)
	if err != nil {
		return "", err
	}

	header := fmt.Sprintf("%d %s %s[%s] (%d) %s %d ",
		rec.Sequence,
		time.Unix(rec.Timestamp, 0).UTC().Format("150405"),
		rec.Subsystem,
		rec.Severity,
		rec.PID,
		rec.SourceFile,
		rec.SourceLine,
	)

	line := header + payload
	// The trailing newline must always fit within the 1024-byte buffer,
	// so truncate the payload (never the header) if necessary.
	if len(line)+1 > maxFormattedLineBytes {
		overflow := len(line) + 1 - maxFormattedLineBytes
		if overflow < len(payload) {
			payload = payload[:len(payload)-overflow]
		} else {
			payload = ""
		}
		line = header + payload
	}

	if !wrap {
		return line + "\n", nil
	}
	return wrapLine(line) + "\n", nil
}

func renderPayload(rec Record) (string, error) {
	if rec.IsString {
		return rec.Message, nil
	}
	n := countVerbs(rec.Format)
	if n > len(rec.Args) {
		n = len(rec.Args)
	}
	args := make([]interface{}, n)
	for i := 0; i < n; i++ {
		args[i] = rec.Args[i]
	}
	return fmt.Sprintf(rec.Format, args...), nil
}

// countVerbs counts printf conversion specifiers in format, treating "%%"
// as a literal percent rather than a verb.
func countVerbs(format string) int {
	count := 0
	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			continue
		}
		if i+1 < len(format) && format[i+1] == '%' {
			i++
			continue
		}
		count++
	}
	return count
}

const (
	firstLineWidth = 80
	wrapWidth      = 75
	wrapIndent     = "     " // five spaces
)

// wrapLine wraps s at firstLineWidth for the first line and wrapWidth for
// every continuation line, indenting continuations by wrapIndent.
func wrapLine(s string) string {
	if len(s) <= firstLineWidth {
		return s
	}

	var b strings.Builder
	b.WriteString(s[:firstLineWidth])
	rest := s[firstLineWidth:]

	for len(rest) > 0 {
		b.WriteString("\n")
		b.WriteString(wrapIndent)
		width := wrapWidth
		if len(rest) <= width {
			b.WriteString(rest)
			rest = ""
			break
		}
		b.WriteString(rest[:width])
		rest = rest[width:]
	}
	return b.String()
}
