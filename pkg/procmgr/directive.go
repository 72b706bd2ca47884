// Package procmgr implements the Process Manager: the service-
// configuration grammar parser, the supervisor that spawns and restarts
// dynamic entries, and the Shutdown that kills and waits for children
// (deactivating the supervisor's mailbox first is left to the caller).
package procmgr

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Kind is the <kind> token of a dynamic directive.
type Kind string

const (
	KindServiceObject Kind = "service-object"
	KindModule        Kind = "module"
	KindStream        Kind = "stream"
)

// Action distinguishes the five directive verbs a service-configuration
// line can use.
type Action string

const (
	ActionStatic  Action = "static"
	ActionDynamic Action = "dynamic"
	ActionRemove  Action = "remove"
	ActionSuspend Action = "suspend"
	ActionResume  Action = "resume"
)

// Directive is one parsed line of the service-configuration file.
type Directive struct {
	Action  Action
	Name    string
	Kind    Kind
	Library string // "<library>:<factory>" split into Library/Factory
	Factory string
	Argv    string
}

// ParseDirectives reads the small line-oriented service-configuration
// grammar: one directive per line, blank lines and '#' comments ignored.
// The grammar is simpler than INI, so it gets a hand-written parser
// rather than reusing gopkg.in/ini.v1 (reserved for the genuinely
// INI-shaped Data Manager file).
func ParseDirectives(r io.Reader) ([]Directive, error) {
	var directives []Directive
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		d, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("procmgr: line %d: %w", lineNo, err)
		}
		directives = append(directives, d)
	}
	return directives, scanner.Err()
}

func parseLine(line string) (Directive, error) {
	fields := splitQuoted(line)
	if len(fields) == 0 {
		return Directive{}, fmt.Errorf("empty directive")
	}

	switch Action(fields[0]) {
	case ActionStatic:
		if len(fields) < 2 {
			return Directive{}, fmt.Errorf("static: missing name")
		}
		d := Directive{Action: ActionStatic, Name: fields[1]}
		if len(fields) > 2 {
			d.Argv = fields[2]
		}
		return d, nil

	case ActionDynamic:
		if len(fields) < 4 {
			return Directive{}, fmt.Errorf("dynamic: expected name kind library:factory")
		}
		libFactory := strings.SplitN(fields[3], ":", 2)
		if len(libFactory) != 2 {
			return Directive{}, fmt.Errorf("dynamic: %q is not library:factory", fields[3])
		}
		d := Directive{
			Action:  ActionDynamic,
			Name:    fields[1],
			Kind:    Kind(fields[2]),
			Library: libFactory[0],
			Factory: libFactory[1],
		}
		if len(fields) > 4 {
			d.Argv = fields[4]
		}
		return d, nil

	case ActionRemove, ActionSuspend, ActionResume:
		if len(fields) < 2 {
			return Directive{}, fmt.Errorf("%s: missing name", fields[0])
		}
		return Directive{Action: Action(fields[0]), Name: fields[1]}, nil

	default:
		return Directive{}, fmt.Errorf("unknown directive %q", fields[0])
	}
}

// splitQuoted splits on whitespace but keeps a "..." quoted argv token
// as one field, so an argv string containing spaces survives intact.
func splitQuoted(line string) []string {
	var fields []string
	var cur strings.Builder
	inQuotes := false
	flush := func() {
		if cur.Len() > 0 {
			fields = append(fields, cur.String())
			cur.Reset()
		}
	}
	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case (r == ' ' || r == '\t') && !inQuotes:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return fields
}
