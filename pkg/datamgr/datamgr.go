// Package datamgr is the Data Manager facade: a pooled connection-set
// provider with reserve/release and command execution, named by
// interface only here since no concrete PostgreSQL/ODBC dialect is
// wired up; the concrete loader reads the one configuration grammar
// this repo actually needs: the Resource Monitor's alarm-code/
// high-water-mark threshold table, via an INI file.
package datamgr

import (
	"fmt"

	"gopkg.in/ini.v1"
)

// ConnectionSet is the facade every consumer of the Data Manager depends
// on. Only Query is used today (a one-shot threshold read at Resource
// Monitor init); Exec writes a value back and nothing in this repo calls
// it. The interface has no reserve/release or prepared-statement calls.
type ConnectionSet interface {
	Query(section, key string) (string, error)
	Exec(section, key, value string) error
	Close() error
}

// Threshold is one row of the alarm-code/high-water-mark table Resource
// Monitor reads at init.
type Threshold struct {
	AlarmCode     string
	HighWaterMark int
}

// INIConnectionSet implements ConnectionSet over an INI file, grounded on
// the project's choice of gopkg.in/ini.v1 for the Data Manager's
// configuration grammar.
type INIConnectionSet struct {
	path string
	file *ini.File
}

// OpenINIConnectionSet loads path as an INI-backed connection set.
func OpenINIConnectionSet(path string) (*INIConnectionSet, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("datamgr: load %s: %w", path, err)
	}
	return &INIConnectionSet{path: path, file: f}, nil
}

func (c *INIConnectionSet) Query(section, key string) (string, error) {
	sec, err := c.file.GetSection(section)
	if err != nil {
		return "", fmt.Errorf("datamgr: section %s: %w", section, err)
	}
	if !sec.HasKey(key) {
		return "", fmt.Errorf("datamgr: %s.%s not found", section, key)
	}
	return sec.Key(key).String(), nil
}

func (c *INIConnectionSet) Exec(section, key, value string) error {
	c.file.Section(section).Key(key).SetValue(value)
	return c.file.SaveTo(c.path)
}

func (c *INIConnectionSet) Close() error { return nil }

// ThresholdSection is the INI section name Resource Monitor reads its
// three OS-resource alarm thresholds from.
const ThresholdSection = "resource_thresholds"

// LoadThresholds reads the disk/cpu/memory high-water-mark percentages
// from conns. A failed read is not fatal: the caller is expected to log
// and continue with a zero threshold (every sample then raises), so this
// function returns whatever it could parse alongside the first error
// encountered rather than aborting on the first missing key.
func LoadThresholds(conns ConnectionSet) (map[string]int, error) {
	thresholds := make(map[string]int)
	var firstErr error
	for _, code := range []string{"disk-usage", "cpu-usage", "memory-usage"} {
		v, err := conns.Query(ThresholdSection, code)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			thresholds[code] = 0
			continue
		}
		var pct int
		if _, scanErr := fmt.Sscanf(v, "%d", &pct); scanErr != nil {
			if firstErr == nil {
				firstErr = scanErr
			}
			thresholds[code] = 0
			continue
		}
		thresholds[code] = pct
	}
	return thresholds, firstErr
}
