package log

import "sync"

// SubsystemAll, when passed to SeverityMap.Set, writes every subsystem
// slot in one call.
const SubsystemAll = "*"

const defaultSeverity = SeverityInfo

// SeverityMap is the subsystem -> severity threshold table. It lives in
// this process's memory and is not placed in the arena, so a Set made in
// one process is not seen by producers in another. Writers call Set
// infrequently (operator action), readers call Get on the hot trace_log
// path. Both are guarded by the same mutex; log volume stays bounded by
// the consumer so lock contention here never becomes the bottleneck.
type SeverityMap struct {
	mu     sync.Mutex
	levels map[string]Severity
}

// NewSeverityMap creates a severity map with every subsystem defaulted to
// Info.
func NewSeverityMap() *SeverityMap {
	return &SeverityMap{levels: make(map[string]Severity)}
}

// Set installs level for subsystem. Passing SubsystemAll writes every
// subsystem slot already known to the map and changes the default applied
// to subsystems seen for the first time afterward.
func (m *SeverityMap) Set(subsystem string, level Severity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if subsystem == SubsystemAll {
		for k := range m.levels {
			m.levels[k] = level
		}
		m.levels[SubsystemAll] = level
		return
	}
	m.levels[subsystem] = level
}

// Get returns the configured severity threshold for subsystem, defaulting
// to whatever SubsystemAll was last set to (or SeverityInfo if never set).
func (m *SeverityMap) Get(subsystem string) Severity {
	m.mu.Lock()
	defer m.mu.Unlock()
	if level, ok := m.levels[subsystem]; ok {
		return level
	}
	if level, ok := m.levels[SubsystemAll]; ok {
		return level
	}
	return defaultSeverity
}

// SetAllMostVerbose configures the map so that local-only mode never
// filters a call.
func (m *SeverityMap) SetAllMostVerbose() {
	m.Set(SubsystemAll, SeverityDeveloper)
}
