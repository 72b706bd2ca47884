package faults

import "sync"

// OutstandingAlarms is the Fault Manager's mutex-guarded table of
// currently-raised alarms, keyed by (NEID, AlarmCode, ManagedObject,
// Instance). It is the sole mechanism enforcing at-most-once raise
// semantics: a repeat raise for a key already present is coalesced, and a
// clear for a key absent is still forwarded so producers can issue
// idempotent clears.
type OutstandingAlarms struct {
	mu    sync.Mutex
	table map[Key]Record
}

func NewOutstandingAlarms() *OutstandingAlarms {
	return &OutstandingAlarms{table: make(map[Key]Record)}
}

// Upsert inserts or overwrites the outstanding entry for rec's key and
// reports whether it was already present (i.e. this raise must be
// coalesced rather than forwarded).
func (o *OutstandingAlarms) Upsert(rec Record) (alreadyRaised bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	k := rec.key()
	_, alreadyRaised = o.table[k]
	o.table[k] = rec
	return alreadyRaised
}

// Clear removes key's entry and reports whether it was present.
func (o *OutstandingAlarms) Clear(k Key) (present bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, present = o.table[k]
	delete(o.table, k)
	return present
}

// Len reports the number of currently outstanding alarms, for tests and
// metrics.
func (o *OutstandingAlarms) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.table)
}

// AlarmInventory maps an alarm code to its runtime-reassignable severity.
// Resource Monitor's three OS-resource alarms (and any others) consult it
// at raise time so the wire severity downstream isn't fixed at the
// producer.
type AlarmInventory struct {
	mu    sync.Mutex
	table map[string]Severity
}

func NewAlarmInventory() *AlarmInventory {
	return &AlarmInventory{table: make(map[string]Severity)}
}

// Set installs the severity to assign raises of alarmCode.
func (inv *AlarmInventory) Set(alarmCode string, severity Severity) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.table[alarmCode] = severity
}

// Severity returns the configured severity for alarmCode, defaulting to
// Indeterminate (the wire default a raise carries before reassignment) if
// never configured.
func (inv *AlarmInventory) Severity(alarmCode string) Severity {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if s, ok := inv.table[alarmCode]; ok {
		return s
	}
	return SeverityIndeterminate
}
