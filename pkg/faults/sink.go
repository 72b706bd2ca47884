package faults

// NotificationSink is the outbound interface to the EMS. The ORB/CORBA
// wire details of a real EMS Client Agent are out of scope here; only
// the raise/clear/event contract is implemented, named by interface.
type NotificationSink interface {
	Raise(rec Record) error
	Clear(rec Record) error
	Event(rec Record) error
}

// ChannelSink forwards every notification onto a Go channel, used by the
// in-process test harness to assert on the exact raise/clear sequence the
// Fault Manager produced.
type ChannelSink struct {
	ch chan Notification
}

// Notification is one forwarded call, tagged with which of the three
// methods produced it.
type Notification struct {
	Kind Kind
	Rec  Record
}

func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{ch: make(chan Notification, buffer)}
}

func (s *ChannelSink) Raise(rec Record) error {
	s.ch <- Notification{Kind: KindRaise, Rec: rec}
	return nil
}
func (s *ChannelSink) Clear(rec Record) error {
	s.ch <- Notification{Kind: KindClear, Rec: rec}
	return nil
}
func (s *ChannelSink) Event(rec Record) error {
	s.ch <- Notification{Kind: KindEvent, Rec: rec}
	return nil
}

func (s *ChannelSink) Notifications() <-chan Notification {
	return s.ch
}

// LoggingSink forwards every notification to the ambient operational
// logger, used by daemons that have no real EMS connection; cmd/faultmgr
// uses it in every mode.
type LoggingSink struct {
	warn func(format string, args ...interface{})
}

func NewLoggingSink(warn func(format string, args ...interface{})) *LoggingSink {
	return &LoggingSink{warn: warn}
}

func (s *LoggingSink) Raise(rec Record) error {
	s.warn("fault raise: neid=%s code=%s mo=%s instance=%d severity=%s", rec.NEID, rec.AlarmCode, rec.ManagedObject, rec.Instance, rec.Severity)
	return nil
}
func (s *LoggingSink) Clear(rec Record) error {
	s.warn("fault clear: neid=%s code=%s mo=%s instance=%d", rec.NEID, rec.AlarmCode, rec.ManagedObject, rec.Instance)
	return nil
}
func (s *LoggingSink) Event(rec Record) error {
	s.warn("fault event: code=%s mo=%s instance=%d", rec.EventCode, rec.ManagedObject, rec.Instance)
	return nil
}
