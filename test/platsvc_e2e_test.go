// Package test exercises the Mailbox, Logger and Fault pipelines together
// in-process, standing in for a live multi-node deployment: it wires a
// real arena-backed Logger queue and Fault queue, drives their Processor
// and Manager dispatch loops concurrently, and posts through a local
// mailbox, asserting on what the mailbox and the Fault pipeline deliver
// (the Logger record goes to stdout and is not checked).
package test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/platsvc/pkg/arena"
	"github.com/cuemby/platsvc/pkg/faults"
	"github.com/cuemby/platsvc/pkg/log"
	"github.com/cuemby/platsvc/pkg/mailbox"
)

type e2eMessage struct {
	id      uint16
	payload string
}

func (m e2eMessage) ID() uint16      { return m.id }
func (m e2eMessage) Priority() int   { return 0 }
func (m e2eMessage) Version() uint8  { return 1 }
func (m e2eMessage) Serialize() ([]byte, error) { return []byte(m.payload), nil }

func newLogQueue(t *testing.T) *arena.Queue[log.Record] {
	t.Helper()
	a, err := arena.Open("")
	require.NoError(t, err)
	mu, err := arena.NewProcessMutex("E2ELogSMQueue", "")
	require.NoError(t, err)
	sem := arena.NewSemaphore("E2ELogSemaphore")
	codec := arena.Codec[log.Record]{
		Marshal:   func(r log.Record) ([]byte, error) { return json.Marshal(r) },
		Unmarshal: func(b []byte) (log.Record, error) { var r log.Record; err := json.Unmarshal(b, &r); return r, err },
	}
	return arena.NewQueue(a, "E2ELogSMQueue", mu, sem, codec)
}

func newFaultQueue(t *testing.T) *arena.Queue[faults.Record] {
	t.Helper()
	a, err := arena.Open("")
	require.NoError(t, err)
	mu, err := arena.NewProcessMutex("E2EFaultSMQueue", "")
	require.NoError(t, err)
	sem := arena.NewSemaphore("E2EFaultSemaphore")
	codec := arena.Codec[faults.Record]{
		Marshal:   func(r faults.Record) ([]byte, error) { return json.Marshal(r) },
		Unmarshal: func(b []byte) (faults.Record, error) { var r faults.Record; err := json.Unmarshal(b, &r); return r, err },
	}
	return arena.NewQueue(a, "E2EFaultSMQueue", mu, sem, codec)
}

// TestMailboxLogAndFaultPipelinesTogether drives the three subsystems a
// single process would run side by side: an operator-facing mailbox, a
// drained Logger queue, and a drained Fault queue with an alarm that is
// raised and then cleared.
func TestMailboxLogAndFaultPipelinesTogether(t *testing.T) {
	mb, owner := mailbox.NewLocalMailbox("resourcemon-commands", 0)
	require.NoError(t, mb.Activate(owner))
	require.NoError(t, mb.Post(e2eMessage{id: 1, payload: "reload-thresholds"}, 0))

	msg, err := mb.GetMessageNonBlocking()
	require.NoError(t, err)
	require.Equal(t, "reload-thresholds", msg.(e2eMessage).payload)

	logQueue := newLogQueue(t)
	severities := log.NewSeverityMap()
	severities.Set("RESOURCEMON", log.SeverityInfo)
	logProducer := log.NewSharedProducer(100, severities, logQueue, logQueue.Semaphore())
	sink := log.StdoutSink{}
	logProcessor := log.NewProcessor(logQueue, sink)

	faultQueue := newFaultQueue(t)
	notifications := faults.NewChannelSink(8)
	inventory := faults.NewAlarmInventory()
	faultManager := faults.NewManager(faultQueue, notifications, inventory, nil)
	faultProducer := faults.NewProducer(100, faultQueue, faultQueue.Semaphore(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logDone := make(chan struct{})
	go func() { _ = logProcessor.Run(ctx); close(logDone) }()

	faultDone := make(chan struct{})
	go func() { _ = faultManager.Run(ctx); close(faultDone) }()

	require.NoError(t, logProducer.StringTraceLog("RESOURCEMON", log.SeverityInfo, "monitor.go", 42, "disk usage sampled"))
	require.NoError(t, faultProducer.RaiseAlarm("123456789", "disk-usage", "OS_RESOURCE", 1))
	require.NoError(t, faultProducer.ClearAlarm("123456789", "disk-usage", "OS_RESOURCE", 1))

	timeout := time.After(3 * time.Second)
	var raised, cleared bool
	for !raised || !cleared {
		select {
		case n := <-notifications.Notifications():
			switch n.Kind {
			case faults.KindRaise:
				raised = true
				require.Equal(t, "disk-usage", n.Rec.AlarmCode)
			case faults.KindClear:
				cleared = true
			}
		case <-timeout:
			t.Fatalf("timed out waiting for fault notifications: raised=%v cleared=%v", raised, cleared)
		}
	}
	require.Equal(t, 0, faultManager.Outstanding().Len())

	cancel()
	<-logDone
	<-faultDone
}
