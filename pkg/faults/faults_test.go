package faults

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/platsvc/pkg/arena"
)

func newFaultQueue(t *testing.T) *arena.Queue[Record] {
	t.Helper()
	a, err := arena.Open("")
	require.NoError(t, err)
	mu, err := arena.NewProcessMutex("FaultSMQueue", "")
	require.NoError(t, err)
	sem := arena.NewSemaphore("FaultSemaphore")
	codec := arena.Codec[Record]{
		Marshal:   func(r Record) ([]byte, error) { return json.Marshal(r) },
		Unmarshal: func(b []byte) (Record, error) { var r Record; err := json.Unmarshal(b, &r); return r, err },
	}
	return arena.NewQueue(a, "FaultSMQueue", mu, sem, codec)
}

// TestAlarmCoalescingAndIdempotence raises and clears the same key ten
// times each, interleaved, and checks the sink sees exactly ten raises
// and ten clears in alternation, never twenty of either.
func TestAlarmCoalescingAndIdempotence(t *testing.T) {
	queue := newFaultQueue(t)
	producer := NewProducer(1, queue, queue.Semaphore(), nil)

	sink := NewChannelSink(64)
	inventory := NewAlarmInventory()
	mgr := NewManager(queue, sink, inventory, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = mgr.Run(ctx)
		close(done)
	}()

	for i := 0; i < 10; i++ {
		require.NoError(t, producer.RaiseAlarm("123456789", "disk-usage", "OS_RESOURCE", 1))
		require.NoError(t, producer.ClearAlarm("123456789", "disk-usage", "OS_RESOURCE", 1))
	}

	raises, clears := 0, 0
	timeout := time.After(3 * time.Second)
	for raises+clears < 20 {
		select {
		case n := <-sink.Notifications():
			switch n.Kind {
			case KindRaise:
				raises++
			case KindClear:
				clears++
			}
		case <-timeout:
			t.Fatalf("timed out waiting for notifications: raises=%d clears=%d", raises, clears)
		}
	}
	require.Equal(t, 10, raises)
	require.Equal(t, 10, clears)
	require.Equal(t, 0, mgr.Outstanding().Len())

	cancel()
	<-done
}

// TestAlarmCoalescingSuppressesRepeatRaise is the narrower unit-level
// check: two raises for the same key with no intervening clear produce
// only one forwarded raise.
func TestAlarmCoalescingSuppressesRepeatRaise(t *testing.T) {
	outstanding := NewOutstandingAlarms()
	rec := Record{NEID: "1", AlarmCode: "cpu-usage", ManagedObject: "OS_RESOURCE", Instance: 1}

	require.False(t, outstanding.Upsert(rec)) // first raise: not already present
	require.True(t, outstanding.Upsert(rec))  // repeat: already present, coalesce
	require.Equal(t, 1, outstanding.Len())

	require.True(t, outstanding.Clear(rec.key()))
	require.False(t, outstanding.Clear(rec.key())) // clearing an absent key still reports absence...
	require.Equal(t, 0, outstanding.Len())
}

func TestReportEventAppendsToEventFile(t *testing.T) {
	dir := t.TempDir()
	events, err := NewEventReportFile(dir+"/events.log", 3, 1<<20)
	require.NoError(t, err)

	queue := newFaultQueue(t)
	producer := NewProducer(1, queue, queue.Semaphore(), nil)
	sink := NewChannelSink(8)
	mgr := NewManager(queue, sink, NewAlarmInventory(), events)

	require.NoError(t, producer.ReportEvent("startup", "OS_RESOURCE", 1))

	rec, err := queue.DequeueHead()
	require.NoError(t, err)
	require.Equal(t, KindEvent, rec.Kind)
	require.NoError(t, mgr.process(rec))
	require.NoError(t, events.Close())
}
