package log

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/platsvc/pkg/arena"
	"github.com/cuemby/platsvc/pkg/errs"
)

func newSharedPipeline(t *testing.T) (*Producer, *arena.Queue[Record]) {
	t.Helper()
	a, err := arena.Open("")
	require.NoError(t, err)
	mu, err := arena.NewProcessMutex("LogSMQueue", "")
	require.NoError(t, err)
	sem := arena.NewSemaphore("LogSemaphore")
	codec := arena.Codec[Record]{
		Marshal:   func(r Record) ([]byte, error) { return json.Marshal(r) },
		Unmarshal: func(b []byte) (Record, error) { var r Record; err := json.Unmarshal(b, &r); return r, err },
	}
	queue := arena.NewQueue(a, "LogSMQueue", mu, sem, codec)

	severities := NewSeverityMap()
	producer := NewSharedProducer(42, severities, queue, sem)
	return producer, queue
}

// TestLogFilterAndRoundTrip checks that a DEBUG call below the configured
// INFO threshold produces nothing, while an INFO call at threshold
// produces exactly the expected formatted line.
func TestLogFilterAndRoundTrip(t *testing.T) {
	producer, queue := newSharedPipeline(t)
	severities := NewSeverityMap()
	severities.Set("MSGMGR", SeverityInfo)
	producer.severities = severities

	require.NoError(t, producer.TraceLog("MSGMGR", SeverityDebug, "a.c", 10, "x=%d", [6]int64{7}))
	require.NoError(t, producer.TraceLog("MSGMGR", SeverityInfo, "a.c", 11, "y=%d", [6]int64{8}))

	rec, err := queue.DequeueHead()
	require.NoError(t, err)
	require.Equal(t, "MSGMGR", rec.Subsystem)
	require.Equal(t, SeverityInfo, rec.Severity)
	require.Equal(t, 11, rec.SourceLine)

	_, err = queue.DequeueHead()
	require.ErrorIs(t, err, errs.ErrQueueEmpty) // the DEBUG call was dropped, nothing else queued

	line, err := FormatLine(rec, true)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(line, "MSGMGR[INFO] (42) a.c 11 y=8\n"))
}

func TestLogSeverityAllSetsEveryKnownSubsystem(t *testing.T) {
	m := NewSeverityMap()
	m.Set("A", SeverityError)
	m.Set("B", SeverityDebug)
	m.Set(SubsystemAll, SeverityWarn)
	require.Equal(t, SeverityWarn, m.Get("A"))
	require.Equal(t, SeverityWarn, m.Get("B"))
	require.Equal(t, SeverityWarn, m.Get("C")) // unseen subsystem picks up the ALL default
}

func TestRecordEqualityIncludesIsString(t *testing.T) {
	base := Record{Subsystem: "X", Message: "same", IsString: true}
	other := base
	other.IsString = false
	other.Format = "same" // deliberately identical bytes in a different field
	require.False(t, base.Equal(other))
}

// TestFileSinkRollover configures a 3-file, 1000-byte rollover FileSink
// and writes enough bytes that at least one rollover occurs.
func TestFileSinkRollover(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log.txt")
	sink, err := NewFileSink(path, 3, 1000)
	require.NoError(t, err)

	rec := Record{Subsystem: "SYS", Severity: SeverityInfo, PID: 1, SourceFile: "x.c", SourceLine: 1,
		IsString: true, Message: strings.Repeat("x", 60)}

	for i := 0; i < 300; i++ {
		rec.Sequence = uint8(i)
		line, err := FormatLine(rec, true)
		require.NoError(t, err)
		require.NoError(t, sink.Write(line, rec))
	}
	require.NoError(t, sink.Close())

	_, err = os.Stat(path)
	require.NoError(t, err)
	_, err = os.Stat(path + ".1")
	require.NoError(t, err)
	_, err = os.Stat(path + ".3")
	require.True(t, os.IsNotExist(err))
}

func TestProcessorDrainsOnShutdown(t *testing.T) {
	producer, queue := newSharedPipeline(t)
	severities := NewSeverityMap()
	severities.SetAllMostVerbose()
	producer.severities = severities

	for i := 0; i < 5; i++ {
		require.NoError(t, producer.StringTraceLog("SYS", SeverityInfo, "a.c", 1, "hello"))
	}

	var sink fakeSink
	proc := NewProcessor(queue, &sink)
	proc.shutdownGrace = 0

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, proc.Run(ctx))

	require.GreaterOrEqual(t, len(sink.lines), 1)
}

type fakeSink struct {
	lines []string
}

func (f *fakeSink) Write(line string, _ Record) error {
	f.lines = append(f.lines, line)
	return nil
}
func (f *fakeSink) Wrap() bool   { return true }
func (f *fakeSink) Close() error { return nil }
