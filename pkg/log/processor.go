package log

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cuemby/platsvc/pkg/arena"
	"github.com/cuemby/platsvc/pkg/errs"
	"github.com/cuemby/platsvc/pkg/metrics"
	"github.com/cuemby/platsvc/pkg/slog"
)

// Dequeuer is the minimal surface Processor needs from the shared log
// queue; arena.Queue[Record] satisfies it.
type Dequeuer interface {
	DequeueHead() (Record, error)
	IsEmpty() bool
	Len() int
	Semaphore() *arena.Semaphore
}

// Processor is the Log Processor daemon's dispatch loop: block on the
// queue's semaphore and, for each release, dequeue one record, format it
// and write it to its sink.
type Processor struct {
	queue Dequeuer
	sink  Sink

	shutdownGrace time.Duration
}

// NewProcessor returns a processor that drains queue into sink.
func NewProcessor(queue Dequeuer, sink Sink) *Processor {
	return &Processor{queue: queue, sink: sink, shutdownGrace: 200 * time.Millisecond}
}

// Run drives the dispatch loop until ctx is cancelled. On cancellation it
// waits shutdownGrace so in-flight producers can still post, then drains
// whatever remains with non-blocking reads, closes the sink, and returns.
func (p *Processor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			time.Sleep(p.shutdownGrace)
			p.drainNonBlocking()
			return p.sink.Close()
		default:
		}

		waitCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		err := p.queue.Semaphore().Wait(waitCtx)
		cancel()
		if err != nil {
			continue // either ctx cancelled (handled above) or poll timeout
		}

		if err := p.drainOne(); err != nil && !errors.Is(err, errs.ErrQueueEmpty) {
			slog.Logger.Warn().Err(err).Msg("log processor: failed to process record")
		}
	}
}

func (p *Processor) drainOne() error {
	rec, err := p.queue.DequeueHead()
	if err != nil {
		return err
	}
	metrics.LogQueueDepth.Set(float64(p.queue.Len()))
	return p.writeRecord(rec)
}

func (p *Processor) drainNonBlocking() {
	for {
		rec, err := p.queue.DequeueHead()
		if err != nil {
			return
		}
		if err := p.writeRecord(rec); err != nil {
			slog.Logger.Warn().Err(err).Msg("log processor: failed to flush record during shutdown")
		}
	}
}

func (p *Processor) writeRecord(rec Record) error {
	sinkName := fmt.Sprintf("%T", p.sink)
	line, err := FormatLine(rec, p.sink.Wrap())
	if err != nil {
		return err
	}
	if err := p.sink.Write(line, rec); err != nil {
		// io-error on the sink: log to the local fallback and continue.
		// One line of output lost beats a crashed daemon.
		slog.Logger.Error().Err(err).Msg("log processor: sink write failed")
		metrics.LogSinkErrorsTotal.WithLabelValues(sinkName).Inc()
		return nil
	}
	metrics.LogRecordsProcessedTotal.WithLabelValues(sinkName).Inc()
	return nil
}
