package resourcemon

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cuemby/platsvc/pkg/datamgr"
	"github.com/cuemby/platsvc/pkg/faults"
	"github.com/cuemby/platsvc/pkg/mailbox"
	"github.com/cuemby/platsvc/pkg/metrics"
	"github.com/cuemby/platsvc/pkg/slog"
)

const (
	alarmDiskUsage   = "disk-usage"
	alarmCPUUsage    = "cpu-usage"
	alarmMemoryUsage = "memory-usage"
	managedObjectOSResource = "OS_RESOURCE"
)

// Config tunes one Monitor instance.
type Config struct {
	NEID     string
	Interval time.Duration // default 45s
	Mounts   []MountPoint

	// TestAlarmLoop runs a raise/clear-ten-times diagnostic scaffold
	// instead of real sampling, useful for exercising alarm wiring
	// end-to-end without waiting on real thresholds. Default false.
	TestAlarmLoop bool
}

// Monitor is the Resource Monitor daemon: it activates the mailbox it is
// given (cmd/resourcemon passes a local in-process mailbox, which other
// processes and nodes cannot reach) and drives a periodic timer that
// samples disk, CPU and memory, each raising or clearing one alarm through
// the Fault pipeline.
type Monitor struct {
	cfg        Config
	producer   *faults.Producer
	thresholds map[string]int
	cpu        CPUSampler
	mb         mailbox.Mailbox
	owner      mailbox.OwnerHandle
}

// NewMonitor constructs a Monitor. thresholds is read once from conns; on
// failure it logs and continues with zero thresholds (every sample then
// raises).
func NewMonitor(cfg Config, producer *faults.Producer, conns datamgr.ConnectionSet, mb mailbox.Mailbox, owner mailbox.OwnerHandle) *Monitor {
	if cfg.Interval == 0 {
		cfg.Interval = 45 * time.Second
	}
	thresholds, err := datamgr.LoadThresholds(conns)
	if err != nil {
		slog.Logger.Warn().Err(err).Msg("resourcemon: threshold load failed, continuing with zero thresholds")
	}
	return &Monitor{cfg: cfg, producer: producer, thresholds: thresholds, mb: mb, owner: owner}
}

// Run drives the periodic tick until ctx is cancelled. On cancellation it
// deactivates the mailbox; the timer itself stops simply by Run returning.
func (m *Monitor) Run(ctx context.Context) error {
	if err := m.mb.Activate(m.owner); err != nil {
		return fmt.Errorf("resourcemon: activate mailbox: %w", err)
	}
	defer m.mb.Deactivate(m.owner)

	if m.cfg.TestAlarmLoop {
		return m.runTestAlarmLoop(ctx)
	}

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := m.tick(ctx); err != nil {
				slog.Logger.Warn().Err(err).Msg("resourcemon: tick failed")
			}
		}
	}
}

// tick fans the three samples out concurrently via errgroup so a slow
// disk stat doesn't delay the CPU or memory reading on the same tick.
func (m *Monitor) tick(ctx context.Context) error {
	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error { return m.sampleDiskAll() })
	g.Go(func() error { return m.sampleCPU() })
	g.Go(func() error { return m.sampleMemory() })

	return g.Wait()
}

func (m *Monitor) sampleDiskAll() error {
	for _, mp := range m.cfg.Mounts {
		timer := metrics.NewTimer()
		total, free, available, files, freeFiles, err := ReadDiskStat(mp.Path)
		timer.ObserveDurationVec(metrics.SampleDuration, "disk")
		if err != nil {
			slog.Logger.Warn().Err(err).Str("mount", mp.Path).Msg("resourcemon: disk sample failed")
			metrics.SampleErrorsTotal.WithLabelValues("disk").Inc()
			continue
		}
		sample := SampleDisk(mp.Path, total, free, available, files, freeFiles)
		metrics.ResourceUsagePercent.WithLabelValues("disk", mp.Path).Set(sample.UsedPercent)
		if err := m.producer.ReportEvent("disk-sample", mp.Path, 0); err != nil {
			return err
		}
		if err := m.raiseOrClear(alarmDiskUsage, mp.Path, 0, sample.UsedPercent); err != nil {
			return err
		}
	}
	return nil
}

func (m *Monitor) sampleCPU() error {
	timer := metrics.NewTimer()
	jiffies, err := ReadCPUJiffies()
	timer.ObserveDurationVec(metrics.SampleDuration, "cpu")
	if err != nil {
		slog.Logger.Warn().Err(err).Msg("resourcemon: cpu sample failed")
		metrics.SampleErrorsTotal.WithLabelValues("cpu").Inc()
		return nil
	}
	pct := m.cpu.Sample(jiffies)
	metrics.ResourceUsagePercent.WithLabelValues("cpu", managedObjectOSResource).Set(float64(pct))
	if err := m.producer.ReportEvent("cpu-sample", managedObjectOSResource, 0); err != nil {
		return err
	}
	return m.raiseOrClear(alarmCPUUsage, managedObjectOSResource, 0, float64(pct))
}

func (m *Monitor) sampleMemory() error {
	timer := metrics.NewTimer()
	reading, err := ReadMemoryInfo()
	timer.ObserveDurationVec(metrics.SampleDuration, "memory")
	if err != nil {
		slog.Logger.Warn().Err(err).Msg("resourcemon: memory sample failed")
		metrics.SampleErrorsTotal.WithLabelValues("memory").Inc()
		return nil
	}
	sample := SampleMemory(reading)
	metrics.ResourceUsagePercent.WithLabelValues("memory", managedObjectOSResource).Set(sample.PhysUsedPercent)
	slog.Logger.Debug().Float64("swap_used_pct", sample.SwapUsedPercent).Msg("resourcemon: swap measured, not alarmed")
	if err := m.producer.ReportEvent("memory-sample", managedObjectOSResource, 0); err != nil {
		return err
	}
	return m.raiseOrClear(alarmMemoryUsage, managedObjectOSResource, 0, sample.PhysUsedPercent)
}

func (m *Monitor) raiseOrClear(alarmCode, managedObject string, instance int, pct float64) error {
	hwm := float64(m.thresholds[alarmCode])
	if pct > hwm {
		return m.producer.RaiseAlarm(m.cfg.NEID, alarmCode, managedObject, instance)
	}
	return m.producer.ClearAlarm(m.cfg.NEID, alarmCode, managedObject, instance)
}

// runTestAlarmLoop raises then clears the same key ten times, sleeping
// 1s between each pair. It only runs when explicitly enabled via
// Config.TestAlarmLoop.
func (m *Monitor) runTestAlarmLoop(ctx context.Context) error {
	for i := 0; i < 10; i++ {
		if err := m.producer.RaiseAlarm(m.cfg.NEID, alarmDiskUsage, managedObjectOSResource, 1); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Second):
		}
		if err := m.producer.ClearAlarm(m.cfg.NEID, alarmDiskUsage, managedObjectOSResource, 1); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Second):
		}
	}
	return nil
}
