// Command resourcemon is the Resource Monitor daemon: it periodically
// samples disk, CPU and memory, raising or clearing one alarm per
// resource through the Fault pipeline against configured thresholds.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cuemby/platsvc/pkg/arena"
	"github.com/cuemby/platsvc/pkg/datamgr"
	"github.com/cuemby/platsvc/pkg/faults"
	"github.com/cuemby/platsvc/pkg/mailbox"
	"github.com/cuemby/platsvc/pkg/metrics"
	"github.com/cuemby/platsvc/pkg/resourcemon"
	"github.com/cuemby/platsvc/pkg/slog"
	"github.com/cuemby/platsvc/pkg/sysinfo"
)

const (
	backingStorePath  = "/tmp/platform.backingstore"
	defaultFstabPath  = "/etc/fstab"
	defaultThresholds = "/etc/platsvc/thresholds.ini"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "resourcemon: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "resourcemon",
	Short: "Samples disk, CPU and memory and raises/clears OS-resource alarms",
	RunE:  run,
}

func init() {
	rootCmd.Flags().BoolP("local", "l", false, "local-only logger (accepted; fault trace lines are always written to stdout)")
	rootCmd.Flags().String("thresholds", defaultThresholds, "path to the alarm-code/high-water-mark INI file")
	rootCmd.Flags().String("fstab", defaultFstabPath, "path to the fstab-formatted mount list")
	rootCmd.Flags().Bool("test-alarm-loop", false, "run the raise/clear-ten-times diagnostic scaffold instead of real sampling")
	rootCmd.Flags().String("metrics-addr", "127.0.0.1:9101", "address to serve /metrics, /health, /ready and /live on")
}

func run(cmd *cobra.Command, _ []string) error {
	slog.Init(slog.Config{Level: slog.InfoLevel})

	neid := sysinfo.MustNEID(func(format string, args ...interface{}) {
		slog.Logger.Fatal().Msgf(format, args...)
	})

	a, err := arena.Open(backingStorePath)
	if err != nil {
		return fmt.Errorf("open backing store: %w", err)
	}
	defer a.Close()

	producer, err := buildFaultProducer(a)
	if err != nil {
		return err
	}

	thresholdsPath, _ := cmd.Flags().GetString("thresholds")
	var conns datamgr.ConnectionSet
	if ini, iniErr := datamgr.OpenINIConnectionSet(thresholdsPath); iniErr != nil {
		slog.Logger.Warn().Err(iniErr).Msg("resourcemon: thresholds file unavailable, continuing with zero thresholds")
		conns = unavailableConnectionSet{}
	} else {
		conns = ini
	}

	fstabPath, _ := cmd.Flags().GetString("fstab")
	mounts, err := resourcemon.LoadMountPoints(fstabPath)
	if err != nil {
		slog.Logger.Warn().Err(err).Msg("resourcemon: fstab unavailable, disk sampling skipped")
	}

	testAlarmLoop, _ := cmd.Flags().GetBool("test-alarm-loop")

	mb, owner := mailbox.NewLocalMailbox("resourcemon", 0)
	if err := mb.Activate(owner); err != nil {
		return fmt.Errorf("activate mailbox: %w", err)
	}

	mon := resourcemon.NewMonitor(resourcemon.Config{
		NEID:          neid,
		Mounts:        mounts,
		TestAlarmLoop: testAlarmLoop,
	}, producer, conns, mb, owner)

	metrics.RegisterComponent("resourcemon", true, "sampling")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	serveMetrics(metricsAddr)

	ctx, stop := signalContext()
	defer stop()

	slog.Logger.Info().Str("neid", neid).Msg("resourcemon: started")
	return mon.Run(ctx)
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Logger.Warn().Err(err).Msg("resourcemon: metrics server exited")
		}
	}()
}

// unavailableConnectionSet satisfies datamgr.ConnectionSet when the
// configured thresholds file could not be opened, so LoadThresholds's
// fail-loud-but-continue path runs instead of a nil-pointer dereference.
type unavailableConnectionSet struct{}

func (unavailableConnectionSet) Query(section, key string) (string, error) {
	return "", fmt.Errorf("resourcemon: no connection set configured")
}
func (unavailableConnectionSet) Exec(section, key, value string) error {
	return fmt.Errorf("resourcemon: no connection set configured")
}
func (unavailableConnectionSet) Close() error { return nil }

func buildFaultProducer(a *arena.Arena) (*faults.Producer, error) {
	mu, err := arena.NewProcessMutex("FaultSMQueueMutex", "/tmp")
	if err != nil {
		return nil, fmt.Errorf("open fault queue mutex: %w", err)
	}
	sem := arena.NewSemaphore("FaultQueueSemaphore")
	codec := arena.Codec[faults.Record]{
		Marshal:   func(r faults.Record) ([]byte, error) { return json.Marshal(r) },
		Unmarshal: func(b []byte) (faults.Record, error) { var r faults.Record; err := json.Unmarshal(b, &r); return r, err },
	}
	queue := arena.NewQueue(a, "FaultSMQueue", mu, sem, codec)
	return faults.NewProducer(os.Getpid(), queue, sem, nil), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
		<-sigCh
		os.Exit(1)
	}()
	return ctx, cancel
}
