// Command faultmgr is the Fault Manager / EMS Client Agent: it drains the
// shared fault queue, applies at-most-once alarm semantics, and forwards
// notifications toward an EMS notification sink.
//
// The ORB/CORBA wire and naming-service details of a real EMS Client
// Agent are named by interface only (faults.NotificationSink); this
// binary always runs with a LoggingSink until a concrete EMS transport
// is wired in, so -h/-d/-v/-e/-i/-r are accepted for CLI compatibility
// but do not yet change the outbound transport.
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
	"github.com/cuemby/platsvc/pkg/faults"
	"github.com/cuemby/platsvc/pkg/metrics"
	"github.com/cuemby/platsvc/pkg/slog"
)

const backingStorePath = "/tmp/platform.backingstore"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "faultmgr: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "faultmgr",
	Short: "Drains the shared fault queue and forwards alarms/events to the EMS",
	RunE:  run,
}

func init() {
	rootCmd.Flags().BoolP("local", "l", false, "local logger mode")
	rootCmd.Flags().StringP("host", "h", "", "EMS host, dotted-decimal")
	rootCmd.Flags().BoolP("orb-debug", "d", false, "enable ORB debug")
	rootCmd.Flags().IntP("verbosity", "v", 0, "ORB verbosity level")
	rootCmd.Flags().StringP("log-file", "f", "", "ORB log file")
	rootCmd.Flags().StringP("endpoint", "e", "", "ORB endpoint")
	rootCmd.Flags().StringP("initref", "i", "", "ORB initial reference")
	rootCmd.Flags().StringP("default-initref", "r", "", "ORB default initial reference")

	rootCmd.Flags().String("event-file", "", "path to the rolling informational event-report file")
	rootCmd.Flags().Int("event-max-files", 5, "number of event-report files to keep, the active one included")
	rootCmd.Flags().Int64("event-max-bytes", 10*1024*1024, "event-report rollover size in bytes")
	rootCmd.Flags().String("metrics-addr", "127.0.0.1:9103", "address to serve /metrics, /health, /ready and /live on")
}

func run(cmd *cobra.Command, _ []string) error {
	slog.Init(slog.Config{Level: slog.InfoLevel})

	a, err := arena.Open(backingStorePath)
	if err != nil {
		return fmt.Errorf("open backing store: %w", err)
	}
	defer a.Close()

	mu, err := arena.NewProcessMutex("FaultSMQueueMutex", "/tmp")
	if err != nil {
		return fmt.Errorf("open fault queue mutex: %w", err)
	}
	sem := arena.NewSemaphore("FaultQueueSemaphore")
	codec := arena.Codec[faults.Record]{
		Marshal:   func(r faults.Record) ([]byte, error) { return json.Marshal(r) },
		Unmarshal: func(b []byte) (faults.Record, error) { var r faults.Record; err := json.Unmarshal(b, &r); return r, err },
	}
	queue := arena.NewQueue(a, "FaultSMQueue", mu, sem, codec)

	sink := faults.NewLoggingSink(func(format string, args ...interface{}) {
		slog.Logger.Warn().Msgf(format, args...)
	})

	var events *faults.EventFile
	if path, _ := cmd.Flags().GetString("event-file"); path != "" {
		maxFiles, _ := cmd.Flags().GetInt("event-max-files")
		maxBytes, _ := cmd.Flags().GetInt64("event-max-bytes")
		events, err = faults.NewEventReportFile(path, maxFiles, maxBytes)
		if err != nil {
			return fmt.Errorf("open event-report file: %w", err)
		}
	}

	inventory := faults.NewAlarmInventory()
	mgr := faults.NewManager(queue, sink, inventory, events)

	metrics.RegisterComponent("faultmgr", true, "draining")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	serveMetrics(metricsAddr)

	ctx, stop := signalContext()
	defer stop()

	slog.Logger.Info().Msg("faultmgr: started")
	return mgr.Run(ctx)
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Logger.Warn().Err(err).Msg("faultmgr: metrics server exited")
		}
	}()
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
