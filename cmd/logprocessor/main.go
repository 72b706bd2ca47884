// Command logprocessor drains the shared-memory log queue and writes
// formatted records to the configured sink.
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
	"github.com/cuemby/platsvc/pkg/log"
	"github.com/cuemby/platsvc/pkg/metrics"
	"github.com/cuemby/platsvc/pkg/slog"
)

const backingStorePath = "/tmp/platform.backingstore"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "logprocessor: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "logprocessor",
	Short: "Drains the shared-memory log queue to a configured sink",
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringP("file", "f", "", "write to rotating file instead of stdout")
	rootCmd.Flags().IntP("max-files", "n", 5, "number of log files to keep, the active one included (-f only)")
	rootCmd.Flags().Int64P("max-bytes", "z", 10*1024*1024, "rollover size in bytes (-f only)")
	rootCmd.Flags().BoolP("syslog", "o", false, "write to syslog instead of stdout")
	rootCmd.Flags().BoolP("stdout", "s", false, "write to stdout (default)")
	rootCmd.Flags().String("metrics-addr", "127.0.0.1:9102", "address to serve /metrics, /health, /ready and /live on")
}

func run(cmd *cobra.Command, _ []string) error {
	slog.Init(slog.Config{Level: slog.InfoLevel})

	sink, err := buildSink(cmd)
	if err != nil {
		return err
	}

	a, err := arena.Open(backingStorePath)
	if err != nil {
		return fmt.Errorf("open backing store: %w", err)
	}
	defer a.Close()

	mu, err := arena.NewProcessMutex("LogSMQueueMutex", "/tmp")
	if err != nil {
		return fmt.Errorf("open log queue mutex: %w", err)
	}
	sem := arena.NewSemaphore("LogSemaphore")
	codec := arena.Codec[log.Record]{
		Marshal:   func(r log.Record) ([]byte, error) { return json.Marshal(r) },
		Unmarshal: func(b []byte) (log.Record, error) { var r log.Record; err := json.Unmarshal(b, &r); return r, err },
	}
	queue := arena.NewQueue(a, "LogSMQueue", mu, sem, codec)

	proc := log.NewProcessor(queue, sink)

	metrics.RegisterComponent("logprocessor", true, "draining")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	serveMetrics(metricsAddr)

	ctx, stop := signalContext()
	defer stop()

	slog.Logger.Info().Msg("logprocessor: started")
	return proc.Run(ctx)
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Logger.Warn().Err(err).Msg("logprocessor: metrics server exited")
		}
	}()
}

func buildSink(cmd *cobra.Command) (log.Sink, error) {
	file, _ := cmd.Flags().GetString("file")
	useSyslog, _ := cmd.Flags().GetBool("syslog")

	switch {
	case file != "":
		maxFiles, _ := cmd.Flags().GetInt("max-files")
		maxBytes, _ := cmd.Flags().GetInt64("max-bytes")
		return log.NewFileSink(file, maxFiles, maxBytes)
	case useSyslog:
		return log.NewSyslogSink()
	default:
		return log.StdoutSink{}, nil
	}
}

// signalContext returns a context cancelled on the first SIGINT/SIGTERM;
// a second signal hard-exits the process immediately, so an operator can
// force an exit if graceful drain is taking too long.
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
