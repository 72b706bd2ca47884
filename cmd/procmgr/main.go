// Command procmgr is the Process Manager: it reads a service-
// configuration file of directives, spawns and supervises dynamic
// entries, and reconfigures on a signal (default SIGHUP).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/platsvc/pkg/mailbox"
	"github.com/cuemby/platsvc/pkg/metrics"
	"github.com/cuemby/platsvc/pkg/procmgr"
	"github.com/cuemby/platsvc/pkg/slog"
)

const defaultConfigPath = "/etc/platsvc/services.conf"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "procmgr: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "procmgr",
	Short: "Supervises statically and dynamically configured service entries",
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringP("config", "f", defaultConfigPath, "alternate service-configuration file")
	rootCmd.Flags().BoolP("daemonize", "b", false, "daemonize (not implemented; logs a warning and runs in the foreground)")
	rootCmd.Flags().BoolP("verbose", "d", false, "verbose logging")
	rootCmd.Flags().BoolP("no-static", "n", false, "suppress static directives")
	rootCmd.Flags().BoolP("force-static", "y", false, "force static directives")
	rootCmd.Flags().StringP("reconfigure-signal", "s", "HUP", "alternate reconfigure signal")
	rootCmd.Flags().StringArrayP("extra-directive", "S", nil, "additional directive, same grammar as a config-file line")
	rootCmd.Flags().BoolP("local", "l", false, "local-only logger")
	rootCmd.Flags().StringP("redirect", "r", "", "redirect standard output and error to this file")
	rootCmd.Flags().String("metrics-addr", "127.0.0.1:9104", "address to serve /metrics, /health, /ready and /live on")
}

func run(cmd *cobra.Command, _ []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	level := slog.InfoLevel
	if verbose {
		level = slog.DebugLevel
	}
	slog.Init(slog.Config{Level: level})

	if daemonize, _ := cmd.Flags().GetBool("daemonize"); daemonize {
		slog.Logger.Warn().Msg("procmgr: -b daemonize requested but not implemented; running in foreground")
	}

	if redirect, _ := cmd.Flags().GetString("redirect"); redirect != "" {
		f, err := os.OpenFile(redirect, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open redirect file: %w", err)
		}
		os.Stdout = f
		os.Stderr = f
	}

	dbPath := filepath.Join(os.TempDir(), "platsvc-procmgr.db")

	mb, owner := mailbox.NewLocalMailbox("procmgr-signals", 0)
	if err := mb.Activate(owner); err != nil {
		return fmt.Errorf("activate mailbox: %w", err)
	}

	sup, err := procmgr.NewSupervisor(dbPath, mb, owner)
	if err != nil {
		return fmt.Errorf("start supervisor: %w", err)
	}

	configPath, _ := cmd.Flags().GetString("config")
	noStatic, _ := cmd.Flags().GetBool("no-static")
	forceStatic, _ := cmd.Flags().GetBool("force-static")
	extra, _ := cmd.Flags().GetStringArray("extra-directive")

	applyConfig := func() {
		directives, err := loadDirectives(configPath, extra)
		if err != nil {
			slog.Logger.Error().Err(err).Msg("procmgr: failed to load service-configuration file")
			return
		}
		directives = filterStatic(directives, noStatic, forceStatic)
		sup.Apply(directives)
	}
	applyConfig()

	metrics.RegisterComponent("procmgr", true, "supervising")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	serveMetrics(metricsAddr)

	reconfigCh := make(chan os.Signal, 1)
	sig, err := reconfigureSignal(cmd)
	if err != nil {
		return err
	}
	signal.Notify(reconfigCh, sig)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	slog.Logger.Info().Str("config", configPath).Msg("procmgr: started")
	for {
		select {
		case <-reconfigCh:
			slog.Logger.Info().Msg("procmgr: reconfigure signal received, reapplying directives")
			applyConfig()
		case <-sigCh:
			go func() {
				<-sigCh
				os.Exit(1)
			}()
			mb.Deactivate(owner)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := sup.Shutdown(ctx)
			cancel()
			return err
		}
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Logger.Warn().Err(err).Msg("procmgr: metrics server exited")
		}
	}()
}

func loadDirectives(configPath string, extra []string) ([]procmgr.Directive, error) {
	f, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", configPath, err)
	}
	defer f.Close()

	directives, err := procmgr.ParseDirectives(f)
	if err != nil {
		return nil, err
	}
	if len(extra) > 0 {
		extraDirectives, err := procmgr.ParseDirectives(strings.NewReader(strings.Join(extra, "\n")))
		if err != nil {
			return nil, fmt.Errorf("parse -S directive: %w", err)
		}
		directives = append(directives, extraDirectives...)
	}
	return directives, nil
}

func filterStatic(directives []procmgr.Directive, suppress, force bool) []procmgr.Directive {
	if !suppress || force {
		return directives
	}
	var filtered []procmgr.Directive
	for _, d := range directives {
		if d.Action == procmgr.ActionStatic {
			continue
		}
		filtered = append(filtered, d)
	}
	return filtered
}

func reconfigureSignal(cmd *cobra.Command) (os.Signal, error) {
	name, _ := cmd.Flags().GetString("reconfigure-signal")
	switch name {
	case "HUP", "SIGHUP":
		return syscall.SIGHUP, nil
	case "USR1", "SIGUSR1":
		return syscall.SIGUSR1, nil
	case "USR2", "SIGUSR2":
		return syscall.SIGUSR2, nil
	default:
		return nil, fmt.Errorf("procmgr: unsupported reconfigure signal %q", name)
	}
}
