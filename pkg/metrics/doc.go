/*
Package metrics provides Prometheus metrics collection and exposition for
the platform-services daemons.

The metrics package defines and registers every daemon's metrics using the
Prometheus client library, providing observability into mailbox depth,
log throughput, alarm activity, resource utilization, and supervised-entry
state. Metrics are exposed via an HTTP endpoint for scraping by Prometheus
servers.

# Architecture

The metrics system follows Prometheus best practices with instrumentation
at each pipeline's natural choke point:

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  │  - Automatic Go runtime metrics             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Metric Types                   │          │
	│  │                                              │          │
	│  │  Gauge: Instant values (queue depth)        │          │
	│  │  Counter: Monotonic increases (alarms)      │          │
	│  │  Histogram: Distributions (sample latency)  │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Metric Categories                 │          │
	│  │                                              │          │
	│  │  Mailbox: depth, posts, dispatch latency    │          │
	│  │  Logger: records processed, sink errors     │          │
	│  │  Fault: alarms raised/cleared/coalesced     │          │
	│  │  Resource Monitor: usage %, sample duration │          │
	│  │  Process Manager: entry count, restarts     │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP Metrics Endpoint              │          │
	│  │  - Format: Prometheus text exposition       │          │
	│  │  - Handler: promhttp.Handler()              │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Prometheus Server                   │          │
	│  │  - Scrapes /metrics periodically            │          │
	│  │  - Stores time series data                  │          │
	│  │  - Provides PromQL query interface          │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Metric Registry:
  - Global Prometheus DefaultRegistry
  - All metrics registered at package init
  - Thread-safe for concurrent updates from every daemon

Gauge Metrics:
  - Instant value that can go up or down
  - Examples: mailbox depth, alarms outstanding, resource usage percent

Counter Metrics:
  - Monotonically increasing value
  - Examples: log records processed, alarms raised, entry restarts

Histogram Metrics:
  - Distribution of observed values
  - Examples: mailbox dispatch duration, sample duration

Timer Helper:
  - Convenience wrapper for timing operations
  - Start timer, observe duration to a histogram
  - Supports label values for histogram vectors

Collector:
  - Runs a set of Sampler closures on a fixed interval
  - Same ticker-and-select shape as resourcemon.Monitor.Run; no daemon in
    this repository starts one (supervised-entry counts are set directly
    by the procmgr Supervisor on each state change)

# Metrics Catalog

Mailbox Metrics:

platsvc_mailbox_depth{address}:
  - Type: Gauge
  - Description: current queued-message count per mailbox address
  - Example: platsvc_mailbox_depth{address="resourcemon"} 0

platsvc_mailbox_posts_total{address}:
  - Type: Counter
  - Description: total messages posted to a mailbox

platsvc_mailbox_dispatch_duration_seconds{address}:
  - Type: Histogram
  - Description: time taken to dispatch one message

Logger Pipeline Metrics:

platsvc_log_records_processed_total{sink}:
  - Type: Counter
  - Description: log records drained from the shared queue and written

platsvc_log_queue_depth:
  - Type: Gauge
  - Description: current depth of the shared-memory log record queue

platsvc_log_sink_errors_total{sink}:
  - Type: Counter
  - Description: sink write failures

Fault Pipeline Metrics:

platsvc_alarms_outstanding:
  - Type: Gauge
  - Description: distinct alarm keys currently in the raised state

platsvc_alarms_raised_total{alarm_code}:
  - Type: Counter
  - Description: alarm raise records forwarded to the notification sink

platsvc_alarms_cleared_total{alarm_code}:
  - Type: Counter
  - Description: alarm clear records forwarded to the notification sink

platsvc_alarms_coalesced_total{alarm_code}:
  - Type: Counter
  - Description: raise records suppressed because already outstanding

platsvc_events_reported_total:
  - Type: Counter
  - Description: informational event records processed

Resource Monitor Metrics:

platsvc_resource_usage_percent{resource, instance}:
  - Type: Gauge
  - Description: current usage percentage; instance is a mount point for
    "disk", otherwise "cpu" or "memory"

platsvc_sample_duration_seconds{resource}:
  - Type: Histogram
  - Description: time taken to sample one resource on one tick

platsvc_sample_errors_total{resource}:
  - Type: Counter
  - Description: sampling failures by resource kind

Process Manager Metrics:

platsvc_managed_entries_total{state}:
  - Type: Gauge
  - Description: supervised entries by state (running/suspended)

platsvc_entry_restarts_total{name}:
  - Type: Counter
  - Description: times a supervised entry was restarted after exiting

# Usage

Updating Gauge Metrics:

	import "github.com/cuemby/platsvc/pkg/metrics"

	metrics.MailboxDepth.WithLabelValues("resourcemon").Set(3)
	metrics.AlarmsOutstanding.Set(float64(outstanding.Len()))

Updating Counter Metrics:

	metrics.AlarmsRaisedTotal.WithLabelValues("disk-usage").Inc()
	metrics.LogRecordsProcessedTotal.WithLabelValues("*log.FileSink").Inc()

Recording Histogram Observations:

	timer := metrics.NewTimer()
	// ... sample a resource ...
	timer.ObserveDurationVec(metrics.SampleDuration, "disk")

Running a Periodic Collector:

	c := metrics.NewCollector(15*time.Second, func() {
		metrics.LogQueueDepth.Set(float64(queue.Len()))
	})
	c.Start()
	defer c.Stop()

Exposing the Endpoint:

	http.Handle("/metrics", metrics.Handler())
	http.ListenAndServe(":9090", nil)

# Integration Points

This package integrates with:

  - pkg/mailbox: Posts update MailboxPostsTotal/MailboxDepth directly
  - pkg/log: Processor updates LogRecordsProcessedTotal/LogQueueDepth/LogSinkErrorsTotal
  - pkg/faults: Manager updates the Alarms* and EventsReportedTotal counters/gauges
  - pkg/resourcemon: Monitor updates ResourceUsagePercent/SampleDuration/SampleErrorsTotal
  - pkg/procmgr: Supervisor updates ManagedEntriesTotal/EntryRestartsTotal
  - Prometheus: Scrapes /metrics

# Design Patterns

Package Init Registration:
  - All metrics registered in init()
  - MustRegister panics on duplicate registration, catching mistakes early

Label Discipline:
  - Use WithLabelValues for cardinality-bounded labels (address, sink,
    alarm code, resource kind) — never a raw PID or timestamp

Timer Pattern:
  - Create a timer at operation start
  - Call ObserveDuration/ObserveDurationVec when the operation completes

Global Metrics:
  - Package-level variables, accessible from any package without passing
  - No initialization required by callers beyond importing the package

# Performance Characteristics

Metric Update Overhead:
  - Gauge set/inc: ~50ns per operation
  - Counter inc: ~50ns per operation
  - Histogram observe: ~200ns per operation
  - Labels: +100ns per label value

Cardinality Management:
  - Low cardinality: mailbox address, alarm code, sink type, resource kind
  - Avoid: PIDs, timestamps, free-form managed-object strings as labels

# Troubleshooting

Missing Metrics:
  - Check: metric registered in init() (MustRegister panics on duplicate)
  - Check: the code path that updates it actually ran

High Cardinality:
  - Cause: an unbounded value (PID, mount path with a variable suffix)
    used as a label
  - Solution: drop the label or bucket the value before labeling

Stale Metrics:
  - Cause: code not calling the metric update at the right call site
  - Check: add a log line next to the metric update to confirm it fires

# Monitoring

Prometheus Queries (PromQL):

Mailbox Health:
  - Current depth: platsvc_mailbox_depth
  - Post rate: rate(platsvc_mailbox_posts_total[1m])

Fault Pipeline:
  - Outstanding alarms: platsvc_alarms_outstanding
  - Raise rate: rate(platsvc_alarms_raised_total[5m])
  - Coalescing ratio: rate(platsvc_alarms_coalesced_total[5m]) / rate(platsvc_alarms_raised_total[5m])

Resource Monitor:
  - Disk usage: platsvc_resource_usage_percent{resource="disk"}
  - Sample failure rate: rate(platsvc_sample_errors_total[5m])

Process Manager:
  - Restart rate: rate(platsvc_entry_restarts_total[10m])

# Alerting Rules

Recommended Prometheus alerts:

High Alarm Coalescing Ratio:
  - Alert: rate(platsvc_alarms_coalesced_total[5m]) > rate(platsvc_alarms_raised_total[5m]) * 5
  - Description: an alarm is flapping far more than it's newly raised
  - Action: check the raising resource/mount for a persistent condition

Sample Failures:
  - Alert: rate(platsvc_sample_errors_total[5m]) > 0
  - Description: resource sampling is failing
  - Action: check /proc readability, mount availability

Frequent Entry Restarts:
  - Alert: rate(platsvc_entry_restarts_total[10m]) > 0.05
  - Description: a supervised entry is restart-looping
  - Action: check the entry's own logs for the crash cause

# See Also

  - Prometheus documentation: https://prometheus.io/docs/
  - Prometheus client library: https://github.com/prometheus/client_golang
  - PromQL tutorial: https://prometheus.io/docs/prometheus/latest/querying/basics/
  - Histogram best practices: https://prometheus.io/docs/practices/histograms/
*/
package metrics
