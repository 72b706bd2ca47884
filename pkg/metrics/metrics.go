package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Mailbox metrics
	MailboxDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "platsvc_mailbox_depth",
			Help: "Current number of queued messages per mailbox address",
		},
		[]string{"address"},
	)

	MailboxPostsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "platsvc_mailbox_posts_total",
			Help: "Total number of messages posted to a mailbox",
		},
		[]string{"address"},
	)

	MailboxDispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "platsvc_mailbox_dispatch_duration_seconds",
			Help:    "Time taken by a mailbox processor to dispatch one message",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"address"},
	)

	// Logger pipeline metrics
	LogRecordsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "platsvc_log_records_processed_total",
			Help: "Total number of log records drained from the shared queue and written to a sink",
		},
		[]string{"sink"},
	)

	LogQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "platsvc_log_queue_depth",
			Help: "Current depth of the shared-memory log record queue",
		},
	)

	LogSinkErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "platsvc_log_sink_errors_total",
			Help: "Total number of sink write failures",
		},
		[]string{"sink"},
	)

	// Fault pipeline metrics
	AlarmsOutstanding = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "platsvc_alarms_outstanding",
			Help: "Current number of distinct alarm keys in the raised state",
		},
	)

	AlarmsRaisedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "platsvc_alarms_raised_total",
			Help: "Total number of alarm raise records forwarded to the notification sink",
		},
		[]string{"alarm_code"},
	)

	AlarmsClearedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "platsvc_alarms_cleared_total",
			Help: "Total number of alarm clear records forwarded to the notification sink",
		},
		[]string{"alarm_code"},
	)

	AlarmsCoalescedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "platsvc_alarms_coalesced_total",
			Help: "Total number of raise records suppressed because the alarm was already outstanding",
		},
		[]string{"alarm_code"},
	)

	EventsReportedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "platsvc_events_reported_total",
			Help: "Total number of informational event records processed by the fault manager",
		},
	)

	// Resource Monitor metrics
	ResourceUsagePercent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "platsvc_resource_usage_percent",
			Help: "Current resource usage percentage by resource kind and instance (mount point or \"cpu\"/\"memory\")",
		},
		[]string{"resource", "instance"},
	)

	SampleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "platsvc_sample_duration_seconds",
			Help:    "Time taken to sample one resource on one tick",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"resource"},
	)

	SampleErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "platsvc_sample_errors_total",
			Help: "Total number of sampling failures by resource kind",
		},
		[]string{"resource"},
	)

	// Process Manager metrics
	ManagedEntriesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "platsvc_managed_entries_total",
			Help: "Current number of supervised entries by state",
		},
		[]string{"state"},
	)

	EntryRestartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "platsvc_entry_restarts_total",
			Help: "Total number of times a supervised entry was restarted after exiting",
		},
		[]string{"name"},
	)
)

func init() {
	prometheus.MustRegister(
		MailboxDepth,
		MailboxPostsTotal,
		MailboxDispatchDuration,
		LogRecordsProcessedTotal,
		LogQueueDepth,
		LogSinkErrorsTotal,
		AlarmsOutstanding,
		AlarmsRaisedTotal,
		AlarmsClearedTotal,
		AlarmsCoalescedTotal,
		EventsReportedTotal,
		ResourceUsagePercent,
		SampleDuration,
		SampleErrorsTotal,
		ManagedEntriesTotal,
		EntryRestartsTotal,
	)
}

// Handler returns the Prometheus HTTP handler for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations and recording the elapsed
// duration to a histogram at the call site.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed duration to histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed duration to a labeled histogram.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
