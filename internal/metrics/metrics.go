package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "utilityrates_requests_total",
			Help: "Total number of inbound requests per path",
		},
		[]string{"path"},
	)

	RequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "utilityrates_request_duration_seconds",
			Help:    "Inbound request duration in seconds per path",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	RequestErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "utilityrates_request_errors_total",
			Help: "Total number of error responses per path and code",
		},
		[]string{"path", "code"},
	)
)

var (
	OpenEIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "utilityrates_openei_requests_total",
			Help: "Completed OpenEI requests per HTTP status",
		},
		[]string{"status"},
	)

	OpenEIRequestDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "utilityrates_openei_request_duration_seconds",
			Help:    "OpenEI request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	OpenEINetworkErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "utilityrates_openei_network_errors_total",
			Help: "OpenEI requests that could not complete",
		},
	)

	SnapshotLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "utilityrates_snapshot_lookups_total",
			Help: "Rates snapshot lookups by result (hit, miss)",
		},
		[]string{"result"},
	)

	HTTPCacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "utilityrates_http_cache_lookups_total",
			Help: "Outbound HTTP cache lookups by backend and result",
		},
		[]string{"backend", "result"},
	)
)

var (
	ScheduledJobLastRun = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "utilityrates_job_last_run_timestamp",
			Help: "Unix timestamp of the last completed run for a job",
		},
		[]string{"job"},
	)

	ScheduledJobLastDurationSeconds = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "utilityrates_job_last_duration_seconds",
			Help: "Duration of the last completed run for a job",
		},
		[]string{"job"},
	)

	ScheduledJobFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "utilityrates_job_failures_total",
			Help: "Total number of failed executions per job",
		},
		[]string{"job"},
	)

	AlertsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "utilityrates_alerts_sent_total",
			Help: "Webhook alert deliveries by result (ok, error)",
		},
		[]string{"result"},
	)
)

// ObserveRequest records one inbound request and, for status >= 400, an
// error with its code.
func ObserveRequest(path string, status int, startedAt time.Time) {
	RequestsTotal.WithLabelValues(path).Inc()
	RequestDurationSeconds.WithLabelValues(path).Observe(time.Since(startedAt).Seconds())
	if status >= 400 {
		RequestErrorsTotal.WithLabelValues(path, strconv.Itoa(status)).Inc()
	}
}

func UpdateJobMetrics(job string, startedAt time.Time, err error) {
	dur := time.Since(startedAt).Seconds()
	ScheduledJobLastDurationSeconds.WithLabelValues(job).Set(dur)
	ScheduledJobLastRun.WithLabelValues(job).Set(float64(time.Now().Unix()))
	if err != nil {
		ScheduledJobFailuresTotal.WithLabelValues(job).Inc()
	}
}

