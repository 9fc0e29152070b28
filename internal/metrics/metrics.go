package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Upstream names used as label values
const (
	UpstreamForecast  = "open_meteo"
	UpstreamNarrative = "together"
)

// Narrative outcomes
const (
	NarrativeSuccess  = "success"
	NarrativeFallback = "fallback"
	NarrativeStale    = "stale"
)

// Upstream metrics
var (
	// UpstreamRequestsTotal tracks outbound requests by upstream and result
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherai_upstream_requests_total",
			Help: "Total number of requests sent to upstream APIs",
		},
		[]string{"upstream", "status"},
	)

	// UpstreamRequestDuration tracks how long upstream requests take
	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weatherai_upstream_request_duration_seconds",
			Help:    "Duration of upstream API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"upstream"},
	)

	// NarrativesTotal counts narrative completions by outcome
	NarrativesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherai_narratives_total",
			Help: "Narrative requests by outcome (success, fallback, stale)",
		},
		[]string{"outcome"},
	)

	// ActiveSessions tracks the number of live dashboard sessions
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "weatherai_active_sessions",
			Help: "Number of dashboard sessions currently held in memory",
		},
	)

	// AppInfo provides static information about the application
	AppInfo = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "weatherai_app_info",
			Help: "Application information (always 1)",
		},
	)

	// AppStartTime records when the application started
	AppStartTime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "weatherai_app_start_time_seconds",
			Help: "Unix timestamp of when the application started",
		},
	)
)

func init() {
	AppInfo.Set(1)
	AppStartTime.SetToCurrentTime()
}

// RecordUpstream records one upstream call. statusCode is 0 when no response
// was received.
func RecordUpstream(upstream string, statusCode int, duration time.Duration, err error) {
	status := "error"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	} else if err == nil {
		status = "ok"
	}
	UpstreamRequestsTotal.WithLabelValues(upstream, status).Inc()
	UpstreamRequestDuration.WithLabelValues(upstream).Observe(duration.Seconds())
}

// RecordNarrative counts a narrative outcome
func RecordNarrative(outcome string) {
	NarrativesTotal.WithLabelValues(outcome).Inc()
}
