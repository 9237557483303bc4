// Package metrics exposes Prometheus collectors for the year-in-review service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yearreview_submissions_total",
			Help: "Total number of submit calls, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	tasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yearreview_tasks_total",
			Help: "Total number of background tasks finished, labeled by result.",
		},
		[]string{"result"},
	)

	activeTasks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "yearreview_active_tasks",
			Help: "Number of workers currently running a task.",
		},
	)

	taskDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "yearreview_task_duration_seconds",
			Help:    "Histogram of background task durations, labeled by result.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"result"},
	)

	orphansRemovedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "yearreview_orphans_removed_total",
			Help: "Total number of stale pending markers removed at startup.",
		},
	)

	starsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yearreview_stars_total",
			Help: "Total number of repository star attempts, labeled by status.",
		},
		[]string{"status"},
	)

	rateLimitDelaySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "yearreview_rate_limit_delay_seconds",
			Help:    "Histogram of upstream rate limit wait durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"host"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)
)

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SanitizeHost extracts a lowercase hostname, or "unknown".
func SanitizeHost(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// ObserveSubmission counts one submit outcome (done, wait, started, invalid, error).
func ObserveSubmission(outcome string) {
	submissionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveTask records a finished background task.
func ObserveTask(result string, duration time.Duration) {
	tasksTotal.WithLabelValues(result).Inc()
	taskDurationSeconds.WithLabelValues(result).Observe(duration.Seconds())
}

// IncActiveTasks increments the active tasks gauge.
func IncActiveTasks() {
	activeTasks.Inc()
}

// DecActiveTasks decrements the active tasks gauge.
func DecActiveTasks() {
	activeTasks.Dec()
}

// ObserveOrphansRemoved adds n to the reconciled marker counter.
func ObserveOrphansRemoved(n int) {
	if n > 0 {
		orphansRemovedTotal.Add(float64(n))
	}
}

// ObserveStar counts a star attempt.
func ObserveStar(status string) {
	starsTotal.WithLabelValues(status).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	rateLimitDelaySeconds.WithLabelValues(host).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
