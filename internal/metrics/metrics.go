// Package metrics exposes Prometheus collectors for the lead scanner.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	placesRequestsTotal        *prometheus.CounterVec
	placesCandidatesTotal      prometheus.Counter
	probesTotal                *prometheus.CounterVec
	probeDurationSeconds       prometheus.Histogram
	enrichmentsTotal           *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	jobsTotal                  *prometheus.CounterVec
	activeWorkers              prometheus.Gauge
	rateLimitDelaysSeconds     *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		placesRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadscan_places_requests_total",
				Help: "Total place-search provider calls, labeled by endpoint and provider status.",
			},
			[]string{"endpoint", "status"},
		)

		placesCandidatesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "leadscan_places_candidates_total",
				Help: "Total candidates accepted by discovery after dedupe and filtering.",
			},
		)

		probesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadscan_probes_total",
				Help: "Total website probes, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		probeDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "leadscan_probe_duration_seconds",
				Help:    "Histogram of website fetch latencies.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
		)

		enrichmentsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadscan_enrichments_total",
				Help: "Total lead enrichments, labeled by result.",
			},
			[]string{"result"},
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

		jobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadscan_jobs_total",
				Help: "Total number of bulk-analysis jobs processed, labeled by status.",
			},
			[]string{"status"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "leadscan_active_workers",
				Help: "Number of workers currently processing a job.",
			},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "leadscan_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"key"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePlacesRequest counts one provider call.
func ObservePlacesRequest(endpoint, status string) {
	Init()
	placesRequestsTotal.WithLabelValues(endpoint, status).Inc()
}

// ObserveCandidate counts one accepted discovery candidate.
func ObserveCandidate() {
	Init()
	placesCandidatesTotal.Inc()
}

// ObserveProbe records a probe outcome and its fetch latency.
func ObserveProbe(site, outcome string, duration time.Duration) {
	Init()
	probesTotal.WithLabelValues(SanitizeSite(site), outcome).Inc()
	if duration > 0 {
		probeDurationSeconds.Observe(duration.Seconds())
	}
}

// ObserveEnrichment counts one enrichment by result.
func ObserveEnrichment(result string) {
	Init()
	enrichmentsTotal.WithLabelValues(result).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveJob increments the job counter for the given status.
func ObserveJob(status string) {
	Init()
	jobsTotal.WithLabelValues(status).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(key string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(key).Observe(duration.Seconds())
}
