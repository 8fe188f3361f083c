// Package metrics exposes Prometheus collectors for the ingestion pipeline.
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
	searchRequestsTotal        *prometheus.CounterVec
	searchResultsTotal         *prometheus.CounterVec
	scrapesTotal               *prometheus.CounterVec
	candidatesTotal            *prometheus.CounterVec
	stageDurationSeconds       *prometheus.HistogramVec
	analyzerRetriesTotal       prometheus.Counter
	assetUploadsTotal          *prometheus.CounterVec
	runsTotal                  *prometheus.CounterVec
	rateLimitDelaySeconds      *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors. It is safe to call multiple times.
func Init() {
	once.Do(func() {
		searchRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "curator_search_requests_total",
				Help: "Search backend requests, labeled by backend and status.",
			},
			[]string{"backend", "status"},
		)

		searchResultsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "curator_search_results_total",
				Help: "Candidate URLs returned by search backends.",
			},
			[]string{"backend"},
		)

		scrapesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "curator_scrapes_total",
				Help: "Scrape attempts, labeled by site, path kind, and status.",
			},
			[]string{"site", "kind", "status"},
		)

		candidatesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "curator_candidates_total",
				Help: "Candidates processed by the orchestrator, labeled by category and outcome.",
			},
			[]string{"category", "outcome"},
		)

		stageDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "curator_stage_duration_seconds",
				Help:    "Latency of pipeline stages (scrape, analyze, save).",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"stage"},
		)

		analyzerRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "curator_analyzer_rate_limit_retries_total",
				Help: "Analyzer retries triggered by rate-limit responses.",
			},
		)

		assetUploadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "curator_asset_uploads_total",
				Help: "Object-storage asset uploads, labeled by asset kind and status.",
			},
			[]string{"asset", "status"},
		)

		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "curator_runs_total",
				Help: "Crawl runs, labeled by final status.",
			},
			[]string{"status"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "curator_rate_limit_delay_seconds",
				Help:    "Time spent waiting on client-side rate limiters, labeled by host.",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 3, 5, 10},
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

// ObserveSearch records one backend call and how many results it produced.
func ObserveSearch(backend, status string, results int) {
	Init()
	searchRequestsTotal.WithLabelValues(backend, status).Inc()
	if results > 0 {
		searchResultsTotal.WithLabelValues(backend).Add(float64(results))
	}
}

// ObserveScrape records a scrape attempt.
func ObserveScrape(rawURL, kind, status string) {
	Init()
	scrapesTotal.WithLabelValues(SanitizeSite(rawURL), kind, status).Inc()
}

// ObserveCandidate records the final outcome of one candidate.
func ObserveCandidate(category, outcome string) {
	Init()
	candidatesTotal.WithLabelValues(category, outcome).Inc()
}

// ObserveStage records how long a pipeline stage took.
func ObserveStage(stage string, duration time.Duration) {
	Init()
	stageDurationSeconds.WithLabelValues(stage).Observe(duration.Seconds())
}

// IncAnalyzerRetries counts a rate-limit retry.
func IncAnalyzerRetries() {
	Init()
	analyzerRetriesTotal.Inc()
}

// ObserveAssetUpload records a thumbnail or logo upload.
func ObserveAssetUpload(asset, status string) {
	Init()
	assetUploadsTotal.WithLabelValues(asset, status).Inc()
}

// ObserveRun records a finished crawl run.
func ObserveRun(status string) {
	Init()
	runsTotal.WithLabelValues(status).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records time spent blocked on a limiter.
func ObserveRateLimitDelay(host string, d time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(host).Observe(d.Seconds())
}
