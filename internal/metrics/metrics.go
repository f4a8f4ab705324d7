package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GitHub cache metrics
	GitHubCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "github_cache_hits_total",
			Help: "Total number of GitHub cache hits",
		},
		[]string{"resource"}, // resource: repository, languages, rate_limit
	)

	GitHubCacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "github_cache_misses_total",
			Help: "Total number of GitHub cache misses",
		},
		[]string{"resource"},
	)

	GitHubCacheItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "github_cache_items",
			Help: "Entries currently held by the GitHub cache (including not yet evicted expired ones)",
		},
	)

	// GitHub upstream metrics
	GitHubRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "github_api_requests_total",
			Help: "Total number of calls made to the GitHub REST API",
		},
		[]string{"endpoint", "outcome"}, // outcome: success, not_found, forbidden, rate_limited, unauthorized, error
	)

	GitHubRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "github_api_request_duration_seconds",
			Help:    "Duration of GitHub REST API calls in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"endpoint"},
	)

	GitHubHTTPRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "github_http_retries_total",
			Help: "Total number of retried GitHub HTTP requests",
		},
	)

	GitHubRetryAfterWaits = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "github_retry_after_wait_seconds",
			Help:    "Duration of Retry-After waits in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	GitHubBatchPacingWaits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "github_batch_pacing_waits_total",
			Help: "Total number of times a batch fetch waited on the pacing limiter",
		},
	)

	GitHubRateLimitRemaining = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "github_rate_limit_remaining",
			Help: "Remaining GitHub API quota as of the last rate limit fetch",
		},
		[]string{"resource"}, // resource: core, search, graphql
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"component"},
	)

	CircuitBreakerTrips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_trips_total",
			Help: "Total number of circuit breaker trips",
		},
		[]string{"component"},
	)

	// API response cache metrics
	APICacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_cache_hits_total",
			Help: "Total number of API response cache hits",
		},
		[]string{"endpoint"},
	)

	APICacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_cache_misses_total",
			Help: "Total number of API response cache misses",
		},
		[]string{"endpoint"},
	)

	// API request metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"endpoint", "method", "status"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"endpoint", "method", "status"},
	)

	// Collaborator grant metrics
	GrantsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_grants_total",
			Help: "Total number of collaborator grant attempts",
		},
		[]string{"result"}, // result: granted or a rejection reason
	)

	GrantSweepRemovals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_grant_sweep_removals_total",
			Help: "Collaborators processed by the expiry sweep",
		},
		[]string{"status"}, // status: removed, failed
	)

	GrantSweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "access_grant_sweep_duration_seconds",
			Help:    "Duration of expiry sweeps in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		},
	)

	AccessTokensOutstanding = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "access_tokens_outstanding",
			Help: "Unused access tokens whose redemption deadline has not passed",
		},
	)

	AccessGrantsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "access_grants_active",
			Help: "Collaborator grants not yet revoked",
		},
	)

	MetricsCollectionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metrics_collection_errors_total",
			Help: "Total number of errors during periodic metrics collection",
		},
		[]string{"source"},
	)
)
