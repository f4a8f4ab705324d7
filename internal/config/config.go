package config

import (
	"os"
	"strings"
	"time"

	"github.com/onnwee/portfolio/backend/internal/utils"
)

// Config holds application configuration derived from environment variables.
type Config struct {
	Port string
	Env  string
	// GitHub API
	GitHubToken            string
	GitHubAPIURL           string   // empty means api.github.com
	GitHubRepos            []string // tracked "owner/repo" names, in display order
	GitHubUserAgent        string
	GitHubHTTPTimeout      time.Duration
	GitHubHTTPMaxRetries   int
	GitHubHTTPRetryBase    time.Duration
	LogHTTPRetries         bool
	GitHubBatchConcurrency int     // 1 keeps batch fetches sequential
	GitHubBatchRPS         float64 // 0 disables batch pacing
	GitHubBreakerThreshold int
	GitHubBreakerTimeout   time.Duration
	// GitHub cache policy overrides
	CacheRepositoryTTL time.Duration
	CacheLanguagesTTL  time.Duration
	CacheRateLimitTTL  time.Duration
	// Projects endpoint response cache
	ProjectsCacheTTL time.Duration
	APICacheMaxMB    int64
	// Fallback descriptions keyed by "owner/repo", used when GitHub is unavailable
	ProjectFallbacks map[string]string
	// Collaborator grants
	DatabaseURL            string
	GrantDefaultPermission string
	GrantSweepSchedule     string
	GrantSweepEnabled      bool // run the expiry sweep inside the API process
	// How often gauges sampled from the store and GitHub are refreshed
	MetricsInterval time.Duration
	// Admin API token for gating admin endpoints (Bearer token)
	AdminAPIToken string
	// Security settings
	RateLimitGlobal      float64  // requests per second globally
	RateLimitGlobalBurst int      // burst size for global rate limit
	RateLimitPerIP       float64  // requests per second per IP
	RateLimitPerIPBurst  int      // burst size for per-IP rate limit
	RateLimitGrantPerIP  float64  // requests per second per IP on the grant endpoint
	RateLimitGrantBurst  int      // burst size for the grant endpoint
	CORSAllowedOrigins   []string // allowed CORS origins
	EnableRateLimit      bool     // enable rate limiting middleware
	// Observability settings
	LogLevel          string  // log level: debug, info, warn, error
	LogFormat         string  // json or text; empty follows ENV
	OTELEnabled       bool    // enable OpenTelemetry tracing
	OTELEndpoint      string  // OpenTelemetry collector endpoint
	OTELSampleRate    float64 // trace sampling rate (0.0 to 1.0)
	SentryDSN         string  // Sentry DSN for error reporting
	SentryEnvironment string  // Sentry environment (dev, staging, production)
	SentryRelease     string  // Sentry release version
	SentrySampleRate  float64 // Sentry error sampling rate (0.0 to 1.0)
}

var cached *Config

// Load reads env vars once and caches them.
func Load() *Config {
	if cached != nil {
		return cached
	}
	cached = &Config{
		Port:                   strings.TrimSpace(os.Getenv("PORT")),
		Env:                    strings.TrimSpace(os.Getenv("ENV")),
		GitHubToken:            strings.TrimSpace(os.Getenv("GITHUB_TOKEN")),
		GitHubAPIURL:           strings.TrimSpace(os.Getenv("GITHUB_API_URL")),
		GitHubRepos:            utils.NormalizeRepoNames(utils.GetEnvAsList("GITHUB_REPOS", nil)),
		GitHubUserAgent:        strings.TrimSpace(os.Getenv("GITHUB_USER_AGENT")),
		GitHubHTTPTimeout:      time.Duration(utils.GetEnvAsInt("GITHUB_HTTP_TIMEOUT_MS", 10000)) * time.Millisecond,
		GitHubHTTPMaxRetries:   utils.GetEnvAsInt("GITHUB_HTTP_MAX_RETRIES", 3),
		GitHubHTTPRetryBase:    time.Duration(utils.GetEnvAsInt("GITHUB_HTTP_RETRY_BASE_MS", 300)) * time.Millisecond,
		LogHTTPRetries:         utils.GetEnvAsBool("LOG_HTTP_RETRIES", false),
		GitHubBatchConcurrency: utils.GetEnvAsInt("GITHUB_BATCH_CONCURRENCY", 1),
		GitHubBatchRPS:         utils.GetEnvAsFloat("GITHUB_BATCH_RPS", 0),
		GitHubBreakerThreshold: utils.GetEnvAsInt("GITHUB_BREAKER_THRESHOLD", 5),
		GitHubBreakerTimeout:   time.Duration(utils.GetEnvAsInt("GITHUB_BREAKER_TIMEOUT_MS", 60000)) * time.Millisecond,
		CacheRepositoryTTL:     utils.GetEnvAsDuration("GITHUB_CACHE_REPO_TTL", 0),
		CacheLanguagesTTL:      utils.GetEnvAsDuration("GITHUB_CACHE_LANGUAGES_TTL", 0),
		CacheRateLimitTTL:      utils.GetEnvAsDuration("GITHUB_CACHE_RATE_LIMIT_TTL", 0),
		ProjectsCacheTTL:       utils.GetEnvAsDuration("PROJECTS_CACHE_TTL", 10*time.Minute),
		APICacheMaxMB:          int64(utils.GetEnvAsInt("API_CACHE_MAX_MB", 16)),
		ProjectFallbacks:       parseFallbacks(os.Getenv("PROJECT_FALLBACKS")),
		DatabaseURL:            strings.TrimSpace(os.Getenv("DATABASE_URL")),
		GrantDefaultPermission: strings.ToLower(strings.TrimSpace(os.Getenv("GRANT_DEFAULT_PERMISSION"))),
		GrantSweepSchedule:     strings.TrimSpace(os.Getenv("GRANT_SWEEP_SCHEDULE")),
		GrantSweepEnabled:      utils.GetEnvAsBool("GRANT_SWEEP_ENABLED", true),
		MetricsInterval:        utils.GetEnvAsDuration("METRICS_INTERVAL", 30*time.Second),
		AdminAPIToken:          strings.TrimSpace(os.Getenv("ADMIN_API_TOKEN")),
		// Security settings with sensible defaults
		RateLimitGlobal:      utils.GetEnvAsFloat("RATE_LIMIT_GLOBAL", 100.0),
		RateLimitGlobalBurst: utils.GetEnvAsInt("RATE_LIMIT_GLOBAL_BURST", 200),
		RateLimitPerIP:       utils.GetEnvAsFloat("RATE_LIMIT_PER_IP", 10.0),
		RateLimitPerIPBurst:  utils.GetEnvAsInt("RATE_LIMIT_PER_IP_BURST", 20),
		RateLimitGrantPerIP:  utils.GetEnvAsFloat("RATE_LIMIT_GRANT_PER_IP", 0.1),
		RateLimitGrantBurst:  utils.GetEnvAsInt("RATE_LIMIT_GRANT_BURST", 5),
		EnableRateLimit:      utils.GetEnvAsBool("ENABLE_RATE_LIMIT", true),
		// Observability settings
		LogLevel:          strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))),
		LogFormat:         strings.ToLower(strings.TrimSpace(os.Getenv("LOG_FORMAT"))),
		OTELEnabled:       utils.GetEnvAsBool("OTEL_ENABLED", false),
		OTELEndpoint:      strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		OTELSampleRate:    utils.GetEnvAsFloat("OTEL_TRACE_SAMPLE_RATE", 0.1),
		SentryDSN:         strings.TrimSpace(os.Getenv("SENTRY_DSN")),
		SentryEnvironment: strings.TrimSpace(os.Getenv("SENTRY_ENVIRONMENT")),
		SentryRelease:     strings.TrimSpace(os.Getenv("SENTRY_RELEASE")),
		SentrySampleRate:  utils.GetEnvAsFloat("SENTRY_SAMPLE_RATE", 1.0),
	}
	if cached.Port == "" {
		cached.Port = "8000"
	}
	if cached.GitHubUserAgent == "" {
		cached.GitHubUserAgent = "portfolio-backend/0.1"
	}
	if cached.GrantDefaultPermission == "" {
		cached.GrantDefaultPermission = "pull"
	}
	if cached.GrantSweepSchedule == "" {
		cached.GrantSweepSchedule = "@every 1h"
	}
	if cached.LogLevel == "" {
		cached.LogLevel = "info"
	}
	if cached.SentryEnvironment == "" {
		if cached.Env != "" {
			cached.SentryEnvironment = cached.Env
		} else {
			cached.SentryEnvironment = "development"
		}
	}

	corsOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if corsOrigins == "" {
		cached.CORSAllowedOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	} else {
		cached.CORSAllowedOrigins = utils.GetEnvAsList("CORS_ALLOWED_ORIGINS", nil)
	}

	return cached
}

// ResetForTest clears cached config; for use in tests only.
func ResetForTest() { cached = nil }

// parseFallbacks reads "owner/repo=description;owner/other=description".
func parseFallbacks(raw string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(raw, ";") {
		name, desc, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		name = utils.NormalizeRepoName(name)
		if name == "" {
			continue
		}
		out[name] = strings.TrimSpace(desc)
	}
	return out
}
