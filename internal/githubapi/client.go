// Package githubapi is the only part of the backend that talks to GitHub.
// Reads go through a shared TTL cache; collaborator mutations never do.
package githubapi

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/go-github/v80/github"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/onnwee/portfolio/backend/internal/cache"
	"github.com/onnwee/portfolio/backend/internal/circuitbreaker"
	"github.com/onnwee/portfolio/backend/internal/config"
	"github.com/onnwee/portfolio/backend/internal/httpx"
	"github.com/onnwee/portfolio/backend/internal/logger"
	"github.com/onnwee/portfolio/backend/internal/metrics"
	"github.com/onnwee/portfolio/backend/internal/tracing"
)

// Client wraps the GitHub REST API with caching, classification and
// telemetry.
type Client struct {
	gh     *github.Client
	store  *cache.Store
	policy Policy

	repos     cache.Typed[*Repository]
	languages cache.Typed[Languages]
	rateLimit cache.Typed[*RateLimitSnapshot]

	flight      singleflight.Group
	breaker     *circuitbreaker.CircuitBreaker
	limiter     *rate.Limiter
	concurrency int
	log         *slog.Logger
	now         func() time.Time
}

// New creates a client authenticated with token. An empty token is a
// configuration error; callers decide how to degrade.
func New(token string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, &APIError{Type: ErrorConfiguration, Message: "GITHUB_TOKEN is not set"}
	}

	s := settings{policy: DefaultPolicy(), concurrency: 1}
	for _, opt := range opts {
		opt(&s)
	}
	if s.store == nil {
		s.store = cache.New()
	}
	if s.log == nil {
		s.log = logger.WithComponent("github")
	}
	if s.now == nil {
		s.now = time.Now
	}

	gh := github.NewClient(s.httpClient).WithAuthToken(token)
	if s.baseURL != "" {
		base := s.baseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, &APIError{Type: ErrorConfiguration, Message: "invalid GitHub API URL", Err: err}
		}
		gh.BaseURL = u
	}
	if s.userAgent != "" {
		gh.UserAgent = s.userAgent
	}

	return &Client{
		gh:          gh,
		store:       s.store,
		policy:      s.policy,
		repos:       cache.NewTyped[*Repository](s.store),
		languages:   cache.NewTyped[Languages](s.store),
		rateLimit:   cache.NewTyped[*RateLimitSnapshot](s.store),
		breaker:     s.breaker,
		limiter:     s.limiter,
		concurrency: s.concurrency,
		log:         s.log,
		now:         s.now,
	}, nil
}

// NewFromConfig builds the process client from configuration: retrying
// transport, circuit breaker, batch pacing and TTL overrides.
func NewFromConfig(cfg *config.Config, store *cache.Store) (*Client, error) {
	httpClient := &http.Client{
		Timeout: cfg.GitHubHTTPTimeout,
		Transport: httpx.NewRetryTransport(http.DefaultTransport, httpx.RetryConfig{
			MaxAttempts: cfg.GitHubHTTPMaxRetries,
			BaseDelay:   cfg.GitHubHTTPRetryBase,
			LogRetries:  cfg.LogHTTPRetries,
		}),
	}

	opts := []Option{
		WithStore(store),
		WithHTTPClient(httpClient),
		WithPolicy(PolicyFromConfig(cfg)),
		WithUserAgent(cfg.GitHubUserAgent),
		WithBatchConcurrency(cfg.GitHubBatchConcurrency),
		WithBreaker(circuitbreaker.New(circuitbreaker.Config{
			Name:             "github",
			FailureThreshold: cfg.GitHubBreakerThreshold,
			Timeout:          cfg.GitHubBreakerTimeout,
			IsFailure:        IsUpstreamFailure,
			IsIgnored:        IsCallerCanceled,
		})),
	}
	if cfg.GitHubAPIURL != "" {
		opts = append(opts, WithBaseURL(cfg.GitHubAPIURL))
	}
	if cfg.GitHubBatchRPS > 0 {
		opts = append(opts, WithBatchLimiter(rate.NewLimiter(rate.Limit(cfg.GitHubBatchRPS), 1)))
	}
	return New(cfg.GitHubToken, opts...)
}

// sharedFetchTimeout bounds a coalesced upstream fetch, which outlives the
// caller that started it.
const sharedFetchTimeout = time.Minute

// cached runs the read-through pattern shared by every read: consult the
// store, on a miss fetch upstream and store the result under the policy TTL.
//
// Concurrent misses for one key share a single upstream call. That call
// runs detached from any one caller's context, and each caller stops
// waiting when its own context ends.
func cached[T any](ctx context.Context, c *Client, view cache.Typed[T], res Resource, key string, o callOptions, fetch func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, canceledError(err)
	}

	if !o.bypass {
		if v, ok := view.Get(key); ok {
			metrics.GitHubCacheHits.WithLabelValues(res.String()).Inc()
			return v, nil
		}
		metrics.GitHubCacheMisses.WithLabelValues(res.String()).Inc()
	}

	load := func(ctx context.Context) (T, error) {
		v, err := fetch(ctx)
		if err != nil {
			return v, err
		}
		ttl := o.ttl
		if ttl <= 0 {
			ttl = c.policy.TTL(res)
		}
		if err := view.Set(key, v, ttl); err != nil {
			c.log.Warn("failed to cache GitHub response", "key", key, "error", err)
		}
		c.refreshItemsGauge()
		return v, nil
	}

	if o.bypass {
		return load(ctx)
	}

	flightKey := key
	if o.ttl > 0 {
		flightKey += "#ttl=" + o.ttl.String()
	}
	ch := c.flight.DoChan(flightKey, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
		defer cancel()
		return load(fetchCtx)
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return zero, r.Err
		}
		return r.Val.(T), nil
	case <-ctx.Done():
		return zero, canceledError(ctx.Err())
	}
}

func canceledError(err error) *APIError {
	return &APIError{Type: ErrorUpstream, Message: err.Error(), Canceled: true, Err: err}
}

// call performs one upstream request inside a span, behind the breaker,
// and classifies any error.
func (c *Client) call(ctx context.Context, endpoint string, fn func(ctx context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := tracing.StartSpan(ctx, "github."+endpoint)
	start := time.Now()

	run := func() error {
		if err := fn(ctx); err != nil {
			apiErr := ClassifyError(err)
			if ctx.Err() != nil && apiErr.Type == ErrorUpstream {
				apiErr.Canceled = true
			}
			return apiErr
		}
		return nil
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Call(run)
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			err = &APIError{Type: ErrorUpstream, Message: "circuit open, GitHub calls suspended", Err: err}
		}
	} else {
		err = run()
	}

	metrics.GitHubRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	metrics.GitHubRequestsTotal.WithLabelValues(endpoint, outcome(err)).Inc()
	tracing.EndSpan(span, err, attrs...)
	return err
}

// CacheStats reports the shared store's contents.
func (c *Client) CacheStats() cache.Stats {
	stats := c.store.Stats()
	metrics.GitHubCacheItems.Set(float64(stats.Size))
	return stats
}

// ClearCache drops every cached GitHub response.
func (c *Client) ClearCache() {
	c.store.Clear()
	metrics.GitHubCacheItems.Set(0)
	c.log.Info("GitHub cache cleared")
}

// ClearCacheEntry drops a single key; unknown keys are ignored.
func (c *Client) ClearCacheEntry(key string) {
	c.store.Delete(key)
	c.refreshItemsGauge()
	c.log.Info("GitHub cache entry cleared", "key", key)
}

func (c *Client) refreshItemsGauge() {
	metrics.GitHubCacheItems.Set(float64(c.store.Stats().Size))
}

// canonicalFullName trims what splitFullName trims, so cache lookups and
// stored keys agree. Invalid names are returned as given.
func canonicalFullName(fullName string) string {
	owner, repo, err := splitFullName(fullName)
	if err != nil {
		return fullName
	}
	return owner + "/" + repo
}

// splitFullName validates "owner/repo".
func splitFullName(fullName string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(strings.TrimSpace(fullName), "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", invalidRequest("repository must be owner/repo, got %q", fullName)
	}
	return owner, repo, nil
}
