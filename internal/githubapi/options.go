package githubapi

import (
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/onnwee/portfolio/backend/internal/cache"
	"github.com/onnwee/portfolio/backend/internal/circuitbreaker"
)

type settings struct {
	store       *cache.Store
	policy      Policy
	httpClient  *http.Client
	baseURL     string
	userAgent   string
	concurrency int
	limiter     *rate.Limiter
	breaker     *circuitbreaker.CircuitBreaker
	log         *slog.Logger
	now         func() time.Time
}

// Option configures a Client.
type Option func(*settings)

// WithStore shares an existing cache store. Without it the client gets a
// private one.
func WithStore(store *cache.Store) Option {
	return func(s *settings) { s.store = store }
}

// WithPolicy replaces the TTL policy.
func WithPolicy(p Policy) Option {
	return func(s *settings) { s.policy = p }
}

// WithHTTPClient sets the HTTP client go-github uses.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) { s.httpClient = c }
}

// WithBaseURL points the client at another API root, such as GitHub
// Enterprise or a test server.
func WithBaseURL(u string) Option {
	return func(s *settings) { s.baseURL = u }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(s *settings) { s.userAgent = ua }
}

// WithBatchConcurrency caps parallel fetches in GetMultipleRepositories.
// Values below 2 keep the batch sequential.
func WithBatchConcurrency(n int) Option {
	return func(s *settings) { s.concurrency = n }
}

// WithBatchLimiter paces upstream fetches made by GetMultipleRepositories.
func WithBatchLimiter(l *rate.Limiter) Option {
	return func(s *settings) { s.limiter = l }
}

// WithBreaker guards upstream calls with cb.
func WithBreaker(cb *circuitbreaker.CircuitBreaker) Option {
	return func(s *settings) { s.breaker = cb }
}

// WithLogger sets the client's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.log = l }
}

// WithClock overrides the time source used for snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

type callOptions struct {
	bypass bool
	ttl    time.Duration
}

// CallOption adjusts a single read.
type CallOption func(*callOptions)

// BypassCache forces an upstream read. The fresh result still replaces the
// cached entry.
func BypassCache() CallOption {
	return func(o *callOptions) { o.bypass = true }
}

// WithTTL overrides the policy TTL for the entry this call stores.
func WithTTL(d time.Duration) CallOption {
	return func(o *callOptions) { o.ttl = d }
}

func applyCallOptions(opts []CallOption) callOptions {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
