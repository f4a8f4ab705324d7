// Package httpx provides an http.RoundTripper that retries throttled and
// failed requests, honoring Retry-After.
package httpx

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/onnwee/portfolio/backend/internal/logger"
	"github.com/onnwee/portfolio/backend/internal/metrics"
)

// AttemptInfo describes a single attempt outcome.
type AttemptInfo struct {
	Attempt int
	Method  string
	URL     string
	Status  int
	Err     error
	Wait    time.Duration
}

// Observer callback to report attempt telemetry.
type Observer func(info AttemptInfo)

// RetryConfig controls RetryTransport.
type RetryConfig struct {
	MaxAttempts int           // total tries, including the first; values below 1 mean 1
	BaseDelay   time.Duration // linear backoff step; jitter of up to 200ms is added
	MaxWait     time.Duration // longest Retry-After we will sleep through; 0 means 30s
	LogRetries  bool
	Observer    Observer
}

// RetryTransport retries requests that fail at the transport level or come
// back 429/5xx. Other responses, including 403 rate limit responses, are
// returned as-is so callers can classify them.
type RetryTransport struct {
	base  http.RoundTripper
	cfg   RetryConfig
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryTransport wraps base, or http.DefaultTransport when base is nil.
func NewRetryTransport(base http.RoundTripper, cfg RetryConfig) *RetryTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 30 * time.Second
	}
	return &RetryTransport{base: base, cfg: cfg, sleep: sleepContext}
}

// RoundTrip implements http.RoundTripper.
func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	log := logger.WithComponent("httpx")

	for attempt := 1; attempt <= t.cfg.MaxAttempts; attempt++ {
		try := req
		if attempt > 1 && req.Body != nil && req.Body != http.NoBody {
			if req.GetBody == nil {
				return nil, errors.New("httpx: request body cannot be replayed")
			}
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			try = req.Clone(ctx)
			try.Body = body
		}

		info := AttemptInfo{Attempt: attempt, Method: req.Method, URL: req.URL.String()}
		last := attempt == t.cfg.MaxAttempts

		resp, err := t.base.RoundTrip(try)
		if err != nil {
			info.Err = err
			if last || ctx.Err() != nil {
				if t.cfg.LogRetries {
					log.Warn("request failed, no more retries", "attempt", attempt, "method", req.Method, "url", info.URL, "error", err)
				}
				t.observe(info)
				return nil, err
			}
		} else {
			info.Status = resp.StatusCode
			if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode < 500 {
				if t.cfg.LogRetries && attempt > 1 {
					log.Info("request succeeded after retry", "attempt", attempt, "method", req.Method, "url", info.URL, "status", resp.StatusCode)
				}
				t.observe(info)
				return resp, nil
			}
			if last {
				if t.cfg.LogRetries {
					log.Warn("giving up on request", "attempt", attempt, "method", req.Method, "url", info.URL, "status", resp.StatusCode)
				}
				t.observe(info)
				return resp, nil
			}
			if wait, ok := retryAfter(resp.Header.Get("Retry-After"), time.Now()); ok {
				if wait > t.cfg.MaxWait {
					// Too long to hold the caller; let it see the throttled response.
					t.observe(info)
					return resp, nil
				}
				drain(resp)
				metrics.GitHubRetryAfterWaits.Observe(wait.Seconds())
				metrics.GitHubHTTPRetries.Inc()
				info.Wait = wait
				if t.cfg.LogRetries {
					log.Info("honoring Retry-After", "attempt", attempt, "status", resp.StatusCode, "wait", wait, "method", req.Method, "url", info.URL)
				}
				t.observe(info)
				if err := t.sleep(ctx, wait); err != nil {
					return nil, err
				}
				continue
			}
			drain(resp)
		}

		metrics.GitHubHTTPRetries.Inc()
		jitter := time.Duration(rand.Intn(200)) * time.Millisecond
		delay := t.cfg.BaseDelay*time.Duration(attempt) + jitter
		info.Wait = delay
		if t.cfg.LogRetries {
			log.Info("backing off", "attempt", attempt, "delay", delay, "method", req.Method, "url", info.URL)
		}
		t.observe(info)
		if err := t.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, errors.New("httpx: exhausted retries")
}

func (t *RetryTransport) observe(info AttemptInfo) {
	if t.cfg.Observer != nil {
		t.cfg.Observer(info)
	}
}

// retryAfter parses a Retry-After value given either as seconds or as an
// HTTP date.
func retryAfter(v string, now time.Time) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d, true
		}
	}
	return 0, false
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
