// Package server assembles the API process: caches, the GitHub client, the
// token store, the grant workflow and the HTTP server around them.
package server

import (
	"context"
	"database/sql"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/onnwee/portfolio/backend/internal/api"
	"github.com/onnwee/portfolio/backend/internal/cache"
	"github.com/onnwee/portfolio/backend/internal/config"
	"github.com/onnwee/portfolio/backend/internal/db"
	"github.com/onnwee/portfolio/backend/internal/githubapi"
	"github.com/onnwee/portfolio/backend/internal/grant"
	"github.com/onnwee/portfolio/backend/internal/logger"
	"github.com/onnwee/portfolio/backend/internal/metrics"
	"github.com/onnwee/portfolio/backend/internal/middleware"
	"github.com/onnwee/portfolio/backend/internal/scheduler"
	"github.com/onnwee/portfolio/backend/internal/secrets"
	"github.com/onnwee/portfolio/backend/internal/tokenstore"
)

const (
	shutdownTimeout = 15 * time.Second
	// Entries bound the response cache alongside its byte budget.
	responseCacheEntries = 1000
)

// TokenStore is what the server needs from token persistence.
type TokenStore interface {
	grant.TokenStore
	Issue(ctx context.Context, n tokenstore.NewToken) (string, grant.AccessToken, error)
	Counts(ctx context.Context, now time.Time) (tokenstore.Counts, error)
}

type Server struct {
	cfg *config.Config
	log *slog.Logger

	store     *cache.Store
	responses *cache.LRUCache
	github    *githubapi.Client
	conn      *sql.DB
	tokens    TokenStore
	grants    *grant.Service
	grantJob  *grant.Job
	collector *metrics.Collector

	limiter      *middleware.RateLimiter
	grantLimiter *middleware.RateLimiter
	handler      http.Handler
}

// InitTokenStore returns a Postgres store when DATABASE_URL is set, and an
// in-memory one otherwise. The returned *sql.DB is nil for the memory store.
func InitTokenStore(ctx context.Context, cfg *config.Config) (TokenStore, *sql.DB, error) {
	if cfg.DatabaseURL == "" {
		return tokenstore.NewMemory(nil), nil, nil
	}
	conn, err := db.Init(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	pg := tokenstore.NewPostgres(conn)
	if err := pg.EnsureSchema(ctx); err != nil {
		conn.Close()
		return nil, nil, err
	}
	return pg, conn, nil
}

// New wires every component from cfg. Missing GitHub credentials or database
// degrade the matching features instead of failing.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	s := &Server{cfg: cfg, log: logger.WithComponent("server"), store: cache.New()}

	responses, err := cache.NewLRU(cfg.APICacheMaxMB, responseCacheEntries, cfg.ProjectsCacheTTL)
	if err != nil {
		return nil, errors.Wrap(err, "creating response cache")
	}
	s.responses = responses

	gh, err := githubapi.NewFromConfig(cfg, s.store)
	switch {
	case errors.Is(err, githubapi.ErrConfiguration):
		s.log.Warn("GitHub not configured; serving fallback project data", "error", err)
	case err != nil:
		s.responses.Close()
		return nil, errors.Wrap(err, "creating GitHub client")
	default:
		s.github = gh
		s.log.Info("GitHub client ready", "token", secrets.Mask(cfg.GitHubToken), "repos", len(cfg.GitHubRepos))
	}

	tokens, conn, err := InitTokenStore(ctx, cfg)
	if err != nil {
		s.responses.Close()
		return nil, errors.Wrap(err, "initializing token store")
	}
	s.tokens, s.conn = tokens, conn
	if conn == nil {
		s.log.Warn("DATABASE_URL not set; access tokens are kept in memory and lost on restart")
	} else {
		s.log.Info("token store ready", "database", secrets.MaskURL(cfg.DatabaseURL))
	}

	if s.github != nil {
		perm, err := githubapi.ParsePermission(cfg.GrantDefaultPermission)
		if err != nil {
			s.Close()
			return nil, errors.Wrap(err, "GRANT_DEFAULT_PERMISSION")
		}
		s.grants = grant.NewService(s.tokens, s.github, grant.WithDefaultPermission(perm))

		if cfg.GrantSweepEnabled {
			schedule, err := scheduler.Parse(cfg.GrantSweepSchedule)
			if err != nil {
				s.Close()
				return nil, errors.Wrap(err, "GRANT_SWEEP_SCHEDULE")
			}
			s.grantJob = grant.NewJob(grant.NewSweeper(s.tokens, s.github, nil), schedule)
		}
	}

	if cfg.EnableRateLimit {
		s.limiter = middleware.NewRateLimiter(cfg.RateLimitGlobal, cfg.RateLimitGlobalBurst, cfg.RateLimitPerIP, cfg.RateLimitPerIPBurst)
		s.grantLimiter = middleware.NewRateLimiter(0, 0, cfg.RateLimitGrantPerIP, cfg.RateLimitGrantBurst)
	}

	s.collector = s.newCollector()

	deps := api.Deps{
		GitHub:       s.github,
		Responses:    s.responses,
		Issuer:       s.tokens,
		Limiter:      s.limiter,
		GrantLimiter: s.grantLimiter,
	}
	if s.grants != nil {
		deps.Granter = s.grants
	}
	s.handler = api.NewRouter(deps)
	return s, nil
}

// newCollector registers the gauges refreshed in the background.
func (s *Server) newCollector() *metrics.Collector {
	c := metrics.NewCollector(s.cfg.MetricsInterval)
	c.Register("tokenstore", func(ctx context.Context) error {
		counts, err := s.tokens.Counts(ctx, time.Now())
		if err != nil {
			metrics.AccessTokensOutstanding.Set(-1)
			metrics.AccessGrantsActive.Set(-1)
			return err
		}
		metrics.AccessTokensOutstanding.Set(float64(counts.OutstandingTokens))
		metrics.AccessGrantsActive.Set(float64(counts.ActiveGrants))
		return nil
	})
	if s.github != nil {
		c.Register("github_cache", func(ctx context.Context) error {
			s.github.CacheStats()
			return nil
		})
		c.Register("github_rate_limit", func(ctx context.Context) error {
			return s.github.GetRateLimit(ctx).Err
		})
	}
	return c
}

// Handler is the routed API.
func (s *Server) Handler() http.Handler { return s.handler }

// Serve runs the API on ln until ctx is cancelled, then drains in-flight
// requests. The grant sweep, if configured, runs alongside.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	jobDone := make(chan struct{})
	if s.grantJob != nil {
		go func() {
			defer close(jobDone)
			s.grantJob.Start(ctx)
		}()
	} else {
		close(jobDone)
	}

	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		s.collector.Start(ctx)
	}()

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.log.Info("server listening", "addr", ln.Addr().String())

	var serveErr error
	select {
	case serveErr = <-errc:
	case <-ctx.Done():
		s.log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			serveErr = errors.Wrap(err, "shutdown")
		}
		<-errc
	}

	if s.grantJob != nil {
		s.grantJob.Stop()
	}
	<-jobDone
	s.collector.Stop()
	<-collectorDone

	if errors.Is(serveErr, http.ErrServerClosed) {
		return nil
	}
	return serveErr
}

// ListenAndServe listens on cfg.Port and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+s.cfg.Port)
	if err != nil {
		return errors.Wrapf(err, "listen on :%s", s.cfg.Port)
	}
	return s.Serve(ctx, ln)
}

// Close releases caches, limiters and the database pool.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	if s.grantLimiter != nil {
		s.grantLimiter.Stop()
	}
	if s.responses != nil {
		s.responses.Close()
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}
}
