package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/portfolio/backend/internal/api/handlers"
	"github.com/onnwee/portfolio/backend/internal/apierr"
	"github.com/onnwee/portfolio/backend/internal/cache"
	"github.com/onnwee/portfolio/backend/internal/config"
	"github.com/onnwee/portfolio/backend/internal/githubapi"
	"github.com/onnwee/portfolio/backend/internal/middleware"
)

// projectsMaxAge is how long browsers may reuse a projects response.
const projectsMaxAge = time.Minute

// Deps are the services the router exposes. Nil fields make the matching
// endpoints degrade instead of failing to start.
type Deps struct {
	GitHub    *githubapi.Client
	Responses cache.ResponseCache
	Granter   handlers.Granter
	Issuer    handlers.TokenIssuer
	// Limiter applies to every route, GrantLimiter additionally to token
	// redemption. Callers own their lifecycle.
	Limiter      *middleware.RateLimiter
	GrantLimiter *middleware.RateLimiter
}

func NewRouter(deps Deps) *mux.Router {
	cfg := config.Load()
	r := mux.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RecoverWithSentry)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(middleware.CORSConfigFor(cfg.CORSAllowedOrigins)))
	if deps.Limiter != nil {
		r.Use(deps.Limiter.Limit)
	}
	r.Use(middleware.ValidateRequestBody)

	var (
		source handlers.ProjectSource
		ghc    handlers.GitHubCache
	)
	if deps.GitHub != nil {
		source, ghc = deps.GitHub, deps.GitHub
	}

	// Health and metrics
	r.HandleFunc("/health", handlers.Health(deps.GitHub != nil)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// Projects
	projects := handlers.NewProjectsHandler(source, cfg.GitHubRepos, cfg.ProjectFallbacks, deps.Responses, cfg.ProjectsCacheTTL)
	r.Handle("/api/projects", chain(http.HandlerFunc(projects.GetProjects),
		middleware.Instrument("projects"),
		middleware.Compress,
		middleware.ETag(projectsMaxAge),
	)).Methods(http.MethodGet, http.MethodHead)

	// Access grants
	access := handlers.NewAccessHandler(deps.Granter, deps.Issuer)
	grantMW := []func(http.Handler) http.Handler{middleware.Instrument("access_grant"), middleware.NoStore}
	if deps.GrantLimiter != nil {
		grantMW = append(grantMW, deps.GrantLimiter.Limit)
	}
	r.Handle("/api/access/grant", chain(http.HandlerFunc(access.Grant), grantMW...)).Methods(http.MethodPost)

	// Admin auth middleware
	adminOnly := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.AdminAPIToken == "" {
				apierr.WriteErrorWithContext(w, r, apierr.AuthNotConfigured())
				return
			}
			auth := r.Header.Get("Authorization")
			if auth == "" {
				apierr.WriteErrorWithContext(w, r, apierr.AuthMissing(""))
				return
			}
			const prefix = "Bearer "
			if !strings.HasPrefix(auth, prefix) ||
				subtle.ConstantTimeCompare([]byte(auth[len(prefix):]), []byte(cfg.AdminAPIToken)) != 1 {
				apierr.WriteErrorWithContext(w, r, apierr.AuthInvalid(""))
				return
			}
			next.ServeHTTP(w, r)
		})
	}

	admin := r.PathPrefix("/api/admin").Subrouter()
	admin.Use(adminOnly, middleware.NoStore)

	cacheAdmin := handlers.NewCacheAdminHandler(ghc, deps.Responses)
	admin.Handle("/github/cache", middleware.Instrument("admin_github_cache")(http.HandlerFunc(cacheAdmin.GetStats))).Methods(http.MethodGet)
	admin.Handle("/github/cache", middleware.Instrument("admin_github_cache")(http.HandlerFunc(cacheAdmin.Clear))).Methods(http.MethodDelete)
	admin.Handle("/access/tokens", middleware.Instrument("admin_access_tokens")(http.HandlerFunc(access.IssueToken))).Methods(http.MethodPost)

	// Profiling
	pprofRoutes := r.PathPrefix("/debug/pprof").Subrouter()
	pprofRoutes.Use(adminOnly)
	pprofRoutes.HandleFunc("/", handlers.Profile).Methods(http.MethodGet)
	pprofRoutes.HandleFunc("/{profile}", handlers.Profile).Methods(http.MethodGet, http.MethodPost)

	// OPTIONS on any path; the CORS middleware answers preflights before this.
	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return r
}

// chain wraps h so the first middleware is outermost.
func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
