package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/onnwee/portfolio/backend/internal/apierr"
	"github.com/onnwee/portfolio/backend/internal/cache"
	"github.com/onnwee/portfolio/backend/internal/githubapi"
	"github.com/onnwee/portfolio/backend/internal/middleware"
)

// GitHubCache is the cache administration surface of the GitHub client.
type GitHubCache interface {
	CacheStats() cache.Stats
	ClearCache()
	ClearCacheEntry(key string)
	GetRateLimit(ctx context.Context, opts ...githubapi.CallOption) githubapi.Supplementary[*githubapi.RateLimitSnapshot]
}

// CacheAdminHandler handles cache administration endpoints.
type CacheAdminHandler struct {
	github    GitHubCache
	responses cache.ResponseCache
	sanitizer middleware.SanitizeInput
	now       func() time.Time
}

// NewCacheAdminHandler creates a new cache admin handler. Either argument
// may be nil.
func NewCacheAdminHandler(gh GitHubCache, responses cache.ResponseCache) *CacheAdminHandler {
	return &CacheAdminHandler{github: gh, responses: responses, now: time.Now}
}

type responseCacheStats struct {
	cache.ResponseStats
	SizeHuman string `json:"size"`
}

// GitHubCacheStatus is the body of GET /api/admin/github/cache.
type GitHubCacheStatus struct {
	CacheStats     cache.Stats                  `json:"cacheStats"`
	RateLimit      *githubapi.RateLimitSnapshot `json:"rateLimit"`
	RateLimitError string                       `json:"rateLimitError,omitempty"`
	ResetIn        string                       `json:"resetIn,omitempty"`
	ResponseCache  *responseCacheStats          `json:"responseCache,omitempty"`
	Timestamp      time.Time                    `json:"timestamp"`
}

// GetStats reports cache contents and a freshly fetched rate limit.
// GET /api/admin/github/cache
func (h *CacheAdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		apierr.WriteErrorWithContext(w, r, apierr.GitHubNotConfigured())
		return
	}
	now := h.now()
	out := GitHubCacheStatus{
		CacheStats: h.github.CacheStats(),
		Timestamp:  now.UTC(),
	}

	rl := h.github.GetRateLimit(r.Context(), githubapi.BypassCache())
	if rl.OK() {
		out.RateLimit = rl.Value
		if reset := rl.Value.Core.Reset; !reset.IsZero() {
			out.ResetIn = humanize.RelTime(reset, now, "ago", "from now")
		}
	} else {
		out.RateLimitError = apierr.FromGitHub(rl.Err).Message
	}

	if h.responses != nil {
		stats := h.responses.Stats()
		size := stats.Size
		if size < 0 {
			size = 0
		}
		out.ResponseCache = &responseCacheStats{ResponseStats: stats, SizeHuman: humanize.IBytes(uint64(size))}
	}

	writeJSON(w, http.StatusOK, out)
}

// Clear drops one key given by ?key=, or everything. Rendered responses are
// dropped in both cases since they derive from GitHub data.
// DELETE /api/admin/github/cache
func (h *CacheAdminHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		apierr.WriteErrorWithContext(w, r, apierr.GitHubNotConfigured())
		return
	}

	key := r.URL.Query().Get("key")
	if r.URL.Query().Has("key") {
		if err := h.sanitizer.ValidateCacheKey(key); err != nil {
			apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidValue("key", err.Error()))
			return
		}
		h.github.ClearCacheEntry(key)
	} else {
		h.github.ClearCache()
	}
	if h.responses != nil {
		h.responses.Clear()
	}

	body := map[string]any{
		"status":    "ok",
		"timestamp": h.now().UTC(),
	}
	if key != "" {
		body["cleared"] = key
	} else {
		body["cleared"] = "all"
	}
	writeJSON(w, http.StatusOK, body)
}
