package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/onnwee/portfolio/backend/internal/apierr"
	"github.com/onnwee/portfolio/backend/internal/cache"
	"github.com/onnwee/portfolio/backend/internal/githubapi"
	"github.com/onnwee/portfolio/backend/internal/logger"
	"github.com/onnwee/portfolio/backend/internal/metrics"
)

const (
	projectsCacheKey = "projects"
	// Degraded responses are kept briefly so GitHub recovering shows up fast.
	degradedProjectsTTL = 30 * time.Second
	languageFetchLimit  = 4
)

// ProjectSource is the GitHub surface the projects endpoint reads.
type ProjectSource interface {
	GetMultipleRepositories(ctx context.Context, names []string, opts ...githubapi.CallOption) map[string]*githubapi.Repository
	GetRepositoryLanguages(ctx context.Context, fullName string, opts ...githubapi.CallOption) githubapi.Supplementary[githubapi.Languages]
}

// Project is one entry of GET /api/projects.
type Project struct {
	Name        string                    `json:"name"`
	FullName    string                    `json:"fullName"`
	Description string                    `json:"description"`
	URL         string                    `json:"url"`
	Homepage    string                    `json:"homepage,omitempty"`
	Language    string                    `json:"language,omitempty"`
	Topics      []string                  `json:"topics,omitempty"`
	Stars       int                       `json:"stars"`
	Forks       int                       `json:"forks"`
	Archived    bool                      `json:"archived,omitempty"`
	Size        string                    `json:"size,omitempty"`
	UpdatedAt   *time.Time                `json:"updatedAt,omitempty"`
	UpdatedAgo  string                    `json:"updatedAgo,omitempty"`
	Languages   []githubapi.LanguageShare `json:"languages"`
	Fallback    bool                      `json:"fallback"`
}

// ProjectsResponse is the body of GET /api/projects.
type ProjectsResponse struct {
	Projects    []Project `json:"projects"`
	Degraded    bool      `json:"degraded"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// ProjectsHandler renders the tracked repositories. Source may be nil when
// GitHub is not configured; every project then comes from its fallback.
type ProjectsHandler struct {
	source    ProjectSource
	repos     []string
	fallbacks map[string]string
	cache     cache.ResponseCache
	ttl       time.Duration
	now       func() time.Time
	log       *slog.Logger
}

// NewProjectsHandler creates the handler. A nil response cache disables
// response caching.
func NewProjectsHandler(src ProjectSource, repos []string, fallbacks map[string]string, c cache.ResponseCache, ttl time.Duration) *ProjectsHandler {
	return &ProjectsHandler{
		source:    src,
		repos:     repos,
		fallbacks: fallbacks,
		cache:     c,
		ttl:       ttl,
		now:       time.Now,
		log:       logger.WithComponent("projects"),
	}
}

// GetProjects returns the tracked repositories.
// GET /api/projects
func (h *ProjectsHandler) GetProjects(w http.ResponseWriter, r *http.Request) {
	if h.cache != nil {
		if body, ok := h.cache.Get(projectsCacheKey); ok {
			metrics.APICacheHits.WithLabelValues("projects").Inc()
			writeJSONBytes(w, body)
			return
		}
		metrics.APICacheMisses.WithLabelValues("projects").Inc()
	}

	resp := h.build(r.Context())
	body, err := json.Marshal(resp)
	if err != nil {
		logger.ErrorContext(r.Context(), "encoding projects failed", "error", err)
		apierr.WriteErrorWithContext(w, r, apierr.SystemInternal(""))
		return
	}

	if h.cache != nil {
		ttl := h.ttl
		if resp.Degraded && (ttl <= 0 || ttl > degradedProjectsTTL) {
			ttl = degradedProjectsTTL
		}
		h.cache.Set(projectsCacheKey, body, ttl)
	}
	writeJSONBytes(w, body)
}

// InvalidateCache drops the rendered projects body.
func (h *ProjectsHandler) InvalidateCache() {
	if h.cache != nil {
		h.cache.Delete(projectsCacheKey)
	}
}

func (h *ProjectsHandler) build(ctx context.Context) ProjectsResponse {
	now := h.now()
	resp := ProjectsResponse{Projects: make([]Project, 0, len(h.repos)), GeneratedAt: now.UTC()}

	var fetched map[string]*githubapi.Repository
	if h.source != nil && len(h.repos) > 0 {
		fetched = h.source.GetMultipleRepositories(ctx, h.repos)
	}

	for _, name := range h.repos {
		if repo := fetched[name]; repo != nil {
			resp.Projects = append(resp.Projects, projectFromRepository(repo, now))
			continue
		}
		resp.Degraded = true
		desc, ok := h.fallbackFor(name)
		if !ok {
			h.log.Warn("project dropped: no data and no fallback", "repo", name)
			continue
		}
		resp.Projects = append(resp.Projects, fallbackProject(name, desc))
	}

	h.attachLanguages(ctx, resp.Projects)
	return resp
}

func (h *ProjectsHandler) fallbackFor(name string) (string, bool) {
	if desc, ok := h.fallbacks[name]; ok {
		return desc, true
	}
	for k, desc := range h.fallbacks {
		if strings.EqualFold(k, name) {
			return desc, true
		}
	}
	return "", false
}

// attachLanguages fills in language breakdowns for live projects. Failures
// leave the list empty.
func (h *ProjectsHandler) attachLanguages(ctx context.Context, projects []Project) {
	if h.source == nil {
		return
	}
	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	g.SetLimit(languageFetchLimit)
	for i := range projects {
		if projects[i].Fallback {
			continue
		}
		i := i
		g.Go(func() error {
			langs := h.source.GetRepositoryLanguages(ctx, projects[i].FullName)
			if !langs.OK() {
				return nil
			}
			shares := langs.Value.Breakdown()
			mu.Lock()
			projects[i].Languages = shares
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
}

func projectFromRepository(repo *githubapi.Repository, now time.Time) Project {
	p := Project{
		Name:        repo.Name,
		FullName:    repo.FullName,
		Description: repo.Description,
		URL:         repo.HTMLURL,
		Homepage:    repo.Homepage,
		Language:    repo.Language,
		Topics:      repo.Topics,
		Stars:       repo.Stars,
		Forks:       repo.Forks,
		Archived:    repo.Archived,
		Languages:   []githubapi.LanguageShare{},
	}
	if repo.SizeKB > 0 {
		p.Size = humanize.IBytes(uint64(repo.SizeKB) * 1024)
	}
	updated := repo.PushedAt
	if updated.IsZero() {
		updated = repo.UpdatedAt
	}
	if !updated.IsZero() {
		u := updated.UTC()
		p.UpdatedAt = &u
		p.UpdatedAgo = humanize.RelTime(updated, now, "ago", "from now")
	}
	return p
}

func fallbackProject(fullName, description string) Project {
	name := fullName
	if _, repo, ok := strings.Cut(fullName, "/"); ok {
		name = repo
	}
	return Project{
		Name:        name,
		FullName:    fullName,
		Description: description,
		URL:         "https://github.com/" + fullName,
		Languages:   []githubapi.LanguageShare{},
		Fallback:    true,
	}
}
