package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/onnwee/portfolio/backend/internal/cache"
	"github.com/onnwee/portfolio/backend/internal/githubapi"
)

type fakeProjectSource struct {
	mu        sync.Mutex
	repos     map[string]*githubapi.Repository
	languages map[string]githubapi.Languages
	batches   int
}

func (f *fakeProjectSource) GetMultipleRepositories(ctx context.Context, names []string, opts ...githubapi.CallOption) map[string]*githubapi.Repository {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches++
	out := make(map[string]*githubapi.Repository, len(names))
	for _, n := range names {
		out[n] = f.repos[n]
	}
	return out
}

func (f *fakeProjectSource) GetRepositoryLanguages(ctx context.Context, fullName string, opts ...githubapi.CallOption) githubapi.Supplementary[githubapi.Languages] {
	langs, ok := f.languages[fullName]
	if !ok {
		return githubapi.Supplementary[githubapi.Languages]{Value: githubapi.Languages{}, Err: githubapi.ErrUpstream}
	}
	return githubapi.Supplementary[githubapi.Languages]{Value: langs}
}

type ttlRecordingCache struct {
	*cache.MockCache
	lastTTL time.Duration
}

func (c *ttlRecordingCache) Set(key string, value []byte, ttl time.Duration) {
	c.lastTTL = ttl
	c.MockCache.Set(key, value, ttl)
}

var projectsNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestProjects(src ProjectSource, c cache.ResponseCache) *ProjectsHandler {
	h := NewProjectsHandler(src,
		[]string{"onnwee/portfolio", "onnwee/subnet", "onnwee/secret"},
		map[string]string{"onnwee/subnet": "Community graph explorer"},
		c, 10*time.Minute)
	h.now = func() time.Time { return projectsNow }
	return h
}

func getProjects(t *testing.T, h *ProjectsHandler) ProjectsResponse {
	t.Helper()
	rr := httptest.NewRecorder()
	h.GetProjects(rr, httptest.NewRequest(http.MethodGet, "/api/projects", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var out ProjectsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestGetProjects_LiveAndFallback(t *testing.T) {
	src := &fakeProjectSource{
		repos: map[string]*githubapi.Repository{
			"onnwee/portfolio": {
				FullName: "onnwee/portfolio", Name: "portfolio", Description: "Personal site",
				HTMLURL: "https://github.com/onnwee/portfolio", Stars: 12, SizeKB: 2048,
				PushedAt: projectsNow.Add(-3 * time.Hour),
			},
		},
		languages: map[string]githubapi.Languages{
			"onnwee/portfolio": {"Go": 300, "TypeScript": 700},
		},
	}
	c := &ttlRecordingCache{MockCache: cache.NewMockCache()}
	out := getProjects(t, newTestProjects(src, c))

	if !out.Degraded {
		t.Error("response with a fallback should be marked degraded")
	}
	if len(out.Projects) != 2 {
		t.Fatalf("expected live + fallback project, got %+v", out.Projects)
	}

	live := out.Projects[0]
	if live.Fallback || live.Stars != 12 || live.Size != "2.0 MiB" {
		t.Errorf("unexpected live project: %+v", live)
	}
	if live.UpdatedAgo != "3 hours ago" {
		t.Errorf("UpdatedAgo = %q", live.UpdatedAgo)
	}
	if len(live.Languages) != 2 || live.Languages[0].Name != "TypeScript" {
		t.Errorf("unexpected languages: %+v", live.Languages)
	}

	fb := out.Projects[1]
	if !fb.Fallback || fb.Name != "subnet" || fb.Description != "Community graph explorer" {
		t.Errorf("unexpected fallback: %+v", fb)
	}
	if fb.URL != "https://github.com/onnwee/subnet" {
		t.Errorf("fallback URL = %q", fb.URL)
	}
	if c.lastTTL != degradedProjectsTTL {
		t.Errorf("degraded responses should be cached briefly, got %v", c.lastTTL)
	}
}

func TestGetProjects_CachesResponse(t *testing.T) {
	all := map[string]*githubapi.Repository{}
	for _, n := range []string{"onnwee/portfolio", "onnwee/subnet", "onnwee/secret"} {
		all[n] = &githubapi.Repository{FullName: n}
	}
	src := &fakeProjectSource{repos: all}
	c := &ttlRecordingCache{MockCache: cache.NewMockCache()}
	h := newTestProjects(src, c)

	first := getProjects(t, h)
	second := getProjects(t, h)
	if src.batches != 1 {
		t.Errorf("expected one upstream batch, got %d", src.batches)
	}
	if first.Degraded || len(second.Projects) != 3 {
		t.Errorf("unexpected cached response: %+v", second)
	}
	if c.lastTTL != 10*time.Minute {
		t.Errorf("healthy responses should use the configured TTL, got %v", c.lastTTL)
	}

	h.InvalidateCache()
	getProjects(t, h)
	if src.batches != 2 {
		t.Errorf("invalidation should force a refetch, batches=%d", src.batches)
	}
}

func TestGetProjects_WithoutGitHub(t *testing.T) {
	out := getProjects(t, newTestProjects(nil, nil))
	if !out.Degraded || len(out.Projects) != 1 || !out.Projects[0].Fallback {
		t.Fatalf("expected only the fallback project, got %+v", out)
	}
	if out.Projects[0].Languages == nil {
		t.Error("languages should encode as an empty list")
	}
}
