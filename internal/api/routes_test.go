package api

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/onnwee/portfolio/backend/internal/api/handlers"
	"github.com/onnwee/portfolio/backend/internal/middleware"
)

func TestHealthAndMetricsRegistered(t *testing.T) {
	router := newTestRouter(t, "")

	for _, path := range []string{"/health", "/metrics"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rr.Code)
		}
	}
}

// TestProjectsEndpointCompression verifies the projects endpoint has
// compression and ETag middleware applied.
func TestProjectsEndpointCompression(t *testing.T) {
	router := newTestRouter(t, "")

	tests := []struct {
		name           string
		acceptEncoding string
		wantEncoding   string
	}{
		{name: "with brotli support", acceptEncoding: "br", wantEncoding: "br"},
		{name: "with gzip support", acceptEncoding: "gzip", wantEncoding: "gzip"},
		{name: "brotli preferred", acceptEncoding: "gzip, br", wantEncoding: "br"},
		{name: "without compression", acceptEncoding: "", wantEncoding: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rr.Code)
			}
			if vary := rr.Header().Get("Vary"); !strings.Contains(vary, "Accept-Encoding") {
				t.Errorf("expected Vary header to contain 'Accept-Encoding', got %q", vary)
			}
			if rr.Header().Get("ETag") == "" {
				t.Error("expected an ETag on the projects response")
			}
			if ce := rr.Header().Get("Content-Encoding"); ce != tt.wantEncoding {
				t.Errorf("Content-Encoding = %q, want %q", ce, tt.wantEncoding)
			}
		})
	}
}

func TestProjectsEndpointNotModified(t *testing.T) {
	router := newTestRouter(t, "")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/projects", nil))
	etag := rr.Header().Get("ETag")

	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	req.Header.Set("If-None-Match", etag)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotModified {
		t.Errorf("expected 304 for matching ETag, got %d", rr.Code)
	}
}

func TestProjectsEndpointFallbackBody(t *testing.T) {
	router := newTestRouter(t, "")

	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	var r io.Reader = rr.Body
	if rr.Header().Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(rr.Body)
		if err != nil {
			t.Fatal(err)
		}
		r = gz
	}
	var out handlers.ProjectsResponse
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Projects) != 1 || out.Projects[0].Description != "Personal site" || !out.Projects[0].Fallback {
		t.Errorf("unexpected projects: %+v", out.Projects)
	}
}

func TestGrantEndpoint(t *testing.T) {
	router := newTestRouter(t, "")

	tests := []struct {
		name        string
		method      string
		contentType string
		body        string
		want        int
	}{
		{"not configured", http.MethodPost, "application/json", `{"token":"t","githubUsername":"octocat"}`, http.StatusServiceUnavailable},
		{"wrong content type", http.MethodPost, "text/plain", `token=t`, http.StatusUnsupportedMediaType},
		{"GET not allowed", http.MethodGet, "", "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/access/grant", bytes.NewBufferString(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestGrantEndpointRateLimited(t *testing.T) {
	limiter := middleware.NewRateLimiter(0, 0, 0.001, 1)
	defer limiter.Stop()
	router := newTestRouterWith(t, "", Deps{GrantLimiter: limiter})

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/access/grant", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "198.51.100.4:5000"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	if codes[0] == http.StatusTooManyRequests || codes[1] != http.StatusTooManyRequests {
		t.Errorf("expected second redemption attempt to be limited, got %v", codes)
	}

	// Other routes are not subject to the grant limiter.
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "198.51.100.4:5000"
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("health should not be limited, got %d", rr.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(t, "")

	req := httptest.NewRequest(http.MethodOptions, "/api/access/grant", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
	if !strings.Contains(rr.Header().Get("Access-Control-Allow-Methods"), http.MethodPost) {
		t.Errorf("POST should be allowed, got %q", rr.Header().Get("Access-Control-Allow-Methods"))
	}
}
