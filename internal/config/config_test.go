package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{
		"PORT", "GITHUB_TOKEN", "GITHUB_REPOS", "GITHUB_HTTP_MAX_RETRIES",
		"GITHUB_BATCH_CONCURRENCY", "GITHUB_CACHE_REPO_TTL", "GRANT_DEFAULT_PERMISSION",
		"GRANT_SWEEP_SCHEDULE", "PROJECTS_CACHE_TTL", "CORS_ALLOWED_ORIGINS",
	} {
		t.Setenv(k, "")
	}
	ResetForTest()
	t.Cleanup(ResetForTest)

	cfg := Load()
	if cfg.Port != "8000" {
		t.Fatalf("expected default port 8000, got %q", cfg.Port)
	}
	if cfg.GitHubHTTPMaxRetries != 3 {
		t.Fatalf("expected default retries=3, got %d", cfg.GitHubHTTPMaxRetries)
	}
	if cfg.GitHubBatchConcurrency != 1 {
		t.Fatalf("batch fetches should default to sequential, got %d", cfg.GitHubBatchConcurrency)
	}
	if cfg.CacheRepositoryTTL != 0 {
		t.Fatalf("unset TTL override should be zero, got %v", cfg.CacheRepositoryTTL)
	}
	if cfg.GrantDefaultPermission != "pull" || cfg.GrantSweepSchedule != "@every 1h" {
		t.Fatalf("unexpected grant defaults: %q %q", cfg.GrantDefaultPermission, cfg.GrantSweepSchedule)
	}
	if cfg.ProjectsCacheTTL != 10*time.Minute {
		t.Fatalf("unexpected projects TTL %v", cfg.ProjectsCacheTTL)
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("expected two default origins, got %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "  ghp_example  ")
	t.Setenv("GITHUB_REPOS", "onnwee/portfolio, onnwee/subnet ,,")
	t.Setenv("GITHUB_CACHE_RATE_LIMIT_TTL", "90s")
	t.Setenv("GITHUB_CACHE_REPO_TTL", "not-a-duration")
	t.Setenv("PROJECT_FALLBACKS", "onnwee/portfolio=Personal site;broken;onnwee/subnet = Reddit graph ")
	ResetForTest()
	t.Cleanup(ResetForTest)

	cfg := Load()
	if cfg.GitHubToken != "ghp_example" {
		t.Errorf("token not trimmed: %q", cfg.GitHubToken)
	}
	if len(cfg.GitHubRepos) != 2 || cfg.GitHubRepos[1] != "onnwee/subnet" {
		t.Errorf("unexpected repos %v", cfg.GitHubRepos)
	}
	if cfg.CacheRateLimitTTL != 90*time.Second {
		t.Errorf("rate limit TTL = %v", cfg.CacheRateLimitTTL)
	}
	if cfg.CacheRepositoryTTL != 0 {
		t.Errorf("malformed duration should be ignored, got %v", cfg.CacheRepositoryTTL)
	}
	if cfg.ProjectFallbacks["onnwee/subnet"] != "Reddit graph" || len(cfg.ProjectFallbacks) != 2 {
		t.Errorf("unexpected fallbacks %v", cfg.ProjectFallbacks)
	}
}
