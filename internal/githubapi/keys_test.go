package githubapi

import "testing"

func TestBuildKey(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		params   map[string]any
		want     string
	}{
		{"no params", "rate_limit", nil, "github:rate_limit"},
		{"empty params", "rate_limit", map[string]any{}, "github:rate_limit"},
		{"single param", "repos", map[string]any{"repo": "a/b"}, "github:repos?repo=a/b"},
		{"sorted params", "search", map[string]any{"b": 2, "a": 1}, "github:search?a=1&b=2"},
		{"scalar rendering", "list", map[string]any{"page": 3, "archived": false}, "github:list?archived=false&page=3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildKey(tt.endpoint, tt.params); got != tt.want {
				t.Errorf("BuildKey(%q, %v) = %q, want %q", tt.endpoint, tt.params, got, tt.want)
			}
		})
	}
}

func TestBuildKeyOrderIndependent(t *testing.T) {
	a := BuildKey("ep", map[string]any{"a": 1, "b": 2, "c": "x"})
	for i := 0; i < 50; i++ {
		b := BuildKey("ep", map[string]any{"c": "x", "b": 2, "a": 1})
		if a != b {
			t.Fatalf("keys differ: %q vs %q", a, b)
		}
	}
}

func TestResourceKeys(t *testing.T) {
	if got := RepositoryKey("octo/hello"); got != "github:repos?repo=octo/hello" {
		t.Errorf("RepositoryKey = %q", got)
	}
	if got := LanguagesKey("octo/hello"); got != "github:languages?repo=octo/hello" {
		t.Errorf("LanguagesKey = %q", got)
	}
	if got := RateLimitKey(); got != "github:rate_limit" {
		t.Errorf("RateLimitKey = %q", got)
	}
	if RepositoryKey("octo/hello") == LanguagesKey("octo/hello") {
		t.Error("repository and languages keys must not collide")
	}
}
