package githubapi

import (
	"fmt"
	"sort"
	"strings"
)

// KeyNamespace prefixes every key the client writes to the cache store.
const KeyNamespace = "github"

// Endpoint names used in cache keys.
const (
	EndpointRepos     = "repos"
	EndpointLanguages = "languages"
	EndpointRateLimit = "rate_limit"
)

// BuildKey returns the cache key for a logical request: "github:<endpoint>"
// followed by "?k=v&..." with params sorted by name. Two requests with the
// same endpoint and params always produce the same key, whatever the map
// iteration order.
func BuildKey(endpoint string, params map[string]any) string {
	if len(params) == 0 {
		return KeyNamespace + ":" + endpoint
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, name+"="+fmt.Sprint(params[name]))
	}
	return KeyNamespace + ":" + endpoint + "?" + strings.Join(pairs, "&")
}

// RepositoryKey is the cache key for a repository's metadata.
func RepositoryKey(fullName string) string {
	return BuildKey(EndpointRepos, map[string]any{"repo": fullName})
}

// LanguagesKey is the cache key for a repository's language breakdown.
func LanguagesKey(fullName string) string {
	return BuildKey(EndpointLanguages, map[string]any{"repo": fullName})
}

// RateLimitKey is the cache key for the rate limit snapshot.
func RateLimitKey() string {
	return BuildKey(EndpointRateLimit, nil)
}
