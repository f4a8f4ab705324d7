package githubapi

import (
	"time"

	"github.com/onnwee/portfolio/backend/internal/config"
)

// Resource identifies a cached payload kind.
type Resource int

const (
	ResourceRepository Resource = iota
	ResourceLanguages
	ResourceRateLimit
)

func (r Resource) String() string {
	switch r {
	case ResourceRepository:
		return "repository"
	case ResourceLanguages:
		return "languages"
	case ResourceRateLimit:
		return "rate_limit"
	default:
		return "unknown"
	}
}

// Policy maps each resource to its cache TTL.
type Policy map[Resource]time.Duration

// Repository metadata and languages change rarely; the rate limit snapshot
// must stay close to current quota.
const (
	DefaultRepositoryTTL = 12 * time.Hour
	DefaultLanguagesTTL  = 12 * time.Hour
	DefaultRateLimitTTL  = 5 * time.Minute
)

// DefaultPolicy returns the built-in TTLs.
func DefaultPolicy() Policy {
	return Policy{
		ResourceRepository: DefaultRepositoryTTL,
		ResourceLanguages:  DefaultLanguagesTTL,
		ResourceRateLimit:  DefaultRateLimitTTL,
	}
}

// PolicyFromConfig applies positive TTL overrides from cfg to the defaults.
func PolicyFromConfig(cfg *config.Config) Policy {
	p := DefaultPolicy()
	if cfg == nil {
		return p
	}
	if cfg.CacheRepositoryTTL > 0 {
		p[ResourceRepository] = cfg.CacheRepositoryTTL
	}
	if cfg.CacheLanguagesTTL > 0 {
		p[ResourceLanguages] = cfg.CacheLanguagesTTL
	}
	if cfg.CacheRateLimitTTL > 0 {
		p[ResourceRateLimit] = cfg.CacheRateLimitTTL
	}
	return p
}

// TTL returns the TTL for r, falling back to the default when the policy
// has no positive entry for it.
func (p Policy) TTL(r Resource) time.Duration {
	if ttl, ok := p[r]; ok && ttl > 0 {
		return ttl
	}
	if ttl, ok := DefaultPolicy()[r]; ok {
		return ttl
	}
	return DefaultRateLimitTTL
}
