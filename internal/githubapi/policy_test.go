package githubapi

import (
	"testing"
	"time"

	"github.com/onnwee/portfolio/backend/internal/config"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		res  Resource
		want time.Duration
	}{
		{ResourceRepository, 12 * time.Hour},
		{ResourceLanguages, 12 * time.Hour},
		{ResourceRateLimit, 5 * time.Minute},
	}
	for _, tt := range tests {
		if got := p.TTL(tt.res); got != tt.want {
			t.Errorf("TTL(%s) = %v, want %v", tt.res, got, tt.want)
		}
	}
}

func TestPolicyFallsBackToDefaults(t *testing.T) {
	p := Policy{ResourceRepository: time.Hour, ResourceLanguages: 0}
	if got := p.TTL(ResourceRepository); got != time.Hour {
		t.Errorf("override ignored: %v", got)
	}
	if got := p.TTL(ResourceLanguages); got != DefaultLanguagesTTL {
		t.Errorf("non-positive entry should fall back, got %v", got)
	}
	if got := p.TTL(ResourceRateLimit); got != DefaultRateLimitTTL {
		t.Errorf("missing entry should fall back, got %v", got)
	}
}

func TestPolicyFromConfig(t *testing.T) {
	cfg := &config.Config{CacheRepositoryTTL: time.Hour, CacheRateLimitTTL: -time.Minute}
	p := PolicyFromConfig(cfg)
	if p.TTL(ResourceRepository) != time.Hour {
		t.Errorf("repository TTL = %v", p.TTL(ResourceRepository))
	}
	if p.TTL(ResourceLanguages) != DefaultLanguagesTTL {
		t.Errorf("languages TTL = %v", p.TTL(ResourceLanguages))
	}
	if p.TTL(ResourceRateLimit) != DefaultRateLimitTTL {
		t.Errorf("rate limit TTL = %v", p.TTL(ResourceRateLimit))
	}
	if PolicyFromConfig(nil).TTL(ResourceRepository) != DefaultRepositoryTTL {
		t.Error("nil config should yield defaults")
	}
}
