package githubapi

import (
	"context"

	"github.com/google/go-github/v80/github"

	"github.com/onnwee/portfolio/backend/internal/metrics"
)

// GetRateLimit returns the account's current quota. Fetching it does not
// consume quota. It never fails: on error Value is nil and Err says why.
func (c *Client) GetRateLimit(ctx context.Context, opts ...CallOption) Supplementary[*RateLimitSnapshot] {
	o := applyCallOptions(opts)

	snap, err := cached(ctx, c, c.rateLimit, ResourceRateLimit, RateLimitKey(), o, func(ctx context.Context) (*RateLimitSnapshot, error) {
		var limits *github.RateLimits
		err := c.call(ctx, EndpointRateLimit, func(ctx context.Context) error {
			var err error
			limits, _, err = c.gh.RateLimit.Get(ctx)
			return err
		})
		if err != nil {
			return nil, err
		}
		snap := &RateLimitSnapshot{
			Core:      rateFromGitHub(limits.GetCore()),
			Search:    rateFromGitHub(limits.GetSearch()),
			GraphQL:   rateFromGitHub(limits.GetGraphQL()),
			FetchedAt: c.now(),
		}
		metrics.GitHubRateLimitRemaining.WithLabelValues("core").Set(float64(snap.Core.Remaining))
		metrics.GitHubRateLimitRemaining.WithLabelValues("search").Set(float64(snap.Search.Remaining))
		metrics.GitHubRateLimitRemaining.WithLabelValues("graphql").Set(float64(snap.GraphQL.Remaining))
		return snap, nil
	})
	if err != nil {
		c.log.Debug("rate limit unavailable", "error", err)
		return Supplementary[*RateLimitSnapshot]{Err: err}
	}
	return Supplementary[*RateLimitSnapshot]{Value: snap}
}
