package githubapi

import (
	"context"
	"sync"

	"github.com/google/go-github/v80/github"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/onnwee/portfolio/backend/internal/metrics"
)

// GetRepository returns metadata for "owner/repo". Failures propagate as
// *APIError: callers decide on fallback content.
func (c *Client) GetRepository(ctx context.Context, fullName string, opts ...CallOption) (*Repository, error) {
	owner, name, err := splitFullName(fullName)
	if err != nil {
		return nil, err
	}
	o := applyCallOptions(opts)

	fullName = owner + "/" + name

	return cached(ctx, c, c.repos, ResourceRepository, RepositoryKey(fullName), o, func(ctx context.Context) (*Repository, error) {
		var repo *github.Repository
		err := c.call(ctx, EndpointRepos, func(ctx context.Context) error {
			var err error
			repo, _, err = c.gh.Repositories.Get(ctx, owner, name)
			return err
		}, attribute.String("github.repo", fullName))
		if err != nil {
			return nil, err
		}
		return repositoryFromGitHub(repo), nil
	})
}

// GetRepositoryLanguages returns the language byte counts for "owner/repo".
// It never fails: on error Value is an empty map and Err says why.
func (c *Client) GetRepositoryLanguages(ctx context.Context, fullName string, opts ...CallOption) Supplementary[Languages] {
	owner, name, err := splitFullName(fullName)
	if err != nil {
		return Supplementary[Languages]{Value: Languages{}, Err: err}
	}
	o := applyCallOptions(opts)

	fullName = owner + "/" + name

	langs, err := cached(ctx, c, c.languages, ResourceLanguages, LanguagesKey(fullName), o, func(ctx context.Context) (Languages, error) {
		var raw map[string]int
		err := c.call(ctx, EndpointLanguages, func(ctx context.Context) error {
			var err error
			raw, _, err = c.gh.Repositories.ListLanguages(ctx, owner, name)
			return err
		}, attribute.String("github.repo", fullName))
		if err != nil {
			return nil, err
		}
		if raw == nil {
			raw = map[string]int{}
		}
		return Languages(raw), nil
	})
	if err != nil {
		c.log.Debug("languages unavailable", "repo", fullName, "error", err)
		return Supplementary[Languages]{Value: Languages{}, Err: err}
	}
	return Supplementary[Languages]{Value: langs}
}

// GetMultipleRepositories fetches each name and maps it to its metadata, or
// to nil when that fetch failed. One failure never aborts the batch.
//
// Fetches run one at a time unless WithBatchConcurrency allows more; a
// batch limiter, when set, paces the fetches that miss the cache.
func (c *Client) GetMultipleRepositories(ctx context.Context, names []string, opts ...CallOption) map[string]*Repository {
	out := make(map[string]*Repository, len(names))
	o := applyCallOptions(opts)

	fetchOne := func(ctx context.Context, name string) *Repository {
		if c.limiter != nil && (o.bypass || !c.store.Has(RepositoryKey(canonicalFullName(name)))) {
			if c.limiter.Tokens() < 1 {
				metrics.GitHubBatchPacingWaits.Inc()
			}
			if err := c.limiter.Wait(ctx); err != nil {
				c.log.Warn("batch fetch aborted while pacing", "repo", name, "error", err)
				return nil
			}
		}
		repo, err := c.GetRepository(ctx, name, opts...)
		if err != nil {
			c.log.Warn("repository fetch failed", "repo", name, "error", err)
			return nil
		}
		return repo
	}

	if c.concurrency <= 1 {
		for _, name := range names {
			out[name] = fetchOne(ctx, name)
		}
		return out
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for _, name := range names {
		g.Go(func() error {
			repo := fetchOne(ctx, name)
			mu.Lock()
			out[name] = repo
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}
