package grant

import (
	"context"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/onnwee/portfolio/backend/internal/githubapi"
	"github.com/onnwee/portfolio/backend/internal/logger"
	"github.com/onnwee/portfolio/backend/internal/metrics"
)

// SweepFailure is one grant the sweep could not revoke.
type SweepFailure struct {
	GrantID    int64  `json:"grantId"`
	Repository string `json:"repository"`
	Username   string `json:"username"`
	Error      string `json:"error"`
}

// SweepReport summarizes one sweep.
type SweepReport struct {
	Checked int `json:"checked"`
	Removed int `json:"removed"`
	// Kept counts lapsed grants whose user was a collaborator beforehand.
	Kept     int            `json:"kept"`
	Failed   int            `json:"failed"`
	Failures []SweepFailure `json:"failures,omitempty"`
}

// Sweeper removes collaborators whose grants have lapsed.
type Sweeper struct {
	tokens TokenStore
	github Collaborator
	now    func() time.Time
	log    *slog.Logger
}

// NewSweeper creates a sweeper. now may be nil.
func NewSweeper(tokens TokenStore, gh Collaborator, now func() time.Time) *Sweeper {
	if now == nil {
		now = time.Now
	}
	return &Sweeper{tokens: tokens, github: gh, now: now, log: logger.WithComponent("grant-sweeper")}
}

// Run revokes every expired grant. A failure on one grant is logged and
// reported without stopping the rest; the returned error is only for
// failing to list grants or a cancelled context.
func (s *Sweeper) Run(ctx context.Context) (SweepReport, error) {
	start := time.Now()
	defer func() { metrics.GrantSweepDuration.Observe(time.Since(start).Seconds()) }()

	var report SweepReport
	now := s.now()
	grants, err := s.tokens.ExpiredGrants(ctx, now)
	if err != nil {
		return report, errors.Wrap(err, "listing expired grants")
	}

	for _, g := range grants {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++

		removed, err := s.revoke(ctx, g, now)
		if err != nil {
			report.Failed++
			report.Failures = append(report.Failures, SweepFailure{
				GrantID:    g.ID,
				Repository: g.Repository,
				Username:   g.GitHubUsername,
				Error:      err.Error(),
			})
			metrics.GrantSweepRemovals.WithLabelValues("failed").Inc()
			s.log.Error("failed to revoke grant",
				"grant_id", g.ID,
				"repo", g.Repository,
				"username", g.GitHubUsername,
				"error", err)
			continue
		}
		if !removed {
			report.Kept++
			metrics.GrantSweepRemovals.WithLabelValues("kept").Inc()
			continue
		}
		report.Removed++
		metrics.GrantSweepRemovals.WithLabelValues("removed").Inc()
	}

	s.log.Info("sweep finished",
		"checked", report.Checked,
		"removed", report.Removed,
		"kept", report.Kept,
		"failed", report.Failed)
	return report, nil
}

// revoke lapses g and reports whether the collaborator was removed.
func (s *Sweeper) revoke(ctx context.Context, g GrantRecord, now time.Time) (bool, error) {
	if !g.AlreadyCollaborator {
		err := s.github.RemoveCollaborator(ctx, g.Repository, g.GitHubUsername)
		// Already gone on GitHub's side counts as removed.
		if err != nil && !errors.Is(err, githubapi.ErrNotFound) {
			return false, errors.Wrap(err, "removing collaborator")
		}
	}
	if err := s.tokens.MarkRevoked(ctx, g.ID, now); err != nil {
		return false, errors.Wrap(err, "marking grant revoked")
	}
	if g.AlreadyCollaborator {
		s.log.Info("grant lapsed, collaborator kept", "grant_id", g.ID, "repo", g.Repository, "username", g.GitHubUsername)
	}
	return !g.AlreadyCollaborator, nil
}
