package tokenstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/onnwee/portfolio/backend/internal/githubapi"
	"github.com/onnwee/portfolio/backend/internal/grant"
)

var (
	_ grant.TokenStore = (*Memory)(nil)
	_ grant.TokenStore = (*Postgres)(nil)
)

func TestMemoryIssueAndLookup(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory(func() time.Time { return now })
	ctx := context.Background()

	token, issued, err := m.Issue(ctx, NewToken{
		Label:          "recruiter",
		Repository:     "octo/private",
		Permission:     githubapi.PermissionPull,
		ValidFor:       48 * time.Hour,
		AccessDuration: 7 * 24 * time.Hour,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !issued.ExpiresAt.Equal(now.Add(48 * time.Hour)) {
		t.Errorf("ExpiresAt = %v", issued.ExpiresAt)
	}

	got, err := m.Lookup(ctx, token)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.ID != issued.ID || got.Repository != "octo/private" || got.Used() {
		t.Errorf("unexpected token: %+v", got)
	}

	if _, err := m.Lookup(ctx, "unknown"); !errors.Is(err, grant.ErrTokenNotFound) {
		t.Errorf("expected ErrTokenNotFound, got %v", err)
	}
}

func TestMemoryMarkUsedOnce(t *testing.T) {
	m := NewMemory(nil)
	ctx := context.Background()
	token, issued, _ := m.Issue(ctx, NewToken{Repository: "octo/private"})

	rec := grant.GrantRecord{Repository: "octo/private", GitHubUsername: "alice", GrantedAt: time.Now()}
	if err := m.MarkUsed(ctx, issued.ID, rec); err != nil {
		t.Fatal(err)
	}
	if err := m.MarkUsed(ctx, issued.ID, rec); !errors.Is(err, grant.ErrTokenUsed) {
		t.Errorf("second MarkUsed should fail with ErrTokenUsed, got %v", err)
	}
	got, _ := m.Lookup(ctx, token)
	if !got.Used() {
		t.Error("token should be used")
	}
}

func TestMemoryExpiredGrants(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory(func() time.Time { return now })
	ctx := context.Background()

	for i, exp := range []time.Time{now.Add(-2 * time.Hour), now.Add(time.Hour), {}, now.Add(-time.Hour)} {
		_, tok, _ := m.Issue(ctx, NewToken{Repository: "octo/private"})
		if err := m.MarkUsed(ctx, tok.ID, grant.GrantRecord{GitHubUsername: string(rune('a' + i)), GrantedAt: now, ExpiresAt: exp}); err != nil {
			t.Fatal(err)
		}
	}

	expired, err := m.ExpiredGrants(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(expired) != 2 || expired[0].GitHubUsername != "a" || expired[1].GitHubUsername != "d" {
		t.Fatalf("unexpected expired grants: %+v", expired)
	}

	if err := m.MarkRevoked(ctx, expired[0].ID, now); err != nil {
		t.Fatal(err)
	}
	expired, _ = m.ExpiredGrants(ctx, now)
	if len(expired) != 1 {
		t.Errorf("revoked grants must not be listed, got %+v", expired)
	}
}

type stubCollaborator struct{ removed []string }

func (s *stubCollaborator) GetRepository(ctx context.Context, fullName string, opts ...githubapi.CallOption) (*githubapi.Repository, error) {
	return &githubapi.Repository{FullName: fullName}, nil
}

func (s *stubCollaborator) AddCollaborator(ctx context.Context, fullName, username string, p githubapi.Permission) (*githubapi.CollaboratorResult, error) {
	return &githubapi.CollaboratorResult{Repository: fullName, Username: username, Permission: string(p)}, nil
}

func (s *stubCollaborator) RemoveCollaborator(ctx context.Context, fullName, username string) error {
	s.removed = append(s.removed, username)
	return nil
}

func TestMemoryGrantLifecycle(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	m := NewMemory(clock)
	gh := &stubCollaborator{}
	ctx := context.Background()

	token, _, _ := m.Issue(ctx, NewToken{Repository: "octo/private", ValidFor: time.Hour, AccessDuration: 24 * time.Hour})
	res := grant.NewService(m, gh, grant.WithClock(clock)).Grant(ctx, grant.Request{Token: token, GitHubUsername: "alice"})
	if !res.Granted {
		t.Fatalf("expected grant, got %+v", res)
	}

	report, err := grant.NewSweeper(m, gh, func() time.Time { return now.Add(25 * time.Hour) }).Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.Removed != 1 || len(gh.removed) != 1 || gh.removed[0] != "alice" {
		t.Errorf("expected alice to be swept, report %+v removed %v", report, gh.removed)
	}
}

func TestMemoryCounts(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory(func() time.Time { return now })
	ctx := context.Background()

	_, used, _ := m.Issue(ctx, NewToken{Repository: "octo/a"})
	_, _, _ = m.Issue(ctx, NewToken{Repository: "octo/a", ValidFor: time.Hour})
	_, _, _ = m.Issue(ctx, NewToken{Repository: "octo/a", ValidFor: time.Minute})

	if err := m.MarkUsed(ctx, used.ID, grant.GrantRecord{Repository: "octo/a", GitHubUsername: "alice", GrantedAt: now}); err != nil {
		t.Fatal(err)
	}

	c, err := m.Counts(ctx, now.Add(10*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if c.OutstandingTokens != 1 || c.ActiveGrants != 1 {
		t.Errorf("unexpected counts: %+v", c)
	}
}
