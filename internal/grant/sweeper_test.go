package grant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/onnwee/portfolio/backend/internal/githubapi"
	"github.com/onnwee/portfolio/backend/internal/scheduler"
)

func seedGrants(store *fakeStore, grants ...GrantRecord) {
	for i := range grants {
		grants[i].ID = int64(i + 1)
	}
	store.grants = append(store.grants, grants...)
}

func TestSweeperRemovesExpiredGrants(t *testing.T) {
	store := newFakeStore()
	seedGrants(store,
		GrantRecord{Repository: "octo/a", GitHubUsername: "alice", ExpiresAt: testNow.Add(-time.Hour)},
		GrantRecord{Repository: "octo/a", GitHubUsername: "bob", ExpiresAt: testNow.Add(time.Hour)},
		GrantRecord{Repository: "octo/b", GitHubUsername: "carol", ExpiresAt: testNow},
		GrantRecord{Repository: "octo/b", GitHubUsername: "dave"},
	)
	gh := newFakeGitHub()
	sw := NewSweeper(store, gh, func() time.Time { return testNow })

	report, err := sw.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Checked != 2 || report.Removed != 2 || report.Failed != 0 {
		t.Errorf("unexpected report: %+v", report)
	}
	if len(gh.removed) != 2 {
		t.Errorf("unexpected removals: %v", gh.removed)
	}
	if _, ok := store.revoked[1]; !ok {
		t.Error("alice's grant should be revoked")
	}
	if _, ok := store.revoked[2]; ok {
		t.Error("bob's grant has not expired")
	}

	report, _ = sw.Run(context.Background())
	if report.Checked != 0 {
		t.Errorf("revoked grants must not be swept twice: %+v", report)
	}
}

func TestSweeperContinuesAfterFailure(t *testing.T) {
	store := newFakeStore()
	seedGrants(store,
		GrantRecord{Repository: "octo/a", GitHubUsername: "alice", ExpiresAt: testNow.Add(-time.Hour)},
		GrantRecord{Repository: "octo/a", GitHubUsername: "bob", ExpiresAt: testNow.Add(-time.Hour)},
		GrantRecord{Repository: "octo/a", GitHubUsername: "carol", ExpiresAt: testNow.Add(-time.Hour)},
	)
	gh := newFakeGitHub()
	gh.removeErrs["alice"] = &githubapi.APIError{Type: githubapi.ErrorUpstream, StatusCode: 502}
	store.revokeErrs[3] = errors.New("db unavailable")
	sw := NewSweeper(store, gh, func() time.Time { return testNow })

	report, err := sw.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Checked != 3 || report.Removed != 1 || report.Failed != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.Failures[0].Username != "alice" || report.Failures[1].Username != "carol" {
		t.Errorf("unexpected failures: %+v", report.Failures)
	}
}

func TestSweeperTreatsMissingCollaboratorAsRemoved(t *testing.T) {
	store := newFakeStore()
	seedGrants(store, GrantRecord{Repository: "octo/a", GitHubUsername: "alice", ExpiresAt: testNow.Add(-time.Hour)})
	gh := newFakeGitHub()
	gh.removeErrs["alice"] = &githubapi.APIError{Type: githubapi.ErrorNotFound, StatusCode: 404}
	sw := NewSweeper(store, gh, func() time.Time { return testNow })

	report, err := sw.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Removed != 1 || report.Failed != 0 {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestSweeperKeepsPriorCollaborators(t *testing.T) {
	store := newFakeStore()
	seedGrants(store,
		GrantRecord{Repository: "octo/a", GitHubUsername: "alice", ExpiresAt: testNow.Add(-time.Hour), AlreadyCollaborator: true},
		GrantRecord{Repository: "octo/a", GitHubUsername: "bob", ExpiresAt: testNow.Add(-time.Hour)},
	)
	gh := newFakeGitHub()
	sw := NewSweeper(store, gh, func() time.Time { return testNow })

	report, err := sw.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Checked != 2 || report.Removed != 1 || report.Kept != 1 || report.Failed != 0 {
		t.Errorf("unexpected report: %+v", report)
	}
	if len(gh.removed) != 1 || gh.removed[0] != "octo/a:bob" {
		t.Errorf("only bob should be removed, got %v", gh.removed)
	}
	if _, ok := store.revoked[1]; !ok {
		t.Error("alice's grant should still lapse")
	}
}

func TestGrantThenSweepLeavesExistingAccess(t *testing.T) {
	store := newFakeStore(validToken())
	gh := newFakeGitHub("octo/private")
	gh.already = true
	now := testNow
	clock := func() time.Time { return now }

	res := NewService(store, gh, WithClock(clock)).Grant(context.Background(), Request{Token: "tok-valid", GitHubUsername: "octocat"})
	if !res.Granted || !res.AlreadyCollaborator {
		t.Fatalf("expected grant to an existing collaborator, got %+v", res)
	}

	now = testNow.Add(8 * 24 * time.Hour)
	report, err := NewSweeper(store, gh, clock).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(gh.removed) != 0 {
		t.Errorf("collaborator with prior access was removed: %v", gh.removed)
	}
	if report.Kept != 1 || report.Removed != 0 {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestSweeperStopsOnCancelledContext(t *testing.T) {
	store := newFakeStore()
	seedGrants(store, GrantRecord{Repository: "octo/a", GitHubUsername: "alice", ExpiresAt: testNow.Add(-time.Hour)})
	sw := NewSweeper(store, newFakeGitHub(), func() time.Time { return testNow })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := sw.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestJobRunsSweepOnStart(t *testing.T) {
	store := newFakeStore()
	seedGrants(store, GrantRecord{Repository: "octo/a", GitHubUsername: "alice", ExpiresAt: testNow.Add(-time.Hour)})
	gh := newFakeGitHub()
	job := NewJob(NewSweeper(store, gh, func() time.Time { return testNow }), scheduler.MustParse("@every 1h"))

	done := make(chan struct{})
	go func() {
		job.Start(context.Background())
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		gh.mu.Lock()
		n := len(gh.removed)
		gh.mu.Unlock()
		if n == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	job.Stop()
	<-done

	if len(gh.removed) != 1 {
		t.Errorf("expected the first sweep to run immediately, removals: %v", gh.removed)
	}
}
