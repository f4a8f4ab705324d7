package grant

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/onnwee/portfolio/backend/internal/githubapi"
	"github.com/onnwee/portfolio/backend/internal/logger"
	"github.com/onnwee/portfolio/backend/internal/metrics"
)

// GitHub logins: alphanumerics and single inner hyphens, at most 39 chars.
var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9](?:-?[A-Za-z0-9]){0,38}$`)

// ValidUsername reports whether name is a syntactically valid GitHub login.
func ValidUsername(name string) bool {
	return len(name) <= 39 && usernamePattern.MatchString(name)
}

// Service orchestrates validate, grant, then mark used.
type Service struct {
	tokens            TokenStore
	github            Collaborator
	defaultPermission githubapi.Permission
	now               func() time.Time
	log               *slog.Logger

	// Redemptions of the same token are serialized inside this process;
	// different tokens proceed in parallel.
	inflight keyedMutex
}

// keyedMutex hands out one mutex per key and forgets it once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

// lock acquires the mutex for key and returns its release func.
func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// Option configures a Service.
type Option func(*Service)

// WithDefaultPermission applies p to tokens that carry no permission.
func WithDefaultPermission(p githubapi.Permission) Option {
	return func(s *Service) { s.defaultPermission = p }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wires the workflow.
func NewService(tokens TokenStore, gh Collaborator, opts ...Option) *Service {
	s := &Service{
		tokens:            tokens,
		github:            gh,
		defaultPermission: githubapi.PermissionPull,
		now:               time.Now,
		log:               logger.WithComponent("grant"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Grant redeems req.Token for req.GitHubUsername. The token is marked used
// only after GitHub accepted the collaborator.
func (s *Service) Grant(ctx context.Context, req Request) Result {
	res := s.grant(ctx, req)
	label := "granted"
	if !res.Granted {
		label = string(res.Reason)
	}
	metrics.GrantsTotal.WithLabelValues(label).Inc()
	return res
}

func (s *Service) grant(ctx context.Context, req Request) Result {
	token := strings.TrimSpace(req.Token)
	username := strings.TrimSpace(req.GitHubUsername)
	if token == "" {
		return refused(ReasonInvalidToken)
	}
	if !ValidUsername(username) {
		return refused(ReasonInvalidUsername)
	}

	defer s.inflight.lock(token)()

	tok, err := s.tokens.Lookup(ctx, token)
	if errors.Is(err, ErrTokenNotFound) {
		return refused(ReasonInvalidToken)
	}
	if err != nil {
		s.log.Error("token lookup failed", "error", err)
		return refused(ReasonStoreError)
	}

	now := s.now()
	if tok.Used() {
		return refused(ReasonTokenUsed)
	}
	if tok.Expired(now) {
		return refused(ReasonTokenExpired)
	}

	repo, err := s.github.GetRepository(ctx, tok.Repository)
	if err != nil {
		s.log.Warn("repository unavailable for grant", "token_id", tok.ID, "repo", tok.Repository, "error", err)
		return refused(ReasonRepositoryUnavailable)
	}
	fullName := repo.FullName
	if fullName == "" {
		fullName = tok.Repository
	}

	permission := tok.Permission
	if permission == "" {
		permission = s.defaultPermission
	}

	added, err := s.github.AddCollaborator(ctx, fullName, username, permission)
	if err != nil {
		s.log.Error("adding collaborator failed", "token_id", tok.ID, "repo", fullName, "username", username, "error", err)
		return refused(ReasonGitHubError)
	}

	rec := GrantRecord{
		TokenID:        tok.ID,
		Repository:     fullName,
		GitHubUsername: username,
		Permission:     permission,
		ClientIP:       req.ClientIP,
		GrantedAt:      now,

		AlreadyCollaborator: added.AlreadyCollaborator,
	}
	if tok.AccessDuration > 0 {
		rec.ExpiresAt = now.Add(tok.AccessDuration)
	}

	if err := s.tokens.MarkUsed(ctx, tok.ID, rec); err != nil {
		// Undo access we handed out, unless the user already had it.
		if !added.AlreadyCollaborator {
			if rmErr := s.github.RemoveCollaborator(ctx, fullName, username); rmErr != nil {
				s.log.Error("rollback of collaborator failed", "repo", fullName, "username", username, "error", rmErr)
			}
		}
		if errors.Is(err, ErrTokenUsed) {
			return refused(ReasonTokenUsed)
		}
		s.log.Error("marking token used failed", "token_id", tok.ID, "error", err)
		return refused(ReasonStoreError)
	}

	s.log.Info("access granted",
		"token_id", tok.ID,
		"repo", fullName,
		"username", username,
		"permission", permission,
		"already_collaborator", added.AlreadyCollaborator)

	out := Result{
		Granted:             true,
		Repository:          fullName,
		AlreadyCollaborator: added.AlreadyCollaborator,
	}
	if !rec.ExpiresAt.IsZero() {
		exp := rec.ExpiresAt
		out.ExpiresAt = &exp
	}
	return out
}
