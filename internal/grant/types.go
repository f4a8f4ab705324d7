// Package grant redeems single-use access tokens for temporary collaborator
// access to private repositories, and revokes that access when it lapses.
package grant

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/onnwee/portfolio/backend/internal/githubapi"
)

// Errors a TokenStore reports.
var (
	ErrTokenNotFound = errors.New("grant: token not found")
	ErrTokenUsed     = errors.New("grant: token already used")
)

// AccessToken is a redeemable invitation to one repository.
type AccessToken struct {
	ID         int64
	Label      string
	Repository string // "owner/repo"
	Permission githubapi.Permission
	// ExpiresAt is the redemption deadline; zero means none.
	ExpiresAt time.Time
	// AccessDuration is how long granted access lasts; zero means until
	// revoked by hand.
	AccessDuration time.Duration
	UsedAt         time.Time
}

// Used reports whether the token has been redeemed.
func (t AccessToken) Used() bool { return !t.UsedAt.IsZero() }

// Expired reports whether the redemption deadline has passed at now.
func (t AccessToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

// GrantRecord is collaborator access handed out by redeeming a token.
type GrantRecord struct {
	ID             int64
	TokenID        int64
	Repository     string
	GitHubUsername string
	Permission     githubapi.Permission
	ClientIP       string
	GrantedAt      time.Time
	// ExpiresAt is when the sweeper removes the collaborator; zero means never.
	ExpiresAt time.Time
	RevokedAt time.Time
	// AlreadyCollaborator records access the user had before redeeming. The
	// sweeper lapses such grants without removing the collaborator.
	AlreadyCollaborator bool
}

// TokenStore persists tokens and the grants made with them.
type TokenStore interface {
	// Lookup returns ErrTokenNotFound for unknown tokens.
	Lookup(ctx context.Context, token string) (AccessToken, error)
	// MarkUsed redeems the token and records the grant atomically. It returns
	// ErrTokenUsed if another redemption won.
	MarkUsed(ctx context.Context, tokenID int64, rec GrantRecord) error
	// ExpiredGrants lists unrevoked grants whose ExpiresAt is at or before now.
	ExpiredGrants(ctx context.Context, now time.Time) ([]GrantRecord, error)
	MarkRevoked(ctx context.Context, grantID int64, at time.Time) error
}

// Collaborator is the GitHub surface the workflow needs.
type Collaborator interface {
	GetRepository(ctx context.Context, fullName string, opts ...githubapi.CallOption) (*githubapi.Repository, error)
	AddCollaborator(ctx context.Context, fullName, username string, permission githubapi.Permission) (*githubapi.CollaboratorResult, error)
	RemoveCollaborator(ctx context.Context, fullName, username string) error
}

// Reason is a stable code explaining a refused grant.
type Reason string

const (
	ReasonInvalidToken          Reason = "invalid_token"
	ReasonTokenExpired          Reason = "token_expired"
	ReasonTokenUsed             Reason = "token_used"
	ReasonInvalidUsername       Reason = "invalid_username"
	ReasonRepositoryUnavailable Reason = "repository_unavailable"
	ReasonGitHubError           Reason = "github_error"
	ReasonStoreError            Reason = "store_error"
)

// Request is a redemption attempt.
type Request struct {
	Token          string
	GitHubUsername string
	ClientIP       string
}

// Result is the outcome of Grant. Reason is empty when Granted.
type Result struct {
	Granted             bool       `json:"granted"`
	Reason              Reason     `json:"reason,omitempty"`
	Repository          string     `json:"repository,omitempty"`
	ExpiresAt           *time.Time `json:"expiresAt,omitempty"`
	AlreadyCollaborator bool       `json:"alreadyCollaborator,omitempty"`
}

func refused(r Reason) Result { return Result{Reason: r} }
