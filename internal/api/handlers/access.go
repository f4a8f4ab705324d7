package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/onnwee/portfolio/backend/internal/apierr"
	"github.com/onnwee/portfolio/backend/internal/errorreporting"
	"github.com/onnwee/portfolio/backend/internal/githubapi"
	"github.com/onnwee/portfolio/backend/internal/grant"
	"github.com/onnwee/portfolio/backend/internal/logger"
	"github.com/onnwee/portfolio/backend/internal/middleware"
	"github.com/onnwee/portfolio/backend/internal/tokenstore"
	"github.com/onnwee/portfolio/backend/internal/utils"
)

const maxLabelLength = 100

// Granter redeems access tokens.
type Granter interface {
	Grant(ctx context.Context, req grant.Request) grant.Result
}

// TokenIssuer creates access tokens.
type TokenIssuer interface {
	Issue(ctx context.Context, n tokenstore.NewToken) (string, grant.AccessToken, error)
}

// AccessHandler serves the collaborator grant endpoints. A nil granter or
// issuer makes the matching endpoint report 503.
type AccessHandler struct {
	granter   Granter
	issuer    TokenIssuer
	sanitizer middleware.SanitizeInput
}

// NewAccessHandler creates the handler.
func NewAccessHandler(g Granter, issuer TokenIssuer) *AccessHandler {
	return &AccessHandler{granter: g, issuer: issuer}
}

type grantRequest struct {
	Token          string `json:"token"`
	GitHubUsername string `json:"githubUsername"`
}

// Grant redeems a token for collaborator access.
// POST /api/access/grant
func (h *AccessHandler) Grant(w http.ResponseWriter, r *http.Request) {
	if h.granter == nil {
		apierr.WriteErrorWithContext(w, r, apierr.SystemUnavailable("Access grants are not configured"))
		return
	}

	var body grantRequest
	if err := middleware.DecodeJSON(r, &body); err != nil {
		apierr.WriteErrorWithContext(w, r, err)
		return
	}

	res := h.granter.Grant(r.Context(), grant.Request{
		Token:          body.Token,
		GitHubUsername: body.GitHubUsername,
		ClientIP:       middleware.ClientIP(r),
	})
	if res.Granted {
		writeJSON(w, http.StatusOK, res)
		return
	}

	if res.Reason == grant.ReasonGitHubError || res.Reason == grant.ReasonStoreError {
		errorreporting.CaptureErrorWithContext(
			errors.Newf("access grant failed: %s", res.Reason),
			map[string]string{"component": "grant", "reason": string(res.Reason)},
			map[string]interface{}{"request_id": apierr.GetRequestID(r.Context())},
		)
	}
	logger.InfoContext(r.Context(), "access grant refused", "reason", res.Reason)
	apierr.WriteErrorWithContext(w, r, apierr.FromGrantReason(res.Reason).WithDetails(map[string]interface{}{
		"reason": string(res.Reason),
	}))
}

type issueRequest struct {
	Label          string `json:"label"`
	Repository     string `json:"repository"`
	Permission     string `json:"permission"`
	ValidFor       string `json:"validFor"`
	AccessDuration string `json:"accessDuration"`
}

type issueResponse struct {
	Token          string               `json:"token"`
	ID             int64                `json:"id"`
	Label          string               `json:"label,omitempty"`
	Repository     string               `json:"repository"`
	Permission     githubapi.Permission `json:"permission,omitempty"`
	ExpiresAt      *time.Time           `json:"expiresAt,omitempty"`
	AccessDuration string               `json:"accessDuration,omitempty"`
}

// IssueToken creates a single-use access token. The plaintext token is only
// ever returned here.
// POST /api/admin/access/tokens
func (h *AccessHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	if h.issuer == nil {
		apierr.WriteErrorWithContext(w, r, apierr.SystemUnavailable("Token store is not configured"))
		return
	}

	var body issueRequest
	if err := middleware.DecodeJSON(r, &body); err != nil {
		apierr.WriteErrorWithContext(w, r, err)
		return
	}

	n := tokenstore.NewToken{
		Label:      h.sanitizer.SanitizeString(body.Label, maxLabelLength),
		Repository: utils.NormalizeRepoName(body.Repository),
	}
	if n.Repository == "" {
		apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidValue("repository", "repository must be owner/repo"))
		return
	}
	if strings.TrimSpace(body.Permission) != "" {
		p, err := githubapi.ParsePermission(body.Permission)
		if err != nil {
			apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidValue("permission", "permission must be pull, push or admin"))
			return
		}
		n.Permission = p
	}
	var aerr *apierr.Error
	if n.ValidFor, aerr = parseOptionalDuration("validFor", body.ValidFor); aerr != nil {
		apierr.WriteErrorWithContext(w, r, aerr)
		return
	}
	if n.AccessDuration, aerr = parseOptionalDuration("accessDuration", body.AccessDuration); aerr != nil {
		apierr.WriteErrorWithContext(w, r, aerr)
		return
	}

	token, tok, err := h.issuer.Issue(r.Context(), n)
	if err != nil {
		logger.ErrorContext(r.Context(), "issuing access token failed", "repo", n.Repository, "error", err)
		apierr.WriteErrorWithContext(w, r, apierr.SystemDatabase(""))
		return
	}
	logger.InfoContext(r.Context(), "access token issued", "token_id", tok.ID, "repo", tok.Repository)

	out := issueResponse{
		Token:      token,
		ID:         tok.ID,
		Label:      tok.Label,
		Repository: tok.Repository,
		Permission: tok.Permission,
	}
	if !tok.ExpiresAt.IsZero() {
		exp := tok.ExpiresAt.UTC()
		out.ExpiresAt = &exp
	}
	if tok.AccessDuration > 0 {
		out.AccessDuration = tok.AccessDuration.String()
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusCreated, out)
}

func parseOptionalDuration(field, raw string) (time.Duration, *apierr.Error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, apierr.ValidationInvalidValue(field, field+" must be a positive duration such as 72h")
	}
	return d, nil
}
