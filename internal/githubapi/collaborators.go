package githubapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/go-github/v80/github"
	"go.opentelemetry.io/otel/attribute"
)

// Permission is a repository access level GitHub accepts for collaborators.
type Permission string

const (
	PermissionPull  Permission = "pull"
	PermissionPush  Permission = "push"
	PermissionAdmin Permission = "admin"
)

// ParsePermission validates s, case-insensitively.
func ParsePermission(s string) (Permission, error) {
	switch p := Permission(strings.ToLower(strings.TrimSpace(s))); p {
	case PermissionPull, PermissionPush, PermissionAdmin:
		return p, nil
	}
	return "", &APIError{Type: ErrorInvalidRequest, Message: "unknown permission " + s, Err: ErrInvalidPermission}
}

// AddCollaborator invites username to fullName with permission. Adding an
// existing collaborator succeeds with AlreadyCollaborator set, whether GitHub
// answers 204 or 422. Nothing here is cached.
func (c *Client) AddCollaborator(ctx context.Context, fullName, username string, permission Permission) (*CollaboratorResult, error) {
	owner, name, err := splitFullName(fullName)
	if err != nil {
		return nil, err
	}
	if _, err := ParsePermission(string(permission)); err != nil {
		return nil, err
	}
	if strings.TrimSpace(username) == "" {
		return nil, invalidRequest("username is required")
	}

	result := &CollaboratorResult{Repository: fullName, Username: username, Permission: string(permission)}

	var (
		invitation *github.CollaboratorInvitation
		status     int
	)
	err = c.call(ctx, "add_collaborator", func(ctx context.Context) error {
		var (
			resp *github.Response
			err  error
		)
		invitation, resp, err = c.gh.Repositories.AddCollaborator(ctx, owner, name, username, &github.RepositoryAddCollaboratorOptions{
			Permission: string(permission),
		})
		if resp != nil {
			status = resp.StatusCode
		}
		return err
	}, attribute.String("github.repo", fullName))

	switch {
	case IsAlreadyCollaborator(err):
		result.AlreadyCollaborator = true
	case err != nil:
		return nil, err
	case status == http.StatusNoContent || invitation.GetID() == 0:
		// 204: already a collaborator, no invitation created.
		result.AlreadyCollaborator = true
	default:
		result.InvitationID = invitation.GetID()
	}

	c.log.Info("collaborator added",
		"repo", fullName,
		"username", username,
		"permission", permission,
		"already_collaborator", result.AlreadyCollaborator)
	return result, nil
}

// RemoveCollaborator revokes username's access to fullName.
func (c *Client) RemoveCollaborator(ctx context.Context, fullName, username string) error {
	owner, name, err := splitFullName(fullName)
	if err != nil {
		return err
	}
	if strings.TrimSpace(username) == "" {
		return invalidRequest("username is required")
	}

	err = c.call(ctx, "remove_collaborator", func(ctx context.Context) error {
		_, err := c.gh.Repositories.RemoveCollaborator(ctx, owner, name, username)
		return err
	}, attribute.String("github.repo", fullName))
	if err != nil {
		return err
	}
	c.log.Info("collaborator removed", "repo", fullName, "username", username)
	return nil
}
