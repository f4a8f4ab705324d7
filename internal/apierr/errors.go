package apierr

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/onnwee/portfolio/backend/internal/githubapi"
	"github.com/onnwee/portfolio/backend/internal/grant"
	"github.com/onnwee/portfolio/backend/internal/logger"
)

// ErrorCode represents a structured error code
type ErrorCode string

// Error code constants organized by category
const (
	// AUTH_ - Admin authentication errors
	ErrAuthMissing       ErrorCode = "AUTH_MISSING"
	ErrAuthInvalid       ErrorCode = "AUTH_INVALID"
	ErrAuthNotConfigured ErrorCode = "AUTH_NOT_CONFIGURED"

	// GITHUB_ - Upstream GitHub API errors
	ErrGitHubUnavailable   ErrorCode = "GITHUB_UNAVAILABLE"
	ErrGitHubNotFound      ErrorCode = "GITHUB_NOT_FOUND"
	ErrGitHubForbidden     ErrorCode = "GITHUB_FORBIDDEN"
	ErrGitHubRateLimited   ErrorCode = "GITHUB_RATE_LIMITED"
	ErrGitHubNotConfigured ErrorCode = "GITHUB_NOT_CONFIGURED"

	// GRANT_ - Collaborator grant refusals
	ErrGrantInvalidToken          ErrorCode = "GRANT_INVALID_TOKEN"
	ErrGrantTokenExpired          ErrorCode = "GRANT_TOKEN_EXPIRED"
	ErrGrantTokenUsed             ErrorCode = "GRANT_TOKEN_USED"
	ErrGrantInvalidUsername       ErrorCode = "GRANT_INVALID_USERNAME"
	ErrGrantRepositoryUnavailable ErrorCode = "GRANT_REPOSITORY_UNAVAILABLE"
	ErrGrantFailed                ErrorCode = "GRANT_FAILED"

	// SYSTEM_ - System and server errors
	ErrSystemInternal    ErrorCode = "SYSTEM_INTERNAL"
	ErrSystemDatabase    ErrorCode = "SYSTEM_DATABASE"
	ErrSystemUnavailable ErrorCode = "SYSTEM_UNAVAILABLE"

	// VALIDATION_ - Request validation errors
	ErrValidationInvalidJSON   ErrorCode = "VALIDATION_INVALID_JSON"
	ErrValidationInvalidFormat ErrorCode = "VALIDATION_INVALID_FORMAT"
	ErrValidationMissingField  ErrorCode = "VALIDATION_MISSING_FIELD"
	ErrValidationInvalidValue  ErrorCode = "VALIDATION_INVALID_VALUE"

	// RESOURCE_ - Resource errors
	ErrResourceNotFound ErrorCode = "RESOURCE_NOT_FOUND"

	// RATE_LIMIT_ - Rate limiting errors
	ErrRateLimitGlobal ErrorCode = "RATE_LIMIT_GLOBAL"
	ErrRateLimitIP     ErrorCode = "RATE_LIMIT_IP"
)

// Error represents a structured API error
type Error struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	status    int                    // HTTP status code (not serialized)
}

// ErrorResponse is the top-level error response wrapper
type ErrorResponse struct {
	Error *Error `json:"error"`
}

// New creates a new API error
func New(code ErrorCode, message string, status int) *Error {
	return &Error{
		Code:    code,
		Message: message,
		status:  status,
	}
}

// WithDetails adds details to the error
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	e.Details = details
	return e
}

// WithRequestID adds a request ID to the error
func (e *Error) WithRequestID(requestID string) *Error {
	e.RequestID = requestID
	return e
}

// Error implements the error interface
func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// Status returns the HTTP status code
func (e *Error) Status() int {
	return e.status
}

// WriteError writes a structured error response to the HTTP response writer
func WriteError(w http.ResponseWriter, err *Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status())
	json.NewEncoder(w).Encode(ErrorResponse{Error: err})
}

// Helper functions for common errors

// AuthMissing creates an authentication missing error
func AuthMissing(message string) *Error {
	if message == "" {
		message = "Authentication required"
	}
	return New(ErrAuthMissing, message, http.StatusUnauthorized)
}

// AuthInvalid creates an invalid authentication error
func AuthInvalid(message string) *Error {
	if message == "" {
		message = "Invalid authentication credentials"
	}
	return New(ErrAuthInvalid, message, http.StatusUnauthorized)
}

// AuthNotConfigured is returned by admin routes when no admin token is set.
func AuthNotConfigured() *Error {
	return New(ErrAuthNotConfigured, "Admin API disabled", http.StatusServiceUnavailable)
}

// GitHubNotConfigured is returned when no GitHub token was provided.
func GitHubNotConfigured() *Error {
	return New(ErrGitHubNotConfigured, "GitHub integration not configured", http.StatusServiceUnavailable)
}

// FromGitHub maps a githubapi error onto an HTTP error.
func FromGitHub(err error) *Error {
	var apiErr *githubapi.APIError
	if !errors.As(err, &apiErr) {
		return New(ErrGitHubUnavailable, "GitHub request failed", http.StatusBadGateway)
	}
	if apiErr.RateLimited {
		e := New(ErrGitHubRateLimited, "GitHub rate limit exceeded", http.StatusServiceUnavailable)
		if !apiErr.ResetAt.IsZero() {
			e = e.WithDetails(map[string]interface{}{"reset_at": apiErr.ResetAt.UTC().Format(time.RFC3339)})
		}
		return e
	}
	switch apiErr.Type {
	case githubapi.ErrorNotFound:
		return New(ErrGitHubNotFound, "GitHub resource not found", http.StatusNotFound)
	case githubapi.ErrorForbidden, githubapi.ErrorUnauthorized:
		return New(ErrGitHubForbidden, "GitHub denied the request", http.StatusBadGateway)
	case githubapi.ErrorConfiguration:
		return GitHubNotConfigured()
	case githubapi.ErrorInvalidRequest:
		return ValidationInvalidValue("repository", apiErr.Message)
	default:
		return New(ErrGitHubUnavailable, "GitHub is unavailable", http.StatusBadGateway)
	}
}

// FromGrantReason maps a refused grant onto an HTTP error.
func FromGrantReason(reason grant.Reason) *Error {
	switch reason {
	case grant.ReasonInvalidToken:
		return New(ErrGrantInvalidToken, "Access token is not valid", http.StatusNotFound)
	case grant.ReasonTokenExpired:
		return New(ErrGrantTokenExpired, "Access token has expired", http.StatusGone)
	case grant.ReasonTokenUsed:
		return New(ErrGrantTokenUsed, "Access token has already been used", http.StatusConflict)
	case grant.ReasonInvalidUsername:
		return New(ErrGrantInvalidUsername, "Not a valid GitHub username", http.StatusBadRequest)
	case grant.ReasonRepositoryUnavailable:
		return New(ErrGrantRepositoryUnavailable, "Repository is not available", http.StatusServiceUnavailable)
	case grant.ReasonStoreError:
		return SystemDatabase("")
	default:
		return New(ErrGrantFailed, "Could not grant access", http.StatusBadGateway)
	}
}

// SystemInternal creates an internal server error
func SystemInternal(message string) *Error {
	if message == "" {
		message = "Internal server error"
	}
	return New(ErrSystemInternal, message, http.StatusInternalServerError)
}

// SystemDatabase creates a database error
func SystemDatabase(message string) *Error {
	if message == "" {
		message = "Database error"
	}
	return New(ErrSystemDatabase, message, http.StatusInternalServerError)
}

// SystemUnavailable creates a service unavailable error
func SystemUnavailable(message string) *Error {
	if message == "" {
		message = "Service unavailable"
	}
	return New(ErrSystemUnavailable, message, http.StatusServiceUnavailable)
}

// ValidationInvalidJSON creates an invalid JSON error
func ValidationInvalidJSON() *Error {
	return New(ErrValidationInvalidJSON, "Invalid JSON request body", http.StatusBadRequest)
}

// ValidationInvalidFormat creates an invalid format error
func ValidationInvalidFormat(message string) *Error {
	if message == "" {
		message = "Invalid request format"
	}
	return New(ErrValidationInvalidFormat, message, http.StatusBadRequest)
}

// ValidationMissingField creates a missing field error
func ValidationMissingField(field string) *Error {
	return New(ErrValidationMissingField, "Missing required field: "+field, http.StatusBadRequest).
		WithDetails(map[string]interface{}{"field": field})
}

// ValidationInvalidValue creates an invalid value error
func ValidationInvalidValue(field string, message string) *Error {
	if message == "" {
		message = "Invalid value for field: " + field
	}
	return New(ErrValidationInvalidValue, message, http.StatusBadRequest).
		WithDetails(map[string]interface{}{"field": field})
}

// ResourceNotFound creates a resource not found error
func ResourceNotFound(resourceType string) *Error {
	return New(ErrResourceNotFound, resourceType+" not found", http.StatusNotFound).
		WithDetails(map[string]interface{}{"resource_type": resourceType})
}

// RateLimitGlobal creates a global rate limit error
func RateLimitGlobal() *Error {
	return New(ErrRateLimitGlobal, "Rate limit exceeded - too many requests globally", http.StatusTooManyRequests)
}

// RateLimitIP creates an IP rate limit error
func RateLimitIP() *Error {
	return New(ErrRateLimitIP, "Rate limit exceeded - too many requests from your IP", http.StatusTooManyRequests)
}

// GetRequestID extracts the request ID from the context
func GetRequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(logger.RequestIDKey).(string); ok {
		return reqID
	}
	return ""
}

// WriteErrorWithContext writes a structured error response with request ID from context
func WriteErrorWithContext(w http.ResponseWriter, r *http.Request, err *Error) {
	if reqID := GetRequestID(r.Context()); reqID != "" {
		err = err.WithRequestID(reqID)
	}
	WriteError(w, err)
}
