package githubapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/go-github/v80/github"
)

// ErrorType represents the kinds of failure the client reports.
type ErrorType int

const (
	ErrorUpstream ErrorType = iota
	ErrorNotFound
	ErrorForbidden
	ErrorUnauthorized
	ErrorConfiguration
	ErrorInvalidRequest
)

func (t ErrorType) String() string {
	switch t {
	case ErrorNotFound:
		return "not_found"
	case ErrorForbidden:
		return "forbidden"
	case ErrorUnauthorized:
		return "unauthorized"
	case ErrorConfiguration:
		return "configuration"
	case ErrorInvalidRequest:
		return "invalid_request"
	default:
		return "upstream"
	}
}

// Sentinels matched by APIError.Is, so callers can write errors.Is(err, ErrNotFound).
var (
	ErrUpstream          = errors.New("github: upstream error")
	ErrNotFound          = errors.New("github: not found")
	ErrForbidden         = errors.New("github: forbidden")
	ErrUnauthorized      = errors.New("github: unauthorized")
	ErrConfiguration     = errors.New("github: configuration error")
	ErrInvalidRequest    = errors.New("github: invalid request")
	ErrInvalidPermission = errors.New("github: permission must be pull, push or admin")
)

// APIError is a classified GitHub failure.
type APIError struct {
	Type       ErrorType
	StatusCode int
	Message    string
	// RateLimited distinguishes quota exhaustion from access denial on 403
	// (and marks throttled 429 responses).
	RateLimited bool
	ResetAt     time.Time
	RetryAfter  time.Duration
	// Canceled marks a call abandoned because the caller's context ended.
	// It says nothing about GitHub's health.
	Canceled bool
	Err      error
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("github: %s (%d): %s", e.Type, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("github: %s: %s", e.Type, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// Is maps the error to its sentinel.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUpstream:
		return e.Type == ErrorUpstream
	case ErrNotFound:
		return e.Type == ErrorNotFound
	case ErrForbidden:
		return e.Type == ErrorForbidden
	case ErrUnauthorized:
		return e.Type == ErrorUnauthorized
	case ErrConfiguration:
		return e.Type == ErrorConfiguration
	case ErrInvalidRequest:
		return e.Type == ErrorInvalidRequest
	}
	return false
}

// ClassifyError turns an error from go-github (or the transport beneath it)
// into an *APIError. Already classified errors are returned unchanged.
func ClassifyError(err error) *APIError {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var rle *github.RateLimitError
	if errors.As(err, &rle) {
		out := &APIError{
			Type:        ErrorForbidden,
			StatusCode:  statusOf(rle.Response),
			Message:     "rate limit exceeded",
			RateLimited: true,
			ResetAt:     rle.Rate.Reset.Time,
			Err:         err,
		}
		if out.StatusCode == 0 {
			out.StatusCode = http.StatusForbidden
		}
		if out.StatusCode == http.StatusTooManyRequests {
			out.Type = ErrorUpstream
		}
		return out
	}

	var abuse *github.AbuseRateLimitError
	if errors.As(err, &abuse) {
		out := &APIError{
			Type:        ErrorForbidden,
			StatusCode:  statusOf(abuse.Response),
			Message:     "secondary rate limit: " + abuse.Message,
			RateLimited: true,
			RetryAfter:  abuse.GetRetryAfter(),
			Err:         err,
		}
		if out.StatusCode == 0 {
			out.StatusCode = http.StatusForbidden
		}
		if out.StatusCode == http.StatusTooManyRequests {
			out.Type = ErrorUpstream
		}
		return out
	}

	var er *github.ErrorResponse
	if errors.As(err, &er) {
		return classifyResponse(er.Response, responseMessage(er), err)
	}

	// Transport failures, cancellations and anything go-github did not classify.
	return &APIError{Type: ErrorUpstream, Message: err.Error(), Err: err}
}

func classifyResponse(resp *http.Response, msg string, err error) *APIError {
	out := &APIError{
		Type:       ErrorUpstream,
		StatusCode: statusOf(resp),
		Message:    msg,
		Err:        err,
	}

	switch out.StatusCode {
	case http.StatusNotFound:
		out.Type = ErrorNotFound
	case http.StatusUnauthorized:
		out.Type = ErrorUnauthorized
	case http.StatusForbidden:
		out.Type = ErrorForbidden
		out.RateLimited = looksRateLimited(resp, msg)
		if out.RateLimited {
			out.ResetAt = resetFromHeader(resp)
		}
	case http.StatusTooManyRequests:
		out.RateLimited = true
		out.ResetAt = resetFromHeader(resp)
	}
	if out.Message == "" {
		out.Message = http.StatusText(out.StatusCode)
	}
	return out
}

func responseMessage(er *github.ErrorResponse) string {
	parts := []string{}
	if er.Message != "" {
		parts = append(parts, er.Message)
	}
	for _, e := range er.Errors {
		if e.Message != "" {
			parts = append(parts, e.Message)
		}
	}
	return strings.Join(parts, ": ")
}

func looksRateLimited(resp *http.Response, msg string) bool {
	if resp != nil && resp.Header.Get("X-RateLimit-Remaining") == "0" {
		return true
	}
	return strings.Contains(strings.ToLower(msg), "rate limit")
}

func resetFromHeader(resp *http.Response) time.Time {
	if resp == nil {
		return time.Time{}
	}
	secs, err := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64)
	if err != nil || secs <= 0 {
		return time.Time{}
	}
	return time.Unix(secs, 0)
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

// IsRateLimited reports whether err is a quota or throttling failure.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.RateLimited
}

// IsUpstreamFailure reports whether err reflects GitHub being unavailable,
// as opposed to an answer about the requested resource. Only these failures
// count towards the circuit breaker.
func IsUpstreamFailure(err error) bool {
	if IsCallerCanceled(err) {
		return false
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return err != nil
	}
	if apiErr.Type != ErrorUpstream {
		return false
	}
	return apiErr.StatusCode == 0 || apiErr.StatusCode >= 500 || apiErr.StatusCode == http.StatusTooManyRequests
}

// IsCallerCanceled reports whether err is a call abandoned by its caller.
func IsCallerCanceled(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Canceled
}

// IsAlreadyCollaborator reports whether err is GitHub's 422 answer to adding
// an existing collaborator.
func IsAlreadyCollaborator(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnprocessableEntity {
		return false
	}
	return strings.Contains(strings.ToLower(apiErr.Message), "already")
}

func invalidRequest(format string, args ...any) *APIError {
	return &APIError{Type: ErrorInvalidRequest, Message: fmt.Sprintf(format, args...)}
}

// outcome is the metrics label for err.
func outcome(err error) string {
	if err == nil {
		return "success"
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return "error"
	}
	if apiErr.Canceled {
		return "canceled"
	}
	if apiErr.RateLimited {
		return "rate_limited"
	}
	switch apiErr.Type {
	case ErrorNotFound:
		return "not_found"
	case ErrorForbidden:
		return "forbidden"
	case ErrorUnauthorized:
		return "unauthorized"
	default:
		return "error"
	}
}
