package apierr

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/onnwee/portfolio/backend/internal/githubapi"
	"github.com/onnwee/portfolio/backend/internal/grant"
)

func TestNew(t *testing.T) {
	err := New(ErrGitHubUnavailable, "upstream down", http.StatusBadGateway)
	if err.Code != ErrGitHubUnavailable {
		t.Errorf("expected code %s, got %s", ErrGitHubUnavailable, err.Code)
	}
	if err.Message != "upstream down" {
		t.Errorf("expected message 'upstream down', got '%s'", err.Message)
	}
	if err.Status() != http.StatusBadGateway {
		t.Errorf("expected status %d, got %d", http.StatusBadGateway, err.Status())
	}
}

func TestWithDetails(t *testing.T) {
	err := New(ErrValidationInvalidValue, "invalid field", http.StatusBadRequest).
		WithDetails(map[string]interface{}{"field": "username"})

	if err.Details == nil {
		t.Fatal("expected details to be set")
	}
	if field, ok := err.Details["field"]; !ok || field != "username" {
		t.Errorf("expected field 'username', got %v", field)
	}
}

func TestWithRequestID(t *testing.T) {
	requestID := "test-request-123"
	err := New(ErrSystemInternal, "internal error", http.StatusInternalServerError).
		WithRequestID(requestID)

	if err.RequestID != requestID {
		t.Errorf("expected request ID %s, got %s", requestID, err.RequestID)
	}
}

func TestErrorInterface(t *testing.T) {
	err := New(ErrAuthInvalid, "invalid token", http.StatusUnauthorized)
	expected := "AUTH_INVALID: invalid token"
	if err.Error() != expected {
		t.Errorf("expected error string %s, got %s", expected, err.Error())
	}
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	err := New(ErrGrantTokenUsed, "used", http.StatusConflict).
		WithRequestID("req-123")

	WriteError(w, err)

	if w.Code != http.StatusConflict {
		t.Errorf("expected status %d, got %d", http.StatusConflict, w.Code)
	}

	contentType := w.Header().Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", contentType)
	}

	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Error == nil {
		t.Fatal("expected error in response")
	}
	if resp.Error.Code != ErrGrantTokenUsed {
		t.Errorf("expected code %s, got %s", ErrGrantTokenUsed, resp.Error.Code)
	}
	if resp.Error.Message != "used" {
		t.Errorf("expected message 'used', got '%s'", resp.Error.Message)
	}
	if resp.Error.RequestID != "req-123" {
		t.Errorf("expected request ID 'req-123', got '%s'", resp.Error.RequestID)
	}
}

func TestHelperFunctions(t *testing.T) {
	tests := []struct {
		name       string
		createErr  func() *Error
		wantCode   ErrorCode
		wantStatus int
	}{
		{"AuthMissing", func() *Error { return AuthMissing("") }, ErrAuthMissing, http.StatusUnauthorized},
		{"AuthInvalid", func() *Error { return AuthInvalid("") }, ErrAuthInvalid, http.StatusUnauthorized},
		{"AuthNotConfigured", func() *Error { return AuthNotConfigured() }, ErrAuthNotConfigured, http.StatusServiceUnavailable},
		{"GitHubNotConfigured", func() *Error { return GitHubNotConfigured() }, ErrGitHubNotConfigured, http.StatusServiceUnavailable},
		{"SystemInternal", func() *Error { return SystemInternal("") }, ErrSystemInternal, http.StatusInternalServerError},
		{"SystemDatabase", func() *Error { return SystemDatabase("") }, ErrSystemDatabase, http.StatusInternalServerError},
		{"SystemUnavailable", func() *Error { return SystemUnavailable("") }, ErrSystemUnavailable, http.StatusServiceUnavailable},
		{"ValidationInvalidJSON", func() *Error { return ValidationInvalidJSON() }, ErrValidationInvalidJSON, http.StatusBadRequest},
		{"ValidationInvalidFormat", func() *Error { return ValidationInvalidFormat("") }, ErrValidationInvalidFormat, http.StatusBadRequest},
		{"ValidationMissingField", func() *Error { return ValidationMissingField("token") }, ErrValidationMissingField, http.StatusBadRequest},
		{"ValidationInvalidValue", func() *Error { return ValidationInvalidValue("key", "") }, ErrValidationInvalidValue, http.StatusBadRequest},
		{"ResourceNotFound", func() *Error { return ResourceNotFound("cache entry") }, ErrResourceNotFound, http.StatusNotFound},
		{"RateLimitGlobal", func() *Error { return RateLimitGlobal() }, ErrRateLimitGlobal, http.StatusTooManyRequests},
		{"RateLimitIP", func() *Error { return RateLimitIP() }, ErrRateLimitIP, http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.createErr()
			if err.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, err.Code)
			}
			if err.Status() != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, err.Status())
			}
			if err.Message == "" {
				t.Error("expected non-empty message")
			}
		})
	}
}

func TestValidationMissingFieldDetails(t *testing.T) {
	err := ValidationMissingField("username")
	if err.Details == nil {
		t.Fatal("expected details to be set")
	}
	if field, ok := err.Details["field"]; !ok || field != "username" {
		t.Errorf("expected field 'username', got %v", field)
	}
}

func TestResourceNotFoundDetails(t *testing.T) {
	err := ResourceNotFound("cache entry")
	if err.Details == nil {
		t.Fatal("expected details to be set")
	}
	if rt, ok := err.Details["resource_type"]; !ok || rt != "cache entry" {
		t.Errorf("expected resource_type 'cache entry', got %v", rt)
	}
}

func TestFromGitHub(t *testing.T) {
	reset := time.Date(2024, 6, 1, 13, 0, 0, 0, time.UTC)
	tests := []struct {
		name       string
		err        error
		wantCode   ErrorCode
		wantStatus int
	}{
		{"not found", &githubapi.APIError{Type: githubapi.ErrorNotFound, StatusCode: 404}, ErrGitHubNotFound, http.StatusNotFound},
		{"forbidden", &githubapi.APIError{Type: githubapi.ErrorForbidden, StatusCode: 403}, ErrGitHubForbidden, http.StatusBadGateway},
		{"unauthorized", &githubapi.APIError{Type: githubapi.ErrorUnauthorized, StatusCode: 401}, ErrGitHubForbidden, http.StatusBadGateway},
		{"rate limited", &githubapi.APIError{Type: githubapi.ErrorForbidden, StatusCode: 403, RateLimited: true, ResetAt: reset}, ErrGitHubRateLimited, http.StatusServiceUnavailable},
		{"upstream", &githubapi.APIError{Type: githubapi.ErrorUpstream, StatusCode: 502}, ErrGitHubUnavailable, http.StatusBadGateway},
		{"configuration", &githubapi.APIError{Type: githubapi.ErrorConfiguration}, ErrGitHubNotConfigured, http.StatusServiceUnavailable},
		{"invalid request", &githubapi.APIError{Type: githubapi.ErrorInvalidRequest, Message: "bad name"}, ErrValidationInvalidValue, http.StatusBadRequest},
		{"wrapped", fmt.Errorf("projects: %w", &githubapi.APIError{Type: githubapi.ErrorNotFound}), ErrGitHubNotFound, http.StatusNotFound},
		{"foreign error", fmt.Errorf("boom"), ErrGitHubUnavailable, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromGitHub(tt.err)
			if got.Code != tt.wantCode || got.Status() != tt.wantStatus {
				t.Errorf("FromGitHub = %s/%d, want %s/%d", got.Code, got.Status(), tt.wantCode, tt.wantStatus)
			}
		})
	}

	rl := FromGitHub(&githubapi.APIError{Type: githubapi.ErrorForbidden, RateLimited: true, ResetAt: reset})
	if rl.Details["reset_at"] != "2024-06-01T13:00:00Z" {
		t.Errorf("expected reset_at detail, got %v", rl.Details)
	}
}

func TestFromGrantReason(t *testing.T) {
	tests := []struct {
		reason     grant.Reason
		wantCode   ErrorCode
		wantStatus int
	}{
		{grant.ReasonInvalidToken, ErrGrantInvalidToken, http.StatusNotFound},
		{grant.ReasonTokenExpired, ErrGrantTokenExpired, http.StatusGone},
		{grant.ReasonTokenUsed, ErrGrantTokenUsed, http.StatusConflict},
		{grant.ReasonInvalidUsername, ErrGrantInvalidUsername, http.StatusBadRequest},
		{grant.ReasonRepositoryUnavailable, ErrGrantRepositoryUnavailable, http.StatusServiceUnavailable},
		{grant.ReasonGitHubError, ErrGrantFailed, http.StatusBadGateway},
		{grant.ReasonStoreError, ErrSystemDatabase, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			got := FromGrantReason(tt.reason)
			if got.Code != tt.wantCode || got.Status() != tt.wantStatus {
				t.Errorf("FromGrantReason(%s) = %s/%d, want %s/%d", tt.reason, got.Code, got.Status(), tt.wantCode, tt.wantStatus)
			}
		})
	}
}
