package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/onnwee/portfolio/backend/internal/apierr"
)

// MaxRequestBodySize bounds request bodies; the API only accepts small
// JSON documents.
const MaxRequestBodySize = 64 * 1024

// maxCacheKeyLen bounds keys accepted by the cache admin endpoint.
const maxCacheKeyLen = 512

// ValidateRequestBody limits body size on methods that carry one and
// rejects bodies that are not JSON.
func ValidateRequestBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			if r.ContentLength != 0 && !isJSON(r.Header.Get("Content-Type")) {
				apierr.WriteErrorWithContext(w, r, apierr.New(apierr.ErrValidationInvalidFormat,
					"Content-Type must be application/json", http.StatusUnsupportedMediaType))
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
		}
		next.ServeHTTP(w, r)
	})
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == "application/json"
}

// DecodeJSON strictly decodes a single JSON object from the request body
// into dst. Unknown fields and trailing data are rejected.
func DecodeJSON(r *http.Request, dst any) *apierr.Error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return apierr.New(apierr.ErrValidationInvalidFormat, "Request body too large", http.StatusRequestEntityTooLarge)
		case errors.Is(err, io.EOF):
			return apierr.ValidationInvalidFormat("Request body must not be empty")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			field := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
			return apierr.ValidationInvalidValue(field, "Unknown field: "+field)
		default:
			return apierr.ValidationInvalidJSON()
		}
	}
	if dec.More() {
		return apierr.ValidationInvalidFormat("Request body must contain a single JSON object")
	}
	return nil
}

// SanitizeInput provides input sanitization utilities.
type SanitizeInput struct{}

// SanitizeString trims whitespace, drops invalid UTF-8 and control
// characters, and truncates to maxLength runes.
func (s *SanitizeInput) SanitizeString(input string, maxLength int) string {
	input = strings.TrimSpace(input)
	if !utf8.ValidString(input) {
		input = strings.ToValidUTF8(input, "")
	}
	input = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, input)

	if utf8.RuneCountInString(input) > maxLength {
		runes := []rune(input)
		input = string(runes[:maxLength])
	}
	return input
}

// ValidateCacheKey checks a key passed to the cache admin endpoint.
func (s *SanitizeInput) ValidateCacheKey(key string) error {
	if key == "" {
		return errors.New("cache key cannot be empty")
	}
	if len(key) > maxCacheKeyLen {
		return errors.New("cache key too long")
	}
	if !strings.HasPrefix(key, "github:") {
		return errors.New(`cache key must start with "github:"`)
	}
	for _, c := range key {
		if c < 0x21 || c > 0x7e {
			return errors.New("cache key contains invalid characters")
		}
	}
	return nil
}
