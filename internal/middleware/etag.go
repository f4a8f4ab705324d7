package middleware

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// etagResponseWriter captures response body to generate ETag.
type etagResponseWriter struct {
	http.ResponseWriter
	buf    bytes.Buffer
	status int
}

func (w *etagResponseWriter) WriteHeader(status int) {
	w.status = status
}

func (w *etagResponseWriter) Write(b []byte) (int, error) {
	return w.buf.Write(b)
}

// ETag returns a middleware that adds a content hash ETag to successful GET
// responses, answers 304 when If-None-Match matches, and advertises maxAge
// with a stale-while-revalidate window five times as long.
func ETag(maxAge time.Duration) func(http.Handler) http.Handler {
	cacheControl := fmt.Sprintf("public, max-age=%d, stale-while-revalidate=%d",
		int(maxAge.Seconds()), int((5 * maxAge).Seconds()))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			etw := &etagResponseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(etw, r)

			if etw.status != http.StatusOK {
				w.WriteHeader(etw.status)
				w.Write(etw.buf.Bytes())
				return
			}

			hash := sha256.Sum256(etw.buf.Bytes())
			etag := fmt.Sprintf(`"%x"`, hash[:16])
			w.Header().Set("ETag", etag)
			w.Header().Set("Cache-Control", cacheControl)

			if etagMatches(r.Header.Get("If-None-Match"), etag) {
				w.WriteHeader(http.StatusNotModified)
				return
			}

			w.WriteHeader(http.StatusOK)
			w.Write(etw.buf.Bytes())
		})
	}
}

// etagMatches applies the weak comparison of If-None-Match.
func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}
