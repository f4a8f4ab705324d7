package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
)

// Encodings in order of preference when the client weighs them equally.
var supportedEncodings = []string{"br", "gzip"}

var (
	gzipPool = sync.Pool{New: func() any {
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.DefaultCompression)
		return w
	}}
	brotliPool = sync.Pool{New: func() any {
		return brotli.NewWriterLevel(io.Discard, 5)
	}}
)

// compressWriter defers choosing an encoder until the handler commits a
// status, so errors and empty responses go out untouched.
type compressWriter struct {
	http.ResponseWriter
	encoding    string
	enc         io.WriteCloser
	release     func()
	wroteHeader bool
}

func (w *compressWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true

	h := w.Header()
	if compressible(status, h) {
		h.Set("Content-Encoding", w.encoding)
		h.Del("Content-Length")
		w.enc, w.release = newEncoder(w.encoding, w.ResponseWriter)
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *compressWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if w.enc == nil {
		return w.ResponseWriter.Write(b)
	}
	return w.enc.Write(b)
}

func (w *compressWriter) close() {
	if w.enc == nil {
		return
	}
	_ = w.enc.Close()
	w.release()
}

func compressible(status int, h http.Header) bool {
	if status < 200 || status == http.StatusNoContent || status == http.StatusNotModified {
		return false
	}
	return h.Get("Content-Encoding") == ""
}

func newEncoder(encoding string, dst io.Writer) (io.WriteCloser, func()) {
	switch encoding {
	case "br":
		bw := brotliPool.Get().(*brotli.Writer)
		bw.Reset(dst)
		return bw, func() { brotliPool.Put(bw) }
	default:
		gz := gzipPool.Get().(*gzip.Writer)
		gz.Reset(dst)
		return gz, func() { gzipPool.Put(gz) }
	}
}

// negotiateEncoding picks the best supported coding from an Accept-Encoding
// value, honouring q-values. It returns "" when nothing acceptable matches.
func negotiateEncoding(header string) string {
	if header == "" {
		return ""
	}
	weights := make(map[string]float64)
	wildcard := -1.0
	for _, part := range strings.Split(header, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		name = strings.ToLower(strings.TrimSpace(name))
		q := 1.0
		if k, v, ok := strings.Cut(strings.TrimSpace(params), "="); ok && strings.TrimSpace(k) == "q" {
			if parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				q = parsed
			}
		}
		if name == "*" {
			wildcard = q
			continue
		}
		weights[name] = q
	}

	best, bestQ := "", 0.0
	for _, enc := range supportedEncodings {
		q, ok := weights[enc]
		if !ok {
			q = wildcard
		}
		if q > bestQ {
			best, bestQ = enc, q
		}
	}
	return best
}

// Compress returns a middleware that compresses responses with brotli or
// gzip depending on the client's Accept-Encoding.
func Compress(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Accept-Encoding")

		encoding := negotiateEncoding(r.Header.Get("Accept-Encoding"))
		if encoding == "" || r.Method == http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}

		cw := &compressWriter{ResponseWriter: w, encoding: encoding}
		defer cw.close()
		next.ServeHTTP(cw, r)
	})
}
