package middleware

import (
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/onnwee/portfolio/backend/internal/metrics"
	"github.com/onnwee/portfolio/backend/internal/tracing"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Instrument records request count and latency under endpoint and wraps the
// handler in a server span.
func Instrument(endpoint string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx, span := tracing.StartSpan(r.Context(), "http."+endpoint,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.method", r.Method),
					attribute.String("http.route", endpoint),
				))

			rec := &statusRecorder{ResponseWriter: w}
			defer func() {
				status := rec.status
				if status == 0 {
					status = http.StatusOK
				}
				code := strconv.Itoa(status)
				metrics.APIRequestsTotal.WithLabelValues(endpoint, r.Method, code).Inc()
				metrics.APIRequestDuration.WithLabelValues(endpoint, r.Method, code).Observe(time.Since(start).Seconds())

				var err error
				if status >= http.StatusInternalServerError {
					err = errStatus(status)
				}
				tracing.EndSpan(span, err, attribute.Int("http.status_code", status))
			}()

			next.ServeHTTP(rec, r.WithContext(ctx))
		})
	}
}

type errStatus int

func (e errStatus) Error() string { return "http status " + strconv.Itoa(int(e)) }
