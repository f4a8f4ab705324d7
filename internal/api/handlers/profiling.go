package handlers

import (
	"net/http"
	"net/http/pprof"

	"github.com/gorilla/mux"

	"github.com/onnwee/portfolio/backend/internal/logger"
	"github.com/onnwee/portfolio/backend/internal/middleware"
)

// Profile serves runtime profiles under /debug/pprof/. Access is logged for
// auditing.
func Profile(w http.ResponseWriter, r *http.Request) {
	logger.InfoContext(r.Context(), "Profiling endpoint accessed",
		"endpoint", r.URL.Path,
		"client_ip", middleware.ClientIP(r),
		"type", "security_audit")

	switch name := mux.Vars(r)["profile"]; name {
	case "":
		pprof.Index(w, r)
	case "cmdline":
		pprof.Cmdline(w, r)
	case "profile":
		pprof.Profile(w, r)
	case "symbol":
		pprof.Symbol(w, r)
	case "trace":
		pprof.Trace(w, r)
	default:
		pprof.Handler(name).ServeHTTP(w, r)
	}
}
