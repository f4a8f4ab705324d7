package handlers

import (
	"net/http"
)

// Health returns a simple JSON payload to indicate the API is alive. It also
// says whether GitHub is wired, since the API degrades without it.
func Health(githubConfigured bool) http.HandlerFunc {
	github := "configured"
	if !githubConfigured {
		github = "not_configured"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "github": github})
	}
}
