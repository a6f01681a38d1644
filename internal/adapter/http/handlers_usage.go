package http

import (
	"net/http"
	"time"
)

// parseSince reads an optional RFC 3339 "since" query parameter. The zero
// time means "current billing month" downstream.
func parseSince(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	s := r.URL.Query().Get("since")
	if s == "" {
		return time.Time{}, true
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		writeError(w, http.StatusBadRequest, "since must be RFC 3339")
		return time.Time{}, false
	}
	return ts, true
}

// GetUsageSummary handles GET /api/v1/usage/summary?workspace_id=&since=
func (h *Handlers) GetUsageSummary(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.URL.Query().Get("workspace_id")
	if !requireField(w, workspaceID, "workspace_id") {
		return
	}
	since, ok := parseSince(w, r)
	if !ok {
		return
	}

	summary, err := h.Usage.WorkspaceSummary(r.Context(), workspaceID, since)
	if err != nil {
		writeDomainError(w, err, "usage summary")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// GetUsageByModel handles GET /api/v1/usage/models?workspace_id=&since=
func (h *Handlers) GetUsageByModel(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.URL.Query().Get("workspace_id")
	if !requireField(w, workspaceID, "workspace_id") {
		return
	}
	since, ok := parseSince(w, r)
	if !ok {
		return
	}

	rows, err := h.Usage.ByModel(r.Context(), workspaceID, since)
	if err != nil {
		writeDomainError(w, err, "usage by model")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// Health handles GET /health. Degraded collaborators turn the status to
// "degraded" but the endpoint still returns 200 as long as the process is up.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	checks := map[string]string{}

	if h.Probes.Database != nil {
		if err := h.Probes.Database(r.Context()); err != nil {
			checks["database"] = err.Error()
			status = "degraded"
		} else {
			checks["database"] = "ok"
		}
	}
	if h.Probes.QueueConnected != nil {
		if h.Probes.QueueConnected() {
			checks["queue"] = "ok"
		} else {
			checks["queue"] = "disconnected"
			status = "degraded"
		}
	}
	if h.Probes.ProviderBreaker != nil {
		checks["provider_breaker"] = h.Probes.ProviderBreaker()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": status,
		"checks": checks,
	})
}
