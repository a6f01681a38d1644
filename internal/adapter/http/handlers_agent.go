package http

import (
	"net/http"

	"github.com/openworkhq/agentgate/internal/domain/agent"
)

// CreateAgent handles POST /api/v1/agents
func (h *Handlers) CreateAgent(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[agent.CreateRequest](w, r)
	if !ok {
		return
	}
	a, err := h.Agents.Create(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "create agent")
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// ListAgents handles GET /api/v1/agents?workspace_id=
func (h *Handlers) ListAgents(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.URL.Query().Get("workspace_id")
	if !requireField(w, workspaceID, "workspace_id") {
		return
	}
	agents, err := h.Agents.List(r.Context(), workspaceID)
	if err != nil {
		writeDomainError(w, err, "list agents")
		return
	}
	if agents == nil {
		agents = []agent.Agent{}
	}
	writeJSON(w, http.StatusOK, agents)
}

// GetAgent handles GET /api/v1/agents/{id}
func (h *Handlers) GetAgent(w http.ResponseWriter, r *http.Request) {
	a, err := h.Agents.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// UpdateAgent handles PUT /api/v1/agents/{id}
func (h *Handlers) UpdateAgent(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[agent.UpdateRequest](w, r)
	if !ok {
		return
	}
	a, err := h.Agents.Update(r.Context(), urlParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}
