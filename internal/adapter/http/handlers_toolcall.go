package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/openworkhq/agentgate/internal/domain/toolcall"
	"github.com/openworkhq/agentgate/internal/port/database"
)

// ListToolCalls handles GET /api/v1/toolcalls?workspace_id=&status=&since=&until=&limit=
func (h *Handlers) ListToolCalls(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	workspaceID := q.Get("workspace_id")
	if !requireField(w, workspaceID, "workspace_id") {
		return
	}

	filter := database.ToolCallFilter{WorkspaceID: workspaceID}

	if s := q.Get("status"); s != "" {
		status := toolcall.Status(s)
		switch status {
		case toolcall.StatusPending, toolcall.StatusApproved, toolcall.StatusRejected,
			toolcall.StatusExecuted, toolcall.StatusFailed:
			filter.Status = status
		default:
			writeError(w, http.StatusBadRequest, "unknown status "+s)
			return
		}
	}
	if s := q.Get("since"); s != "" {
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC 3339")
			return
		}
		filter.Since = ts
	}
	if s := q.Get("until"); s != "" {
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "until must be RFC 3339")
			return
		}
		filter.Until = ts
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}

	calls, err := h.ToolCalls.List(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err, "list tool calls")
		return
	}
	if calls == nil {
		calls = []toolcall.Request{}
	}
	writeJSON(w, http.StatusOK, calls)
}

// ListPendingToolCalls handles GET /api/v1/toolcalls/pending?workspace_id=
func (h *Handlers) ListPendingToolCalls(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.URL.Query().Get("workspace_id")
	if !requireField(w, workspaceID, "workspace_id") {
		return
	}
	calls, err := h.ToolCalls.ListPending(r.Context(), workspaceID)
	if err != nil {
		writeDomainError(w, err, "list pending tool calls")
		return
	}
	if calls == nil {
		calls = []toolcall.Request{}
	}
	writeJSON(w, http.StatusOK, calls)
}

// GetToolCall handles GET /api/v1/toolcalls/{id}
func (h *Handlers) GetToolCall(w http.ResponseWriter, r *http.Request) {
	tc, err := h.ToolCalls.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "tool call not found")
		return
	}
	writeJSON(w, http.StatusOK, tc)
}

type approveRequest struct {
	ApprovedBy string `json:"approved_by"`
}

// ApproveToolCall handles POST /api/v1/toolcalls/{id}/approve. Approval
// executes the call synchronously; the returned record carries the final
// executed or failed state.
func (h *Handlers) ApproveToolCall(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[approveRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.ApprovedBy, "approved_by") {
		return
	}

	tc, err := h.ToolCalls.Approve(r.Context(), urlParam(r, "id"), req.ApprovedBy)
	if err != nil {
		writeDomainError(w, err, "tool call not found")
		return
	}
	writeJSON(w, http.StatusOK, tc)
}

type rejectRequest struct {
	RejectedBy string `json:"rejected_by"`
	Reason     string `json:"reason"`
}

// RejectToolCall handles POST /api/v1/toolcalls/{id}/reject
func (h *Handlers) RejectToolCall(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[rejectRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.RejectedBy, "rejected_by") {
		return
	}

	tc, err := h.ToolCalls.Reject(r.Context(), urlParam(r, "id"), req.RejectedBy, req.Reason)
	if err != nil {
		writeDomainError(w, err, "tool call not found")
		return
	}
	writeJSON(w, http.StatusOK, tc)
}
