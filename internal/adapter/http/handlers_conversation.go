package http

import (
	"net/http"

	"github.com/openworkhq/agentgate/internal/domain/conversation"
)

// CreateConversation handles POST /api/v1/conversations
func (h *Handlers) CreateConversation(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[conversation.CreateRequest](w, r)
	if !ok {
		return
	}
	conv, err := h.Conversations.CreateConversation(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "create conversation")
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

// ListConversations handles GET /api/v1/conversations?workspace_id=
func (h *Handlers) ListConversations(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.URL.Query().Get("workspace_id")
	if !requireField(w, workspaceID, "workspace_id") {
		return
	}
	conversations, err := h.Conversations.ListConversations(r.Context(), workspaceID)
	if err != nil {
		writeDomainError(w, err, "list conversations")
		return
	}
	if conversations == nil {
		conversations = []conversation.Conversation{}
	}
	writeJSON(w, http.StatusOK, conversations)
}

// GetConversation handles GET /api/v1/conversations/{id}
func (h *Handlers) GetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := h.Conversations.GetConversation(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// ListConversationMessages handles GET /api/v1/conversations/{id}/messages
func (h *Handlers) ListConversationMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.Conversations.ListMessages(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "conversation not found")
		return
	}
	if messages == nil {
		messages = []conversation.Message{}
	}
	writeJSON(w, http.StatusOK, messages)
}

type sendMessageRequest struct {
	UserID  string `json:"user_id"`
	Content string `json:"content"`
}

// SendConversationMessage handles POST /api/v1/conversations/{id}/messages.
// It runs one full turn: admission checks, the model round-trip and
// persistence of any proposed tool calls. The response carries the
// assistant message plus the tool-call records created for this turn.
func (h *Handlers) SendConversationMessage(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[sendMessageRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.UserID, "user_id") {
		return
	}

	result, err := h.Conversations.SendMessage(r.Context(), urlParam(r, "id"), req.UserID, req.Content)
	if err != nil {
		writeDomainError(w, err, "send message")
		return
	}
	writeJSON(w, http.StatusCreated, result)
}
