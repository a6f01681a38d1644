package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Agents
		r.Post("/agents", h.CreateAgent)
		r.Get("/agents", h.ListAgents)
		r.Get("/agents/{id}", h.GetAgent)
		r.Put("/agents/{id}", h.UpdateAgent)

		// Conversations
		r.Post("/conversations", h.CreateConversation)
		r.Get("/conversations", h.ListConversations)
		r.Get("/conversations/{id}", h.GetConversation)
		r.Get("/conversations/{id}/messages", h.ListConversationMessages)
		r.Post("/conversations/{id}/messages", h.SendConversationMessage)

		// Tool calls
		r.Get("/toolcalls", h.ListToolCalls)
		r.Get("/toolcalls/pending", h.ListPendingToolCalls)
		r.Get("/toolcalls/{id}", h.GetToolCall)
		r.Post("/toolcalls/{id}/approve", h.ApproveToolCall)
		r.Post("/toolcalls/{id}/reject", h.RejectToolCall)

		// Usage
		r.Get("/usage/summary", h.GetUsageSummary)
		r.Get("/usage/models", h.GetUsageByModel)
	})
}
