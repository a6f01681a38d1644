package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openworkhq/agentgate/internal/config"
	"github.com/openworkhq/agentgate/internal/port/notifier"
)

var _ notifier.Notifier = (*Notifier)(nil)

func TestSendNotConfigured(t *testing.T) {
	n := NewNotifier(config.Notify{})
	err := n.Send(context.Background(), notifier.Notification{Recipient: "ops@example.com"})
	if err != notifier.ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestSendMissingRecipient(t *testing.T) {
	n := NewNotifier(config.Notify{EmailEndpoint: "http://localhost:9"})
	err := n.Send(context.Background(), notifier.Notification{Title: "no recipient"})
	if err != notifier.ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestSendSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer mail-key" {
			t.Fatalf("unexpected auth: %q", auth)
		}

		var req sendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.From != "agentgate@example.com" || req.To != "ops@example.com" {
			t.Fatalf("unexpected addressing: %+v", req)
		}
		if req.Template != "usage-limit-reached" {
			t.Fatalf("unexpected template: %q", req.Template)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewNotifier(config.Notify{
		EmailEndpoint: srv.URL,
		EmailAPIKey:   "mail-key",
		EmailFrom:     "agentgate@example.com",
	})
	err := n.Send(context.Background(), notifier.Notification{
		Recipient: "ops@example.com",
		Title:     "Quota reached",
		Message:   "Workspace ws-1 has used 100% of its monthly quota",
		Level:     "error",
		Template:  "usage-limit-reached",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSendAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte("invalid recipient"))
	}))
	defer srv.Close()

	n := NewNotifier(config.Notify{EmailEndpoint: srv.URL, EmailFrom: "agentgate@example.com"})
	err := n.Send(context.Background(), notifier.Notification{Recipient: "nope", Title: "x"})
	if err == nil {
		t.Fatal("expected error for 422 response")
	}
}
