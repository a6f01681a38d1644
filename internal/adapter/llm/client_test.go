package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openworkhq/agentgate/internal/adapter/llm"
	"github.com/openworkhq/agentgate/internal/config"
	"github.com/openworkhq/agentgate/internal/domain/conversation"
	"github.com/openworkhq/agentgate/internal/domain/toolcall"
	"github.com/openworkhq/agentgate/internal/port/provider"
	"github.com/openworkhq/agentgate/internal/resilience"
)

func newClient(url string) *llm.Client {
	return llm.NewClient(config.Provider{URL: url, APIKey: "test-key", Timeout: 5 * time.Second})
}

func TestSendTurn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Fatalf("unexpected auth: %q", auth)
		}

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
			Tools []struct {
				Type     string `json:"type"`
				Function struct {
					Name string `json:"name"`
				} `json:"function"`
			} `json:"tools"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "claude-sonnet-4.5" {
			t.Fatalf("unexpected model: %q", req.Model)
		}
		if len(req.Messages) != 3 || req.Messages[0].Role != "system" {
			t.Fatalf("expected system + 2 history messages, got %d", len(req.Messages))
		}
		if len(req.Tools) != 1 || req.Tools[0].Function.Name != "search_web" {
			t.Fatalf("expected search_web tool, got %+v", req.Tools)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {
				"content": "Let me look that up.",
				"tool_calls": [{"id": "call_1", "function": {"name": "search_web", "arguments": "{\"query\":\"go generics\"}"}}]
			}}],
			"usage": {"prompt_tokens": 120, "completion_tokens": 30, "total_tokens": 150}
		}`))
	}))
	defer srv.Close()

	client := newClient(srv.URL)
	turn, err := client.SendTurn(context.Background(), provider.Request{
		Model:        "claude-sonnet-4.5",
		SystemPrompt: "You are a helpful assistant.",
		Temperature:  0.7,
		MaxTokens:    4096,
		History: []conversation.Message{
			{Role: conversation.RoleUser, Content: "hi"},
			{Role: conversation.RoleAssistant, Content: "hello"},
		},
		Tools: []provider.ToolDef{
			{Name: toolcall.KindSearchWeb, Description: "search the web", Schema: json.RawMessage(`{"type":"object"}`)},
		},
	})
	if err != nil {
		t.Fatalf("SendTurn failed: %v", err)
	}

	if turn.Text != "Let me look that up." {
		t.Fatalf("unexpected text: %q", turn.Text)
	}
	if len(turn.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(turn.ToolCalls))
	}
	tc := turn.ToolCalls[0]
	if tc.ID != "call_1" || tc.Tool != toolcall.KindSearchWeb {
		t.Fatalf("unexpected tool call: %+v", tc)
	}
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(tc.Arguments, &args); err != nil || args.Query != "go generics" {
		t.Fatalf("unexpected arguments: %s (%v)", tc.Arguments, err)
	}
	if turn.Usage.Input != 120 || turn.Usage.Output != 30 || turn.Usage.Total != 150 {
		t.Fatalf("unexpected usage: %+v", turn.Usage)
	}
}

func TestSendTurnEmptyArguments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {
				"tool_calls": [{"id": "call_1", "function": {"name": "list_directory", "arguments": ""}}]
			}}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	}))
	defer srv.Close()

	turn, err := newClient(srv.URL).SendTurn(context.Background(), provider.Request{Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("SendTurn failed: %v", err)
	}
	if string(turn.ToolCalls[0].Arguments) != "{}" {
		t.Fatalf("expected empty object arguments, got %s", turn.ToolCalls[0].Arguments)
	}
}

func TestSendTurnNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices": [], "usage": {}}`))
	}))
	defer srv.Close()

	if _, err := newClient(srv.URL).SendTurn(context.Background(), provider.Request{Model: "gpt-4o"}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestSendTurnGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error": "upstream unavailable"}`))
	}))
	defer srv.Close()

	if _, err := newClient(srv.URL).SendTurn(context.Background(), provider.Request{Model: "gpt-4o"}); err == nil {
		t.Fatal("expected error for 502 response")
	}
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := newClient(srv.URL)
	client.SetBreaker(resilience.NewBreaker(2, time.Minute))

	for i := 0; i < 2; i++ {
		_, _ = client.SendTurn(context.Background(), provider.Request{Model: "gpt-4o"})
	}

	if got := client.BreakerState(); got != "open" {
		t.Fatalf("expected open breaker, got %s", got)
	}
	if _, err := client.SendTurn(context.Background(), provider.Request{Model: "gpt-4o"}); err == nil {
		t.Fatal("expected breaker rejection")
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	ok, err := newClient(srv.URL).Health(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected healthy, got ok=%v err=%v", ok, err)
	}
}
