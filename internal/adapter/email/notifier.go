// Package email implements a notifier.Notifier backed by a transactional
// email HTTP API.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/openworkhq/agentgate/internal/config"
	"github.com/openworkhq/agentgate/internal/port/notifier"
)

const providerName = "email"

// Notifier delivers notifications as emails through an HTTP send endpoint.
type Notifier struct {
	endpoint   string
	apiKey     string
	from       string
	httpClient *http.Client
}

// NewNotifier creates an email notifier from configuration.
func NewNotifier(cfg config.Notify) *Notifier {
	return &Notifier{
		endpoint:   cfg.EmailEndpoint,
		apiKey:     cfg.EmailAPIKey,
		from:       cfg.EmailFrom,
		httpClient: http.DefaultClient,
	}
}

func (n *Notifier) Name() string { return providerName }

type sendRequest struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Subject  string `json:"subject"`
	Text     string `json:"text"`
	Template string `json:"template,omitempty"`
}

func (n *Notifier) Send(ctx context.Context, notification notifier.Notification) error {
	if n.endpoint == "" || notification.Recipient == "" {
		return notifier.ErrNotConfigured
	}

	body, err := json.Marshal(sendRequest{
		From:     n.from,
		To:       notification.Recipient,
		Subject:  notification.Title,
		Text:     notification.Message,
		Template: notification.Template,
	})
	if err != nil {
		return fmt.Errorf("email marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+n.apiKey)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("email send: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("email API %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}
