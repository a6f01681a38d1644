// Package planapi resolves workspace plan limits from the billing service.
// Without a configured URL every workspace gets the static default limits,
// which keeps single-tenant deployments free of a billing dependency.
package planapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/openworkhq/agentgate/internal/config"
	"github.com/openworkhq/agentgate/internal/port/plans"
)

const defaultTimeout = 10 * time.Second

// Resolver looks up plan limits over HTTP with a static fallback.
type Resolver struct {
	baseURL    string
	apiKey     string
	defaults   plans.Limits
	httpClient *http.Client
}

// NewResolver creates a Resolver from configuration.
func NewResolver(cfg config.Plans) *Resolver {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Resolver{
		baseURL: cfg.URL,
		apiKey:  cfg.APIKey,
		defaults: plans.Limits{
			RequestsPerMinute: cfg.DefaultRPM,
			MonthlyQuota:      cfg.DefaultQuota,
		},
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GetPlanLimits returns the workspace's active plan limits. With no billing
// URL configured the static defaults apply to every workspace.
func (r *Resolver) GetPlanLimits(ctx context.Context, workspaceID string) (*plans.Limits, error) {
	if r.baseURL == "" {
		l := r.defaults
		return &l, nil
	}

	endpoint := r.baseURL + "/workspaces/" + url.PathEscape(workspaceID) + "/limits"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("plan lookup: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("plan API error %d: %s", resp.StatusCode, string(data))
	}

	var limits plans.Limits
	if err := json.Unmarshal(data, &limits); err != nil {
		return nil, fmt.Errorf("unmarshal limits: %w", err)
	}
	return &limits, nil
}
