// Package usage defines usage accounting types: the immutable ledger entry,
// the static model price table, and quota watermark bands.
package usage

import (
	"math"
	"time"

	"github.com/openworkhq/agentgate/internal/domain/agent"
	"github.com/openworkhq/agentgate/internal/domain/conversation"
)

// LedgerEntry is an immutable billing record created once per completed
// model call. Never mutated.
type LedgerEntry struct {
	ID          string                  `json:"id"`
	WorkspaceID string                  `json:"workspace_id"`
	AgentID     string                  `json:"agent_id"`
	Provider    string                  `json:"provider"`
	Model       string                  `json:"model"`
	Tokens      conversation.TokenUsage `json:"tokens"`
	CostUSD     float64                 `json:"cost_usd"`
	CreatedAt   time.Time               `json:"created_at"`
}

// ModelPrice holds USD prices per 1000 input and output tokens.
type ModelPrice struct {
	Input  float64
	Output float64
}

// fallbackPrice is used for models missing from the table.
var fallbackPrice = ModelPrice{Input: 0.001, Output: 0.002}

// priceTable is the static per-provider/per-model price list.
var priceTable = map[agent.Provider]map[string]ModelPrice{
	agent.ProviderAnthropic: {
		"claude-opus-4.5":   {Input: 0.015, Output: 0.075},
		"claude-sonnet-4.5": {Input: 0.003, Output: 0.015},
		"claude-haiku-4.5":  {Input: 0.0008, Output: 0.004},
	},
	agent.ProviderOpenAI: {
		"gpt-4o":        {Input: 0.005, Output: 0.015},
		"gpt-4-turbo":   {Input: 0.01, Output: 0.03},
		"gpt-3.5-turbo": {Input: 0.0005, Output: 0.0015},
	},
	agent.ProviderGoogle: {
		"gemini-pro": {Input: 0.0005, Output: 0.0015},
	},
}

// PriceFor returns the price entry for a provider/model pair, falling back
// to a conservative default for unknown models.
func PriceFor(provider agent.Provider, model string) ModelPrice {
	if p, ok := priceTable[provider][model]; ok {
		return p
	}
	return fallbackPrice
}

// Cost computes the monetary cost of a call. When the provider does not
// report input/output tokens separately, a fixed 60/40 split of the total
// is assumed. The result is rounded to 6 decimal places.
func Cost(provider agent.Provider, model string, tokens conversation.TokenUsage) float64 {
	price := PriceFor(provider, model)

	in, out := tokens.Input, tokens.Output
	if in == 0 && out == 0 {
		in = int(float64(tokens.Total) * 0.6)
		out = int(float64(tokens.Total) * 0.4)
	}

	cost := float64(in)/1000*price.Input + float64(out)/1000*price.Output
	return math.Round(cost*1e6) / 1e6
}

// Watermark is a usage-percentage band that triggers a notification when a
// call lands in it. The check runs on every call, so usage oscillating
// around a boundary can re-trigger the same band.
type Watermark int

const (
	WatermarkNone     Watermark = 0
	Watermark80       Watermark = 80
	Watermark90       Watermark = 90
	WatermarkExceeded Watermark = 100
)

// BandFor returns the watermark band for a usage percentage: [80,90),
// [90,100), or >=100. Percentages below 80 carry no watermark.
func BandFor(percent float64) Watermark {
	switch {
	case percent >= 100:
		return WatermarkExceeded
	case percent >= 90:
		return Watermark90
	case percent >= 80:
		return Watermark80
	default:
		return WatermarkNone
	}
}

// Summary aggregates ledger entries for a workspace.
type Summary struct {
	WorkspaceID  string  `json:"workspace_id"`
	TotalTokens  int64   `json:"total_tokens"`
	TotalCostUSD float64 `json:"total_cost_usd"`
	Calls        int64   `json:"calls"`
}

// ModelSummary is a per-model usage breakdown row.
type ModelSummary struct {
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	TotalTokens  int64   `json:"total_tokens"`
	TotalCostUSD float64 `json:"total_cost_usd"`
	Calls        int64   `json:"calls"`
}
