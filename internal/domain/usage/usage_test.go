package usage

import (
	"testing"

	"github.com/openworkhq/agentgate/internal/domain/agent"
	"github.com/openworkhq/agentgate/internal/domain/conversation"
)

func TestCostWithReportedSplit(t *testing.T) {
	got := Cost(agent.ProviderAnthropic, "claude-sonnet-4.5", conversation.TokenUsage{
		Input:  1000,
		Output: 1000,
		Total:  2000,
	})
	if got != 0.018 {
		t.Errorf("cost = %v, want 0.018", got)
	}
}

func TestCostAssumesSplitWhenOnlyTotalReported(t *testing.T) {
	// 60/40 split: 600 input + 400 output at 0.003/0.015 per 1000.
	got := Cost(agent.ProviderAnthropic, "claude-sonnet-4.5", conversation.TokenUsage{Total: 1000})
	want := 0.0078
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("cost = %v, want %v", got, want)
	}
}

func TestCostUnknownModelFallsBack(t *testing.T) {
	got := Cost(agent.ProviderOpenAI, "gpt-99", conversation.TokenUsage{Input: 1000, Output: 1000, Total: 2000})
	if got != 0.003 {
		t.Errorf("fallback cost = %v, want 0.003", got)
	}
}

func TestBandFor(t *testing.T) {
	tests := []struct {
		percent float64
		want    Watermark
	}{
		{0, WatermarkNone},
		{79.9, WatermarkNone},
		{80, Watermark80},
		{89.9, Watermark80},
		{90, Watermark90},
		{99.9, Watermark90},
		{100, WatermarkExceeded},
		{150, WatermarkExceeded},
	}
	for _, tt := range tests {
		if got := BandFor(tt.percent); got != tt.want {
			t.Errorf("BandFor(%v) = %v, want %v", tt.percent, got, tt.want)
		}
	}
}
