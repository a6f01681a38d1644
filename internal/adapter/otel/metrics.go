package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "agentgate"

// Metrics holds all AgentGate metric instruments.
type Metrics struct {
	ToolCallsCreated  metric.Int64Counter
	ToolCallsApproved metric.Int64Counter
	ToolCallsRejected metric.Int64Counter
	ToolCallsExecuted metric.Int64Counter
	ToolCallsFailed   metric.Int64Counter
	QueueRetries      metric.Int64Counter
	ExecuteDuration   metric.Float64Histogram
	TurnCost          metric.Float64Histogram
	TurnTokens        metric.Int64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.ToolCallsCreated, err = meter.Int64Counter("agentgate.toolcalls.created",
		metric.WithDescription("Number of tool calls created"))
	if err != nil {
		return nil, err
	}

	m.ToolCallsApproved, err = meter.Int64Counter("agentgate.toolcalls.approved",
		metric.WithDescription("Number of tool calls approved"))
	if err != nil {
		return nil, err
	}

	m.ToolCallsRejected, err = meter.Int64Counter("agentgate.toolcalls.rejected",
		metric.WithDescription("Number of tool calls rejected"))
	if err != nil {
		return nil, err
	}

	m.ToolCallsExecuted, err = meter.Int64Counter("agentgate.toolcalls.executed",
		metric.WithDescription("Number of tool calls executed successfully"))
	if err != nil {
		return nil, err
	}

	m.ToolCallsFailed, err = meter.Int64Counter("agentgate.toolcalls.failed",
		metric.WithDescription("Number of tool calls that exhausted retries"))
	if err != nil {
		return nil, err
	}

	m.QueueRetries, err = meter.Int64Counter("agentgate.queue.retries",
		metric.WithDescription("Number of execution retries scheduled"))
	if err != nil {
		return nil, err
	}

	m.ExecuteDuration, err = meter.Float64Histogram("agentgate.execute.duration_seconds",
		metric.WithDescription("Tool call execution duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.TurnCost, err = meter.Float64Histogram("agentgate.turn.cost_usd",
		metric.WithDescription("Model turn cost in USD"))
	if err != nil {
		return nil, err
	}

	m.TurnTokens, err = meter.Int64Histogram("agentgate.turn.tokens",
		metric.WithDescription("Total tokens consumed per model turn"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
