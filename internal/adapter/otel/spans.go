package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "agentgate"

// StartToolCallSpan starts a span for a tool call lifecycle operation.
func StartToolCallSpan(ctx context.Context, callID, op string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "toolcall",
		trace.WithAttributes(
			attribute.String("toolcall.id", callID),
			attribute.String("toolcall.op", op),
		),
	)
}

// StartTurnSpan starts a span for a conversation turn against the model provider.
func StartTurnSpan(ctx context.Context, conversationID, model string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "turn",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.String("llm.model", model),
		),
	)
}

// StartExecuteSpan starts a span for a queued tool call execution attempt.
func StartExecuteSpan(ctx context.Context, callID string, attempt int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "execute",
		trace.WithAttributes(
			attribute.String("toolcall.id", callID),
			attribute.Int("execute.attempt", attempt),
		),
	)
}
