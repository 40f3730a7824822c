package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "derjachat"

var globalTracer trace.Tracer

// InitGlobalTracer initializes the global tracer for the application.
func InitGlobalTracer() {
	globalTracer = otel.Tracer(tracerName)
}

// GetGlobalTracer returns the global tracer instance for the application.
func GetGlobalTracer() trace.Tracer {
	if globalTracer == nil {
		globalTracer = otel.Tracer(tracerName)
	}
	return globalTracer
}

// TraceFunction starts a new span named "<service>.<function>".
func TraceFunction(ctx context.Context, serviceName, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := GetGlobalTracer()
	spanName := fmt.Sprintf("%s.%s", serviceName, functionName)
	return tracer.Start(ctx, spanName, trace.WithAttributes(attributes...))
}

// TraceAIFunction starts a new span for a generation boundary call.
func TraceAIFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "ai", functionName, attributes...)
}

// TracePipelineFunction starts a new span for a chat pipeline stage.
func TracePipelineFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "pipeline", functionName, attributes...)
}

// TraceGroundingFunction starts a new span for search and page-fetch calls.
func TraceGroundingFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "grounding", functionName, attributes...)
}

// TraceDialectFunction starts a new span for dialect enforcement.
func TraceDialectFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "dialect", functionName, attributes...)
}

// TraceQuizFunction starts a new span for quiz synthesis.
func TraceQuizFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "quiz", functionName, attributes...)
}

// TraceHandlerFunction starts a new span for a handler function.
func TraceHandlerFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "handler", functionName, attributes...)
}

// AttributeLanguage returns a tracing attribute for the resolved reply language.
func AttributeLanguage(lang string) attribute.KeyValue {
	return attribute.String("language", lang)
}

// AttributeMode returns a tracing attribute for the request mode.
func AttributeMode(mode string) attribute.KeyValue {
	return attribute.String("request.mode", mode)
}

// AttributeQuizState returns a tracing attribute for the quiz state machine state.
func AttributeQuizState(state string) attribute.KeyValue {
	return attribute.String("quiz.state", state)
}

// AttributeQuestionType returns a tracing attribute for a quiz item type or a list of them.
func AttributeQuestionType(qType interface{}) attribute.KeyValue {
	return attribute.String("question.type", fmt.Sprintf("%v", qType))
}

// AttributeProvider returns a tracing attribute for the generation provider.
func AttributeProvider(provider string) attribute.KeyValue {
	return attribute.String("ai.provider", provider)
}
