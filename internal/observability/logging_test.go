package observability

import (
	"context"
	"testing"

	contextutils "derjachat/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedLogger(level zapcore.Level) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return &Logger{Logger: zap.New(core)}, logs
}

func TestLogWithContextAddsTraceInfo(t *testing.T) {
	tp := trace.NewTracerProvider()
	tracer := tp.Tracer("test-tracer")

	logger, observedLogs := newObservedLogger(zap.InfoLevel)

	ctx, span := tracer.Start(context.Background(), "test-span")
	defer span.End()

	logger.Info(ctx, "test message", nil)

	entries := observedLogs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "test message", entries[0].Message)

	fields := entries[0].ContextMap()
	spanContext := span.SpanContext()
	assert.Equal(t, spanContext.TraceID().String(), fields["trace_id"])
	assert.Equal(t, spanContext.SpanID().String(), fields["span_id"])
}

func TestLogWithContextNoSpan(t *testing.T) {
	logger, observedLogs := newObservedLogger(zap.InfoLevel)

	logger.Info(context.Background(), "test message", nil)

	entries := observedLogs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.NotContains(t, fields, "trace_id")
	assert.NotContains(t, fields, "span_id")
}

func TestLogWithContextAddsRequestID(t *testing.T) {
	logger, observedLogs := newObservedLogger(zap.InfoLevel)

	ctx := contextutils.WithRequestID(context.Background(), "req-42")
	logger.Warn(ctx, "slow upstream", map[string]interface{}{"source": "search"})

	entries := observedLogs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-42", fields["request_id"])
	assert.Equal(t, "search", fields["source"])
	assert.Equal(t, zap.WarnLevel, entries[0].Level)
}

func TestErrorAddsErrorCode(t *testing.T) {
	logger, observedLogs := newObservedLogger(zap.InfoLevel)

	caller := map[string]interface{}{"stage": "generate"}
	err := contextutils.WrapError(contextutils.ErrAIRequestFailed, "primary call failed")
	logger.Error(context.Background(), "generation failed", err, caller)

	entries := observedLogs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, string(contextutils.ErrorCodeAIRequestFailed), fields["error_code"])
	assert.Contains(t, fields["error"], "primary call failed")
	assert.Equal(t, map[string]interface{}{"stage": "generate"}, caller, "caller map must not be mutated")
}

func TestDebugFilteredByLevel(t *testing.T) {
	logger, observedLogs := newObservedLogger(zap.InfoLevel)

	logger.Debug(context.Background(), "noise", nil)

	assert.Zero(t, observedLogs.Len())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zap.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zap.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zap.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zap.InfoLevel, ParseLevel("chatty"))
}

func TestNewLoggerDisabledIsNop(t *testing.T) {
	logger := NewLogger(nil)
	require.NotNil(t, logger)
	logger.Info(context.Background(), "dropped", nil)
}
