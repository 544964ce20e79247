package sagalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNewEntry_Defaults(t *testing.T) {
	e := NewEntry(context.Background(), "s1", StatusStarted)

	assert.Equal(t, "[]", e.ErrorMessages)
	assert.Empty(t, e.TraceID)
	assert.False(t, e.UpdatedAt.IsZero())
	assert.Nil(t, e.Errors())
}

func TestNewEntry_Options(t *testing.T) {
	e := NewEntry(context.Background(), "s1", StatusStepDone,
		WithStep("line:0", map[string]int{"quantity": 2}),
		WithErrors("a", "b"),
	)

	assert.Equal(t, "line:0", e.CurrentStep)
	assert.JSONEq(t, `{"quantity":2}`, e.Payload)
	assert.Equal(t, []string{"a", "b"}, e.Errors())
}

func TestNewEntry_StampsTrace(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	ctx, span := tp.Tracer("test").Start(context.Background(), "saga")
	defer span.End()

	e := NewEntry(ctx, "s1", StatusCompleted)

	assert.Equal(t, span.SpanContext().TraceID().String(), e.TraceID)
	assert.Equal(t, span.SpanContext().SpanID().String(), e.SpanID)
}

func TestStatus_Terminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusCompensationFailed.Terminal())
	assert.False(t, StatusAborted.Terminal())
}
