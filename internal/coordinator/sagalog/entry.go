package sagalog

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// EntryOption customises a row built by NewEntry.
type EntryOption func(*SagaLog)

// WithStep attaches a step key and its JSON encoding.
func WithStep(key string, step any) EntryOption {
	return func(e *SagaLog) {
		e.CurrentStep = key
		if b, err := json.Marshal(step); err == nil {
			e.Payload = string(b)
		}
	}
}

// WithPayload attaches the JSON encoding of the saga input.
func WithPayload(payload any) EntryOption {
	return func(e *SagaLog) {
		if b, err := json.Marshal(payload); err == nil {
			e.Payload = string(b)
		}
	}
}

func WithErrors(errs ...string) EntryOption {
	return func(e *SagaLog) {
		if len(errs) == 0 {
			return
		}
		if b, err := json.Marshal(errs); err == nil {
			e.ErrorMessages = string(b)
		}
	}
}

// NewEntry builds a row stamped with the trace of the span active in ctx.
// Outside a span (tests, the recovery command) the trace fields stay empty.
func NewEntry(ctx context.Context, sagaID string, status Status, opts ...EntryOption) *SagaLog {
	e := &SagaLog{
		SagaID:        sagaID,
		Status:        status,
		ErrorMessages: "[]",
		UpdatedAt:     time.Now().UTC(),
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		e.TraceID = sc.TraceID().String()
		e.SpanID = sc.SpanID().String()
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Errors decodes ErrorMessages.
func (e SagaLog) Errors() []string {
	var out []string
	_ = json.Unmarshal([]byte(e.ErrorMessages), &out)
	return out
}
