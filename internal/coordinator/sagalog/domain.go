// Package sagalog is the durable journal of saga executions.
//
// Every state transition of an order saga is appended as one row: the saga
// start with its input, an intent row before each remote mutation, a done row
// after the collaborator confirmed it, and the compensation trail. The
// in-memory step log dies with the request; this journal is what a recovery
// pass reads after a crash to find remote side effects that were never
// undone.
package sagalog

import "time"

// Status is the lifecycle state recorded by one journal row.
type Status string

const (
	StatusStarted            Status = "STARTED"
	StatusStepPending        Status = "STEP_PENDING"
	StatusStepDone           Status = "STEP_DONE"
	StatusCompensating       Status = "COMPENSATING"
	StatusStepCompensated    Status = "STEP_COMPENSATED"
	StatusCompleted          Status = "COMPLETED"
	StatusFailed             Status = "FAILED"
	StatusAborted            Status = "ABORTED"
	StatusCompensationFailed Status = "COMPENSATION_FAILED"
)

// Terminal reports whether no further action is owed for a saga whose latest
// row carries this status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// SagaLog is a single row in the saga_logs table.
type SagaLog struct {
	// SagaID groups the rows of one execution. Create sagas use a fresh
	// UUID; cancel sagas use "cancel:<order id>" so a retry finds its
	// earlier progress.
	SagaID string

	Status Status

	// CurrentStep is the key of the step the row is about ("balance",
	// "line:2"), empty for saga-level rows.
	CurrentStep string

	// Payload is JSON: the saga input on STARTED rows, the step on step rows.
	Payload string

	// ErrorMessages is a JSON array of failure strings.
	ErrorMessages string

	// TraceID and SpanID come from the span active when the row was written.
	TraceID string
	SpanID  string

	UpdatedAt time.Time
}
