package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jcmexdev/order-saga/internal/coordinator/sagalog"
)

// Journal writes saga transitions to the durable saga log. Writes are best
// effort: a failed write is logged and never fails the saga. A nil Journal,
// or one without a repository, records nothing.
type Journal struct {
	repo sagalog.Repository
}

func NewJournal(repo sagalog.Repository) *Journal {
	return &Journal{repo: repo}
}

func (j *Journal) enabled() bool {
	return j != nil && j.repo != nil
}

func (j *Journal) write(ctx context.Context, entry *sagalog.SagaLog) {
	if !j.enabled() {
		return
	}
	if err := j.repo.Save(ctx, entry); err != nil {
		slog.WarnContext(ctx, "saga log write failed",
			"saga_id", entry.SagaID,
			"status", entry.Status,
			"error", err,
		)
	}
}

func (j *Journal) Started(ctx context.Context, sagaID string, payload any) {
	j.write(ctx, sagalog.NewEntry(ctx, sagaID, sagalog.StatusStarted, sagalog.WithPayload(payload)))
}

// StepPending is written before the remote call so a crash leaves a trace of
// a mutation with an unknown outcome.
func (j *Journal) StepPending(ctx context.Context, sagaID string, s Step) {
	j.write(ctx, sagalog.NewEntry(ctx, sagaID, sagalog.StatusStepPending, sagalog.WithStep(s.Key, s)))
}

func (j *Journal) StepDone(ctx context.Context, sagaID string, s Step) {
	j.write(ctx, sagalog.NewEntry(ctx, sagaID, sagalog.StatusStepDone, sagalog.WithStep(s.Key, s)))
}

func (j *Journal) Compensating(ctx context.Context, sagaID string) {
	j.write(ctx, sagalog.NewEntry(ctx, sagaID, sagalog.StatusCompensating))
}

func (j *Journal) StepCompensated(ctx context.Context, sagaID string, s Step) {
	j.write(ctx, sagalog.NewEntry(ctx, sagaID, sagalog.StatusStepCompensated, sagalog.WithStep(s.Key, s)))
}

func (j *Journal) Completed(ctx context.Context, sagaID string) {
	j.write(ctx, sagalog.NewEntry(ctx, sagaID, sagalog.StatusCompleted))
}

func (j *Journal) Failed(ctx context.Context, sagaID string, cause error) {
	j.write(ctx, sagalog.NewEntry(ctx, sagaID, sagalog.StatusFailed, sagalog.WithErrors(cause.Error())))
}

// Aborted marks a cancellation that stopped partway and may be retried.
func (j *Journal) Aborted(ctx context.Context, sagaID string, cause error) {
	j.write(ctx, sagalog.NewEntry(ctx, sagaID, sagalog.StatusAborted, sagalog.WithErrors(cause.Error())))
}

func (j *Journal) CompensationFailed(ctx context.Context, sagaID string, errs ...string) {
	j.write(ctx, sagalog.NewEntry(ctx, sagaID, sagalog.StatusCompensationFailed, sagalog.WithErrors(errs...)))
}

func (j *Journal) History(ctx context.Context, sagaID string) ([]sagalog.SagaLog, error) {
	if !j.enabled() {
		return nil, nil
	}
	return j.repo.History(ctx, sagaID)
}

func (j *Journal) Unfinished(ctx context.Context) ([]sagalog.SagaLog, error) {
	if !j.enabled() {
		return nil, nil
	}
	return j.repo.Unfinished(ctx)
}

// Replay rebuilds the step log of a saga from its history: confirmed steps,
// in order, minus the ones already compensated. STEP_PENDING rows without a
// matching STEP_DONE have an unknown outcome and are left out.
func Replay(history []sagalog.SagaLog) (*StepLog, error) {
	var done []Step
	compensated := make(map[string]bool)

	for _, row := range history {
		switch row.Status {
		case sagalog.StatusStepDone:
			var s Step
			if err := json.Unmarshal([]byte(row.Payload), &s); err != nil {
				return nil, fmt.Errorf("replay %s step %q: %w", row.SagaID, row.CurrentStep, err)
			}
			done = append(done, s)
		case sagalog.StatusStepCompensated:
			compensated[row.CurrentStep] = true
		}
	}

	log := NewStepLog()
	for _, s := range done {
		if !compensated[s.Key] {
			log.Append(s)
		}
	}
	return log, nil
}
