package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jcmexdev/order-saga/internal/coordinator"
	"github.com/jcmexdev/order-saga/internal/coordinator/sagalog"
	"github.com/jcmexdev/order-saga/internal/order-service/domain"
)

var (
	errRecovered       = errors.New("saga interrupted and rolled back by recovery")
	errCancelRecovered = errors.New("cancellation interrupted; order reopened by recovery")
)

// RecoveryReport lists saga ids by what the pass did with them.
type RecoveryReport struct {
	Completed          []string
	RolledBack         []string
	CompensationFailed []string
	// Reopened holds interrupted cancellations whose order was put back to
	// COMMITTED so the owner can retry.
	Reopened []string
	// Skipped holds other cancel sagas, which are resumed by the user
	// retrying the cancellation, and sagas still too recent to be
	// considered dead.
	Skipped []string
	Errors  []string
}

// Recover finishes create sagas that a crash left half done. Sagas whose
// latest journal row is younger than minAge are assumed to still be running
// and are skipped.
func (o *Orchestrator) Recover(ctx context.Context, minAge time.Duration) (RecoveryReport, error) {
	var report RecoveryReport

	open, err := o.journal.Unfinished(ctx)
	if err != nil {
		return report, fmt.Errorf("list unfinished sagas: %w", err)
	}

	cutoff := o.now().Add(-minAge)
	for _, latest := range open {
		id := latest.SagaID
		switch {
		case latest.UpdatedAt.After(cutoff):
			report.Skipped = append(report.Skipped, id)
		case strings.HasPrefix(id, CancelSagaID("")):
			o.recoverCancel(ctx, latest, &report)
		default:
			o.recoverCreate(ctx, id, &report)
		}
	}

	slog.InfoContext(ctx, "recovery pass finished",
		"completed", len(report.Completed),
		"rolled_back", len(report.RolledBack),
		"compensation_failed", len(report.CompensationFailed),
		"reopened", len(report.Reopened),
		"skipped", len(report.Skipped),
		"errors", len(report.Errors),
	)
	return report, nil
}

func (o *Orchestrator) recoverCreate(ctx context.Context, sagaID string, report *RecoveryReport) {
	history, err := o.journal.History(ctx, sagaID)
	if err != nil {
		o.recoveryError(ctx, sagaID, report, fmt.Errorf("read history: %w", err))
		return
	}
	payload, err := startedPayload(history)
	if err != nil {
		o.recoveryError(ctx, sagaID, report, err)
		return
	}

	// The commit is the last step; an order on file means only the
	// COMPLETED row was lost.
	_, err = o.store.Get(ctx, payload.OrderID)
	if err == nil {
		o.journal.Completed(ctx, sagaID)
		report.Completed = append(report.Completed, sagaID)
		return
	}
	if !errors.Is(err, domain.ErrNotFound) {
		o.recoveryError(ctx, sagaID, report, fmt.Errorf("look up order %s: %w", payload.OrderID, err))
		return
	}

	log, err := coordinator.Replay(history)
	if err != nil {
		o.recoveryError(ctx, sagaID, report, err)
		return
	}
	if err := o.compensator.Compensate(ctx, sagaID, payload.Credential, log); err != nil {
		report.CompensationFailed = append(report.CompensationFailed, sagaID)
		return
	}
	o.journal.Failed(ctx, sagaID, errRecovered)
	report.RolledBack = append(report.RolledBack, sagaID)
}

// recoverCancel reopens an order a crashed cancellation left CANCELLING.
// The journal keeps the steps already done, so the owner's retry resumes
// where the crash stopped.
func (o *Orchestrator) recoverCancel(ctx context.Context, latest sagalog.SagaLog, report *RecoveryReport) {
	id := latest.SagaID
	orderID := strings.TrimPrefix(id, CancelSagaID(""))

	order, err := o.store.Get(ctx, orderID)
	if err == nil && order.Status == domain.StatusCancelling {
		if err := o.store.UpdateStatus(ctx, orderID, domain.StatusCancelling, domain.StatusCommitted); err != nil {
			o.recoveryError(ctx, id, report, fmt.Errorf("reopen order %s: %w", orderID, err))
			return
		}
		o.journal.Aborted(ctx, id, errCancelRecovered)
		report.Reopened = append(report.Reopened, id)
		return
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		o.recoveryError(ctx, id, report, fmt.Errorf("look up order %s: %w", orderID, err))
		return
	}

	slog.WarnContext(ctx, "cancellation left unfinished, waiting for the owner to retry",
		"saga_id", id,
		"status", latest.Status,
	)
	report.Skipped = append(report.Skipped, id)
}

func (o *Orchestrator) recoveryError(ctx context.Context, sagaID string, report *RecoveryReport, err error) {
	slog.ErrorContext(ctx, "could not recover saga", "saga_id", sagaID, "error", err)
	report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", sagaID, err))
}

func startedPayload(history []sagalog.SagaLog) (createPayload, error) {
	var p createPayload
	for _, row := range history {
		if row.Status != sagalog.StatusStarted {
			continue
		}
		if err := json.Unmarshal([]byte(row.Payload), &p); err != nil {
			return p, fmt.Errorf("decode start payload: %w", err)
		}
		if p.OrderID == "" {
			return p, errors.New("start payload has no order id")
		}
		return p, nil
	}
	return p, errors.New("no STARTED row in history")
}
