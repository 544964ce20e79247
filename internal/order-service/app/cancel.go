package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jcmexdev/order-saga/internal/coordinator"
	"github.com/jcmexdev/order-saga/internal/order-service/domain"
	"github.com/jcmexdev/order-saga/internal/pkg/auth"
)

const opCancel = "cancel"

type cancelPayload struct {
	Operation string `json:"operation"`
	OrderID   string `json:"order_id"`
	OwnerID   string `json:"owner_id"`
}

// CancelSagaID is stable per order so a retried cancellation finds the steps
// an earlier attempt already performed.
func CancelSagaID(orderID string) string {
	return "cancel:" + orderID
}

// Cancel refunds the order total, returns every line to stock and only then
// marks the order cancelled. The order is first claimed by moving it from
// COMMITTED to CANCELLING, so of two concurrent cancellations only one gets
// past the claim; the other sees ErrNotFound like any repeat. Any later
// failure reopens the order as COMMITTED and is reported as
// ErrCancellationFailed; nothing is reversed, and a retry skips the steps
// already done.
func (o *Orchestrator) Cancel(ctx context.Context, cred auth.Credential, orderID string) (err error) {
	ctx, span := tracer.Start(ctx, "saga.cancel")
	defer func() {
		o.metrics.SagaFinished(opCancel, result(err))
		finishSpan(span, err)
	}()

	if cred.OwnerID == "" {
		return domain.ErrUnauthenticated
	}
	order, err := o.Get(ctx, cred, orderID)
	if err != nil {
		return err
	}
	if order.Status != domain.StatusCommitted {
		return domain.ErrNotFound
	}
	if err := o.store.UpdateStatus(ctx, order.ID, domain.StatusCommitted, domain.StatusCancelling); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return domain.NewError(domain.ErrCancellationFailed, "", fmt.Errorf("claim order %s: %w", order.ID, err))
	}

	sagaID := CancelSagaID(order.ID)
	span.SetAttributes(attribute.String("saga.id", sagaID))

	abort := func(productID string, cause error) error {
		o.journal.Aborted(ctx, sagaID, cause)
		o.reopen(ctx, order.ID)
		slog.ErrorContext(ctx, "order cancellation aborted",
			"saga_id", sagaID,
			"order_id", order.ID,
			"error", cause,
		)
		return domain.NewError(domain.ErrCancellationFailed, productID, cause)
	}

	history, err := o.journal.History(ctx, sagaID)
	if err != nil {
		return abort("", fmt.Errorf("read earlier progress: %w", err))
	}
	done, err := coordinator.Replay(history)
	if err != nil {
		return abort("", err)
	}
	if len(history) == 0 {
		o.journal.Started(ctx, sagaID, cancelPayload{Operation: opCancel, OrderID: order.ID, OwnerID: order.OwnerID})
	} else {
		slog.InfoContext(ctx, "resuming cancellation", "saga_id", sagaID, "steps_done", done.Len())
	}

	refund := coordinator.Step{Kind: coordinator.BalanceRefunded, Key: coordinator.BalanceKey(), Amount: order.Total}
	if !done.Has(refund.Key) {
		o.journal.StepPending(ctx, sagaID, refund)
		if err := o.wallet.Refund(ctx, cred.Token, order.Total); err != nil {
			return abort("", fmt.Errorf("refund %s: %w", order.Total, err))
		}
		o.journal.StepDone(ctx, sagaID, refund)
	}

	for i, line := range order.Lines {
		release := coordinator.Step{
			Kind:      coordinator.StockReleased,
			Key:       coordinator.LineKey(i),
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
		}
		if done.Has(release.Key) {
			continue
		}
		o.journal.StepPending(ctx, sagaID, release)
		if err := o.inventory.Release(ctx, line.ProductID, line.Quantity); err != nil {
			return abort(line.ProductID, fmt.Errorf("release %d of %s: %w", line.Quantity, line.ProductID, err))
		}
		o.journal.StepDone(ctx, sagaID, release)
	}

	if err := o.markCancelled(ctx, order.ID); err != nil {
		return abort("", err)
	}
	o.journal.Completed(ctx, sagaID)

	slog.InfoContext(ctx, "order cancelled",
		"order_id", order.ID,
		"owner_id", order.OwnerID,
		"refunded", order.Total.String(),
	)
	return nil
}

func (o *Orchestrator) markCancelled(ctx context.Context, id string) error {
	var err error
	if o.deleteOnCancel {
		err = o.store.Delete(ctx, id)
	} else {
		err = o.store.UpdateStatus(ctx, id, domain.StatusCancelling, domain.StatusCancelled)
	}
	if err != nil {
		return fmt.Errorf("mark order %s cancelled: %w", id, err)
	}
	return nil
}

// reopen hands a claimed order back to COMMITTED after a failed
// cancellation. If this fails too the order stays CANCELLING until the
// recovery pass reopens it.
func (o *Orchestrator) reopen(ctx context.Context, id string) {
	ctx = context.WithoutCancel(ctx)
	if err := o.store.UpdateStatus(ctx, id, domain.StatusCancelling, domain.StatusCommitted); err != nil {
		slog.ErrorContext(ctx, "could not reopen order after failed cancellation",
			"order_id", id,
			"error", err,
		)
	}
}
