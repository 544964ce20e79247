package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/shopspring/decimal"

	"github.com/jcmexdev/order-saga/internal/pkg/metrics"
)

// ErrCompensationFailed means at least one compensating call was still
// failing after its retries. Stock or balance is left out of sync.
var ErrCompensationFailed = errors.New("compensation failed")

// StockReleaser undoes a stock reservation.
type StockReleaser interface {
	Release(ctx context.Context, productID string, quantity int) error
}

// BalanceRefunder undoes a balance deduction on behalf of the credential
// owner.
type BalanceRefunder interface {
	Refund(ctx context.Context, credential string, amount decimal.Decimal) error
}

// RetryPolicy bounds the retries of a single compensating call.
type RetryPolicy struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// Retryable decides whether a failed compensating call may be sent
	// again. A refund is an unconditional credit, so repeating one whose
	// outcome is unknown can pay the owner twice. Nil retries stock
	// releases only.
	Retryable func(kind StepKind, err error) bool
}

func releasesOnly(kind StepKind, _ error) bool {
	return kind == StockReserved
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxTries:        3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
	}
}

// Compensator walks a step log backwards and issues the reverse of every
// step.
type Compensator struct {
	stock   StockReleaser
	wallet  BalanceRefunder
	journal *Journal
	metrics *metrics.Metrics
	policy  RetryPolicy
}

func NewCompensator(stock StockReleaser, wallet BalanceRefunder, journal *Journal, m *metrics.Metrics, policy RetryPolicy) *Compensator {
	if policy.MaxTries == 0 {
		policy.MaxTries = 1
	}
	if policy.Retryable == nil {
		policy.Retryable = releasesOnly
	}
	return &Compensator{
		stock:   stock,
		wallet:  wallet,
		journal: journal,
		metrics: m,
		policy:  policy,
	}
}

// Compensate consumes log, newest step first. Every step gets exactly one
// compensation attempt sequence, even when an earlier one failed. The
// returned error wraps ErrCompensationFailed and lists every step left
// undone; callers log it and keep reporting the error that triggered the
// rollback.
func (c *Compensator) Compensate(ctx context.Context, sagaID, credential string, log *StepLog) error {
	steps := log.Drain()
	if len(steps) == 0 {
		return nil
	}

	// The rollback must outlive a client that hung up.
	ctx = context.WithoutCancel(ctx)
	c.journal.Compensating(ctx, sagaID)

	var failed []string
	for _, step := range steps {
		slog.InfoContext(ctx, "compensating step", "saga_id", sagaID, "step", step.String())

		err := c.undo(ctx, credential, step)
		c.metrics.Compensated(string(step.Kind), err)
		if err != nil {
			slog.ErrorContext(ctx, "CRITICAL: compensation failed after retries",
				"alert", true,
				"saga_id", sagaID,
				"step", step.String(),
				"error", err,
			)
			failed = append(failed, fmt.Sprintf("compensation of %s failed: %v", step, err))
			continue
		}
		c.journal.StepCompensated(ctx, sagaID, step)
	}

	if len(failed) > 0 {
		c.journal.CompensationFailed(ctx, sagaID, failed...)
		return fmt.Errorf("%w: %s", ErrCompensationFailed, strings.Join(failed, "; "))
	}
	return nil
}

func (c *Compensator) undo(ctx context.Context, credential string, step Step) error {
	var call func() error
	switch step.Kind {
	case StockReserved:
		call = func() error { return c.stock.Release(ctx, step.ProductID, step.Quantity) }
	case BalanceDeducted:
		call = func() error { return c.wallet.Refund(ctx, credential, step.Amount) }
	default:
		// Releases and refunds are themselves compensations.
		slog.WarnContext(ctx, "step has no compensation", "step", step.String())
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.policy.InitialInterval
	b.MaxInterval = c.policy.MaxInterval

	_, err := backoff.Retry(ctx,
		func() (struct{}, error) {
			err := call()
			if err != nil && !c.policy.Retryable(step.Kind, err) {
				return struct{}{}, backoff.Permanent(err)
			}
			return struct{}{}, err
		},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.policy.MaxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.WarnContext(ctx, "compensation attempt failed, retrying",
				"step", step.String(),
				"retry_in", next,
				"error", err,
			)
		}),
	)
	return err
}
