package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/order-saga/internal/coordinator"
	"github.com/jcmexdev/order-saga/internal/coordinator/sagalog"
	"github.com/jcmexdev/order-saga/internal/order-service/domain"
)

// interruptedCreate journals a create saga that deducted the balance and
// reserved one line, then stopped before commit.
func interruptedCreate(t *testing.T, f *fixture, orderID string) {
	t.Helper()
	ctx := context.Background()
	j := coordinator.NewJournal(f.journal)

	j.Started(ctx, orderID, createPayload{
		Operation:  opCreate,
		OrderID:    orderID,
		OwnerID:    alice.OwnerID,
		Credential: alice.Token,
		Total:      dec("10.10"),
	})
	deduct := coordinator.Step{Kind: coordinator.BalanceDeducted, Key: coordinator.BalanceKey(), Amount: dec("10.10")}
	j.StepPending(ctx, orderID, deduct)
	j.StepDone(ctx, orderID, deduct)
	reserve := coordinator.Step{Kind: coordinator.StockReserved, Key: coordinator.LineKey(0), ProductID: "p1", Quantity: 1}
	j.StepPending(ctx, orderID, reserve)
	j.StepDone(ctx, orderID, reserve)

	require.NoError(t, f.wallet.Deduct(ctx, alice.Token, dec("10.10")))
	require.NoError(t, f.inventory.Reserve(ctx, "p1", 1))
}

func later(f *fixture) {
	f.orch.now = func() time.Time { return time.Now().Add(time.Hour) }
}

func TestRecover_RollsBackInterruptedCreate(t *testing.T) {
	f := newFixture(t)
	later(f)
	interruptedCreate(t, f, "o-crashed")

	report, err := f.orch.Recover(context.Background(), time.Minute)
	require.NoError(t, err)

	assert.Equal(t, []string{"o-crashed"}, report.RolledBack)
	assert.True(t, f.wallet.balance(alice.Token).Equal(dec("100.00")))
	assert.Equal(t, 5, f.inventory.stock["p1"])
	assert.Equal(t, sagalog.StatusFailed, f.journal.last("o-crashed"))

	again, err := f.orch.Recover(context.Background(), time.Minute)
	require.NoError(t, err)
	assert.Empty(t, again.RolledBack, "finished sagas are not recovered twice")
}

func TestRecover_CompletesCommittedOrder(t *testing.T) {
	f := newFixture(t)
	later(f)
	interruptedCreate(t, f, "o-committed")
	require.NoError(t, f.store.Create(context.Background(), &domain.Order{
		ID: "o-committed", OwnerID: "alice", Status: domain.StatusCommitted,
	}))

	report, err := f.orch.Recover(context.Background(), time.Minute)
	require.NoError(t, err)

	assert.Equal(t, []string{"o-committed"}, report.Completed)
	assert.Equal(t, sagalog.StatusCompleted, f.journal.last("o-committed"))
	assert.Equal(t, []string{"deduct 10.1"}, f.wallet.mutations())
}

func TestRecover_RetriesFailedCompensationOnly(t *testing.T) {
	f := newFixture(t)
	later(f)
	interruptedCreate(t, f, "o-drift")
	ctx := context.Background()

	f.wallet.refundErr = assert.AnError
	report, err := f.orch.Recover(ctx, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []string{"o-drift"}, report.CompensationFailed)
	assert.Equal(t, 5, f.inventory.stock["p1"])

	f.wallet.refundErr = nil
	report, err = f.orch.Recover(ctx, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []string{"o-drift"}, report.RolledBack)
	assert.Equal(t, 5, f.inventory.stock["p1"], "stock released once")
	assert.True(t, f.wallet.balance(alice.Token).Equal(dec("100.00")))
}

func TestRecover_SkipsRecentAndCancelSagas(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	interruptedCreate(t, f, "o-running")
	coordinator.NewJournal(f.journal).Aborted(ctx, CancelSagaID("o-old"), assert.AnError)

	report, err := f.orch.Recover(ctx, time.Minute)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"o-running", CancelSagaID("o-old")}, report.Skipped)

	later(f)
	report, err = f.orch.Recover(ctx, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []string{CancelSagaID("o-old")}, report.Skipped)
	assert.Equal(t, []string{"o-running"}, report.RolledBack)
}

func TestRecover_ReopensOrderLeftCancelling(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.orch.Create(ctx, alice, lines("p1", 1))
	require.NoError(t, err)
	// A cancellation claimed the order and refunded, then the process died.
	require.NoError(t, f.store.UpdateStatus(ctx, order.ID, domain.StatusCommitted, domain.StatusCancelling))
	j := coordinator.NewJournal(f.journal)
	refund := coordinator.Step{Kind: coordinator.BalanceRefunded, Key: coordinator.BalanceKey(), Amount: order.Total}
	j.Started(ctx, CancelSagaID(order.ID), cancelPayload{Operation: opCancel, OrderID: order.ID, OwnerID: alice.OwnerID})
	j.StepPending(ctx, CancelSagaID(order.ID), refund)
	j.StepDone(ctx, CancelSagaID(order.ID), refund)
	require.NoError(t, f.wallet.Refund(ctx, alice.Token, order.Total))

	later(f)
	report, err := f.orch.Recover(ctx, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []string{CancelSagaID(order.ID)}, report.Reopened)

	stored, err := f.store.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCommitted, stored.Status)

	// The owner's retry finishes the job without a second refund.
	require.NoError(t, f.orch.Cancel(ctx, alice, order.ID))
	assert.Equal(t, []string{"deduct 10.1", "refund 10.1"}, f.wallet.mutations())
	assert.True(t, f.wallet.balance(alice.Token).Equal(dec("100.00")))
	assert.Equal(t, 5, f.inventory.stock["p1"])
}
