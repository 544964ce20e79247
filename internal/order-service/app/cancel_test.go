package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/order-saga/internal/coordinator/sagalog"
	"github.com/jcmexdev/order-saga/internal/order-service/domain"
	"github.com/jcmexdev/order-saga/internal/order-service/ports"
)

func TestCancel_RefundsReleasesAndMarksCancelled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.orch.Create(ctx, alice, lines("p1", 2, "p2", 1))
	require.NoError(t, err)

	require.NoError(t, f.orch.Cancel(ctx, alice, order.ID))

	assert.True(t, f.wallet.balance(alice.Token).Equal(dec("100.00")))
	assert.Equal(t, 5, f.inventory.stock["p1"])
	assert.Equal(t, 5, f.inventory.stock["p2"])

	stored, err := f.store.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, stored.Status)
	assert.Equal(t, sagalog.StatusCompleted, f.journal.last(CancelSagaID(order.ID)))

	err = f.orch.Cancel(ctx, alice, order.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, []string{"deduct 20.5", "refund 20.5"}, f.wallet.mutations())
}

func TestCancel_DeleteOnCancel(t *testing.T) {
	f := newFixture(t)
	f.orch.deleteOnCancel = true
	ctx := context.Background()

	order, err := f.orch.Create(ctx, alice, lines("p1", 1))
	require.NoError(t, err)
	require.NoError(t, f.orch.Cancel(ctx, alice, order.ID))

	_, err = f.store.Get(ctx, order.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, f.orch.Cancel(ctx, alice, order.ID), domain.ErrNotFound)
}

func TestCancel_NotOwnerIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.orch.Create(ctx, alice, lines("p1", 1))
	require.NoError(t, err)
	walletBefore := f.wallet.mutations()
	inventoryBefore := f.inventory.mutations()

	err = f.orch.Cancel(ctx, bob, order.ID)

	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, walletBefore, f.wallet.mutations())
	assert.Equal(t, inventoryBefore, f.inventory.mutations())
	stored, err := f.store.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCommitted, stored.Status)
}

func TestCancel_UnknownOrder(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.orch.Cancel(context.Background(), alice, "nope"), domain.ErrNotFound)
}

func TestCancel_FailureLeavesOrderCommittedAndRetryResumes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.orch.Create(ctx, alice, lines("p1", 1, "p2", 1))
	require.NoError(t, err)

	f.inventory.releaseErr = fmt.Errorf("%w: inventory down", ports.ErrUnavailable)
	err = f.orch.Cancel(ctx, alice, order.ID)

	require.ErrorIs(t, err, domain.ErrCancellationFailed)
	assert.Equal(t, "p1", domain.ProductOf(err))
	stored, err := f.store.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCommitted, stored.Status)
	assert.Equal(t, sagalog.StatusAborted, f.journal.last(CancelSagaID(order.ID)))

	f.inventory.releaseErr = nil
	require.NoError(t, f.orch.Cancel(ctx, alice, order.ID))

	assert.Equal(t, []string{"deduct 10.4", "refund 10.4"}, f.wallet.mutations(), "refund is not repeated")
	assert.True(t, f.wallet.balance(alice.Token).Equal(dec("100.00")))
	assert.Equal(t, 5, f.inventory.stock["p1"])
	assert.Equal(t, 5, f.inventory.stock["p2"])
}

func TestCancel_RefundFailureTouchesNoStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.orch.Create(ctx, alice, lines("p1", 1))
	require.NoError(t, err)
	f.wallet.refundErr = fmt.Errorf("%w: wallet down", ports.ErrUnavailable)

	err = f.orch.Cancel(ctx, alice, order.ID)

	require.ErrorIs(t, err, domain.ErrCancellationFailed)
	assert.Equal(t, []string{"reserve p1 1"}, f.inventory.mutations())
}

func TestCancel_ConcurrentCancellationsRefundOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.orch.Create(ctx, alice, lines("p1", 2))
	require.NoError(t, err)

	entered := make(chan struct{}, 2)
	gate := make(chan struct{})
	f.wallet.onRefund = func() {
		entered <- struct{}{}
		<-gate
	}

	results := make(chan error, 2)
	for range 2 {
		go func() { results <- f.orch.Cancel(ctx, alice, order.ID) }()
	}

	<-entered
	stored, err := f.store.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelling, stored.Status)

	var first error
	select {
	case first = <-results:
	case <-time.After(2 * time.Second):
		close(gate)
		t.Fatal("second cancellation was not turned away while the first held the order")
	}
	close(gate)
	second := <-results

	assert.ErrorIs(t, first, domain.ErrNotFound)
	assert.NoError(t, second)
	assert.Equal(t, []string{"deduct 20.2", "refund 20.2"}, f.wallet.mutations())
	assert.Equal(t, []string{"reserve p1 2", "release p1 2"}, f.inventory.mutations())
	assert.True(t, f.wallet.balance(alice.Token).Equal(dec("100.00")))
	assert.Equal(t, 5, f.inventory.stock["p1"])
}

func TestCancel_FailureReopensOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.orch.Create(ctx, alice, lines("p1", 1))
	require.NoError(t, err)
	f.wallet.refundErr = fmt.Errorf("%w: status 400", ports.ErrRejected)

	require.ErrorIs(t, f.orch.Cancel(ctx, alice, order.ID), domain.ErrCancellationFailed)

	stored, err := f.store.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCommitted, stored.Status, "a failed cancellation hands the order back")
}
