// Package app runs the order sagas. Create and Cancel are sequential
// workflows over the remote collaborators; every confirmed remote mutation is
// appended to a per-request step log and journalled, and a failure walks the
// log backwards before the original error is returned.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jcmexdev/order-saga/internal/coordinator"
	"github.com/jcmexdev/order-saga/internal/order-service/domain"
	"github.com/jcmexdev/order-saga/internal/order-service/ports"
	"github.com/jcmexdev/order-saga/internal/pkg/auth"
	"github.com/jcmexdev/order-saga/internal/pkg/cache"
	"github.com/jcmexdev/order-saga/internal/pkg/metrics"
)

var tracer = otel.Tracer("github.com/jcmexdev/order-saga/internal/order-service/app")

type Deps struct {
	Products  ports.ProductClient
	Inventory ports.InventoryClient
	Wallet    ports.WalletClient
	Store     ports.OrderStore

	// Optional.
	Journal     *coordinator.Journal
	Metrics     *metrics.Metrics
	Idempotency *cache.Idempotency
}

type Options struct {
	Retry coordinator.RetryPolicy
	// DeleteOnCancel removes cancelled orders instead of marking them.
	DeleteOnCancel bool
}

type Orchestrator struct {
	products    ports.ProductClient
	inventory   ports.InventoryClient
	wallet      ports.WalletClient
	store       ports.OrderStore
	journal     *coordinator.Journal
	metrics     *metrics.Metrics
	idempotency *cache.Idempotency
	compensator *coordinator.Compensator

	deleteOnCancel bool
	now            func() time.Time
	newID          func() string
}

var _ ports.OrderService = (*Orchestrator)(nil)

func NewOrchestrator(d Deps, opts Options) *Orchestrator {
	if opts.Retry.Retryable == nil {
		opts.Retry.Retryable = compensationRetryable
	}
	return &Orchestrator{
		products:       d.Products,
		inventory:      d.Inventory,
		wallet:         d.Wallet,
		store:          d.Store,
		journal:        d.Journal,
		metrics:        d.Metrics,
		idempotency:    d.Idempotency,
		compensator:    coordinator.NewCompensator(d.Inventory, d.Wallet, d.Journal, d.Metrics, opts.Retry),
		deleteOnCancel: opts.DeleteOnCancel,
		now:            func() time.Time { return time.Now().UTC() },
		newID:          uuid.NewString,
	}
}

// Get returns the order only to its owner; anyone else gets ErrNotFound.
func (o *Orchestrator) Get(ctx context.Context, cred auth.Credential, id string) (*domain.Order, error) {
	if cred.OwnerID == "" {
		return nil, domain.ErrUnauthenticated
	}
	order, err := o.store.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load order %s: %w", id, err)
	}
	if !order.OwnedBy(cred.OwnerID) {
		return nil, domain.ErrNotFound
	}
	return order, nil
}

func (o *Orchestrator) List(ctx context.Context, cred auth.Credential) ([]*domain.Order, error) {
	if cred.OwnerID == "" {
		return nil, domain.ErrUnauthenticated
	}
	orders, err := o.store.ListByOwner(ctx, cred.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// stage opens a child span for one saga stage; end records err on it.
func stage(ctx context.Context, name string) (context.Context, func(err error)) {
	ctx, span := tracer.Start(ctx, name)
	return ctx, func(err error) {
		finishSpan(span, err)
	}
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// remoteError classifies a collaborator failure: a refusal becomes kind, no
// answer at all becomes ErrCollaboratorUnavailable.
func remoteError(err error, kind error, productID string) error {
	if errors.Is(err, ports.ErrRejected) {
		return domain.NewError(kind, productID, err)
	}
	return domain.NewError(domain.ErrCollaboratorUnavailable, productID, err)
}

// compensationRetryable repeats a compensating call only when the repeat
// cannot over-credit. Stock releases tolerate over-counting; a refund is sent
// again only when the earlier request never reached the wallet. A refusal is
// final for both.
func compensationRetryable(kind coordinator.StepKind, err error) bool {
	if errors.Is(err, ports.ErrRejected) {
		return false
	}
	if kind == coordinator.BalanceDeducted {
		return errors.Is(err, ports.ErrNotSent)
	}
	return true
}
