package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jcmexdev/order-saga/internal/coordinator"
	"github.com/jcmexdev/order-saga/internal/order-service/domain"
	"github.com/jcmexdev/order-saga/internal/pkg/auth"
	"github.com/jcmexdev/order-saga/internal/pkg/cache"
)

const opCreate = "create"

// createPayload is journalled with STARTED. The credential is kept as is so
// a recovery pass can still refund on the owner's behalf; once the token has
// expired such a refund fails and the saga ends COMPENSATION_FAILED.
type createPayload struct {
	Operation  string          `json:"operation"`
	OrderID    string          `json:"order_id"`
	OwnerID    string          `json:"owner_id"`
	Credential string          `json:"credential"`
	Lines      []domain.Quote  `json:"lines"`
	Total      decimal.Decimal `json:"total"`
}

// CreateOnce runs Create at most once per idempotency key and owner. A replay
// of a finished request returns the stored order with replayed set.
func (o *Orchestrator) CreateOnce(ctx context.Context, cred auth.Credential, key string, lines []domain.LineRequest) (order *domain.Order, replayed bool, err error) {
	if key == "" || o.idempotency == nil {
		order, err = o.Create(ctx, cred, lines)
		return order, false, err
	}
	if cred.OwnerID == "" {
		return nil, false, domain.ErrUnauthenticated
	}

	existing, err := o.idempotency.Claim(ctx, cred.OwnerID, key)
	if errors.Is(err, cache.ErrInFlight) {
		return nil, false, domain.ErrIdempotencyInFlight
	}
	if err != nil {
		return nil, false, domain.NewError(domain.ErrCollaboratorUnavailable, "", err)
	}
	if existing != "" {
		order, err = o.Get(ctx, cred, existing)
		return order, true, err
	}

	order, err = o.Create(ctx, cred, lines)
	if err != nil {
		if rerr := o.idempotency.Release(ctx, cred.OwnerID, key); rerr != nil {
			slog.WarnContext(ctx, "could not release idempotency key", "key", key, "error", rerr)
		}
		return nil, false, err
	}
	if cerr := o.idempotency.Complete(ctx, cred.OwnerID, key, order.ID); cerr != nil {
		slog.WarnContext(ctx, "could not record idempotency key", "key", key, "order_id", order.ID, "error", cerr)
	}
	return order, false, nil
}

// Create runs the create saga. The order becomes visible only once every
// remote step has succeeded; on failure the confirmed steps are undone and
// the error that stopped the saga is returned.
func (o *Orchestrator) Create(ctx context.Context, cred auth.Credential, lines []domain.LineRequest) (order *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "saga.create")
	defer func() {
		o.metrics.SagaFinished(opCreate, result(err))
		finishSpan(span, err)
	}()

	if cred.OwnerID == "" {
		return nil, domain.ErrUnauthenticated
	}
	if err := validateLines(lines); err != nil {
		return nil, err
	}

	quotes, err := o.quote(ctx, lines)
	if err != nil {
		slog.InfoContext(ctx, "order rejected during validation", "owner_id", cred.OwnerID, "error", err)
		return nil, err
	}

	pending := domain.NewPendingOrder(o.newID(), cred.OwnerID, quotes, o.now())
	sagaID := pending.ID
	span.SetAttributes(
		attribute.String("saga.id", sagaID),
		attribute.String("order.total", pending.Total.String()),
	)
	o.journal.Started(ctx, sagaID, createPayload{
		Operation:  opCreate,
		OrderID:    pending.ID,
		OwnerID:    cred.OwnerID,
		Credential: cred.Token,
		Lines:      quotes,
		Total:      pending.Total,
	})

	log := coordinator.NewStepLog()
	fail := func(cause error) (*domain.Order, error) {
		return nil, o.rollback(ctx, sagaID, cred, log, cause)
	}

	if err := o.checkBalance(ctx, cred, pending.Total); err != nil {
		return fail(err)
	}
	if err := o.deduct(ctx, sagaID, cred, pending.Total, log); err != nil {
		return fail(err)
	}
	for i, line := range pending.Lines {
		if err := o.reserve(ctx, sagaID, i, line, log); err != nil {
			return fail(err)
		}
	}

	pending.Status = domain.StatusCommitted
	if err := o.commit(ctx, pending); err != nil {
		return fail(err)
	}
	o.journal.Completed(ctx, sagaID)

	slog.InfoContext(ctx, "order committed",
		"order_id", pending.ID,
		"owner_id", pending.OwnerID,
		"total", pending.Total.String(),
		"lines", len(pending.Lines),
	)
	return pending, nil
}

func validateLines(lines []domain.LineRequest) error {
	if len(lines) == 0 {
		return domain.NewError(domain.ErrInvalidRequest, "", errors.New("an order needs at least one line"))
	}
	for i, l := range lines {
		if l.ProductID == "" {
			return domain.NewError(domain.ErrInvalidRequest, "", fmt.Errorf("line %d has no product", i))
		}
		if l.Quantity <= 0 {
			return domain.NewError(domain.ErrInvalidRequest, l.ProductID, fmt.Errorf("line %d quantity must be positive", i))
		}
	}
	return nil
}

// quote checks every product and fetches its price, in input order. Nothing
// is mutated here.
func (o *Orchestrator) quote(ctx context.Context, lines []domain.LineRequest) (quotes []domain.Quote, err error) {
	ctx, end := stage(ctx, "saga.validate_lines")
	defer func() { end(err) }()

	quotes = make([]domain.Quote, 0, len(lines))
	for _, l := range lines {
		exists, err := o.products.Exists(ctx, l.ProductID)
		if err != nil {
			return nil, remoteError(err, domain.ErrInvalidReference, l.ProductID)
		}
		if !exists {
			return nil, domain.NewError(domain.ErrInvalidReference, l.ProductID, nil)
		}

		price, ok, err := o.products.Price(ctx, l.ProductID)
		if err != nil {
			return nil, remoteError(err, domain.ErrPriceUnavailable, l.ProductID)
		}
		if !ok {
			return nil, domain.NewError(domain.ErrPriceUnavailable, l.ProductID, nil)
		}
		quotes = append(quotes, domain.Quote{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: price})
	}
	return quotes, nil
}

func (o *Orchestrator) checkBalance(ctx context.Context, cred auth.Credential, total decimal.Decimal) (err error) {
	ctx, end := stage(ctx, "saga.check_balance")
	defer func() { end(err) }()

	balance, ok, err := o.wallet.Balance(ctx, cred.Token)
	if err != nil {
		return remoteError(err, domain.ErrInsufficientFunds, "")
	}
	if !ok {
		return domain.NewError(domain.ErrInsufficientFunds, "", errors.New("no balance on record"))
	}
	if balance.LessThan(total) {
		return domain.NewError(domain.ErrInsufficientFunds, "", fmt.Errorf("balance %s below total %s", balance, total))
	}
	return nil
}

func (o *Orchestrator) deduct(ctx context.Context, sagaID string, cred auth.Credential, total decimal.Decimal, log *coordinator.StepLog) (err error) {
	ctx, end := stage(ctx, "saga.deduct_balance")
	defer func() { end(err) }()

	step := coordinator.Step{Kind: coordinator.BalanceDeducted, Key: coordinator.BalanceKey(), Amount: total}
	o.journal.StepPending(ctx, sagaID, step)
	if err := o.wallet.Deduct(ctx, cred.Token, total); err != nil {
		return remoteError(err, domain.ErrPaymentFailed, "")
	}
	log.Append(step)
	o.journal.StepDone(ctx, sagaID, step)
	return nil
}

func (o *Orchestrator) reserve(ctx context.Context, sagaID string, i int, line domain.OrderLine, log *coordinator.StepLog) (err error) {
	ctx, end := stage(ctx, "saga.reserve_stock")
	defer func() { end(err) }()

	available, ok, err := o.inventory.Quantity(ctx, line.ProductID)
	if err != nil {
		return remoteError(err, domain.ErrInsufficientStock, line.ProductID)
	}
	if !ok || available < line.Quantity {
		return domain.NewError(domain.ErrInsufficientStock, line.ProductID,
			fmt.Errorf("requested %d, available %d", line.Quantity, available))
	}

	step := coordinator.Step{
		Kind:      coordinator.StockReserved,
		Key:       coordinator.LineKey(i),
		ProductID: line.ProductID,
		Quantity:  line.Quantity,
	}
	o.journal.StepPending(ctx, sagaID, step)
	if err := o.inventory.Reserve(ctx, line.ProductID, line.Quantity); err != nil {
		return remoteError(err, domain.ErrInsufficientStock, line.ProductID)
	}
	log.Append(step)
	o.journal.StepDone(ctx, sagaID, step)
	return nil
}

func (o *Orchestrator) commit(ctx context.Context, order *domain.Order) (err error) {
	ctx, end := stage(ctx, "saga.commit")
	defer func() { end(err) }()

	if err := o.store.Create(ctx, order); err != nil {
		return fmt.Errorf("persist order %s: %w", order.ID, err)
	}
	return nil
}

// rollback compensates the log and returns cause unchanged. A failed
// compensation is alerted by the compensator and left in the journal as
// COMPENSATION_FAILED for the recovery command.
func (o *Orchestrator) rollback(ctx context.Context, sagaID string, cred auth.Credential, log *coordinator.StepLog, cause error) error {
	ctx, end := stage(ctx, "saga.compensate")
	steps := log.Len()
	cerr := o.compensator.Compensate(ctx, sagaID, cred.Token, log)
	end(cerr)

	if cerr != nil {
		slog.ErrorContext(ctx, "order saga failed and could not be fully rolled back",
			"saga_id", sagaID,
			"cause", cause,
			"error", cerr,
		)
		return cause
	}
	o.journal.Failed(ctx, sagaID, cause)
	slog.WarnContext(ctx, "order saga failed",
		"saga_id", sagaID,
		"compensated_steps", steps,
		"error", cause,
	)
	return cause
}

func result(err error) string {
	if err != nil {
		return "failed"
	}
	return "ok"
}
