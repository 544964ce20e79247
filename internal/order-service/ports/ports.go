package ports

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/order-saga/internal/order-service/domain"
	"github.com/jcmexdev/order-saga/internal/pkg/auth"
)

var (
	// ErrRejected means the collaborator answered and refused the call.
	ErrRejected = errors.New("rejected by collaborator")
	// ErrUnavailable means no usable answer arrived: transport failure,
	// timeout or a server error. The outcome of a mutation is unknown.
	ErrUnavailable = errors.New("collaborator unavailable")
	// ErrNotSent accompanies ErrUnavailable when the request never left this
	// process (the connection could not be opened). The call had no effect.
	ErrNotSent = errors.New("request not sent")
)

type ProductClient interface {
	Exists(ctx context.Context, productID string) (bool, error)
	// Price reports false when the product has no resolvable price.
	Price(ctx context.Context, productID string) (decimal.Decimal, bool, error)
}

type InventoryClient interface {
	Quantity(ctx context.Context, productID string) (int, bool, error)
	// Reserve decrements stock; the check against availability happens
	// atomically on the inventory side.
	Reserve(ctx context.Context, productID string, quantity int) error
	Release(ctx context.Context, productID string, quantity int) error
}

// WalletClient calls are always made with the caller's own credential.
type WalletClient interface {
	Balance(ctx context.Context, credential string) (decimal.Decimal, bool, error)
	Deduct(ctx context.Context, credential string, amount decimal.Decimal) error
	Refund(ctx context.Context, credential string, amount decimal.Decimal) error
}

// OrderStore returns domain.ErrNotFound for unknown ids.
type OrderStore interface {
	Create(ctx context.Context, order *domain.Order) error
	Get(ctx context.Context, id string) (*domain.Order, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.Order, error)
	// UpdateStatus moves the order from one status to another. It returns
	// domain.ErrNotFound when no order with that id is in status from.
	UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) error
	Delete(ctx context.Context, id string) error
}

// OrderService is the inbound side: what the HTTP layer drives.
type OrderService interface {
	CreateOnce(ctx context.Context, cred auth.Credential, idempotencyKey string, lines []domain.LineRequest) (*domain.Order, bool, error)
	Get(ctx context.Context, cred auth.Credential, id string) (*domain.Order, error)
	List(ctx context.Context, cred auth.Credential) ([]*domain.Order, error)
	Cancel(ctx context.Context, cred auth.Credential, id string) error
}
