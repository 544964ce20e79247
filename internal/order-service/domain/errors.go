package domain

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Match with errors.Is; a *Error unwraps to its Kind.
var (
	ErrUnauthenticated         = errors.New("unauthenticated")
	ErrInvalidRequest          = errors.New("invalid request")
	ErrInvalidReference        = errors.New("invalid product reference")
	ErrPriceUnavailable        = errors.New("price unavailable")
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrInsufficientStock       = errors.New("insufficient stock")
	ErrPaymentFailed           = errors.New("payment failed")
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
	ErrNotFound                = errors.New("order not found")
	ErrCancellationFailed      = errors.New("cancellation failed")
	ErrIdempotencyInFlight     = errors.New("request with this idempotency key is in flight")
)

// Error carries the failing kind plus the product it concerns, if any.
type Error struct {
	Kind      error
	ProductID string
	Err       error
}

func NewError(kind error, productID string, cause error) *Error {
	return &Error{Kind: kind, ProductID: productID, Err: cause}
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.ProductID != "" {
		msg = fmt.Sprintf("%s for product %s", msg, e.ProductID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// ProductOf returns the product id attached to err, if any.
func ProductOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.ProductID
	}
	return ""
}
