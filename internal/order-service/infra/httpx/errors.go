package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jcmexdev/order-saga/internal/order-service/domain"
)

type errorMapping struct {
	kind   error
	status int
	code   string
}

// Order matters only where one error could match two kinds.
var errorMappings = []errorMapping{
	{domain.ErrUnauthenticated, http.StatusUnauthorized, "UNAUTHENTICATED"},
	{domain.ErrInvalidRequest, http.StatusBadRequest, "INVALID_REQUEST"},
	{domain.ErrInvalidReference, http.StatusBadRequest, "INVALID_REFERENCE"},
	{domain.ErrPriceUnavailable, http.StatusBadRequest, "PRICE_UNAVAILABLE"},
	{domain.ErrInsufficientFunds, http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS"},
	{domain.ErrInsufficientStock, http.StatusUnprocessableEntity, "INSUFFICIENT_STOCK"},
	{domain.ErrPaymentFailed, http.StatusPaymentRequired, "PAYMENT_FAILED"},
	{domain.ErrCancellationFailed, http.StatusBadGateway, "CANCELLATION_FAILED"},
	{domain.ErrCollaboratorUnavailable, http.StatusBadGateway, "COLLABORATOR_UNAVAILABLE"},
	{domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{domain.ErrIdempotencyInFlight, http.StatusConflict, "IDEMPOTENCY_IN_FLIGHT"},
}

// writeDomainError is the single place where saga failures become HTTP
// responses. Unknown errors are logged and hidden behind a 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.kind) {
			writeJSON(w, m.status, ErrorResponse{
				Error:     m.code,
				Message:   err.Error(),
				ProductID: domain.ProductOf(err),
			})
			return
		}
	}
	slog.ErrorContext(r.Context(), "unhandled error", "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: msg,
	})
}

// Unauthorized is the deny hook for the auth middleware.
func Unauthorized(w http.ResponseWriter, _ *http.Request, err error) {
	writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", err.Error())
}
