package httpx

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/jcmexdev/order-saga/internal/order-service/domain"
	"github.com/jcmexdev/order-saga/internal/order-service/ports"
	"github.com/jcmexdev/order-saga/internal/pkg/auth"
	"github.com/jcmexdev/order-saga/internal/pkg/interceptors/constants"
)

// Handler serves the order endpoints. Every route runs behind the auth
// middleware, so the credential is always in the request context.
type Handler struct {
	orders   ports.OrderService
	validate *validator.Validate
}

func NewHandler(orders ports.OrderService) *Handler {
	return &Handler{
		orders:   orders,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// CreateOrder runs the create saga synchronously; the response reflects its
// final outcome.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	cred, _ := auth.FromContext(r.Context())

	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	idempKey, _ := r.Context().Value(constants.ContextKeyIdempotencyKey).(string)
	requestID, _ := r.Context().Value(constants.ContextKeyRequestID).(string)
	slog.InfoContext(r.Context(), "creating order",
		"request_id", requestID,
		"owner_id", cred.OwnerID,
		"lines", len(req.Lines),
	)

	order, replayed, err := h.orders.CreateOnce(r.Context(), cred, idempKey, req.toDomain())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, mapOrderToResponse(order))
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	cred, _ := auth.FromContext(r.Context())

	orders, err := h.orders.List(r.Context(), cred)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrdersToResponse(orders))
}

func (h *Handler) GetOrderByID(w http.ResponseWriter, r *http.Request) {
	cred, _ := auth.FromContext(r.Context())

	order, err := h.orders.Get(r.Context(), cred, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrderToResponse(order))
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	cred, _ := auth.FromContext(r.Context())
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		writeDomainError(w, r, domain.ErrNotFound)
		return
	}

	if err := h.orders.Cancel(r.Context(), cred, orderID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
