// Package httpx serves the wallet routes. Every route acts on the wallet of
// the bearer token's owner.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jcmexdev/order-saga/internal/pkg/auth"
	"github.com/jcmexdev/order-saga/internal/wallet-service/app"
)

type BalanceResponse struct {
	UserID  string      `json:"userId"`
	Balance json.Number `json:"balance"`
}

type AmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type Handler struct {
	wallets *app.Wallets
}

func NewHandler(w *app.Wallets) *Handler {
	return &Handler{wallets: w}
}

func NewRouter(h *Handler, verifier *auth.Verifier) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(auth.Middleware(verifier, func(w http.ResponseWriter, _ *http.Request, err error) {
		http.Error(w, err.Error(), http.StatusUnauthorized)
	}))

	r.Route("/api/transaction", func(r chi.Router) {
		r.Get("/balance", h.Balance)
		r.Post("/assign-balance", h.Assign)
		r.Put("/deduct-balance", h.Deduct)
		r.Put("/refund-balance", h.Refund)
	})

	return otelhttp.NewHandler(r, "wallet-service")
}

// Balance answers 204 when the caller has no wallet.
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	cred, _ := auth.FromContext(r.Context())
	balance, ok := h.wallets.Balance(r.Context(), cred.OwnerID)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeBalance(w, http.StatusOK, cred.OwnerID, balance)
}

func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	cred, _ := auth.FromContext(r.Context())
	req, ok := decode(w, r)
	if !ok {
		return
	}
	created, err := h.wallets.Assign(r.Context(), cred.OwnerID, req.Amount)
	if err != nil {
		writeWalletError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeBalance(w, status, cred.OwnerID, req.Amount)
}

func (h *Handler) Deduct(w http.ResponseWriter, r *http.Request) {
	cred, _ := auth.FromContext(r.Context())
	req, ok := decode(w, r)
	if !ok {
		return
	}
	balance, err := h.wallets.Deduct(r.Context(), cred.OwnerID, req.Amount)
	if err != nil {
		writeWalletError(w, err)
		return
	}
	writeBalance(w, http.StatusOK, cred.OwnerID, balance)
}

func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	cred, _ := auth.FromContext(r.Context())
	req, ok := decode(w, r)
	if !ok {
		return
	}
	balance, err := h.wallets.Refund(r.Context(), cred.OwnerID, req.Amount)
	if err != nil {
		writeWalletError(w, err)
		return
	}
	writeBalance(w, http.StatusOK, cred.OwnerID, balance)
}

func decode(w http.ResponseWriter, r *http.Request) (AmountRequest, bool) {
	var req AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return req, false
	}
	return req, true
}

// Every refusal is a 400, as in the original wallet API.
func writeWalletError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrNoWallet),
		errors.Is(err, app.ErrInsufficientBalance),
		errors.Is(err, app.ErrInvalidAmount):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeBalance(w http.ResponseWriter, status int, ownerID string, balance decimal.Decimal) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(BalanceResponse{UserID: ownerID, Balance: json.Number(balance.String())})
}
