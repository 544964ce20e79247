// Package httpx serves the product and inventory routes the order service
// calls.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jcmexdev/order-saga/internal/inventory-service/app"
	"github.com/jcmexdev/order-saga/internal/inventory-service/domain"
)

type ProductResponse struct {
	ID    string       `json:"id"`
	Name  string       `json:"name"`
	Price *json.Number `json:"price"`
}

func productResponse(p domain.Product) ProductResponse {
	out := ProductResponse{ID: p.ID, Name: p.Name}
	if p.Price != nil {
		n := json.Number(p.Price.String())
		out.Price = &n
	}
	return out
}

type StockResponse struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type QuantityRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

type Handler struct {
	catalog  *app.Catalog
	validate *validator.Validate
}

func NewHandler(c *app.Catalog) *Handler {
	return &Handler{catalog: c, validate: validator.New()}
}

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/api/product", h.ListProducts)
	r.Get("/api/product/{id}", h.GetProduct)
	r.Get("/api/inventory/product/{productId}", h.GetStock)
	r.Put("/api/inventory/reduce", h.Reduce)
	r.Put("/api/inventory/release", h.Release)

	return otelhttp.NewHandler(r, "inventory-service")
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products := h.catalog.Products(r.Context())
	out := make([]ProductResponse, len(products))
	for i, p := range products {
		out[i] = productResponse(p)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.Product(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, productResponse(p))
}

func (h *Handler) GetStock(w http.ResponseWriter, r *http.Request) {
	item, err := h.catalog.Stock(r.Context(), chi.URLParam(r, "productId"))
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StockResponse{ProductID: item.ProductID, Quantity: item.Quantity})
}

func (h *Handler) Reduce(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	if err := h.catalog.Reduce(r.Context(), req.ProductID, req.Quantity); err != nil {
		writeCatalogError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Release(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	if err := h.catalog.Release(r.Context(), req.ProductID, req.Quantity); err != nil {
		writeCatalogError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (QuantityRequest, bool) {
	var req QuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return req, false
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return req, false
	}
	return req, true
}

func writeCatalogError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUnknownProduct):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrInsufficientStock), errors.Is(err, domain.ErrInvalidQuantity):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
