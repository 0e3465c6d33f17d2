package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/pastryshop/order-service/internal/order/application"
	"github.com/pastryshop/order-service/internal/order/domain"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("order-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/orders", h.createOrder)
	r.Get("/orders/{id}", h.getOrder)
	return r
}

// unavailableProductResponse is the structured business rejection named by
// the creation boundary: exactly one product, the first unavailable one.
type unavailableProductResponse struct {
	ProductName string `json:"productName"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateOrder")
	defer span.End()

	var req domain.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	order, err := h.service.PlaceOrder(ctx, req)
	if err != nil {
		var unavailable domain.UnavailableProductError
		if errors.As(err, &unavailable) {
			writeJSON(w, http.StatusUnprocessableEntity, unavailableProductResponse{ProductName: unavailable.ProductName})
			return
		}
		h.log.Error("order placement failed", "customer_id", req.CustomerID, "err", err)
		http.Error(w, "order placement failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetOrder")
	defer span.End()

	id := chi.URLParam(r, "id")
	order, err := h.service.GetOrder(ctx, id)
	if err != nil {
		var notFound domain.OrderNotFoundError
		if errors.As(err, &notFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		h.log.Error("order lookup failed", "order_id", id, "err", err)
		http.Error(w, "order lookup failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
