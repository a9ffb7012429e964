package checkout

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jwambugu/smobilpay-golang-sdk"
	"github.com/jwambugu/smobilpay-golang-sdk/pkg/order"
)

const maxBodySize = 1 << 20

type (
	// PaymentRequest is the body of POST /orders/{orderID}/pay.
	PaymentRequest struct {
		PhoneNumber string `json:"phone_number"`
	}

	failure struct {
		Result  string `json:"result"`
		Message string `json:"message"`
	}
)

// Handler exposes the checkout over HTTP.
type Handler struct {
	orchestrator *Orchestrator
	store        order.Store
	logger       *slog.Logger
}

// NewHandler creates a Handler. Orders are created by the shop with PUT /orders/{orderID} before they are paid.
func NewHandler(orchestrator *Orchestrator, store order.Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{orchestrator: orchestrator, store: store, logger: logger}
}

// Register mounts the order and checkout endpoints on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/orders/{orderID}", func(r chi.Router) {
		r.Use(limitBody)
		r.Get("/", h.getOrder)
		r.Put("/", h.putOrder)
		r.Post("/pay", h.pay)
	})
}

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		next.ServeHTTP(w, r)
	})
}

func orderID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	return id, err == nil && id > 0
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, failure{Result: "failure", Message: "Invalid order id"})
		return
	}

	var req PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, failure{Result: "failure", Message: "Invalid request body"})
		return
	}

	outcome, err := h.orchestrator.ProcessPayment(r.Context(), id, req.PhoneNumber)
	if err != nil {
		status, message := errorResponse(err)
		writeJSON(w, status, failure{Result: "failure", Message: message})
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, failure{Result: "failure", Message: "Invalid order id"})
		return
	}

	o, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, failure{Result: "failure", Message: "Order not found"})
			return
		}

		h.logger.ErrorContext(r.Context(), "failed to get order", slog.Int64("order_id", id), slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, failure{Result: "failure", Message: "Internal error"})
		return
	}

	writeJSON(w, http.StatusOK, o)
}

// putOrder creates or updates an order. The payment state of an existing order is kept.
func (h *Handler) putOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := orderID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, failure{Result: "failure", Message: "Invalid order id"})
		return
	}

	var o order.Order
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		writeJSON(w, http.StatusBadRequest, failure{Result: "failure", Message: "Invalid request body"})
		return
	}

	o.ID = id

	existing, err := h.store.Get(ctx, id)
	switch {
	case err == nil:
		o.Status = existing.Status
		o.Attempt = existing.Attempt
		o.TransactionRef = existing.TransactionRef
		o.PaidAt = existing.PaidAt
		o.Notes = existing.Notes
	case errors.Is(err, order.ErrNotFound):
		o.Status = order.StatusPending
		o.Attempt = order.Attempt{Status: order.AttemptNone}
		o.TransactionRef = ""
		o.PaidAt = nil
		o.Notes = nil
	default:
		h.logger.ErrorContext(ctx, "failed to get order", slog.Int64("order_id", id), slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, failure{Result: "failure", Message: "Internal error"})
		return
	}

	if err := h.store.Put(ctx, &o); err != nil {
		h.logger.ErrorContext(ctx, "failed to put order", slog.Int64("order_id", id), slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, failure{Result: "failure", Message: "Internal error"})
		return
	}

	writeJSON(w, http.StatusOK, &o)
}

func errorResponse(err error) (int, string) {
	var e *smobilpay.Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError, "Payment could not be processed. Please try again."
	}

	switch e.Kind {
	case smobilpay.KindValidation:
		return http.StatusBadRequest, e.Message
	case smobilpay.KindOrderNotFound:
		return http.StatusNotFound, e.Message
	case smobilpay.KindUpstreamHTTP, smobilpay.KindNetwork, smobilpay.KindMissingData, smobilpay.KindUnexpectedStatus:
		return http.StatusBadGateway, e.Message
	default:
		return http.StatusInternalServerError, e.Message
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
