package orders

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kauppa/kauppa-sub000/internal/domain"
	"github.com/kauppa/kauppa-sub000/internal/telemetry"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /orders", telemetry.WithHTTPRoute(h.HandleList))
	mux.HandleFunc("POST /orders", telemetry.WithHTTPRoute(h.HandleCreate))
	mux.HandleFunc("GET /orders/{id}", telemetry.WithHTTPRoute(h.HandleGet))
	mux.HandleFunc("DELETE /orders/{id}", telemetry.WithHTTPRoute(h.HandleDelete))
	mux.HandleFunc("POST /orders/{id}/cancel", telemetry.WithHTTPRoute(h.HandleCancel))
	mux.HandleFunc("POST /orders/{id}/returns", telemetry.WithHTTPRoute(h.HandleReturn))
	mux.HandleFunc("POST /orders/{id}/shipments", telemetry.WithHTTPRoute(h.HandleUpdateShipment))
	mux.HandleFunc("POST /orders/{id}/refunds", telemetry.WithHTTPRoute(h.HandleRefund))
	mux.HandleFunc("PATCH /orders/{id}/payment", telemetry.WithHTTPRoute(h.HandleUpdatePayment))
	mux.HandleFunc("GET /refunds/{id}", telemetry.WithHTTPRoute(h.HandleGetRefund))
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.CreateOrder(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, "failed to create order", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "failed to get order", err)
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListOrders(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "failed to list orders", err)
		return
	}

	h.logger.InfoContext(r.Context(), "orders listed", "count", len(orders))
	h.writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.service.DeleteOrder(r.Context(), id); err != nil {
		h.writeServiceError(w, r, "failed to delete order", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.CancelOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, "failed to cancel order", err)
		return
	}
	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleReturn(w http.ResponseWriter, r *http.Request) {
	var req ReturnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.ReturnOrder(r.Context(), r.PathValue("id"), req)
	if err != nil {
		h.writeServiceError(w, r, "failed to schedule return", err)
		return
	}
	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleUpdateShipment(w http.ResponseWriter, r *http.Request) {
	var req domain.ShipmentNotification
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.UpdateShipment(r.Context(), r.PathValue("id"), req)
	if err != nil {
		h.writeServiceError(w, r, "failed to update shipment", err)
		return
	}
	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleRefund(w http.ResponseWriter, r *http.Request) {
	var req RefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	refund, err := h.service.RefundOrder(r.Context(), r.PathValue("id"), req)
	if err != nil {
		h.writeServiceError(w, r, "failed to refund order", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, refund)
}

func (h *Handler) HandleGetRefund(w http.ResponseWriter, r *http.Request) {
	refund, err := h.service.GetRefund(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, "failed to get refund", err)
		return
	}
	h.writeJSON(w, http.StatusOK, refund)
}

type updatePaymentRequest struct {
	Status domain.PaymentStatus `json:"status"`
}

func (h *Handler) HandleUpdatePayment(w http.ResponseWriter, r *http.Request) {
	var req updatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.UpdatePaymentStatus(r.Context(), r.PathValue("id"), req.Status)
	if err != nil {
		h.writeServiceError(w, r, "failed to update payment status", err)
		return
	}
	h.writeJSON(w, http.StatusOK, order)
}

type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	ProductID string `json:"product_id,omitempty"`
	Quantity  int    `json:"quantity,omitempty"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrProductUnavailable):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.KindOf(err) != "internal":
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), msg, "error", err, "path", r.URL.Path)
		h.writeError(w, status, "internal server error")
		return
	}

	h.logger.InfoContext(r.Context(), msg, "error", err, "path", r.URL.Path)
	resp := errorResponse{Error: err.Error(), Kind: domain.KindOf(err)}
	var engineErr *domain.Error
	if errors.As(err, &engineErr) {
		resp.ProductID = engineErr.ProductID
		resp.Quantity = engineErr.Quantity
	}
	h.writeJSON(w, status, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
