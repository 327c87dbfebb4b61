package products

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/kauppa/kauppa-sub000/internal/domain"
	"github.com/kauppa/kauppa-sub000/internal/telemetry"
)

type Handler struct {
	repo   Repository
	logger *slog.Logger
}

func NewHandler(repo Repository, logger *slog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /products", telemetry.WithHTTPRoute(h.HandleList))
	mux.HandleFunc("POST /products", telemetry.WithHTTPRoute(h.HandleCreate))
	mux.HandleFunc("GET /products/{id}", telemetry.WithHTTPRoute(h.HandleGet))
	mux.HandleFunc("POST /products/{id}/inventory", telemetry.WithHTTPRoute(h.HandleAdjustInventory))
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	products, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list products", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.InfoContext(r.Context(), "products listed", "count", len(products))
	h.writeJSON(w, http.StatusOK, products)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing product id")
		return
	}

	product, err := h.repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to get product", "error", err, "product_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, product)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var product domain.Product
	if err := json.NewDecoder(r.Body).Decode(&product); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if msg := validateProduct(product); msg != "" {
		h.writeError(w, http.StatusBadRequest, msg)
		return
	}
	if product.ID == "" {
		product.ID = uuid.New().String()
	}

	if err := h.repo.Create(r.Context(), &product); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			h.writeError(w, http.StatusConflict, "product already exists")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to create product", "error", err, "product_id", product.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.InfoContext(r.Context(), "product created", "product_id", product.ID)
	h.writeJSON(w, http.StatusCreated, product)
}

func validateProduct(p domain.Product) string {
	switch {
	case strings.TrimSpace(p.Title) == "":
		return "title is required"
	case p.Price.Currency == "":
		return "price currency is required"
	case p.Price.Value.IsNegative():
		return "price must not be negative"
	case p.Inventory < 0:
		return "inventory must not be negative"
	}
	return ""
}

func (h *Handler) HandleAdjustInventory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing product id")
		return
	}

	var req domain.InventoryAdjustment
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	product, err := h.repo.Adjust(r.Context(), id, req.Delta)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			h.writeError(w, http.StatusNotFound, "product not found")
		case errors.Is(err, ErrInsufficientStock):
			h.writeError(w, http.StatusConflict, "insufficient stock")
		default:
			h.logger.ErrorContext(r.Context(), "failed to adjust inventory", "error", err, "product_id", id, "delta", req.Delta)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	h.logger.InfoContext(r.Context(), "inventory adjusted", "product_id", id, "delta", req.Delta, "inventory", product.Inventory)
	h.writeJSON(w, http.StatusOK, product)
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
