package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/kauppa/kauppa-sub000/internal/telemetry"
)

// Handler is the public entry point. Order and refund routes go to the
// orders service, catalog reads to the products service. Inventory
// adjustments are not exposed.
type Handler struct {
	ordersProxy   *ServiceProxy
	productsProxy *ServiceProxy
	logger        *slog.Logger
}

func NewHandler(ordersProxy, productsProxy *ServiceProxy, logger *slog.Logger) *Handler {
	return &Handler{
		ordersProxy:   ordersProxy,
		productsProxy: productsProxy,
		logger:        logger,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	for _, pattern := range []string{
		"GET /orders",
		"POST /orders",
		"GET /orders/{id}",
		"DELETE /orders/{id}",
		"POST /orders/{id}/cancel",
		"POST /orders/{id}/returns",
		"POST /orders/{id}/refunds",
		"PATCH /orders/{id}/payment",
		"GET /refunds/{id}",
	} {
		mux.HandleFunc(pattern, telemetry.WithHTTPRoute(h.HandleOrders))
	}
	mux.HandleFunc("GET /products", telemetry.WithHTTPRoute(h.HandleProducts))
	mux.HandleFunc("GET /products/{id}", telemetry.WithHTTPRoute(h.HandleProducts))
}

func (h *Handler) HandleOrders(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.ordersProxy, r.URL.Path)
}

func (h *Handler) HandleProducts(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.productsProxy, r.URL.Path)
}

func (h *Handler) proxyRequest(w http.ResponseWriter, r *http.Request, proxy *ServiceProxy, path string) {
	resp, err := proxy.ForwardRequest(r.Context(), r, path)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to forward request", "error", err, "path", path)
		h.writeError(w, http.StatusBadGateway, "service unavailable")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if contentType := resp.Header.Get("Content-Type"); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}

	w.WriteHeader(resp.StatusCode)

	h.logger.InfoContext(r.Context(), "request proxied", "method", r.Method, "path", path, "status", resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to copy response body", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		h.logger.Error("failed to encode error response", "error", err)
	}
}
