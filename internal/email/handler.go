package email

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/kauppa/kauppa-sub000/internal/domain"
	"github.com/kauppa/kauppa-sub000/internal/telemetry"
)

// Outbox records delivered mail. Nothing leaves the process; the service is
// a sink for customer notifications.
type Outbox struct {
	mu     sync.Mutex
	sent   []domain.Email
	limit  int
	logger *slog.Logger
}

func NewOutbox(limit int, logger *slog.Logger) *Outbox {
	return &Outbox{limit: limit, logger: logger}
}

func (o *Outbox) Send(ctx context.Context, msg domain.Email) error {
	o.mu.Lock()
	o.sent = append(o.sent, msg)
	if o.limit > 0 && len(o.sent) > o.limit {
		o.sent = o.sent[len(o.sent)-o.limit:]
	}
	o.mu.Unlock()

	o.logger.InfoContext(ctx, "email sent", "to", msg.To, "subject", msg.Subject)
	return nil
}

// Sent returns delivered mail, oldest first.
func (o *Outbox) Sent() []domain.Email {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]domain.Email(nil), o.sent...)
}

type Handler struct {
	outbox *Outbox
	logger *slog.Logger
}

func NewHandler(outbox *Outbox, logger *slog.Logger) *Handler {
	return &Handler{
		outbox: outbox,
		logger: logger,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /send", telemetry.WithHTTPRoute(h.HandleSend))
	mux.HandleFunc("GET /sent", telemetry.WithHTTPRoute(h.HandleSent))
}

type sendResponse struct {
	Status string `json:"status"`
}

func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req domain.Email
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch {
	case !strings.Contains(req.To, "@"):
		h.writeError(w, http.StatusBadRequest, "invalid recipient")
		return
	case strings.TrimSpace(req.Subject) == "":
		h.writeError(w, http.StatusBadRequest, "subject is required")
		return
	}

	if err := h.outbox.Send(r.Context(), req); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to send email", "error", err, "to", req.To)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, sendResponse{Status: "sent"})
}

func (h *Handler) HandleSent(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.outbox.Sent())
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
