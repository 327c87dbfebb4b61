package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/kauppa/kauppa-sub000/internal/clients"
	"github.com/kauppa/kauppa-sub000/internal/domain"
	"github.com/kauppa/kauppa-sub000/internal/messaging"
)

type OrderUpdater interface {
	UpdateShipment(ctx context.Context, n domain.ShipmentNotification) error
}

// ShipmentHandler forwards shipment notifications to the orders service.
type ShipmentHandler struct {
	orders OrderUpdater
	logger *slog.Logger
}

func NewShipmentHandler(orders OrderUpdater, logger *slog.Logger) *ShipmentHandler {
	return &ShipmentHandler{
		orders: orders,
		logger: logger,
	}
}

// Handle returns an error only for failures worth redelivering. Messages the
// orders service rejects are logged and dropped.
func (h *ShipmentHandler) Handle(ctx context.Context, msg messaging.Message) error {
	var n domain.ShipmentNotification
	if err := json.Unmarshal(msg.Payload, &n); err != nil {
		h.logger.ErrorContext(ctx, "dropping malformed shipment notification", "error", err, "key", msg.Key)
		return nil
	}
	if n.OrderID == "" {
		n.OrderID = msg.Key
	}

	h.logger.InfoContext(ctx, "processing shipment notification",
		"order_id", n.OrderID, "shipment_id", n.ShipmentID, "status", n.Status)

	if err := h.orders.UpdateShipment(ctx, n); err != nil {
		if rejected(err) {
			h.logger.WarnContext(ctx, "orders service rejected shipment notification",
				"error", err, "order_id", n.OrderID, "shipment_id", n.ShipmentID)
			return nil
		}
		return fmt.Errorf("update shipment %s of order %s: %w", n.ShipmentID, n.OrderID, err)
	}

	h.logger.InfoContext(ctx, "shipment notification applied", "order_id", n.OrderID, "shipment_id", n.ShipmentID)
	return nil
}

// rejected reports whether err is a client error that would recur on retry.
// Conflicts are retried since they come from concurrent updates.
func rejected(err error) bool {
	if errors.Is(err, domain.ErrNotFound) {
		return true
	}
	var status *clients.StatusError
	if !errors.As(err, &status) {
		return false
	}
	return status.Status >= 400 && status.Status < 500 && status.Status != http.StatusConflict
}
