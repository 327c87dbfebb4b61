package domain

import "time"

type OrderEventType string

const (
	OrderCreated         OrderEventType = "order.created"
	OrderCancelled       OrderEventType = "order.cancelled"
	OrderReturnScheduled OrderEventType = "order.return_scheduled"
	OrderRefunded        OrderEventType = "order.refunded"
)

type OrderEvent struct {
	Type       OrderEventType `json:"type"`
	OrderID    string         `json:"order_id"`
	CustomerID string         `json:"customer_id"`
	Items      []ItemQuantity `json:"items,omitempty"`
	Amount     *Price         `json:"amount,omitempty"`
	RefundID   string         `json:"refund_id,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// ShipmentNotification is raised by the shipment service when a shipment
// changes state. Delivered notifications carry delivered quantities, returned
// ones carry picked up quantities.
type ShipmentNotification struct {
	ShipmentID string         `json:"shipment_id"`
	OrderID    string         `json:"order_id"`
	Status     ShipmentStatus `json:"status"`
	Items      []ItemQuantity `json:"items"`
}

// Email is the message accepted by the email service.
type Email struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (e OrderEvent) EventType() string { return string(e.Type) }

// EventType is "shipment.<status>", e.g. "shipment.delivered".
func (n ShipmentNotification) EventType() string { return "shipment." + string(n.Status) }
