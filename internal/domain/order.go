package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending       PaymentStatus = "pending"
	PaymentPaid          PaymentStatus = "paid"
	PaymentFailed        PaymentStatus = "failed"
	PaymentPartialRefund PaymentStatus = "partial_refund"
	PaymentRefunded      PaymentStatus = "refunded"
)

type FulfillmentStatus string

const FulfillmentPartial FulfillmentStatus = "partial"

type Address struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	Country    string `json:"country"`
	PostalCode string `json:"postal_code"`
}

// ItemQuantity pairs a product with a unit count. It is the shape shared by
// order input, shipment notifications, pickup batches and refunds.
type ItemQuantity struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type OrderLineItem struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Status    *QuantityStatus `json:"status,omitempty"`
}

type AppliedDiscount struct {
	Source string `json:"source"`
	ID     string `json:"id"`
	Amount Price  `json:"amount"`
}

type Order struct {
	ID              string                    `json:"id"`
	PlacedBy        string                    `json:"placed_by"`
	CreatedOn       time.Time                 `json:"created_on"`
	UpdatedAt       time.Time                 `json:"updated_at"`
	LineItems       []OrderLineItem           `json:"line_items"`
	Currency        Currency                  `json:"currency"`
	NetPrice        decimal.Decimal           `json:"net_price"`
	TotalTax        decimal.Decimal           `json:"total_tax"`
	GrossPrice      decimal.Decimal           `json:"gross_price"`
	TotalWeight     Weight                    `json:"total_weight"`
	Discounts       []AppliedDiscount         `json:"discounts,omitempty"`
	PaymentStatus   PaymentStatus             `json:"payment_status"`
	Fulfillment     *FulfillmentStatus        `json:"fulfillment,omitempty"`
	CancelledAt     *time.Time                `json:"cancelled_at,omitempty"`
	Refunds         []string                  `json:"refunds"`
	Shipments       map[string]ShipmentStatus `json:"shipments"`
	ShippingAddress Address                   `json:"shipping_address"`
	BillingAddress  Address                   `json:"billing_address"`
	Version         int64                     `json:"version"`
}

// LineItem returns the line item for productID.
func (o *Order) LineItem(productID string) (*OrderLineItem, error) {
	for i := range o.LineItems {
		if o.LineItems[i].ProductID == productID {
			return &o.LineItems[i], nil
		}
	}
	return nil, itemError(ErrInvalidOrderItem, productID, 0)
}

func (o *Order) IsCancelled() bool {
	return o.CancelledAt != nil
}

// CanReturn reports whether a pickup may be scheduled for the order.
func (o *Order) CanReturn() error {
	if o.IsCancelled() {
		return &Error{Kind: ErrCancelledOrder, Detail: o.ID}
	}
	return nil
}

// CanRefund reports whether a refund may be issued for the order.
func (o *Order) CanRefund() error {
	if o.IsCancelled() {
		return &Error{Kind: ErrCancelledOrder, Detail: o.ID}
	}
	switch o.PaymentStatus {
	case PaymentRefunded:
		return &Error{Kind: ErrRefundedOrder, Detail: o.ID}
	case PaymentPending, PaymentFailed:
		return &Error{Kind: ErrPaymentNotReceived, Detail: string(o.PaymentStatus)}
	}
	return nil
}

// HasPendingItems reports whether any line item still holds fulfilled,
// pickup or refundable quantity.
func (o *Order) HasPendingItems() bool {
	for _, item := range o.LineItems {
		if item.Status != nil && !item.Status.IsEmpty() {
			return true
		}
	}
	return false
}

func (o *Order) RecordShipment(shipment Shipment) {
	if o.Shipments == nil {
		o.Shipments = make(map[string]ShipmentStatus)
	}
	o.Shipments[shipment.ID] = shipment.Status
}

// Validate checks the quantity ledger of every line item.
func (o *Order) Validate() error {
	seen := make(map[string]struct{}, len(o.LineItems))
	for _, item := range o.LineItems {
		if _, dup := seen[item.ProductID]; dup {
			return &Error{Kind: ErrInvalidInput, ProductID: item.ProductID, Detail: "duplicate line item"}
		}
		seen[item.ProductID] = struct{}{}
		if err := item.Status.Check(item.ProductID, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a deep copy so that engine operations can validate against a
// scratch copy before touching the stored aggregate.
func (o *Order) Clone() *Order {
	c := *o
	c.LineItems = make([]OrderLineItem, len(o.LineItems))
	for i, item := range o.LineItems {
		c.LineItems[i] = item
		if item.Status != nil {
			s := *item.Status
			if item.Status.Fulfillment != nil {
				f := *item.Status.Fulfillment
				s.Fulfillment = &f
			}
			c.LineItems[i].Status = &s
		}
	}
	c.Discounts = append([]AppliedDiscount(nil), o.Discounts...)
	c.Refunds = append([]string(nil), o.Refunds...)
	c.Shipments = make(map[string]ShipmentStatus, len(o.Shipments))
	for id, status := range o.Shipments {
		c.Shipments[id] = status
	}
	if o.Fulfillment != nil {
		f := *o.Fulfillment
		c.Fulfillment = &f
	}
	if o.CancelledAt != nil {
		t := *o.CancelledAt
		c.CancelledAt = &t
	}
	return &c
}
