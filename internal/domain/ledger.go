package domain

import "fmt"

// QuantityStatus tracks what happened to the delivered units of a line item.
// A nil *QuantityStatus means nothing has been delivered yet.
type QuantityStatus struct {
	FulfilledQuantity  int                `json:"fulfilled_quantity"`
	PickupQuantity     int                `json:"pickup_quantity"`
	RefundableQuantity int                `json:"refundable_quantity"`
	Fulfillment        *FulfillmentStatus `json:"fulfillment,omitempty"`
}

func (s *QuantityStatus) IsEmpty() bool {
	return s == nil || (s.FulfilledQuantity == 0 && s.PickupQuantity == 0 && s.RefundableQuantity == 0)
}

// Untouched is the delivered quantity not yet reserved for a pickup.
func (s *QuantityStatus) Untouched() int {
	if s == nil {
		return 0
	}
	return s.FulfilledQuantity - s.PickupQuantity
}

func (s *QuantityStatus) Refundable() int {
	if s == nil {
		return 0
	}
	return s.RefundableQuantity
}

func (s *QuantityStatus) MarkPartial() {
	partial := FulfillmentPartial
	s.Fulfillment = &partial
}

// Check verifies the ledger invariants against the ordered quantity.
func (s *QuantityStatus) Check(productID string, ordered int) error {
	if s == nil {
		return nil
	}
	switch {
	case s.FulfilledQuantity < 0 || s.FulfilledQuantity > ordered:
		return &Error{Kind: ErrInvalidDeliveryQuantity, ProductID: productID, Quantity: s.FulfilledQuantity,
			Detail: fmt.Sprintf("fulfilled must be within [0, %d]", ordered)}
	case s.PickupQuantity < 0 || s.PickupQuantity > s.FulfilledQuantity:
		return &Error{Kind: ErrInvalidPickupQuantity, ProductID: productID, Quantity: s.PickupQuantity,
			Detail: fmt.Sprintf("pickup must be within [0, %d]", s.FulfilledQuantity)}
	case s.RefundableQuantity < 0:
		return &Error{Kind: ErrInvalidRefundQuantity, ProductID: productID, Quantity: s.RefundableQuantity}
	case s.FulfilledQuantity+s.RefundableQuantity > ordered:
		return &Error{Kind: ErrInvalidRefundQuantity, ProductID: productID, Quantity: s.RefundableQuantity,
			Detail: "fulfilled and refundable exceed ordered quantity"}
	}
	return nil
}

// Deliver overwrites the status of the line item with a freshly delivered
// quantity.
func (li *OrderLineItem) Deliver(quantity int) error {
	if quantity < 0 || quantity > li.Quantity {
		return itemError(ErrInvalidDeliveryQuantity, li.ProductID, quantity)
	}
	if quantity == 0 {
		li.Status = nil
		return nil
	}
	li.Status = &QuantityStatus{FulfilledQuantity: quantity}
	return nil
}

// ReservePickup carves quantity out of the untouched units.
func (li *OrderLineItem) ReservePickup(quantity int) error {
	if quantity <= 0 || quantity > li.Status.Untouched() {
		return itemError(ErrInvalidReturnQuantity, li.ProductID, quantity)
	}
	li.Status.PickupQuantity += quantity
	return nil
}

// ConfirmPickup moves quantity from fulfilled/pickup into refundable.
func (li *OrderLineItem) ConfirmPickup(quantity int) error {
	scheduled := 0
	if li.Status != nil {
		scheduled = li.Status.PickupQuantity
	}
	if quantity > scheduled {
		return itemError(ErrInvalidPickupQuantity, li.ProductID, quantity)
	}
	if li.Status == nil || quantity > li.Status.FulfilledQuantity {
		return itemError(ErrUnfulfilledItem, li.ProductID, quantity)
	}
	li.Status.PickupQuantity -= quantity
	li.Status.FulfilledQuantity -= quantity
	li.Status.RefundableQuantity += quantity
	return nil
}

// Refund deducts quantity from the refundable units. The status is cleared once
// the line item holds nothing.
func (li *OrderLineItem) Refund(quantity int) error {
	if li.Status == nil {
		return itemError(ErrUnfulfilledItem, li.ProductID, quantity)
	}
	if quantity <= 0 || quantity > li.Status.RefundableQuantity {
		return itemError(ErrInvalidRefundQuantity, li.ProductID, quantity)
	}
	li.Status.RefundableQuantity -= quantity
	if li.Status.IsEmpty() {
		li.Status = nil
	}
	return nil
}

// RefundItemized is Refund for an explicitly requested quantity: a line item
// that still holds units afterwards is marked partial.
func (li *OrderLineItem) RefundItemized(quantity int) error {
	if err := li.Refund(quantity); err != nil {
		return err
	}
	if li.Status != nil {
		li.Status.MarkPartial()
	}
	return nil
}

// Undelivered is the ordered quantity that never reached the customer or has
// already been refunded.
func (li OrderLineItem) Undelivered() int {
	if li.Status == nil {
		return li.Quantity
	}
	return li.Quantity - li.Status.FulfilledQuantity - li.Status.RefundableQuantity
}
