package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidOrderItem        = errors.New("product is not part of the order")
	ErrUnfulfilledItem         = errors.New("item has not been fulfilled")
	ErrInvalidDeliveryQuantity = errors.New("delivered quantity exceeds ordered quantity")
	ErrInvalidPickupQuantity   = errors.New("picked up quantity exceeds scheduled pickup")
	ErrInvalidRefundQuantity   = errors.New("refund quantity exceeds refundable quantity")
	ErrInvalidReturnQuantity   = errors.New("return quantity exceeds returnable quantity")
	ErrProductUnavailable      = errors.New("product unavailable")
	ErrAmbiguousCurrencies     = errors.New("ambiguous currencies")
	ErrNoItemsToProcess        = errors.New("no items to process")
	ErrCancelledOrder          = errors.New("order has been cancelled")
	ErrRefundedOrder           = errors.New("order has already been refunded")
	ErrPaymentNotReceived      = errors.New("payment not received")
	ErrInvalidReason           = errors.New("reason is required")

	ErrNoBalance      = errors.New("coupon has no balance")
	ErrCouponDisabled = errors.New("coupon is disabled")
	ErrCouponExpired  = errors.New("coupon has expired")

	ErrUnknownReference = errors.New("unknown reference")

	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("concurrent modification")
	ErrInvalidInput = errors.New("invalid input")
)

var kindNames = map[error]string{
	ErrInvalidOrderItem:        "invalid_order_item",
	ErrUnfulfilledItem:         "unfulfilled_item",
	ErrInvalidDeliveryQuantity: "invalid_delivery_quantity",
	ErrInvalidPickupQuantity:   "invalid_pickup_quantity",
	ErrInvalidRefundQuantity:   "invalid_refund_quantity",
	ErrInvalidReturnQuantity:   "invalid_return_quantity",
	ErrProductUnavailable:      "product_unavailable",
	ErrAmbiguousCurrencies:     "ambiguous_currencies",
	ErrNoItemsToProcess:        "no_items_to_process",
	ErrCancelledOrder:          "cancelled_order",
	ErrRefundedOrder:           "refunded_order",
	ErrPaymentNotReceived:      "payment_not_received",
	ErrInvalidReason:           "invalid_reason",
	ErrNoBalance:               "no_balance",
	ErrCouponDisabled:          "coupon_disabled",
	ErrCouponExpired:           "coupon_expired",
	ErrUnknownReference:        "unknown_reference",
	ErrNotFound:                "not_found",
	ErrConflict:                "conflict",
	ErrInvalidInput:            "invalid_input",
}

// Error is a structured engine failure. Kind is one of the sentinel errors
// above, so callers match with errors.Is.
type Error struct {
	Kind      error
	ProductID string
	Quantity  int
	Detail    string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.ProductID != "" {
		fmt.Fprintf(&b, ": product %s", e.ProductID)
	}
	if e.Quantity != 0 {
		fmt.Fprintf(&b, " (quantity %d)", e.Quantity)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Kind }

func itemError(kind error, productID string, quantity int) error {
	return &Error{Kind: kind, ProductID: productID, Quantity: quantity}
}

// KindOf returns the stable name of the error kind wrapped by err, or
// "internal" when err is not part of the taxonomy.
func KindOf(err error) string {
	for kind, name := range kindNames {
		if errors.Is(err, kind) {
			return name
		}
	}
	return "internal"
}
