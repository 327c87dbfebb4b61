package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TaxRate holds percentages: a general rate plus per-category overrides.
type TaxRate struct {
	General    decimal.Decimal            `json:"general"`
	Categories map[string]decimal.Decimal `json:"categories,omitempty"`
}

// For returns the rate applicable to a product category.
func (r TaxRate) For(category string) decimal.Decimal {
	if category != "" {
		if rate, ok := r.Categories[category]; ok {
			return rate
		}
	}
	return r.General
}

// Coupon is the view of a coupon or gift card the engine needs.
type Coupon struct {
	ID         string     `json:"id"`
	Balance    Price      `json:"balance"`
	ExpiresOn  *time.Time `json:"expires_on,omitempty"`
	DisabledOn *time.Time `json:"disabled_on,omitempty"`
}

// Usable checks the coupon against the order currency at time now.
func (c Coupon) Usable(currency Currency, now time.Time) error {
	switch {
	case !c.Balance.Value.IsPositive():
		return &Error{Kind: ErrNoBalance, Detail: c.ID}
	case c.Balance.Currency != currency:
		return &Error{Kind: ErrAmbiguousCurrencies, Detail: c.ID}
	case c.DisabledOn != nil && !c.DisabledOn.After(now):
		return &Error{Kind: ErrCouponDisabled, Detail: c.ID}
	case c.ExpiresOn != nil && !c.ExpiresOn.After(now):
		return &Error{Kind: ErrCouponExpired, Detail: c.ID}
	}
	return nil
}

type ShipmentStatus string

const (
	ShipmentPending   ShipmentStatus = "pending"
	ShipmentShipping  ShipmentStatus = "shipping"
	ShipmentDelivered ShipmentStatus = "delivered"
	ShipmentPickup    ShipmentStatus = "pickup"
	ShipmentReturned  ShipmentStatus = "returned"
)

type Shipment struct {
	ID     string         `json:"id"`
	Status ShipmentStatus `json:"status"`
}

// ShipmentRequest is sent to the shipment service for both deliveries and
// pickups.
type ShipmentRequest struct {
	OrderID string         `json:"order_id"`
	Address Address        `json:"address"`
	Items   []ItemQuantity `json:"items"`
}

type Account struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
