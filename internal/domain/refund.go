package domain

import "time"

// Refund is created once per refund operation and never mutated.
type Refund struct {
	ID        string         `json:"id"`
	CreatedOn time.Time      `json:"created_on"`
	OrderID   string         `json:"order_id"`
	Reason    string         `json:"reason"`
	Items     []ItemQuantity `json:"items"`
	Amount    Price          `json:"amount"`
}
