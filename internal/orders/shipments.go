package orders

import "github.com/kauppa/kauppa-sub000/internal/domain"

// applyDelivery records delivered quantities. Every item is validated before
// any line item is touched.
func applyDelivery(order *domain.Order, items []domain.ItemQuantity) error {
	targets := make([]*domain.OrderLineItem, len(items))
	for i, item := range items {
		li, err := order.LineItem(item.ProductID)
		if err != nil {
			return err
		}
		if item.Quantity < 0 || item.Quantity > li.Quantity {
			return &domain.Error{Kind: domain.ErrInvalidDeliveryQuantity, ProductID: item.ProductID, Quantity: item.Quantity}
		}
		targets[i] = li
	}
	for i, li := range targets {
		if err := li.Deliver(items[i].Quantity); err != nil {
			return err
		}
	}
	return nil
}

// applyPickup moves picked up units into the refundable bucket.
func applyPickup(order *domain.Order, items []domain.ItemQuantity) error {
	for _, item := range items {
		li, err := order.LineItem(item.ProductID)
		if err != nil {
			return err
		}
		if item.Quantity < 0 {
			return &domain.Error{Kind: domain.ErrInvalidPickupQuantity, ProductID: item.ProductID, Quantity: item.Quantity}
		}
		if item.Quantity == 0 {
			continue
		}
		if err := li.ConfirmPickup(item.Quantity); err != nil {
			return err
		}
	}
	return nil
}
