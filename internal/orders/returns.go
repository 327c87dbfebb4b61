package orders

import (
	"context"
	"fmt"

	"github.com/kauppa/kauppa-sub000/internal/domain"
)

// ReturnRequest asks for a pickup of every eligible unit (All) or of the
// listed items.
type ReturnRequest struct {
	All   bool                  `json:"all"`
	Items []domain.ItemQuantity `json:"items,omitempty"`
}

func selectReturnable(order *domain.Order, req ReturnRequest) ([]domain.ItemQuantity, error) {
	return selectBatch(order, req.All, req.Items,
		func(li domain.OrderLineItem) int { return li.Status.Untouched() },
		func(li domain.OrderLineItem, quantity int) error {
			if quantity > li.Status.Untouched() {
				return &domain.Error{Kind: domain.ErrInvalidReturnQuantity, ProductID: li.ProductID, Quantity: quantity,
					Detail: fmt.Sprintf("%d eligible for pickup", li.Status.Untouched())}
			}
			return nil
		},
		domain.ErrInvalidReturnQuantity,
	)
}

// scheduleReturn selects the pickup batch, schedules the pickup and reserves
// the pickup quantities on order.
func scheduleReturn(ctx context.Context, shipments ShipmentService, order *domain.Order, req ReturnRequest) ([]domain.ItemQuantity, error) {
	if err := order.CanReturn(); err != nil {
		return nil, err
	}
	batch, err := selectReturnable(order, req)
	if err != nil {
		return nil, err
	}

	shipment, err := shipments.SchedulePickup(ctx, domain.ShipmentRequest{
		OrderID: order.ID,
		Address: order.ShippingAddress,
		Items:   batch,
	})
	if err != nil {
		return nil, fmt.Errorf("schedule pickup: %w", err)
	}

	if err := commitBatch(order, batch, (*domain.OrderLineItem).ReservePickup); err != nil {
		return nil, err
	}
	order.RecordShipment(shipment)
	return batch, nil
}
