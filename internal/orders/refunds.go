package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kauppa/kauppa-sub000/internal/domain"
)

// RefundRequest refunds every refundable unit (All) or the listed items.
type RefundRequest struct {
	Reason string                `json:"reason"`
	All    bool                  `json:"all"`
	Items  []domain.ItemQuantity `json:"items,omitempty"`
}

func selectRefundable(order *domain.Order, req RefundRequest) ([]domain.ItemQuantity, error) {
	return selectBatch(order, req.All, req.Items,
		func(li domain.OrderLineItem) int { return li.Status.Refundable() },
		func(li domain.OrderLineItem, quantity int) error {
			if li.Status == nil {
				return &domain.Error{Kind: domain.ErrUnfulfilledItem, ProductID: li.ProductID, Quantity: quantity}
			}
			if quantity > li.Status.RefundableQuantity {
				return &domain.Error{Kind: domain.ErrInvalidRefundQuantity, ProductID: li.ProductID, Quantity: quantity,
					Detail: fmt.Sprintf("%d refundable", li.Status.RefundableQuantity)}
			}
			return nil
		},
		domain.ErrInvalidRefundQuantity,
	)
}

type refunder struct {
	products ProductService
	now      func() time.Time
	newID    func() string
}

// issue mutates order and returns the refund record to persist with it.
func (r *refunder) issue(ctx context.Context, order *domain.Order, req RefundRequest) (*domain.Refund, error) {
	if err := order.CanRefund(); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, &domain.Error{Kind: domain.ErrInvalidReason}
	}

	batch, err := selectRefundable(order, req)
	if err != nil {
		return nil, err
	}
	amount, err := r.amount(ctx, order.Currency, batch)
	if err != nil {
		return nil, err
	}

	deduct := (*domain.OrderLineItem).RefundItemized
	if req.All {
		deduct = (*domain.OrderLineItem).Refund
	}
	if err := commitBatch(order, batch, deduct); err != nil {
		return nil, err
	}

	if order.HasPendingItems() {
		partial := domain.FulfillmentPartial
		order.PaymentStatus = domain.PaymentPartialRefund
		order.Fulfillment = &partial
	} else {
		order.PaymentStatus = domain.PaymentRefunded
		order.Fulfillment = nil
	}

	refund := &domain.Refund{
		ID:        r.newID(),
		CreatedOn: r.now(),
		OrderID:   order.ID,
		Reason:    reason,
		Items:     batch,
		Amount:    amount,
	}
	order.Refunds = append(order.Refunds, refund.ID)
	return refund, nil
}

func (r *refunder) amount(ctx context.Context, currency domain.Currency, batch []domain.ItemQuantity) (domain.Price, error) {
	total := domain.ZeroPrice(currency)
	for _, item := range batch {
		product, err := r.products.GetProduct(ctx, item.ProductID)
		if err != nil {
			return domain.Price{}, fmt.Errorf("resolve product %s: %w", item.ProductID, err)
		}
		total, err = total.Add(product.Price.Mul(item.Quantity))
		if err != nil {
			return domain.Price{}, err
		}
	}
	return total.Round(), nil
}
