package orders

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kauppa/kauppa-sub000/internal/domain"
)

type CreateOrderInput struct {
	PlacedBy        string                `json:"placed_by"`
	ShippingAddress domain.Address        `json:"shipping_address"`
	BillingAddress  *domain.Address       `json:"billing_address,omitempty"`
	Items           []domain.ItemQuantity `json:"items"`
	Coupons         []string              `json:"coupons,omitempty"`
	GiftCards       []string              `json:"gift_cards,omitempty"`
}

// accumulator is owned by a single creation call.
type accumulator struct {
	currency  domain.Currency
	lineItems []domain.OrderLineItem
	products  map[string]domain.Product
	reserved  map[string]int
	net       decimal.Decimal
	weight    domain.WeightCounter
	units     int
}

func newAccumulator() *accumulator {
	return &accumulator{
		products: make(map[string]domain.Product),
		reserved: make(map[string]int),
	}
}

func (a *accumulator) add(product domain.Product, quantity int) error {
	if a.currency == "" {
		a.currency = product.Price.Currency
	} else if product.Price.Currency != a.currency {
		return &domain.Error{Kind: domain.ErrAmbiguousCurrencies, ProductID: product.ID,
			Detail: fmt.Sprintf("order is in %s, product is in %s", a.currency, product.Price.Currency)}
	}

	reserved := a.reserved[product.ID]
	if quantity > product.Inventory-reserved {
		requested := reserved + quantity
		if requested < reserved {
			requested = math.MaxInt
		}
		return &domain.Error{Kind: domain.ErrProductUnavailable, ProductID: product.ID, Quantity: requested,
			Detail: fmt.Sprintf("%d in stock", product.Inventory)}
	}

	if _, seen := a.reserved[product.ID]; seen {
		for i := range a.lineItems {
			if a.lineItems[i].ProductID == product.ID {
				a.lineItems[i].Quantity += quantity
				break
			}
		}
	} else {
		a.lineItems = append(a.lineItems, domain.OrderLineItem{ProductID: product.ID, Quantity: quantity})
		a.products[product.ID] = product
	}
	a.reserved[product.ID] += quantity

	a.net = a.net.Add(product.Price.Mul(quantity).Value)
	if product.Weight != nil {
		a.weight.Add(*product.Weight, quantity)
	}
	a.units += quantity
	return nil
}

type factory struct {
	products  ProductService
	tax       TaxService
	coupons   BalanceService
	giftCards BalanceService
	shipments ShipmentService
	accounts  AccountService
	now       func() time.Time
	newID     func() string
}

// create builds a new order. Inventory decrements and coupon balance updates
// are committed as they happen and are not undone if a later step fails.
func (f *factory) create(ctx context.Context, input CreateOrderInput) (*domain.Order, error) {
	if input.PlacedBy == "" {
		return nil, &domain.Error{Kind: domain.ErrInvalidInput, Detail: "placed_by is required"}
	}
	if f.accounts != nil {
		if _, err := f.accounts.GetAccount(ctx, input.PlacedBy); err != nil {
			return nil, resolveError("account", input.PlacedBy, err)
		}
	}

	acc, err := f.collect(ctx, input.Items)
	if err != nil {
		return nil, err
	}

	for _, item := range acc.lineItems {
		if err := f.products.AdjustInventory(ctx, item.ProductID, -item.Quantity); err != nil {
			return nil, fmt.Errorf("reserve inventory for %s: %w", item.ProductID, err)
		}
	}

	rate, err := f.tax.GetRate(ctx, input.ShippingAddress)
	if err != nil {
		return nil, fmt.Errorf("resolve tax rate: %w", err)
	}
	totalTax := decimal.Zero
	for _, item := range acc.lineItems {
		product := acc.products[item.ProductID]
		lineNet := product.Price.Mul(item.Quantity).Value
		totalTax = totalTax.Add(lineNet.Mul(rate.For(product.Category)).Div(decimal.NewFromInt(100)))
	}
	totalTax = totalTax.Round(2)
	net := acc.net.Round(2)
	remaining := domain.Price{Value: net.Add(totalTax), Currency: acc.currency}

	var discounts []domain.AppliedDiscount
	for _, source := range []struct {
		name string
		svc  BalanceService
		ids  []string
	}{
		{"coupon", f.coupons, input.Coupons},
		{"gift_card", f.giftCards, input.GiftCards},
	} {
		if len(source.ids) == 0 {
			continue
		}
		if source.svc == nil {
			return nil, &domain.Error{Kind: domain.ErrInvalidInput, Detail: source.name + " service not configured"}
		}
		applied, err := f.applyBalances(ctx, source.name, source.svc, source.ids, &remaining)
		if err != nil {
			return nil, err
		}
		discounts = append(discounts, applied...)
	}

	now := f.now()
	billing := input.ShippingAddress
	if input.BillingAddress != nil {
		billing = *input.BillingAddress
	}

	order := &domain.Order{
		ID:              f.newID(),
		PlacedBy:        input.PlacedBy,
		CreatedOn:       now,
		UpdatedAt:       now,
		LineItems:       acc.lineItems,
		Currency:        acc.currency,
		NetPrice:        net,
		TotalTax:        totalTax,
		GrossPrice:      remaining.Value,
		TotalWeight:     acc.weight.Total(),
		Discounts:       discounts,
		PaymentStatus:   domain.PaymentPending,
		Refunds:         []string{},
		Shipments:       make(map[string]domain.ShipmentStatus),
		ShippingAddress: input.ShippingAddress,
		BillingAddress:  billing,
	}

	shipment, err := f.shipments.CreateShipment(ctx, domain.ShipmentRequest{
		OrderID: order.ID,
		Address: order.ShippingAddress,
		Items:   quantities(order.LineItems),
	})
	if err != nil {
		return nil, fmt.Errorf("create shipment: %w", err)
	}
	order.RecordShipment(shipment)

	return order, nil
}

func (f *factory) collect(ctx context.Context, items []domain.ItemQuantity) (*accumulator, error) {
	acc := newAccumulator()
	for _, item := range items {
		if item.Quantity < 0 {
			return nil, &domain.Error{Kind: domain.ErrInvalidInput, ProductID: item.ProductID, Quantity: item.Quantity}
		}
		if item.Quantity == 0 {
			continue
		}
		product, ok := acc.products[item.ProductID]
		if !ok {
			var err error
			product, err = f.products.GetProduct(ctx, item.ProductID)
			if errors.Is(err, domain.ErrNotFound) {
				return nil, &domain.Error{Kind: domain.ErrInvalidOrderItem, ProductID: item.ProductID, Quantity: item.Quantity}
			}
			if err != nil {
				return nil, fmt.Errorf("resolve product %s: %w", item.ProductID, err)
			}
		}
		if err := acc.add(product, item.Quantity); err != nil {
			return nil, err
		}
	}
	if len(acc.lineItems) == 0 {
		return nil, &domain.Error{Kind: domain.ErrNoItemsToProcess}
	}
	return acc, nil
}

// applyBalances deducts coupon (or gift card) balances from remaining in the
// given order, stopping once nothing is left to pay.
func (f *factory) applyBalances(ctx context.Context, source string, svc BalanceService, ids []string, remaining *domain.Price) ([]domain.AppliedDiscount, error) {
	var applied []domain.AppliedDiscount
	for _, id := range ids {
		if !remaining.Value.IsPositive() {
			break
		}
		coupon, err := svc.Get(ctx, id)
		if err != nil {
			return applied, resolveError(source, id, err)
		}
		if err := coupon.Usable(remaining.Currency, f.now()); err != nil {
			return applied, err
		}

		deduct := decimal.Min(coupon.Balance.Value, remaining.Value)
		balance := domain.Price{Value: coupon.Balance.Value.Sub(deduct), Currency: coupon.Balance.Currency}
		if err := svc.SetBalance(ctx, id, balance); err != nil {
			return applied, fmt.Errorf("update %s %s balance: %w", source, id, err)
		}
		remaining.Value = remaining.Value.Sub(deduct)
		applied = append(applied, domain.AppliedDiscount{
			Source: source,
			ID:     id,
			Amount: domain.Price{Value: deduct, Currency: remaining.Currency},
		})
	}
	return applied, nil
}

// resolveError reports an id the caller supplied that a collaborator does not
// know as ErrUnknownReference rather than a missing resource.
func resolveError(what, id string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.Error{Kind: domain.ErrUnknownReference, Detail: what + " " + id}
	}
	return fmt.Errorf("resolve %s %s: %w", what, id, err)
}

func quantities(items []domain.OrderLineItem) []domain.ItemQuantity {
	out := make([]domain.ItemQuantity, 0, len(items))
	for _, item := range items {
		out = append(out, domain.ItemQuantity{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return out
}
