package orders

import "github.com/kauppa/kauppa-sub000/internal/domain"

// mergeRequested folds duplicate product entries into one, keeping the first
// appearance order and dropping zero quantities.
func mergeRequested(items []domain.ItemQuantity, negative error) ([]domain.ItemQuantity, error) {
	var merged []domain.ItemQuantity
	index := make(map[string]int)
	for _, item := range items {
		if item.Quantity < 0 {
			return nil, &domain.Error{Kind: negative, ProductID: item.ProductID, Quantity: item.Quantity}
		}
		if item.Quantity == 0 {
			continue
		}
		if i, ok := index[item.ProductID]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	return merged, nil
}

// selectBatch builds a batch either from every line item (all) or from the
// requested items. available reports the eligible quantity of a line item and
// check validates a requested quantity against it.
func selectBatch(
	order *domain.Order,
	all bool,
	requested []domain.ItemQuantity,
	available func(domain.OrderLineItem) int,
	check func(li domain.OrderLineItem, quantity int) error,
	negative error,
) ([]domain.ItemQuantity, error) {
	var batch []domain.ItemQuantity
	if all {
		for _, li := range order.LineItems {
			if n := available(li); n > 0 {
				batch = append(batch, domain.ItemQuantity{ProductID: li.ProductID, Quantity: n})
			}
		}
	} else {
		merged, err := mergeRequested(requested, negative)
		if err != nil {
			return nil, err
		}
		for _, item := range merged {
			li, err := order.LineItem(item.ProductID)
			if err != nil {
				return nil, err
			}
			if err := check(*li, item.Quantity); err != nil {
				return nil, err
			}
			batch = append(batch, item)
		}
	}
	if len(batch) == 0 {
		return nil, &domain.Error{Kind: domain.ErrNoItemsToProcess}
	}
	return batch, nil
}

// commitBatch applies fn to the line item of every batch entry.
func commitBatch(order *domain.Order, batch []domain.ItemQuantity, fn func(li *domain.OrderLineItem, quantity int) error) error {
	for _, item := range batch {
		li, err := order.LineItem(item.ProductID)
		if err != nil {
			return err
		}
		if err := fn(li, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}
