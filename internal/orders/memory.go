package orders

import (
	"context"
	"sort"
	"sync"

	"github.com/kauppa/kauppa-sub000/internal/domain"
)

// MemoryStore keeps orders and refunds in process. It is used by tests and
// by the orders service when no database is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	orders  map[string]*domain.Order
	refunds map[string]*domain.Refund
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:  make(map[string]*domain.Order),
		refunds: make(map[string]*domain.Refund),
	}
}

func (m *MemoryStore) Create(_ context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.orders[order.ID]; exists {
		return &domain.Error{Kind: domain.ErrConflict, Detail: "order " + order.ID + " already exists"}
	}
	order.Version = 1
	m.orders[order.ID] = order.Clone()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, &domain.Error{Kind: domain.ErrNotFound, Detail: "order " + id}
	}
	return order.Clone(), nil
}

func (m *MemoryStore) List(_ context.Context) ([]domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	orders := make([]domain.Order, 0, len(m.orders))
	for _, order := range m.orders {
		orders = append(orders, *order.Clone())
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedOn.After(orders[j].CreatedOn) })
	return orders, nil
}

func (m *MemoryStore) Update(_ context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateLocked(order)
}

func (m *MemoryStore) updateLocked(order *domain.Order) error {
	stored, ok := m.orders[order.ID]
	if !ok {
		return &domain.Error{Kind: domain.ErrNotFound, Detail: "order " + order.ID}
	}
	if stored.Version != order.Version {
		return &domain.Error{Kind: domain.ErrConflict, Detail: "order " + order.ID}
	}
	order.Version++
	m.orders[order.ID] = order.Clone()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[id]; !ok {
		return &domain.Error{Kind: domain.ErrNotFound, Detail: "order " + id}
	}
	delete(m.orders, id)
	return nil
}

func (m *MemoryStore) SaveRefund(_ context.Context, order *domain.Order, refund *domain.Refund) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.updateLocked(order); err != nil {
		return err
	}
	r := *refund
	r.Items = append([]domain.ItemQuantity(nil), refund.Items...)
	m.refunds[refund.ID] = &r
	return nil
}

func (m *MemoryStore) GetRefund(_ context.Context, id string) (*domain.Refund, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	refund, ok := m.refunds[id]
	if !ok {
		return nil, &domain.Error{Kind: domain.ErrNotFound, Detail: "refund " + id}
	}
	r := *refund
	return &r, nil
}
