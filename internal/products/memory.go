package products

import (
	"context"
	"sort"
	"sync"

	"github.com/kauppa/kauppa-sub000/internal/domain"
)

// MemoryRepository is used by tests and local runs without a database.
type MemoryRepository struct {
	mu       sync.Mutex
	products map[string]domain.Product
}

func NewMemoryRepository(seed ...domain.Product) *MemoryRepository {
	m := &MemoryRepository{products: make(map[string]domain.Product)}
	for _, p := range seed {
		m.products[p.ID] = p
	}
	return m
}

func (m *MemoryRepository) List(_ context.Context) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	products := make([]domain.Product, 0, len(m.products))
	for _, p := range m.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

func (m *MemoryRepository) Get(_ context.Context, id string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, &domain.Error{Kind: domain.ErrNotFound, Detail: "product " + id}
	}
	return &p, nil
}

func (m *MemoryRepository) Create(_ context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.products[product.ID]; exists {
		return &domain.Error{Kind: domain.ErrConflict, Detail: "product " + product.ID + " already exists"}
	}
	m.products[product.ID] = *product
	return nil
}

func (m *MemoryRepository) Adjust(_ context.Context, id string, delta int) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, &domain.Error{Kind: domain.ErrNotFound, Detail: "product " + id}
	}
	if p.Inventory+delta < 0 {
		return nil, ErrInsufficientStock
	}
	p.Inventory += delta
	m.products[id] = p
	return &p, nil
}
