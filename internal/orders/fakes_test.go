package orders

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kauppa/kauppa-sub000/internal/domain"
)

type fakeProducts struct {
	mu          sync.Mutex
	products    map[string]domain.Product
	adjustments []domain.ItemQuantity
}

func newFakeProducts(products ...domain.Product) *fakeProducts {
	f := &fakeProducts{products: make(map[string]domain.Product)}
	for _, p := range products {
		f.products[p.ID] = p
	}
	return f
}

func (f *fakeProducts) GetProduct(_ context.Context, id string) (domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return domain.Product{}, &domain.Error{Kind: domain.ErrNotFound, Detail: "product " + id}
	}
	return p, nil
}

func (f *fakeProducts) AdjustInventory(_ context.Context, id string, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.products[id]
	if p.Inventory+delta < 0 {
		return &domain.Error{Kind: domain.ErrProductUnavailable, ProductID: id}
	}
	p.Inventory += delta
	f.products[id] = p
	f.adjustments = append(f.adjustments, domain.ItemQuantity{ProductID: id, Quantity: delta})
	return nil
}

func (f *fakeProducts) inventory(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[id].Inventory
}

type fakeTax struct {
	rate domain.TaxRate
	err  error
}

func (f fakeTax) GetRate(context.Context, domain.Address) (domain.TaxRate, error) {
	return f.rate, f.err
}

type fakeBalances struct {
	mu      sync.Mutex
	coupons map[string]domain.Coupon
	updates []string
}

func newFakeBalances(coupons ...domain.Coupon) *fakeBalances {
	f := &fakeBalances{coupons: make(map[string]domain.Coupon)}
	for _, c := range coupons {
		f.coupons[c.ID] = c
	}
	return f
}

func (f *fakeBalances) Get(_ context.Context, id string) (domain.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.coupons[id]
	if !ok {
		return domain.Coupon{}, &domain.Error{Kind: domain.ErrNotFound, Detail: "coupon " + id}
	}
	return c, nil
}

func (f *fakeBalances) SetBalance(_ context.Context, id string, balance domain.Price) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.coupons[id]
	c.Balance = balance
	f.coupons[id] = c
	f.updates = append(f.updates, id)
	return nil
}

func (f *fakeBalances) balance(id string) domain.Price {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.coupons[id].Balance
}

type fakeShipments struct {
	mu         sync.Mutex
	next       int
	deliveries []domain.ShipmentRequest
	pickups    []domain.ShipmentRequest
	err        error
}

func (f *fakeShipments) CreateShipment(_ context.Context, req domain.ShipmentRequest) (domain.Shipment, error) {
	return f.record(&f.deliveries, req, domain.ShipmentPending)
}

func (f *fakeShipments) SchedulePickup(_ context.Context, req domain.ShipmentRequest) (domain.Shipment, error) {
	return f.record(&f.pickups, req, domain.ShipmentPickup)
}

func (f *fakeShipments) record(into *[]domain.ShipmentRequest, req domain.ShipmentRequest, status domain.ShipmentStatus) (domain.Shipment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return domain.Shipment{}, f.err
	}
	f.next++
	*into = append(*into, req)
	return domain.Shipment{ID: fmt.Sprintf("shipment-%d", f.next), Status: status}, nil
}

type fakeAccounts map[string]domain.Account

func (f fakeAccounts) GetAccount(_ context.Context, id string) (domain.Account, error) {
	a, ok := f[id]
	if !ok {
		return domain.Account{}, &domain.Error{Kind: domain.ErrNotFound, Detail: "account " + id}
	}
	return a, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []domain.OrderEvent
}

func (f *fakePublisher) Publish(_ context.Context, _ string, event any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := event.(domain.OrderEvent); ok {
		f.events = append(f.events, e)
	}
	return nil
}

func (f *fakePublisher) types() []domain.OrderEventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.OrderEventType, len(f.events))
	for i, e := range f.events {
		out[i] = e.Type
	}
	return out
}

// harness wires a Service to in-memory fakes.
type harness struct {
	service   *Service
	store     *MemoryStore
	products  *fakeProducts
	coupons   *fakeBalances
	giftCards *fakeBalances
	shipments *fakeShipments
	publisher *fakePublisher
}

var testNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func usd(value string) domain.Price { return domain.NewPrice(value, domain.CurrencyUSD) }

// catalog holds the products most tests order from: a $3 mug and a $10
// apron.
func catalog() []domain.Product {
	return []domain.Product{
		{ID: "mug", Title: "Mug", Price: usd("3"), Inventory: 10, Category: "kitchen",
			Weight: &domain.Weight{Value: decimal.NewFromInt(350), Unit: domain.Gram}},
		{ID: "apron", Title: "Apron", Price: usd("10"), Inventory: 10, Category: "kitchen",
			Weight: &domain.Weight{Value: decimal.NewFromInt(200), Unit: domain.Gram}},
		{ID: "bread", Title: "Bread", Price: usd("4"), Inventory: 10, Category: "food"},
		{ID: "sauna", Title: "Sauna bucket", Price: usd("150"), Inventory: 1},
		{ID: "socks", Title: "Socks", Price: domain.NewPrice("15", domain.CurrencyEUR), Inventory: 5},
	}
}

func newHarness(t *testing.T, opts ...func(*harness, *Deps)) *harness {
	t.Helper()
	h := &harness{
		store:     NewMemoryStore(),
		products:  newFakeProducts(catalog()...),
		coupons:   newFakeBalances(),
		giftCards: newFakeBalances(),
		shipments: &fakeShipments{},
		publisher: &fakePublisher{},
	}
	ids := 0
	deps := Deps{
		Store:     h.store,
		Products:  h.products,
		Tax:       fakeTax{rate: domain.TaxRate{General: decimal.Zero}},
		Coupons:   h.coupons,
		GiftCards: h.giftCards,
		Shipments: h.shipments,
		Accounts:  fakeAccounts{"alice": {ID: "alice", Email: "alice@example.com"}},
		Publisher: h.publisher,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:     func() time.Time { return testNow },
		NewID: func() string {
			ids++
			return fmt.Sprintf("id-%d", ids)
		},
	}
	for _, opt := range opts {
		opt(h, &deps)
	}

	service, err := NewService(deps)
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	h.service = service
	return h
}

func items(pairs ...any) []domain.ItemQuantity {
	out := make([]domain.ItemQuantity, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, domain.ItemQuantity{ProductID: pairs[i].(string), Quantity: pairs[i+1].(int)})
	}
	return out
}

func (h *harness) create(t *testing.T, lines ...domain.ItemQuantity) *domain.Order {
	t.Helper()
	order, err := h.service.CreateOrder(context.Background(), CreateOrderInput{
		PlacedBy:        "alice",
		ShippingAddress: domain.Address{Name: "Alice", Line1: "Main St 1", City: "Helsinki", Country: "FI", PostalCode: "00100"},
		Items:           lines,
	})
	if err != nil {
		t.Fatalf("failed to create order: %v", err)
	}
	return order
}

func (h *harness) shipment(t *testing.T, orderID string, status domain.ShipmentStatus, lines ...domain.ItemQuantity) *domain.Order {
	t.Helper()
	order, err := h.service.UpdateShipment(context.Background(), orderID, domain.ShipmentNotification{
		ShipmentID: "carrier-" + string(status),
		OrderID:    orderID,
		Status:     status,
		Items:      lines,
	})
	if err != nil {
		t.Fatalf("failed to apply %s notification: %v", status, err)
	}
	return order
}

func (h *harness) paid(t *testing.T, orderID string) {
	t.Helper()
	if _, err := h.service.UpdatePaymentStatus(context.Background(), orderID, domain.PaymentPaid); err != nil {
		t.Fatalf("failed to mark order paid: %v", err)
	}
}

func expectKind(t *testing.T, err, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v, got %v", kind, err)
	}
}

func status(t *testing.T, order *domain.Order, productID string) *domain.QuantityStatus {
	t.Helper()
	li, err := order.LineItem(productID)
	if err != nil {
		t.Fatalf("line item %s: %v", productID, err)
	}
	return li.Status
}
