package orders

import (
	"context"

	"github.com/kauppa/kauppa-sub000/internal/domain"
)

type ProductService interface {
	GetProduct(ctx context.Context, id string) (domain.Product, error)
	AdjustInventory(ctx context.Context, id string, delta int) error
}

type TaxService interface {
	GetRate(ctx context.Context, address domain.Address) (domain.TaxRate, error)
}

// BalanceService is implemented by both the coupon and the gift card
// services.
type BalanceService interface {
	Get(ctx context.Context, id string) (domain.Coupon, error)
	SetBalance(ctx context.Context, id string, balance domain.Price) error
}

type ShipmentService interface {
	CreateShipment(ctx context.Context, req domain.ShipmentRequest) (domain.Shipment, error)
	SchedulePickup(ctx context.Context, req domain.ShipmentRequest) (domain.Shipment, error)
}

type AccountService interface {
	GetAccount(ctx context.Context, id string) (domain.Account, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// Store persists order aggregates and refunds. Update and SaveRefund must
// reject writes whose Version does not match the stored one with
// domain.ErrConflict, and bump Version on success.
type Store interface {
	Create(ctx context.Context, order *domain.Order) error
	Get(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context) ([]domain.Order, error)
	Update(ctx context.Context, order *domain.Order) error
	Delete(ctx context.Context, id string) error
	SaveRefund(ctx context.Context, order *domain.Order, refund *domain.Refund) error
	GetRefund(ctx context.Context, id string) (*domain.Refund, error)
}
