package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kauppa/kauppa-sub000/internal/domain"
)

type Deps struct {
	Store     Store
	Products  ProductService
	Tax       TaxService
	Coupons   BalanceService
	GiftCards BalanceService
	Shipments ShipmentService
	Accounts  AccountService
	Publisher EventPublisher
	Logger    *slog.Logger
	Clock     func() time.Time
	NewID     func() string
}

// Service exposes the order lifecycle operations. Every mutating operation
// loads the order, works on a copy and stores it only when the whole
// operation succeeded.
type Service struct {
	store     Store
	shipments ShipmentService
	publisher EventPublisher
	logger    *slog.Logger
	factory   *factory
	refunder  *refunder
	metrics   *engineMetrics
	now       func() time.Time
}

func NewService(deps Deps) (*Service, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("orders: store is required")
	case deps.Products == nil:
		return nil, errors.New("orders: product service is required")
	case deps.Tax == nil:
		return nil, errors.New("orders: tax service is required")
	case deps.Shipments == nil:
		return nil, errors.New("orders: shipment service is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	newID := deps.NewID
	if newID == nil {
		newID = func() string { return uuid.New().String() }
	}

	metrics, err := newEngineMetrics(otel.Meter("orders"))
	if err != nil {
		return nil, fmt.Errorf("orders: init metrics: %w", err)
	}

	return &Service{
		store:     deps.Store,
		shipments: deps.Shipments,
		publisher: deps.Publisher,
		logger:    logger,
		factory: &factory{
			products:  deps.Products,
			tax:       deps.Tax,
			coupons:   deps.Coupons,
			giftCards: deps.GiftCards,
			shipments: deps.Shipments,
			accounts:  deps.Accounts,
			now:       now,
			newID:     newID,
		},
		refunder: &refunder{products: deps.Products, now: now, newID: newID},
		metrics:  metrics,
		now:      now,
	}, nil
}

func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (order *domain.Order, err error) {
	ctx, end := s.start(ctx, "create_order", attribute.String("order.placed_by", input.PlacedBy))
	defer func() { end(err) }()

	order, err = s.factory.create(ctx, input)
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("store order: %w", err)
	}

	s.metrics.ordersCreated.Add(ctx, 1)
	s.publish(ctx, order, domain.OrderEvent{Type: domain.OrderCreated, Items: quantities(order.LineItems)})
	s.logger.InfoContext(ctx, "order created",
		"order_id", order.ID, "placed_by", order.PlacedBy, "gross_price", order.GrossPrice.String(), "currency", order.Currency)
	return order, nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return s.store.List(ctx)
}

func (s *Service) CancelOrder(ctx context.Context, id string) (order *domain.Order, err error) {
	ctx, end := s.start(ctx, "cancel_order", attribute.String("order.id", id))
	defer func() { end(err) }()

	order, err = s.mutate(ctx, id, func(o *domain.Order) error {
		if o.IsCancelled() {
			return &domain.Error{Kind: domain.ErrCancelledOrder, Detail: o.ID}
		}
		now := s.now()
		o.CancelledAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, order, domain.OrderEvent{Type: domain.OrderCancelled})
	s.logger.InfoContext(ctx, "order cancelled", "order_id", order.ID)
	return order, nil
}

// ReturnOrder schedules a pickup for delivered units.
func (s *Service) ReturnOrder(ctx context.Context, id string, req ReturnRequest) (order *domain.Order, err error) {
	ctx, end := s.start(ctx, "return_order", attribute.String("order.id", id), attribute.Bool("return.all", req.All))
	defer func() { end(err) }()

	var batch []domain.ItemQuantity
	order, err = s.mutate(ctx, id, func(o *domain.Order) error {
		var err error
		batch, err = scheduleReturn(ctx, s.shipments, o, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, order, domain.OrderEvent{Type: domain.OrderReturnScheduled, Items: batch})
	s.logger.InfoContext(ctx, "return scheduled", "order_id", order.ID, "items", len(batch))
	return order, nil
}

// UpdateShipment applies a shipment notification: delivered and returned
// notifications move line item quantities, every other status is only
// recorded.
func (s *Service) UpdateShipment(ctx context.Context, id string, n domain.ShipmentNotification) (order *domain.Order, err error) {
	ctx, end := s.start(ctx, "update_shipment",
		attribute.String("order.id", id),
		attribute.String("shipment.id", n.ShipmentID),
		attribute.String("shipment.status", string(n.Status)))
	defer func() { end(err) }()

	if n.ShipmentID == "" {
		return nil, &domain.Error{Kind: domain.ErrInvalidInput, Detail: "shipment_id is required"}
	}

	order, err = s.mutate(ctx, id, func(o *domain.Order) error {
		switch n.Status {
		case domain.ShipmentDelivered:
			if err := applyDelivery(o, n.Items); err != nil {
				return err
			}
		case domain.ShipmentReturned:
			if err := applyPickup(o, n.Items); err != nil {
				return err
			}
		}
		o.RecordShipment(domain.Shipment{ID: n.ShipmentID, Status: n.Status})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "shipment updated", "order_id", order.ID, "shipment_id", n.ShipmentID, "status", n.Status)
	return order, nil
}

func (s *Service) RefundOrder(ctx context.Context, id string, req RefundRequest) (refund *domain.Refund, err error) {
	ctx, end := s.start(ctx, "refund_order", attribute.String("order.id", id), attribute.Bool("refund.all", req.All))
	defer func() { end(err) }()

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	order := current.Clone()

	refund, err = s.refunder.issue(ctx, order, req)
	if err != nil {
		return nil, err
	}
	if err := order.Validate(); err != nil {
		return nil, fmt.Errorf("refund would break order ledger: %w", err)
	}
	order.UpdatedAt = s.now()
	if err := s.store.SaveRefund(ctx, order, refund); err != nil {
		return nil, err
	}

	s.metrics.recordRefund(ctx, refund)
	s.publish(ctx, order, domain.OrderEvent{Type: domain.OrderRefunded, Items: refund.Items, Amount: &refund.Amount, RefundID: refund.ID})
	s.logger.InfoContext(ctx, "refund issued",
		"order_id", order.ID, "refund_id", refund.ID, "amount", refund.Amount.String(), "payment_status", order.PaymentStatus)
	return refund, nil
}

func (s *Service) GetRefund(ctx context.Context, id string) (*domain.Refund, error) {
	return s.store.GetRefund(ctx, id)
}

// UpdatePaymentStatus records the outcome reported by the payment processor
// for a pending order.
func (s *Service) UpdatePaymentStatus(ctx context.Context, id string, status domain.PaymentStatus) (order *domain.Order, err error) {
	ctx, end := s.start(ctx, "update_payment", attribute.String("order.id", id), attribute.String("payment.status", string(status)))
	defer func() { end(err) }()

	if status != domain.PaymentPaid && status != domain.PaymentFailed {
		return nil, &domain.Error{Kind: domain.ErrInvalidInput, Detail: fmt.Sprintf("payment status %q cannot be set directly", status)}
	}

	order, err = s.mutate(ctx, id, func(o *domain.Order) error {
		if o.IsCancelled() {
			return &domain.Error{Kind: domain.ErrCancelledOrder, Detail: o.ID}
		}
		if o.PaymentStatus != domain.PaymentPending && o.PaymentStatus != domain.PaymentFailed {
			return &domain.Error{Kind: domain.ErrInvalidInput,
				Detail: fmt.Sprintf("payment status is already %q", o.PaymentStatus)}
		}
		o.PaymentStatus = status
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "payment status updated", "order_id", order.ID, "status", status)
	return order, nil
}

func (s *Service) DeleteOrder(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "order deleted", "order_id", id)
	return nil
}

func (s *Service) mutate(ctx context.Context, id string, fn func(*domain.Order) error) (*domain.Order, error) {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	order := current.Clone()
	if err := fn(order); err != nil {
		return nil, err
	}
	if err := order.Validate(); err != nil {
		return nil, fmt.Errorf("operation would break order ledger: %w", err)
	}
	order.UpdatedAt = s.now()
	if err := s.store.Update(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Service) start(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := tracer.Start(ctx, "orders."+operation, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.metrics.recordFailure(ctx, operation, err)
		}
		span.End()
	}
}

func (s *Service) publish(ctx context.Context, order *domain.Order, event domain.OrderEvent) {
	if s.publisher == nil {
		return
	}
	event.OrderID = order.ID
	event.CustomerID = order.PlacedBy
	event.Timestamp = s.now()
	if err := s.publisher.Publish(ctx, order.ID, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order event", "error", err, "order_id", order.ID, "type", event.Type)
	}
}
