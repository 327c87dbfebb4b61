//go:build integration

package test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/kauppa/kauppa-sub000/internal/clients"
	"github.com/kauppa/kauppa-sub000/internal/domain"
	"github.com/kauppa/kauppa-sub000/internal/email"
	"github.com/kauppa/kauppa-sub000/internal/messaging"
	"github.com/kauppa/kauppa-sub000/internal/orders"
	"github.com/kauppa/kauppa-sub000/internal/products"
	"github.com/kauppa/kauppa-sub000/internal/worker"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// shipmentsStub answers the shipment service endpoints with sequential ids.
type shipmentsStub struct {
	mu       sync.Mutex
	requests []domain.ShipmentRequest
}

func (s *shipmentsStub) handler(status domain.ShipmentStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.ShipmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.requests = append(s.requests, req)
		id := fmt.Sprintf("shipment-%d", len(s.requests))
		s.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(domain.Shipment{ID: id, Status: status})
	}
}

func newCollaborators(t *testing.T) (tax, shipments *httptest.Server) {
	t.Helper()

	taxMux := http.NewServeMux()
	taxMux.HandleFunc("GET /rates", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("country") == "" {
			http.Error(w, `{"error":"country is required"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"general":"0","categories":{"food":"14"}}`)
	})
	tax = httptest.NewServer(taxMux)
	t.Cleanup(tax.Close)

	stub := &shipmentsStub{}
	shipmentMux := http.NewServeMux()
	shipmentMux.HandleFunc("POST /shipments", stub.handler(domain.ShipmentPending))
	shipmentMux.HandleFunc("POST /pickups", stub.handler(domain.ShipmentPickup))
	shipments = httptest.NewServer(shipmentMux)
	t.Cleanup(shipments.Close)

	return tax, shipments
}

func TestOrderLifecycle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	logger := discardLogger()

	productsDB, err := DBWithSchema(ctx, pg.ConnStr, "products")
	if err != nil {
		t.Fatalf("failed to create products DB: %v", err)
	}
	defer func() { _ = productsDB.Close() }()

	productRepo := products.NewProductRepository(productsDB)
	productsMux := http.NewServeMux()
	products.NewHandler(productRepo, logger).Register(productsMux)
	productsServer := httptest.NewServer(productsMux)
	defer productsServer.Close()

	ordersDB, err := DBWithSchema(ctx, pg.ConnStr, "orders")
	if err != nil {
		t.Fatalf("failed to create orders DB: %v", err)
	}
	defer func() { _ = ordersDB.Close() }()

	taxServer, shipmentServer := newCollaborators(t)
	service, err := orders.NewService(orders.Deps{
		Store:     orders.NewOrderRepository(ordersDB),
		Products:  clients.NewProductClient(productsServer.URL, productsServer.Client()),
		Tax:       clients.NewTaxClient(taxServer.URL, taxServer.Client()),
		Shipments: clients.NewShipmentClient(shipmentServer.URL, shipmentServer.Client()),
		Logger:    logger,
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	ordersMux := http.NewServeMux()
	orders.NewHandler(service, logger).Register(ordersMux)
	ordersServer := httptest.NewServer(ordersMux)
	defer ordersServer.Close()

	resp, err := http.Post(ordersServer.URL+"/orders", "application/json", strings.NewReader(
		`{"placed_by":"cust-1","shipping_address":{"name":"Aino","line1":"Esplanadi 1","city":"Helsinki","country":"FI","postal_code":"00130"},`+
			`"items":[{"product_id":"ITEM-001","quantity":3},{"product_id":"ITEM-002","quantity":2}]}`))
	if err != nil {
		t.Fatalf("failed to create order: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, resp.StatusCode, body)
	}
	var created domain.Order
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode order: %v", err)
	}
	if !created.GrossPrice.Equal(decimal.NewFromInt(29)) {
		t.Fatalf("expected gross price 29, got %s", created.GrossPrice)
	}

	mug, err := productRepo.Get(ctx, "ITEM-001")
	if err != nil {
		t.Fatalf("failed to get product: %v", err)
	}
	if mug.Inventory != 97 {
		t.Errorf("expected inventory 97, got %d", mug.Inventory)
	}

	shipments := worker.NewShipmentHandler(clients.NewOrdersClient(ordersServer.URL, ordersServer.Client()), logger)
	notify := func(n domain.ShipmentNotification) {
		t.Helper()
		payload, err := json.Marshal(n)
		if err != nil {
			t.Fatalf("failed to marshal notification: %v", err)
		}
		if err := shipments.Handle(ctx, messaging.Message{Key: created.ID, Type: n.EventType(), Payload: payload}); err != nil {
			t.Fatalf("failed to handle %s notification: %v", n.Status, err)
		}
	}

	notify(domain.ShipmentNotification{ShipmentID: "shipment-1", OrderID: created.ID, Status: domain.ShipmentDelivered,
		Items: []domain.ItemQuantity{{ProductID: "ITEM-001", Quantity: 3}, {ProductID: "ITEM-002", Quantity: 2}}})

	if _, err := service.UpdatePaymentStatus(ctx, created.ID, domain.PaymentPaid); err != nil {
		t.Fatalf("failed to record payment: %v", err)
	}
	if _, err := service.ReturnOrder(ctx, created.ID, orders.ReturnRequest{All: true}); err != nil {
		t.Fatalf("failed to schedule return: %v", err)
	}

	notify(domain.ShipmentNotification{ShipmentID: "shipment-2", OrderID: created.ID, Status: domain.ShipmentReturned,
		Items: []domain.ItemQuantity{{ProductID: "ITEM-001", Quantity: 3}, {ProductID: "ITEM-002", Quantity: 2}}})

	refund, err := service.RefundOrder(ctx, created.ID, orders.RefundRequest{Reason: "wrong colour", All: true})
	if err != nil {
		t.Fatalf("failed to refund: %v", err)
	}
	if refund.Amount.String() != "29.00 USD" {
		t.Errorf("expected refund of 29.00 USD, got %s", refund.Amount)
	}

	final, err := service.GetOrder(ctx, created.ID)
	if err != nil {
		t.Fatalf("failed to get order: %v", err)
	}
	if final.PaymentStatus != domain.PaymentRefunded {
		t.Errorf("expected payment status refunded, got %s", final.PaymentStatus)
	}
	if final.Fulfillment != nil {
		t.Errorf("expected no fulfillment status, got %s", *final.Fulfillment)
	}
	for _, li := range final.LineItems {
		if li.Status != nil {
			t.Errorf("expected status of %s to be cleared, got %+v", li.ProductID, li.Status)
		}
	}
	if len(final.Shipments) != 2 {
		t.Errorf("expected 2 recorded shipments, got %v", final.Shipments)
	}

	stored, err := service.GetRefund(ctx, refund.ID)
	if err != nil {
		t.Fatalf("failed to get refund: %v", err)
	}
	if len(stored.Items) != 2 || stored.Reason != "wrong colour" {
		t.Errorf("unexpected stored refund %+v", stored)
	}

	_, err = service.RefundOrder(ctx, created.ID, orders.RefundRequest{Reason: "again", All: true})
	if !errors.Is(err, domain.ErrRefundedOrder) {
		t.Errorf("expected %v, got %v", domain.ErrRefundedOrder, err)
	}
}

func TestOrderCreationWithUnavailableProduct(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	productsDB, err := DBWithSchema(ctx, pg.ConnStr, "products")
	if err != nil {
		t.Fatalf("failed to create products DB: %v", err)
	}
	defer func() { _ = productsDB.Close() }()
	ordersDB, err := DBWithSchema(ctx, pg.ConnStr, "orders")
	if err != nil {
		t.Fatalf("failed to create orders DB: %v", err)
	}
	defer func() { _ = ordersDB.Close() }()

	productRepo := products.NewProductRepository(productsDB)
	productsMux := http.NewServeMux()
	products.NewHandler(productRepo, discardLogger()).Register(productsMux)
	productsServer := httptest.NewServer(productsMux)
	defer productsServer.Close()

	taxServer, shipmentServer := newCollaborators(t)
	store := orders.NewOrderRepository(ordersDB)
	service, err := orders.NewService(orders.Deps{
		Store:     store,
		Products:  clients.NewProductClient(productsServer.URL, productsServer.Client()),
		Tax:       clients.NewTaxClient(taxServer.URL, taxServer.Client()),
		Shipments: clients.NewShipmentClient(shipmentServer.URL, shipmentServer.Client()),
		Logger:    discardLogger(),
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	_, err = service.CreateOrder(ctx, orders.CreateOrderInput{
		PlacedBy: "cust-1",
		Items:    []domain.ItemQuantity{{ProductID: "ITEM-004", Quantity: 3}, {ProductID: "ITEM-004", Quantity: 3}},
	})
	if !errors.Is(err, domain.ErrProductUnavailable) {
		t.Fatalf("expected %v, got %v", domain.ErrProductUnavailable, err)
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("failed to list orders: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("expected no orders, got %d", len(list))
	}
	bucket, err := productRepo.Get(ctx, "ITEM-004")
	if err != nil {
		t.Fatalf("failed to get product: %v", err)
	}
	if bucket.Inventory != 5 {
		t.Errorf("expected inventory 5, got %d", bucket.Inventory)
	}

	if _, err := productRepo.Adjust(ctx, "ITEM-005", -1); !errors.Is(err, products.ErrInsufficientStock) {
		t.Errorf("expected %v, got %v", products.ErrInsufficientStock, err)
	}
}

func TestOrderRepository(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	ordersDB, err := DBWithSchema(ctx, pg.ConnStr, "orders")
	if err != nil {
		t.Fatalf("failed to create orders DB: %v", err)
	}
	defer func() { _ = ordersDB.Close() }()

	repo := orders.NewOrderRepository(ordersDB)
	now := time.Now().UTC().Truncate(time.Millisecond)
	order := &domain.Order{
		ID:            "order-1",
		PlacedBy:      "cust-1",
		CreatedOn:     now,
		UpdatedAt:     now,
		Currency:      domain.CurrencyUSD,
		NetPrice:      decimal.NewFromInt(13),
		TotalTax:      decimal.Zero,
		GrossPrice:    decimal.NewFromInt(13),
		TotalWeight:   domain.Weight{Value: decimal.NewFromInt(550), Unit: domain.Gram},
		PaymentStatus: domain.PaymentPaid,
		Refunds:       []string{},
		Shipments:     map[string]domain.ShipmentStatus{"shipment-1": domain.ShipmentDelivered},
		LineItems: []domain.OrderLineItem{
			{ProductID: "ITEM-001", Quantity: 1, Status: &domain.QuantityStatus{RefundableQuantity: 1}},
			{ProductID: "ITEM-002", Quantity: 1, Status: &domain.QuantityStatus{FulfilledQuantity: 1}},
		},
	}
	if err := repo.Create(ctx, order); err != nil {
		t.Fatalf("failed to create order: %v", err)
	}

	t.Run("round trips line item statuses", func(t *testing.T) {
		got, err := repo.Get(ctx, "order-1")
		if err != nil {
			t.Fatalf("failed to get order: %v", err)
		}
		if len(got.LineItems) != 2 {
			t.Fatalf("expected 2 line items, got %d", len(got.LineItems))
		}
		li, _ := got.LineItem("ITEM-001")
		if li.Status == nil || li.Status.RefundableQuantity != 1 {
			t.Errorf("expected refundable 1, got %+v", li.Status)
		}
		if got.Shipments["shipment-1"] != domain.ShipmentDelivered {
			t.Errorf("expected delivered shipment, got %v", got.Shipments)
		}
		if !got.GrossPrice.Equal(decimal.NewFromInt(13)) {
			t.Errorf("expected gross price 13, got %s", got.GrossPrice)
		}
	})

	t.Run("rejects stale versions", func(t *testing.T) {
		first, _ := repo.Get(ctx, "order-1")
		second, _ := repo.Get(ctx, "order-1")

		first.PaymentStatus = domain.PaymentPartialRefund
		if err := repo.Update(ctx, first); err != nil {
			t.Fatalf("failed to update: %v", err)
		}
		if err := repo.Update(ctx, second); !errors.Is(err, domain.ErrConflict) {
			t.Errorf("expected %v, got %v", domain.ErrConflict, err)
		}
	})

	t.Run("keeps refunds in the order they were issued", func(t *testing.T) {
		// ids sort against issue order and share a timestamp
		for _, id := range []string{"refund-z", "refund-a"} {
			current, _ := repo.Get(ctx, "order-1")
			current.Refunds = append(current.Refunds, id)
			refund := &domain.Refund{ID: id, CreatedOn: now, OrderID: "order-1", Reason: "damaged",
				Items: []domain.ItemQuantity{{ProductID: "ITEM-002", Quantity: 1}}, Amount: domain.NewPrice("10", domain.CurrencyUSD)}
			if err := repo.SaveRefund(ctx, current, refund); err != nil {
				t.Fatalf("failed to save %s: %v", id, err)
			}
		}

		got, _ := repo.Get(ctx, "order-1")
		if len(got.Refunds) != 2 || got.Refunds[0] != "refund-z" || got.Refunds[1] != "refund-a" {
			t.Errorf("expected [refund-z refund-a], got %v", got.Refunds)
		}
		listed, _ := repo.List(ctx)
		if len(listed) != 1 || len(listed[0].Refunds) != 2 || listed[0].Refunds[0] != "refund-z" {
			t.Errorf("expected listed refunds [refund-z refund-a], got %+v", listed)
		}
	})

	t.Run("refunds outlive their order", func(t *testing.T) {
		current, _ := repo.Get(ctx, "order-1")
		refund := &domain.Refund{
			ID:        "refund-1",
			CreatedOn: now,
			OrderID:   "order-1",
			Reason:    "damaged",
			Items:     []domain.ItemQuantity{{ProductID: "ITEM-001", Quantity: 1}},
			Amount:    domain.NewPrice("3", domain.CurrencyUSD),
		}
		current.LineItems[0].Status = nil
		current.Refunds = append(current.Refunds, refund.ID)
		if err := repo.SaveRefund(ctx, current, refund); err != nil {
			t.Fatalf("failed to save refund: %v", err)
		}

		if err := repo.Delete(ctx, "order-1"); err != nil {
			t.Fatalf("failed to delete order: %v", err)
		}
		if _, err := repo.Get(ctx, "order-1"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected %v, got %v", domain.ErrNotFound, err)
		}

		got, err := repo.GetRefund(ctx, "refund-1")
		if err != nil {
			t.Fatalf("failed to get refund: %v", err)
		}
		if got.Amount.String() != "3.00 USD" {
			t.Errorf("expected 3.00 USD, got %s", got.Amount)
		}
	})
}

type accountsStub map[string]domain.Account

func (a accountsStub) GetAccount(_ context.Context, id string) (domain.Account, error) {
	account, ok := a[id]
	if !ok {
		return domain.Account{}, &domain.Error{Kind: domain.ErrNotFound, Detail: "account " + id}
	}
	return account, nil
}

func TestOrderEventsNotifyCustomers(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	brokers, cleanup := SetupKafka(ctx, t)
	defer cleanup()

	logger := discardLogger()
	const topic = "order.events"

	producer := messaging.NewProducer(brokers, topic)
	defer func() { _ = producer.Close() }()

	events := []any{
		domain.ShipmentNotification{ShipmentID: "shipment-1", OrderID: "order-1", Status: domain.ShipmentShipping},
		domain.OrderEvent{Type: domain.OrderCreated, OrderID: "order-1", CustomerID: "cust-1",
			Items: []domain.ItemQuantity{{ProductID: "ITEM-001", Quantity: 2}}},
		domain.OrderEvent{Type: domain.OrderCreated, OrderID: "order-2", CustomerID: "stranger"},
		domain.OrderEvent{Type: domain.OrderCancelled, OrderID: "order-1", CustomerID: "cust-1"},
	}
	for _, event := range events {
		if err := producer.Publish(ctx, "order-1", event); err != nil {
			t.Fatalf("failed to publish: %v", err)
		}
	}

	outbox := email.NewOutbox(10, logger)
	router := messaging.NewRouter(logger)
	worker.NewNotificationHandler(accountsStub{"cust-1": {ID: "cust-1", Name: "Aino", Email: "aino@example.com"}}, outbox, logger).
		Register(router)

	consumeCtx, stop := context.WithCancel(ctx)
	defer stop()
	consumer := messaging.NewConsumer(brokers, topic, "notifications-test", messaging.WithStartOffset(kafka.FirstOffset))
	defer func() { _ = consumer.Close() }()

	done := make(chan error, 1)
	go func() {
		done <- consumer.Consume(consumeCtx, func(ctx context.Context, msg messaging.Message) error {
			if err := router.Handle(ctx, msg); err != nil {
				return err
			}
			if msg.Type == string(domain.OrderCancelled) {
				stop()
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Fatalf("consumer failed: %v", err)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for order events")
	}

	sent := outbox.Sent()
	if len(sent) != 2 {
		t.Fatalf("expected 2 emails, got %d: %+v", len(sent), sent)
	}
	if sent[0].Subject != "Order Confirmation: order-1" {
		t.Errorf("expected confirmation subject, got %q", sent[0].Subject)
	}
	if !strings.Contains(sent[0].Body, "2 items") {
		t.Errorf("expected body to mention 2 items, got %q", sent[0].Body)
	}
	if sent[1].Subject != "Order Cancelled: order-1" || sent[1].To != "aino@example.com" {
		t.Errorf("unexpected cancellation mail %+v", sent[1])
	}
}
