package orders

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/kauppa/kauppa-sub000/internal/domain"
)

func newTestServer(t *testing.T) (*http.ServeMux, *harness) {
	t.Helper()
	h := newHarness(t)
	mux := http.NewServeMux()
	NewHandler(h.service, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(mux)
	return mux, h
}

func serve(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandler_HandleCreate(t *testing.T) {
	t.Run("creates order", func(t *testing.T) {
		mux, _ := newTestServer(t)

		rec := serve(mux, http.MethodPost, "/orders",
			`{"placed_by":"alice","shipping_address":{"country":"FI"},"items":[{"product_id":"mug","quantity":3},{"product_id":"apron","quantity":2}]}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if rec.Header().Get("Content-Type") != "application/json" {
			t.Errorf("expected application/json, got %s", rec.Header().Get("Content-Type"))
		}
		var order domain.Order
		if err := json.NewDecoder(rec.Body).Decode(&order); err != nil {
			t.Fatalf("failed to decode order: %v", err)
		}
		if !order.GrossPrice.Equal(decimal.NewFromInt(29)) {
			t.Errorf("expected gross price 29, got %s", order.GrossPrice)
		}
		if len(order.LineItems) != 2 {
			t.Errorf("expected 2 line items, got %d", len(order.LineItems))
		}
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		mux, _ := newTestServer(t)

		rec := serve(mux, http.MethodPost, "/orders", `{`)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})

	t.Run("reports engine errors with kind and product", func(t *testing.T) {
		mux, _ := newTestServer(t)

		rec := serve(mux, http.MethodPost, "/orders",
			`{"placed_by":"alice","items":[{"product_id":"sauna","quantity":1},{"product_id":"sauna","quantity":1}]}`)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected status 409, got %d", rec.Code)
		}
		var resp errorResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode error: %v", err)
		}
		if resp.Kind != "product_unavailable" {
			t.Errorf("expected kind product_unavailable, got %s", resp.Kind)
		}
		if resp.ProductID != "sauna" || resp.Quantity != 2 {
			t.Errorf("expected sauna x2, got %s x%d", resp.ProductID, resp.Quantity)
		}
	})

	t.Run("unknown references are unprocessable", func(t *testing.T) {
		mux, _ := newTestServer(t)

		for _, body := range []string{
			`{"placed_by":"bob","items":[{"product_id":"mug","quantity":1}]}`,
			`{"placed_by":"alice","coupons":["nope"],"items":[{"product_id":"mug","quantity":1}]}`,
		} {
			rec := serve(mux, http.MethodPost, "/orders", body)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Errorf("expected status 422, got %d: %s", rec.Code, rec.Body.String())
			}
			var resp errorResponse
			_ = json.NewDecoder(rec.Body).Decode(&resp)
			if resp.Kind != "unknown_reference" {
				t.Errorf("expected kind unknown_reference, got %s", resp.Kind)
			}
		}
	})
}

func TestHandler_Lifecycle(t *testing.T) {
	mux, h := newTestServer(t)
	order := h.create(t, items("mug", 3)...)
	base := "/orders/" + order.ID

	steps := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodPost, base + "/shipments", `{"shipment_id":"s1","status":"delivered","items":[{"product_id":"mug","quantity":3}]}`, http.StatusOK},
		{http.MethodPost, base + "/refunds", `{"reason":"broken","all":true}`, http.StatusUnprocessableEntity},
		{http.MethodPatch, base + "/payment", `{"status":"paid"}`, http.StatusOK},
		{http.MethodPost, base + "/returns", `{"all":true}`, http.StatusOK},
		{http.MethodPost, base + "/shipments", `{"shipment_id":"s2","status":"returned","items":[{"product_id":"mug","quantity":3}]}`, http.StatusOK},
		{http.MethodPost, base + "/refunds", `{"reason":"broken","all":true}`, http.StatusCreated},
		{http.MethodPost, base + "/refunds", `{"reason":"broken","all":true}`, http.StatusUnprocessableEntity},
		{http.MethodGet, base, "", http.StatusOK},
	}
	for _, step := range steps {
		rec := serve(mux, step.method, step.path, step.body)
		if rec.Code != step.want {
			t.Fatalf("%s %s: expected status %d, got %d: %s", step.method, step.path, step.want, rec.Code, rec.Body.String())
		}
	}

	stored, _ := h.service.GetOrder(t.Context(), order.ID)
	if stored.PaymentStatus != domain.PaymentRefunded {
		t.Errorf("expected payment status refunded, got %s", stored.PaymentStatus)
	}

	rec := serve(mux, http.MethodGet, "/refunds/"+stored.Refunds[0], "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var refund domain.Refund
	if err := json.NewDecoder(rec.Body).Decode(&refund); err != nil {
		t.Fatalf("failed to decode refund: %v", err)
	}
	if refund.Amount.String() != "9.00 USD" {
		t.Errorf("expected 9.00 USD, got %s", refund.Amount)
	}
}

func TestHandler_Routes(t *testing.T) {
	mux, h := newTestServer(t)
	order := h.create(t, items("mug", 1)...)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"list orders", http.MethodGet, "/orders", "", http.StatusOK},
		{"unknown order", http.MethodGet, "/orders/missing", "", http.StatusNotFound},
		{"unknown refund", http.MethodGet, "/refunds/missing", "", http.StatusNotFound},
		{"invalid payment status", http.MethodPatch, "/orders/" + order.ID + "/payment", `{"status":"refunded"}`, http.StatusBadRequest},
		{"return nothing delivered", http.MethodPost, "/orders/" + order.ID + "/returns", `{"all":true}`, http.StatusUnprocessableEntity},
		{"cancel", http.MethodPost, "/orders/" + order.ID + "/cancel", "", http.StatusOK},
		{"cancel twice", http.MethodPost, "/orders/" + order.ID + "/cancel", "", http.StatusUnprocessableEntity},
		{"delete", http.MethodDelete, "/orders/" + order.ID, "", http.StatusNoContent},
		{"delete twice", http.MethodDelete, "/orders/" + order.ID, "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(mux, tt.method, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Errorf("expected status %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&domain.Error{Kind: domain.ErrNotFound}, http.StatusNotFound},
		{&domain.Error{Kind: domain.ErrConflict}, http.StatusConflict},
		{&domain.Error{Kind: domain.ErrProductUnavailable, ProductID: "mug"}, http.StatusConflict},
		{&domain.Error{Kind: domain.ErrInvalidInput}, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", &domain.Error{Kind: domain.ErrRefundedOrder}), http.StatusUnprocessableEntity},
		{domain.ErrCouponExpired, http.StatusUnprocessableEntity},
		{&domain.Error{Kind: domain.ErrUnknownReference, Detail: "account bob"}, http.StatusUnprocessableEntity},
		{errors.New("connection refused"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, got)
			}
		})
	}
}
