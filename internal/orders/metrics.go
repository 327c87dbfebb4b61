package orders

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/kauppa/kauppa-sub000/internal/domain"
)

var tracer = otel.Tracer("orders")

type engineMetrics struct {
	ordersCreated metric.Int64Counter
	refunds       metric.Int64Counter
	refundAmount  metric.Float64Counter
	failures      metric.Int64Counter
}

func newEngineMetrics(meter metric.Meter) (*engineMetrics, error) {
	ordersCreated, err := meter.Int64Counter("orders.created",
		metric.WithDescription("Orders placed"))
	if err != nil {
		return nil, err
	}
	refunds, err := meter.Int64Counter("orders.refunds",
		metric.WithDescription("Refunds issued"))
	if err != nil {
		return nil, err
	}
	refundAmount, err := meter.Float64Counter("orders.refund.amount",
		metric.WithDescription("Refunded amount by currency"))
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter("orders.operation.failures",
		metric.WithDescription("Engine operations rejected, by operation and error kind"))
	if err != nil {
		return nil, err
	}
	return &engineMetrics{
		ordersCreated: ordersCreated,
		refunds:       refunds,
		refundAmount:  refundAmount,
		failures:      failures,
	}, nil
}

func (m *engineMetrics) recordFailure(ctx context.Context, operation string, err error) {
	m.failures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("kind", domain.KindOf(err)),
	))
}

func (m *engineMetrics) recordRefund(ctx context.Context, refund *domain.Refund) {
	attrs := metric.WithAttributes(attribute.String("currency", string(refund.Amount.Currency)))
	m.refunds.Add(ctx, 1, attrs)
	m.refundAmount.Add(ctx, refund.Amount.Value.InexactFloat64(), attrs)
}
