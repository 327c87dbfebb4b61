package orders

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/kauppa/kauppa-sub000/internal/domain"
)

// OrderRepository is the postgres Store. It expects search_path to point at
// the orders schema.
type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `id, placed_by, currency, net_price, total_tax, gross_price, total_weight, total_weight_unit,
	payment_status, fulfillment, cancelled_at, shipping_address, billing_address, discounts, shipments,
	version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		order                          domain.Order
		fulfillment                    sql.NullString
		cancelledAt                    sql.NullTime
		shipping, billing              []byte
		discounts, shipments           []byte
		weightUnit                     string
		netPrice, totalTax, grossPrice decimal.Decimal
	)
	err := row.Scan(&order.ID, &order.PlacedBy, &order.Currency, &netPrice, &totalTax, &grossPrice,
		&order.TotalWeight.Value, &weightUnit, &order.PaymentStatus, &fulfillment, &cancelledAt,
		&shipping, &billing, &discounts, &shipments, &order.Version, &order.CreatedOn, &order.UpdatedAt)
	if err != nil {
		return nil, err
	}
	order.NetPrice, order.TotalTax, order.GrossPrice = netPrice, totalTax, grossPrice
	order.TotalWeight.Unit = domain.WeightUnit(weightUnit)
	if fulfillment.Valid {
		f := domain.FulfillmentStatus(fulfillment.String)
		order.Fulfillment = &f
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time
		order.CancelledAt = &t
	}
	for _, field := range []struct {
		raw  []byte
		dest any
	}{
		{shipping, &order.ShippingAddress},
		{billing, &order.BillingAddress},
		{discounts, &order.Discounts},
		{shipments, &order.Shipments},
	} {
		if len(field.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(field.raw, field.dest); err != nil {
			return nil, fmt.Errorf("decode order %s: %w", order.ID, err)
		}
	}
	if order.Shipments == nil {
		order.Shipments = make(map[string]domain.ShipmentStatus)
	}
	order.Refunds = []string{}
	return &order, nil
}

func marshalJSON(values ...any) ([][]byte, error) {
	out := make([][]byte, len(values))
	for i, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		out[i] = data
	}
	return out, nil
}

func nullFulfillment(f *domain.FulfillmentStatus) sql.NullString {
	if f == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*f), Valid: true}
}

func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	docs, err := marshalJSON(order.ShippingAddress, order.BillingAddress, order.Discounts, order.Shipments)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, 1, $16, $17)
	`, order.ID, order.PlacedBy, order.Currency, order.NetPrice, order.TotalTax, order.GrossPrice,
		order.TotalWeight.Value, order.TotalWeight.Unit, order.PaymentStatus, nullFulfillment(order.Fulfillment),
		order.CancelledAt, docs[0], docs[1], docs[2], docs[3], order.CreatedOn, order.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return &domain.Error{Kind: domain.ErrConflict, Detail: "order " + order.ID + " already exists"}
		}
		return err
	}

	for position, item := range order.LineItems {
		fulfilled, pickup, refundable, fulfillment := statusColumns(item.Status)
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, position, item_id, quantity, fulfilled, pickup, refundable, fulfillment)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, order.ID, position, item.ProductID, item.Quantity, fulfilled, pickup, refundable, fulfillment)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	order.Version = 1
	return nil
}

func statusColumns(s *domain.QuantityStatus) (fulfilled, pickup, refundable sql.NullInt64, fulfillment sql.NullString) {
	if s == nil {
		return
	}
	fulfilled = sql.NullInt64{Int64: int64(s.FulfilledQuantity), Valid: true}
	pickup = sql.NullInt64{Int64: int64(s.PickupQuantity), Valid: true}
	refundable = sql.NullInt64{Int64: int64(s.RefundableQuantity), Valid: true}
	fulfillment = nullFulfillment(s.Fulfillment)
	return
}

func scanLineItem(row rowScanner, orderID *string) (domain.OrderLineItem, error) {
	var (
		item                          domain.OrderLineItem
		fulfilled, pickup, refundable sql.NullInt64
		fulfillment                   sql.NullString
	)
	dest := []any{&item.ProductID, &item.Quantity, &fulfilled, &pickup, &refundable, &fulfillment}
	if orderID != nil {
		dest = append([]any{orderID}, dest...)
	}
	if err := row.Scan(dest...); err != nil {
		return item, err
	}
	if fulfilled.Valid {
		item.Status = &domain.QuantityStatus{
			FulfilledQuantity:  int(fulfilled.Int64),
			PickupQuantity:     int(pickup.Int64),
			RefundableQuantity: int(refundable.Int64),
		}
		if fulfillment.Valid {
			item.Status.MarkPartial()
		}
	}
	return item, nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.Error{Kind: domain.ErrNotFound, Detail: "order " + id}
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT item_id, quantity, fulfilled, pickup, refundable, fulfillment
		FROM order_items
		WHERE order_id = $1
		ORDER BY position
	`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		item, err := scanLineItem(rows, nil)
		if err != nil {
			return nil, err
		}
		order.LineItems = append(order.LineItems, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	refundRows, err := r.db.QueryContext(ctx, `
		SELECT id FROM refunds WHERE order_id = $1 ORDER BY position
	`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = refundRows.Close() }()

	for refundRows.Next() {
		var refundID string
		if err := refundRows.Scan(&refundID); err != nil {
			return nil, err
		}
		order.Refunds = append(order.Refunds, refundID)
	}

	return order, refundRows.Err()
}

func (r *OrderRepository) List(ctx context.Context) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		order.LineItems = []domain.OrderLineItem{}
		orderMap[order.ID] = order
		orderIDs = append(orderIDs, order.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	itemRows, err := r.db.QueryContext(ctx, `
		SELECT order_id, item_id, quantity, fulfilled, pickup, refundable, fulfillment
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = itemRows.Close() }()

	for itemRows.Next() {
		var orderID string
		item, err := scanLineItem(itemRows, &orderID)
		if err != nil {
			return nil, err
		}
		order := orderMap[orderID]
		order.LineItems = append(order.LineItems, item)
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	refundRows, err := r.db.QueryContext(ctx, `
		SELECT order_id, id FROM refunds WHERE order_id = ANY($1) ORDER BY order_id, position
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = refundRows.Close() }()

	for refundRows.Next() {
		var orderID, refundID string
		if err := refundRows.Scan(&orderID, &refundID); err != nil {
			return nil, err
		}
		orderMap[orderID].Refunds = append(orderMap[orderID].Refunds, refundID)
	}
	if err := refundRows.Err(); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}
	return orders, nil
}

func (r *OrderRepository) Update(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := r.updateTx(ctx, tx, order); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	order.Version++
	return nil
}

func (r *OrderRepository) updateTx(ctx context.Context, tx *sql.Tx, order *domain.Order) error {
	docs, err := marshalJSON(order.Discounts, order.Shipments)
	if err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET payment_status = $3, fulfillment = $4, cancelled_at = $5, discounts = $6, shipments = $7,
			updated_at = $8, version = version + 1
		WHERE id = $1 AND version = $2
	`, order.ID, order.Version, order.PaymentStatus, nullFulfillment(order.Fulfillment), order.CancelledAt,
		docs[0], docs[1], order.UpdatedAt)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, order.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return &domain.Error{Kind: domain.ErrNotFound, Detail: "order " + order.ID}
		}
		return &domain.Error{Kind: domain.ErrConflict, Detail: "order " + order.ID}
	}

	for _, item := range order.LineItems {
		fulfilled, pickup, refundable, fulfillment := statusColumns(item.Status)
		_, err = tx.ExecContext(ctx, `
			UPDATE order_items
			SET fulfilled = $3, pickup = $4, refundable = $5, fulfillment = $6
			WHERE order_id = $1 AND item_id = $2
		`, order.ID, item.ProductID, fulfilled, pickup, refundable, fulfillment)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return &domain.Error{Kind: domain.ErrNotFound, Detail: "order " + id}
	}
	return nil
}

func (r *OrderRepository) SaveRefund(ctx context.Context, order *domain.Order, refund *domain.Refund) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	items, err := json.Marshal(refund.Items)
	if err != nil {
		return err
	}
	position := slices.Index(order.Refunds, refund.ID)
	if position < 0 {
		position = len(order.Refunds)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO refunds (id, order_id, position, reason, items, amount, currency, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, refund.ID, refund.OrderID, position, refund.Reason, items, refund.Amount.Value, refund.Amount.Currency, refund.CreatedOn)
	if err != nil {
		return err
	}

	if err := r.updateTx(ctx, tx, order); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	order.Version++
	return nil
}

func (r *OrderRepository) GetRefund(ctx context.Context, id string) (*domain.Refund, error) {
	var (
		refund domain.Refund
		items  []byte
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, order_id, reason, items, amount, currency, created_at
		FROM refunds
		WHERE id = $1
	`, id).Scan(&refund.ID, &refund.OrderID, &refund.Reason, &items, &refund.Amount.Value, &refund.Amount.Currency, &refund.CreatedOn)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.Error{Kind: domain.ErrNotFound, Detail: "refund " + id}
		}
		return nil, err
	}
	if err := json.Unmarshal(items, &refund.Items); err != nil {
		return nil, fmt.Errorf("decode refund %s: %w", id, err)
	}
	return &refund, nil
}
