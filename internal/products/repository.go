package products

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/kauppa/kauppa-sub000/internal/domain"
)

var ErrInsufficientStock = errors.New("insufficient stock")

// Repository is the storage behind the products service.
type Repository interface {
	List(ctx context.Context) ([]domain.Product, error)
	Get(ctx context.Context, id string) (*domain.Product, error)
	Create(ctx context.Context, product *domain.Product) error
	Adjust(ctx context.Context, id string, delta int) (*domain.Product, error)
}

// ProductRepository expects search_path to point at the products schema.
type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

const productColumns = `id, title, price, currency, category, weight, weight_unit, inventory, description`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var (
		product     domain.Product
		price       decimal.Decimal
		currency    string
		weight      decimal.NullDecimal
		weightUnit  sql.NullString
		category    sql.NullString
		description sql.NullString
	)
	err := row.Scan(&product.ID, &product.Title, &price, &currency, &category, &weight, &weightUnit,
		&product.Inventory, &description)
	if err != nil {
		return nil, err
	}
	product.Price = domain.Price{Value: price, Currency: domain.Currency(currency)}
	product.Category = category.String
	product.Description = description.String
	if weight.Valid {
		product.Weight = &domain.Weight{Value: weight.Decimal, Unit: domain.WeightUnit(weightUnit.String)}
	}
	return &product, nil
}

func (r *ProductRepository) List(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	products := []domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *product)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (r *ProductRepository) Get(ctx context.Context, id string) (*domain.Product, error) {
	product, err := scanProduct(r.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.Error{Kind: domain.ErrNotFound, Detail: "product " + id}
		}
		return nil, err
	}
	return product, nil
}

func (r *ProductRepository) Create(ctx context.Context, product *domain.Product) error {
	var (
		weight     decimal.NullDecimal
		weightUnit sql.NullString
	)
	if product.Weight != nil {
		weight = decimal.NewNullDecimal(product.Weight.Value)
		weightUnit = sql.NullString{String: string(product.Weight.Unit), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, product.ID, product.Title, product.Price.Value, product.Price.Currency, product.Category,
		weight, weightUnit, product.Inventory, product.Description)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return &domain.Error{Kind: domain.ErrConflict, Detail: "product " + product.ID + " already exists"}
		}
		return err
	}
	return nil
}

// Adjust adds delta to the inventory. The update is refused when it would
// leave the inventory negative.
func (r *ProductRepository) Adjust(ctx context.Context, id string, delta int) (*domain.Product, error) {
	product, err := scanProduct(r.db.QueryRowContext(ctx, `
		UPDATE products
		SET inventory = inventory + $2
		WHERE id = $1 AND inventory + $2 >= 0
		RETURNING `+productColumns,
		id, delta))
	if err == nil {
		return product, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	if _, err := r.Get(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrInsufficientStock
}
