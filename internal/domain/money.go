package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyINR Currency = "INR"
)

type Price struct {
	Value    decimal.Decimal `json:"value"`
	Currency Currency        `json:"currency"`
}

func NewPrice(value string, currency Currency) Price {
	return Price{Value: decimal.RequireFromString(value), Currency: currency}
}

func ZeroPrice(currency Currency) Price {
	return Price{Value: decimal.Zero, Currency: currency}
}

func (p Price) IsZero() bool {
	return p.Value.IsZero()
}

// Mul multiplies the price by a unit count.
func (p Price) Mul(quantity int) Price {
	return Price{Value: p.Value.Mul(decimal.NewFromInt(int64(quantity))), Currency: p.Currency}
}

// Add returns p + other. Both operands must share a currency.
func (p Price) Add(other Price) (Price, error) {
	if p.Currency != other.Currency {
		return Price{}, &Error{Kind: ErrAmbiguousCurrencies, Detail: fmt.Sprintf("%s and %s", p.Currency, other.Currency)}
	}
	return Price{Value: p.Value.Add(other.Value), Currency: p.Currency}, nil
}

func (p Price) Round() Price {
	return Price{Value: p.Value.Round(2), Currency: p.Currency}
}

func (p Price) String() string {
	return p.Value.StringFixed(2) + " " + string(p.Currency)
}

type WeightUnit string

const (
	Milligram WeightUnit = "mg"
	Gram      WeightUnit = "g"
	Kilogram  WeightUnit = "kg"
	Pound     WeightUnit = "lb"
	Ounce     WeightUnit = "oz"
)

var milligramsPer = map[WeightUnit]decimal.Decimal{
	Milligram: decimal.NewFromInt(1),
	Gram:      decimal.NewFromInt(1_000),
	Kilogram:  decimal.NewFromInt(1_000_000),
	Pound:     decimal.RequireFromString("453592.37"),
	Ounce:     decimal.RequireFromString("28349.523125"),
}

type Weight struct {
	Value decimal.Decimal `json:"value"`
	Unit  WeightUnit      `json:"unit"`
}

// Milligrams converts the weight to milligrams. Unknown units are treated as grams.
func (w Weight) Milligrams() decimal.Decimal {
	factor, ok := milligramsPer[WeightUnit(strings.ToLower(string(w.Unit)))]
	if !ok {
		factor = milligramsPer[Gram]
	}
	return w.Value.Mul(factor)
}

// WeightCounter accumulates weights in milligrams and reports the total in the
// most readable metric unit.
type WeightCounter struct {
	mg decimal.Decimal
}

func (c *WeightCounter) Add(w Weight, quantity int) {
	c.mg = c.mg.Add(w.Milligrams().Mul(decimal.NewFromInt(int64(quantity))))
}

func (c WeightCounter) Total() Weight {
	kg := milligramsPer[Kilogram]
	g := milligramsPer[Gram]
	switch {
	case c.mg.GreaterThanOrEqual(kg):
		return Weight{Value: c.mg.Div(kg).Round(3), Unit: Kilogram}
	case c.mg.GreaterThanOrEqual(g):
		return Weight{Value: c.mg.Div(g).Round(3), Unit: Gram}
	default:
		return Weight{Value: c.mg.Round(3), Unit: Milligram}
	}
}
