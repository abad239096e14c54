// Package rates converts amounts entered in a foreign currency into the
// base currency used for asset costs.
package rates

import (
	"context"
	"hash/fnv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// ErrUnknownCurrency is returned for codes that are not ISO 4217.
var ErrUnknownCurrency = errors.New("unknown currency")

// Provider returns how many units of base currency one unit of cur was
// worth on date (YYYY-MM-DD).
type Provider interface {
	Rate(ctx context.Context, cur, date string) (decimal.Decimal, error)
}

// Normalize validates code and returns its canonical upper-case form.
func Normalize(code string) (string, error) {
	u, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		return "", errors.Wrapf(ErrUnknownCurrency, "%q", code)
	}
	return u.String(), nil
}

// Convert expresses amount in the base currency, rounded to cents.
func Convert(ctx context.Context, p Provider, amount decimal.Decimal, cur, date string) (decimal.Decimal, error) {
	code, err := Normalize(cur)
	if err != nil {
		return decimal.Zero, err
	}
	rate, err := p.Rate(ctx, code, date)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "rate for %s on %s", code, date)
	}
	return amount.Mul(rate).Round(2), nil
}

// MockProvider derives a stable rate from (currency, date) without any
// lookup. Useful offline and in tests; it is not a market rate.
type MockProvider struct {
	Base string
}

var mockAnchors = map[string]string{
	"USD": "1", "EUR": "1.08", "GBP": "1.27", "CHF": "1.12", "JPY": "0.0067",
	"CAD": "0.74", "AUD": "0.66", "SEK": "0.095", "NOK": "0.094", "DKK": "0.145",
	"INR": "0.012", "CNY": "0.14",
}

// NewMockProvider returns a MockProvider quoting in base.
func NewMockProvider(base string) *MockProvider {
	if base == "" {
		base = "USD"
	}
	return &MockProvider{Base: strings.ToUpper(base)}
}

func (m *MockProvider) Rate(_ context.Context, cur, date string) (decimal.Decimal, error) {
	if cur == m.Base {
		return decimal.NewFromInt(1), nil
	}
	in := m.usd(cur, date)
	base := m.usd(m.Base, date)
	return in.Div(base).Round(6), nil
}

// usd is the mock value of one unit of cur in US dollars on date: a fixed
// anchor nudged by at most ±2% depending on the date.
func (m *MockProvider) usd(cur, date string) decimal.Decimal {
	anchor, ok := mockAnchors[cur]
	if !ok {
		anchor = "1"
	}
	d := decimal.RequireFromString(anchor)
	if cur == "USD" {
		return d
	}
	h := fnv.New32a()
	h.Write([]byte(cur + "|" + date))
	// 0..400 basis points mapped onto -2%..+2%
	bp := int64(h.Sum32()%401) - 200
	return d.Mul(decimal.NewFromInt(10000 + bp)).Div(decimal.NewFromInt(10000))
}
