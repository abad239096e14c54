package fields

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/matthewbaird/assetdesk/internal/domain"
	"github.com/matthewbaird/assetdesk/internal/rates"
)

func (e Env) baseCurrency() string {
	if e.BaseCurrency == "" {
		return "USD"
	}
	return e.BaseCurrency
}

// resolveCurrency shows the side-state kept by the currency tool. An asset
// whose cost was entered directly reads as an amount in the base currency.
func resolveCurrency(key string, d *Draft, env Env) Control {
	if d.Asset == nil {
		return none(key)
	}
	view := &CurrencyView{
		Currency:       env.baseCurrency(),
		OriginalAmount: d.Asset.Cost,
		Cost:           d.Asset.Cost,
		BaseCurrency:   env.baseCurrency(),
	}
	if cs := d.Asset.Currency; cs != nil {
		view.Currency = cs.Currency
		view.OriginalAmount = cs.OriginalAmount
		view.RateDate = cs.RateDate
	}
	return Control{Kind: KindCurrency, Currency: view}
}

type currencyInput struct {
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
	Date     string          `json:"date,omitempty"`
}

// applyCurrency records the amount as entered and derives the normalised
// cost through the rate provider. The rate date defaults to the purchase
// date, then to today.
func applyCurrency(ctx context.Context, key string, d *Draft, env Env, raw json.RawMessage) error {
	in, err := decode[currencyInput](key, raw)
	if err != nil {
		return err
	}
	code, err := rates.Normalize(in.Currency)
	if err != nil {
		return errors.Wrapf(ErrInvalidValue, "%s: %v", key, err)
	}
	date := in.Date
	if date == "" {
		date = d.Asset.PurchaseDate
	}
	if date == "" {
		date = domain.Today(time.Now())
	}
	if _, err := time.Parse(domain.DateLayout, date); err != nil {
		return errors.Wrapf(ErrInvalidValue, "%s: want YYYY-MM-DD", key)
	}

	provider := env.Rates
	if provider == nil {
		provider = rates.NewMockProvider(env.baseCurrency())
	}
	cost, err := rates.Convert(ctx, provider, in.Amount, code, date)
	if err != nil {
		return err
	}
	d.Asset.Cost = cost
	d.Asset.Currency = &domain.CurrencyState{
		Currency:       code,
		OriginalAmount: in.Amount,
		RateDate:       date,
	}
	return nil
}
