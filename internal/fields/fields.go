// Package fields maps field keys to editable controls. Resolve is a pure
// lookup in a single dispatch table; Apply writes an edit back into the
// draft. Keys the table does not know resolve to KindNone.
package fields

import (
	"context"
	"encoding/json"
	"maps"
	"slices"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/matthewbaird/assetdesk/internal/domain"
	"github.com/matthewbaird/assetdesk/internal/history"
	"github.com/matthewbaird/assetdesk/internal/layout"
	"github.com/matthewbaird/assetdesk/internal/rates"
)

// Kind is the tag of a Control.
type Kind string

const (
	KindText            Kind = "text"
	KindTextarea        Kind = "textarea"
	KindNumber          Kind = "number"
	KindDate            Kind = "date"
	KindEmail           Kind = "email"
	KindSelect          Kind = "select"
	KindRadioGroup      Kind = "radio-group"
	KindMultiSelect     Kind = "multi-select"
	KindUserPicker      Kind = "user-picker"
	KindMultiUserPicker Kind = "multi-user-picker"
	KindCurrency        Kind = "currency"
	KindComputed        Kind = "computed-readonly"
	KindVariants        Kind = "variants"
	KindHistory         Kind = "history"
	KindImage           Kind = "image"
	KindNone            Kind = "none"
)

var (
	// ErrNotApplicable is returned when a key has no meaning for the draft.
	ErrNotApplicable = errors.New("field does not apply to this record")
	// ErrReadOnly is returned when editing a computed field.
	ErrReadOnly = errors.New("field is read-only")
	// ErrInvalidValue is returned when an edit cannot be decoded or is out
	// of the field's domain.
	ErrInvalidValue = errors.New("invalid field value")
)

// Option is one choice of a select, radio group or picker.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// CurrencyView is the state shown by the currency tool.
type CurrencyView struct {
	Currency       string          `json:"currency"`
	OriginalAmount decimal.Decimal `json:"original_amount"`
	RateDate       string          `json:"rate_date,omitempty"`
	Cost           decimal.Decimal `json:"cost"`
	BaseCurrency   string          `json:"base_currency"`
}

// Control is the serialisable description of one rendered field.
type Control struct {
	Key      string           `json:"key"`
	Kind     Kind             `json:"kind"`
	Label    string           `json:"label,omitempty"`
	Required bool             `json:"required,omitempty"`
	ReadOnly bool             `json:"read_only,omitempty"`
	Value    any              `json:"value,omitempty"`
	Options  []Option         `json:"options,omitempty"`
	Currency *CurrencyView    `json:"currency,omitempty"`
	History  *history.Log     `json:"history,omitempty"`
	Variants []domain.Variant `json:"variants,omitempty"`
}

// Visible reports whether the control renders anything.
func (c Control) Visible() bool { return c.Kind != KindNone }

// Draft is the record being edited. Exactly one member is set.
type Draft struct {
	Family *domain.AssetFamily `json:"family,omitempty"`
	Asset  *domain.Asset       `json:"asset,omitempty"`
	User   *domain.User        `json:"user,omitempty"`
}

// Clone returns a deep copy of the draft.
func (d Draft) Clone() Draft {
	var out Draft
	if d.Family != nil {
		f := d.Family.Clone()
		out.Family = &f
	}
	if d.Asset != nil {
		a := d.Asset.Clone()
		out.Asset = &a
	}
	if d.User != nil {
		u := d.User.Clone()
		out.User = &u
	}
	return out
}

// Env is the read-only context a draft is resolved against.
type Env struct {
	Context layout.Context
	// Family owns the asset being edited; nil for family and user drafts.
	Family       *domain.AssetFamily
	Users        []domain.User
	Categories   []string
	Vendors      []string
	Sites        []string
	Departments  []string
	BaseCurrency string
	// Rates is used by Apply only; Resolve never performs lookups.
	Rates rates.Provider
}

func (e Env) assignmentModel() domain.AssignmentModel {
	if e.Family != nil && e.Family.AssignmentModel != "" {
		return e.Family.AssignmentModel
	}
	return domain.AssignmentSingle
}

type entry struct {
	resolve func(key string, d *Draft, env Env) Control
	// apply is nil for read-only fields.
	apply func(ctx context.Context, key string, d *Draft, env Env, raw json.RawMessage) error
}

// Resolve returns the control for key bound to d. It does not modify d and
// returns equal controls for equal inputs.
func Resolve(key string, d Draft, env Env) Control {
	e, ok := registry[key]
	if !ok {
		return none(key)
	}
	c := e.resolve(key, &d, env)
	c.Key = key
	if c.Kind != KindNone && c.Label == "" {
		c.Label = Label(key)
	}
	return c
}

// Apply decodes raw and writes it into d under key.
func Apply(ctx context.Context, key string, d *Draft, env Env, raw json.RawMessage) error {
	e, ok := registry[key]
	if !ok {
		return errors.Wrapf(ErrNotApplicable, "unknown field %q", key)
	}
	if !e.resolve(key, d, env).Visible() {
		return errors.Wrapf(ErrNotApplicable, "field %q", key)
	}
	if e.apply == nil {
		return errors.Wrapf(ErrReadOnly, "field %q", key)
	}
	return e.apply(ctx, key, d, env, raw)
}

// Keys lists every key the registry knows, sorted.
func Keys() []string {
	return slices.Sorted(maps.Keys(registry))
}

func none(key string) Control { return Control{Key: key, Kind: KindNone} }

func decode[T any](key string, raw json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, errors.Wrapf(ErrInvalidValue, "%s: %v", key, err)
	}
	return v, nil
}
