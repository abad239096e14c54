package fields

import (
	"context"
	"encoding/json"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/matthewbaird/assetdesk/internal/domain"
	"github.com/matthewbaird/assetdesk/internal/history"
)

// registry is the single dispatch table from field key to control.
var registry = map[string]entry{
	// Family.
	"name":            text(KindText, true, familyStr(func(f *domain.AssetFamily) *string { return &f.Name })),
	"productCode":     text(KindText, true, familyStr(func(f *domain.AssetFamily) *string { return &f.ProductCode })),
	"category":        choice(KindSelect, false, false, familyStr(func(f *domain.AssetFamily) *string { return &f.Category }), envOptions(func(e Env) []string { return e.Categories })),
	"vendor":          choice(KindSelect, false, false, licenseFamilyStr(func(f *domain.AssetFamily) *string { return &f.Vendor }), envOptions(func(e Env) []string { return e.Vendors })),
	"manufacturer":    text(KindText, false, familyStr(func(f *domain.AssetFamily) *string { return &f.Manufacturer })),
	"description":     text(KindTextarea, false, familyStr(func(f *domain.AssetFamily) *string { return &f.Description })),
	"assignmentModel": choice(KindRadioGroup, true, true, familyStr(func(f *domain.AssetFamily) *string { return (*string)(&f.AssignmentModel) }), fixedOptions(string(domain.AssignmentSingle), string(domain.AssignmentMultiple))),
	"imageUrl":        text(KindImage, false, familyStr(func(f *domain.AssetFamily) *string { return &f.ImageURL })),
	"totalUnits":      {resolve: resolveTotalUnits},
	"variants":        {resolve: resolveVariants, apply: applyVariants},

	// Asset.
	"assetId":      {resolve: resolveAssetID},
	"title":        text(KindText, false, assetStr(func(a *domain.Asset) *string { return &a.Title })),
	"status":       choice(KindSelect, true, true, assetStr(func(a *domain.Asset) *string { return (*string)(&a.Status) }), statusOptions),
	"variantType":  choice(KindSelect, false, false, assetStr(func(a *domain.Asset) *string { return &a.VariantType }), variantOptions),
	"licenseKey":   text(KindText, false, assetStr(func(a *domain.Asset) *string { return &a.LicenseKey })),
	"serialNumber": text(KindText, false, assetStr(func(a *domain.Asset) *string { return &a.SerialNumber })),
	"macAddress":   text(KindText, false, assetStr(func(a *domain.Asset) *string { return &a.MACAddress })),
	"condition":    choice(KindSelect, false, false, assetStr(func(a *domain.Asset) *string { return &a.Condition }), fixedOptions("New", "Good", "Fair", "Poor", "Damaged")),
	"site":         choice(KindSelect, false, false, assetStr(func(a *domain.Asset) *string { return &a.Site }), envOptions(func(e Env) []string { return e.Sites })),
	"notes":        text(KindTextarea, false, assetStr(func(a *domain.Asset) *string { return &a.Notes })),
	"purchaseDate": text(KindDate, false, assetStr(func(a *domain.Asset) *string { return &a.PurchaseDate })),
	"expiryDate":   text(KindDate, false, assetStr(func(a *domain.Asset) *string { return &a.ExpiryDate })),
	"cost":         {resolve: resolveCost, apply: applyCost},

	"assignedUsers":     {resolve: resolveOwners, apply: applyOwners},
	"assignedUser":      {resolve: resolveOwners, apply: applyOwners},
	"activeUsers":       {resolve: resolveActiveUsers, apply: applyActiveUsers},
	"currencyTool":      {resolve: resolveCurrency, apply: applyCurrency},
	"assignmentHistory": {resolve: resolveAssetHistory},
	"maintenanceLog":    {resolve: resolveMaintenance, apply: applyMaintenance},

	// User.
	"fullName":    text(KindText, true, userStr(func(u *domain.User) *string { return &u.FullName })),
	"role":        choice(KindRadioGroup, true, true, userStr(func(u *domain.User) *string { return (*string)(&u.Role) }), fixedOptions(string(domain.RoleAdmin), string(domain.RoleUser))),
	"department":  choice(KindSelect, false, false, userStr(func(u *domain.User) *string { return &u.Department }), envOptions(func(e Env) []string { return e.Departments })),
	"jobTitle":    text(KindText, false, userStr(func(u *domain.User) *string { return &u.JobTitle })),
	"phone":       text(KindText, false, userStr(func(u *domain.User) *string { return &u.Phone })),
	"manager":     {resolve: resolveManager, apply: applyManager},
	"sites":       {resolve: resolveSites, apply: applySites},
	"userHistory": {resolve: resolveUserHistory},

	// Shared by users and license instances.
	"email": text(KindEmail, false, emailStr),
}

// ── accessors ───────────────────────────────────────────────────────────────

// strAccessor returns the string the field edits, or nil when the draft
// has no such field.
type strAccessor func(d *Draft) *string

func familyStr(get func(*domain.AssetFamily) *string) strAccessor {
	return func(d *Draft) *string {
		if d.Family == nil {
			return nil
		}
		return get(d.Family)
	}
}

func licenseFamilyStr(get func(*domain.AssetFamily) *string) strAccessor {
	return func(d *Draft) *string {
		if d.Family == nil || !d.Family.IsLicense() {
			return nil
		}
		return get(d.Family)
	}
}

func assetStr(get func(*domain.Asset) *string) strAccessor {
	return func(d *Draft) *string {
		if d.Asset == nil {
			return nil
		}
		return get(d.Asset)
	}
}

func userStr(get func(*domain.User) *string) strAccessor {
	return func(d *Draft) *string {
		if d.User == nil {
			return nil
		}
		return get(d.User)
	}
}

func emailStr(d *Draft) *string {
	switch {
	case d.User != nil:
		return &d.User.Email
	case d.Asset != nil:
		return &d.Asset.Email
	}
	return nil
}

// ── generic builders ────────────────────────────────────────────────────────

func text(kind Kind, required bool, get strAccessor) entry {
	return entry{
		resolve: func(key string, d *Draft, _ Env) Control {
			p := get(d)
			if p == nil {
				return none(key)
			}
			return Control{Kind: kind, Required: required, Value: *p}
		},
		apply: func(_ context.Context, key string, d *Draft, _ Env, raw json.RawMessage) error {
			v, err := decode[string](key, raw)
			if err != nil {
				return err
			}
			if kind == KindDate && v != "" {
				if _, err := time.Parse(domain.DateLayout, v); err != nil {
					return errors.Wrapf(ErrInvalidValue, "%s: want YYYY-MM-DD", key)
				}
			}
			*get(d) = v
			return nil
		},
	}
}

type optionSource func(d *Draft, env Env) []Option

// choice builds a select or radio group. When strict, values outside the
// options are rejected; otherwise options are suggestions.
func choice(kind Kind, required, strict bool, get strAccessor, opts optionSource) entry {
	return entry{
		resolve: func(key string, d *Draft, env Env) Control {
			p := get(d)
			if p == nil {
				return none(key)
			}
			return Control{Kind: kind, Required: required, Value: *p, Options: opts(d, env)}
		},
		apply: func(_ context.Context, key string, d *Draft, env Env, raw json.RawMessage) error {
			v, err := decode[string](key, raw)
			if err != nil {
				return err
			}
			if strict && !slices.ContainsFunc(opts(d, env), func(o Option) bool { return o.Value == v }) {
				return errors.Wrapf(ErrInvalidValue, "%s: %q is not an option", key, v)
			}
			*get(d) = v
			return nil
		},
	}
}

func fixedOptions(values ...string) optionSource {
	opts := make([]Option, len(values))
	for i, v := range values {
		opts[i] = Option{Value: v, Label: v}
	}
	return func(*Draft, Env) []Option { return slices.Clone(opts) }
}

func envOptions(list func(Env) []string) optionSource {
	return func(_ *Draft, env Env) []Option {
		values := list(env)
		opts := make([]Option, len(values))
		for i, v := range values {
			opts[i] = Option{Value: v, Label: v}
		}
		return opts
	}
}

func statusOptions(*Draft, Env) []Option {
	opts := make([]Option, len(domain.AssetStatuses))
	for i, s := range domain.AssetStatuses {
		opts[i] = Option{Value: string(s), Label: string(s)}
	}
	return opts
}

func variantOptions(_ *Draft, env Env) []Option {
	if env.Family == nil {
		return []Option{}
	}
	opts := make([]Option, len(env.Family.Variants))
	for i, v := range env.Family.Variants {
		opts[i] = Option{Value: v.Name, Label: v.Name}
	}
	return opts
}

func userOptions(users []domain.User) []Option {
	opts := make([]Option, len(users))
	for i, u := range users {
		opts[i] = Option{Value: u.ID, Label: u.FullName}
	}
	return opts
}

// ── family composites ───────────────────────────────────────────────────────

func resolveTotalUnits(key string, d *Draft, _ Env) Control {
	if d.Family == nil {
		return none(key)
	}
	return Control{Kind: KindComputed, ReadOnly: true, Value: d.Family.TotalUnits}
}

func resolveVariants(key string, d *Draft, _ Env) Control {
	if d.Family == nil || !d.Family.IsLicense() {
		return none(key)
	}
	variants := slices.Clone(d.Family.Variants)
	if variants == nil {
		variants = []domain.Variant{}
	}
	return Control{Kind: KindVariants, Variants: variants}
}

// applyVariants replaces the variant list. Entries without an id are new
// and receive one; there is no minimum or maximum count.
func applyVariants(_ context.Context, key string, d *Draft, _ Env, raw json.RawMessage) error {
	variants, err := decode[[]domain.Variant](key, raw)
	if err != nil {
		return err
	}
	for i := range variants {
		if variants[i].ID == "" {
			variants[i].ID = uuid.NewString()
		}
	}
	d.Family.Variants = variants
	return nil
}

// ── asset composites ────────────────────────────────────────────────────────

func resolveAssetID(key string, d *Draft, _ Env) Control {
	if d.Asset == nil {
		return none(key)
	}
	return Control{Kind: KindComputed, ReadOnly: true, Value: d.Asset.AssetID}
}

func resolveCost(key string, d *Draft, _ Env) Control {
	if d.Asset == nil {
		return none(key)
	}
	return Control{Kind: KindNumber, Value: d.Asset.Cost}
}

func applyCost(_ context.Context, key string, d *Draft, _ Env, raw json.RawMessage) error {
	v, err := decode[decimal.Decimal](key, raw)
	if err != nil {
		return err
	}
	d.Asset.Cost = v
	d.Asset.Currency = nil
	return nil
}

// resolveOwners renders a single or multiple user picker depending on the
// owning family's assignment model.
func resolveOwners(key string, d *Draft, env Env) Control {
	if d.Asset == nil {
		return none(key)
	}
	c := Control{Options: userOptions(env.Users)}
	if env.assignmentModel() == domain.AssignmentMultiple {
		c.Kind = KindMultiUserPicker
		c.Value = d.Asset.Owners()
	} else {
		c.Kind = KindUserPicker
		c.Value = d.Asset.AssignedUser
	}
	return c
}

// applyOwners accepts a single id or a list; the family's assignment model
// decides which ownership field receives it.
func applyOwners(_ context.Context, key string, d *Draft, env Env, raw json.RawMessage) error {
	ids, err := decodeIDs(key, raw)
	if err != nil {
		return err
	}
	d.Asset.SetOwners(env.assignmentModel(), ids)
	return nil
}

func resolveActiveUsers(key string, d *Draft, env Env) Control {
	if d.Asset == nil {
		return none(key)
	}
	value := slices.Clone(d.Asset.ActiveUsers)
	if value == nil {
		value = []string{}
	}
	return Control{Kind: KindMultiUserPicker, Value: value, Options: userOptions(env.Users)}
}

func applyActiveUsers(_ context.Context, key string, d *Draft, _ Env, raw json.RawMessage) error {
	ids, err := decodeIDs(key, raw)
	if err != nil {
		return err
	}
	d.Asset.ActiveUsers = ids
	return nil
}

func resolveAssetHistory(key string, d *Draft, env Env) Control {
	if d.Asset == nil {
		return none(key)
	}
	log := history.ForAsset(*d.Asset, env.Users)
	return Control{Kind: KindHistory, ReadOnly: true, History: &log}
}

func resolveMaintenance(key string, d *Draft, _ Env) Control {
	if d.Asset == nil {
		return none(key)
	}
	log := history.Split(slices.Clone(d.Asset.MaintenanceLog))
	return Control{Kind: KindHistory, History: &log}
}

type maintenanceNote struct {
	Date  string `json:"date"`
	Notes string `json:"notes"`
}

// applyMaintenance appends one maintenance entry; existing entries are
// never edited.
func applyMaintenance(_ context.Context, key string, d *Draft, _ Env, raw json.RawMessage) error {
	note, err := decode[maintenanceNote](key, raw)
	if err != nil {
		return err
	}
	if note.Notes == "" {
		return errors.Wrapf(ErrInvalidValue, "%s: notes are required", key)
	}
	if note.Date == "" {
		note.Date = domain.Today(time.Now())
	} else if _, err := time.Parse(domain.DateLayout, note.Date); err != nil {
		return errors.Wrapf(ErrInvalidValue, "%s: want YYYY-MM-DD", key)
	}
	d.Asset.MaintenanceLog = append(d.Asset.MaintenanceLog, domain.HistoryEntry{
		ID:        uuid.NewString(),
		AssetID:   d.Asset.AssetID,
		AssetName: d.Asset.Title,
		Date:      note.Date,
		Type:      domain.HistoryMaintenance,
		Notes:     note.Notes,
	})
	return nil
}

// ── user composites ─────────────────────────────────────────────────────────

func resolveManager(key string, d *Draft, env Env) Control {
	if d.User == nil {
		return none(key)
	}
	var others []domain.User
	for _, u := range env.Users {
		if u.ID != d.User.ID {
			others = append(others, u)
		}
	}
	return Control{Kind: KindUserPicker, Value: d.User.Manager, Options: userOptions(others)}
}

func applyManager(_ context.Context, key string, d *Draft, _ Env, raw json.RawMessage) error {
	v, err := decode[string](key, raw)
	if err != nil {
		return err
	}
	if v == d.User.ID && v != "" {
		return errors.Wrapf(ErrInvalidValue, "%s: a user cannot manage themselves", key)
	}
	d.User.Manager = v
	return nil
}

func resolveSites(key string, d *Draft, env Env) Control {
	if d.User == nil {
		return none(key)
	}
	value := slices.Clone(d.User.Sites)
	if value == nil {
		value = []string{}
	}
	return Control{Kind: KindMultiSelect, Value: value, Options: envOptions(func(e Env) []string { return e.Sites })(d, env)}
}

func applySites(_ context.Context, key string, d *Draft, _ Env, raw json.RawMessage) error {
	sites, err := decodeIDs(key, raw)
	if err != nil {
		return err
	}
	d.User.Sites = sites
	return nil
}

func resolveUserHistory(key string, d *Draft, _ Env) Control {
	if d.User == nil {
		return none(key)
	}
	log := history.ForUser(*d.User)
	return Control{Kind: KindHistory, ReadOnly: true, History: &log}
}

// decodeIDs accepts either a JSON string or a list of strings and returns
// the non-empty values without duplicates.
func decodeIDs(key string, raw json.RawMessage) ([]string, error) {
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		one, err := decode[string](key, raw)
		if err != nil {
			return nil, err
		}
		list = []string{one}
	}
	out := []string{}
	for _, id := range list {
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out, nil
}
