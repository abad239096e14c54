package fields

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/assetdesk/internal/domain"
	"github.com/matthewbaird/assetdesk/internal/layout"
	"github.com/matthewbaird/assetdesk/internal/rates"
)

func licenseFamily(model domain.AssignmentModel) *domain.AssetFamily {
	return &domain.AssetFamily{
		ID: "f1", AssetType: domain.AssetTypeLicense, Name: "Microsoft 365", ProductCode: "M365",
		AssignmentModel: model,
		Variants:        []domain.Variant{{ID: "v1", Name: "Pro", LicenseType: "Subscription", Cost: decimal.NewFromInt(20)}},
	}
}

func users() []domain.User {
	return []domain.User{
		{ID: "u1", FullName: "Ada", History: []domain.HistoryEntry{{ID: "h1", AssetID: "SOFT-M365-0001", Date: "2026-01-01", Type: domain.HistoryAssigned, AssignedTo: []string{"u1"}}}},
		{ID: "u2", FullName: "Grace"},
	}
}

func raw(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func TestResolve_UnknownKeyRendersNothing(t *testing.T) {
	c := Resolve("doesNotExist", Draft{Asset: &domain.Asset{}}, Env{})
	assert.Equal(t, KindNone, c.Kind)
	assert.False(t, c.Visible())
}

func TestResolve_Idempotent(t *testing.T) {
	asset := &domain.Asset{
		ID: "a1", AssetID: "SOFT-M365-0001", Title: "Seat", Status: domain.StatusActive,
		AssignedUsers: []string{"u1"}, ActiveUsers: []string{"u2"}, Cost: decimal.RequireFromString("19.99"),
	}
	env := Env{Context: layout.LicenseInstance, Family: licenseFamily(domain.AssignmentMultiple), Users: users(), Sites: []string{"London"}}

	drafts := []Draft{
		{Asset: asset},
		{Family: licenseFamily(domain.AssignmentSingle)},
		{User: &users()[0]},
	}
	for _, d := range drafts {
		for _, key := range Keys() {
			first := Resolve(key, d, env)
			second := Resolve(key, d, env)
			assert.Equal(t, first, second, key)
		}
	}
}

func TestResolve_DraftUntouched(t *testing.T) {
	d := Draft{Asset: &domain.Asset{AssignedUsers: []string{"u1"}}}
	before := d.Clone()
	for _, key := range Keys() {
		Resolve(key, d, Env{Users: users()})
	}
	assert.Equal(t, before, d)
}

func TestOwners_SingleModelNeverHoldsBoth(t *testing.T) {
	ctx := context.Background()
	env := Env{Family: licenseFamily(domain.AssignmentSingle), Users: users()}
	d := Draft{Asset: &domain.Asset{AssignedUsers: []string{"u1", "u2"}}}

	c := Resolve("assignedUsers", d, env)
	assert.Equal(t, KindUserPicker, c.Kind)

	require.NoError(t, Apply(ctx, "assignedUsers", &d, env, raw([]string{"u1", "u2"})))
	assert.Equal(t, "u2", d.Asset.AssignedUser)
	assert.Empty(t, d.Asset.AssignedUsers)

	require.NoError(t, Apply(ctx, "assignedUser", &d, env, raw("u1")))
	assert.Equal(t, "u1", d.Asset.AssignedUser)
	assert.Empty(t, d.Asset.AssignedUsers)
}

func TestOwners_MultipleModel(t *testing.T) {
	ctx := context.Background()
	env := Env{Family: licenseFamily(domain.AssignmentMultiple), Users: users()}
	d := Draft{Asset: &domain.Asset{AssignedUser: "u1"}}

	c := Resolve("assignedUsers", d, env)
	assert.Equal(t, KindMultiUserPicker, c.Kind)
	assert.Equal(t, []string{"u1"}, c.Value)

	require.NoError(t, Apply(ctx, "assignedUsers", &d, env, raw([]string{"u1", "u2", "u1"})))
	assert.Empty(t, d.Asset.AssignedUser)
	assert.Equal(t, []string{"u1", "u2"}, d.Asset.AssignedUsers)
}

func TestActiveUsers_IndependentOfOwnership(t *testing.T) {
	env := Env{Family: licenseFamily(domain.AssignmentSingle)}
	d := Draft{Asset: &domain.Asset{AssignedUser: "u1"}}
	require.NoError(t, Apply(context.Background(), "activeUsers", &d, env, raw([]string{"u2"})))
	assert.Equal(t, "u1", d.Asset.AssignedUser)
	assert.Equal(t, []string{"u2"}, d.Asset.ActiveUsers)
}

func TestVariants_LicenseOnly(t *testing.T) {
	ctx := context.Background()
	hw := Draft{Family: &domain.AssetFamily{AssetType: domain.AssetTypeHardware}}
	assert.Equal(t, KindNone, Resolve("variants", hw, Env{}).Kind)
	err := Apply(ctx, "variants", &hw, Env{}, raw([]domain.Variant{{Name: "x"}}))
	assert.True(t, errors.Is(err, ErrNotApplicable))

	lic := Draft{Family: licenseFamily(domain.AssignmentSingle)}
	require.NoError(t, Apply(ctx, "variants", &lic, Env{}, raw([]domain.Variant{
		{ID: "v1", Name: "Pro", Cost: decimal.NewFromInt(20)},
		{Name: "E3", LicenseType: "Enterprise", Cost: decimal.NewFromInt(36)},
	})))
	require.Len(t, lic.Family.Variants, 2)
	assert.NotEmpty(t, lic.Family.Variants[1].ID)

	require.NoError(t, Apply(ctx, "variants", &lic, Env{}, raw([]domain.Variant{})))
	assert.Empty(t, lic.Family.Variants, "no minimum count")
}

func TestComputedFieldsAreReadOnly(t *testing.T) {
	ctx := context.Background()
	f := Draft{Family: licenseFamily(domain.AssignmentSingle)}
	err := Apply(ctx, "totalUnits", &f, Env{}, raw(9))
	assert.True(t, errors.Is(err, ErrReadOnly))

	a := Draft{Asset: &domain.Asset{AssetID: "SOFT-M365-0001"}}
	err = Apply(ctx, "assetId", &a, Env{}, raw("HACK-0001"))
	assert.True(t, errors.Is(err, ErrReadOnly))
	assert.Equal(t, "SOFT-M365-0001", a.Asset.AssetID)
}

func TestStrictChoices(t *testing.T) {
	ctx := context.Background()
	d := Draft{Asset: &domain.Asset{Status: domain.StatusAvailable}}
	err := Apply(ctx, "status", &d, Env{}, raw("Exploded"))
	assert.True(t, errors.Is(err, ErrInvalidValue))
	require.NoError(t, Apply(ctx, "status", &d, Env{}, raw("In-Repair")))
	assert.Equal(t, domain.StatusInRepair, d.Asset.Status)

	// reference lists are suggestions only
	require.NoError(t, Apply(ctx, "site", &d, Env{Sites: []string{"London"}}, raw("Paris")))
	assert.Equal(t, "Paris", d.Asset.Site)
}

func TestDateFields(t *testing.T) {
	ctx := context.Background()
	d := Draft{Asset: &domain.Asset{}}
	assert.Error(t, Apply(ctx, "purchaseDate", &d, Env{}, raw("14/03/2026")))
	require.NoError(t, Apply(ctx, "purchaseDate", &d, Env{}, raw("2026-03-14")))
	require.NoError(t, Apply(ctx, "expiryDate", &d, Env{}, raw("")))
}

func TestCurrencyTool(t *testing.T) {
	ctx := context.Background()
	d := Draft{Asset: &domain.Asset{PurchaseDate: "2026-01-05"}}
	env := Env{BaseCurrency: "USD", Rates: rates.NewMockProvider("USD")}

	require.NoError(t, Apply(ctx, "currencyTool", &d, env, raw(map[string]any{"currency": "eur", "amount": "100"})))
	require.NotNil(t, d.Asset.Currency)
	assert.Equal(t, "EUR", d.Asset.Currency.Currency)
	assert.Equal(t, "2026-01-05", d.Asset.Currency.RateDate)
	assert.True(t, d.Asset.Currency.OriginalAmount.Equal(decimal.NewFromInt(100)))

	want, err := rates.Convert(ctx, env.Rates, decimal.NewFromInt(100), "EUR", "2026-01-05")
	require.NoError(t, err)
	assert.True(t, want.Equal(d.Asset.Cost))

	c := Resolve("currencyTool", d, env)
	require.NotNil(t, c.Currency)
	assert.Equal(t, "EUR", c.Currency.Currency)

	err = Apply(ctx, "currencyTool", &d, env, raw(map[string]any{"currency": "ZZZZ", "amount": "1"}))
	assert.True(t, errors.Is(err, ErrInvalidValue))

	// a direct cost edit drops the side-state
	require.NoError(t, Apply(ctx, "cost", &d, env, raw("42.50")))
	assert.Nil(t, d.Asset.Currency)
}

func TestAssignmentHistory(t *testing.T) {
	d := Draft{Asset: &domain.Asset{AssetID: "SOFT-M365-0001"}}
	c := Resolve("assignmentHistory", d, Env{Users: users()})
	assert.Equal(t, KindHistory, c.Kind)
	assert.True(t, c.ReadOnly)
	require.NotNil(t, c.History)
	require.Len(t, c.History.Assignments, 1)
	assert.Empty(t, c.History.Usage)
}

func TestMaintenanceLog_Appends(t *testing.T) {
	d := Draft{Asset: &domain.Asset{AssetID: "HARD-LAP-0001"}}
	require.NoError(t, Apply(context.Background(), "maintenanceLog", &d, Env{}, raw(map[string]string{"date": "2026-02-01", "notes": "new battery"})))
	require.Len(t, d.Asset.MaintenanceLog, 1)
	assert.Equal(t, domain.HistoryMaintenance, d.Asset.MaintenanceLog[0].Type)
	assert.Error(t, Apply(context.Background(), "maintenanceLog", &d, Env{}, raw(map[string]string{})))
}

func TestEmail_SharedKey(t *testing.T) {
	ctx := context.Background()
	u := Draft{User: &domain.User{}}
	require.NoError(t, Apply(ctx, "email", &u, Env{}, raw("ada@example.com")))
	assert.Equal(t, "ada@example.com", u.User.Email)

	f := Draft{Family: licenseFamily(domain.AssignmentSingle)}
	assert.Equal(t, KindNone, Resolve("email", f, Env{}).Kind)
}

func TestManager_CannotBeSelf(t *testing.T) {
	d := Draft{User: &domain.User{ID: "u1"}}
	c := Resolve("manager", d, Env{Users: users()})
	require.Len(t, c.Options, 1)
	assert.Equal(t, "u2", c.Options[0].Value)
	assert.Error(t, Apply(context.Background(), "manager", &d, Env{}, raw("u1")))
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "Product Code", Label("productCode"))
	assert.Equal(t, "Asset ID", Label("assetId"))
	assert.Equal(t, "Notes", Label("notes"))
}
