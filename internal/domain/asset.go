package domain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// AssetStatus is the operational state of an asset instance.
type AssetStatus string

const (
	StatusAvailable AssetStatus = "Available"
	StatusActive    AssetStatus = "Active"
	StatusStorage   AssetStatus = "Storage"
	StatusExpired   AssetStatus = "Expired"
	StatusRetired   AssetStatus = "Retired"
	StatusInRepair  AssetStatus = "In-Repair"
	StatusPending   AssetStatus = "Pending"
	StatusSuspended AssetStatus = "Suspended"
	StatusInactive  AssetStatus = "Inactive"
)

// AssetStatuses lists every status in display order.
var AssetStatuses = []AssetStatus{
	StatusAvailable, StatusActive, StatusStorage, StatusExpired, StatusRetired,
	StatusInRepair, StatusPending, StatusSuspended, StatusInactive,
}

// CurrencyState is the side-state kept by the currency tool: the amount as
// entered in its original currency and the date used for conversion.
type CurrencyState struct {
	Currency       string          `json:"currency"`
	OriginalAmount decimal.Decimal `json:"original_amount"`
	RateDate       string          `json:"rate_date,omitempty"`
}

// Asset is one concrete, assignable unit of a family.
type Asset struct {
	ID            string          `json:"id"`
	AssetID       string          `json:"asset_id"`
	FamilyID      string          `json:"family_id" validate:"required"`
	Title         string          `json:"title"`
	Status        AssetStatus     `json:"status" validate:"required,oneof=Available Active Storage Expired Retired In-Repair Pending Suspended Inactive"`
	AssignedUser  string          `json:"assigned_user,omitempty"`
	AssignedUsers []string        `json:"assigned_users,omitempty"`
	ActiveUsers   []string        `json:"active_users,omitempty"`
	Cost          decimal.Decimal `json:"cost"`
	Currency      *CurrencyState  `json:"currency,omitempty"`
	PurchaseDate  string          `json:"purchase_date,omitempty"`
	ExpiryDate    string          `json:"expiry_date,omitempty"`
	Site          string          `json:"site,omitempty"`
	Notes         string          `json:"notes,omitempty"`

	// Hardware.
	SerialNumber string `json:"serial_number,omitempty"`
	MACAddress   string `json:"mac_address,omitempty"`
	Condition    string `json:"condition,omitempty"`

	// License.
	LicenseKey  string `json:"license_key,omitempty"`
	VariantType string `json:"variant_type,omitempty"`
	Email       string `json:"email,omitempty"`

	MaintenanceLog []HistoryEntry `json:"maintenance_log,omitempty"`
	Audit
}

// Owners returns the ids of the users who own the asset, whichever of the
// two ownership fields is in use.
func (a *Asset) Owners() []string {
	if a.AssignedUser != "" {
		return []string{a.AssignedUser}
	}
	return slices.Clone(a.AssignedUsers)
}

// SetOwners writes owners into the ownership field selected by model and
// clears the other one, so the two are never populated together.
func (a *Asset) SetOwners(model AssignmentModel, owners []string) {
	owners = compact(owners)
	if model == AssignmentMultiple {
		a.AssignedUser = ""
		a.AssignedUsers = owners
		return
	}
	a.AssignedUsers = nil
	a.AssignedUser = ""
	if len(owners) > 0 {
		a.AssignedUser = owners[len(owners)-1]
	}
}

// IsAssigned reports whether anybody owns the asset.
func (a *Asset) IsAssigned() bool {
	return a.AssignedUser != "" || len(a.AssignedUsers) > 0
}

// References reports whether userID appears as owner or active user.
func (a *Asset) References(userID string) bool {
	return a.AssignedUser == userID ||
		slices.Contains(a.AssignedUsers, userID) ||
		slices.Contains(a.ActiveUsers, userID)
}

// Clone returns a deep copy of the asset.
func (a Asset) Clone() Asset {
	a.AssignedUsers = slices.Clone(a.AssignedUsers)
	a.ActiveUsers = slices.Clone(a.ActiveUsers)
	a.MaintenanceLog = slices.Clone(a.MaintenanceLog)
	if a.Currency != nil {
		c := *a.Currency
		a.Currency = &c
	}
	return a
}

// Today formats now as the date string used throughout the records.
func Today(now time.Time) string {
	return now.Format(DateLayout)
}

// DateLayout is the on-record date format.
const DateLayout = "2006-01-02"

func compact(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || slices.Contains(out, id) {
			continue
		}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
