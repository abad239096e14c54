// Package domain holds the records tracked by assetdesk: catalog families,
// their issued asset instances, users, procurement requests, tasks and the
// assignment history that links them.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssetType distinguishes software licenses from physical hardware.
type AssetType string

const (
	AssetTypeLicense  AssetType = "License"
	AssetTypeHardware AssetType = "Hardware"
)

// Valid reports whether t is one of the known asset types.
func (t AssetType) Valid() bool {
	return t == AssetTypeLicense || t == AssetTypeHardware
}

// AssignmentModel decides whether instances of a family are owned by one
// user or shared among several.
type AssignmentModel string

const (
	AssignmentSingle   AssignmentModel = "Single"
	AssignmentMultiple AssignmentModel = "Multiple"
)

// Audit carries who last touched a record and from where.
type Audit struct {
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	CreatedBy     string    `json:"created_by"`
	UpdatedBy     string    `json:"updated_by"`
	Source        string    `json:"source"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// Touch stamps the audit fields for a write performed by actor.
func (a *Audit) Touch(actor, source string, now time.Time) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
		a.CreatedBy = actor
	}
	a.UpdatedAt = now
	a.UpdatedBy = actor
	if source == "" {
		source = "user"
	}
	a.Source = source
}

// Actor identifies who performs a write and through which channel.
type Actor struct {
	Name          string
	Source        string
	CorrelationID string
}

// System is the actor used for writes not triggered by a person.
var System = Actor{Name: "system", Source: "system"}

// Stamp is Touch for a full Actor.
func (a *Audit) Stamp(by Actor, now time.Time) {
	a.Touch(by.Name, by.Source, now)
	a.CorrelationID = by.CorrelationID
}

// Variant is a purchasable edition of a license family, e.g. "Pro".
type Variant struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	LicenseType string          `json:"license_type"`
	Cost        decimal.Decimal `json:"cost"`
}

// AssetFamily is a catalog-level product definition from which concrete
// Asset instances are issued.
type AssetFamily struct {
	ID              string          `json:"id"`
	AssetType       AssetType       `json:"asset_type" validate:"required,oneof=License Hardware"`
	Name            string          `json:"name" validate:"required"`
	ProductCode     string          `json:"product_code" validate:"required,productcode"`
	Category        string          `json:"category"`
	Vendor          string          `json:"vendor"`
	Manufacturer    string          `json:"manufacturer"`
	Description     string          `json:"description"`
	AssignmentModel AssignmentModel `json:"assignment_model" validate:"required,oneof=Single Multiple"`
	Variants        []Variant       `json:"variants"`
	TotalUnits      int             `json:"total_units"`
	// LastSequence is the highest asset id sequence ever issued.
	LastSequence int    `json:"last_sequence"`
	ImageURL     string `json:"image_url,omitempty"`
	Audit
}

// IsLicense reports whether the family issues software licenses.
func (f *AssetFamily) IsLicense() bool { return f.AssetType == AssetTypeLicense }

// IsMultiple reports whether instances are shared among several users.
func (f *AssetFamily) IsMultiple() bool { return f.AssignmentModel == AssignmentMultiple }

// FirstVariant returns the family's first variant, if any.
func (f *AssetFamily) FirstVariant() (Variant, bool) {
	if len(f.Variants) == 0 {
		return Variant{}, false
	}
	return f.Variants[0], true
}

// VariantByName looks a variant up by its display name.
func (f *AssetFamily) VariantByName(name string) (Variant, bool) {
	for _, v := range f.Variants {
		if v.Name == name {
			return v, true
		}
	}
	return Variant{}, false
}

// Clone returns a deep copy of the family.
func (f AssetFamily) Clone() AssetFamily {
	f.Variants = append([]Variant(nil), f.Variants...)
	return f
}
