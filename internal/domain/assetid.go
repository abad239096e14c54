package domain

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// IDScheme describes how human-readable asset ids are generated:
// {prefix}-{productCode}-{sequence}, the sequence zero-padded to Digits.
type IDScheme struct {
	LicensePrefix  string `json:"license_prefix"`
	HardwarePrefix string `json:"hardware_prefix"`
	Digits         int    `json:"digits"`
}

// IDSchemeSource supplies the id scheme in force.
type IDSchemeSource interface {
	IDScheme(ctx context.Context) (IDScheme, error)
}

// DefaultIDScheme yields ids such as SOFT-M365-0004 and HARD-LAP-0012.
var DefaultIDScheme = IDScheme{LicensePrefix: "SOFT", HardwarePrefix: "HARD", Digits: 4}

// Prefix returns the id prefix shared by every instance of f, including
// the trailing dash.
func (s IDScheme) Prefix(f AssetFamily) string {
	typ := s.HardwarePrefix
	if f.IsLicense() {
		typ = s.LicensePrefix
	}
	return typ + "-" + strings.ToUpper(strings.TrimSpace(f.ProductCode)) + "-"
}

// Next returns n fresh ids for f and advances f.LastSequence past them.
// Numbering continues after the family's high-water mark or the highest
// sequence in use under its prefix, whichever is larger, so gaps left by
// edited ids are never reused. Prefixes compare case-insensitively.
func (s IDScheme) Next(f *AssetFamily, existing []Asset, n int) []string {
	prefix := s.Prefix(*f)
	last := f.LastSequence
	for _, a := range existing {
		if seq, ok := sequenceOf(prefix, a.AssetID); ok && seq > last {
			last = seq
		}
	}
	digits := s.Digits
	if digits < 1 {
		digits = DefaultIDScheme.Digits
	}
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%0*d", prefix, digits, last+i+1)
	}
	f.LastSequence = last + n
	return out
}

// Reserve raises f's high-water mark to the sequence of assetID when the
// id falls under f's prefix. It reports whether f changed.
func (s IDScheme) Reserve(f *AssetFamily, assetID string) bool {
	seq, ok := sequenceOf(s.Prefix(*f), assetID)
	if !ok || seq <= f.LastSequence {
		return false
	}
	f.LastSequence = seq
	return true
}

func sequenceOf(prefix, assetID string) (int, bool) {
	if len(assetID) <= len(prefix) || !strings.EqualFold(assetID[:len(prefix)], prefix) {
		return 0, false
	}
	seq, err := strconv.Atoi(assetID[len(prefix):])
	if err != nil || seq < 0 {
		return 0, false
	}
	return seq, true
}
