// Package history synthesises assignment and usage entries from asset
// edits, computes which users must receive them, and rebuilds the per-asset
// view from the user records they were fanned out to.
package history

import (
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/matthewbaird/assetdesk/internal/domain"
)

// Options tune entry synthesis for a single edit.
type Options struct {
	Notes string
	// Lost marks an ownership removal as a loss rather than a return.
	Lost bool
	Now  time.Time
}

// Synthesize compares the ownership and usage of before and after and
// returns zero, one or two entries: one when the owner set changed and one
// when the active-user set changed.
func Synthesize(before, after domain.Asset, opts Options) []domain.HistoryEntry {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	var out []domain.HistoryEntry

	from, to := before.Owners(), after.Owners()
	if !sameSet(from, to) {
		out = append(out, newEntry(after, ownershipType(from, to, opts.Lost), from, to, opts))
	}

	if !sameSet(before.ActiveUsers, after.ActiveUsers) {
		out = append(out, newEntry(after, domain.HistoryUsageUpdate,
			slices.Clone(before.ActiveUsers), slices.Clone(after.ActiveUsers), opts))
	}
	return out
}

// Assignment returns the entry recorded when an asset is issued to owners
// outside an edit, e.g. on request fulfillment.
func Assignment(a domain.Asset, owners []string, opts Options) domain.HistoryEntry {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	return newEntry(a, domain.HistoryAssigned, nil, slices.Clone(owners), opts)
}

func ownershipType(from, to []string, lost bool) domain.HistoryType {
	switch {
	case len(from) == 0:
		return domain.HistoryAssigned
	case len(to) == 0 && lost:
		return domain.HistoryLost
	case len(to) == 0:
		return domain.HistoryReturned
	default:
		return domain.HistoryReassigned
	}
}

func newEntry(a domain.Asset, t domain.HistoryType, from, to []string, opts Options) domain.HistoryEntry {
	return domain.HistoryEntry{
		ID:           uuid.NewString(),
		AssetID:      a.AssetID,
		AssetName:    a.Title,
		Date:         domain.Today(opts.Now),
		Type:         t,
		Notes:        opts.Notes,
		AssignedTo:   to,
		AssignedFrom: from,
	}
}

func sameSet(a, b []string) bool {
	as := setOf(a)
	bs := setOf(b)
	if len(as) != len(bs) {
		return false
	}
	for k := range as {
		if !bs[k] {
			return false
		}
	}
	return true
}

func setOf(ids []string) map[string]bool {
	m := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id != "" {
			m[id] = true
		}
	}
	return m
}

// Delivery is the set of entries one user must receive.
type Delivery struct {
	UserID  string
	Entries []domain.HistoryEntry
}

// WriteSet lists every user named on either side of any entry, in order of
// first appearance, with the entries that mention them.
func WriteSet(entries []domain.HistoryEntry) []Delivery {
	var out []Delivery
	index := make(map[string]int)
	for _, e := range entries {
		seen := make(map[string]bool)
		for _, uid := range slices.Concat(e.AssignedFrom, e.AssignedTo) {
			if uid == "" || seen[uid] {
				continue
			}
			seen[uid] = true
			i, ok := index[uid]
			if !ok {
				i = len(out)
				index[uid] = i
				out = append(out, Delivery{UserID: uid})
			}
			out[i].Entries = append(out[i].Entries, e)
		}
	}
	return out
}

// Log is the per-asset history split for display. Each slice is ordered by
// date, newest first.
type Log struct {
	Assignments []domain.HistoryEntry `json:"assignments"`
	Usage       []domain.HistoryEntry `json:"usage"`
	Maintenance []domain.HistoryEntry `json:"maintenance"`
}

// ForAsset merges the entries for asset found on every user, plus the
// asset's own maintenance log. Entries fanned out to several users appear
// once.
func ForAsset(asset domain.Asset, users []domain.User) Log {
	var merged []domain.HistoryEntry
	seen := make(map[string]bool)
	add := func(e domain.HistoryEntry) {
		if seen[e.ID] {
			return
		}
		seen[e.ID] = true
		merged = append(merged, e)
	}
	for _, u := range users {
		for _, e := range u.History {
			if e.AssetID == asset.AssetID && asset.AssetID != "" {
				add(e)
			}
		}
	}
	for _, e := range asset.MaintenanceLog {
		add(e)
	}
	return Split(merged)
}

// ForUser returns the user's own history split for display.
func ForUser(u domain.User) Log {
	return Split(slices.Clone(u.History))
}

// Split sorts entries newest first and partitions them by type.
func Split(entries []domain.HistoryEntry) Log {
	SortNewestFirst(entries)
	log := Log{
		Assignments: []domain.HistoryEntry{},
		Usage:       []domain.HistoryEntry{},
		Maintenance: []domain.HistoryEntry{},
	}
	for _, e := range entries {
		switch {
		case e.Type.IsAssignment():
			log.Assignments = append(log.Assignments, e)
		case e.Type == domain.HistoryUsageUpdate:
			log.Usage = append(log.Usage, e)
		default:
			log.Maintenance = append(log.Maintenance, e)
		}
	}
	return log
}

// SortNewestFirst orders entries by date descending. Entries sharing a date
// keep reverse insertion order so the latest write shows first.
func SortNewestFirst(entries []domain.HistoryEntry) {
	slices.Reverse(entries)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Date > entries[j].Date
	})
}
