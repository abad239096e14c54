package domain

import "slices"

// Role is the single role a user holds.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// HistoryType classifies an assignment-history entry.
type HistoryType string

const (
	HistoryAssigned    HistoryType = "Assigned"
	HistoryReassigned  HistoryType = "Reassigned"
	HistoryReturned    HistoryType = "Returned"
	HistoryLost        HistoryType = "Lost"
	HistoryUsageUpdate HistoryType = "Usage Update"
	HistoryMaintenance HistoryType = "Maintenance"
)

// IsAssignment reports whether the entry belongs to the assignment log as
// opposed to the usage log.
func (t HistoryType) IsAssignment() bool {
	switch t {
	case HistoryAssigned, HistoryReassigned, HistoryReturned, HistoryLost:
		return true
	}
	return false
}

// HistoryEntry is an append-only record of an assignment or usage change.
// AssignedTo and AssignedFrom hold user ids.
type HistoryEntry struct {
	ID           string      `json:"id"`
	AssetID      string      `json:"asset_id"`
	AssetName    string      `json:"asset_name"`
	Date         string      `json:"date"`
	Type         HistoryType `json:"type"`
	Notes        string      `json:"notes,omitempty"`
	AssignedTo   []string    `json:"assigned_to,omitempty"`
	AssignedFrom []string    `json:"assigned_from,omitempty"`
}

// User is a person who can hold or use assets.
type User struct {
	ID         string         `json:"id"`
	FullName   string         `json:"full_name" validate:"required"`
	Email      string         `json:"email" validate:"required,email"`
	Role       Role           `json:"role" validate:"required,oneof=admin user"`
	Department string         `json:"department"`
	Sites      []string       `json:"sites"`
	JobTitle   string         `json:"job_title,omitempty"`
	Phone      string         `json:"phone,omitempty"`
	Manager    string         `json:"manager,omitempty"`
	History    []HistoryEntry `json:"history"`
	Audit
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// AppendHistory appends entries, skipping any whose id is already present.
func (u *User) AppendHistory(entries ...HistoryEntry) {
	for _, e := range entries {
		if slices.ContainsFunc(u.History, func(h HistoryEntry) bool { return h.ID == e.ID }) {
			continue
		}
		u.History = append(u.History, e)
	}
}

// Clone returns a deep copy of the user.
func (u User) Clone() User {
	u.Sites = slices.Clone(u.Sites)
	u.History = slices.Clone(u.History)
	return u
}
