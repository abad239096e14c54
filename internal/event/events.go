package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/matthewbaird/assetdesk/internal/activity"
	"github.com/matthewbaird/assetdesk/internal/domain"
)

// DomainEvent carries the canonical shape of every domain event.
type DomainEvent struct {
	ID               string               `json:"id"`
	EventType        string               `json:"event_type"`
	OccurredAt       time.Time            `json:"occurred_at"`
	AffectedEntities []activity.SourceRef `json:"affected_entities"`
	Summary          string               `json:"summary"`
	Category         string               `json:"category"` // "request", "asset", "user", "family", "settings"
	Weight           string               `json:"weight"`   // "critical", "major", "minor", "info"
	Actor            string               `json:"actor,omitempty"`
	Payload          json.RawMessage      `json:"payload"`
}

func newID() string { return uuid.New().String() }

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func newEvent(eventType, category, weight string, by domain.Actor, refs []activity.SourceRef, summary string, payload any) DomainEvent {
	return DomainEvent{
		ID:               newID(),
		EventType:        eventType,
		OccurredAt:       time.Now(),
		AffectedEntities: refs,
		Summary:          summary,
		Category:         category,
		Weight:           weight,
		Actor:            by.Name,
		Payload:          mustJSON(payload),
	}
}

func ref(entityType, id, role string) activity.SourceRef {
	return activity.SourceRef{EntityType: entityType, EntityID: id, Role: role}
}

func userRefs(ids []string, role string) []activity.SourceRef {
	out := make([]activity.SourceRef, 0, len(ids))
	for _, id := range ids {
		out = append(out, ref("user", id, role))
	}
	return out
}

// ── Request events ───────────────────────────────────────────────────────────

// RequestPayload carries event-specific data for request transitions.
type RequestPayload struct {
	RequestID   string               `json:"request_id"`
	FamilyID    string               `json:"family_id"`
	RequestedBy string               `json:"requested_by"`
	From        domain.RequestStatus `json:"from,omitempty"`
	To          domain.RequestStatus `json:"to"`
	TaskID      string               `json:"task_id,omitempty"`
	AssetID     string               `json:"asset_id,omitempty"`
}

func requestRefs(p RequestPayload) []activity.SourceRef {
	refs := []activity.SourceRef{
		ref("request", p.RequestID, "subject"),
		ref("family", p.FamilyID, "context"),
		ref("user", p.RequestedBy, "related"),
	}
	if p.TaskID != "" {
		refs = append(refs, ref("task", p.TaskID, "related"))
	}
	if p.AssetID != "" {
		refs = append(refs, ref("asset", p.AssetID, "target"))
	}
	return refs
}

func NewRequestSubmitted(p RequestPayload, by domain.Actor) DomainEvent {
	p.To = domain.RequestPending
	return newEvent("request_submitted", "request", "minor", by, requestRefs(p),
		fmt.Sprintf("Request %s submitted", short(p.RequestID)), p)
}

func NewRequestApproved(p RequestPayload, by domain.Actor) DomainEvent {
	p.To = domain.RequestApproved
	return newEvent("request_approved", "request", "major", by, requestRefs(p),
		fmt.Sprintf("Request %s approved with task %s", short(p.RequestID), short(p.TaskID)), p)
}

func NewRequestRejected(p RequestPayload, by domain.Actor) DomainEvent {
	p.To = domain.RequestRejected
	return newEvent("request_rejected", "request", "major", by, requestRefs(p),
		fmt.Sprintf("Request %s rejected", short(p.RequestID)), p)
}

func NewRequestFulfilled(p RequestPayload, by domain.Actor) DomainEvent {
	p.To = domain.RequestFulfilled
	return newEvent("request_fulfilled", "request", "major", by, requestRefs(p),
		fmt.Sprintf("Request %s fulfilled with asset %s", short(p.RequestID), short(p.AssetID)), p)
}

// ── Asset events ─────────────────────────────────────────────────────────────

// AssetPayload carries event-specific data for asset changes.
type AssetPayload struct {
	ID       string               `json:"id"`
	AssetID  string               `json:"asset_id"`
	FamilyID string               `json:"family_id"`
	Status   domain.AssetStatus   `json:"status"`
	Owners   []string             `json:"owners,omitempty"`
	Previous string               `json:"previous_asset_id,omitempty"`
	Count    int                  `json:"count,omitempty"`
	History  []domain.HistoryType `json:"history,omitempty"`
}

func assetRefs(p AssetPayload) []activity.SourceRef {
	refs := []activity.SourceRef{
		ref("asset", p.ID, "subject"),
		ref("family", p.FamilyID, "context"),
	}
	return append(refs, userRefs(p.Owners, "related")...)
}

func NewAssetCreated(p AssetPayload, by domain.Actor) DomainEvent {
	return newEvent("asset_created", "asset", "minor", by, assetRefs(p),
		fmt.Sprintf("Asset %s created", p.AssetID), p)
}

// NewAssetsBulkCreated is indexed under the family only.
func NewAssetsBulkCreated(familyID string, assetIDs []string, by domain.Actor) DomainEvent {
	p := AssetPayload{FamilyID: familyID, Count: len(assetIDs)}
	return newEvent("assets_bulk_created", "asset", "minor", by,
		[]activity.SourceRef{ref("family", familyID, "subject")},
		fmt.Sprintf("%d assets created", len(assetIDs)), struct {
			AssetPayload
			AssetIDs []string `json:"asset_ids"`
		}{p, assetIDs})
}

func NewAssetUpdated(p AssetPayload, affected []string, by domain.Actor) DomainEvent {
	refs := append(assetRefs(AssetPayload{ID: p.ID, FamilyID: p.FamilyID}), userRefs(affected, "related")...)
	weight := "info"
	if len(p.History) > 0 {
		weight = "minor"
	}
	return newEvent("asset_updated", "asset", weight, by, refs,
		fmt.Sprintf("Asset %s updated", p.AssetID), p)
}

func NewAssetAssigned(p AssetPayload, by domain.Actor) DomainEvent {
	return newEvent("asset_assigned", "asset", "minor", by, assetRefs(p),
		fmt.Sprintf("Asset %s assigned", p.AssetID), p)
}

func NewAssetIDChanged(p AssetPayload, by domain.Actor) DomainEvent {
	return newEvent("asset_id_changed", "asset", "minor", by, assetRefs(AssetPayload{ID: p.ID, FamilyID: p.FamilyID}),
		fmt.Sprintf("Asset id %s changed to %s", p.Previous, p.AssetID), p)
}

// ── Family events ────────────────────────────────────────────────────────────

// FamilyPayload carries event-specific data for family changes.
type FamilyPayload struct {
	ID          string           `json:"id"`
	AssetType   domain.AssetType `json:"asset_type"`
	Name        string           `json:"name"`
	ProductCode string           `json:"product_code"`
	TotalUnits  int              `json:"total_units"`
}

func NewFamilyCreated(p FamilyPayload, by domain.Actor) DomainEvent {
	return newEvent("family_created", "family", "minor", by,
		[]activity.SourceRef{ref("family", p.ID, "subject")},
		fmt.Sprintf("%s family %s created", p.AssetType, p.Name), p)
}

func NewFamilyUpdated(p FamilyPayload, by domain.Actor) DomainEvent {
	return newEvent("family_updated", "family", "info", by,
		[]activity.SourceRef{ref("family", p.ID, "subject")},
		fmt.Sprintf("Family %s updated", p.Name), p)
}

// ── User events ──────────────────────────────────────────────────────────────

// UserPayload carries event-specific data for user changes.
type UserPayload struct {
	ID       string      `json:"id"`
	FullName string      `json:"full_name"`
	Role     domain.Role `json:"role"`
	// Dangling lists assets still pointing at a deleted user.
	Dangling []string `json:"dangling,omitempty"`
}

func NewUserCreated(p UserPayload, by domain.Actor) DomainEvent {
	return newEvent("user_created", "user", "minor", by,
		[]activity.SourceRef{ref("user", p.ID, "subject")},
		fmt.Sprintf("User %s created", p.FullName), p)
}

func NewUserUpdated(p UserPayload, by domain.Actor) DomainEvent {
	return newEvent("user_updated", "user", "info", by,
		[]activity.SourceRef{ref("user", p.ID, "subject")},
		fmt.Sprintf("User %s updated", p.FullName), p)
}

func NewUserDeleted(p UserPayload, by domain.Actor) DomainEvent {
	refs := []activity.SourceRef{ref("user", p.ID, "subject")}
	weight := "minor"
	if len(p.Dangling) > 0 {
		weight = "critical"
		for _, id := range p.Dangling {
			refs = append(refs, ref("asset", id, "related"))
		}
	}
	return newEvent("user_deleted", "user", weight, by, refs,
		fmt.Sprintf("User %s deleted, %d assets still reference them", p.FullName, len(p.Dangling)), p)
}

// ── Settings events ──────────────────────────────────────────────────────────

// SettingsPayload carries event-specific data for configuration changes.
type SettingsPayload struct {
	Key    string   `json:"key"`
	Values []string `json:"values,omitempty"`
}

func NewSettingsChanged(p SettingsPayload, by domain.Actor) DomainEvent {
	return newEvent("settings_changed", "settings", "info", by,
		[]activity.SourceRef{ref("settings", p.Key, "subject")},
		fmt.Sprintf("Setting %s changed", p.Key), p)
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
