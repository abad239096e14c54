package activity

import (
	"slices"
	"sort"
	"time"
)

// CategorySummary aggregates the entries of one category.
type CategorySummary struct {
	Category    string         `json:"category"`
	Count       int            `json:"count"`
	ByWeight    map[string]int `json:"by_weight"`
	ByEventType map[string]int `json:"by_event_type"`
	Trend       string         `json:"trend"` // "rising", "steady", "falling"
}

// FlagRule raises a flag when at least Count matching entries fall within
// the last WithinDays days.
type FlagRule struct {
	ID          string   `json:"id"`
	EntityType  string   `json:"entity_type"`
	EventTypes  []string `json:"event_types"`
	MinWeight   string   `json:"min_weight,omitempty"`
	Count       int      `json:"count"`
	WithinDays  int      `json:"within_days"`
	Weight      string   `json:"weight"`
	Description string   `json:"description"`
}

// Flag is a rule that fired.
type Flag struct {
	Rule     FlagRule  `json:"rule"`
	Count    int       `json:"count"`
	Earliest time.Time `json:"earliest"`
	Latest   time.Time `json:"latest"`
}

// Summary is the pre-aggregated activity overview of one entity.
type Summary struct {
	EntityType string                     `json:"entity_type"`
	EntityID   string                     `json:"entity_id"`
	Since      time.Time                  `json:"since"`
	Until      time.Time                  `json:"until"`
	Total      int                        `json:"total"`
	Categories map[string]CategorySummary `json:"categories"`
	Flags      []Flag                     `json:"flags"`
	Health     string                     `json:"health"` // "normal", "watch", "critical"
	Reason     string                     `json:"reason"`
}

// FlagRules are evaluated by Summarize against the entity's entries.
var FlagRules = []FlagRule{
	{
		ID: "asset_churn", EntityType: "asset",
		EventTypes: []string{"asset_assigned", "asset_updated"}, MinWeight: "minor",
		Count: 3, WithinDays: 30, Weight: "major",
		Description: "Ownership changed three or more times in 30 days",
	},
	{
		ID: "user_rejections", EntityType: "user",
		EventTypes: []string{"request_rejected"},
		Count: 3, WithinDays: 90, Weight: "major",
		Description: "Three or more requests rejected in 90 days",
	},
	{
		ID: "dangling_owner", EntityType: "asset",
		EventTypes: []string{"user_deleted"}, MinWeight: "critical",
		Count: 1, WithinDays: 365, Weight: "critical",
		Description: "A deleted user is still recorded as an owner",
	},
	{
		ID: "family_reissue", EntityType: "family",
		EventTypes: []string{"asset_created"},
		Count: 20, WithinDays: 30, Weight: "minor",
		Description: "Twenty or more instances issued in 30 days",
	},
}

// Summarize aggregates entries indexed under one entity within [since, until].
func Summarize(entries []Entry, entityType, entityID string, since, until time.Time, now time.Time) Summary {
	categories := make(map[string]*CategorySummary)
	for _, e := range entries {
		cs, ok := categories[e.Category]
		if !ok {
			cs = &CategorySummary{
				Category:    e.Category,
				ByWeight:    make(map[string]int),
				ByEventType: make(map[string]int),
			}
			categories[e.Category] = cs
		}
		cs.Count++
		cs.ByWeight[e.Weight]++
		cs.ByEventType[e.EventType]++
	}

	result := make(map[string]CategorySummary, len(categories))
	for cat, cs := range categories {
		cs.Trend = trend(entries, cat, since, until)
		result[cat] = *cs
	}

	flags := EvaluateFlags(entries, entityType, now)
	health, reason := assess(result, flags)
	if flags == nil {
		flags = []Flag{}
	}
	return Summary{
		EntityType: entityType,
		EntityID:   entityID,
		Since:      since,
		Until:      until,
		Total:      len(entries),
		Categories: result,
		Flags:      flags,
		Health:     health,
		Reason:     reason,
	}
}

// EvaluateFlags runs every rule registered for entityType.
func EvaluateFlags(entries []Entry, entityType string, now time.Time) []Flag {
	var flags []Flag
	for _, rule := range FlagRules {
		if rule.EntityType != entityType {
			continue
		}
		if f, ok := evaluate(rule, entries, now); ok {
			flags = append(flags, f)
		}
	}
	return flags
}

func evaluate(rule FlagRule, entries []Entry, now time.Time) (Flag, bool) {
	windowStart := now.AddDate(0, 0, -rule.WithinDays)
	var matching []Entry
	for _, e := range entries {
		if e.OccurredAt.Before(windowStart) {
			continue
		}
		if !slices.Contains(rule.EventTypes, e.EventType) {
			continue
		}
		if rule.MinWeight != "" && !IsAtLeastWeight(e.Weight, rule.MinWeight) {
			continue
		}
		matching = append(matching, e)
	}
	if len(matching) < rule.Count {
		return Flag{}, false
	}

	sort.Slice(matching, func(i, j int) bool {
		return matching[i].OccurredAt.Before(matching[j].OccurredAt)
	})
	return Flag{
		Rule:     rule,
		Count:    len(matching),
		Earliest: matching[0].OccurredAt,
		Latest:   matching[len(matching)-1].OccurredAt,
	}, true
}

// trend compares the volume of a category in the two halves of the window.
func trend(entries []Entry, category string, since, until time.Time) string {
	mid := since.Add(until.Sub(since) / 2)
	var first, second int
	for _, e := range entries {
		if e.Category != category {
			continue
		}
		if e.OccurredAt.Before(mid) {
			first++
		} else {
			second++
		}
	}
	switch {
	case second > first+1:
		return "rising"
	case first > second+1:
		return "falling"
	}
	return "steady"
}

func assess(categories map[string]CategorySummary, flags []Flag) (string, string) {
	for _, f := range flags {
		if f.Rule.Weight == "critical" {
			return "critical", f.Rule.Description
		}
	}
	var critical int
	for _, cs := range categories {
		critical += cs.ByWeight["critical"]
	}
	if critical > 0 {
		return "critical", "Critical activity recorded in the period."
	}
	if len(flags) > 0 {
		return "watch", flags[0].Rule.Description
	}
	return "normal", "No unusual activity."
}
