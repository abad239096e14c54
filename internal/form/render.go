package form

import (
	"github.com/matthewbaird/assetdesk/internal/fields"
	"github.com/matthewbaird/assetdesk/internal/layout"
)

// TabView is one entry of the tab strip.
type TabView struct {
	Index int    `json:"index"`
	ID    string `json:"id"`
	Title string `json:"title"`
	// Enterable is false for tabs without sections; selecting one is a no-op.
	Enterable bool `json:"enterable"`
}

// SectionView is one rendered section of the active tab.
type SectionView struct {
	ID       string           `json:"id"`
	Title    string           `json:"title"`
	Columns  int              `json:"columns"`
	Controls []fields.Control `json:"controls"`
}

// View is the serialisable state of a form session.
type View struct {
	SessionID string         `json:"session_id"`
	Context   layout.Context `json:"context"`
	State     State          `json:"state"`
	ActiveTab int            `json:"active_tab"`
	Tabs      []TabView      `json:"tabs"`
	Sections  []SectionView  `json:"sections"`
}

// Tabs lists the tab strip for l.
func Tabs(l layout.Layout) []TabView {
	out := make([]TabView, len(l.Tabs))
	for i, t := range l.Tabs {
		out[i] = TabView{Index: i, ID: t.ID, Title: t.Title, Enterable: len(t.Sections) > 0}
	}
	return out
}

// Render resolves every field key of tab against d. Keys that resolve to
// nothing are dropped; sections keep their place even when all of their
// controls are dropped. An out of range tab renders nothing.
func Render(l layout.Layout, tab int, d fields.Draft, env fields.Env) []SectionView {
	out := []SectionView{}
	if tab < 0 || tab >= len(l.Tabs) {
		return out
	}
	for _, s := range l.Tabs[tab].Sections {
		sv := SectionView{
			ID:       s.ID,
			Title:    s.Title,
			Columns:  layout.ClampColumns(s.Columns),
			Controls: []fields.Control{},
		}
		for _, key := range s.Fields {
			c := fields.Resolve(key, d, env)
			if !c.Visible() {
				continue
			}
			sv.Controls = append(sv.Controls, c)
		}
		out = append(out, sv)
	}
	return out
}
