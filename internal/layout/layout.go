// Package layout describes, per entity context, the ordered tabs, sections
// and field keys an editor shows. Layouts are plain data: nothing here knows
// how a field renders, and unknown field keys are carried without complaint.
package layout

import (
	"slices"

	"github.com/google/uuid"
)

// Context names an entity editor whose layout is configurable.
type Context string

const (
	LicenseFamily    Context = "licenseFamily"
	HardwareFamily   Context = "hardwareFamily"
	LicenseInstance  Context = "licenseInstance"
	HardwareInstance Context = "hardwareInstance"
	UserProfile      Context = "userProfile"
)

// Contexts lists every layout context.
var Contexts = []Context{LicenseFamily, HardwareFamily, LicenseInstance, HardwareInstance, UserProfile}

// Valid reports whether c is a known context.
func (c Context) Valid() bool { return slices.Contains(Contexts, c) }

const (
	MinColumns = 1
	MaxColumns = 4
)

// Layout is the ordered list of tabs for one context.
type Layout struct {
	Tabs []Tab `json:"tabs" yaml:"tabs"`
}

// Tab groups sections under a title.
type Tab struct {
	ID       string    `json:"id" yaml:"id"`
	Title    string    `json:"title" yaml:"title"`
	Sections []Section `json:"sections" yaml:"sections"`
}

// Section is a titled grid of field keys.
type Section struct {
	ID      string   `json:"id" yaml:"id"`
	Title   string   `json:"title" yaml:"title"`
	Columns int      `json:"columns" yaml:"columns"`
	Fields  []string `json:"fields" yaml:"fields"`
}

// Clone returns a deep copy of the layout.
func (l Layout) Clone() Layout {
	out := Layout{Tabs: make([]Tab, len(l.Tabs))}
	for i, t := range l.Tabs {
		t.Sections = slices.Clone(t.Sections)
		for j := range t.Sections {
			t.Sections[j].Fields = slices.Clone(t.Sections[j].Fields)
		}
		out.Tabs[i] = t
	}
	return out
}

// normalize replaces nil slices with empty ones and clamps column counts.
func (l *Layout) normalize() {
	l.fillSlices()
	for i := range l.Tabs {
		for j := range l.Tabs[i].Sections {
			s := &l.Tabs[i].Sections[j]
			s.Columns = ClampColumns(s.Columns)
		}
	}
}

func (l *Layout) fillSlices() {
	if l.Tabs == nil {
		l.Tabs = []Tab{}
	}
	for i := range l.Tabs {
		t := &l.Tabs[i]
		if t.Sections == nil {
			t.Sections = []Section{}
		}
		for j := range t.Sections {
			if t.Sections[j].Fields == nil {
				t.Sections[j].Fields = []string{}
			}
		}
	}
}

// ClampColumns forces n into the supported column range.
func ClampColumns(n int) int {
	return min(max(n, MinColumns), MaxColumns)
}

// FieldKeys returns every field key placed anywhere in the layout, in
// display order.
func (l Layout) FieldKeys() []string {
	var keys []string
	for _, t := range l.Tabs {
		for _, s := range t.Sections {
			keys = append(keys, s.Fields...)
		}
	}
	return keys
}

func newID() string { return uuid.NewString() }

// swap exchanges s[i] with its neighbour in direction dir (-1 or +1).
// Moves that would leave the slice are ignored.
func swap[T any](s []T, i, dir int) bool {
	if dir != -1 && dir != 1 {
		return false
	}
	j := i + dir
	if i < 0 || i >= len(s) || j < 0 || j >= len(s) {
		return false
	}
	s[i], s[j] = s[j], s[i]
	return true
}

func (l *Layout) tab(i int) *Tab {
	if i < 0 || i >= len(l.Tabs) {
		return nil
	}
	return &l.Tabs[i]
}

func (l *Layout) section(tab, sec int) *Section {
	t := l.tab(tab)
	if t == nil || sec < 0 || sec >= len(t.Sections) {
		return nil
	}
	return &t.Sections[sec]
}

// AddTab appends an empty tab.
func (l *Layout) AddTab(title string) Tab {
	t := Tab{ID: newID(), Title: title, Sections: []Section{}}
	l.Tabs = append(l.Tabs, t)
	return t
}

func (l *Layout) RemoveTab(i int) bool {
	if l.tab(i) == nil {
		return false
	}
	l.Tabs = slices.Delete(l.Tabs, i, i+1)
	return true
}

func (l *Layout) RenameTab(i int, title string) bool {
	t := l.tab(i)
	if t == nil {
		return false
	}
	t.Title = title
	return true
}

func (l *Layout) MoveTab(i, dir int) bool { return swap(l.Tabs, i, dir) }

// AddSection appends a section to tab, clamping columns into range.
func (l *Layout) AddSection(tab int, title string, columns int) (Section, bool) {
	t := l.tab(tab)
	if t == nil {
		return Section{}, false
	}
	s := Section{ID: newID(), Title: title, Columns: ClampColumns(columns), Fields: []string{}}
	t.Sections = append(t.Sections, s)
	return s, true
}

func (l *Layout) RemoveSection(tab, sec int) bool {
	if l.section(tab, sec) == nil {
		return false
	}
	t := l.tab(tab)
	t.Sections = slices.Delete(t.Sections, sec, sec+1)
	return true
}

func (l *Layout) UpdateSection(tab, sec int, title string, columns int) bool {
	s := l.section(tab, sec)
	if s == nil {
		return false
	}
	s.Title = title
	s.Columns = ClampColumns(columns)
	return true
}

func (l *Layout) MoveSection(tab, sec, dir int) bool {
	t := l.tab(tab)
	if t == nil {
		return false
	}
	return swap(t.Sections, sec, dir)
}

// PlaceField appends key to a section unless it is already there.
func (l *Layout) PlaceField(tab, sec int, key string) bool {
	s := l.section(tab, sec)
	if s == nil || key == "" || slices.Contains(s.Fields, key) {
		return false
	}
	s.Fields = append(s.Fields, key)
	return true
}

func (l *Layout) RemoveField(tab, sec int, key string) bool {
	s := l.section(tab, sec)
	if s == nil {
		return false
	}
	i := slices.Index(s.Fields, key)
	if i < 0 {
		return false
	}
	s.Fields = slices.Delete(s.Fields, i, i+1)
	return true
}

func (l *Layout) MoveField(tab, sec, idx, dir int) bool {
	s := l.section(tab, sec)
	if s == nil {
		return false
	}
	return swap(s.Fields, idx, dir)
}
