package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults_EveryContextLoads(t *testing.T) {
	for _, c := range Contexts {
		l, ok := Default(c)
		require.True(t, ok, c)
		assert.NotEmpty(t, l.Tabs, c)
		require.NoError(t, Validate(l), c)
	}
}

func TestDefaults_SectionColumns(t *testing.T) {
	l, _ := Default(LicenseFamily)
	assert.Equal(t, 2, l.Tabs[0].Sections[0].Columns)
	assert.Equal(t, 1, l.Tabs[0].Sections[1].Columns)
}

func TestDefault_ReturnsCopy(t *testing.T) {
	a, _ := Default(UserProfile)
	a.Tabs[0].Sections[0].Fields[0] = "mutated"
	b, _ := Default(UserProfile)
	assert.Equal(t, "fullName", b.Tabs[0].Sections[0].Fields[0])
}

func TestBlobRoundTrip_PreservesOrderAndGrouping(t *testing.T) {
	for _, c := range Contexts {
		l, _ := Default(c)
		blob, err := MarshalBlob(l)
		require.NoError(t, err)
		back, err := UnmarshalBlob(blob)
		require.NoError(t, err)
		assert.Equal(t, l, back, c)
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	all := Defaults()
	b, err := MarshalYAML(all)
	require.NoError(t, err)
	back, err := UnmarshalYAML(b)
	require.NoError(t, err)
	assert.Equal(t, all, back)
}

func TestUnmarshalBlob_ClampsColumnsAndKeepsUnknownKeys(t *testing.T) {
	l, err := UnmarshalBlob([]byte(`{"tabs":[{"id":"t","title":"T","sections":[{"id":"s","title":"S","columns":9,"fields":["bogus","name"]}]}]}`))
	require.NoError(t, err)
	assert.Equal(t, MaxColumns, l.Tabs[0].Sections[0].Columns)
	assert.Equal(t, []string{"bogus", "name"}, l.Tabs[0].Sections[0].Fields)
}

func TestUnmarshalBlob_Malformed(t *testing.T) {
	_, err := UnmarshalBlob([]byte(`{"tabs":`))
	assert.Error(t, err)
}

func TestValidate_RejectsOutOfRangeColumns(t *testing.T) {
	l := Layout{Tabs: []Tab{{ID: "t", Title: "T", Sections: []Section{{ID: "s", Title: "S", Columns: 7}}}}}
	assert.Error(t, Validate(l))
	l.Tabs[0].Sections[0].Columns = 4
	assert.NoError(t, Validate(l))
}

func TestValidate_RequiresIDs(t *testing.T) {
	l := Layout{Tabs: []Tab{{Title: "no id"}}}
	assert.Error(t, Validate(l))
}

func TestMoves_AreAdjacentSwaps(t *testing.T) {
	l := Layout{}
	l.AddTab("A")
	l.AddTab("B")
	l.AddTab("C")

	assert.True(t, l.MoveTab(0, 1))
	assert.Equal(t, []string{"B", "A", "C"}, titles(l))

	assert.False(t, l.MoveTab(0, -1), "moving past the start is a no-op")
	assert.False(t, l.MoveTab(2, 1), "moving past the end is a no-op")
	assert.False(t, l.MoveTab(1, 2), "only adjacent moves")
	assert.Equal(t, []string{"B", "A", "C"}, titles(l))
}

func TestSectionAndFieldEditing(t *testing.T) {
	l := Layout{}
	l.AddTab("General")
	s, ok := l.AddSection(0, "Details", 0)
	require.True(t, ok)
	assert.Equal(t, MinColumns, s.Columns)

	assert.True(t, l.PlaceField(0, 0, "name"))
	assert.True(t, l.PlaceField(0, 0, "vendor"))
	assert.False(t, l.PlaceField(0, 0, "name"), "duplicates are ignored")
	assert.True(t, l.MoveField(0, 0, 1, -1))
	assert.Equal(t, []string{"vendor", "name"}, l.Tabs[0].Sections[0].Fields)

	assert.True(t, l.UpdateSection(0, 0, "Main", 12))
	assert.Equal(t, MaxColumns, l.Tabs[0].Sections[0].Columns)

	assert.True(t, l.RemoveField(0, 0, "vendor"))
	assert.False(t, l.RemoveField(0, 0, "vendor"))
	assert.False(t, l.PlaceField(3, 0, "name"), "missing tab")

	assert.True(t, l.RemoveSection(0, 0))
	assert.Empty(t, l.Tabs[0].Sections)
	assert.True(t, l.RemoveTab(0))
	assert.Empty(t, l.Tabs)
}

func TestApply(t *testing.T) {
	l, _ := Default(HardwareFamily)
	changed, err := l.Apply(Op{Kind: OpRenameTab, Tab: 1, Title: "Pictures"})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "Pictures", l.Tabs[1].Title)

	changed, err = l.Apply(Op{Kind: OpMoveSection, Tab: 0, Section: 0, Direction: 1})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "hf-description", l.Tabs[0].Sections[0].ID)

	changed, err = l.Apply(Op{Kind: OpRemoveTab, Tab: 9})
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = l.Apply(Op{Kind: "explode"})
	assert.Error(t, err)
}

func TestUnplaced(t *testing.T) {
	l, _ := Default(LicenseInstance)
	missing := Unplaced(LicenseInstance, l)
	assert.Contains(t, missing, "cost")
	assert.NotContains(t, missing, "assignedUsers")
}

func titles(l Layout) []string {
	out := make([]string, len(l.Tabs))
	for i, t := range l.Tabs {
		out[i] = t.Title
	}
	return out
}
