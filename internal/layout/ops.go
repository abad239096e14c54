package layout

import "fmt"

// OpKind names an admin editing gesture.
type OpKind string

const (
	OpAddTab        OpKind = "add_tab"
	OpRemoveTab     OpKind = "remove_tab"
	OpRenameTab     OpKind = "rename_tab"
	OpMoveTab       OpKind = "move_tab"
	OpAddSection    OpKind = "add_section"
	OpRemoveSection OpKind = "remove_section"
	OpUpdateSection OpKind = "update_section"
	OpMoveSection   OpKind = "move_section"
	OpPlaceField    OpKind = "place_field"
	OpRemoveField   OpKind = "remove_field"
	OpMoveField     OpKind = "move_field"
)

// Op is one serialisable edit. Only the members relevant to Kind are read.
type Op struct {
	Kind      OpKind `json:"op" validate:"required"`
	Tab       int    `json:"tab"`
	Section   int    `json:"section"`
	Field     int    `json:"field"`
	Direction int    `json:"direction"`
	Title     string `json:"title,omitempty"`
	Columns   int    `json:"columns,omitempty"`
	Key       string `json:"key,omitempty"`
}

// Apply performs op on l. It reports whether the layout changed; edits
// addressing missing tabs or sections change nothing and are not errors.
func (l *Layout) Apply(op Op) (bool, error) {
	switch op.Kind {
	case OpAddTab:
		l.AddTab(op.Title)
		return true, nil
	case OpRemoveTab:
		return l.RemoveTab(op.Tab), nil
	case OpRenameTab:
		return l.RenameTab(op.Tab, op.Title), nil
	case OpMoveTab:
		return l.MoveTab(op.Tab, op.Direction), nil
	case OpAddSection:
		_, ok := l.AddSection(op.Tab, op.Title, op.Columns)
		return ok, nil
	case OpRemoveSection:
		return l.RemoveSection(op.Tab, op.Section), nil
	case OpUpdateSection:
		return l.UpdateSection(op.Tab, op.Section, op.Title, op.Columns), nil
	case OpMoveSection:
		return l.MoveSection(op.Tab, op.Section, op.Direction), nil
	case OpPlaceField:
		return l.PlaceField(op.Tab, op.Section, op.Key), nil
	case OpRemoveField:
		return l.RemoveField(op.Tab, op.Section, op.Key), nil
	case OpMoveField:
		return l.MoveField(op.Tab, op.Section, op.Field, op.Direction), nil
	}
	return false, fmt.Errorf("unknown layout op %q", op.Kind)
}
