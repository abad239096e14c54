package layout

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// MarshalBlob encodes l as the opaque JSON blob persisted per context.
func MarshalBlob(l Layout) ([]byte, error) {
	l = l.Clone()
	l.fillSlices()
	return json.Marshal(l)
}

// UnmarshalBlob decodes a persisted blob. Column counts outside 1..4 are
// clamped; field keys are kept as stored.
func UnmarshalBlob(b []byte) (Layout, error) {
	var l Layout
	if err := json.Unmarshal(b, &l); err != nil {
		return Layout{}, fmt.Errorf("decoding layout: %w", err)
	}
	l.normalize()
	return l, nil
}

// MarshalYAML encodes layouts keyed by context, for export.
func MarshalYAML(layouts map[Context]Layout) ([]byte, error) {
	doc := make(map[string]Layout, len(layouts))
	for c, l := range layouts {
		l = l.Clone()
		l.fillSlices()
		doc[string(c)] = l
	}
	return yaml.Marshal(doc)
}

// UnmarshalYAML decodes a document produced by MarshalYAML. Unknown context
// keys are dropped.
func UnmarshalYAML(b []byte) (map[Context]Layout, error) {
	var doc map[string]Layout
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decoding layouts: %w", err)
	}
	out := make(map[Context]Layout, len(doc))
	for k, l := range doc {
		c := Context(k)
		if !c.Valid() {
			continue
		}
		l.normalize()
		out[c] = l
	}
	return out, nil
}
