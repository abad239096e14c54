package layout

import (
	_ "embed"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed defaults.cue
var defaultsSource []byte

// catalog holds the compiled CUE document. cue.Context is not safe for
// concurrent use, so every evaluation goes through mu.
type catalog struct {
	mu       sync.Mutex
	ctx      *cue.Context
	schema   cue.Value
	defaults map[Context]Layout
}

var loadCatalog = sync.OnceValues(func() (*catalog, error) {
	ctx := cuecontext.New()
	root := ctx.CompileBytes(defaultsSource, cue.Filename("defaults.cue"))
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("compiling default layouts: %w", err)
	}
	if err := root.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validating default layouts: %w", err)
	}

	cat := &catalog{
		ctx:      ctx,
		schema:   root.LookupPath(cue.ParsePath("#Layout")),
		defaults: make(map[Context]Layout, len(Contexts)),
	}
	for _, c := range Contexts {
		v := root.LookupPath(cue.MakePath(cue.Str("layouts"), cue.Str(string(c))))
		if !v.Exists() {
			return nil, fmt.Errorf("no default layout for %s", c)
		}
		var l Layout
		if err := v.Decode(&l); err != nil {
			return nil, fmt.Errorf("decoding default layout %s: %w", c, err)
		}
		l.normalize()
		cat.defaults[c] = l
	}
	return cat, nil
})

func mustCatalog() *catalog {
	cat, err := loadCatalog()
	if err != nil {
		panic(err)
	}
	return cat
}

// Default returns a copy of the built-in layout for c.
func Default(c Context) (Layout, bool) {
	l, ok := mustCatalog().defaults[c]
	if !ok {
		return Layout{}, false
	}
	return l.Clone(), true
}

// Defaults returns copies of every built-in layout.
func Defaults() map[Context]Layout {
	out := make(map[Context]Layout, len(Contexts))
	for _, c := range Contexts {
		out[c], _ = Default(c)
	}
	return out
}

// Validate checks l against the #Layout definition: every tab and section
// needs an id and columns must lie in 1..4. Field keys are not checked.
func Validate(l Layout) error {
	cat := mustCatalog()
	l = l.Clone()
	l.fillSlices()

	cat.mu.Lock()
	defer cat.mu.Unlock()
	v := cat.schema.Unify(cat.ctx.Encode(l))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid layout: %w", err)
	}
	return nil
}
