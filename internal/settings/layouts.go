package settings

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/matthewbaird/assetdesk/internal/domain"
	"github.com/matthewbaird/assetdesk/internal/event"
	"github.com/matthewbaird/assetdesk/internal/layout"
	"github.com/matthewbaird/assetdesk/internal/store"
)

// ErrUnknownContext is returned for layout contexts that do not exist.
var ErrUnknownContext = errors.New("unknown layout context")

func newID() string { return uuid.NewString() }

func layoutKey(c layout.Context) string { return "layout:" + string(c) }

// Layout returns the stored layout for c. A missing blob yields the
// built-in default; an unreadable one is logged and also yields the
// default.
func (s *Service) Layout(ctx context.Context, c layout.Context) (layout.Layout, error) {
	if !c.Valid() {
		return layout.Layout{}, errors.Wrapf(ErrUnknownContext, "%q", c)
	}
	def, _ := layout.Default(c)

	blob, err := s.store.GetLayout(ctx, layoutKey(c))
	if errors.Is(err, store.ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return layout.Layout{}, errors.Wrapf(err, "loading %s layout", c)
	}
	l, err := layout.UnmarshalBlob(blob)
	if err != nil {
		s.log.Warn("stored layout unreadable, using default", "context", c, "error", err)
		return def, nil
	}
	return l, nil
}

// Layouts returns the effective layout of every context.
func (s *Service) Layouts(ctx context.Context) (map[layout.Context]layout.Layout, error) {
	out := make(map[layout.Context]layout.Layout, len(layout.Contexts))
	for _, c := range layout.Contexts {
		l, err := s.Layout(ctx, c)
		if err != nil {
			return nil, err
		}
		out[c] = l
	}
	return out, nil
}

// SaveLayout replaces the layout for c after checking its shape.
func (s *Service) SaveLayout(ctx context.Context, c layout.Context, l layout.Layout, by domain.Actor) (layout.Layout, error) {
	if !c.Valid() {
		return layout.Layout{}, errors.Wrapf(ErrUnknownContext, "%q", c)
	}
	for i := range l.Tabs {
		if l.Tabs[i].ID == "" {
			l.Tabs[i].ID = newID()
		}
		for j := range l.Tabs[i].Sections {
			sec := &l.Tabs[i].Sections[j]
			if sec.ID == "" {
				sec.ID = newID()
			}
			sec.Columns = layout.ClampColumns(sec.Columns)
		}
	}
	if err := layout.Validate(l); err != nil {
		return layout.Layout{}, &domain.ValidationError{Fields: map[string]string{"layout": err.Error()}}
	}
	blob, err := layout.MarshalBlob(l)
	if err != nil {
		return layout.Layout{}, errors.Wrap(err, "encoding layout")
	}
	if err := s.store.SetLayout(ctx, layoutKey(c), blob); err != nil {
		return layout.Layout{}, errors.Wrapf(err, "saving %s layout", c)
	}
	s.log.Info("layout saved", "context", c, "tabs", len(l.Tabs), "actor", by.Name)
	event.Emit(ctx, s.rec, event.NewSettingsChanged(event.SettingsPayload{Key: layoutKey(c)}, by))
	return layout.UnmarshalBlob(blob)
}

// EditLayout applies ops in order to the current layout of c and saves the
// result. Ops that fall out of range leave the layout unchanged; an
// unknown op aborts without saving.
func (s *Service) EditLayout(ctx context.Context, c layout.Context, ops []layout.Op, by domain.Actor) (layout.Layout, error) {
	l, err := s.Layout(ctx, c)
	if err != nil {
		return layout.Layout{}, err
	}
	for i, op := range ops {
		if err := domain.Validate(op); err != nil {
			return layout.Layout{}, err
		}
		if _, err := l.Apply(op); err != nil {
			return layout.Layout{}, &domain.ValidationError{Fields: map[string]string{
				"ops[" + strconv.Itoa(i) + "]": err.Error(),
			}}
		}
	}
	return s.SaveLayout(ctx, c, l, by)
}

// ResetLayout restores the built-in layout for c.
func (s *Service) ResetLayout(ctx context.Context, c layout.Context, by domain.Actor) (layout.Layout, error) {
	def, ok := layout.Default(c)
	if !ok {
		return layout.Layout{}, errors.Wrapf(ErrUnknownContext, "%q", c)
	}
	return s.SaveLayout(ctx, c, def, by)
}
