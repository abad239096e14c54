// Package settings is the configuration service: category lists, the
// asset id scheme, per-context layouts and the vendor/site/department
// reference lists. Everything is read from and written to the store; there
// is no process-wide mutable configuration.
package settings

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/matthewbaird/assetdesk/internal/domain"
	"github.com/matthewbaird/assetdesk/internal/event"
	"github.com/matthewbaird/assetdesk/internal/store"
)

// CategoryKind selects one of the two category lists.
type CategoryKind string

const (
	SoftwareCategories CategoryKind = "software"
	HardwareCategories CategoryKind = "hardware"
)

// Valid reports whether k is a known category list.
func (k CategoryKind) Valid() bool { return k == SoftwareCategories || k == HardwareCategories }

func (k CategoryKind) key() string { return string(k) + "Categories" }

// ForFamily returns the category list used by families of type t.
func ForFamily(t domain.AssetType) CategoryKind {
	if t == domain.AssetTypeLicense {
		return SoftwareCategories
	}
	return HardwareCategories
}

const idSchemeKey = "idScheme"

var defaultCategories = map[CategoryKind][]string{
	SoftwareCategories: {"Productivity", "Communication", "Security", "Design", "Development"},
	HardwareCategories: {"Laptop", "Desktop", "Monitor", "Mobile", "Peripheral", "Network"},
}

var (
	// ErrUnknownKind is returned for category or reference kinds that do
	// not exist.
	ErrUnknownKind = errors.New("unknown settings kind")
	// ErrInvalidScheme is returned for unusable id schemes.
	ErrInvalidScheme = errors.New("invalid id scheme")
)

// Service reads and writes configuration through a store.
type Service struct {
	store store.Store
	rec   event.Recorder
	log   *slog.Logger
}

// New creates a Service.
func New(st store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, log: logger}
}

// SetRecorder sets the recorder for settings_changed events.
func (s *Service) SetRecorder(r event.Recorder) { s.rec = r }

// ── Categories ───────────────────────────────────────────────────────────────

// Categories returns the list for kind, or the built-in defaults when none
// was stored.
func (s *Service) Categories(ctx context.Context, kind CategoryKind) ([]string, error) {
	if !kind.Valid() {
		return nil, errors.Wrapf(ErrUnknownKind, "category kind %q", kind)
	}
	values, err := s.store.GetNamedConfiguration(ctx, kind.key())
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s categories", kind)
	}
	if len(values) == 0 {
		return append([]string(nil), defaultCategories[kind]...), nil
	}
	return values, nil
}

// SetCategories replaces the list for kind. Blank and repeated names are
// dropped.
func (s *Service) SetCategories(ctx context.Context, kind CategoryKind, values []string, by domain.Actor) ([]string, error) {
	if !kind.Valid() {
		return nil, errors.Wrapf(ErrUnknownKind, "category kind %q", kind)
	}
	values = cleanNames(values)
	if err := s.store.SetNamedConfiguration(ctx, kind.key(), values); err != nil {
		return nil, errors.Wrapf(err, "saving %s categories", kind)
	}
	event.Emit(ctx, s.rec, event.NewSettingsChanged(event.SettingsPayload{Key: kind.key(), Values: values}, by))
	return values, nil
}

// ── ID scheme ────────────────────────────────────────────────────────────────

// IDScheme returns the stored scheme. A missing or malformed entry yields
// the default scheme.
func (s *Service) IDScheme(ctx context.Context) (domain.IDScheme, error) {
	values, err := s.store.GetNamedConfiguration(ctx, idSchemeKey)
	if err != nil {
		return domain.IDScheme{}, errors.Wrap(err, "loading id scheme")
	}
	if len(values) == 0 {
		return domain.DefaultIDScheme, nil
	}
	scheme, err := decodeScheme(values)
	if err != nil {
		s.log.Warn("stored id scheme unusable, using default", "values", values, "error", err)
		return domain.DefaultIDScheme, nil
	}
	return scheme, nil
}

// SetIDScheme stores scheme after checking it.
func (s *Service) SetIDScheme(ctx context.Context, scheme domain.IDScheme, by domain.Actor) (domain.IDScheme, error) {
	scheme.LicensePrefix = strings.ToUpper(strings.TrimSpace(scheme.LicensePrefix))
	scheme.HardwarePrefix = strings.ToUpper(strings.TrimSpace(scheme.HardwarePrefix))
	values := encodeScheme(scheme)
	if _, err := decodeScheme(values); err != nil {
		return domain.IDScheme{}, err
	}
	if err := s.store.SetNamedConfiguration(ctx, idSchemeKey, values); err != nil {
		return domain.IDScheme{}, errors.Wrap(err, "saving id scheme")
	}
	event.Emit(ctx, s.rec, event.NewSettingsChanged(event.SettingsPayload{Key: idSchemeKey, Values: values}, by))
	return scheme, nil
}

func encodeScheme(s domain.IDScheme) []string {
	return []string{s.LicensePrefix, s.HardwarePrefix, strconv.Itoa(s.Digits)}
}

func decodeScheme(values []string) (domain.IDScheme, error) {
	if len(values) != 3 {
		return domain.IDScheme{}, errors.Wrapf(ErrInvalidScheme, "want 3 values, got %d", len(values))
	}
	digits, err := strconv.Atoi(values[2])
	if err != nil || digits < 1 || digits > 9 {
		return domain.IDScheme{}, errors.Wrapf(ErrInvalidScheme, "digits %q", values[2])
	}
	if values[0] == "" || values[1] == "" || values[0] == values[1] {
		return domain.IDScheme{}, errors.Wrap(ErrInvalidScheme, "prefixes must be set and distinct")
	}
	return domain.IDScheme{LicensePrefix: values[0], HardwarePrefix: values[1], Digits: digits}, nil
}

// ── References ───────────────────────────────────────────────────────────────

// References returns the names in the list for kind, in store order.
func (s *Service) References(ctx context.Context, kind domain.ReferenceKind) ([]string, error) {
	if !kind.Valid() {
		return nil, errors.Wrapf(ErrUnknownKind, "reference kind %q", kind)
	}
	refs, err := s.store.ListReferences(ctx, kind)
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s", kind)
	}
	names := make([]string, 0, len(refs))
	for _, r := range refs {
		names = append(names, r.Name)
	}
	return names, nil
}

// AddReference adds name to the list for kind. Records refer to it by
// name only.
func (s *Service) AddReference(ctx context.Context, kind domain.ReferenceKind, name string, by domain.Actor) (domain.Reference, error) {
	if !kind.Valid() {
		return domain.Reference{}, errors.Wrapf(ErrUnknownKind, "reference kind %q", kind)
	}
	ref := domain.Reference{ID: newID(), Kind: kind, Name: strings.TrimSpace(name)}
	if err := domain.Validate(ref); err != nil {
		return domain.Reference{}, err
	}
	if err := s.store.AddReference(ctx, ref); err != nil {
		return domain.Reference{}, errors.Wrapf(err, "adding %s", kind)
	}
	event.Emit(ctx, s.rec, event.NewSettingsChanged(event.SettingsPayload{Key: string(kind), Values: []string{"+" + ref.Name}}, by))
	return ref, nil
}

// DeleteReference removes name from the list for kind. Records that still
// carry the name keep it.
func (s *Service) DeleteReference(ctx context.Context, kind domain.ReferenceKind, name string, by domain.Actor) error {
	if !kind.Valid() {
		return errors.Wrapf(ErrUnknownKind, "reference kind %q", kind)
	}
	if err := s.store.DeleteReference(ctx, kind, name); err != nil {
		return errors.Wrapf(err, "deleting %s", kind)
	}
	event.Emit(ctx, s.rec, event.NewSettingsChanged(event.SettingsPayload{Key: string(kind), Values: []string{"-" + name}}, by))
	return nil
}

// ── Snapshot ─────────────────────────────────────────────────────────────────

// Snapshot is every configuration value a client needs at start-up.
type Snapshot struct {
	SoftwareCategories []string        `json:"software_categories"`
	HardwareCategories []string        `json:"hardware_categories"`
	IDScheme           domain.IDScheme `json:"id_scheme"`
	Vendors            []string        `json:"vendors"`
	Sites              []string        `json:"sites"`
	Departments        []string        `json:"departments"`
}

// Snapshot loads the full configuration.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	var (
		snap Snapshot
		err  error
	)
	if snap.SoftwareCategories, err = s.Categories(ctx, SoftwareCategories); err != nil {
		return Snapshot{}, err
	}
	if snap.HardwareCategories, err = s.Categories(ctx, HardwareCategories); err != nil {
		return Snapshot{}, err
	}
	if snap.IDScheme, err = s.IDScheme(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.Vendors, err = s.References(ctx, domain.ReferenceVendors); err != nil {
		return Snapshot{}, err
	}
	if snap.Sites, err = s.References(ctx, domain.ReferenceSites); err != nil {
		return Snapshot{}, err
	}
	if snap.Departments, err = s.References(ctx, domain.ReferenceDepartments); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func cleanNames(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
