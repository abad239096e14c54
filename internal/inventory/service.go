// Package inventory owns catalog families, their asset instances and the
// users who hold them. Asset edits synthesise assignment history and fan it
// out to every affected user before the asset itself is written.
package inventory

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/matthewbaird/assetdesk/internal/domain"
	"github.com/matthewbaird/assetdesk/internal/event"
	"github.com/matthewbaird/assetdesk/internal/rates"
	"github.com/matthewbaird/assetdesk/internal/settings"
	"github.com/matthewbaird/assetdesk/internal/store"
)

// fanOutLimit bounds concurrent user writes during history fan-out.
const fanOutLimit = 4

// Service runs inventory writes against a store.
type Service struct {
	store    store.Store
	settings *settings.Service
	rec      event.Recorder
	rates    rates.Provider
	base     string
	log      *slog.Logger
	now      func() time.Time
}

// New creates a Service. Configuration such as the id scheme and category
// lists is read through cfg.
func New(st store.Store, cfg *settings.Service, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    st,
		settings: cfg,
		rates:    rates.NewMockProvider("USD"),
		base:     "USD",
		log:      logger,
		now:      time.Now,
	}
}

// SetRecorder sets the recorder that receives events after each write.
func (s *Service) SetRecorder(r event.Recorder) { s.rec = r }

// SetRates sets the exchange-rate provider and base currency offered to the
// currency tool.
func (s *Service) SetRates(p rates.Provider, base string) {
	s.rates = p
	s.base = base
}

func (s *Service) scheme(ctx context.Context) (domain.IDScheme, error) {
	if s.settings == nil {
		return domain.DefaultIDScheme, nil
	}
	return s.settings.IDScheme(ctx)
}

// ── Families ─────────────────────────────────────────────────────────────────

func (s *Service) ListFamilies(ctx context.Context) ([]domain.AssetFamily, error) {
	return s.store.ListAssetFamilies(ctx)
}

func (s *Service) GetFamily(ctx context.Context, id string) (domain.AssetFamily, error) {
	return s.store.GetAssetFamily(ctx, id)
}

// CreateFamily adds a catalog family. Only license families carry
// variants; the unit counter starts at zero.
func (s *Service) CreateFamily(ctx context.Context, f domain.AssetFamily, by domain.Actor) (domain.AssetFamily, error) {
	prepareFamily(&f)
	if err := domain.Validate(f); err != nil {
		return domain.AssetFamily{}, err
	}
	if err := checkVariants(f); err != nil {
		return domain.AssetFamily{}, err
	}
	f.ID = uuid.NewString()
	f.TotalUnits = 0
	f.LastSequence = 0
	f.Audit = domain.Audit{}
	f.Stamp(by, s.now())

	if err := s.store.CreateAssetFamily(ctx, f); err != nil {
		return domain.AssetFamily{}, errors.Wrap(err, "creating family")
	}
	event.Emit(ctx, s.rec, event.NewFamilyCreated(familyPayload(f), by))
	return f, nil
}

// UpdateFamily replaces the editable members of a family. The unit counter,
// sequence mark and creation stamp are kept from the stored record.
func (s *Service) UpdateFamily(ctx context.Context, f domain.AssetFamily, by domain.Actor) (domain.AssetFamily, error) {
	prepareFamily(&f)
	if err := domain.Validate(f); err != nil {
		return domain.AssetFamily{}, err
	}
	if err := checkVariants(f); err != nil {
		return domain.AssetFamily{}, err
	}
	err := s.store.InTx(ctx, func(tx store.Store) error {
		before, err := tx.GetAssetFamily(ctx, f.ID)
		if err != nil {
			return errors.Wrapf(err, "family %s", f.ID)
		}
		f.TotalUnits = before.TotalUnits
		f.LastSequence = before.LastSequence
		f.Audit = before.Audit
		f.Stamp(by, s.now())
		return errors.Wrap(tx.UpdateAssetFamily(ctx, f), "updating family")
	})
	if err != nil {
		return domain.AssetFamily{}, err
	}
	event.Emit(ctx, s.rec, event.NewFamilyUpdated(familyPayload(f), by))
	return f, nil
}

func prepareFamily(f *domain.AssetFamily) {
	f.Name = strings.TrimSpace(f.Name)
	f.ProductCode = strings.ToUpper(strings.TrimSpace(f.ProductCode))
	if f.AssignmentModel == "" {
		f.AssignmentModel = domain.AssignmentSingle
	}
	for i := range f.Variants {
		if f.Variants[i].ID == "" {
			f.Variants[i].ID = uuid.NewString()
		}
	}
}

func checkVariants(f domain.AssetFamily) error {
	if !f.IsLicense() && len(f.Variants) > 0 {
		return &domain.ValidationError{Fields: map[string]string{"variants": "only license families have variants"}}
	}
	return nil
}

func familyPayload(f domain.AssetFamily) event.FamilyPayload {
	return event.FamilyPayload{
		ID:          f.ID,
		Name:        f.Name,
		AssetType:   f.AssetType,
		ProductCode: f.ProductCode,
		TotalUnits:  f.TotalUnits,
	}
}
