package inventory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/matthewbaird/assetdesk/internal/domain"
	"github.com/matthewbaird/assetdesk/internal/event"
	"github.com/matthewbaird/assetdesk/internal/history"
	"github.com/matthewbaird/assetdesk/internal/metrics"
	"github.com/matthewbaird/assetdesk/internal/store"
)

// AssetResult is a committed asset write together with the user records
// that received history entries.
type AssetResult struct {
	Asset   domain.Asset          `json:"asset"`
	Users   []domain.User         `json:"users,omitempty"`
	History []domain.HistoryEntry `json:"history,omitempty"`
}

// EditOptions qualify the history written for an asset edit.
type EditOptions struct {
	Notes string `json:"notes,omitempty"`
	// Lost records a removed owner as Lost instead of Returned.
	Lost bool `json:"lost,omitempty"`
}

// BulkSpec describes a batch of new instances of one family.
type BulkSpec struct {
	Count int `json:"count" validate:"min=1,max=500"`
	// Variant names the license variant whose cost the instances carry;
	// empty picks the first variant.
	Variant      string             `json:"variant,omitempty"`
	Status       domain.AssetStatus `json:"status,omitempty" validate:"omitempty,oneof=Available Active Storage Expired Retired In-Repair Pending Suspended Inactive"`
	PurchaseDate string             `json:"purchase_date,omitempty" validate:"omitempty,isodate"`
	ExpiryDate   string             `json:"expiry_date,omitempty" validate:"omitempty,isodate"`
	Site         string             `json:"site,omitempty"`
}

func (s *Service) ListAssets(ctx context.Context) ([]domain.Asset, error) {
	return s.store.ListAssets(ctx)
}

func (s *Service) GetAsset(ctx context.Context, id string) (domain.Asset, error) {
	return s.store.GetAsset(ctx, id)
}

// CreateAsset issues one instance of its family with a generated asset id.
// Owners given at creation receive an Assigned entry.
func (s *Service) CreateAsset(ctx context.Context, a domain.Asset, by domain.Actor) (AssetResult, error) {
	if a.Status == "" {
		a.Status = domain.StatusAvailable
	}
	if err := domain.Validate(a); err != nil {
		return AssetResult{}, err
	}
	scheme, err := s.scheme(ctx)
	if err != nil {
		return AssetResult{}, err
	}

	var res AssetResult
	err = s.store.InTx(ctx, func(tx store.Store) error {
		fam, err := tx.GetAssetFamily(ctx, a.FamilyID)
		if err != nil {
			return errors.Wrapf(err, "family %s", a.FamilyID)
		}
		existing, err := tx.ListAssets(ctx)
		if err != nil {
			return errors.Wrap(err, "listing assets")
		}

		now := s.now()
		a.ID = uuid.NewString()
		a.AssetID = scheme.Next(&fam, existing, 1)[0]
		if a.Title == "" {
			a.Title = fam.Name
		}
		a.SetOwners(fam.AssignmentModel, mergedOwners(a))
		a.Audit = domain.Audit{}
		a.Stamp(by, now)

		entries := history.Synthesize(domain.Asset{}, a, history.Options{Now: now})
		users, err := s.deliver(ctx, tx, entries)
		if err != nil {
			return err
		}

		fam.TotalUnits++
		if err := tx.UpdateAssetFamily(ctx, fam); err != nil {
			return errors.Wrap(err, "counting unit")
		}
		if err := tx.CreateAsset(ctx, a); err != nil {
			return errors.Wrap(err, "creating asset")
		}
		res = AssetResult{Asset: a, Users: users, History: entries}
		return nil
	})
	if err != nil {
		return AssetResult{}, err
	}

	metrics.HistoryEntriesWritten.Add(float64(len(res.Users)))
	event.Emit(ctx, s.rec, event.NewAssetCreated(assetPayload(res.Asset, res.History), by))
	return res, nil
}

// BulkCreate issues spec.Count instances of a family in one write. Asset
// ids continue after the highest sequence the family ever issued.
func (s *Service) BulkCreate(ctx context.Context, familyID string, spec BulkSpec, by domain.Actor) ([]domain.Asset, error) {
	if spec.Status == "" {
		spec.Status = domain.StatusAvailable
	}
	if err := domain.Validate(spec); err != nil {
		return nil, err
	}
	scheme, err := s.scheme(ctx)
	if err != nil {
		return nil, err
	}

	var created []domain.Asset
	err = s.store.InTx(ctx, func(tx store.Store) error {
		fam, err := tx.GetAssetFamily(ctx, familyID)
		if err != nil {
			return errors.Wrapf(err, "family %s", familyID)
		}
		variant, err := pickVariant(fam, spec.Variant)
		if err != nil {
			return err
		}
		existing, err := tx.ListAssets(ctx)
		if err != nil {
			return errors.Wrap(err, "listing assets")
		}

		now := s.now()
		purchase := spec.PurchaseDate
		if purchase == "" {
			purchase = domain.Today(now)
		}
		for _, assetID := range scheme.Next(&fam, existing, spec.Count) {
			a := domain.Asset{
				ID:           uuid.NewString(),
				AssetID:      assetID,
				FamilyID:     fam.ID,
				Title:        fam.Name,
				Status:       spec.Status,
				Cost:         variant.Cost,
				PurchaseDate: purchase,
				ExpiryDate:   spec.ExpiryDate,
				Site:         spec.Site,
			}
			if fam.IsLicense() {
				a.VariantType = variant.Name
			}
			a.Stamp(by, now)
			created = append(created, a)
		}

		if err := tx.CreateAssetsBulk(ctx, created); err != nil {
			return errors.Wrap(err, "creating assets")
		}
		fam.TotalUnits += len(created)
		return errors.Wrap(tx.UpdateAssetFamily(ctx, fam), "counting units")
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(created))
	for i, a := range created {
		ids[i] = a.AssetID
	}
	s.log.Info("assets bulk created", "family_id", familyID, "count", len(created), "actor", by.Name)
	event.Emit(ctx, s.rec, event.NewAssetsBulkCreated(familyID, ids, by))
	return created, nil
}

func pickVariant(fam domain.AssetFamily, name string) (domain.Variant, error) {
	if name == "" {
		v, _ := fam.FirstVariant()
		return v, nil
	}
	if !fam.IsLicense() {
		return domain.Variant{}, &domain.ValidationError{Fields: map[string]string{"variant": "only license families have variants"}}
	}
	v, ok := fam.VariantByName(name)
	if !ok {
		return domain.Variant{}, &domain.ValidationError{Fields: map[string]string{"variant": "unknown variant " + name}}
	}
	return v, nil
}

// UpdateAsset commits an edited asset. Ownership and usage are diffed
// against the stored record; the resulting history entries are written to
// every affected user first, then the asset is written. The asset id and
// family never change here.
func (s *Service) UpdateAsset(ctx context.Context, a domain.Asset, opts EditOptions, by domain.Actor) (AssetResult, error) {
	if err := domain.Validate(a); err != nil {
		return AssetResult{}, err
	}

	var res AssetResult
	err := s.store.InTx(ctx, func(tx store.Store) error {
		before, err := tx.GetAsset(ctx, a.ID)
		if err != nil {
			return errors.Wrapf(err, "asset %s", a.ID)
		}
		fam, err := tx.GetAssetFamily(ctx, before.FamilyID)
		if err != nil {
			return errors.Wrapf(err, "family %s", before.FamilyID)
		}

		now := s.now()
		a.AssetID = before.AssetID
		a.FamilyID = before.FamilyID
		a.SetOwners(fam.AssignmentModel, mergedOwners(a))
		a.MaintenanceLog = appendOnly(before.MaintenanceLog, a.MaintenanceLog)
		a.Audit = before.Audit
		a.Stamp(by, now)

		entries := history.Synthesize(before, a, history.Options{Notes: opts.Notes, Lost: opts.Lost, Now: now})
		users, err := s.deliver(ctx, tx, entries)
		if err != nil {
			return err
		}
		if err := tx.UpdateAsset(ctx, a); err != nil {
			return errors.Wrap(err, "updating asset")
		}
		res = AssetResult{Asset: a, Users: users, History: entries}
		return nil
	})
	if err != nil {
		return AssetResult{}, err
	}

	metrics.HistoryEntriesWritten.Add(float64(len(res.Users)))
	affected := make([]string, len(res.Users))
	for i, u := range res.Users {
		affected[i] = u.ID
	}
	event.Emit(ctx, s.rec, event.NewAssetUpdated(assetPayload(res.Asset, res.History), affected, by))
	return res, nil
}

// UnlockAssetID changes an asset's human-readable id. The new id must not
// be used by any other asset, compared case-insensitively. Both the old
// and the new id stay reserved in their family's sequence. History entries
// keep the id they were written with.
func (s *Service) UnlockAssetID(ctx context.Context, id, assetID string, by domain.Actor) (domain.Asset, error) {
	assetID = strings.TrimSpace(assetID)
	if assetID == "" {
		return domain.Asset{}, &domain.ValidationError{Fields: map[string]string{"asset_id": "is required"}}
	}
	scheme, err := s.scheme(ctx)
	if err != nil {
		return domain.Asset{}, err
	}

	var a domain.Asset
	var previous string
	err = s.store.InTx(ctx, func(tx store.Store) error {
		var err error
		a, err = tx.GetAsset(ctx, id)
		if err != nil {
			return errors.Wrapf(err, "asset %s", id)
		}
		all, err := tx.ListAssets(ctx)
		if err != nil {
			return errors.Wrap(err, "listing assets")
		}
		for _, other := range all {
			if other.ID != id && strings.EqualFold(other.AssetID, assetID) {
				return errors.Wrapf(store.ErrConflict, "asset id %s is used by %s", assetID, other.ID)
			}
		}
		previous = a.AssetID
		a.AssetID = assetID
		a.Stamp(by, s.now())
		if err := tx.UpdateAsset(ctx, a); err != nil {
			return errors.Wrap(err, "updating asset id")
		}
		return reserveSequences(ctx, tx, scheme, previous, assetID)
	})
	if err != nil {
		return domain.Asset{}, err
	}

	p := assetPayload(a, nil)
	p.Previous = previous
	event.Emit(ctx, s.rec, event.NewAssetIDChanged(p, by))
	return a, nil
}

// reserveSequences raises the high-water mark of every family whose prefix
// one of ids falls under.
func reserveSequences(ctx context.Context, tx store.Store, scheme domain.IDScheme, ids ...string) error {
	families, err := tx.ListAssetFamilies(ctx)
	if err != nil {
		return errors.Wrap(err, "listing families")
	}
	for _, fam := range families {
		changed := false
		for _, assetID := range ids {
			if scheme.Reserve(&fam, assetID) {
				changed = true
			}
		}
		if !changed {
			continue
		}
		if err := tx.UpdateAssetFamily(ctx, fam); err != nil {
			return errors.Wrapf(err, "reserving sequence in family %s", fam.ID)
		}
	}
	return nil
}

// AssetHistory rebuilds the display history of an asset from the user
// records it was fanned out to.
func (s *Service) AssetHistory(ctx context.Context, id string) (history.Log, error) {
	a, err := s.store.GetAsset(ctx, id)
	if err != nil {
		return history.Log{}, errors.Wrapf(err, "asset %s", id)
	}
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return history.Log{}, errors.Wrap(err, "listing users")
	}
	return history.ForAsset(a, users), nil
}

// deliver appends entries to every user named in them. Writes run
// concurrently; a user that no longer exists is skipped with a warning.
func (s *Service) deliver(ctx context.Context, tx store.Store, entries []domain.HistoryEntry) ([]domain.User, error) {
	deliveries := history.WriteSet(entries)
	if len(deliveries) == 0 {
		return nil, nil
	}

	var (
		mu    sync.Mutex
		users = make([]*domain.User, len(deliveries))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOutLimit)
	for i, d := range deliveries {
		g.Go(func() error {
			u, err := tx.GetUser(gctx, d.UserID)
			if errors.Is(err, store.ErrNotFound) {
				s.log.Warn("history recipient missing, skipping", "user_id", d.UserID)
				return nil
			}
			if err != nil {
				return errors.Wrapf(err, "loading user %s", d.UserID)
			}
			u.AppendHistory(d.Entries...)
			if err := tx.UpdateUser(gctx, u); err != nil {
				return errors.Wrapf(err, "writing history for %s", d.UserID)
			}
			mu.Lock()
			users[i] = &u
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]domain.User, 0, len(users))
	for _, u := range users {
		if u != nil {
			out = append(out, *u)
		}
	}
	return out, nil
}

// mergedOwners collects owners from both ownership fields; the single
// owner, when set, is taken as the most recent choice.
func mergedOwners(a domain.Asset) []string {
	owners := slices.Clone(a.AssignedUsers)
	if a.AssignedUser != "" {
		owners = append(owners, a.AssignedUser)
	}
	return owners
}

// appendOnly keeps every stored entry and adds the new ones from edited.
func appendOnly(stored, edited []domain.HistoryEntry) []domain.HistoryEntry {
	out := slices.Clone(stored)
	for _, e := range edited {
		if !slices.ContainsFunc(out, func(x domain.HistoryEntry) bool { return x.ID == e.ID }) {
			out = append(out, e)
		}
	}
	return out
}

func assetPayload(a domain.Asset, entries []domain.HistoryEntry) event.AssetPayload {
	p := event.AssetPayload{
		ID:       a.ID,
		AssetID:  a.AssetID,
		FamilyID: a.FamilyID,
		Status:   a.Status,
		Owners:   a.Owners(),
	}
	for _, e := range entries {
		p.History = append(p.History, e.Type)
	}
	return p
}
