package lifecycle

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/matthewbaird/assetdesk/internal/domain"
	"github.com/matthewbaird/assetdesk/internal/event"
	"github.com/matthewbaird/assetdesk/internal/history"
	"github.com/matthewbaird/assetdesk/internal/store"
)

// fulfill issues target, or a fresh instance of the request's family when
// target is nil, to the requester and marks the request Fulfilled. Both
// fulfillment triggers go through here. scheme is resolved by the caller
// before the transaction opens.
func (e *Engine) fulfill(ctx context.Context, tx store.Store, scheme domain.IDScheme, req domain.Request, target *domain.Asset, by domain.Actor) (Outcome, error) {
	if err := validateRequest(req, domain.RequestFulfilled); err != nil {
		return Outcome{}, err
	}
	fam, err := tx.GetAssetFamily(ctx, req.FamilyID)
	if err != nil {
		return Outcome{}, errors.Wrapf(err, "family %s", req.FamilyID)
	}
	requester, err := tx.GetUser(ctx, req.RequestedBy)
	if err != nil {
		return Outcome{}, errors.Wrapf(err, "requester %s", req.RequestedBy)
	}

	now := e.now()
	from := req.EffectiveStatus()
	created := target == nil

	var asset domain.Asset
	if created {
		fam = fam.Clone()
		asset, err = e.newInstance(ctx, tx, scheme, &fam)
		if err != nil {
			return Outcome{}, err
		}
		fam.TotalUnits++
	} else {
		asset = target.Clone()
	}
	before := asset.Clone()

	owners := []string{requester.ID}
	if fam.IsMultiple() {
		owners = append(asset.Owners(), requester.ID)
	}
	asset.SetOwners(fam.AssignmentModel, owners)
	asset.Status = domain.StatusActive
	asset.Stamp(by, now)

	entry := history.Assignment(asset, []string{requester.ID}, history.Options{
		Notes: "Fulfilled request " + req.ID,
		Now:   now,
	})
	if !fam.IsMultiple() && before.IsAssigned() && before.AssignedUser != requester.ID {
		entry.Type = domain.HistoryReassigned
		entry.AssignedFrom = before.Owners()
	}

	// History lands on every affected user before the asset write.
	var users []domain.User
	for _, d := range history.WriteSet([]domain.HistoryEntry{entry}) {
		u := requester
		if d.UserID != requester.ID {
			if u, err = tx.GetUser(ctx, d.UserID); err != nil {
				e.log.Warn("history recipient missing", "user_id", d.UserID, "error", err)
				continue
			}
		}
		u = u.Clone()
		u.AppendHistory(d.Entries...)
		if err := tx.UpdateUser(ctx, u); err != nil {
			return Outcome{}, errors.Wrapf(err, "writing history for %s", u.ID)
		}
		users = append(users, u)
	}

	if created {
		if err := tx.UpdateAssetFamily(ctx, fam); err != nil {
			return Outcome{}, errors.Wrap(err, "incrementing family units")
		}
		if err := tx.CreateAsset(ctx, asset); err != nil {
			return Outcome{}, errors.Wrap(err, "creating asset")
		}
	} else if err := tx.UpdateAsset(ctx, asset); err != nil {
		return Outcome{}, errors.Wrap(err, "assigning asset")
	}

	req.Status = domain.RequestFulfilled
	req.FulfilledAssetID = asset.ID
	req.Stamp(by, now)
	if err := tx.UpdateRequest(ctx, req); err != nil {
		return Outcome{}, errors.Wrap(err, "fulfilling request")
	}

	ap := event.AssetPayload{
		ID:       asset.ID,
		AssetID:  asset.AssetID,
		FamilyID: asset.FamilyID,
		Status:   asset.Status,
		Owners:   asset.Owners(),
		History:  []domain.HistoryType{entry.Type},
	}
	rp := requestPayload(req, asset.ID)
	rp.From = from

	out := Outcome{
		Request: req,
		Asset:   &asset,
		Users:   users,
		Created: created,
		history: len(users),
	}
	if created {
		out.Family = &fam
		out.events = append(out.events, event.NewAssetCreated(ap, by))
	}
	out.events = append(out.events, event.NewAssetAssigned(ap, by), event.NewRequestFulfilled(rp, by))
	return out, nil
}

// newInstance builds an unsaved asset of fam carrying the base cost and
// license type of its first variant. It advances fam's sequence mark.
func (e *Engine) newInstance(ctx context.Context, tx store.Store, scheme domain.IDScheme, fam *domain.AssetFamily) (domain.Asset, error) {
	existing, err := tx.ListAssets(ctx)
	if err != nil {
		return domain.Asset{}, errors.Wrap(err, "listing assets")
	}
	a := domain.Asset{
		ID:           uuid.NewString(),
		AssetID:      scheme.Next(fam, existing, 1)[0],
		FamilyID:     fam.ID,
		Title:        fam.Name,
		Status:       domain.StatusAvailable,
		PurchaseDate: domain.Today(e.now()),
	}
	if v, ok := fam.FirstVariant(); ok {
		a.Cost = v.Cost
		if fam.IsLicense() {
			a.VariantType = v.LicenseType
			if a.VariantType == "" {
				a.VariantType = v.Name
			}
		}
	}
	return a, nil
}
