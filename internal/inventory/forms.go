package inventory

import (
	"context"

	"github.com/pkg/errors"

	"github.com/matthewbaird/assetdesk/internal/domain"
	"github.com/matthewbaird/assetdesk/internal/fields"
	"github.com/matthewbaird/assetdesk/internal/form"
	"github.com/matthewbaird/assetdesk/internal/layout"
	"github.com/matthewbaird/assetdesk/internal/settings"
)

// Env implements form.EnvSource.
func (s *Service) Env(ctx context.Context, c layout.Context, d fields.Draft) (fields.Env, error) {
	env := fields.Env{Context: c, BaseCurrency: s.base, Rates: s.rates}

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return fields.Env{}, errors.Wrap(err, "listing users")
	}
	env.Users = users

	if d.Asset != nil && d.Asset.FamilyID != "" {
		fam, err := s.store.GetAssetFamily(ctx, d.Asset.FamilyID)
		if err != nil {
			return fields.Env{}, errors.Wrapf(err, "family %s", d.Asset.FamilyID)
		}
		env.Family = &fam
	}

	if s.settings == nil {
		return env, nil
	}
	switch c {
	case layout.LicenseFamily, layout.LicenseInstance:
		env.Categories, err = s.settings.Categories(ctx, settings.SoftwareCategories)
	case layout.HardwareFamily, layout.HardwareInstance:
		env.Categories, err = s.settings.Categories(ctx, settings.HardwareCategories)
	}
	if err != nil {
		return fields.Env{}, err
	}
	if env.Vendors, err = s.settings.References(ctx, domain.ReferenceVendors); err != nil {
		return fields.Env{}, err
	}
	if env.Sites, err = s.settings.References(ctx, domain.ReferenceSites); err != nil {
		return fields.Env{}, err
	}
	if env.Departments, err = s.settings.References(ctx, domain.ReferenceDepartments); err != nil {
		return fields.Env{}, err
	}
	return env, nil
}

// Submit implements form.Submitter. Drafts without an id are created;
// others are updated through the same paths the API uses.
func (s *Service) Submit(ctx context.Context, sub form.Submission) (fields.Draft, error) {
	d := sub.Draft
	switch {
	case d.Family != nil:
		var (
			f   domain.AssetFamily
			err error
		)
		if d.Family.ID == "" {
			f, err = s.CreateFamily(ctx, *d.Family, sub.Actor)
		} else {
			f, err = s.UpdateFamily(ctx, *d.Family, sub.Actor)
		}
		if err != nil {
			return fields.Draft{}, err
		}
		return fields.Draft{Family: &f}, nil

	case d.Asset != nil:
		var (
			res AssetResult
			err error
		)
		if d.Asset.ID == "" {
			res, err = s.CreateAsset(ctx, *d.Asset, sub.Actor)
		} else {
			res, err = s.UpdateAsset(ctx, *d.Asset, EditOptions{}, sub.Actor)
		}
		if err != nil {
			return fields.Draft{}, err
		}
		return fields.Draft{Asset: &res.Asset}, nil

	case d.User != nil:
		var (
			u   domain.User
			err error
		)
		if d.User.ID == "" {
			u, err = s.CreateUser(ctx, *d.User, sub.Actor)
		} else {
			u, err = s.UpdateUser(ctx, *d.User, sub.Actor)
		}
		if err != nil {
			return fields.Draft{}, err
		}
		return fields.Draft{User: &u}, nil
	}
	return fields.Draft{}, form.ErrEmptyDraft
}
