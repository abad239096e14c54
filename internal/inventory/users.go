package inventory

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/matthewbaird/assetdesk/internal/domain"
	"github.com/matthewbaird/assetdesk/internal/event"
	"github.com/matthewbaird/assetdesk/internal/history"
	"github.com/matthewbaird/assetdesk/internal/store"
)

// DanglingRef is an asset that still names a deleted user.
type DanglingRef struct {
	ID      string `json:"id"`
	AssetID string `json:"asset_id"`
	Title   string `json:"title"`
}

// DeleteReport is returned by DeleteUser. Assets are never unassigned on
// delete; Dangling lists the ones left pointing at the removed user.
type DeleteReport struct {
	User     domain.User   `json:"user"`
	Dangling []DanglingRef `json:"dangling"`
}

func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.store.ListUsers(ctx)
}

func (s *Service) GetUser(ctx context.Context, id string) (domain.User, error) {
	return s.store.GetUser(ctx, id)
}

// UserHistory returns the user's own entries split for display.
func (s *Service) UserHistory(ctx context.Context, id string) (history.Log, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return history.Log{}, errors.Wrapf(err, "user %s", id)
	}
	return history.ForUser(u), nil
}

// CreateUser adds a user with an empty history.
func (s *Service) CreateUser(ctx context.Context, u domain.User, by domain.Actor) (domain.User, error) {
	prepareUser(&u)
	if err := domain.Validate(u); err != nil {
		return domain.User{}, err
	}
	u.ID = uuid.NewString()
	u.History = []domain.HistoryEntry{}
	u.Audit = domain.Audit{}
	u.Stamp(by, s.now())
	if err := s.store.CreateUser(ctx, u); err != nil {
		return domain.User{}, errors.Wrap(err, "creating user")
	}
	event.Emit(ctx, s.rec, event.NewUserCreated(userPayload(u), by))
	return u, nil
}

// UpdateUser replaces the profile members of a user. History is owned by
// the asset flows and is kept from the stored record.
func (s *Service) UpdateUser(ctx context.Context, u domain.User, by domain.Actor) (domain.User, error) {
	prepareUser(&u)
	if err := domain.Validate(u); err != nil {
		return domain.User{}, err
	}
	if u.Manager != "" && u.Manager == u.ID {
		return domain.User{}, &domain.ValidationError{Fields: map[string]string{"manager": "cannot be the user themselves"}}
	}
	err := s.store.InTx(ctx, func(tx store.Store) error {
		before, err := tx.GetUser(ctx, u.ID)
		if err != nil {
			return errors.Wrapf(err, "user %s", u.ID)
		}
		u.History = before.History
		u.Audit = before.Audit
		u.Stamp(by, s.now())
		return errors.Wrap(tx.UpdateUser(ctx, u), "updating user")
	})
	if err != nil {
		return domain.User{}, err
	}
	event.Emit(ctx, s.rec, event.NewUserUpdated(userPayload(u), by))
	return u, nil
}

// DeleteUser removes a user without touching the assets that reference
// them, and reports those assets.
func (s *Service) DeleteUser(ctx context.Context, id string, by domain.Actor) (DeleteReport, error) {
	var rep DeleteReport
	err := s.store.InTx(ctx, func(tx store.Store) error {
		u, err := tx.GetUser(ctx, id)
		if err != nil {
			return errors.Wrapf(err, "user %s", id)
		}
		assets, err := tx.ListAssets(ctx)
		if err != nil {
			return errors.Wrap(err, "listing assets")
		}
		rep = DeleteReport{User: u, Dangling: []DanglingRef{}}
		for _, a := range assets {
			if a.References(id) {
				rep.Dangling = append(rep.Dangling, DanglingRef{ID: a.ID, AssetID: a.AssetID, Title: a.Title})
			}
		}
		return errors.Wrap(tx.DeleteUser(ctx, id), "deleting user")
	})
	if err != nil {
		return DeleteReport{}, err
	}

	p := userPayload(rep.User)
	for _, d := range rep.Dangling {
		p.Dangling = append(p.Dangling, d.ID)
	}
	if len(rep.Dangling) > 0 {
		s.log.Warn("deleted user still referenced by assets", "user_id", id, "assets", len(rep.Dangling))
	}
	event.Emit(ctx, s.rec, event.NewUserDeleted(p, by))
	return rep, nil
}

func prepareUser(u *domain.User) {
	u.FullName = strings.TrimSpace(u.FullName)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Role == "" {
		u.Role = domain.RoleUser
	}
	if u.Sites == nil {
		u.Sites = []string{}
	}
}

func userPayload(u domain.User) event.UserPayload {
	return event.UserPayload{ID: u.ID, FullName: u.FullName, Role: u.Role}
}
