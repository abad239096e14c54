// Package store is the persistence boundary for assetdesk. Store mirrors
// the list operations the front end historically issued against its
// external list service; MemoryStore and SQLStore implement it.
package store

import (
	"context"
	"errors"

	"github.com/matthewbaird/assetdesk/internal/domain"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a unique key is already taken.
	ErrConflict = errors.New("record already exists")
)

// Store is the interface for reading and writing assetdesk records. Every
// call may fail; callers leave their in-memory state untouched on error.
type Store interface {
	ListAssetFamilies(ctx context.Context) ([]domain.AssetFamily, error)
	GetAssetFamily(ctx context.Context, id string) (domain.AssetFamily, error)
	CreateAssetFamily(ctx context.Context, f domain.AssetFamily) error
	UpdateAssetFamily(ctx context.Context, f domain.AssetFamily) error

	ListAssets(ctx context.Context) ([]domain.Asset, error)
	GetAsset(ctx context.Context, id string) (domain.Asset, error)
	CreateAsset(ctx context.Context, a domain.Asset) error
	CreateAssetsBulk(ctx context.Context, assets []domain.Asset) error
	UpdateAsset(ctx context.Context, a domain.Asset) error

	ListUsers(ctx context.Context) ([]domain.User, error)
	GetUser(ctx context.Context, id string) (domain.User, error)
	CreateUser(ctx context.Context, u domain.User) error
	UpdateUser(ctx context.Context, u domain.User) error
	DeleteUser(ctx context.Context, id string) error

	ListRequests(ctx context.Context) ([]domain.Request, error)
	GetRequest(ctx context.Context, id string) (domain.Request, error)
	CreateRequest(ctx context.Context, r domain.Request) error
	UpdateRequest(ctx context.Context, r domain.Request) error

	ListTasks(ctx context.Context) ([]domain.Task, error)
	CreateTask(ctx context.Context, t domain.Task) error

	ListReferences(ctx context.Context, kind domain.ReferenceKind) ([]domain.Reference, error)
	AddReference(ctx context.Context, ref domain.Reference) error
	DeleteReference(ctx context.Context, kind domain.ReferenceKind, name string) error

	// GetNamedConfiguration returns the string list stored under key, or an
	// empty list when nothing was stored yet.
	GetNamedConfiguration(ctx context.Context, key string) ([]string, error)
	SetNamedConfiguration(ctx context.Context, key string, values []string) error

	// GetLayout returns the opaque layout blob for a context key or
	// ErrNotFound.
	GetLayout(ctx context.Context, key string) ([]byte, error)
	SetLayout(ctx context.Context, key string, blob []byte) error

	// InTx runs fn against a transactional view of the store. Writes made
	// through tx are discarded when fn returns an error.
	InTx(ctx context.Context, fn func(tx Store) error) error
}

// FamilyAssets returns the assets issued from familyID, in store order.
func FamilyAssets(assets []domain.Asset, familyID string) []domain.Asset {
	var out []domain.Asset
	for _, a := range assets {
		if a.FamilyID == familyID {
			out = append(out, a)
		}
	}
	return out
}
