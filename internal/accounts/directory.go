// Package accounts resolves opaque account identifiers to display names.
// The plan aggregate trusts identifiers; the service layer uses this package
// to reject unknown ones before they reach a plan.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"moneyplan/internal/cache"
	"moneyplan/internal/storage"
)

// ErrAccountNotFound signals an identifier with no directory entry.
var ErrAccountNotFound = errors.New("account not found in directory")

// Lookup resolves an account identifier to a display name.
type Lookup interface {
	Lookup(ctx context.Context, accountID string) (string, error)
}

// Directory is a SQLite-backed account directory with an LRU cache in front.
type Directory struct {
	repo  *storage.SQLiteRepository
	cache *cache.LRUCache[string]
}

func NewDirectory(repo *storage.SQLiteRepository, cacheSize int, cacheTTL time.Duration) *Directory {
	return &Directory{
		repo:  repo,
		cache: cache.NewLRUCache[string](cacheSize, cacheTTL),
	}
}

// Lookup implements Lookup. Misses in the directory are not cached, so a
// just-registered account becomes visible immediately.
func (d *Directory) Lookup(ctx context.Context, accountID string) (string, error) {
	if name, ok := d.cache.Get(accountID); ok {
		return name, nil
	}

	name, err := d.repo.GetAccountName(ctx, accountID)
	if errors.Is(err, storage.ErrAccountNotFound) {
		return "", fmt.Errorf("%w: %q", ErrAccountNotFound, accountID)
	}
	if err != nil {
		return "", fmt.Errorf("lookup account %q: %w", accountID, err)
	}

	d.cache.Set(accountID, name)
	return name, nil
}

// Register adds or renames a directory entry and refreshes the cache.
func (d *Directory) Register(ctx context.Context, accountID, displayName string) error {
	if err := d.repo.UpsertAccount(ctx, accountID, displayName); err != nil {
		return fmt.Errorf("register account %q: %w", accountID, err)
	}
	d.cache.Set(accountID, displayName)
	return nil
}

// List returns the whole directory.
func (d *Directory) List(ctx context.Context) ([]storage.DirectoryAccount, error) {
	return d.repo.ListAccounts(ctx)
}
