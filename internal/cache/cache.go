package cache

import (
	"context"
	"errors"

	"github.com/spice-admin/customer-app-sub000/internal/domain"
)

// CatalogCache holds the active package and addon listings.
type CatalogCache interface {
	GetPackages(ctx context.Context) ([]domain.Package, error)
	SetPackages(ctx context.Context, pkgs []domain.Package) error
	GetAddons(ctx context.Context) ([]domain.Addon, error)
	SetAddons(ctx context.Context, addons []domain.Addon) error
	Invalidate(ctx context.Context) error
}

var ErrCacheMiss = errors.New("cache miss")
