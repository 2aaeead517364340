package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spice-admin/customer-app-sub000/internal/cache"
	"github.com/spice-admin/customer-app-sub000/internal/domain"
	"github.com/spice-admin/customer-app-sub000/internal/logger"
	"github.com/spice-admin/customer-app-sub000/internal/repository"
	"golang.org/x/sync/singleflight"
)

type CatalogService struct {
	repo  repository.CatalogRepository
	cache cache.CatalogCache
	sfg   singleflight.Group // Prevents cache stampede
}

// NewCatalogService accepts a nil cache; listings then always come from the database.
func NewCatalogService(repo repository.CatalogRepository, c cache.CatalogCache) *CatalogService {
	return &CatalogService{
		repo:  repo,
		cache: c,
	}
}

func (s *CatalogService) ListPackages(ctx context.Context) ([]domain.Package, error) {
	v, err, _ := s.sfg.Do("packages", func() (any, error) {
		log := logger.FromContext(ctx)
		if s.cache != nil {
			pkgs, err := s.cache.GetPackages(ctx)
			if err == nil {
				return pkgs, nil
			}
			if !errors.Is(err, cache.ErrCacheMiss) {
				log.Warn("catalog cache get failed", "error", err)
			}
		}

		pkgs, err := s.repo.ListActivePackages(ctx)
		if err != nil {
			return nil, err
		}

		if s.cache != nil {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				if err := s.cache.SetPackages(ctx, pkgs); err != nil {
					log.Warn("catalog cache set failed", "error", err)
				}
			}()
		}
		return pkgs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Package), nil
}

func (s *CatalogService) ListAddons(ctx context.Context) ([]domain.Addon, error) {
	v, err, _ := s.sfg.Do("addons", func() (any, error) {
		log := logger.FromContext(ctx)
		if s.cache != nil {
			addons, err := s.cache.GetAddons(ctx)
			if err == nil {
				return addons, nil
			}
			if !errors.Is(err, cache.ErrCacheMiss) {
				log.Warn("catalog cache get failed", "error", err)
			}
		}

		addons, err := s.repo.ListActiveAddons(ctx)
		if err != nil {
			return nil, err
		}

		if s.cache != nil {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				if err := s.cache.SetAddons(ctx, addons); err != nil {
					log.Warn("catalog cache set failed", "error", err)
				}
			}()
		}
		return addons, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Addon), nil
}

// Refresh drops the cached listings so the next read comes from the database.
func (s *CatalogService) Refresh(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		return fmt.Errorf("failed to invalidate catalog cache: %w", err)
	}
	logger.FromContext(ctx).Info("catalog cache invalidated")
	return nil
}
