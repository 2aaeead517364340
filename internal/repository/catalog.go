package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/spice-admin/customer-app-sub000/internal/domain"
)

const packageColumns = `id, name, type, price, days, description, image_url, is_active, created_at`

func scanPackage(s rowScanner) (*domain.Package, error) {
	var p domain.Package
	if err := s.Scan(
		&p.ID,
		&p.Name,
		&p.Type,
		&p.Price,
		&p.Days,
		&p.Description,
		&p.ImageURL,
		&p.IsActive,
		&p.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repository) ListActivePackages(ctx context.Context) ([]domain.Package, error) {
	query := `SELECT ` + packageColumns + ` FROM packages WHERE is_active ORDER BY price, name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query packages: %w", err)
	}
	defer rows.Close()

	packages := []domain.Package{}
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan package row: %w", err)
		}
		packages = append(packages, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return packages, nil
}

func (r *Repository) GetPackage(ctx context.Context, id string) (*domain.Package, error) {
	query := `SELECT ` + packageColumns + ` FROM packages WHERE id = $1`

	p, err := scanPackage(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPackageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query package by id: %w", err)
	}
	return p, nil
}

const addonColumns = `id, name, price, description, image_url, is_active, created_at`

func scanAddon(s rowScanner) (*domain.Addon, error) {
	var a domain.Addon
	if err := s.Scan(
		&a.ID,
		&a.Name,
		&a.Price,
		&a.Description,
		&a.ImageURL,
		&a.IsActive,
		&a.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *Repository) ListActiveAddons(ctx context.Context) ([]domain.Addon, error) {
	query := `SELECT ` + addonColumns + ` FROM addons WHERE is_active ORDER BY name`
	return r.queryAddons(ctx, query)
}

// GetAddonsByIDs returns the addons that exist, active or not. Missing ids are simply absent.
func (r *Repository) GetAddonsByIDs(ctx context.Context, ids []string) ([]domain.Addon, error) {
	if len(ids) == 0 {
		return []domain.Addon{}, nil
	}
	query := `SELECT ` + addonColumns + ` FROM addons WHERE id = ANY($1) ORDER BY name`
	return r.queryAddons(ctx, query, pq.Array(ids))
}

func (r *Repository) queryAddons(ctx context.Context, query string, args ...any) ([]domain.Addon, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query addons: %w", err)
	}
	defer rows.Close()

	addons := []domain.Addon{}
	for rows.Next() {
		a, err := scanAddon(rows)
		if err != nil {
			return nil, fmt.Errorf("scan addon row: %w", err)
		}
		addons = append(addons, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return addons, nil
}
