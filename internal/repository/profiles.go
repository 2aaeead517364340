package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spice-admin/customer-app-sub000/internal/domain"
)

const profileColumns = `user_id, full_name, email, COALESCE(phone, ''), phone_verified,
	street, city, postal_code, address_notes, created_at, updated_at`

func scanProfile(s rowScanner) (*domain.Profile, error) {
	var p domain.Profile
	if err := s.Scan(
		&p.UserID,
		&p.FullName,
		&p.Email,
		&p.Phone,
		&p.PhoneVerified,
		&p.Address.Street,
		&p.Address.City,
		&p.Address.PostalCode,
		&p.Address.Notes,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repository) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE user_id = $1`

	p, err := scanProfile(r.db.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query profile: %w", err)
	}
	return p, nil
}

// GetProfileByPhone only matches a verified number.
func (r *Repository) GetProfileByPhone(ctx context.Context, phone string) (*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE phone = $1 AND phone_verified`

	p, err := scanProfile(r.db.QueryRowContext(ctx, query, phone))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query profile by phone: %w", err)
	}
	return p, nil
}

// UpsertProfile writes the editable fields. Changing the phone number clears its verification.
func (r *Repository) UpsertProfile(ctx context.Context, p *domain.Profile) (*domain.Profile, error) {
	query := `INSERT INTO profiles (user_id, full_name, email, phone, street, city, postal_code, address_notes, created_at, updated_at)
	          VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, NOW(), NOW())
	          ON CONFLICT (user_id) DO UPDATE SET
	              full_name      = EXCLUDED.full_name,
	              email          = EXCLUDED.email,
	              phone          = EXCLUDED.phone,
	              phone_verified = profiles.phone_verified AND profiles.phone IS NOT DISTINCT FROM EXCLUDED.phone,
	              street         = EXCLUDED.street,
	              city           = EXCLUDED.city,
	              postal_code    = EXCLUDED.postal_code,
	              address_notes  = EXCLUDED.address_notes,
	              updated_at     = NOW()
	          RETURNING ` + profileColumns

	saved, err := scanProfile(r.db.QueryRowContext(ctx, query,
		p.UserID,
		p.FullName,
		p.Email,
		p.Phone,
		p.Address.Street,
		p.Address.City,
		p.Address.PostalCode,
		p.Address.Notes,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: phone number is already in use", domain.ErrValidation)
		}
		return nil, fmt.Errorf("upsert profile: %w", err)
	}
	return saved, nil
}

func (r *Repository) MarkPhoneVerified(ctx context.Context, userID, phone string) error {
	query := `UPDATE profiles SET phone = $2, phone_verified = TRUE, updated_at = NOW() WHERE user_id = $1`

	res, err := r.db.ExecContext(ctx, query, userID, phone)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: phone number is already in use", domain.ErrValidation)
		}
		return fmt.Errorf("mark phone verified: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark phone verified: %w", err)
	}
	if n == 0 {
		return ErrProfileNotFound
	}
	return nil
}
