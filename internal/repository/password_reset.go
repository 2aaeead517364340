package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spice-admin/customer-app-sub000/internal/domain"
)

const resetAttemptColumns = `id, phone, user_id, status, attempts, created_at, verified_at`

func scanResetAttempt(s rowScanner) (*domain.PasswordResetAttempt, error) {
	var a domain.PasswordResetAttempt
	var verifiedAt sql.NullTime
	if err := s.Scan(&a.ID, &a.Phone, &a.UserID, &a.Status, &a.Attempts, &a.CreatedAt, &verifiedAt); err != nil {
		return nil, err
	}
	if verifiedAt.Valid {
		a.VerifiedAt = &verifiedAt.Time
	}
	return &a, nil
}

func (r *Repository) CreateResetAttempt(ctx context.Context, a *domain.PasswordResetAttempt) error {
	query := `INSERT INTO password_reset_attempts (id, phone, user_id, status, attempts, created_at)
	          VALUES ($1, $2, $3, $4, 0, NOW())`

	if _, err := r.db.ExecContext(ctx, query, a.ID, a.Phone, a.UserID, a.Status); err != nil {
		return fmt.Errorf("insert password reset attempt: %w", err)
	}
	return nil
}

func (r *Repository) GetResetAttempt(ctx context.Context, id uuid.UUID) (*domain.PasswordResetAttempt, error) {
	query := `SELECT ` + resetAttemptColumns + ` FROM password_reset_attempts WHERE id = $1`

	a, err := scanResetAttempt(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrResetAttemptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query password reset attempt: %w", err)
	}
	return a, nil
}

func (r *Repository) LatestResetAttempt(ctx context.Context, phone string) (*domain.PasswordResetAttempt, error) {
	query := `SELECT ` + resetAttemptColumns + ` FROM password_reset_attempts
	          WHERE phone = $1 ORDER BY created_at DESC LIMIT 1`

	a, err := scanResetAttempt(r.db.QueryRowContext(ctx, query, phone))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrResetAttemptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query latest password reset attempt: %w", err)
	}
	return a, nil
}

// IncrementResetAttempts bumps the code-check counter and returns the new value.
func (r *Repository) IncrementResetAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	query := `UPDATE password_reset_attempts SET attempts = attempts + 1 WHERE id = $1 RETURNING attempts`

	var attempts int
	err := r.db.QueryRowContext(ctx, query, id).Scan(&attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrResetAttemptNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("increment password reset attempts: %w", err)
	}
	return attempts, nil
}

// TransitionResetAttempt moves an attempt from one status to the next. It fails with
// ErrStaleTransition when the attempt is no longer in the from state.
func (r *Repository) TransitionResetAttempt(ctx context.Context, id uuid.UUID, from, to domain.PasswordResetStatus) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("invalid password reset transition %s -> %s", from, to)
	}

	query := `UPDATE password_reset_attempts
	          SET status = $3, verified_at = CASE WHEN $3 = 'verified' THEN NOW() ELSE verified_at END
	          WHERE id = $1 AND status = $2`

	res, err := r.db.ExecContext(ctx, query, id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("update password reset attempt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update password reset attempt: %w", err)
	}
	if n == 0 {
		return ErrStaleTransition
	}
	return nil
}
