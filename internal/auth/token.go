package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spice-admin/customer-app-sub000/internal/domain"
)

const RoleAdmin = "admin"

type AppMetadata struct {
	Role string `json:"role,omitempty"`
}

// Claims mirrors the access tokens issued by the auth provider.
type Claims struct {
	Email       string      `json:"email,omitempty"`
	Phone       string      `json:"phone,omitempty"`
	Role        string      `json:"role,omitempty"`
	AppMetadata AppMetadata `json:"app_metadata"`
	// Purpose is only set on single-use tokens, never on access tokens.
	Purpose string `json:"purpose,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() string {
	return c.Subject
}

func (c *Claims) IsAdmin() bool {
	return c.AppMetadata.Role == RoleAdmin
}

type TokenVerifier struct {
	secret []byte
}

func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// Verify parses a bearer token (with or without the "Bearer " prefix).
func (v *TokenVerifier) Verify(raw string) (*Claims, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "Bearer "))
	if raw == "" {
		return nil, domain.ErrAuthenticationRequired
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if len(v.secret) == 0 {
			return nil, errors.New("no signing secret configured")
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrAuthenticationRequired, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", domain.ErrAuthenticationRequired)
	}
	if claims.Purpose != "" {
		return nil, fmt.Errorf("%w: %s token is not an access token", domain.ErrAuthenticationRequired, claims.Purpose)
	}
	return claims, nil
}

// Sign issues an access token; used by tests and local tooling.
func (v *TokenVerifier) Sign(claims *Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

const resetPurpose = "password_reset"

type ResetClaims struct {
	Purpose   string `json:"purpose"`
	AttemptID string `json:"attempt_id"`
	jwt.RegisteredClaims
}

// ResetTokens issues short-lived tokens proving a phone was verified for a password reset.
type ResetTokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewResetTokens(secret string, ttl time.Duration) *ResetTokens {
	return &ResetTokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (r *ResetTokens) Issue(userID, attemptID string) (string, error) {
	now := r.now()
	claims := &ResetClaims{
		Purpose:   resetPurpose,
		AttemptID: attemptID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(r.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
}

func (r *ResetTokens) Parse(raw string) (*ResetClaims, error) {
	claims := &ResetClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if len(r.secret) == 0 {
			return nil, errors.New("no signing secret configured")
		}
		return r.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(r.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: reset token expired", domain.ErrValidation)
		}
		return nil, fmt.Errorf("%w: invalid reset token", domain.ErrValidation)
	}
	if claims.Purpose != resetPurpose || claims.AttemptID == "" || claims.Subject == "" {
		return nil, fmt.Errorf("%w: invalid reset token", domain.ErrValidation)
	}
	return claims, nil
}
