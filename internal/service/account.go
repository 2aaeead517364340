package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spice-admin/customer-app-sub000/internal/domain"
	"github.com/spice-admin/customer-app-sub000/internal/repository"
	"github.com/spice-admin/customer-app-sub000/internal/verify"
)

type AccountStore interface {
	repository.ProfileRepository
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error)
	ListAddonOrdersByUserID(ctx context.Context, userID string) ([]*domain.AddonOrder, error)
}

// AccountService serves a signed-in user's own profile and order history.
type AccountService struct {
	repo AccountStore
}

func NewAccountService(repo AccountStore) *AccountService {
	return &AccountService{repo: repo}
}

func (s *AccountService) Profile(ctx context.Context, userID string) (*domain.Profile, error) {
	return s.repo.GetProfile(ctx, userID)
}

type ProfileUpdate struct {
	FullName string         `json:"full_name"`
	Email    string         `json:"email"`
	Phone    string         `json:"phone"`
	Address  domain.Address `json:"address"`
}

func (s *AccountService) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*domain.Profile, error) {
	if strings.TrimSpace(upd.FullName) == "" {
		return nil, fmt.Errorf("%w: full_name is required", domain.ErrValidation)
	}
	phone := ""
	if strings.TrimSpace(upd.Phone) != "" {
		normalized, err := verify.NormalizePhone(upd.Phone)
		if err != nil {
			return nil, err
		}
		phone = normalized
	}

	return s.repo.UpsertProfile(ctx, &domain.Profile{
		UserID:   userID,
		FullName: strings.TrimSpace(upd.FullName),
		Email:    strings.TrimSpace(upd.Email),
		Phone:    phone,
		Address: domain.Address{
			Street:     strings.TrimSpace(upd.Address.Street),
			City:       strings.TrimSpace(upd.Address.City),
			PostalCode: strings.ToUpper(strings.TrimSpace(upd.Address.PostalCode)),
			Notes:      strings.TrimSpace(upd.Address.Notes),
		},
	})
}

func (s *AccountService) Orders(ctx context.Context, userID string) ([]*domain.Order, error) {
	return s.repo.ListOrdersByUserID(ctx, userID)
}

// Order returns one of the user's orders. Another user's order reads as not found.
func (s *AccountService) Order(ctx context.Context, userID string, id uuid.UUID) (*domain.Order, error) {
	order, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, repository.ErrOrderNotFound
	}
	return order, nil
}

func (s *AccountService) AddonOrders(ctx context.Context, userID string) ([]*domain.AddonOrder, error) {
	return s.repo.ListAddonOrdersByUserID(ctx, userID)
}
