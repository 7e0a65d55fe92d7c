package service

import (
	"context"
	"fmt"

	"github.com/mckhtech/wedding-plannera-ai/internal/models"
)

// UserService is the thin account surface used by the admin endpoints.
type UserService struct {
	users UserStore
}

func NewUserService(users UserStore) *UserService {
	return &UserService{users: users}
}

func (s *UserService) Get(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context) ([]*models.User, error) {
	return s.users.List(ctx)
}

// GrantFreeCredits adjusts the free balance by delta; negative deltas clamp
// at zero rather than going below it.
func (s *UserService) GrantFreeCredits(ctx context.Context, userID int64, delta int) (*models.User, error) {
	if _, err := s.Get(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.users.GrantFreeCredits(ctx, userID, delta); err != nil {
		return nil, fmt.Errorf("grant free credits: %w", err)
	}
	return s.Get(ctx, userID)
}

func (s *UserService) SetSubscribed(ctx context.Context, userID int64, subscribed bool) (*models.User, error) {
	if _, err := s.Get(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.users.SetSubscribed(ctx, userID, subscribed); err != nil {
		return nil, fmt.Errorf("set subscribed: %w", err)
	}
	return s.Get(ctx, userID)
}
