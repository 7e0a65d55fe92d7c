package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mckhtech/wedding-plannera-ai/internal/auth"
	"github.com/mckhtech/wedding-plannera-ai/internal/config"
	"github.com/mckhtech/wedding-plannera-ai/internal/models"
)

// GoogleVerifier validates a Google ID token and returns its claims. The
// real implementation lives in internal/auth; tests substitute a fake.
type GoogleVerifier interface {
	Verify(ctx context.Context, idToken string) (*auth.GoogleClaims, error)
}

// AuthService handles signup, both login paths and bearer authentication.
type AuthService struct {
	cfg    config.Config
	log    *slog.Logger
	users  UserStore
	issuer *auth.TokenIssuer
	google GoogleVerifier
}

func NewAuthService(cfg config.Config, log *slog.Logger, users UserStore, issuer *auth.TokenIssuer, google GoogleVerifier) *AuthService {
	return &AuthService{
		cfg:    cfg,
		log:    log,
		users:  users,
		issuer: issuer,
		google: google,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an email/password account with the signup credit grant
// and returns it logged in.
func (s *AuthService) Register(ctx context.Context, email, password, fullName string) (*models.User, string, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, "", fmt.Errorf("%w: invalid email", ErrInvalidCredentials)
	}
	if len(password) < 8 {
		return nil, "", ErrWeakPassword
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("find user: %w", err)
	}
	if existing != nil {
		return nil, "", ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Email:                email,
		FullName:             fullName,
		HashedPassword:       string(hash),
		AuthProvider:         models.ProviderEmail,
		IsActive:             true,
		FreeCreditsRemaining: s.cfg.FreeCreditsOnSignup,
		CreatedAt:            time.Now().UTC(),
	}
	user, err = s.users.Create(ctx, user)
	if err != nil {
		return nil, "", fmt.Errorf("create user: %w", err)
	}

	token, err := s.issuer.Issue(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}
	s.log.Info("user registered", "user_id", user.ID)
	return user, token, nil
}

// Login checks an email/password pair. Accounts created through Google have
// no password and are pointed back at that flow.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, "", fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, "", ErrInvalidCredentials
	}
	if user.AuthProvider != models.ProviderEmail || user.HashedPassword == "" {
		return nil, "", ErrFederatedAccount
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, "", ErrAccountInactive
	}

	token, err := s.issuer.Issue(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}
	return user, token, nil
}

// LoginWithGoogle signs a verified Google identity in. An existing account
// with the same email is linked; otherwise a fresh verified account is
// created with the signup credit grant.
func (s *AuthService) LoginWithGoogle(ctx context.Context, idToken string) (*models.User, string, error) {
	claims, err := s.google.Verify(ctx, idToken)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	user, err := s.users.FindByGoogleID(ctx, claims.Subject)
	if err != nil {
		return nil, "", fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		user, err = s.users.FindByEmail(ctx, normalizeEmail(claims.Email))
		if err != nil {
			return nil, "", fmt.Errorf("find user: %w", err)
		}
		if user != nil {
			if err := s.users.LinkGoogle(ctx, user.ID, claims.Subject, claims.Picture); err != nil {
				return nil, "", fmt.Errorf("link google account: %w", err)
			}
			user, err = s.users.FindByID(ctx, user.ID)
			if err != nil || user == nil {
				return nil, "", fmt.Errorf("reload user: %w", err)
			}
			s.log.Info("google account linked", "user_id", user.ID)
		} else {
			user = &models.User{
				Email:                normalizeEmail(claims.Email),
				FullName:             claims.Name,
				AuthProvider:         models.ProviderGoogle,
				GoogleID:             claims.Subject,
				ProfilePicture:       claims.Picture,
				IsActive:             true,
				IsVerified:           claims.Verified(),
				FreeCreditsRemaining: s.cfg.FreeCreditsOnSignup,
				CreatedAt:            time.Now().UTC(),
			}
			user, err = s.users.Create(ctx, user)
			if err != nil {
				return nil, "", fmt.Errorf("create user: %w", err)
			}
			s.log.Info("user registered via google", "user_id", user.ID)
		}
	}
	if !user.IsActive {
		return nil, "", ErrAccountInactive
	}

	token, err := s.issuer.Issue(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}
	return user, token, nil
}

// Authenticate resolves a bearer token to its active account.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (*models.User, error) {
	userID, err := s.issuer.Parse(tokenString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrAccountInactive
	}
	return user, nil
}

// UpdateProfile lets a signed-in user change display fields only.
func (s *AuthService) UpdateProfile(ctx context.Context, userID int64, fullName, picture string) (*models.User, error) {
	if err := s.users.UpdateProfile(ctx, userID, fullName, picture); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("reload user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}
