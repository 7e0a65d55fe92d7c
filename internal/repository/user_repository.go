package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mckhtech/wedding-plannera-ai/internal/models"
)

const userColumns = `id, email, COALESCE(full_name, ''), COALESCE(hashed_password, ''), auth_provider, COALESCE(google_id, ''), COALESCE(profile_picture, ''), is_active, is_admin, is_verified, is_subscribed, free_credits_remaining, created_at, updated_at`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) DB() *sql.DB {
	return r.db
}

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.HashedPassword, &u.AuthProvider, &u.GoogleID, &u.ProfilePicture,
		&u.IsActive, &u.IsAdmin, &u.IsVerified, &u.IsSubscribed, &u.FreeCreditsRemaining, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *UserRepository) FindByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE google_id = ?`
	return scanUser(r.db.QueryRowContext(ctx, query, googleID))
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	const query = `
INSERT INTO users (email, full_name, hashed_password, auth_provider, google_id, profile_picture, is_active, is_admin, is_verified, is_subscribed, free_credits_remaining)
VALUES (?, NULLIF(?, ''), NULLIF(?, ''), ?, NULLIF(?, ''), NULLIF(?, ''), ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query, user.Email, user.FullName, user.HashedPassword, user.AuthProvider,
		user.GoogleID, user.ProfilePicture, user.IsActive, user.IsAdmin, user.IsVerified, user.IsSubscribed, user.FreeCreditsRemaining)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	user.ID = id
	return user, nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, userID int64, fullName, picture string) error {
	const query = `
UPDATE users SET full_name = NULLIF(?, ''), profile_picture = NULLIF(?, ''), updated_at = NOW()
WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, fullName, picture, userID); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

func (r *UserRepository) LinkGoogle(ctx context.Context, userID int64, googleID, picture string) error {
	const query = `
UPDATE users SET google_id = ?, profile_picture = COALESCE(NULLIF(?, ''), profile_picture), is_verified = 1, updated_at = NOW()
WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, googleID, picture, userID); err != nil {
		return fmt.Errorf("link google account: %w", err)
	}
	return nil
}

func (r *UserRepository) GrantFreeCredits(ctx context.Context, userID int64, delta int) error {
	const query = `UPDATE users SET free_credits_remaining = GREATEST(free_credits_remaining + ?, 0), updated_at = NOW() WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, delta, userID); err != nil {
		return fmt.Errorf("grant free credits: %w", err)
	}
	return nil
}

func (r *UserRepository) SetSubscribed(ctx context.Context, userID int64, subscribed bool) error {
	const query = `UPDATE users SET is_subscribed = ?, updated_at = NOW() WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, subscribed, userID); err != nil {
		return fmt.Errorf("set subscribed: %w", err)
	}
	return nil
}

func (r *UserRepository) List(ctx context.Context) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.FullName, &u.HashedPassword, &u.AuthProvider, &u.GoogleID, &u.ProfilePicture,
			&u.IsActive, &u.IsAdmin, &u.IsVerified, &u.IsSubscribed, &u.FreeCreditsRemaining, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}
