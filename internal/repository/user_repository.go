package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"trackx/backend/internal/db"
	"trackx/backend/internal/model"
)

type UserRepository struct {
	db      *sql.DB
	dialect db.Dialect
}

func NewUserRepository(database *sql.DB, dialect db.Dialect) *UserRepository {
	return &UserRepository{db: database, dialect: dialect}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(
		ctx,
		r.dialect.Rebind(`INSERT INTO users (id, email, password_hash, display_name, photo_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`),
		user.ID,
		user.Email,
		user.PasswordHash,
		user.DisplayName,
		user.PhotoURL,
		formatTime(user.CreatedAt),
		formatTime(user.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("create user: %w", ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.db.QueryRowContext(
		ctx,
		r.dialect.Rebind(`SELECT id, email, password_hash, display_name, photo_url, created_at, updated_at
		 FROM users
		 WHERE email = ?`),
		email,
	)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := r.db.QueryRowContext(
		ctx,
		r.dialect.Rebind(`SELECT id, email, password_hash, display_name, photo_url, created_at, updated_at
		 FROM users
		 WHERE id = ?`),
		id,
	)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

func (r *UserRepository) UpdateDisplayName(ctx context.Context, id, displayName string, now time.Time) error {
	result, err := r.db.ExecContext(
		ctx,
		r.dialect.Rebind(`UPDATE users SET display_name = ?, updated_at = ? WHERE id = ?`),
		displayName,
		formatTime(now),
		id,
	)
	if err != nil {
		return fmt.Errorf("update display name: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update display name: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepository) RevokeToken(ctx context.Context, tokenID, userID string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(
		ctx,
		r.dialect.Rebind(`INSERT INTO revoked_tokens (token_id, user_id, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT (token_id) DO NOTHING`),
		tokenID,
		userID,
		formatTime(expiresAt),
	)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (r *UserRepository) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	var count int
	if err := r.db.QueryRowContext(
		ctx,
		r.dialect.Rebind(`SELECT COUNT(1) FROM revoked_tokens WHERE token_id = ?`),
		tokenID,
	).Scan(&count); err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return count > 0, nil
}

// PurgeExpiredTokens drops revocations for tokens that can no longer
// validate anyway.
func (r *UserRepository) PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(
		ctx,
		r.dialect.Rebind(`DELETE FROM revoked_tokens WHERE expires_at < ?`),
		formatTime(now),
	)
	if err != nil {
		return 0, fmt.Errorf("purge revoked tokens: %w", err)
	}
	return result.RowsAffected()
}

func scanUser(s scanner) (*model.User, error) {
	var user model.User
	var createdAt string
	var updatedAt string
	if err := s.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.DisplayName,
		&user.PhotoURL,
		&createdAt,
		&updatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}

	parsedCreatedAt, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse user created_at: %w", err)
	}
	parsedUpdatedAt, err := parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse user updated_at: %w", err)
	}
	user.CreatedAt = parsedCreatedAt
	user.UpdatedAt = parsedUpdatedAt
	return &user, nil
}
