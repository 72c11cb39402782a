package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"audioconv/internal/services"
)

// CreateUser inserts a user and returns it with the assigned id. A duplicate
// display name or token yields services.ErrConflict.
func (s *Store) CreateUser(ctx context.Context, displayName, secretToken string) (*User, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" || secretToken == "" {
		return nil, services.Wrap(services.ErrValidation, "store", "create user", "display name and token are required", nil)
	}
	now := time.Now().UTC()

	var userID int64
	err := retryOnBusy(ensureContext(ctx), func() error {
		return s.queryRow(ctx,
			`INSERT INTO users (display_name, secret_token, created_at) VALUES (?, ?, ?) RETURNING user_id`,
			displayName, secretToken, formatTime(now),
		).Scan(&userID)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, services.Wrap(services.ErrConflict, "store", "create user", "display name already registered", err)
		}
		return nil, services.Wrap(services.ErrTransient, "store", "create user", "", err)
	}
	return &User{UserID: userID, DisplayName: displayName, SecretToken: secretToken, CreatedAt: now}, nil
}

// GetUser fetches a user by id. It returns nil, nil when no such user exists.
func (s *Store) GetUser(ctx context.Context, userID int64) (*User, error) {
	user, err := scanUser(s.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = ?`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "store", "get user", "", err)
	}
	return user, nil
}

// GetUserByName fetches a user by display name. It returns nil, nil when absent.
func (s *Store) GetUserByName(ctx context.Context, displayName string) (*User, error) {
	user, err := scanUser(s.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE display_name = ?`, strings.TrimSpace(displayName)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "store", "get user by name", "", err)
	}
	return user, nil
}

// ListUsers returns every user ordered by id.
func (s *Store) ListUsers(ctx context.Context) ([]*User, error) {
	rows, err := s.query(ctx, `SELECT `+userColumns+` FROM users ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	var users []*User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}
