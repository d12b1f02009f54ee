package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrUserNotFound is returned when no user matches the given username.
var ErrUserNotFound = errors.New("user not found")

// UserStore reads and updates user credentials.
type UserStore struct {
	Base
}

// NewUserStore creates a UserStore.
func NewUserStore(base Base) *UserStore {
	return &UserStore{Base: base}
}

// User is one account row. The password hash is a PHC-format string.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
}

// GetByUsername fetches a user by exact username.
func (s *UserStore) GetByUsername(ctx context.Context, username string) (*User, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	handle, err := s.Pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching user: %w", err)
	}
	defer handle.Release()

	var u User

	err = handle.Conn().QueryRowContext(ctx,
		"SELECT id, username, password_hash FROM users WHERE username = ?", username).
		Scan(&u.ID, &u.Username, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("querying user %q: %w", username, err)
	}

	return &u, nil
}

// UpdateToken persists a freshly minted auth token for the user.
func (s *UserStore) UpdateToken(ctx context.Context, username, token string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	handle, err := s.Pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("updating token: %w", err)
	}
	defer handle.Release()

	if _, err := handle.Conn().ExecContext(ctx,
		"UPDATE users SET auth_token = ?, updated_at = CURRENT_TIMESTAMP WHERE username = ?",
		token, username); err != nil {
		return fmt.Errorf("updating token for %q: %w", username, err)
	}

	return nil
}
