// Package store defines the local user-record store consumed by the
// reconciliation pipeline, plus reference implementations. Hosts with their
// own user persistence implement UserStore and ignore the rest.
package store

import (
	"context"
	"errors"
	"time"
)

// Store errors.
var (
	// ErrUserNotFound indicates the user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserExists indicates a user with the same username already exists.
	ErrUserExists = errors.New("user already exists")
)

// User is a local user record. Username is unique; the store must enforce
// that, since lookup is defined to return at most one record.
type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email,omitempty"`
	FullName       string    `json:"full_name,omitempty"`
	FirstName      string    `json:"first_name,omitempty"`
	LastName       string    `json:"last_name,omitempty"`
	Language       string    `json:"language,omitempty"`
	UserTrackingID string    `json:"user_tracking_id,omitempty"`
	IsStaff        bool      `json:"is_staff"`
	IsSuperuser    bool      `json:"is_superuser"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// UserStore defines the interface for local user persistence.
type UserStore interface {
	// Create stores a new user.
	Create(ctx context.Context, user *User) error

	// GetByUsername retrieves a user by username (case-sensitive).
	// Returns nil, nil if not found.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// Update modifies an existing user.
	Update(ctx context.Context, user *User) error

	// UpdateEmail sets the email for the user with the given username.
	UpdateEmail(ctx context.Context, username, email string) error
}

// copyUser creates a deep copy of a User.
func copyUser(u *User) *User {
	if u == nil {
		return nil
	}
	cpy := *u
	return &cpy
}
