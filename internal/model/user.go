package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UserFinder looks users up by their principal name.
type UserFinder interface {
	GetByEmail(ctx context.Context, email string) (User, error)
}

// UserStore defines persistence operations for users.
type UserStore interface {
	UserFinder
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
	Create(ctx context.Context, user User) (User, error)
	UpdateRoles(ctx context.Context, id uuid.UUID, roles []Role, updatedBy string) (User, error)
}

// User represents a platform account: patients, care staff and operators alike.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash []byte
	Roles        []Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CreatedBy    string
	UpdatedBy    string
	DeletedAt    *time.Time
}

// HasRole reports whether role is assigned to the user.
func (u User) HasRole(role Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Authorities returns the role-prefixed authority strings for the user's roles.
func (u User) Authorities() []string {
	authorities := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		authorities = append(authorities, r.Authority())
	}
	return authorities
}
