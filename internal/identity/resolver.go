// Package identity maps the principal of the calling request to platform users.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dtroode/carebook-server/internal/model"
)

// Resolver answers "who is making this call" for the request carried by ctx.
// It holds no per-request state and is safe for concurrent use.
type Resolver struct {
	users      model.UserFinder
	principals model.PrincipalSource
}

// NewResolver creates a Resolver that looks users up in users and reads principals from principals.
func NewResolver(users model.UserFinder, principals model.PrincipalSource) *Resolver {
	return &Resolver{users: users, principals: principals}
}

// CurrentUserEmail returns the principal name of the caller.
// It fails with model.ErrAuthenticationRequired when the request is anonymous.
func (r *Resolver) CurrentUserEmail(ctx context.Context) (string, error) {
	principal, ok := r.principals.GetPrincipalFromContext(ctx)
	if !ok {
		return "", model.ErrAuthenticationRequired
	}
	return principal.Email, nil
}

// CurrentUserID returns the ID of the stored user behind the caller.
func (r *Resolver) CurrentUserID(ctx context.Context) (uuid.UUID, error) {
	user, err := r.CurrentUser(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	return user.ID, nil
}

// CurrentUser returns the stored user behind the caller.
// It fails with model.ErrAuthenticationRequired when the request is anonymous
// and with model.ErrUserNotFound when no user matches the principal.
func (r *Resolver) CurrentUser(ctx context.Context) (model.User, error) {
	email, err := r.CurrentUserEmail(ctx)
	if err != nil {
		return model.User{}, err
	}

	user, err := r.users.GetByEmail(ctx, email)
	if errors.Is(err, model.ErrNotFound) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("failed to get user by email: %w", err)
	}
	if user.ID == uuid.Nil {
		return model.User{}, model.ErrUserNotFound
	}

	return user, nil
}

// HasRole reports whether the caller is authenticated and holds the authority for role.
// Role "NURSE" matches only the authority "ROLE_NURSE".
func (r *Resolver) HasRole(ctx context.Context, role string) bool {
	if role == "" {
		return false
	}
	principal, ok := r.principals.GetPrincipalFromContext(ctx)
	if !ok {
		return false
	}
	return principal.HasAuthority(model.RolePrefix + role)
}
