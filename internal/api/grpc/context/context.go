package context

import (
	"context"
	"slices"

	"github.com/dtroode/carebook-server/internal/model"
)

// principalKey is the context key the authenticated principal is stored under.
// The key type is unexported so only this package can set or read the value.
type principalKey struct{}

// Manager represents a request context manager for principal operations.
// It keeps the principal in the context of the call being served and
// never in gRPC metadata, which is caller-controlled.
type Manager struct{}

// NewManager creates a new context manager instance.
//
// Returns a pointer to the newly created Manager instance.
func NewManager() *Manager {
	return &Manager{}
}

// SetPrincipalToContext stores the principal in the request context.
// The authorities slice is copied so later mutation by the caller does not leak into the request.
//
// Parameters:
//   - ctx: The request context
//   - principal: The authenticated principal
//
// Returns a new context carrying the principal.
func (m *Manager) SetPrincipalToContext(ctx context.Context, principal model.Principal) context.Context {
	principal.Authorities = slices.Clone(principal.Authorities)
	return context.WithValue(ctx, principalKey{}, principal)
}

// GetPrincipalFromContext retrieves the principal from the request context.
//
// Parameters:
//   - ctx: The request context
//
// Returns the principal and a boolean indicating if an authenticated principal was found.
func (m *Manager) GetPrincipalFromContext(ctx context.Context) (model.Principal, bool) {
	if ctx == nil {
		return model.Principal{}, false
	}

	principal, ok := ctx.Value(principalKey{}).(model.Principal)
	if !ok || principal.Email == "" {
		return model.Principal{}, false
	}

	principal.Authorities = slices.Clone(principal.Authorities)
	return principal, true
}
