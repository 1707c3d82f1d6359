package handler

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/dtroode/carebook-server/internal/logger"
	"github.com/dtroode/carebook-server/internal/model"
)

// IdentityResolver resolves the caller of the current request.
type IdentityResolver interface {
	CurrentUser(ctx context.Context) (model.User, error)
	HasRole(ctx context.Context, role string) bool
}

// RoleGranter assigns roles to accounts.
type RoleGranter interface {
	GrantRole(ctx context.Context, email, role string) (model.User, error)
}

var _ IdentityServer = (*Identity)(nil)

// Identity exposes the caller's identity.
type Identity struct {
	resolver IdentityResolver
	granter  RoleGranter
	logger   *logger.Logger
}

// NewIdentity creates a new Identity handler.
func NewIdentity(resolver IdentityResolver, granter RoleGranter, logger *logger.Logger) *Identity {
	return &Identity{
		resolver: resolver,
		granter:  granter,
		logger:   logger,
	}
}

// WhoAmI returns the stored account of the authenticated caller.
func (h *Identity) WhoAmI(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	user, err := h.resolver.CurrentUser(ctx)
	if err != nil {
		h.logger.Debug("Identity handler: cannot resolve caller",
			"error", err.Error())
		return nil, handleError(err)
	}

	return userMessage(user), nil
}

// HasRole reports whether the caller holds the role. Anonymous callers hold none.
func (h *Identity) HasRole(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	return wrapperspb.Bool(h.resolver.HasRole(ctx, req.GetValue())), nil
}

// GrantRole assigns a role to the account with the given email. Admin only.
func (h *Identity) GrantRole(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	email, role := stringField(req, "email"), stringField(req, "role")
	if email == "" || role == "" {
		return nil, status.Error(codes.InvalidArgument, "email and role are required")
	}

	user, err := h.granter.GrantRole(ctx, email, role)
	if err != nil {
		h.logger.Debug("Identity handler: grant role failed",
			"email", email,
			"role", role,
			"error", err.Error())
		return nil, handleError(err)
	}

	h.logger.Info("Identity handler: role granted",
		"user_id", user.ID,
		"role", role)

	return &emptypb.Empty{}, nil
}
