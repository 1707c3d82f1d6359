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
	"github.com/dtroode/carebook-server/internal/service"
)

// AuthService defines account registration and session operations.
type AuthService interface {
	Register(ctx context.Context, email, password string) (model.User, error)
	Login(ctx context.Context, email, password string) (service.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (service.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
}

var _ AuthServer = (*Auth)(nil)

// Auth handles gRPC endpoints for authentication.
type Auth struct {
	authService AuthService
	logger      *logger.Logger
}

// NewAuth creates a new Auth handler.
func NewAuth(authService AuthService, logger *logger.Logger) *Auth {
	return &Auth{
		authService: authService,
		logger:      logger,
	}
}

// Register creates a patient account.
func (h *Auth) Register(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	email, password := stringField(req, "email"), stringField(req, "password")
	if email == "" || password == "" {
		return nil, status.Error(codes.InvalidArgument, "email and password are required")
	}

	user, err := h.authService.Register(ctx, email, password)
	if err != nil {
		h.logger.Debug("Auth handler: registration failed",
			"email", email,
			"error", err.Error())
		return nil, handleError(err)
	}

	h.logger.Info("Auth handler: registration completed",
		"user_id", user.ID)

	return userMessage(user), nil
}

// Login exchanges credentials for an access and refresh token pair.
func (h *Auth) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	email, password := stringField(req, "email"), stringField(req, "password")
	if email == "" || password == "" {
		return nil, status.Error(codes.InvalidArgument, "email and password are required")
	}

	pair, err := h.authService.Login(ctx, email, password)
	if err != nil {
		h.logger.Debug("Auth handler: login failed",
			"email", email,
			"error", err.Error())
		return nil, handleError(err)
	}

	return tokenPairMessage(pair.AccessToken, pair.RefreshToken), nil
}

// Refresh rotates a refresh token.
func (h *Auth) Refresh(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "refresh token is required")
	}

	pair, err := h.authService.Refresh(ctx, req.GetValue())
	if err != nil {
		h.logger.Debug("Auth handler: token refresh failed",
			"error", err.Error())
		return nil, handleError(err)
	}

	return tokenPairMessage(pair.AccessToken, pair.RefreshToken), nil
}

// Logout revokes a refresh token.
func (h *Auth) Logout(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "refresh token is required")
	}

	if err := h.authService.Logout(ctx, req.GetValue()); err != nil {
		h.logger.Debug("Auth handler: logout failed",
			"error", err.Error())
		return nil, handleError(err)
	}

	return &emptypb.Empty{}, nil
}
