package middleware

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dtroode/carebook-server/internal/logger"
	"github.com/dtroode/carebook-server/internal/model"
)

var (
	errMissingToken = errors.New("missing authorization token")
	errInvalidToken = errors.New("invalid authorization token")
)

// TokenService resolves the principal behind a bearer access token.
type TokenService interface {
	GetPrincipal(ctx context.Context, token string) (model.Principal, error)
}

// Authenticate validates bearer tokens and injects the principal into context.
type Authenticate struct {
	tokenService   TokenService
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewAuthenticate creates a new Authenticate middleware instance.
func NewAuthenticate(tokenService TokenService, contextManager model.ContextManager, logger *logger.Logger) *Authenticate {
	return &Authenticate{tokenService: tokenService, contextManager: contextManager, logger: logger}
}

// AuthFunc requires a valid bearer token and returns a context carrying its principal.
func (m *Authenticate) AuthFunc(ctx context.Context) (context.Context, error) {
	principal, err := m.authenticate(ctx, bearerToken(ctx))
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, err.Error())
	}

	return m.contextManager.SetPrincipalToContext(ctx, principal), nil
}

// OptionalAuthFunc lets anonymous calls through unchanged. A token that is
// present must still be valid.
func (m *Authenticate) OptionalAuthFunc(ctx context.Context) (context.Context, error) {
	token := bearerToken(ctx)
	if token == "" {
		return ctx, nil
	}
	return m.AuthFunc(ctx)
}

func (m *Authenticate) authenticate(ctx context.Context, token string) (model.Principal, error) {
	if token == "" {
		return model.Principal{}, errMissingToken
	}

	principal, err := m.tokenService.GetPrincipal(ctx, token)
	if err != nil {
		m.logger.Debug("Authenticate: rejected token", "error", err.Error())
		return model.Principal{}, errInvalidToken
	}

	if principal.Email == "" {
		return model.Principal{}, errInvalidToken
	}

	return principal, nil
}

func bearerToken(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	headers := md.Get("authorization")
	if len(headers) == 0 {
		return ""
	}

	scheme, token, found := strings.Cut(headers[0], " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
