package router

import (
	"context"
	"runtime/debug"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/auth"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/selector"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/dtroode/carebook-server/internal/api/grpc/handler"
	"github.com/dtroode/carebook-server/internal/api/grpc/middleware"
	"github.com/dtroode/carebook-server/internal/logger"
	"github.com/dtroode/carebook-server/internal/model"
)

// Services bundles the application services exposed over gRPC.
type Services struct {
	Auth     handler.AuthService
	Roles    handler.RoleGranter
	Identity handler.IdentityResolver
	Tokens   middleware.TokenService
}

// Router represents a gRPC router for carebook operations.
// It manages gRPC service registration and middleware configuration.
type Router struct {
	services         Services
	contextManager   model.ContextManager
	logger           *logger.Logger
	enableReflection bool
	health           *health.Server
}

// New creates new gRPC Router instance.
func New(services Services, contextManager model.ContextManager, logger *logger.Logger, enableReflection bool) *Router {
	return &Router{
		services:         services,
		contextManager:   contextManager,
		logger:           logger,
		enableReflection: enableReflection,
		health:           health.NewServer(),
	}
}

// Health returns the health server registered by Register.
func (r *Router) Health() *health.Server {
	return r.health
}

// requiresAuth selects methods that need an authenticated caller.
func requiresAuth(_ context.Context, c interceptors.CallMeta) bool {
	switch c.FullMethod() {
	case handler.IdentityWhoAmIMethod, handler.IdentityGrantRoleMethod:
		return true
	}
	return false
}

// optionalAuth selects methods that accept anonymous callers but use a principal when present.
func optionalAuth(_ context.Context, c interceptors.CallMeta) bool {
	return c.FullMethod() == handler.IdentityHasRoleMethod
}

// Register registers all gRPC services and middleware.
// It sets up the gRPC server with panic recovery, request logging,
// authentication interceptors and tracing.
//
// Returns the configured gRPC server instance.
func (r *Router) Register(opts ...grpc.ServerOption) *grpc.Server {
	logging := middleware.NewLogging(r.logger)
	authenticate := middleware.NewAuthenticate(r.services.Tokens, r.contextManager, r.logger)
	recoveryOpt := recovery.WithRecoveryHandlerContext(r.recoverPanic)

	opts = append(opts,
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			recovery.UnaryServerInterceptor(recoveryOpt),
			logging.HandleGRPC,
			selector.UnaryServerInterceptor(
				auth.UnaryServerInterceptor(authenticate.AuthFunc),
				selector.MatchFunc(requiresAuth),
			),
			selector.UnaryServerInterceptor(
				auth.UnaryServerInterceptor(authenticate.OptionalAuthFunc),
				selector.MatchFunc(optionalAuth),
			),
		),
		grpc.ChainStreamInterceptor(
			recovery.StreamServerInterceptor(recoveryOpt),
		),
	)

	s := grpc.NewServer(opts...)
	r.registerAuthRoutes(s)
	r.registerIdentityRoutes(s)
	r.registerHealth(s)

	if r.enableReflection {
		reflection.Register(s)
	}

	return s
}

func (r *Router) registerAuthRoutes(server *grpc.Server) {
	handler.RegisterAuthServer(server, handler.NewAuth(r.services.Auth, r.logger))
}

func (r *Router) registerIdentityRoutes(server *grpc.Server) {
	handler.RegisterIdentityServer(server, handler.NewIdentity(r.services.Identity, r.services.Roles, r.logger))
}

func (r *Router) registerHealth(server *grpc.Server) {
	grpc_health_v1.RegisterHealthServer(server, r.health)
	r.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	r.health.SetServingStatus(handler.AuthServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	r.health.SetServingStatus(handler.IdentityServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
}

func (r *Router) recoverPanic(ctx context.Context, p any) error {
	r.logger.Error("gRPC handler panicked",
		"panic", p,
		"stack", string(debug.Stack()))
	return status.Error(codes.Internal, "internal server error")
}
