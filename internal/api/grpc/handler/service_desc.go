package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Fully qualified service names.
const (
	AuthServiceName     = "carebook.Auth"
	IdentityServiceName = "carebook.Identity"
)

// Full method names, as seen by interceptors.
const (
	AuthRegisterMethod      = "/" + AuthServiceName + "/Register"
	AuthLoginMethod         = "/" + AuthServiceName + "/Login"
	AuthRefreshMethod       = "/" + AuthServiceName + "/Refresh"
	AuthLogoutMethod        = "/" + AuthServiceName + "/Logout"
	IdentityWhoAmIMethod    = "/" + IdentityServiceName + "/WhoAmI"
	IdentityHasRoleMethod   = "/" + IdentityServiceName + "/HasRole"
	IdentityGrantRoleMethod = "/" + IdentityServiceName + "/GrantRole"
)

// AuthServer is the server API for the carebook.Auth service.
type AuthServer interface {
	Register(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Refresh(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	Logout(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
}

// IdentityServer is the server API for the carebook.Identity service.
type IdentityServer interface {
	WhoAmI(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	HasRole(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
	GrantRole(context.Context, *structpb.Struct) (*emptypb.Empty, error)
}

// RegisterAuthServer registers srv on s.
func RegisterAuthServer(s grpc.ServiceRegistrar, srv AuthServer) {
	s.RegisterService(&AuthServiceDesc, srv)
}

// RegisterIdentityServer registers srv on s.
func RegisterIdentityServer(s grpc.ServiceRegistrar, srv IdentityServer) {
	s.RegisterService(&IdentityServiceDesc, srv)
}

// AuthServiceDesc describes carebook.Auth.
var AuthServiceDesc = grpc.ServiceDesc{
	ServiceName: AuthServiceName,
	HandlerType: (*AuthServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Register",
			Handler: unaryHandler(AuthRegisterMethod, func(srv AuthServer, ctx context.Context, req *structpb.Struct) (any, error) {
				return srv.Register(ctx, req)
			}),
		},
		{
			MethodName: "Login",
			Handler: unaryHandler(AuthLoginMethod, func(srv AuthServer, ctx context.Context, req *structpb.Struct) (any, error) {
				return srv.Login(ctx, req)
			}),
		},
		{
			MethodName: "Refresh",
			Handler: unaryHandler(AuthRefreshMethod, func(srv AuthServer, ctx context.Context, req *wrapperspb.StringValue) (any, error) {
				return srv.Refresh(ctx, req)
			}),
		},
		{
			MethodName: "Logout",
			Handler: unaryHandler(AuthLogoutMethod, func(srv AuthServer, ctx context.Context, req *wrapperspb.StringValue) (any, error) {
				return srv.Logout(ctx, req)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "carebook/auth.proto",
}

// IdentityServiceDesc describes carebook.Identity.
var IdentityServiceDesc = grpc.ServiceDesc{
	ServiceName: IdentityServiceName,
	HandlerType: (*IdentityServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "WhoAmI",
			Handler: unaryHandler(IdentityWhoAmIMethod, func(srv IdentityServer, ctx context.Context, req *emptypb.Empty) (any, error) {
				return srv.WhoAmI(ctx, req)
			}),
		},
		{
			MethodName: "HasRole",
			Handler: unaryHandler(IdentityHasRoleMethod, func(srv IdentityServer, ctx context.Context, req *wrapperspb.StringValue) (any, error) {
				return srv.HasRole(ctx, req)
			}),
		},
		{
			MethodName: "GrantRole",
			Handler: unaryHandler(IdentityGrantRoleMethod, func(srv IdentityServer, ctx context.Context, req *structpb.Struct) (any, error) {
				return srv.GrantRole(ctx, req)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "carebook/identity.proto",
}

// unaryHandler builds the method handler protoc-gen-go-grpc would generate
// for a single unary method.
func unaryHandler[S any, Req any, PReq interface {
	*Req
}](fullMethod string, call func(srv S, ctx context.Context, req PReq) (any, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := PReq(new(Req))
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(S), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(S), ctx, req.(PReq))
		}
		return interceptor(ctx, in, info, handler)
	}
}
