package handler

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/dtroode/carebook-server/internal/model"
	"github.com/dtroode/carebook-server/internal/service"
	"github.com/dtroode/carebook-server/internal/testutil"
)

type authServiceStub struct {
	user    model.User
	pair    service.TokenPair
	err     error
	gotArgs []string
}

func (s *authServiceStub) Register(_ context.Context, email, password string) (model.User, error) {
	s.gotArgs = []string{email, password}
	return s.user, s.err
}

func (s *authServiceStub) Login(_ context.Context, email, password string) (service.TokenPair, error) {
	s.gotArgs = []string{email, password}
	return s.pair, s.err
}

func (s *authServiceStub) Refresh(_ context.Context, token string) (service.TokenPair, error) {
	s.gotArgs = []string{token}
	return s.pair, s.err
}

func (s *authServiceStub) Logout(_ context.Context, token string) error {
	s.gotArgs = []string{token}
	return s.err
}

func credentials(t *testing.T, email, password string) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(map[string]any{"email": email, "password": password})
	require.NoError(t, err)
	return s
}

func TestAuth_Register(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	svc := &authServiceStub{user: model.User{ID: id, Email: "p@carebook.test", Roles: []model.Role{model.RolePatient}}}
	h := NewAuth(svc, testutil.MakeNoopLogger())

	out, err := h.Register(context.Background(), credentials(t, "p@carebook.test", "secret-pass"))
	require.NoError(t, err)
	assert.Equal(t, []string{"p@carebook.test", "secret-pass"}, svc.gotArgs)
	assert.Equal(t, id.String(), out.GetFields()["id"].GetStringValue())
	assert.Equal(t, "p@carebook.test", out.GetFields()["email"].GetStringValue())
	roles := out.GetFields()["roles"].GetListValue().GetValues()
	require.Len(t, roles, 1)
	assert.Equal(t, "PATIENT", roles[0].GetStringValue())
}

func TestAuth_Register_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		req      *structpb.Struct
		svcErr   error
		wantCode codes.Code
	}{
		{name: "missing fields", req: &structpb.Struct{}, wantCode: codes.InvalidArgument},
		{name: "nil request body", req: nil, wantCode: codes.InvalidArgument},
		{name: "duplicate", req: credentials(t, "a@b.c", "password1"), svcErr: model.ErrEmailTaken, wantCode: codes.AlreadyExists},
		{name: "store failure", req: credentials(t, "a@b.c", "password1"), svcErr: assert.AnError, wantCode: codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := NewAuth(&authServiceStub{err: tt.svcErr}, testutil.MakeNoopLogger())
			out, err := h.Register(context.Background(), tt.req)
			assert.Nil(t, out)
			assert.Equal(t, tt.wantCode, status.Code(err))
		})
	}
}

func TestAuth_Login(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		svc := &authServiceStub{pair: service.TokenPair{AccessToken: "acc", RefreshToken: "ref"}}
		h := NewAuth(svc, testutil.MakeNoopLogger())

		out, err := h.Login(context.Background(), credentials(t, "n@carebook.test", "password1"))
		require.NoError(t, err)
		assert.Equal(t, "acc", out.GetFields()["access_token"].GetStringValue())
		assert.Equal(t, "ref", out.GetFields()["refresh_token"].GetStringValue())
	})

	t.Run("bad credentials", func(t *testing.T) {
		t.Parallel()
		h := NewAuth(&authServiceStub{err: model.ErrInvalidCredentials}, testutil.MakeNoopLogger())

		out, err := h.Login(context.Background(), credentials(t, "n@carebook.test", "wrong-pass"))
		assert.Nil(t, out)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})
}

func TestAuth_Refresh(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		svc := &authServiceStub{pair: service.TokenPair{AccessToken: "acc2", RefreshToken: "ref2"}}
		h := NewAuth(svc, testutil.MakeNoopLogger())

		out, err := h.Refresh(context.Background(), wrapperspb.String("ref1"))
		require.NoError(t, err)
		assert.Equal(t, []string{"ref1"}, svc.gotArgs)
		assert.Equal(t, "acc2", out.GetFields()["access_token"].GetStringValue())
	})

	t.Run("empty token", func(t *testing.T) {
		t.Parallel()
		h := NewAuth(&authServiceStub{}, testutil.MakeNoopLogger())
		_, err := h.Refresh(context.Background(), wrapperspb.String(""))
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	})

	t.Run("reused token", func(t *testing.T) {
		t.Parallel()
		h := NewAuth(&authServiceStub{err: model.ErrTokenRevoked}, testutil.MakeNoopLogger())
		_, err := h.Refresh(context.Background(), wrapperspb.String("old"))
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})
}

func TestAuth_Logout(t *testing.T) {
	t.Parallel()

	svc := &authServiceStub{}
	h := NewAuth(svc, testutil.MakeNoopLogger())

	out, err := h.Logout(context.Background(), wrapperspb.String("ref"))
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Equal(t, []string{"ref"}, svc.gotArgs)

	_, err = h.Logout(context.Background(), nil)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}
