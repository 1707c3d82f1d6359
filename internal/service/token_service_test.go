package service

import (
	"context"
	"crypto/sha256"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/carebook-server/internal/mocks"
	"github.com/dtroode/carebook-server/internal/model"
	"github.com/dtroode/carebook-server/internal/testutil"
)

func hashOf(s string) []byte {
	h := sha256.Sum256([]byte(s))
	return h[:]
}

func newTokenService(t *testing.T) (*TokenService, *mocks.TokenManager, *mocks.RefreshTokenStore, *mocks.UserStore) {
	manager := mocks.NewTokenManager(t)
	store := mocks.NewRefreshTokenStore(t)
	users := mocks.NewUserStore(t)
	return NewTokenService(manager, store, users, 24*time.Hour, testutil.MakeNoopLogger()), manager, store, users
}

func TestTokenService_Issue(t *testing.T) {
	ctx := context.Background()
	user := model.User{ID: uuid.New(), Email: "a@x.com"}

	svc, manager, store, _ := newTokenService(t)
	manager.On("GenerateAccessToken", user).Return("access", nil).Once()
	manager.On("GenerateRefreshToken", user).Return("refresh", "jti-1", nil).Once()
	store.On("Create", ctx, mock.MatchedBy(func(rt model.RefreshToken) bool {
		return rt.JTI == "jti-1" &&
			rt.UserID == user.ID &&
			assert.ObjectsAreEqual(hashOf("refresh"), rt.TokenHash) &&
			rt.ExpiresAt.Sub(rt.IssuedAt) == 24*time.Hour &&
			rt.RotatedFromJTI == nil
	})).Return(nil).Once()

	access, refresh, err := svc.Issue(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "access", access)
	assert.Equal(t, "refresh", refresh)
}

func TestTokenService_Issue_ManagerError(t *testing.T) {
	user := model.User{ID: uuid.New()}

	svc, manager, _, _ := newTokenService(t)
	manager.On("GenerateAccessToken", user).Return("", assert.AnError).Once()

	_, _, err := svc.Issue(context.Background(), user)
	require.ErrorIs(t, err, assert.AnError)
}

func TestTokenService_Refresh_Success(t *testing.T) {
	ctx := context.Background()
	user := model.User{ID: uuid.New(), Email: "a@x.com", Roles: []model.Role{model.RoleNurse}}
	jti := "jti-old"
	presented := "refresh-old"

	svc, manager, store, users := newTokenService(t)
	manager.On("ParseRefreshToken", presented).Return(user.ID, jti, nil).Once()
	store.On("GetByJTI", ctx, jti).Return(model.RefreshToken{
		JTI:       jti,
		UserID:    user.ID,
		TokenHash: hashOf(presented),
		IssuedAt:  time.Now().Add(-time.Hour),
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil).Once()
	store.On("RevokeByJTI", ctx, jti).Return(true, nil).Once()
	users.On("GetByID", ctx, user.ID).Return(user, nil).Once()
	manager.On("GenerateAccessToken", user).Return("access-new", nil).Once()
	manager.On("GenerateRefreshToken", user).Return("refresh-new", "jti-new", nil).Once()
	store.On("Create", ctx, mock.MatchedBy(func(rt model.RefreshToken) bool {
		return rt.JTI == "jti-new" && rt.RotatedFromJTI != nil && *rt.RotatedFromJTI == jti
	})).Return(nil).Once()

	access, refresh, err := svc.Refresh(ctx, presented)
	require.NoError(t, err)
	assert.Equal(t, "access-new", access)
	assert.Equal(t, "refresh-new", refresh)
}

func TestTokenService_Refresh_RevokedReuseRevokesFamily(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	presented := "refresh"
	now := time.Now()

	svc, manager, store, _ := newTokenService(t)
	manager.On("ParseRefreshToken", presented).Return(userID, "jti", nil).Once()
	store.On("GetByJTI", ctx, "jti").Return(model.RefreshToken{
		JTI:       "jti",
		UserID:    userID,
		TokenHash: hashOf(presented),
		ExpiresAt: now.Add(time.Hour),
		RevokedAt: &now,
	}, nil).Once()
	store.On("RevokeAllByUser", ctx, userID).Return(nil).Once()

	_, _, err := svc.Refresh(ctx, presented)
	require.ErrorIs(t, err, model.ErrTokenRevoked)
}

func TestTokenService_Refresh_Expired(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	presented := "refresh"

	svc, manager, store, _ := newTokenService(t)
	manager.On("ParseRefreshToken", presented).Return(userID, "jti", nil).Once()
	store.On("GetByJTI", ctx, "jti").Return(model.RefreshToken{
		JTI:       "jti",
		UserID:    userID,
		TokenHash: hashOf(presented),
		ExpiresAt: time.Now().Add(-time.Minute),
	}, nil).Once()

	_, _, err := svc.Refresh(ctx, presented)
	require.ErrorIs(t, err, model.ErrTokenExpired)
}

func TestTokenService_Refresh_Mismatch(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	presented := "refresh"

	svc, manager, store, _ := newTokenService(t)
	manager.On("ParseRefreshToken", presented).Return(userID, "jti", nil).Once()
	store.On("GetByJTI", ctx, "jti").Return(model.RefreshToken{
		JTI:       "jti",
		UserID:    userID,
		TokenHash: hashOf("other"),
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil).Once()

	_, _, err := svc.Refresh(ctx, presented)
	require.ErrorIs(t, err, model.ErrTokenMismatch)
}

func TestTokenService_Refresh_InvalidToken(t *testing.T) {
	svc, manager, _, _ := newTokenService(t)
	manager.On("ParseRefreshToken", "garbage").Return(uuid.Nil, "", model.ErrTokenInvalid).Once()

	_, _, err := svc.Refresh(context.Background(), "garbage")
	require.ErrorIs(t, err, model.ErrTokenInvalid)
}

func TestTokenService_RevokeByToken(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	svc, manager, store, _ := newTokenService(t)
	manager.On("ParseRefreshToken", "refresh").Return(userID, "jti", nil).Once()
	store.On("RevokeByJTI", ctx, "jti").Return(false, nil).Once()

	got, err := svc.RevokeByToken(ctx, "refresh")
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestTokenService_GetPrincipal(t *testing.T) {
	svc, manager, _, _ := newTokenService(t)
	p := model.Principal{Email: "a@x.com", Authorities: []string{"ROLE_NURSE"}}
	manager.On("ParseAccessToken", "access").Return(p, nil).Once()

	got, err := svc.GetPrincipal(context.Background(), "access")
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestTokenService_RevokeAllForUser(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	svc, _, store, _ := newTokenService(t)
	store.On("RevokeAllByUser", ctx, userID).Return(nil).Once()

	require.NoError(t, svc.RevokeAllForUser(ctx, userID))
}

func TestTokenService_PurgeExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	svc, _, store, _ := newTokenService(t)
	svc.now = func() time.Time { return now }
	store.On("DeleteExpired", ctx, now).Return(int64(3), nil).Once()

	require.NoError(t, svc.PurgeExpired(ctx))
}

func TestTokenService_PurgeExpired_Error(t *testing.T) {
	ctx := context.Background()

	svc, _, store, _ := newTokenService(t)
	store.On("DeleteExpired", ctx, mock.Anything).Return(int64(0), assert.AnError).Once()

	require.ErrorIs(t, svc.PurgeExpired(ctx), assert.AnError)
}

func TestTokenService_Refresh_LostRevocationIsReuse(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	presented := "refresh"

	svc, manager, store, _ := newTokenService(t)
	manager.On("ParseRefreshToken", presented).Return(userID, "jti", nil).Once()
	store.On("GetByJTI", ctx, "jti").Return(model.RefreshToken{
		JTI:       "jti",
		UserID:    userID,
		TokenHash: hashOf(presented),
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil).Once()
	store.On("RevokeByJTI", ctx, "jti").Return(false, nil).Once()
	store.On("RevokeAllByUser", ctx, userID).Return(nil).Once()

	_, _, err := svc.Refresh(ctx, presented)
	require.ErrorIs(t, err, model.ErrTokenRevoked)
}

func TestTokenService_Refresh_PurgedTokenIsInvalid(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	svc, manager, store, _ := newTokenService(t)
	manager.On("ParseRefreshToken", "refresh").Return(userID, "jti", nil).Once()
	store.On("GetByJTI", ctx, "jti").Return(model.RefreshToken{}, model.ErrNotFound).Once()

	_, _, err := svc.Refresh(ctx, "refresh")
	require.ErrorIs(t, err, model.ErrTokenInvalid)
	assert.NotErrorIs(t, err, model.ErrNotFound)
}

// memoryTokenStore holds every reader in GetByJTI until all of them have read, so
// concurrent refreshes all see the token as live.
type memoryTokenStore struct {
	mu      sync.Mutex
	tokens  map[string]model.RefreshToken
	readers sync.WaitGroup
}

func (m *memoryTokenStore) Create(_ context.Context, token model.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token.JTI] = token
	return nil
}

func (m *memoryTokenStore) GetByJTI(_ context.Context, jti string) (model.RefreshToken, error) {
	m.mu.Lock()
	rt, ok := m.tokens[jti]
	m.mu.Unlock()

	m.readers.Done()
	m.readers.Wait()

	if !ok {
		return model.RefreshToken{}, model.ErrNotFound
	}
	return rt, nil
}

func (m *memoryTokenStore) RevokeByJTI(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt, ok := m.tokens[jti]
	if !ok || rt.RevokedAt != nil {
		return false, nil
	}
	now := time.Now()
	rt.RevokedAt = &now
	m.tokens[jti] = rt
	return true, nil
}

func (m *memoryTokenStore) RevokeAllByUser(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for jti, rt := range m.tokens {
		if rt.UserID == userID && rt.RevokedAt == nil {
			rt.RevokedAt = &now
			m.tokens[jti] = rt
		}
	}
	return nil
}

func (m *memoryTokenStore) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func TestTokenService_Refresh_ConcurrentReuseYieldsOnePair(t *testing.T) {
	ctx := context.Background()
	user := model.User{ID: uuid.New(), Email: "a@x.com"}
	presented := "refresh-old"

	store := &memoryTokenStore{tokens: map[string]model.RefreshToken{
		"jti-old": {
			JTI:       "jti-old",
			UserID:    user.ID,
			TokenHash: hashOf(presented),
			IssuedAt:  time.Now().Add(-time.Hour),
			ExpiresAt: time.Now().Add(time.Hour),
		},
	}}
	store.readers.Add(2)

	manager := mocks.NewTokenManager(t)
	users := mocks.NewUserStore(t)
	svc := NewTokenService(manager, store, users, 24*time.Hour, testutil.MakeNoopLogger())

	manager.On("ParseRefreshToken", presented).Return(user.ID, "jti-old", nil).Twice()
	users.On("GetByID", ctx, user.ID).Return(user, nil).Once()
	manager.On("GenerateAccessToken", user).Return("access-new", nil).Once()
	manager.On("GenerateRefreshToken", user).Return("refresh-new", "jti-new", nil).Once()

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = svc.Refresh(ctx, presented)
		}(i)
	}
	wg.Wait()

	var succeeded, reused int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, model.ErrTokenRevoked):
			reused++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, reused)
	assert.NotNil(t, store.tokens["jti-old"].RevokedAt)
}
