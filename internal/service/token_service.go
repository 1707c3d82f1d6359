package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/carebook-server/internal/logger"
	"github.com/dtroode/carebook-server/internal/model"
)

// TokenService provides high-level operations for issuing, refreshing,
// and revoking tokens. It composes the TokenManager and RefreshTokenStore.
type TokenService struct {
	manager    model.TokenManager
	store      model.RefreshTokenStore
	users      model.UserStore
	refreshTTL time.Duration
	logger     *logger.Logger
	now        func() time.Time
}

// NewTokenService creates a TokenService. refreshTTL must match the manager's refresh token lifetime;
// it is used for persistence only, cryptographic validity is checked by the manager.
func NewTokenService(manager model.TokenManager, store model.RefreshTokenStore, users model.UserStore, refreshTTL time.Duration, logger *logger.Logger) *TokenService {
	return &TokenService{
		manager:    manager,
		store:      store,
		users:      users,
		refreshTTL: refreshTTL,
		logger:     logger,
		now:        time.Now,
	}
}

// Issue creates an access/refresh token pair for user and persists the refresh token.
func (s *TokenService) Issue(ctx context.Context, user model.User) (accessToken string, refreshToken string, err error) {
	access, err := s.manager.GenerateAccessToken(user)
	if err != nil {
		return "", "", fmt.Errorf("issue access: %w", err)
	}

	refresh, jti, err := s.manager.GenerateRefreshToken(user)
	if err != nil {
		return "", "", fmt.Errorf("issue refresh: %w", err)
	}

	if err := s.store.Create(ctx, s.newRecord(user.ID, jti, refresh, nil)); err != nil {
		return "", "", fmt.Errorf("persist refresh: %w", err)
	}

	return access, refresh, nil
}

// Refresh rotates a refresh token. The presented token is revoked and a new pair is issued
// with the user's current roles. Only the call that wins the revocation gets a new pair;
// any other use of the same token counts as reuse and revokes every token of the user.
func (s *TokenService) Refresh(ctx context.Context, presentedRefresh string) (newAccess string, newRefresh string, err error) {
	userID, jti, err := s.manager.ParseRefreshToken(presentedRefresh)
	if err != nil {
		return "", "", err
	}

	rt, err := s.store.GetByJTI(ctx, jti)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			// Signed by us but no longer stored, e.g. purged.
			return "", "", model.ErrTokenInvalid
		}
		return "", "", fmt.Errorf("get refresh: %w", err)
	}

	if err := validateRecord(rt, hashRefresh(presentedRefresh), s.now()); err != nil {
		if errors.Is(err, model.ErrTokenRevoked) {
			s.revokeFamily(ctx, rt.UserID, jti)
		}
		return "", "", err
	}
	if rt.UserID != userID {
		return "", "", model.ErrTokenMismatch
	}

	revoked, err := s.store.RevokeByJTI(ctx, jti)
	if err != nil {
		return "", "", fmt.Errorf("revoke old refresh: %w", err)
	}
	if !revoked {
		// Another request rotated this token after we read it.
		s.revokeFamily(ctx, rt.UserID, jti)
		return "", "", model.ErrTokenRevoked
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", "", fmt.Errorf("get user: %w", err)
	}

	access, err := s.manager.GenerateAccessToken(user)
	if err != nil {
		return "", "", fmt.Errorf("issue new access: %w", err)
	}

	refresh, newJTI, err := s.manager.GenerateRefreshToken(user)
	if err != nil {
		return "", "", fmt.Errorf("issue new refresh: %w", err)
	}

	rotatedFrom := rt.JTI
	if err := s.store.Create(ctx, s.newRecord(user.ID, newJTI, refresh, &rotatedFrom)); err != nil {
		return "", "", fmt.Errorf("persist new refresh: %w", err)
	}

	return access, refresh, nil
}

// RevokeByToken revokes the presented refresh token.
func (s *TokenService) RevokeByToken(ctx context.Context, presentedRefresh string) (uuid.UUID, error) {
	userID, jti, err := s.manager.ParseRefreshToken(presentedRefresh)
	if err != nil {
		return uuid.Nil, err
	}
	if _, err := s.store.RevokeByJTI(ctx, jti); err != nil {
		return uuid.Nil, fmt.Errorf("revoke refresh: %w", err)
	}
	return userID, nil
}

// revokeFamily handles a reused refresh token. A token presented after rotation has leaked,
// so every session of the user is cut off.
func (s *TokenService) revokeFamily(ctx context.Context, userID uuid.UUID, jti string) {
	s.logger.Warn("Token service: revoked refresh token reused",
		"user_id", userID,
		"jti", jti)
	if err := s.RevokeAllForUser(ctx, userID); err != nil {
		s.logger.Error("Token service: failed to revoke user tokens",
			"user_id", userID,
			"error", err.Error())
	}
}

// RevokeAllForUser revokes every active refresh token of the user.
func (s *TokenService) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	return s.store.RevokeAllByUser(ctx, userID)
}

// GetPrincipal validates an access token and returns the principal it names.
func (s *TokenService) GetPrincipal(_ context.Context, token string) (model.Principal, error) {
	return s.manager.ParseAccessToken(token)
}

// PurgeExpired deletes refresh tokens that expired before the current time.
func (s *TokenService) PurgeExpired(ctx context.Context) error {
	deleted, err := s.store.DeleteExpired(ctx, s.now())
	if err != nil {
		return fmt.Errorf("purge expired refresh tokens: %w", err)
	}
	if deleted > 0 {
		s.logger.Info("Token service: purged expired refresh tokens", "count", deleted)
	}
	return nil
}

func (s *TokenService) newRecord(userID uuid.UUID, jti, refresh string, rotatedFrom *string) model.RefreshToken {
	now := s.now()
	return model.RefreshToken{
		ID:             uuid.New(),
		JTI:            jti,
		UserID:         userID,
		TokenHash:      hashRefresh(refresh),
		IssuedAt:       now,
		ExpiresAt:      now.Add(s.refreshTTL),
		RotatedFromJTI: rotatedFrom,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func hashRefresh(token string) []byte {
	h := sha256.Sum256([]byte(token))
	return h[:]
}

func validateRecord(rt model.RefreshToken, presentedHash []byte, now time.Time) error {
	if rt.RevokedAt != nil {
		return model.ErrTokenRevoked
	}
	if now.After(rt.ExpiresAt) {
		return model.ErrTokenExpired
	}
	if !equalBytes(rt.TokenHash, presentedHash) {
		return model.ErrTokenMismatch
	}
	return nil
}

func equalBytes(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
