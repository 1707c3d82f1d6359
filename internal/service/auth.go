package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dtroode/carebook-server/internal/logger"
	"github.com/dtroode/carebook-server/internal/model"
)

const (
	minPasswordLength = 8
	// bcrypt ignores input past 72 bytes.
	maxPasswordLength = 72
)

// IdentityResolver answers questions about the caller of the current request.
type IdentityResolver interface {
	HasRole(ctx context.Context, role string) bool
}

// AuditRecorder records user changes and authentication events.
type AuditRecorder interface {
	Actor(ctx context.Context) string
	Record(ctx context.Context, entry model.AuditEntry)
}

// TokenIssuer issues, rotates and revokes token pairs.
type TokenIssuer interface {
	Issue(ctx context.Context, user model.User) (accessToken string, refreshToken string, err error)
	Refresh(ctx context.Context, refreshToken string) (accessToken string, newRefreshToken string, err error)
	RevokeByToken(ctx context.Context, refreshToken string) (uuid.UUID, error)
}

// TokenPair is returned on successful login or refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type Auth struct {
	userStore model.UserStore
	// credentials reads password hashes. It must bypass any user cache.
	credentials model.UserFinder
	tokens      TokenIssuer
	identity    IdentityResolver
	audit       AuditRecorder
	bcryptCost  int
	logger      *logger.Logger
	now         func() time.Time
	// dummyHash is compared against when the email is unknown so both failure paths cost the same.
	dummyHash []byte
}

func NewAuth(
	userStore model.UserStore,
	credentials model.UserFinder,
	tokens TokenIssuer,
	identity IdentityResolver,
	audit AuditRecorder,
	bcryptCost int,
	logger *logger.Logger,
) (*Auth, error) {
	dummyHash, err := bcrypt.GenerateFromPassword([]byte("carebook-dummy-password"), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare password hasher: %w", err)
	}

	return &Auth{
		userStore:   userStore,
		credentials: credentials,
		tokens:      tokens,
		identity:    identity,
		audit:       audit,
		bcryptCost:  bcryptCost,
		logger:      logger,
		now:         time.Now,
		dummyHash:   dummyHash,
	}, nil
}

// Register creates a patient account.
func (a *Auth) Register(ctx context.Context, email, password string) (model.User, error) {
	email = normalizeEmail(email)

	a.logger.Debug("Auth service: starting user registration",
		"email", email)

	if err := validateEmail(email); err != nil {
		return model.User{}, err
	}
	if err := validatePassword(password); err != nil {
		return model.User{}, err
	}

	existingUser, err := a.userStore.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		a.logger.Error("Auth service: failed to get user by email",
			"email", email,
			"error", err.Error())
		return model.User{}, fmt.Errorf("failed to get user by email: %w", err)
	}
	if existingUser.ID != uuid.Nil {
		a.logger.Info("Auth service: user already exists",
			"email", email)
		return model.User{}, model.ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.bcryptCost)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	actor := a.audit.Actor(ctx)
	now := a.now()
	user, err := a.userStore.Create(ctx, model.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		Roles:        []model.Role{model.RolePatient},
		CreatedAt:    now,
		UpdatedAt:    now,
		CreatedBy:    actor,
		UpdatedBy:    actor,
	})
	if err != nil {
		a.logger.Error("Auth service: failed to create user",
			"email", email,
			"error", err.Error())
		return model.User{}, fmt.Errorf("failed to create user: %w", err)
	}

	a.audit.Record(ctx, model.AuditEntry{
		Action:     model.AuditUserRegistered,
		EntityType: model.AuditEntityUser,
		EntityID:   user.ID.String(),
	})

	a.logger.Info("Auth service: user registration completed successfully",
		"email", email,
		"user_id", user.ID)

	return user, nil
}

// Login verifies credentials and issues a token pair.
// Unknown emails and wrong passwords produce the same error.
func (a *Auth) Login(ctx context.Context, email, password string) (TokenPair, error) {
	email = normalizeEmail(email)

	a.logger.Debug("Auth service: starting user login",
		"email", email)

	user, err := a.credentials.GetByEmail(ctx, email)
	if errors.Is(err, model.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(a.dummyHash, []byte(password))
		a.recordLoginFailure(ctx, email, "")
		return TokenPair{}, model.ErrInvalidCredentials
	}
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to get user by email: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		a.recordLoginFailure(ctx, email, user.ID.String())
		return TokenPair{}, model.ErrInvalidCredentials
	}

	accessToken, refreshToken, err := a.tokens.Issue(ctx, user)
	if err != nil {
		a.logger.Error("Auth service: failed to issue tokens",
			"user_id", user.ID,
			"error", err.Error())
		return TokenPair{}, fmt.Errorf("failed to issue tokens: %w", err)
	}

	a.audit.Record(ctx, model.AuditEntry{
		Actor:      user.Email,
		Action:     model.AuditUserLoggedIn,
		EntityType: model.AuditEntityUser,
		EntityID:   user.ID.String(),
	})

	a.logger.Info("Auth service: user login completed successfully",
		"user_id", user.ID)

	return TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Refresh rotates the refresh token.
func (a *Auth) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	accessToken, newRefreshToken, err := a.tokens.Refresh(ctx, refreshToken)
	if err != nil {
		a.logger.Info("Auth service: token refresh rejected",
			"error", err.Error())
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: accessToken, RefreshToken: newRefreshToken}, nil
}

// Logout revokes the refresh token.
func (a *Auth) Logout(ctx context.Context, refreshToken string) error {
	userID, err := a.tokens.RevokeByToken(ctx, refreshToken)
	if err != nil {
		return err
	}

	a.audit.Record(ctx, model.AuditEntry{
		Action:     model.AuditUserLoggedOut,
		EntityType: model.AuditEntityUser,
		EntityID:   userID.String(),
	})

	return nil
}

// GrantRole adds role to the user with the given email. Only administrators may call it.
// Granting a role the user already holds is a no-op. New tokens carry the role; tokens
// issued earlier keep their authorities until they are refreshed.
func (a *Auth) GrantRole(ctx context.Context, email, roleName string) (model.User, error) {
	if !a.identity.HasRole(ctx, string(model.RoleAdmin)) {
		return model.User{}, model.ErrForbidden
	}

	role, ok := model.ParseRole(roleName)
	if !ok {
		return model.User{}, fmt.Errorf("unknown role %q: %w", roleName, model.ErrInvalidArgument)
	}

	email = normalizeEmail(email)
	user, err := a.userStore.GetByEmail(ctx, email)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to get user by email: %w", err)
	}
	if user.HasRole(role) {
		return user, nil
	}

	roles := append(append([]model.Role(nil), user.Roles...), role)
	updated, err := a.userStore.UpdateRoles(ctx, user.ID, roles, a.audit.Actor(ctx))
	if err != nil {
		return model.User{}, fmt.Errorf("failed to update roles: %w", err)
	}

	a.audit.Record(ctx, model.AuditEntry{
		Action:     model.AuditRoleGranted,
		EntityType: model.AuditEntityUser,
		EntityID:   user.ID.String(),
		Details:    []byte(fmt.Sprintf(`{"role":%q}`, role)),
	})

	a.logger.Info("Auth service: role granted",
		"user_id", user.ID,
		"role", role)

	return updated, nil
}

func (a *Auth) recordLoginFailure(ctx context.Context, email, userID string) {
	a.logger.Info("Auth service: login rejected",
		"email", email)
	a.audit.Record(ctx, model.AuditEntry{
		Actor:      email,
		Action:     model.AuditUserLoginFail,
		EntityType: model.AuditEntityUser,
		EntityID:   userID,
	})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("invalid email %q: %w", email, model.ErrInvalidArgument)
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters: %w", minPasswordLength, model.ErrInvalidArgument)
	}
	if len(password) > maxPasswordLength {
		return fmt.Errorf("password must be at most %d bytes: %w", maxPasswordLength, model.ErrInvalidArgument)
	}
	return nil
}
