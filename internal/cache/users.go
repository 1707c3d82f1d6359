// Package cache keeps hot user lookups in Redis in front of the user store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dtroode/carebook-server/internal/logger"
	"github.com/dtroode/carebook-server/internal/model"
)

const (
	userEmailPrefix = "carebook:user:email:"

	// evictedMarker replaces an evicted entry for evictionHold so that a read which
	// loaded the user before a write cannot put the old record back.
	evictedMarker = "evicted"
	evictionHold  = 5 * time.Second
)

// Client is the subset of redis.Cmdable used by the cache.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// cachedUser is the part of a user that may leave the database. Password hashes
// are never written to Redis.
type cachedUser struct {
	ID        uuid.UUID    `json:"id"`
	Email     string       `json:"email"`
	Roles     []model.Role `json:"roles"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	CreatedBy string       `json:"created_by"`
	UpdatedBy string       `json:"updated_by"`
}

func toCached(u model.User) cachedUser {
	return cachedUser{
		ID:        u.ID,
		Email:     u.Email,
		Roles:     u.Roles,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
		CreatedBy: u.CreatedBy,
		UpdatedBy: u.UpdatedBy,
	}
}

func (c cachedUser) user() model.User {
	return model.User{
		ID:        c.ID,
		Email:     c.Email,
		Roles:     c.Roles,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		CreatedBy: c.CreatedBy,
		UpdatedBy: c.UpdatedBy,
	}
}

// UserStore decorates a model.UserStore with a read-through cache for
// GetByEmail. Writes go to the underlying store and evict the cached entry.
// Redis failures degrade to the underlying store.
//
// Users returned from the cache carry no password hash, so credential checks
// must read the underlying store directly.
type UserStore struct {
	next   model.UserStore
	client Client
	ttl    time.Duration
	hold   time.Duration
	logger *logger.Logger
}

// NewUserStore creates a caching UserStore.
func NewUserStore(next model.UserStore, client Client, ttl time.Duration, logger *logger.Logger) *UserStore {
	return &UserStore{
		next:   next,
		client: client,
		ttl:    ttl,
		hold:   evictionHold,
		logger: logger,
	}
}

// GetByEmail returns the cached user or loads it from the underlying store.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (model.User, error) {
	key := userEmailPrefix + email

	raw, err := s.client.Get(ctx, key).Bytes()
	switch {
	case err == nil && string(raw) == evictedMarker:
	case err == nil:
		var cached cachedUser
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached.user(), nil
		}
		s.logger.Warn("User cache: dropping undecodable entry", "key", key)
		if err := s.client.Del(ctx, key).Err(); err != nil {
			s.logger.Warn("User cache: drop failed", "key", key, "error", err.Error())
		}
	case !errors.Is(err, redis.Nil):
		s.logger.Warn("User cache: get failed", "error", err.Error())
	}

	user, err := s.next.GetByEmail(ctx, email)
	if err != nil {
		return model.User{}, err
	}

	s.store(ctx, user)
	return user, nil
}

func (s *UserStore) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	return s.next.GetByID(ctx, id)
}

func (s *UserStore) Create(ctx context.Context, user model.User) (model.User, error) {
	created, err := s.next.Create(ctx, user)
	if err != nil {
		return model.User{}, err
	}
	s.evict(ctx, created.Email)
	return created, nil
}

func (s *UserStore) UpdateRoles(ctx context.Context, id uuid.UUID, roles []model.Role, updatedBy string) (model.User, error) {
	updated, err := s.next.UpdateRoles(ctx, id, roles, updatedBy)
	if err != nil {
		return model.User{}, err
	}
	s.evict(ctx, updated.Email)
	return updated, nil
}

// store fills an empty key only. An eviction marker or a fresher entry wins.
func (s *UserStore) store(ctx context.Context, user model.User) {
	payload, err := json.Marshal(toCached(user))
	if err != nil {
		s.logger.Warn("User cache: encode failed", "error", err.Error())
		return
	}
	if err := s.client.SetNX(ctx, userEmailPrefix+user.Email, payload, s.ttl).Err(); err != nil {
		s.logger.Warn("User cache: set failed", "error", err.Error())
	}
}

func (s *UserStore) evict(ctx context.Context, email string) {
	if err := s.client.Set(ctx, userEmailPrefix+email, evictedMarker, s.hold).Err(); err != nil {
		s.logger.Warn("User cache: evict failed", "error", fmt.Errorf("mark %s: %w", email, err).Error())
	}
}

// Ping verifies the Redis connection during startup.
func Ping(ctx context.Context, client *redis.Client) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}
