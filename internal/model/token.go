package model

import "github.com/google/uuid"

// TokenManager generates and validates access/refresh tokens.
type TokenManager interface {
	GenerateAccessToken(user User) (string, error)
	GenerateRefreshToken(user User) (token string, jti string, err error)
	ParseAccessToken(token string) (Principal, error)
	ParseRefreshToken(token string) (userID uuid.UUID, jti string, err error)
}
