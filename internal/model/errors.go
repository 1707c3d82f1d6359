package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by stores when a row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAuthenticationRequired means the request carries no authenticated principal.
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrUserNotFound means the request is authenticated but no stored user matches the principal.
	// It wraps ErrAuthenticationRequired so callers that only care about a usable identity can check one error.
	ErrUserNotFound = fmt.Errorf("user not found: %w", ErrAuthenticationRequired)

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email is already taken")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidArgument    = errors.New("invalid argument")
)
