package model

import "errors"

var (
	ErrTokenInvalid  = errors.New("token is invalid")
	ErrTokenRevoked  = errors.New("refresh token revoked")
	ErrTokenExpired  = errors.New("refresh token expired")
	ErrTokenMismatch = errors.New("refresh token mismatch")
)
