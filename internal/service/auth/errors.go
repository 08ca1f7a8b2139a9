package auth

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrOrphanedCredential = errors.New("credential has no profile")
	ErrAccountLocked      = errors.New("account temporarily locked due to repeated login failures")
	ErrSessionNotFound    = errors.New("session not found or expired")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrWrongPassword      = errors.New("current password is incorrect")
	ErrPasswordTooShort   = errors.New("password too short")
	ErrUsernameTaken      = errors.New("username already registered")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidRole        = errors.New("invalid role")
	ErrUnavailable        = errors.New("identity store unavailable")
	ErrUnauthenticated    = errors.New("not authenticated")
)
