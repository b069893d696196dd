package auth

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrFirebaseDisabled   = errors.New("firebase sign-in is not configured")
)
