package model

import "errors"

var (
	// Credential store errors
	ErrStorage     = errors.New("credential storage unavailable")
	ErrReservedKey = errors.New("key is reserved for authentication state")

	// Token errors
	ErrMalformedToken = errors.New("malformed token")
	ErrNoToken        = errors.New("no token found")
	ErrNoRefreshToken = errors.New("no refresh token available")

	// Session lifecycle errors
	ErrAuthPayload       = errors.New("invalid authentication payload")
	ErrRefreshFailed     = errors.New("token refresh failed")
	ErrBackendMismatch   = errors.New("backend profile differs from cached profile")
	ErrSessionSuperseded = errors.New("session changed while request was in flight")
	ErrUnauthorized      = errors.New("unauthorized")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)
