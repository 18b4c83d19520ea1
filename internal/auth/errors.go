package auth

import "errors"

var (
	// Provisioning errors.
	ErrMemberNotFound     = errors.New("auth: member not found")
	ErrInvalidCredential  = errors.New("auth: invalid credentials")
	ErrPasswordAlreadySet = errors.New("auth: password already set")
	ErrWeakPassword       = errors.New("auth: password does not meet requirements")

	// Token verification errors. Collapsed to ErrUnauthorized before they
	// reach an external caller.
	ErrInvalidSignature = errors.New("auth: invalid token signature")
	ErrExpired          = errors.New("auth: token expired")
	ErrRevoked          = errors.New("auth: token revoked")
	ErrMalformedToken   = errors.New("auth: malformed token")

	// Guard errors, safe to surface.
	ErrUnauthorized = errors.New("auth: unauthorized")
	ErrForbidden    = errors.New("auth: forbidden")

	// Store-level sentinel.
	ErrNotFound = errors.New("auth: not found")
)
