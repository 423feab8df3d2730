// Package service implements the auth and profile business logic on top
// of the user store, the password hasher and the token issuer.
package service

import "errors"

// Sentinel errors for the operation outcomes the handlers must
// distinguish.  Operations wrap these with fmt.Errorf("%w: ...") so the
// client-facing message travels with the error while handlers branch on
// errors.Is.
var (
	// ErrValidation marks missing or malformed input.
	ErrValidation = errors.New("invalid input")
	// ErrConflict marks a duplicate username or email.
	ErrConflict = errors.New("conflict")
	// ErrNotFound marks a lookup that matched no identity.
	ErrNotFound = errors.New("user not found")
	// ErrInvalidCredentials marks a password mismatch.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized marks a missing, invalid, expired or replayed token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrHashing marks a credential-hashing failure; treated as internal.
	ErrHashing = errors.New("hashing failed")
)
