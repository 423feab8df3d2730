// Package repository defines error types that are reused across the
// persistence layer. These sentinel values allow higher layers such as
// the auth service to distinguish between different failure scenarios
// without importing database/sql.
package repository

import "errors"

// ErrNotFound is returned when no row matches the requested lookup.
// The service layer translates it into a not-found or unauthorized
// response depending on the operation.
var ErrNotFound = errors.New("not found")

// ErrUsernameExists is returned when an insert would violate the unique
// constraint on users.username.
var ErrUsernameExists = errors.New("username already exists")

// ErrEmailExists is returned when an insert would violate the unique
// constraint on users.email.
var ErrEmailExists = errors.New("email already exists")
