package app

import (
	"errors"
	"fmt"
)

// Error taxonomy. Handlers map these to HTTP statuses with errors.Is;
// specific conditions wrap the taxonomy sentinel they belong to.
var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("not enough permissions")
	ErrInvalidRole     = errors.New("invalid role")
	ErrConflict        = errors.New("conflict")
	ErrInconsistent    = errors.New("internal inconsistency")
	ErrUnauthenticated = errors.New("could not validate credentials")
	ErrValidation      = errors.New("invalid request")

	// ErrInvalidCredentials deliberately does not reveal whether the
	// account exists.
	ErrInvalidCredentials = errors.New("incorrect username or password")

	ErrUsernameExists = fmt.Errorf("%w: username already registered", ErrConflict)
	ErrEmailExists    = fmt.Errorf("%w: email already registered", ErrConflict)

	// ErrAdminSelfDelete rejects an administrator deleting their own account.
	ErrAdminSelfDelete = errors.New("an administrator cannot delete their own account")
)
