package storage

import "errors"

var (
	// ErrUserNotFound is returned when a user is not found
	ErrUserNotFound = errors.New("user not found")

	// ErrUserExists is returned when creating a user whose username is taken
	ErrUserExists = errors.New("user already exists")

	// ErrInvalidCredentialInput is returned when provider, model or API key is empty
	ErrInvalidCredentialInput = errors.New("provider, model, and API key are required")

	// ErrMissingUserID is returned when an operation is called without a user id
	ErrMissingUserID = errors.New("user id is required")

	// ErrRevocationStoreFull is returned when no revocation can be recorded
	// without dropping one that is still in force
	ErrRevocationStoreFull = errors.New("revocation store is full")
)
